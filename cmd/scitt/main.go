package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/urfave/cli/v2"

	"github.com/scittkit/go-scitt/jwks"
	"github.com/scittkit/go-scitt/transparency"
)

var errArgs = errors.New("wrong number of arguments")

func parseAuthorizedBehavior(name string) (transparency.AuthorizedReceiptBehavior, error) {
	switch name {
	case "verify-any-matching":
		return transparency.VerifyAnyMatching, nil
	case "verify-all-matching":
		return transparency.VerifyAllMatching, nil
	case "require-all":
		return transparency.RequireAll, nil
	default:
		return 0, fmt.Errorf("unknown authorized receipt behavior %q", name)
	}
}

func parseUnauthorizedBehavior(name string) (transparency.UnauthorizedReceiptBehavior, error) {
	switch name {
	case "verify-all":
		return transparency.VerifyAll, nil
	case "ignore-all":
		return transparency.IgnoreAll, nil
	case "fail-if-present":
		return transparency.FailIfPresent, nil
	default:
		return 0, fmt.Errorf("unknown unauthorized receipt behavior %q", name)
	}
}

// loadOfflineKeys reads a directory of <issuer>.json key set documents.
func loadOfflineKeys(dir string) (jwks.OfflineKeys, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	offline := jwks.OfflineKeys{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var keySet jwks.KeySet
		if err := json.Unmarshal(data, &keySet); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		issuer := strings.TrimSuffix(entry.Name(), ".json")
		offline[issuer] = &keySet
	}
	return offline, nil
}

func handleVerify(cc *cli.Context) error {
	if cc.Args().Len() != 1 {
		return errArgs
	}

	statementBytes, err := os.ReadFile(cc.Args().First())
	if err != nil {
		return err
	}

	authorizedBehavior, err := parseAuthorizedBehavior(cc.String("authorized-behavior"))
	if err != nil {
		return err
	}
	unauthorizedBehavior, err := parseUnauthorizedBehavior(cc.String("unauthorized-behavior"))
	if err != nil {
		return err
	}

	options := &transparency.VerificationOptions{
		AuthorizedDomains:           cc.StringSlice("authorized"),
		AuthorizedReceiptBehavior:   authorizedBehavior,
		UnauthorizedReceiptBehavior: unauthorizedBehavior,
		HTTPClient:                  &http.Client{Timeout: cc.Duration("timeout")},
		Log:                         logger.Sugar.WithServiceName("scitt"),
	}

	if dir := cc.String("offline-jwks"); dir != "" {
		options.OfflineKeys, err = loadOfflineKeys(dir)
		if err != nil {
			return err
		}
	}
	if cc.Bool("no-network") {
		options.OfflineKeysBehavior = transparency.NoFallbackToNetwork
	}

	ctx, cancel := context.WithTimeout(context.Background(), cc.Duration("timeout"))
	defer cancel()

	if err := transparency.VerifyTransparentStatement(ctx, statementBytes, options); err != nil {
		return cli.Exit(fmt.Sprintf("verification failed: %v", err), 1)
	}

	fmt.Println("verification succeeded: the statement was registered in the ledger")
	return nil
}

func main() {
	logger.New("INFO")
	defer logger.OnExit()

	app := &cli.App{
		Name:  "scitt",
		Usage: "verify transparent statements against ledger receipts",
		Commands: []*cli.Command{
			{
				Name:      "verify",
				Usage:     "verify the receipts embedded in a transparent statement file",
				ArgsUsage: "<statement-file>",
				Action:    handleVerify,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "authorized",
						Usage: "authorized issuer domain, repeatable",
					},
					&cli.StringFlag{
						Name:  "authorized-behavior",
						Value: "verify-all-matching",
						Usage: "verify-any-matching, verify-all-matching or require-all",
					},
					&cli.StringFlag{
						Name:  "unauthorized-behavior",
						Value: "fail-if-present",
						Usage: "verify-all, ignore-all or fail-if-present",
					},
					&cli.StringFlag{
						Name:  "offline-jwks",
						Usage: "directory of <issuer>.json key set documents",
					},
					&cli.BoolFlag{
						Name:  "no-network",
						Usage: "never fetch key sets over the network",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Value: 30 * time.Second,
						Usage: "overall verification timeout, including key fetches",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
