// Package transparency verifies SCITT transparent statements against CCF
// transparency ledger receipts.
//
// A transparent statement is a signed statement whose unprotected headers
// carry one or more embedded receipts. Verification recomputes each
// receipt's merkle inclusion proof, checks the issuing ledger's signature
// over the recomputed root, confirms the receipt commits to this exact
// statement, and enforces a configurable multi-domain trust policy over the
// outcomes.
package transparency

import (
	"context"
	"fmt"
	"strings"

	scittcbor "github.com/scittkit/go-scitt/cbor"
	"github.com/scittkit/go-scitt/cose"
	"github.com/scittkit/go-scitt/jwks"
)

// VerifyTransparentStatement verifies the receipts embedded in a transparent
// statement and enforces the issuer domain policy in options. A nil options
// applies DefaultVerificationOptions.
//
// It returns nil when the policy is satisfied, a single error for a single
// failure, and an *AggregateVerificationError carrying the ordered failure
// list when more than one receipt or domain failed. Besides the optional key
// set fetch there are no side effects; the offline key store is never
// mutated and no state survives the call.
func VerifyTransparentStatement(ctx context.Context, statementBytes []byte, options *VerificationOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if options == nil {
		options = DefaultVerificationOptions()
	}

	codec, err := scittcbor.NewDeterministicCodec()
	if err != nil {
		return err
	}

	statement, err := cose.NewSign1MessageFromCBOR(statementBytes)
	if err != nil {
		return err
	}

	receipts, err := extractReceipts(statement)
	if err != nil {
		return err
	}

	authorizedOrder, authorizedSet := normalizeAuthorizedDomains(options.AuthorizedDomains)

	if len(authorizedSet) == 0 && options.UnauthorizedReceiptBehavior == IgnoreAll {
		return fmt.Errorf(
			"%w: no authorized domains were provided and the unauthorized receipt behavior is set to ignore all",
			ErrNoVerifiableReceipts)
	}

	// Reject-on-suspicion: the presence of any unauthorized receipt aborts
	// the call before any signature verification, including verification of
	// receipts that would have been valid.
	if options.UnauthorizedReceiptBehavior == FailIfPresent {
		for _, rec := range receipts {
			if _, ok := authorizedSet[strings.ToLower(rec.Issuer)]; !ok {
				return fmt.Errorf("%w: %q", ErrUnauthorizedReceiptPresent, rec.Issuer)
			}
		}
	}

	// The ledger leaf commits to the statement as signed, before any
	// receipts were embedded.
	signedStatement, err := statement.MarshalClearedUnprotected()
	if err != nil {
		return fmt.Errorf("%w: %v", cose.ErrMalformedEnvelope, err)
	}

	resolver := jwks.NewResolver(
		options.OfflineKeys,
		jwks.NewRemoteSource(options.Log, options.HTTPClient),
		options.OfflineKeysBehavior == FallbackToNetwork,
	)

	var authorizedFailures, unauthorizedFailures []error
	validAuthorized := map[string]bool{}
	var withReceiptOrder []string
	withReceipt := map[string]bool{}

	for _, rec := range receipts {
		issuerLower := strings.ToLower(rec.Issuer)
		_, isAuthorized := authorizedSet[issuerLower]

		if isAuthorized && !withReceipt[issuerLower] {
			withReceipt[issuerLower] = true
			withReceiptOrder = append(withReceiptOrder, issuerLower)
		}

		shouldVerify := isAuthorized || options.UnauthorizedReceiptBehavior == VerifyAll
		if !shouldVerify {
			continue
		}

		if strings.HasPrefix(rec.Issuer, UnknownIssuerPrefix) {
			// No key resolution is possible without an issuer.
			unauthorizedFailures = append(unauthorizedFailures,
				fmt.Errorf("%w: %q", ErrCannotVerifyUnknownIssuer, rec.Issuer))
			continue
		}

		if err := resolveAndVerify(ctx, codec, resolver, rec, signedStatement); err != nil {
			if isAuthorized {
				authorizedFailures = append(authorizedFailures, err)
			} else {
				unauthorizedFailures = append(unauthorizedFailures, err)
			}
			continue
		}

		if isAuthorized {
			validAuthorized[issuerLower] = true
		}
	}

	switch options.AuthorizedReceiptBehavior {
	case VerifyAnyMatching:
		if len(authorizedSet) > 0 && len(validAuthorized) == 0 {
			authorizedFailures = append(authorizedFailures, fmt.Errorf(
				"%w: no valid receipts found for any authorized issuer domain", ErrPolicyUnsatisfied))
		} else {
			// One valid authorized receipt satisfies the policy; failures
			// from the other authorized receipts are forgiven.
			authorizedFailures = nil
		}

	case VerifyAllMatching:
		if len(authorizedSet) > 0 && len(withReceipt) == 0 {
			authorizedFailures = append(authorizedFailures, fmt.Errorf(
				"%w: no valid receipts found for any authorized issuer domain", ErrPolicyUnsatisfied))
		}
		for _, domain := range withReceiptOrder {
			if !validAuthorized[domain] {
				authorizedFailures = append(authorizedFailures, fmt.Errorf(
					"%w: a receipt from the required domain %q failed verification", ErrPolicyUnsatisfied, domain))
			}
		}

	case RequireAll:
		for _, domain := range authorizedOrder {
			if !validAuthorized[domain] {
				authorizedFailures = append(authorizedFailures, fmt.Errorf(
					"%w: no valid receipt found for the required domain %q", ErrPolicyUnsatisfied, domain))
			}
		}
	}

	failures := make([]error, 0, len(authorizedFailures)+len(unauthorizedFailures))
	failures = append(failures, authorizedFailures...)
	failures = append(failures, unauthorizedFailures...)

	switch len(failures) {
	case 0:
		return nil
	case 1:
		return failures[0]
	default:
		return &AggregateVerificationError{Errs: failures}
	}
}

// normalizeAuthorizedDomains trims and lowercases the configured domains,
// drops empty entries and entries carrying the unknown-issuer prefix, and
// preserves first-seen order for deterministic policy failures.
func normalizeAuthorizedDomains(domains []string) ([]string, map[string]struct{}) {
	var ordered []string
	set := map[string]struct{}{}
	for _, domain := range domains {
		if domain == "" || strings.HasPrefix(domain, UnknownIssuerPrefix) {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(domain))
		if normalized == "" {
			continue
		}
		if _, ok := set[normalized]; ok {
			continue
		}
		set[normalized] = struct{}{}
		ordered = append(ordered, normalized)
	}
	return ordered, set
}
