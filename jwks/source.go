package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/datatrails/go-datatrails-common/logger"
)

var (
	// ErrIssuerNotConfigured marks an offline store miss, distinguishing it
	// from a fetch or decode failure so the resolver can apply the fallback
	// policy.
	ErrIssuerNotConfigured = errors.New("issuer not configured in offline key store")

	ErrKeyFetchFailed = errors.New("failed to fetch key set document")
)

// KeySource supplies the key set document for an issuer domain.
type KeySource interface {
	KeySet(ctx context.Context, issuer string) (*KeySet, error)
}

// OfflineKeys is a static, read-only key source mapping issuer domains to
// key set documents supplied by the caller.
type OfflineKeys map[string]*KeySet

func (o OfflineKeys) KeySet(_ context.Context, issuer string) (*KeySet, error) {
	keySet, ok := o[issuer]
	if !ok || keySet == nil {
		return nil, fmt.Errorf("%w: %q", ErrIssuerNotConfigured, issuer)
	}
	return keySet, nil
}

// RemoteSource fetches key set documents from https://{issuer}/jwks. The
// fetch is an idempotent GET; retry and backoff policy belong to the supplied
// http client, not here.
type RemoteSource struct {
	log    logger.Logger
	client *http.Client
}

func NewRemoteSource(log logger.Logger, client *http.Client) *RemoteSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteSource{log: log, client: client}
}

func (r *RemoteSource) KeySet(ctx context.Context, issuer string) (*KeySet, error) {
	endpoint := fmt.Sprintf("https://%s/jwks", issuer)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	if r.log != nil {
		r.log.Debugf("fetching key set for issuer %s", issuer)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrKeyFetchFailed, issuer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: HTTP %d", ErrKeyFetchFailed, issuer, resp.StatusCode)
	}

	var keySet KeySet
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrKeyFetchFailed, issuer, err)
	}
	return &keySet, nil
}
