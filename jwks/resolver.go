package jwks

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrKeyNotFound     = errors.New("key not found in key set document")
	ErrNoKeysAvailable = errors.New("no keys available for issuer")
)

// Resolver maps an issuer domain and key id to a verification key. The
// offline source is always consulted first; the remote source is used only
// when the issuer is absent offline and network fallback is allowed. An
// issuer that is present offline but lacks the requested key id fails with
// ErrKeyNotFound regardless of the fallback setting.
type Resolver struct {
	offline       KeySource
	remote        KeySource
	allowFallback bool
}

func NewResolver(offline KeySource, remote KeySource, allowFallback bool) *Resolver {
	return &Resolver{offline: offline, remote: remote, allowFallback: allowFallback}
}

// Resolve returns the key the issuer published under kid.
func (r *Resolver) Resolve(ctx context.Context, issuer string, kid string) (*JWK, error) {
	var keySet *KeySet

	if r.offline != nil {
		found, err := r.offline.KeySet(ctx, issuer)
		switch {
		case err == nil:
			keySet = found
		case !errors.Is(err, ErrIssuerNotConfigured):
			return nil, err
		}
	}

	if keySet == nil {
		if !r.allowFallback || r.remote == nil {
			return nil, fmt.Errorf(
				"%w: %q: offline keys are not configured for the issuer and network fallback is disabled",
				ErrNoKeysAvailable, issuer)
		}
		var err error
		keySet, err = r.remote.KeySet(ctx, issuer)
		if err != nil {
			return nil, err
		}
	}

	if len(keySet.Keys) == 0 {
		return nil, fmt.Errorf("%w: key set document for %q is empty", ErrKeyNotFound, issuer)
	}

	key := keySet.Key(kid)
	if key == nil {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}
	return key, nil
}
