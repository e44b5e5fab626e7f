// Package jwks models the JSON Web Key material a transparency service
// publishes, and resolves an issuer domain to the verification key named by a
// receipt. Lookup is offline-first with optional network fallback; the
// resolver performs no caching.
package jwks

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"github.com/veraison/go-cose"
)

var (
	ErrUnknownCurve = errors.New("unsupported or unknown curve")
	ErrKeyFormat    = errors.New("malformed key material")
)

// KeySet is a JWKS document as served from https://{issuer}/jwks.
type KeySet struct {
	Keys []JWK `json:"keys"`
}

// JWK is one public key entry in a key set. Only the EC members used for
// receipt verification are modelled.
type JWK struct {
	Kid string `json:"kid,omitempty"`
	Kty string `json:"kty,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// Key returns the key with the given id, or nil.
func (ks *KeySet) Key(kid string) *JWK {
	for i := range ks.Keys {
		if ks.Keys[i].Kid == kid {
			return &ks.Keys[i]
		}
	}
	return nil
}

// ExpectedAlgorithm maps the key's curve to the one COSE algorithm a receipt
// signed with this key must declare.
func (k *JWK) ExpectedAlgorithm() (cose.Algorithm, error) {
	switch k.Crv {
	case "P-256":
		return cose.AlgorithmES256, nil
	case "P-384":
		return cose.AlgorithmES384, nil
	case "P-521":
		return cose.AlgorithmES512, nil
	default:
		return cose.Algorithm(0), fmt.Errorf("%w: %q", ErrUnknownCurve, k.Crv)
	}
}

// PublicKey converts the JWK coordinates to an ecdsa public key.
func (k *JWK) PublicKey() (crypto.PublicKey, error) {
	publicKey := ecdsa.PublicKey{}

	switch k.Crv {
	case "P-256":
		publicKey.Curve = elliptic.P256()
	case "P-384":
		publicKey.Curve = elliptic.P384()
	case "P-521":
		publicKey.Curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurve, k.Crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("%w: x: %v", ErrKeyFormat, err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, fmt.Errorf("%w: y: %v", ErrKeyFormat, err)
	}
	if len(xBytes) == 0 || len(yBytes) == 0 {
		return nil, fmt.Errorf("%w: missing coordinates", ErrKeyFormat)
	}

	publicKey.X = big.NewInt(0).SetBytes(xBytes)
	publicKey.Y = big.NewInt(0).SetBytes(yBytes)

	if !publicKey.Curve.IsOnCurve(publicKey.X, publicKey.Y) {
		return nil, fmt.Errorf("%w: point is not on %s", ErrKeyFormat, k.Crv)
	}

	return &publicKey, nil
}
