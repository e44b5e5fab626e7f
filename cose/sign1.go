// Package cose implements the COSE_Sign1 envelope handling for transparent
// statements and ledger receipts, layered over veraison/go-cose.
//
// https://datatracker.ietf.org/doc/html/rfc8152
package cose

import (
	"crypto"
	"fmt"

	"github.com/ldclabs/cose/go/cwt"
	"github.com/veraison/go-cose"

	scittcbor "github.com/scittkit/go-scitt/cbor"
)

// SCITT / COSE receipt header labels.
//
// draft-ietf-scitt-architecture and draft-ietf-cose-merkle-tree-proofs assign
// the 39x range; the CWT claims label is RFC 9597.
const (
	HeaderLabelCWTClaims               int64 = 15
	HeaderLabelEmbeddedReceipts        int64 = 394
	HeaderLabelVerifiableDataStructure int64 = 395
	HeaderLabelVerifiableDataProof     int64 = 396

	// VerifiableDataStructureCCFTree identifies the CCF merkle tree
	// algorithm in the verifiable-data-structure protected header.
	VerifiableDataStructureCCFTree int64 = 2
)

// Sign1Message extends cose.Sign1Message with the header accessors the
// receipt verification needs, and with byte-exact re-encoding.
type Sign1Message struct {
	*cose.Sign1Message

	codec  scittcbor.CBORCodec
	tagged bool
}

// NewSign1MessageFromCBOR decodes a COSE_Sign1 envelope, accepting both the
// tag 18 wrapped and the bare array form.
func NewSign1MessageFromCBOR(message []byte) (*Sign1Message, error) {
	codec, err := scittcbor.NewDeterministicCodec()
	if err != nil {
		return nil, err
	}

	var coseMessage cose.Sign1Message
	tagged := true
	if err = coseMessage.UnmarshalCBOR(message); err != nil {
		var untagged cose.UntaggedSign1Message
		if err = untagged.UnmarshalCBOR(message); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		coseMessage = cose.Sign1Message(untagged)
		tagged = false
	}

	return &Sign1Message{
		Sign1Message: &coseMessage,
		codec:        codec,
		tagged:       tagged,
	}, nil
}

// MarshalCBOR re-encodes the envelope in its original form. The raw header
// bytes captured at decode time are reused, so a decoded envelope marshals
// back to the exact input bytes.
func (cs *Sign1Message) MarshalCBOR() ([]byte, error) {
	if cs.tagged {
		return cs.Sign1Message.MarshalCBOR()
	}
	untagged := cose.UntaggedSign1Message(*cs.Sign1Message)
	return untagged.MarshalCBOR()
}

// MarshalClearedUnprotected re-encodes the envelope with the unprotected
// headers cleared, always wrapped in tag 18. This is the exact byte string a
// conforming signer produced before any receipts were embedded; the ledger
// leaf records a digest over it.
func (cs *Sign1Message) MarshalClearedUnprotected() ([]byte, error) {
	cleared := *cs.Sign1Message
	cleared.Headers.RawUnprotected = nil
	cleared.Headers.Unprotected = cose.UnprotectedHeader{}
	return cleared.MarshalCBOR()
}

// valueFromProtectedHeader gets a value from the protected header given the label
func (cs *Sign1Message) valueFromProtectedHeader(label int64) (any, error) {
	value, ok := cs.Headers.Protected[label]
	if !ok {
		return nil, &ErrNoProtectedHeaderValue{Label: label}
	}
	return value, nil
}

// valueFromUnprotectedHeader gets a value from the unprotected header given the label
func (cs *Sign1Message) valueFromUnprotectedHeader(label int64) (any, error) {
	value, ok := cs.Headers.Unprotected[label]
	if !ok {
		return nil, &ErrNoUnprotectedHeaderValue{Label: label}
	}
	return value, nil
}

// decodedMap interprets a header value as a CBOR map. Nested maps are carried
// either inline or as a CBOR-encoded byte string; both forms are accepted.
func (cs *Sign1Message) decodedMap(value any, label int64) (map[any]any, error) {
	if encoded, ok := value.([]byte); ok {
		var err error
		value, err = cs.codec.Decode(encoded)
		if err != nil {
			return nil, err
		}
	}
	valueMap, ok := value.(map[any]any)
	if !ok {
		return nil, &ErrUnexpectedHeaderType{
			label: label, expectedType: "map[any]any", actualType: typeName(value)}
	}
	return valueMap, nil
}

// DeclaredAlgorithm returns the algorithm identifier from the protected
// headers.
func (cs *Sign1Message) DeclaredAlgorithm() (cose.Algorithm, error) {
	algorithm, err := cs.Headers.Protected.Algorithm()
	if err != nil {
		return cose.Algorithm(0), fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return algorithm, nil
}

// KeyIDFromProtectedHeader gets the kid from the protected header.
func (cs *Sign1Message) KeyIDFromProtectedHeader() ([]byte, error) {
	kid, err := cs.valueFromProtectedHeader(cose.HeaderLabelKeyID)
	if err != nil {
		return nil, err
	}
	switch v := kid.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, &ErrUnexpectedHeaderType{
			label: cose.HeaderLabelKeyID, expectedType: "[]byte", actualType: typeName(kid)}
	}
}

// IssuerFromCWTClaims gets the issuer from the CWT claims map carried in the
// protected headers.
//
//	CWT_Claims = {
//	  1 => tstr; iss, the transparency service making the inclusion claim
//	  ...
//	}
func (cs *Sign1Message) IssuerFromCWTClaims() (string, error) {
	cwtClaimsRaw, err := cs.valueFromProtectedHeader(HeaderLabelCWTClaims)
	if err != nil {
		return "", err
	}

	cwtClaimsMap, err := cs.decodedMap(cwtClaimsRaw, HeaderLabelCWTClaims)
	if err != nil {
		return "", err
	}

	issuer, ok := cwtClaimsMap[int64(cwt.KeyIss)]
	if !ok {
		return "", ErrCWTClaimsNoIssuer
	}

	issuerStr, ok := issuer.(string)
	if !ok {
		return "", ErrCWTClaimsIssuerNotString
	}
	if issuerStr == "" {
		return "", ErrCWTClaimsNoIssuer
	}

	return issuerStr, nil
}

// VerifiableDataStructure returns the verifiable-data-structure identifier
// from the protected headers.
func (cs *Sign1Message) VerifiableDataStructure() (int64, error) {
	vds, err := cs.valueFromProtectedHeader(HeaderLabelVerifiableDataStructure)
	if err != nil {
		return 0, err
	}
	vdsInt, ok := vds.(int64)
	if !ok {
		return 0, &ErrUnexpectedHeaderType{
			label: HeaderLabelVerifiableDataStructure, expectedType: "int64", actualType: typeName(vds)}
	}
	return vdsInt, nil
}

// VerifiableDataProof returns the verifiable-data-proof map from the
// unprotected headers.
func (cs *Sign1Message) VerifiableDataProof() (map[any]any, error) {
	vdp, err := cs.valueFromUnprotectedHeader(HeaderLabelVerifiableDataProof)
	if err != nil {
		return nil, err
	}
	return cs.decodedMap(vdp, HeaderLabelVerifiableDataProof)
}

// EmbeddedReceipts returns the ordered receipt byte strings carried under the
// embedded-receipts label in the unprotected headers.
func (cs *Sign1Message) EmbeddedReceipts() ([][]byte, error) {
	value, err := cs.valueFromUnprotectedHeader(HeaderLabelEmbeddedReceipts)
	if err != nil {
		return nil, ErrNoEmbeddedReceipts
	}

	if encoded, ok := value.([]byte); ok {
		value, err = cs.codec.Decode(encoded)
		if err != nil {
			return nil, err
		}
	}

	items, ok := value.([]any)
	if !ok {
		return nil, &ErrUnexpectedHeaderType{
			label: HeaderLabelEmbeddedReceipts, expectedType: "[]any", actualType: typeName(value)}
	}

	receipts := make([][]byte, 0, len(items))
	for _, item := range items {
		receipt, ok := item.([]byte)
		if !ok {
			return nil, &ErrUnexpectedHeaderType{
				label: HeaderLabelEmbeddedReceipts, expectedType: "[]byte", actualType: typeName(item)}
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// PublicKeyProvider supplies the verification key and algorithm for an
// envelope. Key material acquisition stays behind this capability so the
// envelope layer never learns where keys come from.
type PublicKeyProvider interface {
	PublicKey() (crypto.PublicKey, cose.Algorithm, error)
}

// VerifyWithProvider verifies the envelope signature using a key supplied by
// the provider.
func (cs *Sign1Message) VerifyWithProvider(provider PublicKeyProvider, external []byte) error {
	publicKey, algorithm, err := provider.PublicKey()
	if err != nil {
		return err
	}

	verifier, err := cose.NewVerifier(algorithm, publicKey)
	if err != nil {
		return err
	}

	return cs.Verify(external, verifier)
}

// VerifyDetached verifies the envelope signature over the supplied detached
// payload. The receiver is not mutated; receipts carry a nil payload on the
// wire and the recomputed ledger root stands in for it.
func (cs *Sign1Message) VerifyDetached(
	payload []byte, external []byte, publicKey crypto.PublicKey, algorithm cose.Algorithm,
) error {
	verifier, err := cose.NewVerifier(algorithm, publicKey)
	if err != nil {
		return err
	}

	detached := *cs.Sign1Message
	detached.Payload = payload
	return detached.Verify(external, verifier)
}
