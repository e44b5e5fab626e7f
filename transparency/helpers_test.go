package transparency

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	gocose "github.com/veraison/go-cose"

	"github.com/stretchr/testify/require"

	scittcbor "github.com/scittkit/go-scitt/cbor"
	"github.com/scittkit/go-scitt/ccf"
	"github.com/scittkit/go-scitt/cose"
	"github.com/scittkit/go-scitt/jwks"
)

func newTestCodec(t *testing.T) scittcbor.CBORCodec {
	t.Helper()
	codec, err := scittcbor.NewDeterministicCodec()
	require.NoError(t, err)
	return codec
}

// testLedger is one transparency service instance: an issuer domain, a
// signing key and its published JWK.
type testLedger struct {
	issuer string
	kid    string
	key    *ecdsa.PrivateKey
	jwk    jwks.JWK
}

func newTestLedger(t *testing.T, issuer string) *testLedger {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	size := (key.Curve.Params().BitSize + 7) / 8
	kid := "service-key-0"
	return &testLedger{
		issuer: issuer,
		kid:    kid,
		key:    key,
		jwk: jwks.JWK{
			Kid: kid,
			Kty: "EC",
			Crv: "P-256",
			X:   base64.RawURLEncoding.EncodeToString(key.PublicKey.X.FillBytes(make([]byte, size))),
			Y:   base64.RawURLEncoding.EncodeToString(key.PublicKey.Y.FillBytes(make([]byte, size))),
		},
	}
}

func (l *testLedger) keySet() *jwks.KeySet {
	return &jwks.KeySet{Keys: []jwks.JWK{l.jwk}}
}

func offlineKeysFor(ledgers ...*testLedger) jwks.OfflineKeys {
	offline := jwks.OfflineKeys{}
	for _, l := range ledgers {
		offline[l.issuer] = l.keySet()
	}
	return offline
}

// newSignedStatement creates a signed statement with no unprotected headers.
// This is the form the ledger leaf commits to; receipts are embedded
// afterwards with embedReceipts.
func newSignedStatement(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	signer, err := gocose.NewSigner(gocose.AlgorithmES256, key)
	require.NoError(t, err)

	msg := &gocose.Sign1Message{
		Headers: gocose.Headers{
			Protected: gocose.ProtectedHeader{
				gocose.HeaderLabelAlgorithm: gocose.AlgorithmES256,
				gocose.HeaderLabelKeyID:     []byte("statement-signer-key"),
				cose.HeaderLabelCWTClaims: map[int64]any{
					1: "software.vendor.example",
					2: "artifact-42",
				},
			},
		},
		Payload: []byte("payload: artifact digest and locator"),
	}
	require.NoError(t, msg.Sign(rand.Reader, nil, signer))

	encoded, err := msg.MarshalCBOR()
	require.NoError(t, err)
	return encoded
}

// embedReceipts returns the transparent statement: the signed statement with
// the receipts carried in its unprotected headers.
func embedReceipts(t *testing.T, signedStatement []byte, receipts ...[]byte) []byte {
	t.Helper()
	var msg gocose.Sign1Message
	require.NoError(t, msg.UnmarshalCBOR(signedStatement))

	items := make([]any, 0, len(receipts))
	for _, receipt := range receipts {
		items = append(items, receipt)
	}
	msg.Headers.RawUnprotected = nil
	msg.Headers.Unprotected = gocose.UnprotectedHeader{
		cose.HeaderLabelEmbeddedReceipts: items,
	}

	encoded, err := msg.MarshalCBOR()
	require.NoError(t, err)
	return encoded
}

// receipt issues a valid receipt for the signed statement.
func (l *testLedger) receipt(t *testing.T, signedStatement []byte) []byte {
	return l.receiptWith(t, signedStatement, nil)
}

// receiptWith issues a receipt, applying mutateProtected to the protected
// headers before signing and appending any extraProofs to the inclusion
// proof list afterwards.
func (l *testLedger) receiptWith(
	t *testing.T,
	signedStatement []byte,
	mutateProtected func(gocose.ProtectedHeader),
	extraProofs ...[]byte,
) []byte {
	t.Helper()
	codec := newTestCodec(t)

	dataDigest := sha256.Sum256(signedStatement)
	transactionDigest := make([]byte, ccf.DigestSize)
	_, err := rand.Read(transactionDigest)
	require.NoError(t, err)

	leaf := ccf.Leaf{
		InternalTransactionDigest: transactionDigest,
		InternalEvidence:          "ce:2.35:74ab1c",
		DataDigest:                dataDigest[:],
	}
	path := []ccf.ProofElement{
		{Left: true, Digest: randomDigest(t)},
		{Left: false, Digest: randomDigest(t)},
	}
	root := ccf.IncludedRoot(sha256.New(), leaf, path)

	leafBytes, err := codec.MarshalCBOR([]any{
		leaf.InternalTransactionDigest, leaf.InternalEvidence, leaf.DataDigest})
	require.NoError(t, err)
	pathBytes, err := codec.MarshalCBOR([]any{
		[]any{path[0].Left, path[0].Digest}, []any{path[1].Left, path[1].Digest}})
	require.NoError(t, err)
	proofBytes, err := codec.MarshalCBOR(map[int64]any{
		ccf.ProofLeafLabel: leafBytes, ccf.ProofPathLabel: pathBytes})
	require.NoError(t, err)

	protected := gocose.ProtectedHeader{
		gocose.HeaderLabelAlgorithm:             gocose.AlgorithmES256,
		gocose.HeaderLabelKeyID:                 []byte(l.kid),
		cose.HeaderLabelCWTClaims:               map[int64]any{1: l.issuer},
		cose.HeaderLabelVerifiableDataStructure: cose.VerifiableDataStructureCCFTree,
	}
	if mutateProtected != nil {
		mutateProtected(protected)
	}

	signer, err := gocose.NewSigner(gocose.AlgorithmES256, l.key)
	require.NoError(t, err)

	msg := &gocose.Sign1Message{
		Headers: gocose.Headers{Protected: protected},
		Payload: root,
	}
	require.NoError(t, msg.Sign(rand.Reader, nil, signer))

	proofs := []any{proofBytes}
	for _, extra := range extraProofs {
		proofs = append(proofs, extra)
	}
	msg.Payload = nil
	msg.Headers.Unprotected = gocose.UnprotectedHeader{
		cose.HeaderLabelVerifiableDataProof: map[int64]any{
			ccf.InclusionProofLabel: proofs,
		},
	}

	encoded, err := msg.MarshalCBOR()
	require.NoError(t, err)
	return encoded
}

func randomDigest(t *testing.T) []byte {
	t.Helper()
	digest := make([]byte, ccf.DigestSize)
	_, err := rand.Read(digest)
	require.NoError(t, err)
	return digest
}

// corrupt returns a copy of data with one bit flipped in the final byte. For
// a COSE_Sign1 envelope the final byte belongs to the signature.
func corrupt(data []byte) []byte {
	flipped := make([]byte, len(data))
	copy(flipped, data)
	flipped[len(flipped)-1] ^= 0x01
	return flipped
}
