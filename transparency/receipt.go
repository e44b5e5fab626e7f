package transparency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"

	scittcbor "github.com/scittkit/go-scitt/cbor"
	"github.com/scittkit/go-scitt/ccf"
	"github.com/scittkit/go-scitt/cose"
	"github.com/scittkit/go-scitt/jwks"
)

// resolveAndVerify decodes one receipt, resolves its verification key and
// runs the full receipt check against the prepared signed statement.
func resolveAndVerify(
	ctx context.Context,
	codec scittcbor.CBORCodec,
	resolver *jwks.Resolver,
	rec Receipt,
	signedStatement []byte,
) error {
	receipt, err := cose.NewSign1MessageFromCBOR(rec.Raw)
	if err != nil {
		return err
	}

	kid, err := receipt.KeyIDFromProtectedHeader()
	if err != nil {
		return err
	}

	key, err := resolver.Resolve(ctx, rec.Issuer, string(kid))
	if err != nil {
		return err
	}

	return verifyReceipt(codec, key, receipt, signedStatement)
}

// verifyReceipt checks one CCF receipt against the signed statement.
//
// The five checks are algorithm, kid, verifiable data structure, ledger
// signature over the recomputed root, and the claim digest. All are
// mandatory; evaluation short-circuits on the first failure.
func verifyReceipt(
	codec scittcbor.CBORCodec,
	key *jwks.JWK,
	receipt *cose.Sign1Message,
	signedStatement []byte,
) error {
	claimsDigest := sha256.Sum256(signedStatement)

	declaredAlg, err := receipt.DeclaredAlgorithm()
	if err != nil {
		return err
	}
	expectedAlg, err := key.ExpectedAlgorithm()
	if err != nil {
		return err
	}
	if declaredAlg != expectedAlg {
		return fmt.Errorf(
			"%w: expected %d, found %d", ErrAlgorithmMismatch, expectedAlg, declaredAlg)
	}

	kid, err := receipt.KeyIDFromProtectedHeader()
	if err != nil {
		return err
	}
	if !bytes.Equal(kid, []byte(key.Kid)) {
		return fmt.Errorf("%w: declared %q, key is %q", ErrKeyIDMismatch, kid, key.Kid)
	}

	vds, err := receipt.VerifiableDataStructure()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedDataStructure, err)
	}
	if vds != cose.VerifiableDataStructureCCFTree {
		return fmt.Errorf("%w: found %d", ErrUnsupportedDataStructure, vds)
	}

	vdp, err := receipt.VerifiableDataProof()
	if err != nil {
		return fmt.Errorf("%w: %v", ccf.ErrMissingInclusionProof, err)
	}
	proofs, err := ccf.InclusionProofs(codec, vdp)
	if err != nil {
		return err
	}

	publicKey, err := key.PublicKey()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	hasher := sha256.New()
	for _, proof := range proofs {
		root := ccf.IncludedRoot(hasher, proof.Leaf, proof.Path)

		if err := receipt.VerifyDetached(root, nil, publicKey, declaredAlg); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}

		if !bytes.Equal(claimsDigest[:], proof.Leaf.DataDigest) {
			return fmt.Errorf(
				"%w: %x != %x", ErrClaimDigestMismatch, proof.Leaf.DataDigest, claimsDigest)
		}
	}

	return nil
}
