package ccf

import (
	"errors"
	"fmt"

	scittcbor "github.com/scittkit/go-scitt/cbor"
)

// Map labels inside one inclusion proof, and the label the proof list is
// filed under in the verifiable-data-proof map.
const (
	InclusionProofLabel int64 = -1
	ProofLeafLabel      int64 = 1
	ProofPathLabel      int64 = 2
)

// DigestSize is the size of every digest in a CCF proof, the tree algorithm
// is fixed to SHA-256.
const DigestSize = 32

const maxEvidenceSize = 1024

var (
	ErrMissingInclusionProof = errors.New("inclusion proof is required")
	ErrMalformedLeaf         = errors.New("malformed ccf leaf")
	ErrMalformedProofElement = errors.New("malformed ccf proof element")
	ErrMalformedProof        = errors.New("malformed ccf inclusion proof")
)

// Leaf is the CCF ledger leaf record.
//
//	ccf-leaf = [
//	  internal-transaction-digest: bstr .size 32
//	  internal-evidence: tstr .size (1..1024)
//	  data-digest: bstr .size 32
//	]
type Leaf struct {
	InternalTransactionDigest []byte
	InternalEvidence          string
	DataDigest                []byte
}

// ProofElement is one sibling digest on the path from the leaf to the root.
// Left siblings are concatenated before the running digest, right siblings
// after.
type ProofElement struct {
	Left   bool
	Digest []byte
}

// InclusionProof pairs a leaf with the path that commits it to the root.
type InclusionProof struct {
	Leaf Leaf
	Path []ProofElement
}

// InclusionProofs extracts the ordered proof list from a decoded
// verifiable-data-proof map. Each entry may be an already decoded map or a
// CBOR-encoded byte string.
func InclusionProofs(codec scittcbor.CBORCodec, vdp map[any]any) ([]InclusionProof, error) {
	proofsRaw, ok := vdp[InclusionProofLabel]
	if !ok {
		return nil, ErrMissingInclusionProof
	}

	if encoded, isBytes := proofsRaw.([]byte); isBytes {
		var err error
		proofsRaw, err = codec.Decode(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
		}
	}

	items, ok := proofsRaw.([]any)
	if !ok || len(items) == 0 {
		return nil, ErrMissingInclusionProof
	}

	proofs := make([]InclusionProof, 0, len(items))
	for _, item := range items {
		proof, err := decodeInclusionProof(codec, item)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, proof)
	}
	return proofs, nil
}

func decodeInclusionProof(codec scittcbor.CBORCodec, item any) (InclusionProof, error) {
	if encoded, ok := item.([]byte); ok {
		var err error
		item, err = codec.Decode(encoded)
		if err != nil {
			return InclusionProof{}, fmt.Errorf("%w: %v", ErrMalformedProof, err)
		}
	}

	proofMap, ok := item.(map[any]any)
	if !ok {
		// %T names a CBOR null entry as <nil> instead of panicking on the
		// nil interface.
		return InclusionProof{}, fmt.Errorf(
			"%w: expected map, got %T", ErrMalformedProof, item)
	}

	leafRaw, ok := proofMap[ProofLeafLabel]
	if !ok {
		return InclusionProof{}, fmt.Errorf("%w: leaf must be present", ErrMalformedProof)
	}
	leaf, err := DecodeLeaf(codec, leafRaw)
	if err != nil {
		return InclusionProof{}, err
	}

	pathRaw, ok := proofMap[ProofPathLabel]
	if !ok {
		return InclusionProof{}, fmt.Errorf("%w: path must be present", ErrMalformedProof)
	}
	path, err := DecodeProofPath(codec, pathRaw)
	if err != nil {
		return InclusionProof{}, err
	}

	return InclusionProof{Leaf: leaf, Path: path}, nil
}

// DecodeLeaf decodes a ccf-leaf from either its CBOR-encoded byte string form
// or its already decoded array form.
func DecodeLeaf(codec scittcbor.CBORCodec, leafRaw any) (Leaf, error) {
	if encoded, ok := leafRaw.([]byte); ok {
		var err error
		leafRaw, err = codec.Decode(encoded)
		if err != nil {
			return Leaf{}, fmt.Errorf("%w: %v", ErrMalformedLeaf, err)
		}
	}

	items, ok := leafRaw.([]any)
	if !ok || len(items) != 3 {
		return Leaf{}, fmt.Errorf("%w: expected array of 3 elements", ErrMalformedLeaf)
	}

	transactionDigest, ok := items[0].([]byte)
	if !ok || len(transactionDigest) != DigestSize {
		return Leaf{}, fmt.Errorf("%w: internal transaction digest must be %d bytes", ErrMalformedLeaf, DigestSize)
	}

	evidence, ok := items[1].(string)
	if !ok || len(evidence) == 0 || len(evidence) > maxEvidenceSize {
		return Leaf{}, fmt.Errorf("%w: internal evidence must be a 1..%d byte string", ErrMalformedLeaf, maxEvidenceSize)
	}

	dataDigest, ok := items[2].([]byte)
	if !ok || len(dataDigest) != DigestSize {
		return Leaf{}, fmt.Errorf("%w: data digest must be %d bytes", ErrMalformedLeaf, DigestSize)
	}

	return Leaf{
		InternalTransactionDigest: transactionDigest,
		InternalEvidence:          evidence,
		DataDigest:                dataDigest,
	}, nil
}

// DecodeProofPath decodes the ordered proof element list from either its
// CBOR-encoded byte string form or its already decoded array form.
//
//	ccf-proof-element = [
//	  left: bool
//	  digest: bstr .size 32
//	]
func DecodeProofPath(codec scittcbor.CBORCodec, pathRaw any) ([]ProofElement, error) {
	if encoded, ok := pathRaw.([]byte); ok {
		var err error
		pathRaw, err = codec.Decode(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedProofElement, err)
		}
	}

	items, ok := pathRaw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array", ErrMalformedProofElement)
	}

	path := make([]ProofElement, 0, len(items))
	for _, item := range items {
		element, ok := item.([]any)
		if !ok || len(element) != 2 {
			return nil, fmt.Errorf("%w: expected array of 2 elements", ErrMalformedProofElement)
		}
		left, ok := element[0].(bool)
		if !ok {
			return nil, fmt.Errorf("%w: left flag must be a bool", ErrMalformedProofElement)
		}
		digest, ok := element[1].([]byte)
		if !ok || len(digest) != DigestSize {
			return nil, fmt.Errorf("%w: digest must be %d bytes", ErrMalformedProofElement, DigestSize)
		}
		path = append(path, ProofElement{Left: left, Digest: digest})
	}
	return path, nil
}
