package ccf

import "hash"

// IncludedRoot recomputes the candidate ledger root committed by the proof.
//
// The starting accumulator is
//
//	H(internal-transaction-digest || H(internal-evidence) || data-digest)
//
// and each path element folds in as H(digest || acc) for a left sibling or
// H(acc || digest) for a right sibling. The fold is a pure function of the
// proof; element order is dictated by the path and never sorted.
func IncludedRoot(hasher hash.Hash, leaf Leaf, path []ProofElement) []byte {

	hasher.Reset()
	hasher.Write([]byte(leaf.InternalEvidence))
	evidenceDigest := hasher.Sum(nil)

	hasher.Reset()
	hasher.Write(leaf.InternalTransactionDigest)
	hasher.Write(evidenceDigest)
	hasher.Write(leaf.DataDigest)
	accumulator := hasher.Sum(nil)

	for _, element := range path {
		hasher.Reset()
		if element.Left {
			hasher.Write(element.Digest)
			hasher.Write(accumulator)
		} else {
			hasher.Write(accumulator)
			hasher.Write(element.Digest)
		}
		accumulator = hasher.Sum(nil)
	}

	return accumulator
}
