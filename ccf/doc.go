// Package ccf implements decoding and root recomputation for CCF ledger
// inclusion proofs.
//
// A receipt carries one or more inclusion proofs under the
// verifiable-data-proof unprotected header. Each proof is a map holding a
// leaf record and an ordered path of sibling digests; folding the path over
// the leaf digest reproduces the ledger root the transparency service signed.
package ccf
