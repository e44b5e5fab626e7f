package transparency

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoReceipts = errors.New("no receipts found in the transparent statement")

	// ErrNoVerifiableReceipts reports a configuration under which no receipt
	// would ever be checked: no authorized domains and unauthorized receipts
	// ignored.
	ErrNoVerifiableReceipts = errors.New("no receipts would be verified")

	ErrAlgorithmMismatch        = errors.New("receipt algorithm mismatch")
	ErrKeyIDMismatch            = errors.New("receipt kid mismatch")
	ErrUnsupportedDataStructure = errors.New("verifiable data structure is not the ccf tree algorithm")
	ErrInvalidSignature         = errors.New("receipt signature verification failed")
	ErrClaimDigestMismatch      = errors.New("claim digest mismatch")

	ErrCannotVerifyUnknownIssuer  = errors.New("cannot verify receipt with unknown issuer")
	ErrUnauthorizedReceiptPresent = errors.New("receipt issuer is not in the authorized domain list")
	ErrPolicyUnsatisfied          = errors.New("trust policy unsatisfied")
)

// AggregateVerificationError carries two or more verification failures in
// receipt-then-domain order. Individual failures remain reachable through
// errors.Is and errors.As.
type AggregateVerificationError struct {
	Errs []error
}

func (e *AggregateVerificationError) Error() string {
	messages := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("multiple verification failures: %s", strings.Join(messages, "; "))
}

func (e *AggregateVerificationError) Unwrap() []error {
	return e.Errs
}
