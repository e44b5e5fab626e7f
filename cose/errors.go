package cose

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrMalformedEnvelope = errors.New("malformed COSE_Sign1 envelope")

	ErrCWTClaimsNoIssuer        = errors.New("cwt claims: no issuer")
	ErrCWTClaimsIssuerNotString = errors.New("cwt claims: issuer is not a string")

	ErrNoEmbeddedReceipts = errors.New("embedded receipts not found in unprotected headers")
)

// ErrNoProtectedHeaderValue is returned when a required label is absent from
// the protected header map.
type ErrNoProtectedHeaderValue struct {
	Label int64
}

func (e *ErrNoProtectedHeaderValue) Error() string {
	return fmt.Sprintf("no value for protected header label %d", e.Label)
}

// ErrNoUnprotectedHeaderValue is returned when a required label is absent
// from the unprotected header map.
type ErrNoUnprotectedHeaderValue struct {
	Label int64
}

func (e *ErrNoUnprotectedHeaderValue) Error() string {
	return fmt.Sprintf("no value for unprotected header label %d", e.Label)
}

// ErrUnexpectedHeaderType is returned when a header value decodes to a type
// other than the one the label requires.
type ErrUnexpectedHeaderType struct {
	label        int64
	expectedType string
	actualType   string
}

func (e *ErrUnexpectedHeaderType) Error() string {
	return fmt.Sprintf(
		"header label %d has unexpected type, expected: %s, actual: %s",
		e.label, e.expectedType, e.actualType)
}

// typeName names a header value's dynamic type for error reporting. A CBOR
// null decodes to a nil interface, which reflect.TypeOf maps to an untyped
// nil rather than a type.
func typeName(value any) string {
	t := reflect.TypeOf(value)
	if t == nil {
		return "nil"
	}
	return t.String()
}
