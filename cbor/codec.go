// Package cbor provides the deterministic CBOR codec shared by the COSE
// envelope layer and the CCF proof decoding.
package cbor

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var ErrMalformedCBOR = errors.New("malformed cbor data")

// NewDeterministicEncOpts returns encode options which produce the
// deterministic encoding required for COSE to-be-signed payloads. Map keys
// are sorted core-deterministic and indefinite length items are refused.
func NewDeterministicEncOpts() cbor.EncOptions {
	return cbor.EncOptions{
		Sort:        cbor.SortCoreDeterministic,
		IndefLength: cbor.IndefLengthForbidden,
	}
}

// NewDeterministicDecOptsConvertSigned returns decode options matching the
// encode side. Unsigned integers are converted to int64 so that header and
// claim labels can be matched without worrying about the sign of the wire
// representation.
func NewDeterministicDecOptsConvertSigned() cbor.DecOptions {
	return cbor.DecOptions{
		IntDec:      cbor.IntDecConvertSigned,
		IndefLength: cbor.IndefLengthForbidden,
	}
}

// CBORCodec unifies the encode and decode rules so the to-be-signed bytes and
// the re-emitted envelopes cannot drift apart.
type CBORCodec struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

func NewCBORCodec(encOpts cbor.EncOptions, decOpts cbor.DecOptions) (CBORCodec, error) {
	encMode, err := encOpts.EncMode()
	if err != nil {
		return CBORCodec{}, err
	}
	decMode, err := decOpts.DecMode()
	if err != nil {
		return CBORCodec{}, err
	}
	return CBORCodec{encMode: encMode, decMode: decMode}, nil
}

// NewDeterministicCodec returns a codec configured with the deterministic
// options above. This is the codec every package in this module uses.
func NewDeterministicCodec() (CBORCodec, error) {
	return NewCBORCodec(NewDeterministicEncOpts(), NewDeterministicDecOptsConvertSigned())
}

// MarshalCBOR encodes value using the deterministic encoding rules.
func (c CBORCodec) MarshalCBOR(value any) ([]byte, error) {
	return c.encMode.Marshal(value)
}

// UnmarshalInto decodes data into the provided reference.
func (c CBORCodec) UnmarshalInto(data []byte, value any) error {
	if err := c.decMode.Unmarshal(data, value); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCBOR, err)
	}
	return nil
}

// Decode decodes a single arbitrary CBOR item. Maps come back as map[any]any
// with int64 keys, arrays as []any, byte strings as []byte.
func (c CBORCodec) Decode(data []byte) (any, error) {
	var value any
	if err := c.UnmarshalInto(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}
