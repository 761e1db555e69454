package lcmtype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// DefaultMaxDepth bounds nested struct decoding. Schemas produced by the
// LCM compiler are acyclic, so any decode deeper than this is treated as
// malformed input rather than allowed to exhaust the stack.
const DefaultMaxDepth = 64

// ErrFingerprintMismatch is returned when a payload's fingerprint prefix
// does not match the descriptor it is decoded against.
var ErrFingerprintMismatch = errors.New("lcmtype: fingerprint mismatch")

// ErrMaxDepth is returned when decoding exceeds the recursion ceiling.
var ErrMaxDepth = errors.New("lcmtype: max decode depth exceeded")

type truncatedError struct {
	field string
	need  int
	have  int
}

func (e *truncatedError) Error() string {
	return fmt.Sprintf("lcmtype: truncated payload at field %q: need %d bytes, have %d", e.field, e.need, e.have)
}

type decoder struct {
	buf      []byte
	off      int
	maxDepth int
}

func (dec *decoder) take(field string, n int) ([]byte, error) {
	if n < 0 || dec.off+n > len(dec.buf) {
		return nil, &truncatedError{field: field, need: n, have: len(dec.buf) - dec.off}
	}
	b := dec.buf[dec.off : dec.off+n]
	dec.off += n
	return b, nil
}

// Decode decodes one message. The payload must begin with the descriptor's
// 8-byte fingerprint followed by the fields in declaration order.
func Decode(d *Descriptor, data []byte) (*Message, error) {
	return DecodeDepth(d, data, DefaultMaxDepth)
}

// DecodeDepth is Decode with an explicit recursion ceiling.
func DecodeDepth(d *Descriptor, data []byte, maxDepth int) (*Message, error) {
	if len(data) < 8 {
		return nil, &truncatedError{field: "(fingerprint)", need: 8, have: len(data)}
	}
	if [8]byte(data[:8]) != d.fingerprint {
		return nil, fmt.Errorf("%w: payload %x, %s", ErrFingerprintMismatch, data[:8], d)
	}
	dec := &decoder{buf: data, off: 8, maxDepth: maxDepth}
	msg, err := dec.message(d, 0)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (dec *decoder) message(d *Descriptor, depth int) (*Message, error) {
	if depth >= dec.maxDepth {
		return nil, fmt.Errorf("%w (%d) decoding %s", ErrMaxDepth, dec.maxDepth, d.QualifiedName())
	}
	msg := &Message{Desc: d, Values: make([]interface{}, len(d.Fields))}
	for i := range d.Fields {
		f := &d.Fields[i]
		v, err := dec.field(msg, f, depth)
		if err != nil {
			return nil, err
		}
		msg.Values[i] = v
	}
	return msg, nil
}

func (dec *decoder) field(msg *Message, f *Field, depth int) (interface{}, error) {
	if !f.IsArray() {
		return dec.scalar(f, depth)
	}
	dims, err := dec.dimSizes(msg, f)
	if err != nil {
		return nil, err
	}
	return dec.array(f, dims, depth)
}

// dimSizes resolves every dimension of an array field against previously
// decoded fields of the same message.
func (dec *decoder) dimSizes(msg *Message, f *Field) ([]int, error) {
	dims := make([]int, len(f.Dims))
	for i, d := range f.Dims {
		switch d.Mode {
		case DimConst:
			dims[i] = int(d.Size)
		case DimVar:
			v, ok := msg.Value(d.SizeField)
			if !ok {
				return nil, fmt.Errorf("lcmtype: field %q sized by undeclared field %q", f.Name, d.SizeField)
			}
			n, ok := v.(int64)
			if !ok {
				return nil, fmt.Errorf("lcmtype: field %q sized by non-integer field %q", f.Name, d.SizeField)
			}
			dims[i] = int(n)
		}
		if dims[i] < 0 {
			return nil, fmt.Errorf("lcmtype: negative length %d for field %q", dims[i], f.Name)
		}
	}
	return dims, nil
}

func (dec *decoder) array(f *Field, dims []int, depth int) (interface{}, error) {
	n := dims[0]
	if len(dims) == 1 && f.Kind == KindByte {
		b, err := dec.take(f.Name, n)
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		copy(out, b)
		return out, nil
	}
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		var (
			v   interface{}
			err error
		)
		if len(dims) > 1 {
			v, err = dec.array(f, dims[1:], depth)
		} else {
			v, err = dec.scalar(f, depth)
		}
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (dec *decoder) scalar(f *Field, depth int) (interface{}, error) {
	switch f.Kind {
	case KindInt8:
		b, err := dec.take(f.Name, 1)
		if err != nil {
			return nil, err
		}
		return int64(int8(b[0])), nil
	case KindByte:
		b, err := dec.take(f.Name, 1)
		if err != nil {
			return nil, err
		}
		return int64(b[0]), nil
	case KindBoolean:
		b, err := dec.take(f.Name, 1)
		if err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case KindInt16:
		b, err := dec.take(f.Name, 2)
		if err != nil {
			return nil, err
		}
		return int64(int16(binary.BigEndian.Uint16(b))), nil
	case KindInt32:
		b, err := dec.take(f.Name, 4)
		if err != nil {
			return nil, err
		}
		return int64(int32(binary.BigEndian.Uint32(b))), nil
	case KindInt64:
		b, err := dec.take(f.Name, 8)
		if err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	case KindFloat:
		b, err := dec.take(f.Name, 4)
		if err != nil {
			return nil, err
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case KindDouble:
		b, err := dec.take(f.Name, 8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case KindString:
		b, err := dec.take(f.Name, 4)
		if err != nil {
			return nil, err
		}
		n := int(int32(binary.BigEndian.Uint32(b)))
		if n < 1 {
			return nil, fmt.Errorf("lcmtype: invalid string length %d for field %q", n, f.Name)
		}
		s, err := dec.take(f.Name, n)
		if err != nil {
			return nil, err
		}
		// Length includes the terminating NUL.
		return string(s[:n-1]), nil
	case KindStruct:
		if f.Struct == nil {
			return nil, fmt.Errorf("lcmtype: unresolved struct type %q for field %q", f.TypeName, f.Name)
		}
		return dec.message(f.Struct, depth+1)
	default:
		return nil, fmt.Errorf("lcmtype: cannot decode field %q of kind %s", f.Name, f.Kind)
	}
}
