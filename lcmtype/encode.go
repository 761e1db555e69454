package lcmtype

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes msg into the LCM wire format, fingerprint prefix
// included. It is the inverse of Decode and is primarily used to build
// synthetic logs in tests.
func Encode(msg *Message) ([]byte, error) {
	d := msg.Desc
	if len(msg.Values) != len(d.Fields) {
		return nil, fmt.Errorf("lcmtype: %s has %d fields, message carries %d values", d.QualifiedName(), len(d.Fields), len(msg.Values))
	}
	buf := make([]byte, 8, 64)
	copy(buf, d.fingerprint[:])
	return encodeBody(buf, msg)
}

func encodeBody(buf []byte, msg *Message) ([]byte, error) {
	var err error
	for i := range msg.Desc.Fields {
		f := &msg.Desc.Fields[i]
		buf, err = encodeValue(buf, f, msg.Values[i], len(f.Dims))
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func encodeValue(buf []byte, f *Field, v interface{}, dims int) ([]byte, error) {
	if dims > 0 {
		if b, ok := v.([]byte); ok && dims == 1 && f.Kind == KindByte {
			return append(buf, b...), nil
		}
		elems, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("lcmtype: field %q: expected array, got %T", f.Name, v)
		}
		var err error
		for _, e := range elems {
			buf, err = encodeValue(buf, f, e, dims-1)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	}

	switch f.Kind {
	case KindInt8, KindByte:
		n, ok := v.(int64)
		if !ok {
			return nil, typeErr(f, v)
		}
		return append(buf, byte(n)), nil
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, typeErr(f, v)
		}
		if b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case KindInt16:
		n, ok := v.(int64)
		if !ok {
			return nil, typeErr(f, v)
		}
		return binary.BigEndian.AppendUint16(buf, uint16(n)), nil
	case KindInt32:
		n, ok := v.(int64)
		if !ok {
			return nil, typeErr(f, v)
		}
		return binary.BigEndian.AppendUint32(buf, uint32(n)), nil
	case KindInt64:
		n, ok := v.(int64)
		if !ok {
			return nil, typeErr(f, v)
		}
		return binary.BigEndian.AppendUint64(buf, uint64(n)), nil
	case KindFloat:
		x, ok := v.(float64)
		if !ok {
			return nil, typeErr(f, v)
		}
		return binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(x))), nil
	case KindDouble:
		x, ok := v.(float64)
		if !ok {
			return nil, typeErr(f, v)
		}
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(x)), nil
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, typeErr(f, v)
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)+1))
		buf = append(buf, s...)
		return append(buf, 0), nil
	case KindStruct:
		sub, ok := v.(*Message)
		if !ok {
			return nil, typeErr(f, v)
		}
		return encodeBody(buf, sub)
	default:
		return nil, fmt.Errorf("lcmtype: cannot encode field %q of kind %s", f.Name, f.Kind)
	}
}

func typeErr(f *Field, v interface{}) error {
	return fmt.Errorf("lcmtype: field %q (%s): unsupported value %T", f.Name, f.Kind, v)
}
