// Package lcmtype models compiled LCM message schemas and decodes the LCM
// wire format against them.
//
// A Descriptor is built once, either by parsing a .lcm definition file or by
// constructing it directly, and is immutable afterwards. The 8-byte packed
// fingerprint that prefixes every encoded message is derived from the schema
// itself, so a Registry can identify the type of an opaque payload without
// any channel-to-type configuration.
package lcmtype

import (
	"encoding/binary"
	"fmt"
)

// Kind identifies the wire type of a field or constant.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat
	KindDouble
	KindString
	KindBoolean
	KindByte
	// KindStruct marks a field whose type is another Descriptor.
	KindStruct
)

var kindNames = map[Kind]string{
	KindInt8:    "int8_t",
	KindInt16:   "int16_t",
	KindInt32:   "int32_t",
	KindInt64:   "int64_t",
	KindFloat:   "float",
	KindDouble:  "double",
	KindString:  "string",
	KindBoolean: "boolean",
	KindByte:    "byte",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// KindFromName maps an LCM primitive type name to its Kind.
// Unknown names return KindInvalid.
func KindFromName(name string) Kind {
	return kindsByName[name]
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	if k == KindStruct {
		return "struct"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsPrimitive reports whether k is one of the LCM primitive types.
func (k Kind) IsPrimitive() bool { return k > KindInvalid && k < KindStruct }

// DimMode distinguishes constant from variable array dimensions.
type DimMode int

const (
	// DimConst sizes the dimension with a literal in the schema.
	DimConst DimMode = iota
	// DimVar sizes the dimension from a previously decoded integer field.
	DimVar
)

// Dim is a single array dimension of a field.
type Dim struct {
	Mode DimMode
	// Size is the literal length for DimConst dimensions.
	Size int64
	// SizeField names the integer field that carries the length for
	// DimVar dimensions. It must be declared before the array field.
	SizeField string
}

func (d Dim) sizeString() string {
	if d.Mode == DimVar {
		return d.SizeField
	}
	return fmt.Sprintf("%d", d.Size)
}

// Field is one member of a message schema, in declaration order.
type Field struct {
	Name string
	Kind Kind
	// TypeName is the declared type name: a primitive name, or the
	// (possibly package-qualified) name of a struct type.
	TypeName string
	// Struct is the resolved descriptor for KindStruct fields.
	Struct *Descriptor
	// Dims is empty for scalars; otherwise the array dimensions in
	// row-major order.
	Dims []Dim
}

// IsArray reports whether the field declares at least one dimension.
func (f *Field) IsArray() bool { return len(f.Dims) > 0 }

// Constant is a schema-level named value. It belongs to the type, not to
// any decoded instance.
type Constant struct {
	Name string
	Kind Kind
	// Value is int64 for integer kinds and float64 for float/double.
	Value interface{}
}

// Descriptor is one compiled message schema.
type Descriptor struct {
	// Package is the LCM package the type was declared in, or "".
	Package string
	// Name is the bare struct name.
	Name string
	// Fields are the members in declaration order.
	Fields []Field
	// Constants are the schema-level named values.
	Constants []Constant

	fingerprint [8]byte
	sealed      bool
}

// QualifiedName returns "package.name", or just the name for types declared
// outside a package.
func (d *Descriptor) QualifiedName() string {
	if d.Package == "" {
		return d.Name
	}
	return d.Package + "." + d.Name
}

// Fingerprint returns the 8-byte packed fingerprint that prefixes every
// encoded message of this type. It is valid only after the descriptor has
// been sealed by a Registry (or by Seal in tests).
func (d *Descriptor) Fingerprint() [8]byte { return d.fingerprint }

// Seal computes and caches the packed fingerprint. All struct field
// references must be resolved first. Seal is idempotent.
func (d *Descriptor) Seal() {
	if d.sealed {
		return
	}
	binary.BigEndian.PutUint64(d.fingerprint[:], d.hashRecursive(nil))
	d.sealed = true
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s[%x]", d.QualifiedName(), d.fingerprint)
}

// Message is one decoded occurrence of a Descriptor. Values parallels
// Desc.Fields; each element is one of int64, float64, bool, string, []byte
// (byte arrays), []interface{} (other arrays, row-major), or *Message.
type Message struct {
	Desc   *Descriptor
	Values []interface{}
}

// Value returns the decoded value of the named field.
func (m *Message) Value(name string) (interface{}, bool) {
	for i := range m.Desc.Fields {
		if m.Desc.Fields[i].Name == name {
			return m.Values[i], true
		}
	}
	return nil, false
}
