package lcmtype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sealedDescriptor(t *testing.T, src string) *Descriptor {
	t.Helper()
	types, err := ParseSchema("t.lcm", src)
	require.NoError(t, err)
	require.Len(t, types, 1)
	types[0].Seal()
	return types[0]
}

func TestFingerprintStable(t *testing.T) {
	src := `struct sample_t { int64_t utime; double value; }`
	a := sealedDescriptor(t, src)
	b := sealedDescriptor(t, src)
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
	require.NotEqual(t, [8]byte{}, a.Fingerprint())
}

// TestFingerprintMatchesGeneratedBindings pins the hash to the value
// lcm-gen computes for the example_t type that ships with LCM. The right
// shift in the hash must be arithmetic: a logical shift diverges as soon
// as the intermediate hash goes negative, and payloads written by real
// generated encoders would then resolve to nothing.
func TestFingerprintMatchesGeneratedBindings(t *testing.T) {
	d := sealedDescriptor(t, `
package exlcm;

struct example_t
{
    int64_t  timestamp;
    double   position[3];
    double   orientation[4];
    int32_t  num_ranges;
    int16_t  ranges[num_ranges];
    string   name;
    boolean  enabled;
}
`)
	require.Equal(t,
		[8]byte{0x37, 0x55, 0x3c, 0x53, 0x61, 0xf7, 0x55, 0x16},
		d.Fingerprint())
}

func TestFingerprintCoversSchemaShape(t *testing.T) {
	base := sealedDescriptor(t, `struct sample_t { int64_t utime; double value; }`)

	renamedField := sealedDescriptor(t, `struct sample_t { int64_t utime; double reading; }`)
	require.NotEqual(t, base.Fingerprint(), renamedField.Fingerprint())

	differentKind := sealedDescriptor(t, `struct sample_t { int64_t utime; float value; }`)
	require.NotEqual(t, base.Fingerprint(), differentKind.Fingerprint())

	withDims := sealedDescriptor(t, `struct sample_t { int64_t utime; double value[3]; }`)
	require.NotEqual(t, base.Fingerprint(), withDims.Fingerprint())

	// The struct's own name is not part of the hash; only members are.
	renamedStruct := sealedDescriptor(t, `struct other_t { int64_t utime; double value; }`)
	require.Equal(t, base.Fingerprint(), renamedStruct.Fingerprint())
}

func TestFingerprintFoldsNestedTypes(t *testing.T) {
	inner := &Descriptor{Name: "inner_t", Fields: []Field{{Name: "x", Kind: KindDouble, TypeName: "double"}}}
	outerA := &Descriptor{Name: "outer_t", Fields: []Field{{Name: "i", Kind: KindStruct, TypeName: "inner_t", Struct: inner}}}

	inner2 := &Descriptor{Name: "inner_t", Fields: []Field{{Name: "y", Kind: KindDouble, TypeName: "double"}}}
	outerB := &Descriptor{Name: "outer_t", Fields: []Field{{Name: "i", Kind: KindStruct, TypeName: "inner_t", Struct: inner2}}}

	outerA.Seal()
	outerB.Seal()
	require.NotEqual(t, outerA.Fingerprint(), outerB.Fingerprint())
}

func TestFingerprintSelfReferentialTerminates(t *testing.T) {
	node := &Descriptor{Name: "node_t", Fields: []Field{
		{Name: "value", Kind: KindInt32, TypeName: "int32_t"},
	}}
	node.Fields = append(node.Fields, Field{
		Name: "children", Kind: KindStruct, TypeName: "node_t", Struct: node,
		Dims: []Dim{{Mode: DimVar, SizeField: "value"}},
	})
	node.Seal() // must not recurse forever
	require.NotEqual(t, [8]byte{}, node.Fingerprint())
}
