package lcmtype

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func linkAndSeal(t *testing.T, src string) map[string]*Descriptor {
	t.Helper()
	types, err := ParseSchema("t.lcm", src)
	require.NoError(t, err)
	reg := NewRegistryFromDescriptors(types, nil)
	out := make(map[string]*Descriptor, len(types))
	for _, d := range types {
		got, ok := reg.ResolveName(d.QualifiedName())
		require.True(t, ok, d.QualifiedName())
		out[d.Name] = got
	}
	return out
}

func TestDecodeRoundTrip(t *testing.T) {
	types := linkAndSeal(t, `
struct wp_t { double x; double y; }
struct mission_t
{
    int64_t utime;
    string  name;
    boolean active;
    int16_t flags[2];
    int32_t n;
    wp_t    waypoints[n];
    byte    blob[3];
}
`)
	mission, wp := types["mission_t"], types["wp_t"]

	msg := &Message{Desc: mission, Values: []interface{}{
		int64(1234567),
		"survey-7",
		true,
		[]interface{}{int64(-2), int64(9)},
		int64(2),
		[]interface{}{
			&Message{Desc: wp, Values: []interface{}{1.5, -2.5}},
			&Message{Desc: wp, Values: []interface{}{3.0, 4.0}},
		},
		[]byte{0xde, 0xad, 0xbe},
	}}

	data, err := Encode(msg)
	require.NoError(t, err)
	require.Equal(t, mission.Fingerprint(), [8]byte(data[:8]))

	got, err := Decode(mission, data)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(msg.Values, got.Values, cmp.AllowUnexported(Descriptor{})))
}

func TestDecodeVariableLengthZero(t *testing.T) {
	types := linkAndSeal(t, `
struct p_t { double x; }
struct list_t { int32_t n; p_t items[n]; }
`)
	list := types["list_t"]
	msg := &Message{Desc: list, Values: []interface{}{int64(0), []interface{}{}}}
	data, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(list, data)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Values[0])
	require.Empty(t, got.Values[1])
}

func TestDecodeTruncated(t *testing.T) {
	types := linkAndSeal(t, `struct s_t { int64_t utime; double value; }`)
	s := types["s_t"]
	data, err := Encode(&Message{Desc: s, Values: []interface{}{int64(1), 2.0}})
	require.NoError(t, err)

	_, err = Decode(s, data[:len(data)-3])
	require.ErrorContains(t, err, `truncated payload at field "value"`)

	_, err = Decode(s, data[:4])
	require.ErrorContains(t, err, "truncated")
}

func TestDecodeFingerprintMismatch(t *testing.T) {
	types := linkAndSeal(t, `struct s_t { int64_t utime; }`)
	s := types["s_t"]
	data, err := Encode(&Message{Desc: s, Values: []interface{}{int64(1)}})
	require.NoError(t, err)
	data[0] ^= 0xff

	_, err = Decode(s, data)
	require.ErrorIs(t, err, ErrFingerprintMismatch)
}

func TestDecodeNegativeArrayLength(t *testing.T) {
	types := linkAndSeal(t, `
struct p_t { double x; }
struct list_t { int32_t n; p_t items[n]; }
`)
	list := types["list_t"]
	data, err := Encode(&Message{Desc: list, Values: []interface{}{int64(-1), []interface{}{}}})
	require.NoError(t, err)

	_, err = Decode(list, data)
	require.ErrorContains(t, err, "negative length")
}

func TestDecodeDepthCeiling(t *testing.T) {
	node := &Descriptor{Name: "node_t"}
	node.Fields = []Field{
		{Name: "more", Kind: KindBoolean, TypeName: "boolean"},
		{Name: "n", Kind: KindInt32, TypeName: "int32_t"},
		{Name: "child", Kind: KindStruct, TypeName: "node_t", Struct: node,
			Dims: []Dim{{Mode: DimVar, SizeField: "n"}}},
	}
	node.Seal()

	// Nest deeper than the ceiling.
	depth := DefaultMaxDepth + 4
	leaf := &Message{Desc: node, Values: []interface{}{false, int64(0), []interface{}{}}}
	for i := 0; i < depth; i++ {
		leaf = &Message{Desc: node, Values: []interface{}{true, int64(1), []interface{}{leaf}}}
	}
	data, err := Encode(leaf)
	require.NoError(t, err)

	_, err = Decode(node, data)
	require.ErrorIs(t, err, ErrMaxDepth)
}
