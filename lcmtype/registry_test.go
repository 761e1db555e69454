package lcmtype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

func TestRegistryScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "nav/pose_t.lcm", `
package nav;
struct pose_t { int64_t utime; double xyz[3]; }
`)
	writeFile(t, dir, "nav/track_t.lcm", `
package nav;
struct track_t { int32_t n; pose_t poses[n]; }
`)
	writeFile(t, dir, "notes.txt", "not a type definition")

	reg, err := NewRegistry([]string{dir}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	pose, ok := reg.ResolveName("nav.pose_t")
	require.True(t, ok)
	track, ok := reg.ResolveName("nav.track_t")
	require.True(t, ok)
	require.Same(t, pose, track.Fields[1].Struct)

	got, ok := reg.Resolve(pose.Fingerprint())
	require.True(t, ok)
	require.Same(t, pose, got)

	_, ok = reg.Resolve([8]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.False(t, ok)
}

func TestRegistrySkipsUnparsableFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.lcm", `struct a_t { int64_t utime; }`)
	writeFile(t, dir, "bad.lcm", `struct broken_t { int64_t`)

	reg, err := NewRegistry([]string{dir}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())
	_, ok := reg.ResolveName("a_t")
	require.True(t, ok)
}

func TestRegistryDropsUnresolvedTypes(t *testing.T) {
	types, err := ParseSchema("t.lcm", `
struct a_t { int64_t utime; }
struct b_t { missing_t m; }
`)
	require.NoError(t, err)

	reg := NewRegistryFromDescriptors(types, nil)
	require.Equal(t, 1, reg.Len())
	_, ok := reg.ResolveName("a_t")
	require.True(t, ok)
	_, ok = reg.ResolveName("b_t")
	require.False(t, ok)
}

func TestRegistryDuplicateKeepsFirst(t *testing.T) {
	first, err := ParseSchema("a.lcm", `struct dup_t { int64_t utime; }`)
	require.NoError(t, err)
	second, err := ParseSchema("b.lcm", `struct dup_t { double value; }`)
	require.NoError(t, err)

	reg := NewRegistryFromDescriptors(append(first, second...), nil)
	require.Equal(t, 1, reg.Len())
	d, ok := reg.ResolveName("dup_t")
	require.True(t, ok)
	require.Equal(t, "utime", d.Fields[0].Name)
}

func TestRegistryDescriptorsSorted(t *testing.T) {
	types, err := ParseSchema("t.lcm", `
package nav;
struct b_t { int64_t utime; }
struct a_t { int64_t utime; }
`)
	require.NoError(t, err)

	reg := NewRegistryFromDescriptors(types, nil)
	descs := reg.Descriptors()
	require.Len(t, descs, 2)
	require.Equal(t, "nav.a_t", descs[0].QualifiedName())
	require.Equal(t, "nav.b_t", descs[1].QualifiedName())
}
