package lcmtype

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Registry maps packed fingerprints to message descriptors. It is built
// once, before a conversion run starts, and is read-only afterwards.
type Registry struct {
	byFingerprint map[[8]byte]*Descriptor
	byName        map[string]*Descriptor
}

// NewRegistry scans dirs recursively for .lcm definition files, parses and
// links every struct they declare and indexes the result by fingerprint.
// A file that cannot be read or parsed is logged and skipped; a struct
// whose field types cannot be resolved is logged and dropped. Neither
// aborts the scan.
func NewRegistry(dirs []string, log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var parsed []*Descriptor
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".lcm") {
				return nil
			}
			src, err := os.ReadFile(path)
			if err != nil {
				log.Warn("skipping unreadable type definition", zap.String("path", path), zap.Error(err))
				return nil
			}
			types, err := ParseSchema(path, string(src))
			if err != nil {
				log.Warn("skipping unparsable type definition", zap.String("path", path), zap.Error(err))
				return nil
			}
			parsed = append(parsed, types...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return NewRegistryFromDescriptors(parsed, log), nil
}

// NewRegistryFromDescriptors links and seals descs and builds the
// fingerprint index. Descriptors with unresolvable struct fields are
// dropped. Used directly by tests and by callers that assemble schemas
// programmatically.
func NewRegistryFromDescriptors(descs []*Descriptor, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	byName := make(map[string]*Descriptor, len(descs))
	for _, d := range descs {
		if prev, ok := byName[d.QualifiedName()]; ok {
			log.Warn("duplicate type definition, keeping first",
				zap.String("type", prev.QualifiedName()))
			continue
		}
		byName[d.QualifiedName()] = d
	}

	r := &Registry{
		byFingerprint: make(map[[8]byte]*Descriptor, len(byName)),
		byName:        make(map[string]*Descriptor, len(byName)),
	}
	for _, d := range byName {
		if !linkDescriptor(d, byName) {
			log.Warn("dropping type with unresolved field types",
				zap.String("type", d.QualifiedName()))
			continue
		}
	}
	// Seal only after every reachable descriptor is linked: fingerprints
	// fold in the hashes of nested struct types.
	for _, d := range byName {
		if !descriptorLinked(d) {
			continue
		}
		d.Seal()
		fp := d.Fingerprint()
		if prev, ok := r.byFingerprint[fp]; ok {
			log.Warn("fingerprint collision, keeping first",
				zap.String("kept", prev.QualifiedName()),
				zap.String("dropped", d.QualifiedName()))
			continue
		}
		r.byFingerprint[fp] = d
		r.byName[d.QualifiedName()] = d
	}
	return r
}

// linkDescriptor resolves struct field references in place. Unqualified
// names resolve within the descriptor's own package first.
func linkDescriptor(d *Descriptor, byName map[string]*Descriptor) bool {
	ok := true
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Kind != KindStruct || f.Struct != nil {
			continue
		}
		if d.Package != "" && !strings.Contains(f.TypeName, ".") {
			if t, found := byName[d.Package+"."+f.TypeName]; found {
				f.Struct = t
				continue
			}
		}
		if t, found := byName[f.TypeName]; found {
			f.Struct = t
			continue
		}
		ok = false
	}
	return ok
}

func descriptorLinked(d *Descriptor) bool {
	for i := range d.Fields {
		if d.Fields[i].Kind == KindStruct && d.Fields[i].Struct == nil {
			return false
		}
	}
	return true
}

// Resolve returns the descriptor for an exact 8-byte fingerprint. A miss
// is not an error: the caller treats the channel as an unknown type.
func (r *Registry) Resolve(fp [8]byte) (*Descriptor, bool) {
	d, ok := r.byFingerprint[fp]
	return d, ok
}

// ResolveName returns the descriptor with the given qualified name.
func (r *Registry) ResolveName(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Len returns the number of registered types.
func (r *Registry) Len() int { return len(r.byFingerprint) }

// Descriptors returns every registered descriptor, sorted by name.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.byFingerprint))
	for _, d := range r.byFingerprint {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedName() < out[j].QualifiedName()
	})
	return out
}
