package lcmtype

// LCM type fingerprints. The base hash of a struct covers its member names,
// primitive type names and array dimension descriptors. The packed
// fingerprint combines the base hash with the recursive hashes of all
// nested struct types, guarding against (schema-compiler-impossible but
// nonetheless handled) cycles, and is serialized big-endian as the first
// 8 bytes of every encoded message.

const hashSeed = 0x12345678

// hashUpdate folds one byte into the hash. The right shift is arithmetic,
// matching lcm-gen's signed int64 arithmetic: the intermediate hash goes
// negative and the sign bits participate in the xor.
func hashUpdate(v int64, c byte) int64 {
	return ((v << 8) ^ (v >> 55)) + int64(c)
}

func hashStringUpdate(v int64, s string) int64 {
	v = hashUpdate(v, byte(len(s)))
	for i := 0; i < len(s); i++ {
		v = hashUpdate(v, s[i])
	}
	return v
}

// baseHash computes the non-recursive portion of the fingerprint.
func (d *Descriptor) baseHash() int64 {
	v := int64(hashSeed)
	for i := range d.Fields {
		f := &d.Fields[i]
		v = hashStringUpdate(v, f.Name)
		if f.Kind != KindStruct {
			v = hashStringUpdate(v, f.Kind.String())
		}
		v = hashUpdate(v, byte(len(f.Dims)))
		for _, dim := range f.Dims {
			v = hashUpdate(v, byte(dim.Mode))
			v = hashStringUpdate(v, dim.sizeString())
		}
	}
	return v
}

// hashRecursive folds the hashes of nested struct types into the base hash
// and rotates the result left by one bit, matching lcm-gen.
func (d *Descriptor) hashRecursive(parents []*Descriptor) uint64 {
	for _, p := range parents {
		if p == d {
			return 0
		}
	}
	parents = append(parents, d)

	v := d.baseHash()
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Kind == KindStruct && f.Struct != nil {
			v += int64(f.Struct.hashRecursive(parents))
		}
	}
	return uint64(v)<<1 + uint64(v)>>63
}
