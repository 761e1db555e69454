// Package objfile persists the nested aggregation store verbatim as a
// msgpack object file, optionally gzip compressed.
package objfile

import (
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/multierr"

	"github.com/oceansystems/lcmexport/convert"
)

// Write serializes store to w.
func Write(w io.Writer, store convert.Store, compress bool) error {
	if compress {
		gzw := gzip.NewWriter(w)
		if err := encode(gzw, store); err != nil {
			return multierr.Append(err, gzw.Close())
		}
		return gzw.Close()
	}
	return encode(w, store)
}

// WriteFile serializes store to a file at path, closing it on every path.
func WriteFile(path string, store convert.Store, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, store, compress); err != nil {
		return multierr.Append(err, f.Close())
	}
	return f.Close()
}

func encode(w io.Writer, store convert.Store) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	return enc.Encode(store.Plain())
}

// Read decodes a store previously written by Write. Used by tests and by
// downstream tooling that post-processes object files.
func Read(r io.Reader, compressed bool) (map[string]interface{}, error) {
	if compressed {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gzr.Close()
		r = gzr
	}
	var out map[string]interface{}
	if err := msgpack.NewDecoder(r).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
