// Package columnar persists the aggregation store as one parquet file per
// channel: every leaf column becomes a named array nested under the
// channel/field path, and schema-level constants become file metadata.
package columnar

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/goccy/go-json"
	"go.uber.org/multierr"

	"github.com/oceansystems/lcmexport/convert"
)

// Write persists every channel of store under dir and returns the channel
// names written, sorted. Channels with no columns are skipped.
func Write(dir string, store convert.Store) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	channels := make([]string, 0, len(store))
	for channel := range store {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	written := make([]string, 0, len(channels))
	for _, channel := range channels {
		cols, consts := flatten(store[channel], "")
		if len(cols) == 0 {
			continue
		}
		path := filepath.Join(dir, SanitizeName(channel)+".parquet")
		if err := writeChannel(path, store[channel].Rows(), cols, consts); err != nil {
			return written, fmt.Errorf("columnar: channel %s: %w", channel, err)
		}
		written = append(written, channel)
	}
	return written, nil
}

// SanitizeName maps a channel name to a filesystem- and MATLAB-safe
// identifier.
func SanitizeName(channel string) string {
	var b strings.Builder
	for i := 0; i < len(channel); i++ {
		c := channel[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" || s[0] >= '0' && s[0] <= '9' {
		s = "c" + s
	}
	return s
}

type flatColumn struct {
	path   string
	values []interface{}
}

type flatConstant struct {
	path  string
	value interface{}
}

// flatten walks a node depth first, joining nested field names with ".".
func flatten(n convert.Node, prefix string) ([]flatColumn, []flatConstant) {
	names := make([]string, 0, len(n))
	for name := range n {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		cols   []flatColumn
		consts []flatConstant
	)
	for _, name := range names {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		switch v := n[name].(type) {
		case *convert.Column:
			cols = append(cols, flatColumn{path: path, values: v.Values})
		case convert.Node:
			c, k := flatten(v, path)
			cols = append(cols, c...)
			consts = append(consts, k...)
		case convert.Constant:
			consts = append(consts, flatConstant{path: path, value: v.Value})
		}
	}
	return cols, consts
}

func writeChannel(path string, rows int, cols []flatColumn, consts []flatConstant) error {
	mem := memory.NewGoAllocator()

	fields := make([]arrow.Field, len(cols))
	classes := make([]colClass, len(cols))
	for i, c := range cols {
		classes[i] = classify(c.values)
		fields[i] = arrow.Field{Name: c.path, Type: classes[i].arrowType(), Nullable: true}
	}

	var metaKeys, metaVals []string
	for _, k := range consts {
		metaKeys = append(metaKeys, k.path)
		metaVals = append(metaVals, fmt.Sprintf("%v", k.value))
	}
	meta := arrow.NewMetadata(metaKeys, metaVals)
	schema := arrow.NewSchema(fields, &meta)

	bld := array.NewRecordBuilder(mem, schema)
	defer bld.Release()
	for i, c := range cols {
		appendColumn(bld.Field(i), classes[i], c.values, rows)
	}
	rec := bld.NewRecord()
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w, err := pqarrow.NewFileWriter(schema, f, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		return multierr.Append(err, f.Close())
	}
	if err := w.Write(rec); err != nil {
		return multierr.Append(err, w.Close())
	}
	// Closing the parquet writer closes the underlying file.
	return w.Close()
}

// colClass is the inferred storage class of one column.
type colClass int

const (
	classInt colClass = iota
	classFloat
	classBool
	classString
	classBinary
	classIntList
	classFloatList
	// classJSON is the fallback for irregular shapes: each entry is
	// stored as its JSON encoding.
	classJSON
)

func (c colClass) arrowType() arrow.DataType {
	switch c {
	case classInt:
		return arrow.PrimitiveTypes.Int64
	case classFloat:
		return arrow.PrimitiveTypes.Float64
	case classBool:
		return arrow.FixedWidthTypes.Boolean
	case classBinary:
		return arrow.BinaryTypes.Binary
	case classIntList:
		return arrow.ListOf(arrow.PrimitiveTypes.Int64)
	case classFloatList:
		return arrow.ListOf(arrow.PrimitiveTypes.Float64)
	default:
		return arrow.BinaryTypes.String
	}
}

// classify infers the narrowest class covering every value of a column.
func classify(values []interface{}) colClass {
	cls := colClass(-1)
	for _, v := range values {
		c := valueClass(v)
		switch {
		case cls == -1:
			cls = c
		case cls == c:
		case cls == classInt && c == classFloat, cls == classFloat && c == classInt:
			cls = classFloat
		case cls == classIntList && c == classFloatList, cls == classFloatList && c == classIntList:
			cls = classFloatList
		default:
			return classJSON
		}
	}
	if cls == -1 {
		return classJSON
	}
	return cls
}

func valueClass(v interface{}) colClass {
	switch v := v.(type) {
	case int64:
		return classInt
	case float64:
		return classFloat
	case bool:
		return classBool
	case string:
		return classString
	case []byte, convert.Image, convert.DepthImage:
		return classBinary
	case []interface{}:
		cls := colClass(-1)
		for _, e := range v {
			var c colClass
			switch e.(type) {
			case int64:
				c = classIntList
			case float64:
				c = classFloatList
			default:
				return classJSON
			}
			if cls == -1 || c == classFloatList {
				cls = c
			}
		}
		if cls == -1 {
			cls = classIntList
		}
		return cls
	default:
		return classJSON
	}
}

// appendColumn fills one builder, padding with nulls to rows entries so
// every column of the channel has the same length.
func appendColumn(b array.Builder, cls colClass, values []interface{}, rows int) {
	for _, v := range values {
		appendValue(b, cls, v)
	}
	for i := len(values); i < rows; i++ {
		b.AppendNull()
	}
}

func appendValue(b array.Builder, cls colClass, v interface{}) {
	switch cls {
	case classInt:
		b.(*array.Int64Builder).Append(v.(int64))
	case classFloat:
		b.(*array.Float64Builder).Append(toFloat(v))
	case classBool:
		b.(*array.BooleanBuilder).Append(v.(bool))
	case classString:
		b.(*array.StringBuilder).Append(v.(string))
	case classBinary:
		b.(*array.BinaryBuilder).Append(toBinary(v))
	case classIntList:
		lb := b.(*array.ListBuilder)
		lb.Append(true)
		vb := lb.ValueBuilder().(*array.Int64Builder)
		for _, e := range v.([]interface{}) {
			vb.Append(e.(int64))
		}
	case classFloatList:
		lb := b.(*array.ListBuilder)
		lb.Append(true)
		vb := lb.ValueBuilder().(*array.Float64Builder)
		for _, e := range v.([]interface{}) {
			vb.Append(toFloat(e))
		}
	case classJSON:
		enc, err := json.Marshal(v)
		if err != nil {
			b.AppendNull()
			return
		}
		b.(*array.StringBuilder).Append(string(enc))
	}
}

func toFloat(v interface{}) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func toBinary(v interface{}) []byte {
	switch v := v.(type) {
	case []byte:
		return v
	case convert.Image:
		return v.Pix
	case convert.DepthImage:
		out := make([]byte, len(v.Pix)*2)
		for i, s := range v.Pix {
			binary.LittleEndian.PutUint16(out[i*2:], s)
		}
		return out
	}
	return nil
}
