package convert

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg" // color payloads are JPEG compressed
	"io"

	"github.com/klauspost/compress/zlib"
)

// Image is a decompressed color image, 8-bit RGB, row major.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// DepthImage is a decompressed depth map of Rows x Cols uint16 samples.
type DepthImage struct {
	Rows int
	Cols int
	Pix  []uint16
}

// PairedImageCodec decodes the two payloads of a paired image descriptor.
// Implementations are keyed by payload type: the color payload is an
// encoded still image, the depth payload a zlib-deflated uint16 raster.
type PairedImageCodec interface {
	DecodeColor(data []byte) (interface{}, error)
	DecodeDepth(data []byte) (interface{}, error)
}

// StdImageCodec decodes JPEG color payloads with the standard image
// decoder and inflates depth payloads with zlib. When DecompressColor is
// false the color payload is kept compressed, as raw bytes.
type StdImageCodec struct {
	DecompressColor bool
	DepthRows       int
	DepthCols       int
}

// DefaultDepthRows and DefaultDepthCols describe the depth raster shape
// assumed when the configuration does not override it.
const (
	DefaultDepthRows = 480
	DefaultDepthCols = 640
)

// NewStdImageCodec returns the default codec. rows/cols of 0 select the
// default depth shape.
func NewStdImageCodec(decompressColor bool, rows, cols int) *StdImageCodec {
	if rows <= 0 {
		rows = DefaultDepthRows
	}
	if cols <= 0 {
		cols = DefaultDepthCols
	}
	return &StdImageCodec{DecompressColor: decompressColor, DepthRows: rows, DepthCols: cols}
}

// DecodeColor decodes a JPEG payload into an Image, or returns the raw
// bytes when decompression is disabled.
func (c *StdImageCodec) DecodeColor(data []byte) (interface{}, error) {
	if !c.DecompressColor {
		raw := make([]byte, len(data))
		copy(raw, data)
		return raw, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("convert: color image: %w", err)
	}
	b := img.Bounds()
	out := Image{Width: b.Dx(), Height: b.Dy(), Pix: make([]byte, 0, b.Dx()*b.Dy()*3)}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out.Pix = append(out.Pix, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}
	return out, nil
}

// DecodeDepth inflates a zlib-compressed little-endian uint16 raster.
func (c *StdImageCodec) DecodeDepth(data []byte) (interface{}, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("convert: depth image: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("convert: depth image: %w", err)
	}
	want := c.DepthRows * c.DepthCols * 2
	if len(raw) != want {
		return nil, fmt.Errorf("convert: depth image: %d bytes, want %d for %dx%d",
			len(raw), want, c.DepthRows, c.DepthCols)
	}
	out := DepthImage{Rows: c.DepthRows, Cols: c.DepthCols, Pix: make([]uint16, c.DepthRows*c.DepthCols)}
	for i := range out.Pix {
		out.Pix[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return out, nil
}
