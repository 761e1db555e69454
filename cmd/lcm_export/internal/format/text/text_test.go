package text

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oceansystems/lcmexport/convert"
)

func TestWrite(t *testing.T) {
	store := convert.Store{
		"POSE": convert.Node{
			"utime": &convert.Column{Values: []interface{}{int64(1), int64(2)}},
			"MODE":  convert.Constant{Value: int64(3)},
			"vel": convert.Node{
				"x": &convert.Column{Values: []interface{}{1.5}},
			},
		},
		"ALT": convert.Node{
			"value": &convert.Column{Values: []interface{}{0.25}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, store, " "))

	want := "ALT value 0.25\n" +
		"POSE MODE 3\n" +
		"POSE utime 1 2\n" +
		"POSE vel.x 1.5\n"
	require.Equal(t, want, buf.String())
}

func TestWriteCustomSeparator(t *testing.T) {
	store := convert.Store{
		"A": convert.Node{
			"v": &convert.Column{Values: []interface{}{int64(9)}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, store, ","))
	require.Equal(t, "A,v,9\n", buf.String())
}
