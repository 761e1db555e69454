package columnar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oceansystems/lcmexport/convert"
)

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "NAV_POSE", SanitizeName("NAV.POSE"))
	require.Equal(t, "sensor_raw", SanitizeName("sensor-raw"))
	require.Equal(t, "POSE", SanitizeName("POSE"))
	require.Equal(t, "c2CAM", SanitizeName("2CAM"))
	require.Equal(t, "c", SanitizeName(""))
}

func TestFlatten(t *testing.T) {
	node := convert.Node{
		"utime": &convert.Column{Values: []interface{}{int64(1)}},
		"MODE":  convert.Constant{Value: int64(2)},
		"vel": convert.Node{
			"x": &convert.Column{Values: []interface{}{1.0}},
			"G": convert.Constant{Value: 9.81},
		},
	}

	cols, consts := flatten(node, "")
	require.Len(t, cols, 2)
	require.Equal(t, "utime", cols[0].path)
	require.Equal(t, "vel.x", cols[1].path)

	require.Len(t, consts, 2)
	require.Equal(t, "MODE", consts[0].path)
	require.Equal(t, "vel.G", consts[1].path)
}

func TestClassify(t *testing.T) {
	require.Equal(t, classInt, classify([]interface{}{int64(1), int64(2)}))
	require.Equal(t, classFloat, classify([]interface{}{1.5}))
	// Mixed numerics widen to float.
	require.Equal(t, classFloat, classify([]interface{}{int64(1), 2.5}))
	require.Equal(t, classBool, classify([]interface{}{true, false}))
	require.Equal(t, classString, classify([]interface{}{"a", "b"}))
	require.Equal(t, classBinary, classify([]interface{}{[]byte{1}, convert.Image{}}))
	require.Equal(t, classIntList, classify([]interface{}{
		[]interface{}{int64(1), int64(2)},
	}))
	require.Equal(t, classFloatList, classify([]interface{}{
		[]interface{}{int64(1)},
		[]interface{}{2.5},
	}))
	// Irregular shapes fall back to JSON.
	require.Equal(t, classJSON, classify([]interface{}{int64(1), "x"}))
	require.Equal(t, classJSON, classify([]interface{}{
		map[string]interface{}{"x": 1.0},
	}))
	require.Equal(t, classJSON, classify(nil))
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	store := convert.Store{
		"NAV.POSE": convert.Node{
			"utime":         &convert.Column{Values: []interface{}{int64(1), int64(2), int64(3)}},
			"depth":         &convert.Column{Values: []interface{}{0.5, 0.6, 0.7}},
			"frame":         &convert.Column{Values: []interface{}{"map", "map", "map"}},
			"xyz":           &convert.Column{Values: []interface{}{[]interface{}{1.0, 2.0, 3.0}, []interface{}{4.0, 5.0, 6.0}, []interface{}{7.0, 8.0, 9.0}}},
			"lcm_timestamp": &convert.Column{Values: []interface{}{0.0, 1.0}}, // one short, padded
			"GRAVITY":       convert.Constant{Value: 9.81},
		},
		"EMPTY": convert.Node{
			"MODE": convert.Constant{Value: int64(1)},
		},
	}

	written, err := Write(dir, store)
	require.NoError(t, err)
	// The channel with no columns is skipped.
	require.Equal(t, []string{"NAV.POSE"}, written)

	_, err = os.Stat(filepath.Join(dir, "NAV_POSE.parquet"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "EMPTY.parquet"))
	require.True(t, os.IsNotExist(err))
}

func TestWriteLoader(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "mission_7.m")
	require.NoError(t, WriteLoader(script, filepath.Join(dir, "out"), []string{"NAV.POSE", "IMAGES"}))

	src, err := os.ReadFile(script)
	require.NoError(t, err)
	text := string(src)

	require.Contains(t, text, "function d = mission_7()")
	require.Contains(t, text, "d.NAV_POSE = parquetread(fullfile(root, 'NAV_POSE.parquet'));")
	require.Contains(t, text, "d.IMAGES = parquetread(fullfile(root, 'IMAGES.parquet'));")
	require.Contains(t, text, "if exist(full_dname, 'dir')")
}
