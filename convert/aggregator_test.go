package convert

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oceansystems/lcmexport/eventlog"
	"github.com/oceansystems/lcmexport/lcmtype"
)

const testSchema = `
package nav;

struct pose_t
{
    const int32_t MODE_AUTO = 2;
    const double  GRAVITY = 9.81;

    int64_t utime;
    double  depth;
    double  xyz[3];
}

struct vec_t { double x; double y; }

struct track_list_t
{
    int32_t n;
    vec_t   tracks[n];
    vec_t   best;
}
`

func testRegistry(t *testing.T) *lcmtype.Registry {
	t.Helper()
	descs, err := lcmtype.ParseSchema("nav.lcm", testSchema)
	require.NoError(t, err)
	return lcmtype.NewRegistryFromDescriptors(descs, nil)
}

func encodePose(t *testing.T, reg *lcmtype.Registry, utime int64, depth float64) []byte {
	t.Helper()
	d, ok := reg.ResolveName("nav.pose_t")
	require.True(t, ok)
	data, err := lcmtype.Encode(&lcmtype.Message{Desc: d, Values: []interface{}{
		utime, depth, []interface{}{1.0, 2.0, 3.0},
	}})
	require.NoError(t, err)
	return data
}

func encodeTracks(t *testing.T, reg *lcmtype.Registry, pts [][2]float64) []byte {
	t.Helper()
	d, ok := reg.ResolveName("nav.track_list_t")
	require.True(t, ok)
	vec, ok := reg.ResolveName("nav.vec_t")
	require.True(t, ok)
	elems := make([]interface{}, len(pts))
	for i, p := range pts {
		elems[i] = &lcmtype.Message{Desc: vec, Values: []interface{}{p[0], p[1]}}
	}
	data, err := lcmtype.Encode(&lcmtype.Message{Desc: d, Values: []interface{}{
		int64(len(pts)), elems,
		&lcmtype.Message{Desc: vec, Values: []interface{}{9.0, 8.0}},
	}})
	require.NoError(t, err)
	return data
}

// runLog feeds the events through a full Reader/Run cycle.
func runLog(t *testing.T, agg *Aggregator, events []*eventlog.Event) Store {
	t.Helper()
	var buf bytes.Buffer
	w := eventlog.NewWriter(&buf)
	for _, ev := range events {
		require.NoError(t, w.Append(ev.Timestamp, ev.Channel, ev.Data))
	}
	store, err := agg.Run(eventlog.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len())))
	require.NoError(t, err)
	return store
}

func column(t *testing.T, node Node, name string) []interface{} {
	t.Helper()
	col, ok := node[name].(*Column)
	require.True(t, ok, "column %q", name)
	return col.Values
}

func TestAggregatorColumnsAndTimestamps(t *testing.T) {
	reg := testRegistry(t)
	agg, err := New(reg, nil, Options{})
	require.NoError(t, err)

	store := runLog(t, agg, []*eventlog.Event{
		{Timestamp: 10_000_000, Channel: "POSE", Data: encodePose(t, reg, 100, 4.5)},
		{Timestamp: 11_000_000, Channel: "POSE", Data: encodePose(t, reg, 101, 4.6)},
		{Timestamp: 12_000_000, Channel: "POSE", Data: encodePose(t, reg, 102, 4.7)},
	})

	require.Len(t, store, 1)
	node := store["POSE"]
	require.NotNil(t, node)

	require.Equal(t, []interface{}{int64(100), int64(101), int64(102)}, column(t, node, "utime"))
	require.Equal(t, []interface{}{4.5, 4.6, 4.7}, column(t, node, "depth"))
	require.Equal(t, []interface{}{0.0, 1.0, 2.0}, column(t, node, "lcm_timestamp"))
	require.Equal(t, int64(3), agg.Accepted())
}

func TestAggregatorOutOfOrderTimestampSkipped(t *testing.T) {
	reg := testRegistry(t)
	agg, err := New(reg, nil, Options{})
	require.NoError(t, err)

	store := runLog(t, agg, []*eventlog.Event{
		{Timestamp: 10_000_000, Channel: "POSE", Data: encodePose(t, reg, 1, 0.0)},
		{Timestamp: 9_000_000, Channel: "POSE", Data: encodePose(t, reg, 2, 0.1)},
		{Timestamp: 11_000_000, Channel: "POSE", Data: encodePose(t, reg, 3, 0.2)},
	})

	node := store["POSE"]
	// The record before the rebased origin keeps its data columns but gets
	// no timestamp entry.
	require.Len(t, column(t, node, "utime"), 3)
	require.Equal(t, []interface{}{0.0, 1.0}, column(t, node, "lcm_timestamp"))
}

func TestAggregatorConstantsCapturedOnce(t *testing.T) {
	reg := testRegistry(t)
	agg, err := New(reg, nil, Options{})
	require.NoError(t, err)

	store := runLog(t, agg, []*eventlog.Event{
		{Timestamp: 1, Channel: "POSE", Data: encodePose(t, reg, 1, 0.0)},
		{Timestamp: 2, Channel: "POSE", Data: encodePose(t, reg, 2, 0.1)},
	})

	node := store["POSE"]
	require.Equal(t, Constant{Value: int64(2)}, node["MODE_AUTO"])
	require.Equal(t, Constant{Value: 9.81}, node["GRAVITY"])
}

func TestAggregatorFilteredChannelMemoized(t *testing.T) {
	reg := testRegistry(t)
	agg, err := New(reg, nil, Options{Exclude: "DEBUG.*"})
	require.NoError(t, err)

	store := runLog(t, agg, []*eventlog.Event{
		{Timestamp: 1, Channel: "DEBUG_POSE", Data: encodePose(t, reg, 1, 0.0)},
		{Timestamp: 2, Channel: "POSE", Data: encodePose(t, reg, 2, 0.1)},
		{Timestamp: 3, Channel: "DEBUG_POSE", Data: encodePose(t, reg, 3, 0.2)},
	})

	require.Len(t, store, 1)
	require.Contains(t, store, "POSE")

	ignored := agg.Ignored()
	require.Len(t, ignored, 1)
	require.Equal(t, "DEBUG_POSE", ignored[0].Channel)
	require.Equal(t, IgnoreFiltered, ignored[0].Reason)
}

func TestAggregatorUnknownTypeTally(t *testing.T) {
	reg := testRegistry(t)
	agg, err := New(reg, nil, Options{})
	require.NoError(t, err)

	unknown := append([]byte{9, 9, 9, 9, 9, 9, 9, 9}, "payload"...)
	store := runLog(t, agg, []*eventlog.Event{
		{Timestamp: 1, Channel: "MYSTERY", Data: unknown},
		{Timestamp: 2, Channel: "MYSTERY", Data: unknown},
		{Timestamp: 3, Channel: "POSE", Data: encodePose(t, reg, 1, 0.0)},
	})

	require.Len(t, store, 1)
	ignored := agg.Ignored()
	require.Len(t, ignored, 1)
	require.Equal(t, "MYSTERY", ignored[0].Channel)
	require.Equal(t, IgnoreUnknownType, ignored[0].Reason)
	require.Equal(t, unknown[:8], ignored[0].Fingerprint)
}

func TestAggregatorCorruptRecordRecoverable(t *testing.T) {
	reg := testRegistry(t)
	var progress bytes.Buffer
	agg, err := New(reg, nil, Options{Progress: &progress})
	require.NoError(t, err)

	good := encodePose(t, reg, 1, 0.0)
	store := runLog(t, agg, []*eventlog.Event{
		{Timestamp: 1, Channel: "POSE", Data: good},
		{Timestamp: 2, Channel: "POSE", Data: good[:len(good)-3]},
		{Timestamp: 3, Channel: "POSE", Data: encodePose(t, reg, 3, 0.2)},
	})

	// The corrupt record is skipped; the channel stays eligible.
	node := store["POSE"]
	require.Equal(t, []interface{}{int64(1), int64(3)}, column(t, node, "utime"))
	require.Empty(t, agg.Ignored())
	require.Contains(t, progress.String(), "error: couldn't decode msg on channel POSE")
}

func TestAggregatorShortPayloadMemoized(t *testing.T) {
	reg := testRegistry(t)
	var progress bytes.Buffer
	agg, err := New(reg, nil, Options{Progress: &progress})
	require.NoError(t, err)

	// A payload too short for a fingerprint disqualifies the channel once,
	// not per record, and never prints a per-record error line.
	agg.Process(&eventlog.Event{Timestamp: 1, Channel: "TINY", Data: []byte{1, 2, 3}})
	agg.Process(&eventlog.Event{Timestamp: 2, Channel: "TINY", Data: []byte{4, 5}})
	agg.Process(&eventlog.Event{Timestamp: 3, Channel: "TINY", Data: encodePose(t, reg, 1, 0.0)})
	store := agg.Finish()

	require.Empty(t, store)
	require.Empty(t, progress.String())

	ignored := agg.Ignored()
	require.Len(t, ignored, 1)
	require.Equal(t, "TINY", ignored[0].Channel)
	require.Equal(t, IgnoreUnknownType, ignored[0].Reason)
	require.Nil(t, ignored[0].Fingerprint)
}

func TestAggregatorNestedAndListFields(t *testing.T) {
	reg := testRegistry(t)
	agg, err := New(reg, nil, Options{})
	require.NoError(t, err)

	store := runLog(t, agg, []*eventlog.Event{
		{Timestamp: 1, Channel: "TRACKS", Data: encodeTracks(t, reg, [][2]float64{{1, 2}, {3, 4}})},
		{Timestamp: 2, Channel: "TRACKS", Data: encodeTracks(t, reg, [][2]float64{{5, 6}})},
	})

	node := store["TRACKS"]

	// Nested message fields become child nodes with their own columns.
	best, ok := node["best"].(Node)
	require.True(t, ok)
	require.Equal(t, []interface{}{9.0, 9.0}, column(t, best, "x"))

	// Variable-length message lists are stored whole, one entry per record.
	tracks := column(t, node, "tracks")
	require.Len(t, tracks, 2)
	require.Equal(t, []interface{}{
		map[string]interface{}{"x": 1.0, "y": 2.0},
		map[string]interface{}{"x": 3.0, "y": 4.0},
	}, tracks[0])
}

func TestAggregatorKeyTruncation(t *testing.T) {
	reg := testRegistry(t)
	agg, err := New(reg, nil, Options{})
	require.NoError(t, err)

	longChannel := strings.Repeat("N", MaxKeyLen+10)
	store := runLog(t, agg, []*eventlog.Event{
		{Timestamp: 1, Channel: longChannel, Data: encodePose(t, reg, 1, 0.0)},
	})

	require.Len(t, store, 1)
	require.Contains(t, store, longChannel[:MaxKeyLen])
}

func TestAggregatorFinishIdempotent(t *testing.T) {
	reg := testRegistry(t)
	agg, err := New(reg, nil, Options{})
	require.NoError(t, err)

	agg.Process(&eventlog.Event{Timestamp: 1, Channel: "POSE", Data: encodePose(t, reg, 1, 0.0)})
	first := agg.Finish()

	// Events after Finish are discarded.
	agg.Process(&eventlog.Event{Timestamp: 2, Channel: "POSE", Data: encodePose(t, reg, 2, 0.1)})
	second := agg.Finish()

	require.Equal(t, first, second)
	require.Equal(t, int64(1), agg.Accepted())
	require.Len(t, column(t, first["POSE"], "utime"), 1)
}
