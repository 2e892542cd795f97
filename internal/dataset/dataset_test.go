package dataset

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddColumn_Invariants(t *testing.T) {
	ds := New()
	require.NoError(t, ds.AddColumn("cycle_index", Int, []interface{}{int64(1), int64(2)}))

	assert.Error(t, ds.AddColumn("cycle_index", Int, []interface{}{int64(1), int64(2)}), "duplicate name")
	assert.Error(t, ds.AddColumn("rul", Int, []interface{}{int64(1)}), "length mismatch")
	assert.Error(t, ds.AddColumn("rul", Int, []interface{}{int64(1), 2.5}), "type mismatch")

	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"cycle_index"}, ds.Columns())
}

func TestFromRecords_InfersTypes(t *testing.T) {
	records := []map[string]interface{}{
		{"_id": "abc", "cycle_index": int32(1), "discharge_time_s": 2595.3, "ok": true, "cell": "b1"},
		{"_id": "def", "cycle_index": int32(2), "discharge_time_s": int64(7408), "ok": false, "cell": "b2"},
	}

	ds, err := FromRecords([]string{"cycle_index", "discharge_time_s"}, records)
	require.NoError(t, err)

	assert.Equal(t, []string{"cycle_index", "discharge_time_s", "_id", "cell", "ok"}, ds.Columns())
	assert.Equal(t, map[string]Type{
		"_id":              String,
		"cycle_index":      Int,
		"discharge_time_s": Float,
		"ok":               Bool,
		"cell":             String,
	}, ds.Types())

	col, ok := ds.Column("discharge_time_s")
	require.True(t, ok)
	assert.Equal(t, []interface{}{2595.3, 7408.0}, col.Values)
}

func TestFromRecords_MissingValues(t *testing.T) {
	records := []map[string]interface{}{
		{"a": int64(1), "when": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"b": "x"},
	}

	ds, err := FromRecords(nil, records)
	require.NoError(t, err)

	a, _ := ds.Column("a")
	assert.Equal(t, Float, a.Type)
	assert.True(t, math.IsNaN(a.Values[1].(float64)))

	b, _ := ds.Column("b")
	assert.Equal(t, String, b.Type)
	assert.Equal(t, "", b.Values[0])

	when, _ := ds.Column("when")
	assert.Equal(t, "2024-01-02T03:04:05Z", when.Values[0])
}

func TestDropAndTake(t *testing.T) {
	ds, err := FromRecords([]string{"_id", "x", "y"}, []map[string]interface{}{
		{"_id": "a", "x": int64(10), "y": 1.5},
		{"_id": "b", "x": int64(20), "y": 2.5},
		{"_id": "c", "x": int64(30), "y": 3.5},
	})
	require.NoError(t, err)

	dropped := ds.Drop("_id", "missing")
	assert.Equal(t, []string{"x", "y"}, dropped.Columns())
	assert.Equal(t, 3, dropped.Len())
	assert.True(t, ds.Has("_id"), "drop must not mutate the source")

	taken, err := dropped.Take([]int{2, 0})
	require.NoError(t, err)
	x, _ := taken.Column("x")
	assert.Equal(t, []interface{}{int64(30), int64(10)}, x.Values)

	_, err = dropped.Take([]int{3})
	assert.Error(t, err)
}

func TestColumn_Float64s(t *testing.T) {
	c := &Column{Name: "x", Type: Int, Values: []interface{}{int64(2), int64(4)}}
	got, err := c.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, got)

	s := &Column{Name: "s", Type: String, Values: []interface{}{"a"}}
	_, err = s.Float64s()
	assert.Error(t, err)
}

func TestCSV_RoundTrip(t *testing.T) {
	ds := New()
	require.NoError(t, ds.AddColumn("cycle_index", Int, []interface{}{int64(1), int64(2)}))
	require.NoError(t, ds.AddColumn("voltage", Float, []interface{}{3.67, math.NaN()}))
	require.NoError(t, ds.AddColumn("discharge_time_s", Float, []interface{}{2595.0, 7408.64}))
	require.NoError(t, ds.AddColumn("cell", String, []interface{}{"b1", "b2"}))
	require.NoError(t, ds.AddColumn("ok", Bool, []interface{}{true, false}))

	path := filepath.Join(t.TempDir(), "nested", "battery_rul.csv")
	require.NoError(t, ds.WriteCSV(path))

	back, err := ReadCSV(path)
	require.NoError(t, err)

	assert.Equal(t, ds.Columns(), back.Columns())
	assert.Equal(t, ds.Types(), back.Types())

	v, _ := back.Column("voltage")
	assert.Equal(t, 3.67, v.Values[0])
	assert.True(t, math.IsNaN(v.Values[1].(float64)))
}

func TestDecode_Inference(t *testing.T) {
	input := "a,b,c,d,e\n1,1.5,x,True,\n2,,y,False,\n"
	ds, err := Decode(bytes.NewBufferString(input))
	require.NoError(t, err)

	assert.Equal(t, map[string]Type{
		"a": Int,
		"b": Float,
		"c": String,
		"d": Bool,
		"e": Float,
	}, ds.Types())
}

func TestDecode_Empty(t *testing.T) {
	_, err := Decode(bytes.NewBufferString(""))
	assert.Error(t, err)
}
