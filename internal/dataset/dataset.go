// Package dataset provides the in-memory columnar table that flows between
// pipeline stages: ordered, named, single-typed columns of equal length.
package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Type is the runtime element type of a column.
type Type string

const (
	Int    Type = "int64"
	Float  Type = "float64"
	String Type = "string"
	Bool   Type = "bool"
)

// Column is a named sequence of values sharing one Type.
// Values hold int64, float64, string or bool according to Type.
type Column struct {
	Name   string
	Type   Type
	Values []interface{}
}

// Float64s returns the column as floats. Int and Bool columns are converted;
// String columns return an error.
func (c *Column) Float64s() ([]float64, error) {
	out := make([]float64, len(c.Values))
	for i, v := range c.Values {
		switch x := v.(type) {
		case float64:
			out[i] = x
		case int64:
			out[i] = float64(x)
		case bool:
			if x {
				out[i] = 1
			}
		default:
			return nil, fmt.Errorf("column %s: value %v at row %d is not numeric", c.Name, v, i)
		}
	}
	return out, nil
}

// Strings returns the column values formatted as strings.
func (c *Column) Strings() []string {
	out := make([]string, len(c.Values))
	for i, v := range c.Values {
		out[i] = FormatValue(v)
	}
	return out
}

// Dataset is an ordered collection of equal-length columns.
type Dataset struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{index: make(map[string]int)}
}

// AddColumn appends a column. The name must be unique, the length must match
// existing columns and every value must belong to typ.
func (d *Dataset) AddColumn(name string, typ Type, values []interface{}) error {
	if _, exists := d.index[name]; exists {
		return fmt.Errorf("duplicate column %q", name)
	}
	if len(d.columns) > 0 && len(values) != d.rows {
		return fmt.Errorf("column %q has %d rows, dataset has %d", name, len(values), d.rows)
	}
	for i, v := range values {
		if TypeOf(v) != typ {
			return fmt.Errorf("column %q row %d: value %v is %s, want %s", name, i, v, TypeOf(v), typ)
		}
	}

	d.index[name] = len(d.columns)
	d.columns = append(d.columns, &Column{Name: name, Type: typ, Values: values})
	d.rows = len(values)
	return nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return d.rows }

// Columns returns the column names in order.
func (d *Dataset) Columns() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// Has reports whether the dataset contains the named column.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Types maps each column name to its runtime type.
func (d *Dataset) Types() map[string]Type {
	out := make(map[string]Type, len(d.columns))
	for _, c := range d.columns {
		out[c.Name] = c.Type
	}
	return out
}

// Drop returns a copy without the named columns. Unknown names are ignored.
func (d *Dataset) Drop(names ...string) *Dataset {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}

	out := New()
	out.rows = d.rows
	for _, c := range d.columns {
		if skip[c.Name] {
			continue
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c)
	}
	if len(out.columns) == 0 {
		out.rows = 0
	}
	return out
}

// Take returns a new dataset holding the given rows in the given order.
func (d *Dataset) Take(rows []int) (*Dataset, error) {
	out := New()
	for _, c := range d.columns {
		values := make([]interface{}, len(rows))
		for i, r := range rows {
			if r < 0 || r >= d.rows {
				return nil, fmt.Errorf("row %d out of range [0,%d)", r, d.rows)
			}
			values[i] = c.Values[r]
		}
		if err := out.AddColumn(c.Name, c.Type, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TypeOf reports the column type a normalized value belongs to.
func TypeOf(v interface{}) Type {
	switch v.(type) {
	case int64:
		return Int
	case float64:
		return Float
	case bool:
		return Bool
	case string:
		return String
	default:
		return ""
	}
}

// FromRecords builds a dataset from document-shaped rows. Columns appear in the
// given order, followed by any further keys in sorted order. Each column's type
// is inferred from its values: integers mixed with floats or missing values
// widen to Float (missing becomes NaN), anything mixed with strings becomes String.
func FromRecords(order []string, records []map[string]interface{}) (*Dataset, error) {
	names := columnOrder(order, records)

	ds := New()
	for _, name := range names {
		raw := make([]interface{}, len(records))
		for i, rec := range records {
			raw[i] = normalize(rec[name])
		}
		typ := inferType(raw)
		values := make([]interface{}, len(raw))
		for i, v := range raw {
			values[i] = coerce(v, typ)
		}
		if err := ds.AddColumn(name, typ, values); err != nil {
			return nil, err
		}
	}
	if len(names) == 0 {
		ds.rows = 0
	}
	return ds, nil
}

func columnOrder(order []string, records []map[string]interface{}) []string {
	seen := make(map[string]bool)
	var names []string
	for _, n := range order {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}

	var rest []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// normalize maps driver values onto int64, float64, string, bool or nil.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	case bool:
		return x
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func inferType(values []interface{}) Type {
	var hasInt, hasFloat, hasBool, hasString, hasNil bool
	for _, v := range values {
		switch v.(type) {
		case nil:
			hasNil = true
		case int64:
			hasInt = true
		case float64:
			hasFloat = true
		case bool:
			hasBool = true
		case string:
			hasString = true
		}
	}

	switch {
	case hasString:
		return String
	case hasBool && (hasInt || hasFloat):
		return String
	case hasBool && hasNil:
		return String
	case hasBool:
		return Bool
	case hasFloat, hasInt && hasNil:
		return Float
	case hasInt:
		return Int
	case hasNil:
		return Float
	default:
		return Float
	}
}

func coerce(v interface{}, typ Type) interface{} {
	switch typ {
	case Float:
		switch x := v.(type) {
		case nil:
			return math.NaN()
		case int64:
			return float64(x)
		}
	case String:
		if v == nil {
			return ""
		}
		if _, ok := v.(string); !ok {
			return FormatValue(v)
		}
	}
	return v
}
