package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FormatValue renders a cell the way WriteCSV does. Integral floats keep a
// trailing ".0" so they read back as floats.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eIn") {
			s += ".0"
		}
		return s
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes the dataset with a header row. The file is written to a
// temporary sibling and renamed into place.
func (d *Dataset) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := d.Encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

// Encode writes the dataset as CSV to w.
func (d *Dataset) Encode(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Columns()); err != nil {
		return err
	}

	record := make([]string, len(d.columns))
	for r := 0; r < d.rows; r++ {
		for j, c := range d.columns {
			record[j] = FormatValue(c.Values[r])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads a CSV file with a header row, inferring each column's type.
func ReadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ds, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ds, nil
}

// Decode parses CSV from r. A column is Int when every non-empty cell parses as
// an integer, Float when every non-empty cell parses as a number (empty cells
// become NaN), Bool for True/False cells and String otherwise.
func Decode(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	header := rows[0]
	body := rows[1:]

	ds := New()
	for j, name := range header {
		cells := make([]string, len(body))
		for i, row := range body {
			cells[i] = row[j]
		}
		typ := inferCellType(cells)
		values := make([]interface{}, len(cells))
		for i, cell := range cells {
			values[i] = parseCell(cell, typ)
		}
		if err := ds.AddColumn(name, typ, values); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func inferCellType(cells []string) Type {
	isInt, isFloat, isBool := true, true, true
	hasEmpty, hasValue := false, false

	for _, c := range cells {
		if c == "" {
			hasEmpty = true
			continue
		}
		hasValue = true
		if _, err := strconv.ParseInt(c, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			isFloat = false
		}
		if _, ok := parseBool(c); !ok {
			isBool = false
		}
	}

	switch {
	case !hasValue:
		return Float
	case isInt && !hasEmpty:
		return Int
	case isFloat:
		return Float
	case isBool && !hasEmpty:
		return Bool
	default:
		return String
	}
}

func parseCell(cell string, typ Type) interface{} {
	switch typ {
	case Int:
		v, _ := strconv.ParseInt(cell, 10, 64)
		return v
	case Float:
		if cell == "" {
			return math.NaN()
		}
		v, _ := strconv.ParseFloat(cell, 64)
		return v
	case Bool:
		v, _ := parseBool(cell)
		return v
	default:
		return cell
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
