// Package schema checks datasets against the canonical column schema.
package schema

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	"rul-pipeline/internal/dataset"
)

// Field is one declared column.
type Field struct {
	Name string
	Type dataset.Type
	// Declared keeps the spelling used in the schema document.
	Declared string
}

// Spec is the ordered column schema plus the target column name.
type Spec struct {
	Fields []Field
	Target string
}

// NewSpec builds a Spec, rejecting duplicate column names.
func NewSpec(fields []Field, target string) (Spec, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return Spec{}, fmt.Errorf("duplicate schema column %q", f.Name)
		}
		seen[f.Name] = true
	}
	return Spec{Fields: fields, Target: target}, nil
}

// Names returns the declared column names in order.
func (s Spec) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Lookup finds a declared column.
func (s Spec) Lookup(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Features returns the declared columns other than the target.
func (s Spec) Features() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Name != s.Target {
			out = append(out, f.Name)
		}
	}
	return out
}

// ParseType maps a declared dtype onto a dataset column type.
func ParseType(declared string) (dataset.Type, error) {
	switch strings.ToLower(strings.TrimSpace(declared)) {
	case "int", "int64", "int32":
		return dataset.Int, nil
	case "float", "float64", "float32":
		return dataset.Float, nil
	case "object", "str", "string", "category":
		return dataset.String, nil
	case "bool", "boolean":
		return dataset.Bool, nil
	default:
		return "", fmt.Errorf("unsupported column type %q", declared)
	}
}

// Columns is the ordered COLUMNS mapping of a schema document.
type Columns []Field

// UnmarshalYAML decodes a name: dtype mapping, keeping document order.
func (c *Columns) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: COLUMNS must be a mapping of column name to type", node.Line)
	}

	fields := make([]Field, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return fmt.Errorf("line %d: duplicate column %q", key.Line, key.Value)
		}
		seen[key.Value] = true

		typ, err := ParseType(val.Value)
		if err != nil {
			return fmt.Errorf("line %d: column %q: %w", val.Line, key.Value, err)
		}
		fields = append(fields, Field{Name: key.Value, Type: typ, Declared: val.Value})
	}

	*c = fields
	return nil
}
