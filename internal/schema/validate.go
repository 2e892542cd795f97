package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/dataset"
)

// Strictness decides whether unexpected columns fail validation.
type Strictness string

const (
	// Strict fails on missing or extra columns.
	Strict Strictness = "strict"
	// Lenient fails on missing columns only; extra columns are reported.
	Lenient Strictness = "lenient"
)

// ParseStrictness accepts "strict", "lenient" or empty (strict).
func ParseStrictness(s string) (Strictness, error) {
	switch Strictness(strings.ToLower(s)) {
	case "", Strict:
		return Strict, nil
	case Lenient:
		return Lenient, nil
	default:
		return "", fmt.Errorf("unknown schema strictness %q", s)
	}
}

// ColumnResult is the outcome of the column-set check.
type ColumnResult struct {
	// Valid is true iff both Missing and Extra are empty.
	Valid   bool
	Missing []string
	Extra   []string
}

// Conformant applies a strictness policy to the column check.
func (r ColumnResult) Conformant(s Strictness) bool {
	if s == Lenient {
		return len(r.Missing) == 0
	}
	return r.Valid
}

// Mismatch records a declared and an observed column type.
type Mismatch struct {
	Expected dataset.Type
	Actual   dataset.Type
}

// TypeResult is the outcome of the per-column type check.
type TypeResult struct {
	Valid      bool
	Mismatches map[string]Mismatch
}

// ValidateColumns compares the dataset's column set with the schema.
// Missing is schema minus dataset, Extra is dataset minus schema, both sorted.
func ValidateColumns(ds *dataset.Dataset, spec Spec) ColumnResult {
	declared := make(map[string]bool, len(spec.Fields))
	for _, f := range spec.Fields {
		declared[f.Name] = true
	}

	res := ColumnResult{Missing: []string{}, Extra: []string{}}
	for _, f := range spec.Fields {
		if !ds.Has(f.Name) {
			res.Missing = append(res.Missing, f.Name)
		}
	}
	for _, name := range ds.Columns() {
		if !declared[name] {
			res.Extra = append(res.Extra, name)
		}
	}
	sort.Strings(res.Missing)
	sort.Strings(res.Extra)

	res.Valid = len(res.Missing) == 0 && len(res.Extra) == 0
	return res
}

// ValidateTypes compares runtime column types with declared types for every
// column present in both. Columns absent from the dataset are skipped.
func ValidateTypes(ds *dataset.Dataset, spec Spec) TypeResult {
	res := TypeResult{Mismatches: make(map[string]Mismatch)}
	for _, f := range spec.Fields {
		col, ok := ds.Column(f.Name)
		if !ok {
			continue
		}
		if col.Type != f.Type {
			res.Mismatches[f.Name] = Mismatch{Expected: f.Type, Actual: col.Type}
		}
	}
	res.Valid = len(res.Mismatches) == 0
	return res
}

// Result is the combined schema report for one dataset.
type Result struct {
	Columns    ColumnResult
	Types      TypeResult
	Strictness Strictness
	Valid      bool
}

// Err returns a SchemaMismatchError describing a failed result, or nil.
func (r *Result) Err() error {
	if r.Valid {
		return nil
	}

	var parts []string
	if !r.Columns.Conformant(r.Strictness) {
		parts = append(parts, fmt.Sprintf("missing columns %v, extra columns %v", r.Columns.Missing, r.Columns.Extra))
	}
	if !r.Types.Valid {
		parts = append(parts, fmt.Sprintf("type mismatches %s", formatMismatches(r.Types.Mismatches)))
	}
	return errors.SchemaMismatchError("dataset does not conform to schema: " + strings.Join(parts, "; ")).
		WithContext("strictness", string(r.Strictness))
}

// Validator runs both checks and records them in a status file.
type Validator struct {
	spec       Spec
	statusFile string
	strictness Strictness
	logger     logging.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithStrictness sets the extra-column policy.
func WithStrictness(s Strictness) Option {
	return func(v *Validator) { v.strictness = s }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// NewValidator creates a Validator writing its report to statusFile.
func NewValidator(spec Spec, statusFile string, opts ...Option) *Validator {
	v := &Validator{
		spec:       spec,
		statusFile: statusFile,
		strictness: Strict,
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run validates ds. The column block overwrites the status file and the type
// block is appended to it. A non-conformant dataset is a valid Result, not an
// error; errors are returned only when the status file cannot be written.
func (v *Validator) Run(ds *dataset.Dataset) (*Result, error) {
	cols := ValidateColumns(ds, v.spec)
	colOK := cols.Conformant(v.strictness)

	if err := v.writeColumns(cols, colOK); err != nil {
		return nil, err
	}

	types := ValidateTypes(ds, v.spec)
	if err := v.appendTypes(types); err != nil {
		return nil, err
	}

	res := &Result{
		Columns:    cols,
		Types:      types,
		Strictness: v.strictness,
		Valid:      colOK && types.Valid,
	}

	fields := []logging.Field{
		logging.Bool("valid", res.Valid),
		logging.String("strictness", string(v.strictness)),
		logging.Strings("missing", cols.Missing),
		logging.Strings("extra", cols.Extra),
		logging.Int("type_mismatches", len(types.Mismatches)),
	}
	if res.Valid {
		v.logger.Info("Schema validation passed", fields...)
	} else {
		v.logger.Warn("Schema validation failed", fields...)
	}
	return res, nil
}

func (v *Validator) writeColumns(res ColumnResult, valid bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Validation status: %t\n", valid)
	if len(res.Missing) > 0 {
		fmt.Fprintf(&b, "Missing columns: %v\n", res.Missing)
	}
	if len(res.Extra) > 0 {
		fmt.Fprintf(&b, "Extra columns: %v\n", res.Extra)
	}
	return v.write(b.String(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

func (v *Validator) appendTypes(res TypeResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Data type validation status: %t\n", res.Valid)
	if len(res.Mismatches) > 0 {
		fmt.Fprintf(&b, "Type mismatches: %s\n", formatMismatches(res.Mismatches))
	}
	return v.write(b.String(), os.O_CREATE|os.O_WRONLY|os.O_APPEND)
}

func (v *Validator) write(text string, flag int) error {
	if err := os.MkdirAll(filepath.Dir(v.statusFile), 0o755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}
	f, err := os.OpenFile(v.statusFile, flag, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open status file %s: %w", v.statusFile, err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("failed to write status file %s: %w", v.statusFile, err)
	}
	return f.Close()
}

func formatMismatches(m map[string]Mismatch) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: expected %s, got %s", name, m[name].Expected, m[name].Actual)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
