// Package validation checks pipeline documents and settings before they
// are used. Documents are checked through struct tags with
// go-playground/validator; flat settings go through a Checker.
package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"rul-pipeline/internal/common/errors"
)

// ColumnTypeNames lists the dtype spellings accepted in schema documents.
var ColumnTypeNames = []string{"int", "int64", "float", "float64", "str", "string", "object", "bool"}

// StructValidator validates tagged structs. Field names in its errors come
// from the yaml tag, then the json tag, so a failure names the key in the
// source document.
type StructValidator struct {
	validate *validator.Validate
}

// FieldProblem is one failed rule.
type FieldProblem struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Report is the outcome of validating one struct.
type Report struct {
	Problems []FieldProblem
}

// Valid reports whether no rule failed.
func (r *Report) Valid() bool { return len(r.Problems) == 0 }

// MissingFields returns the names of fields that failed the "required" tag.
func (r *Report) MissingFields() []string {
	var missing []string
	for _, p := range r.Problems {
		if p.Tag == "required" {
			missing = append(missing, p.Field)
		}
	}
	return missing
}

// Err folds the report into a validation AppError, or nil when valid.
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	msgs := make([]string, len(r.Problems))
	for i, p := range r.Problems {
		msgs[i] = p.Message
	}
	return errors.ValidationError(strings.Join(msgs, "; "))
}

// NewStructValidator returns a validator with the pipeline tags registered:
// column_type and threshold_policy.
func NewStructValidator() *StructValidator {
	v := validator.New()

	_ = v.RegisterValidation("column_type", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		for _, known := range ColumnTypeNames {
			if name == known {
				return true
			}
		}
		return false
	})
	_ = v.RegisterValidation("threshold_policy", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", "strict", "widened":
			return true
		}
		return false
	})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"yaml", "json"} {
			name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	return &StructValidator{validate: v}
}

// Check validates s and returns the detailed report.
func (sv *StructValidator) Check(s interface{}) *Report {
	err := sv.validate.Struct(s)
	if err == nil {
		return &Report{}
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &Report{Problems: []FieldProblem{{Field: "", Tag: "invalid", Message: err.Error()}}}
	}

	report := &Report{Problems: make([]FieldProblem, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		report.Problems = append(report.Problems, FieldProblem{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: describe(fe),
		})
	}
	return report
}

// Struct validates s and returns a validation AppError on failure.
func (sv *StructValidator) Struct(s interface{}) error {
	return sv.Check(s).Err()
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", field)
	case "url":
		return fmt.Sprintf("field '%s' must be a valid URL", field)
	case "min", "gte":
		return fmt.Sprintf("field '%s' must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("field '%s' must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("field '%s' must be greater than %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("field '%s' must be less than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", field, fe.Param())
	case "column_type":
		return fmt.Sprintf("field '%s' must be one of the column types: %s", field, strings.Join(ColumnTypeNames, ", "))
	case "threshold_policy":
		return fmt.Sprintf("field '%s' must be 'strict' or 'widened'", field)
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", field, fe.Tag())
	}
}
