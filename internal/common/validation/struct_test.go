package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "rul-pipeline/internal/common/errors"
)

type trainerDoc struct {
	RootDir   *string  `yaml:"root_dir" validate:"required"`
	ModelName *string  `yaml:"model_name" validate:"required"`
	Gamma     *float64 `yaml:"gamma" validate:"required"`
	Policy    string   `yaml:"threshold_policy" validate:"threshold_policy"`
}

type columnDoc struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"column_type"`
}

func TestStructValidator_ReportsYAMLKeys(t *testing.T) {
	sv := NewStructValidator()
	root := "artifacts/model_trainer"

	report := sv.Check(&trainerDoc{RootDir: &root})
	require.False(t, report.Valid())
	assert.Equal(t, []string{"model_name", "gamma"}, report.MissingFields())
	assert.Equal(t, "field 'model_name' is required", report.Problems[0].Message)
}

func TestStructValidator_ZeroValueIsPresent(t *testing.T) {
	sv := NewStructValidator()
	root, name, gamma := "artifacts", "model.gob", 0.0

	report := sv.Check(&trainerDoc{RootDir: &root, ModelName: &name, Gamma: &gamma})
	assert.True(t, report.Valid())
	assert.Empty(t, report.MissingFields())
	assert.NoError(t, report.Err())
}

func TestStructValidator_CustomTags(t *testing.T) {
	sv := NewStructValidator()
	root, name, gamma := "artifacts", "model.gob", 0.0

	err := sv.Struct(&trainerDoc{RootDir: &root, ModelName: &name, Gamma: &gamma, Policy: "loose"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "threshold_policy")

	for _, typ := range ColumnTypeNames {
		assert.NoError(t, sv.Struct(&columnDoc{Name: "cycle_index", Type: typ}), typ)
	}

	report := sv.Check(&columnDoc{Name: "cycle_index", Type: "datetime"})
	require.Len(t, report.Problems, 1)
	assert.Equal(t, "type", report.Problems[0].Field)
	assert.Equal(t, "column_type", report.Problems[0].Tag)
}
