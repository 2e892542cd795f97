package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "basic error",
			appError: &AppError{Type: ErrTypeValidation, Message: "configuration is invalid"},
			want:     "validation: configuration is invalid",
		},
		{
			name:     "error with code",
			appError: &AppError{Type: ErrTypeTraining, Message: "fit failed", Code: "TRN001"},
			want:     "training: fit failed: code=TRN001",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeSourceUnavailable,
				Message: "mongo unreachable",
				Cause:   errors.New("server selection timeout"),
			},
			want: "source_unavailable: mongo unreachable: cause=server selection timeout",
		},
		{
			name: "error with context is ordered by key",
			appError: &AppError{
				Type:    ErrTypeConfigKey,
				Message: "missing",
				Context: map[string]interface{}{"section": "model_trainer", "key": "root_dir"},
			},
			want: "config_key: missing: context={key=root_dir, section=model_trainer}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  *AppError
		typ  ErrorType
	}{
		{"config load", ConfigLoadError("config.yaml", cause), ErrTypeConfigLoad},
		{"config key", ConfigKeyError("data_ingestion", "mongo_uri"), ErrTypeConfigKey},
		{"source unavailable", SourceUnavailableError("mongodb", cause), ErrTypeSourceUnavailable},
		{"empty result", EmptyResultError("mongodb"), ErrTypeEmptyResult},
		{"schema mismatch", SchemaMismatchError("columns"), ErrTypeSchemaMismatch},
		{"training", TrainingError("fit", cause), ErrTypeTraining},
		{"tracker", TrackerLoggingError("mlflow", cause), ErrTypeTrackerLogging},
		{"connection", ConnectionError("redis", cause), ErrTypeConnection},
		{"validation", ValidationError("bad"), ErrTypeValidation},
		{"not found", NotFoundError("run"), ErrTypeNotFound},
		{"internal", InternalError("oops", cause), ErrTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.True(t, IsType(tt.err, tt.typ))
		})
	}
}

func TestConfigKeyError_NamesKey(t *testing.T) {
	err := ConfigKeyError("model_trainer", "model_name")
	assert.Contains(t, err.Error(), "model_trainer.model_name")
}

func TestIsType_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("stage ingest: %w", EmptyResultError("mongodb"))

	assert.True(t, IsType(err, ErrTypeEmptyResult))
	assert.False(t, IsType(err, ErrTypeTraining))
	assert.Equal(t, ErrTypeEmptyResult, GetType(err))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrorType(""), GetType(nil))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.False(t, IsType(nil, ErrTypeInternal))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := TrainingError("fit", cause)
	assert.ErrorIs(t, err, cause)
}

func TestWithContextAndCode(t *testing.T) {
	err := ValidationError("bad").WithContext("field", "x").WithCode("V1")
	assert.Equal(t, "x", err.Context["field"])
	assert.Equal(t, "V1", err.Code)
}
