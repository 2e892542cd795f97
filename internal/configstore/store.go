// Package configstore loads the pipeline's YAML documents and hands each
// stage a typed, validated view of its section.
package configstore

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/common/validation"
	"rul-pipeline/internal/gate"
	"rul-pipeline/internal/schema"
)

// Paths locates the four configuration documents.
type Paths struct {
	Config  string
	Params  string
	Schema  string
	Metrics string
}

// DefaultPaths returns the conventional document locations.
func DefaultPaths() Paths {
	return Paths{
		Config:  "config/config.yaml",
		Params:  "params.yaml",
		Schema:  "schema.yaml",
		Metrics: "metrics_thresholds.yaml",
	}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for directory creation messages.
func WithLogger(logger logging.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is the loaded, read-only configuration tree.
type Store struct {
	paths      Paths
	config     configDoc
	params     map[string]yaml.Node
	schema     schema.Spec
	thresholds gate.Thresholds
	validator  *validation.StructValidator
	logger     logging.Logger
}

// Load reads and checks all four documents and creates artifacts_root.
func Load(paths Paths, opts ...Option) (*Store, error) {
	s := &Store{
		paths:     paths,
		validator: validation.NewStructValidator(),
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := decodeDocument(paths.Config, &s.config); err != nil {
		return nil, err
	}
	if err := s.requireKeys("config", &s.config); err != nil {
		return nil, err
	}

	if err := decodeDocument(paths.Params, &s.params); err != nil {
		return nil, err
	}

	var sd schemaDoc
	if err := decodeDocument(paths.Schema, &sd); err != nil {
		return nil, err
	}
	if len(sd.Columns) == 0 {
		return nil, errors.ConfigLoadError(paths.Schema, fmt.Errorf("COLUMNS is empty"))
	}
	if sd.TargetColumn == nil || sd.TargetColumn.Name == "" {
		return nil, errors.ConfigKeyError("TARGET_COLUMN", "name")
	}
	spec, err := schema.NewSpec(sd.Columns, sd.TargetColumn.Name)
	if err != nil {
		return nil, errors.ConfigLoadError(paths.Schema, err)
	}
	s.schema = spec

	var td thresholdsDoc
	if err := decodeDocument(paths.Metrics, &td); err != nil {
		return nil, err
	}
	if s.thresholds, err = s.buildThresholds(td); err != nil {
		return nil, err
	}

	if err := s.mkdirs(*s.config.ArtifactsRoot); err != nil {
		return nil, err
	}

	s.logger.Info("Configuration loaded",
		logging.String("config", paths.Config),
		logging.String("params", paths.Params),
		logging.String("schema", paths.Schema),
		logging.String("metrics", paths.Metrics),
	)
	return s, nil
}

// decodeDocument reads a YAML document whose root must be a non-empty mapping.
func decodeDocument(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ConfigLoadError(path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return errors.ConfigLoadError(path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 || len(root.Content) == 0 {
		return errors.ConfigLoadError(path, fmt.Errorf("document is empty"))
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return errors.ConfigLoadError(path, fmt.Errorf("document root must be a mapping"))
	}
	if err := root.Content[0].Decode(out); err != nil {
		return errors.ConfigLoadError(path, err)
	}
	return nil
}

func (s *Store) buildThresholds(td thresholdsDoc) (gate.Thresholds, error) {
	if len(td.Metrics) == 0 {
		return nil, errors.ConfigKeyError("metrics_thresholds", "METRICS")
	}

	names := make([]string, 0, len(td.Metrics))
	for name := range td.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(gate.Thresholds, len(td.Metrics))
	for _, name := range names {
		b := td.Metrics[name]
		if err := s.requireKeys("METRICS."+name, &b); err != nil {
			return nil, err
		}
		if *b.Min > *b.Max {
			return nil, errors.ConfigLoadError(s.paths.Metrics,
				fmt.Errorf("threshold %s has min %g greater than max %g", name, *b.Min, *b.Max))
		}
		out[name] = gate.Bounds{Min: *b.Min, Max: *b.Max}
	}
	return out, nil
}

// requireKeys maps the first missing required key to a ConfigKeyError and any
// other rule failure to a ValidationError.
func (s *Store) requireKeys(section string, doc interface{}) error {
	res := s.validator.Check(doc)
	if res.Valid() {
		return nil
	}
	if missing := res.MissingFields(); len(missing) > 0 {
		return errors.ConfigKeyError(section, missing[0])
	}
	return errors.ValidationError(fmt.Sprintf("%s: %s", section, res.Problems[0].Message)).
		WithContext("section", section)
}

func (s *Store) mkdirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.InternalError("failed to create directory", err).WithContext("path", dir)
		}
		s.logger.Debug("Directory ready", logging.String("path", dir))
	}
	return nil
}

// Paths returns the document locations the store was loaded from.
func (s *Store) Paths() Paths { return s.paths }

// ArtifactsRoot is the top-level artifact directory.
func (s *Store) ArtifactsRoot() string { return *s.config.ArtifactsRoot }

// Schema returns the column schema.
func (s *Store) Schema() schema.Spec {
	return schema.Spec{
		Fields: append([]schema.Field(nil), s.schema.Fields...),
		Target: s.schema.Target,
	}
}

// Thresholds returns a copy of the metric bounds.
func (s *Store) Thresholds() gate.Thresholds {
	out := make(gate.Thresholds, len(s.thresholds))
	for k, v := range s.thresholds {
		out[k] = v
	}
	return out
}

// StageConfig returns the typed view of the named config.yaml section.
func (s *Store) StageConfig(section string) (interface{}, error) {
	switch section {
	case SectionDataIngestion:
		return s.DataIngestionConfig()
	case SectionDataValidation:
		return s.DataValidationConfig()
	case SectionDataTransformation:
		return s.DataTransformationConfig()
	case SectionModelTrainer:
		return s.ModelTrainerConfig()
	case SectionModelEvaluation:
		return s.ModelEvaluationConfig()
	case SectionMetricsValidation:
		return s.MetricsValidationConfig()
	default:
		return nil, errors.ConfigKeyError("config", section)
	}
}
