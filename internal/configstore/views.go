package configstore

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/dataset"
	"rul-pipeline/internal/gate"
	"rul-pipeline/internal/model"
	"rul-pipeline/internal/schema"
	"rul-pipeline/internal/transform"
)

// Ingestion source kinds.
const (
	SourceMongo    = "mongo"
	SourcePostgres = "postgres"
	SourceCSV      = "csv"
)

// Defaults applied when a section leaves an optional key out.
const (
	DefaultIngestFileName = "battery_rul.csv"
	DefaultIngestTimeout  = 10 * time.Second
	DefaultTestSize       = 0.2
	DefaultRandomState    = 42
)

// DataIngestionConfig is the typed data_ingestion section.
type DataIngestionConfig struct {
	RootDir    string
	URI        string
	Database   string
	Collection string
	FileName   string
	Source     string
	Timeout    time.Duration
}

// OutputPath is where the ingested dataset is written.
func (c DataIngestionConfig) OutputPath() string {
	return filepath.Join(c.RootDir, c.FileName)
}

// DataValidationConfig is the typed data_validation section.
type DataValidationConfig struct {
	RootDir       string
	StatusFile    string
	DataPath      string
	Schema        schema.Spec
	Strictness    schema.Strictness
	HaltOnFailure bool
}

// DataTransformationConfig is the typed data_transformation section.
type DataTransformationConfig struct {
	RootDir     string
	DataPath    string
	Numerical   []string
	Categorical []string
	Target      string
	TestSize    float64
	Seed        int64
}

// ModelTrainerConfig is the typed model_trainer section with its resolved
// hyperparameter group.
type ModelTrainerConfig struct {
	RootDir         string
	TrainDataPath   string
	TrainTargetPath string
	TestDataPath    string
	ModelName       string
	Family          string
	Params          model.Params
	Target          string
}

// ModelPath is where the trained model is written.
func (c ModelTrainerConfig) ModelPath() string {
	return filepath.Join(c.RootDir, c.ModelName)
}

// ModelEvaluationConfig is the typed model_evaluation section.
type ModelEvaluationConfig struct {
	RootDir        string
	TestDataPath   string
	TestTargetPath string
	ModelPath      string
	MetricFile     string
	Target         string
	Family         string
	AllParams      map[string]string
	MLflowURI      string
	ExperimentID   string
	RunName        string
}

// MetricsValidationConfig is the typed metrics_validation section.
type MetricsValidationConfig struct {
	RootDir    string
	MetricFile string
	StatusFile string
	Thresholds gate.Thresholds
	Policy     gate.Policy
}

// DataIngestionConfig resolves the data_ingestion section.
func (s *Store) DataIngestionConfig() (*DataIngestionConfig, error) {
	sec := s.config.DataIngestion
	if sec == nil {
		return nil, errors.ConfigKeyError("config", SectionDataIngestion)
	}
	if err := s.requireKeys(SectionDataIngestion, sec); err != nil {
		return nil, err
	}

	uri := ""
	switch {
	case sec.URI != nil:
		uri = *sec.URI
	case sec.MongoURI != nil:
		uri = *sec.MongoURI
	default:
		return nil, errors.ConfigKeyError(SectionDataIngestion, "uri")
	}

	cfg := &DataIngestionConfig{
		RootDir:    *sec.RootDir,
		URI:        uri,
		Database:   *sec.DatabaseName,
		Collection: *sec.CollectionName,
		FileName:   sec.FileName,
		Source:     sec.Source,
		Timeout:    time.Duration(sec.TimeoutSeconds) * time.Second,
	}
	if cfg.FileName == "" {
		cfg.FileName = DefaultIngestFileName
	}
	if cfg.Source == "" {
		cfg.Source = sourceFromURI(uri)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultIngestTimeout
	}

	if err := s.mkdirs(cfg.RootDir, parentOf(cfg.OutputPath())); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parentOf returns the directory holding path, or "" for a bare file name.
func parentOf(path string) string {
	if path == "" {
		return ""
	}
	if dir := filepath.Dir(path); dir != "." {
		return dir
	}
	return ""
}

func sourceFromURI(uri string) string {
	lower := strings.ToLower(uri)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return SourcePostgres
	case strings.HasPrefix(lower, "file://"), strings.HasSuffix(lower, ".csv"):
		return SourceCSV
	default:
		return SourceMongo
	}
}

// DataValidationConfig resolves the data_validation section.
func (s *Store) DataValidationConfig() (*DataValidationConfig, error) {
	sec := s.config.DataValidation
	if sec == nil {
		return nil, errors.ConfigKeyError("config", SectionDataValidation)
	}
	if err := s.requireKeys(SectionDataValidation, sec); err != nil {
		return nil, err
	}
	strictness, err := schema.ParseStrictness(sec.Strictness)
	if err != nil {
		return nil, errors.ValidationError(err.Error())
	}

	cfg := &DataValidationConfig{
		RootDir:       *sec.RootDir,
		StatusFile:    *sec.StatusFile,
		DataPath:      *sec.DataDir,
		Schema:        s.Schema(),
		Strictness:    strictness,
		HaltOnFailure: sec.HaltOnFailure,
	}
	if err := s.mkdirs(cfg.RootDir, parentOf(cfg.StatusFile)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DataTransformationConfig resolves the data_transformation section. When no
// columns are listed they are derived from the schema: string columns are
// categorical and every other feature is numerical.
func (s *Store) DataTransformationConfig() (*DataTransformationConfig, error) {
	sec := s.config.DataTransformation
	if sec == nil {
		return nil, errors.ConfigKeyError("config", SectionDataTransformation)
	}
	if err := s.requireKeys(SectionDataTransformation, sec); err != nil {
		return nil, err
	}

	cfg := &DataTransformationConfig{
		RootDir:     *sec.RootDir,
		DataPath:    *sec.DataPath,
		Numerical:   append([]string(nil), sec.NumericalCols...),
		Categorical: append([]string(nil), sec.CategoricalCols...),
		Target:      s.schema.Target,
		TestSize:    DefaultTestSize,
		Seed:        DefaultRandomState,
	}
	if sec.TestSize != nil {
		cfg.TestSize = *sec.TestSize
	}
	if sec.RandomState != nil {
		cfg.Seed = *sec.RandomState
	}
	if !(cfg.TestSize > 0 && cfg.TestSize < 1) {
		return nil, errors.ValidationError(fmt.Sprintf("%s: test_size must be between 0 and 1, got %g",
			SectionDataTransformation, cfg.TestSize))
	}

	if len(cfg.Numerical) == 0 && len(cfg.Categorical) == 0 {
		for _, name := range s.schema.Features() {
			f, _ := s.schema.Lookup(name)
			if f.Type == dataset.String {
				cfg.Categorical = append(cfg.Categorical, name)
			} else {
				cfg.Numerical = append(cfg.Numerical, name)
			}
		}
	}

	if err := s.mkdirs(cfg.RootDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

// modelParams decodes and checks the params.yaml group of a model family.
func (s *Store) modelParams(family string) (model.Params, error) {
	node, ok := s.params[family]
	if !ok {
		return model.Params{}, errors.ConfigKeyError("params", family)
	}

	var doc paramsDoc
	if err := node.Decode(&doc); err != nil {
		return model.Params{}, errors.ConfigLoadError(s.paths.Params, err)
	}
	if err := s.requireKeys(family, &doc); err != nil {
		return model.Params{}, err
	}

	params := doc.params()
	if err := params.Validate(); err != nil {
		return model.Params{}, errors.ValidationError(err.Error()).WithContext("section", family)
	}
	return params, nil
}

func (s *Store) modelFamily() string {
	if s.config.ModelTrainer != nil && s.config.ModelTrainer.ModelFamily != "" {
		return s.config.ModelTrainer.ModelFamily
	}
	return DefaultModelFamily
}

// ModelTrainerConfig resolves the model_trainer section and its
// hyperparameters.
func (s *Store) ModelTrainerConfig() (*ModelTrainerConfig, error) {
	sec := s.config.ModelTrainer
	if sec == nil {
		return nil, errors.ConfigKeyError("config", SectionModelTrainer)
	}
	if err := s.requireKeys(SectionModelTrainer, sec); err != nil {
		return nil, err
	}

	family := s.modelFamily()
	params, err := s.modelParams(family)
	if err != nil {
		return nil, err
	}

	cfg := &ModelTrainerConfig{
		RootDir:         *sec.RootDir,
		TrainDataPath:   *sec.TrainDataPath,
		TrainTargetPath: sec.TrainTarget,
		TestDataPath:    *sec.TestDataPath,
		ModelName:       *sec.ModelName,
		Family:          family,
		Params:          params,
		Target:          s.schema.Target,
	}
	if cfg.TrainTargetPath == "" {
		cfg.TrainTargetPath = filepath.Join(filepath.Dir(cfg.TrainDataPath), transform.TrainTargetFile)
	}

	if err := s.mkdirs(cfg.RootDir, parentOf(cfg.ModelPath())); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ModelEvaluationConfig resolves the model_evaluation section.
func (s *Store) ModelEvaluationConfig() (*ModelEvaluationConfig, error) {
	sec := s.config.ModelEvaluation
	if sec == nil {
		return nil, errors.ConfigKeyError("config", SectionModelEvaluation)
	}
	if err := s.requireKeys(SectionModelEvaluation, sec); err != nil {
		return nil, err
	}

	family := s.modelFamily()
	params, err := s.modelParams(family)
	if err != nil {
		return nil, err
	}

	cfg := &ModelEvaluationConfig{
		RootDir:        *sec.RootDir,
		TestDataPath:   *sec.TestDataPath,
		TestTargetPath: *sec.TestTargetVariable,
		ModelPath:      *sec.ModelPath,
		MetricFile:     *sec.MetricFileName,
		Target:         s.schema.Target,
		Family:         family,
		AllParams:      params.Map(),
		MLflowURI:      sec.MLflowURI,
		ExperimentID:   sec.ExperimentID,
		RunName:        sec.RunName,
	}
	if err := s.mkdirs(cfg.RootDir, parentOf(cfg.MetricFile)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MetricsValidationConfig resolves the metrics_validation section together
// with the threshold document.
func (s *Store) MetricsValidationConfig() (*MetricsValidationConfig, error) {
	sec := s.config.MetricsValidation
	if sec == nil {
		return nil, errors.ConfigKeyError("config", SectionMetricsValidation)
	}
	if err := s.requireKeys(SectionMetricsValidation, sec); err != nil {
		return nil, err
	}
	policy, err := gate.ParsePolicy(sec.ThresholdPolicy)
	if err != nil {
		return nil, errors.ValidationError(err.Error())
	}

	cfg := &MetricsValidationConfig{
		RootDir:    *sec.RootDir,
		MetricFile: *sec.MetricFileName,
		StatusFile: *sec.ValidationStatusFile,
		Thresholds: s.Thresholds(),
		Policy:     policy,
	}
	if err := s.mkdirs(cfg.RootDir, parentOf(cfg.StatusFile)); err != nil {
		return nil, err
	}
	return cfg, nil
}
