package configstore

import (
	"rul-pipeline/internal/model"
	"rul-pipeline/internal/schema"
)

// Section names of config.yaml.
const (
	SectionDataIngestion      = "data_ingestion"
	SectionDataValidation     = "data_validation"
	SectionDataTransformation = "data_transformation"
	SectionModelTrainer       = "model_trainer"
	SectionModelEvaluation    = "model_evaluation"
	SectionMetricsValidation  = "metrics_validation"
)

// Sections lists the config.yaml sections in pipeline order.
var Sections = []string{
	SectionDataIngestion,
	SectionDataValidation,
	SectionDataTransformation,
	SectionModelTrainer,
	SectionModelEvaluation,
	SectionMetricsValidation,
}

// DefaultModelFamily is the params.yaml group used when model_trainer does
// not name one.
const DefaultModelFamily = "XGBRegressor"

// Pointer fields distinguish an absent key from a zero value.

type configDoc struct {
	ArtifactsRoot      *string                    `yaml:"artifacts_root" validate:"required"`
	DataIngestion      *dataIngestionSection      `yaml:"data_ingestion" validate:"-"`
	DataValidation     *dataValidationSection     `yaml:"data_validation" validate:"-"`
	DataTransformation *dataTransformationSection `yaml:"data_transformation" validate:"-"`
	ModelTrainer       *modelTrainerSection       `yaml:"model_trainer" validate:"-"`
	ModelEvaluation    *modelEvaluationSection    `yaml:"model_evaluation" validate:"-"`
	MetricsValidation  *metricsValidationSection  `yaml:"metrics_validation" validate:"-"`
}

type dataIngestionSection struct {
	RootDir        *string `yaml:"root_dir" validate:"required"`
	URI            *string `yaml:"uri"`
	MongoURI       *string `yaml:"mongo_uri"`
	DatabaseName   *string `yaml:"database_name" validate:"required"`
	CollectionName *string `yaml:"collection_name" validate:"required"`
	FileName       string  `yaml:"file_name"`
	Source         string  `yaml:"source" validate:"omitempty,oneof=mongo postgres csv"`
	TimeoutSeconds int     `yaml:"timeout_seconds" validate:"min=0"`
}

type dataValidationSection struct {
	RootDir       *string `yaml:"root_dir" validate:"required"`
	StatusFile    *string `yaml:"STATUS_FILE" validate:"required"`
	DataDir       *string `yaml:"data_dir" validate:"required"`
	Strictness    string  `yaml:"strictness" validate:"omitempty,oneof=strict lenient"`
	HaltOnFailure bool    `yaml:"halt_on_failure"`
}

type dataTransformationSection struct {
	RootDir         *string  `yaml:"root_dir" validate:"required"`
	DataPath        *string  `yaml:"data_path" validate:"required"`
	NumericalCols   []string `yaml:"numerical_cols"`
	CategoricalCols []string `yaml:"categorical_cols"`
	TestSize        *float64 `yaml:"test_size"`
	RandomState     *int64   `yaml:"random_state"`
}

type modelTrainerSection struct {
	RootDir       *string `yaml:"root_dir" validate:"required"`
	TrainDataPath *string `yaml:"train_data_path" validate:"required"`
	TestDataPath  *string `yaml:"test_data_path" validate:"required"`
	TrainTarget   string  `yaml:"train_target_path"`
	ModelName     *string `yaml:"model_name" validate:"required"`
	ModelFamily   string  `yaml:"model_family"`
}

type modelEvaluationSection struct {
	RootDir            *string `yaml:"root_dir" validate:"required"`
	TestDataPath       *string `yaml:"test_data_path" validate:"required"`
	TestTargetVariable *string `yaml:"test_target_variable" validate:"required"`
	ModelPath          *string `yaml:"model_path" validate:"required"`
	MetricFileName     *string `yaml:"metric_file_name" validate:"required"`
	MLflowURI          string  `yaml:"mlflow_uri"`
	ExperimentID       string  `yaml:"experiment_id"`
	RunName            string  `yaml:"run_name"`
}

type metricsValidationSection struct {
	RootDir              *string `yaml:"root_dir" validate:"required"`
	MetricFileName       *string `yaml:"metric_file_name" validate:"required"`
	ValidationStatusFile *string `yaml:"validation_status_file" validate:"required"`
	ThresholdPolicy      string  `yaml:"threshold_policy" validate:"threshold_policy"`
}

// paramsDoc is one model family group of params.yaml.
type paramsDoc struct {
	Objective       *string  `yaml:"objective" validate:"required"`
	Booster         *string  `yaml:"booster" validate:"required"`
	NEstimators     *int     `yaml:"n_estimators" validate:"required"`
	LearningRate    *float64 `yaml:"learning_rate" validate:"required"`
	MaxDepth        *int     `yaml:"max_depth" validate:"required"`
	MinChildWeight  *float64 `yaml:"min_child_weight" validate:"required"`
	Gamma           *float64 `yaml:"gamma" validate:"required"`
	Subsample       *float64 `yaml:"subsample" validate:"required"`
	ColsampleBytree *float64 `yaml:"colsample_bytree" validate:"required"`
	RegAlpha        *float64 `yaml:"reg_alpha" validate:"required"`
	RegLambda       *float64 `yaml:"reg_lambda" validate:"required"`
	RandomState     *int64   `yaml:"random_state" validate:"required"`
	ScalePosWeight  *float64 `yaml:"scale_pos_weight" validate:"required"`
}

func (d *paramsDoc) params() model.Params {
	return model.Params{
		Objective:       *d.Objective,
		Booster:         *d.Booster,
		NEstimators:     *d.NEstimators,
		LearningRate:    *d.LearningRate,
		MaxDepth:        *d.MaxDepth,
		MinChildWeight:  *d.MinChildWeight,
		Gamma:           *d.Gamma,
		Subsample:       *d.Subsample,
		ColsampleBytree: *d.ColsampleBytree,
		RegAlpha:        *d.RegAlpha,
		RegLambda:       *d.RegLambda,
		RandomState:     *d.RandomState,
		ScalePosWeight:  *d.ScalePosWeight,
	}
}

type targetColumn struct {
	Name string `yaml:"name"`
}

type schemaDoc struct {
	Columns      schema.Columns `yaml:"COLUMNS"`
	TargetColumn *targetColumn  `yaml:"TARGET_COLUMN"`
}

type boundsDoc struct {
	Min *float64 `yaml:"min" validate:"required"`
	Max *float64 `yaml:"max" validate:"required"`
}

type thresholdsDoc struct {
	Metrics map[string]boundsDoc `yaml:"METRICS"`
}
