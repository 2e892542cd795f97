// Package config provides process-level configuration for the RUL pipeline.
// It loads settings from environment variables with sensible defaults and
// validates them before the pipeline or the prediction server starts.
//
// Pipeline behaviour itself (paths, hyperparameters, schema, thresholds) lives
// in the YAML documents read by the configstore package; this package only
// locates those documents and configures the process around them.
//
// Environment Variables:
//
// Documents:
//   - CONFIG_FILE_PATH: pipeline configuration (default: config/config.yaml)
//   - PARAMS_FILE_PATH: hyperparameters (default: params.yaml)
//   - SCHEMA_FILE_PATH: column schema (default: schema.yaml)
//   - METRICS_FILE_PATH: metric thresholds (default: metrics_thresholds.yaml)
//
// Application Settings:
//   - PORT: prediction server port (default: 8080)
//   - LOG_LEVEL: logging level (default: info)
//   - LOG_FILE: optional file receiving a copy of the log
//   - TLS_CERT_FILE, TLS_KEY_FILE: serve HTTPS when both are set
//   - PREDICT_RATE_LIMIT: prediction requests per second per client; 0 disables (default: 0)
//   - PREDICT_RATE_BURST: burst allowed above the rate (default: the rate, at least 1)
//   - STAGE_TIMEOUT: upper bound on each pipeline stage, e.g. "30m"; 0 disables (default: 0)
//
// Run History:
//   - DATABASE_TYPE: "sqlite", "postgres" or "none" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./rul_pipeline.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE
//
// Verdict Publishing:
//   - VERDICT_BROKER: "none", "redis" or "rabbitmq" (default: none)
//   - VERDICT_TOPIC: stream or queue name (default: rul.verdicts)
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB
//   - RABBITMQ_URL
//
// Experiment Tracking:
//   - MLFLOW_TRACKING_URI: MLflow server; tracking is disabled when empty
//   - MLFLOW_EXPERIMENT_ID: experiment receiving runs (default: 0)
//
// Artifact Store:
//   - ARTIFACT_STORE: "local" or "minio" (default: local)
//   - MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY, MINIO_BUCKET, MINIO_USE_SSL
//
// Telemetry:
//   - METRICS_TEXTFILE: Prometheus textfile written after each run
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"rul-pipeline/internal/common/validation"
)

// Config holds all process configuration values.
type Config struct {
	// Configuration documents
	ConfigFilePath  string
	ParamsFilePath  string
	SchemaFilePath  string
	MetricsFilePath string

	// Application settings
	Port     string
	LogLevel string
	LogFile  string

	TLSCertFile string
	TLSKeyFile  string

	// Prediction rate limit
	PredictRateLimit string
	PredictRateBurst string

	// Per-stage bound, a time.Duration string
	StageTimeout string

	// Run history database
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Verdict publishing
	VerdictBroker string
	VerdictTopic  string
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RabbitMQURL   string

	// Experiment tracking
	MLflowTrackingURI  string
	MLflowExperimentID string

	// Artifact store
	ArtifactStore  string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Telemetry
	MetricsTextfile string
}

// Load creates a Config from environment variables, falling back to defaults.
// It does not validate; call Validate on the result.
func Load() *Config {
	return &Config{
		ConfigFilePath:  getEnv("CONFIG_FILE_PATH", "config/config.yaml"),
		ParamsFilePath:  getEnv("PARAMS_FILE_PATH", "params.yaml"),
		SchemaFilePath:  getEnv("SCHEMA_FILE_PATH", "schema.yaml"),
		MetricsFilePath: getEnv("METRICS_FILE_PATH", "metrics_thresholds.yaml"),

		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		PredictRateLimit: getEnv("PREDICT_RATE_LIMIT", "0"),
		PredictRateBurst: getEnv("PREDICT_RATE_BURST", "0"),

		StageTimeout: getEnv("STAGE_TIMEOUT", "0"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./rul_pipeline.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "rul_pipeline"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		VerdictBroker: getEnv("VERDICT_BROKER", "none"),
		VerdictTopic:  getEnv("VERDICT_TOPIC", "rul.verdicts"),
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RabbitMQURL:   getEnv("RABBITMQ_URL", ""),

		MLflowTrackingURI:  getEnv("MLFLOW_TRACKING_URI", ""),
		MLflowExperimentID: getEnv("MLFLOW_EXPERIMENT_ID", "0"),

		ArtifactStore:  getEnv("ARTIFACT_STORE", "local"),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "rul-artifacts"),
		MinioUseSSL:    getBoolEnv("MINIO_USE_SSL", false),

		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks required fields, formats and cross-field dependencies.
// All problems are reported together.
func (c *Config) Validate() error {
	v := validation.NewChecker("")

	v.Required("CONFIG_FILE_PATH", c.ConfigFilePath).
		Required("PARAMS_FILE_PATH", c.ParamsFilePath).
		Required("SCHEMA_FILE_PATH", c.SchemaFilePath).
		Required("METRICS_FILE_PATH", c.MetricsFilePath).
		Check(validatePort(c.Port, "PORT"))

	v.CheckIf((c.TLSCertFile == "") != (c.TLSKeyFile == ""), func() error {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	})

	if rps, err := strconv.ParseFloat(c.PredictRateLimit, 64); err != nil || rps < 0 {
		v.Check(fmt.Errorf("PREDICT_RATE_LIMIT must be a non-negative number"))
	}
	if burst, err := strconv.Atoi(c.PredictRateBurst); err != nil || burst < 0 {
		v.Check(fmt.Errorf("PREDICT_RATE_BURST must be a non-negative integer"))
	}
	if d, err := time.ParseDuration(c.StageTimeout); err != nil || d < 0 {
		v.Check(fmt.Errorf("STAGE_TIMEOUT must be a non-negative duration such as 30m"))
	}

	v.OneOf("DATABASE_TYPE", c.DatabaseType, "sqlite", "postgres", "postgresql", "none")
	v.CheckIf(c.DatabaseType == "sqlite" && c.DatabasePath == "", func() error {
		return fmt.Errorf("DATABASE_PATH is required when using SQLite")
	})
	if c.IsPostgres() {
		v.Required("POSTGRES_HOST", c.PostgresHost).
			Required("POSTGRES_DB", c.PostgresDB).
			Required("POSTGRES_USER", c.PostgresUser).
			Check(validatePort(c.PostgresPort, "POSTGRES_PORT"))
	}

	v.OneOf("VERDICT_BROKER", c.VerdictBroker, "none", "redis", "rabbitmq")
	switch c.VerdictBroker {
	case "redis":
		v.Required("REDIS_ADDRESS", c.RedisAddress).Required("VERDICT_TOPIC", c.VerdictTopic)
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			v.Check(fmt.Errorf("REDIS_DB must be a number between 0 and 15"))
		}
	case "rabbitmq":
		v.URL("RABBITMQ_URL", c.RabbitMQURL).Required("VERDICT_TOPIC", c.VerdictTopic)
	}

	if c.MLflowTrackingURI != "" {
		v.URL("MLFLOW_TRACKING_URI", c.MLflowTrackingURI).
			Required("MLFLOW_EXPERIMENT_ID", c.MLflowExperimentID)
	}

	v.OneOf("ARTIFACT_STORE", c.ArtifactStore, "local", "minio")
	if c.ArtifactStore == "minio" {
		v.Required("MINIO_ENDPOINT", c.MinioEndpoint).
			Required("MINIO_ACCESS_KEY", c.MinioAccessKey).
			Required("MINIO_SECRET_KEY", c.MinioSecretKey).
			Required("MINIO_BUCKET", c.MinioBucket)
	}

	return v.Err()
}

// PredictLimit returns the per-client prediction rate and burst. A zero
// rate means predictions are not rate limited.
func (c *Config) PredictLimit() (float64, int) {
	rps, _ := strconv.ParseFloat(c.PredictRateLimit, 64)
	burst, _ := strconv.Atoi(c.PredictRateBurst)
	return rps, burst
}

// StageTimeoutDuration returns the per-stage bound; zero means none.
func (c *Config) StageTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.StageTimeout)
	return d
}

// IsPostgres reports whether the run history lives in PostgreSQL.
func (c *Config) IsPostgres() bool {
	return c.DatabaseType == "postgres" || c.DatabaseType == "postgresql"
}

// PostgresDSN builds a lib/pq connection string from the POSTGRES_* settings.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

func validatePort(value, name string) error {
	if port, err := strconv.Atoi(value); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%s must be a valid port number between 1 and 65535", name)
	}
	return nil
}
