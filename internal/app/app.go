// Package app wires configuration, the pipeline and its optional
// collaborators into the rul-pipeline commands.
package app

import (
	"strconv"
	"time"

	"rul-pipeline/internal/artifacts"
	"rul-pipeline/internal/brokers"
	"rul-pipeline/internal/brokers/rabbitmq"
	redisbroker "rul-pipeline/internal/brokers/redis"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/config"
	"rul-pipeline/internal/configstore"
	"rul-pipeline/internal/storage"
	_ "rul-pipeline/internal/storage/postgres"
	_ "rul-pipeline/internal/storage/sqlite"
	"rul-pipeline/internal/telemetry"
	"rul-pipeline/internal/tracker"
)

const trackerTimeout = 10 * time.Second

// App holds all the application dependencies
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Store     *configstore.Store
	Runs      storage.RunStore
	Broker    brokers.Broker
	Artifacts artifacts.Store
	Metrics   *telemetry.Metrics
	Tracker   tracker.Tracker
}

// New loads the configuration documents and connects the collaborators
// enabled by cfg. Optional collaborators that fail to connect are logged
// and left out.
func New(cfg *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	store, err := configstore.Load(configstore.Paths{
		Config:  cfg.ConfigFilePath,
		Params:  cfg.ParamsFilePath,
		Schema:  cfg.SchemaFilePath,
		Metrics: cfg.MetricsFilePath,
	}, configstore.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	app.Store = store

	if err := app.initializeStorage(); err != nil {
		return nil, err
	}
	if err := app.initializeBroker(); err != nil {
		app.Logger.Warn("Verdict broker unavailable, verdicts will not be published",
			logging.String("broker", cfg.VerdictBroker),
			logging.Err(err),
		)
	}
	if err := app.initializeArtifacts(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.Metrics = telemetry.New(cfg.MetricsTextfile, logger)
	if cfg.MLflowTrackingURI != "" {
		app.Tracker = tracker.NewMLflow(cfg.MLflowTrackingURI, cfg.MLflowExperimentID, trackerTimeout)
		app.Logger.Info("Experiment tracking: MLflow", logging.String("uri", cfg.MLflowTrackingURI))
	}

	return app, nil
}

func (app *App) initializeStorage() error {
	runs, err := storage.NewRunStore(app.Config)
	if err != nil {
		return err
	}
	if runs == nil {
		app.Logger.Info("Run history: disabled")
		return nil
	}

	switch {
	case app.Config.IsPostgres():
		app.Logger.Info("Run history: PostgreSQL",
			logging.String("host", app.Config.PostgresHost),
			logging.String("port", app.Config.PostgresPort),
			logging.String("database", app.Config.PostgresDB),
		)
	default:
		app.Logger.Info("Run history: SQLite", logging.String("path", app.Config.DatabasePath))
	}
	app.Runs = runs
	return nil
}

func (app *App) initializeBroker() error {
	var brokerConfig brokers.BrokerConfig
	switch app.Config.VerdictBroker {
	case "redis":
		db, _ := strconv.Atoi(app.Config.RedisDB)
		cfg := redisbroker.DefaultConfig()
		cfg.Address = app.Config.RedisAddress
		cfg.Password = app.Config.RedisPassword
		cfg.DB = db
		brokerConfig = cfg
	case "rabbitmq":
		brokerConfig = &rabbitmq.Config{URL: app.Config.RabbitMQURL}
	default:
		return nil
	}

	broker, err := brokers.Create(app.Config.VerdictBroker, brokerConfig)
	if err != nil {
		return err
	}
	app.Broker = broker
	app.Logger.Info("Verdict broker: connected",
		logging.String("broker", broker.Name()),
		logging.String("endpoint", brokerConfig.GetConnectionString()),
		logging.String("topic", app.Config.VerdictTopic),
	)
	return nil
}

func (app *App) initializeArtifacts() error {
	if app.Config.ArtifactStore != "minio" {
		app.Artifacts = artifacts.NewLocalStore()
		return nil
	}

	store, err := artifacts.NewMinioStore(artifacts.MinioConfig{
		Endpoint:  app.Config.MinioEndpoint,
		AccessKey: app.Config.MinioAccessKey,
		SecretKey: app.Config.MinioSecretKey,
		Bucket:    app.Config.MinioBucket,
		UseSSL:    app.Config.MinioUseSSL,
	})
	if err != nil {
		return err
	}
	app.Artifacts = store
	app.Logger.Info("Artifact store: MinIO",
		logging.String("endpoint", app.Config.MinioEndpoint),
		logging.String("bucket", app.Config.MinioBucket),
	)
	return nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Runs != nil {
		if err := app.Runs.Close(); err != nil {
			app.Logger.Warn("Failed to close run store", logging.Err(err))
		}
	}
	if app.Broker != nil {
		if err := app.Broker.Close(); err != nil {
			app.Logger.Warn("Failed to close verdict broker", logging.Err(err))
		}
	}
}
