package app

import (
	"context"

	"github.com/google/uuid"
	"rul-pipeline/internal/artifacts"
	"rul-pipeline/internal/brokers"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/pipeline"
	"rul-pipeline/internal/pipeline/stages"
	"rul-pipeline/internal/storage"
)

// RunPipeline executes every stage, or only the named one, under a fresh
// run ID.
func (app *App) RunPipeline(ctx context.Context, stageName string) (*pipeline.Result, error) {
	deps := stages.Deps{
		Store:   app.Store,
		Logger:  app.Logger,
		Tracker: app.Tracker,
	}
	selected, err := stages.Select(deps, stageName)
	if err != nil {
		return nil, err
	}

	rc := pipeline.NewRunContext(uuid.NewString(), app.Logger)
	opts := app.observers(rc)
	if timeout := app.Config.StageTimeoutDuration(); timeout > 0 {
		opts = append(opts, pipeline.WithStageTimeout(timeout))
	}
	orchestrator := pipeline.NewOrchestrator(app.Logger, opts...)

	mode := "full"
	if stageName != "" {
		mode = stageName
	}
	rc.Logger.Info("Pipeline run starting",
		logging.String("mode", mode),
		logging.String("stage_timeout", app.Config.StageTimeout),
	)

	return orchestrator.Execute(logging.ContextWithRunID(ctx, rc.RunID), rc, selected...)
}

func (app *App) observers(rc *pipeline.RunContext) []pipeline.Option {
	var opts []pipeline.Option

	if app.Runs != nil {
		recorder := storage.NewRecorder(app.Runs, app.Logger)
		recorder.Begin(rc)
		opts = append(opts, pipeline.WithObserver(recorder))
	}
	if app.Broker != nil {
		opts = append(opts, pipeline.WithObserver(brokers.NewPublisher(app.Broker, app.Config.VerdictTopic, app.Logger)))
	}
	if app.Artifacts != nil {
		opts = append(opts, pipeline.WithObserver(artifacts.NewUploader(app.Artifacts, app.Logger, 0)))
	}
	if app.Metrics != nil {
		opts = append(opts, pipeline.WithObserver(app.Metrics))
	}
	return opts
}
