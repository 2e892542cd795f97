package app

import (
	"context"
	"time"

	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/common/ratelimit"
	"rul-pipeline/internal/handlers"
	"rul-pipeline/internal/predict"
	"rul-pipeline/internal/server"
)

const shutdownTimeout = 30 * time.Second

// Serve runs the prediction service until ctx is done. A missing model does
// not prevent startup; predictions are rejected until one exists.
func (app *App) Serve(ctx context.Context) error {
	var predictor handlers.Predictor
	if p, err := predict.LoadFromStore(app.Store); err != nil {
		app.Logger.Warn("Model artifacts not loaded, predictions will be rejected", logging.Err(err))
	} else {
		predictor = p
	}

	h := handlers.New(predictor, app.Runs, app.Metrics, app.Logger)
	if rps, burst := app.Config.PredictLimit(); rps > 0 {
		limiter, err := ratelimit.NewKeyedLimiter(ratelimit.Config{RequestsPerSecond: rps, BurstSize: burst})
		if err != nil {
			return err
		}
		h.LimitPredictions(limiter)
		app.Logger.Info("Prediction rate limit enabled",
			logging.Float64("requests_per_second", rps),
			logging.Int("burst", burst),
		)
	}
	srv := server.New(h.Router(), app.Config.Port, app.Config.TLSCertFile, app.Config.TLSKeyFile, app.Logger)
	return srv.Run(ctx, shutdownTimeout)
}
