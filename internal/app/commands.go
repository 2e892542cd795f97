package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/config"
	"rul-pipeline/internal/configstore"
	"rul-pipeline/internal/pipeline"
	"rul-pipeline/internal/pipeline/stages"
)

// cli carries state from the root command's pre-run hook to subcommands.
type cli struct {
	cfg      *config.Config
	logger   logging.Logger
	closeLog func() error
}

// NewRootCommand builds the rul-pipeline command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&cli{})
}

func newRootCommand(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rul-pipeline",
		Short:         "Battery remaining-useful-life training pipeline and prediction service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline, or a single stage with --stage",
		Long: fmt.Sprintf(`Runs ingest, validate, transform, train, evaluate and gate in order.
With --stage only the named stage runs; it reads its inputs from the
paths configured for the upstream stages.

Stages: %v`, stages.Names),
		Args: cobra.NoArgs,
		RunE: c.closingLog(c.runPipeline),
	}
	runCmd.Flags().String("stage", "", "run only this stage")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions and the run history over HTTP",
		Args:  cobra.NoArgs,
		RunE:  c.closingLog(c.serve),
	}

	checkCmd := &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate every configuration document and section",
		Args:  cobra.NoArgs,
		RunE:  c.closingLog(c.checkConfig),
	}

	rootCmd.AddCommand(runCmd, serveCmd, checkCmd)
	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

func (c *cli) setup() error {
	// .env is optional
	_ = godotenv.Load()

	c.cfg = config.Load()
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger, closeLog, err := logging.Init(logging.Options{Level: c.cfg.LogLevel, File: c.cfg.LogFile})
	if err != nil {
		return err
	}
	c.logger = logger
	c.closeLog = closeLog

	c.logger.Debug("Starting rul-pipeline", logging.Int("cpus", runtime.NumCPU()))
	return nil
}

// closingLog flushes and closes the log after run returns. Cobra skips
// post-run hooks when RunE fails, so the close happens here.
func (c *cli) closingLog(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if c.closeLog != nil {
			closeErr := c.closeLog()
			c.closeLog = nil
			if err == nil {
				err = closeErr
			}
		}
		return err
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (c *cli) runPipeline(cmd *cobra.Command, args []string) error {
	stageName, _ := cmd.Flags().GetString("stage")

	app, err := New(c.cfg, c.logger)
	if err != nil {
		c.logger.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	ctx, stop := signalContext()
	defer stop()

	result, err := app.RunPipeline(ctx, stageName)
	if result != nil {
		printSummary(cmd.OutOrStdout(), result)
	}
	return err
}

func (c *cli) serve(cmd *cobra.Command, args []string) error {
	app, err := New(c.cfg, c.logger)
	if err != nil {
		c.logger.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	ctx, stop := signalContext()
	defer stop()

	return app.Serve(ctx)
}

func (c *cli) checkConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	store, err := configstore.Load(configstore.Paths{
		Config:  c.cfg.ConfigFilePath,
		Params:  c.cfg.ParamsFilePath,
		Schema:  c.cfg.SchemaFilePath,
		Metrics: c.cfg.MetricsFilePath,
	}, configstore.WithLogger(c.logger))
	if err != nil {
		return err
	}

	failed := 0
	for _, section := range configstore.Sections {
		if _, err := store.StageConfig(section); err != nil {
			fmt.Fprintf(out, "%-22s FAIL  %v\n", section, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "%-22s ok\n", section)
	}
	fmt.Fprintf(out, "schema: %d columns, target %q; thresholds: %d metrics\n",
		len(store.Schema().Fields), store.Schema().Target, len(store.Thresholds()))

	if failed > 0 {
		return fmt.Errorf("%d of %d sections invalid", failed, len(configstore.Sections))
	}
	return nil
}

func printSummary(w io.Writer, result *pipeline.Result) {
	fmt.Fprintf(w, "run %s (%s)\n", result.RunID, result.TotalDuration.Round(time.Millisecond))
	for _, sr := range result.StageResults {
		line := fmt.Sprintf("  %-10s %-9s %8s", sr.Stage, sr.Status, sr.Duration.Round(time.Millisecond))
		switch {
		case sr.Error != "":
			line += "  " + sr.Error
		case sr.Message != "":
			line += "  " + sr.Message
		}
		fmt.Fprintln(w, line)
	}
}
