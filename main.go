package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hoppscotch-backup/internal/auth"
	"hoppscotch-backup/internal/config"
	"hoppscotch-backup/internal/export"
	"hoppscotch-backup/internal/graphql"
	"hoppscotch-backup/internal/logger"
	"hoppscotch-backup/internal/mirror"
	"hoppscotch-backup/internal/model"
	"hoppscotch-backup/internal/pipeline"
	"hoppscotch-backup/internal/publish"
	"hoppscotch-backup/internal/retention"
	"hoppscotch-backup/internal/scheduler"
	"hoppscotch-backup/internal/webhook"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runTimeout bounds one full pipeline invocation in scheduled mode.
const runTimeout = 30 * time.Minute

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hoppscotch-backup",
	Short: "Exports Hoppscotch collections and publishes them to a git repository",
	Long: `hoppscotch-backup authenticates against the Hoppscotch GraphQL API,
exports a workspace's request collections as JSON, and publishes them
to a timestamped branch of a local repository clone. Without arguments
it runs the full backup pipeline once, or on a schedule when one is
configured.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		if app.settings.Schedule != "" {
			return app.runScheduled(cmd.Context())
		}
		return app.runOnce(cmd.Context())
	},
}

var testAuthCmd = &cobra.Command{
	Use:   "test-auth",
	Short: "Verify the configured bearer token and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()
		return app.pipeline.CheckAuth(cmd.Context())
	},
}

var exploreSchemaCmd = &cobra.Command{
	Use:   "explore-schema",
	Short: "Fetch the GraphQL schema, persist it and summarize query operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()
		explorer := pipeline.NewSchemaExplorer(app.client, app.settings.RepositoryPath)
		return explorer.Explore(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./backup-config.json)")
	rootCmd.AddCommand(testAuthCmd, exploreSchemaCmd)
}

// app holds the wired components for one process. There is no global
// client or settings singleton; everything is constructed here and
// passed down.
type app struct {
	settings *config.Settings
	client   *graphql.Client
	pipeline *pipeline.Pipeline
	notifier webhook.Notifier
	mirror   *mirror.Mirror
	pruner   *retention.Runner
}

func buildApp(ctx context.Context) (*app, error) {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Configuration loaded",
		zap.String("apiBaseURL", settings.APIBaseURL),
		zap.String("repositoryPath", settings.RepositoryPath),
		zap.String("backupSubPath", settings.BackupSubPath),
		zap.String("workspace", settings.WorkspaceName),
		zap.String("bearerToken", config.MaskSecret(settings.BearerToken)),
		zap.String("sourceControlToken", config.MaskSecret(settings.SourceControlToken)),
	)

	client := graphql.NewClient(settings.APIBaseURL, settings.BearerToken, settings.RequestTimeout())
	events := pipeline.NewLogEvents(logger.Log.Named("pipeline"))

	probe := auth.NewProbe(client)
	exporter := export.NewExporter(client, settings.TeamID, settings.WorkspaceName, events)
	publisher := publish.NewPublisher(settings.RepositoryPath, settings.SourceControlUsername, settings.SourceControlToken)
	pipe := pipeline.New(settings.RepositoryPath, settings.BackupSubPath, probe, exporter, publisher, events)

	m, err := mirror.New(ctx, settings.Mirror)
	if err != nil {
		return nil, err
	}

	var pruner *retention.Runner
	if settings.Retention() > 0 {
		var store retention.MirrorStore
		if m != nil {
			store = m
		}
		backupRoot := filepath.Join(settings.RepositoryPath, settings.BackupSubPath)
		pruner = retention.NewRunner(backupRoot, settings.Retention(), settings.RetentionDryRun, store)
	}

	return &app{
		settings: settings,
		client:   client,
		pipeline: pipe,
		notifier: webhook.NewNotifier(settings.Webhook),
		mirror:   m,
		pruner:   pruner,
	}, nil
}

func (a *app) close() {
	a.notifier.Stop()
}

// runOnce executes one full backup run and reports its outcome.
func (a *app) runOnce(ctx context.Context) error {
	start := time.Now()
	run, err := a.pipeline.Run(ctx)

	report := model.RunReport{
		Workspace:       a.settings.WorkspaceName,
		TeamID:          run.TeamID,
		RunTimestamp:    run.Timestamp,
		FilesWritten:    len(run.ExportedFiles),
		Success:         err == nil,
		DurationSeconds: time.Since(start).Seconds(),
		CompletedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		report.Error = err.Error()
	} else {
		report.Branch = run.BranchName()
	}

	if err == nil && a.mirror != nil {
		if mirrorErr := a.mirror.UploadRun(ctx, run); mirrorErr != nil {
			// The backup itself is on the remote branch; a missing
			// mirror copy does not fail the run.
			logger.Log.Error("Mirror upload failed", zap.Error(mirrorErr))
		}
	}
	if err == nil && a.pruner != nil {
		if pruneErr := a.pruner.Run(ctx); pruneErr != nil {
			logger.Log.Error("Retention pruning failed", zap.Error(pruneErr))
		}
	}

	a.notifier.Enqueue(report)

	if err != nil {
		logger.Log.Error("Backup failed", zap.Error(err))
		return err
	}
	logger.Log.Info("Backup succeeded",
		zap.String("branch", run.BranchName()),
		zap.Int("filesWritten", len(run.ExportedFiles)),
	)
	return nil
}

// runScheduled keeps the process resident and runs the pipeline on
// the configured cron expression until SIGINT/SIGTERM.
func (a *app) runScheduled(ctx context.Context) error {
	backupJob := func() {
		runCtx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := a.runOnce(runCtx); err != nil {
			logger.Log.Error("Scheduled backup run failed", zap.Error(err))
		}
	}

	var pruneJob func()
	if a.pruner != nil {
		pruneJob = func() {
			pruneCtx, cancel := context.WithTimeout(context.Background(), time.Hour)
			defer cancel()
			if err := a.pruner.Run(pruneCtx); err != nil {
				logger.Log.Error("Nightly pruning failed", zap.Error(err))
			}
		}
	}

	sched, err := scheduler.New(a.settings.Schedule, backupJob, pruneJob)
	if err != nil {
		return err
	}
	sched.Start()
	logger.Log.Info("Running in scheduled mode", zap.String("schedule", a.settings.Schedule))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Log.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Log.Info("Context cancelled, shutting down")
	}

	sched.Stop()
	return nil
}

func main() {
	defer logger.Close()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		logger.Log.Error("Command failed", zap.Error(err))
		_ = logger.Close()
		os.Exit(1)
	}
}
