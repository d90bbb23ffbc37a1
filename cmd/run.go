package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"table-backup/internal/auth"
	"table-backup/internal/backup"
	"table-backup/internal/database"
	"table-backup/internal/display"
	"table-backup/internal/export"
	"table-backup/internal/logging"
)

var outputFormat string

// addRunFlags registers the flags that override the run configuration; they
// are bound in initConfig. They are persistent so that "config --effective"
// reflects them too.
func addRunFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("dir", "", "local directory for the exported files (default \"backup\")")
	flags.String("format", "", "export format (csv, xlsx)")
	flags.String("compression", "", "artifact compression (none, gzip, lz4, zstd)")
	flags.String("folder", "", "OneDrive folder to upload into (default \"Backups\")")
	flags.StringVarP(&outputFormat, "output", "o", "text", "run summary format (text, json, yaml)")
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Export, authenticate and upload once (the default command)",
		Long: `Run performs exactly one backup run:

  exporting -> authenticating -> uploading -> done

The run aborts if any query fails or no access token can be obtained. A
failed upload does not stop the remaining uploads but makes the process exit
with a non-zero status.

Exit status:
  0  every artifact uploaded
  1  unexpected failure
  2  configuration missing or invalid
  3  database connection or query failed
  4  access token request failed
  5  at least one upload failed
  6  an artifact was missing at upload time`,
		Args: cobra.NoArgs,
		RunE: runBackup,
	}
}

// runBackup wires every component from the configuration and performs one run
func runBackup(cmd *cobra.Command, args []string) error {
	format, err := display.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if format != display.OutputText {
		cfg.Log.Output = os.Stderr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	dbService := database.NewService(cfg.Database, logger)
	exporter, err := export.NewExporter(cfg.Export, logger)
	if err != nil {
		return err
	}
	stage := export.NewStage(dbService, exporter, cfg.Export.Queries, logger)

	tokens := auth.NewTokenProvider(cfg.OAuth, logger)
	uploader := backup.NewOneDriveUploader(cfg.OneDrive, logger)

	mirrors, closer, err := backup.NewMirrorFactory(logger).Create(ctx, cfg.Mirrors, uploader.Folder())
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.WithFields(map[string]interface{}{
		"queries": len(stage.Queries()),
		"grant":   string(tokens.Grant()),
		"folder":  uploader.Folder(),
		"mirrors": len(mirrors),
	}).Debug("Run configured")

	opts := []backup.OrchestratorOption{backup.WithMirrors(mirrors...)}
	if notifier := backup.NewNotificationManager(logger, cfg.Notify); notifier.Enabled() {
		opts = append(opts, backup.WithNotifier(notifier))
	}

	report := backup.NewOrchestrator(stage, tokens, uploader, logger, opts...).Run(ctx)

	runErr := report.Error()
	if format == display.OutputText && runErr == nil && !logger.IsLevelEnabled(logging.LogLevelNormal) {
		return nil
	}
	printer := display.NewPrinter(cmd.OutOrStdout(), format, newColors())
	if err := printer.Report(report); err != nil {
		logger.Warnf("Failed to print run summary: %v", err)
	}
	return runErr
}
