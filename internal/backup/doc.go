// Package backup runs one scheduled table backup: export the configured
// queries, obtain an access token, and upload every artifact to OneDrive and
// to any configured mirror.
//
// Core Components:
//
// - Orchestrator: drives exporting -> authenticating -> uploading -> done,
// aborting on an export or token failure
// - OneDriveUploader: Graph simple-upload PUT of one local file
// - S3Destination, GCSDestination, AzureDestination, LocalDestination: optional mirrors
// - NotificationManager: posts the run report to a webhook or Teams
//
// An individual upload failure never aborts the run; it is recorded in the
// RunReport and decides the process exit status.
//
// Example usage:
//
//	uploader := backup.NewOneDriveUploader(cfg.OneDrive, logger)
//	orchestrator := backup.NewOrchestrator(stage, tokenProvider, uploader, logger,
//		backup.WithMirrors(mirrors...),
//		backup.WithNotifier(backup.NewNotificationManager(logger, cfg.Notify)),
//	)
//	report := orchestrator.Run(ctx)
//	if err := report.Error(); err != nil {
//		os.Exit(errors.ExitCode(err))
//	}
package backup
