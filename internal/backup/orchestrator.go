package backup

import (
	"context"
	"time"

	"github.com/google/uuid"

	"table-backup/internal/auth"
	"table-backup/internal/errors"
	"table-backup/internal/export"
	"table-backup/internal/logging"
)

// Orchestrator sequences export, authentication and upload for one run:
//
//	exporting -> authenticating -> uploading -> done
//
// with aborted reachable from every non-terminal state. Nothing is retried.
type Orchestrator struct {
	exporter Exporter
	tokens   TokenSource
	primary  TokenDestination
	mirrors  []Destination
	notifier Notifier
	logger   *logging.Logger
	newRunID func() string
	now      func() time.Time
}

// OrchestratorOption configures optional collaborators
type OrchestratorOption func(*Orchestrator)

// WithMirrors adds destinations attempted after the primary one
func WithMirrors(mirrors ...Destination) OrchestratorOption {
	return func(o *Orchestrator) {
		o.mirrors = append(o.mirrors, mirrors...)
	}
}

// WithNotifier sets the notifier told about every finished run
func WithNotifier(n Notifier) OrchestratorOption {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// WithRunIDGenerator replaces the uuid run id generator
func WithRunIDGenerator(fn func() string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.newRunID = fn
	}
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(exporter Exporter, tokens TokenSource, primary TokenDestination, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	o := &Orchestrator{
		exporter: exporter,
		tokens:   tokens,
		primary:  primary,
		logger:   logger,
		newRunID: uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type run struct {
	report *RunReport
	logger *logging.Logger
}

func (r *run) transition(to RunState) {
	r.logger.LogStateTransition(string(r.report.State), string(to))
	r.report.State = to
}

func (r *run) abort(err error) {
	r.report.AbortedIn = r.report.State
	r.report.Err = err
	r.logger.WithField("error_type", string(errors.GetErrorType(err))).
		Errorf("Backup aborted while %s: %v", r.report.State, err)
	r.transition(StateAborted)
}

// guard runs one stage, converting a panic into an unknown error
func guard(fn func() error) (err error) {
	defer errors.Recover(&err)
	return fn()
}

// Run executes exactly one backup run and returns its report. The report's
// Error method gives the outcome; Run itself never fails.
func (o *Orchestrator) Run(ctx context.Context) *RunReport {
	report := &RunReport{
		RunID:     o.newRunID(),
		StartedAt: o.now(),
	}
	r := &run{report: report, logger: o.logger.WithRunID(report.RunID)}
	r.logger.Info("Backup run started")

	o.execute(ctx, r)

	report.FinishedAt = o.now()
	o.finish(ctx, r)
	return report
}

func (o *Orchestrator) execute(ctx context.Context, r *run) {
	r.transition(StateExporting)
	var artifacts []*export.Artifact
	err := guard(func() error {
		var err error
		artifacts, err = o.exporter.Run(ctx)
		return err
	})
	if err != nil {
		r.abort(err)
		return
	}
	r.report.Artifacts = artifacts

	r.transition(StateAuthenticating)
	var token *auth.Token
	err = guard(func() error {
		var err error
		token, err = o.tokens.Token(ctx)
		return err
	})
	if err == nil && (token == nil || token.AccessToken == "") {
		err = errors.NewTokenError("no access token was returned", nil)
	}
	if err != nil {
		r.abort(err)
		return
	}

	r.transition(StateUploading)
	primary := o.primary.WithToken(token.AccessToken)
	for _, destination := range append([]Destination{primary}, o.mirrors...) {
		for _, artifact := range artifacts {
			r.report.Uploads = append(r.report.Uploads, o.upload(ctx, r, destination, artifact))
		}
	}

	r.transition(StateDone)
}

// upload attempts one artifact on one destination; its failure is terminal
// for that upload only.
func (o *Orchestrator) upload(ctx context.Context, r *run, destination Destination, artifact *export.Artifact) *UploadResult {
	var result *UploadResult
	err := guard(func() error {
		var err error
		result, err = destination.Upload(ctx, artifact)
		return err
	})
	if result == nil {
		result = &UploadResult{Destination: destination.Name(), Artifact: artifact.FileName}
	}
	if err != nil {
		result.Err = err
		r.logger.WithField("destination", destination.Name()).
			Warnf("Upload of %s failed, continuing with remaining uploads", artifact.FileName)
	}
	return result
}

func (o *Orchestrator) finish(ctx context.Context, r *run) {
	report := r.report
	fields := map[string]interface{}{
		"state":     string(report.State),
		"artifacts": len(report.Artifacts),
		"uploads":   len(report.Uploads),
		"failed":    len(report.FailedUploads()),
		"duration":  report.Duration().String(),
	}
	if report.Succeeded() {
		r.logger.WithFields(fields).Info("Backup run finished")
	} else {
		r.logger.WithFields(fields).Warn("Backup run finished with errors")
	}

	if o.notifier == nil {
		return
	}
	if err := guard(func() error { return o.notifier.Notify(ctx, report) }); err != nil {
		r.logger.Warnf("Failed to deliver run notification: %v", err)
	}
}
