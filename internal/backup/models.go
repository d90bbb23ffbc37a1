package backup

import (
	"net/url"
	"strings"
	"time"

	"table-backup/internal/errors"
	"table-backup/internal/export"
)

// RunState is a state of the backup orchestrator
type RunState string

const (
	StateExporting      RunState = "exporting"
	StateAuthenticating RunState = "authenticating"
	StateUploading      RunState = "uploading"
	StateDone           RunState = "done"
	StateAborted        RunState = "aborted"
)

// Terminal reports whether no further transition is possible
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// UploadTarget is the remote folder and file name of one upload
type UploadTarget struct {
	Folder string `json:"folder"`
	Name   string `json:"name"`
}

// Path returns folder/name with each segment path-escaped
func (t UploadTarget) Path() string {
	var segments []string
	for _, s := range strings.Split(strings.Trim(t.Folder, "/"), "/") {
		if s != "" {
			segments = append(segments, url.PathEscape(s))
		}
	}
	segments = append(segments, url.PathEscape(t.Name))
	return strings.Join(segments, "/")
}

// Key returns the unescaped object key used by the object-store mirrors
func (t UploadTarget) Key(prefix string) string {
	folder := strings.Trim(t.Folder, "/")
	if folder == "" {
		return prefix + t.Name
	}
	return prefix + folder + "/" + t.Name
}

// UploadResult records the outcome of uploading one artifact to one destination
type UploadResult struct {
	Destination string        `json:"destination"`
	Artifact    string        `json:"artifact"`
	Location    string        `json:"location,omitempty"`
	StatusCode  int           `json:"status_code,omitempty"`
	Size        int64         `json:"size"`
	Duration    time.Duration `json:"duration"`
	ItemID      string        `json:"item_id,omitempty"`
	WebURL      string        `json:"web_url,omitempty"`
	Err         error         `json:"-"`
}

// Succeeded reports whether the upload completed
func (r *UploadResult) Succeeded() bool {
	return r.Err == nil
}

// RunReport summarizes one orchestrated run
type RunReport struct {
	RunID      string             `json:"run_id"`
	State      RunState           `json:"state"`
	AbortedIn  RunState           `json:"aborted_in,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Artifacts  []*export.Artifact `json:"artifacts"`
	Uploads    []*UploadResult    `json:"uploads"`
	Err        error              `json:"-"`
}

// Duration returns the wall time of the run
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedUploads returns every upload that did not complete
func (r *RunReport) FailedUploads() []*UploadResult {
	var failed []*UploadResult
	for _, u := range r.Uploads {
		if !u.Succeeded() {
			failed = append(failed, u)
		}
	}
	return failed
}

// Error returns the error that decides the process outcome: the abort cause,
// or, for a run that reached done, the most significant upload failure.
// Upload errors outrank missing files.
func (r *RunReport) Error() error {
	if r.Err != nil {
		return r.Err
	}
	var first error
	for _, u := range r.FailedUploads() {
		if errors.IsType(u.Err, errors.ErrorTypeUpload) {
			return u.Err
		}
		if first == nil {
			first = u.Err
		}
	}
	return first
}

// Succeeded reports whether the run reached done with every upload complete
func (r *RunReport) Succeeded() bool {
	return r.State == StateDone && r.Error() == nil
}
