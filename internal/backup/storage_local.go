package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"table-backup/internal/errors"
	"table-backup/internal/export"
	"table-backup/internal/logging"
)

// LocalDestination mirrors artifacts into a directory on a mounted file
// system, such as a NAS share
type LocalDestination struct {
	basePath    string
	folder      string
	permissions os.FileMode
	logger      *logging.Logger
}

// NewLocalDestination creates a new local mirror and makes sure its base
// directory exists
func NewLocalDestination(config *LocalConfig, folder string, logger *logging.Logger) (*LocalDestination, error) {
	if config == nil {
		return nil, errors.NewConfigurationError("local mirror configuration is required", nil)
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, errors.NewConfigurationError("invalid local mirror configuration", err)
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	d := &LocalDestination{
		basePath:    config.Directory,
		folder:      folder,
		permissions: 0o755,
		logger:      logger,
	}
	if err := os.MkdirAll(d.basePath, d.permissions); err != nil {
		return nil, errors.NewConfigurationError("failed to create local mirror directory", err).
			WithContext("path", d.basePath)
	}
	return d, nil
}

func (d *LocalDestination) Name() string {
	return "local"
}

// Upload copies the artifact to base/folder/name, replacing any earlier copy
func (d *LocalDestination) Upload(ctx context.Context, artifact *export.Artifact) (*UploadResult, error) {
	startTime := time.Now()
	target := d.targetPath(artifact.FileName)
	result := &UploadResult{
		Destination: d.Name(),
		Artifact:    artifact.FileName,
		Location:    target,
	}

	err := d.copy(ctx, artifact, target, result)
	result.Duration = time.Since(startTime)
	result.Err = err
	d.logger.LogUpload(d.Name(), artifact.FileName, result.StatusCode, result.Size, result.Duration, err)
	return result, err
}

func (d *LocalDestination) copy(ctx context.Context, artifact *export.Artifact, target string, result *UploadResult) error {
	file, info, err := openArtifact(artifact.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	result.Size = info.Size()

	if err := ctx.Err(); err != nil {
		return errors.NewUploadError("upload cancelled", err).WithContext("destination", d.Name())
	}

	if err := os.MkdirAll(filepath.Dir(target), d.permissions); err != nil {
		return d.uploadError("failed to create directory for %s", artifact.FileName, err)
	}

	// Write next to the target and rename so a reader never sees a partial copy
	tmp := target + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return d.uploadError("failed to create copy of %s", artifact.FileName, err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(tmp)
		return d.uploadError("failed to copy %s", artifact.FileName, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return d.uploadError("failed to finalize copy of %s", artifact.FileName, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return d.uploadError("failed to move copy of %s into place", artifact.FileName, err)
	}
	return nil
}

func (d *LocalDestination) uploadError(format, name string, err error) error {
	return errors.NewUploadError(fmt.Sprintf(format, name), err).WithContext("destination", d.Name())
}

// targetPath joins the sanitized folder segments and file name under the base
// directory
func (d *LocalDestination) targetPath(name string) string {
	parts := []string{d.basePath}
	for _, s := range strings.Split(strings.Trim(d.folder, "/"), "/") {
		if s != "" {
			parts = append(parts, sanitizeSegment(s))
		}
	}
	return filepath.Join(append(parts, sanitizeSegment(name))...)
}

// sanitizeSegment removes path separators and parent references so that a
// name cannot escape the base directory
func sanitizeSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return strings.ReplaceAll(s, "..", "_")
}
