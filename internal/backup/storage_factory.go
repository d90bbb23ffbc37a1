package backup

import (
	"context"
	"io"
	"os"

	"table-backup/internal/errors"
	"table-backup/internal/logging"
)

// openArtifact opens a local artifact for upload. A missing file is reported
// as file-missing so it is never confused with a transport failure.
func openArtifact(path string) (*os.File, os.FileInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NewFileMissingError(path, err)
		}
		return nil, nil, errors.NewAppError(errors.ErrorTypeUnknown, "failed to open artifact", err).
			WithContext("path", path)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, errors.NewAppError(errors.ErrorTypeUnknown, "failed to stat artifact", err).
			WithContext("path", path)
	}
	return file, info, nil
}

// MirrorFactory creates the configured mirror destinations
type MirrorFactory struct {
	logger *logging.Logger
}

// NewMirrorFactory creates a new mirror factory
func NewMirrorFactory(logger *logging.Logger) *MirrorFactory {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &MirrorFactory{logger: logger}
}

// Create builds one destination per configured mirror, in S3, GCS, Azure,
// local order. The returned closer releases any client that holds resources.
func (mf *MirrorFactory) Create(ctx context.Context, config MirrorsConfig, folder string) ([]Destination, io.Closer, error) {
	var destinations []Destination
	closers := &multiCloser{}

	if config.S3 != nil {
		d, err := NewS3Destination(config.S3, folder, mf.logger)
		if err != nil {
			return nil, nil, err
		}
		destinations = append(destinations, d)
	}

	if config.GCS != nil {
		d, err := NewGCSDestination(ctx, config.GCS, folder, mf.logger)
		if err != nil {
			closers.Close()
			return nil, nil, err
		}
		destinations = append(destinations, d)
		closers.closers = append(closers.closers, d)
	}

	if config.Azure != nil {
		d, err := NewAzureDestination(config.Azure, folder, mf.logger)
		if err != nil {
			closers.Close()
			return nil, nil, err
		}
		destinations = append(destinations, d)
	}

	if config.Local != nil {
		d, err := NewLocalDestination(config.Local, folder, mf.logger)
		if err != nil {
			closers.Close()
			return nil, nil, err
		}
		destinations = append(destinations, d)
	}

	for _, d := range destinations {
		mf.logger.WithField("destination", d.Name()).Debug("Mirror destination configured")
	}
	return destinations, closers, nil
}

type multiCloser struct {
	closers []io.Closer
}

func (mc *multiCloser) Close() error {
	var first error
	for _, c := range mc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
