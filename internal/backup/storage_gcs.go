package backup

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"table-backup/internal/errors"
	"table-backup/internal/export"
	"table-backup/internal/logging"
)

// objectWriterFunc opens a writer for one object in a bucket
type objectWriterFunc func(ctx context.Context, bucket, name string) io.WriteCloser

// GCSDestination mirrors artifacts into a Google Cloud Storage bucket
type GCSDestination struct {
	client     *storage.Client
	newWriter  objectWriterFunc
	bucketName string
	prefix     string
	folder     string
	logger     *logging.Logger
}

// NewGCSDestination creates a new GCS mirror
func NewGCSDestination(ctx context.Context, config *GCSConfig, folder string, logger *logging.Logger) (*GCSDestination, error) {
	if config == nil {
		return nil, errors.NewConfigurationError("GCS storage configuration is required", nil)
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, errors.NewConfigurationError("invalid GCS storage configuration", err)
	}

	var client *storage.Client
	var err error
	if config.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		// Application default credentials
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, errors.NewConfigurationError("failed to create GCS client", err)
	}

	d := newGCSDestination(func(ctx context.Context, bucket, name string) io.WriteCloser {
		w := client.Bucket(bucket).Object(name).NewWriter(ctx)
		w.ContentType = "application/octet-stream"
		return w
	}, config, folder, logger)
	d.client = client
	return d, nil
}

func newGCSDestination(fn objectWriterFunc, config *GCSConfig, folder string, logger *logging.Logger) *GCSDestination {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &GCSDestination{
		newWriter:  fn,
		bucketName: config.Bucket,
		prefix:     config.Prefix,
		folder:     folder,
		logger:     logger,
	}
}

func (d *GCSDestination) Name() string {
	return "gcs"
}

// Upload streams the artifact to prefix/folder/name
func (d *GCSDestination) Upload(ctx context.Context, artifact *export.Artifact) (*UploadResult, error) {
	startTime := time.Now()
	object := UploadTarget{Folder: d.folder, Name: artifact.FileName}.Key(d.prefix)
	result := &UploadResult{
		Destination: d.Name(),
		Artifact:    artifact.FileName,
		Location:    fmt.Sprintf("gs://%s/%s", d.bucketName, object),
	}

	err := d.write(ctx, artifact, object, result)
	result.Duration = time.Since(startTime)
	result.Err = err
	d.logger.LogUpload(d.Name(), artifact.FileName, result.StatusCode, result.Size, result.Duration, err)
	return result, err
}

func (d *GCSDestination) write(ctx context.Context, artifact *export.Artifact, object string, result *UploadResult) error {
	file, info, err := openArtifact(artifact.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	result.Size = info.Size()

	// Cancelling the context aborts the object on a failed copy
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := d.newWriter(ctx, d.bucketName, object)
	if _, err := io.Copy(w, file); err != nil {
		cancel()
		w.Close()
		return errors.NewUploadError(fmt.Sprintf("failed to upload %s to GCS", artifact.FileName), err).
			WithContext("destination", d.Name())
	}
	if err := w.Close(); err != nil {
		return errors.NewUploadError(fmt.Sprintf("failed to finalize %s in GCS", artifact.FileName), err).
			WithContext("destination", d.Name())
	}
	return nil
}

// Close releases the GCS client
func (d *GCSDestination) Close() error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}
