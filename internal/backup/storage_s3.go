package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"table-backup/internal/errors"
	"table-backup/internal/export"
	"table-backup/internal/logging"
)

// S3Destination mirrors artifacts into an S3 bucket
type S3Destination struct {
	client s3iface.S3API
	bucket string
	prefix string
	folder string
	logger *logging.Logger
}

// NewS3Destination creates a new S3 mirror
func NewS3Destination(config *S3Config, folder string, logger *logging.Logger) (*S3Destination, error) {
	if config == nil {
		return nil, errors.NewConfigurationError("S3 storage configuration is required", nil)
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, errors.NewConfigurationError("invalid S3 storage configuration", err)
	}

	awsConfig := &aws.Config{Region: aws.String(config.Region)}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to create AWS session", err)
	}

	return newS3Destination(s3.New(sess), config, folder, logger), nil
}

func newS3Destination(client s3iface.S3API, config *S3Config, folder string, logger *logging.Logger) *S3Destination {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &S3Destination{
		client: client,
		bucket: config.Bucket,
		prefix: config.Prefix,
		folder: folder,
		logger: logger,
	}
}

func (d *S3Destination) Name() string {
	return "s3"
}

// Upload puts the artifact under prefix/folder/name
func (d *S3Destination) Upload(ctx context.Context, artifact *export.Artifact) (*UploadResult, error) {
	startTime := time.Now()
	key := UploadTarget{Folder: d.folder, Name: artifact.FileName}.Key(d.prefix)
	result := &UploadResult{
		Destination: d.Name(),
		Artifact:    artifact.FileName,
		Location:    fmt.Sprintf("s3://%s/%s", d.bucket, key),
	}

	err := d.put(ctx, artifact, key, result)
	result.Duration = time.Since(startTime)
	result.Err = err
	d.logger.LogUpload(d.Name(), artifact.FileName, result.StatusCode, result.Size, result.Duration, err)
	return result, err
}

func (d *S3Destination) put(ctx context.Context, artifact *export.Artifact, key string, result *UploadResult) error {
	file, info, err := openArtifact(artifact.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	result.Size = info.Size()

	_, err = d.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/octet-stream"),
		Metadata: map[string]*string{
			"query": aws.String(artifact.Name),
			"rows":  aws.String(fmt.Sprintf("%d", artifact.Rows)),
		},
	})
	if err != nil {
		return errors.NewUploadError(fmt.Sprintf("failed to upload %s to S3", artifact.FileName), err).
			WithContext("destination", d.Name()).
			WithContext("bucket", d.bucket)
	}
	return nil
}
