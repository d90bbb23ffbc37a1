package backup

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"table-backup/internal/errors"
	"table-backup/internal/export"
	"table-backup/internal/logging"
)

// AzureDestination mirrors artifacts into an Azure Blob Storage container
type AzureDestination struct {
	containerURL  azblob.ContainerURL
	containerName string
	prefix        string
	folder        string
	logger        *logging.Logger
}

// NewAzureDestination creates a new Azure Blob mirror
func NewAzureDestination(config *AzureConfig, folder string, logger *logging.Logger) (*AzureDestination, error) {
	if config == nil {
		return nil, errors.NewConfigurationError("Azure storage configuration is required", nil)
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, errors.NewConfigurationError("invalid Azure storage configuration", err)
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{
		Retry: azblob.RetryOptions{MaxTries: 1},
	})

	serviceURL, err := url.Parse(config.ServiceURL)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to parse Azure service URL", err)
	}

	return &AzureDestination{
		containerURL:  azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(config.Container),
		containerName: config.Container,
		prefix:        config.Prefix,
		folder:        folder,
		logger:        logger,
	}, nil
}

func (d *AzureDestination) Name() string {
	return "azure"
}

// Upload writes the artifact as a block blob at prefix/folder/name
func (d *AzureDestination) Upload(ctx context.Context, artifact *export.Artifact) (*UploadResult, error) {
	startTime := time.Now()
	blobName := UploadTarget{Folder: d.folder, Name: artifact.FileName}.Key(d.prefix)
	blobURL := d.containerURL.NewBlockBlobURL(blobName)
	result := &UploadResult{
		Destination: d.Name(),
		Artifact:    artifact.FileName,
		Location:    blobURL.String(),
	}

	err := d.put(ctx, artifact, blobURL, result)
	result.Duration = time.Since(startTime)
	result.Err = err
	d.logger.LogUpload(d.Name(), artifact.FileName, result.StatusCode, result.Size, result.Duration, err)
	return result, err
}

func (d *AzureDestination) put(ctx context.Context, artifact *export.Artifact, blobURL azblob.BlockBlobURL, result *UploadResult) error {
	file, info, err := openArtifact(artifact.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	result.Size = info.Size()

	resp, err := azblob.UploadFileToBlockBlob(ctx, file, blobURL, azblob.UploadToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: "application/octet-stream"},
		Metadata: azblob.Metadata{
			"query": artifact.Name,
			"rows":  fmt.Sprintf("%d", artifact.Rows),
		},
	})
	if err != nil {
		appErr := errors.NewUploadError(fmt.Sprintf("failed to upload %s to Azure", artifact.FileName), err).
			WithContext("destination", d.Name()).
			WithContext("container", d.containerName)
		if stgErr, ok := err.(azblob.StorageError); ok && stgErr.Response() != nil {
			result.StatusCode = stgErr.Response().StatusCode
			appErr = appErr.WithContext("status_code", result.StatusCode)
		}
		return appErr
	}
	if resp != nil && resp.Response() != nil {
		result.StatusCode = resp.Response().StatusCode
	}
	return nil
}
