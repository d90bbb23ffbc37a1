package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"table-backup/internal/errors"
	"table-backup/internal/export"
	"table-backup/internal/logging"
)

const maxErrorBody = 64 << 10

// driveItem is the subset of the Graph driveItem resource returned by an upload
type driveItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	WebURL string `json:"webUrl"`
}

// OneDriveUploader streams files to OneDrive with the Graph simple-upload API
type OneDriveUploader struct {
	config OneDriveConfig
	client *http.Client
	logger *logging.Logger
}

// NewOneDriveUploader creates an uploader for the configured drive and folder
func NewOneDriveUploader(config OneDriveConfig, logger *logging.Logger) *OneDriveUploader {
	config.SetDefaults()
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &OneDriveUploader{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// WithHTTPClient replaces the client used for uploads
func (u *OneDriveUploader) WithHTTPClient(client *http.Client) *OneDriveUploader {
	u.client = client
	return u
}

// Name returns the destination name
func (u *OneDriveUploader) Name() string {
	return "onedrive"
}

// Folder returns the remote folder artifacts are uploaded into
func (u *OneDriveUploader) Folder() string {
	return u.config.Folder
}

// UploadURL returns the content endpoint for a target
func (u *OneDriveUploader) UploadURL(target UploadTarget) string {
	drive := "/me"
	if u.config.User != "" {
		drive = "/users/" + url.PathEscape(u.config.User)
	}
	return u.config.GraphURL + drive + "/drive/root:/" + target.Path() + ":/content"
}

// UploadFile PUTs the raw bytes of localPath to target. A missing local file
// fails without any request; a 4xx or 5xx response is an upload error carrying
// the response body. There is no retry.
func (u *OneDriveUploader) UploadFile(ctx context.Context, token, localPath string, target UploadTarget) (*UploadResult, error) {
	startTime := time.Now()
	result := &UploadResult{
		Destination: u.Name(),
		Artifact:    target.Name,
		Location:    target.Folder + "/" + target.Name,
	}

	err := u.upload(ctx, token, localPath, target, result)
	result.Duration = time.Since(startTime)
	result.Err = err

	u.logger.LogUpload(u.Name(), target.Name, result.StatusCode, result.Size, result.Duration, err)
	if err != nil {
		return result, err
	}
	return result, nil
}

func (u *OneDriveUploader) upload(ctx context.Context, token, localPath string, target UploadTarget, result *UploadResult) error {
	file, info, err := openArtifact(localPath)
	if err != nil {
		return err
	}
	defer file.Close()
	result.Size = info.Size()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.UploadURL(target), file)
	if err != nil {
		return errors.NewUploadError("failed to create upload request", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := u.client.Do(req)
	if err != nil {
		return errors.NewUploadError(fmt.Sprintf("failed to upload %s", target.Name), err).
			WithContext("destination", u.Name())
	}
	defer resp.Body.Close()
	result.StatusCode = resp.StatusCode

	// Graph answers a content PUT with 200 or 201; anything outside 2xx left
	// nothing stored
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		body := strings.TrimSpace(string(raw))
		message := fmt.Sprintf("upload of %s failed with status %d", target.Name, resp.StatusCode)
		if body != "" {
			message += ": " + body
		}
		return errors.NewUploadError(message, nil).
			WithContext("destination", u.Name()).
			WithContext("status_code", resp.StatusCode).
			WithContext("response_body", body)
	}

	var item driveItem
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&item); err == nil {
		result.ItemID = item.ID
		result.WebURL = item.WebURL
	}
	return nil
}

// WithToken binds the run's access token
func (u *OneDriveUploader) WithToken(token string) Destination {
	return &boundOneDrive{uploader: u, token: token}
}

type boundOneDrive struct {
	uploader *OneDriveUploader
	token    string
}

func (b *boundOneDrive) Name() string {
	return b.uploader.Name()
}

func (b *boundOneDrive) Upload(ctx context.Context, artifact *export.Artifact) (*UploadResult, error) {
	target := UploadTarget{Folder: b.uploader.Folder(), Name: artifact.FileName}
	return b.uploader.UploadFile(ctx, b.token, artifact.Path, target)
}
