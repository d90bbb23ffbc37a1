package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"table-backup/internal/errors"
	"table-backup/internal/logging"
)

// NotificationChannel delivers a run summary to one endpoint
type NotificationChannel interface {
	Send(ctx context.Context, message NotificationMessage) error
	GetType() string
}

// NotificationMessage is the channel-neutral summary of a run
type NotificationMessage struct {
	RunID      string             `json:"run_id"`
	State      RunState           `json:"state"`
	Success    bool               `json:"success"`
	Title      string             `json:"title"`
	Message    string             `json:"message"`
	ErrorType  string             `json:"error_type,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Artifacts  []string           `json:"artifacts"`
	Uploads    []NotificationFact `json:"uploads"`
	Color      string             `json:"-"`
}

// NotificationFact is one upload outcome line
type NotificationFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NotificationManager sends the run report to every configured channel
type NotificationManager struct {
	logger        *logging.Logger
	channels      []NotificationChannel
	onlyOnFailure bool
}

// NewNotificationManager creates a notifier from the notification settings
func NewNotificationManager(logger *logging.Logger, config NotifyConfig) *NotificationManager {
	config.SetDefaults()
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	nm := &NotificationManager{
		logger:        logger,
		onlyOnFailure: config.OnlyOnFailure,
	}
	client := &http.Client{Timeout: config.Timeout}
	if config.WebhookURL != "" {
		nm.channels = append(nm.channels, &WebhookChannel{url: config.WebhookURL, client: client})
	}
	if config.TeamsWebhookURL != "" {
		nm.channels = append(nm.channels, &TeamsChannel{url: config.TeamsWebhookURL, client: client})
	}
	return nm
}

// Enabled reports whether any channel is configured
func (nm *NotificationManager) Enabled() bool {
	return len(nm.channels) > 0
}

// Notify sends the report to every channel; every channel is attempted and
// the first failure is returned.
func (nm *NotificationManager) Notify(ctx context.Context, report *RunReport) error {
	if report == nil || !nm.Enabled() {
		return nil
	}
	if nm.onlyOnFailure && report.Succeeded() {
		return nil
	}

	message := formatMessage(report)
	var first error
	for _, channel := range nm.channels {
		if err := channel.Send(ctx, message); err != nil {
			nm.logger.WithField("channel", channel.GetType()).Warnf("Failed to send notification: %v", err)
			if first == nil {
				first = err
			}
			continue
		}
		nm.logger.WithField("channel", channel.GetType()).Debug("Notification sent")
	}
	return first
}

func formatMessage(report *RunReport) NotificationMessage {
	message := NotificationMessage{
		RunID:      report.RunID,
		State:      report.State,
		Success:    report.Succeeded(),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		DurationMS: report.Duration().Milliseconds(),
	}

	for _, a := range report.Artifacts {
		message.Artifacts = append(message.Artifacts, a.FileName)
	}
	for _, u := range report.Uploads {
		value := "ok"
		if u.Err != nil {
			value = summarizeError(u.Err)
		}
		message.Uploads = append(message.Uploads, NotificationFact{
			Name:  u.Destination + ": " + u.Artifact,
			Value: value,
		})
	}

	switch {
	case message.Success:
		message.Title = "Table backup completed"
		message.Message = fmt.Sprintf("%d artifacts uploaded", len(report.Artifacts))
		message.Color = "2EB886"
	case report.State == StateAborted:
		message.Title = "Table backup aborted"
		message.Message = fmt.Sprintf("Run aborted while %s: %s", report.AbortedIn, summarizeError(report.Err))
		message.ErrorType = string(errors.GetErrorType(report.Err))
		message.Color = "D00000"
	default:
		failed := report.FailedUploads()
		message.Title = "Table backup completed with failures"
		message.Message = fmt.Sprintf("%d of %d uploads failed", len(failed), len(report.Uploads))
		message.ErrorType = string(errors.GetErrorType(report.Error()))
		message.Color = "DAA038"
	}
	return message
}

// maxNotificationError bounds the error text of one fact; a Graph error
// body can run to kilobytes
const maxNotificationError = 200

// summarizeError returns the first line of an error, cut to
// maxNotificationError runes
func summarizeError(err error) string {
	if err == nil {
		return ""
	}
	text := strings.TrimSpace(err.Error())
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	if runes := []rune(text); len(runes) > maxNotificationError {
		text = string(runes[:maxNotificationError]) + "..."
	}
	return text
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned error status: %d", resp.StatusCode)
	}
	return nil
}

// WebhookChannel posts the message as JSON
type WebhookChannel struct {
	url    string
	client *http.Client
}

func (wc *WebhookChannel) Send(ctx context.Context, message NotificationMessage) error {
	if err := postJSON(ctx, wc.client, wc.url, message); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

func (wc *WebhookChannel) GetType() string {
	return "webhook"
}

// TeamsChannel posts the message as a Microsoft Teams MessageCard
type TeamsChannel struct {
	url    string
	client *http.Client
}

func (tc *TeamsChannel) Send(ctx context.Context, message NotificationMessage) error {
	facts := []map[string]interface{}{
		{"name": "Run ID", "value": message.RunID},
		{"name": "State", "value": string(message.State)},
		{"name": "Duration", "value": (time.Duration(message.DurationMS) * time.Millisecond).String()},
	}
	if len(message.Artifacts) > 0 {
		facts = append(facts, map[string]interface{}{"name": "Artifacts", "value": strings.Join(message.Artifacts, ", ")})
	}
	for _, u := range message.Uploads {
		facts = append(facts, map[string]interface{}{"name": u.Name, "value": u.Value})
	}

	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"summary":    message.Title,
		"themeColor": message.Color,
		"sections": []map[string]interface{}{
			{
				"activityTitle":    message.Title,
				"activitySubtitle": message.FinishedAt.Format(time.RFC3339),
				"text":             message.Message,
				"facts":            facts,
			},
		},
	}

	if err := postJSON(ctx, tc.client, tc.url, payload); err != nil {
		return fmt.Errorf("teams: %w", err)
	}
	return nil
}

func (tc *TeamsChannel) GetType() string {
	return "teams"
}
