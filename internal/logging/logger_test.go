package logging

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newBufferLogger(t *testing.T, level LogLevel) (*Logger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	logger, err := NewLogger(Config{
		Level:  level,
		Output: &buf,
		Format: "text",
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	return logger, &buf
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   LogLevel
	}{
		{
			name:   "default config",
			config: Config{Level: LogLevelNormal, Format: "text"},
			want:   LogLevelNormal,
		},
		{
			name:   "verbose json config",
			config: Config{Level: LogLevelVerbose, Format: "json"},
			want:   LogLevelVerbose,
		},
		{
			name:   "quiet config",
			config: Config{Level: LogLevelQuiet, Format: "text"},
			want:   LogLevelQuiet,
		},
		{
			name:   "empty level",
			config: Config{},
			want:   LogLevelNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.config.Output = &buf

			logger, err := NewLogger(tt.config)
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}

			if logger.GetLevel() != tt.want {
				t.Errorf("NewLogger() level = %v, want %v", logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"quiet", "normal", "verbose", "debug"} {
		level, err := ParseLevel(s)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", s, err)
		}
		if string(level) != s {
			t.Errorf("ParseLevel(%q) = %v", s, level)
		}
	}

	if level, err := ParseLevel(""); err != nil || level != LogLevelNormal {
		t.Errorf("ParseLevel(\"\") = %v, %v; want normal", level, err)
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.log")

	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf, LogFile: path})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info("written twice")

	if !strings.Contains(buf.String(), "written twice") {
		t.Errorf("Expected message on output, got: %s", buf.String())
	}
}

func TestLogFile_InvalidPath(t *testing.T) {
	_, err := NewLogger(Config{LogFile: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	if err == nil {
		t.Error("Expected error for unwritable log file")
	}
}

func TestWithRunID(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelNormal)

	logger.WithRunID("run-123").Info("starting backup")

	output := buf.String()
	if !strings.Contains(output, "run_id=run-123") {
		t.Errorf("Expected run_id field, got: %s", output)
	}

	buf.Reset()
	logger.Info("parent logger")
	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("Parent logger must not carry run_id, got: %s", buf.String())
	}
}

func TestLoggerWithFields(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelVerbose)

	logger.WithFields(map[string]interface{}{
		"test_field": "test_value",
		"number":     42,
	}).Info("test message")

	output := buf.String()
	if !strings.Contains(output, "test_field=test_value") {
		t.Errorf("Expected output to contain test_field=test_value, got: %s", output)
	}
	if !strings.Contains(output, "number=42") {
		t.Errorf("Expected output to contain number=42, got: %s", output)
	}
}

func TestLogDatabaseConnection(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelVerbose)

	logger.LogDatabaseConnection("mysql", "localhost", "app", 100*time.Millisecond, nil)
	output := buf.String()
	if !strings.Contains(output, "Database connection established") {
		t.Errorf("Expected success message, got: %s", output)
	}
	if !strings.Contains(output, "host=localhost") {
		t.Errorf("Expected host=localhost, got: %s", output)
	}

	buf.Reset()

	logger.LogDatabaseConnection("mysql", "localhost", "app", 5*time.Second, errors.New("connection refused"))
	output = buf.String()
	if !strings.Contains(output, "Database connection failed") {
		t.Errorf("Expected failure message, got: %s", output)
	}
	if !strings.Contains(output, "connection refused") {
		t.Errorf("Expected error message, got: %s", output)
	}
}

func TestLogQueryExport(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelNormal)

	logger.LogQueryExport("registros", "backup/registros.csv", 12, time.Millisecond, nil)
	output := buf.String()
	if !strings.Contains(output, "Query exported") || !strings.Contains(output, "rows=12") {
		t.Errorf("Expected export message with rows, got: %s", output)
	}

	buf.Reset()
	logger.LogQueryExport("demandas", "", 0, time.Millisecond, errors.New("table missing"))
	if !strings.Contains(buf.String(), "Query export failed") {
		t.Errorf("Expected failure message, got: %s", buf.String())
	}
}

func TestLogTokenRequest(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelNormal)

	logger.LogTokenRequest("refresh_token", time.Millisecond, "invalid_grant", "token expired", errors.New("rejected"))

	output := buf.String()
	if !strings.Contains(output, "error_code=invalid_grant") {
		t.Errorf("Expected error_code field, got: %s", output)
	}
	if !strings.Contains(output, "token expired") {
		t.Errorf("Expected error description, got: %s", output)
	}
}

func TestLogUpload(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelNormal)

	logger.LogUpload("onedrive", "registros.csv", 507, 0, time.Millisecond, errors.New("insufficient storage"))

	output := buf.String()
	if !strings.Contains(output, "Upload failed") || !strings.Contains(output, "status_code=507") {
		t.Errorf("Expected failed upload with status code, got: %s", output)
	}
}

func TestQuietLevelSuppressesInfo(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelQuiet)

	logger.Info("hidden")
	logger.Error("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("Info must be suppressed at quiet level, got: %s", output)
	}
	if !strings.Contains(output, "shown") {
		t.Errorf("Errors must be shown at quiet level, got: %s", output)
	}
}

func TestSetLevel(t *testing.T) {
	logger, _ := newBufferLogger(t, LogLevelNormal)

	if logger.IsLevelEnabled(LogLevelVerbose) {
		t.Error("Verbose should not be enabled at normal level")
	}

	logger.SetLevel(LogLevelDebug)
	if !logger.IsLevelEnabled(LogLevelDebug) {
		t.Error("Debug should be enabled after SetLevel")
	}
}

func TestLogOperationStart(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelVerbose)

	done := logger.LogOperationStart("export", map[string]interface{}{"queries": 2})
	if !strings.Contains(buf.String(), "Operation started") {
		t.Errorf("Expected start message, got: %s", buf.String())
	}

	buf.Reset()
	done(nil)
	if !strings.Contains(buf.String(), "Operation completed") {
		t.Errorf("Expected completion message, got: %s", buf.String())
	}

	buf.Reset()
	logger.LogOperationStart("upload", nil)(errors.New("boom"))
	if !strings.Contains(buf.String(), "Operation failed") {
		t.Errorf("Expected failure message, got: %s", buf.String())
	}
}
