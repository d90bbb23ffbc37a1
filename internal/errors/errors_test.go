package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"golang.org/x/oauth2"
)

func TestAppError(t *testing.T) {
	cause := errors.New("underlying error")
	appErr := NewAppError(ErrorTypeDatabase, "query failed", cause)

	if appErr.Type != ErrorTypeDatabase {
		t.Errorf("Expected type %v, got %v", ErrorTypeDatabase, appErr.Type)
	}

	if appErr.Cause != cause {
		t.Errorf("Expected cause %v, got %v", cause, appErr.Cause)
	}

	expectedError := "database: query failed (caused by: underlying error)"
	if appErr.Error() != expectedError {
		t.Errorf("Expected error string %v, got %v", expectedError, appErr.Error())
	}

	if !errors.Is(appErr, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
}

func TestAppErrorWithContext(t *testing.T) {
	appErr := NewUploadError("upload failed", nil)
	appErr.WithContext("status_code", 507).WithContext("file", "registros.csv")

	if appErr.Context["status_code"] != 507 {
		t.Errorf("Expected context status_code=507, got %v", appErr.Context["status_code"])
	}
	if appErr.Context["file"] != "registros.csv" {
		t.Errorf("Expected context file=registros.csv, got %v", appErr.Context["file"])
	}
}

func TestNewFileMissingError(t *testing.T) {
	appErr := NewFileMissingError("backup/demandas.csv", os.ErrNotExist)

	if appErr.Type != ErrorTypeFileMissing {
		t.Errorf("Expected type %v, got %v", ErrorTypeFileMissing, appErr.Type)
	}
	if appErr.Context["path"] != "backup/demandas.csv" {
		t.Errorf("Expected path context, got %v", appErr.Context["path"])
	}
}

func TestErrorClassifier_ClassifyMySQLError(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		name     string
		mysqlErr *mysql.MySQLError
		message  string
	}{
		{
			name:     "access denied",
			mysqlErr: &mysql.MySQLError{Number: 1045, Message: "Access denied"},
			message:  "database access denied - check username and password",
		},
		{
			name:     "table doesn't exist",
			mysqlErr: &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"},
			message:  "table does not exist",
		},
		{
			name:     "other",
			mysqlErr: &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"},
			message:  "MySQL error: Lock wait timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := classifier.ClassifyError(tt.mysqlErr)

			if appErr.Type != ErrorTypeDatabase {
				t.Errorf("Expected type %v, got %v", ErrorTypeDatabase, appErr.Type)
			}
			if appErr.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, appErr.Message)
			}
			if appErr.Context["mysql_error_code"] != tt.mysqlErr.Number {
				t.Errorf("Expected mysql_error_code=%v, got %v", tt.mysqlErr.Number, appErr.Context["mysql_error_code"])
			}
		})
	}
}

func TestErrorClassifier_ClassifyPostgresError(t *testing.T) {
	classifier := NewErrorClassifier()

	appErr := classifier.ClassifyError(&pq.Error{Code: "42P01", Message: "relation \"registros\" does not exist"})
	if appErr.Type != ErrorTypeDatabase {
		t.Errorf("Expected type %v, got %v", ErrorTypeDatabase, appErr.Type)
	}
	if appErr.Context["pq_error_code"] != "42P01" {
		t.Errorf("Expected pq_error_code=42P01, got %v", appErr.Context["pq_error_code"])
	}
}

func TestErrorClassifier_ClassifyTokenError(t *testing.T) {
	classifier := NewErrorClassifier()

	retrieveErr := &oauth2.RetrieveError{
		Response:         &http.Response{StatusCode: http.StatusBadRequest},
		ErrorCode:        "invalid_grant",
		ErrorDescription: "AADSTS70008: The refresh token has expired",
	}

	appErr := classifier.ClassifyError(fmt.Errorf("token request: %w", retrieveErr))
	if appErr.Type != ErrorTypeToken {
		t.Fatalf("Expected type %v, got %v", ErrorTypeToken, appErr.Type)
	}
	if appErr.Context["error"] != "invalid_grant" {
		t.Errorf("Expected error=invalid_grant, got %v", appErr.Context["error"])
	}
	if appErr.Context["status_code"] != http.StatusBadRequest {
		t.Errorf("Expected status_code=400, got %v", appErr.Context["status_code"])
	}
}

func TestErrorClassifier_ClassifyOtherErrors(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		name         string
		err          error
		expectedType ErrorType
	}{
		{"conn done", sql.ErrConnDone, ErrorTypeDatabase},
		{"not exist", &os.PathError{Op: "open", Path: "backup/x.csv", Err: os.ErrNotExist}, ErrorTypeFileMissing},
		{"deadline", context.DeadlineExceeded, ErrorTypeUnknown},
		{"generic", errors.New("boom"), ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := classifier.ClassifyError(tt.err)
			if appErr.Type != tt.expectedType {
				t.Errorf("Expected type %v, got %v", tt.expectedType, appErr.Type)
			}
		})
	}

	if classifier.ClassifyError(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestClassifyError_KeepsAppError(t *testing.T) {
	original := NewTokenError("rejected", nil)
	if got := NewErrorClassifier().ClassifyError(fmt.Errorf("wrapped: %w", original)); got != original {
		t.Errorf("Expected the wrapped AppError to be returned unchanged")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{NewConfigurationError("missing client id", nil), ExitConfiguration},
		{NewDatabaseError("unreachable", nil), ExitDatabase},
		{NewTokenError("invalid_grant", nil), ExitToken},
		{NewUploadError("507", nil), ExitUpload},
		{NewFileMissingError("x", nil), ExitFileMissing},
		{errors.New("boom"), ExitUnknown},
	}

	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "ignored") != nil {
		t.Error("Expected nil for nil error")
	}

	wrapped := WrapError(NewDatabaseError("query failed", nil), "export failed")
	if GetErrorType(wrapped) != ErrorTypeDatabase {
		t.Errorf("Expected database type to survive wrapping, got %v", GetErrorType(wrapped))
	}

	wrapped = WrapError(&mysql.MySQLError{Number: 1146, Message: "missing"}, "query registros")
	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("Expected AppError")
	}
	if appErr.Message != "query registros" {
		t.Errorf("Expected message to be replaced, got %q", appErr.Message)
	}
}

func TestFormatUserError(t *testing.T) {
	if FormatUserError(nil) != "" {
		t.Error("Expected empty string for nil")
	}

	appErr := NewTokenError("rejected", nil).WithUserMessage("Run `table-backup authorize` to mint a new refresh token")
	if FormatUserError(appErr) != "Run `table-backup authorize` to mint a new refresh token" {
		t.Errorf("Unexpected user message: %s", FormatUserError(appErr))
	}

	if FormatUserError(errors.New("x")) == "" {
		t.Error("Expected generic message for plain errors")
	}
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		panic("writer exploded")
	}

	err := run()
	if !IsType(err, ErrorTypeUnknown) {
		t.Fatalf("Expected unknown AppError, got %v", err)
	}
}
