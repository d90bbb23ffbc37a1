package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"golang.org/x/oauth2"
)

// ErrorType represents the failure class of a backup run
type ErrorType string

const (
	// ErrorTypeConfiguration represents a required identifier or secret that is absent
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeDatabase represents connection or query failures
	ErrorTypeDatabase ErrorType = "database"
	// ErrorTypeToken represents an identity provider rejecting the credential
	ErrorTypeToken ErrorType = "token"
	// ErrorTypeUpload represents a non-2xx response from a storage endpoint
	ErrorTypeUpload ErrorType = "upload"
	// ErrorTypeFileMissing represents a local artifact absent at upload time
	ErrorTypeFileMissing ErrorType = "file_missing"
	// ErrorTypeUnknown represents unexpected failures from underlying libraries
	ErrorTypeUnknown ErrorType = "unknown"
)

// Process exit codes, one per failure class.
const (
	ExitOK            = 0
	ExitUnknown       = 1
	ExitConfiguration = 2
	ExitDatabase      = 3
	ExitToken         = 4
	ExitUpload        = 5
	ExitFileMissing   = 6
)

// AppError represents an application-specific error with context
type AppError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Context     map[string]interface{}
	UserMessage string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets the message shown to the operator
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewConfigurationError creates a configuration-missing error
func NewConfigurationError(message string, cause error) *AppError {
	return NewAppError(ErrorTypeConfiguration, message, cause)
}

// NewDatabaseError creates a database error
func NewDatabaseError(message string, cause error) *AppError {
	return NewAppError(ErrorTypeDatabase, message, cause)
}

// NewTokenError creates a token error
func NewTokenError(message string, cause error) *AppError {
	return NewAppError(ErrorTypeToken, message, cause)
}

// NewUploadError creates an upload error
func NewUploadError(message string, cause error) *AppError {
	return NewAppError(ErrorTypeUpload, message, cause)
}

// NewFileMissingError creates a file-missing error for the given path
func NewFileMissingError(path string, cause error) *AppError {
	return NewAppError(ErrorTypeFileMissing, fmt.Sprintf("file %s not found", path), cause).
		WithContext("path", path)
}

// ErrorClassifier maps library errors onto the backup failure taxonomy
type ErrorClassifier struct{}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError analyzes an error and returns an AppError with appropriate classification
func (ec *ErrorClassifier) ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if dbErr := ec.classifyDatabaseError(err); dbErr != nil {
		return dbErr
	}

	if tokenErr := ec.classifyTokenError(err); tokenErr != nil {
		return tokenErr
	}

	if errors.Is(err, fs.ErrNotExist) {
		return NewAppError(ErrorTypeFileMissing, "file not found", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewAppError(ErrorTypeUnknown, "operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewAppError(ErrorTypeUnknown, "operation was canceled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewAppError(ErrorTypeUnknown, "network error", err)
	}

	return NewAppError(ErrorTypeUnknown, "an unexpected error occurred", err)
}

// classifyDatabaseError classifies driver-specific errors
func (ec *ErrorClassifier) classifyDatabaseError(err error) *AppError {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		var msg string
		switch mysqlErr.Number {
		case 1045:
			msg = "database access denied - check username and password"
		case 1049:
			msg = "database does not exist"
		case 1146:
			msg = "table does not exist"
		case 1064:
			msg = "SQL syntax error"
		default:
			msg = fmt.Sprintf("MySQL error: %s", mysqlErr.Message)
		}
		return NewDatabaseError(msg, err).WithContext("mysql_error_code", mysqlErr.Number)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return NewDatabaseError(fmt.Sprintf("PostgreSQL error: %s", pqErr.Message), err).
			WithContext("pq_error_code", string(pqErr.Code))
	}

	if errors.Is(err, sql.ErrConnDone) {
		return NewDatabaseError("database connection is closed", err)
	}

	return nil
}

// classifyTokenError classifies errors returned by the OAuth2 token endpoint
func (ec *ErrorClassifier) classifyTokenError(err error) *AppError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		appErr := NewTokenError("identity provider rejected the credential", err)
		if retrieveErr.ErrorCode != "" {
			appErr.WithContext("error", retrieveErr.ErrorCode)
		}
		if retrieveErr.ErrorDescription != "" {
			appErr.WithContext("error_description", retrieveErr.ErrorDescription)
		}
		if retrieveErr.Response != nil {
			appErr.WithContext("status_code", retrieveErr.Response.StatusCode)
		}
		return appErr
	}
	return nil
}

// GetErrorType returns the error type of an error
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	return err != nil && GetErrorType(err) == errorType
}

// ExitCode returns the process exit status for an error
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch GetErrorType(err) {
	case ErrorTypeConfiguration:
		return ExitConfiguration
	case ErrorTypeDatabase:
		return ExitDatabase
	case ErrorTypeToken:
		return ExitToken
	case ErrorTypeUpload:
		return ExitUpload
	case ErrorTypeFileMissing:
		return ExitFileMissing
	default:
		return ExitUnknown
	}
}

// FormatUserError formats an error for display to users
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.GetUserMessage()
	}

	return "An unexpected error occurred. Please check the logs for more details."
}

// WrapError wraps an existing error with additional context, keeping its class
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return NewAppError(appErr.Type, message, err)
	}

	classified := NewErrorClassifier().ClassifyError(err)
	classified.Message = message
	return classified
}

// Recover converts a panic value into an unknown AppError. Use in a deferred call:
//
//	defer errors.Recover(&err)
func Recover(errp *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*errp = NewAppError(ErrorTypeUnknown, "unexpected panic", e)
			return
		}
		*errp = NewAppError(ErrorTypeUnknown, fmt.Sprintf("unexpected panic: %v", r), nil)
	}
}
