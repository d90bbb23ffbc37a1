package export

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"table-backup/internal/errors"
	"table-backup/internal/logging"
)

// Exporter materializes query results as local artifact files
type Exporter struct {
	directory  string
	writer     Writer
	compressor Compressor
	encryptor  *Encryptor
	logger     *logging.Logger
}

// NewExporter creates an exporter from the export configuration
func NewExporter(config Config, logger *logging.Logger) (*Exporter, error) {
	config.SetDefaults()
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	writer, err := NewWriter(config.Format)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid export format", err)
	}
	compressor, err := NewCompressor(config.Compression)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid export compression", err)
	}

	var encryptor *Encryptor
	if config.Encryption.Enabled {
		encryptor, err = NewEncryptor(config.Encryption.Passphrase)
		if err != nil {
			return nil, errors.NewConfigurationError("encryption key is missing", err).
				WithContext("env_var", config.Encryption.KeyEnvVar)
		}
	}

	return &Exporter{
		directory:  config.Directory,
		writer:     writer,
		compressor: compressor,
		encryptor:  encryptor,
		logger:     logger,
	}, nil
}

// FileName returns the artifact file name produced for a query
func (e *Exporter) FileName(query Query) string {
	name := query.Name + e.writer.Extension() + e.compressor.Extension()
	if e.encryptor != nil {
		name += e.encryptor.Extension()
	}
	return name
}

// Export runs every query in order and writes one artifact per query.
// The first failing query stops the export and its error is returned.
func (e *Exporter) Export(ctx context.Context, db *sql.DB, queries []Query) ([]*Artifact, error) {
	if db == nil {
		return nil, errors.NewDatabaseError("database connection is nil", nil)
	}
	if err := os.MkdirAll(e.directory, 0o755); err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeUnknown, "failed to create export directory", err).
			WithContext("directory", e.directory)
	}

	artifacts := make([]*Artifact, 0, len(queries))
	for _, query := range queries {
		artifact, err := e.exportQuery(ctx, db, query)
		if err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

func (e *Exporter) exportQuery(ctx context.Context, db *sql.DB, query Query) (*Artifact, error) {
	startTime := time.Now()
	fileName := e.FileName(query)
	path := filepath.Join(e.directory, fileName)

	artifact, err := e.writeArtifact(ctx, db, query, path)
	duration := time.Since(startTime)

	if err != nil {
		e.logger.LogQueryExport(query.Name, path, 0, duration, err)
		return nil, err
	}

	artifact.Name = query.Name
	artifact.FileName = fileName
	artifact.Duration = duration
	e.logger.LogQueryExport(query.Name, artifact.Path, artifact.Rows, duration, nil)
	return artifact, nil
}

func (e *Exporter) writeArtifact(ctx context.Context, db *sql.DB, query Query, path string) (*Artifact, error) {
	rows, err := db.QueryContext(ctx, query.SQL)
	if err != nil {
		return nil, databaseError(fmt.Sprintf("query %s failed", query.Name), query.Name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, databaseError(fmt.Sprintf("failed to read columns of %s", query.Name), query.Name, err)
	}

	tmp, err := os.CreateTemp(e.directory, "."+query.Name+"-*.tmp")
	if err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeUnknown, "failed to create temporary file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return nil, errors.NewAppError(errors.ErrorTypeUnknown, "failed to set artifact permissions", err)
	}

	count, err := e.encode(tmp, query.Name, columns, rows)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return nil, errors.WrapError(err, fmt.Sprintf("failed to export %s", query.Name))
	}

	if e.encryptor != nil {
		if err := e.encryptFile(tmpPath); err != nil {
			return nil, errors.NewAppError(errors.ErrorTypeUnknown, fmt.Sprintf("failed to encrypt %s", query.Name), err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeUnknown, "failed to move artifact into place", err).
			WithContext("path", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewFileMissingError(path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	return &Artifact{
		Path:    absPath,
		Columns: columns,
		Rows:    count,
		Size:    info.Size(),
	}, nil
}

// encode writes the formatted rows through the configured compressor
func (e *Exporter) encode(w io.Writer, name string, columns []string, rows *sql.Rows) (int64, error) {
	buf := bufio.NewWriter(w)
	cw, err := e.compressor.NewWriter(buf)
	if err != nil {
		return 0, err
	}

	count, err := e.writer.Write(cw, name, columns, rows)
	if err != nil {
		cw.Close()
		// rows.Err and Scan failures come from the driver
		return count, databaseError(fmt.Sprintf("failed to read rows of %s", name), name, err)
	}
	if err := cw.Close(); err != nil {
		return count, fmt.Errorf("failed to finish compression: %w", err)
	}
	return count, buf.Flush()
}

// databaseError wraps a driver failure, carrying the driver's own diagnosis
// (missing table, syntax error, PostgreSQL message) into the operator message
func databaseError(message, query string, err error) *errors.AppError {
	appErr := errors.NewDatabaseError(message, err).WithContext("query", query)
	classified := errors.NewErrorClassifier().ClassifyError(err)
	if classified.Type != errors.ErrorTypeDatabase {
		return appErr
	}
	for k, v := range classified.Context {
		appErr.WithContext(k, v)
	}
	return appErr.WithUserMessage(fmt.Sprintf("%s: %s", message, classified.GetUserMessage()))
}

func (e *Exporter) encryptFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sealed, err := e.encryptor.Encrypt(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, sealed, 0o644)
}

// Open returns a reader for an artifact produced by this exporter,
// undoing encryption and compression.
func (e *Exporter) Open(path string) (io.ReadCloser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewFileMissingError(path, err)
	}
	if e.encryptor != nil {
		data, err = e.encryptor.Decrypt(data)
		if err != nil {
			return nil, err
		}
	}
	return e.compressor.NewReader(bytes.NewReader(data))
}
