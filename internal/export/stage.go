package export

import (
	"context"
	"database/sql"

	"table-backup/internal/logging"
)

// Connector acquires and releases the database handle for one stage
type Connector interface {
	Connect(ctx context.Context) (*sql.DB, error)
	Close(db *sql.DB) error
}

// Stage is the export step of a backup run. It owns the database
// connection for its duration.
type Stage struct {
	connector Connector
	exporter  *Exporter
	queries   []Query
	logger    *logging.Logger
}

// NewStage creates an export stage
func NewStage(connector Connector, exporter *Exporter, queries []Query, logger *logging.Logger) *Stage {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Stage{
		connector: connector,
		exporter:  exporter,
		queries:   queries,
		logger:    logger,
	}
}

// Run connects, exports every query and closes the connection whether or not
// the export succeeded. Artifacts are only returned when every query succeeded.
func (s *Stage) Run(ctx context.Context) (artifacts []*Artifact, err error) {
	done := s.logger.LogOperationStart("export", map[string]interface{}{
		"queries": len(s.queries),
	})
	defer func() { done(err) }()

	db, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := s.connector.Close(db); closeErr != nil {
			s.logger.Warnf("Failed to close database connection: %v", closeErr)
		}
	}()

	artifacts, err = s.exporter.Export(ctx, db, s.queries)
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

// Queries returns the configured queries
func (s *Stage) Queries() []Query {
	return s.queries
}
