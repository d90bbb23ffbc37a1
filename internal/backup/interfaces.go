package backup

import (
	"context"

	"table-backup/internal/auth"
	"table-backup/internal/export"
)

// Exporter produces the artifacts for a run, or fails as a whole
type Exporter interface {
	Run(ctx context.Context) ([]*export.Artifact, error)
}

// TokenSource produces the bearer token used for the primary destination
type TokenSource interface {
	Token(ctx context.Context) (*auth.Token, error)
}

// Destination stores artifacts somewhere outside the host
type Destination interface {
	Name() string
	Upload(ctx context.Context, artifact *export.Artifact) (*UploadResult, error)
}

// TokenDestination is a destination that authenticates with the run's access
// token. WithToken binds the token for one run; it is never stored beyond it.
type TokenDestination interface {
	WithToken(token string) Destination
}

// Notifier is told about every finished run
type Notifier interface {
	Notify(ctx context.Context, report *RunReport) error
}
