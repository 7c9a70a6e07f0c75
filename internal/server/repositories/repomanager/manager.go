// Package repomanager wires concrete repository implementations to a
// storage backend and owns schema migrations for the SQL one.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/voidnote/voidnote/internal/dbx"
	"github.com/voidnote/voidnote/internal/server/repositories/accesslogs"
	"github.com/voidnote/voidnote/internal/server/repositories/secrets"
)

// RepositoryManager constructs repositories over a shared handle, so a
// caller can run several of them inside one transaction via dbx.WithTx.
type RepositoryManager interface {
	Secrets(db dbx.DBTX) secrets.Repository
	AccessLogs(db dbx.DBTX) accesslogs.Recorder
	RunMigrations(ctx context.Context, db *sql.DB) error
}
