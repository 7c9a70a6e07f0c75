// Package accesslogs provides the append-only audit trail of access
// attempts. No update or delete operation is exposed: entries only
// disappear when their parent secret is deleted.
package accesslogs

import (
	"context"

	"github.com/voidnote/voidnote/internal/server/models"
)

// Recorder appends audit entries and lists them for the owner's audit
// view. A Record failure must never change an access decision; callers
// log it and move on.
type Recorder interface {
	Record(ctx context.Context, e *models.AccessLogEntry) error
	ListBySecret(ctx context.Context, secretID string) ([]*models.AccessLogEntry, error)
}
