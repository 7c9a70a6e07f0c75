package accesslogs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voidnote/voidnote/internal/dbx"
	"github.com/voidnote/voidnote/internal/server/models"
)

var _ Recorder = (*PostgresRecorder)(nil)

// PostgresRecorder appends audit rows over a dbx.DBTX. Rows reference
// the secrets table with ON DELETE CASCADE, which is the only way a log
// entry ever goes away.
type PostgresRecorder struct {
	db dbx.DBTX
}

func NewPostgresRecorder(db dbx.DBTX) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, e *models.AccessLogEntry) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO access_log (id, secret_id, accessed_at, status, error_message, actor_ip, actor_agent, actor_user_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.SecretID, e.AccessedAt, string(e.Status),
		e.ErrorMessage, e.ActorIP, e.ActorAgent, e.ActorUserID, metadata,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) ListBySecret(ctx context.Context, secretID string) ([]*models.AccessLogEntry, error) {
	query := `
		SELECT id, secret_id, accessed_at, status, error_message, actor_ip, actor_agent, actor_user_id, metadata
		FROM access_log WHERE secret_id = $1 ORDER BY accessed_at;
	`
	rows, err := r.db.QueryContext(ctx, query, secretID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AccessLogEntry
	for rows.Next() {
		var (
			e        models.AccessLogEntry
			status   string
			metadata []byte
		)
		if err := rows.Scan(
			&e.ID, &e.SecretID, &e.AccessedAt, &status,
			&e.ErrorMessage, &e.ActorIP, &e.ActorAgent, &e.ActorUserID, &metadata,
		); err != nil {
			return nil, err
		}
		e.Status = models.AccessStatus(status)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
