package secrets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/voidnote/voidnote/internal/common"
	"github.com/voidnote/voidnote/internal/dbx"
	"github.com/voidnote/voidnote/internal/server/models"
)

const pgUniqueViolation = "23505"

// PostgresRepository implements secret storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const secretColumns = `id, short_id, ciphertext, content_nonce,
		file_ref, file_nonce, file_name, file_type, file_size,
		passphrase_hash, key_derivation_salt,
		max_views, view_count, expires_at, is_burned,
		require_auth, allowed_domains, custom_labels,
		owner_id, created_at`

func (r *PostgresRepository) Create(ctx context.Context, s *models.Secret) error {
	domains, err := json.Marshal(s.AccessRules.AllowedDomains)
	if err != nil {
		return fmt.Errorf("marshal allowed domains: %w", err)
	}
	labels, err := json.Marshal(s.AccessRules.CustomLabels)
	if err != nil {
		return fmt.Errorf("marshal custom labels: %w", err)
	}

	query := `
		INSERT INTO secrets (` + secretColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20);
	`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.ShortID, s.Ciphertext, s.ContentNonce,
		s.FileRef, s.FileNonce, s.FileName, s.FileType, s.FileSize,
		s.PassphraseHash, s.KeyDerivationSalt,
		s.MaxViews, s.ViewCount, s.ExpiresAt, s.IsBurned,
		s.AccessRules.RequireAuth, domains, labels,
		s.OwnerID, s.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrShortIDTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByShortID(ctx context.Context, shortID string) (*models.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE short_id = $1`
	return r.scanSecret(r.db.QueryRowContext(ctx, query, shortID))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE id = $1`
	return r.scanSecret(r.db.QueryRowContext(ctx, query, id))
}

// ConsumeView is a single conditional UPDATE: the increment and the
// terminal burn land in one write, so racing attempts serialize in the
// database and at most max_views of them ever see a row come back.
func (r *PostgresRepository) ConsumeView(ctx context.Context, id string, now time.Time) (*ConsumeResult, error) {
	query := `
		UPDATE secrets
		SET view_count = view_count + 1,
			is_burned = (max_views != -1 AND view_count + 1 >= max_views) OR is_burned
		WHERE id = $1
			AND is_burned = FALSE
			AND expires_at >= $2
			AND (max_views = -1 OR view_count < max_views)
		RETURNING view_count, is_burned;
	`
	var res ConsumeResult
	err := r.db.QueryRowContext(ctx, query, id, now).Scan(&res.ViewCount, &res.Burned)
	if err == nil {
		return &res, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("db error: %w", err)
	}

	// No row updated: classify which guard held.
	return nil, r.classifyDenied(ctx, id, now)
}

func (r *PostgresRepository) classifyDenied(ctx context.Context, id string, now time.Time) error {
	var (
		burned    bool
		expiresAt time.Time
		viewCount int
		maxViews  int
	)
	query := `SELECT is_burned, expires_at, view_count, max_views FROM secrets WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&burned, &expiresAt, &viewCount, &maxViews)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	switch {
	case burned:
		return common.ErrAlreadyBurned
	case now.After(expiresAt):
		return common.ErrExpired
	case maxViews != models.UnlimitedViews && viewCount >= maxViews:
		return common.ErrViewLimitReached
	default:
		// The guards passed on re-read; the conditional update must have
		// lost a race that has since resolved. Report the terminal state.
		return common.ErrAlreadyBurned
	}
}

func (r *PostgresRepository) Burn(ctx context.Context, id string) error {
	query := `UPDATE secrets SET is_burned = TRUE WHERE id = $1 AND is_burned = FALSE`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 1 {
		return nil
	}

	var burned bool
	err = r.db.QueryRowContext(ctx, `SELECT is_burned FROM secrets WHERE id = $1`, id).Scan(&burned)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if burned {
		return common.ErrAlreadyBurned
	}
	return fmt.Errorf("unexpected rows affected: %d", n)
}

func (r *PostgresRepository) ExtendExpiry(ctx context.Context, id string, newExpiry, now time.Time) error {
	query := `
		UPDATE secrets SET expires_at = $2
		WHERE id = $1 AND is_burned = FALSE AND expires_at >= $3
	`
	res, err := r.db.ExecContext(ctx, query, id, newExpiry, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Only active secrets can be extended; report why this one is not.
	var (
		burned    bool
		expiresAt time.Time
	)
	err = r.db.QueryRowContext(ctx, `SELECT is_burned, expires_at FROM secrets WHERE id = $1`, id).
		Scan(&burned, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if burned {
		return common.ErrAlreadyBurned
	}
	return common.ErrExpired
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	// Access-log rows cascade on the foreign key.
	_, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteDestroyed(ctx context.Context, now time.Time, retention time.Duration) ([]DestroyedSecret, error) {
	query := `
		DELETE FROM secrets
		WHERE is_burned = TRUE OR expires_at < $1
		RETURNING id, file_ref;
	`
	rows, err := r.db.QueryContext(ctx, query, now.Add(-retention))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []DestroyedSecret
	for rows.Next() {
		var d DestroyedSecret
		if err := rows.Scan(&d.ID, &d.FileRef); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) scanSecret(row *sql.Row) (*models.Secret, error) {
	var (
		s       models.Secret
		domains []byte
		labels  []byte
	)
	err := row.Scan(
		&s.ID, &s.ShortID, &s.Ciphertext, &s.ContentNonce,
		&s.FileRef, &s.FileNonce, &s.FileName, &s.FileType, &s.FileSize,
		&s.PassphraseHash, &s.KeyDerivationSalt,
		&s.MaxViews, &s.ViewCount, &s.ExpiresAt, &s.IsBurned,
		&s.AccessRules.RequireAuth, &domains, &labels,
		&s.OwnerID, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(domains) > 0 {
		if err := json.Unmarshal(domains, &s.AccessRules.AllowedDomains); err != nil {
			return nil, fmt.Errorf("unmarshal allowed domains: %w", err)
		}
	}
	if len(labels) > 0 {
		if err := json.Unmarshal(labels, &s.AccessRules.CustomLabels); err != nil {
			return nil, fmt.Errorf("unmarshal custom labels: %w", err)
		}
	}
	return &s, nil
}
