// Package secrets provides secret-record storage. The store is the only
// stateful collaborator of the lifecycle state machine, and its
// ConsumeView operation carries the decisive concurrency contract:
// at most MaxViews granted views per secret, enforced by a single
// atomic conditional update.
package secrets

import (
	"context"
	"time"

	"github.com/voidnote/voidnote/internal/server/models"
)

// ConsumeResult is the confirmed post-image of a granted view.
type ConsumeResult struct {
	// ViewCount after the increment.
	ViewCount int

	// Burned reports whether this grant consumed the final view and
	// flipped the record to its terminal state in the same write.
	Burned bool
}

// DestroyedSecret identifies a hard-deleted record whose external blob
// (if any) still needs collection.
type DestroyedSecret struct {
	ID      string
	FileRef string
}

// Repository is the secret-record store contract.
//
// ConsumeView must be a single atomic read-modify-write: it increments
// view_count and, iff the post-image reaches max_views (and max_views
// is not unlimited), sets is_burned in the same operation. Concurrent
// calls on one secret serialize on that operation; implementations must
// never let more than max_views calls succeed. Guard violations are
// reported as common.ErrAlreadyBurned / ErrExpired /
// ErrViewLimitReached; an operation whose outcome could not be
// confirmed must surface common.ErrStoreUnavailable, never a silent
// success.
type Repository interface {
	// Create inserts a new record. common.ErrShortIDTaken signals a
	// short-id uniqueness violation so the caller can regenerate.
	Create(ctx context.Context, s *models.Secret) error

	GetByShortID(ctx context.Context, shortID string) (*models.Secret, error)
	GetByID(ctx context.Context, id string) (*models.Secret, error)

	// ConsumeView performs the atomic increment-and-maybe-burn described
	// above, evaluated against the given instant.
	ConsumeView(ctx context.Context, id string, now time.Time) (*ConsumeResult, error)

	// Burn unconditionally moves the record to the terminal state.
	// Burning an already burned record returns common.ErrAlreadyBurned.
	Burn(ctx context.Context, id string) error

	// ExtendExpiry replaces the expiry of a record that is still active
	// at now.
	ExtendExpiry(ctx context.Context, id string, newExpiry, now time.Time) error

	// Delete hard-deletes the record; its access-log rows go with it.
	Delete(ctx context.Context, id string) error

	// DeleteDestroyed hard-deletes burned records and records expired
	// longer than retention ago, returning what was removed so external
	// blobs can be collected.
	DeleteDestroyed(ctx context.Context, now time.Time, retention time.Duration) ([]DestroyedSecret, error)
}
