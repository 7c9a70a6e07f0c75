// Package lifecycle owns the secret's state transitions. A record is
// Active, Expired (derived from its expiry, never stored) or Burned
// (stored, terminal). Every access attempt funnels through
// AttemptAccess, which enforces the guards, consumes a view through the
// store's single atomic update, and writes the audit trail.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/voidnote/voidnote/internal/common"
	"github.com/voidnote/voidnote/internal/logging"
	"github.com/voidnote/voidnote/internal/server/models"
	"github.com/voidnote/voidnote/internal/server/repositories/accesslogs"
	"github.com/voidnote/voidnote/internal/server/repositories/secrets"
	"github.com/voidnote/voidnote/internal/server/rules"
)

// Service is the lifecycle state machine over one secret store and one
// audit recorder. State machines of distinct secrets are independent;
// the only serialization point is the store's ConsumeView.
type Service struct {
	repo     secrets.Repository
	recorder accesslogs.Recorder
	logger   logging.Logger

	// now is a seam for tests.
	now func() time.Time
}

func NewService(repo secrets.Repository, recorder accesslogs.Recorder, logger logging.Logger) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		logger:   logger.With("module", "lifecycle"),
		now:      time.Now,
	}
}

// AttemptAccess runs the viewer transition:
//
//  1. terminal and derived guards (burned, expired, view limit),
//  2. access-rule evaluation,
//  3. one atomic view consumption (increment + conditional burn),
//  4. audit logging of whichever path was taken.
//
// On grant it returns the pre-mutation snapshot so the caller decrypts
// against the state the view was granted for. Once the store confirms
// the consumption the view is spent, whatever the client does next.
func (s *Service) AttemptAccess(ctx context.Context, shortID string, reqCtx models.RequestContext) (*models.Secret, error) {
	now := s.now()

	secret, err := s.repo.GetByShortID(ctx, shortID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			err = s.asStoreUnavailable(err)
		}
		// No record to attach the attempt to; nothing to log.
		return nil, err
	}

	s.record(ctx, secret, reqCtx, now, models.StatusAttempt, nil)

	// Guard order is fixed so audit entries and denial reasons are
	// deterministic: burned, expired, view limit, then rules.
	switch {
	case secret.IsBurned:
		return nil, s.deny(ctx, secret, reqCtx, now, common.ErrAlreadyBurned)
	case secret.ExpiredAt(now):
		return nil, s.deny(ctx, secret, reqCtx, now, common.ErrExpired)
	case secret.ViewsExhausted():
		return nil, s.deny(ctx, secret, reqCtx, now, common.ErrViewLimitReached)
	}

	if err := rules.Evaluate(secret.AccessRules, reqCtx); err != nil {
		// Rule denials never touch the view count.
		return nil, s.deny(ctx, secret, reqCtx, now, err)
	}

	snapshot := secret.Snapshot()

	res, err := s.repo.ConsumeView(ctx, secret.ID, now)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrAlreadyBurned),
			errors.Is(err, common.ErrExpired),
			errors.Is(err, common.ErrViewLimitReached):
			// Lost a race between the guard read and the update.
			return nil, s.deny(ctx, secret, reqCtx, now, err)
		case errors.Is(err, common.ErrNotFound):
			return nil, s.deny(ctx, secret, reqCtx, now, common.ErrNotFound)
		default:
			// Result unknown. Do not log success and do not claim a
			// grant; the caller may retry.
			return nil, s.asStoreUnavailable(err)
		}
	}

	s.record(ctx, secret, reqCtx, now, models.StatusSuccess, nil)
	if res.Burned {
		s.record(ctx, secret, reqCtx, now, models.StatusBurn, nil)
	}

	return snapshot, nil
}

// ForceBurn is the owner-initiated terminal transition. Ownership has
// already been verified by the auth collaborator.
func (s *Service) ForceBurn(ctx context.Context, secretID string, reqCtx models.RequestContext) error {
	secret, err := s.repo.GetByID(ctx, secretID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			err = s.asStoreUnavailable(err)
		}
		return err
	}

	if err := s.repo.Burn(ctx, secretID); err != nil {
		if errors.Is(err, common.ErrAlreadyBurned) || errors.Is(err, common.ErrNotFound) {
			return err
		}
		return s.asStoreUnavailable(err)
	}

	s.record(ctx, secret, reqCtx, s.now(), models.StatusBurn, nil)
	return nil
}

// ExtendExpiry moves the expiry of a still-active secret. Burned and
// already-expired records cannot be revived.
func (s *Service) ExtendExpiry(ctx context.Context, secretID string, newExpiry time.Time) error {
	err := s.repo.ExtendExpiry(ctx, secretID, newExpiry, s.now())
	if err == nil ||
		errors.Is(err, common.ErrAlreadyBurned) ||
		errors.Is(err, common.ErrExpired) ||
		errors.Is(err, common.ErrNotFound) {
		return err
	}
	return s.asStoreUnavailable(err)
}

// deny records a failed attempt and passes the denial through. The
// audit write never alters the decision.
func (s *Service) deny(ctx context.Context, secret *models.Secret, reqCtx models.RequestContext, now time.Time, cause error) error {
	s.record(ctx, secret, reqCtx, now, models.StatusFailure, cause)
	return cause
}

func (s *Service) record(ctx context.Context, secret *models.Secret, reqCtx models.RequestContext, now time.Time, status models.AccessStatus, cause error) {
	entry := &models.AccessLogEntry{
		ID:          uuid.NewString(),
		SecretID:    secret.ID,
		AccessedAt:  now,
		Status:      status,
		ActorIP:     reqCtx.IP,
		ActorAgent:  reqCtx.UserAgent,
		ActorUserID: reqCtx.UserID,
	}
	if cause != nil {
		entry.ErrorMessage = cause.Error()
	}

	if err := s.recorder.Record(ctx, entry); err != nil {
		// Non-fatal: surfaced to observability, never to the viewer.
		s.logger.Warn(ctx, "access log write failed",
			"secret_id", secret.ID, "status", string(status), "error", err)
	}
}

func (s *Service) asStoreUnavailable(err error) error {
	if errors.Is(err, common.ErrStoreUnavailable) {
		return err
	}
	return errors.Join(common.ErrStoreUnavailable, err)
}
