// Package services implements the creation and viewing flows on top of
// the lifecycle state machine, plus the owner-initiated operations
// guarded by the auth collaborator.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/voidnote/voidnote/internal/common"
	"github.com/voidnote/voidnote/internal/logging"
	"github.com/voidnote/voidnote/internal/server/auth"
	"github.com/voidnote/voidnote/internal/server/blob"
	sc "github.com/voidnote/voidnote/internal/server/config"
	"github.com/voidnote/voidnote/internal/server/lifecycle"
	"github.com/voidnote/voidnote/internal/server/models"
	"github.com/voidnote/voidnote/internal/server/repositories/accesslogs"
	"github.com/voidnote/voidnote/internal/server/repositories/secrets"
	"github.com/voidnote/voidnote/internal/shortid"
)

// shortIDAttempts bounds the uniqueness-retry loop at creation.
const shortIDAttempts = 5

type SecretService struct {
	repo      secrets.Repository
	recorder  accesslogs.Recorder
	lifecycle *lifecycle.Service
	blobs     blob.Store
	config    *sc.Config
	logger    logging.Logger
}

func NewSecretService(
	repo secrets.Repository,
	recorder accesslogs.Recorder,
	lc *lifecycle.Service,
	blobs blob.Store,
	config *sc.Config,
	logger logging.Logger,
) *SecretService {
	return &SecretService{
		repo:      repo,
		recorder:  recorder,
		lifecycle: lc,
		blobs:     blobs,
		config:    config,
		logger:    logger.With("module", "secrets_service"),
	}
}

// CreateParams carry what the sender's device produced. Everything here
// is already encrypted or hashed; the service only validates shape and
// bounds.
type CreateParams struct {
	Ciphertext   []byte
	ContentNonce []byte

	FileRef   string
	FileNonce []byte
	FileName  string
	FileType  string
	FileSize  int64

	PassphraseHash    []byte
	KeyDerivationSalt []byte

	// MaxViews: 0 means the configured default; models.UnlimitedViews
	// disables the cap; anything else is clamped to the configured
	// maximum.
	MaxViews int

	// TTL: 0 means the configured default; clamped to the configured
	// maximum.
	TTL time.Duration

	AccessRules models.AccessRules

	// OwnerID of an authenticated sender; empty for anonymous senders,
	// who are then identified only by the returned owner token.
	OwnerID string
}

// CreateResult returns the stored record and the owner token that
// authorizes later owner-initiated transitions on it.
type CreateResult struct {
	Secret     *models.Secret
	OwnerToken string
}

// Create validates the params, assigns a unique short id (bounded
// retries on collision) and persists the record.
func (s *SecretService) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	now := time.Now()

	ownerID := p.OwnerID
	if ownerID == "" {
		ownerID = uuid.NewString()
	}

	secret := &models.Secret{
		ID:                uuid.NewString(),
		Ciphertext:        p.Ciphertext,
		ContentNonce:      p.ContentNonce,
		FileRef:           p.FileRef,
		FileNonce:         p.FileNonce,
		FileName:          p.FileName,
		FileType:          p.FileType,
		FileSize:          p.FileSize,
		PassphraseHash:    p.PassphraseHash,
		KeyDerivationSalt: p.KeyDerivationSalt,
		MaxViews:          s.clampViews(p.MaxViews),
		ExpiresAt:         now.Add(s.clampTTL(p.TTL)),
		AccessRules:       p.AccessRules,
		OwnerID:           ownerID,
		CreatedAt:         now,
	}

	if err := secret.Validate(); err != nil {
		return nil, err
	}

	var created bool
	for attempt := 0; attempt < shortIDAttempts; attempt++ {
		sid, err := shortid.New()
		if err != nil {
			return nil, errors.Join(common.ErrCreationFailed, err)
		}
		secret.ShortID = sid

		err = s.repo.Create(ctx, secret)
		if err == nil {
			created = true
			break
		}
		if errors.Is(err, common.ErrShortIDTaken) {
			s.logger.Debug(ctx, "short id collision, regenerating", "attempt", attempt+1)
			continue
		}
		return nil, asStoreUnavailable(err)
	}
	if !created {
		return nil, common.ErrCreationFailed
	}

	token, err := auth.GenerateToken(ownerID, []byte(s.config.SecretKey), s.config.OwnerTokenValidityDuration)
	if err != nil {
		return nil, err
	}

	return &CreateResult{Secret: secret, OwnerToken: token}, nil
}

// PresignUpload hands the sender a blob key and upload URL for an
// encrypted file payload, to be referenced in a subsequent Create.
func (s *SecretService) PresignUpload(ctx context.Context) (key, url string, err error) {
	return s.blobs.PresignPut(ctx)
}

// RevealResult is what a granted view returns: everything the
// recipient's device needs to decrypt locally, and nothing more.
type RevealResult struct {
	Ciphertext        []byte
	ContentNonce      []byte
	KeyDerivationSalt []byte
	HasPassphrase     bool

	FileName  string
	FileType  string
	FileSize  int64
	FileNonce []byte
	FileURL   string

	// ViewsRemaining after this grant; models.UnlimitedViews when
	// uncapped.
	ViewsRemaining int
}

// Reveal consumes one view. Not-found, expired, burned and
// view-limit all collapse into common.ErrSecretNotAvailable so a
// probing caller learns nothing about which guard fired; rule denials
// stay distinct because they are actionable for the configured
// audience.
func (s *SecretService) Reveal(ctx context.Context, shortID string, reqCtx models.RequestContext) (*RevealResult, error) {
	snap, err := s.lifecycle.AttemptAccess(ctx, shortID, reqCtx)
	if err != nil {
		return nil, collapseUnavailable(err)
	}

	res := &RevealResult{
		Ciphertext:        snap.Ciphertext,
		ContentNonce:      snap.ContentNonce,
		KeyDerivationSalt: snap.KeyDerivationSalt,
		HasPassphrase:     snap.HasPassphrase(),
		FileName:          snap.FileName,
		FileType:          snap.FileType,
		FileSize:          snap.FileSize,
		FileNonce:         snap.FileNonce,
		ViewsRemaining:    viewsRemaining(snap),
	}

	if snap.HasFile() {
		url, err := s.blobs.PresignGet(ctx, snap.FileRef)
		if err != nil {
			// The view is already consumed; failing the whole reveal
			// now would waste it. Return what we have and log.
			s.logger.Error(ctx, "presigning file download failed",
				"secret_id", snap.ID, "error", err)
		} else {
			res.FileURL = url
		}
	}

	return res, nil
}

// StatusResult reports availability without consuming a view.
type StatusResult struct {
	Available      bool
	ExpiresAt      time.Time
	ViewsRemaining int
	HasPassphrase  bool
	HasFile        bool
}

// Status never distinguishes why a secret is unavailable.
func (s *SecretService) Status(ctx context.Context, shortID string) (*StatusResult, error) {
	secret, err := s.repo.GetByShortID(ctx, shortID)
	if errors.Is(err, common.ErrNotFound) {
		return &StatusResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	if secret.IsBurned || secret.ExpiredAt(time.Now()) || secret.ViewsExhausted() {
		return &StatusResult{}, nil
	}

	remaining := models.UnlimitedViews
	if secret.MaxViews != models.UnlimitedViews {
		remaining = secret.MaxViews - secret.ViewCount
	}

	return &StatusResult{
		Available:      true,
		ExpiresAt:      secret.ExpiresAt,
		ViewsRemaining: remaining,
		HasPassphrase:  secret.HasPassphrase(),
		HasFile:        secret.HasFile(),
	}, nil
}

// ForceBurn verifies ownership via the token and burns the secret.
func (s *SecretService) ForceBurn(ctx context.Context, secretID, ownerToken string, reqCtx models.RequestContext) error {
	if err := s.authorize(ctx, secretID, ownerToken, &reqCtx); err != nil {
		return err
	}
	return s.lifecycle.ForceBurn(ctx, secretID, reqCtx)
}

// ExtendExpiry verifies ownership and moves the expiry of an active
// secret, clamped to the configured maximum from now.
func (s *SecretService) ExtendExpiry(ctx context.Context, secretID, ownerToken string, newExpiry time.Time) error {
	if err := s.authorize(ctx, secretID, ownerToken, nil); err != nil {
		return err
	}

	max := time.Now().Add(s.config.MaxTTL)
	if newExpiry.After(max) {
		newExpiry = max
	}
	return s.lifecycle.ExtendExpiry(ctx, secretID, newExpiry)
}

// AccessLog returns the audit trail for the owner's view.
func (s *SecretService) AccessLog(ctx context.Context, secretID, ownerToken string) ([]*models.AccessLogEntry, error) {
	if err := s.authorize(ctx, secretID, ownerToken, nil); err != nil {
		return nil, err
	}
	return s.recorder.ListBySecret(ctx, secretID)
}

// authorize resolves the token to an owner id and checks it against the
// record. When reqCtx is given, the verified owner id is propagated
// into it for audit attribution.
func (s *SecretService) authorize(ctx context.Context, secretID, ownerToken string, reqCtx *models.RequestContext) error {
	ownerID, err := auth.OwnerIDFromToken(ownerToken, []byte(s.config.SecretKey))
	if err != nil {
		return common.ErrUnauthorized
	}

	secret, err := s.repo.GetByID(ctx, secretID)
	if err != nil {
		return err
	}
	if secret.OwnerID != ownerID {
		return common.ErrUnauthorized
	}

	if reqCtx != nil && reqCtx.UserID == "" {
		reqCtx.UserID = ownerID
	}
	return nil
}

func (s *SecretService) clampViews(v int) int {
	switch {
	case v == models.UnlimitedViews:
		return v
	case v == 0:
		return s.config.DefaultMaxViews
	case v < 1:
		return 1
	case v > s.config.MaxMaxViews:
		return s.config.MaxMaxViews
	default:
		return v
	}
}

func (s *SecretService) clampTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl == 0:
		return s.config.DefaultTTL
	case ttl < 0:
		return s.config.DefaultTTL
	case ttl > s.config.MaxTTL:
		return s.config.MaxTTL
	default:
		return ttl
	}
}

func viewsRemaining(snap *models.Secret) int {
	if snap.MaxViews == models.UnlimitedViews {
		return models.UnlimitedViews
	}
	// snap is the pre-mutation snapshot; the grant that returned it
	// consumed one view.
	remaining := snap.MaxViews - snap.ViewCount - 1
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// asStoreUnavailable tags a backend failure so the transport answers
// 503 instead of echoing driver internals to the caller.
func asStoreUnavailable(err error) error {
	if errors.Is(err, common.ErrStoreUnavailable) {
		return err
	}
	return errors.Join(common.ErrStoreUnavailable, err)
}

func collapseUnavailable(err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrExpired),
		errors.Is(err, common.ErrAlreadyBurned),
		errors.Is(err, common.ErrViewLimitReached):
		return common.ErrSecretNotAvailable
	default:
		return err
	}
}
