package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voidnote/voidnote/internal/common"
	"github.com/voidnote/voidnote/internal/logging"
	"github.com/voidnote/voidnote/internal/server/auth"
	"github.com/voidnote/voidnote/internal/server/blob"
	sc "github.com/voidnote/voidnote/internal/server/config"
	"github.com/voidnote/voidnote/internal/server/lifecycle"
	"github.com/voidnote/voidnote/internal/server/models"
	"github.com/voidnote/voidnote/internal/server/repositories/accesslogs"
	"github.com/voidnote/voidnote/internal/server/repositories/secrets"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *sc.Config {
	cfg := &sc.Config{}
	cfg.LoadDefaults()
	cfg.StoreBackend = sc.BackendMemory
	return cfg
}

type fixture struct {
	svc   *SecretService
	repo  *secrets.MemoryRepository
	rec   *accesslogs.MemoryRecorder
	blobs *blob.MemoryStore
	cfg   *sc.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := secrets.NewMemoryRepository()
	rec := accesslogs.NewMemoryRecorder()
	blobs := blob.NewMemoryStore()
	cfg := testConfig()
	logger := testLogger()
	lc := lifecycle.NewService(repo, rec, logger)
	return &fixture{
		svc:   NewSecretService(repo, rec, lc, blobs, cfg, logger),
		repo:  repo,
		rec:   rec,
		blobs: blobs,
		cfg:   cfg,
	}
}

func textParams() CreateParams {
	return CreateParams{
		Ciphertext:   []byte("ciphertext"),
		ContentNonce: []byte("123456789012"),
	}
}

func TestCreate_Defaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, textParams())
	require.NoError(t, err)

	assert.Len(t, res.Secret.ShortID, 12)
	assert.Equal(t, f.cfg.DefaultMaxViews, res.Secret.MaxViews)
	assert.NotEmpty(t, res.Secret.OwnerID)
	assert.WithinDuration(t,
		time.Now().Add(f.cfg.DefaultTTL), res.Secret.ExpiresAt, 5*time.Second)

	ownerID, err := auth.OwnerIDFromToken(res.OwnerToken, []byte(f.cfg.SecretKey))
	require.NoError(t, err)
	assert.Equal(t, res.Secret.OwnerID, ownerID)

	stored, err := f.repo.GetByShortID(ctx, res.Secret.ShortID)
	require.NoError(t, err)
	assert.Equal(t, res.Secret.ID, stored.ID)
}

func TestCreate_ClampsViewsAndTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := textParams()
	p.MaxViews = f.cfg.MaxMaxViews + 50
	p.TTL = f.cfg.MaxTTL + 24*time.Hour

	res, err := f.svc.Create(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, f.cfg.MaxMaxViews, res.Secret.MaxViews)
	assert.WithinDuration(t,
		time.Now().Add(f.cfg.MaxTTL), res.Secret.ExpiresAt, 5*time.Second)
}

func TestCreate_UnlimitedViewsPreserved(t *testing.T) {
	f := newFixture(t)

	p := textParams()
	p.MaxViews = models.UnlimitedViews

	res, err := f.svc.Create(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, models.UnlimitedViews, res.Secret.MaxViews)
}

func TestCreate_RejectsEmptyPayload(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateParams{})
	assert.Error(t, err)
}

// collidingRepo makes every Create fail with a short-id collision, so
// the retry loop must eventually give up.
type collidingRepo struct {
	secrets.Repository
	calls int
}

func (r *collidingRepo) Create(ctx context.Context, s *models.Secret) error {
	r.calls++
	return common.ErrShortIDTaken
}

func TestCreate_CollisionRetriesThenFails(t *testing.T) {
	f := newFixture(t)
	repo := &collidingRepo{Repository: f.repo}
	lc := lifecycle.NewService(repo, f.rec, testLogger())
	svc := NewSecretService(repo, f.rec, lc, f.blobs, f.cfg, testLogger())

	_, err := svc.Create(context.Background(), textParams())
	assert.ErrorIs(t, err, common.ErrCreationFailed)
	assert.Equal(t, shortIDAttempts, repo.calls)
}

// downRepo fails every Create with a raw driver error, the kind a dead
// database produces.
type downRepo struct {
	secrets.Repository
}

func (r *downRepo) Create(ctx context.Context, s *models.Secret) error {
	return errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
}

func TestCreate_StoreFailureMapsToUnavailable(t *testing.T) {
	f := newFixture(t)
	repo := &downRepo{Repository: f.repo}
	lc := lifecycle.NewService(repo, f.rec, testLogger())
	svc := NewSecretService(repo, f.rec, lc, f.blobs, f.cfg, testLogger())

	_, err := svc.Create(context.Background(), textParams())
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestReveal_ReturnsPayloadAndConsumesView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := textParams()
	p.MaxViews = 2
	created, err := f.svc.Create(ctx, p)
	require.NoError(t, err)

	res, err := f.svc.Reveal(ctx, created.Secret.ShortID, models.RequestContext{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext"), res.Ciphertext)
	assert.False(t, res.HasPassphrase)
	assert.Equal(t, 1, res.ViewsRemaining)

	stored, err := f.repo.GetByID(ctx, created.Secret.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ViewCount)
}

func TestReveal_FilePresignsDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	key, _, err := f.svc.PresignUpload(ctx)
	require.NoError(t, err)

	p := CreateParams{
		FileRef:   key,
		FileNonce: []byte("123456789012"),
		FileName:  "report.pdf.enc",
		FileType:  "application/octet-stream",
		FileSize:  4096,
	}
	created, err := f.svc.Create(ctx, p)
	require.NoError(t, err)

	res, err := f.svc.Reveal(ctx, created.Secret.ShortID, models.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, "report.pdf.enc", res.FileName)
	assert.Equal(t, "memory://get/"+key, res.FileURL)
}

// Not-found, burned, expired and exhausted all collapse into the same
// opaque denial.
func TestReveal_CollapsesUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Reveal(ctx, "missingmissi", models.RequestContext{})
	assert.ErrorIs(t, err, common.ErrSecretNotAvailable)

	created, err := f.svc.Create(ctx, textParams())
	require.NoError(t, err)

	// single view: first reveal burns it
	_, err = f.svc.Reveal(ctx, created.Secret.ShortID, models.RequestContext{})
	require.NoError(t, err)

	_, err = f.svc.Reveal(ctx, created.Secret.ShortID, models.RequestContext{})
	assert.ErrorIs(t, err, common.ErrSecretNotAvailable)
}

// Rule denials stay distinct from unavailability.
func TestReveal_RuleDenialsStayDistinct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := textParams()
	p.AccessRules = models.AccessRules{RequireAuth: true}
	created, err := f.svc.Create(ctx, p)
	require.NoError(t, err)

	_, err = f.svc.Reveal(ctx, created.Secret.ShortID, models.RequestContext{})
	assert.ErrorIs(t, err, common.ErrAuthRequired)

	stored, err := f.repo.GetByID(ctx, created.Secret.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ViewCount)
}

func TestStatus_DoesNotConsumeView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, textParams())
	require.NoError(t, err)

	st, err := f.svc.Status(ctx, created.Secret.ShortID)
	require.NoError(t, err)
	assert.True(t, st.Available)
	assert.Equal(t, 1, st.ViewsRemaining)

	stored, err := f.repo.GetByID(ctx, created.Secret.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ViewCount)
}

func TestStatus_UnavailableLooksIdentical(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing, err := f.svc.Status(ctx, "missingmissi")
	require.NoError(t, err)

	created, err := f.svc.Create(ctx, textParams())
	require.NoError(t, err)
	require.NoError(t, f.repo.Burn(ctx, created.Secret.ID))

	burned, err := f.svc.Status(ctx, created.Secret.ShortID)
	require.NoError(t, err)

	assert.Equal(t, missing, burned)
	assert.False(t, burned.Available)
}

func TestForceBurn_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, textParams())
	require.NoError(t, err)

	other, err := f.svc.Create(ctx, textParams())
	require.NoError(t, err)

	err = f.svc.ForceBurn(ctx, created.Secret.ID, other.OwnerToken, models.RequestContext{})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	err = f.svc.ForceBurn(ctx, created.Secret.ID, "not-a-token", models.RequestContext{})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	err = f.svc.ForceBurn(ctx, created.Secret.ID, created.OwnerToken, models.RequestContext{IP: "10.0.0.9"})
	require.NoError(t, err)

	stored, err := f.repo.GetByID(ctx, created.Secret.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsBurned)

	entries, err := f.rec.ListBySecret(ctx, created.Secret.ID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, models.StatusBurn, last.Status)
	assert.Equal(t, created.Secret.OwnerID, last.ActorUserID)
}

func TestExtendExpiry_ClampedToMax(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, textParams())
	require.NoError(t, err)

	err = f.svc.ExtendExpiry(ctx, created.Secret.ID, created.OwnerToken,
		time.Now().Add(f.cfg.MaxTTL+48*time.Hour))
	require.NoError(t, err)

	stored, err := f.repo.GetByID(ctx, created.Secret.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(f.cfg.MaxTTL), stored.ExpiresAt, 5*time.Second)
}

func TestAccessLog_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, textParams())
	require.NoError(t, err)

	_, err = f.svc.Reveal(ctx, created.Secret.ShortID, models.RequestContext{IP: "10.0.0.1"})
	require.NoError(t, err)

	_, err = f.svc.AccessLog(ctx, created.Secret.ID, "bogus")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	entries, err := f.svc.AccessLog(ctx, created.Secret.ID, created.OwnerToken)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t,
		[]models.AccessStatus{models.StatusAttempt, models.StatusSuccess, models.StatusBurn},
		[]models.AccessStatus{entries[0].Status, entries[1].Status, entries[2].Status})
}
