package secrets

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/voidnote/voidnote/internal/common"
	"github.com/voidnote/voidnote/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO secrets`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Secret{
		ID:           "id-1",
		ShortID:      "AbCdEfGhJkMn",
		Ciphertext:   []byte("ct"),
		ContentNonce: []byte("n"),
		MaxViews:     1,
		ExpiresAt:    time.Now().Add(time.Hour),
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestConsumeView_Granted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := regexp.MustCompile(`UPDATE secrets\s+SET view_count = view_count \+ 1`)

	mock.ExpectQuery(q.String()).
		WithArgs("id-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"view_count", "is_burned"}).AddRow(1, true))

	res, err := repo.ConsumeView(context.Background(), "id-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ViewCount != 1 || !res.Burned {
		t.Fatalf("unexpected result: %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// The expiry guard is inclusive: a view at the exact expiry instant is
// still granted, matching models.Secret.ExpiredAt.
func TestConsumeView_InclusiveExpiryGuard(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(`UPDATE secrets[\s\S]*expires_at >= \$2`).
		WithArgs("id-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"view_count", "is_burned"}).AddRow(1, true))

	if _, err := repo.ConsumeView(context.Background(), "id-1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExtendExpiry_InclusiveExpiryGuard(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	newExpiry := now.Add(time.Hour)

	mock.ExpectExec(`UPDATE secrets SET expires_at = \$2[\s\S]*expires_at >= \$3`).
		WithArgs("id-1", newExpiry, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ExtendExpiry(context.Background(), "id-1", newExpiry, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestConsumeView_ClassifiesBurned(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(`UPDATE secrets`).
		WithArgs("id-1", now).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(`SELECT is_burned, expires_at, view_count, max_views FROM secrets`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"is_burned", "expires_at", "view_count", "max_views"}).
			AddRow(true, now.Add(time.Hour), 1, 1))

	_, err := repo.ConsumeView(context.Background(), "id-1", now)
	if !errors.Is(err, common.ErrAlreadyBurned) {
		t.Fatalf("want ErrAlreadyBurned, got %v", err)
	}
}

func TestConsumeView_ClassifiesExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(`UPDATE secrets`).
		WithArgs("id-1", now).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(`SELECT is_burned, expires_at, view_count, max_views FROM secrets`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"is_burned", "expires_at", "view_count", "max_views"}).
			AddRow(false, now.Add(-time.Minute), 0, 1))

	_, err := repo.ConsumeView(context.Background(), "id-1", now)
	if !errors.Is(err, common.ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}
}

func TestConsumeView_ClassifiesViewLimit(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(`UPDATE secrets`).
		WithArgs("id-1", now).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(`SELECT is_burned, expires_at, view_count, max_views FROM secrets`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"is_burned", "expires_at", "view_count", "max_views"}).
			AddRow(false, now.Add(time.Hour), 3, 3))

	_, err := repo.ConsumeView(context.Background(), "id-1", now)
	if !errors.Is(err, common.ErrViewLimitReached) {
		t.Fatalf("want ErrViewLimitReached, got %v", err)
	}
}

func TestConsumeView_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(`UPDATE secrets`).
		WithArgs("missing", now).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(`SELECT is_burned, expires_at, view_count, max_views FROM secrets`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ConsumeView(context.Background(), "missing", now)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestBurn_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE secrets SET is_burned = TRUE`).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Burn(context.Background(), "id-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBurn_AlreadyBurned(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE secrets SET is_burned = TRUE`).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(`SELECT is_burned FROM secrets`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"is_burned"}).AddRow(true))

	err := repo.Burn(context.Background(), "id-1")
	if !errors.Is(err, common.ErrAlreadyBurned) {
		t.Fatalf("want ErrAlreadyBurned, got %v", err)
	}
}

func TestDeleteDestroyed_ReturnsRefs(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(`DELETE FROM secrets`).
		WithArgs(now.Add(-time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_ref"}).
			AddRow("id-1", "blobs/a").
			AddRow("id-2", ""))

	destroyed, err := repo.DeleteDestroyed(context.Background(), now, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(destroyed) != 2 {
		t.Fatalf("expected 2 destroyed, got %d", len(destroyed))
	}
	if destroyed[0].FileRef != "blobs/a" {
		t.Fatalf("unexpected file ref: %q", destroyed[0].FileRef)
	}
}
