package secrets

import (
	"context"
	"sync"
	"time"

	"github.com/voidnote/voidnote/internal/common"
	"github.com/voidnote/voidnote/internal/server/models"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps secrets in a mutex-guarded map. Used by tests
// and the dev backend. The single lock makes every operation, including
// ConsumeView, trivially atomic.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.Secret
	byShort map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*models.Secret),
		byShort: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, s *models.Secret) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byShort[s.ShortID]; ok {
		return common.ErrShortIDTaken
	}
	if _, ok := r.byID[s.ID]; ok {
		return common.ErrShortIDTaken
	}

	r.byID[s.ID] = s.Snapshot()
	r.byShort[s.ShortID] = s.ID
	return nil
}

func (r *MemoryRepository) GetByShortID(ctx context.Context, shortID string) (*models.Secret, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byShort[shortID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return r.byID[id].Snapshot(), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Secret, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return s.Snapshot(), nil
}

func (r *MemoryRepository) ConsumeView(ctx context.Context, id string, now time.Time) (*ConsumeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}

	switch {
	case s.IsBurned:
		return nil, common.ErrAlreadyBurned
	case s.ExpiredAt(now):
		return nil, common.ErrExpired
	case s.ViewsExhausted():
		return nil, common.ErrViewLimitReached
	}

	s.ViewCount++
	if s.MaxViews != models.UnlimitedViews && s.ViewCount >= s.MaxViews {
		s.IsBurned = true
	}
	return &ConsumeResult{ViewCount: s.ViewCount, Burned: s.IsBurned}, nil
}

func (r *MemoryRepository) Burn(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	if s.IsBurned {
		return common.ErrAlreadyBurned
	}
	s.IsBurned = true
	return nil
}

func (r *MemoryRepository) ExtendExpiry(ctx context.Context, id string, newExpiry, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	if s.IsBurned {
		return common.ErrAlreadyBurned
	}
	if s.ExpiredAt(now) {
		return common.ErrExpired
	}
	s.ExpiresAt = newExpiry
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byID[id]; ok {
		delete(r.byShort, s.ShortID)
		delete(r.byID, id)
	}
	return nil
}

func (r *MemoryRepository) DeleteDestroyed(ctx context.Context, now time.Time, retention time.Duration) ([]DestroyedSecret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-retention)
	var result []DestroyedSecret
	for id, s := range r.byID {
		if s.IsBurned || s.ExpiresAt.Before(cutoff) {
			result = append(result, DestroyedSecret{ID: id, FileRef: s.FileRef})
			delete(r.byShort, s.ShortID)
			delete(r.byID, id)
		}
	}
	return result, nil
}
