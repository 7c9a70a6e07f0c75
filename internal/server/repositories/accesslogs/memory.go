package accesslogs

import (
	"context"
	"sync"

	"github.com/voidnote/voidnote/internal/server/models"
)

var _ Recorder = (*MemoryRecorder)(nil)

// MemoryRecorder keeps entries per secret in insertion order. Used by
// tests and the dev backend.
type MemoryRecorder struct {
	mu      sync.RWMutex
	entries map[string][]*models.AccessLogEntry
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{entries: make(map[string][]*models.AccessLogEntry)}
}

func (r *MemoryRecorder) Record(ctx context.Context, e *models.AccessLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *e
	r.entries[e.SecretID] = append(r.entries[e.SecretID], &c)
	return nil
}

func (r *MemoryRecorder) ListBySecret(ctx context.Context, secretID string) ([]*models.AccessLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.entries[secretID]
	out := make([]*models.AccessLogEntry, len(list))
	copy(out, list)
	return out, nil
}
