package blob

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a dev/test stand-in that only tracks which keys exist;
// there is no real payload transport behind the fake URLs.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]bool)}
}

func (s *MemoryStore) PresignPut(ctx context.Context) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := "blobs/" + uuid.NewString()
	s.keys[key] = true
	return key, "memory://put/" + key, nil
}

func (s *MemoryStore) PresignGet(ctx context.Context, key string) (string, error) {
	return "memory://get/" + key, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, key)
	return nil
}

// Has reports whether a key is still present. Test helper.
func (s *MemoryStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key]
}
