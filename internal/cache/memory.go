package cache

import (
	"context"
	"sync"
	"time"

	types "github.com/yungbote/capacity-checker/internal/domain"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryStore is the in-process fast store used when Redis is not configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, now: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context, ns types.CacheNamespace, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	full := ns.Key(key)
	s.mu.RLock()
	e, ok := s.entries[full]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		s.mu.Lock()
		if cur, still := s.entries[full]; still && cur.expires.Equal(e.expires) {
			delete(s.entries, full)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, env types.CacheEnvelope) error {
	return s.SetMany(ctx, env)
}

func (s *MemoryStore) SetMany(ctx context.Context, envs ...types.CacheEnvelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, env := range envs {
		e := memoryEntry{value: append([]byte(nil), env.Value...)}
		if env.TTL > 0 {
			e.expires = now.Add(env.TTL)
		}
		s.entries[env.StorageKey()] = e
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, ns types.CacheNamespace, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.entries, ns.Key(key))
	s.mu.Unlock()
	return nil
}
