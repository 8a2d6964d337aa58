package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type memoryEntry struct {
	data []byte
	at   time.Time
}

// memoryBackend is a process-local map, used for tests and `store.driver: memory`.
type memoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory creates an in-memory store.
func NewMemory(log zerolog.Logger) *Store {
	return newStore(&memoryBackend{entries: make(map[string]memoryEntry)}, log)
}

func (b *memoryBackend) get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

func (b *memoryBackend) put(_ context.Context, key string, data []byte, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = memoryEntry{data: append([]byte(nil), data...), at: at}
	return nil
}

func (b *memoryBackend) remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[key]; !ok {
		return ErrNotFound
	}
	delete(b.entries, key)
	return nil
}

func (b *memoryBackend) list(context.Context) ([]Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snaps := make([]Snapshot, 0, len(b.entries))
	for k, e := range b.entries {
		snaps = append(snaps, Snapshot{Key: k, UpdatedAt: e.at})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Key < snaps[j].Key })
	return snaps, nil
}

func (b *memoryBackend) close() error { return nil }
