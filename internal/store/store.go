// Package store keeps raw input records under a string key. Loading never
// hands a malformed record to the engine: a missing or unreadable record
// comes back as the default snapshot.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/signalroi/signalroi/internal/config"
	"github.com/signalroi/signalroi/pkg/models"
)

// DefaultKey is the snapshot key used when none is given.
const DefaultKey = "d2c_dashboard_v1"

// ErrNotFound is returned by backends when a key holds no record.
var ErrNotFound = errors.New("store: record not found")

// Snapshot describes a stored record.
type Snapshot struct {
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InputStore loads and saves input records.
type InputStore interface {
	// Load returns the record under key, or models.DefaultInput() when the
	// key is empty or its data cannot be decoded. Errors are I/O failures.
	Load(ctx context.Context, key string) (models.Input, error)
	Save(ctx context.Context, key string, in models.Input) error
	// Reset removes the record so the next Load returns the default.
	Reset(ctx context.Context, key string) error
	List(ctx context.Context) ([]Snapshot, error)
	Close() error
}

// backend is the raw byte layer shared by the implementations.
type backend interface {
	get(ctx context.Context, key string) ([]byte, error)
	put(ctx context.Context, key string, data []byte, at time.Time) error
	remove(ctx context.Context, key string) error
	list(ctx context.Context) ([]Snapshot, error)
	close() error
}

// Store implements InputStore over a backend.
type Store struct {
	b   backend
	log zerolog.Logger
	now func() time.Time
}

var _ InputStore = (*Store)(nil)

func newStore(b backend, log zerolog.Logger) *Store {
	return &Store{b: b, log: log.With().Str("component", "store").Logger(), now: time.Now}
}

// Open creates the store selected by cfg.Driver ("sqlite" or "memory").
func Open(cfg config.StoreConfig, log zerolog.Logger) (*Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(log), nil
	case "sqlite", "":
		return NewSQLite(cfg.Path, log)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// Load implements InputStore.
func (s *Store) Load(ctx context.Context, key string) (models.Input, error) {
	key = normalizeKey(key)
	data, err := s.b.get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultInput(), nil
	}
	if err != nil {
		return models.Input{}, fmt.Errorf("store: load %q: %w", key, err)
	}

	in, err := models.ParseInput(data)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("stored inputs unreadable, using defaults")
		return models.DefaultInput(), nil
	}
	return in, nil
}

// Save implements InputStore.
func (s *Store) Save(ctx context.Context, key string, in models.Input) error {
	key = normalizeKey(key)
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", key, err)
	}
	if err := s.b.put(ctx, key, data, s.now().UTC()); err != nil {
		return fmt.Errorf("store: save %q: %w", key, err)
	}
	s.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("inputs saved")
	return nil
}

// Reset implements InputStore.
func (s *Store) Reset(ctx context.Context, key string) error {
	key = normalizeKey(key)
	if err := s.b.remove(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("store: reset %q: %w", key, err)
	}
	return nil
}

// List implements InputStore.
func (s *Store) List(ctx context.Context) ([]Snapshot, error) {
	snaps, err := s.b.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return snaps, nil
}

// Close implements InputStore.
func (s *Store) Close() error { return s.b.close() }

func normalizeKey(key string) string {
	if key == "" {
		return DefaultKey
	}
	return key
}
