// Package settings persists the bypass options and serves cached,
// compiled snapshots of them.
package settings

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abczzz13/unprotect"
)

// ErrNotFound is returned by a Store when no option record has been saved.
var ErrNotFound = errors.New("settings: option record not found")

// Record is the stored option record plus bookkeeping.
type Record struct {
	Options   unprotect.Options `json:"options"`
	Revision  string            `json:"revision"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store persists the single option record.
type Store interface {
	// Load returns the stored record or ErrNotFound.
	Load(ctx context.Context) (*Record, error)
	// Save replaces the stored record atomically.
	Save(ctx context.Context, rec *Record) error
	Close() error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu  sync.RWMutex
	rec *Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.rec == nil {
		return nil, ErrNotFound
	}
	rec := *s.rec
	return &rec, nil
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.rec = &cp
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
