// Package memory provides a bounded in-memory history.Store. Records are
// lost when the process restarts; the oldest record is evicted once the
// store is full.
package memory

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rhuss/codesmith/pkg/history"
)

// DefaultMaxSize is used when New is called with a non-positive size.
const DefaultMaxSize = 1000

// Store is an LRU-bounded history.Store.
type Store struct {
	// mu serializes Save so conflict checks and inserts are atomic
	// with respect to each other.
	mu    sync.Mutex
	cache *lru.Cache[string, *history.Record]
}

var _ history.Store = (*Store)(nil)

// New creates a store holding at most maxSize records.
func New(maxSize int) (*Store, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	cache, err := lru.New[string, *history.Record](maxSize)
	if err != nil {
		return nil, err
	}
	return &Store{cache: cache}, nil
}

// Save stores rec. A record with the same ID yields history.ErrConflict.
func (s *Store) Save(_ context.Context, rec *history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache.Contains(rec.ID) {
		return history.ErrConflict
	}
	cp := *rec
	s.cache.Add(rec.ID, &cp)
	return nil
}

// Get returns the record with the given ID, scoped by tenant.
func (s *Store) Get(ctx context.Context, id string) (*history.Record, error) {
	rec, ok := s.cache.Peek(id)
	if !ok {
		return nil, history.ErrNotFound
	}
	tenant := history.GetTenant(ctx)
	if tenant != "" && rec.Tenant != tenant {
		return nil, history.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// List returns records newest first with cursor pagination.
func (s *Store) List(ctx context.Context, opts history.ListOptions) (*history.Page, error) {
	tenant := history.GetTenant(ctx)

	// Values is ordered oldest to newest. The cursor is located among
	// all of the tenant's records so it stays valid when it is itself
	// filtered out.
	values := s.cache.Values()
	seen := opts.After == ""
	var matches []*history.Record
	for i := len(values) - 1; i >= 0; i-- {
		rec := values[i]
		if !seen {
			seen = rec.ID == opts.After && history.Matches(rec, tenant, history.ListOptions{})
			continue
		}
		if history.Matches(rec, tenant, opts) {
			matches = append(matches, rec)
		}
	}

	limit := opts.EffectiveLimit()
	if len(matches) > limit+1 {
		matches = matches[:limit+1]
	}
	out := make([]*history.Record, len(matches))
	for i, r := range matches {
		cp := *r
		out[i] = &cp
	}
	return history.NewPage(out, limit), nil
}

// Len returns the number of stored records.
func (s *Store) Len() int { return s.cache.Len() }

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
