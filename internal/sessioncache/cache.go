package sessioncache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Session types.
const (
	TypeLive   = "live"
	TypeMock   = "mock"
	TypeCoding = "coding"
)

// Record is the interview metadata for one external session. The
// authoritative copy lives in the backing Store; the cache holds it for the
// process lifetime (it is a cache, not a system of record, so entries are
// never proactively evicted).
type Record struct {
	SessionID         string            `json:"sessionId"`
	Resume            string            `json:"resume"`
	JobDescription    string            `json:"jobDescription"`
	AdditionalContext string            `json:"additionalContext"`
	Type              string            `json:"type,omitempty"`
	Status            string            `json:"status,omitempty"`
	StartedAt         time.Time         `json:"startedAt,omitzero"`
	EndedAt           time.Time         `json:"endedAt,omitzero"`
	CreatedAt         time.Time         `json:"createdAt,omitzero"`
	UpdatedAt         time.Time         `json:"updatedAt,omitzero"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Store is the external system of record behind the cache.
type Store interface {
	Fetch(ctx context.Context, sessionID string) (Record, error)
	Upsert(ctx context.Context, record Record) error
}

// Cache is the process-wide session context cache. Writes are
// last-writer-wins; each key is owned by one live session in practice.
type Cache struct {
	mu      sync.RWMutex
	byID    map[string]Record
	backend Store
}

func New(backend Store) *Cache {
	return &Cache{byID: make(map[string]Record), backend: backend}
}

// Get returns the cached record, if any.
func (c *Cache) Get(sessionID string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.byID[sessionID]
	return rec, ok
}

// Put stores a record in the cache and upserts it to the backend.
func (c *Cache) Put(ctx context.Context, record Record) error {
	if record.SessionID == "" {
		return fmt.Errorf("session record missing id")
	}
	record.UpdatedAt = time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.UpdatedAt
	}

	c.mu.Lock()
	c.byID[record.SessionID] = record
	c.mu.Unlock()

	if c.backend == nil {
		return nil
	}
	if err := c.backend.Upsert(ctx, record); err != nil {
		return fmt.Errorf("upsert session %s: %w", record.SessionID, err)
	}
	return nil
}

// GetOrFetch returns the cached record, fetching through to the backend and
// caching the result on a miss. Absent text fields are normalized to empty
// strings so downstream prompt building never sees missing context.
func (c *Cache) GetOrFetch(ctx context.Context, sessionID string) (Record, error) {
	if rec, ok := c.Get(sessionID); ok {
		return rec, nil
	}
	if c.backend == nil {
		return Record{}, fmt.Errorf("session %s not cached and no backend configured", sessionID)
	}

	rec, err := c.backend.Fetch(ctx, sessionID)
	if err != nil {
		return Record{}, fmt.Errorf("fetch session %s: %w", sessionID, err)
	}
	rec.SessionID = sessionID

	c.mu.Lock()
	// A register may have landed while the fetch was in flight; keep it.
	if existing, ok := c.byID[sessionID]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.byID[sessionID] = rec
	c.mu.Unlock()

	return rec, nil
}

// Complete marks a session finished and persists the final record.
func (c *Cache) Complete(ctx context.Context, sessionID string) (Record, error) {
	rec, err := c.GetOrFetch(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}

	rec.Status = "completed"
	rec.EndedAt = time.Now().UTC()
	if err := c.Put(ctx, rec); err != nil {
		return Record{}, err
	}
	rec, _ = c.Get(sessionID)
	return rec, nil
}
