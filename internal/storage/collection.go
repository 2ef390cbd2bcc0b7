// Package storage is the volatile entity store for the profile aggregate.
//
// Each entity kind lives in its own Collection. Collections serialize writes
// per record, hand out copies so callers never alias stored state, and hide
// soft-deleted records from every read path in one place.
package storage

import (
	"context"
	"sync"
	"time"

	"profile-service/internal/domain"
	id "profile-service/pkg/domain"
	"profile-service/pkg/platform/sentinel"
)

// Record is the contract an entity pointer satisfies to live in a Collection.
type Record[T any] interface {
	*T
	Key() string
	Owner() id.ProfileID
	Metadata() *domain.Meta
}

// Collection is an in-memory keyed container for one entity kind.
type Collection[T any, P Record[T]] struct {
	mu      sync.RWMutex
	rows    map[string]T
	order   []string
	byOwner map[id.ProfileID][]string
}

func NewCollection[T any, P Record[T]]() *Collection[T, P] {
	return &Collection[T, P]{
		rows:    make(map[string]T),
		byOwner: make(map[id.ProfileID][]string),
	}
}

// Create stores a copy of v, stamping creation and update times.
func (c *Collection[T, P]) Create(_ context.Context, v P, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := v.Key()
	if _, exists := c.rows[key]; exists {
		return sentinel.ErrConflict
	}
	meta := v.Metadata()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now
	c.rows[key] = *v
	c.order = append(c.order, key)
	owner := v.Owner()
	c.byOwner[owner] = append(c.byOwner[owner], key)
	return nil
}

// Get returns a copy of the live record, or sentinel.ErrNotFound when it is
// absent or soft-deleted.
func (c *Collection[T, P]) Get(_ context.Context, key string) (P, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	row, ok := c.rows[key]
	if !ok || P(&row).Metadata().IsDeleted() {
		return nil, sentinel.ErrNotFound
	}
	return P(&row), nil
}

// Update applies mutate to a copy of the live record and commits it if mutate
// succeeds. Updates of one collection are serialized, so read-modify-write on a
// single record is atomic.
func (c *Collection[T, P]) Update(_ context.Context, key string, now time.Time, mutate func(P) error) (P, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.rows[key]
	if !ok || P(&row).Metadata().IsDeleted() {
		return nil, sentinel.ErrNotFound
	}
	next := row
	if err := mutate(P(&next)); err != nil {
		return nil, err
	}
	P(&next).Metadata().UpdatedAt = now
	c.rows[key] = next
	out := next
	return P(&out), nil
}

// SoftDelete stamps DeletedAt. The record stays in memory but disappears from
// reads. Deleting an absent or already deleted record returns ErrNotFound.
func (c *Collection[T, P]) SoftDelete(_ context.Context, key string, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.rows[key]
	if !ok || P(&row).Metadata().IsDeleted() {
		return sentinel.ErrNotFound
	}
	meta := P(&row).Metadata()
	deletedAt := now
	meta.DeletedAt = &deletedAt
	meta.UpdatedAt = now
	c.rows[key] = row
	return nil
}

// ListByProfile returns live records owned by profileID in insertion order.
func (c *Collection[T, P]) ListByProfile(_ context.Context, profileID id.ProfileID) []P {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := c.byOwner[profileID]
	out := make([]P, 0, len(keys))
	for _, key := range keys {
		row := c.rows[key]
		if P(&row).Metadata().IsDeleted() {
			continue
		}
		out = append(out, P(&row))
	}
	return out
}

// Find returns the first live record matching pred in insertion order.
func (c *Collection[T, P]) Find(_ context.Context, pred func(P) bool) (P, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, key := range c.order {
		row := c.rows[key]
		p := P(&row)
		if p.Metadata().IsDeleted() {
			continue
		}
		if pred(p) {
			return p, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Scan returns every live record matching pred in insertion order.
func (c *Collection[T, P]) Scan(_ context.Context, pred func(P) bool) []P {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []P
	for _, key := range c.order {
		row := c.rows[key]
		p := P(&row)
		if p.Metadata().IsDeleted() || !pred(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Len counts live records.
func (c *Collection[T, P]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, row := range c.rows {
		if !P(&row).Metadata().IsDeleted() {
			n++
		}
	}
	return n
}
