package audit

import (
	"context"
	"sync"

	"profile-service/internal/domain"
	id "profile-service/pkg/domain"
)

// Store persists audit entries. Implementations are append-only: there is no
// update or delete.
type Store interface {
	Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error)
	ListByProfile(ctx context.Context, profileID id.ProfileID) ([]domain.AuditEntry, error)
}

// InMemoryStore keeps entries per profile in append order and assigns a
// process-wide sequence number used to break timestamp ties.
type InMemoryStore struct {
	mu      sync.RWMutex
	seq     uint64
	entries map[id.ProfileID][]domain.AuditEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.ProfileID][]domain.AuditEntry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	entry.Sequence = s.seq
	s.entries[entry.ProfileID] = append(s.entries[entry.ProfileID], entry)
	return entry, nil
}

func (s *InMemoryStore) ListByProfile(_ context.Context, profileID id.ProfileID) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditEntry(nil), s.entries[profileID]...), nil
}
