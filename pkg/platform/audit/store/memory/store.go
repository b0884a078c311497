package memory

import (
	"context"
	"sync"

	audit "notary/pkg/platform/audit"
)

// InMemoryStore keeps audit events per contract. Used in tests and when no
// database is configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]audit.Event
	order  []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ContractID] = append(s.events[event.ContractID], event)
	s.order = append(s.order, event)
	return nil
}

func (s *InMemoryStore) ListByContract(_ context.Context, contractID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[contractID]...), nil
}

// ListRecent returns up to limit events across contracts, most recent last.
// Security events carry no contract id and are only reachable here.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := max(len(s.order)-limit, 0)
	return append([]audit.Event{}, s.order[start:]...), nil
}
