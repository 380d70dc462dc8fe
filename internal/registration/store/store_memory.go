package store

import (
	"context"
	"crypto/subtle"
	"sync"

	"nftform/internal/registration/models"
	"nftform/pkg/platform/sentinel"
)

// InMemoryStore keeps registrations in a map guarded by a mutex. The map key
// plays the role of the UNIQUE(email) constraint.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.Record
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]models.Record)}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.Email]; exists {
		return sentinel.ErrConflict
	}
	s.records[record.Email] = *record
	return nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

func (s *InMemoryStore) FindByEmailAndCode(_ context.Context, email, code string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[email]
	if !ok || subtle.ConstantTimeCompare([]byte(record.AccessCode), []byte(code)) != 1 {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

// Ping satisfies the health checker; the map is always reachable.
func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}
