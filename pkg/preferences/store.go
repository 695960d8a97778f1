package preferences

import (
	"context"
	"sync"
)

// Store persists preference records.
type Store interface {
	// GetPreference returns ErrPreferenceNotFound when no record exists for
	// the exact (userID, tenantID) pair.
	GetPreference(ctx context.Context, userID, tenantID string) (Preference, error)
	SavePreference(ctx context.Context, p Preference) error
	DeletePreference(ctx context.Context, userID, tenantID string) error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[key]Preference
}

type key struct {
	userID   string
	tenantID string
}

func NewMemoryStore(initial ...Preference) *MemoryStore {
	s := &MemoryStore{prefs: make(map[key]Preference, len(initial))}
	for _, p := range initial {
		s.prefs[key{p.UserID, p.TenantID}] = p.Clone()
	}
	return s
}

func (s *MemoryStore) GetPreference(_ context.Context, userID, tenantID string) (Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[key{userID, tenantID}]
	if !ok {
		return Preference{}, ErrPreferenceNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) SavePreference(_ context.Context, p Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[key{p.UserID, p.TenantID}] = p.Clone()
	return nil
}

func (s *MemoryStore) DeletePreference(_ context.Context, userID, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{userID, tenantID}
	if _, ok := s.prefs[k]; !ok {
		return ErrPreferenceNotFound
	}
	delete(s.prefs, k)
	return nil
}
