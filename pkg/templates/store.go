package templates

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Store loads templates by id.
type Store interface {
	// Template returns ErrTemplateNotFound for unknown ids.
	Template(ctx context.Context, id string) (Template, error)
}

// MemoryStore is an in-memory Store. Templates are normalized on save.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{templates: make(map[string]Template)}
}

func (s *MemoryStore) Template(_ context.Context, id string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	return t.clone(), nil
}

// Save validates and stores t, replacing any template with the same id.
func (s *MemoryStore) Save(_ context.Context, t Template) error {
	t, err := t.Normalize()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t.clone()
	return nil
}

// IDs lists stored template ids in lexical order.
func (s *MemoryStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, strings.Compare)
	return ids
}
