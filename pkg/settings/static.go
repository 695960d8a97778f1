package settings

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Static is an in-memory Provider. It backs tests and single-process
// deployments that configure tenants from the environment.
type Static struct {
	mu      sync.RWMutex
	system  System
	tenants map[string]Tenant
}

// NewStatic creates a provider with the given system settings and tenants.
func NewStatic(system System, tenants ...Tenant) *Static {
	s := &Static{
		system:  system.Normalize(),
		tenants: make(map[string]Tenant, len(tenants)),
	}
	for _, t := range tenants {
		s.tenants[t.TenantID] = t
	}
	return s
}

func (s *Static) System(context.Context) (System, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.system, nil
}

func (s *Static) Tenant(_ context.Context, tenantID string) (Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	return t, nil
}

func (s *Static) Tenants(context.Context) ([]Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Tenant) int { return strings.Compare(a.TenantID, b.TenantID) })
	return out, nil
}

// SetSystem replaces the system settings.
func (s *Static) SetSystem(system System) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.system = system.Normalize()
}

// SetTenant adds or replaces a tenant.
func (s *Static) SetTenant(t Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.TenantID] = t
}
