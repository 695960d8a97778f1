package settings

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBatchSize   = 100
)

// System holds platform-wide notification settings.
type System struct {
	NotificationsEnabled bool
	// GlobalRateLimitPerMinute caps every channel; zero disables the cap.
	GlobalRateLimitPerMinute int
	MaxAttempts              int
	BatchSize                int
}

// DefaultSystem returns settings used when nothing is configured.
func DefaultSystem() System {
	return System{
		NotificationsEnabled: true,
		MaxAttempts:          DefaultMaxAttempts,
		BatchSize:            DefaultBatchSize,
	}
}

// Normalize fills zero values with defaults.
func (s System) Normalize() System {
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
	if s.BatchSize <= 0 {
		s.BatchSize = DefaultBatchSize
	}
	if s.GlobalRateLimitPerMinute < 0 {
		s.GlobalRateLimitPerMinute = 0
	}
	return s
}

// Tenant holds the per-tenant settings the notification subsystem reads.
type Tenant struct {
	TenantID    string
	Name        string
	OwnerUserID string
	// BatchSize overrides System.BatchSize for tenant-scoped sweeps when
	// positive.
	BatchSize           int
	ReservationsEnabled bool
	ReminderLeadTime    time.Duration
}

// RemindersActive reports whether the reminder sweep should consider this tenant.
func (t Tenant) RemindersActive() bool {
	return t.ReservationsEnabled && t.ReminderLeadTime > 0
}

// Provider supplies system and tenant settings.
type Provider interface {
	System(ctx context.Context) (System, error)
	// Tenant returns ErrTenantNotFound for unknown tenants.
	Tenant(ctx context.Context, tenantID string) (Tenant, error)
	Tenants(ctx context.Context) ([]Tenant, error)
}

// BatchSize resolves the batch page size: explicit wins, then the tenant
// override, then the system value.
func BatchSize(ctx context.Context, p Provider, tenantID string, explicit int) int {
	if explicit > 0 {
		return explicit
	}
	sys := DefaultSystem()
	if p != nil {
		if s, err := p.System(ctx); err == nil {
			sys = s.Normalize()
		}
		if tenantID != "" {
			if t, err := p.Tenant(ctx, tenantID); err == nil && t.BatchSize > 0 {
				return t.BatchSize
			}
		}
	}
	return sys.BatchSize
}
