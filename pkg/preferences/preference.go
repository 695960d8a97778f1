package preferences

import (
	"fmt"
	"maps"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// DigestFrequency controls how often non-urgent notifications are bundled.
type DigestFrequency string

const (
	DigestImmediate DigestFrequency = "immediate"
	DigestDaily     DigestFrequency = "daily"
	DigestWeekly    DigestFrequency = "weekly"
)

func (d DigestFrequency) Valid() bool {
	switch d {
	case DigestImmediate, DigestDaily, DigestWeekly:
		return true
	default:
		return false
	}
}

// Preference holds per-channel and per-kind switches.
//
// An empty UserID is the tenant default; an empty TenantID is the user's
// global preference. Channels or kinds missing from the maps are enabled.
type Preference struct {
	UserID          string
	TenantID        string
	Channels        map[notifications.Channel]bool
	Kinds           map[notifications.Kind]bool
	DigestFrequency DigestFrequency
	UpdatedAt       time.Time
}

// Default returns the all-enabled preference used when nothing is stored.
func Default(userID, tenantID string) Preference {
	return Preference{
		UserID:          userID,
		TenantID:        tenantID,
		Channels:        map[notifications.Channel]bool{},
		Kinds:           map[notifications.Kind]bool{},
		DigestFrequency: DigestImmediate,
	}
}

// ChannelEnabled reports whether ch is not explicitly disabled.
func (p Preference) ChannelEnabled(ch notifications.Channel) bool {
	enabled, ok := p.Channels[ch]
	return !ok || enabled
}

// KindEnabled reports whether k is not explicitly disabled.
func (p Preference) KindEnabled(k notifications.Kind) bool {
	enabled, ok := p.Kinds[k]
	return !ok || enabled
}

// Clone returns a deep copy.
func (p Preference) Clone() Preference {
	p.Channels = maps.Clone(p.Channels)
	p.Kinds = maps.Clone(p.Kinds)
	return p
}

// Validate checks map keys and the digest frequency.
func (p Preference) Validate() error {
	if p.UserID == "" && p.TenantID == "" {
		return fmt.Errorf("%w: user id or tenant id is required", ErrInvalidPreference)
	}
	for ch := range p.Channels {
		if !ch.Valid() {
			return fmt.Errorf("%w: unknown channel %q", ErrInvalidPreference, ch)
		}
	}
	for k := range p.Kinds {
		if !k.Valid() {
			return fmt.Errorf("%w: unknown kind %q", ErrInvalidPreference, k)
		}
	}
	if p.DigestFrequency != "" && !p.DigestFrequency.Valid() {
		return fmt.Errorf("%w: unknown digest frequency %q", ErrInvalidPreference, p.DigestFrequency)
	}
	return nil
}
