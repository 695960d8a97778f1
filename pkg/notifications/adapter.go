package notifications

import (
	"context"
	"fmt"
	"slices"
)

// Adapter sends notifications through one channel. Framing rules such as
// length limits and recipient address types are private to each adapter.
type Adapter interface {
	Channel() Channel
	// Send delivers n using cfg. A returned error and a SendResult with
	// Success=false are both recorded as a failed delivery.
	Send(ctx context.Context, n Notification, cfg ChannelConfig) (SendResult, error)
	ValidateConfig(cfg ChannelConfig) ValidationResult
	// DeliveryStatus polls the provider for providers without webhooks.
	DeliveryStatus(ctx context.Context, providerMessageID string) (DeliveryState, error)
	// IsEnabled reports whether the adapter can serve the tenant using
	// platform credentials when the tenant has no channel config of its own.
	IsEnabled(ctx context.Context, tenantID string) bool
}

// ProviderBatcher is implemented by adapters whose provider batches sends.
// Their messages go through the outbound queue table instead of being
// dispatched straight from the delivery ledger.
type ProviderBatcher interface {
	ProviderBatching() bool
}

func usesOutbound(a Adapter) bool {
	b, ok := a.(ProviderBatcher)
	return ok && b.ProviderBatching()
}

// Registry maps channels to adapters. It is filled once at construction
// and is read-only afterwards, so lookups need no locking.
type Registry struct {
	adapters map[Channel]Adapter
}

// NewRegistry registers the given adapters. Unknown channels and duplicate
// registrations are rejected.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[Channel]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		ch := a.Channel()
		if !ch.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
		}
		if _, ok := r.adapters[ch]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAdapter, ch)
		}
		r.adapters[ch] = a
	}
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(adapters ...Adapter) *Registry {
	r, err := NewRegistry(adapters...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the adapter for ch or ErrAdapterNotFound.
func (r *Registry) Lookup(ch Channel) (Adapter, error) {
	a, ok := r.adapters[ch]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAdapterNotFound, ch)
	}
	return a, nil
}

// Channels lists registered channels in canonical order.
func (r *Registry) Channels() []Channel {
	out := make([]Channel, 0, len(r.adapters))
	for _, ch := range allChannels {
		if _, ok := r.adapters[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Missing lists known channels that have no adapter. Callers use it at
// start-up to fail fast or warn about partial coverage.
func (r *Registry) Missing() []Channel {
	var out []Channel
	for _, ch := range allChannels {
		if _, ok := r.adapters[ch]; !ok {
			out = append(out, ch)
		}
	}
	return out
}

// Has reports whether ch has an adapter.
func (r *Registry) Has(ch Channel) bool {
	return slices.Contains(r.Channels(), ch)
}
