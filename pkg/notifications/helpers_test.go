package notifications_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// mockAdapter is a testify mock for notifications.Adapter.
type mockAdapter struct {
	mock.Mock
	channel  notifications.Channel
	batching bool
}

func newMockAdapter(ch notifications.Channel) *mockAdapter {
	m := &mockAdapter{channel: ch}
	m.On("ValidateConfig", mock.Anything).Return(notifications.Valid()).Maybe()
	m.On("IsEnabled", mock.Anything, mock.Anything).Return(true).Maybe()
	return m
}

func (m *mockAdapter) Channel() notifications.Channel { return m.channel }

func (m *mockAdapter) ProviderBatching() bool { return m.batching }

func (m *mockAdapter) Send(ctx context.Context, n notifications.Notification, cfg notifications.ChannelConfig) (notifications.SendResult, error) {
	args := m.Called(ctx, n, cfg)
	if fn, ok := args.Get(0).(func() notifications.SendResult); ok {
		return fn(), args.Error(1)
	}
	return args.Get(0).(notifications.SendResult), args.Error(1)
}

func (m *mockAdapter) ValidateConfig(cfg notifications.ChannelConfig) notifications.ValidationResult {
	args := m.Called(cfg)
	return args.Get(0).(notifications.ValidationResult)
}

func (m *mockAdapter) DeliveryStatus(ctx context.Context, providerMessageID string) (notifications.DeliveryState, error) {
	args := m.Called(ctx, providerMessageID)
	return args.Get(0).(notifications.DeliveryState), args.Error(1)
}

func (m *mockAdapter) IsEnabled(ctx context.Context, tenantID string) bool {
	args := m.Called(ctx, tenantID)
	return args.Bool(0)
}

// panicAdapter panics on every send.
type panicAdapter struct {
	channel notifications.Channel
}

func (p panicAdapter) Channel() notifications.Channel { return p.channel }
func (p panicAdapter) Send(context.Context, notifications.Notification, notifications.ChannelConfig) (notifications.SendResult, error) {
	panic("provider client exploded")
}
func (p panicAdapter) ValidateConfig(notifications.ChannelConfig) notifications.ValidationResult {
	return notifications.Valid()
}
func (p panicAdapter) DeliveryStatus(context.Context, string) (notifications.DeliveryState, error) {
	return "", notifications.ErrStatusUnavailable
}
func (p panicAdapter) IsEnabled(context.Context, string) bool { return true }

// stubLimiter denies channels listed in deny.
type stubLimiter struct {
	deny  map[notifications.Channel]time.Duration
	calls atomic.Int64
}

func (s *stubLimiter) Allow(_ context.Context, ch notifications.Channel, _ string) (bool, time.Duration, error) {
	s.calls.Add(1)
	if d, ok := s.deny[ch]; ok {
		return false, d, nil
	}
	return true, 0, nil
}

// stubGate returns a fixed decision or filters disabled channels.
type stubGate struct {
	decision *notifications.Decision
	disabled map[notifications.Channel]bool
}

func (g stubGate) ShouldSend(_ context.Context, _, _ string, _ notifications.Kind, channels []notifications.Channel) (notifications.Decision, error) {
	if g.decision != nil {
		return *g.decision, nil
	}
	var out []notifications.Channel
	for _, ch := range channels {
		if !g.disabled[ch] {
			out = append(out, ch)
		}
	}
	return notifications.Decision{Allowed: len(out) > 0, Channels: out}, nil
}

type stubRenderer struct {
	mu    sync.Mutex
	calls []string
}

func (r *stubRenderer) Render(_ context.Context, templateID, target string, vars map[string]any) (notifications.Rendered, error) {
	r.mu.Lock()
	r.calls = append(r.calls, templateID+"|"+target)
	r.mu.Unlock()
	name, _ := vars["name"].(string)
	return notifications.Rendered{Subject: "Hi " + name, Body: "<p>Hi " + name + "</p>", TextBody: "Hi " + name, Locale: "en"}, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func ok(id string) notifications.SendResult {
	return notifications.SendResult{Success: true, ProviderMessageID: id}
}

func statusByChannel(rows []notifications.DeliveryStatus) map[notifications.Channel]notifications.DeliveryStatus {
	out := make(map[notifications.Channel]notifications.DeliveryStatus, len(rows))
	for _, r := range rows {
		out[r.Channel] = r
	}
	return out
}
