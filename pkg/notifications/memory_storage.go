package notifications

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage and ContactStore.
// Suitable for development and testing. Returned values are copies.
type MemoryStorage struct {
	mu            sync.RWMutex
	notifications map[string]Notification
	deliveries    map[string]DeliveryStatus
	outbound      map[string]OutboundMessage
	configs       map[string]ChannelConfig
	contacts      map[string]Contact
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notifications: make(map[string]Notification),
		deliveries:    make(map[string]DeliveryStatus),
		outbound:      make(map[string]OutboundMessage),
		configs:       make(map[string]ChannelConfig),
		contacts:      make(map[string]Contact),
	}
}

func configKey(tenantID string, ch Channel) string { return tenantID + "\x00" + string(ch) }

// PutChannelConfig stores a tenant channel configuration.
func (s *MemoryStorage) PutChannelConfig(cfg ChannelConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.Credentials = maps.Clone(cfg.Credentials)
	cfg.Settings = maps.Clone(cfg.Settings)
	s.configs[configKey(cfg.TenantID, cfg.Channel)] = cfg
}

// PutContact stores a user's contact details.
func (s *MemoryStorage) PutContact(c Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.PushTokens = slices.Clone(c.PushTokens)
	s.contacts[c.UserID] = c
}

func (s *MemoryStorage) CreateNotification(_ context.Context, n Notification) error {
	if n.ID == "" || n.RecipientID == "" {
		return ErrInvalidRequest
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n.Metadata = maps.Clone(n.Metadata)
	s.notifications[n.ID] = n
	return nil
}

func (s *MemoryStorage) GetNotification(_ context.Context, id string) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return Notification{}, ErrNotificationNotFound
	}
	n.Metadata = maps.Clone(n.Metadata)
	return n, nil
}

func (s *MemoryStorage) ListNotifications(_ context.Context, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Notification
	for _, n := range s.notifications {
		if !visibleTo(n, opts.UserID, opts.Sent) {
			continue
		}
		if opts.TenantID != "" && n.TenantID != opts.TenantID {
			continue
		}
		if opts.OnlyUnread && n.Read {
			continue
		}
		if len(opts.Kinds) > 0 && !slices.Contains(opts.Kinds, n.Kind) {
			continue
		}
		out = append(out, n)
	}

	slices.SortFunc(out, func(a, b Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return paginate(out, opts.Offset, opts.Limit), nil
}

func visibleTo(n Notification, userID string, sent bool) bool {
	if sent {
		return n.SenderID == userID && !n.DeletedBySender
	}
	return n.RecipientID == userID && !n.DeletedByRecipient
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *MemoryStorage) CountUnread(_ context.Context, userID, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications {
		if n.RecipientID != userID || n.DeletedByRecipient || n.Read {
			continue
		}
		if tenantID != "" && n.TenantID != tenantID {
			continue
		}
		count++
	}
	return count, nil
}

func (s *MemoryStorage) MarkNotificationRead(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return ErrNotificationNotFound
	}
	if n.Read {
		return nil
	}
	n.Read = true
	n.ReadAt = &at
	n.UpdatedAt = at
	s.notifications[id] = n
	return nil
}

func (s *MemoryStorage) MarkNotificationDeleted(_ context.Context, id string, bySender, byRecipient bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return ErrNotificationNotFound
	}
	n.DeletedBySender = n.DeletedBySender || bySender
	n.DeletedByRecipient = n.DeletedByRecipient || byRecipient
	n.UpdatedAt = time.Now()
	s.notifications[id] = n
	return nil
}

func (s *MemoryStorage) CreateDelivery(_ context.Context, d DeliveryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.deliveries {
		if existing.NotificationID == d.NotificationID && existing.Channel == d.Channel {
			return ErrDeliveryExists
		}
	}
	s.deliveries[d.ID] = d
	return nil
}

func (s *MemoryStorage) GetDelivery(_ context.Context, id string) (DeliveryStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deliveries[id]
	if !ok {
		return DeliveryStatus{}, ErrDeliveryNotFound
	}
	return d, nil
}

func (s *MemoryStorage) FindDelivery(_ context.Context, notificationID string, ch Channel) (DeliveryStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.deliveries {
		if d.NotificationID == notificationID && d.Channel == ch {
			return d, nil
		}
	}
	return DeliveryStatus{}, ErrDeliveryNotFound
}

func (s *MemoryStorage) FindDeliveryByProviderID(_ context.Context, ch Channel, providerMessageID string) (DeliveryStatus, error) {
	if providerMessageID == "" {
		return DeliveryStatus{}, ErrDeliveryNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.deliveries {
		if d.Channel == ch && d.ProviderMessageID == providerMessageID {
			return d, nil
		}
	}
	return DeliveryStatus{}, ErrDeliveryNotFound
}

func (s *MemoryStorage) ListDeliveries(_ context.Context, notificationID string) ([]DeliveryStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DeliveryStatus
	for _, d := range s.deliveries {
		if d.NotificationID == notificationID {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b DeliveryStatus) int { return cmp.Compare(a.Channel, b.Channel) })
	return out, nil
}

func (s *MemoryStorage) UpdateDelivery(_ context.Context, d DeliveryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[d.ID]; !ok {
		return ErrDeliveryNotFound
	}
	s.deliveries[d.ID] = d
	return nil
}

func (s *MemoryStorage) ClaimDeliveries(_ context.Context, opts ClaimOptions) ([]DeliveryStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []DeliveryStatus
	for _, d := range s.deliveries {
		if d.Status != StatePending && d.Status != StateFailed {
			continue
		}
		if opts.MaxAttempts > 0 && d.Attempts >= opts.MaxAttempts {
			continue
		}
		if leased(d.LockedUntil, opts.Now) {
			continue
		}
		if opts.NotificationID != "" && d.NotificationID != opts.NotificationID {
			continue
		}
		if opts.TenantID != "" && d.TenantID != opts.TenantID {
			continue
		}
		if slices.Contains(opts.ExcludeChannels, d.Channel) {
			continue
		}
		candidates = append(candidates, d)
	}

	slices.SortFunc(candidates, func(a, b DeliveryStatus) int {
		return queueOrder(a.Priority, b.Priority, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	if opts.Limit > 0 && len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}

	for i := range candidates {
		until := opts.LeaseUntil
		candidates[i].LockedUntil = &until
		s.deliveries[candidates[i].ID] = candidates[i]
	}
	return candidates, nil
}

func (s *MemoryStorage) EnqueueOutbound(_ context.Context, m OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbound[m.ID] = m
	return nil
}

func (s *MemoryStorage) ClaimOutbound(_ context.Context, opts ClaimOptions) ([]OutboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []OutboundMessage
	for _, m := range s.outbound {
		if m.Status != OutboundPending && m.Status != OutboundFailed {
			continue
		}
		if m.MaxAttempts > 0 && m.Attempts >= m.MaxAttempts {
			continue
		}
		if opts.MaxAttempts > 0 && m.Attempts >= opts.MaxAttempts {
			continue
		}
		if m.ScheduledAt.After(opts.Now) || leased(m.LockedUntil, opts.Now) {
			continue
		}
		if opts.NotificationID != "" && m.NotificationID != opts.NotificationID {
			continue
		}
		if opts.TenantID != "" && m.TenantID != opts.TenantID {
			continue
		}
		candidates = append(candidates, m)
	}

	slices.SortFunc(candidates, func(a, b OutboundMessage) int {
		return queueOrder(a.Priority, b.Priority, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	if opts.Limit > 0 && len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}

	for i := range candidates {
		until := opts.LeaseUntil
		candidates[i].LockedUntil = &until
		candidates[i].Status = OutboundProcessing
		candidates[i].UpdatedAt = opts.Now
		s.outbound[candidates[i].ID] = candidates[i]
	}
	return candidates, nil
}

func (s *MemoryStorage) UpdateOutbound(_ context.Context, m OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outbound[m.ID]; !ok {
		return ErrOutboundNotFound
	}
	s.outbound[m.ID] = m
	return nil
}

// Outbound returns the outbound rows of a notification.
func (s *MemoryStorage) Outbound(notificationID string) []OutboundMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []OutboundMessage
	for _, m := range s.outbound {
		if m.NotificationID == notificationID {
			out = append(out, m)
		}
	}
	return out
}

func (s *MemoryStorage) ChannelConfig(_ context.Context, tenantID string, ch Channel) (ChannelConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[configKey(tenantID, ch)]
	if !ok {
		return ChannelConfig{}, ErrChannelConfigNotFound
	}
	cfg.Credentials = maps.Clone(cfg.Credentials)
	cfg.Settings = maps.Clone(cfg.Settings)
	return cfg, nil
}

func (s *MemoryStorage) Contact(_ context.Context, userID string) (Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[userID]
	if !ok {
		return Contact{}, ErrContactNotFound
	}
	c.PushTokens = slices.Clone(c.PushTokens)
	return c, nil
}

func leased(until *time.Time, now time.Time) bool {
	return until != nil && until.After(now)
}

func queueOrder(pa, pb Priority, ca, cb time.Time, ia, ib string) int {
	if c := cmp.Compare(pb, pa); c != 0 {
		return c
	}
	if c := ca.Compare(cb); c != 0 {
		return c
	}
	return cmp.Compare(ia, ib)
}
