package notifications_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func seedNotification(t *testing.T, store *notifications.MemoryStorage, id string) notifications.Notification {
	t.Helper()
	n := notifications.Notification{
		ID:          id,
		SenderID:    "sender",
		RecipientID: "recipient",
		TenantID:    "tenant",
		Subject:     "Subject",
		Body:        "Body",
		Kind:        notifications.KindOrder,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, store.CreateNotification(context.Background(), n))
	return n
}

func TestDeliveryRules(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	email := notifications.DeliveryStatus{Channel: notifications.ChannelEmail}
	sms := notifications.DeliveryStatus{Channel: notifications.ChannelSMS}

	tests := []struct {
		name     string
		row      notifications.DeliveryStatus
		from, to notifications.DeliveryState
		allowed  bool
	}{
		{"pending to sent", email, notifications.StatePending, notifications.StateSent, true},
		{"pending to failed", email, notifications.StatePending, notifications.StateFailed, true},
		{"sent to delivered", email, notifications.StateSent, notifications.StateDelivered, true},
		{"sent to bounced", email, notifications.StateSent, notifications.StateBounced, true},
		{"failed to pending", email, notifications.StateFailed, notifications.StatePending, true},
		{"failed to delivered", email, notifications.StateFailed, notifications.StateDelivered, false},
		{"failed to sent", email, notifications.StateFailed, notifications.StateSent, false},
		{"pending to delivered", email, notifications.StatePending, notifications.StateDelivered, false},
		{"delivered to read email", email, notifications.StateDelivered, notifications.StateRead, true},
		{"delivered to read sms", sms, notifications.StateDelivered, notifications.StateRead, false},
		{"read to delivered", email, notifications.StateRead, notifications.StateDelivered, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.allowed, notifications.DeliveryRules.Can(ctx, tt.from, tt.to, tt.row))
		})
	}
}

func TestTracker_FailedNeedsNewCycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifications.NewMemoryStorage()
	tracker := notifications.NewTracker(store)
	n := seedNotification(t, store, "n1")

	d, err := tracker.Open(ctx, n, notifications.ChannelLine)
	require.NoError(t, err)

	d, err = tracker.RecordFailure(ctx, d, assert.AnError)
	require.NoError(t, err)
	assert.Equal(t, notifications.StateFailed, d.Status)
	assert.Equal(t, 1, d.Attempts)

	_, err = tracker.Transition(ctx, d, notifications.StateDelivered, nil)
	require.ErrorIs(t, err, notifications.ErrInvalidTransition)

	d, err = tracker.Retry(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, notifications.StatePending, d.Status)
	assert.Empty(t, d.Error)

	d, err = tracker.RecordSent(ctx, d, ok("pm-1"))
	require.NoError(t, err)
	d, err = tracker.Transition(ctx, d, notifications.StateDelivered, nil)
	require.NoError(t, err)
	assert.Equal(t, notifications.StateDelivered, d.Status)
	assert.Equal(t, 2, d.Attempts)

	_, err = tracker.Open(ctx, n, notifications.ChannelLine)
	assert.ErrorIs(t, err, notifications.ErrDeliveryExists)
}

func TestTracker_RecordSentDeliveredImmediately(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifications.NewMemoryStorage()
	tracker := notifications.NewTracker(store)
	n := seedNotification(t, store, "n1")

	d, err := tracker.Open(ctx, n, notifications.ChannelOnsite)
	require.NoError(t, err)

	at := time.Now()
	d, err = tracker.RecordSent(ctx, d, notifications.SendResult{Success: true, DeliveredAt: &at})
	require.NoError(t, err)
	assert.Equal(t, notifications.StateDelivered, d.Status)
	require.NotNil(t, d.DeliveredAt)
	assert.True(t, at.Equal(*d.DeliveredAt))
}

func TestTracker_MarkAsRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifications.NewMemoryStorage()
	tracker := notifications.NewTracker(store)
	n := seedNotification(t, store, "n1")

	sentOn := []notifications.Channel{
		notifications.ChannelEmail,
		notifications.ChannelLine,
		notifications.ChannelWhatsApp,
		notifications.ChannelTelegram,
		notifications.ChannelSMS,
		notifications.ChannelPush,
		notifications.ChannelOnsite,
	}
	for _, ch := range sentOn {
		d, err := tracker.Open(ctx, n, ch)
		require.NoError(t, err)
		_, err = tracker.RecordSent(ctx, d, ok("pm-"+string(ch)))
		require.NoError(t, err)
	}

	assert.ErrorIs(t, tracker.MarkAsRead(ctx, n.ID, "sender"), notifications.ErrNotParticipant)
	require.NoError(t, tracker.MarkAsRead(ctx, n.ID, "recipient"))

	stored, err := store.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)
	assert.NotNil(t, stored.ReadAt)

	rows, err := tracker.Statuses(ctx, n.ID)
	require.NoError(t, err)
	for ch, row := range statusByChannel(rows) {
		if ch.SupportsReadReceipts() {
			assert.Equal(t, notifications.StateRead, row.Status, "channel %s", ch)
			assert.NotNil(t, row.ReadAt)
		} else {
			assert.Equal(t, notifications.StateSent, row.Status, "channel %s", ch)
			assert.Nil(t, row.ReadAt)
		}
	}
}

func TestTracker_HandleDeliveryCallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifications.NewMemoryStorage()
	tracker := notifications.NewTracker(store)
	n := seedNotification(t, store, "n1")

	d, err := tracker.Open(ctx, n, notifications.ChannelEmail)
	require.NoError(t, err)
	_, err = tracker.RecordSent(ctx, d, ok("pm-email"))
	require.NoError(t, err)

	t.Run("unknown message is discarded", func(t *testing.T) {
		res, err := tracker.HandleDeliveryCallback(ctx, notifications.Callback{
			Channel:           notifications.ChannelEmail,
			ProviderMessageID: "nope",
			Status:            notifications.StateDelivered,
		})
		require.NoError(t, err)
		assert.False(t, res.Matched)
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := tracker.HandleDeliveryCallback(ctx, notifications.Callback{Channel: "fax"})
		assert.ErrorIs(t, err, notifications.ErrInvalidCallback)
	})

	t.Run("delivered then duplicate", func(t *testing.T) {
		at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
		cb := notifications.Callback{
			Channel:           notifications.ChannelEmail,
			ProviderMessageID: "pm-email",
			Status:            notifications.StateDelivered,
			DeliveredAt:       &at,
		}
		res, err := tracker.HandleDeliveryCallback(ctx, cb)
		require.NoError(t, err)
		assert.True(t, res.Matched)
		assert.True(t, res.Applied)
		assert.Equal(t, at, *res.Delivery.DeliveredAt)

		res, err = tracker.HandleDeliveryCallback(ctx, cb)
		require.NoError(t, err)
		assert.True(t, res.Matched)
		assert.False(t, res.Applied)
	})

	t.Run("illegal transition", func(t *testing.T) {
		res, err := tracker.HandleDeliveryCallback(ctx, notifications.Callback{
			Channel:           notifications.ChannelEmail,
			ProviderMessageID: "pm-email",
			Status:            notifications.StatePending,
		})
		assert.ErrorIs(t, err, notifications.ErrInvalidTransition)
		assert.True(t, res.Matched)
		assert.False(t, res.Applied)
	})
}

func TestTracker_Refresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifications.NewMemoryStorage()
	sms := newMockAdapter(notifications.ChannelSMS)
	sms.On("DeliveryStatus", mock.Anything, "pm-sms").Return(notifications.StateDelivered, nil).Once()

	tracker := notifications.NewTracker(store,
		notifications.WithTrackerRegistry(notifications.MustNewRegistry(sms)))
	n := seedNotification(t, store, "n1")

	d, err := tracker.Open(ctx, n, notifications.ChannelSMS)
	require.NoError(t, err)

	_, err = tracker.Refresh(ctx, d.ID)
	assert.ErrorIs(t, err, notifications.ErrNoProviderMessageID)

	d, err = tracker.RecordSent(ctx, d, ok("pm-sms"))
	require.NoError(t, err)

	d, err = tracker.Refresh(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, notifications.StateDelivered, d.Status)
	assert.NotNil(t, d.DeliveredAt)
	sms.AssertExpectations(t)
}
