package notifications_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	t.Run("lookup and missing", func(t *testing.T) {
		t.Parallel()

		onsite := newMockAdapter(notifications.ChannelOnsite)
		email := newMockAdapter(notifications.ChannelEmail)
		r, err := notifications.NewRegistry(email, onsite, nil)
		require.NoError(t, err)

		got, err := r.Lookup(notifications.ChannelEmail)
		require.NoError(t, err)
		assert.Same(t, email, got)

		_, err = r.Lookup(notifications.ChannelSMS)
		assert.ErrorIs(t, err, notifications.ErrAdapterNotFound)

		assert.Equal(t, []notifications.Channel{notifications.ChannelOnsite, notifications.ChannelEmail}, r.Channels())
		assert.Equal(t, []notifications.Channel{
			notifications.ChannelLine,
			notifications.ChannelWhatsApp,
			notifications.ChannelTelegram,
			notifications.ChannelSMS,
			notifications.ChannelPush,
		}, r.Missing())
		assert.True(t, r.Has(notifications.ChannelOnsite))
	})

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()

		_, err := notifications.NewRegistry(
			newMockAdapter(notifications.ChannelSMS),
			newMockAdapter(notifications.ChannelSMS),
		)
		assert.ErrorIs(t, err, notifications.ErrDuplicateAdapter)
	})

	t.Run("unknown channel", func(t *testing.T) {
		t.Parallel()

		_, err := notifications.NewRegistry(newMockAdapter("fax"))
		assert.ErrorIs(t, err, notifications.ErrUnknownChannel)
		assert.Panics(t, func() { notifications.MustNewRegistry(newMockAdapter("fax")) })
	})
}

func TestChannel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		channel      notifications.Channel
		readReceipts bool
	}{
		{notifications.ChannelEmail, true},
		{notifications.ChannelLine, true},
		{notifications.ChannelWhatsApp, true},
		{notifications.ChannelTelegram, true},
		{notifications.ChannelSMS, false},
		{notifications.ChannelPush, false},
		{notifications.ChannelOnsite, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.channel), func(t *testing.T) {
			t.Parallel()
			assert.True(t, tt.channel.Valid())
			assert.Equal(t, tt.readReceipts, tt.channel.SupportsReadReceipts())
		})
	}

	ch, err := notifications.ParseChannel(" Telegram ")
	require.NoError(t, err)
	assert.Equal(t, notifications.ChannelTelegram, ch)

	_, err = notifications.ParseChannel("pigeon")
	assert.ErrorIs(t, err, notifications.ErrUnknownChannel)
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	p, err := notifications.ParsePriority("urgent")
	require.NoError(t, err)
	assert.Equal(t, notifications.PriorityUrgent, p)
	assert.Greater(t, notifications.PriorityUrgent, notifications.PriorityHigh)
	assert.Equal(t, "high", notifications.PriorityHigh.String())

	_, err = notifications.ParsePriority("critical")
	assert.ErrorIs(t, err, notifications.ErrInvalidPriority)
}
