package channels_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func TestNew_CoversEveryChannel(t *testing.T) {
	t.Parallel()

	adapters, err := channels.New(channels.Config{
		Email:                   email.Config{Provider: email.ProviderDev, DevOutputDir: t.TempDir()},
		BreakerFailureThreshold: 3,
	}, nil, testOptions(contacts(), nil)...)
	require.NoError(t, err)

	reg, err := notifications.NewRegistry(adapters...)
	require.NoError(t, err)
	assert.Empty(t, reg.Missing())
	assert.ElementsMatch(t, notifications.Channels(), reg.Channels())
}

func TestNew_InvalidPlatformMailer(t *testing.T) {
	t.Parallel()

	_, err := channels.New(channels.Config{
		Email: email.Config{PostmarkServerToken: "token", SenderEmail: "not-an-address"},
	}, nil)
	assert.ErrorIs(t, err, email.ErrInvalidConfig)
}
