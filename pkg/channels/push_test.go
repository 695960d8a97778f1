package channels_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

type fcmBody struct {
	Message struct {
		Token        string `json:"token"`
		Notification struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		} `json:"notification"`
		Data map[string]string `json:"data"`
	} `json:"message"`
}

func pushServer(t *testing.T, badToken string) (channels.Config, *capture, []channels.Option) {
	t.Helper()
	srv, rec := serve(t, func(w http.ResponseWriter, _ *http.Request, c captured) {
		var body fcmBody
		_ = json.Unmarshal(c.Body, &body)
		if body.Message.Token == badToken {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"status":"NOT_FOUND","message":"Requested entity was not found."}}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"projects/shop/messages/` + body.Message.Token + `"}`))
	})
	store := contacts(
		notifications.Contact{UserID: "user-1", PushTokens: []string{"dev-a", "dev-b"}},
		notifications.Contact{UserID: "user-2"},
	)
	return channels.Config{FCMProjectID: "shop", FCMAPIURL: srv.URL}, rec, testOptions(store, srv)
}

func TestPush_Send(t *testing.T) {
	t.Parallel()

	tenantToken := notifications.ChannelConfig{Credentials: map[string]string{channels.CredFCMAccessToken: "ya29.tenant"}}

	t.Run("one request per device", func(t *testing.T) {
		t.Parallel()
		cfg, rec, opts := pushServer(t, "")
		a, err := channels.NewPush(cfg, opts...)
		require.NoError(t, err)

		n := notification()
		n.Subject = strings.Repeat("t", 150)
		res, err := a.Send(context.Background(), n, tenantToken)
		require.NoError(t, err)
		assert.Equal(t, "projects/shop/messages/dev-a", res.ProviderMessageID)

		reqs := rec.all()
		require.Len(t, reqs, 2)
		assert.Equal(t, "/v1/projects/shop/messages:send", reqs[0].Path)
		assert.Equal(t, "Bearer ya29.tenant", reqs[0].Header.Get("Authorization"))

		var body fcmBody
		require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
		assert.Len(t, []rune(body.Message.Notification.Title), 100)
		assert.Equal(t, "See you at 19:00", body.Message.Notification.Body)
		assert.Equal(t, n.ID, body.Message.Data["notification_id"])
		assert.Equal(t, n.URL, body.Message.Data["url"])
	})

	t.Run("partial device failure still succeeds", func(t *testing.T) {
		t.Parallel()
		cfg, _, opts := pushServer(t, "dev-a")
		a, err := channels.NewPush(cfg, opts...)
		require.NoError(t, err)

		res, err := a.Send(context.Background(), notification(), tenantToken)
		require.NoError(t, err)
		assert.Equal(t, "projects/shop/messages/dev-b", res.ProviderMessageID)
	})

	t.Run("platform token source", func(t *testing.T) {
		t.Parallel()
		cfg, rec, opts := pushServer(t, "")
		a, err := channels.NewPush(cfg, opts...)
		require.NoError(t, err)
		a.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ya29.platform"}))
		assert.True(t, a.IsEnabled(context.Background(), "tenant-1"))

		_, err = a.Send(context.Background(), notification(), notifications.ChannelConfig{})
		require.NoError(t, err)
		assert.Equal(t, "Bearer ya29.platform", rec.all()[0].Header.Get("Authorization"))
	})

	t.Run("no devices", func(t *testing.T) {
		t.Parallel()
		cfg, _, opts := pushServer(t, "")
		a, err := channels.NewPush(cfg, opts...)
		require.NoError(t, err)
		n := notification()
		n.RecipientID = "user-2"
		_, err = a.Send(context.Background(), n, tenantToken)
		assert.ErrorIs(t, err, notifications.ErrMissingRecipient)
	})

	t.Run("no credentials", func(t *testing.T) {
		t.Parallel()
		cfg, _, opts := pushServer(t, "")
		a, err := channels.NewPush(cfg, opts...)
		require.NoError(t, err)
		assert.False(t, a.IsEnabled(context.Background(), "tenant-1"))
		_, err = a.Send(context.Background(), notification(), notifications.ChannelConfig{})
		assert.ErrorIs(t, err, channels.ErrMissingCredential)
	})
}

func TestPush_InvalidServiceAccount(t *testing.T) {
	t.Parallel()

	_, err := channels.NewPush(channels.Config{FCMProjectID: "shop", FCMCredentialsJSON: "{not json"})
	assert.ErrorIs(t, err, channels.ErrMissingCredential)

	a, err := channels.NewPush(channels.Config{FCMProjectID: "shop"})
	require.NoError(t, err)
	res := a.ValidateConfig(notifications.ChannelConfig{Credentials: map[string]string{
		channels.CredFCMCredentialsJSON: "{}",
	}})
	assert.False(t, res.Valid)
}
