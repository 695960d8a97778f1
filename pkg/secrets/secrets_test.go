package secrets_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/secrets"
)

func newCipher(t *testing.T) *secrets.Cipher {
	t.Helper()
	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	c, err := secrets.NewCipher(key)
	require.NoError(t, err)
	return c
}

func TestCipherRoundTrip(t *testing.T) {
	t.Parallel()

	c := newCipher(t)
	enc, err := c.EncryptString("tenant-1", "123456:bot-token")
	require.NoError(t, err)
	assert.NotContains(t, enc, "bot-token")

	plain, err := c.DecryptString("tenant-1", enc)
	require.NoError(t, err)
	assert.Equal(t, "123456:bot-token", plain)

	again, err := c.EncryptString("tenant-1", "123456:bot-token")
	require.NoError(t, err)
	assert.NotEqual(t, enc, again, "nonce must differ per encryption")
}

func TestCipherBindsTenant(t *testing.T) {
	t.Parallel()

	c := newCipher(t)
	enc, err := c.EncryptString("tenant-1", "secret")
	require.NoError(t, err)

	_, err = c.DecryptString("tenant-2", enc)
	require.ErrorIs(t, err, secrets.ErrDecryptionFailed)
}

func TestCipherRejectsForeignKey(t *testing.T) {
	t.Parallel()

	enc, err := newCipher(t).EncryptString("tenant-1", "secret")
	require.NoError(t, err)

	_, err = newCipher(t).DecryptString("tenant-1", enc)
	require.ErrorIs(t, err, secrets.ErrDecryptionFailed)
}

func TestCipherMalformedCiphertext(t *testing.T) {
	t.Parallel()

	c := newCipher(t)
	tests := []struct {
		name  string
		input string
		err   error
	}{
		{name: "not base64", input: "%%%", err: secrets.ErrInvalidCiphertext},
		{name: "shorter than nonce", input: base64.StdEncoding.EncodeToString([]byte("short")), err: secrets.ErrInvalidCiphertext},
		{name: "garbage", input: base64.StdEncoding.EncodeToString(make([]byte, 40)), err: secrets.ErrDecryptionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := c.DecryptString("tenant-1", tt.input)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCipherMaps(t *testing.T) {
	t.Parallel()

	c := newCipher(t)
	in := map[string]string{"account_sid": "AC1", "auth_token": "tok"}
	enc, err := c.EncryptMap("tenant-1", in)
	require.NoError(t, err)
	assert.NotEqual(t, in["auth_token"], enc["auth_token"])

	out, err := c.DecryptMap("tenant-1", enc)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestKeys(t *testing.T) {
	t.Parallel()

	_, err := secrets.NewCipher([]byte("short"))
	require.ErrorIs(t, err, secrets.ErrInvalidKey)

	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	parsed, err := secrets.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = secrets.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, secrets.ErrInvalidKey)
	_, err = secrets.ParseKey("not base64!")
	require.ErrorIs(t, err, secrets.ErrInvalidKey)
}
