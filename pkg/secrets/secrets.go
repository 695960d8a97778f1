package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the master key size in bytes (AES-256).
	KeySize = 32

	// info separates credential keys from any other use of the master key.
	info = "notifykit-channel-credentials-v1"
)

// Cipher encrypts channel credentials at rest. Every tenant gets its own
// key derived from the master key, and the tenant id is bound to each
// ciphertext so a value copied to another tenant fails to decrypt.
type Cipher struct {
	master []byte
}

func NewCipher(masterKey []byte) (*Cipher, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKey
	}
	return &Cipher{master: append([]byte(nil), masterKey...)}, nil
}

// ParseKey decodes a base64 master key, as stored in configuration.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Join(ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// GenerateKey returns a random master key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncryptString returns base64(nonce || ciphertext || tag).
func (c *Cipher) EncryptString(tenantID, plaintext string) (string, error) {
	gcm, err := c.aead(tenantID)
	if err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), []byte(tenantID))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) DecryptString(tenantID, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.Join(ErrInvalidCiphertext, err)
	}
	gcm, err := c.aead(tenantID)
	if err != nil {
		return "", errors.Join(ErrDecryptionFailed, err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, []byte(tenantID))
	if err != nil {
		return "", errors.Join(ErrDecryptionFailed, err)
	}
	return string(plain), nil
}

// EncryptMap encrypts every value of m.
func (c *Cipher) EncryptMap(tenantID string, m map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		enc, err := c.EncryptString(tenantID, v)
		if err != nil {
			return nil, err
		}
		out[k] = enc
	}
	return out, nil
}

func (c *Cipher) DecryptMap(tenantID string, m map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		dec, err := c.DecryptString(tenantID, v)
		if err != nil {
			return nil, err
		}
		out[k] = dec
	}
	return out, nil
}

func (c *Cipher) aead(tenantID string) (cipher.AEAD, error) {
	key := make([]byte, KeySize)
	defer clear(key)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.master, []byte(tenantID), []byte(info)), key); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
