// Package secrets encrypts tenant channel credentials (bot tokens, API keys,
// service account JSON) before they are stored.
//
// A single 32-byte master key, usually loaded with ParseKey from
// configuration, is expanded with HKDF-SHA256 into one AES-256-GCM key per
// tenant. The tenant id is also authenticated with each value.
//
//	c, err := secrets.NewCipher(key)
//	enc, err := c.EncryptString("tenant-1", "123456:bot-token")
//	plain, err := c.DecryptString("tenant-1", enc)
package secrets
