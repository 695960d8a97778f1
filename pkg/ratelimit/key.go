package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	keyPrefix = "ratelimit"
	globalKey = "global"

	// maxKeyLength keeps backend keys bounded; longer keys are hashed.
	maxKeyLength = 128
)

// Key builds the bucket key for a channel and optional tenant:
// "ratelimit:<channel>:<tenant|global>".
func Key(channel, tenantID string) string {
	scope := tenantID
	if scope == "" {
		scope = globalKey
	}
	return Composite(keyPrefix, channel, scope)
}

// Composite joins non-empty parts with ":". Keys longer than the maximum
// keep their first part and replace the rest with a 128-bit SHA-256 digest.
func Composite(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	combined := strings.Join(kept, ":")
	if len(combined) <= maxKeyLength || len(kept) == 0 {
		return combined
	}
	hash := sha256.Sum256([]byte(combined))
	return kept[0] + ":" + hex.EncodeToString(hash[:16])
}
