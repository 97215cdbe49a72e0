package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ShortHash returns prefix + ":" + the first 16 hex chars of SHA-256(s).
func ShortHash(prefix, s string) string {
	sum := sha256.Sum256([]byte(s))
	return prefix + ":" + hex.EncodeToString(sum[:8])
}
