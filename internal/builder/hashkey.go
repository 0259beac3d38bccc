package builder

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/vaultforge/vaultforge/internal/engine"
)

// HashKey derives a deterministic surrogate key from the named columns of a
// record. Values are concatenated in key order as "<text>|"; absent or null
// keys contribute nothing, not even a separator. The result is the lowercase
// hex SHA-256 digest of the concatenation.
//
// The concatenation is deliberately not namespaced with column names, so
// different key sets whose values format identically produce the same digest.
// Existing hub and link keys depend on this encoding; do not change it.
func HashKey(keys []string, record engine.Record) string {
	var concatenated string
	for _, key := range keys {
		value, ok := record[key]
		if !ok || value.IsNull() {
			continue
		}
		concatenated += value.Text() + "|"
	}

	digest := sha256.Sum256([]byte(concatenated))
	return hex.EncodeToString(digest[:])
}
