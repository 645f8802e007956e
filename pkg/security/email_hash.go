package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashEmail returns a stable hex digest for an email address. Addresses are
// lowercased and trimmed first so the same mailbox always maps to the same
// ledger key.
func HashEmail(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
