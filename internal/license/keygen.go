package license

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// keyPattern is the canonical license key format: five hyphen-separated
// lowercase hex groups of length 8-4-4-4-12. Uppercase input is accepted
// and canonicalized before storage.
var keyPattern = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)

// KeyGenerator produces unique license keys.
type KeyGenerator interface {
	// NewKey returns a fresh key in canonical form. Generation never fails
	// under normal operation; entropy exhaustion panics.
	NewKey() string
}

// UUIDKeyGenerator generates keys from crypto/rand-backed UUIDv4 values,
// which already carry the canonical 8-4-4-4-12 lowercase hex form.
type UUIDKeyGenerator struct{}

// NewKey implements KeyGenerator.
func (UUIDKeyGenerator) NewKey() string {
	return uuid.New().String()
}

// NormalizeKey lowercases a license key so lookups and storage always use
// the canonical form.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// ValidKeyFormat reports whether the key matches the canonical format after
// normalization. Format is checked before any store access.
func ValidKeyFormat(key string) bool {
	return keyPattern.MatchString(NormalizeKey(key))
}

// MaskKey redacts a license key for logs, keeping only the first and last
// groups visible.
func MaskKey(key string) string {
	if len(key) < 12 {
		return "***"
	}
	return key[:8] + "-****-****-****-" + key[len(key)-4:]
}
