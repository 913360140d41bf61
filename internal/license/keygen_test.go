package license_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"licenseapi/internal/license"
)

func TestUUIDKeyGenerator(t *testing.T) {
	gen := license.UUIDKeyGenerator{}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := gen.NewKey()
		assert.True(t, license.ValidKeyFormat(key), "generated key %q is not canonical", key)
		assert.False(t, seen[key], "duplicate key %q", key)
		seen[key] = true
	}
}

func TestValidKeyFormat(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{"canonical", "a1b2c3d4-e5f6-7890-abcd-ef1234567890", true},
		{"uppercase accepted", "A1B2C3D4-E5F6-7890-ABCD-EF1234567890", true},
		{"surrounding whitespace", "  a1b2c3d4-e5f6-7890-abcd-ef1234567890  ", true},
		{"empty", "", false},
		{"missing group", "a1b2c3d4-e5f6-7890-abcd", false},
		{"short group", "a1b2c3d-e5f6-7890-abcd-ef1234567890", false},
		{"non-hex characters", "g1b2c3d4-e5f6-7890-abcd-ef1234567890", false},
		{"wrong separators", "a1b2c3d4_e5f6_7890_abcd_ef1234567890", false},
		{"trailing garbage", "a1b2c3d4-e5f6-7890-abcd-ef1234567890x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, license.ValidKeyFormat(tt.key))
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
		license.NormalizeKey(" A1B2C3D4-E5F6-7890-ABCD-EF1234567890 "))
}

func TestMaskKey(t *testing.T) {
	masked := license.MaskKey("a1b2c3d4-e5f6-7890-abcd-ef1234567890")
	assert.Equal(t, "a1b2c3d4-****-****-****-7890", masked)
	assert.Equal(t, "***", license.MaskKey("short"))
}
