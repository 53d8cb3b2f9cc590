package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"national trunk prefix", "081234567890", "6281234567890"},
		{"already has country code", "6281234567890", "6281234567890"},
		{"international format", "+62 812-3456-7890", "6281234567890"},
		{"spaces and punctuation", "0812 3456 7890", "6281234567890"},
		{"bare subscriber number", "81234567890", "6281234567890"},
		{"empty", "", ""},
		{"no digits at all", "abc-def", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePhone(tt.raw, "62"))
		})
	}
}

func TestNormalizePhoneOtherCountryCode(t *testing.T) {
	assert.Equal(t, "60123456789", NormalizePhone("0123456789", "60"))
	assert.Equal(t, "60123456789", NormalizePhone("60123456789", "60"))
}
