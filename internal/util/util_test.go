package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseBool(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", " 1 ", "да", "ha", "on"} {
		assert.True(t, ParseBool(s), s)
	}
	for _, s := range []string{"", "no", "0", "false", "maybe"} {
		assert.False(t, ParseBool(s), s)
	}
}

func TestValidHMAC(t *testing.T) {
	sig := HMACSHA256Hex("secret", "export:registrants")
	assert.True(t, ValidHMAC("secret", "export:registrants", sig))
	assert.False(t, ValidHMAC("other", "export:registrants", sig))
	assert.False(t, ValidHMAC("secret", "export:registrants", ""))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "soon", FormatTime(time.Time{}, "soon"))
	ts := time.Date(2026, 3, 10, 18, 5, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-10 18:05", FormatTime(ts, "soon"))
}
