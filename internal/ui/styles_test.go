package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateSeparator(t *testing.T) {
	tests := []struct {
		name  string
		width int
		char  string
		want  int
	}{
		{"explicit", 10, "=", 10},
		{"default width", 0, "-", 50},
		{"default char", 5, "", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sep := CreateSeparator(tt.width, tt.char)
			char := tt.char
			if char == "" {
				char = "─"
			}
			assert.Equal(t, tt.want, strings.Count(sep, char))
		})
	}
}

func TestFormatAppHeader(t *testing.T) {
	header := FormatAppHeader("DEVICES", "3 found")
	assert.Contains(t, header, "evdevkm devices")
	assert.Contains(t, header, "3 found")
}

func TestFormatResult(t *testing.T) {
	assert.Contains(t, FormatResult(true, "saved"), IconSuccess)
	assert.Contains(t, FormatResult(false, "failed"), IconError)
	assert.Contains(t, FormatResult(false, "failed"), "failed")
}

func TestFormatWarning(t *testing.T) {
	w := FormatWarning("already exists")
	assert.Contains(t, w, IconWarning)
	assert.Contains(t, w, "already exists")
}
