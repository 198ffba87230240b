package keycode

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  evdev.EvCode
	}{
		{"KEY_RIGHTSHIFT", evdev.KEY_RIGHTSHIFT},
		{"key_rightshift", evdev.KEY_RIGHTSHIFT},
		{"rightshift", evdev.KEY_RIGHTSHIFT},
		{" KEY_SCROLLLOCK ", evdev.KEY_SCROLLLOCK},
		{"54", evdev.KEY_RIGHTSHIFT},
		{"0x36", evdev.KEY_RIGHTSHIFT},
		{"BTN_LEFT", evdev.BTN_LEFT},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"", "0", "0x300", "70000", "KEY_DOES_NOT_EXIST", "-1"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.ErrorIs(t, err, ErrUnknownKey)
		})
	}
}

func TestName(t *testing.T) {
	assert.Equal(t, "KEY_A", Name(evdev.KEY_A))
	assert.Equal(t, "KEY_RIGHTSHIFT", Name(evdev.KEY_RIGHTSHIFT))
}

func TestAll(t *testing.T) {
	keys := All()
	require.NotEmpty(t, keys)

	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1].Code, keys[i].Code, "keys must be sorted by code")
	}

	var found bool
	for _, k := range keys {
		assert.NotZero(t, k.Code)
		assert.LessOrEqual(t, k.Code, MaxCode)
		if k.Code == evdev.KEY_ESC {
			found = true
			assert.Equal(t, "KEY_ESC", k.Name)
		}
	}
	assert.True(t, found, "KEY_ESC missing from table")
}
