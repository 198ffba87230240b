// Package keycode converts between key names and kernel key codes
package keycode

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// ErrUnknownKey is returned when a name or code is not a valid key
var ErrUnknownKey = errors.New("unknown key")

// MaxCode is the highest key code the kernel accepts
const MaxCode evdev.EvCode = 0x2ff

// Key is one entry of the key code table
type Key struct {
	Code evdev.EvCode
	Name string
}

// Parse accepts a numeric code (decimal, 0x hex or 0 octal) or a key name.
// Names are case-insensitive and the KEY_ prefix is optional, so
// "rightshift", "KEY_RIGHTSHIFT" and "54" are the same key. BTN_ names are
// accepted as they are.
func Parse(nameOrCode string) (evdev.EvCode, error) {
	s := strings.TrimSpace(nameOrCode)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrUnknownKey)
	}

	if n, err := strconv.ParseUint(s, 0, 16); err == nil {
		code := evdev.EvCode(n)
		if code == 0 || code > MaxCode {
			return 0, fmt.Errorf("%w: code %d out of range", ErrUnknownKey, n)
		}
		return code, nil
	}

	name := strings.ToUpper(s)
	if code, ok := evdev.KEYFromString[name]; ok {
		return code, nil
	}
	if code, ok := evdev.KEYFromString["KEY_"+name]; ok {
		return code, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKey, nameOrCode)
}

// Name returns the kernel name of code, or its number when it has none
func Name(code evdev.EvCode) string {
	if name, ok := evdev.KEYToString[code]; ok {
		return name
	}
	return fmt.Sprintf("KEY_%d", code)
}

// All returns every named key sorted by code
func All() []Key {
	keys := make([]Key, 0, len(evdev.KEYToString))
	for code, name := range evdev.KEYToString {
		if code == 0 || code > MaxCode {
			continue
		}
		keys = append(keys, Key{Code: code, Name: name})
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Code < keys[j].Code
	})
	return keys
}
