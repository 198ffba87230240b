package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/evdevkm/internal/alias"
	"github.com/bnema/evdevkm/internal/switcher"
	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	regular := filepath.Join(dir, "event0")
	require.NoError(t, os.WriteFile(regular, []byte("not a device"), 0600))

	tests := []struct {
		name string
		path string
	}{
		{"regular file", regular},
		{"directory", dir},
		{"missing path", filepath.Join(dir, "missing")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.path)
			assert.ErrorIs(t, err, ErrInvalidDevice)
		})
	}

	t.Run("character device", func(t *testing.T) {
		if _, err := os.Stat("/dev/null"); err != nil {
			t.Skip("/dev/null not available")
		}
		assert.NoError(t, Validate("/dev/null"))
	})
}

func TestOpen_NotAnInputDevice(t *testing.T) {
	if _, err := os.Stat("/dev/null"); err != nil {
		t.Skip("/dev/null not available")
	}

	_, err := Open("/dev/null", DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOpenFailed) || errors.Is(err, ErrProbeFailed),
		"unexpected error: %v", err)
}

func TestOpen_RejectsInvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "event9"), DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidDevice)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, evdev.EvCode(evdev.KEY_RIGHTSHIFT), opts.Hotkey)
	assert.Equal(t, alias.DefaultDir, opts.SymlinkDir)
	assert.Equal(t, alias.NoOwner, opts.GuestOwner)
	assert.False(t, opts.Grab)
}

func TestSinkName(t *testing.T) {
	name := SinkName("/dev/input/event3", "AT Translated Set 2 keyboard", switcher.Guest)
	assert.Equal(t, "evdevkm-guest event3 AT Translated Set 2 keyboard", name)
	assert.True(t, IsSinkName(name))

	host := SinkName("/dev/input/event3", "AT Translated Set 2 keyboard", switcher.Uninitialized)
	assert.Equal(t, "evdevkm-host event3 AT Translated Set 2 keyboard", host)

	long := SinkName("/dev/input/event12", string(make([]byte, 200)), switcher.Host)
	assert.LessOrEqual(t, len(long), maxSinkName)

	assert.False(t, IsSinkName("Logitech USB Receiver"))
}

func TestFindNode(t *testing.T) {
	sys := t.TempDir()
	oldSys, oldDev, oldAttempts := sysClassInput, devInput, nodeLookupAttempts
	sysClassInput, devInput, nodeLookupAttempts = sys, "/dev/input", 1
	t.Cleanup(func() {
		sysClassInput, devInput, nodeLookupAttempts = oldSys, oldDev, oldAttempts
	})

	writeName := func(event, name string) {
		dir := filepath.Join(sys, event, "device")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "name"), []byte(name+"\n"), 0644))
	}
	writeName("event2", "AT Translated Set 2 keyboard")
	writeName("event9", "evdevkm-host event2 AT Translated Set 2 keyboard")
	writeName("event21", "evdevkm-host event2 AT Translated Set 2 keyboard")

	t.Run("newest match wins", func(t *testing.T) {
		node, err := findNode("evdevkm-host event2 AT Translated Set 2 keyboard")
		require.NoError(t, err)
		assert.Equal(t, "/dev/input/event21", node)
	})

	t.Run("exact name", func(t *testing.T) {
		node, err := findNode("AT Translated Set 2 keyboard")
		require.NoError(t, err)
		assert.Equal(t, "/dev/input/event2", node)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := findNode("evdevkm-guest event2 AT Translated Set 2 keyboard")
		assert.Error(t, err)
	})
}

func TestCleanupStack(t *testing.T) {
	var order []string
	var c cleanupStack
	c.push(func() error { order = append(order, "source"); return nil })
	c.push(func() error { order = append(order, "host"); return errors.New("host busy") })
	c.push(func() error { order = append(order, "guest"); return errors.New("guest busy") })

	err := c.unwind()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host busy")
	assert.Contains(t, err.Error(), "guest busy")
	assert.Equal(t, []string{"guest", "host", "source"}, order)

	// A second unwind has nothing left to release
	assert.NoError(t, c.unwind())
}

func TestRegistry_ShutdownEmpty(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())
	r.Shutdown()
	r.Shutdown()
	assert.Empty(t, r.Devices())
}
