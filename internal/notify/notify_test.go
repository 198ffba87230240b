package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bnema/evdevkm/internal/switcher"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu        sync.Mutex
	states    []string
	supported bool
	err       error
}

func (r *recorder) notify(_ bool, state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return r.supported, r.err
}

func (r *recorder) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func install(t *testing.T, r *recorder, watchdog time.Duration) {
	t.Helper()
	oldNotify, oldWatchdog := sdNotify, sdWatchdogEnabled
	sdNotify = r.notify
	sdWatchdogEnabled = func(bool) (time.Duration, error) { return watchdog, nil }
	t.Cleanup(func() {
		sdNotify, sdWatchdogEnabled = oldNotify, oldWatchdog
	})
}

func TestReady_NotUnderSystemd(t *testing.T) {
	r := &recorder{}
	install(t, r, 0)

	every, err := Ready(2)
	require.NoError(t, err)
	assert.Zero(t, every)
	assert.Equal(t, []string{daemon.SdNotifyReady}, r.sent())
}

func TestReady_ReportsStatus(t *testing.T) {
	r := &recorder{supported: true}
	install(t, r, 0)

	every, err := Ready(2)
	require.NoError(t, err)
	assert.Zero(t, every)
	sent := r.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, daemon.SdNotifyReady, sent[0])
	assert.Equal(t, "STATUS=Switching 2 device(s), target: uninitialized", sent[1])
}

func TestReady_Error(t *testing.T) {
	r := &recorder{err: errors.New("socket closed")}
	install(t, r, 0)

	_, err := Ready(1)
	assert.Error(t, err)
}

func TestReady_Watchdog(t *testing.T) {
	r := &recorder{supported: true}
	install(t, r, 20*time.Second)

	every, err := Ready(1)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, every)

	Alive()
	assert.Equal(t, daemon.SdNotifyWatchdog, r.sent()[len(r.sent())-1])
}

func TestTargetAndStopping(t *testing.T) {
	r := &recorder{supported: true}
	install(t, r, 0)

	Target(switcher.Guest)
	Target(switcher.Host)
	Stopping()

	assert.Equal(t, []string{"STATUS=target: guest", "STATUS=target: host", daemon.SdNotifyStopping}, r.sent())
}
