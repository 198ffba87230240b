// Package notify reports service state to systemd. Every call is a no-op
// when the process was not started by systemd.
package notify

import (
	"fmt"
	"time"

	"github.com/bnema/evdevkm/internal/logger"
	"github.com/bnema/evdevkm/internal/switcher"
	"github.com/coreos/go-systemd/v22/daemon"
)

var (
	sdNotify          = daemon.SdNotify
	sdWatchdogEnabled = daemon.SdWatchdogEnabled
)

// Ready tells systemd that every device is registered. It returns how
// often Alive must be called, zero when the unit has no watchdog.
func Ready(devices int) (time.Duration, error) {
	supported, err := sdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		return 0, fmt.Errorf("notify systemd: %w", err)
	}
	if !supported {
		return 0, nil
	}

	_, _ = sdNotify(false, fmt.Sprintf("STATUS=Switching %d device(s), target: %s", devices, switcher.Uninitialized))

	interval, err := sdWatchdogEnabled(false)
	if err != nil {
		return 0, fmt.Errorf("check watchdog: %w", err)
	}
	return interval / 2, nil
}

// Alive pings the watchdog
func Alive() {
	if _, err := sdNotify(false, daemon.SdNotifyWatchdog); err != nil {
		logger.Warn("Failed to notify watchdog", "error", err)
	}
}

// Target publishes the current target as the unit status
func Target(target switcher.Target) {
	if _, err := sdNotify(false, "STATUS=target: "+target.Label()); err != nil {
		logger.Debug("Failed to update systemd status", "error", err)
	}
}

// Stopping tells systemd that shutdown has begun
func Stopping() {
	if _, err := sdNotify(false, daemon.SdNotifyStopping); err != nil {
		logger.Debug("Failed to notify systemd of shutdown", "error", err)
	}
}
