package device

import (
	"fmt"
	"os"

	"github.com/bnema/evdevkm/internal/alias"
	"github.com/bnema/evdevkm/internal/logger"
	"github.com/bnema/evdevkm/internal/switcher"
	"github.com/charmbracelet/log"
	evdev "github.com/holoplot/go-evdev"
)

// Options configure how a device is registered
type Options struct {
	Hotkey     evdev.EvCode
	Grab       bool
	Verbose    bool
	NoSymlink  bool
	SymlinkDir string
	GuestOwner int // uid for the guest node, alias.NoOwner to leave it alone
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Hotkey:     evdev.KEY_RIGHTSHIFT,
		SymlinkDir: alias.DefaultDir,
		GuestOwner: alias.NoOwner,
	}
}

// Device is one physical source with its host and guest sinks
type Device struct {
	path   string
	opts   Options
	source *Source
	host   *Sink
	guest  *Sink
	log    *log.Logger
	closed bool
}

// Validate checks that path names a character device
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrInvalidDevice, path, err)
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return fmt.Errorf("%w %s: not a character device", ErrInvalidDevice, path)
	}
	return nil
}

// Open registers the input device at path. On failure everything acquired
// so far is released in reverse order.
func Open(path string, opts Options) (d *Device, err error) {
	if err := Validate(path); err != nil {
		return nil, err
	}

	var cleanup cleanupStack
	defer func() {
		if err != nil {
			if cerr := cleanup.unwind(); cerr != nil {
				logger.Warn("Cleanup after failed registration", "device", path, "error", cerr)
			}
		}
	}()

	src, err := openSource(path)
	if err != nil {
		return nil, err
	}
	cleanup.push(src.Close)

	l := logger.With("device", path)

	// Events queued before registration belong to nobody
	dropped, err := src.Discard()
	if err != nil {
		return nil, fmt.Errorf("%w %s: discard pending input: %v", ErrOpenFailed, path, err)
	}
	if dropped > 0 {
		l.Debug("Discarded stale input", "events", dropped)
	}

	host, err := newSink(src, switcher.Host, opts)
	if err != nil {
		return nil, err
	}
	cleanup.push(host.Close)

	guest, err := newSink(src, switcher.Guest, opts)
	if err != nil {
		return nil, err
	}
	cleanup.push(guest.Close)

	l.Info("Registered device", "name", src.Name(), "host", host.Node(), "guest", guest.Node())

	return &Device{
		path:   path,
		opts:   opts,
		source: src,
		host:   host,
		guest:  guest,
		log:    l,
	}, nil
}

// Path returns the source path the device was registered with
func (d *Device) Path() string {
	return d.path
}

// Name returns the kernel name of the source
func (d *Device) Name() string {
	return d.source.Name()
}

// Fd returns the source descriptor to watch for readiness
func (d *Device) Fd() int {
	return d.source.Fd()
}

// Config returns the switch settings for this device
func (d *Device) Config() switcher.Config {
	return switcher.Config{Hotkey: d.opts.Hotkey, Grab: d.opts.Grab}
}

// Verbose reports whether per-event tracing is enabled
func (d *Device) Verbose() bool {
	return d.opts.Verbose
}

// Next reads the next event from the source, see Source.Next
func (d *Device) Next(flag ReadFlag) (evdev.InputEvent, ReadStatus, error) {
	return d.source.Next(flag)
}

// Relay writes ev to the sink serving target. Uninitialized relays to host.
func (d *Device) Relay(target switcher.Target, ev *evdev.InputEvent) error {
	if target.Sink() == switcher.Guest {
		return d.guest.Write(ev)
	}
	return d.host.Write(ev)
}

// Grab takes exclusive access to the source. Grabbing twice is a no-op.
func (d *Device) Grab() error {
	if err := d.source.Grab(); err != nil {
		return fmt.Errorf("%w %s: %v", ErrGrabFailed, d.path, err)
	}
	return nil
}

// Grabbed reports whether the source is held exclusively
func (d *Device) Grabbed() bool {
	return d.source.Grabbed()
}

// Close destroys both sinks and releases the source. It is safe to call
// more than once.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	var cleanup cleanupStack
	cleanup.push(d.source.Close)
	cleanup.push(d.host.Close)
	cleanup.push(d.guest.Close)
	err := cleanup.unwind()
	if err == nil {
		d.log.Debug("Released device")
	}
	return err
}
