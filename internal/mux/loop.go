// Package mux runs the readiness loop that drains every source and relays
// its events to the sink chosen by the switch state.
package mux

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bnema/evdevkm/internal/device"
	"github.com/bnema/evdevkm/internal/logger"
	"github.com/bnema/evdevkm/internal/switcher"
	"github.com/hashicorp/go-multierror"
	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

// ErrMultiplexer is returned when the readiness multiplexer cannot be set up or waited on
var ErrMultiplexer = errors.New("multiplexer failure")

const (
	maxEvents = 10

	// maxReadFailures consecutive read errors stop a device from being watched
	maxReadFailures = 3
)

// Device is a registered source with its sinks, as seen by the loop
type Device interface {
	Path() string
	Fd() int
	Config() switcher.Config
	Verbose() bool
	Next(flag device.ReadFlag) (evdev.InputEvent, device.ReadStatus, error)
	Relay(target switcher.Target, ev *evdev.InputEvent) error
	Grab() error
	Grabbed() bool
	Close() error
}

// FlipFunc is called after a device flips its target
type FlipFunc func(path string, from, to switcher.Target)

// Option configures a Loop
type Option func(*Loop)

// WithPerDeviceTarget gives every device its own switch state instead of
// one state shared by all devices.
func WithPerDeviceTarget() Option {
	return func(l *Loop) {
		l.perDevice = true
	}
}

// WithFlipHook registers fn to be called on every flip
func WithFlipHook(fn FlipFunc) Option {
	return func(l *Loop) {
		l.onFlip = fn
	}
}

// WithHeartbeat calls fn from the loop at least every interval. It is not
// called while a drain is in progress, so a stuck read stops the beats.
func WithHeartbeat(every time.Duration, fn func()) Option {
	return func(l *Loop) {
		l.beatEvery = every
		l.onBeat = fn
	}
}

// Loop owns the devices from New until Run returns
type Loop struct {
	devices   []Device
	states    []*switcher.State
	removed   []bool
	failures  []int
	perDevice bool
	onFlip    FlipFunc
	onBeat    func()
	beatEvery time.Duration
	epfd      int
}

// New creates a loop over devices
func New(devices []Device, opts ...Option) *Loop {
	l := &Loop{
		devices:  devices,
		removed:  make([]bool, len(devices)),
		failures: make([]int, len(devices)),
		epfd:     -1,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.states = make([]*switcher.State, len(devices))
	shared := &switcher.State{}
	for i := range devices {
		if l.perDevice {
			l.states[i] = &switcher.State{}
		} else {
			l.states[i] = shared
		}
	}
	return l
}

// State returns the switch state of device i
func (l *Loop) State(i int) switcher.State {
	return *l.states[i]
}

// Run waits for readiness and drains ready devices until ctx is done or
// the multiplexer fails. Cancellation is observed through a descriptor in
// the same wait as the devices, so a drain in progress always completes.
// Every device is closed before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	defer l.shutdown()

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("%w: create: %v", ErrMultiplexer, err)
	}
	l.epfd = epfd
	defer unix.Close(epfd)

	stopfd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return fmt.Errorf("%w: termination descriptor: %v", ErrMultiplexer, err)
	}
	defer unix.Close(stopfd)

	if err := l.watch(stopfd, readiness{kind: readySignal}); err != nil {
		return err
	}
	for i, d := range l.devices {
		if err := l.watch(d.Fd(), readiness{kind: readyDevice, index: i}); err != nil {
			return fmt.Errorf("%w (%s)", err, d.Path())
		}
	}

	stop := context.AfterFunc(ctx, func() {
		signalStop(stopfd)
	})
	defer stop()

	// The first pass replays whatever is held right now
	for i := range l.devices {
		l.drain(i, device.ReadForceSync)
	}

	timeout := -1
	if l.onBeat != nil && l.beatEvery > 0 {
		timeout = max(int(l.beatEvery.Milliseconds()), 1)
		l.onBeat()
	}
	lastBeat := time.Now()

	events := make([]unix.EpollEvent, maxEvents)
	for {
		n, err := unix.EpollWait(epfd, events, timeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("%w: wait: %v", ErrMultiplexer, err)
		}

		if timeout > 0 && time.Since(lastBeat) >= l.beatEvery {
			l.onBeat()
			lastBeat = time.Now()
		}

		for _, ev := range events[:n] {
			r := decode(ev)
			switch r.kind {
			case readySignal:
				logger.Info("Termination requested, shutting down")
				return nil
			case readyDevice:
				if r.index < 0 || r.index >= len(l.devices) || l.removed[r.index] {
					continue
				}
				l.drain(r.index, device.ReadNormal)
			}
		}
	}
}

func (l *Loop) watch(fd int, r readiness) error {
	ev := r.encode()
	ev.Events = unix.EPOLLIN
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("%w: watch fd %d: %v", ErrMultiplexer, fd, err)
	}
	return nil
}

func (l *Loop) unwatch(i int) {
	l.removed[i] = true
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, l.devices[i].Fd(), nil); err != nil {
		logger.Debug("Failed to stop watching device", "device", l.devices[i].Path(), "error", err)
	}
}

func signalStop(fd int) {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(fd, buf[:]); err != nil {
		logger.Error("Failed to signal termination", "error", err)
	}
}

// drain reads device i until it would block.
//
// A sync status switches the reads to the queued replay; once the replay
// is exhausted normal reads continue. The marker of a forced sync is not
// relayed, a kernel drop marker is.
func (l *Loop) drain(i int, flag device.ReadFlag) {
	d := l.devices[i]
	for {
		ev, status, err := d.Next(flag)
		if err != nil {
			if errors.Is(err, device.ErrWouldBlock) {
				if flag == device.ReadSync {
					flag = device.ReadNormal
					continue
				}
				return
			}
			l.readFailed(i, err)
			return
		}
		l.failures[i] = 0

		switch status {
		case device.StatusSuccess:
			l.handle(i, &ev, false)
		case device.StatusSync:
			if flag != device.ReadForceSync {
				l.handle(i, &ev, true)
			}
			flag = device.ReadSync
		}
	}
}

func (l *Loop) readFailed(i int, err error) {
	d := l.devices[i]
	if errors.Is(err, io.EOF) || errors.Is(err, unix.ENODEV) {
		logger.Warn("Device disconnected", "device", d.Path(), "error", err)
		l.unwatch(i)
		return
	}

	l.failures[i]++
	if l.failures[i] >= maxReadFailures {
		logger.Error("Giving up on device after repeated read failures", "device", d.Path(), "error", err)
		l.unwatch(i)
		return
	}
	logger.Error("Failed to read event", "device", d.Path(), "error", err)
}

// handle advances the switch state with one event and relays it
func (l *Loop) handle(i int, ev *evdev.InputEvent, resync bool) {
	d := l.devices[i]
	state := l.states[i]

	next, dec := switcher.Advance(*state, d.Config(), ev, resync)
	*state = next

	if d.Verbose() {
		logger.Debug("event",
			"device", d.Path(),
			"type", evdev.TypeName(ev.Type),
			"code", evdev.CodeName(ev.Type, ev.Code),
			"value", ev.Value,
			"pressed", next.Pressed,
			"resync", resync)
	}

	if err := d.Relay(dec.Relay, ev); err != nil {
		logger.Error("Failed to relay event", "device", d.Path(), "target", dec.Relay.Label(), "error", err)
	}

	if dec.Grab {
		l.grabShared(i)
	}

	if dec.Flipped {
		logger.Info("Switched target", "device", d.Path(), "from", dec.Relay, "to", dec.Next)
		if l.onFlip != nil {
			l.onFlip(d.Path(), dec.Relay, dec.Next)
		}
	}
}

// grabShared grabs device i and every other grab-enabled device sharing its state
func (l *Loop) grabShared(i int) {
	for j, d := range l.devices {
		if l.states[j] != l.states[i] || l.removed[j] {
			continue
		}
		if j != i && !d.Config().Grab {
			continue
		}
		if d.Grabbed() {
			continue
		}
		if err := d.Grab(); err != nil {
			logger.Warn("Continuing without exclusive access", "device", d.Path(), "error", err)
			continue
		}
		logger.Info("Grabbed device", "device", d.Path())
	}
}

func (l *Loop) shutdown() {
	var result *multierror.Error
	for _, d := range l.devices {
		if err := d.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", d.Path(), err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		logger.Warn("Errors while releasing devices", "error", err)
	}
}
