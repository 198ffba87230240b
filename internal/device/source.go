package device

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	gvalkov "github.com/gvalkov/golang-evdev"
	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

// ReadFlag selects how Next reads from a source
type ReadFlag int

const (
	// ReadNormal returns the next kernel event
	ReadNormal ReadFlag = iota
	// ReadSync returns the next queued resync event
	ReadSync
	// ReadForceSync starts a resync without the kernel reporting a drop
	ReadForceSync
)

// ReadStatus tells the caller how to continue reading
type ReadStatus int

const (
	// StatusSuccess means a regular event was returned
	StatusSuccess ReadStatus = iota
	// StatusSync means the caller must keep reading with ReadSync
	StatusSync
)

const readBatch = 64

var eventSize = binary.Size(evdev.InputEvent{})

// stateReader reads the current kernel state of a device
type stateReader interface {
	State(t evdev.EvType) (evdev.StateMap, error)
	AbsInfos() (map[evdev.EvCode]evdev.AbsInfo, error)
}

// Source is the read side of a physical input device.
//
// The read handle comes from the kernel evdev node opened non-blocking, the
// capability descriptor is a second handle used for ioctls: cloning into
// virtual devices and reading the current key/switch/LED/axis state.
type Source struct {
	path    string
	dev     *gvalkov.InputDevice
	probe   *evdev.InputDevice
	kernel  stateReader
	fd      int
	name    string
	caps    capabilities
	buf     []byte
	queue   []evdev.InputEvent
	pending []evdev.InputEvent
	cache   *stateCache
	grabbed bool
}

// openSource opens path for non-blocking reads and probes its capabilities
func openSource(path string) (src *Source, err error) {
	var cleanup cleanupStack
	defer func() {
		if err != nil {
			_ = cleanup.unwind()
		}
	}()

	dev, err := gvalkov.Open(path)
	if err != nil {
		if dev != nil && dev.File != nil {
			dev.File.Close()
		}
		return nil, fmt.Errorf("%w %s: %v", ErrOpenFailed, path, err)
	}
	cleanup.push(dev.File.Close)

	// Fd switches the file to blocking mode. It must not be called again,
	// reads and grabs go through fd.
	fd := int(dev.File.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("%w %s: set non-blocking: %v", ErrOpenFailed, path, err)
	}

	probe, err := evdev.OpenWithFlags(path, os.O_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrProbeFailed, path, err)
	}
	cleanup.push(probe.Close)

	name, err := probe.Name()
	if err != nil {
		return nil, fmt.Errorf("%w %s: read name: %v", ErrProbeFailed, path, err)
	}

	caps, err := probeCapabilities(probe)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrProbeFailed, path, err)
	}

	return &Source{
		path:   path,
		dev:    dev,
		probe:  probe,
		kernel: probe,
		fd:     fd,
		name:   name,
		caps:   caps,
		buf:    make([]byte, eventSize*readBatch),
		cache:  newStateCache(),
	}, nil
}

// Fd returns the descriptor to watch for readiness
func (s *Source) Fd() int {
	return s.fd
}

// Name returns the kernel device name
func (s *Source) Name() string {
	return s.name
}

// Discard drops every queued event without relaying it
func (s *Source) Discard() (int, error) {
	dropped := len(s.queue)
	s.queue = s.queue[:0]
	for {
		n, err := s.fill()
		if errors.Is(err, ErrWouldBlock) {
			return dropped, nil
		}
		if err != nil {
			return dropped, err
		}
		dropped += n
		s.queue = s.queue[:0]
	}
}

// Next returns the next event according to flag.
//
// In ReadNormal mode a kernel SYN_DROPPED marker is returned with
// StatusSync after the state to replay has been queued; the caller then
// reads with ReadSync until ErrWouldBlock. ReadForceSync queues the replay
// unconditionally and returns a synthetic SYN_DROPPED marker.
func (s *Source) Next(flag ReadFlag) (evdev.InputEvent, ReadStatus, error) {
	switch flag {
	case ReadForceSync:
		if err := s.prepareSync(); err != nil {
			return evdev.InputEvent{}, StatusSync, err
		}
		return droppedMarker(), StatusSync, nil
	case ReadSync:
		if len(s.pending) == 0 {
			return evdev.InputEvent{}, StatusSync, ErrWouldBlock
		}
		ev := s.pending[0]
		s.pending = s.pending[1:]
		s.cache.apply(&ev)
		return ev, StatusSync, nil
	}

	ev, err := s.read()
	if err != nil {
		return evdev.InputEvent{}, StatusSuccess, err
	}

	if ev.Type == evdev.EV_SYN && ev.Code == evdev.SYN_DROPPED {
		// Everything buffered after a drop is incomplete, the replay
		// is computed from the kernel state instead.
		if _, err := s.Discard(); err != nil {
			return evdev.InputEvent{}, StatusSync, err
		}
		if err := s.prepareSync(); err != nil {
			return evdev.InputEvent{}, StatusSync, err
		}
		return ev, StatusSync, nil
	}

	s.cache.apply(&ev)
	return ev, StatusSuccess, nil
}

func (s *Source) read() (evdev.InputEvent, error) {
	for len(s.queue) == 0 {
		if _, err := s.fill(); err != nil {
			return evdev.InputEvent{}, err
		}
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, nil
}

// fill reads one batch of records from the kernel into the queue
func (s *Source) fill() (int, error) {
	var n int
	var err error
	for {
		n, err = unix.Read(s.fd, s.buf)
		if err != unix.EINTR {
			break
		}
	}
	switch {
	case errors.Is(err, unix.EAGAIN):
		return 0, ErrWouldBlock
	case err != nil:
		return 0, fmt.Errorf("read %s: %w", s.path, err)
	case n == 0:
		return 0, fmt.Errorf("read %s: %w", s.path, io.EOF)
	}

	count := n / eventSize
	events := make([]evdev.InputEvent, count)
	if err := binary.Read(bytes.NewReader(s.buf[:count*eventSize]), binary.NativeEndian, events); err != nil {
		return 0, fmt.Errorf("decode %s: %w", s.path, err)
	}
	s.queue = append(s.queue, events...)
	return count, nil
}

func (s *Source) prepareSync() error {
	current, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("resync %s: %w", s.path, err)
	}
	s.pending = s.cache.diff(current)
	return nil
}

// snapshot queries the kernel for the current device state
func (s *Source) snapshot() (snapshot, error) {
	snap := newSnapshot()

	for _, t := range bitTypes {
		if !s.caps.has(t) {
			continue
		}
		state, err := s.kernel.State(t)
		if err != nil {
			return snap, err
		}
		for code, on := range state {
			if on {
				snap.bits[t][code] = true
			}
		}
	}

	if s.caps.has(evdev.EV_ABS) {
		infos, err := s.kernel.AbsInfos()
		if err != nil {
			return snap, err
		}
		for code, info := range infos {
			snap.abs[code] = info.Value
		}
	}

	return snap, nil
}

// Grab requests exclusive access to the source
func (s *Source) Grab() error {
	if s.grabbed {
		return nil
	}
	if err := unix.IoctlSetInt(s.fd, uint(gvalkov.EVIOCGRAB), 1); err != nil {
		return err
	}
	s.grabbed = true
	return nil
}

// Grabbed reports whether the source is held exclusively
func (s *Source) Grabbed() bool {
	return s.grabbed
}

// Close releases the grab and closes both handles
func (s *Source) Close() error {
	var cleanup cleanupStack
	cleanup.push(s.dev.File.Close)
	cleanup.push(s.probe.Close)
	if s.grabbed {
		cleanup.push(func() error {
			s.grabbed = false
			return unix.IoctlSetInt(s.fd, uint(gvalkov.EVIOCGRAB), 0)
		})
	}
	return cleanup.unwind()
}

func droppedMarker() evdev.InputEvent {
	return evdev.InputEvent{
		Time: syscall.NsecToTimeval(time.Now().UnixNano()),
		Type: evdev.EV_SYN,
		Code: evdev.SYN_DROPPED,
	}
}
