package device

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
	"unsafe"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

var uinputPath = "/dev/uinput"

const (
	iocNone  = 0
	iocWrite = 1

	uinputMaxName = 80
)

func ioc(dir, typ, nr, size uintptr) uint {
	return uint(dir<<30 | size<<16 | typ<<8 | nr)
}

// Requests from linux/uinput.h
var (
	uiDevCreate  = ioc(iocNone, 'U', 1, 0)
	uiDevDestroy = ioc(iocNone, 'U', 2, 0)
	uiDevSetup   = ioc(iocWrite, 'U', 3, unsafe.Sizeof(uinputSetup{}))
	uiAbsSetup   = ioc(iocWrite, 'U', 4, unsafe.Sizeof(uinputAbsSetup{}))
	uiSetEvBit   = ioc(iocWrite, 'U', 100, 4)
	uiSetPropBit = ioc(iocWrite, 'U', 110, 4)
)

// codeBitRequests enable one code of an event type
var codeBitRequests = map[evdev.EvType]uint{
	evdev.EV_KEY: ioc(iocWrite, 'U', 101, 4),
	evdev.EV_REL: ioc(iocWrite, 'U', 102, 4),
	evdev.EV_ABS: ioc(iocWrite, 'U', 103, 4),
	evdev.EV_MSC: ioc(iocWrite, 'U', 104, 4),
	evdev.EV_LED: ioc(iocWrite, 'U', 105, 4),
	evdev.EV_SND: ioc(iocWrite, 'U', 106, 4),
	evdev.EV_SW:  ioc(iocWrite, 'U', 109, 4),
}

// struct uinput_setup
type uinputSetup struct {
	ID           evdev.InputID
	Name         [uinputMaxName]byte
	FFEffectsMax uint32
}

// struct uinput_abs_setup
type uinputAbsSetup struct {
	Code uint16
	_    uint16
	Info evdev.AbsInfo
}

// capabilities is what a sink copies from its source
type capabilities struct {
	id    evdev.InputID
	props []evdev.EvProp
	codes map[evdev.EvType][]evdev.EvCode
	abs   map[evdev.EvCode]evdev.AbsInfo
}

func (c capabilities) has(t evdev.EvType) bool {
	_, ok := c.codes[t]
	return ok
}

func probeCapabilities(dev *evdev.InputDevice) (capabilities, error) {
	id, err := dev.InputID()
	if err != nil {
		return capabilities{}, fmt.Errorf("read id: %w", err)
	}

	caps := capabilities{
		id:    id,
		props: dev.Properties(),
		codes: make(map[evdev.EvType][]evdev.EvCode),
	}
	for _, t := range dev.CapableTypes() {
		caps.codes[t] = dev.CapableEvents(t)
	}

	if caps.has(evdev.EV_ABS) {
		abs, err := dev.AbsInfos()
		if err != nil {
			return capabilities{}, fmt.Errorf("read axes: %w", err)
		}
		caps.abs = abs
	}
	return caps, nil
}

type uinputRequest struct {
	req   uint
	value int
	abs   *uinputAbsSetup
	setup *uinputSetup
}

func (r uinputRequest) do(fd int) error {
	var err error
	switch {
	case r.setup != nil:
		err = ioctlPtr(fd, r.req, unsafe.Pointer(r.setup))
	case r.abs != nil:
		err = ioctlPtr(fd, r.req, unsafe.Pointer(r.abs))
	default:
		err = unix.IoctlSetInt(fd, r.req, r.value)
	}
	if err != nil {
		return fmt.Errorf("uinput request %#x (%d): %w", r.req, r.value, err)
	}
	return nil
}

func ioctlPtr(fd int, req uint, arg unsafe.Pointer) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg)); errno != 0 {
		return errno
	}
	return nil
}

// uinputPlan lists the requests creating a virtual device named name with
// caps, axis ranges and properties included. Force feedback is left out,
// effects are never relayed back to the source.
func uinputPlan(name string, caps capabilities) []uinputRequest {
	types := make([]evdev.EvType, 0, len(caps.codes))
	for t := range caps.codes {
		if t == evdev.EV_SYN || t == evdev.EV_FF {
			continue
		}
		types = append(types, t)
	}
	slices.Sort(types)

	var plan []uinputRequest
	for _, t := range types {
		plan = append(plan, uinputRequest{req: uiSetEvBit, value: int(t)})

		bitReq, ok := codeBitRequests[t]
		if !ok {
			continue
		}
		for _, code := range caps.codes[t] {
			plan = append(plan, uinputRequest{req: bitReq, value: int(code)})
			if t == evdev.EV_ABS {
				plan = append(plan, uinputRequest{
					req: uiAbsSetup,
					abs: &uinputAbsSetup{Code: uint16(code), Info: caps.abs[code]},
				})
			}
		}
	}

	for _, p := range caps.props {
		plan = append(plan, uinputRequest{req: uiSetPropBit, value: int(p)})
	}

	setup := &uinputSetup{ID: caps.id}
	copy(setup.Name[:uinputMaxName-1], name)
	return append(plan,
		uinputRequest{req: uiDevSetup, setup: setup},
		uinputRequest{req: uiDevCreate},
	)
}

// uinputDevice is a virtual input device backed by /dev/uinput
type uinputDevice struct {
	fd int
}

func createUinput(name string, caps capabilities) (*uinputDevice, error) {
	fd, err := unix.Open(uinputPath, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uinputPath, err)
	}

	for _, r := range uinputPlan(name, caps) {
		if err := r.do(fd); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	return &uinputDevice{fd: fd}, nil
}

// WriteOne writes one event to the virtual device
func (u *uinputDevice) WriteOne(ev *evdev.InputEvent) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, ev); err != nil {
		return err
	}
	for {
		_, err := unix.Write(u.fd, buf.Bytes())
		if err != unix.EINTR {
			return err
		}
	}
}

// Close destroys the virtual device. Further calls do nothing.
func (u *uinputDevice) Close() error {
	if u.fd < 0 {
		return nil
	}
	fd := u.fd
	u.fd = -1

	var cleanup cleanupStack
	cleanup.push(func() error { return unix.Close(fd) })
	cleanup.push(func() error { return unix.IoctlSetInt(fd, uiDevDestroy, 0) })
	return cleanup.unwind()
}
