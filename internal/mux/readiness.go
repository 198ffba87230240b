package mux

import "golang.org/x/sys/unix"

type readyKind int32

const (
	readySignal readyKind = iota + 1
	readyDevice
)

// readiness identifies what a ready descriptor belongs to. It is stored in
// the epoll payload and resolved once per wakeup.
type readiness struct {
	kind  readyKind
	index int
}

func (r readiness) encode() unix.EpollEvent {
	return unix.EpollEvent{Fd: int32(r.kind), Pad: int32(r.index)}
}

func decode(ev unix.EpollEvent) readiness {
	return readiness{kind: readyKind(ev.Fd), index: int(ev.Pad)}
}
