package switcher

import (
	evdev "github.com/holoplot/go-evdev"
)

// Key event values
const (
	KeyRelease = 0
	KeyPress   = 1
	KeyRepeat  = 2
)

// Config holds the per-device switch settings
type Config struct {
	Hotkey evdev.EvCode // key whose press requests a flip
	Grab   bool         // grab the source on the first flip
}

// State is the switch state owned by the event loop. It is passed into
// Advance and returned, so the loop decides whether devices share one
// State or each own one.
type State struct {
	Target      Target
	PendingFlip bool
	Pressed     uint
}

// Decision is the outcome of a single transition
type Decision struct {
	Relay   Target // target whose sink receives the event
	Next    Target // target after the event
	Grab    bool   // the source must be grabbed now
	Flipped bool
}

// IsBoundary reports whether ev closes an input report
func IsBoundary(ev *evdev.InputEvent) bool {
	return ev.Type == evdev.EV_SYN && ev.Code == evdev.SYN_REPORT
}

// Advance applies ev to s.
//
// The event is always relayed to the target that was active before it.
// A pending flip only executes on a report boundary with no key held, so a
// chord started on one target is completed on the same target. When resync
// is set the event is a synthetic replay of device state: it still updates
// the counters but its boundary never executes a flip.
func Advance(s State, cfg Config, ev *evdev.InputEvent, resync bool) (State, Decision) {
	if ev.Type == evdev.EV_KEY {
		switch {
		case ev.Value == KeyPress:
			s.Pressed++
		case ev.Value == KeyRelease && s.Pressed > 0:
			s.Pressed--
		}

		if ev.Code == cfg.Hotkey && ev.Value == KeyPress {
			s.PendingFlip = true
		}
	}

	d := Decision{Relay: s.Target, Next: s.Target}

	if resync || !IsBoundary(ev) || !s.PendingFlip || s.Pressed != 0 {
		return s, d
	}

	if s.Target == Uninitialized && cfg.Grab {
		d.Grab = true
	}

	s.Target = s.Target.Flip()
	s.PendingFlip = false

	d.Next = s.Target
	d.Flipped = true
	return s, d
}
