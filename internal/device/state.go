package device

import (
	"slices"

	evdev "github.com/holoplot/go-evdev"
)

// bitTypes are the event types whose state the kernel reports as bitmaps
var bitTypes = []evdev.EvType{evdev.EV_KEY, evdev.EV_SW, evdev.EV_LED}

// snapshot is the device state at one point in time
type snapshot struct {
	bits map[evdev.EvType]map[evdev.EvCode]bool
	abs  map[evdev.EvCode]int32
}

func newSnapshot() snapshot {
	s := snapshot{
		bits: make(map[evdev.EvType]map[evdev.EvCode]bool, len(bitTypes)),
		abs:  make(map[evdev.EvCode]int32),
	}
	for _, t := range bitTypes {
		s.bits[t] = make(map[evdev.EvCode]bool)
	}
	return s
}

// stateCache tracks the state implied by every event handed to the
// consumers, so a resync only replays what they have not seen.
type stateCache struct {
	seen snapshot
}

func newStateCache() *stateCache {
	return &stateCache{seen: newSnapshot()}
}

func (c *stateCache) apply(ev *evdev.InputEvent) {
	switch ev.Type {
	case evdev.EV_KEY:
		// repeats do not change key state
		if ev.Value == 0 || ev.Value == 1 {
			c.seen.bits[ev.Type][ev.Code] = ev.Value == 1
		}
	case evdev.EV_SW, evdev.EV_LED:
		c.seen.bits[ev.Type][ev.Code] = ev.Value != 0
	case evdev.EV_ABS:
		c.seen.abs[ev.Code] = ev.Value
	}
}

// diff returns the events that move the cached state to current, closed by
// a report boundary. Key releases come before presses. The cache is not
// updated; events are applied as they are handed out.
func (c *stateCache) diff(current snapshot) []evdev.InputEvent {
	var out []evdev.InputEvent

	for _, t := range bitTypes {
		seen := c.seen.bits[t]
		now := current.bits[t]

		var released, pressed []evdev.EvCode
		for code, on := range seen {
			if on && !now[code] {
				released = append(released, code)
			}
		}
		for code, on := range now {
			if on && !seen[code] {
				pressed = append(pressed, code)
			}
		}
		slices.Sort(released)
		slices.Sort(pressed)

		for _, code := range released {
			out = append(out, evdev.InputEvent{Type: t, Code: code, Value: 0})
		}
		for _, code := range pressed {
			out = append(out, evdev.InputEvent{Type: t, Code: code, Value: 1})
		}
	}

	axes := make([]evdev.EvCode, 0, len(current.abs))
	for code := range current.abs {
		axes = append(axes, code)
	}
	slices.Sort(axes)
	for _, code := range axes {
		value := current.abs[code]
		if old, ok := c.seen.abs[code]; ok && old == value {
			continue
		}
		out = append(out, evdev.InputEvent{Type: evdev.EV_ABS, Code: code, Value: value})
	}

	if len(out) > 0 {
		out = append(out, evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	}
	return out
}
