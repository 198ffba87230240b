// Package switcher decides which virtual device receives each physical input event
package switcher

// Target identifies the consumer currently receiving relayed events
type Target int

const (
	// Uninitialized is the startup target. It relays like Host but means
	// the first hotkey flip (and the optional grab) has not happened yet.
	Uninitialized Target = iota
	Host
	Guest
)

// Label returns the sink label used for aliases and logs
func (t Target) Label() string {
	if t == Guest {
		return "guest"
	}
	return "host"
}

// String implements fmt.Stringer
func (t Target) String() string {
	if t == Uninitialized {
		return "uninitialized"
	}
	return t.Label()
}

// Sink returns the sink that receives events while t is active
func (t Target) Sink() Target {
	if t == Guest {
		return Guest
	}
	return Host
}

// Flip returns the target selected by the hotkey after t
func (t Target) Flip() Target {
	if t == Host {
		return Guest
	}
	return Host
}
