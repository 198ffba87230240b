// Package device manages physical input sources and their host/guest virtual sinks
package device

import (
	"errors"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrInvalidDevice is returned when a path is not a character device
	ErrInvalidDevice = errors.New("invalid device")
	// ErrOpenFailed is returned when the source cannot be opened for reading
	ErrOpenFailed = errors.New("failed to open device")
	// ErrProbeFailed is returned when the source capabilities cannot be read
	ErrProbeFailed = errors.New("failed to probe device")
	// ErrSinkCreateFailed is returned when a virtual sink cannot be created
	ErrSinkCreateFailed = errors.New("failed to create virtual device")
	// ErrGrabFailed is returned when exclusive access to a source is refused
	ErrGrabFailed = errors.New("failed to grab device")
	// ErrRelayWriteFailed is returned when an event cannot be written to a sink
	ErrRelayWriteFailed = errors.New("failed to write event")
	// ErrWouldBlock signals that no event is available right now. It ends a drain.
	ErrWouldBlock = errors.New("no event available")
)

// cleanupStack releases resources in reverse acquisition order
type cleanupStack []func() error

func (c *cleanupStack) push(fn func() error) {
	*c = append(*c, fn)
}

func (c *cleanupStack) unwind() error {
	var result *multierror.Error
	for i := len(*c) - 1; i >= 0; i-- {
		if err := (*c)[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	*c = nil
	return result.ErrorOrNil()
}
