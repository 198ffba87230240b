package device

import (
	"github.com/bnema/evdevkm/internal/logger"
	"github.com/hashicorp/go-multierror"
)

// Registry owns every registered device
type Registry struct {
	devices []*Device
	closed  bool
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register opens path and keeps the device until Shutdown
func (r *Registry) Register(path string, opts Options) (*Device, error) {
	d, err := Open(path, opts)
	if err != nil {
		return nil, err
	}
	r.devices = append(r.devices, d)
	return d, nil
}

// Devices returns the registered devices in registration order
func (r *Registry) Devices() []*Device {
	return r.devices
}

// Len returns the number of registered devices
func (r *Registry) Len() int {
	return len(r.devices)
}

// Shutdown closes every device, newest first. Errors are logged and the
// remaining devices are still closed. Calling it again does nothing.
func (r *Registry) Shutdown() {
	if r.closed {
		return
	}
	r.closed = true

	var result *multierror.Error
	for i := len(r.devices) - 1; i >= 0; i-- {
		d := r.devices[i]
		if err := d.Close(); err != nil {
			result = multierror.Append(result, err)
			logger.Warn("Failed to release device", "device", d.Path(), "error", err)
		}
	}
	if result.ErrorOrNil() != nil {
		logger.Warnf("Shutdown finished with %d error(s)", len(result.Errors))
		return
	}
	logger.Debug("All devices released", "count", len(r.devices))
}
