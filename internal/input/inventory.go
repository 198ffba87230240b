// Package input discovers the event devices evdevkm can switch
package input

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bnema/evdevkm/internal/device"
	evdev "github.com/gvalkov/golang-evdev"
)

// DefaultPattern matches every kernel event device
const DefaultPattern = "/dev/input/event*"

// Kind is a coarse classification of an input device
type Kind int

const (
	KindOther Kind = iota
	KindKeyboard
	KindMouse
)

func (k Kind) String() string {
	switch k {
	case KindKeyboard:
		return "keyboard"
	case KindMouse:
		return "mouse"
	default:
		return "other"
	}
}

// DeviceInfo represents information about an input device
type DeviceInfo struct {
	Path    string
	Name    string
	Kind    Kind
	Symlink string // persistent alias, empty if none
	Virtual bool   // created by evdevkm
}

// Descriptive returns a one-line label for menus
func (d DeviceInfo) Descriptive() string {
	if d.Symlink != "" {
		return fmt.Sprintf("%s (%s → %s)", d.Name, d.Symlink, d.Path)
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.Path)
}

// List returns the devices matching pattern sorted by path
func List(pattern string) ([]DeviceInfo, error) {
	evdevices, err := evdev.ListInputDevices(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list input devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(evdevices))
	for _, dev := range evdevices {
		devices = append(devices, DeviceInfo{
			Path:    dev.Fn,
			Name:    dev.Name,
			Kind:    Classify(dev.Name, dev.CapabilitiesFlat),
			Symlink: FindSymlink(dev.Fn),
			Virtual: device.IsSinkName(dev.Name),
		})
		if dev.File != nil {
			dev.File.Close()
		}
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Path < devices[j].Path
	})
	return devices, nil
}

// Switchable drops the virtual devices evdevkm created itself
func Switchable(devices []DeviceInfo) []DeviceInfo {
	out := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if !d.Virtual {
			out = append(out, d)
		}
	}
	return out
}

// Classify guesses the kind of a device from its name and capabilities
func Classify(name string, caps map[int][]int) Kind {
	if isMouse(caps) {
		return KindMouse
	}
	if isKeyboard(name, caps) {
		return KindKeyboard
	}
	return KindOther
}

func isMouse(caps map[int][]int) bool {
	relAxes := caps[evdev.EV_REL]
	if !contains(relAxes, evdev.REL_X) || !contains(relAxes, evdev.REL_Y) {
		return false
	}
	btns := caps[evdev.EV_KEY]
	return contains(btns, evdev.BTN_LEFT) || contains(btns, evdev.BTN_RIGHT) || contains(btns, evdev.BTN_MIDDLE)
}

func isKeyboard(name string, caps map[int][]int) bool {
	// Power buttons and lid switches report a handful of keys
	nameLower := strings.ToLower(name)
	for _, skip := range []string{"power", "video", "sleep", "button"} {
		if strings.Contains(nameLower, skip) {
			return false
		}
	}

	for _, key := range caps[evdev.EV_KEY] {
		if key >= evdev.KEY_A && key <= evdev.KEY_Z {
			return true
		}
	}
	return false
}

func contains(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
