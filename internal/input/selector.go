package input

import (
	"errors"
	"fmt"

	"github.com/bnema/evdevkm/internal/keycode"
	"github.com/charmbracelet/huh"
)

// ErrNoDevices is returned when there is nothing to select from
var ErrNoDevices = errors.New("no input devices found")

// Selection is the outcome of the interactive setup
type Selection struct {
	Devices []string
	Hotkey  string
	Grab    bool
}

// SelectDevices asks which devices to switch, the hotkey and whether to grab.
// Persistent aliases are stored when available so the choice survives
// reboots and replugging.
func SelectDevices(devices []DeviceInfo, current Selection) (Selection, error) {
	devices = Switchable(devices)
	if len(devices) == 0 {
		return current, ErrNoDevices
	}

	options := make([]huh.Option[string], len(devices))
	for i, dev := range devices {
		value := dev.Path
		if dev.Symlink != "" {
			value = dev.Symlink
		}
		options[i] = huh.NewOption(fmt.Sprintf("[%s] %s", dev.Kind, dev.Descriptive()), value)
	}

	selected := current
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Select Devices").
				Description("Choose the devices to switch between host and guest").
				Options(options...).
				Value(&selected.Devices),
			huh.NewInput().
				Title("Switch Key").
				Description("Key name or code that flips the target").
				Value(&selected.Hotkey).
				Validate(func(s string) error {
					_, err := keycode.Parse(s)
					return err
				}),
			huh.NewConfirm().
				Title("Grab devices on first switch?").
				Value(&selected.Grab),
		),
	)

	if err := form.Run(); err != nil {
		return current, fmt.Errorf("device selection cancelled: %w", err)
	}
	return selected, nil
}
