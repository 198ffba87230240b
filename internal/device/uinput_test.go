package device

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestUinputRequests(t *testing.T) {
	assert.EqualValues(t, 92, unsafe.Sizeof(uinputSetup{}))
	assert.EqualValues(t, 28, unsafe.Sizeof(uinputAbsSetup{}))

	tests := []struct {
		name string
		got  uint
		want uint
	}{
		{"UI_DEV_CREATE", uiDevCreate, 0x5501},
		{"UI_DEV_DESTROY", uiDevDestroy, 0x5502},
		{"UI_DEV_SETUP", uiDevSetup, 0x405c5503},
		{"UI_ABS_SETUP", uiAbsSetup, 0x401c5504},
		{"UI_SET_EVBIT", uiSetEvBit, 0x40045564},
		{"UI_SET_KEYBIT", codeBitRequests[evdev.EV_KEY], 0x40045565},
		{"UI_SET_ABSBIT", codeBitRequests[evdev.EV_ABS], 0x40045567},
		{"UI_SET_SWBIT", codeBitRequests[evdev.EV_SW], 0x4004556d},
		{"UI_SET_PROPBIT", uiSetPropBit, 0x4004556e},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func touchpadCaps() capabilities {
	return capabilities{
		id:    evdev.InputID{BusType: 0x18, Vendor: 0x6cb, Product: 0xcdd5, Version: 0x100},
		props: []evdev.EvProp{evdev.INPUT_PROP_POINTER, evdev.INPUT_PROP_BUTTONPAD},
		codes: map[evdev.EvType][]evdev.EvCode{
			evdev.EV_SYN: {evdev.SYN_REPORT},
			evdev.EV_KEY: {evdev.BTN_LEFT, evdev.BTN_TOUCH},
			evdev.EV_ABS: {evdev.ABS_X, evdev.ABS_MT_SLOT},
			evdev.EV_FF:  {evdev.FF_RUMBLE},
		},
		abs: map[evdev.EvCode]evdev.AbsInfo{
			evdev.ABS_X:       {Minimum: 0, Maximum: 1216, Fuzz: 2, Resolution: 12},
			evdev.ABS_MT_SLOT: {Minimum: 0, Maximum: 4},
		},
	}
}

func TestUinputPlan(t *testing.T) {
	plan := uinputPlan("evdevkm-host event5 Touchpad", touchpadCaps())
	require.GreaterOrEqual(t, len(plan), 2)

	var evBits []int
	abs := make(map[uint16]evdev.AbsInfo)
	var props []int
	for _, r := range plan {
		switch r.req {
		case uiSetEvBit:
			evBits = append(evBits, r.value)
		case uiAbsSetup:
			require.NotNil(t, r.abs)
			abs[r.abs.Code] = r.abs.Info
		case uiSetPropBit:
			props = append(props, r.value)
		}
	}

	t.Run("event types without force feedback", func(t *testing.T) {
		assert.Equal(t, []int{evdev.EV_KEY, evdev.EV_ABS}, evBits)
	})

	t.Run("axis ranges are copied", func(t *testing.T) {
		assert.Equal(t, evdev.AbsInfo{Maximum: 1216, Fuzz: 2, Resolution: 12}, abs[evdev.ABS_X])
		assert.Equal(t, evdev.AbsInfo{Maximum: 4}, abs[evdev.ABS_MT_SLOT])
	})

	t.Run("properties are copied", func(t *testing.T) {
		assert.Equal(t, []int{evdev.INPUT_PROP_POINTER, evdev.INPUT_PROP_BUTTONPAD}, props)
	})

	t.Run("setup then create", func(t *testing.T) {
		setup := plan[len(plan)-2]
		require.NotNil(t, setup.setup)
		assert.Equal(t, uiDevSetup, setup.req)
		assert.Equal(t, touchpadCaps().id, setup.setup.ID)
		name := string(bytes.TrimRight(setup.setup.Name[:], "\x00"))
		assert.Equal(t, "evdevkm-host event5 Touchpad", name)

		assert.Equal(t, uiDevCreate, plan[len(plan)-1].req)
	})
}

func TestUinputPlan_NameIsTerminated(t *testing.T) {
	long := string(bytes.Repeat([]byte("x"), 200))
	plan := uinputPlan(long, capabilities{})
	setup := plan[len(plan)-2].setup
	require.NotNil(t, setup)
	assert.Equal(t, byte(0), setup.Name[uinputMaxName-1])
}

func TestUinputDevice_WriteOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uinput")
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT, 0600)
	require.NoError(t, err)
	u := &uinputDevice{fd: fd}

	require.NoError(t, u.WriteOne(&evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: 1}))
	require.NoError(t, u.WriteOne(&evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT}))

	// A regular file has no device to destroy; the descriptor is closed regardless
	_ = u.Close()
	assert.NoError(t, u.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := make([]evdev.InputEvent, 2)
	require.NoError(t, binary.Read(bytes.NewReader(data), binary.NativeEndian, got))
	assert.Equal(t, evdev.EvType(evdev.EV_KEY), got[0].Type)
	assert.Equal(t, evdev.EvCode(evdev.KEY_A), got[0].Code)
	assert.Equal(t, int32(1), got[0].Value)
	assert.Equal(t, evdev.EvCode(evdev.SYN_REPORT), got[1].Code)
}
