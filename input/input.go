// Package input re-publishes a host engine's raw input stream through a
// uniform bind/unbind/trigger/wait API segmented by device (keyboard, mouse),
// control (key or button name, or a synthetic name for continuous inputs),
// and transition state (Begin, End, Change).
package input

import (
	"context"
	"time"
)

// Device is a logical input source.
type Device string

// Devices understood by the classifier.
const (
	DeviceKeyboard Device = "Keyboard"
	DeviceMouse    Device = "Mouse"
)

// Control identifies the specific input of a device. Keyboard controls are
// the host engine's key names ("A", "Space", "Left"); mouse controls are the
// constants below.
type Control string

// Mouse controls. Movement and Wheel are synthetic names for the continuous
// inputs that have no physical button.
const (
	ButtonLeft   Control = "ButtonLeft"
	ButtonMiddle Control = "ButtonMiddle"
	ButtonRight  Control = "ButtonRight"
	Movement     Control = "Movement"
	Wheel        Control = "Wheel"
)

// State is the transition phase of a dispatched event.
type State string

// States. Begin and End are press and release; Change is a continuous update.
// Connect and Disconnect are fired to every bound control of a device when a
// source attaches or tears down. Handlers bound to AllStates receive every
// state in addition to any exact-state handlers.
const (
	Begin      State = "Begin"
	End        State = "End"
	Change     State = "Change"
	Connect    State = "Connect"
	Disconnect State = "Disconnect"
	AllStates  State = "AllStates"
)

// Event is passed to bound handlers and returned by Wait and LastEvents.
type Event struct {
	Time    time.Time
	Device  Device
	Control Control
	State   State
	Value   float64 // 1 or 0 for presses and releases, signed step count for Wheel
	X, Y    float64 // pointer position, Movement only
}

// EventFunc is a callback passed to Bind.
type EventFunc func(ctx context.Context, event Event)
