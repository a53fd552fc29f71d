package input

import "time"

// RawKind is the kind of a raw engine input record.
type RawKind string

// Raw record kinds, matching the host engine callbacks this module subscribes
// to.
const (
	KindKeyDown    RawKind = "KeyDown"
	KindKeyUp      RawKind = "KeyUp"
	KindButtonDown RawKind = "ButtonDown"
	KindButtonUp   RawKind = "ButtonUp"
	KindMotion     RawKind = "Motion"
	KindWheel      RawKind = "Wheel"
)

// RawEvent is a single record from the host engine's input service, before
// classification. Sources produce these; the hub turns them into Events.
type RawEvent struct {
	Time time.Time
	Kind RawKind

	// Key is the engine's key name. KindKeyDown and KindKeyUp only.
	Key string
	// Repeat marks key auto-repeat records, which are dropped.
	Repeat bool

	// Button is set for KindButtonDown and KindButtonUp.
	Button Control

	// X and Y are the pointer position, KindMotion only. DeltaX and DeltaY
	// are the relative motion since the previous record.
	X, Y           float64
	DeltaX, DeltaY float64

	// WheelDelta is the signed scroll step count, KindWheel only.
	WheelDelta float64
}

// classify maps a raw engine record to a dispatchable event. The second
// return value is false when the record does not classify: unknown kinds,
// key auto-repeats, nameless keys or buttons, and zero wheel deltas.
func classify(raw RawEvent) (Event, bool) {
	event := Event{Time: raw.Time}

	switch raw.Kind {
	case KindKeyDown, KindKeyUp:
		if raw.Key == "" || raw.Repeat {
			return Event{}, false
		}
		event.Device = DeviceKeyboard
		event.Control = Control(raw.Key)
		if raw.Kind == KindKeyDown {
			event.State = Begin
			event.Value = 1
		} else {
			event.State = End
		}

	case KindButtonDown, KindButtonUp:
		if raw.Button == "" {
			return Event{}, false
		}
		event.Device = DeviceMouse
		event.Control = raw.Button
		if raw.Kind == KindButtonDown {
			event.State = Begin
			event.Value = 1
		} else {
			event.State = End
		}

	case KindMotion:
		event.Device = DeviceMouse
		event.Control = Movement
		event.State = Change
		event.X = raw.X
		event.Y = raw.Y

	case KindWheel:
		if raw.WheelDelta == 0 {
			return Event{}, false
		}
		event.Device = DeviceMouse
		event.Control = Wheel
		event.State = Change
		event.Value = raw.WheelDelta

	default:
		return Event{}, false
	}

	return event, true
}
