package input

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/halfmelt/inputhub/events"
)

// Hub composes one named-handler emitter per (device, control, state) triple,
// created lazily on first Bind or Wait, and feeds them from attached engine
// sources. Enable/disable toggles at the hub, device, and control level
// suspend dispatch without deregistering anything.
type Hub struct {
	logger golog.Logger
	clock  clock.Clock

	mu               sync.Mutex
	emitters         map[Device]map[Control]map[State]*events.Emitter[Event]
	last             map[Device]map[Control]Event
	disabled         bool
	disabledDevices  map[Device]bool
	disabledControls map[Device]map[Control]bool
	sources          []Source
	closed           bool

	cancelCtx context.Context
	cancel    context.CancelFunc
}

// NewHub returns an enabled Hub with no sources attached.
func NewHub(logger golog.Logger) *Hub {
	return NewHubWithClock(logger, clock.New())
}

// NewHubWithClock is NewHub with an injectable clock, used to stamp events
// whose raw records carry no time.
func NewHubWithClock(logger golog.Logger, clk clock.Clock) *Hub {
	cancelCtx, cancel := context.WithCancel(context.Background())
	return &Hub{
		logger:           logger,
		clock:            clk,
		emitters:         map[Device]map[Control]map[State]*events.Emitter[Event]{},
		last:             map[Device]map[Control]Event{},
		disabledDevices:  map[Device]bool{},
		disabledControls: map[Device]map[Control]bool{},
		cancelCtx:        cancelCtx,
		cancel:           cancel,
	}
}

func validateTriple(device Device, control Control, state State) error {
	if device == "" {
		return errors.New("device must not be empty")
	}
	if control == "" {
		return errors.New("control must not be empty")
	}
	if state == "" {
		return errors.New("state must not be empty")
	}
	return nil
}

// emitterFor returns the emitter for the triple, creating the nested table
// entries on the way down when create is set.
func (h *Hub) emitterFor(device Device, control Control, state State, create bool) *events.Emitter[Event] {
	h.mu.Lock()
	defer h.mu.Unlock()

	byControl, ok := h.emitters[device]
	if !ok {
		if !create {
			return nil
		}
		byControl = map[Control]map[State]*events.Emitter[Event]{}
		h.emitters[device] = byControl
	}
	byState, ok := byControl[control]
	if !ok {
		if !create {
			return nil
		}
		byState = map[State]*events.Emitter[Event]{}
		byControl[control] = byState
	}
	emitter, ok := byState[state]
	if !ok {
		if !create {
			return nil
		}
		emitter = events.NewEmitter[Event]()
		byState[state] = emitter
	}
	return emitter
}

// Bind registers fn under name for the given triple. Binding an already used
// name on the same triple replaces the previous handler.
func (h *Hub) Bind(ctx context.Context, device Device, control Control, state State, name string, fn EventFunc) error {
	if err := validateTriple(device, control, state); err != nil {
		return err
	}
	// validate before the lazy create so a failed Bind does not leave an
	// empty emitter in the table
	if name == "" {
		return errors.New("handler name must not be empty")
	}
	if fn == nil {
		return errors.Errorf("handler %q must not be nil", name)
	}
	return h.emitterFor(device, control, state, true).Bind(name, events.Handler[Event](fn))
}

// Unbind removes the named handler from the given triple. Unbinding a triple
// that was never bound, or a name that is unknown on it, is an error.
func (h *Hub) Unbind(ctx context.Context, device Device, control Control, state State, name string) error {
	if err := validateTriple(device, control, state); err != nil {
		return err
	}
	emitter := h.emitterFor(device, control, state, false)
	if emitter == nil {
		return errors.Errorf("nothing bound for %s/%s/%s", device, control, state)
	}
	return emitter.Unbind(name)
}

// Wait blocks until the next event dispatched for the triple, the context is
// done, or the timeout elapses. A timeout of zero or less means no timeout.
func (h *Hub) Wait(ctx context.Context, device Device, control Control, state State, timeout time.Duration) (Event, error) {
	if err := validateTriple(device, control, state); err != nil {
		return Event{}, err
	}
	return h.emitterFor(device, control, state, true).Wait(ctx, timeout)
}

// Trigger injects a synthetic event. It passes through the same gating and
// dispatch path as events from attached sources.
func (h *Hub) Trigger(ctx context.Context, event Event) error {
	if err := validateTriple(event.Device, event.Control, event.State); err != nil {
		return err
	}
	if event.Time.IsZero() {
		event.Time = h.clock.Now()
	}
	h.dispatch(ctx, event)
	return nil
}

// push is handed to attached sources. It classifies raw records and
// dispatches the result.
func (h *Hub) push(ctx context.Context, raw RawEvent) {
	event, ok := classify(raw)
	if !ok {
		h.logger.Debugw("dropped raw record", "kind", raw.Kind)
		return
	}
	if event.Time.IsZero() {
		event.Time = h.clock.Now()
	}
	h.dispatch(ctx, event)
}

func (h *Hub) dispatch(ctx context.Context, event Event) {
	h.deliver(ctx, event, false)
}

// deliver is dispatch with the closed gate optionally bypassed, which Close
// needs for its own Disconnect fan-out. Events dispatched after Close must be
// dropped so nothing adds to emitter waitgroups Close is draining.
func (h *Hub) deliver(ctx context.Context, event Event, closing bool) {
	h.mu.Lock()
	if (h.closed && !closing) ||
		h.disabled || h.disabledDevices[event.Device] || h.disabledControls[event.Device][event.Control] {
		h.mu.Unlock()
		return
	}

	byControl := h.last[event.Device]
	if byControl == nil {
		byControl = map[Control]Event{}
		h.last[event.Device] = byControl
	}
	byControl[event.Control] = event

	var exact, all *events.Emitter[Event]
	if byState := h.emitters[event.Device][event.Control]; byState != nil {
		exact = byState[event.State]
		all = byState[AllStates]
	}
	h.mu.Unlock()

	if exact != nil {
		exact.Fire(ctx, event)
	}
	if all != nil && event.State != AllStates {
		all.Fire(ctx, event)
	}
}

// Attach starts a source and feeds its raw records into the hub until the hub
// is closed.
func (h *Hub) Attach(ctx context.Context, source Source) error {
	if source == nil {
		return errors.New("source must not be nil")
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return errors.New("hub is closed")
	}
	h.sources = append(h.sources, source)
	h.mu.Unlock()

	if err := source.Start(h.cancelCtx, h.push); err != nil {
		h.mu.Lock()
		for i, other := range h.sources {
			if other == source {
				h.sources = append(h.sources[:i], h.sources[i+1:]...)
				break
			}
		}
		h.mu.Unlock()
		return errors.Wrapf(err, "starting source %q", source.Name())
	}

	h.logger.Infow("source attached", "source", source.Name())
	h.connectionStatus(ctx, Connect, false)
	return nil
}

// connectionStatus fans a Connect or Disconnect event out to every bound
// control of every device; sources are not device-scoped.
func (h *Hub) connectionStatus(ctx context.Context, state State, closing bool) {
	now := h.clock.Now()

	type pair struct {
		device  Device
		control Control
	}
	var pairs []pair
	h.mu.Lock()
	for device, byControl := range h.emitters {
		for control := range byControl {
			pairs = append(pairs, pair{device, control})
		}
	}
	h.mu.Unlock()

	for _, p := range pairs {
		h.deliver(ctx, Event{Time: now, Device: p.device, Control: p.control, State: state}, closing)
	}
}

// Enable resumes dispatch hub-wide.
func (h *Hub) Enable() {
	h.mu.Lock()
	h.disabled = false
	h.mu.Unlock()
}

// Disable suspends dispatch hub-wide. Bound handlers stay registered.
func (h *Hub) Disable() {
	h.mu.Lock()
	h.disabled = true
	h.mu.Unlock()
}

// Enabled reports whether the hub-wide toggle allows dispatch.
func (h *Hub) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.disabled
}

// EnableDevice resumes dispatch for one device.
func (h *Hub) EnableDevice(device Device) {
	h.mu.Lock()
	delete(h.disabledDevices, device)
	h.mu.Unlock()
}

// DisableDevice suspends dispatch for one device.
func (h *Hub) DisableDevice(device Device) {
	h.mu.Lock()
	h.disabledDevices[device] = true
	h.mu.Unlock()
}

// DeviceEnabled reports whether the device toggle allows dispatch.
func (h *Hub) DeviceEnabled(device Device) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.disabledDevices[device]
}

// EnableControl resumes dispatch for one control of a device.
func (h *Hub) EnableControl(device Device, control Control) {
	h.mu.Lock()
	delete(h.disabledControls[device], control)
	h.mu.Unlock()
}

// DisableControl suspends dispatch for one control of a device.
func (h *Hub) DisableControl(device Device, control Control) {
	h.mu.Lock()
	byControl := h.disabledControls[device]
	if byControl == nil {
		byControl = map[Control]bool{}
		h.disabledControls[device] = byControl
	}
	byControl[control] = true
	h.mu.Unlock()
}

// ControlEnabled reports whether the control toggle allows dispatch.
func (h *Hub) ControlEnabled(device Device, control Control) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.disabledControls[device][control]
}

// Controls returns the controls of a device with at least one live emitter,
// sorted by name.
func (h *Hub) Controls(ctx context.Context, device Device) []Control {
	h.mu.Lock()
	defer h.mu.Unlock()
	byControl := h.emitters[device]
	controls := make([]Control, 0, len(byControl))
	for control := range byControl {
		controls = append(controls, control)
	}
	sort.Slice(controls, func(i, j int) bool { return controls[i] < controls[j] })
	return controls
}

// LastEvents returns the most recent dispatched event per (device, control).
// Suppressed events never show up here.
func (h *Hub) LastEvents(ctx context.Context) map[Device]map[Control]Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[Device]map[Control]Event, len(h.last))
	for device, byControl := range h.last {
		controls := make(map[Control]Event, len(byControl))
		for control, event := range byControl {
			controls[control] = event
		}
		out[device] = controls
	}
	return out
}

// Close fires Disconnect to every bound control, stops all attached sources,
// and drains in-flight handler goroutines. The hub cannot be reused.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	sources := h.sources
	h.sources = nil
	h.mu.Unlock()

	h.connectionStatus(ctx, Disconnect, true)
	h.cancel()

	var err error
	for _, source := range sources {
		err = multierr.Combine(err, source.Close(ctx))
	}

	h.mu.Lock()
	var emitters []*events.Emitter[Event]
	for _, byControl := range h.emitters {
		for _, byState := range byControl {
			for _, emitter := range byState {
				emitters = append(emitters, emitter)
			}
		}
	}
	h.mu.Unlock()
	for _, emitter := range emitters {
		emitter.Close()
	}
	return err
}
