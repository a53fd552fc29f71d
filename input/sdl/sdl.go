// Package sdl implements an engine source backed by SDL's event queue. It
// polls the queue on its own goroutine and translates keyboard, mouse button,
// mouse motion, and mouse wheel events into raw records.
package sdl

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"
	"go.viam.com/utils"

	"github.com/halfmelt/inputhub/input"
)

// ModelName is the registry model for this source.
const ModelName = "sdl"

func init() {
	input.RegisterSource(ModelName, input.SourceRegistration{
		Constructor: func(ctx context.Context, cfg input.Config, logger golog.Logger) (input.Source, error) {
			return NewSource(cfg, logger)
		},
	})
}

const defaultPollIntervalMs = 5

// Config holds the SDL source attributes.
type Config struct {
	// PollIntervalMs is how long to sleep when the event queue is empty.
	// Defaults to 5.
	PollIntervalMs int `json:"poll_interval_ms"`
}

// Source is an SDL-backed engine source.
type Source struct {
	name     string
	logger   golog.Logger
	interval time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc

	activeBackgroundWorkers sync.WaitGroup
}

// NewSource builds an SDL source from cfg.
func NewSource(cfg input.Config, logger golog.Logger) (*Source, error) {
	var conf Config
	if err := cfg.DecodeAttributes(&conf); err != nil {
		return nil, err
	}
	if conf.PollIntervalMs < 0 {
		return nil, errors.Errorf("poll_interval_ms must not be negative, got %d", conf.PollIntervalMs)
	}
	if conf.PollIntervalMs == 0 {
		conf.PollIntervalMs = defaultPollIntervalMs
	}
	name := cfg.Name
	if name == "" {
		name = ModelName
	}
	return &Source{
		name:     name,
		logger:   logger,
		interval: time.Duration(conf.PollIntervalMs) * time.Millisecond,
	}, nil
}

// Name returns the configured source name.
func (s *Source) Name() string {
	return s.name
}

// Start initializes the SDL event subsystem and begins polling.
func (s *Source) Start(ctx context.Context, push input.PushFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.Errorf("source %q already started", s.name)
	}
	if err := sdl.InitSubSystem(sdl.INIT_EVENTS); err != nil {
		return errors.Wrap(err, "initializing SDL events")
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer s.activeBackgroundWorkers.Done()
		s.poll(runCtx, push)
	})
	return nil
}

func (s *Source) poll(ctx context.Context, push input.PushFunc) {
	// SDL wants its event calls issued from a single thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
			raw, ok := translate(ev)
			if !ok {
				continue
			}
			push(ctx, raw)
		}
		if !utils.SelectContextOrWait(ctx, s.interval) {
			return
		}
	}
}

// translate maps an SDL event to a raw record. Events this module does not
// re-publish (window, text input, joystick, ...) translate to false.
func translate(ev sdl.Event) (input.RawEvent, bool) {
	switch ev := ev.(type) {
	case *sdl.KeyboardEvent:
		kind := input.KindKeyUp
		if ev.Type == sdl.KEYDOWN {
			kind = input.KindKeyDown
		}
		return input.RawEvent{
			Kind:   kind,
			Key:    sdl.GetKeyName(ev.Keysym.Sym),
			Repeat: ev.Repeat > 0,
		}, true

	case *sdl.MouseButtonEvent:
		var button input.Control
		switch ev.Button {
		case sdl.BUTTON_LEFT:
			button = input.ButtonLeft
		case sdl.BUTTON_MIDDLE:
			button = input.ButtonMiddle
		case sdl.BUTTON_RIGHT:
			button = input.ButtonRight
		default:
			return input.RawEvent{}, false
		}
		kind := input.KindButtonUp
		if ev.Type == sdl.MOUSEBUTTONDOWN {
			kind = input.KindButtonDown
		}
		return input.RawEvent{Kind: kind, Button: button}, true

	case *sdl.MouseMotionEvent:
		return input.RawEvent{
			Kind:   input.KindMotion,
			X:      float64(ev.X),
			Y:      float64(ev.Y),
			DeltaX: float64(ev.XRel),
			DeltaY: float64(ev.YRel),
		}, true

	case *sdl.MouseWheelEvent:
		// normalize to one signed step per event
		var delta float64
		if ev.Y > 0 {
			delta++
		} else if ev.Y < 0 {
			delta--
		}
		return input.RawEvent{Kind: input.KindWheel, WheelDelta: delta}, true
	}
	return input.RawEvent{}, false
}

// Close stops polling and shuts the SDL event subsystem down.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	started := s.started
	s.mu.Unlock()
	s.activeBackgroundWorkers.Wait()
	if started {
		sdl.QuitSubSystem(sdl.INIT_EVENTS)
	}
	return nil
}
