// Package fake implements a scriptable engine source. It plays a generated
// script of raw records on a ticker and accepts direct injection, which makes
// it useful in tests and as a stand-in engine for the monitor command.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/halfmelt/inputhub/input"
)

// ModelName is the registry model for this source.
const ModelName = "fake"

func init() {
	input.RegisterSource(ModelName, input.SourceRegistration{
		Constructor: func(ctx context.Context, cfg input.Config, logger golog.Logger) (input.Source, error) {
			return NewSource(cfg, logger)
		},
	})
}

const defaultIntervalMs = 100

// Config holds the fake source attributes.
type Config struct {
	// IntervalMs is the script playback interval. Defaults to 100.
	IntervalMs int `json:"interval_ms"`
	// Keys are pressed and released, in order, one transition per tick.
	Keys []string `json:"keys"`
	// MotionSteps adds that many pointer motion records to the script.
	MotionSteps int `json:"motion_steps"`
	// WheelTicks adds that many scroll records, alternating direction.
	WheelTicks int `json:"wheel_ticks"`
}

// Source is a fake engine source.
type Source struct {
	name     string
	logger   golog.Logger
	clock    clock.Clock
	interval time.Duration
	script   []input.RawEvent

	mu      sync.Mutex
	push    input.PushFunc
	started bool
	cancel  context.CancelFunc

	activeBackgroundWorkers sync.WaitGroup
}

// NewSource builds a fake source from cfg.
func NewSource(cfg input.Config, logger golog.Logger) (*Source, error) {
	return NewSourceWithClock(cfg, logger, clock.New())
}

// NewSourceWithClock is NewSource with an injectable clock driving script
// playback.
func NewSourceWithClock(cfg input.Config, logger golog.Logger, clk clock.Clock) (*Source, error) {
	var conf Config
	if err := cfg.DecodeAttributes(&conf); err != nil {
		return nil, err
	}
	if conf.IntervalMs < 0 {
		return nil, errors.Errorf("interval_ms must not be negative, got %d", conf.IntervalMs)
	}
	if conf.IntervalMs == 0 {
		conf.IntervalMs = defaultIntervalMs
	}
	name := cfg.Name
	if name == "" {
		name = ModelName
	}
	return &Source{
		name:     name,
		logger:   logger,
		clock:    clk,
		interval: time.Duration(conf.IntervalMs) * time.Millisecond,
		script:   buildScript(conf),
	}, nil
}

func buildScript(conf Config) []input.RawEvent {
	var script []input.RawEvent
	for _, key := range conf.Keys {
		script = append(script,
			input.RawEvent{Kind: input.KindKeyDown, Key: key},
			input.RawEvent{Kind: input.KindKeyUp, Key: key},
		)
	}
	for i := 0; i < conf.MotionSteps; i++ {
		step := float64(i + 1)
		script = append(script, input.RawEvent{
			Kind:   input.KindMotion,
			X:      step * 10,
			Y:      step * 5,
			DeltaX: 10,
			DeltaY: 5,
		})
	}
	for i := 0; i < conf.WheelTicks; i++ {
		delta := 1.0
		if i%2 == 1 {
			delta = -1.0
		}
		script = append(script, input.RawEvent{Kind: input.KindWheel, WheelDelta: delta})
	}
	return script
}

// Name returns the configured source name.
func (s *Source) Name() string {
	return s.name
}

// Start begins script playback. A source with an empty script is inject-only.
func (s *Source) Start(ctx context.Context, push input.PushFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.Errorf("source %q already started", s.name)
	}
	s.started = true
	s.push = push

	if len(s.script) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer s.activeBackgroundWorkers.Done()
		s.playScript(runCtx, push)
	})
	return nil
}

func (s *Source) playScript(ctx context.Context, push input.PushFunc) {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		raw := s.script[i%len(s.script)]
		raw.Time = s.clock.Now()
		push(ctx, raw)
	}
}

// Inject pushes one raw record directly, outside the script.
func (s *Source) Inject(ctx context.Context, raw input.RawEvent) error {
	s.mu.Lock()
	push := s.push
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.Errorf("source %q not started", s.name)
	}
	push(ctx, raw)
	return nil
}

// Close stops script playback and waits for the worker to exit.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.activeBackgroundWorkers.Wait()
	return nil
}
