package fake_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/halfmelt/inputhub/input"
	"github.com/halfmelt/inputhub/input/fake"
)

func TestScriptPlayback(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)
	mock := clock.NewMock()

	source, err := fake.NewSourceWithClock(input.Config{
		Name:  "scripted",
		Model: fake.ModelName,
		Attributes: map[string]interface{}{
			"interval_ms":  10,
			"keys":         []string{"W"},
			"motion_steps": 1,
			"wheel_ticks":  1,
		},
	}, logger, mock)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, source.Name(), test.ShouldEqual, "scripted")

	hub := input.NewHub(logger)
	defer func() {
		test.That(t, hub.Close(ctx), test.ShouldBeNil)
	}()

	var begins, ends, motions, wheels int64
	test.That(t, hub.Bind(ctx, input.DeviceKeyboard, "W", input.Begin, "t",
		func(ctx context.Context, event input.Event) { atomic.AddInt64(&begins, 1) }), test.ShouldBeNil)
	test.That(t, hub.Bind(ctx, input.DeviceKeyboard, "W", input.End, "t",
		func(ctx context.Context, event input.Event) { atomic.AddInt64(&ends, 1) }), test.ShouldBeNil)
	test.That(t, hub.Bind(ctx, input.DeviceMouse, input.Movement, input.Change, "t",
		func(ctx context.Context, event input.Event) { atomic.AddInt64(&motions, 1) }), test.ShouldBeNil)
	test.That(t, hub.Bind(ctx, input.DeviceMouse, input.Wheel, input.Change, "t",
		func(ctx context.Context, event input.Event) { atomic.AddInt64(&wheels, 1) }), test.ShouldBeNil)

	test.That(t, hub.Attach(ctx, source), test.ShouldBeNil)

	// the script is KeyDown W, KeyUp W, one motion, one wheel tick, then it
	// cycles; advance the mock clock until a full cycle has played
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		mock.Add(10 * time.Millisecond)
		test.That(tb, atomic.LoadInt64(&begins), test.ShouldBeGreaterThanOrEqualTo, 1)
		test.That(tb, atomic.LoadInt64(&ends), test.ShouldBeGreaterThanOrEqualTo, 1)
		test.That(tb, atomic.LoadInt64(&motions), test.ShouldBeGreaterThanOrEqualTo, 1)
		test.That(tb, atomic.LoadInt64(&wheels), test.ShouldBeGreaterThanOrEqualTo, 1)
	})

	last := hub.LastEvents(ctx)
	test.That(t, last[input.DeviceMouse][input.Movement].X, test.ShouldEqual, 10)
	test.That(t, last[input.DeviceMouse][input.Movement].Y, test.ShouldEqual, 5)
}

func TestInject(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)

	source, err := fake.NewSource(input.Config{Name: "injector", Model: fake.ModelName}, logger)
	test.That(t, err, test.ShouldBeNil)

	err = source.Inject(ctx, input.RawEvent{Kind: input.KindKeyDown, Key: "W"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not started")

	hub := input.NewHub(logger)
	defer func() {
		test.That(t, hub.Close(ctx), test.ShouldBeNil)
	}()

	var wheels int64
	test.That(t, hub.Bind(ctx, input.DeviceMouse, input.Wheel, input.Change, "t",
		func(ctx context.Context, event input.Event) { atomic.AddInt64(&wheels, 1) }), test.ShouldBeNil)

	test.That(t, hub.Attach(ctx, source), test.ShouldBeNil)
	test.That(t, source.Inject(ctx, input.RawEvent{Kind: input.KindWheel, WheelDelta: 1}), test.ShouldBeNil)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, atomic.LoadInt64(&wheels), test.ShouldEqual, 1)
	})
}

func TestStartTwice(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)

	source, err := fake.NewSource(input.Config{Name: "once", Model: fake.ModelName}, logger)
	test.That(t, err, test.ShouldBeNil)

	push := func(ctx context.Context, raw input.RawEvent) {}
	test.That(t, source.Start(ctx, push), test.ShouldBeNil)
	err = source.Start(ctx, push)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already started")
	test.That(t, source.Close(ctx), test.ShouldBeNil)
	test.That(t, source.Close(ctx), test.ShouldBeNil)
}

func TestConfigValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)

	_, err := fake.NewSource(input.Config{
		Model:      fake.ModelName,
		Attributes: map[string]interface{}{"interval_ms": -1},
	}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "interval_ms")

	source, err := fake.NewSource(input.Config{Model: fake.ModelName}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, source.Name(), test.ShouldEqual, fake.ModelName)
}

func TestRegisteredConstructor(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)

	source, err := input.NewSourceFromConfig(ctx, input.Config{Name: "via_registry", Model: fake.ModelName}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, source.Name(), test.ShouldEqual, "via_registry")
}
