package input_test

import (
	"context"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/halfmelt/inputhub/input"
)

type dummySource struct {
	name string
}

func (s *dummySource) Name() string { return s.name }

func (s *dummySource) Start(ctx context.Context, push input.PushFunc) error { return nil }

func (s *dummySource) Close(ctx context.Context) error { return nil }

func TestRegisterSource(t *testing.T) {
	constructor := func(ctx context.Context, cfg input.Config, logger golog.Logger) (input.Source, error) {
		return &dummySource{name: cfg.Name}, nil
	}

	input.RegisterSource("dummy", input.SourceRegistration{Constructor: constructor})

	reg, ok := input.LookupSource("dummy")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, reg.Constructor, test.ShouldNotBeNil)

	_, ok = input.LookupSource("no such model")
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, func() {
		input.RegisterSource("dummy", input.SourceRegistration{Constructor: constructor})
	}, test.ShouldPanic)
	test.That(t, func() {
		input.RegisterSource("", input.SourceRegistration{Constructor: constructor})
	}, test.ShouldPanic)
	test.That(t, func() {
		input.RegisterSource("no constructor", input.SourceRegistration{})
	}, test.ShouldPanic)
}

func TestNewSourceFromConfig(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)

	input.RegisterSource("from_config", input.SourceRegistration{
		Constructor: func(ctx context.Context, cfg input.Config, logger golog.Logger) (input.Source, error) {
			return &dummySource{name: cfg.Name}, nil
		},
	})

	source, err := input.NewSourceFromConfig(ctx, input.Config{Name: "left", Model: "from_config"}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, source.Name(), test.ShouldEqual, "left")

	_, err = input.NewSourceFromConfig(ctx, input.Config{Model: "no such model"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown source model "no such model"`)
}

func TestDecodeAttributes(t *testing.T) {
	type attrs struct {
		IntervalMs int      `json:"interval_ms"`
		Keys       []string `json:"keys"`
	}

	cfg := input.Config{
		Model: "fake",
		Attributes: map[string]interface{}{
			"interval_ms": 50,
			"keys":        []string{"W", "A"},
		},
	}
	var decoded attrs
	test.That(t, cfg.DecodeAttributes(&decoded), test.ShouldBeNil)
	test.That(t, decoded, test.ShouldResemble, attrs{IntervalMs: 50, Keys: []string{"W", "A"}})

	// nil attributes decode to zero values
	var empty attrs
	test.That(t, input.Config{}.DecodeAttributes(&empty), test.ShouldBeNil)
	test.That(t, empty, test.ShouldResemble, attrs{})

	bad := input.Config{Model: "fake", Attributes: map[string]interface{}{"interval_ms": "soon"}}
	err := bad.DecodeAttributes(&decoded)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `model "fake"`)
}
