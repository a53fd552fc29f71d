package input

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// PushFunc receives raw records from a source.
type PushFunc func(ctx context.Context, raw RawEvent)

// Source is an adapter onto one host engine input service. Start must not
// block: a source runs its own delivery goroutine(s) bounded by ctx and
// stopped by Close.
type Source interface {
	Name() string
	Start(ctx context.Context, push PushFunc) error
	Close(ctx context.Context) error
}

// Config configures a source built through the model registry.
type Config struct {
	Name       string
	Model      string
	Attributes map[string]interface{}
}

// DecodeAttributes decodes the free-form attribute map into a model-specific
// config struct, matching fields by json tag.
func (c Config) DecodeAttributes(out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: out})
	if err != nil {
		return err
	}
	if err := decoder.Decode(c.Attributes); err != nil {
		return errors.Wrapf(err, "decoding attributes for model %q", c.Model)
	}
	return nil
}

// SourceConstructor builds a source from its config.
type SourceConstructor func(ctx context.Context, cfg Config, logger golog.Logger) (Source, error)

// SourceRegistration is everything the registry stores about a source model.
type SourceRegistration struct {
	Constructor SourceConstructor
}

var (
	registryMu     sync.Mutex
	sourceRegistry = map[string]SourceRegistration{}
)

// RegisterSource registers a source model. It panics on re-registration,
// which would otherwise silently shadow an earlier model.
func RegisterSource(model string, reg SourceRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if model == "" {
		panic(errors.New("source model must not be empty"))
	}
	if reg.Constructor == nil {
		panic(errors.Errorf("source model %q must have a constructor", model))
	}
	if _, exists := sourceRegistry[model]; exists {
		panic(errors.Errorf("trying to register two source models named %q", model))
	}
	sourceRegistry[model] = reg
}

// LookupSource returns the registration for a model, if any.
func LookupSource(model string) (SourceRegistration, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	reg, ok := sourceRegistry[model]
	return reg, ok
}

// NewSourceFromConfig builds a source using the registered constructor for
// cfg.Model.
func NewSourceFromConfig(ctx context.Context, cfg Config, logger golog.Logger) (Source, error) {
	reg, ok := LookupSource(cfg.Model)
	if !ok {
		return nil, errors.Errorf("unknown source model %q", cfg.Model)
	}
	return reg.Constructor(ctx, cfg, logger)
}
