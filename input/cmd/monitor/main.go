// Package main contains a command to watch input events from an engine source.
package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/caarlos0/env/v11"
	"github.com/edaniels/golog"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/halfmelt/inputhub/input"

	// registered source models
	_ "github.com/halfmelt/inputhub/input/fake"
	_ "github.com/halfmelt/inputhub/input/sdl"
)

var logger = golog.NewDevelopmentLogger("input_monitor")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Model string `flag:"model,default=fake,usage=engine source model (fake, sdl)"`
	Keys  string `flag:"keys,default=W A S D Space,usage=space separated keyboard controls to watch"`
}

type envDefaults struct {
	IntervalMs int `env:"INPUTHUB_INTERVAL_MS" envDefault:"250"`
	SettleMs   int `env:"INPUTHUB_SETTLE_MS" envDefault:"300"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	var defs envDefaults
	if err := env.Parse(&defs); err != nil {
		return err
	}

	hub := input.NewHub(logger)
	defer func() {
		err = multierr.Combine(err, hub.Close(ctx))
	}()

	keys := strings.Fields(argsParsed.Keys)
	source, err := input.NewSourceFromConfig(ctx, input.Config{
		Name:  "monitor",
		Model: argsParsed.Model,
		Attributes: map[string]interface{}{
			"interval_ms":  defs.IntervalMs,
			"keys":         keys,
			"motion_steps": 5,
			"wheel_ticks":  2,
		},
	}, logger)
	if err != nil {
		return err
	}

	logEvent := func(ctx context.Context, event input.Event) {
		logger.Infow("event",
			"device", event.Device,
			"control", event.Control,
			"state", event.State,
			"value", event.Value,
		)
	}
	for _, key := range keys {
		control := input.Control(key)
		if err := hub.Bind(ctx, input.DeviceKeyboard, control, input.Begin, "monitor", logEvent); err != nil {
			return err
		}
		if err := hub.Bind(ctx, input.DeviceKeyboard, control, input.End, "monitor", logEvent); err != nil {
			return err
		}
	}
	for _, button := range []input.Control{input.ButtonLeft, input.ButtonMiddle, input.ButtonRight} {
		if err := hub.Bind(ctx, input.DeviceMouse, button, input.AllStates, "monitor", logEvent); err != nil {
			return err
		}
	}
	if err := hub.Bind(ctx, input.DeviceMouse, input.Wheel, input.Change, "monitor", logEvent); err != nil {
		return err
	}

	// motion floods the log; report only where the pointer settles
	settled := debounce.New(time.Duration(defs.SettleMs) * time.Millisecond)
	var posMu sync.Mutex
	var lastX, lastY float64
	err = hub.Bind(ctx, input.DeviceMouse, input.Movement, input.Change, "monitor",
		func(ctx context.Context, event input.Event) {
			posMu.Lock()
			lastX, lastY = event.X, event.Y
			posMu.Unlock()
			settled(func() {
				posMu.Lock()
				x, y := lastX, lastY
				posMu.Unlock()
				logger.Infow("pointer settled", "x", x, "y", y)
			})
		})
	if err != nil {
		return err
	}

	if err := hub.Attach(ctx, source); err != nil {
		return err
	}

	utils.ContextMainReadyFunc(ctx)()
	for {
		if !utils.SelectContextOrWait(ctx, 5*time.Second) {
			return ctx.Err()
		}
		for device, byControl := range hub.LastEvents(ctx) {
			for control, event := range byControl {
				logger.Debugw("last event",
					"device", device,
					"control", control,
					"state", event.State,
					"value", event.Value,
				)
			}
		}
	}
}
