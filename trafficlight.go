package trafficlight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dolmen-go/contextio"
	"golang.org/x/sync/errgroup"
)

type TrafficLight struct {
	Config *Config

	// Crossings is the number of green phases the consumer waits for
	// before stopping the light. Zero means forever.
	Crossings int
	// Console receives one line per phase change. Nil disables it.
	Console io.Writer

	cycler *PhaseCycler
	hooks  map[Phase]Hook
}

func Run(ctx context.Context, cli *CLI) error {
	SetDebug(cli.Debug)
	cfg, err := LoadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	t, err := NewTrafficLight(cfg)
	if err != nil {
		return err
	}
	t.Crossings = cli.Crossings
	if !cli.Quiet {
		t.Console = os.Stdout
	}
	return t.Run(ctx)
}

func NewTrafficLight(cfg *Config) (*TrafficLight, error) {
	cycler, err := NewPhaseCycler(cfg.Cycler)
	if err != nil {
		return nil, err
	}
	t := &TrafficLight{
		Config: cfg,
		cycler: cycler,
		hooks:  map[Phase]Hook{},
	}
	if cfg.Hooks == nil {
		return t, nil
	}
	for p, hc := range map[Phase]*HookConfig{PhaseGreen: cfg.Hooks.OnGreen, PhaseRed: cfg.Hooks.OnRed} {
		if hc == nil {
			continue
		}
		h, err := NewHook(hc)
		if err != nil {
			return nil, err
		}
		t.hooks[p] = h
	}
	return t, nil
}

// Cycler returns the light's phase cycler.
func (t *TrafficLight) Cycler() *PhaseCycler {
	return t.cycler
}

// Run starts the light and the consumer, and returns when the consumer has
// made all of its crossings or ctx is done. The light is stopped and joined
// before Run returns.
func (t *TrafficLight) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if t.Console != nil {
		console := contextio.NewWriter(ctx, t.Console)
		t.cycler.OnChange = func(_ context.Context, _, to Phase) {
			fmt.Fprintf(console, "%s light\n", to)
		}
	}
	if err := t.cycler.Start(ctx); err != nil {
		return err
	}

	g.Go(func() error {
		<-t.cycler.Done()
		return nil
	})
	g.Go(func() error {
		defer t.cycler.Stop()
		return t.cross(ctx)
	})
	return g.Wait()
}

func (t *TrafficLight) cross(ctx context.Context) error {
	logger.Info("waiting for green", "phase", t.cycler.CurrentPhase(), "crossings", t.Crossings)
	for n := 1; t.Crossings == 0 || n <= t.Crossings; n++ {
		cctx := withCrossing(ctx, n)
		if err := t.waitFor(cctx, PhaseGreen); err != nil {
			return ignoreStopped(ctx, err)
		}
		newLoggerFromContext(cctx).Info("crossed on green")
		if n == t.Crossings {
			break
		}
		if err := t.waitFor(cctx, PhaseRed); err != nil {
			return ignoreStopped(ctx, err)
		}
	}
	return nil
}

func (t *TrafficLight) waitFor(ctx context.Context, p Phase) error {
	if err := t.cycler.WaitForPhaseContext(ctx, p); err != nil {
		return err
	}
	ctx = withPhase(ctx, p)
	newLoggerFromContext(ctx).Debug("phase observed")
	if h, ok := t.hooks[p]; ok {
		// a failing hook is reported but does not stop the light
		if err := h.Run(ctx); err != nil {
			newLoggerFromContext(ctx).Warn("hook failed", "name", h.Name(), "error", err.Error())
		}
	}
	return nil
}

// ignoreStopped treats the end of the light or of ctx as a normal exit.
func ignoreStopped(ctx context.Context, err error) error {
	if errors.Is(err, ErrStopped) || ctx.Err() != nil {
		return nil
	}
	return err
}
