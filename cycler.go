package trafficlight

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrStopped is returned when the cycler has been stopped.
	ErrStopped = errors.New("phase cycler stopped")
	// ErrAlreadyStarted is returned by Start on a second call.
	ErrAlreadyStarted = errors.New("phase cycler already started")
)

// PhaseCycler flips a light between red and green on a randomized schedule
// and publishes every transition to a queue that waiters consume.
//
// The queue has a single consumption point: a published phase is delivered
// to exactly one waiter. WaitForPhase and NextPhase must therefore be driven
// by at most one logical consumer at a time. Concurrent waiters are memory
// safe, but a waiter may miss a transition that another waiter consumed.
type PhaseCycler struct {
	config  CyclerConfig
	current atomic.Value // Phase
	queue   *BlockingQueue[Phase]

	started  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once

	// OnChange is called from the loop goroutine after each transition is
	// published. It must not block.
	OnChange func(ctx context.Context, from, to Phase)
}

// NewPhaseCycler creates a stopped cycler. A nil cfg uses the defaults.
func NewPhaseCycler(cfg *CyclerConfig) (*PhaseCycler, error) {
	if cfg == nil {
		cfg = NewDefaultCyclerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cycler config: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &PhaseCycler{
		config: *cfg,
		queue:  NewBlockingQueue[Phase](),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.current.Store(cfg.InitialPhase)
	return c, nil
}

// CurrentPhase returns the last published phase. It is a snapshot that may
// be stale by the time the caller looks at it; use WaitForPhase to act on a
// transition.
func (c *PhaseCycler) CurrentPhase() Phase {
	return c.current.Load().(Phase)
}

// SetCurrentPhase overwrites the published phase. The update loop is the only
// intended caller; driving it from elsewhere breaks the red/green alternation.
func (c *PhaseCycler) SetCurrentPhase(p Phase) {
	c.current.Store(p)
}

// Start runs the update loop in a new goroutine. The loop stops when ctx is
// done or Stop is called.
func (c *PhaseCycler) Start(ctx context.Context) error {
	if c.ctx.Err() != nil {
		return ErrStopped
	}
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go c.run(ctx)
	return nil
}

// Stop cancels the update loop and releases every waiter with ErrStopped.
// It does not wait for the loop to exit; call Wait for that.
func (c *PhaseCycler) Stop() {
	c.cancel()
	if c.started.CompareAndSwap(false, true) {
		// never started, nothing will close done
		c.closeDone()
	}
}

// Wait blocks until the update loop has exited.
func (c *PhaseCycler) Wait() {
	<-c.done
}

// Done returns a channel closed once the update loop has exited.
func (c *PhaseCycler) Done() <-chan struct{} {
	return c.done
}

// NextPhase receives the next published transition.
func (c *PhaseCycler) NextPhase(ctx context.Context) (Phase, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	p, err := c.queue.ReceiveContext(ctx)
	if err != nil {
		if c.ctx.Err() != nil {
			return "", ErrStopped
		}
		return "", err
	}
	return p, nil
}

// WaitForPhase blocks until a transition to target is published, discarding
// every other transition it receives. It returns ErrStopped if the cycler
// stops first.
func (c *PhaseCycler) WaitForPhase(target Phase) error {
	return c.WaitForPhaseContext(context.Background(), target)
}

// WaitForPhaseContext is like WaitForPhase but also returns when ctx is done.
func (c *PhaseCycler) WaitForPhaseContext(ctx context.Context, target Phase) error {
	for {
		p, err := c.NextPhase(ctx)
		if err != nil {
			return err
		}
		if p == target {
			return nil
		}
		newLoggerFromContext(withPhase(ctx, p)).Debug("discarded phase", "target", target)
	}
}

func (c *PhaseCycler) run(ctx context.Context) {
	stop := context.AfterFunc(ctx, c.cancel)
	defer stop()
	defer c.closeDone()
	defer c.cancel()

	logger := newLoggerFromContext(ctx).With("module", "cycler")
	logger.Debug("update loop started",
		"phase", c.CurrentPhase(),
		"min_hold", c.config.MinHold.String(),
		"max_hold", c.config.MaxHold.String(),
	)
	for {
		hold := c.holdDuration()
		logger.Debug("holding phase", "phase", c.CurrentPhase(), "hold", hold.String())
		if !sleepContext(c.ctx, hold) {
			logger.Debug("update loop stopped", "phase", c.CurrentPhase())
			return
		}
		from := c.CurrentPhase()
		to := from.Next()
		c.SetCurrentPhase(to)
		c.queue.Send(to)
		logger.Info("phase changed", "from", from, "to", to)
		if c.OnChange != nil {
			c.OnChange(withPhase(c.ctx, to), from, to)
		}
		if !sleepContext(c.ctx, c.config.Yield) {
			logger.Debug("update loop stopped", "phase", c.CurrentPhase())
			return
		}
	}
}

func (c *PhaseCycler) holdDuration() time.Duration {
	return c.config.MinHold + rand.N(c.config.MaxHold-c.config.MinHold+1)
}

func (c *PhaseCycler) closeDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

// sleepContext sleeps for d and reports whether it completed before ctx was done.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
