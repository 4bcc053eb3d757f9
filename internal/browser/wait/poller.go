// internal/browser/wait/poller.go
// Package wait polls ambient page state until a named condition holds. It replaces fixed
// sleeps: every wait says what it is waiting for and how long it is willing to wait.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
)

// Call-site timeouts. The application has two latency classes: navigation settles in well
// under a second, while a favorite toggle can take up to 8s to show up on another page.
const (
	DefaultInterval      = 100 * time.Millisecond
	ActionTimeout        = 10 * time.Second
	NavigationTimeout    = 5 * time.Second
	ConsistencyTimeout   = 8 * time.Second
	FavoritesListTimeout = 15 * time.Second
)

// Timeouts groups the per-call-site budgets so they can come from configuration.
type Timeouts struct {
	Action        time.Duration
	Navigation    time.Duration
	Consistency   time.Duration
	FavoritesList time.Duration
	Interval      time.Duration
}

// DefaultTimeouts returns the built-in budgets.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Action:        ActionTimeout,
		Navigation:    NavigationTimeout,
		Consistency:   ConsistencyTimeout,
		FavoritesList: FavoritesListTimeout,
		Interval:      DefaultInterval,
	}
}

// WithDefaults fills zero fields from DefaultTimeouts.
func (t Timeouts) WithDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Action <= 0 {
		t.Action = d.Action
	}
	if t.Navigation <= 0 {
		t.Navigation = d.Navigation
	}
	if t.Consistency <= 0 {
		t.Consistency = d.Consistency
	}
	if t.FavoritesList <= 0 {
		t.FavoritesList = d.FavoritesList
	}
	if t.Interval <= 0 {
		t.Interval = d.Interval
	}
	return t
}

// Permanent marks an evaluation error that waiting cannot fix; the poller stops at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Poller evaluates conditions against one surface.
type Poller struct {
	surface   surface.Surface
	logger    *zap.Logger
	interval  time.Duration
	preflight func() error
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the default poll interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPreflight installs a check run before every evaluation. A non-nil error aborts the
// wait; the driver uses it to surface unhandled dialogs.
func WithPreflight(fn func() error) Option {
	return func(p *Poller) { p.preflight = fn }
}

// New returns a poller for s.
func New(s surface.Surface, logger *zap.Logger, opts ...Option) *Poller {
	p := &Poller{surface: s, logger: logger.Named("poller"), interval: DefaultInterval}
	for _, o := range opts {
		o(p)
	}
	return p
}

// WaitFor evaluates cond every interval until it holds or timeout elapses. Evaluation
// errors count as "not yet" unless marked Permanent. A zero interval uses the poller's
// default.
func (p *Poller) WaitFor(ctx context.Context, cond Condition, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = p.interval
	}
	if timeout <= 0 {
		timeout = ActionTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		lastObserved string
		lastErr      error
		polls        int
	)
	start := time.Now()
	for {
		if p.preflight != nil {
			if err := p.preflight(); err != nil {
				return err
			}
		}
		polls++
		held, observed, err := cond.Check(waitCtx, p.surface)
		switch {
		case err == nil && held:
			p.logger.Debug("Condition held.",
				zap.String("condition", cond.Describe()),
				zap.Int("polls", polls),
				zap.Duration("elapsed", time.Since(start)))
			return nil
		case err != nil:
			var perm *permanentError
			if errors.As(err, &perm) {
				return perm.err
			}
			// Contexts cancelled by our own deadline surface below as a timeout.
			if waitCtx.Err() == nil {
				lastErr = err
			}
		default:
			lastObserved = observed
			lastErr = nil
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Debug("Condition timed out.",
				zap.String("condition", cond.Describe()),
				zap.String("last_observed", lastObserved),
				zap.Error(lastErr))
			return &failures.WaitTimeoutError{
				Condition:    cond.Describe(),
				Timeout:      timeout,
				LastObserved: lastObserved,
				LastErr:      lastErr,
			}
		}
	}
}

// Check evaluates cond once without waiting.
func (p *Poller) Check(ctx context.Context, cond Condition) (bool, string, error) {
	if p.preflight != nil {
		if err := p.preflight(); err != nil {
			return false, "", err
		}
	}
	return cond.Check(ctx, p.surface)
}

// Sleep is the explicit, bounded settle used between steps when no observable condition
// exists. It returns early when ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("settle interrupted: %w", ctx.Err())
	}
}
