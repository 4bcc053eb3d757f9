// internal/browser/action/executor.go
// Package action performs primitive interactions (fill, click, clear, read) under an
// implicit-wait discipline: the executor keeps re-resolving its locator until the target is
// actionable, then performs the primitive exactly once.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser/locator"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/browser/wait"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
)

// Kind names a primitive interaction.
type Kind string

const (
	Fill      Kind = "fill"
	Click     Kind = "click"
	Clear     Kind = "clear"
	ReadText  Kind = "readText"
	ReadValue Kind = "readValue"
)

// ErrNotInput is returned by ReadValue when the target is not an input-like element.
var ErrNotInput = errors.New("target is not an input, textarea or select")

// Outcome reports a completed action.
type Outcome struct {
	Succeeded    bool
	ObservedText string
	Elapsed      time.Duration
}

// Executor performs actions against one surface.
type Executor struct {
	surface   surface.Surface
	logger    *zap.Logger
	interval  time.Duration
	preflight func() error
}

// Option configures an Executor.
type Option func(*Executor)

// WithInterval sets the re-resolution cadence.
func WithInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithPreflight installs a check run before every attempt; the driver uses it to surface
// unhandled dialogs.
func WithPreflight(fn func() error) Option {
	return func(e *Executor) { e.preflight = fn }
}

// New returns an executor for s.
func New(s surface.Surface, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{surface: s, logger: logger.Named("executor"), interval: wait.DefaultInterval}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Perform runs kind against the target of l. value is only used by Fill and may be a
// string or any integer or float, which is stringified first.
func (e *Executor) Perform(ctx context.Context, kind Kind, l locator.Locator, value any, timeout time.Duration) (Outcome, error) {
	start := time.Now()
	if timeout <= 0 {
		timeout = wait.ActionTimeout
	}
	if err := l.Validate(); err != nil {
		return Outcome{}, err
	}
	var text string
	if kind == Fill {
		s, err := Stringify(value)
		if err != nil {
			return Outcome{}, fmt.Errorf("fill %s: %w", l, err)
		}
		text = s
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		found     bool
		stale     bool
		lastState string
		staleErr  error
	)
	for {
		if e.preflight != nil {
			if err := e.preflight(); err != nil {
				return Outcome{}, err
			}
		}

		target, ok, err := e.resolve(opCtx, l)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			found = true
			st, err := e.surface.State(opCtx, target.Ref)
			switch {
			case err != nil:
				lastState = "state unavailable: " + err.Error()
			case !st.Attached:
				lastState = st.String()
			case kind == ReadValue && !st.HasValue:
				return Outcome{}, fmt.Errorf("readValue %s: %w", l, ErrNotInput)
			case actionable(kind, st):
				observed, err := e.execute(opCtx, kind, target.Ref, text, st)
				if err == nil {
					out := Outcome{Succeeded: true, ObservedText: observed, Elapsed: time.Since(start)}
					e.logger.Debug("Action performed.",
						zap.String("action", string(kind)),
						zap.Stringer("locator", l),
						zap.Duration("elapsed", out.Elapsed))
					return out, nil
				}
				if !errors.Is(err, surface.ErrDetached) {
					if ctxErr := ctx.Err(); ctxErr != nil {
						return Outcome{}, ctxErr
					}
					if opCtx.Err() != nil {
						// The primitive itself outlived the action timeout.
						return Outcome{}, &failures.ActionTimeoutError{
							Action:     string(kind),
							Descriptor: l.String(),
							Timeout:    timeout,
							LastState:  "executing",
						}
					}
					return Outcome{}, fmt.Errorf("%s %s: %w", kind, l, err)
				}
				if stale {
					return Outcome{}, &failures.StaleTargetError{Action: string(kind), Descriptor: l.String(), Cause: err}
				}
				// Detached between resolution and execution: re-resolve once, immediately.
				stale, staleErr = true, err
				e.logger.Debug("Target detached; re-resolving once.", zap.Stringer("locator", l))
				continue
			default:
				lastState = st.String()
			}
		}
		if stale {
			return Outcome{}, &failures.StaleTargetError{Action: string(kind), Descriptor: l.String(), Cause: staleErr}
		}

		timer := time.NewTimer(e.interval)
		select {
		case <-timer.C:
		case <-opCtx.Done():
			timer.Stop()
			if err := ctx.Err(); err != nil {
				return Outcome{}, err
			}
			if !found {
				return Outcome{}, &failures.ElementNotFoundError{Descriptor: l.String(), Timeout: timeout}
			}
			return Outcome{}, &failures.ActionTimeoutError{
				Action:     string(kind),
				Descriptor: l.String(),
				Timeout:    timeout,
				LastState:  lastState,
			}
		}
	}
}

// resolve returns the unique target. Ambiguity and descriptor errors are returned at once;
// a failed query counts as "not found yet".
func (e *Executor) resolve(ctx context.Context, l locator.Locator) (surface.Candidate, bool, error) {
	set, err := l.Resolve(ctx, e.surface)
	if err != nil {
		var amb *failures.AmbiguousMatchError
		if errors.As(err, &amb) || errors.Is(err, locator.ErrUnsupportedRole) {
			return surface.Candidate{}, false, err
		}
		e.logger.Debug("Resolution failed; retrying.", zap.Stringer("locator", l), zap.Error(err))
		return surface.Candidate{}, false, nil
	}
	c, err := set.Single()
	if errors.Is(err, locator.ErrNoMatch) {
		return surface.Candidate{}, false, nil
	}
	if err != nil {
		return surface.Candidate{}, false, err
	}
	return c, true, nil
}

func actionable(kind Kind, st surface.ElementState) bool {
	switch kind {
	case Click:
		return st.Attached && st.Visible && st.Enabled
	case Fill, Clear:
		return st.Attached && st.Visible && st.Editable
	case ReadText:
		return st.Attached
	case ReadValue:
		return st.Attached && st.HasValue
	}
	return false
}

func (e *Executor) execute(ctx context.Context, kind Kind, ref, text string, st surface.ElementState) (string, error) {
	switch kind {
	case Click:
		return "", e.surface.Click(ctx, ref)
	case Fill:
		return text, e.surface.Fill(ctx, ref, text)
	case Clear:
		return "", e.surface.Clear(ctx, ref)
	case ReadText:
		return st.Text, nil
	case ReadValue:
		return st.Value, nil
	}
	return "", fmt.Errorf("unknown action %q", kind)
}

// Stringify converts a fill value to the text typed into the field.
func Stringify(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case int:
		return strconv.Itoa(x), nil
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", x), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case json.Number:
		return x.String(), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return "", fmt.Errorf("cannot fill a field with %T", v)
}

// Convenience wrappers.

func (e *Executor) Click(ctx context.Context, l locator.Locator, timeout time.Duration) error {
	_, err := e.Perform(ctx, Click, l, nil, timeout)
	return err
}

func (e *Executor) Fill(ctx context.Context, l locator.Locator, value any, timeout time.Duration) error {
	_, err := e.Perform(ctx, Fill, l, value, timeout)
	return err
}

func (e *Executor) Clear(ctx context.Context, l locator.Locator, timeout time.Duration) error {
	_, err := e.Perform(ctx, Clear, l, nil, timeout)
	return err
}

func (e *Executor) ReadText(ctx context.Context, l locator.Locator, timeout time.Duration) (string, error) {
	out, err := e.Perform(ctx, ReadText, l, nil, timeout)
	return out.ObservedText, err
}

func (e *Executor) ReadValue(ctx context.Context, l locator.Locator, timeout time.Duration) (string, error) {
	out, err := e.Perform(ctx, ReadValue, l, nil, timeout)
	return out.ObservedText, err
}

// IsVisible reports whether l currently resolves to a single visible element, without
// waiting. Zero matches is "not visible".
func (e *Executor) IsVisible(ctx context.Context, l locator.Locator) (bool, error) {
	if e.preflight != nil {
		if err := e.preflight(); err != nil {
			return false, err
		}
	}
	c, ok, err := e.resolve(ctx, l)
	if err != nil || !ok {
		return false, err
	}
	return c.Visible, nil
}

// Count returns the current number of matches without waiting.
func (e *Executor) Count(ctx context.Context, l locator.Locator) (int, error) {
	if e.preflight != nil {
		if err := e.preflight(); err != nil {
			return 0, err
		}
	}
	return l.Count(ctx, e.surface)
}
