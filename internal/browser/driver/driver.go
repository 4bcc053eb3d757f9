// internal/browser/driver/driver.go
// Package driver bundles the engine components for one browser surface: the executor, the
// poller and the dialog channel share the surface and the call-site timeouts, and both the
// executor and the poller surface dialogs that arrived while nothing was armed.
package driver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser/action"
	"github.com/xkilldash9x/shelfcheck/internal/browser/dialog"
	"github.com/xkilldash9x/shelfcheck/internal/browser/locator"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/browser/wait"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
)

// Driver is owned by one scenario.
type Driver struct {
	surface  surface.Surface
	exec     *action.Executor
	dialogs  *dialog.Channel
	poller   *wait.Poller
	timeouts wait.Timeouts
	baseURL  string
	logger   *zap.Logger
}

// New wires the engine around s. Relative paths given to Goto are resolved against baseURL.
func New(s surface.Surface, baseURL string, timeouts wait.Timeouts, logger *zap.Logger) *Driver {
	timeouts = timeouts.WithDefaults()
	d := &Driver{
		surface:  s,
		timeouts: timeouts,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
	d.dialogs = dialog.New(s, logger)
	d.exec = action.New(s, logger,
		action.WithInterval(timeouts.Interval),
		action.WithPreflight(d.dialogs.TakeUnhandled))
	d.poller = wait.New(s, logger,
		wait.WithInterval(timeouts.Interval),
		wait.WithPreflight(d.dialogs.TakeUnhandled))
	return d
}

// Close detaches the dialog channel. The surface itself belongs to whoever created it.
func (d *Driver) Close() { d.dialogs.Close() }

func (d *Driver) Surface() surface.Surface   { return d.surface }
func (d *Driver) Executor() *action.Executor { return d.exec }
func (d *Driver) Dialogs() *dialog.Channel   { return d.dialogs }
func (d *Driver) Poller() *wait.Poller       { return d.poller }
func (d *Driver) Timeouts() wait.Timeouts    { return d.timeouts }
func (d *Driver) Logger() *zap.Logger        { return d.logger }

// URL resolves a path against the base URL. Absolute URLs are returned unchanged.
func (d *Driver) URL(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return d.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Goto navigates to path.
func (d *Driver) Goto(ctx context.Context, path string) error {
	if err := d.dialogs.TakeUnhandled(); err != nil {
		return err
	}
	target := d.URL(path)
	ctx, cancel := context.WithTimeout(ctx, d.timeouts.Navigation)
	defer cancel()
	if err := d.surface.Navigate(ctx, target); err != nil {
		return fmt.Errorf("navigating to %s: %w", target, err)
	}
	return nil
}

func (d *Driver) Reload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeouts.Navigation)
	defer cancel()
	return d.surface.Reload(ctx)
}

func (d *Driver) GoBack(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeouts.Navigation)
	defer cancel()
	return d.surface.GoBack(ctx)
}

// CurrentURL returns the location of the surface.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	return d.surface.URL(ctx)
}

func (d *Driver) Click(ctx context.Context, l locator.Locator) error {
	return d.exec.Click(ctx, l, d.timeouts.Action)
}

func (d *Driver) Fill(ctx context.Context, l locator.Locator, value any) error {
	return d.exec.Fill(ctx, l, value, d.timeouts.Action)
}

func (d *Driver) Clear(ctx context.Context, l locator.Locator) error {
	return d.exec.Clear(ctx, l, d.timeouts.Action)
}

func (d *Driver) ReadText(ctx context.Context, l locator.Locator) (string, error) {
	return d.exec.ReadText(ctx, l, d.timeouts.Action)
}

func (d *Driver) ReadValue(ctx context.Context, l locator.Locator) (string, error) {
	return d.exec.ReadValue(ctx, l, d.timeouts.Action)
}

func (d *Driver) IsVisible(ctx context.Context, l locator.Locator) (bool, error) {
	return d.exec.IsVisible(ctx, l)
}

func (d *Driver) Count(ctx context.Context, l locator.Locator) (int, error) {
	return d.exec.Count(ctx, l)
}

// WaitFor polls cond up to timeout at the configured interval.
func (d *Driver) WaitFor(ctx context.Context, cond wait.Condition, timeout time.Duration) error {
	return d.poller.WaitFor(ctx, cond, timeout, d.timeouts.Interval)
}

// WaitForURL waits for a navigation to a URL matching the glob, bounded by the navigation
// timeout.
func (d *Driver) WaitForURL(ctx context.Context, glob string) error {
	return d.WaitFor(ctx, wait.URLMatches(glob), d.timeouts.Navigation)
}

// ExpectVisible waits for l to be visible within the action timeout.
func (d *Driver) ExpectVisible(ctx context.Context, l locator.Locator) error {
	return d.WaitFor(ctx, wait.Visible(l), d.timeouts.Action)
}

// ExpectDialog arms a one-shot handler, runs act and waits until the dialog act raised has
// been resolved. It returns the dialog and the handler's verdict.
func (d *Driver) ExpectDialog(ctx context.Context, h dialog.Handler, act func(context.Context) error) (surface.DialogEvent, error) {
	ticket, err := d.dialogs.Arm(dialog.OneShot, h)
	if err != nil {
		return surface.DialogEvent{}, err
	}
	if err := act(ctx); err != nil {
		ticket.Disarm()
		return surface.DialogEvent{}, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, d.timeouts.Action)
	defer cancel()
	verdict := ticket.Wait(waitCtx)
	if errors.Is(verdict, context.DeadlineExceeded) || failures.KindOf(verdict) == failures.KindWaitTimeout {
		ticket.Disarm()
	}
	return firstEvent(ticket), verdict
}

// ExpectOptionalDialog is ExpectDialog for actions that may or may not raise a dialog. When
// nothing arrives within grace the handler is disarmed and fired is false.
func (d *Driver) ExpectOptionalDialog(ctx context.Context, h dialog.Handler, grace time.Duration, act func(context.Context) error) (fired bool, err error) {
	ticket, err := d.dialogs.Arm(dialog.OneShot, h)
	if err != nil {
		return false, err
	}
	if err := act(ctx); err != nil {
		ticket.Disarm()
		return false, err
	}
	graceCtx, cancel := context.WithTimeout(ctx, grace)
	verdict := ticket.Wait(graceCtx)
	cancel()
	if failures.KindOf(verdict) == failures.KindWaitTimeout {
		if ticket.Disarm() {
			return false, nil
		}
		// It fired while we were disarming; wait for its resolution.
		fullCtx, cancel := context.WithTimeout(ctx, d.timeouts.Action)
		defer cancel()
		verdict = ticket.Wait(fullCtx)
	}
	return true, verdict
}

func firstEvent(t *dialog.Ticket) surface.DialogEvent {
	if evs := t.Events(); len(evs) > 0 {
		return evs[0]
	}
	return surface.DialogEvent{}
}

// LocalStorage reads a localStorage entry. ok is false when the key is absent.
func (d *Driver) LocalStorage(ctx context.Context, key string) (value string, ok bool, err error) {
	var res *string
	script := fmt.Sprintf("localStorage.getItem(%q)", key)
	if err := d.surface.Evaluate(ctx, script, &res); err != nil {
		return "", false, fmt.Errorf("reading localStorage[%s]: %w", key, err)
	}
	if res == nil {
		return "", false, nil
	}
	return *res, true, nil
}

// ClearStorage empties localStorage for the current origin.
func (d *Driver) ClearStorage(ctx context.Context) error {
	return d.surface.Evaluate(ctx, "localStorage.clear()", nil)
}
