// internal/browser/dialog/dialog.go
// Package dialog answers native dialogs (alert, confirm, prompt, beforeunload) raised by the
// application as a side effect of an action.
//
// A dialog blocks the page until it is answered, so the channel is modeled as an explicit
// state machine per registration: a Ticket moves Armed -> Fired -> Resolved, or Armed ->
// Disarmed when nobody needed it. Handlers are armed before the triggering action and the
// caller waits on the ticket afterwards; that ordering removes the race between the action
// completing and the dialog arriving.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
)

// ResolveTimeout bounds the CDP round trip that answers a dialog.
const ResolveTimeout = 5 * time.Second

var (
	// ErrSlotOccupied is returned when a one-shot handler is armed while another one-shot
	// has not fired yet.
	ErrSlotOccupied = errors.New("a one-shot dialog handler is already armed")
	// ErrDisarmed is returned by Ticket.Wait when the ticket was disarmed before any dialog
	// arrived.
	ErrDisarmed = errors.New("dialog handler was disarmed before a dialog arrived")
	// ErrClosed is returned when arming on a closed channel.
	ErrClosed = errors.New("dialog channel is closed")
)

// Mode selects how long a handler stays registered.
type Mode int

const (
	OneShot Mode = iota
	Persistent
)

func (m Mode) String() string {
	if m == Persistent {
		return "persistent"
	}
	return "one-shot"
}

// Decision is how a dialog gets answered.
type Decision struct {
	Accept     bool
	PromptText string
}

var (
	Accept  = Decision{Accept: true}
	Dismiss = Decision{}
)

// AcceptWith accepts a prompt dialog with text.
func AcceptWith(text string) Decision {
	return Decision{Accept: true, PromptText: text}
}

// Handler decides how to answer a dialog. A non-nil error is the handler's verdict on the
// dialog (usually a failures.AssertionFailure about the message); the dialog is answered
// with the returned decision either way.
type Handler func(ev surface.DialogEvent) (Decision, error)

// AcceptAll accepts every dialog without inspecting it.
func AcceptAll(surface.DialogEvent) (Decision, error) { return Accept, nil }

// ExpectMessage accepts the dialog and fails when its message differs from want.
func ExpectMessage(want string) Handler {
	return func(ev surface.DialogEvent) (Decision, error) {
		if ev.Message != want {
			return Accept, failures.Assertf(want, ev.Message, "dialog message")
		}
		return Accept, nil
	}
}

// ExpectMessageContaining accepts the dialog and fails unless its message contains fragment.
func ExpectMessageContaining(fragment string) Handler {
	return func(ev surface.DialogEvent) (Decision, error) {
		if !strings.Contains(ev.Message, fragment) {
			return Accept, failures.Assertf(fmt.Sprintf("message containing %q", fragment), ev.Message, "dialog message")
		}
		return Accept, nil
	}
}

// State is a ticket's position in its lifecycle.
type State int

const (
	Armed State = iota
	Fired
	Resolved
	Disarmed
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	case Resolved:
		return "resolved"
	case Disarmed:
		return "disarmed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Resolver is the part of a surface the channel needs.
type Resolver interface {
	SetDialogHandler(h surface.DialogHandler)
	ResolveDialog(ctx context.Context, accept bool, promptText string) error
}

// Channel routes dialog events from one surface to armed handlers.
type Channel struct {
	surface Resolver
	logger  *zap.Logger

	mu         sync.Mutex
	oneShot    *Ticket
	persistent *Ticket
	unhandled  []error
	closed     bool

	wg sync.WaitGroup
}

// New subscribes a channel to the surface's dialog events.
func New(s Resolver, logger *zap.Logger) *Channel {
	c := &Channel{surface: s, logger: logger.Named("dialog")}
	s.SetDialogHandler(c.dispatch)
	return c
}

// Arm registers handler. Arming a second one-shot before the first fired fails with
// ErrSlotOccupied. Arming a persistent handler replaces (and disarms) the previous one.
func (c *Channel) Arm(mode Mode, handler Handler) (*Ticket, error) {
	if handler == nil {
		handler = AcceptAll
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	t := &Ticket{channel: c, mode: mode, handler: handler, done: make(chan struct{})}
	switch mode {
	case OneShot:
		if c.oneShot != nil {
			return nil, ErrSlotOccupied
		}
		c.oneShot = t
	case Persistent:
		if prev := c.persistent; prev != nil {
			prev.disarmLocked()
		}
		c.persistent = t
	default:
		return nil, fmt.Errorf("unknown dialog mode %d", mode)
	}
	c.logger.Debug("Dialog handler armed.", zap.Stringer("mode", mode))
	return t, nil
}

// TakeUnhandled returns (and forgets) the errors recorded for dialogs that arrived with no
// handler armed.
func (c *Channel) TakeUnhandled() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.unhandled) == 0 {
		return nil
	}
	err := errors.Join(c.unhandled...)
	c.unhandled = nil
	return err
}

// Close unsubscribes from the surface, disarms outstanding tickets and waits for in-flight
// resolutions to finish.
func (c *Channel) Close() {
	c.surface.SetDialogHandler(nil)
	c.mu.Lock()
	c.closed = true
	if c.oneShot != nil {
		c.oneShot.disarmLocked()
	}
	if c.persistent != nil {
		c.persistent.disarmLocked()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// dispatch runs on the surface's event goroutine. Answering a dialog is itself a browser
// round trip, so resolution happens on a separate goroutine.
func (c *Channel) dispatch(ev surface.DialogEvent) {
	c.mu.Lock()
	t := c.oneShot
	if t != nil {
		c.oneShot = nil
		t.state = Fired
	} else if c.persistent != nil {
		t = c.persistent
		if t.state == Armed {
			t.state = Fired
		}
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		if t == nil {
			c.resolveUnhandled(ev)
			return
		}
		decision, verdict := t.invoke(ev)
		ctx, cancel := context.WithTimeout(context.Background(), ResolveTimeout)
		rerr := c.surface.ResolveDialog(ctx, decision.Accept, decision.PromptText)
		cancel()
		if rerr != nil {
			c.logger.Error("Failed to resolve dialog.", zap.String("message", ev.Message), zap.Error(rerr))
		}
		c.logger.Debug("Dialog resolved.",
			zap.String("kind", string(ev.Kind)),
			zap.String("message", ev.Message),
			zap.Bool("accepted", decision.Accept),
			zap.Bool("handler_failed", verdict != nil))
		t.complete(ev, verdict, rerr)
	}()
}

func (c *Channel) resolveUnhandled(ev surface.DialogEvent) {
	c.logger.Warn("Dialog arrived with no handler armed; dismissing.",
		zap.String("kind", string(ev.Kind)), zap.String("message", ev.Message))
	// Record before resolving so the action that raised the dialog observes it on its
	// next call.
	c.mu.Lock()
	c.unhandled = append(c.unhandled, &failures.UnhandledDialogError{DialogKind: string(ev.Kind), Message: ev.Message})
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), ResolveTimeout)
	defer cancel()
	if err := c.surface.ResolveDialog(ctx, false, ""); err != nil {
		c.logger.Error("Failed to dismiss unhandled dialog.", zap.Error(err))
	}
}

// Ticket tracks one handler registration.
type Ticket struct {
	channel *Channel
	mode    Mode
	handler Handler

	// Guarded by channel.mu.
	state  State
	events []surface.DialogEvent
	errs   []error

	done     chan struct{}
	doneOnce sync.Once
}

// State returns the ticket's current state.
func (t *Ticket) State() State {
	t.channel.mu.Lock()
	defer t.channel.mu.Unlock()
	return t.state
}

// Events returns the dialogs this ticket answered.
func (t *Ticket) Events() []surface.DialogEvent {
	t.channel.mu.Lock()
	defer t.channel.mu.Unlock()
	return append([]surface.DialogEvent(nil), t.events...)
}

// Disarm withdraws the ticket. A one-shot can only be withdrawn while still armed, so
// Disarm reports false once a dialog fired it. Persistent tickets can always be withdrawn.
func (t *Ticket) Disarm() bool {
	t.channel.mu.Lock()
	defer t.channel.mu.Unlock()
	if !t.withdrawable() {
		return false
	}
	t.disarmLocked()
	return true
}

func (t *Ticket) withdrawable() bool {
	return t.state == Armed || (t.mode == Persistent && t.state != Disarmed)
}

func (t *Ticket) disarmLocked() {
	if !t.withdrawable() {
		return
	}
	t.state = Disarmed
	c := t.channel
	if c.oneShot == t {
		c.oneShot = nil
	}
	if c.persistent == t {
		c.persistent = nil
	}
	t.doneOnce.Do(func() { close(t.done) })
}

// Wait blocks until the ticket's first dialog is resolved and returns the handler's verdict
// (or the resolution error). It returns ErrDisarmed for a ticket that never fired, and a
// WaitTimeoutError when ctx expires first.
func (t *Ticket) Wait(ctx context.Context) error {
	start := time.Now()
	select {
	case <-t.done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &failures.WaitTimeoutError{
				Condition:    fmt.Sprintf("%s dialog resolution", t.mode),
				Timeout:      time.Since(start).Round(time.Millisecond),
				LastObserved: t.State().String(),
			}
		}
		return ctx.Err()
	}
	t.channel.mu.Lock()
	defer t.channel.mu.Unlock()
	if len(t.events) == 0 {
		return ErrDisarmed
	}
	return errors.Join(t.errs...)
}

// invoke runs the handler, turning a panic into a dismiss plus an error.
func (t *Ticket) invoke(ev surface.DialogEvent) (d Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			d = Dismiss
			err = fmt.Errorf("dialog handler panicked: %v", r)
		}
	}()
	return t.handler(ev)
}

func (t *Ticket) complete(ev surface.DialogEvent, verdict, resolveErr error) {
	c := t.channel
	c.mu.Lock()
	t.events = append(t.events, ev)
	if verdict != nil {
		t.errs = append(t.errs, verdict)
	}
	if resolveErr != nil {
		t.errs = append(t.errs, fmt.Errorf("resolving dialog %q: %w", ev.Message, resolveErr))
	}
	if t.state != Disarmed {
		t.state = Resolved
	}
	c.mu.Unlock()
	t.doneOnce.Do(func() { close(t.done) })
}
