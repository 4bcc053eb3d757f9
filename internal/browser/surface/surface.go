// internal/browser/surface/surface.go
// Package surface defines the browser boundary the orchestration engine is built on. The
// engine never talks to a browser directly: locators, the executor, the poller and the
// dialog channel only see this interface. The chromedp implementation lives in
// internal/browser/session; surfacetest provides an in-memory one for unit tests.
package surface

import (
	"context"
	"errors"
	"fmt"
)

// ErrDetached is returned by element operations when the referenced element is no longer
// attached to the current document (for example after a navigation or re-render).
var ErrDetached = errors.New("element is not attached to the document")

// Query selects candidate elements in the current document. Exactly one of Role or CSS is
// set. Name and text filtering happen on the Go side so the query stays a plain snapshot.
type Query struct {
	// Role is an accessibility role (button, link, textbox, ...).
	Role string `json:"role,omitempty"`
	// Level restricts headings to h1..h6 when non-zero.
	Level int `json:"level,omitempty"`
	// CSS is a raw selector used instead of a role.
	CSS string `json:"css,omitempty"`
	// Scope is a CSS selector; when set only descendants of matching elements are searched.
	Scope string `json:"scope,omitempty"`
}

// Candidate is a snapshot of one element taken while resolving a Query.
type Candidate struct {
	// Ref addresses the element for later operations. Refs are only valid for the document
	// they were taken from.
	Ref     string `json:"ref"`
	Tag     string `json:"tag"`
	Name    string `json:"name"`
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
}

// ElementState is the live state of a referenced element.
type ElementState struct {
	Attached bool   `json:"attached"`
	Visible  bool   `json:"visible"`
	Enabled  bool   `json:"enabled"`
	Editable bool   `json:"editable"`
	Text     string `json:"text"`
	Value    string `json:"value"`
	// HasValue reports whether the element is input-like (input, textarea, select).
	HasValue bool `json:"hasValue"`
}

func (s ElementState) String() string {
	if !s.Attached {
		return "detached"
	}
	return fmt.Sprintf("attached visible=%t enabled=%t editable=%t", s.Visible, s.Enabled, s.Editable)
}

// DialogKind is the type of a native dialog.
type DialogKind string

const (
	DialogAlert        DialogKind = "alert"
	DialogConfirm      DialogKind = "confirm"
	DialogPrompt       DialogKind = "prompt"
	DialogBeforeUnload DialogKind = "beforeunload"
)

// DialogEvent is raised by the application under test.
type DialogEvent struct {
	Kind          DialogKind
	Message       string
	DefaultPrompt string
	URL           string
}

// DialogHandler receives dialog events from the surface. It is called on the surface's
// event goroutine and must not block on the surface itself.
type DialogHandler func(DialogEvent)

// Surface is one isolated browser page.
type Surface interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	GoBack(ctx context.Context) error
	URL(ctx context.Context) (string, error)
	// Evaluate runs script in the page and decodes the result into res (which may be nil).
	Evaluate(ctx context.Context, script string, res any) error

	Query(ctx context.Context, q Query) ([]Candidate, error)
	State(ctx context.Context, ref string) (ElementState, error)
	Click(ctx context.Context, ref string) error
	Fill(ctx context.Context, ref, value string) error
	Clear(ctx context.Context, ref string) error

	// SetDialogHandler installs the single subscriber for dialog events. Passing nil
	// removes it.
	SetDialogHandler(h DialogHandler)
	// ResolveDialog answers the currently open dialog.
	ResolveDialog(ctx context.Context, accept bool, promptText string) error

	Close() error
}
