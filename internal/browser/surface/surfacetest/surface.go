// Package surfacetest provides an in-memory surface.Surface for unit tests. Pages are
// described as flat lists of elements; routes rebuild the element list on navigation, and
// click callbacks let a test simulate application behavior (dialogs, redirects, re-renders).
package surfacetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
)

// ErrDialogStalled is returned by RaiseDialog when nobody resolved the dialog in time,
// which is how a real page behaves when a dialog is left open.
var ErrDialogStalled = errors.New("dialog was never resolved; page is stalled")

// DialogStallTimeout bounds how long RaiseDialog blocks waiting for a resolution.
var DialogStallTimeout = 2 * time.Second

// Element is one node of a fake page.
type Element struct {
	Tag   string
	Role  string
	Level int
	Name  string
	Text  string
	Value string
	// Matches lists the CSS selectors this element answers to (".book-card", "#lista-livros").
	Matches  []string
	Hidden   bool
	Disabled bool
	ReadOnly bool
	Parent   *Element
	// OnClick runs after the click is recorded, outside the surface lock.
	OnClick func(s *Surface)

	ref    string
	clicks int
}

// Ref returns the reference assigned when the element was added.
func (e *Element) Ref() string { return e.ref }

// Route builds the elements of a page when it is navigated to.
type Route func(s *Surface)

// DialogResolution records how a dialog was answered.
type DialogResolution struct {
	Accept     bool
	PromptText string
}

// Surface is a goroutine-safe fake browser page.
type Surface struct {
	mu       sync.Mutex
	url      string
	history  []string
	elements []*Element
	seq      int
	routes   map[string]Route
	storage  map[string]string
	handler  surface.DialogHandler
	pending  chan DialogResolution
	closed   bool

	// Evaluator answers Evaluate calls. When nil, Evaluate understands the storage scripts
	// used by the page contracts and returns an error for anything else.
	Evaluator func(script string) (any, error)
	// Dialogs records every dialog raised, in order.
	Dialogs []surface.DialogEvent
}

var _ surface.Surface = (*Surface)(nil)

// New returns an empty surface at about:blank.
func New() *Surface {
	return &Surface{
		url:     "about:blank",
		routes:  make(map[string]Route),
		storage: make(map[string]string),
	}
}

// Route registers a page builder for a path such as "/login.html".
func (s *Surface) Route(path string, r Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = r
}

// Add appends elements to the current page and returns the first one for convenience.
func (s *Surface) Add(els ...*Element) *Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, el := range els {
		s.seq++
		el.ref = strconv.Itoa(s.seq)
		s.elements = append(s.elements, el)
	}
	if len(els) == 0 {
		return nil
	}
	return els[0]
}

// Remove detaches an element (and its descendants).
func (s *Surface) Remove(el *Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.elements[:0]
	for _, e := range s.elements {
		if e == el || descendsFrom(e, el) {
			continue
		}
		kept = append(kept, e)
	}
	s.elements = kept
}

// ClearPage detaches every element.
func (s *Surface) ClearPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = nil
}

// Do runs fn while holding the surface lock so tests can mutate elements from other
// goroutines.
func (s *Surface) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Clicks returns how often el received a click.
func (s *Surface) Clicks(el *Element) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return el.clicks
}

// SetURL changes the location without running a route, like a pushState.
func (s *Surface) SetURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = u
}

// Storage returns a copy of the fake localStorage.
func (s *Surface) Storage() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.storage))
	for k, v := range s.storage {
		out[k] = v
	}
	return out
}

// SetStorage writes a localStorage entry; an empty value deletes the key.
func (s *Surface) SetStorage(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.storage, key)
		return
	}
	s.storage[key] = value
}

// Redirect navigates from inside a click callback or route.
func (s *Surface) Redirect(u string) {
	_ = s.Navigate(context.Background(), u)
}

// RaiseDialog opens a dialog and blocks until it is resolved, the way a native dialog
// blocks the action that triggered it.
func (s *Surface) RaiseDialog(ev surface.DialogEvent) (DialogResolution, error) {
	s.mu.Lock()
	ch := make(chan DialogResolution, 1)
	s.pending = ch
	h := s.handler
	if ev.URL == "" {
		ev.URL = s.url
	}
	s.Dialogs = append(s.Dialogs, ev)
	s.mu.Unlock()

	if h != nil {
		h(ev)
	}
	select {
	case res := <-ch:
		return res, nil
	case <-time.After(DialogStallTimeout):
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
		return DialogResolution{}, ErrDialogStalled
	}
}

// -- surface.Surface --

func (s *Surface) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.history = append(s.history, s.url)
	s.mu.Unlock()
	s.load(rawURL)
	return nil
}

func (s *Surface) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	current := s.url
	s.mu.Unlock()
	s.load(current)
	return nil
}

func (s *Surface) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if len(s.history) == 0 {
		s.mu.Unlock()
		return nil
	}
	prev := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.mu.Unlock()
	s.load(prev)
	return nil
}

// load replaces the document and runs the matching route outside the lock.
func (s *Surface) load(rawURL string) {
	s.mu.Lock()
	s.url = rawURL
	s.elements = nil
	route := s.routes[pathOf(rawURL)]
	s.mu.Unlock()
	if route != nil {
		route(s)
	}
}

func (s *Surface) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

func (s *Surface) Evaluate(ctx context.Context, script string, res any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var (
		out any
		err error
	)
	if s.Evaluator != nil {
		out, err = s.Evaluator(script)
	} else {
		out, err = s.evalStorage(script)
	}
	if err != nil || res == nil {
		return err
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, res)
}

// evalStorage understands the localStorage snippets the page contracts issue.
func (s *Surface) evalStorage(script string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case strings.Contains(script, "localStorage.clear()"):
		s.storage = make(map[string]string)
		return nil, nil
	case strings.Contains(script, "localStorage.getItem("):
		key := between(script, "localStorage.getItem(", ")")
		key = strings.Trim(key, `"'`)
		v, ok := s.storage[key]
		if !ok {
			return nil, nil
		}
		return v, nil
	}
	return nil, fmt.Errorf("surfacetest: no evaluator for script %q", script)
}

func (s *Surface) Query(ctx context.Context, q surface.Query) ([]surface.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []surface.Candidate
	for _, el := range s.elements {
		if !matchesQuery(el, q) {
			continue
		}
		if q.Scope != "" && !s.insideScope(el, q.Scope) {
			continue
		}
		out = append(out, surface.Candidate{
			Ref:     el.ref,
			Tag:     el.Tag,
			Name:    el.Name,
			Text:    s.textOf(el),
			Visible: visible(el),
			Enabled: !el.Disabled,
		})
	}
	return out, nil
}

func (s *Surface) State(ctx context.Context, ref string) (surface.ElementState, error) {
	if err := ctx.Err(); err != nil {
		return surface.ElementState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	el := s.byRef(ref)
	if el == nil {
		return surface.ElementState{}, nil
	}
	inputLike := isInputLike(el)
	return surface.ElementState{
		Attached: true,
		Visible:  visible(el),
		Enabled:  !el.Disabled,
		Editable: inputLike && !el.Disabled && !el.ReadOnly,
		Text:     s.textOf(el),
		Value:    el.Value,
		HasValue: inputLike,
	}, nil
}

func (s *Surface) Click(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	el := s.byRef(ref)
	if el == nil {
		s.mu.Unlock()
		return surface.ErrDetached
	}
	el.clicks++
	onClick := el.OnClick
	s.mu.Unlock()
	if onClick != nil {
		onClick(s)
	}
	return nil
}

func (s *Surface) Fill(ctx context.Context, ref, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	el := s.byRef(ref)
	if el == nil {
		return surface.ErrDetached
	}
	if !isInputLike(el) {
		return fmt.Errorf("element %s is not fillable", ref)
	}
	el.Value = value
	return nil
}

func (s *Surface) Clear(ctx context.Context, ref string) error {
	return s.Fill(ctx, ref, "")
}

func (s *Surface) SetDialogHandler(h surface.DialogHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *Surface) ResolveDialog(ctx context.Context, accept bool, promptText string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return errors.New("no dialog is open")
	}
	s.pending <- DialogResolution{Accept: accept, PromptText: promptText}
	s.pending = nil
	return nil
}

func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.handler = nil
	return nil
}

// -- helpers --

func (s *Surface) byRef(ref string) *Element {
	for _, el := range s.elements {
		if el.ref == ref {
			return el
		}
	}
	return nil
}

func (s *Surface) attached(el *Element) bool {
	for _, e := range s.elements {
		if e == el {
			return true
		}
	}
	return false
}

// textOf concatenates the element's own text with its attached descendants' text.
func (s *Surface) textOf(el *Element) string {
	var parts []string
	if el.Text != "" {
		parts = append(parts, el.Text)
	}
	for _, e := range s.elements {
		if e.Parent == el {
			if t := s.textOf(e); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}

func (s *Surface) insideScope(el *Element, scope string) bool {
	if ref, ok := refFromSelector(scope); ok {
		for p := el.Parent; p != nil; p = p.Parent {
			if p.ref == ref {
				return true
			}
		}
		return false
	}
	for _, part := range strings.Split(scope, ",") {
		sel := strings.TrimSpace(part)
		for p := el.Parent; p != nil; p = p.Parent {
			if s.attached(p) && answers(p, sel) {
				return true
			}
		}
	}
	return false
}

func matchesQuery(el *Element, q surface.Query) bool {
	if q.Role != "" {
		return el.Role == q.Role && (q.Level == 0 || el.Level == q.Level)
	}
	for _, part := range strings.Split(q.CSS, ",") {
		if answers(el, strings.TrimSpace(part)) {
			return true
		}
	}
	return false
}

func answers(el *Element, sel string) bool {
	if sel == "" {
		return false
	}
	if sel == el.Tag {
		return true
	}
	if ref, ok := refFromSelector(sel); ok {
		return el.ref == ref
	}
	for _, m := range el.Matches {
		if m == sel {
			return true
		}
	}
	return false
}

// refFromSelector recognizes the reference selector the resolver builds for nested
// locators: [data-shelfcheck-ref="N"].
func refFromSelector(sel string) (string, bool) {
	const prefix = `[data-shelfcheck-ref="`
	if strings.HasPrefix(sel, prefix) && strings.HasSuffix(sel, `"]`) {
		return strings.TrimSuffix(strings.TrimPrefix(sel, prefix), `"]`), true
	}
	return "", false
}

func visible(el *Element) bool {
	for e := el; e != nil; e = e.Parent {
		if e.Hidden {
			return false
		}
	}
	return true
}

func isInputLike(el *Element) bool {
	switch el.Tag {
	case "input", "textarea", "select":
		return true
	}
	return false
}

func descendsFrom(el, ancestor *Element) bool {
	for p := el.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	rest := s[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return rest
	}
	return rest[:j]
}
