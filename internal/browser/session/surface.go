// internal/browser/session/surface.go
// Package session implements the browser surface over the Chrome DevTools Protocol with
// chromedp. Elements are addressed through a reference attribute stamped by the query
// script, and native dialogs are observed through Page.javascriptDialogOpening.
package session

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser/locator"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
)

var (
	//go:embed js/query.js
	queryScript string
	//go:embed js/state.js
	stateScript string
	//go:embed js/set_value.js
	setValueScript string
)

// Surface is one browser tab in its own browser context.
type Surface struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu      sync.Mutex
	handler surface.DialogHandler
	closed  bool

	// resolving tracks the fallback dismissals issued while no handler is installed.
	resolving sync.WaitGroup
}

var _ surface.Surface = (*Surface)(nil)

// newSurface wraps an already started chromedp tab context.
func newSurface(tabCtx context.Context, cancel context.CancelFunc, logger *zap.Logger) *Surface {
	s := &Surface{ctx: tabCtx, cancel: cancel, logger: logger}
	chromedp.ListenTarget(tabCtx, s.onEvent)
	return s
}

func (s *Surface) onEvent(ev any) {
	opening, ok := ev.(*page.EventJavascriptDialogOpening)
	if !ok {
		return
	}
	de := surface.DialogEvent{
		Kind:          dialogKind(opening.Type),
		Message:       opening.Message,
		DefaultPrompt: opening.DefaultPrompt,
		URL:           opening.URL,
	}
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(de)
		return
	}
	// Nothing is listening; a dialog left open would freeze the page.
	s.logger.Warn("Dismissing dialog with no subscriber.", zap.String("message", de.Message))
	s.resolving.Add(1)
	go func() {
		defer s.resolving.Done()
		if err := s.ResolveDialog(context.Background(), false, ""); err != nil {
			s.logger.Debug("Fallback dismissal failed.", zap.Error(err))
		}
	}()
}

func dialogKind(t page.DialogType) surface.DialogKind {
	switch t {
	case page.DialogTypeConfirm:
		return surface.DialogConfirm
	case page.DialogTypePrompt:
		return surface.DialogPrompt
	case page.DialogTypeBeforeunload:
		return surface.DialogBeforeUnload
	default:
		return surface.DialogAlert
	}
}

// run executes actions on the tab, bounded by ctx.
func (s *Surface) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// call evaluates the embedded function fn with JSON-encoded args.
func (s *Surface) call(ctx context.Context, fn string, res any, args ...any) error {
	encoded := make([]byte, 0, 64)
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encoding script argument: %w", err)
		}
		if i > 0 {
			encoded = append(encoded, ',')
		}
		encoded = append(encoded, b...)
	}
	return s.run(ctx, chromedp.Evaluate(fmt.Sprintf("(%s\n)(%s)", fn, encoded), res))
}

func (s *Surface) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *Surface) Reload(ctx context.Context) error {
	return s.run(ctx, chromedp.Reload(), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (s *Surface) GoBack(ctx context.Context) error {
	return s.run(ctx, chromedp.NavigateBack(), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (s *Surface) URL(ctx context.Context) (string, error) {
	var u string
	if err := s.run(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

// Evaluate runs a JavaScript expression. A nil res discards the result.
func (s *Surface) Evaluate(ctx context.Context, script string, res any) error {
	return s.run(ctx, chromedp.Evaluate(script, res))
}

func (s *Surface) Query(ctx context.Context, q surface.Query) ([]surface.Candidate, error) {
	var out []surface.Candidate
	if err := s.call(ctx, queryScript, &out, q); err != nil {
		return nil, fmt.Errorf("querying %+v: %w", q, err)
	}
	return out, nil
}

func (s *Surface) State(ctx context.Context, ref string) (surface.ElementState, error) {
	var st surface.ElementState
	if err := s.call(ctx, stateScript, &st, locator.RefSelector(ref)); err != nil {
		return surface.ElementState{}, err
	}
	return st, nil
}

// Click dispatches real mouse events at the center of the element.
func (s *Surface) Click(ctx context.Context, ref string) error {
	sel := locator.RefSelector(ref)
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var nodes []*cdp.Node
		if err := chromedp.Nodes(sel, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)).Do(ctx); err != nil {
			return err
		}
		if len(nodes) == 0 {
			return surface.ErrDetached
		}
		return chromedp.MouseClickNode(nodes[0]).Do(ctx)
	}))
}

func (s *Surface) Fill(ctx context.Context, ref, value string) error {
	var attached bool
	if err := s.call(ctx, setValueScript, &attached, locator.RefSelector(ref), value); err != nil {
		return err
	}
	if !attached {
		return surface.ErrDetached
	}
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
	action := page.HandleJavaScriptDialog(accept)
	if promptText != "" {
		action = action.WithPromptText(promptText)
	}
	if err := s.run(ctx, action); err != nil {
		return fmt.Errorf("resolving dialog: %w", err)
	}
	return nil
}

// Close closes the tab and disposes its browser context.
func (s *Surface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.handler = nil
	s.mu.Unlock()

	s.cancel()
	s.resolving.Wait()
	return nil
}
