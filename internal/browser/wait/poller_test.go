package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/shelfcheck/internal/browser/locator"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface/surfacetest"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
)

const fast = 5 * time.Millisecond

func newPoller(t *testing.T, s *surfacetest.Surface, opts ...Option) *Poller {
	t.Helper()
	return New(s, zaptest.NewLogger(t), append([]Option{WithInterval(fast)}, opts...)...)
}

func TestWaitForURL(t *testing.T) {
	s := surfacetest.New()
	p := newPoller(t, s)
	s.SetURL("http://localhost:3000/login.html")

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.SetURL("http://localhost:3000/dashboard.html")
	}()
	require.NoError(t, p.WaitFor(context.Background(), URLMatches("**/dashboard.html"), time.Second, 0))

	t.Run("timeout carries the last observed url", func(t *testing.T) {
		err := p.WaitFor(context.Background(), URLMatches("**/favoritos.html"), 30*time.Millisecond, 0)
		var wt *failures.WaitTimeoutError
		require.ErrorAs(t, err, &wt)
		assert.Equal(t, "http://localhost:3000/dashboard.html", wt.LastObserved)
		assert.Equal(t, 30*time.Millisecond, wt.Timeout)
	})

	t.Run("a bad pattern fails immediately", func(t *testing.T) {
		start := time.Now()
		err := p.WaitFor(context.Background(), URLMatches("**/{a"), time.Second, 0)
		require.Error(t, err)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}

func TestCountConditions(t *testing.T) {
	s := surfacetest.New()
	p := newPoller(t, s)
	cards := locator.ByCSS(".book-card")
	s.Add(&surfacetest.Element{Tag: "div", Matches: []string{".book-card"}})

	go func() {
		time.Sleep(15 * time.Millisecond)
		s.Add(&surfacetest.Element{Tag: "div", Matches: []string{".book-card"}})
	}()
	require.NoError(t, p.WaitFor(context.Background(), CountAbove(cards, 1), time.Second, 0))
	require.NoError(t, p.WaitFor(context.Background(), CountEquals(cards, 2), time.Second, 0))
	require.NoError(t, p.WaitFor(context.Background(), CountAtMost(cards, 5), time.Second, 0))

	err := p.WaitFor(context.Background(), CountEquals(cards, 3), 20*time.Millisecond, 0)
	var wt *failures.WaitTimeoutError
	require.ErrorAs(t, err, &wt)
	assert.Equal(t, "2", wt.LastObserved)
}

func TestVisibilityConditions(t *testing.T) {
	s := surfacetest.New()
	p := newPoller(t, s)
	card := locator.ByCSS(".book-card").WithText("Clean Code")

	require.NoError(t, p.WaitFor(context.Background(), Hidden(card), time.Second, 0), "zero matches is hidden")

	el := &surfacetest.Element{Tag: "div", Matches: []string{".book-card"}, Text: "Clean Code", Hidden: true}
	s.Add(el)
	require.NoError(t, p.WaitFor(context.Background(), Hidden(card), time.Second, 0))

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Do(func() { el.Hidden = false })
	}()
	require.NoError(t, p.WaitFor(context.Background(), Visible(card), time.Second, 0))
	require.NoError(t, p.WaitFor(context.Background(), TextContains(card, "Clean"), time.Second, 0))

	t.Run("ambiguity is not retried", func(t *testing.T) {
		s.Add(&surfacetest.Element{Tag: "div", Matches: []string{".book-card"}, Text: "Clean Code 2nd edition"})
		var amb *failures.AmbiguousMatchError
		assert.ErrorAs(t, p.WaitFor(context.Background(), Visible(card), time.Second, 0), &amb)
	})
}

func TestTextChangesFrom(t *testing.T) {
	s := surfacetest.New()
	p := newPoller(t, s)
	btn := &surfacetest.Element{Tag: "button", Role: "button", Name: "Adicionar aos Favoritos", Text: "Adicionar aos Favoritos"}
	s.Add(btn)
	toggle := locator.ByRole(locator.RoleButton, "Favoritos")

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Do(func() {
			btn.Name = "Remover dos Favoritos"
			btn.Text = "Remover dos Favoritos"
		})
	}()
	require.NoError(t, p.WaitFor(context.Background(), TextChangesFrom(toggle, "Adicionar aos Favoritos"), time.Second, 0))
}

func TestEvaluationErrorsAreNotYet(t *testing.T) {
	s := surfacetest.New()
	p := newPoller(t, s)
	calls := 0
	cond := Func{Name: "flaky", Fn: func(ctx context.Context, _ surface.Surface) (bool, string, error) {
		calls++
		if calls < 3 {
			return false, "", errors.New("execution context was destroyed")
		}
		return true, "ok", nil
	}}
	require.NoError(t, p.WaitFor(context.Background(), cond, time.Second, 0))
	assert.Equal(t, 3, calls)

	t.Run("timeout keeps the last error", func(t *testing.T) {
		boom := errors.New("navigating")
		err := p.WaitFor(context.Background(), Func{Name: "never", Fn: func(context.Context, surface.Surface) (bool, string, error) {
			return false, "", boom
		}}, 20*time.Millisecond, 0)
		var wt *failures.WaitTimeoutError
		require.ErrorAs(t, err, &wt)
		assert.ErrorIs(t, err, boom)
	})
}

func TestPreflightAbortsWait(t *testing.T) {
	s := surfacetest.New()
	unhandled := &failures.UnhandledDialogError{DialogKind: "alert", Message: "oops"}
	p := newPoller(t, s, WithPreflight(func() error { return unhandled }))

	err := p.WaitFor(context.Background(), URLMatches("**"), time.Second, 0)
	assert.Equal(t, failures.KindUnhandledDialog, failures.KindOf(err))
}

func TestParentCancellationIsNotATimeout(t *testing.T) {
	s := surfacetest.New()
	p := newPoller(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.WaitFor(ctx, URLMatches("**/never"), time.Second, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTimeoutsWithDefaults(t *testing.T) {
	got := Timeouts{Consistency: time.Second}.WithDefaults()
	assert.Equal(t, time.Second, got.Consistency)
	assert.Equal(t, NavigationTimeout, got.Navigation)
	assert.Equal(t, DefaultInterval, got.Interval)
}
