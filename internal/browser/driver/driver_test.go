package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/shelfcheck/internal/browser/dialog"
	"github.com/xkilldash9x/shelfcheck/internal/browser/locator"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface/surfacetest"
	"github.com/xkilldash9x/shelfcheck/internal/browser/wait"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newDriver(t *testing.T) (*Driver, *surfacetest.Surface) {
	t.Helper()
	s := surfacetest.New()
	d := New(s, "http://localhost:3000/", wait.Timeouts{
		Action:     500 * time.Millisecond,
		Navigation: 500 * time.Millisecond,
		Interval:   5 * time.Millisecond,
	}, zaptest.NewLogger(t))
	t.Cleanup(d.Close)
	return d, s
}

var entrar = locator.ByRole(locator.RoleButton, "Entrar")

func TestURL(t *testing.T) {
	d, _ := newDriver(t)
	assert.Equal(t, "http://localhost:3000/login.html", d.URL("/login.html"))
	assert.Equal(t, "http://localhost:3000/livros.html", d.URL("livros.html"))
	assert.Equal(t, "https://elsewhere/x", d.URL("https://elsewhere/x"))
}

func TestExpectDialogArmsBeforeActing(t *testing.T) {
	d, s := newDriver(t)
	s.Add(&surfacetest.Element{Tag: "button", Role: "button", Name: "Entrar", OnClick: func(s *surfacetest.Surface) {
		res, err := s.RaiseDialog(surface.DialogEvent{Kind: surface.DialogAlert, Message: "Login realizado com sucesso!"})
		if err == nil && res.Accept {
			s.SetURL("http://localhost:3000/dashboard.html")
		}
	}})

	ev, err := d.ExpectDialog(context.Background(), dialog.ExpectMessage("Login realizado com sucesso!"), func(ctx context.Context) error {
		return d.Click(ctx, entrar)
	})
	require.NoError(t, err)
	assert.Equal(t, "Login realizado com sucesso!", ev.Message)
	require.NoError(t, d.WaitForURL(context.Background(), "**/dashboard.html"))
}

func TestExpectDialogReportsWrongMessage(t *testing.T) {
	d, s := newDriver(t)
	s.Add(&surfacetest.Element{Tag: "button", Role: "button", Name: "Entrar", OnClick: func(s *surfacetest.Surface) {
		_, _ = s.RaiseDialog(surface.DialogEvent{Kind: surface.DialogAlert, Message: "Email ou senha incorretos"})
	}})

	_, err := d.ExpectDialog(context.Background(), dialog.ExpectMessage("Login realizado com sucesso!"), func(ctx context.Context) error {
		return d.Click(ctx, entrar)
	})
	assert.Equal(t, failures.KindAssertion, failures.KindOf(err))
}

func TestExpectDialogTimesOutWhenNothingArrives(t *testing.T) {
	d, s := newDriver(t)
	s.Add(&surfacetest.Element{Tag: "button", Role: "button", Name: "Entrar"})

	_, err := d.ExpectDialog(context.Background(), nil, func(ctx context.Context) error {
		return d.Click(ctx, entrar)
	})
	assert.Equal(t, failures.KindWaitTimeout, failures.KindOf(err))

	// The slot was released.
	_, err = d.Dialogs().Arm(dialog.OneShot, nil)
	assert.NoError(t, err)
}

func TestExpectOptionalDialog(t *testing.T) {
	d, s := newDriver(t)
	quiet := s.Add(&surfacetest.Element{Tag: "button", Role: "button", Name: "Quiet"})
	s.Add(&surfacetest.Element{Tag: "button", Role: "button", Name: "Loud", OnClick: func(s *surfacetest.Surface) {
		_, _ = s.RaiseDialog(surface.DialogEvent{Kind: surface.DialogAlert, Message: "ok"})
	}})

	fired, err := d.ExpectOptionalDialog(context.Background(), nil, 20*time.Millisecond, func(ctx context.Context) error {
		return d.Click(ctx, locator.ByRole(locator.RoleButton, "Quiet"))
	})
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, 1, s.Clicks(quiet))

	fired, err = d.ExpectOptionalDialog(context.Background(), nil, 200*time.Millisecond, func(ctx context.Context) error {
		return d.Click(ctx, locator.ByRole(locator.RoleButton, "Loud"))
	})
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestUnhandledDialogSurfacesOnNextCall(t *testing.T) {
	d, s := newDriver(t)
	s.Add(&surfacetest.Element{Tag: "button", Role: "button", Name: "Entrar", OnClick: func(s *surfacetest.Surface) {
		_, _ = s.RaiseDialog(surface.DialogEvent{Kind: surface.DialogAlert, Message: "surprise"})
	}})

	require.NoError(t, d.Click(context.Background(), entrar), "the click itself completes")

	err := d.Click(context.Background(), entrar)
	var ud *failures.UnhandledDialogError
	require.ErrorAs(t, err, &ud)
	assert.Equal(t, "surprise", ud.Message)

	t.Run("the poller surfaces it too", func(t *testing.T) {
		_ = d.Click(context.Background(), entrar)
		err := d.WaitForURL(context.Background(), "**")
		assert.Equal(t, failures.KindUnhandledDialog, failures.KindOf(err))
	})
}

func TestLocalStorage(t *testing.T) {
	d, s := newDriver(t)
	s.SetStorage("token", "abc")

	v, ok, err := d.LocalStorage(context.Background(), "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	require.NoError(t, d.ClearStorage(context.Background()))
	_, ok, err = d.LocalStorage(context.Background(), "token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGotoRunsRoute(t *testing.T) {
	d, s := newDriver(t)
	s.Route("/login.html", func(s *surfacetest.Surface) {
		s.Add(&surfacetest.Element{Tag: "h2", Role: "heading", Name: "Login"})
	})
	require.NoError(t, d.Goto(context.Background(), "/login.html"))
	u, err := d.CurrentURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/login.html", u)
	require.NoError(t, d.ExpectVisible(context.Background(), locator.ByRole(locator.RoleHeading, "Login")))
}
