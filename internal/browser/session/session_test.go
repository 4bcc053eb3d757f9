// internal/browser/session/session_test.go
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/shelfcheck/internal/browser/dialog"
	"github.com/xkilldash9x/shelfcheck/internal/browser/driver"
	"github.com/xkilldash9x/shelfcheck/internal/browser/locator"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/browser/wait"
	"github.com/xkilldash9x/shelfcheck/internal/config"
)

func TestDialogKind(t *testing.T) {
	assert.Equal(t, surface.DialogAlert, dialogKind(page.DialogTypeAlert))
	assert.Equal(t, surface.DialogConfirm, dialogKind(page.DialogTypeConfirm))
	assert.Equal(t, surface.DialogPrompt, dialogKind(page.DialogTypePrompt))
	assert.Equal(t, surface.DialogBeforeUnload, dialogKind(page.DialogTypeBeforeunload))
}

func TestEmbeddedScripts(t *testing.T) {
	for name, src := range map[string]string{"query": queryScript, "state": stateScript, "set_value": setValueScript} {
		assert.Contains(t, src, "(function", name)
	}
	assert.Contains(t, queryScript, locator.RefAttribute)
}

func TestBuildAllocatorOptions(t *testing.T) {
	m := &Manager{cfg: config.BrowserConfig{
		Headless:    true,
		ExecPath:    "/opt/chrome/chrome",
		WindowWidth: 1280, WindowHeight: 800,
		Args: []string{"--lang=pt-BR", "mute-audio"},
	}}
	opts := m.buildAllocatorOptions()
	assert.Greater(t, len(opts), len(chromedp.DefaultExecAllocatorOptions))
}

// chromePath finds a local Chrome for the browser-backed tests.
func chromePath(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if p := os.Getenv("SHELFCHECK_BROWSER_EXEC_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome or Chromium found on PATH")
	return ""
}

const loginPage = `<!doctype html>
<html><body>
<h2>Login</h2>
<form id="f">
  <label for="email">Email:</label><input id="email" type="email">
  <label for="senha">Senha:</label><input id="senha" type="password">
  <button type="submit">Entrar</button>
  <button type="button" style="display:none">Entrar</button>
</form>
<script>
document.getElementById('f').addEventListener('submit', (e) => {
  e.preventDefault();
  if (document.getElementById('senha').value === '123456') {
    alert('Login realizado com sucesso!');
    localStorage.setItem('token', 'abc');
    window.location.href = '/dashboard.html';
  } else {
    alert('Email ou senha incorretos');
  }
});
</script>
</body></html>`

func newBrowserDriver(t *testing.T) *driver.Driver {
	t.Helper()
	exe := chromePath(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/login.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("/dashboard.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body><h1>Dashboard</h1></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	m, err := NewManager(ctx, config.BrowserConfig{Headless: true, ExecPath: exe, WindowWidth: 1024, WindowHeight: 768}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	s, err := m.NewSurface(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	d := driver.New(s, srv.URL, wait.Timeouts{Action: 5 * time.Second, Navigation: 5 * time.Second}, logger)
	t.Cleanup(d.Close)
	return d
}

func TestSurfaceAgainstChrome(t *testing.T) {
	d := newBrowserDriver(t)
	ctx := context.Background()

	require.NoError(t, d.Goto(ctx, "/login.html"))
	require.NoError(t, d.ExpectVisible(ctx, locator.ByRole(locator.RoleHeading, "Login")))

	email := locator.ByRole(locator.RoleTextbox, "Email:")
	senha := locator.ByRole(locator.RoleTextbox, "Senha:").Exact()
	entrar := locator.ByRole(locator.RoleButton, "Entrar")

	t.Run("hidden duplicates do not make role queries ambiguous", func(t *testing.T) {
		n, err := d.Count(ctx, locator.ByCSS("button"))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		vis, err := d.IsVisible(ctx, entrar)
		require.NoError(t, err)
		assert.True(t, vis)
	})

	t.Run("invalid login keeps the field values", func(t *testing.T) {
		require.NoError(t, d.Fill(ctx, email, "admin@biblioteca.com"))
		require.NoError(t, d.Fill(ctx, senha, "errada"))
		ev, err := d.ExpectDialog(ctx, dialog.ExpectMessage("Email ou senha incorretos"), func(ctx context.Context) error {
			return d.Click(ctx, entrar)
		})
		require.NoError(t, err)
		assert.Equal(t, surface.DialogAlert, ev.Kind)

		got, err := d.ReadValue(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, "admin@biblioteca.com", got)
	})

	t.Run("valid login redirects and stores the token", func(t *testing.T) {
		require.NoError(t, d.Fill(ctx, senha, 123456))
		_, err := d.ExpectDialog(ctx, dialog.ExpectMessage("Login realizado com sucesso!"), func(ctx context.Context) error {
			return d.Click(ctx, entrar)
		})
		require.NoError(t, err)
		require.NoError(t, d.WaitForURL(ctx, "**/dashboard.html"))

		token, ok, err := d.LocalStorage(ctx, "token")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abc", token)
	})
}
