// internal/browser/session/manager.go
package session

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/config"
)

const launchTimeout = 30 * time.Second

// Manager owns the browser process. Every surface it hands out lives in its own browser
// context, so cookies and localStorage are never shared between scenarios.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	// wg tracks open surfaces for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser and checks that it responds.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{logger: logger.Named("browser_manager"), cfg: cfg}
	if err := m.launch(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

func (m *Manager) launch(ctx context.Context) error {
	m.logger.Info("Launching browser.", zap.Bool("headless", m.cfg.Headless), zap.String("exec_path", m.cfg.ExecPath))

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	sugar := m.logger.Named("cdp").Sugar()
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf))

	// The first Run starts the process; it must use the browser context itself, since
	// cancelling the context of that first Run would kill the browser.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(m.browserCtx, chromedp.Navigate("about:blank")) }()
	timer := time.NewTimer(launchTimeout)
	defer timer.Stop()
	select {
	case err := <-started:
		if err != nil {
			m.browserCancel()
			m.allocCancel()
			return fmt.Errorf("browser failed to start or respond: %w", err)
		}
	case <-timer.C:
		m.browserCancel()
		m.allocCancel()
		return fmt.Errorf("browser did not respond within %s", launchTimeout)
	}
	m.logger.Info("Browser launched and responsive.")
	return nil
}

func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
	)
	if m.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ExecPath))
	}
	if m.cfg.WindowWidth > 0 && m.cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(m.cfg.WindowWidth, m.cfg.WindowHeight))
	}
	for _, arg := range m.cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	// Containers on Linux rarely allow the sandbox or a large /dev/shm.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	return opts
}

// NewSurface opens a tab in a fresh browser context.
func (m *Manager) NewSurface(ctx context.Context) (surface.Surface, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("browser manager is shut down")
	}
	m.wg.Add(1)
	m.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(m.browserCtx, chromedp.WithNewBrowserContext())
	released := sync.OnceFunc(m.wg.Done)
	closeTab := func() {
		cancel()
		released()
	}

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()
	select {
	case err := <-started:
		if err != nil {
			closeTab()
			return nil, fmt.Errorf("opening tab: %w", err)
		}
	case <-ctx.Done():
		closeTab()
		return nil, ctx.Err()
	}

	s := newSurface(tabCtx, closeTab, m.logger.Named("surface"))
	m.logger.Debug("Surface opened.")
	return s, nil
}

// Shutdown waits for open surfaces to close, bounded by ctx, then stops the browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded; terminating browser with surfaces open.", zap.Error(ctx.Err()))
	}

	m.browserCancel()
	m.allocCancel()
	<-m.allocCtx.Done()
	m.logger.Info("Browser stopped.")
	return nil
}
