// File: internal/scenario/runner.go
package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/shelfcheck/internal/apicheck"
	"github.com/xkilldash9x/shelfcheck/internal/browser/driver"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/browser/wait"
	"github.com/xkilldash9x/shelfcheck/internal/config"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
	"github.com/xkilldash9x/shelfcheck/internal/fixtures"
)

// SurfaceFactory opens one isolated browser surface per UI scenario.
type SurfaceFactory interface {
	NewSurface(ctx context.Context) (surface.Surface, error)
}

// Observer is told about every finished scenario. Implementations must be safe for
// concurrent use.
type Observer interface {
	ScenarioFinished(Result)
}

// StepResult records one executed step.
type StepResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Result is the outcome of one scenario.
type Result struct {
	ID       string
	Title    string
	Suite    Suite
	Passed   bool
	Started  time.Time
	Duration time.Duration
	Steps    []StepResult
	// Set when Passed is false.
	FailedStep string
	Kind       failures.Kind
	Err        error
	// LastURL is the page a failing UI scenario was on.
	LastURL string
}

// RunResult is the outcome of one Run.
type RunResult struct {
	ID       uuid.UUID
	Started  time.Time
	Duration time.Duration
	Results  []Result
}

// Passed reports whether every scenario passed.
func (r *RunResult) Passed() bool { return r.Failed() == 0 }

// Failed counts the failing scenarios.
func (r *RunResult) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed {
			n++
		}
	}
	return n
}

// Options configure a Runner.
type Options struct {
	// Surfaces is required when UI scenarios run.
	Surfaces SurfaceFactory
	// API is required when API scenarios run.
	API      *apicheck.Client
	Fixtures fixtures.Set
	Target   config.TargetConfig
	Timeouts wait.Timeouts
	Settle   time.Duration
	// TeardownTimeout bounds all teardown steps of one scenario.
	TeardownTimeout time.Duration
	Concurrency     int
	Observers       []Observer
	Logger          *zap.Logger
}

// Runner executes scenarios concurrently up to Options.Concurrency.
type Runner struct {
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewRunner(opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.TeardownTimeout <= 0 {
		opts.TeardownTimeout = 30 * time.Second
	}
	opts.Timeouts = opts.Timeouts.WithDefaults()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		opts:   opts,
		logger: opts.Logger.Named("runner"),
		locks:  make(map[string]chan struct{}),
	}
}

// Run executes scenarios and returns their results in input order. It only returns early
// when ctx ends, in which case the unfinished scenarios fail as cancelled.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) *RunResult {
	run := &RunResult{ID: uuid.New(), Started: time.Now(), Results: make([]Result, len(scenarios))}
	logger := r.logger.With(zap.String("run_id", run.ID.String()))
	logger.Info("Run starting", zap.Int("scenarios", len(scenarios)), zap.Int("concurrency", r.opts.Concurrency))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, sc := range scenarios {
		g.Go(func() error {
			res := r.runOne(ctx, sc, logger.With(zap.String("scenario", sc.ID)))
			run.Results[i] = res
			for _, o := range r.opts.Observers {
				o.ScenarioFinished(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	run.Duration = time.Since(run.Started)
	logger.Info("Run finished",
		zap.Int("passed", len(scenarios)-run.Failed()),
		zap.Int("failed", run.Failed()),
		zap.Duration("duration", run.Duration))
	return run
}

// lock acquires the mutex for key. The returned func releases it.
func (r *Runner) lock(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return func() {}, nil
	}
	r.mu.Lock()
	ch, ok := r.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		r.locks[key] = ch
	}
	r.mu.Unlock()
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for lock %q: %w", key, ctx.Err())
	}
}

func (r *Runner) runOne(ctx context.Context, sc Scenario, logger *zap.Logger) (res Result) {
	res = Result{ID: sc.ID, Title: sc.Title, Suite: sc.Suite, Started: time.Now()}
	defer func() { res.Duration = time.Since(res.Started) }()

	unlock, err := r.lock(ctx, sc.LockKey)
	if err != nil {
		return fail(res, "acquire lock", err)
	}
	defer unlock()

	env := &Env{
		API:      r.opts.API,
		Fixtures: r.opts.Fixtures,
		Target:   r.opts.Target,
		State:    make(State),
		Logger:   logger,
		settle:   r.opts.Settle,
	}
	switch sc.Suite {
	case SuiteUI:
		if r.opts.Surfaces == nil {
			return fail(res, "open surface", errors.New("no browser surface factory configured"))
		}
		s, err := r.opts.Surfaces.NewSurface(ctx)
		if err != nil {
			return fail(res, "open surface", err)
		}
		env.Driver = driver.New(s, r.opts.Target.BaseURL, r.opts.Timeouts, logger.Named("driver"))
		defer func() {
			env.Driver.Close()
			if err := s.Close(); err != nil {
				logger.Warn("Closing surface failed", zap.Error(err))
			}
		}()
	case SuiteAPI:
		if r.opts.API == nil {
			return fail(res, "api client", errors.New("no API client configured"))
		}
	}

	logger.Info("Scenario starting", zap.String("title", sc.Title))
	defer r.teardown(ctx, sc, env, logger)

	steps := make([]Step, 0, len(sc.Setup)+len(sc.Steps))
	for _, s := range sc.Setup {
		steps = append(steps, Step{Name: "setup: " + s.Name, Run: s.Run})
	}
	steps = append(steps, sc.Steps...)
	for _, step := range steps {
		start := time.Now()
		err := step.Run(ctx, env)
		if err == nil && env.Driver != nil {
			// A dialog raised by the step's last action has no later call to report it.
			err = env.Driver.Dialogs().TakeUnhandled()
		}
		res.Steps = append(res.Steps, StepResult{Name: step.Name, Duration: time.Since(start), Err: err})
		if err != nil {
			res = fail(res, step.Name, err)
			res.LastURL = lastURL(ctx, env)
			logger.Warn("Scenario failed",
				zap.String("step", step.Name),
				zap.String("kind", string(res.Kind)),
				zap.String("url", res.LastURL),
				zap.Error(err))
			return res
		}
	}
	res.Passed = true
	logger.Info("Scenario passed", zap.Duration("duration", time.Since(res.Started)))
	return res
}

func fail(res Result, step string, err error) Result {
	res.Passed = false
	res.FailedStep = step
	res.Kind = failures.KindOf(err)
	res.Err = fmt.Errorf("step %q: %w", step, err)
	return res
}

// lastURL reads the page URL for the failure report. It must work after ctx has ended.
func lastURL(ctx context.Context, env *Env) string {
	if env.Driver == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	u, err := env.Driver.CurrentURL(ctx)
	if err != nil {
		return ""
	}
	return u
}

// teardown runs every teardown step even after failures. Its errors are only logged.
func (r *Runner) teardown(ctx context.Context, sc Scenario, env *Env, logger *zap.Logger) {
	if len(sc.Teardown) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.TeardownTimeout)
	defer cancel()
	for _, step := range sc.Teardown {
		if err := step.Run(ctx, env); err != nil {
			logger.Warn("Teardown step failed", zap.String("step", step.Name), zap.Error(err))
		}
	}
}
