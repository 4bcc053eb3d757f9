// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/config"
	"github.com/xkilldash9x/shelfcheck/internal/fixtures"
	"github.com/xkilldash9x/shelfcheck/internal/metrics"
	"github.com/xkilldash9x/shelfcheck/internal/observability"
	"github.com/xkilldash9x/shelfcheck/internal/reporting"
	"github.com/xkilldash9x/shelfcheck/internal/scenario"
)

const persistTimeout = 30 * time.Second

// newRunCmd creates and configures the `run` command.
func newRunCmd(a *app) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the acceptance scenarios and exits non-zero when any fails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			suiteFlag, _ := cmd.Flags().GetString("suite")
			only, _ := cmd.Flags().GetString("only")
			return a.runScenarios(cmd, suiteFlag, only)
		},
	}

	runCmd.Flags().StringP("suite", "s", "all", "Suite to run: ui, api or all")
	runCmd.Flags().String("only", "", "Run only scenarios whose id matches this glob, e.g. 'CT-FE-01?'")
	runCmd.Flags().String("junit", "", "Write a JUnit XML report to this path (overrides config/env)")
	runCmd.Flags().String("metrics", "", "Write Prometheus metrics to this textfile (overrides config/env)")
	runCmd.Flags().IntP("concurrency", "j", 0, "Scenarios run in parallel (overrides config/env)")
	runCmd.Flags().Bool("headless", true, "Run the browser headless (overrides config/env)")
	return runCmd
}

func (a *app) runScenarios(cmd *cobra.Command, suiteFlag, only string) error {
	ctx := cmd.Context()
	cfg := a.cfg
	logger := observability.GetLogger()

	suite, err := scenario.ParseSuite(suiteFlag)
	if err != nil {
		return err
	}
	selected, err := scenario.DefaultCatalog().Filter(suite, only)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no scenarios match suite %q and pattern %q", suite, only)
	}

	fx, err := loadFixtures(cfg.Target)
	if err != nil {
		return err
	}

	needUI, needAPI := false, false
	for _, sc := range selected {
		needUI = needUI || sc.Suite == scenario.SuiteUI
		needAPI = needAPI || sc.Suite == scenario.SuiteAPI
	}
	components, err := initializeRunComponents(ctx, a.deps, cfg, needUI, needAPI, logger)
	if err != nil {
		components.Shutdown(ctx)
		return fmt.Errorf("failed to initialize run components: %w", err)
	}
	defer components.Shutdown(ctx)

	recorder := metrics.NewRecorder()
	runner := scenario.NewRunner(scenario.Options{
		Surfaces:        surfaceFactory(components),
		API:             components.API,
		Fixtures:        fx,
		Target:          cfg.Target,
		Timeouts:        scenario.TimeoutsFrom(cfg.Timeouts),
		Settle:          cfg.Timeouts.Settle,
		TeardownTimeout: cfg.Timeouts.Teardown,
		Concurrency:     cfg.Browser.Concurrency,
		Observers:       []scenario.Observer{recorder},
		Logger:          logger,
	})

	run := runner.Run(ctx, selected)
	recorder.RunFinished(run)

	summary := reporting.NewTextReporter(reporting.NopCloser(cmd.OutOrStdout()))
	if err := summary.Write(run); err != nil {
		logger.Warn("Failed to print summary", zap.Error(err))
	}

	var errs []error
	if path := cfg.Report.JUnitPath; path != "" {
		errs = append(errs, writeJUnit(path, run))
	}
	if path := cfg.Report.MetricsPath; path != "" {
		errs = append(errs, recorder.WriteTextfile(path))
	}
	if components.Store != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		errs = append(errs, components.Store.PersistRun(pctx, run, Version))
		cancel()
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if !run.Passed() {
		return fmt.Errorf("%w: %d of %d", ErrScenariosFailed, run.Failed(), len(run.Results))
	}
	return nil
}

// surfaceFactory avoids handing the runner a typed nil when no browser was started.
func surfaceFactory(c *runComponents) scenario.SurfaceFactory {
	if c.Browser == nil {
		return nil
	}
	return c.Browser
}

func writeJUnit(path string, run *scenario.RunResult) error {
	r, err := reporting.New("junit", path, Version)
	if err != nil {
		return err
	}
	if err := r.Write(run); err != nil {
		_ = r.Close()
		return err
	}
	return r.Close()
}

// loadFixtures reads the fixture file and applies the configured admin credentials.
func loadFixtures(target config.TargetConfig) (fixtures.Set, error) {
	fx, err := fixtures.Load(target.FixturesFile)
	if err != nil {
		return fixtures.Set{}, err
	}
	if target.AdminEmail != "" {
		fx.Admin.Email = target.AdminEmail
	}
	if target.AdminPassword != "" {
		fx.Admin.Password = target.AdminPassword
	}
	return fx, nil
}
