// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/config"
	"github.com/xkilldash9x/shelfcheck/internal/observability"
)

// ErrScenariosFailed is returned by run when at least one scenario failed.
var ErrScenariosFailed = errors.New("scenarios failed")

// app carries what the subcommands share: the viper instance, the loaded config and the
// collaborators tests replace.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	deps    dependencies
}

// flagKeys maps persistent and command flags onto config keys.
var flagKeys = map[string]string{
	"log-level":   "logger.level",
	"base-url":    "target.base_url",
	"api-url":     "target.api_url",
	"concurrency": "browser.concurrency",
	"headless":    "browser.headless",
	"junit":       "report.junit_path",
	"metrics":     "report.metrics_path",
}

// NewRootCommand builds a fresh command tree. Each call has its own viper instance, so
// flags from one execution never leak into the next.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultDependencies())
}

func newRootCommand(deps dependencies) *cobra.Command {
	a := &app{v: viper.New(), deps: deps}
	root := &cobra.Command{
		Use:   "shelfcheck",
		Short: "shelfcheck runs acceptance scenarios against the library web app and its REST API.",
		// Version is set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./shelfcheck.yaml, then ~/.shelfcheck/shelfcheck.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("base-url", "", "URL serving the web pages (overrides config/env)")
	root.PersistentFlags().String("api-url", "", "URL serving the REST API; defaults to the base URL")
	root.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	root.AddCommand(newRunCmd(a), newListCmd(a), newHistoryCmd(a), newVersionCmd())
	return root
}

// initialize loads the configuration with flag overrides and sets up logging.
func (a *app) initialize(cmd *cobra.Command) error {
	if err := config.Prepare(a.v, a.cfgFile); err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := a.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
	}
	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		// A logger is needed to report the failure.
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "shelfcheck"})
		return err
	}
	a.cfg = cfg
	observability.InitializeLogger(cfg.Logger)
	observability.GetLogger().Debug("Configuration loaded", zap.String("version", Version), zap.String("config", a.v.ConfigFileUsed()))
	return nil
}

// Execute runs the command tree with the signal-aware ctx.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, ErrScenariosFailed) {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
	}
	observability.Sync()
	return err
}
