// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SHELFCHECK_TARGET_BASE_URL.
const EnvPrefix = "SHELFCHECK"

// Interface is the read-only view of the configuration handed to components.
type Interface interface {
	LoggerSettings() LoggerConfig
	TargetSettings() TargetConfig
	BrowserSettings() BrowserConfig
	TimeoutSettings() TimeoutsConfig
	APISettings() APIConfig
	ReportSettings() ReportConfig
	StoreSettings() StoreConfig
}

// Config holds the whole harness configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Target   TargetConfig   `mapstructure:"target" yaml:"target"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
}

var _ Interface = (*Config)(nil)

func (c *Config) LoggerSettings() LoggerConfig    { return c.Logger }
func (c *Config) TargetSettings() TargetConfig    { return c.Target }
func (c *Config) BrowserSettings() BrowserConfig  { return c.Browser }
func (c *Config) TimeoutSettings() TimeoutsConfig { return c.Timeouts }
func (c *Config) APISettings() APIConfig          { return c.API }
func (c *Config) ReportSettings() ReportConfig    { return c.Report }
func (c *Config) StoreSettings() StoreConfig      { return c.Store }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the terminal color of each log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// TargetConfig describes the deployed application under test.
type TargetConfig struct {
	// BaseURL serves the UI pages (login.html, livros.html ...).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// APIURL serves the REST surface. Defaults to BaseURL.
	APIURL        string `mapstructure:"api_url" yaml:"api_url"`
	AdminEmail    string `mapstructure:"admin_email" yaml:"admin_email"`
	AdminPassword string `mapstructure:"admin_password" yaml:"admin_password"`
	// The seeded user and book the favorites scenarios operate on.
	FavoritesUserID int `mapstructure:"favorites_user_id" yaml:"favorites_user_id"`
	FavoritesBookID int `mapstructure:"favorites_book_id" yaml:"favorites_book_id"`
	// FixturesFile optionally overrides the built-in fixtures.
	FixturesFile string `mapstructure:"fixtures_file" yaml:"fixtures_file"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Concurrency     int      `mapstructure:"concurrency" yaml:"concurrency"`
	WindowWidth     int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int      `mapstructure:"window_height" yaml:"window_height"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// TimeoutsConfig carries the call-site specific wait budgets.
type TimeoutsConfig struct {
	Action        time.Duration `mapstructure:"action" yaml:"action"`
	Navigation    time.Duration `mapstructure:"navigation" yaml:"navigation"`
	Consistency   time.Duration `mapstructure:"consistency" yaml:"consistency"`
	FavoritesList time.Duration `mapstructure:"favorites_list" yaml:"favorites_list"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// Settle is the pause after a mutation that another page reads back.
	Settle time.Duration `mapstructure:"settle" yaml:"settle"`
	// Teardown bounds each scenario's cleanup steps.
	Teardown time.Duration `mapstructure:"teardown" yaml:"teardown"`
}

// APIConfig tunes the REST contract verifier.
type APIConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// RateLimit is the maximum requests per second; zero disables pacing.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`
}

// ReportConfig selects the report sinks.
type ReportConfig struct {
	JUnitPath   string `mapstructure:"junit_path" yaml:"junit_path"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
}

// StoreConfig enables persisting run results to PostgreSQL.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "shelfcheck")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Target --
	v.SetDefault("target.base_url", "http://localhost:3000")
	v.SetDefault("target.api_url", "")
	v.SetDefault("target.admin_email", "admin@biblioteca.com")
	v.SetDefault("target.admin_password", "123456")
	v.SetDefault("target.favorites_user_id", 1)
	v.SetDefault("target.favorites_book_id", 2)
	v.SetDefault("target.fixtures_file", "")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.concurrency", 2)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 800)

	// -- Timeouts --
	v.SetDefault("timeouts.action", "10s")
	v.SetDefault("timeouts.navigation", "5s")
	v.SetDefault("timeouts.consistency", "8s")
	v.SetDefault("timeouts.favorites_list", "15s")
	v.SetDefault("timeouts.poll_interval", "100ms")
	v.SetDefault("timeouts.settle", "1s")
	v.SetDefault("timeouts.teardown", "30s")

	// -- API --
	v.SetDefault("api.request_timeout", "10s")
	v.SetDefault("api.rate_limit", 20.0)
	v.SetDefault("api.burst", 5)

	// -- Report --
	v.SetDefault("report.junit_path", "")
	v.SetDefault("report.metrics_path", "")

	// -- Store --
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.url", "")
}

// Prepare points v at the config file and the environment. An explicit cfgFile wins;
// otherwise ./shelfcheck.yaml and then ~/.shelfcheck/shelfcheck.yaml are searched. A missing
// file is not an error.
func Prepare(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)
	if cfgFile != "" {
		expanded, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("expanding config path %q: %w", cfgFile, err)
		}
		v.SetConfigFile(expanded)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".shelfcheck"))
		}
		v.SetConfigName("shelfcheck")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// NewConfigFromViper creates a validated configuration from a prepared viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Target.APIURL == "" {
		cfg.Target.APIURL = cfg.Target.BaseURL
	}
	if cfg.Target.FixturesFile != "" {
		p, err := homedir.Expand(cfg.Target.FixturesFile)
		if err != nil {
			return nil, fmt.Errorf("expanding fixtures path: %w", err)
		}
		cfg.Target.FixturesFile = p
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	var errs []error
	for key, raw := range map[string]string{"target.base_url": c.Target.BaseURL, "target.api_url": c.Target.APIURL} {
		if raw == "" {
			if key == "target.base_url" {
				errs = append(errs, fmt.Errorf("%s is required", key))
			}
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", key, raw))
		}
	}
	if c.Browser.Concurrency <= 0 {
		errs = append(errs, errors.New("browser.concurrency must be a positive integer"))
	}
	if c.Timeouts.PollInterval < 0 {
		errs = append(errs, errors.New("timeouts.poll_interval must not be negative"))
	}
	for key, d := range map[string]time.Duration{
		"timeouts.action":         c.Timeouts.Action,
		"timeouts.navigation":     c.Timeouts.Navigation,
		"timeouts.consistency":    c.Timeouts.Consistency,
		"timeouts.favorites_list": c.Timeouts.FavoritesList,
		"timeouts.settle":         c.Timeouts.Settle,
		"timeouts.teardown":       c.Timeouts.Teardown,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", key))
		}
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, errors.New("api.rate_limit must not be negative"))
	}
	if c.Store.Enabled && c.Store.URL == "" {
		errs = append(errs, errors.New("store.url is required when store.enabled is set"))
	}
	return errors.Join(errs...)
}
