// File: internal/scenario/scenario.go
// Package scenario runs ordered steps against the library application. Each scenario owns
// one browser surface (UI suite) or shares the API client (API suite), threads a State
// through its steps and stops at the first failing step.
package scenario

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/apicheck"
	"github.com/xkilldash9x/shelfcheck/internal/browser/driver"
	"github.com/xkilldash9x/shelfcheck/internal/browser/wait"
	"github.com/xkilldash9x/shelfcheck/internal/config"
	"github.com/xkilldash9x/shelfcheck/internal/fixtures"
)

// Suite groups scenarios by the surface they exercise.
type Suite string

const (
	SuiteUI  Suite = "ui"
	SuiteAPI Suite = "api"
	// SuiteAll selects every suite when filtering.
	SuiteAll Suite = "all"
)

// ParseSuite accepts ui, api, all or the empty string (all).
func ParseSuite(s string) (Suite, error) {
	switch Suite(s) {
	case SuiteUI, SuiteAPI:
		return Suite(s), nil
	case SuiteAll, "":
		return SuiteAll, nil
	}
	return "", fmt.Errorf("unknown suite %q (want ui, api or all)", s)
}

// State carries values between the steps of one scenario.
type State map[string]any

// Value returns the value stored under key as a T.
func Value[T any](s State, key string) (T, error) {
	var zero T
	raw, ok := s[key]
	if !ok {
		return zero, fmt.Errorf("state has no %q", key)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("state %q is %T, not %T", key, raw, zero)
	}
	return v, nil
}

// Env is what a step sees. Driver is nil for API scenarios.
type Env struct {
	Driver   *driver.Driver
	API      *apicheck.Client
	Fixtures fixtures.Set
	Target   config.TargetConfig
	State    State
	Logger   *zap.Logger

	settle time.Duration
}

// Settle pauses for the configured settle delay. Scenarios call it after a mutation that
// a different page reads back.
func (e *Env) Settle(ctx context.Context) error {
	return wait.Sleep(ctx, e.settle)
}

// Step is one named unit of a scenario.
type Step struct {
	Name string
	Run  func(ctx context.Context, env *Env) error
}

// Scenario is an ordered, binary pass/fail check.
type Scenario struct {
	ID    string
	Title string
	Suite Suite
	// LockKey serializes scenarios that touch the same persisted records.
	LockKey  string
	Setup    []Step
	Steps    []Step
	Teardown []Step
}

// TimeoutsFrom maps the configured budgets onto the engine's.
func TimeoutsFrom(c config.TimeoutsConfig) wait.Timeouts {
	return wait.Timeouts{
		Action:        c.Action,
		Navigation:    c.Navigation,
		Consistency:   c.Consistency,
		FavoritesList: c.FavoritesList,
		Interval:      c.PollInterval,
	}.WithDefaults()
}
