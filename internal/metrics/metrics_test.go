package metrics_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/shelfcheck/internal/failures"
	"github.com/xkilldash9x/shelfcheck/internal/metrics"
	"github.com/xkilldash9x/shelfcheck/internal/scenario"
)

func TestRecorder(t *testing.T) {
	r := metrics.NewRecorder()
	r.ScenarioFinished(scenario.Result{ID: "CT-FE-001", Suite: scenario.SuiteUI, Passed: true, Duration: 2 * time.Second})
	r.ScenarioFinished(scenario.Result{ID: "CT-FE-002", Suite: scenario.SuiteUI, Kind: failures.KindWaitTimeout,
		Err: errors.New("timeout"), Duration: time.Second})
	r.ScenarioFinished(scenario.Result{ID: "CT-BE-001", Suite: scenario.SuiteAPI, Passed: true, Duration: 30 * time.Millisecond})
	r.RunFinished(&scenario.RunResult{
		Started:  time.Unix(1_700_000_000, 0),
		Duration: 10 * time.Second,
		Results:  []scenario.Result{{Passed: true}, {Passed: false}, {Passed: true}},
	})

	expected := `
# HELP shelfcheck_scenario_finished_total Scenarios finished, by suite and result
# TYPE shelfcheck_scenario_finished_total counter
shelfcheck_scenario_finished_total{result="failed",suite="ui"} 1
shelfcheck_scenario_finished_total{result="passed",suite="api"} 1
shelfcheck_scenario_finished_total{result="passed",suite="ui"} 1
# HELP shelfcheck_scenario_failures_total Failed scenarios by failure kind
# TYPE shelfcheck_scenario_failures_total counter
shelfcheck_scenario_failures_total{kind="wait_timeout",suite="ui"} 1
# HELP shelfcheck_run_failed_scenarios Failed scenarios in the last run
# TYPE shelfcheck_run_failed_scenarios gauge
shelfcheck_run_failed_scenarios 1
# HELP shelfcheck_run_last_timestamp_seconds Unix time the last run finished
# TYPE shelfcheck_run_last_timestamp_seconds gauge
shelfcheck_run_last_timestamp_seconds 1.70000001e+09
`
	require.NoError(t, testutil.GatherAndCompare(r.Gatherer(), strings.NewReader(expected),
		"shelfcheck_scenario_finished_total",
		"shelfcheck_scenario_failures_total",
		"shelfcheck_run_failed_scenarios",
		"shelfcheck_run_last_timestamp_seconds",
	))

	n, err := testutil.GatherAndCount(r.Gatherer(), "shelfcheck_scenario_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one histogram per suite")
}

func TestWriteTextfile(t *testing.T) {
	r := metrics.NewRecorder()
	r.ScenarioFinished(scenario.Result{Suite: scenario.SuiteAPI, Passed: true})

	path := filepath.Join(t.TempDir(), "shelfcheck.prom")
	require.NoError(t, r.WriteTextfile(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `shelfcheck_scenario_finished_total{result="passed",suite="api"} 1`)

	err = r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.ErrorContains(t, err, "writing metrics")
}
