// internal/reporting/reporter_test.go
package reporting_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/shelfcheck/internal/failures"
	"github.com/xkilldash9x/shelfcheck/internal/reporting"
	"github.com/xkilldash9x/shelfcheck/internal/scenario"
)

const testToolVersion = "v1.0.0-test"

// bufferCloser records Close calls on a buffer.
type bufferCloser struct {
	bytes.Buffer
	closed bool
	err    error
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return b.err
}

func sampleRun() *scenario.RunResult {
	started := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	return &scenario.RunResult{
		ID:       uuid.MustParse("5b1f2c1e-8a0e-4a0b-9c55-6c1c0f0e2a11"),
		Started:  started,
		Duration: 3 * time.Second,
		Results: []scenario.Result{
			{
				ID: "CT-FE-003", Title: "Successful login", Suite: scenario.SuiteUI, Passed: true,
				Duration: 1200 * time.Millisecond,
				Steps:    []scenario.StepResult{{Name: "log in as admin", Duration: time.Second}},
			},
			{
				ID: "CT-FE-008", Title: "Add a book to favorites", Suite: scenario.SuiteUI,
				Duration:   1500 * time.Millisecond,
				FailedStep: "book is listed",
				Kind:       failures.KindWaitTimeout,
				Err:        fmt.Errorf("step %q: %w", "book is listed", errors.New("favorites never listed Harry Potter")),
				LastURL:    "http://localhost:3000/favoritos.html",
				Steps: []scenario.StepResult{
					{Name: "log in as admin", Duration: time.Second},
					{Name: "book is listed", Duration: 500 * time.Millisecond, Err: errors.New("timeout")},
				},
			},
			{
				ID: "CT-BE-013", Title: "Statistics", Suite: scenario.SuiteAPI, Passed: true,
				Duration: 40 * time.Millisecond,
			},
		},
	}
}

// TestNew_Success_Stdout tests creating reporters writing to stdout.
func TestNew_Success_Stdout(t *testing.T) {
	for _, format := range []string{"junit", "text"} {
		r, err := reporting.New(format, "stdout", testToolVersion)
		require.NoError(t, err)
		assert.NotNil(t, r)

		r, err = reporting.New(format, "", testToolVersion)
		require.NoError(t, err)
		assert.NotNil(t, r)
	}
}

// TestNew_Success_File tests creating a JUnit reporter writing to a file.
func TestNew_Success_File(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "report.xml")

	r, err := reporting.New("junit", tmpFile, testToolVersion)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleRun()))
	require.NoError(t, r.Close())

	raw, err := os.ReadFile(tmpFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<testsuites")
}

// TestNew_Failure_UnsupportedFormat checks that no file is created for unknown formats.
func TestNew_Failure_UnsupportedFormat(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "output.sarif")
	r, err := reporting.New("sarif", tmpFile, testToolVersion)
	assert.Nil(t, r)
	assert.ErrorContains(t, err, "unsupported output format: sarif")

	_, err = os.Stat(tmpFile)
	assert.True(t, os.IsNotExist(err))
}

// TestNew_Failure_FileCreation tests errors during output file creation.
func TestNew_Failure_FileCreation(t *testing.T) {
	// A directory cannot be created as a file.
	r, err := reporting.New("junit", t.TempDir(), testToolVersion)
	assert.Nil(t, r)
	assert.ErrorContains(t, err, "failed to create output file")
}

func TestJUnitReporter(t *testing.T) {
	out := &bufferCloser{}
	r := reporting.NewJUnitReporter(out, testToolVersion)
	require.NoError(t, r.Write(sampleRun()))
	require.NoError(t, r.Close())
	assert.True(t, out.closed)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out.Bytes()))

	root := doc.SelectElement("testsuites")
	require.NotNil(t, root)
	assert.Equal(t, "3", root.SelectAttrValue("tests", ""))
	assert.Equal(t, "1", root.SelectAttrValue("failures", ""))
	assert.Equal(t, "3.000", root.SelectAttrValue("time", ""))
	assert.Equal(t, "2026-10-14T12:00:00Z", root.SelectAttrValue("timestamp", ""))

	suites := root.SelectElements("testsuite")
	require.Len(t, suites, 2)
	ui := suites[0]
	assert.Equal(t, "shelfcheck.ui", ui.SelectAttrValue("name", ""))
	assert.Equal(t, "2", ui.SelectAttrValue("tests", ""))
	assert.Equal(t, "1", ui.SelectAttrValue("failures", ""))
	assert.Equal(t, "2.700", ui.SelectAttrValue("time", ""))
	assert.Equal(t, "shelfcheck.api", suites[1].SelectAttrValue("name", ""))

	runID := ui.FindElement("properties/property[@name='run_id']")
	require.NotNil(t, runID)
	assert.Equal(t, "5b1f2c1e-8a0e-4a0b-9c55-6c1c0f0e2a11", runID.SelectAttrValue("value", ""))

	cases := ui.SelectElements("testcase")
	require.Len(t, cases, 2)
	assert.Equal(t, "CT-FE-003 Successful login", cases[0].SelectAttrValue("name", ""))
	assert.Nil(t, cases[0].SelectElement("failure"))

	failure := cases[1].SelectElement("failure")
	require.NotNil(t, failure)
	assert.Equal(t, string(failures.KindWaitTimeout), failure.SelectAttrValue("type", ""))
	assert.Contains(t, failure.SelectAttrValue("message", ""), "favorites never listed")
	assert.Contains(t, failure.Text(), "step: book is listed")
	assert.Contains(t, failure.Text(), "url: http://localhost:3000/favoritos.html")
	assert.Contains(t, cases[1].SelectElement("system-out").Text(), "FAILED book is listed")
}

func TestJUnitReporterHoldsOneRun(t *testing.T) {
	r := reporting.NewJUnitReporter(&bufferCloser{}, testToolVersion)
	require.NoError(t, r.Write(sampleRun()))
	assert.ErrorContains(t, r.Write(sampleRun()), "already holds run")
	assert.Error(t, r.Write(nil))
}

func TestJUnitReporterCloseError(t *testing.T) {
	out := &bufferCloser{err: errors.New("disk full")}
	r := reporting.NewJUnitReporter(out, testToolVersion)
	require.NoError(t, r.Write(sampleRun()))
	assert.ErrorContains(t, r.Close(), "disk full")
}

func TestTextReporter(t *testing.T) {
	out := &bufferCloser{}
	r := reporting.NewTextReporter(out)
	require.NoError(t, r.Write(sampleRun()))
	require.NoError(t, r.Close())
	assert.True(t, out.closed)

	text := out.String()
	lines := strings.Split(text, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "PASS"), lines[0])
	assert.Contains(t, lines[0], "CT-FE-003")
	assert.True(t, strings.HasPrefix(lines[1], "FAIL"), lines[1])
	assert.Contains(t, text, "step: book is listed")
	assert.Contains(t, text, "kind: wait_timeout")
	assert.Contains(t, text, "url:  http://localhost:3000/favoritos.html")
	assert.Contains(t, text, "3 scenarios, 2 passed, 1 failed in 3s")
	assert.Contains(t, text, "5b1f2c1e-8a0e-4a0b-9c55-6c1c0f0e2a11")
}

var ansi = regexp.MustCompile("\x1b\\[[0-9;]*m")

func TestTextReporterAlignsColoredColumns(t *testing.T) {
	out := &bufferCloser{}
	r := reporting.NewTextReporter(out, reporting.WithColors())
	require.NoError(t, r.Write(sampleRun()))

	lines := strings.Split(out.String(), "\n")[:3]
	assert.Contains(t, lines[0], "\x1b[", "colors are forced")

	titles := []string{"Successful login", "Add a book to favorites", "Statistics"}
	var cols []int
	for i, line := range lines {
		plain := ansi.ReplaceAllString(line, "")
		cols = append(cols, strings.Index(plain, titles[i]))
	}
	assert.Equal(t, cols[0], cols[1], lines)
	assert.Equal(t, cols[0], cols[2], lines)
}
