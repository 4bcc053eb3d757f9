// internal/reporting/junit.go
package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/observability"
	"github.com/xkilldash9x/shelfcheck/internal/scenario"
)

// ToolName names the report producer in every document.
const ToolName = "shelfcheck"

// JUnitReporter writes one run as JUnit XML, one <testsuite> per scenario suite. It is
// safe for concurrent use.
type JUnitReporter struct {
	writer      io.WriteCloser
	logger      *zap.Logger
	toolVersion string

	mu  sync.Mutex
	doc *etree.Document
	// runID is set once a run has been written.
	runID string
}

// NewJUnitReporter takes ownership of writer.
func NewJUnitReporter(writer io.WriteCloser, toolVersion string) *JUnitReporter {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	return &JUnitReporter{
		writer:      writer,
		logger:      observability.GetLogger().Named("junit_reporter"),
		toolVersion: toolVersion,
		doc:         doc,
	}
}

// Write renders run into the document. Close flushes it.
func (r *JUnitReporter) Write(run *scenario.RunResult) error {
	if run == nil {
		return fmt.Errorf("nil run result")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runID != "" {
		return fmt.Errorf("JUnit report already holds run %s", r.runID)
	}
	r.runID = run.ID.String()

	root := r.doc.CreateElement("testsuites")
	root.CreateAttr("name", ToolName)
	root.CreateAttr("tests", strconv.Itoa(len(run.Results)))
	root.CreateAttr("failures", strconv.Itoa(run.Failed()))
	root.CreateAttr("time", seconds(run.Duration))
	root.CreateAttr("timestamp", run.Started.UTC().Format(time.RFC3339))

	suites := map[scenario.Suite]*etree.Element{}
	for _, res := range run.Results {
		suite, ok := suites[res.Suite]
		if !ok {
			suite = newSuite(root, run, res.Suite, r.toolVersion)
			suites[res.Suite] = suite
		}
		addCase(suite, res)
	}
	for s, el := range suites {
		tests, failed := 0, 0
		var total time.Duration
		for _, res := range run.Results {
			if res.Suite != s {
				continue
			}
			tests++
			total += res.Duration
			if !res.Passed {
				failed++
			}
		}
		el.CreateAttr("tests", strconv.Itoa(tests))
		el.CreateAttr("failures", strconv.Itoa(failed))
		el.CreateAttr("time", seconds(total))
	}
	r.logger.Debug("Run added to JUnit report", zap.String("run_id", run.ID.String()), zap.Int("cases", len(run.Results)))
	return nil
}

func newSuite(root *etree.Element, run *scenario.RunResult, s scenario.Suite, version string) *etree.Element {
	el := root.CreateElement("testsuite")
	el.CreateAttr("name", ToolName+"."+string(s))
	el.CreateAttr("timestamp", run.Started.UTC().Format(time.RFC3339))
	props := el.CreateElement("properties")
	for _, kv := range [][2]string{{"run_id", run.ID.String()}, {"tool_version", version}} {
		p := props.CreateElement("property")
		p.CreateAttr("name", kv[0])
		p.CreateAttr("value", kv[1])
	}
	return el
}

func addCase(suite *etree.Element, res scenario.Result) {
	tc := suite.CreateElement("testcase")
	tc.CreateAttr("classname", ToolName+"."+string(res.Suite))
	tc.CreateAttr("name", caseName(res))
	tc.CreateAttr("time", seconds(res.Duration))

	if !res.Passed {
		f := tc.CreateElement("failure")
		f.CreateAttr("type", string(res.Kind))
		if res.Err != nil {
			f.CreateAttr("message", firstLine(res.Err.Error()))
		}
		f.CreateCData(failureDetail(res))
	}

	var out strings.Builder
	for _, st := range res.Steps {
		status := "ok"
		if st.Err != nil {
			status = "FAILED"
		}
		fmt.Fprintf(&out, "%-6s %s (%s)\n", status, st.Name, st.Duration.Round(time.Millisecond))
	}
	if out.Len() > 0 {
		tc.CreateElement("system-out").CreateCData(out.String())
	}
}

func caseName(res scenario.Result) string {
	if res.Title == "" {
		return res.ID
	}
	return res.ID + " " + res.Title
}

func failureDetail(res scenario.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "step: %s\nkind: %s\n", res.FailedStep, res.Kind)
	if res.LastURL != "" {
		fmt.Fprintf(&b, "url: %s\n", res.LastURL)
	}
	if res.Err != nil {
		fmt.Fprintf(&b, "\n%s\n", res.Err)
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// Close writes the document and closes the underlying writer.
func (r *JUnitReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc.Indent(2)
	_, writeErr := r.doc.WriteTo(r.writer)
	closeErr := r.writer.Close()
	if writeErr != nil {
		return fmt.Errorf("failed to write JUnit report: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close JUnit report: %w", closeErr)
	}
	return nil
}
