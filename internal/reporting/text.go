// internal/reporting/text.go
package reporting

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/xkilldash9x/shelfcheck/internal/scenario"
)

// TextReporter prints a console summary: one line per scenario, then the failure details.
// Colors are used only when the writer is a terminal.
type TextReporter struct {
	writer io.WriteCloser
	pass   lipgloss.Style
	fail   lipgloss.Style
	dim    lipgloss.Style

	mu sync.Mutex
}

// TextOption configures a TextReporter.
type TextOption func(*lipgloss.Renderer)

// WithColors forces ANSI colors even when the writer is not a terminal.
func WithColors() TextOption {
	return func(re *lipgloss.Renderer) { re.SetColorProfile(termenv.ANSI256) }
}

func NewTextReporter(writer io.WriteCloser, opts ...TextOption) *TextReporter {
	re := lipgloss.NewRenderer(writer)
	for _, opt := range opts {
		opt(re)
	}
	return &TextReporter{
		writer: writer,
		pass:   re.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		fail:   re.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		dim:    re.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func (r *TextReporter) Write(run *scenario.RunResult) error {
	if run == nil {
		return fmt.Errorf("nil run result")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// Columns are aligned on plain text; escape codes would count as width.
	var table bytes.Buffer
	tw := tabwriter.NewWriter(&table, 0, 4, 2, ' ', 0)
	durations := make([]string, len(run.Results))
	for i, res := range run.Results {
		durations[i] = res.Duration.Round(time.Millisecond).String()
		fmt.Fprintf(tw, "%s\t%s\t%s\n", res.ID, res.Title, durations[i])
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	rows := strings.Split(table.String(), "\n")
	for i, res := range run.Results {
		status := r.pass.Render("PASS")
		if !res.Passed {
			status = r.fail.Render("FAIL")
		}
		row := strings.TrimSuffix(rows[i], durations[i])
		if _, err := fmt.Fprintf(r.writer, "%s  %s%s\n", status, row, r.dim.Render(durations[i])); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	for _, res := range run.Results {
		if res.Passed {
			continue
		}
		fmt.Fprintf(r.writer, "\n%s %s: %s\n", r.fail.Render("✗"), res.ID, res.Title)
		fmt.Fprintf(r.writer, "  step: %s\n  kind: %s\n", res.FailedStep, res.Kind)
		if res.LastURL != "" {
			fmt.Fprintf(r.writer, "  url:  %s\n", res.LastURL)
		}
		if res.Err != nil {
			fmt.Fprintf(r.writer, "  %v\n", res.Err)
		}
	}

	passed := len(run.Results) - run.Failed()
	summary := fmt.Sprintf("%d scenarios, %d passed, %d failed in %s",
		len(run.Results), passed, run.Failed(), run.Duration.Round(time.Millisecond))
	style := r.pass
	if !run.Passed() {
		style = r.fail
	}
	_, err := fmt.Fprintf(r.writer, "\n%s (run %s)\n", style.Render(summary), run.ID)
	return err
}

func (r *TextReporter) Close() error {
	return r.writer.Close()
}
