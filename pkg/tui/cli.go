// Package tui renders scan results for the terminal.
// Simple, streaming output: styled summaries, tables and a progress bar.
package tui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/schollz/progressbar/v3"

	"github.com/logflow/actionlog/internal/model"
	"github.com/logflow/actionlog/pkg/inspect"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	warning = lipgloss.Color("#FFB000")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(warning).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(white).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// Printer writes styled output to a writer.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Records prints the records of one source as a table followed by the count.
func (p *Printer) Records(source string, records []model.ActionRecord) {
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "  %s %s\n", accentStyle.Render("▸"), titleStyle.Render(source))

	if len(records) > 0 {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(mutedStyle).
			Headers("LINE", "TIMESTAMP", "GUID", "OPERATION", "FEATURE", "CATEGORY", "LAYERS").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		for _, r := range records {
			t.Row(
				strconv.FormatInt(r.Line, 10),
				r.Timestamp,
				r.GUID,
				r.Operation,
				r.FeatureName,
				r.TextCategory,
				r.LayersSource,
			)
		}
		fmt.Fprintln(p.out, t.Render())
	}

	fmt.Fprintf(p.out, "  %s\n", mutedStyle.Render(countLabel(len(records), "action record", "action records")))
}

// Total prints the combined record count of a multi-source scan.
func (p *Printer) Total(sources, records int, elapsed time.Duration) {
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "  %s %s %s\n",
		successStyle.Render("✓"),
		titleStyle.Render(countLabel(records, "action record", "action records")),
		mutedStyle.Render(fmt.Sprintf("from %s in %s", countLabel(sources, "source", "sources"), formatDuration(elapsed))))
}

// Analysis prints a crash analysis.
func (p *Printer) Analysis(report *model.Report, cr *inspect.CrashReport) {
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "  %s %s\n", accentStyle.Render("▸ ANALYSIS"), titleStyle.Render(report.Source))
	fmt.Fprintln(p.out, mutedStyle.Render("  ─────────────────────────────────────"))
	fmt.Fprintf(p.out, "  %s %s\n", mutedStyle.Render("Severity:"), severityStyle(cr.Severity).Render(string(cr.Severity)))
	fmt.Fprintf(p.out, "  %s %s\n", mutedStyle.Render("Lines:"), titleStyle.Render(formatNumber(int64(report.LinesRead))))
	fmt.Fprintf(p.out, "  %s %d opened, %d emitted, %d without id, %d superseded, %d unterminated\n",
		mutedStyle.Render("Blocks:"),
		report.Blocks.Opened, report.Blocks.Emitted, report.Blocks.MissingIdentifier,
		report.Blocks.Superseded, report.Blocks.Unterminated)
	fmt.Fprintf(p.out, "  %s %d frame changes, %d render sizes\n",
		mutedStyle.Render("Frames:"), cr.Frames.TotalFrameChanges, cr.Frames.TotalRenderSizes)
	fmt.Fprintln(p.out, mutedStyle.Render("  ─────────────────────────────────────"))

	if cr.HasCrash {
		fmt.Fprintln(p.out)
		fmt.Fprintf(p.out, "  %s %s\n", accentStyle.Render("✗ Crash:"), cr.PrimaryCause)
		for _, phase := range cr.Cascade {
			fmt.Fprintf(p.out, "    %s\n", titleStyle.Render(phase.Phase))
			for _, e := range phase.Events {
				fmt.Fprintf(p.out, "      %s\n", e)
			}
		}
	}
	if len(cr.Triggers) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, titleStyle.Render("  Triggers"))
		for _, tr := range cr.Triggers {
			fmt.Fprintf(p.out, "    • %s\n", tr)
		}
	}

	if len(cr.GUIDs) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintf(p.out, "  %s\n", titleStyle.Render(fmt.Sprintf("Found %s:", countLabel(len(cr.GUIDs), "GUID", "GUIDs"))))
		for _, g := range cr.GUIDs {
			fmt.Fprintf(p.out, "    Line %d: %s %s\n", g.FirstLine, g.GUID,
				mutedStyle.Render(fmt.Sprintf("(%dx, %s %s)", g.Count, g.Operation, g.Category)))
		}
	}

	if len(cr.Issues) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, titleStyle.Render("  Issues"))
		for _, is := range cr.Issues {
			fmt.Fprintf(p.out, "    %s %s line %d: %s\n",
				severityStyle(is.Severity).Render(string(is.Severity)), is.Category, is.Line, is.Description)
		}
	}

	if len(cr.Recommendations) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, titleStyle.Render("  Recommendations"))
		for _, rec := range cr.Recommendations {
			fmt.Fprintf(p.out, "    %s %s\n", priorityStyle(rec.Priority).Render(string(rec.Priority)), titleStyle.Render(rec.Title))
			fmt.Fprintf(p.out, "      %s\n", rec.Description)
			fmt.Fprintf(p.out, "      %s\n", mutedStyle.Render(rec.Code))
		}
	}
	fmt.Fprintln(p.out)
}

// ExportResult summarizes a finished export.
type ExportResult struct {
	Output     string
	Format     string
	RunID      string
	Records    int64
	BytesRead  int64
	InputSize  int64
	OutputSize int64
	Duration   time.Duration
}

// Export prints results after an export.
func (p *Printer) Export(res *ExportResult) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, successStyle.Render("  ✓ EXPORT COMPLETE"))
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "  %s %s\n", mutedStyle.Render("Records:"), titleStyle.Render(formatNumber(res.Records)))
	fmt.Fprintf(p.out, "  %s %s %s\n", mutedStyle.Render("Output:"), res.Output, mutedStyle.Render("("+res.Format+")"))
	if res.RunID != "" {
		fmt.Fprintf(p.out, "  %s %s\n", mutedStyle.Render("Run:"), res.RunID)
	}
	if res.InputSize > 0 && res.OutputSize > 0 {
		fmt.Fprintf(p.out, "  %s %s → %s\n", mutedStyle.Render("Size:"), formatBytes(res.InputSize), formatBytes(res.OutputSize))
	}
	if res.Duration > 0 {
		bps := float64(res.BytesRead) / res.Duration.Seconds()
		fmt.Fprintf(p.out, "  %s %s %s\n",
			mutedStyle.Render("Time:"),
			titleStyle.Render(formatDuration(res.Duration)),
			mutedStyle.Render(fmt.Sprintf("(%s/sec)", formatBytes(int64(bps)))))
	}
	fmt.Fprintln(p.out)
}

// WatchUpdate prints the totals after a rescan in watch mode.
func (p *Printer) WatchUpdate(report *model.Report, previous int, at time.Time) {
	delta := len(report.Actions) - previous
	sign := mutedStyle
	if delta > 0 {
		sign = successStyle
	}
	fmt.Fprintf(p.out, "  %s %s %s %s\n",
		mutedStyle.Render(at.Format("15:04:05")),
		titleStyle.Render(countLabel(len(report.Actions), "action record", "action records")),
		sign.Render(fmt.Sprintf("(%+d)", delta)),
		mutedStyle.Render(fmt.Sprintf("%s lines", formatNumber(int64(report.LinesRead)))))
}

// Warn prints a warning line.
func (p *Printer) Warn(msg string) {
	fmt.Fprintf(p.out, "  %s %s\n", warningStyle.Render("!"), msg)
}

func severityStyle(s inspect.Severity) lipgloss.Style {
	switch s {
	case inspect.SeverityCritical:
		return accentStyle
	case inspect.SeverityWarning:
		return warningStyle
	default:
		return successStyle
	}
}

func priorityStyle(p inspect.Priority) lipgloss.Style {
	if p == inspect.PriorityHigh {
		return severityStyle(inspect.SeverityCritical)
	}
	return severityStyle(inspect.SeverityWarning)
}

func countLabel(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return fmt.Sprintf("%d %s", n, plural)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// ShowProgress creates a progress bar on stderr.
func ShowProgress(total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
