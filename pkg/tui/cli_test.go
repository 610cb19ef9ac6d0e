package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/logflow/actionlog/internal/model"
	"github.com/logflow/actionlog/pkg/inspect"
)

func TestPrinter_Records(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Records("session.log", []model.ActionRecord{
		{Line: 1, Timestamp: "T1", GUID: "ABC-123", Operation: "update", FeatureName: "bold"},
	})

	out := buf.String()
	for _, want := range []string{"session.log", "ABC-123", "update", "bold", "1 action record"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_RecordsEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Records("empty.log", nil)
	if !strings.Contains(buf.String(), "0 action records") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPrinter_Analysis(t *testing.T) {
	report := &model.Report{
		Source:    "crash.log",
		LinesRead: 10,
		Actions:   []model.ActionRecord{{Line: 2, GUID: "G-1", Operation: "apply"}},
		FrameChanges: []model.FrameChange{
			{Line: 5, Kind: model.FrameNew, Width: 0, Height: 0},
		},
	}
	var buf bytes.Buffer
	NewPrinter(&buf).Analysis(report, inspect.Analyze(report))

	out := buf.String()
	for _, want := range []string{"crash.log", "normal", "Found 1 GUID:", "Line 2: G-1", "zero-sized new frame", "Recommendations", "MEDIUM", "Text Style Validation"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_WatchUpdate(t *testing.T) {
	var buf bytes.Buffer
	report := &model.Report{Actions: make([]model.ActionRecord, 3), LinesRead: 40}
	NewPrinter(&buf).WatchUpdate(report, 1, time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC))

	out := buf.String()
	for _, want := range []string{"09:30:00", "3 action records", "(+2)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestFormatters(t *testing.T) {
	if got := formatBytes(1536); got != "1.5 KB" {
		t.Errorf("formatBytes(1536) = %q", got)
	}
	if got := formatNumber(2500); got != "2.5K" {
		t.Errorf("formatNumber(2500) = %q", got)
	}
	if got := formatDuration(1500 * time.Millisecond); got != "1.5s" {
		t.Errorf("formatDuration(1.5s) = %q", got)
	}
	if got := countLabel(1, "GUID", "GUIDs"); got != "1 GUID" {
		t.Errorf("countLabel(1) = %q", got)
	}
}
