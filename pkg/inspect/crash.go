// Package inspect analyzes what a scan extracted from a crash session log.
package inspect

import (
	"fmt"
	"math"
	"sort"

	"github.com/logflow/actionlog/internal/model"
)

// Severity grades a crash session.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// zeroDimensionLimit is the number of zero-sized frames or renders tolerated
// before a session is graded as a warning.
const zeroDimensionLimit = 2

// CrashReport is the analysis of a scan report.
type CrashReport struct {
	Severity     Severity       `json:"severity"`
	HasCrash     bool           `json:"has_crash"`
	PrimaryCause string         `json:"primary_cause,omitempty"`
	Triggers     []string       `json:"trigger_events"`
	Cascade      []CascadePhase `json:"cascade,omitempty"`
	GUIDs        []GUIDSummary  `json:"guids"`
	Frames       FrameStats     `json:"frames"`
	Issues       []Issue        `json:"issues"`

	Recommendations []Recommendation `json:"recommendations"`
}

// CascadePhase groups the events around the first NaN frame.
type CascadePhase struct {
	Phase  string   `json:"phase"`
	Events []string `json:"events"`
}

// GUIDSummary counts the actions recorded for one identifier.
// Category and Operation come from its first occurrence.
type GUIDSummary struct {
	GUID      string `json:"guid"`
	Count     int    `json:"count"`
	Category  string `json:"category"`
	Operation string `json:"operation"`
	FirstLine int64  `json:"first_line"`
}

// FrameStats summarizes frame and render sizes.
type FrameStats struct {
	TotalFrameChanges int `json:"total_frame_changes"`
	TotalRenderSizes  int `json:"total_render_sizes"`
	NaNFrames         int `json:"nan_frames"`
	ZeroFrames        int `json:"zero_frames"`
	NegativeFrames    int `json:"negative_frames"`
	ExtremeFrames     int `json:"extreme_frames"`
	ZeroRenders       int `json:"zero_renders"`
	ExtremeRatios     int `json:"extreme_ratios"`

	// Averages and ranges cover frames with finite, positive dimensions.
	ValidFrames   int     `json:"valid_frames"`
	AverageWidth  float64 `json:"average_width,omitempty"`
	AverageHeight float64 `json:"average_height,omitempty"`
	MinWidth      float64 `json:"min_width,omitempty"`
	MaxWidth      float64 `json:"max_width,omitempty"`
	MinHeight     float64 `json:"min_height,omitempty"`
	MaxHeight     float64 `json:"max_height,omitempty"`
}

// Priority orders recommendations.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
)

// Recommendation is a suggested fix for the session's application code.
type Recommendation struct {
	Priority    Priority `json:"priority"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Code        string   `json:"code"`
}

// Issue describes one anomaly worth a reader's attention.
type Issue struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"` // "frame", "render", "action"
	Line        int64    `json:"line"`
	Description string   `json:"description"`
}

// Analyze grades a scan report and summarizes its contents.
func Analyze(report *model.Report) *CrashReport {
	cr := &CrashReport{
		Severity: AssessSeverity(report),
		GUIDs:    SummarizeGUIDs(report.Actions),
		Frames:   ComputeFrameStats(report),
	}

	var nanFrames []model.FrameChange
	for _, f := range report.FrameChanges {
		if isNaNFrame(f) {
			nanFrames = append(nanFrames, f)
		}
	}

	if len(nanFrames) > 0 {
		cr.HasCrash = true
		cr.PrimaryCause = "NaN values in frame calculations"
		cr.Triggers = append(cr.Triggers, fmt.Sprintf("%d NaN frame events detected", len(nanFrames)))
		cr.Cascade = traceCascade(report, nanFrames[0])
	}
	if cr.Frames.ZeroRenders > 0 {
		cr.Triggers = append(cr.Triggers, fmt.Sprintf("%d zero render size events", cr.Frames.ZeroRenders))
	}

	cr.Issues = collectIssues(report)
	cr.Recommendations = Recommend(cr)
	return cr
}

// Recommend lists fixes for an analyzed session, highest priority first.
// The bounds-checking recommendation is always present.
func Recommend(cr *CrashReport) []Recommendation {
	var recs []Recommendation
	if cr.Severity == SeverityCritical {
		recs = append(recs, Recommendation{
			Priority:    PriorityHigh,
			Title:       "Immediate Fix Required",
			Description: "Add NaN validation before all frame calculations in expandFrameWithSize",
			Code:        "if (isnan(width) || isnan(height)) { /* fallback logic */ }",
		})
	}
	if cr.Frames.ZeroRenders > 0 {
		recs = append(recs, Recommendation{
			Priority:    PriorityHigh,
			Title:       "Prevent Zero Render Sizes",
			Description: "Reject zero render dimensions before they reach frame calculations",
			Code:        "if (renderSize.width <= 0 || renderSize.height <= 0) { /* use minimum viable size */ }",
		})
	}
	if len(cr.GUIDs) > 0 {
		recs = append(recs, Recommendation{
			Priority:    PriorityMedium,
			Title:       "Text Style Validation",
			Description: "Validate text style parameters before applying them",
			Code:        "validateTextStyleBeforeApply(textStyle);",
		})
	}
	recs = append(recs, Recommendation{
		Priority:    PriorityMedium,
		Title:       "Add Defensive Programming",
		Description: "Bounds-check every frame calculation and fall back to safe values",
		Code:        "safeWidth = max(minWidth, min(maxWidth, calculatedWidth))",
	})
	return recs
}

// AssessSeverity grades a report: critical when any frame has a NaN
// dimension, warning when zero-sized renders or frames exceed the limit.
func AssessSeverity(report *model.Report) Severity {
	var zeroFrames, zeroRenders int
	for _, f := range report.FrameChanges {
		if isNaNFrame(f) {
			return SeverityCritical
		}
		if f.Width == 0 || f.Height == 0 {
			zeroFrames++
		}
	}
	for _, r := range report.RenderSizes {
		if r.Width == 0 || r.Height == 0 {
			zeroRenders++
		}
	}
	if zeroRenders > zeroDimensionLimit || zeroFrames > zeroDimensionLimit {
		return SeverityWarning
	}
	return SeverityNormal
}

// SummarizeGUIDs counts records per identifier, in order of first appearance.
func SummarizeGUIDs(records []model.ActionRecord) []GUIDSummary {
	index := make(map[string]int)
	var out []GUIDSummary
	for _, r := range records {
		if i, ok := index[r.GUID]; ok {
			out[i].Count++
			continue
		}
		index[r.GUID] = len(out)
		out = append(out, GUIDSummary{
			GUID:      r.GUID,
			Count:     1,
			Category:  r.TextCategory,
			Operation: r.Operation,
			FirstLine: r.Line,
		})
	}
	return out
}

// ComputeFrameStats counts anomalies and computes size ranges.
func ComputeFrameStats(report *model.Report) FrameStats {
	s := FrameStats{
		TotalFrameChanges: len(report.FrameChanges),
		TotalRenderSizes:  len(report.RenderSizes),
	}

	var sumW, sumH float64
	for _, f := range report.FrameChanges {
		switch {
		case isNaNFrame(f):
			s.NaNFrames++
			continue
		case f.Width == 0 || f.Height == 0:
			s.ZeroFrames++
		case f.Width < 0 || f.Height < 0:
			s.NegativeFrames++
		}
		if isExtremeFrame(f) {
			s.ExtremeFrames++
		}
		if f.Width <= 0 || f.Height <= 0 || math.IsInf(f.Width, 0) || math.IsInf(f.Height, 0) {
			continue
		}

		if s.ValidFrames == 0 {
			s.MinWidth, s.MaxWidth = f.Width, f.Width
			s.MinHeight, s.MaxHeight = f.Height, f.Height
		}
		s.ValidFrames++
		sumW += f.Width
		sumH += f.Height
		s.MinWidth = math.Min(s.MinWidth, f.Width)
		s.MaxWidth = math.Max(s.MaxWidth, f.Width)
		s.MinHeight = math.Min(s.MinHeight, f.Height)
		s.MaxHeight = math.Max(s.MaxHeight, f.Height)
	}
	if s.ValidFrames > 0 {
		s.AverageWidth = sumW / float64(s.ValidFrames)
		s.AverageHeight = sumH / float64(s.ValidFrames)
	}

	for _, r := range report.RenderSizes {
		if r.Width == 0 || r.Height == 0 {
			s.ZeroRenders++
		}
		if isExtremeRatio(r.Ratio) {
			s.ExtremeRatios++
		}
	}
	return s
}

// traceCascade lists up to three render and three frame events before the
// first NaN frame, followed by the crash event itself.
func traceCascade(report *model.Report, first model.FrameChange) []CascadePhase {
	type event struct {
		line int64
		desc string
	}

	var renders, frames []event
	for _, r := range report.RenderSizes {
		if r.Line < first.Line {
			renders = append(renders, event{r.Line, fmt.Sprintf("Line %d: render %gx%g", r.Line, r.Width, r.Height)})
		}
	}
	for _, f := range report.FrameChanges {
		if f.Line < first.Line {
			frames = append(frames, event{f.Line, fmt.Sprintf("Line %d: %s %gx%g", f.Line, f.Kind, f.Width, f.Height)})
		}
	}

	pre := make([]event, 0, 6)
	pre = append(pre, lastN(renders, 3)...)
	pre = append(pre, lastN(frames, 3)...)
	sort.SliceStable(pre, func(i, j int) bool { return pre[i].line < pre[j].line })

	descs := make([]string, 0, len(pre))
	for _, e := range pre {
		descs = append(descs, e.desc)
	}

	return []CascadePhase{
		{Phase: "Pre-crash Events", Events: descs},
		{Phase: "Crash Event", Events: []string{fmt.Sprintf("Line %d: NaN frame values detected", first.Line)}},
	}
}

func collectIssues(report *model.Report) []Issue {
	var issues []Issue
	for _, f := range report.FrameChanges {
		switch {
		case isNaNFrame(f):
			issues = append(issues, Issue{SeverityCritical, "frame", f.Line, fmt.Sprintf("NaN %s frame %gx%g", f.Kind, f.Width, f.Height)})
		case f.Width == 0 || f.Height == 0:
			issues = append(issues, Issue{SeverityWarning, "frame", f.Line, fmt.Sprintf("zero-sized %s frame %gx%g", f.Kind, f.Width, f.Height)})
		case f.Width < 0 || f.Height < 0:
			issues = append(issues, Issue{SeverityWarning, "frame", f.Line, fmt.Sprintf("negative %s frame %gx%g", f.Kind, f.Width, f.Height)})
		case isExtremeFrame(f):
			issues = append(issues, Issue{SeverityWarning, "frame", f.Line, fmt.Sprintf("extreme %s frame %.1fx%.1f", f.Kind, f.Width, f.Height)})
		}
	}
	for _, r := range report.RenderSizes {
		switch {
		case r.Width == 0 || r.Height == 0:
			issues = append(issues, Issue{SeverityCritical, "render", r.Line, fmt.Sprintf("zero render size %gx%g", r.Width, r.Height)})
		case isExtremeRatio(r.Ratio):
			issues = append(issues, Issue{SeverityWarning, "render", r.Line, fmt.Sprintf("extreme aspect ratio %.6f", r.Ratio)})
		}
	}
	if len(report.Actions) == 0 {
		issues = append(issues, Issue{SeverityWarning, "action", 0, "no text style GUIDs found"})
	}
	return issues
}

func isNaNFrame(f model.FrameChange) bool {
	return math.IsNaN(f.Width) || math.IsNaN(f.Height)
}

func isExtremeFrame(f model.FrameChange) bool {
	return f.Width > 10000 || f.Height > 10000
}

func isExtremeRatio(ratio float64) bool {
	return ratio > 100 || (ratio > 0 && ratio < 0.01)
}

func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
