package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/logflow/actionlog/internal/model"
)

// number matches the dimensions printed by the application, including the
// "nan" emitted for CGFloat NaN.
const number = `(-?(?i:nan)|[0-9.-]+)`

var (
	expandSizeRe  = regexp.MustCompile(`size=\{` + number + `,\s*` + number + `\}`)
	currentSizeRe = regexp.MustCompile(`current frameSize=\{` + number + `,\s*` + number + `\}`)
	newFrameRe    = regexp.MustCompile(`newFrame=\{\{[0-9a-zA-Z., -]+\},\s*\{` + number + `,\s*` + number + `\}\}`)
	renderSizeRe  = regexp.MustCompile(`renderSize=\{` + number + `,\s*` + number + `\}`)
)

// Content markers for frame and render lines.
const (
	markerExpandFrameWithSize = "expandFrameWithSize:"
	markerExpandFrameSize     = "expandFrameSize:"
	markerRenderSize          = "renderSize="
)

// FrameExtractor pulls frame and render sizes out of numbered log lines.
type FrameExtractor struct{}

// NewFrameExtractor creates a frame extractor.
func NewFrameExtractor() *FrameExtractor {
	return &FrameExtractor{}
}

// Inspect returns the frame changes and render size reported by line.
// A single line can report several frame kinds.
func (e *FrameExtractor) Inspect(line model.LogLine) ([]model.FrameChange, *model.RenderSize) {
	var frames []model.FrameChange
	content := line.Content

	if strings.Contains(content, markerExpandFrameWithSize) || strings.Contains(content, markerExpandFrameSize) {
		for _, m := range []struct {
			re   *regexp.Regexp
			kind model.FrameKind
		}{
			{expandSizeRe, model.FrameExpand},
			{currentSizeRe, model.FrameCurrent},
			{newFrameRe, model.FrameNew},
		} {
			if w, h, ok := matchPair(m.re, content); ok {
				frames = append(frames, model.FrameChange{
					Line:      line.RecordNumber,
					Timestamp: line.Timestamp,
					Kind:      m.kind,
					Width:     w,
					Height:    h,
				})
			}
		}
	}

	var render *model.RenderSize
	if strings.Contains(content, markerRenderSize) {
		if w, h, ok := matchPair(renderSizeRe, content); ok {
			ratio := math.Inf(1)
			if h != 0 {
				ratio = w / h
			}
			render = &model.RenderSize{
				Line:      line.RecordNumber,
				Timestamp: line.Timestamp,
				Width:     w,
				Height:    h,
				Ratio:     ratio,
			}
		}
	}

	return frames, render
}

func matchPair(re *regexp.Regexp, s string) (float64, float64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	return parseDimension(m[1]), parseDimension(m[2]), true
}

// parseDimension parses the longest numeric prefix of s, so "1.5.2" is 1.5
// and "-" is NaN.
func parseDimension(s string) float64 {
	if strings.EqualFold(strings.TrimPrefix(s, "-"), "nan") {
		return math.NaN()
	}
	for end := len(s); end > 0; end-- {
		if v, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return v
		}
	}
	return math.NaN()
}
