// Package model defines core data structures for ActionLog.
package model

// LogLine is one input line after classification.
// LineNumber is the 1-based position in the input; RecordNumber is the
// number embedded at the start of the line by the logging application.
type LogLine struct {
	Raw          string
	Text         string // Raw with surrounding whitespace removed
	LineNumber   int
	RecordNumber int64
	Timestamp    string
	Content      string
}

// ActionRecord is the structured form of one closed action block.
// Records are built once, when the block closes, and never mutated.
type ActionRecord struct {
	// Line is the record number of the line that opened the block.
	Line int64 `json:"line"`

	// Timestamp is the opener's timestamp, verbatim.
	Timestamp string `json:"timestamp"`

	// GUID is the value of the identifier key.
	GUID string `json:"guid"`

	Operation    string `json:"operation"`
	FeatureName  string `json:"feature_name"`
	TextCategory string `json:"text_category"`
	LayersSource string `json:"layers_source"`

	// SourceLine is the 1-based input position of the opener line.
	SourceLine int `json:"source_line"`

	// Extra holds accumulated keys that are not mapped to a field above.
	Extra map[string]string `json:"extra,omitempty"`
}

// FrameKind distinguishes the frame sizes reported by expandFrame log lines.
type FrameKind string

const (
	FrameExpand  FrameKind = "expand"
	FrameCurrent FrameKind = "current"
	FrameNew     FrameKind = "new"
)

// FrameChange is a frame size reported by an expandFrameWithSize log line.
// Width and Height may be NaN when the application logged "nan".
type FrameChange struct {
	Line      int64     `json:"line"`
	Timestamp string    `json:"timestamp"`
	Kind      FrameKind `json:"type"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
}

// RenderSize is a render size reported by a renderSize= log line.
// Ratio is Width/Height and +Inf when Height is zero.
type RenderSize struct {
	Line      int64   `json:"line"`
	Timestamp string  `json:"timestamp"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Ratio     float64 `json:"ratio"`
}

// BlockStats counts what happened to the action blocks of a scan.
// Every opened block ends up in exactly one of the other counters.
type BlockStats struct {
	Opened            int `json:"opened"`
	Emitted           int `json:"emitted"`
	MissingIdentifier int `json:"missing_identifier"`
	Superseded        int `json:"superseded"`
	Unterminated      int `json:"unterminated"`
}

// Report is everything extracted from a single pass over a log.
type Report struct {
	Source       string         `json:"source"`
	LinesRead    int            `json:"lines_read"`
	Blocks       BlockStats     `json:"blocks"`
	Actions      []ActionRecord `json:"actions"`
	FrameChanges []FrameChange  `json:"frame_changes"`
	RenderSizes  []RenderSize   `json:"render_sizes"`
}
