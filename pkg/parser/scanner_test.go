package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/logflow/actionlog/internal/model"
)

const crashLog = `1 | 10:00:00.000 | app launched
2 | 10:00:01.000 | Action:{
operation:apply
text_style_guid:GUID-1
text_category:title
}
3 | 10:00:02.000 | expandFrameWithSize: size={100, 20}
4 | 10:00:03.000 | layout renderSize={100, 0}
5 | 10:00:04.000 | Action:{
text_style_guid:GUID-2
6 | 10:00:05.000 | expandFrameWithSize: size={1, 1}
}
7 | 10:00:06.000 | expandFrameWithSize: size={nan, nan}
`

func TestScanner_WithFrames(t *testing.T) {
	s := NewScanner(DefaultConfig(), WithFrames(true))

	report, err := s.Scan(context.Background(), strings.NewReader(crashLog))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if report.LinesRead != 13 {
		t.Errorf("LinesRead = %d, want 13", report.LinesRead)
	}
	if len(report.Actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(report.Actions))
	}
	if report.Actions[0].GUID != "GUID-1" || report.Actions[0].TextCategory != "title" {
		t.Errorf("actions[0] = %+v", report.Actions[0])
	}
	if report.Actions[1].GUID != "GUID-2" || report.Actions[1].Line != 5 {
		t.Errorf("actions[1] = %+v", report.Actions[1])
	}

	// The frame line inside the second block is a body line, not a frame.
	if len(report.FrameChanges) != 2 {
		t.Fatalf("got %d frame changes, want 2: %+v", len(report.FrameChanges), report.FrameChanges)
	}
	if report.FrameChanges[0].Line != 3 || report.FrameChanges[1].Line != 7 {
		t.Errorf("frame lines = %d, %d, want 3, 7", report.FrameChanges[0].Line, report.FrameChanges[1].Line)
	}
	if len(report.RenderSizes) != 1 || report.RenderSizes[0].Line != 4 {
		t.Errorf("render sizes = %+v", report.RenderSizes)
	}
}

func TestScanner_BlockStats(t *testing.T) {
	const input = `1 | T1 | Action:{
operation:lost
2 | T2 | Action:{
text_style_guid:KEEP
}
3 | T3 | Action:{
operation:no-id
}
4 | T4 | Action:{
text_style_guid:NEVER-CLOSED
`
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	report, err := NewScanner(DefaultConfig(), WithLogger(logger)).Scan(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := model.BlockStats{Opened: 4, Emitted: 1, MissingIdentifier: 1, Superseded: 1, Unterminated: 1}
	if report.Blocks != want {
		t.Errorf("Blocks = %+v, want %+v", report.Blocks, want)
	}
	if len(report.Actions) != 1 || report.Actions[0].GUID != "KEEP" || report.Actions[0].Line != 2 {
		t.Errorf("actions = %+v", report.Actions)
	}

	var msgs []string
	for _, e := range hook.AllEntries() {
		msgs = append(msgs, e.Message)
	}
	if got := hook.LastEntry(); got == nil || got.Message != "block unterminated at end of input" {
		t.Errorf("last log entry = %v; all: %q", got, msgs)
	}
	if len(msgs) != 8 {
		t.Errorf("got %d log entries, want 8: %q", len(msgs), msgs)
	}
}

func TestScanner_WithoutFrames(t *testing.T) {
	s := NewScanner(DefaultConfig())

	report, err := s.Scan(context.Background(), strings.NewReader(crashLog))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(report.Actions) != 2 {
		t.Errorf("got %d actions, want 2", len(report.Actions))
	}
	if len(report.FrameChanges) != 0 || len(report.RenderSizes) != 0 {
		t.Errorf("frames extracted with frames disabled: %+v %+v", report.FrameChanges, report.RenderSizes)
	}
}

func TestNew_Registry(t *testing.T) {
	s, err := New("expandFrame", DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.frames == nil {
		t.Error("expandFrame scanner has frame extraction disabled")
	}

	s, err = New("action", DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.frames != nil {
		t.Error("action scanner has frame extraction enabled")
	}

	if _, err := New("spacing", DefaultConfig()); !errors.Is(err, ErrUnknownParser) {
		t.Errorf("New(spacing) err = %v, want ErrUnknownParser", err)
	}

	bad := DefaultConfig()
	bad.IdentifierKey = ""
	if _, err := New("action", bad); !errors.Is(err, ErrEmptyIdentifierKey) {
		t.Errorf("New with empty key err = %v, want ErrEmptyIdentifierKey", err)
	}
}

func TestDescriptors(t *testing.T) {
	ds := Descriptors()
	if len(ds) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(ds))
	}
	ds[0].ID = "mutated"
	if d, err := Lookup("action"); err != nil || d.ID != "action" {
		t.Errorf("Lookup(action) = %+v, %v", d, err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"default", func(*Config) {}, nil},
		{"open", func(c *Config) { c.OpenMarker = "" }, ErrEmptyOpenMarker},
		{"close", func(c *Config) { c.CloseMarker = "" }, ErrEmptyCloseMarker},
		{"key", func(c *Config) { c.IdentifierKey = "" }, ErrEmptyIdentifierKey},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(&cfg)
		if err := cfg.Validate(); err != tt.want {
			t.Errorf("%s: Validate() = %v, want %v", tt.name, err, tt.want)
		}
	}
}
