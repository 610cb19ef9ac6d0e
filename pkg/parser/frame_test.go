package parser

import (
	"math"
	"testing"

	"github.com/logflow/actionlog/internal/model"
)

func TestFrameExtractor_Inspect(t *testing.T) {
	e := NewFrameExtractor()
	line, ok := Classify("40 | 12:00:00 | -[TextBubbleStickerView expandFrameWithSize:] size={120.5, 44} current frameSize={100, 40} newFrame={{0, 0}, {120.5, 44}}", 1)
	if !ok {
		t.Fatal("line not classified")
	}

	frames, render := e.Inspect(line)
	if render != nil {
		t.Errorf("render = %+v, want nil", render)
	}
	want := []model.FrameChange{
		{Line: 40, Timestamp: "12:00:00", Kind: model.FrameExpand, Width: 120.5, Height: 44},
		{Line: 40, Timestamp: "12:00:00", Kind: model.FrameCurrent, Width: 100, Height: 40},
		{Line: 40, Timestamp: "12:00:00", Kind: model.FrameNew, Width: 120.5, Height: 44},
	}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d: %+v", len(frames), len(want), frames)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frames[%d] = %+v, want %+v", i, frames[i], want[i])
		}
	}
}

func TestFrameExtractor_NaN(t *testing.T) {
	e := NewFrameExtractor()
	line, _ := Classify("41 | T | expandFrameSize: size={nan, NaN}", 1)

	frames, _ := e.Inspect(line)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !math.IsNaN(frames[0].Width) || !math.IsNaN(frames[0].Height) {
		t.Errorf("frame = %+v, want NaN dimensions", frames[0])
	}
}

func TestFrameExtractor_RenderSize(t *testing.T) {
	e := NewFrameExtractor()

	tests := []struct {
		content   string
		wantW     float64
		wantH     float64
		wantRatio float64
	}{
		{"layout renderSize={200, 50}", 200, 50, 4},
		{"layout renderSize={10, 0}", 10, 0, math.Inf(1)},
		{"layout renderSize={1.5.2, -}", 1.5, math.NaN(), math.NaN()},
	}

	for _, tt := range tests {
		line, _ := Classify("7 | T | "+tt.content, 1)
		_, render := e.Inspect(line)
		if render == nil {
			t.Fatalf("%q: render = nil", tt.content)
		}
		if !sameFloat(render.Width, tt.wantW) || !sameFloat(render.Height, tt.wantH) || !sameFloat(render.Ratio, tt.wantRatio) {
			t.Errorf("%q: render = %+v, want %vx%v ratio %v", tt.content, render, tt.wantW, tt.wantH, tt.wantRatio)
		}
	}
}

func TestFrameExtractor_IgnoresUnrelated(t *testing.T) {
	e := NewFrameExtractor()
	line, _ := Classify("8 | T | size={1, 2} without the frame marker", 1)

	frames, render := e.Inspect(line)
	if len(frames) != 0 || render != nil {
		t.Errorf("frames = %v, render = %v, want none", frames, render)
	}
}

func sameFloat(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}
