package parser

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/logflow/actionlog/internal/model"
)

const sampleLog = `1 | T1 | Action:{
operation:update
text_style_guid:ABC-123
feature_name:bold
}
2 | T2 | noise
`

func TestExtractActions_Example(t *testing.T) {
	records, err := ExtractActions(context.Background(), strings.NewReader(sampleLog), DefaultConfig())
	if err != nil {
		t.Fatalf("ExtractActions: %v", err)
	}

	want := []model.ActionRecord{{
		Line:        1,
		Timestamp:   "T1",
		GUID:        "ABC-123",
		Operation:   "update",
		FeatureName: "bold",
		SourceLine:  1,
	}}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("records = %+v, want %+v", records, want)
	}
}

func TestExtractActions_WithoutIdentifier(t *testing.T) {
	input := strings.Replace(sampleLog, "text_style_guid:ABC-123\n", "", 1)

	records, err := ExtractActions(context.Background(), strings.NewReader(input), DefaultConfig())
	if err != nil {
		t.Fatalf("ExtractActions: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestExtractActions_Deterministic(t *testing.T) {
	input := sampleLog + "3 | T3 | Action:{\r\ntext_style_guid:X\r\n}\r\n4 | T4 | Action:{\ntext_style_guid:Y\n}"

	first, err := ExtractActions(context.Background(), strings.NewReader(input), DefaultConfig())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := ExtractActions(context.Background(), strings.NewReader(input), DefaultConfig())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("runs differ:\n%+v\n%+v", first, second)
	}

	var guids []string
	for _, r := range first {
		guids = append(guids, r.GUID)
	}
	if got := strings.Join(guids, ","); got != "ABC-123,X,Y" {
		t.Errorf("guids = %s, want ABC-123,X,Y", got)
	}
}

func TestExtractActions_LineEndings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"byte order mark", "\xef\xbb\xbf1 | T1 | Action:{\ntext_style_guid:ABC\n}\n", []string{"ABC"}},
		{"byte order mark with crlf", "\ufeff1 | T1 | Action:{\r\ntext_style_guid:ABC\r\n}\r\n", []string{"ABC"}},
		{"lone cr", "1 | T1 | Action:{\rtext_style_guid:A\r}\r2 | T2 | Action:{\rtext_style_guid:B\r}", []string{"A", "B"}},
		{"mixed", "1 | T1 | Action:{\r\ntext_style_guid:A\r}\n2 | T2 | x\r\r\n", []string{"A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ExtractActions(context.Background(), strings.NewReader(tt.input), DefaultConfig())
			if err != nil {
				t.Fatalf("ExtractActions: %v", err)
			}
			var got []string
			for _, r := range records {
				got = append(got, r.GUID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("guids = %v, want %v", got, tt.want)
			}
			if len(records) > 0 && (records[0].Line != 1 || records[0].Timestamp != "T1") {
				t.Errorf("first record = %+v", records[0])
			}
		})
	}
}

func TestForEachLine_Numbering(t *testing.T) {
	var lines []string
	n, err := forEachLine(context.Background(), strings.NewReader("\ufeffa\rb\r\n\nc\r\rd"), 0, func(i int, raw string) error {
		lines = append(lines, raw)
		if i != len(lines) {
			t.Errorf("line %q numbered %d, want %d", raw, i, len(lines))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("forEachLine: %v", err)
	}
	want := []string{"a", "b", "", "c", "", "d"}
	if n != len(want) || !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %q (n=%d), want %q", lines, n, want)
	}
}

func TestExtractActions_Empty(t *testing.T) {
	records, err := ExtractActions(context.Background(), strings.NewReader(""), DefaultConfig())
	if err != nil {
		t.Fatalf("ExtractActions: %v", err)
	}
	if records != nil {
		t.Errorf("records = %v, want nil", records)
	}
}

func TestExtractActions_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExtractActions(ctx, strings.NewReader(sampleLog), DefaultConfig())
	if !errors.Is(err, ErrContextCanceled) {
		t.Errorf("err = %v, want ErrContextCanceled", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestExtractActions_ReadError(t *testing.T) {
	_, err := ExtractActions(context.Background(), failingReader{}, DefaultConfig())
	if err == nil || !strings.Contains(err.Error(), "disk gone") {
		t.Errorf("err = %v, want wrapped read error", err)
	}
}

func TestActionParser_Parse(t *testing.T) {
	p := NewActionParser(DefaultConfig())
	out := make(chan *model.ActionRecord, 4)

	input := sampleLog + "5 | T5 | Action:{\ntext_style_guid:DEF\nlayers_source:sticker\n}\n"
	if err := p.Parse(context.Background(), strings.NewReader(input), out); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	close(out)

	var got []*model.ActionRecord
	for rec := range out {
		got = append(got, rec)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[1].GUID != "DEF" || got[1].LayersSource != "sticker" || got[1].Line != 5 || got[1].SourceLine != 7 {
		t.Errorf("second record = %+v", got[1])
	}
}

func TestActionParser_CanceledWhileSending(t *testing.T) {
	p := NewActionParser(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan *model.ActionRecord) // unbuffered, never read

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Parse(ctx, strings.NewReader(sampleLog), out)
	}()
	cancel()

	if err := <-errCh; !errors.Is(err, ErrContextCanceled) {
		t.Errorf("err = %v, want ErrContextCanceled", err)
	}
}
