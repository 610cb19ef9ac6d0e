package writer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/xuri/excelize/v2"

	"github.com/logflow/actionlog/internal/model"
)

func sampleRecords() []*model.ActionRecord {
	return []*model.ActionRecord{
		{
			Line:         12,
			Timestamp:    "2024-01-01 10:00:00.000",
			GUID:         "A-1",
			Operation:    "apply",
			FeatureName:  "Heading",
			TextCategory: "title",
			LayersSource: "doc",
			SourceLine:   3,
		},
		{
			Line:       40,
			Timestamp:  "2024-01-01 10:00:01.000",
			GUID:       "B-2",
			SourceLine: 9,
			Extra:      map[string]string{"z": "1", "a": "2"},
		},
	}
}

func writeAll(t *testing.T, w Writer) {
	t.Helper()
	ch := make(chan *model.ActionRecord)
	go func() {
		defer close(ch)
		for _, r := range sampleRecords() {
			ch <- r
		}
	}()
	if err := w.Write(context.Background(), ch); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if got := w.RowsWritten(); got != 2 {
		t.Errorf("RowsWritten() = %d, want 2", got)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"jsonl", FormatJSONL, false},
		{"JSON", FormatJSONL, false},
		{"ndjson", FormatJSONL, false},
		{"csv", FormatCSV, false},
		{"xlsx", FormatXLSX, false},
		{"parquet", FormatParquet, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q, wantErr %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"out/actions.parquet": FormatParquet,
		"actions.xlsx":        FormatXLSX,
		"actions.csv":         FormatCSV,
		"actions.jsonl":       FormatJSONL,
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		if err != nil || got != want {
			t.Errorf("FormatFromPath(%q) = %q, %v; want %q", path, got, err, want)
		}
	}
	if _, err := FormatFromPath("actions"); err == nil {
		t.Error("FormatFromPath(no extension) succeeded")
	}
}

func TestJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	writeAll(t, NewJSONLWriter(&buf))

	sc := bufio.NewScanner(&buf)
	var got []model.ActionRecord
	for sc.Scan() {
		var rec model.ActionRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("Unmarshal(%q) = %v", sc.Text(), err)
		}
		got = append(got, rec)
	}
	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
	if got[0].GUID != "A-1" || got[0].FeatureName != "Heading" {
		t.Errorf("first record = %+v", got[0])
	}
	if got[1].Extra["z"] != "1" {
		t.Errorf("second record extra = %v", got[1].Extra)
	}
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCSVWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	writeAll(t, w)

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0][2] != "guid" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "12" || rows[1][2] != "A-1" || rows[1][7] != "3" || rows[1][8] != "" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][8] != `{"a":"2","z":"1"}` {
		t.Errorf("row 2 extra = %q", rows[2][8])
	}
}

func TestXLSXWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewXLSXWriter(&buf, Config{RunID: "run-1", Source: "session.log"})
	if err != nil {
		t.Fatal(err)
	}
	writeAll(t, w)

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows() = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[1][2] != "A-1" || rows[2][2] != "B-2" {
		t.Errorf("guids = %q, %q", rows[1][2], rows[2][2])
	}

	props, err := f.GetDocProps()
	if err != nil {
		t.Fatalf("GetDocProps() = %v", err)
	}
	if props.Identifier != "run-1" {
		t.Errorf("Identifier = %q, want run-1", props.Identifier)
	}
}

func TestParquetWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewParquetWriter(&buf, Config{BatchSize: 1, Compression: CompressionNone})
	if err != nil {
		t.Fatal(err)
	}
	writeAll(t, w)

	pf, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewParquetReader() = %v", err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("NewFileReader() = %v", err)
	}
	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		t.Fatalf("ReadTable() = %v", err)
	}
	defer tbl.Release()

	if tbl.NumRows() != 2 {
		t.Errorf("NumRows() = %d, want 2", tbl.NumRows())
	}
	if int(tbl.NumCols()) != len(Columns) {
		t.Errorf("NumCols() = %d, want %d", tbl.NumCols(), len(Columns))
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New("xml", &bytes.Buffer{}, DefaultConfig()); err == nil {
		t.Error("New(xml) succeeded")
	}
}

func TestWrite_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewJSONLWriter(&bytes.Buffer{})
	if err := w.Write(ctx, make(chan *model.ActionRecord)); err != context.Canceled {
		t.Errorf("Write() = %v, want context.Canceled", err)
	}
}
