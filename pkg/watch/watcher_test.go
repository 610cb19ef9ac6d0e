package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/logflow/actionlog/internal/model"
	"github.com/logflow/actionlog/pkg/parser"
)

const oneBlock = "1 | T1 | Action:{\ntext_style_guid:G-1\n}\n"

func TestRescanner_Scan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	if err := os.WriteFile(path, []byte(oneBlock), 0644); err != nil {
		t.Fatal(err)
	}

	var got *model.Report
	r := NewRescanner(context.Background(), parser.NewScanner(parser.DefaultConfig()), func(_ string, rep *model.Report) {
		got = rep
	})
	if err := r.Scan(path); err != nil {
		t.Fatalf("Scan() = %v", err)
	}
	if got == nil || len(got.Actions) != 1 || got.Source != path {
		t.Fatalf("report = %+v", got)
	}
}

func TestRescanner_MissingFile(t *testing.T) {
	r := NewRescanner(context.Background(), parser.NewScanner(parser.DefaultConfig()), nil)
	if err := r.Scan(filepath.Join(t.TempDir(), "gone.log")); err == nil {
		t.Error("Scan(missing) succeeded")
	}
}

func TestWatcher_HandleChangeSkipsUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	if err := os.WriteFile(path, []byte(oneBlock), 0644); err != nil {
		t.Fatal(err)
	}

	logger, _ := test.NewNullLogger()
	w, err := NewWatcher(time.Millisecond, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	calls := 0
	w.OnChange = func(string) error { calls++; return nil }

	abs, _ := filepath.Abs(path)
	state := w.files[abs]
	w.handleChange(abs, state)
	if calls != 0 {
		t.Errorf("OnChange called %d times for an unchanged file", calls)
	}

	if err := os.WriteFile(path, []byte(oneBlock+oneBlock), 0644); err != nil {
		t.Fatal(err)
	}
	w.handleChange(abs, state)
	if calls != 1 {
		t.Errorf("OnChange called %d times after a write, want 1", calls)
	}
}

func TestWatcher_ChangeDuringRescan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	if err := os.WriteFile(path, []byte(oneBlock), 0644); err != nil {
		t.Fatal(err)
	}

	logger, _ := test.NewNullLogger()
	w, err := NewWatcher(time.Millisecond, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(path)
	state := w.files[abs]

	var mu sync.Mutex
	var sizes []int64
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	w.OnChange = func(p string) error {
		st, err := os.Stat(p)
		if err != nil {
			return err
		}
		mu.Lock()
		sizes = append(sizes, st.Size())
		first := len(sizes) == 1
		mu.Unlock()
		entered <- struct{}{}
		if first {
			<-release
		}
		return nil
	}

	if err := os.WriteFile(path, []byte(oneBlock+oneBlock), 0644); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		w.handleChange(abs, state)
		close(done)
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first rescan did not start")
	}

	// Written while the first rescan is still running.
	final := oneBlock + oneBlock + oneBlock
	if err := os.WriteFile(path, []byte(final), 0644); err != nil {
		t.Fatal(err)
	}
	w.handleChange(abs, state)
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("rescans did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sizes) != 2 {
		t.Fatalf("OnChange called %d times, want 2", len(sizes))
	}
	if sizes[1] != int64(len(final)) {
		t.Errorf("last rescan saw %d bytes, want %d", sizes[1], len(final))
	}
	if state.processing || state.pending {
		t.Errorf("state after rescans = %+v", *state)
	}
}

func TestWatcher_Run(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	if err := os.WriteFile(path, []byte(oneBlock), 0644); err != nil {
		t.Fatal(err)
	}

	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	w, err := NewWatcher(20*time.Millisecond, logger)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var counts []int
	changed := make(chan struct{}, 1)
	r := NewRescanner(context.Background(), parser.NewScanner(parser.DefaultConfig()), func(_ string, rep *model.Report) {
		mu.Lock()
		counts = append(counts, len(rep.Actions))
		mu.Unlock()
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	w.OnChange = r.Scan

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("2 | T2 | Action:{\ntext_style_guid:G-2\n}\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no rescan after write")
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if counts[len(counts)-1] != 2 {
		t.Errorf("last rescan found %d actions, want 2", counts[len(counts)-1])
	}
}
