package checkpoint

import (
	"path/filepath"
	"testing"
)

func openLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAppendAndRecent(t *testing.T) {
	l := openLog(t)
	steps := []struct {
		stage   string
		chapter int
		action  string
	}{
		{"world", 0, "generate"},
		{"chapters", 1, "plan"},
		{"chapters", 1, "text"},
	}
	for _, s := range steps {
		if err := l.Append(s.stage, s.chapter, s.action, ""); err != nil {
			t.Fatal(err)
		}
	}

	got, err := l.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	// Newest first.
	if got[0].Action != "text" || got[1].Action != "plan" {
		t.Fatalf("entries out of order: %v", got)
	}
	if got[0].Chapter != 1 {
		t.Fatalf("chapter = %d", got[0].Chapter)
	}
	if got[0].At.IsZero() {
		t.Fatal("timestamp not recorded")
	}
}

func TestCount(t *testing.T) {
	l := openLog(t)
	n, err := l.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}
	for i := 0; i < 5; i++ {
		if err := l.Append("world", 0, "generate", "retry"); err != nil {
			t.Fatal(err)
		}
	}
	n, err = l.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("count = %d, want 5", n)
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Append("outline", 0, "generate", ""); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	l2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()
	n, err := l2.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("count after reopen = %d, want 1", n)
	}
}
