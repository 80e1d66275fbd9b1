package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(t.TempDir())
	if err := s.EnsureLayout(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := newStore(t)
	in := map[string]any{"title": "test", "chapters": []int{1, 2, 3}}
	if err := s.WriteJSON(KeyWorld, in); err != nil {
		t.Fatal(err)
	}
	if !s.Exists(KeyWorld) {
		t.Fatal("artifact should exist after write")
	}
	var out map[string]any
	if err := s.ReadJSON(KeyWorld, &out); err != nil {
		t.Fatal(err)
	}
	if out["title"] != "test" {
		t.Fatalf("title = %v", out["title"])
	}
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	s := newStore(t)
	if err := s.WriteJSON(PlanKey(3), map[string]int{"chapter_number": 3}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(s.Dir, "chapters"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWrite_CreatesParentDir(t *testing.T) {
	// No EnsureLayout: the write itself must create chapters/.
	s := NewStore(filepath.Join(t.TempDir(), "artifacts"))
	if err := s.WriteJSON(PlanKey(1), map[string]int{"chapter_number": 1}); err != nil {
		t.Fatal(err)
	}
	if !s.Exists(PlanKey(1)) {
		t.Fatal("artifact missing after write into a fresh directory")
	}
}

func TestWriteRaw_RejectsInvalidJSON(t *testing.T) {
	s := newStore(t)
	if err := s.WriteRaw(KeyTheme, json.RawMessage("{not json")); err == nil {
		t.Fatal("expected invalid JSON to be rejected")
	}
	if s.Exists(KeyTheme) {
		t.Fatal("invalid artifact must not be persisted")
	}
}

func TestExists_MissingArtifact(t *testing.T) {
	s := newStore(t)
	if s.Exists(TextKey(1)) {
		t.Fatal("missing artifact reported as existing")
	}
	if _, err := s.ReadRaw(TextKey(1)); err == nil {
		t.Fatal("expected read error for missing artifact")
	}
}

func TestBackup(t *testing.T) {
	s := newStore(t)
	if err := s.WriteJSON(TextKey(2), map[string]string{"title": "original"}); err != nil {
		t.Fatal(err)
	}
	bak, err := s.Backup(TextKey(2))
	if err != nil {
		t.Fatal(err)
	}
	if !s.Exists(bak) {
		t.Fatalf("backup %s missing", bak)
	}
	var got map[string]string
	if err := s.ReadJSON(bak, &got); err != nil {
		t.Fatal(err)
	}
	if got["title"] != "original" {
		t.Fatalf("backup content = %v", got)
	}
}

func TestChapterKeys(t *testing.T) {
	if PlanKey(3) != "chapters/chapter-03-plan.json" {
		t.Fatalf("PlanKey(3) = %q", PlanKey(3))
	}
	if TextKey(12) != "chapters/chapter-12-text.json" {
		t.Fatalf("TextKey(12) = %q", TextKey(12))
	}
	if ReviewKey(1) != "reviews/review-01.json" {
		t.Fatalf("ReviewKey(1) = %q", ReviewKey(1))
	}
	if RevisionKey(7) != "revisions/revision-07.json" {
		t.Fatalf("RevisionKey(7) = %q", RevisionKey(7))
	}
}
