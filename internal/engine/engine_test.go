package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"storyloom/internal/artifact"
	"storyloom/internal/gen"
	"storyloom/internal/state"
	"storyloom/internal/story"
)

// fakeGen is a deterministic stand-in for the generation service. Failures
// can be injected per target key ("stage:world", "plan:3", "scene:3.2",
// "revision:3").
type fakeGen struct {
	chapters       int
	scenesPer      int
	fail           map[string]bool
	calls          []string
	revisionMarker string
}

func newFakeGen(chapters int) *fakeGen {
	return &fakeGen{chapters: chapters, scenesPer: 2, fail: map[string]bool{}}
}

func (f *fakeGen) callCount(key string) int {
	count := 0
	for _, c := range f.calls {
		if c == key {
			count++
		}
	}
	return count
}

func (f *fakeGen) Generate(_ context.Context, req *gen.Request) (json.RawMessage, error) {
	var key string
	switch req.Kind {
	case gen.KindStage:
		key = "stage:" + req.Stage
	case gen.KindPlan:
		key = fmt.Sprintf("plan:%d", req.Chapter)
	case gen.KindScene:
		key = fmt.Sprintf("scene:%d.%d", req.Chapter, req.Scene)
	case gen.KindRevision:
		key = fmt.Sprintf("revision:%d", req.Chapter)
	}
	f.calls = append(f.calls, key)
	if f.fail[key] {
		return nil, errors.New("injected failure")
	}

	switch req.Kind {
	case gen.KindStage:
		if req.Stage == StageOutline {
			outline := story.Outline{Title: "Test Story"}
			for n := 1; n <= f.chapters; n++ {
				ch := story.ChapterSummary{
					Number:  n,
					Title:   fmt.Sprintf("Chapter %d", n),
					Summary: fmt.Sprintf("events of chapter %d", n),
				}
				if n > 1 {
					ch.DependsOn = []int{n - 1}
				}
				outline.Chapters = append(outline.Chapters, ch)
			}
			return json.Marshal(outline)
		}
		return json.Marshal(map[string]string{"stage": req.Stage, "content": req.Stage + " artifact"})
	case gen.KindPlan:
		plan := story.ChapterPlan{
			ChapterNumber: req.Chapter,
			Title:         fmt.Sprintf("Chapter %d", req.Chapter),
		}
		for s := 1; s <= f.scenesPer; s++ {
			plan.Scenes = append(plan.Scenes, story.ScenePlan{
				Number:  s,
				Title:   fmt.Sprintf("Scene %d.%d", req.Chapter, s),
				Summary: fmt.Sprintf("beat %d of chapter %d", s, req.Chapter),
			})
		}
		return json.Marshal(plan)
	case gen.KindScene:
		return json.Marshal(story.Scene{
			Number:  req.Scene,
			Text:    fmt.Sprintf("scene %d of chapter %d, after %q", req.Scene, req.Chapter, req.PriorSummary),
			Summary: fmt.Sprintf("summary %d.%d", req.Chapter, req.Scene),
		})
	case gen.KindRevision:
		return json.Marshal(story.ChapterText{
			ChapterNumber: req.Chapter,
			Title:         fmt.Sprintf("Chapter %d (revised%s)", req.Chapter, f.revisionMarker),
			Scenes: []story.Scene{{
				Number:    1,
				Text:      "revised text",
				WordCount: 2,
			}},
			TotalWords: 2,
		})
	}
	return nil, fmt.Errorf("unknown kind %q", req.Kind)
}

// fakeReviewer flags the chapters listed in flag with a low score.
type fakeReviewer struct {
	flag  map[int]bool
	calls []int
}

func newFakeReviewer() *fakeReviewer {
	return &fakeReviewer{flag: map[int]bool{}}
}

func (f *fakeReviewer) Review(_ context.Context, req *gen.ReviewRequest) (*story.ReviewReport, error) {
	f.calls = append(f.calls, req.Chapter)
	if f.flag[req.Chapter] {
		return &story.ReviewReport{
			ChapterNumber: req.Chapter,
			Score:         40,
			Issues: []story.Issue{
				{Severity: "major", Description: "timeline contradiction"},
			},
			Summary: "flagged",
		}, nil
	}
	return &story.ReviewReport{ChapterNumber: req.Chapter, Score: 95, Summary: "clean"}, nil
}

func newTestEngine(t *testing.T, chapters int) (*Engine, *fakeGen, *fakeReviewer) {
	t.Helper()
	store := artifact.NewStore(t.TempDir())
	if err := store.EnsureLayout(); err != nil {
		t.Fatal(err)
	}
	g := newFakeGen(chapters)
	r := newFakeReviewer()
	progress, err := state.LoadProgress(store)
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(store, g, r, progress)
	if err != nil {
		t.Fatal(err)
	}
	e.MaxSteps = 10000
	return e, g, r
}

// seedStages generates the four top-level stage artifacts.
func seedStages(t *testing.T, e *Engine) {
	t.Helper()
	for _, name := range []string{StageWorld, StageTheme, StageCharacters, StageOutline} {
		if _, err := e.EnsureStage(context.Background(), name); err != nil {
			t.Fatalf("seeding %s: %v", name, err)
		}
	}
}

// seedChapters generates plan and text for chapters 1..n in order.
func seedChapters(t *testing.T, e *Engine, n int) {
	t.Helper()
	opts := DefaultOptions()
	for c := 1; c <= n; c++ {
		if _, err := e.EnsurePlan(context.Background(), c, opts); err != nil {
			t.Fatalf("seeding plan %d: %v", c, err)
		}
		if _, _, err := e.EnsureText(context.Background(), c, opts); err != nil {
			t.Fatalf("seeding text %d: %v", c, err)
		}
	}
}

func TestNew_ValidatesStageOrder(t *testing.T) {
	if err := ValidateStages(StageList()); err != nil {
		t.Fatalf("built-in stage list invalid: %v", err)
	}
	bad := []Stage{
		{Name: "b", Requires: []string{"a"}},
		{Name: "a"},
	}
	if err := ValidateStages(bad); err == nil {
		t.Fatal("expected forward dependency to be rejected")
	}
}
