// Package state derives workflow progress from the artifact store. The
// in-memory WorkflowState is a cache, always reconstructible by re-scanning
// the store; it is never trusted as the sole truth.
package state

import (
	"sort"

	"storyloom/internal/artifact"
	"storyloom/internal/story"
)

// Workflow statuses.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
	StatusBlocked     = "blocked"
)

// WorkflowState is the derived view of a project's progress.
type WorkflowState struct {
	CurrentStage   string
	CurrentChapter int
	Completed      []string
	ChapterCount   int
	Plans          []int
	Texts          []int
	Reviews        []int
	Pending        []int
	Blocked        int // lowest pending chapter, 0 if none
	Errors         map[string]string
	Steps          int
	Status         string
}

// HasPlan reports whether chapter n's plan artifact was seen during the scan.
func (w *WorkflowState) HasPlan(n int) bool { return containsInt(w.Plans, n) }

// HasText reports whether chapter n's text artifact was seen during the scan.
func (w *WorkflowState) HasText(n int) bool { return containsInt(w.Texts, n) }

func containsInt(xs []int, n int) bool {
	for _, x := range xs {
		if x == n {
			return true
		}
	}
	return false
}

// Rebuild reconstructs the workflow state by re-scanning the store for the
// existence of each stage and chapter artifact. A cached progress record is
// consulted for diagnostics only, never for position.
func Rebuild(store *artifact.Store) (*WorkflowState, error) {
	w := &WorkflowState{Errors: map[string]string{}, Status: StatusRunning}

	stageKeys := []struct {
		name string
		key  string
	}{
		{"world", artifact.KeyWorld},
		{"theme", artifact.KeyTheme},
		{"characters", artifact.KeyCharacters},
		{"outline", artifact.KeyOutline},
	}
	for _, s := range stageKeys {
		if store.Exists(s.key) {
			w.Completed = append(w.Completed, s.name)
		} else if w.CurrentStage == "" {
			w.CurrentStage = s.name
		}
	}

	if store.Exists(artifact.KeyOutline) {
		var outline story.Outline
		if err := store.ReadJSON(artifact.KeyOutline, &outline); err != nil {
			return nil, err
		}
		w.ChapterCount = len(outline.Chapters)
		for _, n := range outline.Numbers() {
			if store.Exists(artifact.PlanKey(n)) {
				w.Plans = append(w.Plans, n)
			}
			if store.Exists(artifact.TextKey(n)) {
				w.Texts = append(w.Texts, n)
			} else if w.CurrentChapter == 0 {
				w.CurrentChapter = n
			}
			if store.Exists(artifact.ReviewKey(n)) {
				w.Reviews = append(w.Reviews, n)
			}
			if store.Exists(artifact.RevisionKey(n)) {
				var rec story.RevisionRecord
				if err := store.ReadJSON(artifact.RevisionKey(n), &rec); err != nil {
					return nil, err
				}
				if rec.Status == story.RevisionPending {
					w.Pending = append(w.Pending, n)
				}
			}
		}
		sort.Ints(w.Pending)
		if len(w.Pending) > 0 {
			w.Blocked = w.Pending[0]
			w.Status = StatusBlocked
		}
		if w.CurrentStage == "" {
			if len(w.Texts) < w.ChapterCount || w.Blocked > 0 {
				w.CurrentStage = "chapters"
			} else {
				w.Status = StatusCompleted
			}
		}
	}

	// Progress record: diagnostics only.
	if store.Exists(artifact.KeyProgress) {
		if prog, err := LoadProgress(store); err == nil {
			w.Steps = prog.Steps
			for k, v := range prog.Errors {
				w.Errors[k] = v
			}
		}
	}
	return w, nil
}
