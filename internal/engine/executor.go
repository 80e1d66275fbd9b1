package engine

import (
	"context"
	"fmt"

	"storyloom/internal/artifact"
	"storyloom/internal/state"
	"storyloom/internal/story"
	"storyloom/internal/ux"
)

// Run executes the pipeline from its first incomplete stage to completion, or
// to stopAt inclusive when given. Completion is determined by re-checking
// each stage's predicate against the store, so Run is also the resume path:
// calling it repeatedly is safe, and stopping between any two steps leaves no
// corruption.
func (e *Engine) Run(ctx context.Context, stopAt string) error {
	if stopAt != "" {
		if _, ok := FindStage(stopAt); !ok {
			return fmt.Errorf("unknown stage %q", stopAt)
		}
	}
	if err := e.Store.EnsureLayout(); err != nil {
		return err
	}

	total := len(StageList())
	for i, st := range StageList() {
		if err := ctx.Err(); err != nil {
			return e.failAndHint(state.StatusInterrupted, err)
		}
		ux.StageHeader(i, total, st.Name)

		if st.Name == StageChapters {
			if err := e.runChapterLoop(ctx); err != nil {
				if _, ok := err.(*GateBlockedError); ok {
					return e.failAndHint(state.StatusBlocked, err)
				}
				if ctx.Err() != nil {
					return e.failAndHint(state.StatusInterrupted, err)
				}
				return e.failAndHint(state.StatusFailed, err)
			}
		} else if _, err := e.EnsureStage(ctx, st.Name); err != nil {
			if ctx.Err() != nil {
				return e.failAndHint(state.StatusInterrupted, err)
			}
			return e.failAndHint(state.StatusFailed, err)
		}

		if stopAt == st.Name {
			e.Progress.SetStatus(state.StatusRunning)
			e.Progress.Flush(e.Store)
			ux.StoppedAt(st.Name)
			return nil
		}
	}

	e.Progress.SetStatus(state.StatusCompleted)
	e.Progress.Flush(e.Store)
	ux.Success()
	return nil
}

// Resume rebuilds the workflow state from the store and continues the run.
// The rebuilt state is informational; Run re-derives every decision from the
// store anyway, which is what makes resume idempotent.
func (e *Engine) Resume(ctx context.Context) error {
	st, err := state.Rebuild(e.Store)
	if err != nil {
		return err
	}
	ux.ResumeSummary(st.Completed, st.CurrentStage, st.Blocked)
	return e.Run(ctx, "")
}

// Status returns the derived workflow state.
func (e *Engine) Status() (*state.WorkflowState, error) {
	return state.Rebuild(e.Store)
}

// runChapterLoop drives plan, text, and review for every outlined chapter in
// strictly ascending order. Whole-range advancement past chapter n requires
// its text to exist and its revision record, if any, to be decided; a pending
// record halts the loop with a gate error.
func (e *Engine) runChapterLoop(ctx context.Context) error {
	outline, err := e.outline()
	if err != nil {
		return err
	}
	opts := DefaultOptions()

	for _, n := range outline.Numbers() {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, ok, err := e.revisionRecord(n)
		if err != nil {
			return err
		}
		if ok && rec.Status == story.RevisionPending {
			return &GateBlockedError{Blocked: n, Target: n, RecordID: rec.ID}
		}

		if _, err := e.EnsurePlan(ctx, n, opts); err != nil {
			return err
		}
		outcome, _, err := e.EnsureText(ctx, n, opts)
		if err != nil {
			return err
		}
		if outcome == OutcomeGenerated {
			ux.ChapterStep(n, "text generated")
		}

		// Review anything not yet reviewed, so an interrupted run converges
		// to the same reviewed end state.
		if !e.Store.Exists(artifact.ReviewKey(n)) {
			newRec, err := e.ReviewChapter(ctx, n)
			if err != nil {
				return err
			}
			if newRec != nil {
				ux.ChapterFlagged(n, len(newRec.Issues))
				return &GateBlockedError{Blocked: n, Target: n, RecordID: newRec.ID}
			}
		}
		ux.ChapterClean(n)
	}
	return nil
}

// failAndHint records the terminal status, flushes progress, prints a resume
// hint, and returns the given error.
func (e *Engine) failAndHint(status string, err error) error {
	e.Progress.SetStatus(status)
	e.Progress.Flush(e.Store)
	ux.ResumeHint()
	return err
}
