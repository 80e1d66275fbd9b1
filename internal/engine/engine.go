// Package engine drives the content-production pipeline: the stage graph
// with idempotent ensure semantics, the per-chapter generation loop, the
// revision gate, and crash-safe resume. Scheduling is single-threaded and
// synchronous; every external generation or review call blocks the run.
package engine

import (
	"fmt"
	"os"

	"storyloom/internal/artifact"
	"storyloom/internal/checkpoint"
	"storyloom/internal/gen"
	"storyloom/internal/state"
)

// Engine ties the artifact store, the external generation services, and the
// progress bookkeeping together.
type Engine struct {
	Store    *artifact.Store
	Gen      gen.Generator
	Reviewer gen.Reviewer
	Progress *state.Progress
	Log      *checkpoint.Log // optional; diagnostics only

	// BlockBelow is the review score below which a chapter is flagged.
	BlockBelow int
	// MaxSteps caps stage/chapter steps per run; a fail-fast guard against
	// runaway control flow, not a performance feature.
	MaxSteps int

	steps int
}

// New returns an engine over the given store and services. The stage list is
// validated for a legal total order up front.
func New(store *artifact.Store, g gen.Generator, r gen.Reviewer, progress *state.Progress) (*Engine, error) {
	if err := ValidateStages(StageList()); err != nil {
		return nil, err
	}
	return &Engine{
		Store:      store,
		Gen:        g,
		Reviewer:   r,
		Progress:   progress,
		BlockBelow: 70,
		MaxSteps:   500,
	}, nil
}

// step counts one stage/chapter step against the run budget and logs it.
func (e *Engine) step(stage string, chapter int, action string) error {
	e.steps++
	if e.MaxSteps > 0 && e.steps > e.MaxSteps {
		return &BudgetExceededError{Steps: e.steps, Limit: e.MaxSteps}
	}
	e.Progress.AddStart(stage, chapter, action)
	if e.Log != nil {
		if err := e.Log.Append(stage, chapter, action, ""); err != nil {
			fmt.Fprintf(os.Stderr, "warning: checkpoint log append failed: %v\n", err)
		}
	}
	return nil
}

// endStep closes the step's progress entry and flushes the record.
func (e *Engine) endStep(stage string, chapter int) {
	e.Progress.AddEnd(stage, chapter)
	e.Progress.Flush(e.Store)
}
