package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"storyloom/internal/artifact"
	"storyloom/internal/gen"
	"storyloom/internal/story"
	"storyloom/internal/ux"
)

// Top-level stage names, in pipeline order.
const (
	StageWorld      = "world"
	StageTheme      = "theme"
	StageCharacters = "characters"
	StageOutline    = "outline"
	StageChapters   = "chapters"
)

// Stage is one step of the top-level pipeline. The set is fixed at startup.
type Stage struct {
	Name     string
	Requires []string
	Key      string // artifact key; empty for the chapters stage
}

// StageList returns the pipeline's stages in their total order.
func StageList() []Stage {
	return []Stage{
		{Name: StageWorld, Key: artifact.KeyWorld},
		{Name: StageTheme, Requires: []string{StageWorld}, Key: artifact.KeyTheme},
		{Name: StageCharacters, Requires: []string{StageWorld, StageTheme}, Key: artifact.KeyCharacters},
		{Name: StageOutline, Requires: []string{StageWorld, StageTheme, StageCharacters}, Key: artifact.KeyOutline},
		{Name: StageChapters, Requires: []string{StageOutline}},
	}
}

// ValidateStages checks that every dependency references an earlier stage, so
// the list forms a legal total order.
func ValidateStages(stages []Stage) error {
	seen := make(map[string]bool, len(stages))
	for i, st := range stages {
		if st.Name == "" {
			return fmt.Errorf("stage %d: name is required", i+1)
		}
		if seen[st.Name] {
			return fmt.Errorf("duplicate stage %q", st.Name)
		}
		for _, req := range st.Requires {
			if !seen[req] {
				return fmt.Errorf("stage %q requires %q, which is not an earlier stage", st.Name, req)
			}
		}
		seen[st.Name] = true
	}
	return nil
}

// FindStage returns the named stage.
func FindStage(name string) (Stage, bool) {
	for _, st := range StageList() {
		if st.Name == name {
			return st, true
		}
	}
	return Stage{}, false
}

// Outcome reports whether an ensure call skipped or generated. Exactly one of
// the two happens per call.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeGenerated
)

func (o Outcome) String() string {
	if o == OutcomeGenerated {
		return "generated"
	}
	return "skipped"
}

// StageComplete reports whether a stage's completion predicate holds.
func (e *Engine) StageComplete(st Stage) (bool, error) {
	if st.Key != "" {
		return e.Store.Exists(st.Key), nil
	}
	// chapters: every outlined chapter has plan and text, no pending revision.
	if !e.Store.Exists(artifact.KeyOutline) {
		return false, nil
	}
	outline, err := e.outline()
	if err != nil {
		return false, err
	}
	for _, n := range outline.Numbers() {
		if !e.Store.Exists(artifact.PlanKey(n)) || !e.Store.Exists(artifact.TextKey(n)) {
			return false, nil
		}
	}
	pending, err := e.FindPending()
	if err != nil {
		return false, err
	}
	return len(pending) == 0, nil
}

// EnsureStage makes a keyed stage's artifact exist. If predecessors are
// incomplete it returns MissingDependencyError without side effects. If the
// artifact already exists it skips without invoking the generation service.
// On generation failure the artifact is left absent and the error recorded
// under the stage name, so a retry is always safe.
func (e *Engine) EnsureStage(ctx context.Context, name string) (Outcome, error) {
	st, ok := FindStage(name)
	if !ok {
		return OutcomeSkipped, fmt.Errorf("unknown stage %q", name)
	}
	if st.Key == "" {
		return OutcomeSkipped, fmt.Errorf("stage %q is driven by the chapter loop, not ensure", name)
	}

	var unmet []string
	for _, req := range st.Requires {
		dep, _ := FindStage(req)
		complete, err := e.StageComplete(dep)
		if err != nil {
			return OutcomeSkipped, err
		}
		if !complete {
			unmet = append(unmet, req)
		}
	}
	if len(unmet) > 0 {
		return OutcomeSkipped, &MissingDependencyError{Stage: name, Unmet: unmet}
	}

	if e.Store.Exists(st.Key) {
		ux.StageSkip(name)
		return OutcomeSkipped, nil
	}

	if err := e.step(name, 0, "generate"); err != nil {
		return OutcomeSkipped, err
	}

	inputs := make(map[string]json.RawMessage, len(st.Requires))
	for _, req := range st.Requires {
		dep, _ := FindStage(req)
		raw, err := e.Store.ReadRaw(dep.Key)
		if err != nil {
			return OutcomeSkipped, fmt.Errorf("reading %s: %w", dep.Key, err)
		}
		inputs[req] = raw
	}

	raw, err := e.Gen.Generate(ctx, &gen.Request{Kind: gen.KindStage, Stage: name, Inputs: inputs})
	if err != nil {
		e.Progress.RecordError(name, err.Error())
		e.Progress.Flush(e.Store)
		return OutcomeSkipped, &StageFailedError{Stage: name, Err: err}
	}

	if name == StageOutline {
		var outline story.Outline
		if err := json.Unmarshal(raw, &outline); err != nil {
			e.Progress.RecordError(name, err.Error())
			e.Progress.Flush(e.Store)
			return OutcomeSkipped, &StageFailedError{Stage: name, Err: err}
		}
		if err := story.ValidateOutline(&outline); err != nil {
			e.Progress.RecordError(name, err.Error())
			e.Progress.Flush(e.Store)
			return OutcomeSkipped, err
		}
	}

	if err := e.Store.WriteRaw(st.Key, raw); err != nil {
		return OutcomeSkipped, fmt.Errorf("persisting %s: %w", st.Key, err)
	}
	e.Progress.ClearError(name)
	e.endStep(name, 0)
	ux.StageComplete(name)
	return OutcomeGenerated, nil
}

// RunUntil computes the named stage's missing predecessors, ensures each in
// order, then ensures the stage itself. Later stages are neither invoked nor
// checked.
func (e *Engine) RunUntil(ctx context.Context, name string) error {
	target, ok := FindStage(name)
	if !ok {
		return fmt.Errorf("unknown stage %q", name)
	}
	for _, st := range StageList() {
		if err := ctx.Err(); err != nil {
			return err
		}
		isTarget := st.Name == target.Name
		if !isTarget && !requiredBy(st.Name, target) {
			continue
		}
		if st.Name == StageChapters {
			if err := e.runChapterLoop(ctx); err != nil {
				return err
			}
		} else if _, err := e.EnsureStage(ctx, st.Name); err != nil {
			return err
		}
		if isTarget {
			return nil
		}
	}
	return nil
}

// requiredBy reports whether stage name is a transitive predecessor of target.
func requiredBy(name string, target Stage) bool {
	for _, req := range target.Requires {
		if req == name {
			return true
		}
		dep, ok := FindStage(req)
		if ok && requiredBy(name, dep) {
			return true
		}
	}
	return false
}

// outline reads and decodes the outline artifact.
func (e *Engine) outline() (*story.Outline, error) {
	if !e.Store.Exists(artifact.KeyOutline) {
		return nil, &MissingDependencyError{Stage: StageChapters, Unmet: []string{StageOutline}}
	}
	var outline story.Outline
	if err := e.Store.ReadJSON(artifact.KeyOutline, &outline); err != nil {
		return nil, err
	}
	return &outline, nil
}
