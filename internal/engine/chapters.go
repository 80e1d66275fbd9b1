package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storyloom/internal/artifact"
	"storyloom/internal/gen"
	"storyloom/internal/story"
	"storyloom/internal/ux"
)

// Options are the flags governing ranged generation calls: skip-if-exists,
// overwrite, and ordering enforcement.
type Options struct {
	Force       bool
	MissingOnly bool
	Sequential  bool
}

// DefaultOptions returns the default flag set: missing-only, sequential.
func DefaultOptions() Options {
	return Options{MissingOnly: true, Sequential: true}
}

// BatchResult accounts for every resolved chapter of a batch call: each
// number lands in exactly one of generated, skipped, or failed, except
// numbers never attempted after an early termination.
type BatchResult struct {
	Generated    []int          `json:"generated"`
	Skipped      []int          `json:"skipped"`
	Failed       map[int]string `json:"failed,omitempty"`
	MissingPlans []int          `json:"missing_plans,omitempty"`
	TotalWords   int            `json:"total_words,omitempty"`
	Flagged      int            `json:"flagged,omitempty"`
}

func newBatchResult() *BatchResult {
	return &BatchResult{Failed: map[int]string{}}
}

// EnsurePlan makes chapter n's scene plan exist. An existing plan is skipped
// under missing-only; force regenerates and overwrites. The generation service
// is invoked at most once per call.
func (e *Engine) EnsurePlan(ctx context.Context, n int, opts Options) (Outcome, error) {
	outline, err := e.outline()
	if err != nil {
		return OutcomeSkipped, err
	}
	summary, ok := outline.Chapter(n)
	if !ok {
		return OutcomeSkipped, fmt.Errorf("chapter %d is not in the outline (1..%d)", n, len(outline.Chapters))
	}

	key := artifact.PlanKey(n)
	if e.Store.Exists(key) && opts.MissingOnly && !opts.Force {
		return OutcomeSkipped, nil
	}

	if err := e.step(StageChapters, n, "plan"); err != nil {
		return OutcomeSkipped, err
	}

	inputs, err := e.stageInputs(StageWorld, StageTheme, StageCharacters, StageOutline)
	if err != nil {
		return OutcomeSkipped, err
	}
	summaryRaw, err := json.Marshal(summary)
	if err != nil {
		return OutcomeSkipped, err
	}
	inputs["chapter"] = summaryRaw

	raw, err := e.Gen.Generate(ctx, &gen.Request{Kind: gen.KindPlan, Chapter: n, Inputs: inputs})
	if err != nil {
		return OutcomeSkipped, &GenerationFailedError{Target: fmt.Sprintf("plan[%d]", n), Err: err}
	}
	var plan story.ChapterPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return OutcomeSkipped, &GenerationFailedError{Target: fmt.Sprintf("plan[%d]", n), Err: err}
	}
	if err := story.ValidatePlan(&plan, n); err != nil {
		return OutcomeSkipped, err
	}

	if err := e.Store.WriteJSON(key, &plan); err != nil {
		return OutcomeSkipped, err
	}
	e.endStep(StageChapters, n)
	return OutcomeGenerated, nil
}

// EnsureText makes chapter n's text exist. It requires the chapter's plan,
// consults the revision gate, and under sequential ordering refuses to run
// while any earlier chapter lacks text. Scenes are generated strictly in
// their declared order, each carrying a short rolling summary of the prior
// scene; the chapter is persisted all-or-nothing after the last scene.
func (e *Engine) EnsureText(ctx context.Context, n int, opts Options) (Outcome, *story.ChapterText, error) {
	outline, err := e.outline()
	if err != nil {
		return OutcomeSkipped, nil, err
	}
	if _, ok := outline.Chapter(n); !ok {
		return OutcomeSkipped, nil, fmt.Errorf("chapter %d is not in the outline (1..%d)", n, len(outline.Chapters))
	}

	if err := e.CheckGate(n); err != nil {
		return OutcomeSkipped, nil, err
	}

	planKey := artifact.PlanKey(n)
	if !e.Store.Exists(planKey) {
		return OutcomeSkipped, nil, &MissingDependencyError{
			Stage: fmt.Sprintf("text[%d]", n),
			Unmet: []string{fmt.Sprintf("plan[%d]", n)},
		}
	}

	if opts.Sequential {
		var blockedBy []int
		for _, m := range outline.Numbers() {
			if m >= n {
				break
			}
			if !e.Store.Exists(artifact.TextKey(m)) {
				blockedBy = append(blockedBy, m)
			}
		}
		if len(blockedBy) > 0 {
			return OutcomeSkipped, nil, &SequentialViolationError{Chapter: n, BlockedBy: blockedBy}
		}
	}

	textKey := artifact.TextKey(n)
	if e.Store.Exists(textKey) && opts.MissingOnly && !opts.Force {
		var existing story.ChapterText
		if err := e.Store.ReadJSON(textKey, &existing); err != nil {
			return OutcomeSkipped, nil, err
		}
		return OutcomeSkipped, &existing, nil
	}

	if err := e.step(StageChapters, n, "text"); err != nil {
		return OutcomeSkipped, nil, err
	}

	var plan story.ChapterPlan
	if err := e.Store.ReadJSON(planKey, &plan); err != nil {
		return OutcomeSkipped, nil, err
	}
	inputs, err := e.stageInputs(StageWorld, StageCharacters)
	if err != nil {
		return OutcomeSkipped, nil, err
	}
	planRaw, err := e.Store.ReadRaw(planKey)
	if err != nil {
		return OutcomeSkipped, nil, err
	}
	inputs["plan"] = planRaw

	text := story.ChapterText{ChapterNumber: n, Title: plan.Title}
	rolling := ""
	for _, scenePlan := range plan.Scenes {
		if err := ctx.Err(); err != nil {
			return OutcomeSkipped, nil, err
		}
		raw, err := e.Gen.Generate(ctx, &gen.Request{
			Kind:         gen.KindScene,
			Chapter:      n,
			Scene:        scenePlan.Number,
			Inputs:       inputs,
			PriorSummary: rolling,
		})
		if err != nil {
			return OutcomeSkipped, nil, &GenerationFailedError{
				Target: fmt.Sprintf("text[%d] scene %d", n, scenePlan.Number),
				Err:    err,
			}
		}
		var scene story.Scene
		if err := json.Unmarshal(raw, &scene); err != nil {
			return OutcomeSkipped, nil, &GenerationFailedError{
				Target: fmt.Sprintf("text[%d] scene %d", n, scenePlan.Number),
				Err:    err,
			}
		}
		scene.Number = scenePlan.Number
		if scene.Title == "" {
			scene.Title = scenePlan.Title
		}
		if scene.WordCount == 0 {
			scene.WordCount = story.CountWords(scene.Text)
		}
		if scene.Summary != "" {
			rolling = scene.Summary
		} else {
			rolling = shortSummary(scene.Text)
		}
		text.Scenes = append(text.Scenes, scene)
		text.TotalWords += scene.WordCount
	}

	// Nothing was persisted until every scene succeeded.
	if err := e.Store.WriteJSON(textKey, &text); err != nil {
		return OutcomeSkipped, nil, err
	}
	e.endStep(StageChapters, n)
	return OutcomeGenerated, &text, nil
}

// GeneratePlans runs EnsurePlan over the resolved scope, ascending. The gate
// is checked for the whole range before any work; a range reaching past the
// blocked frontier is rejected wholesale. Plan generation has no ordering
// constraint, so the batch continues past individual failures.
func (e *Engine) GeneratePlans(ctx context.Context, scope Scope, opts Options) (*BatchResult, error) {
	outline, err := e.outline()
	if err != nil {
		return nil, err
	}
	nums, err := scope.Resolve(outline)
	if err != nil {
		return nil, err
	}

	if err := e.CheckGateForRange(nums); err != nil {
		return nil, err
	}

	result := newBatchResult()
	for _, n := range nums {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, err := e.EnsurePlan(ctx, n, opts)
		switch {
		case err != nil:
			var budget *BudgetExceededError
			if errors.As(err, &budget) {
				return result, err
			}
			result.Failed[n] = err.Error()
			ux.ChapterFail(n, "plan", err.Error())
		case outcome == OutcomeGenerated:
			result.Generated = append(result.Generated, n)
			ux.ChapterStep(n, "plan generated")
		default:
			result.Skipped = append(result.Skipped, n)
		}
	}
	return result, nil
}

// GenerateTexts runs EnsureText over the resolved scope, ascending. The gate
// is checked for the whole range before any work; an overlapping range is
// rejected wholesale. Missing plans likewise fail the batch before any
// generation. Under sequential ordering a mid-batch failure stops the batch,
// since later chapters would violate ordering; otherwise the batch continues
// past individual failures. Newly generated chapters are reviewed, and a
// flagged chapter halts further advancement.
func (e *Engine) GenerateTexts(ctx context.Context, scope Scope, opts Options) (*BatchResult, error) {
	outline, err := e.outline()
	if err != nil {
		return nil, err
	}
	nums, err := scope.Resolve(outline)
	if err != nil {
		return nil, err
	}

	if err := e.CheckGateForRange(nums); err != nil {
		return nil, err
	}

	result := newBatchResult()
	for _, n := range nums {
		if !e.Store.Exists(artifact.PlanKey(n)) {
			result.MissingPlans = append(result.MissingPlans, n)
		}
	}
	if len(result.MissingPlans) > 0 {
		unmet := make([]string, len(result.MissingPlans))
		for i, n := range result.MissingPlans {
			unmet[i] = fmt.Sprintf("plan[%d]", n)
		}
		return result, &MissingDependencyError{Stage: "text", Unmet: unmet}
	}

	for _, n := range nums {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, text, err := e.EnsureText(ctx, n, opts)
		if err != nil {
			var budget *BudgetExceededError
			if errors.As(err, &budget) {
				return result, err
			}
			result.Failed[n] = err.Error()
			ux.ChapterFail(n, "text", err.Error())
			if opts.Sequential {
				// Later chapters would violate ordering; stop here.
				return result, nil
			}
			continue
		}
		if outcome == OutcomeSkipped {
			result.Skipped = append(result.Skipped, n)
			continue
		}
		result.Generated = append(result.Generated, n)
		result.TotalWords += text.TotalWords
		ux.ChapterStep(n, fmt.Sprintf("text generated (%d words)", text.TotalWords))

		rec, err := e.ReviewChapter(ctx, n)
		if err != nil {
			// The text persisted; only the review failed. Stop and surface it.
			return result, err
		}
		if rec != nil {
			result.Flagged = n
			ux.ChapterFlagged(n, len(rec.Issues))
			// Everything past the new frontier is gated off.
			return result, nil
		}
	}
	return result, nil
}

// ReviewChapter invokes the consistency reviewer on chapter n's text,
// persists the report, and flags the chapter with a pending revision record
// when the issues cross the blocking threshold. Returns the new record, or
// nil when the chapter is clean.
func (e *Engine) ReviewChapter(ctx context.Context, n int) (*story.RevisionRecord, error) {
	textRaw, err := e.Store.ReadRaw(artifact.TextKey(n))
	if err != nil {
		return nil, &MissingDependencyError{
			Stage: fmt.Sprintf("review[%d]", n),
			Unmet: []string{fmt.Sprintf("text[%d]", n)},
		}
	}
	if err := e.step(StageChapters, n, "review"); err != nil {
		return nil, err
	}

	req := &gen.ReviewRequest{Chapter: n, Text: textRaw}
	if raw, err := e.Store.ReadRaw(artifact.PlanKey(n)); err == nil {
		req.Plan = raw
	}
	if raw, err := e.Store.ReadRaw(artifact.KeyOutline); err == nil {
		req.Outline = raw
	}

	report, err := e.Reviewer.Review(ctx, req)
	if err != nil {
		return nil, &GenerationFailedError{Target: fmt.Sprintf("review[%d]", n), Err: err}
	}
	if err := e.Store.WriteJSON(artifact.ReviewKey(n), report); err != nil {
		return nil, err
	}
	e.endStep(StageChapters, n)

	if !e.reviewFlags(report) {
		return nil, nil
	}
	return e.FlagChapter(n, report.Issues, fmt.Sprintf("review score %d", report.Score))
}

// reviewFlags decides whether a report crosses the blocking threshold.
func (e *Engine) reviewFlags(report *story.ReviewReport) bool {
	if report.Score < e.BlockBelow {
		return true
	}
	for _, issue := range report.Issues {
		if issue.Severity == story.SeverityCritical {
			return true
		}
	}
	return false
}

// stageInputs reads the named stage artifacts into a request input map.
func (e *Engine) stageInputs(names ...string) (map[string]json.RawMessage, error) {
	inputs := make(map[string]json.RawMessage, len(names))
	for _, name := range names {
		st, _ := FindStage(name)
		raw, err := e.Store.ReadRaw(st.Key)
		if err != nil {
			return nil, &MissingDependencyError{Stage: StageChapters, Unmet: []string{name}}
		}
		inputs[name] = raw
	}
	return inputs, nil
}

// shortSummary trims scene text to a rolling continuity snippet.
func shortSummary(text string) string {
	const maxWords = 60
	fields := strings.Fields(text)
	if len(fields) > maxWords {
		fields = fields[len(fields)-maxWords:]
	}
	return strings.Join(fields, " ")
}
