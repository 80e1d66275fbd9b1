package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"storyloom/internal/artifact"
	"storyloom/internal/gen"
	"storyloom/internal/story"
)

// revisionRecord reads chapter n's revision record, if one exists.
func (e *Engine) revisionRecord(n int) (*story.RevisionRecord, bool, error) {
	key := artifact.RevisionKey(n)
	if !e.Store.Exists(key) {
		return nil, false, nil
	}
	var rec story.RevisionRecord
	if err := e.Store.ReadJSON(key, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// ListRevisions returns every revision record, ascending by chapter number.
func (e *Engine) ListRevisions() ([]story.RevisionRecord, error) {
	outline, err := e.outline()
	if err != nil {
		if _, ok := err.(*MissingDependencyError); ok {
			return nil, nil
		}
		return nil, err
	}
	var records []story.RevisionRecord
	for _, n := range outline.Numbers() {
		rec, ok, err := e.revisionRecord(n)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, *rec)
		}
	}
	return records, nil
}

// FindPending returns all pending records, ascending by chapter number.
func (e *Engine) FindPending() ([]story.RevisionRecord, error) {
	records, err := e.ListRevisions()
	if err != nil {
		return nil, err
	}
	var pending []story.RevisionRecord
	for _, rec := range records {
		if rec.Status == story.RevisionPending {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// BlockedChapter returns the gate's blocking frontier: the lowest-numbered
// chapter with a pending record.
func (e *Engine) BlockedChapter() (*story.RevisionRecord, bool, error) {
	pending, err := e.FindPending()
	if err != nil {
		return nil, false, err
	}
	if len(pending) == 0 {
		return nil, false, nil
	}
	return &pending[0], true, nil
}

// CheckGate vetoes operations beyond the blocking frontier. Operations on the
// blocked chapter itself, or earlier, are permitted.
func (e *Engine) CheckGate(target int) error {
	rec, blocked, err := e.BlockedChapter()
	if err != nil {
		return err
	}
	if blocked && target > rec.ChapterNumber {
		return &GateBlockedError{Blocked: rec.ChapterNumber, Target: target, RecordID: rec.ID}
	}
	return nil
}

// CheckGateForRange rejects a batch wholesale if any resolved chapter lies
// beyond the frontier; an overlapping range is never partially executed.
func (e *Engine) CheckGateForRange(nums []int) error {
	if len(nums) == 0 {
		return nil
	}
	return e.CheckGate(nums[len(nums)-1])
}

// FlagChapter creates a pending revision record for chapter n, overwriting
// any prior record.
func (e *Engine) FlagChapter(n int, issues []story.Issue, triggeredBy string) (*story.RevisionRecord, error) {
	if !e.Store.Exists(artifact.TextKey(n)) {
		return nil, &MissingDependencyError{Stage: fmt.Sprintf("revision[%d]", n), Unmet: []string{fmt.Sprintf("text[%d]", n)}}
	}
	rec := &story.RevisionRecord{
		ID:            uuid.NewString(),
		ChapterNumber: n,
		Status:        story.RevisionPending,
		TriggeredBy:   triggeredBy,
		Issues:        issues,
		CreatedAt:     time.Now().UTC(),
	}
	if err := e.Store.WriteJSON(artifact.RevisionKey(n), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GenerateCandidate asks the generation service for replacement text for a
// flagged chapter, using the original text, the review issues, the plan, and
// the world/character context. Safe to re-run; the candidate is replaced.
func (e *Engine) GenerateCandidate(ctx context.Context, n int) (*story.RevisionRecord, error) {
	rec, ok, err := e.revisionRecord(n)
	if err != nil {
		return nil, err
	}
	if !ok || rec.Status != story.RevisionPending {
		return nil, fmt.Errorf("chapter %d has no pending revision", n)
	}

	if err := e.step(StageChapters, n, "revision-candidate"); err != nil {
		return nil, err
	}

	inputs := map[string]json.RawMessage{}
	for name, key := range map[string]string{
		"text":       artifact.TextKey(n),
		"plan":       artifact.PlanKey(n),
		"world":      artifact.KeyWorld,
		"characters": artifact.KeyCharacters,
	} {
		raw, err := e.Store.ReadRaw(key)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		inputs[name] = raw
	}
	issuesRaw, err := json.Marshal(rec.Issues)
	if err != nil {
		return nil, err
	}
	inputs["issues"] = issuesRaw

	raw, err := e.Gen.Generate(ctx, &gen.Request{Kind: gen.KindRevision, Chapter: n, Inputs: inputs})
	if err != nil {
		return nil, &GenerationFailedError{Target: fmt.Sprintf("revision[%d]", n), Err: err}
	}
	var candidate story.ChapterText
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return nil, &GenerationFailedError{Target: fmt.Sprintf("revision[%d]", n), Err: err}
	}
	if candidate.ChapterNumber != n {
		return nil, &story.ValidationError{
			Artifact: fmt.Sprintf("revision[%d]", n),
			Msg:      fmt.Sprintf("candidate is for chapter %d", candidate.ChapterNumber),
		}
	}

	rec.Candidate = &candidate
	if err := e.Store.WriteJSON(artifact.RevisionKey(n), rec); err != nil {
		return nil, err
	}
	e.endStep(StageChapters, n)
	return rec, nil
}

// ApplyRevision replaces chapter n's text with the pending candidate, backing
// up the original first. This is the sole path that mutates already-produced
// text in place.
func (e *Engine) ApplyRevision(n int) error {
	rec, ok, err := e.revisionRecord(n)
	if err != nil {
		return err
	}
	if !ok || rec.Status != story.RevisionPending {
		return fmt.Errorf("chapter %d has no pending revision", n)
	}
	if rec.Candidate == nil {
		return fmt.Errorf("chapter %d has no candidate text; run revision fix first", n)
	}

	if _, err := e.Store.Backup(artifact.TextKey(n)); err != nil {
		return err
	}
	if err := e.Store.WriteJSON(artifact.TextKey(n), rec.Candidate); err != nil {
		return err
	}

	now := time.Now().UTC()
	rec.Status = story.RevisionAccepted
	rec.DecidedAt = &now
	if err := e.Store.WriteJSON(artifact.RevisionKey(n), rec); err != nil {
		return err
	}
	if e.Log != nil {
		if err := e.Log.Append(StageChapters, n, "revision-accepted", rec.ID); err != nil {
			fmt.Fprintf(os.Stderr, "warning: checkpoint log append failed: %v\n", err)
		}
	}
	return nil
}

// RejectRevision dismisses chapter n's pending record without changing
// content. The only other way to clear the gate.
func (e *Engine) RejectRevision(n int, reason string) error {
	rec, ok, err := e.revisionRecord(n)
	if err != nil {
		return err
	}
	if !ok || rec.Status != story.RevisionPending {
		return fmt.Errorf("chapter %d has no pending revision", n)
	}
	now := time.Now().UTC()
	rec.Status = story.RevisionRejected
	rec.Reason = reason
	rec.DecidedAt = &now
	if err := e.Store.WriteJSON(artifact.RevisionKey(n), rec); err != nil {
		return err
	}
	if e.Log != nil {
		if err := e.Log.Append(StageChapters, n, "revision-rejected", rec.ID); err != nil {
			fmt.Fprintf(os.Stderr, "warning: checkpoint log append failed: %v\n", err)
		}
	}
	return nil
}
