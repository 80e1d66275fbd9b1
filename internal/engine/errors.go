package engine

import (
	"fmt"
	"strings"
)

// MissingDependencyError reports a prerequisite artifact that is absent.
// Always recoverable by generating the prerequisite first.
type MissingDependencyError struct {
	Stage string
	Unmet []string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("stage %q has unmet dependencies: %s", e.Stage, strings.Join(e.Unmet, ", "))
}

// StageFailedError reports a stage whose generation failed. The artifact is
// left absent, so a retry is always safe.
type StageFailedError struct {
	Stage string
	Err   error
}

func (e *StageFailedError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageFailedError) Unwrap() error { return e.Err }

// GenerationFailedError reports an external service error or invalid output
// for a chapter-level target. The artifact is left absent; retry is safe.
type GenerationFailedError struct {
	Target string
	Err    error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generating %s: %v", e.Target, e.Err)
}

func (e *GenerationFailedError) Unwrap() error { return e.Err }

// SequentialViolationError reports a chapter whose text was requested while
// earlier chapters still lack text.
type SequentialViolationError struct {
	Chapter   int
	BlockedBy []int
}

func (e *SequentialViolationError) Error() string {
	return fmt.Sprintf("chapter %d text requires earlier chapters %v to have text first (pass sequential=false to override)", e.Chapter, e.BlockedBy)
}

// GateBlockedError reports a request that reaches past the revision gate's
// blocking frontier.
type GateBlockedError struct {
	Blocked  int
	Target   int
	RecordID string
}

func (e *GateBlockedError) Error() string {
	return fmt.Sprintf("chapter %d has a pending revision; chapter %d is beyond the gate", e.Blocked, e.Target)
}

// BudgetExceededError reports the execution-counter guardrail tripping. Fatal
// to the current run, never auto-retried.
type BudgetExceededError struct {
	Steps int
	Limit int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("execution budget exceeded: %d steps (limit %d)", e.Steps, e.Limit)
}
