package state

import (
	"fmt"
	"os"
	"sync"
	"time"

	"storyloom/internal/artifact"
)

// StepEntry records one stage or chapter step for diagnostics.
type StepEntry struct {
	Stage    string    `json:"stage"`
	Chapter  int       `json:"chapter,omitempty"`
	Action   string    `json:"action"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end,omitempty"`
	Duration string    `json:"duration,omitempty"`
}

// Progress is the workflow-progress record. It caches the execution counter,
// step timings, and last errors for status display; resume never trusts it
// for position.
type Progress struct {
	mu      sync.Mutex
	Status  string            `json:"status"`
	Steps   int               `json:"steps"`
	Errors  map[string]string `json:"errors,omitempty"`
	Entries []StepEntry       `json:"entries,omitempty"`
}

// LoadProgress reads the progress record, returning a fresh one if absent.
func LoadProgress(store *artifact.Store) (*Progress, error) {
	if !store.Exists(artifact.KeyProgress) {
		return &Progress{Status: StatusRunning, Errors: map[string]string{}}, nil
	}
	var p Progress
	if err := store.ReadJSON(artifact.KeyProgress, &p); err != nil {
		return nil, err
	}
	if p.Errors == nil {
		p.Errors = map[string]string{}
	}
	return &p, nil
}

// AddStart appends a new step entry and bumps the execution counter,
// returning the counter's new value.
func (p *Progress) AddStart(stage string, chapter int, action string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Steps++
	p.Entries = append(p.Entries, StepEntry{
		Stage:   stage,
		Chapter: chapter,
		Action:  action,
		Start:   time.Now(),
	})
	return p.Steps
}

// AddEnd records the end time for the most recent open entry matching stage
// and chapter.
func (p *Progress) AddEnd(stage string, chapter int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.Entries) - 1; i >= 0; i-- {
		e := &p.Entries[i]
		if e.Stage == stage && e.Chapter == chapter && e.End.IsZero() {
			e.End = time.Now()
			e.Duration = formatDuration(e.End.Sub(e.Start))
			break
		}
	}
}

// SetStatus updates the record's status field.
func (p *Progress) SetStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = status
}

// RecordError stores the last error for a stage or chapter key.
func (p *Progress) RecordError(key, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Errors[key] = msg
}

// ClearError removes a recorded error after the step succeeds.
func (p *Progress) ClearError(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Errors, key)
}

// Flush writes the progress record to the store, warning instead of failing:
// the record is diagnostics, never truth.
func (p *Progress) Flush(store *artifact.Store) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := store.WriteJSON(artifact.KeyProgress, p); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save progress: %v\n", err)
	}
}

func formatDuration(d time.Duration) string {
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %02ds", m, s)
}
