// Package ux renders console output for the pipeline.
package ux

import (
	"fmt"
	"strings"
	"time"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// StageHeader prints a timestamped stage header.
func StageHeader(index, total int, name string) {
	fmt.Printf("\n%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
	fmt.Printf("%s[%s]%s  %sStage %d/%d: %s%s\n",
		Dim, timestamp(), Reset, Bold, index+1, total, name, Reset)
	fmt.Printf("%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
}

// StageSkip prints a skip message for an already-complete stage.
func StageSkip(name string) {
	fmt.Printf("%s[%s]%s  %s– Stage %q already complete, skipping%s\n",
		Dim, timestamp(), Reset, Dim, name, Reset)
}

// StageComplete prints a stage completion message.
func StageComplete(name string) {
	fmt.Printf("%s[%s]%s  %s✓ Stage %q complete%s\n",
		Dim, timestamp(), Reset, Green, name, Reset)
}

// ChapterStep prints a per-chapter progress line.
func ChapterStep(n int, msg string) {
	fmt.Printf("%s[%s]%s  %sChapter %d:%s %s\n",
		Dim, timestamp(), Reset, Bold, n, Reset, msg)
}

// ChapterClean prints a clean-review marker.
func ChapterClean(n int) {
	fmt.Printf("%s[%s]%s  %s✓ Chapter %d clean%s\n",
		Dim, timestamp(), Reset, Green, n, Reset)
}

// ChapterFail prints a chapter failure message.
func ChapterFail(n int, action, errMsg string) {
	fmt.Printf("%s[%s]%s  %s✗ Chapter %d %s failed: %s%s\n",
		Dim, timestamp(), Reset, Red, n, action, errMsg, Reset)
}

// ChapterFlagged prints a revision-gate message for a flagged chapter.
func ChapterFlagged(n, issues int) {
	fmt.Printf("%s[%s]%s  %s⚑ Chapter %d flagged by review (%d issues); later chapters are gated%s\n",
		Dim, timestamp(), Reset, Yellow, n, issues, Reset)
	fmt.Printf("  resolve with: storyloom revision fix %d && storyloom revision apply %d\n", n, n)
	fmt.Printf("  or dismiss:   storyloom revision reject %d\n", n)
}

// ResumeHint prints a resume command hint.
func ResumeHint() {
	fmt.Printf("\n%sResume:%s storyloom resume\n", Yellow, Reset)
}

// ResumeSummary prints what the store scan found before resuming.
func ResumeSummary(completed []string, current string, blocked int) {
	done := "nothing"
	if len(completed) > 0 {
		done = strings.Join(completed, ", ")
	}
	fmt.Printf("%s[%s]%s  resuming; complete: %s\n", Dim, timestamp(), Reset, done)
	if current != "" {
		fmt.Printf("%s[%s]%s  next stage: %s\n", Dim, timestamp(), Reset, current)
	}
	if blocked > 0 {
		fmt.Printf("%s[%s]%s  %sblocked chapter: %d%s\n", Dim, timestamp(), Reset, Yellow, blocked, Reset)
	}
}

// StoppedAt prints the stop-at marker for partial runs.
func StoppedAt(stage string) {
	fmt.Printf("\n%s[%s]%s  %sStopped after stage %q%s\n", Dim, timestamp(), Reset, Bold, stage, Reset)
}

// Success prints the final success message.
func Success() {
	fmt.Printf("\n%s[%s]%s  %s%s══ Pipeline complete ══%s\n\n",
		Dim, timestamp(), Reset, Bold, Green, Reset)
}
