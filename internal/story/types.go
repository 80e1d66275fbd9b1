// Package story defines the artifacts produced by the pipeline.
package story

import (
	"strings"
	"time"
)

// World is the top-level setting artifact.
type World struct {
	Title    string   `json:"title"`
	Synopsis string   `json:"synopsis"`
	Setting  string   `json:"setting,omitempty"`
	Facts    []string `json:"facts,omitempty"`
}

// Theme captures the thematic statement the rest of the pipeline writes toward.
type Theme struct {
	Statement string   `json:"statement"`
	Motifs    []string `json:"motifs,omitempty"`
}

type Character struct {
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
	Arc         string `json:"arc,omitempty"`
}

type Characters struct {
	Cast []Character `json:"cast"`
}

// ChapterSummary is one entry of the outline. DependsOn lists chapter numbers
// whose events this chapter builds on; each must be strictly earlier.
type ChapterSummary struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	DependsOn []int  `json:"depends_on,omitempty"`
}

type Outline struct {
	Title    string           `json:"title"`
	Chapters []ChapterSummary `json:"chapters"`
}

// Chapter returns the summary for chapter n, if outlined.
func (o *Outline) Chapter(n int) (ChapterSummary, bool) {
	for _, c := range o.Chapters {
		if c.Number == n {
			return c, true
		}
	}
	return ChapterSummary{}, false
}

// Numbers returns all outlined chapter numbers in order.
func (o *Outline) Numbers() []int {
	nums := make([]int, len(o.Chapters))
	for i, c := range o.Chapters {
		nums[i] = c.Number
	}
	return nums
}

type ScenePlan struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Beats   []string `json:"beats,omitempty"`
}

// ChapterPlan is the scene-level breakdown for one chapter, produced before
// its text. Created once; replaced only under force.
type ChapterPlan struct {
	ChapterNumber int         `json:"chapter_number"`
	Title         string      `json:"title"`
	Scenes        []ScenePlan `json:"scenes"`
}

type Scene struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Summary   string `json:"summary,omitempty"`
	WordCount int    `json:"word_count"`
}

// ChapterText is the generated content for one chapter. Replaced only under
// force or via an accepted revision.
type ChapterText struct {
	ChapterNumber int     `json:"chapter_number"`
	Title         string  `json:"title"`
	Scenes        []Scene `json:"scenes"`
	TotalWords    int     `json:"total_words"`
}

type Issue struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Scenes      []int  `json:"scenes,omitempty"`
}

// SeverityCritical always trips the revision gate regardless of score.
const SeverityCritical = "critical"

// ReviewReport is the consistency reviewer's verdict on one chapter. It is
// consumed by local decision logic, never authoritative by itself.
type ReviewReport struct {
	ChapterNumber int     `json:"chapter_number"`
	Issues        []Issue `json:"issues"`
	Score         int     `json:"score"`
	Summary       string  `json:"summary,omitempty"`
}

// Revision record statuses.
const (
	RevisionPending  = "pending"
	RevisionAccepted = "accepted"
	RevisionRejected = "rejected"
)

// RevisionRecord tracks whether a flagged chapter's problem was fixed,
// accepted, or dismissed. A chapter may be re-flagged later, overwriting the
// record; no versioned history of prior decisions is kept.
type RevisionRecord struct {
	ID            string       `json:"id"`
	ChapterNumber int          `json:"chapter_number"`
	Status        string       `json:"status"`
	TriggeredBy   string       `json:"triggered_by"`
	Issues        []Issue      `json:"issues,omitempty"`
	Candidate     *ChapterText `json:"candidate,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	DecidedAt     *time.Time   `json:"decided_at,omitempty"`
}

// CountWords returns the whitespace-separated word count of text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
