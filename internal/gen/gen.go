// Package gen defines the boundary to the external content-generation and
// review services. The engine only sees success or failure plus a structured
// artifact; everything else about generation is opaque.
package gen

import (
	"context"
	"encoding/json"

	"storyloom/internal/story"
)

// Request kinds.
const (
	KindStage    = "stage"
	KindPlan     = "plan"
	KindScene    = "scene"
	KindRevision = "revision"
)

// Request carries a generation task and its already-produced inputs.
type Request struct {
	Kind    string `json:"kind"`
	Stage   string `json:"stage,omitempty"`
	Chapter int    `json:"chapter,omitempty"`
	Scene   int    `json:"scene,omitempty"`
	// Inputs maps artifact names (world, theme, plan, ...) to their JSON.
	Inputs map[string]json.RawMessage `json:"inputs,omitempty"`
	// PriorSummary is a short rolling summary of the previous scene, carried
	// forward as continuity context during scene generation.
	PriorSummary string `json:"prior_summary,omitempty"`
	Guidance     string `json:"guidance,omitempty"`
}

// Generator produces one structured artifact per request.
type Generator interface {
	Generate(ctx context.Context, req *Request) (json.RawMessage, error)
}

// ReviewRequest carries a chapter's text and context to the reviewer.
type ReviewRequest struct {
	Chapter int             `json:"chapter"`
	Text    json.RawMessage `json:"text"`
	Plan    json.RawMessage `json:"plan,omitempty"`
	Outline json.RawMessage `json:"outline,omitempty"`
}

// Reviewer checks a chapter's text for consistency problems.
type Reviewer interface {
	Review(ctx context.Context, req *ReviewRequest) (*story.ReviewReport, error)
}
