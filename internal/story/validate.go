package story

import "fmt"

// ValidationError reports a produced artifact violating a structural
// invariant. Raised at validation time, never silently coerced.
type ValidationError struct {
	Artifact string
	Msg      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Artifact, e.Msg)
}

// ValidateOutline checks the outline's structural invariants: chapter numbers
// strictly increasing from 1, and every dependency referencing a strictly
// earlier chapter.
func ValidateOutline(o *Outline) error {
	if len(o.Chapters) == 0 {
		return &ValidationError{Artifact: "outline", Msg: "no chapters"}
	}
	for i, c := range o.Chapters {
		want := i + 1
		if c.Number != want {
			return &ValidationError{
				Artifact: "outline",
				Msg:      fmt.Sprintf("chapter at position %d has number %d, want %d", i+1, c.Number, want),
			}
		}
		if c.Title == "" {
			return &ValidationError{
				Artifact: "outline",
				Msg:      fmt.Sprintf("chapter %d has no title", c.Number),
			}
		}
		for _, dep := range c.DependsOn {
			if dep >= c.Number {
				return &ValidationError{
					Artifact: "outline",
					Msg:      fmt.Sprintf("chapter %d depends on chapter %d, which is not earlier", c.Number, dep),
				}
			}
			if dep < 1 {
				return &ValidationError{
					Artifact: "outline",
					Msg:      fmt.Sprintf("chapter %d depends on invalid chapter %d", c.Number, dep),
				}
			}
		}
	}
	return nil
}

// ValidatePlan checks a generated chapter plan before it is persisted.
func ValidatePlan(p *ChapterPlan, chapter int) error {
	if p.ChapterNumber != chapter {
		return &ValidationError{
			Artifact: fmt.Sprintf("plan[%d]", chapter),
			Msg:      fmt.Sprintf("plan is for chapter %d", p.ChapterNumber),
		}
	}
	if len(p.Scenes) == 0 {
		return &ValidationError{
			Artifact: fmt.Sprintf("plan[%d]", chapter),
			Msg:      "no scenes",
		}
	}
	for i, sc := range p.Scenes {
		if sc.Number != i+1 {
			return &ValidationError{
				Artifact: fmt.Sprintf("plan[%d]", chapter),
				Msg:      fmt.Sprintf("scene at position %d has number %d, want %d", i+1, sc.Number, i+1),
			}
		}
	}
	return nil
}
