package engine

import (
	"fmt"
	"sort"

	"storyloom/internal/story"
)

// Scope selects the chapters a batch call acts on. Resolution priority is
// explicit Numbers, then the [Start,End] range, then every outlined chapter;
// exactly one path is used and the resolved set is never widened.
type Scope struct {
	Numbers []int
	Start   int
	End     int
}

// Resolve returns the scoped chapter numbers, ascending and deduplicated.
func (s Scope) Resolve(outline *story.Outline) ([]int, error) {
	total := len(outline.Chapters)

	if len(s.Numbers) > 0 {
		uniq := make(map[int]bool, len(s.Numbers))
		var nums []int
		for _, n := range s.Numbers {
			if _, ok := outline.Chapter(n); !ok {
				return nil, fmt.Errorf("chapter %d is not in the outline (1..%d)", n, total)
			}
			if !uniq[n] {
				uniq[n] = true
				nums = append(nums, n)
			}
		}
		sort.Ints(nums)
		return nums, nil
	}

	if s.Start > 0 || s.End > 0 {
		start, end := s.Start, s.End
		if start == 0 {
			start = 1
		}
		if end == 0 {
			end = total
		}
		if start > end {
			return nil, fmt.Errorf("range start %d is after end %d", start, end)
		}
		if start < 1 || end > total {
			return nil, fmt.Errorf("range [%d,%d] is outside the outline (1..%d)", start, end, total)
		}
		nums := make([]int, 0, end-start+1)
		for n := start; n <= end; n++ {
			nums = append(nums, n)
		}
		return nums, nil
	}

	return outline.Numbers(), nil
}
