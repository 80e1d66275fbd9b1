package ux

import (
	"fmt"
	"sort"

	"storyloom/internal/checkpoint"
	"storyloom/internal/state"
)

// RenderStatus prints the full status display for a project.
func RenderStatus(st *state.WorkflowState, recent []checkpoint.Entry) {
	fmt.Printf("%sStatus:%s  %s\n", Bold, Reset, st.Status)
	if st.CurrentStage != "" {
		fmt.Printf("%sStage:%s   %s\n", Bold, Reset, st.CurrentStage)
	}
	if st.Blocked > 0 {
		fmt.Printf("%sBlocked:%s %schapter %d (pending revision)%s\n", Bold, Reset, Yellow, st.Blocked, Reset)
	}

	if len(st.Completed) > 0 {
		fmt.Printf("\n%sCompleted stages:%s\n", Bold, Reset)
		for _, name := range st.Completed {
			fmt.Printf("  %s✓%s %s\n", Green, Reset, name)
		}
	}

	if st.ChapterCount > 0 {
		fmt.Printf("\n%sChapters:%s %d outlined, %d planned, %d texted, %d reviewed\n",
			Bold, Reset, st.ChapterCount, len(st.Plans), len(st.Texts), len(st.Reviews))
		for n := 1; n <= st.ChapterCount; n++ {
			marker := fmt.Sprintf("%s·%s", Dim, Reset)
			switch {
			case containsInt(st.Pending, n):
				marker = fmt.Sprintf("%s⚑%s", Yellow, Reset)
			case st.HasText(n):
				marker = fmt.Sprintf("%s✓%s", Green, Reset)
			case st.HasPlan(n):
				marker = fmt.Sprintf("%s◐%s", Cyan, Reset)
			}
			fmt.Printf("  %s chapter %d\n", marker, n)
		}
	}

	if len(st.Errors) > 0 {
		fmt.Printf("\n%sLast errors:%s\n", Bold, Reset)
		keys := make([]string, 0, len(st.Errors))
		for k := range st.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s%s:%s %s\n", Red, k, Reset, st.Errors[k])
		}
	}

	if len(recent) > 0 {
		fmt.Printf("\n%sRecent steps:%s\n", Bold, Reset)
		for _, e := range recent {
			target := e.Stage
			if e.Chapter > 0 {
				target = fmt.Sprintf("chapter %d", e.Chapter)
			}
			fmt.Printf("  %s%s%s  %-12s %s\n", Dim, e.At.Local().Format("15:04:05"), Reset, target, e.Action)
		}
	}
	fmt.Println()
}

func containsInt(xs []int, n int) bool {
	for _, x := range xs {
		if x == n {
			return true
		}
	}
	return false
}
