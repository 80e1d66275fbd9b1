package engine

import (
	"reflect"
	"testing"

	"storyloom/internal/story"
)

func testOutline(n int) *story.Outline {
	o := &story.Outline{Title: "t"}
	for i := 1; i <= n; i++ {
		o.Chapters = append(o.Chapters, story.ChapterSummary{Number: i, Title: "c", Summary: "s"})
	}
	return o
}

func TestScopeResolve_NumbersWinOverRange(t *testing.T) {
	scope := Scope{Numbers: []int{4, 2, 2}, Start: 1, End: 10}
	nums, err := scope.Resolve(testOutline(10))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(nums, []int{2, 4}) {
		t.Fatalf("nums = %v, want [2 4]", nums)
	}
}

func TestScopeResolve_Range(t *testing.T) {
	nums, err := Scope{Start: 2, End: 5}.Resolve(testOutline(10))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(nums, []int{2, 3, 4, 5}) {
		t.Fatalf("nums = %v, want [2 3 4 5]", nums)
	}
}

func TestScopeResolve_Empty_AllChapters(t *testing.T) {
	nums, err := Scope{}.Resolve(testOutline(3))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(nums, []int{1, 2, 3}) {
		t.Fatalf("nums = %v, want [1 2 3]", nums)
	}
}

func TestScopeResolve_Errors(t *testing.T) {
	if _, err := (Scope{Numbers: []int{7}}).Resolve(testOutline(5)); err == nil {
		t.Fatal("expected error for out-of-outline number")
	}
	if _, err := (Scope{Start: 3, End: 2}).Resolve(testOutline(5)); err == nil {
		t.Fatal("expected error for inverted range")
	}
	if _, err := (Scope{Start: 1, End: 9}).Resolve(testOutline(5)); err == nil {
		t.Fatal("expected error for range past outline")
	}
}

func TestScopeResolve_OpenEnds(t *testing.T) {
	nums, err := Scope{Start: 4}.Resolve(testOutline(5))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(nums, []int{4, 5}) {
		t.Fatalf("nums = %v, want [4 5]", nums)
	}
	nums, err = Scope{End: 2}.Resolve(testOutline(5))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(nums, []int{1, 2}) {
		t.Fatalf("nums = %v, want [1 2]", nums)
	}
}
