package index

import "testing"

func containsAll(ids []int64, want ...int64) bool {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

func TestConceptSetUnionIntersectDifference(t *testing.T) {
	a := NewConceptSet([]int64{24700007, 6118003, 138875005})
	b := NewConceptSet([]int64{6118003, 404684003})

	union := a.Union(b)
	if union.Len() != 4 || !containsAll(union.ToSlice(), 24700007, 6118003, 138875005, 404684003) {
		t.Fatalf("unexpected union: %v", union.ToSlice())
	}

	inter := a.Intersect(b)
	if inter.Len() != 1 || !containsAll(inter.ToSlice(), 6118003) {
		t.Fatalf("unexpected intersection: %v", inter.ToSlice())
	}

	diff := a.Difference(b)
	if diff.Len() != 2 || !containsAll(diff.ToSlice(), 24700007, 138875005) {
		t.Fatalf("unexpected difference: %v", diff.ToSlice())
	}
}
