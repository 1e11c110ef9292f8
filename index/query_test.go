package index

import (
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
)

type fakeAncestryStore struct {
	ancestors map[int64][]int64
	isA       map[[2]int64]bool
}

func (f *fakeAncestryStore) IsA(conceptID, ancestorID int64) (bool, error) {
	if conceptID == ancestorID {
		return true, nil
	}
	return f.isA[[2]int64{conceptID, ancestorID}], nil
}

func (f *fakeAncestryStore) AncestorsOf(conceptID, typeID int64) ([]int64, error) {
	return f.ancestors[conceptID], nil
}

func TestAncestorsOfSetIncludesSelf(t *testing.T) {
	s := &fakeAncestryStore{ancestors: map[int64][]int64{24700007: {6118003, 138875005}}}
	ids, err := AncestorsOfSet(s, 24700007)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != 24700007 {
		t.Fatalf("unexpected result: %v", ids)
	}
}

func TestTopOfSetKeepsMostGeneralMembers(t *testing.T) {
	// 3 isA 2 isA 1: {1,2,3} -> top is {1}
	s := &fakeAncestryStore{isA: map[[2]int64]bool{
		{3, 2}: true, {3, 1}: true, {2, 1}: true,
	}}
	got, err := TopOfSet(s, []int64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestBottomOfSetKeepsMostSpecificMembers(t *testing.T) {
	s := &fakeAncestryStore{isA: map[[2]int64]bool{
		{3, 2}: true, {3, 1}: true, {2, 1}: true,
	}}
	got, err := BottomOfSet(s, []int64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestQAttributeCountZeroZeroBuildsNotAny(t *testing.T) {
	q := QAttributeCount(363698007, 0, 0)
	if q == nil {
		t.Fatal("expected a non-nil query")
	}
	if _, ok := q.(*query.BooleanQuery); !ok {
		t.Fatalf("expected a boolean must-not query, got %T", q)
	}
}

func TestQAttributeCountUnboundedMatchesAll(t *testing.T) {
	q := QAttributeCount(363698007, 0, -1)
	if q == nil {
		t.Fatal("expected a non-nil query")
	}
	if _, ok := q.(*query.MatchAllQuery); !ok {
		t.Fatalf("expected a match-all query, got %T", q)
	}
}
