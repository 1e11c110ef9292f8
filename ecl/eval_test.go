package ecl

import (
	"errors"
	"sort"
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
)

// fakeParentStore is a minimal ecl.Store fake for exercising store-side-only
// realization (ancestorOf, ancestorOrSelfOf, parentOf) without a real
// store.Store.
type fakeParentStore struct {
	parents map[int64]map[int64]struct{}
}

func (f *fakeParentStore) IsA(conceptID, ancestorID int64) (bool, error) { return false, nil }
func (f *fakeParentStore) AncestorsOf(conceptID, typeID int64) ([]int64, error) {
	return nil, nil
}
func (f *fakeParentStore) Parents(conceptID, typeID int64) (map[int64]struct{}, error) {
	return f.parents[conceptID], nil
}

func TestEvaluateDescendantOrSelfIsDisjunction(t *testing.T) {
	q, err := Evaluate(Concept(64572001))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := q.(*query.DisjunctionQuery); !ok {
		t.Fatalf("expected a disjunction query, got %T", q)
	}
}

func TestEvaluateDescendantOfIsNumericRange(t *testing.T) {
	q, err := Evaluate(Prefixed(OpDescendantOf, 64572001))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := q.(*query.NumericRangeQuery); !ok {
		t.Fatalf("expected a numeric range query, got %T", q)
	}
}

func TestEvaluateAncestorOfIsUnsupported(t *testing.T) {
	_, err := Evaluate(Prefixed(OpAncestorOf, 64572001))
	var qerr *QueryError
	if !errors.As(err, &qerr) || !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected an unsupported QueryError, got %v", err)
	}
}

func TestEvaluateRefinementGroupCardinalityIsUnsupported(t *testing.T) {
	group := []*Refinement{
		{AttributeTypeID: 363698007, Comparison: ComparisonEquals, Value: Concept(39057004),
			HasCardinality: true, Min: 1, Max: 1},
	}
	_, err := Evaluate(RefinedGroup(Concept(404684003), group))
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestEvaluateCompoundMinusIsBoolean(t *testing.T) {
	q, err := Evaluate(Minus(Concept(64572001), Concept(73211009)))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := q.(*query.BooleanQuery); !ok {
		t.Fatalf("expected a boolean query, got %T", q)
	}
}

func TestEvaluateRefinedConjoinsSubjectAndRefinement(t *testing.T) {
	node := Refined(Concept(404684003), &Refinement{
		AttributeTypeID: 363698007,
		Comparison:      ComparisonEquals,
		Value:           Concept(39057004),
	})
	q, err := Evaluate(node)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := q.(*query.ConjunctionQuery); !ok {
		t.Fatalf("expected a conjunction query, got %T", q)
	}
}

// TestRealizeParentOfReturnsDirectParents covers spec.md §4.3's unconditional
// parentOf ("&gt;!") prefix operator: realized entirely store-side, since no
// single index query expresses "concept-id is a direct parent of c".
func TestRealizeParentOfReturnsDirectParents(t *testing.T) {
	s := &fakeParentStore{parents: map[int64]map[int64]struct{}{
		64572001: {404684003: {}, 123037004: {}},
	}}
	ids, err := Realize(nil, s, Prefixed(OpParentOf, 64572001), 0)
	if err != nil {
		t.Fatal(err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	want := []int64{123037004, 404684003}
	if len(ids) != len(want) || ids[0] != want[0] || ids[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, ids)
	}
}

func TestEvaluateCardinalityZeroZeroSkipsValueQuery(t *testing.T) {
	node := &Refinement{
		AttributeTypeID: 363698007,
		HasCardinality:  true,
		Min:             0,
		Max:             0,
	}
	q, err := evaluateRefinement(node)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := q.(*query.BooleanQuery); !ok {
		t.Fatalf("expected the NOT-any boolean query, got %T", q)
	}
}

