package index

import (
	"testing"

	"github.com/tporcham/hermes/snomed"
)

type fakeConceptStore struct {
	concepts      map[int64]*snomed.Concept
	descriptions  map[int64][]*snomed.Description
	refsets       map[int64][]int64
	parents       map[int64]map[int64]map[int64]struct{} // conceptID -> typeID -> set
	directParents map[int64]map[int64][]int64            // conceptID -> typeID -> ids
}

func (f *fakeConceptStore) Concept(id int64) (*snomed.Concept, error) { return f.concepts[id], nil }
func (f *fakeConceptStore) Descriptions(id int64) ([]*snomed.Description, error) {
	return f.descriptions[id], nil
}
func (f *fakeConceptStore) ComponentReferenceSets(id int64) ([]int64, error) {
	return f.refsets[id], nil
}
func (f *fakeConceptStore) Parents(conceptID, typeID int64) (map[int64]struct{}, error) {
	return f.parents[conceptID][typeID], nil
}
func (f *fakeConceptStore) RelationshipTypeParents(typeID int64) ([]int64, error) { return nil, nil }
func (f *fakeConceptStore) AncestorsOf(conceptID, typeID int64) ([]int64, error)  { return nil, nil }
func (f *fakeConceptStore) ParentRelationshipIDs(conceptID, typeID int64) ([]int64, error) {
	return f.directParents[conceptID][typeID], nil
}

func TestAssembleBuildsExtendedConcept(t *testing.T) {
	s := &fakeConceptStore{
		concepts: map[int64]*snomed.Concept{24700007: {ID: 24700007, Active: true}},
		descriptions: map[int64][]*snomed.Description{
			24700007: {{ID: 1, ConceptID: 24700007, Term: "Multiple sclerosis"}},
		},
		refsets: map[int64][]int64{24700007: {900000000000497000}},
		parents: map[int64]map[int64]map[int64]struct{}{
			24700007: {snomed.IsA: {6118003: struct{}{}}},
		},
		directParents: map[int64]map[int64][]int64{
			24700007: {snomed.IsA: {6118003}},
		},
	}

	ec, err := Assemble(s, 24700007)
	if err != nil {
		t.Fatal(err)
	}
	if ec.Concept.ID != 24700007 {
		t.Fatalf("unexpected concept: %+v", ec.Concept)
	}
	if len(ec.Descriptions) != 1 {
		t.Fatalf("expected 1 description, got %d", len(ec.Descriptions))
	}
	if _, ok := ec.Refsets[900000000000497000]; !ok {
		t.Fatalf("expected refset membership, got %v", ec.Refsets)
	}
	if _, ok := ec.ParentRelationships[snomed.IsA][6118003]; !ok {
		t.Fatalf("expected transitive IS-A parent, got %v", ec.ParentRelationships)
	}
	if _, ok := ec.DirectParentRelationships[snomed.IsA][6118003]; !ok {
		t.Fatalf("expected direct IS-A parent, got %v", ec.DirectParentRelationships)
	}
}

func TestRegisterRelationshipTypeIsIdempotent(t *testing.T) {
	before := len(relationshipTypes)
	RegisterRelationshipType(116676008)
	RegisterRelationshipType(116676008)
	if len(relationshipTypes) != before+1 {
		t.Fatalf("expected exactly one new entry, got %d new", len(relationshipTypes)-before)
	}
}
