package index

import (
	"testing"

	"github.com/tporcham/hermes/snomed"
)

type fakeDocumentStore struct {
	fakeConceptStore
	membership map[int64][]snomed.ReferenceSetItem
}

func (f *fakeDocumentStore) ComponentFromReferenceSet(refsetID, componentID int64) ([]snomed.ReferenceSetItem, error) {
	var out []snomed.ReferenceSetItem
	for _, item := range f.membership[componentID] {
		if item.Header().RefsetID == refsetID {
			out = append(out, item)
		}
	}
	return out, nil
}

func TestBuildDocumentsPopulatesFixedAndDynamicFields(t *testing.T) {
	descID := int64(41398015)
	conceptID := int64(24700007)
	s := &fakeDocumentStore{
		fakeConceptStore: fakeConceptStore{
			concepts: map[int64]*snomed.Concept{conceptID: {ID: conceptID, Active: true}},
			refsets:  map[int64][]int64{descID: {900000000000508004}},
		},
		membership: map[int64][]snomed.ReferenceSetItem{
			descID: {
				&snomed.LanguageReferenceSet{
					ReferenceSetItemHeader: snomed.ReferenceSetItemHeader{
						RefsetID: 900000000000508004, ReferencedComponentID: descID,
					},
					AcceptabilityID: snomed.Preferred,
				},
			},
		},
	}
	ec := &snomed.ExtendedConcept{
		Concept: s.concepts[conceptID],
		Descriptions: []*snomed.Description{
			{ID: descID, ConceptID: conceptID, Term: "Multiple sclerosis", TypeID: snomed.Synonym, Active: true},
		},
		ParentRelationships: map[int64]map[int64]struct{}{
			snomed.IsA: {6118003: struct{}{}},
		},
		DirectParentRelationships: map[int64]map[int64]struct{}{
			snomed.IsA: {6118003: struct{}{}},
		},
		Refsets: map[int64]struct{}{900000000000497000: {}},
	}

	docs, err := BuildDocuments(s, ec)
	if err != nil {
		t.Fatal(err)
	}
	doc, ok := docs["41398015"]
	if !ok {
		t.Fatalf("expected a document keyed by description id, got %v", docs)
	}
	if doc["term"] != "Multiple sclerosis" {
		t.Fatalf("unexpected term: %v", doc["term"])
	}
	if doc["concept-active"] != "true" {
		t.Fatalf("unexpected concept-active: %v", doc["concept-active"])
	}
	transitive, ok := doc["116680003"].([]interface{})
	if !ok || len(transitive) != 1 || transitive[0] != float64(6118003) {
		t.Fatalf("unexpected transitive parents field: %v", doc["116680003"])
	}
	if doc["c116680003"] != float64(1) {
		t.Fatalf("unexpected direct-parent count: %v", doc["c116680003"])
	}
	if doc["900000000000508004"] != "Multiple sclerosis" {
		t.Fatalf("expected stored preferred synonym for the installed refset, got %v", doc["900000000000508004"])
	}
}
