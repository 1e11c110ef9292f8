package terminology_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tporcham/hermes/snomed"
	"github.com/tporcham/hermes/store"
	"github.com/tporcham/hermes/terminology"
)

// TestRefinementsIncludesSynthesizedLaterality is spec.md §8 scenario 3's
// sibling: a finding-site refinement on a lateralisable body structure
// should synthesize an additional Laterality/Side refinement.
func TestRefinementsIncludesSynthesizedLaterality(t *testing.T) {
	path := t.TempDir()
	s, err := store.Open(filepath.Join(path, "store.db"))
	if err != nil {
		t.Fatal(err)
	}
	et := ts(t, "20170701")

	disorder := int64(301076002)
	heartStructure := int64(80891009)

	concepts := []*snomed.Concept{
		{ID: disorder, EffectiveTime: et, Active: true, DefinitionStatusID: snomed.Primitive},
		{ID: heartStructure, EffectiveTime: et, Active: true, DefinitionStatusID: snomed.Primitive},
		{ID: snomed.FindingSite, EffectiveTime: et, Active: true, DefinitionStatusID: snomed.Primitive},
		{ID: snomed.Laterality, EffectiveTime: et, Active: true, DefinitionStatusID: snomed.Primitive},
		{ID: snomed.Side, EffectiveTime: et, Active: true, DefinitionStatusID: snomed.Primitive},
	}
	if err := s.PutConcepts(concepts); err != nil {
		t.Fatal(err)
	}

	descs := []*snomed.Description{
		{ID: 10, ConceptID: disorder, EffectiveTime: et, Active: true, TypeID: snomed.Synonym, Term: "Disorder of heart"},
		{ID: 11, ConceptID: heartStructure, EffectiveTime: et, Active: true, TypeID: snomed.Synonym, Term: "Heart structure"},
		{ID: 12, ConceptID: snomed.FindingSite, EffectiveTime: et, Active: true, TypeID: snomed.Synonym, Term: "Finding site"},
		{ID: 13, ConceptID: snomed.Laterality, EffectiveTime: et, Active: true, TypeID: snomed.Synonym, Term: "Laterality"},
		{ID: 14, ConceptID: snomed.Side, EffectiveTime: et, Active: true, TypeID: snomed.Synonym, Term: "Side"},
	}
	if err := s.PutDescriptions(descs); err != nil {
		t.Fatal(err)
	}

	rels := []*snomed.Relationship{
		{ID: 100, EffectiveTime: et, Active: true, SourceID: disorder, DestinationID: heartStructure, TypeID: snomed.FindingSite},
	}
	if err := s.PutRelationships(rels); err != nil {
		t.Fatal(err)
	}

	refsetItems := []snomed.ReferenceSetItem{
		&snomed.AttributeValueReferenceSet{
			ReferenceSetItemHeader: snomed.ReferenceSetItemHeader{
				ID: "00000000-0000-0000-0000-0000000000a1", EffectiveTime: et, Active: true,
				RefsetID: snomed.LateralisableReferenceSet, ReferencedComponentID: heartStructure,
			},
		},
	}
	if err := s.PutRefsetItems(refsetItems); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	svc, err := terminology.Open(path, false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })
	if err := svc.PerformPrecomputations(context.Background()); err != nil {
		t.Fatal(err)
	}

	lateralisable, err := svc.IsLateralisable(heartStructure)
	if err != nil {
		t.Fatal(err)
	}
	if !lateralisable {
		t.Fatal("expected heart structure to be lateralisable")
	}

	resp, err := svc.Refinements(disorder, "en-US")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Refinements) != 2 {
		t.Fatalf("expected a finding-site refinement plus a synthesized laterality one, got %+v", resp.Refinements)
	}
	var sawFindingSite, sawLaterality bool
	for _, r := range resp.Refinements {
		switch r.Attribute.ConceptID {
		case snomed.FindingSite:
			sawFindingSite = true
			if r.Value.ConceptID != heartStructure {
				t.Fatalf("expected finding site value %d, got %d", heartStructure, r.Value.ConceptID)
			}
		case snomed.Laterality:
			sawLaterality = true
			if r.Value.ConceptID != snomed.Side {
				t.Fatalf("expected laterality value %d, got %d", snomed.Side, r.Value.ConceptID)
			}
		}
	}
	if !sawFindingSite || !sawLaterality {
		t.Fatalf("expected both a finding-site and a laterality refinement, got %+v", resp.Refinements)
	}
}
