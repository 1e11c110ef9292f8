package store

import (
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/tporcham/hermes/snomed"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ts(t *testing.T, date string) *timestamppb.Timestamp {
	t.Helper()
	d, err := time.Parse("20060102", date)
	if err != nil {
		t.Fatal(err)
	}
	return timestamppb.New(d)
}

func TestConceptDescriptionRelationshipRoundTrip(t *testing.T) {
	s := openTestStore(t)
	et := ts(t, "20170701")
	c1 := &snomed.Concept{ID: 24700007, EffectiveTime: et, Active: true, DefinitionStatusID: snomed.Primitive}
	c2 := &snomed.Concept{ID: 6118003, EffectiveTime: et, Active: true, DefinitionStatusID: snomed.Primitive}
	if err := s.PutConcepts([]*snomed.Concept{c1, c2}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Concept(24700007)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != c1.ID || !got.Active {
		t.Fatalf("unexpected concept: %+v", got)
	}
	if _, err := s.Concept(0); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	d1 := &snomed.Description{ID: 41398015, ConceptID: 24700007, EffectiveTime: et, Active: true, Term: "Multiple sclerosis"}
	d2 := &snomed.Description{ID: 1223979019, ConceptID: 24700007, EffectiveTime: et, Active: true, Term: "Disseminated sclerosis"}
	if err := s.PutDescriptions([]*snomed.Description{d1, d2}); err != nil {
		t.Fatal(err)
	}
	descs, err := s.Descriptions(24700007)
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptions, got %d", len(descs))
	}

	r1 := &snomed.Relationship{ID: 1, EffectiveTime: et, Active: true, SourceID: c1.ID, DestinationID: c2.ID, TypeID: snomed.IsA}
	if err := s.PutRelationships([]*snomed.Relationship{r1}); err != nil {
		t.Fatal(err)
	}
	parents, err := s.ParentRelationshipIDs(c1.ID, snomed.IsA)
	if err != nil {
		t.Fatal(err)
	}
	if len(parents) != 1 || parents[0] != c2.ID {
		t.Fatalf("expected [%d], got %v", c2.ID, parents)
	}
	children, err := s.ChildRelationshipIDs(c2.ID, snomed.IsA)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 1 || children[0] != c1.ID {
		t.Fatalf("expected [%d], got %v", c1.ID, children)
	}
}

func TestMaxEffectiveTimeMergeKeepsLater(t *testing.T) {
	s := openTestStore(t)
	early := ts(t, "20170101")
	late := ts(t, "20190101")

	if err := s.PutConcepts([]*snomed.Concept{{ID: 1, EffectiveTime: late, Active: true}}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutConcepts([]*snomed.Concept{{ID: 1, EffectiveTime: early, Active: false}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Concept(1)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Active {
		t.Fatal("an earlier-effective-time write must not override a later one")
	}
}

func TestAncestorClosureWalksISAGraph(t *testing.T) {
	s := openTestStore(t)
	et := ts(t, "20170701")
	rels := []*snomed.Relationship{
		{ID: 1, EffectiveTime: et, Active: true, SourceID: 24700007, DestinationID: 6118003, TypeID: snomed.IsA},
		{ID: 2, EffectiveTime: et, Active: true, SourceID: 6118003, DestinationID: snomed.Root, TypeID: snomed.IsA},
	}
	if err := s.PutRelationships(rels); err != nil {
		t.Fatal(err)
	}
	if err := s.BuildAncestorClosure(); err != nil {
		t.Fatal(err)
	}
	ancestors, err := s.AncestorsOf(24700007, snomed.IsA)
	if err != nil {
		t.Fatal(err)
	}
	want := map[int64]bool{6118003: true, snomed.Root: true}
	if len(ancestors) != len(want) {
		t.Fatalf("expected %d ancestors, got %v", len(want), ancestors)
	}
	for _, a := range ancestors {
		if !want[a] {
			t.Fatalf("unexpected ancestor %d", a)
		}
	}
	isA, err := s.IsA(24700007, snomed.Root)
	if err != nil {
		t.Fatal(err)
	}
	if !isA {
		t.Fatal("expected 24700007 IS-A Root via transitive closure")
	}
}

func TestRefsetItemRoundTripAndReification(t *testing.T) {
	s := openTestStore(t)
	et := ts(t, "20170701")
	item := &snomed.LanguageReferenceSet{
		ReferenceSetItemHeader: snomed.ReferenceSetItemHeader{
			ID: "00000000-0000-0000-0000-000000000001", EffectiveTime: et, Active: true,
			RefsetID: 900000000000508004, ReferencedComponentID: 41398015,
		},
		AcceptabilityID: snomed.Preferred,
	}
	if err := s.PutRefsetItems([]snomed.ReferenceSetItem{item}); err != nil {
		t.Fatal(err)
	}
	got, err := s.RefsetItem(item.ID)
	if err != nil {
		t.Fatal(err)
	}
	lang, ok := got.(*snomed.LanguageReferenceSet)
	if !ok {
		t.Fatalf("RefsetItem returned %T, want *snomed.LanguageReferenceSet", got)
	}
	if !lang.IsPreferred() {
		t.Fatal("expected preferred acceptability to survive the round trip")
	}
	installed, err := s.InstalledReferenceSets()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := installed[900000000000508004]; !ok {
		t.Fatal("expected refset to be marked installed")
	}
	members, err := s.ComponentFromReferenceSet(900000000000508004, 41398015)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
}

func TestAttributeIDsForRefsetOrdersByAttributeOrder(t *testing.T) {
	s := openTestStore(t)
	et := ts(t, "20170701")
	items := []snomed.ReferenceSetItem{
		&snomed.RefsetDescriptorReferenceSet{
			ReferenceSetItemHeader: snomed.ReferenceSetItemHeader{ID: "a", EffectiveTime: et, Active: true, RefsetID: snomed.RefsetDescriptorRefset, ReferencedComponentID: 900000000000497000},
			AttributeDescriptionID: 449608002, AttributeTypeID: 1, AttributeOrder: 0,
		},
		&snomed.RefsetDescriptorReferenceSet{
			ReferenceSetItemHeader: snomed.ReferenceSetItemHeader{ID: "b", EffectiveTime: et, Active: true, RefsetID: snomed.RefsetDescriptorRefset, ReferencedComponentID: 900000000000497000},
			AttributeDescriptionID: 900000000000533001, AttributeTypeID: 1, AttributeOrder: 1,
		},
	}
	if err := s.PutRefsetItems(items); err != nil {
		t.Fatal(err)
	}
	ids, err := s.AttributeIDsForRefset(900000000000497000)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 449608002 || ids[1] != 900000000000533001 {
		t.Fatalf("unexpected ordered attribute ids: %v", ids)
	}
}
