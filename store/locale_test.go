package store

import (
	"testing"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/tporcham/hermes/snomed"
)

func installRefset(t *testing.T, s *Store, refsetID, componentID int64) {
	t.Helper()
	item := &snomed.SimpleReferenceSet{ReferenceSetItemHeader: snomed.ReferenceSetItemHeader{
		ID: "x", EffectiveTime: timestamppb.Now(), Active: true, RefsetID: refsetID, ReferencedComponentID: componentID,
	}}
	if err := s.PutRefsetItems([]snomed.ReferenceSetItem{item}); err != nil {
		t.Fatal(err)
	}
}

func TestLocaleResolverMatchesInstalledRefsets(t *testing.T) {
	s := openTestStore(t)
	installRefset(t, s, 999001261000000100, 1) // British English
	installRefset(t, s, 900000000000509007, 2) // American English

	resolver, err := NewLocaleResolver(s)
	if err != nil {
		t.Fatal(err)
	}
	refsets, err := resolver.Resolve("en-GB,en;q=0.9")
	if err != nil {
		t.Fatal(err)
	}
	if len(refsets) == 0 || refsets[0] != 999001261000000100 {
		t.Fatalf("expected British English refset first, got %v", refsets)
	}
}

func TestLocaleResolverShortcut(t *testing.T) {
	s := openTestStore(t)
	installRefset(t, s, 999001261000000100, 1)
	resolver, err := NewLocaleResolver(s)
	if err != nil {
		t.Fatal(err)
	}
	refsets, err := resolver.Resolve("en-x-999001261000000100")
	if err != nil {
		t.Fatal(err)
	}
	if len(refsets) != 1 || refsets[0] != 999001261000000100 {
		t.Fatalf("expected shortcut refset, got %v", refsets)
	}
}

func TestLocaleResolverIgnoresUninstalledLanguages(t *testing.T) {
	s := openTestStore(t)
	resolver, err := NewLocaleResolver(s)
	if err != nil {
		t.Fatal(err)
	}
	refsets, err := resolver.Resolve("fr")
	if err != nil {
		t.Fatal(err)
	}
	if len(refsets) != 0 {
		t.Fatalf("expected no refsets for an uninstalled language, got %v", refsets)
	}
}
