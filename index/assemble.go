// Package index implements C6 (extended-concept assembly), C7 (the search
// document schema and writer), C8 (the query algebra), and C10 (the search
// ranker) from spec.md §4.3. Grounded on terminology/service.go (C6's
// concurrent field population) and terminology/bleve.go (C7/C10's index
// writer and search shape), expanded from the teacher's flat
// document{ID, Term, Keywords[]string} schema into the rich per-field
// schema spec.md §4.3 requires.
package index

import (
	"sync"

	"github.com/tporcham/hermes/snomed"
)

// ConceptStore is the subset of store.Store the assembler reads from.
type ConceptStore interface {
	Concept(conceptID int64) (*snomed.Concept, error)
	Descriptions(conceptID int64) ([]*snomed.Description, error)
	ComponentReferenceSets(referencedComponentID int64) ([]int64, error)
	Parents(conceptID, typeID int64) (map[int64]struct{}, error)
	RelationshipTypeParents(typeID int64) ([]int64, error)
	AncestorsOf(conceptID, typeID int64) ([]int64, error)
	ParentRelationshipIDs(conceptID, typeID int64) ([]int64, error)
}

// relationshipTypes enumerates the relationship types the assembler
// materializes transitive/direct parent sets for. IS-A is always included;
// attribute types observed during ingestion would in a complete deployment
// be discovered from the stated MRCM reference sets, but a fixed seed list
// keeps C6 decoupled from a not-yet-built MRCM reader (spec.md Non-goals
// exclude MRCM validation).
var relationshipTypes = []int64{snomed.IsA}

// RegisterRelationshipType adds a relationship type to the set C6
// materializes parent/child fields for, beyond the built-in IS-A. It takes
// effect for indexes built after the call. Nothing else in this module calls
// it, so an index built by the terminology facade carries per-type fields
// for IS-A only.
func RegisterRelationshipType(typeID int64) {
	for _, t := range relationshipTypes {
		if t == typeID {
			return
		}
	}
	relationshipTypes = append(relationshipTypes, typeID)
}

// Assemble builds the denormalized ExtendedConcept for conceptID, populating
// descriptions, transitive and direct parent relationships (per registered
// type), and refset memberships concurrently, mirroring
// terminology/service.go's parallel field-population pattern. The
// transitive set for a type holds every destination together with that
// destination's IS-A ancestors. ConcreteValues is left empty.
func Assemble(s ConceptStore, conceptID int64) (*snomed.ExtendedConcept, error) {
	concept, err := s.Concept(conceptID)
	if err != nil {
		return nil, err
	}
	ec := &snomed.ExtendedConcept{
		Concept:                   concept,
		ParentRelationships:       make(map[int64]map[int64]struct{}),
		DirectParentRelationships: make(map[int64]map[int64]struct{}),
		Refsets:                   make(map[int64]struct{}),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	errs := make([]error, 0, 3)
	recordErr := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		descs, err := s.Descriptions(conceptID)
		if err != nil {
			recordErr(err)
			return
		}
		mu.Lock()
		ec.Descriptions = descs
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		refsets, err := s.ComponentReferenceSets(conceptID)
		if err != nil {
			recordErr(err)
			return
		}
		mu.Lock()
		for _, r := range refsets {
			ec.Refsets[r] = struct{}{}
		}
		mu.Unlock()
	}()

	for _, typeID := range relationshipTypes {
		typeID := typeID
		wg.Add(1)
		go func() {
			defer wg.Done()
			destinations, err := s.Parents(conceptID, typeID)
			if err != nil {
				recordErr(err)
				return
			}
			transitive := make(map[int64]struct{}, len(destinations))
			for dest := range destinations {
				transitive[dest] = struct{}{}
				ancestors, err := s.AncestorsOf(dest, snomed.IsA)
				if err != nil {
					recordErr(err)
					return
				}
				for _, a := range ancestors {
					transitive[a] = struct{}{}
				}
			}
			direct, err := s.ParentRelationshipIDs(conceptID, typeID)
			if err != nil {
				recordErr(err)
				return
			}
			directSet := make(map[int64]struct{}, len(direct))
			for _, id := range direct {
				directSet[id] = struct{}{}
			}
			mu.Lock()
			ec.ParentRelationships[typeID] = transitive
			ec.DirectParentRelationships[typeID] = directSet
			mu.Unlock()
		}()
	}

	wg.Wait()
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return ec, nil
}
