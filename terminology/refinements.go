package terminology

import "github.com/tporcham/hermes/snomed"

// ConceptReference is a lightweight (id, preferred term) pair, generally
// more useful to a caller than the bare concept id.
type ConceptReference struct {
	ConceptID int64
	Term      string
}

// Refinement pairs an attribute concept with the value it takes for a given
// concept, e.g. {Finding site, Heart structure}.
type Refinement struct {
	Attribute ConceptReference
	Value     ConceptReference
}

// RefinementResponse lists the possible refinements for a concept: every
// non-IS-A relationship it carries, plus a synthesized laterality
// refinement for any lateralisable body structure.
type RefinementResponse struct {
	Concept     *snomed.Concept
	Refinements []Refinement
}

// Refinements determines the possible refinements for conceptID: its
// non-IS-A relationships, deduplicated by destination, plus a synthesized
// Laterality/Side refinement wherever a finding/procedure site is
// lateralisable. Grounded on terminology/refinements.go, adapted to the new
// Service/store method names.
//
// TODO: this would be better served by normalising the concept into a
// postcoordinated expression and deriving refinements from that, rather
// than from the stated relationships directly.
func (svc *Service) Refinements(conceptID int64, locale string) (*RefinementResponse, error) {
	c, err := svc.Concept(conceptID)
	if err != nil {
		return nil, err
	}
	rels, err := svc.ParentRelationships(conceptID)
	if err != nil {
		return nil, err
	}

	var refinements []Refinement
	seenDestinations := make(map[int64]struct{})
	seenLaterality := false
	for _, rel := range rels {
		if !rel.Active || rel.TypeID == snomed.IsA {
			continue
		}
		if _, done := seenDestinations[rel.DestinationID]; done {
			continue
		}
		seenDestinations[rel.DestinationID] = struct{}{}

		attribute, err := svc.conceptReference(rel.TypeID, locale)
		if err != nil {
			return nil, err
		}
		value, err := svc.conceptReference(rel.DestinationID, locale)
		if err != nil {
			return nil, err
		}
		refinements = append(refinements, Refinement{Attribute: attribute, Value: value})

		isSiteAttribute := rel.TypeID == snomed.BodyStructure || rel.TypeID == snomed.ProcedureSiteDirect || rel.TypeID == snomed.FindingSite
		if isSiteAttribute && !seenLaterality {
			lateralisable, err := svc.IsLateralisable(rel.DestinationID)
			if err != nil {
				return nil, err
			}
			if lateralisable {
				seenLaterality = true
				laterality, err := svc.conceptReference(snomed.Laterality, locale)
				if err != nil {
					return nil, err
				}
				side, err := svc.conceptReference(snomed.Side, locale)
				if err != nil {
					return nil, err
				}
				refinements = append(refinements, Refinement{Attribute: laterality, Value: side})
			}
		}
	}
	return &RefinementResponse{Concept: c, Refinements: refinements}, nil
}

// IsLateralisable reports whether id carries any active membership of the
// lateralisable body-structure reference set.
func (svc *Service) IsLateralisable(id int64) (bool, error) {
	items, err := svc.ComponentRefsetItems(id, snomed.LateralisableReferenceSet)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.Header().Active {
			return true, nil
		}
	}
	return false, nil
}

func (svc *Service) conceptReference(conceptID int64, locale string) (ConceptReference, error) {
	d, err := svc.PreferredSynonym(conceptID, locale)
	if err != nil {
		return ConceptReference{}, err
	}
	return ConceptReference{ConceptID: conceptID, Term: d.Term}, nil
}
