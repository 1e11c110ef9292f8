package index

import (
	"math"
	"strconv"

	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/tporcham/hermes/snomed"
)

// DocumentStore is the subset of store.Store the document builder reads
// from, beyond ConceptStore: description-level refset memberships, needed
// to compute preferred-in/acceptable-in and the per-refset preferred-term
// fields (spec.md §4.3's document model table).
type DocumentStore interface {
	ConceptStore
	ComponentFromReferenceSet(refsetID, componentID int64) ([]snomed.ReferenceSetItem, error)
}

// BuildIndexMapping constructs the C7 document schema: explicit mappings
// for the fixed fields spec.md §4.3 names, with dynamic field discovery
// left on for the per-relationship-type and per-refset fields whose names
// are only known at index time. Grounded on terminology/bleve.go's
// NewBleveIndex, expanded from its flat Term/Keywords pair into this rich
// per-field schema.
func BuildIndexMapping() *mapping.IndexMapping {
	im := mapping.NewIndexMapping()
	dm := mapping.NewDocumentMapping()
	dm.Dynamic = true // per-typeId and per-refsetId fields are named at index time
	im.DefaultMapping = dm

	term := mapping.NewTextFieldMapping()
	term.Store = true
	term.IncludeInAll = false
	dm.AddFieldMappingsAt("term", term)

	nterm := mapping.NewTextFieldMapping()
	nterm.Store = false
	nterm.Analyzer = "en"
	dm.AddFieldMappingsAt("nterm", nterm)

	lengthBoost := mapping.NewNumericFieldMapping()
	lengthBoost.Store = false
	lengthBoost.DocValues = true
	dm.AddFieldMappingsAt("length-boost", lengthBoost)

	storedNumeric := mapping.NewNumericFieldMapping()
	storedNumeric.Store = true
	dm.AddFieldMappingsAt("id", storedNumeric)
	dm.AddFieldMappingsAt("concept-id", storedNumeric)

	filterNumeric := mapping.NewNumericFieldMapping()
	filterNumeric.Store = false
	dm.AddFieldMappingsAt("description-id", filterNumeric)
	dm.AddFieldMappingsAt("module-id", filterNumeric)
	dm.AddFieldMappingsAt("type-id", filterNumeric)
	dm.AddFieldMappingsAt("preferred-in", filterNumeric)
	dm.AddFieldMappingsAt("acceptable-in", filterNumeric)
	dm.AddFieldMappingsAt("concept-refsets", filterNumeric)
	dm.AddFieldMappingsAt("description-refsets", filterNumeric)

	active := mapping.NewTextFieldMapping()
	active.Analyzer = keyword.Name
	active.Store = false
	dm.AddFieldMappingsAt("concept-active", active)
	dm.AddFieldMappingsAt("description-active", active)

	return im
}

func boolTerm(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func toFloat64s(ids []int64) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = float64(id)
	}
	return out
}

func setOf(m map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}

// BuildDocuments assembles one document per description of ec, per
// spec.md §4.3's table. The returned map keys are bleve document ids
// (the description id, decimal).
func BuildDocuments(s DocumentStore, ec *snomed.ExtendedConcept) (map[string]map[string]interface{}, error) {
	docs := make(map[string]map[string]interface{}, len(ec.Descriptions))
	conceptRefsets := toFloat64s(setOf(ec.Refsets))

	for _, d := range ec.Descriptions {
		doc := map[string]interface{}{
			"term":               d.Term,
			"nterm":              d.FoldedTerm(),
			"length-boost":       1 / math.Sqrt(float64(len(d.Term))),
			"id":                 float64(d.ID),
			"description-id":     float64(d.ID),
			"concept-id":         float64(ec.Concept.ID),
			"module-id":          float64(d.ModuleID),
			"type-id":            float64(d.TypeID),
			"concept-active":     boolTerm(ec.Concept.Active),
			"description-active": boolTerm(d.Active),
			"concept-refsets":    conceptRefsets,
		}

		for typeID, transitive := range ec.ParentRelationships {
			doc[strconv.FormatInt(typeID, 10)] = toFloat64s(setOf(transitive))
		}
		for typeID, direct := range ec.DirectParentRelationships {
			doc["d"+strconv.FormatInt(typeID, 10)] = toFloat64s(setOf(direct))
			doc["c"+strconv.FormatInt(typeID, 10)] = float64(len(direct))
		}
		for _, attr := range ec.ConcreteValues {
			key := "v" + strconv.FormatInt(attr.TypeID, 10)
			if attr.Value.Kind == snomed.ConcreteValueNumeric {
				doc[key] = attr.Value.Number
			} else {
				doc[key] = attr.Value.Text
			}
		}

		descRefsets, err := s.ComponentReferenceSets(d.ID)
		if err != nil {
			return nil, err
		}
		doc["description-refsets"] = toFloat64s(descRefsets)

		var preferredIn, acceptableIn []int64
		for _, refsetID := range descRefsets {
			items, err := s.ComponentFromReferenceSet(refsetID, d.ID)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				lang, ok := item.(*snomed.LanguageReferenceSet)
				if !ok {
					continue
				}
				switch {
				case lang.IsPreferred():
					preferredIn = append(preferredIn, refsetID)
					doc[strconv.FormatInt(refsetID, 10)] = d.Term
				case lang.IsAcceptable():
					acceptableIn = append(acceptableIn, refsetID)
				}
			}
		}
		doc["preferred-in"] = toFloat64s(preferredIn)
		doc["acceptable-in"] = toFloat64s(acceptableIn)

		docs[strconv.FormatInt(d.ID, 10)] = doc
	}
	return docs, nil
}
