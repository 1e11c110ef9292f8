package snomed

import (
	"strconv"
	"strings"
	"unicode"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// Concept is an immutable SNOMED CT concept record (spec.md §3).
type Concept struct {
	ID                 int64                  `json:"id"`
	EffectiveTime      *timestamppb.Timestamp `json:"effectiveTime"`
	Active             bool                   `json:"active"`
	ModuleID           int64                  `json:"moduleId"`
	DefinitionStatusID int64                  `json:"definitionStatusId"`
}

// IsPrimitive reports whether c lacks a sufficient formal definition.
func (c *Concept) IsPrimitive() bool { return c.DefinitionStatusID == Primitive }

// IsFullyDefined reports whether c has a sufficient formal logic definition.
func (c *Concept) IsFullyDefined() bool { return c.DefinitionStatusID == Defined }

// Description is a term naming a concept in a particular language (spec.md §3).
type Description struct {
	ID                 int64                  `json:"id"`
	EffectiveTime      *timestamppb.Timestamp `json:"effectiveTime"`
	Active             bool                   `json:"active"`
	ModuleID           int64                  `json:"moduleId"`
	ConceptID          int64                  `json:"conceptId"`
	LanguageCode       string                 `json:"languageCode"`
	TypeID             int64                  `json:"typeId"`
	Term               string                 `json:"term"`
	CaseSignificanceID int64                  `json:"caseSignificanceId"`
}

// IsFullySpecifiedName reports whether d is the concept's FSN.
func (d *Description) IsFullySpecifiedName() bool { return d.TypeID == FullySpecifiedName }

// IsSynonym reports whether d is a synonym (candidate preferred term).
func (d *Description) IsSynonym() bool { return d.TypeID == Synonym }

// IsDefinition reports whether d is a definition, not a naming term.
func (d *Description) IsDefinition() bool { return d.TypeID == Definition }

// FoldedTerm applies the case-folded lowercase rule for d.CaseSignificanceID
// (spec.md §4.2): entire-term folding, initial-character-only folding, or no
// folding at all.
func (d *Description) FoldedTerm() string {
	switch d.CaseSignificanceID {
	case EntireTermCaseSensitive:
		return d.Term
	case EntireTermCaseInsensitive:
		return strings.ToLower(d.Term)
	case InitialCharacterCaseSensitive:
		for i, r := range d.Term {
			return string(unicode.ToLower(r)) + d.Term[i+len(string(r)):]
		}
		return d.Term
	default:
		return d.Term
	}
}

// Relationship is a directed, typed edge between two concepts (spec.md §3).
type Relationship struct {
	ID                   int64                  `json:"id"`
	EffectiveTime        *timestamppb.Timestamp `json:"effectiveTime"`
	Active               bool                   `json:"active"`
	ModuleID             int64                  `json:"moduleId"`
	SourceID             int64                  `json:"sourceId"`
	DestinationID        int64                  `json:"destinationId"`
	RelationshipGroup    int64                  `json:"relationshipGroup"`
	TypeID               int64                  `json:"typeId"`
	CharacteristicTypeID int64                  `json:"characteristicTypeId"`
	ModifierID           int64                  `json:"modifierId"`
}

// IsIsA reports whether r is a (stated or inferred) IS-A edge.
func (r *Relationship) IsIsA() bool { return r.TypeID == IsA }

// RefsetKind is the tagged variant of a ReferenceSetItem, determined by
// reification against the refset's RefsetDescriptor attribute sequence
// (spec.md §4.1, §9).
type RefsetKind int

const (
	KindSimple RefsetKind = iota
	KindAssociation
	KindLanguage
	KindSimpleMap
	KindComplexMap
	KindExtendedMap
	KindAttributeValue
	KindOWLExpression
	KindModuleDependency
	KindRefsetDescriptor
)

func (k RefsetKind) String() string {
	switch k {
	case KindSimple:
		return "Simple"
	case KindAssociation:
		return "Association"
	case KindLanguage:
		return "Language"
	case KindSimpleMap:
		return "SimpleMap"
	case KindComplexMap:
		return "ComplexMap"
	case KindExtendedMap:
		return "ExtendedMap"
	case KindAttributeValue:
		return "AttributeValue"
	case KindOWLExpression:
		return "OWLExpression"
	case KindModuleDependency:
		return "ModuleDependency"
	case KindRefsetDescriptor:
		return "RefsetDescriptor"
	default:
		return "Unknown"
	}
}

// ReferenceSetItemHeader carries the six fields shared by every reference
// set row shape (spec.md §3).
type ReferenceSetItemHeader struct {
	ID                    string                 `json:"id"`
	EffectiveTime         *timestamppb.Timestamp `json:"effectiveTime"`
	Active                bool                   `json:"active"`
	ModuleID              int64                  `json:"moduleId"`
	RefsetID              int64                  `json:"refsetId"`
	ReferencedComponentID int64                  `json:"referencedComponentId"`
}

// ReferenceSetItem is implemented by every concrete refset-row variant.
// A single trait over a closed set of concrete types (spec.md §9) beats
// deep inheritance: each variant owns its own serialization and field
// layout, and callers type-switch on Kind() to reach the specific fields.
type ReferenceSetItem interface {
	Header() *ReferenceSetItemHeader
	Kind() RefsetKind
}

// SimpleReferenceSet marks referencedComponentId as a member of refsetId,
// with no additional fields.
type SimpleReferenceSet struct {
	ReferenceSetItemHeader
}

func (r *SimpleReferenceSet) Header() *ReferenceSetItemHeader { return &r.ReferenceSetItemHeader }
func (r *SimpleReferenceSet) Kind() RefsetKind                { return KindSimple }

// AssociationReferenceSet records a historical association (e.g. SAME AS,
// REPLACED BY) from referencedComponentId to TargetComponentID.
type AssociationReferenceSet struct {
	ReferenceSetItemHeader
	TargetComponentID int64 `json:"targetComponentId"`
}

func (r *AssociationReferenceSet) Header() *ReferenceSetItemHeader { return &r.ReferenceSetItemHeader }
func (r *AssociationReferenceSet) Kind() RefsetKind                { return KindAssociation }

// LanguageReferenceSet records the acceptability of a description within a
// dialect/language refset.
type LanguageReferenceSet struct {
	ReferenceSetItemHeader
	AcceptabilityID int64 `json:"acceptabilityId"`
}

func (r *LanguageReferenceSet) Header() *ReferenceSetItemHeader { return &r.ReferenceSetItemHeader }
func (r *LanguageReferenceSet) Kind() RefsetKind                { return KindLanguage }

// IsPreferred reports whether this membership marks the description preferred.
func (r *LanguageReferenceSet) IsPreferred() bool { return r.AcceptabilityID == Preferred }

// IsAcceptable reports whether this membership marks the description acceptable.
func (r *LanguageReferenceSet) IsAcceptable() bool { return r.AcceptabilityID == Acceptable }

// IsUnacceptable reports whether this membership is neither preferred nor acceptable.
func (r *LanguageReferenceSet) IsUnacceptable() bool {
	return !r.IsPreferred() && !r.IsAcceptable()
}

// SimpleMapReferenceSet maps referencedComponentId to a single external code.
type SimpleMapReferenceSet struct {
	ReferenceSetItemHeader
	MapTarget string `json:"mapTarget"`
}

func (r *SimpleMapReferenceSet) Header() *ReferenceSetItemHeader { return &r.ReferenceSetItemHeader }
func (r *SimpleMapReferenceSet) Kind() RefsetKind                { return KindSimpleMap }

// ComplexMapReferenceSet maps referencedComponentId to an external code with
// grouping, priority, and advice metadata.
type ComplexMapReferenceSet struct {
	ReferenceSetItemHeader
	MapGroup      int64  `json:"mapGroup"`
	MapPriority   int64  `json:"mapPriority"`
	MapRule       string `json:"mapRule"`
	MapAdvice     string `json:"mapAdvice"`
	MapTarget     string `json:"mapTarget"`
	CorrelationID int64  `json:"correlationId"`
}

func (r *ComplexMapReferenceSet) Header() *ReferenceSetItemHeader { return &r.ReferenceSetItemHeader }
func (r *ComplexMapReferenceSet) Kind() RefsetKind                { return KindComplexMap }

// ExtendedMapReferenceSet is a ComplexMapReferenceSet with an additional
// map category, used by the extended map refset shape.
type ExtendedMapReferenceSet struct {
	ComplexMapReferenceSet
	MapCategoryID int64 `json:"mapCategoryId"`
}

func (r *ExtendedMapReferenceSet) Kind() RefsetKind { return KindExtendedMap }

// AttributeValueReferenceSet attaches an arbitrary concept-valued attribute
// to referencedComponentId (used by e.g. the lateralisable refset).
type AttributeValueReferenceSet struct {
	ReferenceSetItemHeader
	ValueID int64 `json:"valueId"`
}

func (r *AttributeValueReferenceSet) Header() *ReferenceSetItemHeader { return &r.ReferenceSetItemHeader }
func (r *AttributeValueReferenceSet) Kind() RefsetKind                { return KindAttributeValue }

// OWLExpressionReferenceSet carries an OWL axiom or expression as text.
// Parsed and stored, never indexed or evaluated (spec.md §9 open question).
type OWLExpressionReferenceSet struct {
	ReferenceSetItemHeader
	OWLExpression string `json:"owlExpression"`
}

func (r *OWLExpressionReferenceSet) Header() *ReferenceSetItemHeader { return &r.ReferenceSetItemHeader }
func (r *OWLExpressionReferenceSet) Kind() RefsetKind                { return KindOWLExpression }

// ModuleDependencyReferenceSet declares a module dependency as of a pair of
// effective times.
type ModuleDependencyReferenceSet struct {
	ReferenceSetItemHeader
	SourceEffectiveTime *timestamppb.Timestamp `json:"sourceEffectiveTime"`
	TargetEffectiveTime *timestamppb.Timestamp `json:"targetEffectiveTime"`
}

func (r *ModuleDependencyReferenceSet) Header() *ReferenceSetItemHeader {
	return &r.ReferenceSetItemHeader
}
func (r *ModuleDependencyReferenceSet) Kind() RefsetKind { return KindModuleDependency }

// RefsetDescriptorReferenceSet declares one attribute (in order) of the
// refset named by ReferencedComponentID, driving C2's reification table.
type RefsetDescriptorReferenceSet struct {
	ReferenceSetItemHeader
	AttributeDescriptionID int64 `json:"attributeDescriptionId"`
	AttributeTypeID        int64 `json:"attributeTypeId"`
	AttributeOrder         int64 `json:"attributeOrder"`
}

func (r *RefsetDescriptorReferenceSet) Header() *ReferenceSetItemHeader {
	return &r.ReferenceSetItemHeader
}
func (r *RefsetDescriptorReferenceSet) Kind() RefsetKind { return KindRefsetDescriptor }

// ConcreteValueKind distinguishes the shape of a concrete value's first
// character (spec.md §3).
type ConcreteValueKind int

const (
	ConcreteValueOther ConcreteValueKind = iota
	ConcreteValueNumeric
	ConcreteValueString
)

// ConcreteValue is a relationship's destination when it targets a literal
// rather than a concept (introduced by the MRCM concrete-domains model).
type ConcreteValue struct {
	Kind   ConcreteValueKind
	Number float64
	Text   string
}

// ParseConcreteValue decodes a raw concrete-value string per its leading
// sigil: '#' numeric, '"' quoted string, otherwise treated as opaque text.
func ParseConcreteValue(s string) ConcreteValue {
	if len(s) == 0 {
		return ConcreteValue{Kind: ConcreteValueOther}
	}
	switch s[0] {
	case '#':
		n, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return ConcreteValue{Kind: ConcreteValueOther, Text: s}
		}
		return ConcreteValue{Kind: ConcreteValueNumeric, Number: n}
	case '"':
		return ConcreteValue{Kind: ConcreteValueString, Text: strings.Trim(s, `"`)}
	default:
		return ConcreteValue{Kind: ConcreteValueOther, Text: s}
	}
}

// ConceptAttribute is one concrete-valued attribute found on a concept via a
// relationship whose destination is a concrete value rather than a concept.
type ConceptAttribute struct {
	TypeID int64
	Value  ConcreteValue
}

// ExtendedConcept is the denormalized, derived (not persisted raw) view of a
// concept assembled by C6 for indexing and fast lookup (spec.md §3).
type ExtendedConcept struct {
	Concept *Concept
	// Descriptions holds every description (any language, active or not) for this concept.
	Descriptions []*Description
	// ParentRelationships maps relationship typeId to the transitive set of
	// destination concept ids reachable under that type (IS-A subsumption
	// applied to non-IS-A types per spec.md §4.2's parents() formula).
	ParentRelationships map[int64]map[int64]struct{}
	// DirectParentRelationships maps relationship typeId to only the
	// directly-asserted destination concept ids.
	DirectParentRelationships map[int64]map[int64]struct{}
	// Refsets is the set of refset ids this concept is a member of.
	Refsets map[int64]struct{}
	// ConcreteValues holds attribute/literal pairs found via concrete-valued relationships.
	ConcreteValues []ConceptAttribute
}
