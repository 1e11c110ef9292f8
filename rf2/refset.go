package rf2

import (
	"fmt"

	"github.com/tporcham/hermes/snomed"
)

// refsetSignature is one row of the reification table (spec.md §4.1): a
// prefix of attribute-description concept ids, from the refset's own
// RefsetDescriptor entries, that identifies its concrete row shape.
type refsetSignature struct {
	prefix []int64
	kind   snomed.RefsetKind
}

// signatures is checked longest-prefix-first so that, e.g., ExtendedMap
// (a superset of ComplexMap's prefix) is preferred over ComplexMap when both
// match.
var signatures = []refsetSignature{
	{[]int64{900000000000500006, 900000000000505001, 1193546000, 609330002}, snomed.KindExtendedMap},
	{[]int64{900000000000500006, 900000000000505001, 1193546000}, snomed.KindComplexMap},
	{[]int64{900000000000500006, 900000000000505001}, snomed.KindSimpleMap},
	{[]int64{449608002, 900000000000533001}, snomed.KindAssociation},
	{[]int64{449608002, 900000000000511003}, snomed.KindLanguage},
	{[]int64{449608002, 900000000000491004}, snomed.KindAttributeValue},
	{[]int64{449608002, 762677007}, snomed.KindOWLExpression},
	{[]int64{900000000000535008, 900000000000536009, 900000000000537000}, snomed.KindModuleDependency},
}

func hasPrefix(ids, prefix []int64) bool {
	if len(ids) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if ids[i] != p {
			return false
		}
	}
	return true
}

// Classify maps a refset's ordered RefsetDescriptor attribute-description
// ids to its concrete RefsetKind. An empty or unrecognized sequence yields
// KindSimple: a refset declared with no extra attributes (or whose
// descriptor has not yet been ingested) is treated as a plain membership set.
func Classify(attributeDescriptionIDs []int64) snomed.RefsetKind {
	for _, sig := range signatures {
		if hasPrefix(attributeDescriptionIDs, sig.prefix) {
			return sig.kind
		}
	}
	return snomed.KindSimple
}

// ClassifyRefsetDescriptor recognizes the RefsetDescriptor refset itself
// (900000000000456007), whose rows describe other refsets' shapes rather
// than participating in one themselves. Descendants of that concept are not
// recognized.
func ClassifyRefsetDescriptor(refsetID int64) bool {
	return refsetID == snomed.RefsetDescriptorRefset
}

// Reify converts a GenericRefsetRow into the concrete snomed.ReferenceSetItem
// variant named by kind, interpreting row.Fields according to that variant's
// known layout (spec.md §4.1, §3).
func Reify(row *GenericRefsetRow, kind snomed.RefsetKind) (snomed.ReferenceSetItem, error) {
	h := row.Header
	f := row.Fields
	need := func(n int) error {
		if len(f) < n {
			return fmt.Errorf("refset kind %s needs %d fields, got %d", kind, n, len(f))
		}
		return nil
	}
	switch kind {
	case snomed.KindSimple:
		return &snomed.SimpleReferenceSet{ReferenceSetItemHeader: h}, nil

	case snomed.KindAssociation:
		if err := need(1); err != nil {
			return nil, err
		}
		target, err := parseInt(f[0])
		if err != nil {
			return nil, err
		}
		return &snomed.AssociationReferenceSet{ReferenceSetItemHeader: h, TargetComponentID: target}, nil

	case snomed.KindLanguage:
		if err := need(1); err != nil {
			return nil, err
		}
		acc, err := parseInt(f[0])
		if err != nil {
			return nil, err
		}
		return &snomed.LanguageReferenceSet{ReferenceSetItemHeader: h, AcceptabilityID: acc}, nil

	case snomed.KindSimpleMap:
		if err := need(1); err != nil {
			return nil, err
		}
		return &snomed.SimpleMapReferenceSet{ReferenceSetItemHeader: h, MapTarget: f[0]}, nil

	case snomed.KindComplexMap, snomed.KindExtendedMap:
		if err := need(6); err != nil {
			return nil, err
		}
		mapGroup, err := parseInt(f[0])
		if err != nil {
			return nil, err
		}
		mapPriority, err := parseInt(f[1])
		if err != nil {
			return nil, err
		}
		correlationID, err := parseInt(f[5])
		if err != nil {
			return nil, err
		}
		cm := snomed.ComplexMapReferenceSet{
			ReferenceSetItemHeader: h,
			MapGroup:               mapGroup,
			MapPriority:            mapPriority,
			MapRule:                f[2],
			MapAdvice:              f[3],
			MapTarget:              f[4],
			CorrelationID:          correlationID,
		}
		if kind == snomed.KindComplexMap {
			return &cm, nil
		}
		if err := need(7); err != nil {
			return nil, err
		}
		mapCategoryID, err := parseInt(f[6])
		if err != nil {
			return nil, err
		}
		return &snomed.ExtendedMapReferenceSet{ComplexMapReferenceSet: cm, MapCategoryID: mapCategoryID}, nil

	case snomed.KindAttributeValue:
		if err := need(1); err != nil {
			return nil, err
		}
		value, err := parseInt(f[0])
		if err != nil {
			return nil, err
		}
		return &snomed.AttributeValueReferenceSet{ReferenceSetItemHeader: h, ValueID: value}, nil

	case snomed.KindOWLExpression:
		if err := need(1); err != nil {
			return nil, err
		}
		return &snomed.OWLExpressionReferenceSet{ReferenceSetItemHeader: h, OWLExpression: f[0]}, nil

	case snomed.KindModuleDependency:
		if err := need(2); err != nil {
			return nil, err
		}
		src, err := parseDate(f[0])
		if err != nil {
			return nil, err
		}
		dst, err := parseDate(f[1])
		if err != nil {
			return nil, err
		}
		return &snomed.ModuleDependencyReferenceSet{ReferenceSetItemHeader: h, SourceEffectiveTime: src, TargetEffectiveTime: dst}, nil

	case snomed.KindRefsetDescriptor:
		if err := need(3); err != nil {
			return nil, err
		}
		attrDesc, err := parseInt(f[0])
		if err != nil {
			return nil, err
		}
		attrType, err := parseInt(f[1])
		if err != nil {
			return nil, err
		}
		attrOrder, err := parseInt(f[2])
		if err != nil {
			return nil, err
		}
		return &snomed.RefsetDescriptorReferenceSet{
			ReferenceSetItemHeader: h, AttributeDescriptionID: attrDesc, AttributeTypeID: attrType, AttributeOrder: attrOrder,
		}, nil

	default:
		return nil, fmt.Errorf("unhandled refset kind %s", kind)
	}
}
