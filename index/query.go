package index

import (
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/tporcham/hermes/snomed"
)

// This file implements C8's query algebra (spec.md §4.3): small combinators
// that each return a bleve query.Query value, grounded on terminology/
// bleve.go's ad hoc ConjunctionQuery/DisjunctionQuery construction in
// Search, generalized into named building blocks operating over the C7
// schema's per-relationship-type and per-refset fields rather than a single
// flat Keywords field.

func numericEquals(field string, value int64) query.Query {
	v := float64(value)
	q := bleve.NewNumericRangeInclusiveQuery(&v, &v, boolPtr(true), boolPtr(true))
	q.SetField(field)
	return q
}

func boolPtr(b bool) *bool { return &b }

// QSelf matches the single concept conceptID.
func QSelf(conceptID int64) query.Query {
	return numericEquals("concept-id", conceptID)
}

// QDescendantOf matches concepts with ancestorID in their transitive
// parents() set for typeID (spec.md §4.2's parents() formula applied at
// index time via index.BuildDocuments).
func QDescendantOf(typeID, ancestorID int64) query.Query {
	return numericEquals(strconv.FormatInt(typeID, 10), ancestorID)
}

// QDescendantOrSelfOf is QSelf OR QDescendantOf.
func QDescendantOrSelfOf(typeID, conceptID int64) query.Query {
	return QOr(QSelf(conceptID), QDescendantOf(typeID, conceptID))
}

// QChildOf matches concepts with a direct (non-transitive) relationship of
// typeID to parentID.
func QChildOf(typeID, parentID int64) query.Query {
	return numericEquals("d"+strconv.FormatInt(typeID, 10), parentID)
}

// QMemberOf matches concepts that are a member of refsetID.
func QMemberOf(refsetID int64) query.Query {
	return numericEquals("concept-refsets", refsetID)
}

// QAttributeDescendantOrSelfOf matches concepts whose transitive parents()
// set for typeID contains valueID: the per-type field is already subsumption-
// aware over the relationship-type hierarchy (spec.md §4.2's parents()
// formula), so this is a direct equality test against it.
func QAttributeDescendantOrSelfOf(typeID, valueID int64) query.Query {
	return numericEquals(strconv.FormatInt(typeID, 10), valueID)
}

// QAttributeExactlyEqual matches concepts with a direct relationship of
// typeID whose destination is exactly valueID (ECL's "=" refinement,
// without subsumption).
func QAttributeExactlyEqual(typeID, valueID int64) query.Query {
	return numericEquals("d"+strconv.FormatInt(typeID, 10), valueID)
}

// QAttributeCount constrains the cardinality of direct relationships of
// typeID a concept has, per spec.md §4.3's attribute-group cardinality
// special cases: [0..0] means "no relationship of this type at all", and
// [0..*]/max<0 means no constraint (matches everything).
func QAttributeCount(typeID int64, min, max int) query.Query {
	field := "c" + strconv.FormatInt(typeID, 10)
	if min == 0 && max == 0 {
		return QNot(bleve.NewMatchAllQuery(), numericAtLeast(field, 1))
	}
	if min <= 0 && max < 0 {
		return bleve.NewMatchAllQuery()
	}
	lo := float64(min)
	var hiPtr *float64
	if max >= 0 {
		hi := float64(max)
		hiPtr = &hi
	}
	q := bleve.NewNumericRangeInclusiveQuery(&lo, hiPtr, boolPtr(true), boolPtr(max >= 0))
	q.SetField(field)
	return q
}

func numericAtLeast(field string, min int64) query.Query {
	lo := float64(min)
	q := bleve.NewNumericRangeInclusiveQuery(&lo, nil, boolPtr(true), nil)
	q.SetField(field)
	return q
}

// QConcreteOp enumerates the concrete-value comparison operators ECL's
// refinement grammar supports for concrete values (spec.md §4.3).
type QConcreteOp int

const (
	QConcreteEqual QConcreteOp = iota
	QConcreteLessThan
	QConcreteGreaterThan
	QConcreteLessOrEqual
	QConcreteGreaterOrEqual
)

// QConcrete matches concepts whose concrete value for typeID satisfies op
// against value.
func QConcrete(typeID int64, op QConcreteOp, value float64) query.Query {
	field := "v" + strconv.FormatInt(typeID, 10)
	var q *query.NumericRangeQuery
	switch op {
	case QConcreteEqual:
		q = bleve.NewNumericRangeInclusiveQuery(&value, &value, boolPtr(true), boolPtr(true))
	case QConcreteLessThan:
		q = bleve.NewNumericRangeInclusiveQuery(nil, &value, nil, boolPtr(false))
	case QConcreteGreaterThan:
		q = bleve.NewNumericRangeInclusiveQuery(&value, nil, boolPtr(false), nil)
	case QConcreteLessOrEqual:
		q = bleve.NewNumericRangeInclusiveQuery(nil, &value, nil, boolPtr(true))
	case QConcreteGreaterOrEqual:
		q = bleve.NewNumericRangeInclusiveQuery(&value, nil, boolPtr(true), nil)
	}
	q.SetField(field)
	return q
}

// QMatchAll matches every document, used as the positive substrate for a
// bare negation (ECL has no unary NOT; every exclusion pairs with this or
// another positive clause).
func QMatchAll() query.Query {
	return bleve.NewMatchAllQuery()
}

// QAnd is logical conjunction.
func QAnd(qs ...query.Query) query.Query {
	return bleve.NewConjunctionQuery(qs...)
}

// QOr is logical disjunction.
func QOr(qs ...query.Query) query.Query {
	return bleve.NewDisjunctionQuery(qs...)
}

// QNot implements ECL's MINUS semantics: base AND NOT exclude. A bare
// negation has no meaning against a corpus this large, so every NOT is
// always paired with a positive base clause, as spec.md §4.3 requires.
func QNot(base, exclude query.Query) query.Query {
	bq := bleve.NewBooleanQuery()
	bq.AddMust(base)
	bq.AddMustNot(exclude)
	return bq
}

// Searcher is the subset of bleve.Index the query realizer needs.
type Searcher interface {
	Search(req *bleve.SearchRequest) (*bleve.SearchResult, error)
}

// Realize executes q and collects the distinct concept ids among the hits,
// since a concept may have several matching descriptions. limit bounds the
// number of underlying document hits inspected, not the number of distinct
// concepts returned; a limit of zero or less inspects every matching hit.
func Realize(s Searcher, q query.Query, limit int) ([]int64, error) {
	if limit <= 0 {
		count, err := s.Search(bleve.NewSearchRequestOptions(q, 0, 0, false))
		if err != nil {
			return nil, err
		}
		limit = int(count.Total)
	}
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"concept-id"}
	result, err := s.Search(req)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(result.Hits))
	ids := make([]int64, 0, len(result.Hits))
	for _, hit := range result.Hits {
		raw, ok := hit.Fields["concept-id"]
		if !ok {
			continue
		}
		f, ok := raw.(float64)
		if !ok {
			continue
		}
		id := int64(f)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// AncestryStore is the store-side lookup q-ancestorOf, q-topOfSet and
// q-bottomOfSet need: these can't be expressed as a single index query
// since they depend on the asserted IS-A graph of the result set itself,
// not on any one document's fields (spec.md §4.3 marks q-ancestorOf as
// "store-side" for this reason).
type AncestryStore interface {
	IsA(conceptID, ancestorID int64) (bool, error)
	AncestorsOf(conceptID, typeID int64) ([]int64, error)
}

// AncestorsOfSet returns the union of conceptID's IS-A ancestors plus
// itself, implementing q-ancestorOf(conceptID) ∪ q-self(conceptID).
func AncestorsOfSet(s AncestryStore, conceptID int64) ([]int64, error) {
	ancestors, err := s.AncestorsOf(conceptID, snomed.IsA)
	if err != nil {
		return nil, err
	}
	return append([]int64{conceptID}, ancestors...), nil
}

// TopOfSet returns the members of ids with no strict IS-A ancestor also in
// ids: the most general concepts of the set.
func TopOfSet(s AncestryStore, ids []int64) ([]int64, error) {
	return filterBySubsumption(s, ids, false)
}

// BottomOfSet returns the members of ids with no strict IS-A descendant
// also in ids: the most specific concepts of the set.
func BottomOfSet(s AncestryStore, ids []int64) ([]int64, error) {
	return filterBySubsumption(s, ids, true)
}

func filterBySubsumption(s AncestryStore, ids []int64, keepLeaves bool) ([]int64, error) {
	out := make([]int64, 0, len(ids))
	for _, candidate := range ids {
		dominated := false
		for _, other := range ids {
			if other == candidate {
				continue
			}
			var isA bool
			var err error
			if keepLeaves {
				isA, err = s.IsA(other, candidate) // other is a descendant of candidate
			} else {
				isA, err = s.IsA(candidate, other) // candidate is a descendant of other
			}
			if err != nil {
				return nil, err
			}
			if isA {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, candidate)
		}
	}
	return out, nil
}
