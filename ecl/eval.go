package ecl

import (
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/tporcham/hermes/index"
	"github.com/tporcham/hermes/snomed"
)

// ErrUnsupported marks an ECL construct this evaluator deliberately declines
// to approximate (spec.md §9's open question: attribute-group cardinality
// is rejected rather than interpreted loosely, following
// expression/constraint.go's own unimplemented-cardinality gap).
var ErrUnsupported = errors.New("ecl: unsupported construct")

// QueryError wraps ErrUnsupported (or any other evaluation failure) with
// the node that triggered it.
type QueryError struct {
	Node *Node
	Err  error
}

func (e *QueryError) Error() string { return fmt.Sprintf("ecl: %v", e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }

// Store is the subset of store.Store/index.AncestryStore the evaluator
// needs for its store-side combinators (ancestorOf, parentOf, topOfSet,
// bottomOfSet).
type Store interface {
	index.AncestryStore
	Parents(conceptID, typeID int64) (map[int64]struct{}, error)
}

// Index is the subset of bleve.Index the evaluator searches against.
type Index = index.Searcher

const rootConcept = snomed.Root

// Evaluate compiles node into a query.Query where possible. Nodes whose
// semantics require store-side set computation (ancestorOf,
// ancestorOrSelfOf, parentOf) cannot be expressed as a single index query;
// Evaluate returns ErrUnsupported for those, wrapped in a QueryError —
// callers needing those operators must use Realize, which falls back to
// isStoreSideOnly's direct store computation for exactly this reason.
// An attribute group is evaluated as the conjunction of its refinements; a
// refinement inside a group that carries a cardinality is rejected with
// ErrUnsupported.
func Evaluate(node *Node) (query.Query, error) {
	switch node.Kind {
	case NodeFocusConcept:
		return evaluateFocusConcept(node)
	case NodeCompound:
		return evaluateCompound(node)
	case NodeRefined:
		subject, err := Evaluate(node.Subject)
		if err != nil {
			return nil, err
		}
		refQuery, err := evaluateRefinement(node.Refinement)
		if err != nil {
			return nil, err
		}
		return index.QAnd(subject, refQuery), nil
	case NodeRefinementGroup:
		// Group co-occurrence (all attributes true of the *same* relationship
		// group, not merely true of the concept independently) cannot be
		// expressed against this index's per-type fields, which flatten all
		// groups together, so a group is evaluated as a conjunction; group
		// cardinality is the one construct this evaluator declines to approximate.
		subject, err := Evaluate(node.Subject)
		if err != nil {
			return nil, err
		}
		queries := []query.Query{subject}
		for _, r := range node.Group {
			if r.HasCardinality {
				return nil, &QueryError{Node: node, Err: ErrUnsupported}
			}
			q, err := evaluateRefinement(r)
			if err != nil {
				return nil, err
			}
			queries = append(queries, q)
		}
		return index.QAnd(queries...), nil
	}
	return nil, &QueryError{Node: node, Err: fmt.Errorf("unknown node kind %d", node.Kind)}
}

func evaluateFocusConcept(node *Node) (query.Query, error) {
	switch node.Operator {
	case OpDescendantOrSelf:
		return index.QDescendantOrSelfOf(snomed.IsA, node.ConceptID), nil
	case OpDescendantOf:
		return index.QDescendantOf(snomed.IsA, node.ConceptID), nil
	case OpChildOf:
		return index.QChildOf(snomed.IsA, node.ConceptID), nil
	case OpMemberOf:
		return index.QMemberOf(node.ConceptID), nil
	case OpAny:
		return index.QDescendantOrSelfOf(snomed.IsA, rootConcept), nil
	case OpAncestorOf, OpAncestorOrSelfOf, OpParentOf:
		// store-side only: no single index query expresses "concept-id is one
		// of the asserted ancestors/parent of c". Realize handles these via
		// isStoreSideOnly instead of Evaluate.
		return nil, &QueryError{Node: node, Err: ErrUnsupported}
	}
	return nil, &QueryError{Node: node, Err: fmt.Errorf("unknown operator %d", node.Operator)}
}

func evaluateCompound(node *Node) (query.Query, error) {
	queries := make([]query.Query, len(node.Operands))
	for i, operand := range node.Operands {
		q, err := Evaluate(operand)
		if err != nil {
			return nil, err
		}
		queries[i] = q
	}
	switch node.Compound {
	case CompoundAnd:
		return index.QAnd(queries...), nil
	case CompoundOr:
		return index.QOr(queries...), nil
	case CompoundMinus:
		return index.QNot(queries[0], queries[1]), nil
	}
	return nil, &QueryError{Node: node, Err: fmt.Errorf("unknown compound operator %d", node.Compound)}
}

func evaluateRefinement(r *Refinement) (query.Query, error) {
	if r.HasCardinality {
		countQuery := index.QAttributeCount(r.AttributeTypeID, r.Min, r.Max)
		if r.Min == 0 {
			return countQuery, nil
		}
		valueQuery, err := refinementValueQuery(r)
		if err != nil {
			return nil, err
		}
		return index.QAnd(countQuery, valueQuery), nil
	}
	return refinementValueQuery(r)
}

func refinementValueQuery(r *Refinement) (query.Query, error) {
	if r.Concrete {
		op, err := concreteOp(r.Comparison)
		if err != nil {
			return nil, err
		}
		return index.QConcrete(r.AttributeTypeID, op, r.Number), nil
	}
	if r.Value == nil {
		return nil, fmt.Errorf("ecl: refinement has neither a concept value nor a concrete value")
	}
	switch r.Comparison {
	case ComparisonEquals:
		if r.Value.Kind == NodeFocusConcept && r.Value.Operator == OpDescendantOrSelf {
			return index.QAttributeDescendantOrSelfOf(r.AttributeTypeID, r.Value.ConceptID), nil
		}
		if r.Value.Kind == NodeFocusConcept && r.Value.Operator == OpDescendantOf {
			// the per-type field has no separate strict-descendant variant; v itself also matches.
			return index.QAttributeDescendantOrSelfOf(r.AttributeTypeID, r.Value.ConceptID), nil
		}
		return nil, &QueryError{Err: fmt.Errorf("unsupported attribute value expression")}
	case ComparisonNotEquals:
		eq := index.QAttributeDescendantOrSelfOf(r.AttributeTypeID, r.Value.ConceptID)
		return index.QNot(index.QMatchAll(), eq), nil
	default:
		return nil, fmt.Errorf("ecl: comparison operator %d not valid for a concept-valued refinement", r.Comparison)
	}
}

func concreteOp(c ComparisonOperator) (index.QConcreteOp, error) {
	switch c {
	case ComparisonEquals:
		return index.QConcreteEqual, nil
	case ComparisonLessThan:
		return index.QConcreteLessThan, nil
	case ComparisonGreaterThan:
		return index.QConcreteGreaterThan, nil
	case ComparisonLessOrEquals:
		return index.QConcreteLessOrEqual, nil
	case ComparisonGreaterOrEquals:
		return index.QConcreteGreaterOrEqual, nil
	}
	return 0, fmt.Errorf("ecl: comparison operator %d not valid for a concrete refinement", c)
}

// Realize evaluates node and executes it against idx, falling back to
// store-side set computation for the operators Evaluate cannot express as a
// single query (ancestorOf/ancestorOrSelfOf/parentOf, and the top-level
// rewrite of compound MINUS needed when a store-side operand appears
// nested). limit bounds the number of underlying document hits inspected
// per index.Realize call.
func Realize(idx Index, s Store, node *Node, limit int) ([]int64, error) {
	if storeSide, ok := isStoreSideOnly(node); ok {
		return storeSide(s)
	}
	if node.Kind == NodeCompound && node.Compound == CompoundMinus {
		return realizeMinus(idx, s, node, limit)
	}
	q, err := Evaluate(node)
	if err != nil {
		return nil, err
	}
	return index.Realize(idx, q, limit)
}

// isStoreSideOnly reports whether node is one of the operators that must be
// realized entirely store-side (ancestorOf/ancestorOrSelfOf/parentOf) since
// no single index query expresses "concept-id is one of c's asserted
// ancestors/parents", returning a closure that computes the set directly
// via s.
func isStoreSideOnly(node *Node) (func(Store) ([]int64, error), bool) {
	if node.Kind != NodeFocusConcept {
		return nil, false
	}
	switch node.Operator {
	case OpAncestorOf:
		return func(s Store) ([]int64, error) {
			return s.AncestorsOf(node.ConceptID, snomed.IsA)
		}, true
	case OpAncestorOrSelfOf:
		return func(s Store) ([]int64, error) {
			return index.AncestorsOfSet(s, node.ConceptID)
		}, true
	case OpParentOf:
		return func(s Store) ([]int64, error) {
			parents, err := s.Parents(node.ConceptID, snomed.IsA)
			if err != nil {
				return nil, err
			}
			ids := make([]int64, 0, len(parents))
			for id := range parents {
				ids = append(ids, id)
			}
			return ids, nil
		}, true
	}
	return nil, false
}

// realizeMinus implements the rewrite-query(Q) → (include, exclude)
// guidance from spec.md §4.3: realize each side independently (recursing
// through Realize so a store-side operand on either side still works) and
// compute the set difference directly, rather than requiring both sides to
// be expressible as a single combined index query.
func realizeMinus(idx Index, s Store, node *Node, limit int) ([]int64, error) {
	include, err := Realize(idx, s, node.Operands[0], limit)
	if err != nil {
		return nil, err
	}
	exclude, err := Realize(idx, s, node.Operands[1], limit)
	if err != nil {
		return nil, err
	}
	diff := index.NewConceptSet(include).Difference(index.NewConceptSet(exclude))
	return diff.ToSlice(), nil
}

// TopOfSet and BottomOfSet expose index.TopOfSet/BottomOfSet for a
// previously-realized id set, implementing q-topOfSet/q-bottomOfSet once a
// caller already has a concept-id set in hand (e.g. the result of Realize).
func TopOfSet(s Store, ids []int64) ([]int64, error)    { return index.TopOfSet(s, ids) }
func BottomOfSet(s Store, ids []int64) ([]int64, error) { return index.BottomOfSet(s, ids) }
