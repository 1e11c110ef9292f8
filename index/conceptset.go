package index

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// idMap assigns each concept id encountered a process-local dense uint32,
// letting concept-id set algebra run over a compressed bitmap
// (github.com/RoaringBitmap/roaring only indexes uint32 values, far smaller
// than a full SCTID) instead of a plain Go map. Shared package-wide so sets
// built from independent Realize calls still compose correctly.
type idMap struct {
	mu      sync.Mutex
	toDense map[int64]uint32
	toSCT   []int64
}

var sharedIDMap = &idMap{toDense: make(map[int64]uint32)}

func (m *idMap) dense(id int64) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.toDense[id]; ok {
		return d
	}
	d := uint32(len(m.toSCT))
	m.toDense[id] = d
	m.toSCT = append(m.toSCT, id)
	return d
}

func (m *idMap) sct(d uint32) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toSCT[d]
}

// ConceptSet is a roaring-bitmap-backed set of concept ids, used where C8/C9
// combine already-realized result sets (rather than compose index queries)
// — e.g. ECL's MINUS rewrite and q-topOfSet/q-bottomOfSet's working set.
type ConceptSet struct {
	bits *roaring.Bitmap
}

// NewConceptSet builds a ConceptSet from a slice of concept ids.
func NewConceptSet(ids []int64) *ConceptSet {
	bits := roaring.New()
	for _, id := range ids {
		bits.Add(sharedIDMap.dense(id))
	}
	return &ConceptSet{bits: bits}
}

// ToSlice returns the set's concept ids in ascending dense order (not
// numeric SCTID order).
func (s *ConceptSet) ToSlice() []int64 {
	out := make([]int64, 0, s.bits.GetCardinality())
	it := s.bits.Iterator()
	for it.HasNext() {
		out = append(out, sharedIDMap.sct(it.Next()))
	}
	return out
}

// Union returns the set union of s and other (q-or at the set level).
func (s *ConceptSet) Union(other *ConceptSet) *ConceptSet {
	return &ConceptSet{bits: roaring.Or(s.bits, other.bits)}
}

// Intersect returns the set intersection of s and other (q-and at the set level).
func (s *ConceptSet) Intersect(other *ConceptSet) *ConceptSet {
	return &ConceptSet{bits: roaring.And(s.bits, other.bits)}
}

// Difference returns s minus other (q-not/MINUS at the set level).
func (s *ConceptSet) Difference(other *ConceptSet) *ConceptSet {
	return &ConceptSet{bits: roaring.AndNot(s.bits, other.bits)}
}

// Len reports the set's cardinality.
func (s *ConceptSet) Len() int { return int(s.bits.GetCardinality()) }
