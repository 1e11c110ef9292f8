package store

import (
	"encoding/json"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/tporcham/hermes/snomed"
)

// BuildAncestorClosure rebuilds the ancestor-closure(IS-A) keyspace from the
// currently-stored relationships (spec.md §4.2/C4): for every concept, a
// breadth-first walk over active IS-A relationships from source to
// destination, persisting every ancestor reached. Call once ingestion of all
// concept/relationship files has completed; re-call after any subsequent
// relationship delta.
func (s *Store) BuildAncestorClosure() error {
	parents := make(map[int64][]int64)
	iter := s.db.NewIterator(util.BytesPrefix(bkRelationships.name()), nil)
	for iter.Next() {
		var r snomed.Relationship
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			iter.Release()
			return err
		}
		if r.Active && r.TypeID == snomed.IsA {
			parents[r.SourceID] = append(parents[r.SourceID], r.DestinationID)
		}
	}
	if err := iter.Error(); err != nil {
		iter.Release()
		return err
	}
	iter.Release()

	batch := new(leveldb.Batch)
	stale := s.db.NewIterator(util.BytesPrefix(ixAncestorClosure.name()), nil)
	for stale.Next() {
		batch.Delete(append([]byte(nil), stale.Key()...))
	}
	if err := stale.Error(); err != nil {
		stale.Release()
		return err
	}
	stale.Release()
	for concept := range parents {
		for ancestor := range bfsAncestors(concept, parents) {
			s.addIndexEntry(batch, ixAncestorClosure, u64(concept), u64(ancestor))
		}
	}
	return s.db.Write(batch, nil)
}

// bfsAncestors walks parents breadth-first from start, returning every
// concept reached (start's transitive IS-A ancestors, start excluded).
func bfsAncestors(start int64, parents map[int64][]int64) map[int64]struct{} {
	seen := make(map[int64]struct{})
	queue := append([]int64(nil), parents[start]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		queue = append(queue, parents[id]...)
	}
	return seen
}

// AncestorsOf returns the persisted transitive IS-A ancestor set for a
// concept. typeID is accepted for symmetry with ParentRelationshipIDs but
// only snomed.IsA has a materialized closure; any other value returns the
// IS-A closure too, since relationship-type subsumption itself is walked via
// IS-A (spec.md §4.2).
func (s *Store) AncestorsOf(conceptID, typeID int64) ([]int64, error) {
	_ = typeID
	var result []int64
	err := s.iterateIndex(ixAncestorClosure, u64(conceptID), func(remainder []byte) error {
		result = append(result, parseU64(remainder))
		return nil
	})
	return result, err
}

// IsA reports whether ancestor is conceptID itself or one of its transitive
// IS-A ancestors.
func (s *Store) IsA(conceptID, ancestorID int64) (bool, error) {
	if conceptID == ancestorID {
		return true, nil
	}
	_, err := s.db.Get(compoundKey(ixAncestorClosure.name(), u64(conceptID), u64(ancestorID)), nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Parents returns the direct destinations of conceptID's active typeID
// relationships, unioned with the same for every IS-A ancestor of typeID
// (relationship-type subsumption). The destinations' own ancestors are not
// included; callers that need them expand each destination with AncestorsOf.
// This is always computed on demand.
func (s *Store) Parents(conceptID, typeID int64) (map[int64]struct{}, error) {
	result := make(map[int64]struct{})
	types := append([]int64{typeID}, mustAncestors(s, typeID)...)
	for _, t := range types {
		ids, err := s.ParentRelationshipIDs(conceptID, t)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			result[id] = struct{}{}
		}
	}
	return result, nil
}

func mustAncestors(s *Store, typeID int64) []int64 {
	ancestors, err := s.AncestorsOf(typeID, snomed.IsA)
	if err != nil {
		return nil
	}
	return ancestors
}
