package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/tporcham/hermes/snomed"
)

// Store is a goleveldb-backed implementation of the keyspace table in
// spec.md §4.2. Values are JSON-encoded: the teacher serializes with
// proto.Marshal against generated message types, but regenerating those
// requires running protoc, which this exercise forbids (DESIGN.md records
// the justification for staying on encoding/json here).
type Store struct {
	db *leveldb.DB
}

// Open opens or creates a store at path for reading and writing.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing store without permitting writes, for
// serving queries against a store still being rsync'd or backed up.
func OpenReadOnly(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) get(b bucket, key []byte, out interface{}) error {
	d, err := s.db.Get(compoundKey(b.name(), key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(d, out)
}

func (s *Store) putJSON(batch *leveldb.Batch, b bucket, key []byte, value interface{}) error {
	d, err := json.Marshal(value)
	if err != nil {
		return err
	}
	batch.Put(compoundKey(b.name(), key), d)
	return nil
}

func (s *Store) addIndexEntry(batch *leveldb.Batch, b bucket, parts ...[]byte) {
	batch.Put(compoundKey(append([][]byte{b.name()}, parts...)...), []byte{'.'})
}

func (s *Store) iterateIndex(b bucket, prefix []byte, fn func(remainder []byte) error) error {
	p := compoundKey(b.name(), prefix)
	iter := s.db.NewIterator(util.BytesPrefix(p), nil)
	defer iter.Release()
	for iter.Next() {
		remainder := iter.Key()[len(p):]
		cp := make([]byte, len(remainder))
		copy(cp, remainder)
		if err := fn(cp); err != nil {
			return err
		}
	}
	return iter.Error()
}

// effectiveTimeLess reports whether a is strictly earlier than b, treating a
// nil timestamp as earliest-possible.
func effectiveTimeLess(a, b *timestamppb.Timestamp) bool {
	var at, bt time.Time
	if a != nil {
		at = a.AsTime()
	}
	if b != nil {
		bt = b.AsTime()
	}
	return at.Before(bt)
}

// --- Concepts ---------------------------------------------------------

// PutConcepts writes a batch of concepts, applying the max-effective-time
// merge rule per id (spec.md §4.1): a concept already stored with a strictly
// later effectiveTime is not overwritten; on an equal effectiveTime the later
// write wins.
func (s *Store) PutConcepts(concepts []*snomed.Concept) error {
	batch := new(leveldb.Batch)
	for _, c := range concepts {
		if existing, err := s.Concept(c.ID); err == nil && effectiveTimeLess(c.EffectiveTime, existing.EffectiveTime) {
			continue
		}
		if err := s.putJSON(batch, bkConcepts, u64(c.ID), c); err != nil {
			return err
		}
	}
	return s.db.Write(batch, nil)
}

// Concept returns the concept with the given identifier.
func (s *Store) Concept(conceptID int64) (*snomed.Concept, error) {
	var c snomed.Concept
	if err := s.get(bkConcepts, u64(conceptID), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Concepts returns concepts for the given identifiers, in the same order.
func (s *Store) Concepts(conceptIDs ...int64) ([]*snomed.Concept, error) {
	result := make([]*snomed.Concept, len(conceptIDs))
	for i, id := range conceptIDs {
		c, err := s.Concept(id)
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

// --- Descriptions -------------------------------------------------------

// PutDescriptions writes a batch of descriptions and maintains the
// concept->descriptions reverse index.
func (s *Store) PutDescriptions(descriptions []*snomed.Description) error {
	batch := new(leveldb.Batch)
	for _, d := range descriptions {
		if existing, err := s.Description(d.ID); err == nil && effectiveTimeLess(d.EffectiveTime, existing.EffectiveTime) {
			continue
		}
		if err := s.putJSON(batch, bkDescriptions, u64(d.ID), d); err != nil {
			return err
		}
		s.addIndexEntry(batch, ixConceptDescriptions, u64(d.ConceptID), u64(d.ID))
	}
	return s.db.Write(batch, nil)
}

// Description returns the description with the given identifier.
func (s *Store) Description(descriptionID int64) (*snomed.Description, error) {
	var d snomed.Description
	if err := s.get(bkDescriptions, u64(descriptionID), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Descriptions returns every description belonging to a concept.
func (s *Store) Descriptions(conceptID int64) ([]*snomed.Description, error) {
	var result []*snomed.Description
	err := s.iterateIndex(ixConceptDescriptions, u64(conceptID), func(remainder []byte) error {
		d, err := s.Description(parseU64(remainder))
		if err != nil {
			return err
		}
		result = append(result, d)
		return nil
	})
	return result, err
}

// --- Relationships -------------------------------------------------------

// PutRelationships writes a batch of relationships and maintains the
// concept->parents(typeId) and concept->children(typeId) reverse indices.
func (s *Store) PutRelationships(relationships []*snomed.Relationship) error {
	batch := new(leveldb.Batch)
	for _, r := range relationships {
		if existing, err := s.Relationship(r.ID); err == nil && effectiveTimeLess(r.EffectiveTime, existing.EffectiveTime) {
			continue
		}
		if err := s.putJSON(batch, bkRelationships, u64(r.ID), r); err != nil {
			return err
		}
		s.addIndexEntry(batch, ixConceptParents, u64(r.SourceID), u64(r.TypeID), u64(r.DestinationID))
		s.addIndexEntry(batch, ixConceptChildren, u64(r.DestinationID), u64(r.TypeID), u64(r.SourceID))
	}
	return s.db.Write(batch, nil)
}

// Relationship returns the relationship with the given identifier.
func (s *Store) Relationship(relationshipID int64) (*snomed.Relationship, error) {
	var r snomed.Relationship
	if err := s.get(bkRelationships, u64(relationshipID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ParentRelationshipIDs returns the destination concept ids of every active
// direct relationship of the given type for which conceptID is the source.
func (s *Store) ParentRelationshipIDs(conceptID, typeID int64) ([]int64, error) {
	var result []int64
	err := s.iterateIndex(ixConceptParents, compoundKey(u64(conceptID), u64(typeID)), func(remainder []byte) error {
		destID := parseU64(remainder)
		r, err := s.relationshipBySourceTypeDest(conceptID, typeID, destID)
		if err != nil {
			return err
		}
		if r != nil && r.Active {
			result = append(result, destID)
		}
		return nil
	})
	return result, err
}

// ChildRelationshipIDs returns the source concept ids of every active direct
// relationship of the given type for which conceptID is the destination.
func (s *Store) ChildRelationshipIDs(conceptID, typeID int64) ([]int64, error) {
	var result []int64
	err := s.iterateIndex(ixConceptChildren, compoundKey(u64(conceptID), u64(typeID)), func(remainder []byte) error {
		sourceID := parseU64(remainder)
		r, err := s.relationshipBySourceTypeDest(sourceID, typeID, conceptID)
		if err != nil {
			return err
		}
		if r != nil && r.Active {
			result = append(result, sourceID)
		}
		return nil
	})
	return result, err
}

// ParentRelationships returns every active relationship of any type for
// which conceptID is the source, re-deriving full records from a bucket scan
// since ixConceptParents only indexes (source, type) -> destination.
func (s *Store) ParentRelationships(conceptID int64) ([]*snomed.Relationship, error) {
	return s.relationshipsBy(func(r *snomed.Relationship) bool {
		return r.Active && r.SourceID == conceptID
	})
}

// ChildRelationships returns every active relationship of any type for which
// conceptID is the destination.
func (s *Store) ChildRelationships(conceptID int64) ([]*snomed.Relationship, error) {
	return s.relationshipsBy(func(r *snomed.Relationship) bool {
		return r.Active && r.DestinationID == conceptID
	})
}

func (s *Store) relationshipsBy(match func(*snomed.Relationship) bool) ([]*snomed.Relationship, error) {
	var result []*snomed.Relationship
	iter := s.db.NewIterator(util.BytesPrefix(bkRelationships.name()), nil)
	defer iter.Release()
	for iter.Next() {
		var r snomed.Relationship
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			return nil, err
		}
		if match(&r) {
			rr := r
			result = append(result, &rr)
		}
	}
	return result, iter.Error()
}

// relationshipBySourceTypeDest re-derives the relationship record for an
// index hit so activity can be checked; the index itself carries no value.
func (s *Store) relationshipBySourceTypeDest(sourceID, typeID, destID int64) (*snomed.Relationship, error) {
	var found *snomed.Relationship
	iter := s.db.NewIterator(util.BytesPrefix(bkRelationships.name()), nil)
	defer iter.Release()
	for iter.Next() {
		var r snomed.Relationship
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			return nil, err
		}
		if r.SourceID == sourceID && r.TypeID == typeID && r.DestinationID == destID {
			rr := r
			found = &rr
		}
	}
	return found, iter.Error()
}

// RelationshipTypeParents reports, for a given relationship typeId, which
// typeIds are its transitive IS-A ancestors (relationship-type subsumption,
// spec.md §4.2).
func (s *Store) RelationshipTypeParents(typeID int64) ([]int64, error) {
	return s.AncestorsOf(typeID, snomed.IsA)
}

// --- Reference set items -------------------------------------------------

type refsetItemEnvelope struct {
	Kind snomed.RefsetKind `json:"kind"`
	Raw  json.RawMessage   `json:"raw"`
}

// PutRefsetItems writes a batch of reference set items and maintains the
// component->refsetItems, refset->items, installed-refsets, map-target, and
// (for RefsetDescriptor rows) refset-descriptor indices.
func (s *Store) PutRefsetItems(items []snomed.ReferenceSetItem) error {
	batch := new(leveldb.Batch)
	for _, item := range items {
		h := item.Header()
		itemID := []byte(h.ID)
		if existing, err := s.RefsetItem(h.ID); err == nil && effectiveTimeLess(h.EffectiveTime, existing.Header().EffectiveTime) {
			continue
		}
		raw, err := json.Marshal(item)
		if err != nil {
			return err
		}
		env := refsetItemEnvelope{Kind: item.Kind(), Raw: raw}
		if err := s.putJSON(batch, bkRefsetItems, itemID, env); err != nil {
			return err
		}
		s.addIndexEntry(batch, ixComponentRefsetItems, u64(h.ReferencedComponentID), u64(h.RefsetID), itemID)
		s.addIndexEntry(batch, ixRefsetItems, u64(h.RefsetID), u64(h.ReferencedComponentID), itemID)
		s.addIndexEntry(batch, ixInstalledRefsets, u64(h.RefsetID))

		if target, ok := mapTarget(item); ok {
			s.addIndexEntry(batch, ixRefsetTargetItems, u64(h.RefsetID), []byte(target+" "), itemID)
		}
		if rd, ok := item.(*snomed.RefsetDescriptorReferenceSet); ok {
			s.addIndexEntry(batch, ixRefsetDescriptor, u64(h.ReferencedComponentID), u64(rd.AttributeOrder), u64(rd.AttributeDescriptionID))
		}
	}
	return s.db.Write(batch, nil)
}

func mapTarget(item snomed.ReferenceSetItem) (string, bool) {
	switch v := item.(type) {
	case *snomed.SimpleMapReferenceSet:
		return v.MapTarget, true
	case *snomed.ComplexMapReferenceSet:
		return v.MapTarget, true
	case *snomed.ExtendedMapReferenceSet:
		return v.MapTarget, true
	default:
		return "", false
	}
}

// RefsetItem returns the reference set item with the given uuid.
func (s *Store) RefsetItem(id string) (snomed.ReferenceSetItem, error) {
	var env refsetItemEnvelope
	if err := s.get(bkRefsetItems, []byte(id), &env); err != nil {
		return nil, err
	}
	return decodeRefsetItem(env.Kind, env.Raw)
}

func decodeRefsetItem(kind snomed.RefsetKind, raw json.RawMessage) (snomed.ReferenceSetItem, error) {
	var item snomed.ReferenceSetItem
	switch kind {
	case snomed.KindSimple:
		item = &snomed.SimpleReferenceSet{}
	case snomed.KindAssociation:
		item = &snomed.AssociationReferenceSet{}
	case snomed.KindLanguage:
		item = &snomed.LanguageReferenceSet{}
	case snomed.KindSimpleMap:
		item = &snomed.SimpleMapReferenceSet{}
	case snomed.KindComplexMap:
		item = &snomed.ComplexMapReferenceSet{}
	case snomed.KindExtendedMap:
		item = &snomed.ExtendedMapReferenceSet{}
	case snomed.KindAttributeValue:
		item = &snomed.AttributeValueReferenceSet{}
	case snomed.KindOWLExpression:
		item = &snomed.OWLExpressionReferenceSet{}
	case snomed.KindModuleDependency:
		item = &snomed.ModuleDependencyReferenceSet{}
	case snomed.KindRefsetDescriptor:
		item = &snomed.RefsetDescriptorReferenceSet{}
	default:
		return nil, fmt.Errorf("store: unrecognized refset kind %d", kind)
	}
	if err := json.Unmarshal(raw, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ComponentReferenceSets returns the refset ids to which a component belongs.
func (s *Store) ComponentReferenceSets(referencedComponentID int64) ([]int64, error) {
	var result []int64
	err := s.iterateIndex(ixComponentRefsetItems, u64(referencedComponentID), func(remainder []byte) error {
		result = append(result, parseU64(remainder[:8]))
		return nil
	})
	return result, err
}

// ComponentFromReferenceSet returns the items of refset that reference component.
func (s *Store) ComponentFromReferenceSet(refsetID, componentID int64) ([]snomed.ReferenceSetItem, error) {
	var result []snomed.ReferenceSetItem
	err := s.iterateIndex(ixRefsetItems, compoundKey(u64(refsetID), u64(componentID)), func(remainder []byte) error {
		item, err := s.RefsetItem(string(remainder))
		if err != nil {
			return err
		}
		result = append(result, item)
		return nil
	})
	return result, err
}

// ReferenceSetComponents returns every component id referenced by a refset.
func (s *Store) ReferenceSetComponents(refsetID int64) (map[int64]struct{}, error) {
	result := make(map[int64]struct{})
	err := s.iterateIndex(ixRefsetItems, u64(refsetID), func(remainder []byte) error {
		result[parseU64(remainder[:8])] = struct{}{}
		return nil
	})
	return result, err
}

// MapTarget returns the map refset items in refsetID whose map target equals target.
func (s *Store) MapTarget(refsetID int64, target string) ([]snomed.ReferenceSetItem, error) {
	var result []snomed.ReferenceSetItem
	err := s.iterateIndex(ixRefsetTargetItems, compoundKey(u64(refsetID), []byte(target+" ")), func(remainder []byte) error {
		item, err := s.RefsetItem(string(remainder))
		if err != nil {
			return err
		}
		result = append(result, item)
		return nil
	})
	return result, err
}

// InstalledReferenceSets returns every refset id with at least one member.
func (s *Store) InstalledReferenceSets() (map[int64]struct{}, error) {
	result := make(map[int64]struct{})
	iter := s.db.NewIterator(util.BytesPrefix(ixInstalledRefsets.name()), nil)
	defer iter.Release()
	for iter.Next() {
		result[parseU64(iter.Key()[len(ixInstalledRefsets.name()):])] = struct{}{}
	}
	return result, iter.Error()
}

// AttributeIDsForRefset returns, in AttributeOrder, the attribute-description
// concept ids declared for refsetID by its RefsetDescriptor rows. Used by
// rf2.Classify during ingestion to reify that refset's own member rows.
func (s *Store) AttributeIDsForRefset(refsetID int64) ([]int64, error) {
	var result []int64
	err := s.iterateIndex(ixRefsetDescriptor, u64(refsetID), func(remainder []byte) error {
		result = append(result, parseU64(remainder[8:]))
		return nil
	})
	return result, err
}

// --- Iteration & statistics ----------------------------------------------

// IterateConcepts calls fn once per stored concept, in key (id) order.
func (s *Store) IterateConcepts(fn func(*snomed.Concept) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(bkConcepts.name()), nil)
	defer iter.Release()
	for iter.Next() {
		var c snomed.Concept
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *Store) count(b bucket) int {
	n := 0
	iter := s.db.NewIterator(util.BytesPrefix(b.name()), nil)
	defer iter.Release()
	for iter.Next() {
		n++
	}
	return n
}

// Statistics reports row counts across the store's buckets.
func (s *Store) Statistics() (Statistics, error) {
	installed, err := s.InstalledReferenceSets()
	if err != nil {
		return Statistics{}, err
	}
	refsets := make([]int64, 0, len(installed))
	for id := range installed {
		refsets = append(refsets, id)
	}
	return Statistics{
		Concepts:      s.count(bkConcepts),
		Descriptions:  s.count(bkDescriptions),
		Relationships: s.count(bkRelationships),
		RefsetItems:   s.count(bkRefsetItems),
		Refsets:       refsets,
	}, nil
}
