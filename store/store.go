// Package store implements C3 (the persistent key-value store) and C4 (the
// transitive closure builder) from spec.md §4.2. It is grounded on
// terminology/store.go and terminology/leveldb-service.go: the same bucket
// abstraction, the same big-endian compound keys, the same batch-write
// discipline, kept on a single concrete goleveldb-backed Store but with the
// teacher's proto.Message value type replaced by a JSON-encoded value type
// (no protoc is available to regenerate the teacher's .pb.go types; see
// DESIGN.md).
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// bucket names a logical keyspace from spec.md §4.2's table. Each bucket's
// on-disk key is its name prefixed onto the caller-supplied key, so a single
// flat KV store behaves like several independent ordered namespaces.
type bucket int

const (
	bkConcepts     bucket = iota // concepts: conceptId -> Concept
	bkDescriptions               // descriptions: descriptionId -> Description
	bkRelationships              // relationships: relationshipId -> Relationship
	bkRefsetItems                // refset-items: uuid -> ReferenceSetItem

	ixConceptDescriptions  // concept->descriptions: (conceptId, descriptionId) -> -
	ixConceptParents       // concept->parents(typeId): (sourceId, typeId, destId) -> -
	ixConceptChildren      // concept->children(typeId): (destId, typeId, sourceId) -> -
	ixComponentRefsetItems // component->refsetItems: (referencedComponentId, refsetId, uuid) -> -
	ixRefsetItems          // refset->items: (refsetId, referencedComponentId, uuid) -> -
	ixRefsetTargetItems    // refset map target lookup: (refsetId, target, uuid) -> -
	ixInstalledRefsets     // installed-refsets: refsetId -> -
	ixAncestorClosure      // ancestor-closure(IS-A): (conceptId, ancestorId) -> -
	ixRefsetDescriptor     // refset->attributeDescriptionId in AttributeOrder: (refsetId, order) -> attributeDescriptionId
)

var bucketNames = [...][]byte{
	[]byte("con"),
	[]byte("des"),
	[]byte("rel"),
	[]byte("rfi"),

	[]byte("cds"),
	[]byte("cpr"),
	[]byte("ccr"),
	[]byte("cri"),
	[]byte("ris"),
	[]byte("rti"),
	[]byte("irs"),
	[]byte("acl"),
	[]byte("rfd"),
}

func (b bucket) name() []byte { return bucketNames[b] }

func compoundKey(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func u64(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func parseU64(b []byte) int64 { return int64(binary.BigEndian.Uint64(b)) }

// ErrNotFound is returned when a keyed lookup has no matching record.
var ErrNotFound = errors.New("store: not found")

// ErrDatabaseNotInitialised names the condition of a store that has not been
// opened. No operation in this package returns it.
var ErrDatabaseNotInitialised = errors.New("store: database not initialised")

// Statistics summarizes the contents of a store, used by operational
// tooling and smoke tests.
type Statistics struct {
	Concepts      int
	Descriptions  int
	Relationships int
	RefsetItems   int
	Refsets       []int64
}

func (s Statistics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "concepts: %d\n", s.Concepts)
	fmt.Fprintf(&b, "descriptions: %d\n", s.Descriptions)
	fmt.Fprintf(&b, "relationships: %d\n", s.Relationships)
	fmt.Fprintf(&b, "reference set items: %d\n", s.RefsetItems)
	fmt.Fprintf(&b, "installed refsets: %d\n", len(s.Refsets))
	for _, r := range s.Refsets {
		fmt.Fprintf(&b, "  %d\n", r)
	}
	return b.String()
}
