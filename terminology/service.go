// Package terminology provides the process-wide facade over the store,
// index and ecl packages: a single Service value that opens a database
// directory, serves the read API over concepts/descriptions/relationships/
// reference sets, and drives the precomputation pipeline that builds
// ancestor closures and the search index.
//
// Grounded end to end on terminology/service.go's Svc: the Descriptor
// persistence scheme, the ExtendedConcept-style concurrent field
// population (kept in package index's Assemble now), and the
// PerformPrecomputations/ClearPrecomputations pipeline shape, retargeted
// at store.Store/index.Writer/ecl instead of the teacher's Batch-based
// abstract Store and bleve v1 Search interface.
package terminology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tporcham/hermes/ecl"
	"github.com/tporcham/hermes/index"
	"github.com/tporcham/hermes/snomed"
	"github.com/tporcham/hermes/store"
)

const (
	descriptorName = "service.json"
	currentVersion = 1
	storeKind      = "leveldb"
	searchKind     = "bleve"
)

// Descriptor records on-disk format versioning, persisted alongside the
// store and search index directories.
type Descriptor struct {
	Version    int32
	StoreKind  string
	SearchKind string
}

// Service is the process-wide open database: the KV store, the search
// index writer/reader, and the locale resolver, plus the persisted
// Descriptor. Its lifecycle is open-loads/close-releases, per spec.md §5's
// "process-wide read-mostly values, initialized at open and released on
// close" note.
type Service struct {
	path  string
	store *store.Store
	index *index.Writer
	locale *store.LocaleResolver
	Descriptor
}

// Open opens (or, when not readOnly, creates) a database at path.
func Open(path string, readOnly bool) (*Service, error) {
	if !readOnly {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("terminology: open %s: %w", path, err)
		}
	}
	desc, err := createOrOpenDescriptor(path, readOnly)
	if err != nil {
		return nil, err
	}
	if desc.Version != currentVersion {
		return nil, fmt.Errorf("terminology: incompatible database format v%d, need v%d", desc.Version, currentVersion)
	}
	if desc.StoreKind != storeKind || desc.SearchKind != searchKind {
		return nil, fmt.Errorf("terminology: incompatible database kinds (%s/%s), need (%s/%s)",
			desc.StoreKind, desc.SearchKind, storeKind, searchKind)
	}

	storePath := filepath.Join(path, "store.db")
	var st *store.Store
	if readOnly {
		st, err = store.OpenReadOnly(storePath)
	} else {
		st, err = store.Open(storePath)
	}
	if err != nil {
		return nil, fmt.Errorf("terminology: open store: %w", err)
	}

	svc := &Service{path: path, store: st, Descriptor: *desc}

	idxPath := svc.indexPath()
	if _, statErr := os.Stat(idxPath); statErr == nil {
		svc.index, err = index.OpenExistingWriter(idxPath)
	} else if os.IsNotExist(statErr) {
		if readOnly {
			// no search index built yet; reads that need it return an error
			// at call time rather than at open time.
			err = nil
		} else {
			svc.index, err = index.OpenWriter(idxPath)
		}
	} else {
		err = statErr
	}
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("terminology: open search index: %w", err)
	}

	svc.locale, err = store.NewLocaleResolver(st)
	if err != nil {
		st.Close()
		if svc.index != nil {
			svc.index.Close()
		}
		return nil, fmt.Errorf("terminology: build locale resolver: %w", err)
	}
	return svc, nil
}

// Close releases the store and search index file handles.
func (svc *Service) Close() error {
	var err error
	if svc.index != nil {
		err = svc.index.Close()
	}
	if cerr := svc.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (svc *Service) indexPath() string {
	return filepath.Join(svc.path, "search.bleve")
}

func createOrOpenDescriptor(path string, readOnly bool) (*Descriptor, error) {
	name := filepath.Join(path, descriptorName)
	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		if readOnly {
			return nil, fmt.Errorf("terminology: no descriptor at %s", name)
		}
		desc := &Descriptor{Version: currentVersion, StoreKind: storeKind, SearchKind: searchKind}
		return desc, saveDescriptor(path, desc)
	}
	if err != nil {
		return nil, err
	}
	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("terminology: decode descriptor: %w", err)
	}
	return &desc, nil
}

func saveDescriptor(path string, desc *Descriptor) error {
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(path, descriptorName), data, 0644)
}

// Concept returns the concept with the given identifier, or store.ErrNotFound.
func (svc *Service) Concept(conceptID int64) (*snomed.Concept, error) {
	return svc.store.Concept(conceptID)
}

// Description returns a single description by id.
func (svc *Service) Description(descriptionID int64) (*snomed.Description, error) {
	return svc.store.Description(descriptionID)
}

// ConceptDescriptions returns every description for conceptID.
func (svc *Service) ConceptDescriptions(conceptID int64) ([]*snomed.Description, error) {
	return svc.store.Descriptions(conceptID)
}

// ParentRelationships returns every active relationship sourced at conceptID, of any type.
func (svc *Service) ParentRelationships(conceptID int64) ([]*snomed.Relationship, error) {
	return svc.store.ParentRelationships(conceptID)
}

// ParentRelationshipsOfType narrows ParentRelationships to a single relationship type.
func (svc *Service) ParentRelationshipsOfType(conceptID, typeID int64) ([]*snomed.Relationship, error) {
	rels, err := svc.store.ParentRelationships(conceptID)
	if err != nil {
		return nil, err
	}
	filtered := make([]*snomed.Relationship, 0, len(rels))
	for _, r := range rels {
		if r.TypeID == typeID {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// ParentRelationshipsExpanded returns, for each of types (or, if types is
// empty, every type found among conceptID's direct relationships), the
// transitive set of ancestor ids reachable by that type: each destination of
// that type (see store.Parents) together with its IS-A ancestors.
func (svc *Service) ParentRelationshipsExpanded(conceptID int64, types []int64) (map[int64][]int64, error) {
	if len(types) == 0 {
		rels, err := svc.store.ParentRelationships(conceptID)
		if err != nil {
			return nil, err
		}
		seen := make(map[int64]struct{})
		for _, r := range rels {
			if _, ok := seen[r.TypeID]; !ok {
				seen[r.TypeID] = struct{}{}
				types = append(types, r.TypeID)
			}
		}
	}
	result := make(map[int64][]int64, len(types))
	for _, typeID := range types {
		parents, err := svc.store.Parents(conceptID, typeID)
		if err != nil {
			return nil, err
		}
		seen := make(map[int64]struct{}, len(parents))
		var ids []int64
		for dest := range parents {
			ancestors, err := svc.store.AncestorsOf(dest, snomed.IsA)
			if err != nil {
				return nil, err
			}
			for _, id := range append([]int64{dest}, ancestors...) {
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
		result[typeID] = ids
	}
	return result, nil
}

// ComponentRefsetItems returns component's membership items in refsetID, or
// in every refset it belongs to when refsetID is 0.
func (svc *Service) ComponentRefsetItems(componentID, refsetID int64) ([]snomed.ReferenceSetItem, error) {
	if refsetID != 0 {
		return svc.store.ComponentFromReferenceSet(refsetID, componentID)
	}
	refsetIDs, err := svc.store.ComponentReferenceSets(componentID)
	if err != nil {
		return nil, err
	}
	var all []snomed.ReferenceSetItem
	for _, r := range refsetIDs {
		items, err := svc.store.ComponentFromReferenceSet(r, componentID)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

// ComponentRefsetIDs lists the ids of every refset componentID belongs to.
func (svc *Service) ComponentRefsetIDs(componentID int64) ([]int64, error) {
	return svc.store.ComponentReferenceSets(componentID)
}

// PreferredSynonym resolves localeHeader (an RFC 4647/BCP-47 Accept-Language
// style priority list, or a "-x-<refsetId>" shortcut) against conceptID's
// descriptions, preferring a description marked Preferred in the
// highest-priority installed language refset. Falls back to any active
// synonym when no language refset membership matches, mirroring
// terminology/service.go's two-tier refsetLanguageMatch/simpleLanguageMatch.
func (svc *Service) PreferredSynonym(conceptID int64, localeHeader string) (*snomed.Description, error) {
	descs, err := svc.store.Descriptions(conceptID)
	if err != nil {
		return nil, err
	}
	refsetIDs, err := svc.locale.Resolve(localeHeader)
	if err != nil {
		return nil, err
	}
	for _, refsetID := range refsetIDs {
		for _, d := range descs {
			if !d.Active || !d.IsSynonym() {
				continue
			}
			items, err := svc.store.ComponentFromReferenceSet(refsetID, d.ID)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				if lang, ok := item.(*snomed.LanguageReferenceSet); ok && lang.IsPreferred() {
					return d, nil
				}
			}
		}
	}
	for _, d := range descs {
		if d.Active && d.IsSynonym() {
			return d, nil
		}
	}
	return nil, store.ErrNotFound
}

// FullySpecifiedName returns conceptID's active fully specified name.
func (svc *Service) FullySpecifiedName(conceptID int64) (*snomed.Description, error) {
	descs, err := svc.store.Descriptions(conceptID)
	if err != nil {
		return nil, err
	}
	for _, d := range descs {
		if d.Active && d.IsFullySpecifiedName() {
			return d, nil
		}
	}
	return nil, store.ErrNotFound
}

// HistoricalAssociations groups conceptID's active association reference
// set memberships (e.g. ReplacedBy, SameAs, PossiblyEquivalentTo, MovedTo)
// by refset id.
func (svc *Service) HistoricalAssociations(conceptID int64) (map[int64][]snomed.ReferenceSetItem, error) {
	refsetIDs, err := svc.store.ComponentReferenceSets(conceptID)
	if err != nil {
		return nil, err
	}
	result := make(map[int64][]snomed.ReferenceSetItem)
	for _, refsetID := range refsetIDs {
		items, err := svc.store.ComponentFromReferenceSet(refsetID, conceptID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if _, ok := item.(*snomed.AssociationReferenceSet); ok {
				result[refsetID] = append(result[refsetID], item)
			}
		}
	}
	return result, nil
}

// ReverseMap looks up every refsetID member whose map target equals target,
// e.g. finding the SNOMED concept(s) that a legacy CTV3 or ICD-10 code maps to.
func (svc *Service) ReverseMap(refsetID int64, mapTarget string) ([]snomed.ReferenceSetItem, error) {
	return svc.store.MapTarget(refsetID, mapTarget)
}

// RealizeECL evaluates node against the search index and ancestor-closure
// store, returning the de-duplicated set of matching concept ids.
func (svc *Service) RealizeECL(node *ecl.Node, limit int) ([]int64, error) {
	if svc.index == nil {
		return nil, fmt.Errorf("terminology: search index not built")
	}
	return ecl.Realize(svc.index.Bleve(), svc.store, node, limit)
}

// SearchRequest describes a search call, per spec.md §6's search() shape.
// Constraint, if set, is an already-parsed ECL AST (the parser is an
// external collaborator per spec.md §6) realized and used to post-filter
// text-search hits to members of that set.
type SearchRequest struct {
	Text                        string
	Constraint                  *ecl.Node
	Roots                       []int64 // restrict to descendants-or-self of these concepts
	Fuzzy                       bool
	FallbackFuzzy               bool
	MaxHits                     int
	ConceptRefsets              []int64
	IncludeInactiveConcepts     bool
	IncludeInactiveDescriptions bool
	ShowFSN                     bool
	RemoveDuplicates            bool
	Locale                      string
}

// Search runs req, returning results ranked by relevance. Locale, when set,
// resolves to the preferred-term fields the ranker prefers in its output.
func (svc *Service) Search(req SearchRequest) ([]index.Result, error) {
	if svc.index == nil {
		return nil, fmt.Errorf("terminology: search index not built")
	}
	maxHits := req.MaxHits
	if maxHits == 0 {
		maxHits = 100
	}
	var localeRefsets []int64
	if req.Locale != "" {
		var err error
		localeRefsets, err = svc.locale.Resolve(req.Locale)
		if err != nil {
			return nil, err
		}
	}

	fuzzy := index.FuzzyNever
	switch {
	case req.Fuzzy:
		fuzzy = index.FuzzyAlways
	case req.FallbackFuzzy:
		fuzzy = index.FuzzyFallback
	}

	var constraintSet map[int64]bool
	if req.Constraint != nil {
		ids, err := ecl.Realize(svc.index.Bleve(), svc.store, req.Constraint, 0)
		if err != nil {
			return nil, err
		}
		constraintSet = make(map[int64]bool, len(ids))
		for _, id := range ids {
			constraintSet[id] = true
		}
	}

	fetch := maxHits
	if constraintSet != nil || req.RemoveDuplicates || !req.ShowFSN {
		fetch = maxHits * 4 // overfetch: downstream filters may drop hits
	}
	hits, err := index.Search(svc.index.Bleve(), index.Request{
		Text:            req.Text,
		Mode:            index.RankRanked,
		Fuzzy:           fuzzy,
		IsA:             req.Roots,
		ConceptRefsets:  req.ConceptRefsets,
		IncludeInactive: req.IncludeInactiveDescriptions,
		MaximumHits:     fetch,
	}, localeRefsets)
	if err != nil {
		return nil, err
	}

	results := make([]index.Result, 0, len(hits))
	seenConcepts := make(map[int64]bool, len(hits))
	for _, h := range hits {
		if constraintSet != nil && !constraintSet[h.ConceptID] {
			continue
		}
		if !req.ShowFSN {
			d, err := svc.store.Description(h.DescriptionID)
			if err != nil {
				return nil, err
			}
			if d.TypeID == snomed.FullySpecifiedName {
				continue
			}
		}
		if !req.IncludeInactiveConcepts {
			c, err := svc.store.Concept(h.ConceptID)
			if err != nil {
				return nil, err
			}
			if !c.Active {
				continue
			}
		}
		if req.RemoveDuplicates {
			if seenConcepts[h.ConceptID] {
				continue
			}
			seenConcepts[h.ConceptID] = true
		}
		results = append(results, h)
		if len(results) == maxHits {
			break
		}
	}
	return results, nil
}

// PerformPrecomputations builds the ancestor closure and then, as a hard
// barrier after every closure write completes, rebuilds the search index
// from the closure-enriched store (spec.md §5: "Search index construction
// must complete after all component writes"). Any existing search index is
// closed and removed before the rebuild. The locale resolver is
// rebuilt last, since it snapshots which refsets are currently installed.
func (svc *Service) PerformPrecomputations(ctx context.Context) error {
	if err := svc.store.BuildAncestorClosure(); err != nil {
		return fmt.Errorf("terminology: build ancestor closure: %w", err)
	}

	if svc.index != nil {
		if err := svc.index.Close(); err != nil {
			return fmt.Errorf("terminology: close previous search index: %w", err)
		}
		svc.index = nil
	}
	if err := os.RemoveAll(svc.indexPath()); err != nil {
		return fmt.Errorf("terminology: remove search index: %w", err)
	}
	idx, err := index.OpenWriter(svc.indexPath())
	if err != nil {
		return fmt.Errorf("terminology: open search index: %w", err)
	}
	ids := make(chan int64, 1000)
	errCh := make(chan error, 1)
	go func() {
		defer close(ids)
		errCh <- svc.store.IterateConcepts(func(c *snomed.Concept) error {
			select {
			case ids <- c.ID:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	buildErr := idx.Build(ctx, svc.store, ids, 0)
	if iterErr := <-errCh; iterErr != nil {
		idx.Close()
		return fmt.Errorf("terminology: iterate concepts: %w", iterErr)
	}
	if buildErr != nil {
		idx.Close()
		return fmt.Errorf("terminology: build search index: %w", buildErr)
	}
	svc.index = idx

	locale, err := store.NewLocaleResolver(svc.store)
	if err != nil {
		return fmt.Errorf("terminology: build locale resolver: %w", err)
	}
	svc.locale = locale
	return nil
}

// ClearPrecomputations discards the search index, leaving the store (and
// its ancestor closure) untouched. A subsequent PerformPrecomputations
// rebuilds it.
func (svc *Service) ClearPrecomputations() error {
	if svc.index != nil {
		if err := svc.index.Close(); err != nil {
			return err
		}
		svc.index = nil
	}
	if err := os.RemoveAll(svc.indexPath()); err != nil {
		return fmt.Errorf("terminology: remove search index: %w", err)
	}
	idx, err := index.OpenWriter(svc.indexPath())
	if err != nil {
		return err
	}
	svc.index = idx
	return nil
}
