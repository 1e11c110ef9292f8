// Package ingest implements the ingestion pipeline that turns a directory of
// RF2 release files into persisted store records (spec.md §4.1: "ingestion
// runs C1→C2→C3 for every file, then C4 builds closures"). Grounded on
// terminology/importer.go's producer/worker-pool shape, generalized from a
// single upstream producer (snomed.FastImport) feeding four fixed channels
// into a per-file walk that dispatches by decoded Kind, since package rf2
// replaces the teacher's single-shot snomed.FastImport entirely.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tporcham/hermes/rf2"
	"github.com/tporcham/hermes/snomed"
)

// Storer is the subset of store.Store the importer writes through, kept
// narrow so tests can substitute an in-memory fake.
type Storer interface {
	PutConcepts([]*snomed.Concept) error
	PutDescriptions([]*snomed.Description) error
	PutRelationships([]*snomed.Relationship) error
	PutRefsetItems([]snomed.ReferenceSetItem) error
	AttributeIDsForRefset(refsetID int64) ([]int64, error)
	BuildAncestorClosure() error
}

// Summary reports what an Import run did, including rows that were admitted
// despite failing validation (spec.md §4.1: ingestion is lenient).
type Summary struct {
	ConceptsWritten      int64
	DescriptionsWritten  int64
	RelationshipsWritten int64
	RefsetItemsWritten   int64

	mu               sync.Mutex
	ParseErrors      []error
	ValidationErrors []error
}

func (s *Summary) addParseError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ParseErrors = append(s.ParseErrors, err)
}

func (s *Summary) addValidationError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ValidationErrors = append(s.ValidationErrors, err)
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d concepts, %d descriptions, %d relationships, %d refset items (%d parse errors, %d validation errors)",
		s.ConceptsWritten, s.DescriptionsWritten, s.RelationshipsWritten, s.RefsetItemsWritten,
		len(s.ParseErrors), len(s.ValidationErrors))
}

// Importer drives the producer/worker-pool ingestion of a release tree.
type Importer struct {
	storer    Storer
	batchSize int
	workers   int

	mu          sync.Mutex
	refsetKinds map[int64]snomed.RefsetKind
}

// NewImporter creates an Importer. batchSize defaults to 5000 (spec.md
// §4.1's "bounded size (e.g. 5000)", raised from the teacher's 500 default);
// workers defaults to runtime.NumCPU().
func NewImporter(storer Storer, batchSize, workers int) *Importer {
	if batchSize <= 0 {
		batchSize = 5000
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Importer{
		storer:      storer,
		batchSize:   batchSize,
		workers:     workers,
		refsetKinds: make(map[int64]snomed.RefsetKind),
	}
}

// Import walks root for RF2 release files and ingests them in dependency
// order (rf2.WalkFiles), then builds the ancestor closure once every
// relationship has been written.
func (im *Importer) Import(ctx context.Context, root string) (*Summary, error) {
	tasks, err := rf2.WalkFiles(root)
	if err != nil {
		return nil, err
	}
	summary := &Summary{}
	for _, task := range tasks {
		var err error
		switch task.Info.Kind {
		case rf2.KindConcept:
			err = im.importConcepts(ctx, task.Path, summary)
		case rf2.KindDescription, rf2.KindTextDefinition:
			err = im.importDescriptions(ctx, task.Path, summary)
		case rf2.KindRelationship, rf2.KindStatedRelationship:
			err = im.importRelationships(ctx, task.Path, summary)
		case rf2.KindRefset:
			err = im.importRefsets(ctx, task.Path, task.Info.Pattern, summary)
		}
		if err != nil {
			return summary, fmt.Errorf("ingest %s: %w", task.Path, err)
		}
	}
	if err := im.storer.BuildAncestorClosure(); err != nil {
		return summary, err
	}
	return summary, nil
}

type rawLine struct {
	line int
	text string
}

// produceLines reads path, skipping its header row, and emits batches of
// batchSize raw lines. The returned error channel carries at most one error
// and is only meaningful after the line channel has closed.
func produceLines(ctx context.Context, path string, batchSize int) (<-chan []rawLine, <-chan error) {
	out := make(chan []rawLine, 4)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		f, err := os.Open(path)
		if err != nil {
			errc <- err
			return
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		lineNo := 0
		if scanner.Scan() {
			lineNo++ // header row, discarded
		}
		batch := make([]rawLine, 0, batchSize)
		flush := func() bool {
			if len(batch) == 0 {
				return true
			}
			select {
			case out <- batch:
				batch = make([]rawLine, 0, batchSize)
				return true
			case <-ctx.Done():
				return false
			}
		}
		for scanner.Scan() {
			lineNo++
			batch = append(batch, rawLine{line: lineNo, text: scanner.Text()})
			if len(batch) >= batchSize {
				if !flush() {
					return
				}
			}
		}
		flush()
		if err := scanner.Err(); err != nil {
			errc <- err
		}
	}()
	return out, errc
}

func producerErr(errc <-chan error) error {
	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

func (im *Importer) importConcepts(ctx context.Context, path string, summary *Summary) error {
	lines, errc := produceLines(ctx, path, im.batchSize)
	var wg sync.WaitGroup
	for i := 0; i < im.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range lines {
				concepts := make([]*snomed.Concept, 0, len(batch))
				for _, rl := range batch {
					c, verr, err := rf2.ParseConcept(rl.line, rl.text)
					if err != nil {
						summary.addParseError(err)
						continue
					}
					if verr != nil {
						summary.addValidationError(verr)
					}
					concepts = append(concepts, c)
				}
				if err := im.storer.PutConcepts(concepts); err != nil {
					summary.addParseError(err)
					continue
				}
				atomic.AddInt64(&summary.ConceptsWritten, int64(len(concepts)))
			}
		}()
	}
	wg.Wait()
	return producerErr(errc)
}

func (im *Importer) importDescriptions(ctx context.Context, path string, summary *Summary) error {
	lines, errc := produceLines(ctx, path, im.batchSize)
	var wg sync.WaitGroup
	for i := 0; i < im.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range lines {
				descriptions := make([]*snomed.Description, 0, len(batch))
				for _, rl := range batch {
					d, verr, err := rf2.ParseDescription(rl.line, rl.text)
					if err != nil {
						summary.addParseError(err)
						continue
					}
					if verr != nil {
						summary.addValidationError(verr)
					}
					descriptions = append(descriptions, d)
				}
				if err := im.storer.PutDescriptions(descriptions); err != nil {
					summary.addParseError(err)
					continue
				}
				atomic.AddInt64(&summary.DescriptionsWritten, int64(len(descriptions)))
			}
		}()
	}
	wg.Wait()
	return producerErr(errc)
}

func (im *Importer) importRelationships(ctx context.Context, path string, summary *Summary) error {
	lines, errc := produceLines(ctx, path, im.batchSize)
	var wg sync.WaitGroup
	for i := 0; i < im.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range lines {
				relationships := make([]*snomed.Relationship, 0, len(batch))
				for _, rl := range batch {
					r, verr, err := rf2.ParseRelationship(rl.line, rl.text)
					if err != nil {
						summary.addParseError(err)
						continue
					}
					if verr != nil {
						summary.addValidationError(verr)
					}
					relationships = append(relationships, r)
				}
				if err := im.storer.PutRelationships(relationships); err != nil {
					summary.addParseError(err)
					continue
				}
				atomic.AddInt64(&summary.RelationshipsWritten, int64(len(relationships)))
			}
		}()
	}
	wg.Wait()
	return producerErr(errc)
}

// refsetKindFor classifies refsetID, caching the result. A RefsetDescriptor
// refset's own rows are always KindRefsetDescriptor regardless of its
// members' shapes, since those rows describe *other* refsets.
func (im *Importer) refsetKindFor(refsetID int64) (snomed.RefsetKind, error) {
	if rf2.ClassifyRefsetDescriptor(refsetID) {
		return snomed.KindRefsetDescriptor, nil
	}
	im.mu.Lock()
	kind, ok := im.refsetKinds[refsetID]
	im.mu.Unlock()
	if ok {
		return kind, nil
	}
	attrs, err := im.storer.AttributeIDsForRefset(refsetID)
	if err != nil {
		return 0, err
	}
	kind = rf2.Classify(attrs)
	im.mu.Lock()
	im.refsetKinds[refsetID] = kind
	im.mu.Unlock()
	return kind, nil
}

func (im *Importer) importRefsets(ctx context.Context, path, pattern string, summary *Summary) error {
	lines, errc := produceLines(ctx, path, im.batchSize)
	var wg sync.WaitGroup
	for i := 0; i < im.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range lines {
				items := make([]snomed.ReferenceSetItem, 0, len(batch))
				for _, rl := range batch {
					generic, verr, err := rf2.ParseRefsetRow(rl.line, rl.text, pattern)
					if err != nil {
						summary.addParseError(err)
						continue
					}
					if verr != nil {
						summary.addValidationError(verr)
					}
					kind, err := im.refsetKindFor(generic.Header.RefsetID)
					if err != nil {
						summary.addParseError(err)
						continue
					}
					item, err := rf2.Reify(generic, kind)
					if err != nil {
						summary.addParseError(err)
						continue
					}
					items = append(items, item)
				}
				if err := im.storer.PutRefsetItems(items); err != nil {
					summary.addParseError(err)
					continue
				}
				atomic.AddInt64(&summary.RefsetItemsWritten, int64(len(items)))
			}
		}()
	}
	wg.Wait()
	return producerErr(errc)
}
