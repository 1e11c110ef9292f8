package index

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
)

// Writer owns the bleve index and the concurrent build pipeline that
// populates it from the store, grounded on terminology/bleve.go's
// bleveService/newBleveIndex, retargeted at bleve v2 and the C7 schema.
type Writer struct {
	index bleve.Index
}

// OpenWriter creates a new scorch-backed index at path with the C7 mapping.
// It fails if an index already exists at path.
func OpenWriter(path string) (*Writer, error) {
	idx, err := bleve.NewUsing(path, BuildIndexMapping(), scorch.Name, scorch.Name, nil)
	if err != nil {
		return nil, err
	}
	return &Writer{index: idx}, nil
}

// OpenExistingWriter opens a previously built index for incremental use.
func OpenExistingWriter(path string) (*Writer, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, err
	}
	return &Writer{index: idx}, nil
}

func (w *Writer) Close() error { return w.index.Close() }

// Bleve exposes the underlying index for package search's query execution.
func (w *Writer) Bleve() bleve.Index { return w.index }

// Build runs C6+C7 over every concept ids yields, concurrently assembling
// extended concepts and their documents and batching them into the index.
// Mirrors terminology/importer.go's producer/worker-pool shape, generalized
// from RF2-row batches to concept-id batches.
func (w *Writer) Build(ctx context.Context, s DocumentStore, ids <-chan int64, workers int) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := w.index.NewBatch()
			const flushEvery = 200
			for {
				select {
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				case conceptID, ok := <-ids:
					if !ok {
						if batch.Size() > 0 {
							if err := w.index.Batch(batch); err != nil {
								errs <- err
							}
						}
						return
					}
					ec, err := Assemble(s, conceptID)
					if err != nil {
						errs <- fmt.Errorf("assemble %d: %w", conceptID, err)
						continue
					}
					docs, err := BuildDocuments(s, ec)
					if err != nil {
						errs <- fmt.Errorf("build documents %d: %w", conceptID, err)
						continue
					}
					for id, doc := range docs {
						if err := batch.Index(id, doc); err != nil {
							errs <- err
						}
					}
					if batch.Size() >= flushEvery {
						if err := w.index.Batch(batch); err != nil {
							errs <- err
						}
						batch = w.index.NewBatch()
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
