package index

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/oscara1796/vecsearch/internal/vector"
)

// DefaultWorkers is half the available CPUs, never less than one.
func DefaultWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

// BuildParallel produces the same Index as Build, computing per-document
// concordances on a pool of workers. Results are merged in corpus order so
// the outcome does not depend on scheduling. A cancelled ctx aborts the build.
func BuildParallel(ctx context.Context, corpus []Document, workers int) (*Index, error) {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if workers == 1 || len(corpus) < 2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Build(corpus)
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating index worker pool: %w", err)
	}
	defer pool.Release()

	concordances := make([]vector.Concordance, len(corpus))
	var wg sync.WaitGroup
	for i := range corpus {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		i := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			concordances[i] = vector.BuildConcordance(corpus[i].Text)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submitting document %d: %w", i, err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return assemble(corpus, concordances)
}
