package gdbscan

import (
	"context"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultBlockSize is the number of point ids a worker claims at a time.
const DefaultBlockSize = 256

// Mapper processes single points for one worker.
type Mapper interface {
	Map(id PointID) error
}

// Processor hands out per-worker Mappers. Engine implements Processor.
type Processor interface {
	// Instantiate is called once per worker before it maps any point.
	Instantiate() (Mapper, error)

	// Cleanup is called once for every Mapper returned by Instantiate.
	Cleanup(m Mapper)
}

// RunParallel calls Map exactly once for every id in ids, spread over up to
// numWorkers goroutines. Workers claim contiguous blocks of blockSize ids
// from a shared cursor, so there is no ordering guarantee between blocks.
// If numWorkers <= 1, ids are mapped sequentially in ascending order on the
// calling goroutine.
//
// The first error from any worker cancels the others and is returned.
// Cancellation of ctx is observed between blocks.
func RunParallel(ctx context.Context, ids *roaring.Bitmap, p Processor, numWorkers, blockSize int) error {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	all := ids.ToArray()
	numBlocks := (len(all) + blockSize - 1) / blockSize
	if numWorkers > numBlocks {
		numWorkers = numBlocks
	}
	if numWorkers <= 1 {
		return runSequential(ctx, all, p, blockSize)
	}

	g, gctx := errgroup.WithContext(ctx)
	var cursor atomic.Int64

	for w := 0; w < numWorkers; w++ {
		g.Go(func() error {
			m, err := p.Instantiate()
			if err != nil {
				return err
			}
			defer p.Cleanup(m)

			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				end := int(cursor.Add(int64(blockSize)))
				start := end - blockSize
				if start >= len(all) {
					return nil
				}
				for _, id := range all[start:min(end, len(all))] {
					if err := m.Map(id); err != nil {
						return err
					}
				}
			}
		})
	}

	return g.Wait()
}

func runSequential(ctx context.Context, all []uint32, p Processor, blockSize int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := p.Instantiate()
	if err != nil {
		return err
	}
	defer p.Cleanup(m)

	for i, id := range all {
		if i > 0 && i%blockSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := m.Map(id); err != nil {
			return err
		}
	}
	return nil
}
