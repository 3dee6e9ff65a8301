package gdbscan

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// PointID identifies a point in the dataset. IDs are owned by the dataset;
// the engine only borrows them.
type PointID = uint32

// Range returns the dense point universe {0, ..., n-1}.
func Range(n int) *roaring.Bitmap {
	ids := roaring.New()
	if n > 0 {
		ids.AddRange(0, uint64(n))
	}
	return ids
}

// NeighborKind describes what a neighbor predicate's neighborhoods carry, so
// that a core predicate can declare which neighborhoods it understands.
type NeighborKind string

const (
	// KindIDs: neighborhoods enumerate point ids only.
	KindIDs NeighborKind = "ids"
	// KindDistances: neighborhoods enumerate point ids with their distances.
	KindDistances NeighborKind = "distances"
	// KindWeighted: neighborhoods carry per-neighbor weights.
	KindWeighted NeighborKind = "weighted"
)

// NeighborPredicate produces per-worker neighbor queries over a fixed set of
// points. N is the neighborhood representation.
type NeighborPredicate[N any] interface {
	// Instantiate returns a new query instance. It is called once per worker
	// and the instance is never shared between goroutines.
	Instantiate() NeighborInstance[N]

	// OutputKind describes the neighborhoods this predicate produces.
	OutputKind() NeighborKind

	// IDs returns the point universe. It must not change during a run.
	IDs() *roaring.Bitmap
}

// NeighborInstance answers neighbor queries for one worker. Implementations
// may keep scratch buffers; a returned neighborhood only needs to stay valid
// until the next call to Neighbors on the same instance.
type NeighborInstance[N any] interface {
	Neighbors(id PointID) (N, error)

	// IterIDs yields the point ids of a neighborhood. The order must be
	// the same every time the same neighborhood is iterated.
	IterIDs(neighbors N) iter.Seq[PointID]
}

// CorePredicate decides whether a point is a density core given its
// neighborhood. IsCore must be pure and safe to call from any goroutine.
type CorePredicate[N any] interface {
	IsCore(id PointID, neighbors N) bool

	// Accepts reports whether neighborhoods of the given kind can be
	// evaluated. It is checked once before the run starts.
	Accepts(kind NeighborKind) bool
}

// Sizer is implemented by neighborhoods that know their own size.
type Sizer interface {
	Len() int
}

// MinPtsCore is the classic DBSCAN core condition: a point is core when its
// neighborhood, which includes the point itself, has at least MinPts members.
type MinPtsCore[N Sizer] struct {
	MinPts int
}

func (c MinPtsCore[N]) IsCore(_ PointID, neighbors N) bool {
	return neighbors.Len() >= c.MinPts
}

func (MinPtsCore[N]) Accepts(kind NeighborKind) bool {
	return kind == KindIDs || kind == KindDistances
}
