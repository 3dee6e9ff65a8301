package gdbscan

import (
	"fmt"
	"iter"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// Neighborhood is the output of EpsilonNeighbors: the ids within epsilon of
// a query point, the query point included, with their distances.
type Neighborhood struct {
	IDs       []PointID
	Distances []float64
}

// Len returns the number of neighbors, including the query point.
func (nb Neighborhood) Len() int { return len(nb.IDs) }

// EpsilonNeighbors is the range-query neighbor predicate: two points are
// neighbors when their distance is at most Epsilon. Queries scan the data
// linearly; data is flat row-major with n rows and dims columns.
type EpsilonNeighbors struct {
	data    []float64
	n, dims int
	metric  DistanceMetric
	epsilon float64
	ids     *roaring.Bitmap
}

// NewEpsilonNeighbors creates a range-query predicate over flat data.
func NewEpsilonNeighbors(data []float64, n, dims int, metric DistanceMetric, epsilon float64) *EpsilonNeighbors {
	if metric == nil {
		metric = EuclideanMetric{}
	}
	return &EpsilonNeighbors{
		data:    data,
		n:       n,
		dims:    dims,
		metric:  metric,
		epsilon: epsilon,
		ids:     Range(n),
	}
}

func (p *EpsilonNeighbors) IDs() *roaring.Bitmap     { return p.ids }
func (p *EpsilonNeighbors) OutputKind() NeighborKind { return KindDistances }

func (p *EpsilonNeighbors) Instantiate() NeighborInstance[Neighborhood] {
	return &epsilonQuery{p: p}
}

func (p *EpsilonNeighbors) row(i int) []float64 {
	return p.data[i*p.dims : (i+1)*p.dims]
}

// epsilonQuery reuses its buffers between calls; it belongs to one worker.
type epsilonQuery struct {
	p   *EpsilonNeighbors
	buf Neighborhood
}

func (q *epsilonQuery) Neighbors(id PointID) (Neighborhood, error) {
	p := q.p
	if int64(id) >= int64(p.n) {
		return Neighborhood{}, fmt.Errorf("point %d out of range [0, %d)", id, p.n)
	}
	ids := q.buf.IDs[:0]
	dists := q.buf.Distances[:0]
	query := p.row(int(id))
	for j := 0; j < p.n; j++ {
		if d := p.metric.Distance(query, p.row(j)); d <= p.epsilon {
			ids = append(ids, PointID(j))
			dists = append(dists, d)
		}
	}
	q.buf = Neighborhood{IDs: ids, Distances: dists}
	return q.buf, nil
}

func (q *epsilonQuery) IterIDs(nb Neighborhood) iter.Seq[PointID] {
	return slices.Values(nb.IDs)
}
