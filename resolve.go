package gdbscan

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"
	"github.com/zeebo/xxh3"
)

// Group is one output cluster.
type Group struct {
	// Root is the resolved forest index of the cluster: the smallest record
	// index among the cores merged into it.
	Root int32

	// Members holds every point of the cluster, cores and borders.
	Members *roaring.Bitmap

	// Cores holds the core members. Nil unless the engine was built with
	// WithCoreModel(true).
	Cores *roaring.Bitmap
}

// Result is the final partition of the point universe.
type Result struct {
	// Clusters are ordered by Root ascending. Every point appears in at
	// most one cluster.
	Clusters []Group

	// Noise holds the points that are neither core nor border.
	Noise *roaring.Bitmap

	// Merges is the number of unions of previously distinct clusters.
	Merges int
}

// NumPoints returns the number of points covered by the partition.
func (r *Result) NumPoints() int {
	n := r.Noise.GetCardinality()
	for _, c := range r.Clusters {
		n += c.Members.GetCardinality()
	}
	return int(n)
}

// ClusterOf returns the position in Clusters of the cluster containing id,
// or -1 if id is noise or unknown.
func (r *Result) ClusterOf(id PointID) int {
	for i, c := range r.Clusters {
		if c.Members.Contains(id) {
			return i
		}
	}
	return -1
}

// Labels returns a flat label per point for the dense universe {0..n-1}:
// the position of the point's cluster in Clusters, or -1 for noise.
func (r *Result) Labels(n int) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	for ci, c := range r.Clusters {
		c.Members.Iterate(func(id uint32) bool {
			if int64(id) < int64(n) {
				labels[id] = ci
			}
			return true
		})
	}
	return labels
}

// Fingerprint hashes the partition independently of cluster numbering:
// two results have the same fingerprint when they group the same points
// together and agree on noise.
func (r *Result) Fingerprint() uint64 {
	members := make([][]uint32, 0, len(r.Clusters))
	for _, c := range r.Clusters {
		members = append(members, c.Members.ToArray())
	}
	slices.SortFunc(members, func(a, b []uint32) int {
		return slices.Compare(a, b)
	})

	h := xxh3.New()
	var buf []byte
	writeSet := func(ids []uint32) {
		buf = binary.LittleEndian.AppendUint64(buf[:0], uint64(len(ids)))
		for _, id := range ids {
			buf = binary.LittleEndian.AppendUint32(buf, id)
		}
		_, _ = h.Write(buf)
	}
	for _, m := range members {
		writeSet(m)
	}
	writeSet(r.Noise.ToArray())
	return h.Sum64()
}

// Finalize resolves the cluster forest into the output partition. It must
// be called once, after every point has been processed; points that were
// not processed are reported as noise and a warning is logged. The engine's
// scratch state is released afterwards.
func (e *Engine[N]) Finalize() (*Result, error) {
	if !e.status.CompareAndSwap(engineActive, engineFinalized) {
		if e.status.Load() == engineFailed {
			return nil, fmt.Errorf("%w: %w", ErrRunFailed, e.failErr)
		}
		return nil, ErrEngineClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Points never handed to Process end up as noise.
	if done, total := e.done.Load(), e.npred.IDs().GetCardinality(); uint64(done) < total {
		e.opts.logger.Warn("finalize before all points processed",
			"processed", done,
			"points", total,
		)
	}

	f := e.forest
	f.compress()

	var lowest []PointID
	if e.opts.borderPolicy == BorderSmallestCore {
		lowest = e.lowestCores(f)
	}

	size := uint(f.Len())
	members := make([]*roaring.Bitmap, size)
	var cores []*roaring.Bitmap
	if e.opts.trackCores {
		cores = make([]*roaring.Bitmap, size)
	}
	used := bitset.New(size)
	noise := roaring.New()

	add := func(root int32, id PointID) {
		if !used.Test(uint(root)) {
			used.Set(uint(root))
			members[root] = roaring.New()
		}
		members[root].Add(id)
	}

	e.npred.IDs().Iterate(func(id uint32) bool {
		a, _ := e.assignments.Load(id)
		switch a.State {
		case StateUnassigned:
			noise.Add(id)
		case StateCore:
			root := f.find(a.Index)
			add(root, id)
			if cores != nil {
				if cores[root] == nil {
					cores[root] = roaring.New()
				}
				cores[root].Add(id)
			}
		case StateBorder:
			add(f.find(a.Index), id)
		case StateMultiBorder:
			add(e.pickOwner(f, a.Owners, lowest), id)
		}
		return true
	})

	res := &Result{
		Clusters: make([]Group, 0, used.Count()),
		Noise:    noise,
		Merges:   e.merges,
	}
	for i, ok := used.NextSet(0); ok; i, ok = used.NextSet(i + 1) {
		c := Group{Root: int32(i), Members: members[i]}
		if cores != nil {
			c.Cores = cores[i]
			if c.Cores == nil {
				c.Cores = roaring.New()
			}
		}
		res.Clusters = append(res.Clusters, c)
	}

	e.assignments.Clear()
	e.forest = newForest(e.opts.maxCoreRecords)
	return res, nil
}

// lowestCores returns, per resolved root, the smallest core PointID in the
// cluster. Entries for non-roots are math.MaxUint32.
func (e *Engine[N]) lowestCores(f *forest) []PointID {
	lowest := make([]PointID, f.Len())
	for i := range lowest {
		lowest[i] = math.MaxUint32
	}
	e.assignments.Range(func(id PointID, a Assignment) bool {
		if a.State == StateCore {
			r := f.find(a.Index)
			lowest[r] = min(lowest[r], id)
		}
		return true
	})
	return lowest
}

// pickOwner resolves the owners of a MultiBorder point to a single root
// according to the border policy.
func (e *Engine[N]) pickOwner(f *forest, owners []int32, lowest []PointID) int32 {
	best := f.find(owners[0])
	for _, o := range owners[1:] {
		r := f.find(o)
		if lowest != nil {
			if lowest[r] < lowest[best] || (lowest[r] == lowest[best] && r < best) {
				best = r
			}
			continue
		}
		if r < best {
			best = r
		}
	}
	return best
}
