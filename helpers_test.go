package gdbscan

import (
	"iter"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/require"
)

const floatTol = 1e-10

// idList is a neighborhood of plain point ids.
type idList []PointID

func (l idList) Len() int { return len(l) }

// graphNeighbors is a neighbor predicate over an explicit undirected graph.
// Every point is its own neighbor.
type graphNeighbors struct {
	adj  map[PointID][]PointID
	ids  *roaring.Bitmap
	kind NeighborKind
	fail map[PointID]error
}

func newGraph(n int, edges ...[2]PointID) *graphNeighbors {
	g := &graphNeighbors{
		adj:  make(map[PointID][]PointID, n),
		ids:  Range(n),
		kind: KindIDs,
	}
	for i := 0; i < n; i++ {
		g.adj[PointID(i)] = []PointID{PointID(i)}
	}
	for _, e := range edges {
		g.adj[e[0]] = append(g.adj[e[0]], e[1])
		g.adj[e[1]] = append(g.adj[e[1]], e[0])
	}
	return g
}

// clique returns the edges of a complete graph over ids.
func clique(ids ...PointID) [][2]PointID {
	var edges [][2]PointID
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			edges = append(edges, [2]PointID{ids[i], ids[j]})
		}
	}
	return edges
}

func (g *graphNeighbors) IDs() *roaring.Bitmap     { return g.ids }
func (g *graphNeighbors) OutputKind() NeighborKind { return g.kind }
func (g *graphNeighbors) Instantiate() NeighborInstance[idList] {
	return graphQuery{g: g}
}

type graphQuery struct{ g *graphNeighbors }

func (q graphQuery) Neighbors(id PointID) (idList, error) {
	if err := q.g.fail[id]; err != nil {
		return nil, err
	}
	return idList(q.g.adj[id]), nil
}

func (q graphQuery) IterIDs(nb idList) iter.Seq[PointID] {
	return slices.Values([]PointID(nb))
}

// runSequentialOrder processes ids in the given order on one mapper and
// finalizes the engine.
func runSequentialOrder[N any](t *testing.T, e *Engine[N], order []PointID) *Result {
	t.Helper()
	m, err := e.Instantiate()
	require.NoError(t, err)
	for _, id := range order {
		require.NoError(t, m.Map(id))
	}
	e.Cleanup(m)
	res, err := e.Finalize()
	require.NoError(t, err)
	return res
}

// requirePartition checks that every point of universe appears exactly once
// across clusters and noise.
func requirePartition(t *testing.T, res *Result, universe *roaring.Bitmap) {
	t.Helper()
	seen := roaring.New()
	total := res.Noise.GetCardinality()
	seen.Or(res.Noise)
	for _, c := range res.Clusters {
		require.False(t, c.Members.IsEmpty(), "cluster %d is empty", c.Root)
		require.False(t, seen.Intersects(c.Members), "cluster %d overlaps another set", c.Root)
		seen.Or(c.Members)
		total += c.Members.GetCardinality()
	}
	require.Equal(t, universe.GetCardinality(), total)
	require.True(t, seen.Equals(universe))
}

// memberSets returns the clusters as sorted id slices, for comparisons that
// ignore cluster numbering.
func memberSets(res *Result) [][]uint32 {
	sets := make([][]uint32, 0, len(res.Clusters))
	for _, c := range res.Clusters {
		sets = append(sets, c.Members.ToArray())
	}
	return sortedSets(sets)
}

func sortedSets(sets [][]uint32) [][]uint32 {
	slices.SortFunc(sets, func(a, b []uint32) int { return slices.Compare(a, b) })
	return sets
}

// generateBlobs returns k gaussian blobs of size points each, centers spread
// on a line, plus uniform background noise.
func generateBlobs(seed int64, k, size, noise, dims int, spread float64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	data := make([][]float64, 0, k*size+noise)
	for c := 0; c < k; c++ {
		for i := 0; i < size; i++ {
			p := make([]float64, dims)
			for d := range p {
				p[d] = rng.NormFloat64() * spread
			}
			p[0] += float64(c) * 10
			data = append(data, p)
		}
	}
	for i := 0; i < noise; i++ {
		p := make([]float64, dims)
		for d := range p {
			p[d] = rng.Float64()*float64(k)*10 - 5
		}
		data = append(data, p)
	}
	return data
}

// generateGrids returns k square grids of side*side points with unit
// spacing, 100 apart, followed by isolated points.
func generateGrids(k, side, isolated int) [][]float64 {
	var data [][]float64
	for c := 0; c < k; c++ {
		for x := 0; x < side; x++ {
			for y := 0; y < side; y++ {
				data = append(data, []float64{float64(c)*100 + float64(x), float64(y)})
			}
		}
	}
	for i := 0; i < isolated; i++ {
		data = append(data, []float64{float64(i) * 50, 1000})
	}
	return data
}

func flatten(data [][]float64) ([]float64, int, int) {
	n := len(data)
	if n == 0 {
		return nil, 0, 0
	}
	dims := len(data[0])
	flat := make([]float64, 0, n*dims)
	for _, row := range data {
		flat = append(flat, row...)
	}
	return flat, n, dims
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
