package gdbscan

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newHandBuiltEngine returns an engine over n isolated points whose forest
// holds records records, ready for assignments to be stored by hand.
func newHandBuiltEngine(t *testing.T, n, records int, opts ...Option) *Engine[idList] {
	t.Helper()
	e, err := NewEngine[idList](newGraph(n), MinPtsCore[idList]{MinPts: 1}, opts...)
	require.NoError(t, err)
	for i := 0; i < records; i++ {
		_, err := e.forest.add()
		require.NoError(t, err)
	}
	return e
}

func TestFinalize_MultiBorderPicksSmallestRoot(t *testing.T) {
	for _, owners := range [][]int32{{9, 7}, {7, 9}} {
		e := newHandBuiltEngine(t, 4, 10, WithCoreModel(true))
		e.forest.union(7, 5)

		e.assignments.Store(0, coreAssignment(7)) // resolves to 5
		e.assignments.Store(1, coreAssignment(9))
		e.assignments.Store(2, Assignment{State: StateMultiBorder, Owners: owners})

		res, err := e.Finalize()
		require.NoError(t, err)

		require.Len(t, res.Clusters, 2)
		assert.Equal(t, int32(5), res.Clusters[0].Root)
		assert.Equal(t, int32(9), res.Clusters[1].Root)
		assert.Equal(t, []uint32{0, 2}, res.Clusters[0].Members.ToArray(), "owners %v", owners)
		assert.Equal(t, []uint32{1}, res.Clusters[1].Members.ToArray())
		assert.Equal(t, []uint32{0}, res.Clusters[0].Cores.ToArray())
		assert.Equal(t, []uint32{3}, res.Noise.ToArray())
	}
}

func TestFinalize_StaleBorderResolvesThroughFind(t *testing.T) {
	e := newHandBuiltEngine(t, 3, 4)
	e.forest.union(3, 1)
	e.forest.union(1, 2)

	e.assignments.Store(0, coreAssignment(1))
	e.assignments.Store(1, borderAssignment(3))
	e.assignments.Store(2, borderAssignment(2))

	res, err := e.Finalize()
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.Equal(t, int32(1), res.Clusters[0].Root)
	assert.Equal(t, []uint32{0, 1, 2}, res.Clusters[0].Members.ToArray())
	assert.Nil(t, res.Clusters[0].Cores)
}

func TestFinalize_SmallestCorePolicy(t *testing.T) {
	e := newHandBuiltEngine(t, 4, 10, WithBorderPolicy(BorderSmallestCore))

	// Root 5 holds core 3; root 9 holds core 0.
	e.assignments.Store(3, coreAssignment(5))
	e.assignments.Store(0, coreAssignment(9))
	e.assignments.Store(1, Assignment{State: StateMultiBorder, Owners: []int32{5, 9}})

	res, err := e.Finalize()
	require.NoError(t, err)
	require.Len(t, res.Clusters, 2)
	assert.Equal(t, []uint32{3}, res.Clusters[0].Members.ToArray())
	assert.Equal(t, []uint32{0, 1}, res.Clusters[1].Members.ToArray())
	assert.Equal(t, []uint32{2}, res.Noise.ToArray())
}

func TestFinalize_RecordsWithoutMembersProduceNoCluster(t *testing.T) {
	e := newHandBuiltEngine(t, 2, 5)
	e.assignments.Store(0, coreAssignment(4))

	res, err := e.Finalize()
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.Equal(t, int32(4), res.Clusters[0].Root)
}

// twoCliquesWithSharedBorder has two separate K5 clusters and point 10
// bordering both.
func twoCliquesWithSharedBorder() *graphNeighbors {
	edges := append(clique(0, 1, 2, 3, 4), clique(5, 6, 7, 8, 9)...)
	edges = append(edges, [2]PointID{4, 10}, [2]PointID{5, 10})
	return newGraph(11, edges...)
}

func TestRun_MultiBorderTieBreakAcrossWorkerCounts(t *testing.T) {
	for _, workers := range []int{1, 2, 8, 64} {
		for rep := 0; rep < 5; rep++ {
			e, err := NewEngine[idList](twoCliquesWithSharedBorder(), MinPtsCore[idList]{MinPts: 5},
				WithWorkers(workers), WithBlockSize(1))
			require.NoError(t, err)
			res, err := e.Run(context.Background())
			require.NoError(t, err)

			require.Len(t, res.Clusters, 2)
			require.Less(t, res.Clusters[0].Root, res.Clusters[1].Root)
			assert.Equal(t, 0, res.ClusterOf(10), "workers=%d rep=%d", workers, rep)
			assert.Equal(t, uint64(6), res.Clusters[0].Members.GetCardinality())
			requirePartition(t, res, Range(11))
		}
	}
}

func TestRun_SmallestCorePolicyIsScheduleIndependent(t *testing.T) {
	newEngine := func(opts ...Option) *Engine[idList] {
		opts = append(opts, WithBorderPolicy(BorderSmallestCore))
		e, err := NewEngine[idList](twoCliquesWithSharedBorder(), MinPtsCore[idList]{MinPts: 5}, opts...)
		require.NoError(t, err)
		return e
	}

	// Reverse order makes the cluster of 5..9 allocate the first record.
	order := make([]PointID, 0, 11)
	for id := 10; id >= 0; id-- {
		order = append(order, PointID(id))
	}
	ref := runSequentialOrder(t, newEngine(), order)
	require.Len(t, ref.Clusters, 2)
	assert.Equal(t, ref.ClusterOf(0), ref.ClusterOf(10))

	for _, workers := range []int{1, 2, 8, 64} {
		res, err := newEngine(WithWorkers(workers), WithBlockSize(1)).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, res.ClusterOf(0), res.ClusterOf(10), "workers=%d", workers)
		assert.Equal(t, ref.Fingerprint(), res.Fingerprint(), "workers=%d", workers)
	}
}

func TestResult_CoreModel(t *testing.T) {
	g := twoCliquesWithSharedBorder()
	e, err := NewEngine[idList](g, MinPtsCore[idList]{MinPts: 5}, WithCoreModel(true), WithWorkers(1))
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Clusters, 2)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, res.Clusters[0].Cores.ToArray())
	assert.Equal(t, []uint32{5, 6, 7, 8, 9}, res.Clusters[1].Cores.ToArray())
	assert.False(t, res.Clusters[0].Cores.Contains(10))
	assert.False(t, res.Clusters[1].Cores.Contains(10))
}

func TestResult_LabelsAndClusterOf(t *testing.T) {
	res := &Result{
		Clusters: []Group{
			{Root: 0, Members: roaring.BitmapOf(0, 1, 4)},
			{Root: 3, Members: roaring.BitmapOf(2, 5)},
		},
		Noise: roaring.BitmapOf(3),
	}
	assert.Equal(t, []int{0, 0, 1, -1, 0, 1}, res.Labels(6))
	assert.Equal(t, []int{0, 0}, res.Labels(2))
	assert.Equal(t, 1, res.ClusterOf(5))
	assert.Equal(t, -1, res.ClusterOf(3))
	assert.Equal(t, -1, res.ClusterOf(42))
	assert.Equal(t, 6, res.NumPoints())
}

func TestResult_FingerprintIgnoresClusterNumbering(t *testing.T) {
	a := &Result{
		Clusters: []Group{
			{Root: 0, Members: roaring.BitmapOf(0, 1)},
			{Root: 1, Members: roaring.BitmapOf(2, 3)},
		},
		Noise: roaring.BitmapOf(4),
	}
	b := &Result{
		Clusters: []Group{
			{Root: 7, Members: roaring.BitmapOf(2, 3)},
			{Root: 2, Members: roaring.BitmapOf(0, 1)},
		},
		Noise: roaring.BitmapOf(4),
	}
	moved := &Result{
		Clusters: []Group{
			{Root: 0, Members: roaring.BitmapOf(0, 1, 2)},
			{Root: 1, Members: roaring.BitmapOf(3)},
		},
		Noise: roaring.BitmapOf(4),
	}
	noNoise := &Result{
		Clusters: []Group{
			{Root: 0, Members: roaring.BitmapOf(0, 1)},
			{Root: 1, Members: roaring.BitmapOf(2, 3, 4)},
		},
		Noise: roaring.New(),
	}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), moved.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), noNoise.Fingerprint())
}
