// Package gdbscan implements a parallel Generalized DBSCAN (Density-Based
// Spatial Clustering of Applications with Noise).
//
// Unlike sequential DBSCAN, which grows one cluster at a time, the engine
// processes points in any order on any number of goroutines. A core point
// joins a cluster it finds among its neighbors or starts a new one; clusters
// that later turn out to be connected are merged in a union-find forest. The
// final partition is the same regardless of scheduling.
//
// Basic usage:
//
//	cfg := gdbscan.DefaultConfig()
//	cfg.Epsilon = 0.3
//	cfg.MinPts = 10
//	result, err := gdbscan.Cluster(data, cfg)
//	// result.Clusters[i].Members holds the point ids of cluster i
//	// result.Noise holds the points in no cluster
//	// result.Labels(len(data))[j] is the cluster of point j (-1 = noise)
//
// # Custom predicates
//
// The neighborhood and core conditions are pluggable. Any pair of
// NeighborPredicate and CorePredicate over the same neighborhood type can
// drive the engine:
//
//	engine, err := gdbscan.NewEngine[MyNeighbors](npred, corePred,
//		gdbscan.WithWorkers(8),
//		gdbscan.WithCoreModel(true),
//	)
//	result, err := engine.Run(ctx)
//
// NewEngine fails with ErrIncompatiblePredicates when the core predicate
// does not accept the neighbor predicate's output kind.
package gdbscan
