package gdbscan

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/xid"
)

// BorderPolicy selects the cluster of a point that borders several clusters.
type BorderPolicy string

const (
	// BorderSmallestRoot assigns the point to the cluster with the smallest
	// resolved forest index.
	BorderSmallestRoot BorderPolicy = "smallest_root"

	// BorderSmallestCore assigns the point to the cluster containing the
	// smallest core PointID. Unlike BorderSmallestRoot, this choice does not
	// depend on which worker created which forest record first.
	BorderSmallestCore BorderPolicy = "smallest_core"
)

func (p BorderPolicy) valid() bool {
	return p == BorderSmallestRoot || p == BorderSmallestCore
}

const (
	engineActive int32 = iota
	engineFailed
	engineFinalized
)

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	workers        int
	blockSize      int
	borderPolicy   BorderPolicy
	trackCores     bool
	maxCoreRecords int
	progressEvery  int
	logger         *slog.Logger
	metrics        MetricsCollector
}

func defaultEngineOptions() engineOptions {
	return engineOptions{
		workers:      runtime.NumCPU(),
		blockSize:    DefaultBlockSize,
		borderPolicy: BorderSmallestRoot,
		logger:       discardLogger,
		metrics:      NoopMetricsCollector{},
	}
}

// WithWorkers sets the number of worker goroutines used by Run. Values <= 1
// process points sequentially.
func WithWorkers(n int) Option { return func(o *engineOptions) { o.workers = n } }

// WithBlockSize sets how many point ids a worker claims at a time.
func WithBlockSize(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.blockSize = n
		}
	}
}

// WithBorderPolicy sets the tie-break for points bordering several clusters.
// NewEngine rejects unknown policies.
func WithBorderPolicy(p BorderPolicy) Option {
	return func(o *engineOptions) { o.borderPolicy = p }
}

// WithCoreModel records which cluster members are core points.
func WithCoreModel(track bool) Option { return func(o *engineOptions) { o.trackCores = track } }

// WithMaxCoreRecords caps the cluster forest. 0 means no cap beyond the
// int32 index space.
func WithMaxCoreRecords(n int) Option { return func(o *engineOptions) { o.maxCoreRecords = n } }

// WithProgressEvery logs progress at debug level every n points.
func WithProgressEvery(n int) Option { return func(o *engineOptions) { o.progressEvery = n } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *engineOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// Engine is the parallel Generalized DBSCAN merge engine for one dataset.
//
// Points are processed in any order by any number of workers. Each core
// point either reuses a core found among its neighbors or allocates a new
// cluster forest record, then labels its neighbors; clusters found to be
// connected are merged by union. Finalize resolves the forest into the
// output partition, which does not depend on processing order.
//
// An Engine is single-use: after Finalize (or a failed point) it rejects
// further work.
type Engine[N any] struct {
	npred NeighborPredicate[N]
	cpred CorePredicate[N]
	opts  engineOptions

	// assignments is written only while mu is held. Process reads it
	// without mu during the pre-scan; such reads may be stale.
	assignments *xsync.Map[PointID, Assignment]

	mu     sync.Mutex
	forest *forest
	merges int

	done     atomic.Int64 // points processed so far
	status   atomic.Int32
	failOnce sync.Once
	failErr  error
	progress *Progress
}

// NewEngine checks that cpred accepts the output of npred and prepares an
// engine over npred's point universe. Invalid options are reported as
// ErrInvalidConfig.
func NewEngine[N any](npred NeighborPredicate[N], cpred CorePredicate[N], opts ...Option) (*Engine[N], error) {
	if !cpred.Accepts(npred.OutputKind()) {
		return nil, ErrIncompatiblePredicates
	}
	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !o.borderPolicy.valid() {
		return nil, fmt.Errorf("%w: BorderPolicy must be %q or %q, got %q",
			ErrInvalidConfig, BorderSmallestRoot, BorderSmallestCore, o.borderPolicy)
	}
	return &Engine[N]{
		npred:       npred,
		cpred:       cpred,
		opts:        o,
		assignments: xsync.NewMap[PointID, Assignment](),
		forest:      newForest(o.maxCoreRecords),
	}, nil
}

// Assignment returns the current labeling state of id.
func (e *Engine[N]) Assignment(id PointID) Assignment {
	a, _ := e.assignments.Load(id)
	return a
}

// Process runs the merge step for a single point using a worker's neighbor
// instance. Every point of the universe must be processed exactly once
// before Finalize.
func (e *Engine[N]) Process(inst NeighborInstance[N], id PointID) error {
	if s := e.status.Load(); s != engineActive {
		if s == engineFailed {
			return e.failErr
		}
		return ErrEngineClosed
	}

	neighbors, err := inst.Neighbors(id)
	if err != nil {
		return e.abort(&PointError{ID: id, Err: err})
	}
	if !e.cpred.IsCore(id, neighbors) {
		e.processed(false)
		return nil
	}

	// Pre-scan for a core among the neighbors. The read is unsynchronized
	// and may be stale; a missed core only costs a redundant record, which
	// the locked pass merges back.
	candidate := int32(-1)
	for n := range inst.IterIDs(neighbors) {
		if a, ok := e.assignments.Load(n); ok && a.State == StateCore {
			candidate = a.Index
			break
		}
	}

	if err := e.label(inst, id, neighbors, candidate); err != nil {
		return e.abort(err)
	}
	e.processed(true)
	return nil
}

// label is the critical section: it assigns id to a cluster, labels its
// neighbors and merges clusters that turn out to be connected.
func (e *Engine[N]) label(inst NeighborInstance[N], id PointID, neighbors N, candidate int32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	core := candidate
	if core < 0 {
		idx, err := e.forest.add()
		if err != nil {
			return err
		}
		core = idx
		e.opts.metrics.RecordCoreCreated()
	}
	e.assignments.Store(id, coreAssignment(core))

	for n := range inst.IterIDs(neighbors) {
		cur, _ := e.assignments.Load(n)
		switch cur.State {
		case StateUnassigned:
			e.assignments.Store(n, borderAssignment(core))
		case StateCore:
			if cur.Index != core && e.forest.union(core, cur.Index) {
				e.merges++
				e.opts.metrics.RecordMerge()
			}
		case StateBorder:
			if cur.Index != core && e.forest.root(cur.Index) != e.forest.root(core) {
				e.assignments.Store(n, multiBorderAssignment(core, cur.Index))
			}
		case StateMultiBorder:
			if next, changed := cur.withOwner(core, e.forest); changed {
				e.assignments.Store(n, next)
			}
		}
	}
	return nil
}

// abort marks the engine failed and returns the first failure, so that every
// worker reports the same cause.
func (e *Engine[N]) abort(err error) error {
	e.failOnce.Do(func() {
		e.failErr = err
		e.status.CompareAndSwap(engineActive, engineFailed)
	})
	return e.failErr
}

func (e *Engine[N]) processed(core bool) {
	e.done.Add(1)
	e.opts.metrics.RecordPoint(core)
	e.progress.IncrementProcessed()
}

// Instantiate returns a Mapper bound to a fresh neighbor instance. Called
// once per worker by the driver.
func (e *Engine[N]) Instantiate() (Mapper, error) {
	return &engineMapper[N]{e: e, inst: e.npred.Instantiate()}, nil
}

// Cleanup releases a Mapper returned by Instantiate.
func (e *Engine[N]) Cleanup(m Mapper) {
	if em, ok := m.(*engineMapper[N]); ok {
		em.inst = nil
	}
}

type engineMapper[N any] struct {
	e    *Engine[N]
	inst NeighborInstance[N]
}

func (m *engineMapper[N]) Map(id PointID) error {
	return m.e.Process(m.inst, id)
}

// Run processes the whole point universe with the configured number of
// workers and resolves the result. On error no partial result is returned.
func (e *Engine[N]) Run(ctx context.Context) (*Result, error) {
	ids := e.npred.IDs()
	points := int(ids.GetCardinality())
	logger := e.opts.logger.With("run_id", xid.New().String())
	start := time.Now()

	logger.Info("clustering started",
		"points", points,
		"workers", e.opts.workers,
		"border_policy", string(e.opts.borderPolicy),
	)
	e.progress = NewProgress(logger, "gdbscan clustering", points, e.opts.progressEvery)

	fail := func(err error) (*Result, error) {
		logger.Error("clustering failed",
			"error", err,
			"class", Classify(err).String(),
			"processed", e.progress.Processed(),
		)
		e.opts.metrics.RecordRun(points, time.Since(start), err)
		return nil, err
	}

	if err := RunParallel(ctx, ids, e, e.opts.workers, e.opts.blockSize); err != nil {
		return fail(e.abort(err))
	}
	e.progress.EnsureCompleted()

	res, err := e.Finalize()
	if err != nil {
		return fail(err)
	}

	e.opts.metrics.RecordRun(points, time.Since(start), nil)
	logger.Info("clustering completed",
		"clusters", len(res.Clusters),
		"noise", res.Noise.GetCardinality(),
		"merges", res.Merges,
		"duration", time.Since(start),
	)
	return res, nil
}
