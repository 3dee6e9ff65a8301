package gdbscan

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config controls DBSCAN clustering through Cluster.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// Epsilon is the neighborhood radius. Two points are neighbors when
	// their distance is at most Epsilon. Must be > 0. Default: 0.5.
	Epsilon float64 `yaml:"epsilon"`

	// MinPts is the minimum neighborhood size, the point itself included,
	// for a point to be a core point. Must be >= 1. Default: 5.
	MinPts int `yaml:"min_pts"`

	// Metric is the distance function. If nil, MetricName is looked up
	// with MetricByName. Default: EuclideanMetric.
	Metric DistanceMetric `yaml:"-"`

	// MetricName names a built-in metric ("euclidean", "manhattan",
	// "chebyshev", "cosine"). Ignored when Metric is set.
	MetricName string `yaml:"metric"`

	// Workers is the number of goroutines processing points. 0 means
	// runtime.NumCPU(); 1 runs sequentially. Must be >= 0.
	Workers int `yaml:"workers"`

	// BlockSize is the number of points a worker claims at a time.
	// 0 means DefaultBlockSize. Must be >= 0.
	BlockSize int `yaml:"block_size"`

	// BorderPolicy decides where a point bordering several clusters goes.
	// Default: BorderSmallestRoot.
	BorderPolicy BorderPolicy `yaml:"border_policy"`

	// TrackCores fills Group.Cores in the result. Default: false.
	TrackCores bool `yaml:"track_cores"`

	// MaxCoreRecords caps the cluster forest; exceeding it aborts the run
	// with ErrForestExhausted. 0 means unlimited. Must be >= 0.
	MaxCoreRecords int `yaml:"max_core_records"`

	// ProgressEvery logs progress at debug level every N points. 0 disables.
	ProgressEvery int `yaml:"progress_every"`

	// Logger receives structured logs. Default: discard.
	Logger *slog.Logger `yaml:"-"`

	// Metrics receives operational counters. Default: NoopMetricsCollector.
	Metrics MetricsCollector `yaml:"-"`
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Epsilon:      0.5,
		MinPts:       5,
		Metric:       EuclideanMetric{},
		BorderPolicy: BorderSmallestRoot,
	}
}

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Metric == nil {
		if m, err := MetricByName(cfg.MetricName); err == nil {
			cfg.Metric = m
		}
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.BorderPolicy == "" {
		cfg.BorderPolicy = BorderSmallestRoot
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetricsCollector{}
	}
}

// validateConfig checks that cfg fields are valid and returns a descriptive error if not.
func validateConfig(cfg *Config) error {
	if !(cfg.Epsilon > 0) || math.IsInf(cfg.Epsilon, 0) {
		return fmt.Errorf("%w: Epsilon must be a finite value > 0, got %f", ErrInvalidConfig, cfg.Epsilon)
	}
	if cfg.MinPts < 1 {
		return fmt.Errorf("%w: MinPts must be >= 1, got %d", ErrInvalidConfig, cfg.MinPts)
	}
	if cfg.Metric == nil {
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidConfig, cfg.MetricName)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: Workers must be >= 0, got %d", ErrInvalidConfig, cfg.Workers)
	}
	if cfg.BlockSize < 0 {
		return fmt.Errorf("%w: BlockSize must be >= 0, got %d", ErrInvalidConfig, cfg.BlockSize)
	}
	if !cfg.BorderPolicy.valid() {
		return fmt.Errorf("%w: BorderPolicy must be %q or %q, got %q",
			ErrInvalidConfig, BorderSmallestRoot, BorderSmallestCore, cfg.BorderPolicy)
	}
	if cfg.MaxCoreRecords < 0 {
		return fmt.Errorf("%w: MaxCoreRecords must be >= 0, got %d", ErrInvalidConfig, cfg.MaxCoreRecords)
	}
	if cfg.ProgressEvery < 0 {
		return fmt.Errorf("%w: ProgressEvery must be >= 0, got %d", ErrInvalidConfig, cfg.ProgressEvery)
	}
	return nil
}

// options translates a defaulted Config into engine options.
func (cfg *Config) options() []Option {
	return []Option{
		WithWorkers(cfg.Workers),
		WithBlockSize(cfg.BlockSize),
		WithBorderPolicy(cfg.BorderPolicy),
		WithCoreModel(cfg.TrackCores),
		WithMaxCoreRecords(cfg.MaxCoreRecords),
		WithProgressEvery(cfg.ProgressEvery),
		WithLogger(cfg.Logger),
		WithMetrics(cfg.Metrics),
	}
}

// ParseConfig decodes a YAML document into a Config, starting from
// DefaultConfig. Defaults are applied and the result is validated.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	cfg.Metric = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse yaml: %w", ErrInvalidConfig, err)
	}
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("gdbscan: read config: %w", err)
	}
	return ParseConfig(data)
}

// Cluster performs DBSCAN clustering on the given data.
// Each element is a point (float64 slice); all points must have the same
// dimensionality. Point i of data has PointID i in the result.
func Cluster(data [][]float64, cfg Config) (*Result, error) {
	return ClusterContext(context.Background(), data, cfg)
}

// ClusterContext is Cluster with cooperative cancellation between blocks of
// points.
func ClusterContext(ctx context.Context, data [][]float64, cfg Config) (*Result, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	n := len(data)
	if int64(n) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d points exceed the PointID range", ErrInvalidConfig, n)
	}
	dims := 0
	if n > 0 {
		dims = len(data[0])
	}
	flatData := make([]float64, n*dims)
	for i, row := range data {
		if len(row) != dims {
			return nil, fmt.Errorf("%w: point %d has %d dimensions, want %d", ErrInvalidConfig, i, len(row), dims)
		}
		copy(flatData[i*dims:], row)
	}

	npred := NewEpsilonNeighbors(flatData, n, dims, cfg.Metric, cfg.Epsilon)
	engine, err := NewEngine[Neighborhood](npred, MinPtsCore[Neighborhood]{MinPts: cfg.MinPts}, cfg.options()...)
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx)
}
