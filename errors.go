package gdbscan

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("gdbscan: invalid config")

	// ErrIncompatiblePredicates is returned when the core predicate does not
	// accept the output kind of the neighbor predicate. The run never starts.
	ErrIncompatiblePredicates = errors.New("gdbscan: core predicate and neighbor predicate are not compatible")

	// ErrForestExhausted is returned when the cluster forest cannot grow any
	// further. The whole run is aborted.
	ErrForestExhausted = errors.New("gdbscan: cluster forest exhausted")

	// ErrNeighborQuery marks failures raised by a neighbor predicate.
	ErrNeighborQuery = errors.New("gdbscan: neighbor query failed")

	// ErrRunFailed is returned by Finalize after a point failed to process.
	ErrRunFailed = errors.New("gdbscan: run failed, no partition available")

	// ErrEngineClosed is returned when an engine is used after Finalize.
	ErrEngineClosed = errors.New("gdbscan: engine already finalized")
)

// PointError reports a neighbor predicate failure for a single point.
//
// errors.Is(err, ErrNeighborQuery) holds for every PointError; the original
// cause can be accessed via errors.Unwrap.
type PointError struct {
	ID  PointID
	Err error
}

func (e *PointError) Error() string {
	return fmt.Sprintf("gdbscan: neighbor query for point %d: %v", e.ID, e.Err)
}

func (e *PointError) Unwrap() error { return e.Err }

func (e *PointError) Is(target error) bool { return target == ErrNeighborQuery }

// ErrorClass groups run failures by cause.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassConfig
	ClassResource
	ClassRuntime
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassConfig:
		return "config"
	case ClassResource:
		return "resource"
	case ClassRuntime:
		return "runtime"
	default:
		return fmt.Sprintf("ErrorClass(%d)", int(c))
	}
}

// Classify reports whether err is a configuration, resource or runtime failure.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrIncompatiblePredicates):
		return ClassConfig
	case errors.Is(err, ErrForestExhausted):
		return ClassResource
	default:
		return ClassRuntime
	}
}
