package gdbscan

import (
	"log/slog"
	"sync/atomic"
)

// discardLogger is used when no logger is configured.
var discardLogger = slog.New(slog.DiscardHandler)

// Progress counts processed items of a finite task and logs at debug level
// every Every items. A nil *Progress is valid and does nothing.
type Progress struct {
	task      string
	total     int64
	every     int64
	processed atomic.Int64
	logger    *slog.Logger
}

// NewProgress creates a progress counter for total items. every <= 0 logs
// only on completion.
func NewProgress(logger *slog.Logger, task string, total, every int) *Progress {
	if logger == nil {
		logger = discardLogger
	}
	return &Progress{
		task:   task,
		total:  int64(total),
		every:  int64(every),
		logger: logger,
	}
}

// IncrementProcessed records one processed item.
func (p *Progress) IncrementProcessed() {
	if p == nil {
		return
	}
	n := p.processed.Add(1)
	if p.every > 0 && n%p.every == 0 {
		p.logger.Debug("progress", "task", p.task, "processed", n, "total", p.total)
	}
}

// Processed returns the number of items recorded so far.
func (p *Progress) Processed() int64 {
	if p == nil {
		return 0
	}
	return p.processed.Load()
}

// EnsureCompleted reports whether every item was recorded, and logs a
// warning when not.
func (p *Progress) EnsureCompleted() bool {
	if p == nil {
		return true
	}
	n := p.processed.Load()
	if n != p.total {
		p.logger.Warn("progress incomplete", "task", p.task, "processed", n, "total", p.total)
		return false
	}
	p.logger.Debug("progress completed", "task", p.task, "total", p.total)
	return true
}
