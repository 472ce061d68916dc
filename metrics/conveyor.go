package metrics

import "sync/atomic"

type ConveyorMetrics struct {
	ProcessedCount  atomic.Int32
	ConfirmedCount  atomic.Int32
	ErroredProducts atomic.Int32
	SkippedLocked   atomic.Int32
	Retriable       atomic.Int32
}
