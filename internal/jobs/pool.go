package jobs

import (
	"context"
	"errors"
)

var (
	// ErrWorkerQueueFull is returned when a pool's queue has no room.
	ErrWorkerQueueFull = errors.New("worker queue full")

	// ErrPoolStopped is returned for work submitted after the pool stopped.
	ErrPoolStopped = errors.New("worker pool stopped")
)

// PoolType indicates what kind of work this pool handles.
type PoolType string

// PoolTypeCPU marks pools running local work such as ffmpeg.
const PoolTypeCPU PoolType = "cpu"

// WorkFunc is a unit of pool work.
type WorkFunc func(ctx context.Context) error

// PoolStatus reports a pool's current state.
type PoolStatus struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Workers    int    `json:"workers"`
	InFlight   int    `json:"in_flight"`
	QueueDepth int    `json:"queue_depth"`
	QueueSize  int    `json:"queue_size"`
	Completed  int64  `json:"completed"`
	Failed     int64  `json:"failed"`
}

type workUnit struct {
	name   string
	ctx    context.Context
	fn     WorkFunc
	result chan error
}
