package httpapi

import (
	"sync"
	"sync/atomic"
	"time"
)

// RunRegistry tracks in-flight pipeline runs and supports graceful draining:
// once draining starts, new runs are rejected while running ones finish
// naturally.
//
// The mu mutex makes the draining check and wg.Add atomic in Add(), so
// StartDraining+Wait cannot slip in between the check and the increment.
type RunRegistry struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
}

// NewRunRegistry creates a new RunRegistry.
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{}
}

// Add registers a new pipeline run. Returns false if the registry is
// draining, meaning no new runs should be accepted.
func (rr *RunRegistry) Add() bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if rr.draining {
		return false
	}
	rr.wg.Add(1)
	rr.count.Add(1)
	return true
}

// Done marks one run as finished.
func (rr *RunRegistry) Done() {
	rr.count.Add(-1)
	rr.wg.Done()
}

// Count returns the number of in-flight runs.
func (rr *RunRegistry) Count() int64 {
	return rr.count.Load()
}

// StartDraining stops the registry from accepting new runs.
func (rr *RunRegistry) StartDraining() {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.draining = true
}

// Wait blocks until all in-flight runs have finished or the timeout
// elapses. Returns true if the registry drained fully.
func (rr *RunRegistry) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		rr.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
