package stats

import "sync"

// Registry aggregates per-service counters and domain sums. Every completed
// request mutates it from its own goroutine, so all access goes through the
// mutex; Snapshot returns copies, never live references.
type Registry struct {
	mu       sync.Mutex
	services map[string]*serviceStats
}

type serviceStats struct {
	counters map[string]int64
	sums     map[string]float64
}

// New creates an empty stats registry.
func New() *Registry {
	return &Registry{services: make(map[string]*serviceStats)}
}

func (r *Registry) service(name string) *serviceStats {
	s, ok := r.services[name]
	if !ok {
		s = &serviceStats{
			counters: make(map[string]int64),
			sums:     make(map[string]float64),
		}
		r.services[name] = s
	}
	return s
}

// Incr increments a counter by one.
func (r *Registry) Incr(service, counter string) {
	r.IncrBy(service, counter, 1)
}

// IncrBy increments a counter by n. Counters only grow.
func (r *Registry) IncrBy(service, counter string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.service(service).counters[counter] += n
}

// Add accumulates a domain sum (audio duration, text length, ...).
func (r *Registry) Add(service, field string, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.service(service).sums[field] += v
}

// Get returns the current value of a counter.
func (r *Registry) Get(service, counter string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[service]
	if !ok {
		return 0
	}
	return s.counters[counter]
}

// Snapshot returns a copy of one service's counters and sums.
func (r *Registry) Snapshot(service string) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]any)
	s, ok := r.services[service]
	if !ok {
		return out
	}
	for k, v := range s.counters {
		out[k] = v
	}
	for k, v := range s.sums {
		out[k] = v
	}
	return out
}

// SnapshotAll returns a copy of every service's counters and sums.
func (r *Registry) SnapshotAll() map[string]map[string]any {
	r.mu.Lock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	r.mu.Unlock()

	out := make(map[string]map[string]any, len(names))
	for _, name := range names {
		out[name] = r.Snapshot(name)
	}
	return out
}
