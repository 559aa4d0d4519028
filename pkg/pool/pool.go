// Package pool recycles the scratch allocations a graph search makes on
// every call: aligned query buffers and visited-node sets. It mirrors the teacher lineage's sync.Pool registry
// pattern — a toggleable Config plus a small typed wrapper around
// sync.Pool — repurposed from query-result/row pooling to graph-
// traversal scratch state. It stays free of any dependency on pkg/hnsw
// so that package can use it without an import cycle; callers
// instantiate Typed[T] with their own concrete scratch types.
package pool

import "sync"

// Config controls whether pooling is active. Disabling it (for tests that
// want to assert on fresh, zeroed allocations) makes every Get behave like
// a plain call to New.
type Config struct {
	Enabled bool
}

var globalConfig = Config{Enabled: true}

// Configure replaces the active pooling configuration.
func Configure(cfg Config) {
	globalConfig = cfg
}

// IsEnabled reports whether pooling is currently active.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// Typed wraps a sync.Pool around a single scratch type T, with a Reset
// hook run before each value is returned to the pool so stale entries
// from a prior borrower never leak into the next one.
type Typed[T any] struct {
	pool  sync.Pool
	reset func(T) T
}

// NewTyped builds a pool of T, constructed by newFn and cleared by
// resetFn before reuse.
func NewTyped[T any](newFn func() T, resetFn func(T) T) *Typed[T] {
	return &Typed[T]{
		pool:  sync.Pool{New: func() any { return newFn() }},
		reset: resetFn,
	}
}

// Get returns a scratch value, freshly constructed if the global pooling
// config is disabled or the pool is empty.
func (p *Typed[T]) Get() T {
	if !IsEnabled() {
		return p.pool.New().(T)
	}
	return p.pool.Get().(T)
}

// Put resets v and returns it to the pool. A no-op when pooling is
// disabled, so disabled-mode Get calls never hand out shared state.
func (p *Typed[T]) Put(v T) {
	if !IsEnabled() {
		return
	}
	p.pool.Put(p.reset(v))
}
