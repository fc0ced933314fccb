package eutils

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// ConcurrencyGate bounds the number of logical requests in flight against the
// E-utilities API. A slot is held for the full duration of one logical
// request, including every retry attempt, so total upstream pressure never
// exceeds the tier capacity even during transient failure storms.
// It is safe for concurrent use.
type ConcurrencyGate struct {
	sem      *semaphore.Weighted
	capacity int
}

// NewConcurrencyGate creates a gate with the given capacity. Capacity values
// below 1 are raised to 1.
func NewConcurrencyGate(capacity int) *ConcurrencyGate {
	if capacity < 1 {
		capacity = 1
	}
	return &ConcurrencyGate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a slot is free or the context is canceled. Every
// successful Acquire must be paired with exactly one Release.
func (g *ConcurrencyGate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release frees one slot.
func (g *ConcurrencyGate) Release() {
	g.sem.Release(1)
}

// Capacity returns the number of slots in the gate.
func (g *ConcurrencyGate) Capacity() int {
	return g.capacity
}
