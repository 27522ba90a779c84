// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rvdbg

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// blocksPerChip and slotsPerBlock mirror the PIO hardware: two PIO
// blocks, four state machines each, giving a process-wide pool of eight
// slots shared across every concurrently open session.
const (
	blocksPerChip  = 2
	slotsPerBlock  = 4
	totalPIOSlots  = blocksPerChip * slotsPerBlock
)

// ResourceTracker hands out PIO slots to sessions, enforcing the
// process-wide ceiling of eight concurrent single-threaded sessions
// (spec.md §7). It is safe for concurrent use.
type ResourceTracker struct {
	sem *semaphore.Weighted

	mu        sync.Mutex
	held      map[int]bool
	nextSlot  int
}

// NewResourceTracker creates a tracker with the fixed eight-slot pool.
func NewResourceTracker() *ResourceTracker {
	return &ResourceTracker{
		sem:  semaphore.NewWeighted(totalPIOSlots),
		held: make(map[int]bool, totalPIOSlots),
	}
}

// Slot is a single acquired PIO state machine slot. Release must be
// called exactly once to return it to the pool.
type Slot struct {
	tracker *ResourceTracker
	index   int
}

// Block and Machine identify the slot's physical location, for logging
// and diagnostics.
func (s *Slot) Block() int   { return s.index / slotsPerBlock }
func (s *Slot) Machine() int { return s.index % slotsPerBlock }

// Acquire blocks until a slot is free or ctx is done, then returns it.
func (r *ResourceTracker) Acquire(ctx context.Context) (*Slot, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("rvdbg: acquire pio slot: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < totalPIOSlots; i++ {
		idx := (r.nextSlot + i) % totalPIOSlots
		if !r.held[idx] {
			r.held[idx] = true
			r.nextSlot = idx + 1
			return &Slot{tracker: r, index: idx}, nil
		}
	}
	// Unreachable: the semaphore already bounds concurrent holders to
	// totalPIOSlots.
	return nil, fmt.Errorf("rvdbg: no free pio slot despite semaphore grant")
}

// Release returns the slot to the pool. It is a no-op on a nil slot so
// defer s.Release() is always safe to write even if Acquire failed.
func (s *Slot) Release() {
	if s == nil {
		return
	}
	s.tracker.mu.Lock()
	delete(s.tracker.held, s.index)
	s.tracker.mu.Unlock()
	s.tracker.sem.Release(1)
}

// Usage reports how many of the eight PIO slots are currently held.
func (r *ResourceTracker) Usage() (held, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held), totalPIOSlots
}
