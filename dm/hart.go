// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dm

// numHarts is fixed at two for this target; the 10-bit hartsel field
// leaves architectural headroom for up to 1024 harts, which this
// implementation does not attempt to support (spec.md §9 "per-hart state
// as a small fixed array").
const numHarts = 2

// hartState is the per-hart cache & state component (spec.md §3, §4.8).
type hartState struct {
	haltStateKnown bool
	halted         bool
	cacheValid     bool
	cachedGPRs     [32]uint32
}

// invalidateCache drops the GPR mirror without changing halt state. Halt
// calls it before requesting a halt, and EnableCache(false) and
// InvalidateCache call it; resume, step and reset drop the mirror through
// setHalted instead (spec.md §9 cache invalidation policy).
func (h *hartState) invalidateCache() {
	h.cacheValid = false
}

// setHalted records a newly-observed halt state and invalidates the GPR
// cache, per spec.md §3: "On successful resume, step, or reset,
// cache_valid := false and halt_state_known := true with the new value."
func (h *hartState) setHalted(halted bool) {
	h.halted = halted
	h.haltStateKnown = true
	h.cacheValid = false
}

// updateGPR mirrors a single register write immediately, matching
// spec.md §3: "On any GPR write, the mirror for that index is updated
// immediately if cache_enabled." The caller is responsible for checking
// cache_enabled before calling this.
func (h *hartState) updateGPR(n int, v uint32) {
	if n == 0 {
		return // x0 is hardwired to zero; writes have no effect.
	}
	h.cachedGPRs[n] = v
}
