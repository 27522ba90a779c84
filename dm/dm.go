// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dm implements the L3 RISC-V Debug Module driver: the hart state
// machine, abstract commands, program-buffer execution, CSR/PC access via
// the program buffer, and the System Bus Access (SBA) pathway.
package dm

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/dualhart/rvdbg/rvdbgerr"
)

// memAccessor is the subset of memap.Accessor the DM driver needs for
// ordinary register-file access. The undocumented init handshake uses
// memap's lower-level InitDMHandshake/SelectBank0 directly.
type memAccessor interface {
	ReadMem32(addr uint32) (uint32, error)
	WriteMem32(addr, v uint32) error
	InitDMHandshake(dmControlOffset uint32, sleep func()) (uint32, error)
	SelectBank0() error
}

// Driver is the DM Driver (spec.md §4.3) plus the SBA Pathway (sba.go)
// and per-hart cache & state (hart.go).
type Driver struct {
	mem memAccessor
	log zerolog.Logger

	initialized    bool
	sbaInitialized bool
	cacheEnabled   bool
	sbaStrict      bool

	harts [numHarts]hartState

	sleep func(time.Duration)
}

// Option configures a Driver at construction time.
type Option func(*Driver)

// WithSleep overrides the function used for hardware settle delays. It
// exists so tests can run the real polling logic without the real wall
// clock delays spec.md's timing figures imply.
func WithSleep(f func(time.Duration)) Option {
	return func(d *Driver) { d.sleep = f }
}

// New wraps a memap.Accessor as a DM Driver.
func New(mem memAccessor, log zerolog.Logger, opts ...Option) *Driver {
	d := &Driver{
		mem:          mem,
		log:          log.With().Str("layer", "dm").Logger(),
		cacheEnabled: true,
		sleep:        time.Sleep,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// IsInitialized reports whether Init has completed successfully.
func (d *Driver) IsInitialized() bool { return d.initialized }

// EnableCache turns the GPR mirror on or off. Disabling it invalidates
// both harts' caches immediately (spec.md §9).
func (d *Driver) EnableCache(enabled bool) {
	d.cacheEnabled = enabled
	if !enabled {
		for i := range d.harts {
			d.harts[i].invalidateCache()
		}
	}
}

// InvalidateCache drops hartID's GPR mirror without affecting its halt
// state or the other hart's cache.
func (d *Driver) InvalidateCache(hartID int) error {
	h, err := d.hart(hartID)
	if err != nil {
		return err
	}
	h.invalidateCache()
	return nil
}

// Init performs the undocumented activation handshake (spec.md §4.3),
// then zeroes per-hart state and initializes the SBA pathway.
func (d *Driver) Init() error {
	if err := d.mem.SelectBank0(); err != nil {
		return err
	}
	status, err := d.mem.InitDMHandshake(dmControlOffsetForInit, func() { d.sleep(50 * time.Millisecond) })
	if err != nil {
		return err
	}
	if status != expectedDMStatusAfterInit {
		return rvdbgerr.New(rvdbgerr.InvalidState, "dm init status %#08x, want %#08x", status, expectedDMStatusAfterInit)
	}
	if err := d.mem.SelectBank0(); err != nil {
		return err
	}

	for i := range d.harts {
		d.harts[i] = hartState{}
	}
	d.initialized = true

	if err := d.sbaInit(); err != nil {
		return err
	}
	d.log.Debug().Msg("debug module initialized")
	return nil
}

func (d *Driver) hart(hartID int) (*hartState, error) {
	if hartID < 0 || hartID >= numHarts {
		return nil, rvdbgerr.New(rvdbgerr.InvalidParam, "hart id %d out of range [0,%d)", hartID, numHarts)
	}
	return &d.harts[hartID], nil
}

func (d *Driver) requireInitialized() error {
	if !d.initialized {
		return rvdbgerr.New(rvdbgerr.NotInitialized, "debug module not initialized")
	}
	return nil
}

func notHaltedErr(hartID int) error {
	return rvdbgerr.New(rvdbgerr.NotHalted, "hart %d not halted", hartID)
}

// selectHart writes DMCONTROL with dmactive=1, hartsel=hartID, and any
// extra flags (haltreq/resumereq/ndmreset), per spec.md §4.3: "every DM
// register access that is hart-dependent MUST first write DMCONTROL".
func (d *Driver) selectHart(hartID int, extra uint32) error {
	v := uint32(dmcontrolDMActive) | (uint32(hartID)&dmcontrolHartSelMask)<<dmcontrolHartSelShift | extra
	return d.mem.WriteMem32(regDMCONTROL, v)
}

func (d *Driver) readDMStatus() (uint32, error) {
	return d.mem.ReadMem32(regDMSTATUS)
}

// Halt requests a hart halt and polls DMSTATUS.allhalted (spec.md
// §4.3). If the hart is already known halted it returns AlreadyHalted,
// which callers using Halt as a guard must treat as success.
func (d *Driver) Halt(hartID int) error {
	if err := d.requireInitialized(); err != nil {
		return err
	}
	h, err := d.hart(hartID)
	if err != nil {
		return err
	}
	if h.haltStateKnown && h.halted {
		return rvdbgerr.New(rvdbgerr.AlreadyHalted, "hart %d already halted", hartID)
	}
	h.invalidateCache() // conservative: before the hart can have modified state further.

	if err := d.selectHart(hartID, dmcontrolHaltReq); err != nil {
		return err
	}
	for i := 0; i < 10; i++ {
		status, err := d.readDMStatus()
		if err != nil {
			return err
		}
		if status&dmstatusAllHalted != 0 {
			h.setHalted(true)
			return nil
		}
		d.sleep(10 * time.Millisecond)
	}
	return rvdbgerr.New(rvdbgerr.Timeout, "hart %d did not halt", hartID)
}

// Resume is a no-op if the hart is known running; otherwise it requests
// resume and polls DMSTATUS.allrunning (spec.md §4.3).
func (d *Driver) Resume(hartID int) error {
	if err := d.requireInitialized(); err != nil {
		return err
	}
	h, err := d.hart(hartID)
	if err != nil {
		return err
	}
	if h.haltStateKnown && !h.halted {
		return nil
	}
	if err := d.selectHart(hartID, dmcontrolResumeReq); err != nil {
		return err
	}
	for i := 0; i < 10; i++ {
		status, err := d.readDMStatus()
		if err != nil {
			return err
		}
		if status&dmstatusAllRunning != 0 {
			h.setHalted(false)
			return nil
		}
		d.sleep(10 * time.Millisecond)
	}
	return rvdbgerr.New(rvdbgerr.Timeout, "hart %d did not resume", hartID)
}

// Reset asserts ndmreset (with haltreq matching haltOnReset) for ~10ms,
// deasserts it, waits ~50ms, and if haltOnReset, polls for halt
// (spec.md §4.3).
func (d *Driver) Reset(hartID int, haltOnReset bool) error {
	if err := d.requireInitialized(); err != nil {
		return err
	}
	h, err := d.hart(hartID)
	if err != nil {
		return err
	}
	extra := uint32(dmcontrolNDMReset)
	if haltOnReset {
		extra |= dmcontrolHaltReq
	}
	if err := d.selectHart(hartID, extra); err != nil {
		return err
	}
	d.sleep(10 * time.Millisecond)
	if err := d.selectHart(hartID, 0); err != nil {
		return err
	}
	d.sleep(50 * time.Millisecond)

	if haltOnReset {
		for i := 0; i < 10; i++ {
			status, err := d.readDMStatus()
			if err != nil {
				return err
			}
			if status&dmstatusAllHalted != 0 {
				h.setHalted(true)
				return nil
			}
			d.sleep(10 * time.Millisecond)
		}
		return rvdbgerr.New(rvdbgerr.Timeout, "hart %d did not halt after reset", hartID)
	}
	h.setHalted(false)
	return nil
}

// IsHalted reports hart hartID's halt state. This implementation always
// forces a fresh DMSTATUS read rather than trusting the cached
// haltStateKnown flag: spec.md §9 Open Question 1 leaves the choice
// open, and a query that can observe an asynchronous ebreak/trigger halt
// the cache doesn't know about is more useful than a cheap but possibly
// stale answer. Callers that want the cheap cached answer should track
// it themselves from Halt/Resume/Step/Reset return values.
func (d *Driver) IsHalted(hartID int) (bool, error) {
	if err := d.requireInitialized(); err != nil {
		return false, err
	}
	h, err := d.hart(hartID)
	if err != nil {
		return false, err
	}
	if err := d.selectHart(hartID, 0); err != nil {
		return false, err
	}
	status, err := d.readDMStatus()
	if err != nil {
		return false, err
	}
	halted := status&dmstatusAllHalted != 0
	h.setHalted(halted)
	return halted, nil
}

// Step single-steps a halted hart one instruction (spec.md §4.3).
func (d *Driver) Step(hartID int) error {
	if err := d.requireInitialized(); err != nil {
		return err
	}
	h, err := d.hart(hartID)
	if err != nil {
		return err
	}
	if !h.halted {
		return notHaltedErr(hartID)
	}

	dcsr, err := d.readCSRViaProgbuf(hartID, csrDCSR)
	if err != nil {
		return err
	}
	if err := d.writeCSRViaProgbuf(hartID, csrDCSR, dcsr|(1<<2)); err != nil {
		return err
	}
	if err := d.selectHart(hartID, 0); err != nil {
		return err
	}
	if err := d.selectHart(hartID, dmcontrolResumeReq); err != nil {
		return err
	}
	for i := 0; i < 10; i++ {
		status, err := d.readDMStatus()
		if err != nil {
			return err
		}
		if status&dmstatusAllHalted != 0 {
			break
		}
		if i == 9 {
			return rvdbgerr.New(rvdbgerr.Timeout, "hart %d did not halt after step", hartID)
		}
		d.sleep(10 * time.Millisecond)
	}
	if err := d.writeCSRViaProgbuf(hartID, csrDCSR, dcsr); err != nil {
		return err
	}
	h.setHalted(true)
	return nil
}
