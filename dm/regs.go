// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dm

// Debug Module register byte offsets (spec.md §6). Register index × 4.
const (
	regDATA0      = 0x10
	regDMCONTROL  = 0x40
	regDMSTATUS   = 0x44
	regABSTRACTCS = 0x58
	regCOMMAND    = 0x5C
	regPROGBUF0   = 0x80
	regPROGBUF1   = 0x84
	regSBCS       = 0xE0
	regSBADDRESS0 = 0xE4
	regSBDATA0    = 0xF0
)

// DMCONTROL bits (spec.md §6).
const (
	dmcontrolDMActive     = 1 << 0
	dmcontrolNDMReset     = 1 << 1
	dmcontrolHartSelShift = 16
	dmcontrolHartSelMask  = 0x3FF // 10-bit hartsel, architectural headroom
	dmcontrolResumeReq    = 1 << 30
	dmcontrolHaltReq      = 1 << 31
)

// DMSTATUS bits (read-only, spec.md §6).
const (
	dmstatusAllHalted  = 1 << 9
	dmstatusAllRunning = 1 << 11
)

// ABSTRACTCS bits (spec.md §6).
const (
	abstractcsBusy         = 1 << 12
	abstractcsCmdErrShift  = 8
	abstractcsCmdErrMask   = 0x7 << abstractcsCmdErrShift
	abstractcsClearCmdErrW = 0x700 // W1C value that clears cmderr
)

// Abstract Command encoding (spec.md §6).
const (
	cmdRegnoGPRBase = 0x1000 // regno = 0x1000+n addresses GPR x_n
	cmdWrite        = 1 << 16
	cmdTransfer     = 1 << 17
	cmdPostexec     = 1 << 18
	cmdAarsizeShift = 20
	cmdAarsize32    = 2 << cmdAarsizeShift
)

// SBCS bits (spec.md §6).
const (
	sbcsSbaccessShift = 17
	sbcsSbaccess32    = 2 << sbcsSbaccessShift
	sbcsSbreadonaddr  = 1 << 20
	sbcsSberrorShift  = 12
	sbcsSberrorMask   = 0x7 << sbcsSberrorShift
	sbcsSbasizeShift  = 5
	sbcsSbasizeMask   = 0x7F << sbcsSbasizeShift
)

// CSR addresses used by the program-buffer path (spec.md §4.3, GLOSSARY).
const (
	csrDCSR = 0x7b0
	csrDPC  = 0x7b1
)

// x8/s0 is the scratch register the program-buffer builder always saves
// and restores around a CSR access (spec.md §9 "program-buffer RPC
// pattern").
const scratchReg = 8

// ebreak ends every program-buffer sequence; runProgBuf appends it when
// the body does not already end with one.
const insnEbreak = 0x00100073

// dmControlOffsetForInit is handed to memap.Accessor.InitDMHandshake:
// the init sequence points TAR at DMCONTROL before the banked-CSW dance.
const dmControlOffsetForInit = regDMCONTROL

// expectedDMStatusAfterInit is the magic value the init handshake must
// read back (spec.md §4.3).
const expectedDMStatusAfterInit = 0x04010001
