// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dm

import (
	"github.com/dualhart/rvdbg/rvdbgerr"
)

// sbaInit programs SBCS for 32-bit bus-master accesses with
// sbreadonaddr set (a write to SBADDRESS0 triggers the read, spec.md
// §4.4), clears any sticky error the pathway reports, and requires a
// nonzero sbasize (spec.md §4.4: a zero sbasize means no System Bus
// Access pathway is actually implemented).
func (d *Driver) sbaInit() error {
	if err := d.mem.WriteMem32(regSBCS, sbcsSbaccess32|sbcsSbreadonaddr); err != nil {
		return err
	}
	cs, err := d.mem.ReadMem32(regSBCS)
	if err != nil {
		return err
	}
	if cs&sbcsSberrorMask != 0 {
		if err := d.clearSBError(); err != nil {
			return err
		}
	}
	if (cs&sbcsSbasizeMask)>>sbcsSbasizeShift == 0 {
		return rvdbgerr.New(rvdbgerr.InvalidState, "system bus access pathway reports sbasize=0")
	}
	d.sbaInitialized = true
	return nil
}

// SBAStrict toggles whether SBAWriteMem32 reads SBCS once after every
// write and reports a sticky sberror (spec.md §9 Open Question 2). It
// does not poll sbbusy. The default, false, skips the check entirely;
// enabling it trades throughput for a synchronous error check on every
// write.
func (d *Driver) SBAStrict(strict bool) { d.sbaStrict = strict }

// SBAReadMem32 reads target memory through the System Bus Access
// pathway, bypassing hart register state, the MPU and any PMP (spec.md
// §4.6). It requires no halted hart.
func (d *Driver) SBAReadMem32(addr uint32) (uint32, error) {
	if err := d.requireSBAInitialized(); err != nil {
		return 0, err
	}
	if addr&0x3 != 0 {
		return 0, rvdbgerr.New(rvdbgerr.Alignment, "sba read32 addr %#08x not 4-byte aligned", addr)
	}
	if err := d.mem.WriteMem32(regSBADDRESS0, addr); err != nil {
		return 0, err
	}
	v, err := d.mem.ReadMem32(regSBDATA0)
	if err != nil {
		return 0, err
	}
	if err := d.checkSBError(); err != nil {
		return 0, err
	}
	return v, nil
}

// SBAWriteMem32 writes target memory through the System Bus Access
// pathway. By default it does not poll for completion after the write
// (spec.md §9 Open Question 2: "no per-write polling by default"); call
// SBAStrict(true) to force a synchronous error check after every write.
func (d *Driver) SBAWriteMem32(addr, v uint32) error {
	if err := d.requireSBAInitialized(); err != nil {
		return err
	}
	if addr&0x3 != 0 {
		return rvdbgerr.New(rvdbgerr.Alignment, "sba write32 addr %#08x not 4-byte aligned", addr)
	}
	if err := d.mem.WriteMem32(regSBADDRESS0, addr); err != nil {
		return err
	}
	if err := d.mem.WriteMem32(regSBDATA0, v); err != nil {
		return err
	}
	if d.sbaStrict {
		return d.checkSBError()
	}
	return nil
}

func (d *Driver) requireSBAInitialized() error {
	if !d.sbaInitialized {
		return rvdbgerr.New(rvdbgerr.NotInitialized, "system bus access not initialized")
	}
	return nil
}

// checkSBError reads SBCS once and surfaces any sticky error, clearing
// it so the pathway is usable again.
func (d *Driver) checkSBError() error {
	cs, err := d.mem.ReadMem32(regSBCS)
	if err != nil {
		return err
	}
	sberror := (cs & sbcsSberrorMask) >> sbcsSberrorShift
	if sberror == 0 {
		return nil
	}
	if err := d.clearSBError(); err != nil {
		return err
	}
	return rvdbgerr.New(rvdbgerr.Fault, "system bus access error %d", sberror)
}

func (d *Driver) clearSBError() error {
	// Sticky sberror clears by writing any value with the field set to 0;
	// a read-modify-write with the error bits cleared is sufficient.
	cs, err := d.mem.ReadMem32(regSBCS)
	if err != nil {
		return err
	}
	return d.mem.WriteMem32(regSBCS, cs&^uint32(sbcsSberrorMask))
}
