// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dm

import (
	"time"

	"github.com/dualhart/rvdbg/rvdbgerr"
)

// abstractCmdGPR issues an Access Register abstract command against GPR
// x_n (spec.md §4.3, §6). Abstract access to CSRs is not supported on
// this target, which is why csr.go routes through the program buffer
// instead.
func (d *Driver) abstractCmdGPR(n int, write bool, data uint32) (uint32, error) {
	if write {
		if err := d.mem.WriteMem32(regDATA0, data); err != nil {
			return 0, err
		}
	}
	cmd := uint32(cmdAarsize32) | cmdTransfer | uint32(cmdRegnoGPRBase+n)
	if write {
		cmd |= cmdWrite
	}
	if err := d.issueAbstractCmd(cmd); err != nil {
		return 0, err
	}
	if write {
		return data, nil
	}
	return d.mem.ReadMem32(regDATA0)
}

// issueAbstractCmd writes COMMAND, polls ABSTRACTCS.busy, and surfaces
// any sticky cmderr as rvdbgerr.AbstractCmd after clearing it.
func (d *Driver) issueAbstractCmd(cmd uint32) error {
	if err := d.mem.WriteMem32(regCOMMAND, cmd); err != nil {
		return err
	}
	var cs uint32
	for i := 0; i < 20; i++ {
		v, err := d.mem.ReadMem32(regABSTRACTCS)
		if err != nil {
			return err
		}
		cs = v
		if cs&abstractcsBusy == 0 {
			break
		}
		d.sleep(time.Millisecond)
	}
	if cs&abstractcsBusy != 0 {
		return rvdbgerr.New(rvdbgerr.Timeout, "abstract command %#08x still busy", cmd)
	}
	if cmderr := (cs & abstractcsCmdErrMask) >> abstractcsCmdErrShift; cmderr != 0 {
		if err := d.mem.WriteMem32(regABSTRACTCS, abstractcsClearCmdErrW); err != nil {
			return err
		}
		return rvdbgerr.New(rvdbgerr.AbstractCmd, "command %#08x failed, cmderr %d", cmd, cmderr)
	}
	return nil
}
