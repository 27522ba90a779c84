// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dm

import "github.com/dualhart/rvdbg/rvdbgerr"

// progBufRegs lists the program-buffer registers available on this
// target, in execution order.
var progBufRegs = []uint32{regPROGBUF0, regPROGBUF1}

// runProgBuf loads body into the program buffer, appending ebreak as a
// trap back into debug mode unless body already ends with one, then
// issues a postexec abstract command to trigger execution. transfer is
// left clear on the postexec command (spec.md §4.3: "execute_progbuf
// ... transfer=0"); the regno field still names the scratch register,
// but no register move accompanies the execution itself.
//
// Callers are responsible for saving and restoring any register the
// program body clobbers; csr.go always saves/restores scratchReg (x8)
// around its one-instruction CSR bodies.
func (d *Driver) runProgBuf(body []uint32) error {
	seq := body
	if len(seq) == 0 || seq[len(seq)-1] != insnEbreak {
		seq = append(append([]uint32{}, body...), insnEbreak)
	}
	if len(seq) > len(progBufRegs) {
		return rvdbgerr.New(rvdbgerr.InvalidParam, "program buffer holds %d words, got %d", len(progBufRegs), len(seq))
	}
	for i, insn := range seq {
		if err := d.mem.WriteMem32(progBufRegs[i], insn); err != nil {
			return err
		}
	}
	cmd := uint32(cmdAarsize32) | cmdPostexec | uint32(cmdRegnoGPRBase+scratchReg)
	return d.issueAbstractCmd(cmd)
}

// ExecuteProgBuf loads a caller-supplied instruction sequence into the
// program buffer and executes it via postexec (spec.md §4.6 "execute_progbuf"),
// e.g. execute_progbuf(0,[0xFFF74793,0x00100073]) followed by a
// read_reg to observe the result. hartID must already be halted; use
// ReadReg/ReadAllRegs afterward to observe whatever the sequence left
// in the register file.
func (d *Driver) ExecuteProgBuf(hartID int, insns []uint32) error {
	if err := d.requireHalted(hartID); err != nil {
		return err
	}
	if err := d.selectHart(hartID, 0); err != nil {
		return err
	}
	return d.runProgBuf(insns)
}
