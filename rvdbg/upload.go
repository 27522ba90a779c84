// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rvdbg

import "github.com/dualhart/rvdbg/rvdbgerr"

// UploadCode writes a code image to target SRAM via the verified block
// path; a bad upload silently corrupting the image a caller is about to
// jump into is worse than the extra read-back cost (spec.md §9:
// "UploadCode always verifies"). Both harts must already be halted:
// SBA writes bypass hart state entirely, so a hart left running could
// fetch a torn instruction mid-upload.
func (t *Target) UploadCode(addr uint32, code []byte) error {
	if err := t.requireBothHalted(); err != nil {
		return err
	}
	return t.WriteMemBlockVerified(addr, code)
}

// ExecuteCode halts hartID (if not already halted), points its PC at
// entry, resumes it, and returns without waiting for it to halt again.
// Callers that need to know when execution stops should pair this with
// Halt or a trace loop.
func (t *Target) ExecuteCode(hartID int, entry uint32) error {
	halted, err := t.dm.IsHalted(hartID)
	if err != nil {
		return err
	}
	if !halted {
		if err := t.dm.Halt(hartID); err != nil && !isAlreadyHalted(err) {
			return err
		}
	}
	if err := t.dm.WritePC(hartID, entry); err != nil {
		return err
	}
	return t.dm.Resume(hartID)
}

func isAlreadyHalted(err error) bool {
	k, ok := rvdbgerr.As(err)
	return ok && k == rvdbgerr.AlreadyHalted
}
