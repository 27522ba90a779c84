// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dm_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualhart/rvdbg/dm"
	"github.com/dualhart/rvdbg/rvdbgerr"
)

// fakeMem is a software model of the DM register file plus a tiny set
// of per-hart GPRs/CSRs, enough to exercise Init/Halt/Resume/Step/Reset
// and the register/CSR/program-buffer paths without real hardware.
type fakeMem struct {
	mem map[uint32]uint32

	hartsel    int
	halted     map[int]bool
	gprs       map[int][32]uint32
	dcsr       map[int]uint32
	dpc        map[int]uint32
	progbuf    [2]uint32
	data0      uint32
	initSteps  int
}

func newFakeMem() *fakeMem {
	return &fakeMem{
		mem:    map[uint32]uint32{},
		halted: map[int]bool{0: false, 1: false},
		gprs:   map[int][32]uint32{0: {}, 1: {}},
		dcsr:   map[int]uint32{0: 0, 1: 0},
		dpc:    map[int]uint32{0: 0x1000, 1: 0x1000},
	}
}

const (
	regDATA0      = 0x10
	regDMCONTROL  = 0x40
	regDMSTATUS   = 0x44
	regABSTRACTCS = 0x58
	regCOMMAND    = 0x5C
	regPROGBUF0   = 0x80
	regPROGBUF1   = 0x84
	regSBCS       = 0xE0
)

func (f *fakeMem) ReadMem32(addr uint32) (uint32, error) {
	switch addr {
	case regDMSTATUS:
		var v uint32
		if f.halted[f.hartsel] {
			v |= 1 << 9
		} else {
			v |= 1 << 11
		}
		return v, nil
	case regABSTRACTCS:
		return 0, nil // never busy, never errored in this model
	case regDATA0:
		return f.data0, nil
	case regSBCS:
		return f.mem[addr] | 32<<5, nil // sbasize reported fixed at 32 bits, as real hardware's read-only field would
	default:
		return f.mem[addr], nil
	}
}

func (f *fakeMem) WriteMem32(addr, v uint32) error {
	switch addr {
	case regDMCONTROL:
		f.hartsel = int((v >> 16) & 0x3FF)
		if v&(1<<31) != 0 { // haltreq
			f.halted[f.hartsel] = true
		}
		if v&(1<<30) != 0 { // resumereq
			f.halted[f.hartsel] = false
		}
		if v&(1<<1) != 0 { // ndmreset: reset PC, leave halt per haltreq already applied
			f.dpc[f.hartsel] = 0x1000
		}
	case regABSTRACTCS:
		// cmderr clear, no-op in this model.
	case regDATA0:
		f.data0 = v
	case regCOMMAND:
		f.runCommand(v)
	case regPROGBUF0:
		f.progbuf[0] = v
	case regPROGBUF1:
		f.progbuf[1] = v
	default:
		f.mem[addr] = v
	}
	return nil
}

// runCommand interprets the abstract-command word enough to move data
// between DATA0 and the selected hart's GPR file, and to "execute" the
// two CSR instruction shapes csr.go emits into the program buffer.
func (f *fakeMem) runCommand(cmd uint32) {
	regno := int(cmd & 0xFFFF)
	write := cmd&(1<<16) != 0
	postexec := cmd&(1<<18) != 0

	n := regno - 0x1000
	g := f.gprs[f.hartsel]
	if write {
		g[n] = f.data0
	} else {
		f.data0 = g[n]
	}
	f.gprs[f.hartsel] = g

	if postexec {
		f.execProgBuf()
		g = f.gprs[f.hartsel]
		if write {
			g[n] = f.data0
		} else {
			f.data0 = g[n]
		}
		f.gprs[f.hartsel] = g
	}
}

// execProgBuf runs the single instruction in PROGBUF0 against the
// scratch register, supporting exactly the csrrs/csrrw shapes csr.go
// generates.
func (f *fakeMem) execProgBuf() {
	insn := f.progbuf[0]
	opcode := insn & 0x7F
	if opcode != 0x73 {
		return
	}
	funct3 := (insn >> 12) & 0x7
	rd := int((insn >> 7) & 0x1F)
	rs1 := int((insn >> 15) & 0x1F)
	csr := int(insn >> 20)

	g := f.gprs[f.hartsel]
	switch funct3 {
	case 0x2: // csrrs rd, csr, x0
		var v uint32
		switch csr {
		case 0x7b0:
			v = f.dcsr[f.hartsel]
		case 0x7b1:
			v = f.dpc[f.hartsel]
		}
		g[rd] = v
	case 0x1: // csrrw x0, csr, rs1
		switch csr {
		case 0x7b0:
			f.dcsr[f.hartsel] = g[rs1]
		case 0x7b1:
			f.dpc[f.hartsel] = g[rs1]
		}
	}
	f.gprs[f.hartsel] = g
}

func (f *fakeMem) InitDMHandshake(dmControlOffset uint32, sleep func()) (uint32, error) {
	f.initSteps++
	sleep()
	sleep()
	sleep()
	return 0x04010001, nil
}

func (f *fakeMem) SelectBank0() error { return nil }

func newDriver() (*dm.Driver, *fakeMem) {
	m := newFakeMem()
	d := dm.New(m, zerolog.Nop(), dm.WithSleep(func(time.Duration) {}))
	return d, m
}

func TestInitSucceeds(t *testing.T) {
	d, _ := newDriver()
	require.NoError(t, d.Init())
	assert.True(t, d.IsInitialized())
}

func TestHaltResumeRoundTrip(t *testing.T) {
	d, _ := newDriver()
	require.NoError(t, d.Init())

	require.NoError(t, d.Halt(0))
	halted, err := d.IsHalted(0)
	require.NoError(t, err)
	assert.True(t, halted)

	err = d.Halt(0)
	k, ok := rvdbgerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rvdbgerr.AlreadyHalted, k)

	require.NoError(t, d.Resume(0))
	halted, err = d.IsHalted(0)
	require.NoError(t, err)
	assert.False(t, halted)
}

func TestRegReadWriteRoundTrip(t *testing.T) {
	d, _ := newDriver()
	require.NoError(t, d.Init())
	require.NoError(t, d.Halt(1))

	require.NoError(t, d.WriteReg(1, 5, 0xCAFEBABE))
	v, err := d.ReadReg(1, 5)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFEBABE), v)

	v0, err := d.ReadReg(1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v0)
}

func TestReadRegRequiresHalt(t *testing.T) {
	d, _ := newDriver()
	require.NoError(t, d.Init())
	_, err := d.ReadReg(0, 1)
	k, ok := rvdbgerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rvdbgerr.NotHalted, k)
}

func TestPCReadWriteViaProgBuf(t *testing.T) {
	d, _ := newDriver()
	require.NoError(t, d.Init())
	require.NoError(t, d.Halt(0))

	require.NoError(t, d.WritePC(0, 0x2000_0100))
	pc, err := d.ReadPC(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x2000_0100), pc)
}

func TestSBAReadWriteRoundTrip(t *testing.T) {
	d, _ := newDriver()
	require.NoError(t, d.Init())

	require.NoError(t, d.SBAWriteMem32(0x2000_0000, 0xABCD1234))
	v, err := d.SBAReadMem32(0x2000_0000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xABCD1234), v)
}

func TestSBARejectsMisaligned(t *testing.T) {
	d, _ := newDriver()
	require.NoError(t, d.Init())

	_, err := d.SBAReadMem32(0x2000_0001)
	k, ok := rvdbgerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rvdbgerr.Alignment, k)
}

func TestInvalidHartIndexRejected(t *testing.T) {
	d, _ := newDriver()
	require.NoError(t, d.Init())
	err := d.Halt(2)
	k, ok := rvdbgerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rvdbgerr.InvalidParam, k)
}
