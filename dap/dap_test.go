// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dap_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualhart/rvdbg/dap"
)

// fakeWire is a minimal wireEngine fake: an in-memory register file keyed
// by (apndp, reg), holding the most recently selected AP's state. It is
// grounded on the teacher's conntest.Record/Playback idea of a
// programmable fake, narrowed to just DP/AP register semantics.
type fakeWire struct {
	dp        map[byte]uint32
	selectLog []uint32
	apWrites  map[byte]uint32
	rdbuff    uint32
	neverAck  bool
}

func newFakeWire() *fakeWire {
	return &fakeWire{dp: map[byte]uint32{}, apWrites: map[byte]uint32{}}
}

func (f *fakeWire) ReadDPRaw(reg byte) (uint32, error) {
	if reg == dap.RegRDBUFF {
		return f.rdbuff, nil
	}
	return f.dp[reg], nil
}

func (f *fakeWire) WriteDPRaw(reg byte, v uint32) error {
	if reg == dap.RegSELECT {
		f.selectLog = append(f.selectLog, v)
	}
	if reg == dapRegCTRL && !f.neverAck && v&(dapCtrlCDBGPWRUPREQ|dapCtrlCSYSPWRUPREQ) != 0 {
		// Simulate the debug domain acknowledging power-up immediately.
		v |= dapCtrlCDBGPWRUPACK | dapCtrlCSYSPWRUPACK
	}
	f.dp[reg] = v
	return nil
}

func (f *fakeWire) ReadAPRaw(reg byte) (uint32, error) {
	f.rdbuff = f.apWrites[reg] + 1 // arbitrary distinguishable pipelined value
	return 0xFFFFFFFF, nil         // direct AP read return is discarded by dap
}

func (f *fakeWire) WriteAPRaw(reg byte, v uint32) error {
	f.apWrites[reg] = v
	f.rdbuff = v
	return nil
}

func newTestDAP(w *fakeWire) *dap.DAP {
	return dap.New(w, zerolog.Nop())
}

func TestSelectBankCachedOnRepeat(t *testing.T) {
	w := newFakeWire()
	d := newTestDAP(w)

	_, err := d.ReadAP(0xA, 0x00) // CSW, bank 0
	require.NoError(t, err)
	_, err = d.ReadAP(0xA, 0x04) // TAR, bank 0 too -> same SELECT value
	require.NoError(t, err)

	assert.Len(t, w.selectLog, 1, "second access in the same bank must not rewrite SELECT")
}

func TestSelectBankChangesOnNewBank(t *testing.T) {
	w := newFakeWire()
	d := newTestDAP(w)

	_, err := d.ReadAP(0xA, 0x00) // bank 0
	require.NoError(t, err)
	_, err = d.ReadAP(0xA, 0xFC) // bank 0xF (IDR)
	require.NoError(t, err)

	assert.Len(t, w.selectLog, 2)
}

func TestSelectEncoding(t *testing.T) {
	w := newFakeWire()
	d := newTestDAP(w)

	err := d.WriteAP(0xA, 0x10, 0) // apsel 0xA, bank 1
	require.NoError(t, err)
	require.Len(t, w.selectLog, 1)
	want := uint32(0xA)<<12 | 0xD<<8 | uint32(1)<<4 | 1
	assert.Equal(t, want, w.selectLog[0])
}

func TestRawSelectWriteInvalidatesCache(t *testing.T) {
	w := newFakeWire()
	d := newTestDAP(w)

	_, err := d.ReadAP(0xA, 0x00)
	require.NoError(t, err)
	require.NoError(t, d.WriteDP(dap.RegSELECT, 0xDEADBEEF))

	_, err = d.ReadAP(0xA, 0x00)
	require.NoError(t, err)
	assert.Len(t, w.selectLog, 3, "raw SELECT write must force the next AP access to reselect")
}

func TestPowerUpSucceeds(t *testing.T) {
	w := newFakeWire()
	d := newTestDAP(w)

	require.NoError(t, d.PowerUp())
	assert.True(t, d.IsPowered())
}

func TestPowerUpTimesOutWithoutAck(t *testing.T) {
	w := newFakeWire()
	w.neverAck = true
	d := newTestDAP(w)

	err := d.PowerUp()
	require.Error(t, err)
	assert.False(t, d.IsPowered())
}

func TestClearErrorsWritesW1C(t *testing.T) {
	w := newFakeWire()
	d := newTestDAP(w)

	require.NoError(t, d.ClearErrors())
	want := uint32(1<<5 | 1<<7 | 1<<1 | 1<<4)
	assert.Equal(t, want, w.dp[dap.RegCTRL])
}

const (
	dapRegCTRL           = 0x4
	dapCtrlCDBGPWRUPREQ  = 1 << 28
	dapCtrlCDBGPWRUPACK  = 1 << 29
	dapCtrlCSYSPWRUPREQ  = 1 << 30
	dapCtrlCSYSPWRUPACK  = 1 << 31
)
