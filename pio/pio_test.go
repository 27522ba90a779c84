// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualhart/rvdbg/pio"
)

func TestClockDividerKnownValues(t *testing.T) {
	div, err := pio.ClockDivider(125_000, 4_000)
	require.NoError(t, err)
	assert.Equal(t, uint16(9), div)

	div, err = pio.ClockDivider(125_000, 125_000)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), div)
}

func TestClockDividerRejectsZeroTarget(t *testing.T) {
	_, err := pio.ClockDivider(125_000, 0)
	require.Error(t, err)
}

func TestClockDividerClampsToUint16Range(t *testing.T) {
	div, err := pio.ClockDivider(125_000, 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, div, uint16(65535))
}

func TestFrequencyString(t *testing.T) {
	assert.Equal(t, "4MHz", pio.Frequency(4000).String())
	assert.Equal(t, "500kHz", pio.Frequency(500).String())
}
