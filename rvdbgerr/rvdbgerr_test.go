// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rvdbgerr_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualhart/rvdbg/rvdbgerr"
)

func TestErrorFormatting(t *testing.T) {
	err := rvdbgerr.New(rvdbgerr.Fault, "ap read failed at reg %#x", 0x0c)
	require.Error(t, err)
	assert.Equal(t, "Fault: ap read failed at reg 0xc", err.Error())
	assert.Equal(t, rvdbgerr.Fault, err.Kind)
}

func TestErrorDetailBounded(t *testing.T) {
	err := rvdbgerr.New(rvdbgerr.Protocol, "%s", strings.Repeat("x", 500))
	assert.LessOrEqual(t, len(err.Detail), 128)
}

func TestIsAndAs(t *testing.T) {
	err := rvdbgerr.New(rvdbgerr.AlreadyHalted, "hart 0 already halted")
	assert.True(t, rvdbgerr.Is(err, rvdbgerr.AlreadyHalted))
	assert.False(t, rvdbgerr.Is(err, rvdbgerr.Timeout))

	k, ok := rvdbgerr.As(err)
	assert.True(t, ok)
	assert.Equal(t, rvdbgerr.AlreadyHalted, k)

	k, ok = rvdbgerr.As(nil)
	assert.False(t, ok)
	assert.Equal(t, rvdbgerr.Ok, k)
}

func TestKindStringUnknown(t *testing.T) {
	assert.Contains(t, rvdbgerr.Kind(200).String(), "Kind(200)")
}
