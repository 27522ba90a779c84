// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rvdbg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dualhart/rvdbg/rvdbg"
)

type fakeTransport struct{ name string }

func (f fakeTransport) String() string { return f.name }
func (f fakeTransport) Open(string) (rvdbg.Opener, error) { return fakeOpener{}, nil }

type fakeOpener struct{}

func (fakeOpener) Close() error { return nil }

func TestRegisterTransportRejectsDuplicateName(t *testing.T) {
	require.NoError(t, rvdbg.RegisterTransport(fakeTransport{name: "test-transport-a"}))
	err := rvdbg.RegisterTransport(fakeTransport{name: "test-transport-a"})
	require.Error(t, err)
}

func TestOpenTransportByName(t *testing.T) {
	require.NoError(t, rvdbg.RegisterTransport(fakeTransport{name: "test-transport-b"}))
	o, err := rvdbg.OpenTransport("test-transport-b", "")
	require.NoError(t, err)
	require.NoError(t, o.Close())
}

func TestOpenTransportUnknownName(t *testing.T) {
	_, err := rvdbg.OpenTransport("does-not-exist", "")
	require.Error(t, err)
}
