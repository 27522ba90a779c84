// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rvdbg

import (
	"fmt"
	"sort"
	"sync"
)

// TransportDriver is an implementation of a wire-level transport capable
// of carrying the SWD protocol to a probe (e.g. a PIO block, an FTDI
// bitbang adapter). Transports register themselves in their package's
// init() by calling MustRegisterTransport, the way periph's device
// drivers register themselves against the periph.Driver registry.
type TransportDriver interface {
	// String returns the transport's name, unique across the registry.
	String() string
	// Open probes for and opens the named instance ("" selects any
	// available instance) and returns a pio.Engine-capable connection.
	Open(name string) (Opener, error)
}

// Opener is satisfied by anything a TransportDriver.Open returns; it is
// intentionally minimal since transports wrap wildly different hardware.
type Opener interface {
	Close() error
}

var (
	mu         sync.Mutex
	byName     = map[string]TransportDriver{}
	allDrivers []TransportDriver
)

// RegisterTransport adds t to the registry. It is an error to register
// two transports under the same name.
func RegisterTransport(t TransportDriver) error {
	mu.Lock()
	defer mu.Unlock()
	n := t.String()
	if _, ok := byName[n]; ok {
		return fmt.Errorf("rvdbg: transport %q already registered", n)
	}
	byName[n] = t
	allDrivers = append(allDrivers, t)
	return nil
}

// MustRegisterTransport calls RegisterTransport and panics on failure.
// Transport packages call this from their package init().
func MustRegisterTransport(t TransportDriver) {
	if err := RegisterTransport(t); err != nil {
		panic(err)
	}
}

// Transports returns the names of every registered transport, sorted.
func Transports() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(allDrivers))
	for _, d := range allDrivers {
		names = append(names, d.String())
	}
	sort.Strings(names)
	return names
}

// OpenTransport looks up a transport by name and opens an instance of it.
func OpenTransport(name, instance string) (Opener, error) {
	mu.Lock()
	t, ok := byName[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("rvdbg: no transport registered as %q", name)
	}
	return t.Open(instance)
}
