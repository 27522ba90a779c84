// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// rvdbgctl is a thin command-line front end over package rvdbg: pick a
// registered transport, connect, and run one operation against a hart.
// It deliberately does not grow its own protocol logic; everything it
// does is a direct call into rvdbg.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/dualhart/rvdbg/rvdbg"
	"github.com/dualhart/rvdbg/rvdbgerr"
)

var (
	configPath = flag.String("config", "", "path to a TOML session config (overrides built-in defaults)")
	transport  = flag.String("transport", "", "registered transport name (see -list-transports)")
	instance   = flag.String("instance", "", "transport-specific instance selector")
	hart       = flag.Int("hart", 0, "hart index to operate on")
	verbose    = flag.Bool("v", false, "debug-level logging")

	listTransports = flag.Bool("list-transports", false, "print registered transport names and exit")
)

func main() {
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := rvdbg.NewLogger(level, term.IsTerminal(int(os.Stderr.Fd())))

	if *listTransports {
		for _, name := range rvdbg.Transports() {
			fmt.Println(name)
		}
		return
	}

	if err := run(log); err != nil {
		log.Error().Err(err).Msg("rvdbgctl failed")
		os.Exit(1)
	}
}

func run(log zerolog.Logger) error {
	cfg := rvdbg.DefaultConfig()
	if *configPath != "" {
		loaded, err := rvdbg.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *transport != "" {
		cfg.Transport.Name = *transport
	}
	if *instance != "" {
		cfg.Transport.Instance = *instance
	}
	if cfg.Transport.Name == "" {
		return fmt.Errorf("rvdbgctl: -transport is required (see -list-transports)")
	}

	tracker := rvdbg.NewResourceTracker()
	slot, err := tracker.Acquire(context.Background())
	if err != nil {
		return err
	}

	opened, err := rvdbg.OpenTransport(cfg.Transport.Name, cfg.Transport.Instance)
	if err != nil {
		slot.Release()
		return err
	}
	p, ok := opened.(pioEngine)
	if !ok {
		slot.Release()
		_ = opened.Close()
		return fmt.Errorf("rvdbgctl: transport %q does not implement a pio.Engine", cfg.Transport.Name)
	}

	target, err := rvdbg.Open(p, slot, log, cfg)
	if err != nil {
		return err
	}
	defer target.Close()

	if err := target.Halt(*hart); err != nil && !isAlreadyHalted(err) {
		return err
	}
	regs, err := target.ReadAllRegs(*hart)
	if err != nil {
		return err
	}
	for i, v := range regs {
		fmt.Printf("x%-2d = %#010x\n", i, v)
	}
	return nil
}

// pioEngine mirrors pio.Engine's method set; declared locally so this
// package doesn't need to import pio just to type-assert a transport's
// Open result.
type pioEngine interface {
	SetClockDiv(div uint16) error
	LineReset(clocks int) error
	SendIdleClocks(n int) error
	WriteBits(v uint32, n int) error
	ReadBits(n int) (uint32, error)
	Turnaround() error
	Close() error
}

func isAlreadyHalted(err error) bool {
	k, ok := rvdbgerr.As(err)
	return ok && k == rvdbgerr.AlreadyHalted
}
