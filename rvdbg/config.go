// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rvdbg

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk session configuration: which transport to use,
// the target SWD clock, retry behavior, and whether the SBA pathway
// should check SBCS for a sticky error after every write.
type Config struct {
	Transport struct {
		Name     string `toml:"name"`
		Instance string `toml:"instance"`
	} `toml:"transport"`

	SWD struct {
		ClockKHz    uint32 `toml:"clock_khz"`
		RetryCount  int    `toml:"retry_count"`
		Turnarounds int    `toml:"turnarounds"`
	} `toml:"swd"`

	SBA struct {
		Strict bool `toml:"strict"`
	} `toml:"sba"`
}

// DefaultConfig's retry count (5) and turnaround count (1) match swd's
// own defaults. Its SWD clock is 4000 kHz, while swd.New starts at
// 1000 kHz; Open connects at 1000 kHz and then reprograms the clock to
// ClockKHz.
func DefaultConfig() Config {
	var c Config
	c.SWD.ClockKHz = 4000
	c.SWD.RetryCount = 5
	c.SWD.Turnarounds = 1
	return c
}

// LoadConfig reads and parses a TOML config file, starting from
// DefaultConfig so a file only needs to override what it changes.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("rvdbg: read config %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), &c); err != nil {
		return c, fmt.Errorf("rvdbg: parse config %s: %w", path, err)
	}
	return c, nil
}
