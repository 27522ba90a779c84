// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rvdbg

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds the session-wide zerolog.Logger every layer derives
// its own sub-logger from via .With().Str("layer", ...).Logger(). When
// pretty is true, output goes through zerolog's human-readable console
// writer instead of newline-delimited JSON; cmd/rvdbgctl sets this based
// on whether stderr is an interactive terminal.
func NewLogger(level zerolog.Level, pretty bool) zerolog.Logger {
	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
