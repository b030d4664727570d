// SPDX-License-Identifier: Apache-2.0

package config

import (
	"io"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Console format is meant for local
// development; json is the default.
func (c Config) NewLogger(w io.Writer) zerolog.Logger {
	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
