// Copyright (C) 2026  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package log

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

const (
	formatJSON    = "json"
	formatConsole = "console"
)

// Setup replaces the global Logger with one writing to w. The level is parsed with
// zerolog.ParseLevel and format is either "json" or "console".
func Setup(w io.Writer, level, format string) error {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("unknown log level: %w", err)
	}

	switch format {
	case formatJSON, "":
	case formatConsole:
		w = zerolog.ConsoleWriter{Out: w}
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	Logger = zerolog.New(w).Level(logLevel).With().Timestamp().Caller().Logger()
	return nil
}
