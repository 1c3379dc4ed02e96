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
	"context"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the global zerolog.Logger instance. Setup replaces it once the configuration is
// known.
var Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()

// at starts an event on the global logger. Fatal events exit the process once sent.
func at(level zerolog.Level) *zerolog.Event {
	if level == zerolog.FatalLevel {
		return Logger.Fatal()
	}

	return Logger.WithLevel(level)
}

// atContext starts an event carrying the session, origin and relay state stored in ctx.
func atContext(ctx context.Context, level zerolog.Level) *zerolog.Event {
	return appendContextFields(ctx, at(level))
}

// TraceContext starts a trace event with the fields of ctx.
func TraceContext(ctx context.Context) *zerolog.Event {
	return atContext(ctx, zerolog.TraceLevel)
}

// Debug starts a new log event with debug level.
func Debug() *zerolog.Event {
	return at(zerolog.DebugLevel)
}

// DebugContext starts a debug event with the fields of ctx.
func DebugContext(ctx context.Context) *zerolog.Event {
	return atContext(ctx, zerolog.DebugLevel)
}

// Info starts a new log event with info level.
func Info() *zerolog.Event {
	return at(zerolog.InfoLevel)
}

// InfoContext starts an info event with the fields of ctx.
func InfoContext(ctx context.Context) *zerolog.Event {
	return atContext(ctx, zerolog.InfoLevel)
}

// Warn starts a new log event with warn level.
func Warn() *zerolog.Event {
	return at(zerolog.WarnLevel)
}

// WarnContext starts a warn event with the fields of ctx.
func WarnContext(ctx context.Context) *zerolog.Event {
	return atContext(ctx, zerolog.WarnLevel)
}

// ErrorContext starts an error event with the fields of ctx. Errors always belong to a
// session or a background task, so there is no variant without context.
func ErrorContext(ctx context.Context) *zerolog.Event {
	return atContext(ctx, zerolog.ErrorLevel)
}

// Fatal starts an event that exits the process after it is sent.
func Fatal() *zerolog.Event {
	return at(zerolog.FatalLevel)
}
