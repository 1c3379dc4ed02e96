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

package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrSizeExceeded is returned when the inbound body grows beyond the configured limit.
	ErrSizeExceeded = errors.New("relay: size limit exceeded")

	errAbandoned = errors.New("relay: outbound stream abandoned")
)

// ErrorKind classifies a failed relay attempt.
type ErrorKind uint

const (
	// KindSize means the message exceeded the size limit.
	KindSize ErrorKind = iota + 1
	// KindConnect means no session could be established with the upstream.
	KindConnect
	// KindSend means the upstream session failed while transmitting the message.
	KindSend
)

func (k ErrorKind) String() string {
	switch k {
	case KindSize:
		return "size"
	case KindConnect:
		return "connect"
	case KindSend:
		return "send"
	default:
		return fmt.Sprintf("kind(%d)", uint(k))
	}
}

// Error is the reply sent to the inbound client after a failed relay attempt.
type Error struct {
	Kind         ErrorKind
	Code         int
	EnhancedCode [3]int
	Text         string
	Cause        error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %d %s", e.Cause, e.Code, e.Text)
	}

	return fmt.Sprintf("%d %s", e.Code, e.Text)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Temporary reports whether the client may retry the transaction later.
func (e *Error) Temporary() bool {
	return e.Code >= 400 && e.Code < 500
}

func sizeError(limit int64, cause error) *Error {
	return &Error{
		Kind:         KindSize,
		Code:         552,
		EnhancedCode: [3]int{5, 3, 4},
		Text:         fmt.Sprintf("message exceeds fixed maximum message size %d MB", limit/(1<<20)),
		Cause:        cause,
	}
}

func connectError(cause error) *Error {
	return &Error{
		Kind:         KindConnect,
		Code:         451,
		EnhancedCode: [3]int{4, 4, 1},
		Text:         "message couldn't be delivered",
		Cause:        cause,
	}
}

func sendError(cause error) *Error {
	return &Error{
		Kind:         KindSend,
		Code:         451,
		EnhancedCode: [3]int{4, 4, 2},
		Text:         "error occurred while relaying the message",
		Cause:        cause,
	}
}
