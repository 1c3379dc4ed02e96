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

var errIllegalTransition = errors.New("relay: illegal state transition")

// State is the progress of a single relay attempt.
type State uint

const (
	StateReceiving State = iota
	StateSizeCheck
	StateConnecting
	StateSending
	StateFailedSize
	StateFailedConnect
	StateFailedSend
	StateCompleted
)

func (s State) String() string {
	names := [...]string{
		"receiving",
		"size-check",
		"connecting",
		"sending",
		"failed-size",
		"failed-connect",
		"failed-send",
		"completed",
	}

	if int(s) < len(names) {
		return names[s]
	}

	return fmt.Sprintf("state(%d)", uint(s))
}

func (s State) in(any ...State) bool {
	for _, other := range any {
		if other == s {
			return true
		}
	}

	return false
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s.in(StateFailedSize, StateFailedConnect, StateFailedSend, StateCompleted)
}

type event uint

const (
	// eventReceived fires once the first chunk of the body has been read.
	eventReceived event = iota
	// eventSizeExceeded fires whenever the acceptor reports the size limit.
	eventSizeExceeded
	eventSizeAccepted
	eventConnected
	eventConnectFailed
	eventSent
	eventSendFailed
)

func (e event) String() string {
	return [...]string{
		"received",
		"size-exceeded",
		"size-accepted",
		"connected",
		"connect-failed",
		"sent",
		"send-failed",
	}[e]
}

// transition returns the state following s after e. Terminal states accept no events.
func transition(s State, e event) (State, error) {
	switch {
	case e == eventSizeExceeded && s.in(StateReceiving, StateSizeCheck, StateConnecting, StateSending):
		return StateFailedSize, nil

	case e == eventReceived && s == StateReceiving:
		return StateSizeCheck, nil

	case e == eventSizeAccepted && s == StateSizeCheck:
		return StateConnecting, nil

	case e == eventConnected && s == StateConnecting:
		return StateSending, nil

	case e == eventConnectFailed && s == StateConnecting:
		return StateFailedConnect, nil

	case e == eventSent && s == StateSending:
		return StateCompleted, nil

	case e == eventSendFailed && s == StateSending:
		return StateFailedSend, nil
	}

	return s, fmt.Errorf("%w: %v on %v", errIllegalTransition, e, s)
}
