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

package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRecipients is returned when an envelope is constructed without any recipient.
	ErrNoRecipients = errors.New("envelope: no recipients")
)

// Envelope is the sender, recipient and identity metadata of a single inbound attempt. It is built
// once at the beginning of an attempt and not modified afterwards.
type Envelope struct {
	// SessionID identifies the inbound attempt.
	SessionID string
	// RemoteAddress is the ip address of the sending client.
	RemoteAddress string
	// ClientHostname is the reverse dns name of RemoteAddress. It is empty if unresolved.
	ClientHostname string
	// HeloName is the hostname the client declared with HELO or EHLO.
	HeloName string
	// MailFrom is the reverse-path.
	MailFrom Address
	// Recipients are the forward-paths in the order they were given.
	Recipients []Address
}

// NewEnvelope validates the sender and recipients of a session and copies them into a new Envelope.
func NewEnvelope(session *SessionSnapshot) (Envelope, error) {
	from, err := Parse(session.MailFrom)
	if err != nil {
		return Envelope{}, fmt.Errorf("mail from %q: %w", session.MailFrom, err)
	}

	if len(session.Recipients) == 0 {
		return Envelope{}, ErrNoRecipients
	}

	recipients := make([]Address, 0, len(session.Recipients))

	for _, raw := range session.Recipients {
		to, err := Parse(raw)
		if err != nil {
			return Envelope{}, fmt.Errorf("recipient %q: %w", raw, err)
		}

		recipients = append(recipients, to)
	}

	return Envelope{
		SessionID:      session.ID,
		RemoteAddress:  session.RemoteAddress,
		ClientHostname: session.ClientHostname,
		HeloName:       session.HeloName,
		MailFrom:       from,
		Recipients:     recipients,
	}, nil
}

// RecipientStrings returns the raw recipient addresses.
func (e Envelope) RecipientStrings() []string {
	recipients := make([]string, len(e.Recipients))
	for i, to := range e.Recipients {
		recipients[i] = to.String()
	}

	return recipients
}
