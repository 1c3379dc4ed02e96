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
	"time"
)

var (
	// ErrRecordOutcome is returned for records with both or none of Error and Response set.
	ErrRecordOutcome = errors.New("audit record: exactly one of error and response must be set")
)

// AuditRecord is the persisted trace of a single inbound attempt.
type AuditRecord struct {
	Added          time.Time        `json:"added" bson:"added"`
	SessionID      string           `json:"sessionId" bson:"sessionId"`
	RemoteAddress  string           `json:"remoteAddress" bson:"remoteAddress"`
	ClientHostname string           `json:"clientHostname,omitempty" bson:"clientHostname,omitempty"`
	MailFrom       string           `json:"mailFrom" bson:"mailFrom"`
	Recipients     []string         `json:"recipients" bson:"recipients"`
	Error          *string          `json:"error" bson:"error"`
	Response       *DeliveryInfo    `json:"response" bson:"response"`
	Session        *SessionSnapshot `json:"session" bson:"session"`
}

// NewAuditRecord creates a record from an envelope. The outcome is set later using Fail or
// Succeed.
func NewAuditRecord(envelope Envelope, session *SessionSnapshot) *AuditRecord {
	return &AuditRecord{
		SessionID:      envelope.SessionID,
		RemoteAddress:  envelope.RemoteAddress,
		ClientHostname: envelope.ClientHostname,
		MailFrom:       envelope.MailFrom.String(),
		Recipients:     envelope.RecipientStrings(),
		Session:        session.Clone(),
	}
}

// Fail sets the error text of a failed attempt.
func (r *AuditRecord) Fail(text string) {
	r.Error = &text
	r.Response = nil
}

// Succeed sets the delivery info of a successful attempt.
func (r *AuditRecord) Succeed(info *DeliveryInfo) {
	r.Error = nil
	r.Response = info
}

// Validate checks that the record carries exactly one outcome.
func (r *AuditRecord) Validate() error {
	if (r.Error == nil) == (r.Response == nil) {
		return ErrRecordOutcome
	}

	return nil
}
