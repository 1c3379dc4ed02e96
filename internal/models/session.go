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

import "time"

// SessionSnapshot is a copy of the inbound session state at the time a message is handed to the
// relay. It is kept with the audit record for diagnostics.
type SessionSnapshot struct {
	ID             string    `json:"id" bson:"id"`
	OpenedAt       time.Time `json:"openedAt" bson:"openedAt"`
	Transaction    int       `json:"transaction" bson:"transaction"`
	RemoteAddress  string    `json:"remoteAddress" bson:"remoteAddress"`
	ClientHostname string    `json:"clientHostname,omitempty" bson:"clientHostname,omitempty"`
	HeloName       string    `json:"heloName,omitempty" bson:"heloName,omitempty"`
	TLS            bool      `json:"tls" bson:"tls"`
	User           string    `json:"user,omitempty" bson:"user,omitempty"`
	MailFrom       string    `json:"mailFrom" bson:"mailFrom"`
	Recipients     []string  `json:"recipients" bson:"recipients"`
	DeclaredSize   int64     `json:"declaredSize,omitempty" bson:"declaredSize,omitempty"`
	BodyType       string    `json:"bodyType,omitempty" bson:"bodyType,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s *SessionSnapshot) Clone() *SessionSnapshot {
	clone := *s
	clone.Recipients = append([]string(nil), s.Recipients...)
	return &clone
}
