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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRecordOutcome(t *testing.T) {
	envelope, err := NewEnvelope(fakeSession())
	require.NoError(t, err)

	record := NewAuditRecord(envelope, fakeSession())
	assert.ErrorIs(t, record.Validate(), ErrRecordOutcome)

	record.Fail("message couldn't be delivered")
	assert.NoError(t, record.Validate())
	assert.Equal(t, "message couldn't be delivered", *record.Error)
	assert.Nil(t, record.Response)

	record.Succeed(&DeliveryInfo{Accepted: envelope.RecipientStrings(), Response: "2.0.0 OK"})
	assert.NoError(t, record.Validate())
	assert.Nil(t, record.Error)
	assert.Equal(t, "2.0.0 OK", record.Response.Response)

	record.Error = new(string)
	assert.ErrorIs(t, record.Validate(), ErrRecordOutcome)
}

func TestAuditRecordCopiesEnvelope(t *testing.T) {
	session := fakeSession()

	envelope, err := NewEnvelope(session)
	require.NoError(t, err)

	record := NewAuditRecord(envelope, session)
	session.Recipients[1] = "changed@example.net"

	assert.Equal(t, "session1", record.SessionID)
	assert.Equal(t, "192.0.2.1", record.RemoteAddress)
	assert.Equal(t, "mail.example.com", record.ClientHostname)
	assert.Equal(t, "sender@example.com", record.MailFrom)
	assert.Equal(t, []string{"first@example.org", "second@example.net"}, record.Recipients)
	assert.Equal(t, "second@example.net", record.Session.Recipients[1])
	assert.True(t, record.Added.IsZero())
}
