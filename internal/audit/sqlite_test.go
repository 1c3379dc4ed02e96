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

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func TestSqliteStoreTestSuite(t *testing.T) {
	suite.Run(t, new(SqliteStoreTestSuite))
}

type SqliteStoreTestSuite struct {
	suite.Suite

	ctx   context.Context
	store *sqliteStore
}

func (s *SqliteStoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = newSqliteStore(":memory:", "memory")
	s.Require().NoError(s.store.Connect(s.ctx))
}

func (s *SqliteStoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *SqliteStoreTestSuite) TestDataSourceName() {
	s.Assert().Equal("file::memory:?_journal_mode=memory", s.store.dataSourceName())
	s.Assert().Equal("file:data/briefrelay.sqlite?_journal_mode=wal",
		newSqliteStore("data/briefrelay.sqlite", "wal").dataSourceName())
}

func (s *SqliteStoreTestSuite) TestSaveSucceeded() {
	s.Require().NoError(s.store.Save(s.ctx, newSucceededRecord()))

	var row recordRow
	s.Require().NoError(s.store.db.GetContext(s.ctx, &row, `
		select "added" , "session_id" , "remote_address" , "client_hostname" , "mail_from" ,
			"recipients" , "error" , "response" , "session"
		from "audit_records" ;
	`))

	s.Assert().Equal("4f2b", row.SessionID)
	s.Assert().Equal("192.0.2.1", row.RemoteAddress)
	s.Require().NotNil(row.ClientHostname)
	s.Assert().Equal("mail.example.com", *row.ClientHostname)
	s.Assert().Equal("sender@example.com", row.MailFrom)
	s.Assert().JSONEq(`["first@example.org","second@example.org"]`, row.Recipients)
	s.Assert().Nil(row.Error)
	s.Require().NotNil(row.Response)
	s.Assert().JSONEq(`{
		"accepted": ["first@example.org"],
		"rejected": ["second@example.org"],
		"response": "2.0.0 Ok: queued as 42"
	}`, *row.Response)
	s.Require().NotNil(row.Session)
	s.Assert().Contains(*row.Session, `"id":"4f2b"`)
}

func (s *SqliteStoreTestSuite) TestSaveFailed() {
	record := newSucceededRecord()
	record.Fail("message couldn't be delivered")
	record.ClientHostname = ""
	record.Session = nil

	s.Require().NoError(s.store.Save(s.ctx, record))

	var row recordRow
	s.Require().NoError(s.store.db.GetContext(s.ctx, &row, `
		select "added" , "session_id" , "remote_address" , "client_hostname" , "mail_from" ,
			"recipients" , "error" , "response" , "session"
		from "audit_records" ;
	`))

	s.Assert().Nil(row.ClientHostname)
	s.Require().NotNil(row.Error)
	s.Assert().Equal("message couldn't be delivered", *row.Error)
	s.Assert().Nil(row.Response)
	s.Assert().Nil(row.Session)
}

func (s *SqliteStoreTestSuite) TestReconnectKeepsWorking() {
	s.Require().NoError(s.store.Connect(s.ctx))
	s.Require().NoError(s.store.Ping(s.ctx))
	s.Require().NoError(s.store.Save(s.ctx, newSucceededRecord()))

	var count int
	s.Require().NoError(s.store.db.GetContext(s.ctx, &count, `select count(*) from "audit_records" ;`))
	s.Assert().Equal(1, count)
}

func (s *SqliteStoreTestSuite) TestPingClosed() {
	s.Require().NoError(s.store.db.Close())
	s.Assert().ErrorIs(s.store.Ping(s.ctx), ErrDisconnected)
}

func TestIsErrUnavailable(t *testing.T) {
	assert.True(t, isErrUnavailable(sql.ErrConnDone))
	assert.True(t, isErrUnavailable(fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrIoErr})))
	assert.True(t, isErrUnavailable(sqlite3.Error{Code: sqlite3.ErrCantOpen}))
	assert.False(t, isErrUnavailable(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, isErrUnavailable(sql.ErrNoRows))
}
