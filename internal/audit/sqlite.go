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
	"embed"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/lukasdietrich/briefrelay/internal/log"
	"github.com/lukasdietrich/briefrelay/internal/models"
)

const driverName = "sqlite3"

//go:embed migrations/*.sql
var migrationFolder embed.FS

func init() {
	migrate.SetTable("audit_migrations")
}

type sqliteStore struct {
	filename    string
	journalMode string

	mu sync.RWMutex
	db *sqlx.DB
}

func newSqliteStore(filename, journalMode string) *sqliteStore {
	return &sqliteStore{
		filename:    filename,
		journalMode: journalMode,
	}
}

func (s *sqliteStore) Connect(ctx context.Context) error {
	sqliteVersion, _, _ := sqlite3.Version()

	dsn := s.dataSourceName()
	log.InfoContext(ctx).
		Str("driver", driverName).
		Str("version", sqliteVersion).
		Str("dataSourceName", dsn).
		Msg("connecting to database")

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return err
	}

	// sqlite serializes writes anyway and every connection to ":memory:" opens a new database.
	db.SetMaxOpenConns(1)

	if err := s.migrate(ctx, db); err != nil {
		db.Close()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		s.db.Close()
	}

	s.db = db
	return nil
}

func (s *sqliteStore) migrate(ctx context.Context, db *sqlx.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	source := migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFolder,
		Root:       "migrations",
	}

	n, err := migrate.Exec(db.DB, driverName, source, migrate.Up)
	if err != nil {
		return err
	}

	if n > 0 {
		log.InfoContext(ctx).
			Int("migrations", n).
			Msg("database migrations applied")
	}

	return nil
}

func (s *sqliteStore) dataSourceName() string {
	opts := make(url.Values)
	opts.Add("_journal_mode", s.journalMode)

	dsn := url.URL{
		Scheme:   "file",
		Opaque:   s.filename,
		RawQuery: opts.Encode(),
	}

	return dsn.String()
}

type recordRow struct {
	Added          time.Time `db:"added"`
	SessionID      string    `db:"session_id"`
	RemoteAddress  string    `db:"remote_address"`
	ClientHostname *string   `db:"client_hostname"`
	MailFrom       string    `db:"mail_from"`
	Recipients     string    `db:"recipients"`
	Error          *string   `db:"error"`
	Response       *string   `db:"response"`
	Session        *string   `db:"session"`
}

func newRecordRow(record *models.AuditRecord) (*recordRow, error) {
	recipients, err := json.Marshal(record.Recipients)
	if err != nil {
		return nil, err
	}

	row := recordRow{
		Added:         record.Added,
		SessionID:     record.SessionID,
		RemoteAddress: record.RemoteAddress,
		MailFrom:      record.MailFrom,
		Recipients:    string(recipients),
		Error:         record.Error,
	}

	if record.ClientHostname != "" {
		row.ClientHostname = &record.ClientHostname
	}

	if record.Response != nil {
		if row.Response, err = jsonColumn(record.Response); err != nil {
			return nil, err
		}
	}

	if record.Session != nil {
		if row.Session, err = jsonColumn(record.Session); err != nil {
			return nil, err
		}
	}

	return &row, nil
}

func jsonColumn(v interface{}) (*string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	column := string(b)
	return &column, nil
}

func (s *sqliteStore) Save(ctx context.Context, record *models.AuditRecord) error {
	row, err := newRecordRow(record)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return ErrNotConnected
	}

	const query = `
		insert into "audit_records" (
			"added" ,
			"session_id" ,
			"remote_address" ,
			"client_hostname" ,
			"mail_from" ,
			"recipients" ,
			"error" ,
			"response" ,
			"session"
		) values (
			:added ,
			:session_id ,
			:remote_address ,
			:client_hostname ,
			:mail_from ,
			:recipients ,
			:error ,
			:response ,
			:session
		) ;
	`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		if isErrUnavailable(err) {
			return disconnected(err)
		}

		return err
	}

	return nil
}

func (s *sqliteStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return ErrNotConnected
	}

	if err := s.db.PingContext(ctx); err != nil {
		return disconnected(err)
	}

	return nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	return err
}

// isErrUnavailable checks if an error is caused by the database file becoming inaccessible.
func isErrUnavailable(err error) bool {
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var sqliteErr sqlite3.Error

	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrIoErr, sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return true
		}
	}

	return false
}
