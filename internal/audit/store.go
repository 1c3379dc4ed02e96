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
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefrelay/internal/models"
)

func init() {
	viper.SetDefault("audit.connection", "sqlite:data/briefrelay.sqlite")
	viper.SetDefault("audit.timeout", "10s")
	viper.SetDefault("audit.heartbeat", "30s")
	viper.SetDefault("audit.sqlite.journalmode", "wal")
	viper.SetDefault("audit.redis.stream", "briefrelay:audit")
}

var (
	// ErrDisconnected is wrapped by store errors caused by a lost connection.
	ErrDisconnected = errors.New("audit: store disconnected")
	// ErrUnknownScheme is returned for connection strings no store is known for.
	ErrUnknownScheme = errors.New("audit: unknown connection scheme")
	// ErrNotConnected is returned by stores used before Connect.
	ErrNotConnected = errors.New("audit: store not connected")
)

// Store persists audit records.
type Store interface {
	// Connect establishes the connection. It is called again after the connection was lost.
	Connect(ctx context.Context) error
	// Save persists a single record.
	Save(ctx context.Context, record *models.AuditRecord) error
	// Ping checks that the connection is still alive.
	Ping(ctx context.Context) error
	// Close releases the connection.
	Close() error
}

// OpenStore creates the store described by the connection string using configuration from viper.
// The store is not connected yet.
//
// `audit.connection` selects the store by its scheme: "sqlite:", "jsonl:", "mongodb://",
// "mongodb+srv://", "redis://" or "rediss://".
func OpenStore() (Store, error) {
	return NewStore(viper.GetString("audit.connection"), afero.NewOsFs())
}

// NewStore creates the store described by the connection string. File based stores use fs.
func NewStore(connection string, fs afero.Fs) (Store, error) {
	u, err := url.Parse(connection)
	if err != nil {
		return nil, fmt.Errorf("invalid audit connection: %w", err)
	}

	switch u.Scheme {
	case "sqlite":
		return newSqliteStore(location(u), viper.GetString("audit.sqlite.journalmode")), nil

	case "jsonl":
		return newFileStore(fs, location(u)), nil

	case "mongodb", "mongodb+srv":
		return newMongoStore(connection), nil

	case "redis", "rediss":
		return newRedisStore(connection, viper.GetString("audit.redis.stream")), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
	}
}

// location returns the path of "scheme:path" and "scheme://path" style connection strings.
func location(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}

	return u.Host + u.Path
}

func disconnected(err error) error {
	return fmt.Errorf("%w: %v", ErrDisconnected, err)
}
