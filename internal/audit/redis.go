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
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/lukasdietrich/briefrelay/internal/log"
	"github.com/lukasdietrich/briefrelay/internal/models"
)

type redisStore struct {
	url    string
	stream string

	mu     sync.RWMutex
	client *redis.Client
}

func newRedisStore(url, stream string) *redisStore {
	return &redisStore{
		url:    url,
		stream: stream,
	}
}

func (s *redisStore) Connect(ctx context.Context) error {
	opts, err := redis.ParseURL(s.url)
	if err != nil {
		return err
	}

	log.InfoContext(ctx).
		Str("address", opts.Addr).
		Int("db", opts.DB).
		Str("stream", s.stream).
		Msg("connecting to redis")

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Close()
	}

	s.client = client
	return nil
}

// Save appends the record to the stream. The whole record is kept as json in the "record" field,
// the session id is duplicated for filtering.
func (s *redisStore) Save(ctx context.Context, record *models.AuditRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.client == nil {
		return ErrNotConnected
	}

	args := redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"session": record.SessionID,
			"record":  payload,
		},
	}

	if err := s.client.XAdd(ctx, &args).Err(); err != nil {
		if isRedisUnavailable(err) {
			return disconnected(err)
		}

		return err
	}

	return nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.client == nil {
		return ErrNotConnected
	}

	if err := s.client.Ping(ctx).Err(); err != nil {
		return disconnected(err)
	}

	return nil
}

func (s *redisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}

	err := s.client.Close()
	s.client = nil
	return err
}

func isRedisUnavailable(err error) bool {
	var netErr net.Error
	return errors.Is(err, redis.ErrClosed) || errors.As(err, &netErr)
}
