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
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/lukasdietrich/briefrelay/internal/log"
	"github.com/lukasdietrich/briefrelay/internal/models"
)

const (
	mongoDefaultDatabase = "briefrelay"
	mongoCollection      = "emails"
)

type mongoStore struct {
	uri string

	mu         sync.RWMutex
	client     *mongo.Client
	collection *mongo.Collection
}

func newMongoStore(uri string) *mongoStore {
	return &mongoStore{uri: uri}
}

// database returns the database named in the connection string.
func (s *mongoStore) database() (string, error) {
	cs, err := connstring.ParseAndValidate(s.uri)
	if err != nil {
		return "", err
	}

	if cs.Database == "" {
		return mongoDefaultDatabase, nil
	}

	return cs.Database, nil
}

func (s *mongoStore) Connect(ctx context.Context) error {
	database, err := s.database()
	if err != nil {
		return err
	}

	log.InfoContext(ctx).
		Str("database", database).
		Str("collection", mongoCollection).
		Msg("connecting to mongodb")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Disconnect(context.Background())
	}

	s.client = client
	s.collection = client.Database(database).Collection(mongoCollection)
	return nil
}

func (s *mongoStore) Save(ctx context.Context, record *models.AuditRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.collection == nil {
		return ErrNotConnected
	}

	if _, err := s.collection.InsertOne(ctx, record); err != nil {
		if isMongoUnavailable(err) {
			return disconnected(err)
		}

		return err
	}

	return nil
}

func (s *mongoStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.client == nil {
		return ErrNotConnected
	}

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return disconnected(err)
	}

	return nil
}

func (s *mongoStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}

	err := s.client.Disconnect(context.Background())
	s.client = nil
	s.collection = nil
	return err
}

func isMongoUnavailable(err error) bool {
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected)
}
