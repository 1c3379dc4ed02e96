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
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/lukasdietrich/briefrelay/internal/log"
	"github.com/lukasdietrich/briefrelay/internal/models"
)

// fileStore appends one json document per line.
type fileStore struct {
	fs       afero.Fs
	filename string

	mu   sync.Mutex
	file afero.File
}

func newFileStore(fs afero.Fs, filename string) *fileStore {
	return &fileStore{
		fs:       fs,
		filename: filename,
	}
}

func (s *fileStore) Connect(ctx context.Context) error {
	log.InfoContext(ctx).
		Str("filename", s.filename).
		Msg("opening audit file")

	if err := s.fs.MkdirAll(filepath.Dir(s.filename), 0700); err != nil {
		return err
	}

	file, err := s.fs.OpenFile(s.filename, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		s.file.Close()
	}

	s.file = file
	return nil
}

func (s *fileStore) Save(ctx context.Context, record *models.AuditRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrNotConnected
	}

	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return disconnected(err)
	}

	return nil
}

// Ping checks that the file still exists, so a removed file is reopened by a reconnect.
func (s *fileStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrNotConnected
	}

	if _, err := s.fs.Stat(s.filename); err != nil {
		return disconnected(err)
	}

	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	err := s.file.Close()
	s.file = nil
	return err
}
