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

package log

import (
	"bufio"
	"bytes"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

// capturingSuite routes the global logger into a buffer for the duration of a test.
type capturingSuite struct {
	suite.Suite

	buffer bytes.Buffer
	saved  zerolog.Logger
}

func (s *capturingSuite) SetupTest() {
	s.saved = Logger
	s.buffer.Reset()
	Logger = zerolog.New(&s.buffer).Level(zerolog.TraceLevel)
}

func (s *capturingSuite) TearDownTest() {
	Logger = s.saved
}

func (s *capturingSuite) assertMsg(expected string) {
	s.Assert().Equal(expected, s.buffer.String())
}

// entries decodes every line written so far.
func (s *capturingSuite) entries() []map[string]string {
	var entries []map[string]string

	scanner := bufio.NewScanner(&s.buffer)
	for scanner.Scan() {
		var entry map[string]string
		s.Require().NoError(json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}

	s.Require().NoError(scanner.Err())
	return entries
}
