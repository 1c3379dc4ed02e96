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
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

func TestLogContextTestSuite(t *testing.T) {
	suite.Run(t, new(LogContextTestSuite))
}

type LogContextTestSuite struct {
	capturingSuite
}

func (s *LogContextTestSuite) TestWithOrigin() {
	ctx := WithOrigin(context.TODO(), "origin1")
	InfoContext(ctx).Msg("TestWithOrigin")

	s.assertMsg("{\"level\":\"info\",\"origin\":\"origin1\",\"message\":\"TestWithOrigin\"}\n")
}

func (s *LogContextTestSuite) TestWithState() {
	ctx := WithState(context.TODO(), "connecting")
	InfoContext(ctx).Msg("TestWithState")

	s.assertMsg("{\"level\":\"info\",\"state\":\"connecting\",\"message\":\"TestWithState\"}\n")
}

func (s *LogContextTestSuite) TestWithSession() {
	ctx := WithSession(context.TODO(), "abc123")
	InfoContext(ctx).Msg("TestWithSession")

	s.assertMsg("{\"level\":\"info\",\"session\":\"abc123\",\"message\":\"TestWithSession\"}\n")
}

func (s *LogContextTestSuite) TestWithAll() {
	ctx := context.TODO()
	ctx = WithOrigin(ctx, "origin2")
	ctx = WithState(ctx, "sending")
	ctx = WithSession(ctx, "def456")
	InfoContext(ctx).Msg("TestWithAll")

	s.assertMsg("{\"level\":\"info\"," +
		"\"session\":\"def456\",\"origin\":\"origin2\",\"state\":\"sending\"," +
		"\"message\":\"TestWithAll\"}\n")
}
