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
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type baseAuditTestSuite struct {
	suite.Suite

	ctx     context.Context
	store   *MockStore
	clock   *clock.Mock
	metrics *Metrics
	manager *ConnectionManager
}

func (s *baseAuditTestSuite) SetupTest() {
	viper.Set("audit.timeout", time.Second)
	viper.Set("audit.heartbeat", time.Duration(0))

	s.ctx = context.TODO()
	s.store = new(MockStore)
	s.clock = clock.NewMock()
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.manager = NewConnectionManager(s.store, s.clock, s.metrics)

	s.store.On("Close").Return(nil).Maybe()
}

func (s *baseAuditTestSuite) TearDownTest() {
	s.Require().NoError(s.manager.Close())
	mock.AssertExpectationsForObjects(s.T(), s.store)
}

func (s *baseAuditTestSuite) startConnected() {
	s.store.On("Connect", mock.Anything).Return(nil).Once()
	s.manager.Start(s.ctx)
	s.Require().True(s.manager.Connected())
}

func (s *baseAuditTestSuite) eventuallyInState(expected ConnectionState) {
	s.Eventually(func() bool {
		return s.manager.State() == expected
	}, time.Second, 5*time.Millisecond, "state %v", expected)
}

var errGone = errors.New("connection reset by peer")
