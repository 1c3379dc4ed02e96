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


package smtp

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lukasdietrich/briefrelay/internal/models"
	"github.com/lukasdietrich/briefrelay/internal/relay"
)

// MockRelayer is a mock type for the Relayer type
type MockRelayer struct {
	mock.Mock
}

// Relay provides a mock function with given fields: ctx, session, body
func (_m *MockRelayer) Relay(ctx context.Context, session *models.SessionSnapshot, body relay.BodyStream) (relay.Outcome, error) {
	ret := _m.Called(ctx, session, body)

	if rf, ok := ret.Get(0).(func(context.Context, *models.SessionSnapshot, relay.BodyStream) (relay.Outcome, error)); ok {
		return rf(ctx, session, body)
	}

	return ret.Get(0).(relay.Outcome), ret.Error(1)
}

// MockResolver is a mock type for the Resolver type
type MockResolver struct {
	mock.Mock
}

// LookupAddr provides a mock function with given fields: ctx, ip
func (_m *MockResolver) LookupAddr(ctx context.Context, ip string) (string, error) {
	ret := _m.Called(ctx, ip)
	return ret.String(0), ret.Error(1)
}

// MockIDGenerator is a mock type for the IDGenerator type
type MockIDGenerator struct {
	mock.Mock
}

// GenerateID provides a mock function with given fields:
func (_m *MockIDGenerator) GenerateID() (string, error) {
	ret := _m.Called()
	return ret.String(0), ret.Error(1)
}
