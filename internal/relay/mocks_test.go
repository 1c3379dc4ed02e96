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

package relay

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/lukasdietrich/briefrelay/internal/models"
)

// MockDialer is a mock type for the Dialer type
type MockDialer struct {
	mock.Mock
}

// Connect provides a mock function with given fields: ctx
func (_m *MockDialer) Connect(ctx context.Context) (UpstreamConn, error) {
	ret := _m.Called(ctx)

	var r0 UpstreamConn
	if rf, ok := ret.Get(0).(func(context.Context) UpstreamConn); ok {
		r0 = rf(ctx)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(UpstreamConn)
	}

	return r0, ret.Error(1)
}

// MockUpstreamConn is a mock type for the UpstreamConn type
type MockUpstreamConn struct {
	mock.Mock
}

// Send provides a mock function with given fields: ctx, from, to, stream
func (_m *MockUpstreamConn) Send(ctx context.Context, from models.Address, to []models.Address, stream io.Reader) (*models.DeliveryInfo, error) {
	ret := _m.Called(ctx, from, to, stream)

	if rf, ok := ret.Get(0).(func(context.Context, models.Address, []models.Address, io.Reader) (*models.DeliveryInfo, error)); ok {
		return rf(ctx, from, to, stream)
	}

	var r0 *models.DeliveryInfo
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.DeliveryInfo)
	}

	return r0, ret.Error(1)
}

// Quit provides a mock function with given fields:
func (_m *MockUpstreamConn) Quit() error {
	ret := _m.Called()
	return ret.Error(0)
}

// MockRecorder is a mock type for the Recorder type
type MockRecorder struct {
	mock.Mock
}

// Record provides a mock function with given fields: ctx, record
func (_m *MockRecorder) Record(ctx context.Context, record *models.AuditRecord) {
	_m.Called(ctx, record)
}
