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

	"github.com/stretchr/testify/mock"

	"github.com/lukasdietrich/briefrelay/internal/models"
)

// MockStore is a mock type for the Store type
type MockStore struct {
	mock.Mock
}

// Connect provides a mock function with given fields: ctx
func (_m *MockStore) Connect(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

// Save provides a mock function with given fields: ctx, record
func (_m *MockStore) Save(ctx context.Context, record *models.AuditRecord) error {
	ret := _m.Called(ctx, record)
	return ret.Error(0)
}

// Ping provides a mock function with given fields: ctx
func (_m *MockStore) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

// Close provides a mock function with given fields:
func (_m *MockStore) Close() error {
	ret := _m.Called()
	return ret.Error(0)
}
