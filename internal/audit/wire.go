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
	"github.com/google/wire"

	"github.com/lukasdietrich/briefrelay/internal/relay"
)

// WireSet provides the audit recorder and the store behind it.
var WireSet = wire.NewSet(
	OpenStore,
	NewMetrics,
	NewConnectionManager,
	NewRecorder,
	wire.Bind(new(relay.Recorder), new(*Recorder)),
)
