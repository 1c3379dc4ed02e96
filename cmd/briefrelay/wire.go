//go:build wireinject
// +build wireinject

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


package main

import (
	"github.com/benbjohnson/clock"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lukasdietrich/briefrelay/internal/audit"
	"github.com/lukasdietrich/briefrelay/internal/certs"
	"github.com/lukasdietrich/briefrelay/internal/crypto"
	"github.com/lukasdietrich/briefrelay/internal/dns"
	"github.com/lukasdietrich/briefrelay/internal/relay"
	"github.com/lukasdietrich/briefrelay/internal/smtp"
	"github.com/lukasdietrich/briefrelay/internal/status"
)

var wireSet = wire.NewSet(
	wire.Struct(new(startCommand), "*"),

	clock.New,
	newRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	wire.Bind(new(prometheus.Gatherer), new(*prometheus.Registry)),

	crypto.NewIDGenerator,
	dns.NewResolver,
	certs.NewTLSConfig,

	relay.WireSet,
	audit.WireSet,
	smtp.WireSet,
	status.WireSet,
)

func newStartCommand() (*startCommand, error) {
	panic(wire.Build(wireSet))
}
