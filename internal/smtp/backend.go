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
	"crypto/tls"
	"fmt"
	"net"

	"github.com/benbjohnson/clock"
	"github.com/emersion/go-smtp"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefrelay/internal/crypto"
	"github.com/lukasdietrich/briefrelay/internal/log"
	"github.com/lukasdietrich/briefrelay/internal/models"
	"github.com/lukasdietrich/briefrelay/internal/relay"
)

func init() {
	viper.SetDefault("smtp.auth.enable", false)
}

// Relayer forwards a single message.
type Relayer interface {
	Relay(ctx context.Context, session *models.SessionSnapshot, body relay.BodyStream) (relay.Outcome, error)
}

// Resolver finds the hostname of a client.
type Resolver interface {
	LookupAddr(ctx context.Context, ip string) (string, error)
}

// connState is the part of smtp.Conn describing the client. It changes with a new greeting or
// STARTTLS.
type connState interface {
	Hostname() string
	TLSConnectionState() (tls.ConnectionState, bool)
}

// Backend creates a session for every client greeting the server.
type Backend struct {
	relayer     Relayer
	resolver    Resolver
	idGenerator crypto.IDGenerator
	clock       clock.Clock
	authEnabled bool
}

// NewBackend creates a new backend.
//
// `smtp.auth.enable` advertises AUTH PLAIN. Credentials are accepted without verification and
// only the user name is kept for the audit record.
func NewBackend(relayer Relayer, resolver Resolver, idGenerator crypto.IDGenerator, clock clock.Clock) *Backend {
	return &Backend{
		relayer:     relayer,
		resolver:    resolver,
		idGenerator: idGenerator,
		clock:       clock,
		authEnabled: viper.GetBool("smtp.auth.enable"),
	}
}

// NewSession implements smtp.Backend.
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	s, err := b.newSession(c.Conn().RemoteAddr(), c)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (b *Backend) newSession(remoteAddr net.Addr, conn connState) (*session, error) {
	id, err := b.idGenerator.GenerateID()
	if err != nil {
		return nil, fmt.Errorf("could not generate session id: %w", err)
	}

	ctx := log.WithOrigin(log.WithSession(context.Background(), id), "smtp")
	ip := remoteIP(remoteAddr)

	s := session{
		ctx:     ctx,
		backend: b,
		conn:    conn,
		state: models.SessionSnapshot{
			ID:             id,
			OpenedAt:       b.clock.Now(),
			RemoteAddress:  ip,
			ClientHostname: b.lookupHostname(ctx, ip),
		},
	}

	s.refresh()

	log.InfoContext(ctx).
		Str("remote", ip).
		Str("hostname", s.state.ClientHostname).
		Str("helo", s.state.HeloName).
		Bool("tls", s.state.TLS).
		Msg("starting session")

	return &s, nil
}

func (b *Backend) lookupHostname(ctx context.Context, ip string) string {
	if b.resolver == nil || ip == "" {
		return ""
	}

	hostname, err := b.resolver.LookupAddr(ctx, ip)
	if err != nil {
		log.DebugContext(ctx).Err(err).Str("ip", ip).Msg("could not resolve client hostname")
		return ""
	}

	return hostname
}

// remoteIP returns the ip of a tcp address or the plain string of other addresses.
func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}

	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.IP.String()
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}

	return host
}
