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
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/emersion/go-smtp"
	"github.com/spf13/viper"
	"golang.org/x/net/netutil"

	"github.com/lukasdietrich/briefrelay/internal/log"
)

func init() {
	viper.SetDefault("smtp.listen.host", "")
	viper.SetDefault("smtp.listen.port", 2525)
	viper.SetDefault("smtp.timeout.read", "5m")
	viper.SetDefault("smtp.timeout.write", "5m")
	viper.SetDefault("smtp.maxrecipients", 100)
	viper.SetDefault("smtp.maxconnections", 100)
}

// Server accepts inbound smtp connections.
type Server struct {
	addr           string
	maxConnections int
	server         *smtp.Server
	closed         atomic.Bool

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer creates a new server. STARTTLS is offered if tlsConfig is not nil.
//
// `smtp.listen.host` and `smtp.listen.port` are the listen address.
// `smtp.hostname` is the name announced in the greeting.
// `smtp.sizelimit` is the maximum size of a message body.
// `smtp.timeout.read` and `smtp.timeout.write` limit every network operation.
// `smtp.maxrecipients` limits the recipients of a single transaction.
// `smtp.maxconnections` limits concurrent connections (0 for no limit).
func NewServer(backend *Backend, tlsConfig *tls.Config) *Server {
	server := smtp.NewServer(backend)
	server.Domain = viper.GetString("smtp.hostname")
	server.MaxMessageBytes = int64(viper.GetSizeInBytes("smtp.sizelimit"))
	server.MaxRecipients = viper.GetInt("smtp.maxrecipients")
	server.ReadTimeout = viper.GetDuration("smtp.timeout.read")
	server.WriteTimeout = viper.GetDuration("smtp.timeout.write")
	server.EnableSMTPUTF8 = true
	server.TLSConfig = tlsConfig
	server.AllowInsecureAuth = tlsConfig == nil
	server.ErrorLog = errorLog{}

	return &Server{
		addr: net.JoinHostPort(
			viper.GetString("smtp.listen.host"),
			strconv.Itoa(viper.GetInt("smtp.listen.port")),
		),
		maxConnections: viper.GetInt("smtp.maxconnections"),
		server:         server,
		conns:          make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on the configured address and serves connections until Close is
// called.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", s.addr, err)
	}

	return s.Serve(l)
}

// Serve serves connections accepted by l until Close is called.
func (s *Server) Serve(l net.Listener) error {
	if s.maxConnections > 0 {
		l = netutil.LimitListener(l, s.maxConnections)
	}

	l = &trackingListener{Listener: l, server: s}

	log.Info().
		Str("addr", l.Addr().String()).
		Int("maxConnections", s.maxConnections).
		Msg("smtp server listening")

	if err := s.server.Serve(l); err != nil && !s.closed.Load() {
		return err
	}

	return nil
}

// Close stops the listener and closes all open connections.
func (s *Server) Close() error {
	s.closed.Store(true)
	return s.server.Close()
}

// Shutdown stops the listener and waits for open connections to end, so every transaction in
// progress is relayed and recorded. Connections still open when ctx is done are cut.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closed.Store(true)

	err := s.server.Shutdown(ctx)
	if ctx.Err() != nil {
		log.Warn().
			Int("connections", s.cut()).
			Msg("smtp server did not shut down in time, connections are cut")
	}

	return err
}

// cut closes all connections and returns how many were open.
func (s *Server) cut() int {
	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}

	return len(conns)
}

func (s *Server) track(conn net.Conn, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if open {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// trackingListener registers accepted connections with the server until they are closed.
type trackingListener struct {
	net.Listener
	server *Server
}

func (l *trackingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	tracked := &trackedConn{Conn: conn, server: l.server}
	l.server.track(tracked, true)

	return tracked, nil
}

type trackedConn struct {
	net.Conn
	server *Server
	once   sync.Once
}

func (c *trackedConn) Close() error {
	c.once.Do(func() {
		c.server.track(c, false)
	})

	return c.Conn.Close()
}

// errorLog writes errors of the smtp server to the log.
type errorLog struct{}

func (errorLog) Printf(format string, v ...interface{}) {
	log.Warn().Str("origin", "smtp").Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (errorLog) Println(v ...interface{}) {
	log.Warn().Str("origin", "smtp").Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}
