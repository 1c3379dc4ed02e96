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
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefrelay/internal/log"
)

// ReconnectDelay is the time between losing the connection to the store and the next attempt to
// connect.
const ReconnectDelay = 10 * time.Second

// ConnectionState is the state of the connection to the store.
type ConnectionState uint

const (
	StateDisconnected ConnectionState = iota
	StateReconnecting
	StateConnected
)

func (s ConnectionState) String() string {
	return [...]string{
		"disconnected",
		"reconnecting",
		"connected",
	}[s]
}

// ConnectionManager keeps the connection to the store alive. After the connection is lost,
// exactly one reconnect is scheduled, repeated until it succeeds.
type ConnectionManager struct {
	store     Store
	clock     clock.Clock
	metrics   *Metrics
	timeout   time.Duration
	heartbeat time.Duration

	mu     sync.Mutex
	state  ConnectionState
	timer  *clock.Timer
	closed bool
	done   chan struct{}
}

// NewConnectionManager creates a new connection manager using configuration from viper.
//
// `audit.timeout` limits every single store operation.
// `audit.heartbeat` is the interval in which the connection is checked. Zero disables the check.
func NewConnectionManager(store Store, clock clock.Clock, metrics *Metrics) *ConnectionManager {
	return &ConnectionManager{
		store:     store,
		clock:     clock,
		metrics:   metrics,
		timeout:   viper.GetDuration("audit.timeout"),
		heartbeat: viper.GetDuration("audit.heartbeat"),
		done:      make(chan struct{}),
	}
}

// Start connects to the store once. If that fails, a reconnect is scheduled. Start does not
// return an error, because the relay keeps working without its audit store.
func (m *ConnectionManager) Start(ctx context.Context) {
	err := m.connect(ctx)

	m.mu.Lock()
	if err != nil {
		log.WarnContext(ctx).
			Err(err).
			Dur("retry", ReconnectDelay).
			Msg("could not connect to audit store")

		m.setState(StateDisconnected)
		m.schedule()
	} else {
		log.InfoContext(ctx).Msg("connected to audit store")
		m.setState(StateConnected)
	}
	m.mu.Unlock()

	if m.heartbeat > 0 {
		go m.watch(m.clock.Ticker(m.heartbeat))
	}
}

// Connected reports whether records can be saved.
func (m *ConnectionManager) Connected() bool {
	return m.State() == StateConnected
}

// State returns the current state of the connection.
func (m *ConnectionManager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Disconnected reports a lost connection. Unless a reconnect is already pending, one is scheduled.
func (m *ConnectionManager) Disconnected(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.state != StateConnected {
		return
	}

	log.Warn().
		Err(err).
		Dur("retry", ReconnectDelay).
		Msg("audit store disconnected")

	m.setState(StateDisconnected)
	m.schedule()
}

// Close stops reconnecting and closes the store.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return nil
	}

	m.closed = true
	close(m.done)

	if m.timer != nil {
		m.timer.Stop()
	}

	m.setState(StateDisconnected)
	m.mu.Unlock()

	return m.store.Close()
}

// schedule must be called while holding the lock.
func (m *ConnectionManager) schedule() {
	m.timer = m.clock.AfterFunc(ReconnectDelay, m.reconnect)
}

// setState must be called while holding the lock.
func (m *ConnectionManager) setState(state ConnectionState) {
	m.state = state

	if state == StateConnected {
		m.metrics.connected.Set(1)
	} else {
		m.metrics.connected.Set(0)
	}
}

func (m *ConnectionManager) reconnect() {
	m.mu.Lock()

	if m.closed || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}

	m.setState(StateReconnecting)
	m.mu.Unlock()

	m.metrics.reconnects.Inc()
	err := m.connect(context.Background())

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		if err == nil {
			m.store.Close()
		}

		return
	}

	if err != nil {
		log.Warn().
			Err(err).
			Dur("retry", ReconnectDelay).
			Msg("could not reconnect to audit store")

		m.setState(StateDisconnected)
		m.schedule()
		return
	}

	log.Info().Msg("reconnected to audit store")
	m.setState(StateConnected)
}

func (m *ConnectionManager) connect(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	return m.store.Connect(ctx)
}

func (m *ConnectionManager) watch(ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return

		case <-ticker.C:
			m.ping()
		}
	}
}

func (m *ConnectionManager) ping() {
	if !m.Connected() {
		return
	}

	ctx, cancel := m.withTimeout(context.Background())
	defer cancel()

	if err := m.store.Ping(ctx); err != nil {
		m.Disconnected(err)
	}
}

func (m *ConnectionManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(ctx, m.timeout)
	}

	return context.WithCancel(ctx)
}
