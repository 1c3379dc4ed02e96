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
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefrelay/internal/log"
	"github.com/lukasdietrich/briefrelay/internal/models"
)

// Recorder writes audit records without making the caller wait for the store. Records are never
// queued: while the store is disconnected, they are dropped.
type Recorder struct {
	store      Store
	connection *ConnectionManager
	clock      clock.Clock
	metrics    *Metrics
	timeout    time.Duration

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// NewRecorder creates a new recorder using configuration from viper.
//
// `audit.timeout` limits the time a single record may take to be saved.
func NewRecorder(store Store, connection *ConnectionManager, clock clock.Clock, metrics *Metrics) *Recorder {
	return &Recorder{
		store:      store,
		connection: connection,
		clock:      clock,
		metrics:    metrics,
		timeout:    viper.GetDuration("audit.timeout"),
	}
}

// Record issues the write of a record and returns immediately. Failures are logged only.
func (r *Recorder) Record(ctx context.Context, record *models.AuditRecord) {
	if record.Added.IsZero() {
		record.Added = r.clock.Now()
	}

	if err := record.Validate(); err != nil {
		log.ErrorContext(ctx).Err(err).Msg("refusing to save audit record")
		r.metrics.records.WithLabelValues(resultInvalid).Inc()
		return
	}

	if !r.connection.Connected() {
		log.WarnContext(ctx).
			Stringer("connection", r.connection.State()).
			Msg("audit store unavailable, record is lost")

		r.metrics.records.WithLabelValues(resultDropped).Inc()
		return
	}

	// the write outlives the inbound session
	ctx = context.WithoutCancel(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		log.WarnContext(ctx).Msg("recorder is closed, record is lost")
		r.metrics.records.WithLabelValues(resultDropped).Inc()
		return
	}

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		r.save(ctx, record)
	}()
}

func (r *Recorder) save(ctx context.Context, record *models.AuditRecord) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.store.Save(ctx, record); err != nil {
		log.ErrorContext(ctx).Err(err).Msg("could not save audit record")
		r.metrics.records.WithLabelValues(resultFailed).Inc()

		if errors.Is(err, ErrDisconnected) {
			r.connection.Disconnected(err)
		}

		return
	}

	log.DebugContext(ctx).Msg("audit record saved")
	r.metrics.records.WithLabelValues(resultSaved).Inc()
}

// Wait blocks until all issued writes are finished.
func (r *Recorder) Wait() {
	r.pending.Wait()
}

// Close refuses further records and waits for the issued writes, so the store can be closed
// afterwards.
func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.pending.Wait()
}
