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
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefrelay/internal/log"
	"github.com/lukasdietrich/briefrelay/internal/models"
)

func init() {
	viper.SetDefault("smtp.hostname", "localhost")
	viper.SetDefault("smtp.banner", "briefrelay")
	viper.SetDefault("smtp.sizelimit", "50mb")
}

// Recorder persists the audit record of an attempt. Record must not block on the store.
type Recorder interface {
	Record(ctx context.Context, record *models.AuditRecord)
}

// Options configure the orchestrator.
type Options struct {
	LocalName string
	Banner    string
	SizeLimit int64
}

// OptionsFromViper reads the orchestrator options.
//
// `smtp.hostname` is the name of this relay in trace headers.
// `smtp.banner` is the product name in trace headers.
// `smtp.sizelimit` is the maximum size of a message body.
func OptionsFromViper() Options {
	return Options{
		LocalName: viper.GetString("smtp.hostname"),
		Banner:    viper.GetString("smtp.banner"),
		SizeLimit: int64(viper.GetSizeInBytes("smtp.sizelimit")),
	}
}

// Outcome is the terminal result of an attempt. Err is nil exactly if State is StateCompleted.
type Outcome struct {
	State State
	Info  *models.DeliveryInfo
	Err   *Error
}

// Orchestrator relays inbound messages to the upstream server.
type Orchestrator struct {
	options  Options
	dialer   Dialer
	recorder Recorder
	metrics  *Metrics
	clock    clock.Clock
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(options Options, dialer Dialer, recorder Recorder, metrics *Metrics, clock clock.Clock) *Orchestrator {
	return &Orchestrator{
		options:  options,
		dialer:   dialer,
		recorder: recorder,
		metrics:  metrics,
		clock:    clock,
	}
}

// SizeLimit returns the maximum size of a message body.
func (o *Orchestrator) SizeLimit() int64 {
	return o.options.SizeLimit
}

// Relay forwards the body of a session to the upstream server and returns once the attempt
// reached a terminal state and its audit record was issued. The body is consumed completely in
// every case. An error is returned only if the session does not describe a valid envelope, in
// which case nothing is recorded.
func (o *Orchestrator) Relay(ctx context.Context, session *models.SessionSnapshot, body BodyStream) (Outcome, error) {
	envelope, err := models.NewEnvelope(session)
	if err != nil {
		return Outcome{}, err
	}

	o.metrics.inflight.Inc()
	defer o.metrics.inflight.Dec()

	a := attempt{
		ctx:     log.WithState(ctx, StateReceiving.String()),
		state:   StateReceiving,
		record:  models.NewAuditRecord(envelope, session),
		started: o.clock.Now(),
	}

	log.DebugContext(a.ctx).
		Str("from", envelope.MailFrom.String()).
		Strs("to", envelope.RecipientStrings()).
		Msg("relaying message")

	buf := OpenBuffer(TraceHeader(TraceInfo{
		HeloName:       envelope.HeloName,
		ClientHostname: envelope.ClientHostname,
		RemoteAddress:  envelope.RemoteAddress,
		LocalName:      o.options.LocalName,
		Banner:         o.options.Banner,
		SessionID:      envelope.SessionID,
	}, a.started))

	// nothing is dialed before the first chunk arrived, so a body rejected right away never
	// reaches the upstream.
	gated := readFirstChunk(body)
	a.fire(eventReceived)

	if body.SizeExceeded() {
		return o.fail(&a, eventSizeExceeded, sizeError(o.options.SizeLimit, ErrSizeExceeded)), nil
	}

	a.fire(eventSizeAccepted)
	p := startPump(buf, gated)

	conn, err := o.connect(a.ctx, p)
	if errors.Is(err, ErrSizeExceeded) {
		o.metrics.size.Observe(float64(p.size))
		return o.fail(&a, eventSizeExceeded, sizeError(o.options.SizeLimit, err)), nil
	}

	if err != nil {
		buf.Abandon()
		p.wait()
		o.metrics.size.Observe(float64(p.size))

		return o.fail(&a, eventConnectFailed, connectError(err)), nil
	}

	a.fire(eventConnected)

	info, err := conn.Send(a.ctx, envelope.MailFrom, envelope.Recipients, buf.Reader())
	buf.Abandon()
	pumpErr := p.wait()
	o.metrics.size.Observe(float64(p.size))

	if err := conn.Quit(); err != nil {
		log.DebugContext(a.ctx).Err(err).Msg("could not quit upstream session")
	}

	switch {
	case errors.Is(pumpErr, ErrSizeExceeded):
		return o.fail(&a, eventSizeExceeded, sizeError(o.options.SizeLimit, pumpErr)), nil

	case err != nil:
		return o.fail(&a, eventSendFailed, sendError(err)), nil

	default:
		return o.succeed(&a, info), nil
	}
}

type connectResult struct {
	conn UpstreamConn
	err  error
}

// connect dials the upstream while the pump keeps receiving. If the client exceeds the size
// limit first, the attempt to connect is abandoned and ErrSizeExceeded returned.
func (o *Orchestrator) connect(ctx context.Context, p *pump) (UpstreamConn, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	connected := make(chan connectResult, 1)

	go func() {
		conn, err := o.dialer.Connect(ctx)
		connected <- connectResult{conn, err}
	}()

	select {
	case result := <-connected:
		return result.conn, result.err

	case <-p.done:
		if errors.Is(p.err, ErrSizeExceeded) {
			go quitLate(ctx, connected)
			return nil, p.err
		}

		result := <-connected
		return result.conn, result.err
	}
}

// quitLate ends a session that was established after its attempt was already given up.
func quitLate(ctx context.Context, connected <-chan connectResult) {
	if result := <-connected; result.err == nil {
		if err := result.conn.Quit(); err != nil {
			log.DebugContext(ctx).Err(err).Msg("could not quit abandoned upstream session")
		}
	}
}

func (o *Orchestrator) fail(a *attempt, e event, err *Error) Outcome {
	a.fire(e)
	a.record.Fail(err.Text)

	log.WarnContext(a.ctx).
		Err(err.Cause).
		Int("code", err.Code).
		Stringer("kind", err.Kind).
		Msg(err.Text)

	o.finish(a)
	return Outcome{State: a.state, Err: err}
}

func (o *Orchestrator) succeed(a *attempt, info *models.DeliveryInfo) Outcome {
	a.fire(eventSent)
	a.record.Succeed(info)

	log.InfoContext(a.ctx).
		Strs("accepted", info.Accepted).
		Strs("rejected", info.Rejected).
		Msgf("Message relayed to upstream: %s", info.Response)

	o.finish(a)
	return Outcome{State: a.state, Info: info}
}

// finish issues the audit record of a terminal attempt.
func (o *Orchestrator) finish(a *attempt) {
	o.metrics.outcomes.WithLabelValues(a.state.String()).Inc()
	o.metrics.duration.Observe(o.clock.Since(a.started).Seconds())
	o.recorder.Record(a.ctx, a.record)
}

// attempt tracks the state of a single relay attempt.
type attempt struct {
	ctx     context.Context
	state   State
	record  *models.AuditRecord
	started time.Time
}

func (a *attempt) fire(e event) {
	next, err := transition(a.state, e)
	if err != nil {
		log.ErrorContext(a.ctx).Err(err).Msg("ignoring event")
		return
	}

	log.TraceContext(a.ctx).
		Stringer("event", e).
		Stringer("next", next).
		Msg("state transition")

	a.state = next
	a.ctx = log.WithState(a.ctx, next.String())
}

// gatedBody replays the first chunk of a body, which was read before anything else happened.
type gatedBody struct {
	BodyStream
	head []byte
	err  error
}

func readFirstChunk(body BodyStream) *gatedBody {
	head := make([]byte, chunkSize)

	for {
		n, err := body.Read(head)
		if n > 0 || err != nil {
			return &gatedBody{BodyStream: body, head: head[:n], err: err}
		}
	}
}

func (g *gatedBody) Read(b []byte) (int, error) {
	if len(g.head) > 0 {
		n := copy(b, g.head)
		g.head = g.head[n:]
		return n, nil
	}

	if g.err != nil {
		return 0, g.err
	}

	return g.BodyStream.Read(b)
}

// pump fills a buffer in the background.
type pump struct {
	done chan struct{}
	size int64
	err  error
}

func startPump(buf *Buffer, body BodyStream) *pump {
	p := pump{done: make(chan struct{})}

	go func() {
		defer close(p.done)
		p.size, p.err = buf.Fill(body)
	}()

	return &p
}

// wait blocks until the body was consumed completely.
func (p *pump) wait() error {
	<-p.done
	return p.err
}
