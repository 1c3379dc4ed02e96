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
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/sony/gobreaker"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefrelay/internal/log"
	"github.com/lukasdietrich/briefrelay/internal/models"
)

func init() {
	viper.SetDefault("upstream.host", "localhost")
	viper.SetDefault("upstream.port", 25)
	viper.SetDefault("upstream.ignoretls", false)
	viper.SetDefault("upstream.timeout.connect", "30s")
	viper.SetDefault("upstream.timeout.command", "5m")
	viper.SetDefault("upstream.breaker.enable", false)
	viper.SetDefault("upstream.breaker.failures", 5)
	viper.SetDefault("upstream.breaker.timeout", "1m")
}

var (
	errAllRecipientsRejected = errors.New("relay: upstream rejected all recipients")
	errUnrepresentable       = errors.New("relay: address cannot be represented without SMTPUTF8")
)

// Dialer opens sessions with the upstream server.
type Dialer interface {
	// Connect establishes a session ready for a mail transaction.
	Connect(ctx context.Context) (UpstreamConn, error)
}

// UpstreamConn is an established session with the upstream server.
type UpstreamConn interface {
	// Send transmits one message. The stream is copied until it ends, a read error aborts the
	// transaction without completing the DATA command.
	Send(ctx context.Context, from models.Address, to []models.Address, stream io.Reader) (*models.DeliveryInfo, error)
	// Quit ends the session.
	Quit() error
}

// UpstreamOptions configure the connection to the upstream server.
type UpstreamOptions struct {
	Host           string
	Port           int
	IgnoreTLS      bool
	// TLSConfig is cloned for the STARTTLS upgrade. The server name defaults to Host.
	TLSConfig      *tls.Config
	LocalName      string
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	Breaker        bool
	BreakerLimit   uint32
	BreakerTimeout time.Duration
}

// UpstreamOptionsFromViper reads the upstream options.
//
// `upstream.host` and `upstream.port` are the address of the upstream server.
// `upstream.ignoretls` disables the STARTTLS upgrade.
// `upstream.timeout.connect` limits dialing and the greeting.
// `upstream.timeout.command` limits every single command.
// `upstream.breaker.enable` stops connecting for `upstream.breaker.timeout` after
// `upstream.breaker.failures` consecutive failures.
func UpstreamOptionsFromViper() UpstreamOptions {
	return UpstreamOptions{
		Host:           viper.GetString("upstream.host"),
		Port:           viper.GetInt("upstream.port"),
		IgnoreTLS:      viper.GetBool("upstream.ignoretls"),
		LocalName:      viper.GetString("smtp.hostname"),
		ConnectTimeout: viper.GetDuration("upstream.timeout.connect"),
		CommandTimeout: viper.GetDuration("upstream.timeout.command"),
		Breaker:        viper.GetBool("upstream.breaker.enable"),
		BreakerLimit:   viper.GetUint32("upstream.breaker.failures"),
		BreakerTimeout: viper.GetDuration("upstream.breaker.timeout"),
	}
}

// Address returns the host and port of the upstream server.
func (o UpstreamOptions) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// SMTPDialer connects to the upstream server using SMTP.
type SMTPDialer struct {
	options UpstreamOptions
	dialer  net.Dialer
	breaker *gobreaker.CircuitBreaker
}

// NewDialerWithOptions creates a new dialer.
func NewDialerWithOptions(options UpstreamOptions) *SMTPDialer {
	d := SMTPDialer{
		options: options,
		dialer: net.Dialer{
			Timeout: options.ConnectTimeout,
		},
	}

	if options.Breaker {
		d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    options.Address(),
			Timeout: options.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= options.BreakerLimit
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().
					Str("upstream", name).
					Stringer("from", from).
					Stringer("to", to).
					Msg("upstream circuit breaker changed state")
			},
		})
	}

	return &d
}

// Connect dials the upstream server, upgrades to tls if available and says hello.
func (d *SMTPDialer) Connect(ctx context.Context) (UpstreamConn, error) {
	if d.breaker == nil {
		return d.connect(ctx)
	}

	conn, err := d.breaker.Execute(func() (interface{}, error) {
		return d.connect(ctx)
	})

	if err != nil {
		return nil, err
	}

	return conn.(UpstreamConn), nil
}

func (d *SMTPDialer) connect(ctx context.Context) (*smtpConn, error) {
	if d.options.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.options.ConnectTimeout)
		defer cancel()
	}

	if d.options.IgnoreTLS {
		return d.dial(ctx, false)
	}

	conn, err := d.dial(ctx, true)
	if err != nil && isStartTLSUnsupported(err) {
		log.DebugContext(ctx).
			Str("upstream", d.options.Address()).
			Msg("upstream does not offer starttls, continuing without tls")

		return d.dial(ctx, false)
	}

	return conn, err
}

// dial opens a new session. With startTLS the connection is upgraded before the hello that
// carries the local name.
func (d *SMTPDialer) dial(ctx context.Context, startTLS bool) (*smtpConn, error) {
	address := d.options.Address()

	log.DebugContext(ctx).
		Str("upstream", address).
		Bool("starttls", startTLS).
		Msg("connecting to upstream")

	conn, err := d.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	stop := interruptOnDone(ctx, conn)
	client, err := d.initClient(conn, startTLS)
	interrupted := !stop()

	if err != nil || interrupted {
		if client != nil {
			client.Close()
		} else {
			conn.Close()
		}

		if interrupted {
			return nil, ctx.Err()
		}

		return nil, err
	}

	return &smtpConn{conn: conn, client: client}, nil
}

// initClient creates the client on top of conn and says hello to the server.
func (d *SMTPDialer) initClient(conn net.Conn, startTLS bool) (*smtp.Client, error) {
	var client *smtp.Client

	if startTLS {
		var err error
		if client, err = smtp.NewClientStartTLS(conn, d.tlsConfig()); err != nil {
			return nil, err
		}
	} else {
		client = smtp.NewClient(conn)
	}

	if d.options.CommandTimeout > 0 {
		client.CommandTimeout = d.options.CommandTimeout
		client.SubmissionTimeout = d.options.CommandTimeout
	}

	if err := client.Hello(d.options.LocalName); err != nil {
		return client, err
	}

	return client, nil
}

func (d *SMTPDialer) tlsConfig() *tls.Config {
	config := new(tls.Config)
	if d.options.TLSConfig != nil {
		config = d.options.TLSConfig.Clone()
	}

	if config.ServerName == "" {
		config.ServerName = d.options.Host
	}

	return config
}

// isStartTLSUnsupported tests if the client gave up, because the server does not advertise
// the STARTTLS extension. The client reports this as a plain error.
func isStartTLSUnsupported(err error) bool {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return false
	}

	return strings.Contains(err.Error(), "doesn't support STARTTLS")
}

// interruptOnDone unblocks any pending i/o on conn once ctx is done. The returned function
// reports false if the interruption already happened.
func interruptOnDone(ctx context.Context, conn net.Conn) func() bool {
	return context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
}

type smtpConn struct {
	conn   net.Conn
	client *smtp.Client
	// broken is set when the session cannot be ended gracefully anymore.
	broken bool
}

func (c *smtpConn) Send(ctx context.Context, from models.Address, to []models.Address, stream io.Reader) (*models.DeliveryInfo, error) {
	stop := interruptOnDone(ctx, c.conn)
	defer stop()

	info, err := c.send(ctx, from, to, stream)
	if err != nil && ctx.Err() != nil {
		c.broken = true
		return nil, fmt.Errorf("%w: %v", ctx.Err(), err)
	}

	return info, err
}

func (c *smtpConn) send(ctx context.Context, from models.Address, to []models.Address, stream io.Reader) (*models.DeliveryInfo, error) {
	utf8, _ := c.client.Extension("SMTPUTF8")

	reversePath, err := c.path(from, utf8)
	if err != nil {
		return nil, err
	}

	if err := c.client.Mail(reversePath, &smtp.MailOptions{UTF8: utf8 && !from.IsASCII()}); err != nil {
		return nil, err
	}

	info, err := c.copyRecipients(ctx, to, utf8)
	if err != nil {
		return nil, err
	}

	response, err := c.copyData(stream)
	if err != nil {
		return nil, err
	}

	info.Response = response
	return info, nil
}

// copyRecipients sends the forward-paths. Rejected recipients are collected and only fail the
// transaction if nobody is left.
func (c *smtpConn) copyRecipients(ctx context.Context, to []models.Address, utf8 bool) (*models.DeliveryInfo, error) {
	var info models.DeliveryInfo

	for _, recipient := range to {
		err := c.copyRecipient(recipient, utf8)

		switch {
		case err == nil:
			info.Accepted = append(info.Accepted, recipient.String())

		case isPermanentErr(err), isTransientErr(err), errors.Is(err, errUnrepresentable):
			log.InfoContext(ctx).
				Str("recipient", recipient.String()).
				Bool("permanent", !isTransientErr(err)).
				Err(err).
				Msg("upstream rejected recipient")

			info.Rejected = append(info.Rejected, recipient.String())

		default:
			return nil, err
		}
	}

	if len(info.Accepted) == 0 {
		return nil, errAllRecipientsRejected
	}

	return &info, nil
}

func (c *smtpConn) copyRecipient(recipient models.Address, utf8 bool) error {
	forwardPath, err := c.path(recipient, utf8)
	if err != nil {
		return err
	}

	return c.client.Rcpt(forwardPath, nil)
}

// copyData writes the message content. If the stream fails, the data command is left
// unterminated so the upstream discards the partial message.
func (c *smtpConn) copyData(stream io.Reader) (string, error) {
	w, err := c.client.Data()
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(w, stream); err != nil {
		c.broken = true
		return "", fmt.Errorf("could not stream message: %w", err)
	}

	response, err := w.CloseWithResponse()
	if err != nil {
		return "", err
	}

	return response.StatusText, nil
}

// path returns the address as understood by the upstream. Without SMTPUTF8 the domain is
// converted to its ascii form.
func (c *smtpConn) path(addr models.Address, utf8 bool) (string, error) {
	if utf8 || addr.IsASCII() {
		return addr.String(), nil
	}

	ascii, err := addr.ASCII()
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUnrepresentable, err)
	}

	return ascii.String(), nil
}

func (c *smtpConn) Quit() error {
	if c.broken {
		return c.client.Close()
	}

	if err := c.client.Quit(); err != nil {
		c.client.Close()
		return err
	}

	return nil
}

// isPermanentErr tests if an error is an smtp error and if it has a 5xx code.
func isPermanentErr(err error) bool {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return smtpErr.Code >= 500 && smtpErr.Code < 600
	}

	return false
}

// isTransientErr tests if an error is an smtp error and if it has a 4xx code.
func isTransientErr(err error) bool {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return smtpErr.Code >= 400 && smtpErr.Code < 500
	}

	return false
}
