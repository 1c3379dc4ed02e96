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
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/emersion/go-smtp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/briefrelay/internal/crypto"
	"github.com/lukasdietrich/briefrelay/internal/models"
	"github.com/lukasdietrich/briefrelay/internal/relay"
)

// upstreamBackend is an in-process upstream server collecting every message.
type upstreamBackend struct {
	mu       sync.Mutex
	messages []string
	reply    *smtp.SMTPError
}

func (b *upstreamBackend) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &upstreamSession{backend: b}, nil
}

func (b *upstreamBackend) replyWith(reply *smtp.SMTPError) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reply = reply
}

func (b *upstreamBackend) received() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.messages...)
}

type upstreamSession struct {
	backend *upstreamBackend
}

func (*upstreamSession) Mail(string, *smtp.MailOptions) error { return nil }
func (*upstreamSession) Rcpt(string, *smtp.RcptOptions) error { return nil }
func (*upstreamSession) Reset()                               {}
func (*upstreamSession) Logout() error                        { return nil }

func (s *upstreamSession) Data(r io.Reader) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	s.backend.messages = append(s.backend.messages, string(content))

	if s.backend.reply != nil {
		return s.backend.reply
	}

	return nil
}

// channelRecorder hands every record to the test.
type channelRecorder chan *models.AuditRecord

func (r channelRecorder) Record(_ context.Context, record *models.AuditRecord) {
	r <- record
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

type ServerTestSuite struct {
	suite.Suite

	upstream         *upstreamBackend
	upstreamServer   *smtp.Server
	upstreamListener net.Listener
	records          channelRecorder
	server         *Server
	addr           string
}

func (s *ServerTestSuite) SetupTest() {
	viper.Set("smtp.hostname", "relay.test")
	viper.Set("smtp.sizelimit", "4kb")
	viper.Set("smtp.maxrecipients", 2)
	viper.Set("smtp.maxconnections", 4)

	upstreamListener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)

	s.upstream = new(upstreamBackend)
	s.upstreamServer = smtp.NewServer(s.upstream)
	s.upstreamServer.Domain = "upstream.test"
	s.upstreamListener = upstreamListener

	go s.upstreamServer.Serve(upstreamListener)

	dialer := relay.NewDialerWithOptions(relay.UpstreamOptions{
		Host:           "127.0.0.1",
		Port:           upstreamListener.Addr().(*net.TCPAddr).Port,
		IgnoreTLS:      true,
		LocalName:      "relay.test",
		ConnectTimeout: 5 * time.Second,
		CommandTimeout: 5 * time.Second,
	})

	s.records = make(channelRecorder, 1)
	orchestrator := relay.NewOrchestrator(
		relay.OptionsFromViper(),
		dialer,
		s.records,
		relay.NewMetrics(prometheus.NewRegistry()),
		clock.New(),
	)

	backend := NewBackend(orchestrator, nil, crypto.NewIDGenerator(), clock.New())
	s.server = NewServer(backend, nil)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.addr = listener.Addr().String()

	go s.server.Serve(listener)
}

func (s *ServerTestSuite) TearDownTest() {
	s.server.Close()
	s.upstreamServer.Close()
}

func (s *ServerTestSuite) dial() *smtp.Client {
	c, err := smtp.Dial(s.addr)
	s.Require().NoError(err)
	s.Require().NoError(c.Hello("client.test"))

	return c
}

// send runs a mail transaction and returns the final reply text.
func (s *ServerTestSuite) send(c *smtp.Client, from string, to []string, body string) (string, error) {
	if err := c.Mail(from, nil); err != nil {
		return "", err
	}

	for _, rcpt := range to {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return "", err
		}
	}

	w, err := c.Data()
	if err != nil {
		return "", err
	}

	if _, err := io.WriteString(w, body); err != nil {
		return "", err
	}

	response, err := w.CloseWithResponse()
	if err != nil {
		return "", err
	}

	return response.StatusText, nil
}

func (s *ServerTestSuite) record() *models.AuditRecord {
	select {
	case record := <-s.records:
		return record
	case <-time.After(5 * time.Second):
		s.FailNow("no audit record")
		return nil
	}
}

func (s *ServerTestSuite) requireCode(err error, code int) {
	var smtpErr *smtp.SMTPError
	s.Require().True(errors.As(err, &smtpErr), "%v is not an smtp error", err)
	s.Equal(code, smtpErr.Code)
}

func (s *ServerTestSuite) TestRelay() {
	body := "Subject: Hello\r\n\r\nHi there.\r\n"

	c := s.dial()
	defer c.Close()

	response, err := s.send(c, "sender@example.com", []string{"first@example.org", "second@example.org"}, body)
	s.Require().NoError(err)
	s.Contains(response, "Message relayed to upstream: ")
	s.NoError(c.Quit())

	record := s.record()
	s.Nil(record.Error)
	s.Require().NotNil(record.Response)
	s.Equal([]string{"first@example.org", "second@example.org"}, record.Response.Accepted)
	s.Equal("sender@example.com", record.MailFrom)
	s.Equal("127.0.0.1", record.RemoteAddress)
	s.Equal("client.test", record.Session.HeloName)
	s.Equal(1, record.Session.Transaction)

	messages := s.upstream.received()
	s.Require().Len(messages, 1)

	unfolded := strings.ReplaceAll(messages[0], "\r\n ", " ")
	s.True(strings.HasPrefix(unfolded, "Received: from client.test ([127.0.0.1]) by relay.test (briefrelay) with ESMTP id "+record.SessionID+"; "))
	s.True(strings.HasSuffix(messages[0], "\r\n"+body))
	s.Equal(1, strings.Count(messages[0], "Received:"))
}

func (s *ServerTestSuite) TestRelaySizeExceeded() {
	c := s.dial()
	defer c.Close()

	body := "Subject: Big\r\n\r\n" + strings.Repeat(strings.Repeat("x", 78)+"\r\n", 128)
	_, err := s.send(c, "sender@example.com", []string{"first@example.org"}, body)
	s.requireCode(err, 552)

	record := s.record()
	s.Require().NotNil(record.Error)
	s.Nil(record.Response)
	s.Empty(s.upstream.received())
}

func (s *ServerTestSuite) TestRelayUpstreamResponse() {
	s.upstream.replyWith(&smtp.SMTPError{
		Code:         250,
		EnhancedCode: smtp.EnhancedCode{2, 0, 0},
		Message:      "queued as 42",
	})

	c := s.dial()
	defer c.Close()

	response, err := s.send(c, "sender@example.com", []string{"first@example.org"}, "Subject: x\r\n\r\ny\r\n")
	s.Require().NoError(err)
	s.Contains(response, "Message relayed to upstream: ")
	s.Contains(response, "queued as 42")

	record := s.record()
	s.Nil(record.Error)
	s.Require().NotNil(record.Response)
	s.Contains(record.Response.Response, "queued as 42")
}

func (s *ServerTestSuite) TestRelayUpstreamDown() {
	// closing the listener itself refuses connections, even if Serve did not pick it up yet
	s.Require().NoError(s.upstreamListener.Close())

	c := s.dial()
	defer c.Close()

	_, err := s.send(c, "sender@example.com", []string{"first@example.org"}, "Subject: x\r\n\r\ny\r\n")
	s.requireCode(err, 451)

	record := s.record()
	s.Require().NotNil(record.Error)
	s.Equal("message couldn't be delivered", *record.Error)
	s.Nil(record.Response)
	s.Empty(s.upstream.received())
}

func (s *ServerTestSuite) TestNullSender() {
	c := s.dial()
	defer c.Close()

	s.requireCode(c.Mail("", nil), 553)
}

func (s *ServerTestSuite) TestSenderPathTooLong() {
	c := s.dial()
	defer c.Close()

	s.requireCode(c.Mail(strings.Repeat("a", 65)+"@example.com", nil), 501)
}

func (s *ServerTestSuite) TestMaxRecipients() {
	c := s.dial()
	defer c.Close()

	s.Require().NoError(c.Mail("sender@example.com", nil))
	s.Require().NoError(c.Rcpt("first@example.org", nil))
	s.Require().NoError(c.Rcpt("second@example.org", nil))
	s.requireCode(c.Rcpt("third@example.org", nil), 452)
}

func (s *ServerTestSuite) TestShutdownWaitsForTransaction() {
	c := s.dial()
	defer c.Close()

	s.Require().NoError(c.Mail("sender@example.com", nil))
	s.Require().NoError(c.Rcpt("first@example.org", nil))

	w, err := c.Data()
	s.Require().NoError(err)

	_, err = io.WriteString(w, "Subject: late\r\n\r\n")
	s.Require().NoError(err)

	shutdown := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		shutdown <- s.server.Shutdown(ctx)
	}()

	select {
	case err := <-shutdown:
		s.FailNow("shutdown returned while a transaction was open", "%v", err)
	case <-time.After(100 * time.Millisecond):
	}

	_, err = io.WriteString(w, "still here\r\n")
	s.Require().NoError(err)

	response, err := w.CloseWithResponse()
	s.Require().NoError(err)
	s.Contains(response.StatusText, "Message relayed to upstream")
	s.NoError(c.Quit())

	select {
	case err := <-shutdown:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.FailNow("shutdown did not return after the session ended")
	}

	record := s.record()
	s.Nil(record.Error)
	s.Len(s.upstream.received(), 1)
}

func (s *ServerTestSuite) TestShutdownCutsIdleConnections() {
	c := s.dial()
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	s.ErrorIs(s.server.Shutdown(ctx), context.DeadlineExceeded)
	s.Error(c.Noop())
}
