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

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/lukasdietrich/briefrelay/internal/log"
	"github.com/lukasdietrich/briefrelay/internal/models"
)

var errIdentityMismatch = errors.New("smtp: authorization identity differs from user name")

// session collects the envelope of the current transaction. go-smtp ensures the order of
// commands, so every method is only called in a valid state.
type session struct {
	ctx     context.Context
	backend *Backend
	conn    connState
	state   models.SessionSnapshot
}

// refresh copies the greeting and transport security of the connection.
func (s *session) refresh() {
	s.state.HeloName = s.conn.Hostname()
	_, s.state.TLS = s.conn.TLSConnectionState()
}

// AuthMechanisms implements smtp.AuthSession.
func (s *session) AuthMechanisms() []string {
	if !s.backend.authEnabled {
		return nil
	}

	return []string{sasl.Plain}
}

// Auth implements smtp.AuthSession.
func (s *session) Auth(mech string) (sasl.Server, error) {
	if !s.backend.authEnabled || mech != sasl.Plain {
		return nil, smtp.ErrAuthUnsupported
	}

	return sasl.NewPlainServer(func(identity, username, _ string) error {
		if identity != "" && identity != username {
			log.DebugContext(s.ctx).
				Str("identity", identity).
				Str("user", username).
				Msg("rejecting authentication")

			return errIdentityMismatch
		}

		s.state.User = username

		log.DebugContext(s.ctx).
			Str("user", username).
			Msg("client authenticated")

		return nil
	}), nil
}

func (s *session) Mail(from string, opts *smtp.MailOptions) error {
	if _, err := models.Parse(from); err != nil {
		log.DebugContext(s.ctx).
			Err(err).
			Str("from", from).
			Msg("invalid reverse-path")

		return handleError(s.ctx, err)
	}

	s.refresh()
	s.state.MailFrom = from

	if opts != nil {
		s.state.DeclaredSize = opts.Size
		s.state.BodyType = string(opts.Body)
	}

	log.DebugContext(s.ctx).
		Str("from", from).
		Msg("beginning mail transaction")

	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if _, err := models.Parse(to); err != nil {
		log.DebugContext(s.ctx).
			Err(err).
			Str("to", to).
			Msg("invalid forward-path")

		return handleError(s.ctx, err)
	}

	s.state.Recipients = append(s.state.Recipients, to)

	log.DebugContext(s.ctx).
		Str("to", to).
		Msg("recipient added")

	return nil
}

func (s *session) Data(r io.Reader) error {
	s.state.Transaction++

	outcome, err := s.backend.relayer.Relay(s.ctx, s.state.Clone(), newBodyStream(r))
	if err != nil {
		return handleError(s.ctx, err)
	}

	if outcome.Err != nil {
		return relayError(outcome.Err)
	}

	// go-smtp sends any code of a returned SMTPError, so success carries the upstream's text too
	return relayed(outcome.Info)
}

func (s *session) Reset() {
	s.state.MailFrom = ""
	s.state.Recipients = nil
	s.state.DeclaredSize = 0
	s.state.BodyType = ""
}

func (s *session) Logout() error {
	log.InfoContext(s.ctx).
		Int("transactions", s.state.Transaction).
		Msg("session closed")

	return nil
}
