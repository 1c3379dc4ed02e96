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

	"github.com/emersion/go-smtp"

	"github.com/lukasdietrich/briefrelay/internal/log"
	"github.com/lukasdietrich/briefrelay/internal/models"
	"github.com/lukasdietrich/briefrelay/internal/relay"
)

var (
	errLocal = &smtp.SMTPError{
		Code:         451,
		EnhancedCode: smtp.EnhancedCode{4, 3, 0},
		Message:      "action aborted: local error in processing",
	}
	errBadSequence = &smtp.SMTPError{
		Code:         503,
		EnhancedCode: smtp.EnhancedCode{5, 5, 1},
		Message:      "bad sequence of commands",
	}
	errInvalidAddress = &smtp.SMTPError{
		Code:         553,
		EnhancedCode: smtp.EnhancedCode{5, 1, 3},
		Message:      "invalid address format",
	}
	errPathTooLong = &smtp.SMTPError{
		Code:         501,
		EnhancedCode: smtp.EnhancedCode{5, 5, 4},
		Message:      "path too long",
	}
)

// relayed is the reply to a completed relay attempt. It passes on the acceptance text of the
// upstream.
func relayed(info *models.DeliveryInfo) *smtp.SMTPError {
	message := "Message relayed to upstream"
	if info != nil && info.Response != "" {
		message += ": " + info.Response
	}

	return &smtp.SMTPError{
		Code:         250,
		EnhancedCode: smtp.EnhancedCode{2, 0, 0},
		Message:      message,
	}
}

// relayError converts the outcome of a failed relay attempt into the reply sent to the client.
func relayError(err *relay.Error) *smtp.SMTPError {
	return &smtp.SMTPError{
		Code:         err.Code,
		EnhancedCode: smtp.EnhancedCode(err.EnhancedCode),
		Message:      err.Text,
	}
}

// handleError maps errors to replies. Errors without a known reply are logged and answered
// with a generic local error.
func handleError(ctx context.Context, err error) error {
	var (
		smtpErr  *smtp.SMTPError
		relayErr *relay.Error
	)

	switch {
	case errors.As(err, &smtpErr):
		return smtpErr

	case errors.As(err, &relayErr):
		return relayError(relayErr)

	case errors.Is(err, models.ErrInvalidAddressFormat):
		return errInvalidAddress

	case errors.Is(err, models.ErrPathTooLong):
		return errPathTooLong

	case errors.Is(err, models.ErrNoRecipients):
		return errBadSequence
	}

	log.ErrorContext(ctx).Err(err).Msg("unexpected error during session")
	return errLocal
}
