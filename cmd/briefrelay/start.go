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
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/lukasdietrich/briefrelay/internal/audit"
	"github.com/lukasdietrich/briefrelay/internal/log"
	"github.com/lukasdietrich/briefrelay/internal/smtp"
	"github.com/lukasdietrich/briefrelay/internal/status"
)

const shutdownTimeout = 30 * time.Second

type startCommand struct {
	Server     *smtp.Server
	Status     *status.Server
	Connection *audit.ConnectionManager
	Recorder   *audit.Recorder
}

func (c *startCommand) run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.Connection.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(c.Server.ListenAndServe)
	g.Go(c.Status.ListenAndServe)
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		return c.shutdown()
	})

	return g.Wait()
}

// shutdown stops accepting mail, lets open sessions finish, waits for pending audit records and
// closes the store.
func (c *startCommand) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := multierr.Combine(
		c.Server.Shutdown(ctx),
		c.Status.Shutdown(ctx),
	)

	c.Recorder.Close()
	return multierr.Append(err, c.Connection.Close())
}
