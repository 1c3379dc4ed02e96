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


package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefrelay/internal/audit"
	"github.com/lukasdietrich/briefrelay/internal/log"
	"github.com/lukasdietrich/briefrelay/internal/relay"
)

func init() {
	viper.SetDefault("status.listen", "")
}

// ConnectionReporter reports the state of the audit store connection.
type ConnectionReporter interface {
	State() audit.ConnectionState
}

// Report is the body of a status response.
type Report struct {
	Audit    string `json:"audit"`
	Upstream string `json:"upstream"`
}

// NewRouter creates the routes of the status endpoint.
func NewRouter(connection ConnectionReporter, upstream relay.UpstreamOptions, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.Handle("/status", statusHandler(connection, upstream.Address())).Methods(http.MethodGet)

	return r
}

// statusHandler answers with 200 while the audit store is connected and 503 otherwise.
func statusHandler(connection ConnectionReporter, upstream string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := connection.State()

		w.Header().Set("Content-Type", "application/json")

		if state != audit.StateConnected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		if err := json.NewEncoder(w).Encode(Report{
			Audit:    state.String(),
			Upstream: upstream,
		}); err != nil {
			log.DebugContext(r.Context()).Err(err).Msg("could not write status")
		}
	})
}

// Server serves the status endpoint.
type Server struct {
	server *http.Server
}

// NewServer creates a new server.
//
// `status.listen` is the listen address. The server is disabled if it is empty.
func NewServer(router *mux.Router) *Server {
	return &Server{
		server: &http.Server{
			Addr:              viper.GetString("status.listen"),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// ListenAndServe serves requests until Shutdown is called. It returns immediately if the server
// is disabled.
func (s *Server) ListenAndServe() error {
	if s.server.Addr == "" {
		log.Debug().Msg("status endpoint disabled")
		return nil
	}

	log.Info().Str("addr", s.server.Addr).Msg("status endpoint listening")

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
