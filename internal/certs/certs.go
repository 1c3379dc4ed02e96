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


package certs

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefrelay/internal/log"
)

const (
	sourceNone  = "none"
	sourceFiles = "files"
)

func init() {
	viper.SetDefault("tls.source", sourceNone)
}

type certSource interface {
	lastUpdate() (time.Time, error)
	load() (*tls.Certificate, error)
}

func newCertSource(source string, fs afero.Fs) (certSource, error) {
	switch source {
	case sourceNone:
		return nil, nil
	case sourceFiles:
		return newFilesCertSource(fs), nil
	default:
		return nil, fmt.Errorf("unknown certificate source %q", source)
	}
}

// NewTLSConfig creates a tls config for STARTTLS, which can dynamically load certificates.
// When the configured certificate source indicates an update, the new certificate is loaded
// and returned. The config is nil if no source is configured.
//
// `tls.source` is either "none" or "files".
func NewTLSConfig() (*tls.Config, error) {
	return newTLSConfig(viper.GetString("tls.source"), afero.NewOsFs())
}

func newTLSConfig(sourceName string, fs afero.Fs) (*tls.Config, error) {
	source, err := newCertSource(sourceName, fs)
	if err != nil || source == nil {
		return nil, err
	}

	log.Info().Str("source", sourceName).Msg("starttls enabled")

	var (
		lastCert *tls.Certificate
		lastTime time.Time
		lock     sync.Mutex
	)

	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			lock.Lock()
			defer lock.Unlock()

			newTime, err := source.lastUpdate()
			if err != nil {
				return nil, fmt.Errorf(
					"could not check for certificate updates: %w", err)
			}

			if newTime.After(lastTime) {
				newCert, err := source.load()
				if err != nil {
					return nil, fmt.Errorf(
						"could not load certificate: %w", err)
				}

				lastTime = newTime
				lastCert = newCert

				log.Debug().Time("updated", newTime).Msg("new certificate loaded")
			}

			return lastCert, nil
		},
	}, nil
}
