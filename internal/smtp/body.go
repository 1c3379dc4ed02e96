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
	"errors"
	"io"
	"sync/atomic"

	"github.com/emersion/go-smtp"
)

// bodyStream reports whether the DATA reader refused to yield more than the size limit.
type bodyStream struct {
	r        io.Reader
	exceeded atomic.Bool
}

func newBodyStream(r io.Reader) *bodyStream {
	return &bodyStream{r: r}
}

func (b *bodyStream) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if errors.Is(err, smtp.ErrDataTooLarge) {
		b.exceeded.Store(true)
	}

	return n, err
}

func (b *bodyStream) SizeExceeded() bool {
	return b.exceeded.Load()
}
