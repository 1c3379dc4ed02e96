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
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

const (
	chunkSize = 32 * 1024
	// windowSize is how far the inbound side may run ahead of the outbound consumer.
	windowSize = 8 * chunkSize
)

// BodyStream is the message body as received from the client.
type BodyStream interface {
	io.Reader
	// SizeExceeded reports whether the client sent more than the size limit allows.
	SizeExceeded() bool
}

// Buffer streams an inbound body to a single outbound consumer while it is still being
// received. The outbound side reads the trace header first. Up to windowSize bytes are held
// until the consumer starts reading, so a client exceeding the size limit is noticed while the
// upstream is still being dialed.
type Buffer struct {
	outbound io.Reader
	pr       *io.PipeReader
	pw       *io.PipeWriter
	window   *bufio.Writer

	exceeded  atomic.Bool
	draining  bool
	closed    bool
	closeOnce sync.Once
}

// OpenBuffer creates a buffer whose outbound stream starts with header.
func OpenBuffer(header []byte) *Buffer {
	pr, pw := io.Pipe()

	return &Buffer{
		outbound: io.MultiReader(bytes.NewReader(header), pr),
		pr:       pr,
		pw:       pw,
		window:   bufio.NewWriterSize(pw, windowSize),
	}
}

// Reader returns the outbound stream. It must be read by one consumer only.
func (b *Buffer) Reader() io.Reader {
	return b.outbound
}

// Append forwards a chunk to the outbound stream. It blocks while the window is full and does
// nothing once the size limit was exceeded. Append, Close and Fill belong to the producer and
// must not be called concurrently.
func (b *Buffer) Append(chunk []byte) error {
	if b.exceeded.Load() {
		return nil
	}

	if b.closed {
		return io.ErrClosedPipe
	}

	_, err := b.window.Write(chunk)
	return err
}

// Close hands the rest of the window to the consumer and signals the end of the body.
// Calling it more than once is safe.
func (b *Buffer) Close() {
	b.closeOnce.Do(func() {
		b.closed = true
		b.pw.CloseWithError(b.window.Flush())
	})
}

// SizeExceeded fails the outbound stream with ErrSizeExceeded.
func (b *Buffer) SizeExceeded() {
	b.exceeded.Store(true)
	b.fail(ErrSizeExceeded)
}

// Exceeded reports whether SizeExceeded was called.
func (b *Buffer) Exceeded() bool {
	return b.exceeded.Load()
}

// Abandon detaches the consumer. Appends fail as soon as the window has to be handed over, so
// the producer can switch to draining the body.
func (b *Buffer) Abandon() {
	b.pr.CloseWithError(errAbandoned)
}

func (b *Buffer) fail(err error) {
	b.closeOnce.Do(func() {
		b.closed = true
		b.pw.CloseWithError(err)
	})
}

// Fill pumps body into the outbound stream until it ends. Once the consumer is gone, the
// rest of the body is drained without being forwarded. The returned error is
// ErrSizeExceeded if the client sent too much, or the read error of body.
func (b *Buffer) Fill(body BodyStream) (int64, error) {
	var (
		chunk = make([]byte, chunkSize)
		total int64
	)

	for {
		n, err := body.Read(chunk)
		total += int64(n)

		if body.SizeExceeded() {
			b.SizeExceeded()
			b.drain(body, chunk)
			return total, ErrSizeExceeded
		}

		if n > 0 {
			b.forward(chunk[:n])
		}

		if errors.Is(err, io.EOF) {
			b.Close()
			return total, nil
		}

		if err != nil {
			b.fail(err)
			return total, err
		}
	}
}

func (b *Buffer) forward(chunk []byte) {
	if b.draining {
		// nothing reads discarded bytes, so the sink cannot fail
		_, _ = io.Discard.Write(chunk)
		return
	}

	if err := b.Append(chunk); err != nil {
		b.draining = true
	}
}

// drain consumes whatever the body still yields after the size limit was reported.
func (b *Buffer) drain(body io.Reader, chunk []byte) {
	_, _ = io.CopyBuffer(io.Discard, struct{ io.Reader }{body}, chunk)
}
