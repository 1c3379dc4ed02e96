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
	"bytes"
	"fmt"
	"strings"
	"time"
)

// TraceInfo holds the session values written into a trace header.
type TraceInfo struct {
	// HeloName is the hostname declared by the client.
	HeloName string
	// ClientHostname is the reverse dns name of the client. It may be empty.
	ClientHostname string
	// RemoteAddress is the ip address of the client.
	RemoteAddress string
	// LocalName is the hostname of this relay.
	LocalName string
	// Banner is the product name announced by this relay.
	Banner string
	// SessionID identifies the inbound attempt.
	SessionID string
}

// TraceHeader builds a "Received" header field as described in RFC#5321 4.4. The field is
// folded and terminated by <CR> <LF>.
func TraceHeader(info TraceInfo, date time.Time) []byte {
	literal := addressLiteral(info.RemoteAddress)

	from := info.HeloName
	if from == "" {
		from = literal
	}

	comment := literal
	if info.ClientHostname != "" {
		comment = info.ClientHostname + " " + literal
	}

	return foldHeader("Received", fmt.Sprintf("from %s (%s) by %s (%s) with ESMTP id %s; %s",
		from,
		comment,
		info.LocalName,
		info.Banner,
		info.SessionID,
		date.Format(time.RFC1123Z)))
}

// see RFC#5321 4.1.3
func addressLiteral(ip string) string {
	if strings.Contains(ip, ":") {
		return "[IPv6:" + ip + "]"
	}

	return "[" + ip + "]"
}

func foldHeader(key, value string) []byte {
	const (
		// see RFC#2822 2.1.1
		foldLength = 78
	)

	var (
		buffer bytes.Buffer

		length = len(key) + 2
		i      = 0
	)

	// allocate a buffer with enough space for the key and value plus
	// a little extra for folding line breaks
	buffer.Grow(len(key) + len(value) + 16)

	buffer.WriteString(key)
	buffer.WriteString(": ")

	for i < len(value) {
		foldPoint := findFoldPoint(value[i:], foldLength-length)

		buffer.WriteString(value[i : i+foldPoint])
		buffer.WriteString("\r\n")

		i += foldPoint
		length = 0
	}

	return buffer.Bytes()
}

func findFoldPoint(line string, length int) int {
	const (
		space = 32
		tab   = 9
	)

	if len(line) > length {
		var candidate int

		for i, b := range line {
			if b == space || b == tab {
				candidate = i
			}

			if i >= length && candidate > 0 {
				return candidate
			}
		}
	}

	return len(line)
}
