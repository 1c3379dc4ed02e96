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


package dns

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverseName(t *testing.T) {
	for ip, expected := range map[string]string{
		"192.0.2.99":                "99.2.0.192.in-addr.arpa.",
		"111.122.133.144":           "144.133.122.111.in-addr.arpa.",
		"2001:db8:1:2:3:4:567:89ab": "b.a.9.8.7.6.5.0.4.0.0.0.3.0.0.0.2.0.0.0.1.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa.",
	} {
		t.Run(ip, func(t *testing.T) {
			actual, err := reverseName(net.ParseIP(ip))
			require.NoError(t, err)
			assert.Equal(t, expected, actual)
		})
	}
}

func TestReverseNameInvalid(t *testing.T) {
	_, err := reverseName(net.ParseIP("not an ip"))
	assert.ErrorIs(t, err, ErrInvalidIP)
}

func TestLookupAddr(t *testing.T) {
	resolver := NewResolverWithAddr(startNameserver(t, map[string]string{
		"4.3.2.1.in-addr.arpa.": "mail.example.com.",
		"1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa.": "v6.example.com.",
	}), time.Second)

	for ip, expected := range map[string]string{
		"1.2.3.4":     "mail.example.com",
		"2001:db8::1": "v6.example.com",
		"5.6.7.8":     "",
	} {
		t.Run(ip, func(t *testing.T) {
			name, err := resolver.LookupAddr(context.Background(), ip)
			require.NoError(t, err)
			assert.Equal(t, expected, name)
		})
	}
}

func TestLookupAddrServerFailure(t *testing.T) {
	resolver := NewResolverWithAddr(startNameserver(t, nil), time.Second)

	_, err := resolver.LookupAddr(context.Background(), "10.0.0.1")
	assert.Error(t, err)
}

func TestLookupAddrInvalidIP(t *testing.T) {
	resolver := NewResolverWithAddr("127.0.0.1:0", time.Second)

	_, err := resolver.LookupAddr(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrInvalidIP)
}

func TestNewResolverConfigured(t *testing.T) {
	viper.Set("dns.server", "192.0.2.53:53")
	defer viper.Set("dns.server", "")

	resolver, err := NewResolver()
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.53:53", resolver.addr)
}

// startNameserver answers PTR queries from records. A nil map makes every query fail with
// SERVFAIL.
func startNameserver(t *testing.T, records map[string]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			var res dns.Msg
			res.SetReply(req)

			switch name, ok := records[req.Question[0].Name]; {
			case records == nil:
				res.Rcode = dns.RcodeServerFailure

			case ok:
				res.Answer = append(res.Answer, &dns.PTR{
					Hdr: dns.RR_Header{
						Name:   req.Question[0].Name,
						Rrtype: dns.TypePTR,
						Class:  dns.ClassINET,
						Ttl:    60,
					},
					Ptr: name,
				})

			default:
				res.Rcode = dns.RcodeNameError
			}

			_ = w.WriteMsg(&res)
		}),
	}

	go func() {
		_ = server.ActivateAndServe()
	}()

	<-started
	t.Cleanup(func() {
		_ = server.Shutdown()
	})

	return pc.LocalAddr().String()
}
