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
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/spf13/viper"
)

func init() {
	viper.SetDefault("dns.server", "")
	viper.SetDefault("dns.timeout", "5s")
}

var (
	// ErrInvalidIP is returned for addresses, that cannot be reversed.
	ErrInvalidIP = errors.New("dns: invalid ip address")

	errNoNameserver = errors.New("dns: no nameserver configured")
)

// Resolver queries a single nameserver.
type Resolver struct {
	addr   string
	client *dns.Client
}

// NewResolver creates a resolver for the configured nameserver.
//
// `dns.server` is the "host:port" of the nameserver. If it is empty, the first nameserver of
// /etc/resolv.conf is used.
// `dns.timeout` limits each exchange.
func NewResolver() (*Resolver, error) {
	addr := viper.GetString("dns.server")

	if addr == "" {
		config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("could not read resolver configuration: %w", err)
		}

		if len(config.Servers) == 0 {
			return nil, errNoNameserver
		}

		addr = net.JoinHostPort(config.Servers[0], config.Port)
	}

	return NewResolverWithAddr(addr, viper.GetDuration("dns.timeout")), nil
}

// NewResolverWithAddr creates a resolver querying addr over udp.
func NewResolverWithAddr(addr string, timeout time.Duration) *Resolver {
	return &Resolver{
		addr:   addr,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func (r *Resolver) query(ctx context.Context, name string, t uint16) (*dns.Msg, error) {
	m := dns.Msg{
		MsgHdr: dns.MsgHdr{
			Id:               dns.Id(),
			RecursionDesired: true,
		},
		Question: []dns.Question{{
			Name:   dns.Fqdn(name),
			Qtype:  t,
			Qclass: dns.ClassINET,
		}},
	}

	res, _, err := r.client.ExchangeContext(ctx, &m, r.addr)
	if err != nil {
		return nil, err
	}

	switch res.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
		return res, nil
	default:
		return nil, fmt.Errorf("dns: query for %q failed with %s", name, dns.RcodeToString[res.Rcode])
	}
}

// LookupAddr returns the first name of a PTR record for ip without the trailing dot. The name is
// empty, if no record exists.
func (r *Resolver) LookupAddr(ctx context.Context, ip string) (string, error) {
	name, err := reverseName(net.ParseIP(ip))
	if err != nil {
		return "", err
	}

	res, err := r.query(ctx, name, dns.TypePTR)
	if err != nil {
		return "", err
	}

	for _, rr := range res.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}

	return "", nil
}

// reverseName returns the name of the PTR record for ip in the in-addr.arpa or ip6.arpa zone.
func reverseName(ip net.IP) (string, error) {
	if ipv4 := ip.To4(); ipv4 != nil {
		// Reverse IPv4 octets (see RFC#1035 3.5.)

		const bufLen = len("255.255.255.255.")
		var (
			octs = make([]byte, bufLen)
			j    int
		)

		for i := 3; i >= 0; i-- {
			switch b := ipv4[i]; true {
			case b < 10:
				octs[j] = b + '0'
				j++

			case b < 100:
				octs[j] = b/10 + '0'
				octs[j+1] = b%10 + '0'
				j += 2

			default:
				octs[j] = b/100 + '0'
				octs[j+1] = (b/10)%10 + '0'
				octs[j+2] = b%10 + '0'
				j += 3
			}

			octs[j] = '.'
			j++
		}

		return string(octs[:j]) + "in-addr.arpa.", nil
	}

	if ipv6 := ip.To16(); ipv6 != nil {
		// Reverse IPv6 nibbles (see RFC#3596 2.5.)

		const (
			hexLen = net.IPv6len * 2 // 1 byte = 2 hex letters
			bufLen = hexLen * 3      // original order + reverse order + dots
			offset = hexLen - 1      // offset for zero indexed reverse access
		)

		nibs := make([]byte, bufLen)
		hex.Encode(nibs, ipv6)

		for i := 0; i < hexLen; i++ {
			nibs[hexLen+i<<1] = nibs[offset-i]
			nibs[hexLen+i<<1+1] = '.'
		}

		return string(nibs[hexLen:]) + "ip6.arpa.", nil
	}

	return "", ErrInvalidIP
}
