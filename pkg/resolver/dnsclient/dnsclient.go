// Package dnsclient provides a resolver.Resolver that sends DNS queries
// straight to a list of nameservers using github.com/miekg/dns.
package dnsclient

import (
	"asnlookup/internal/config"
	"asnlookup/pkg/logger"
	"asnlookup/pkg/resolver"
	"asnlookup/pkg/serrors"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// DefaultServers are queried when neither explicit servers nor a readable
// resolv.conf are available.
var DefaultServers = []string{"8.8.8.8:53", "8.8.4.4:53"} //nolint: gochecknoglobals

// Options configure the DNS client.
type Options struct {
	// Servers are the nameservers to query, in order. Bare hosts get port 53.
	Servers []string
	// ResolvConf is read for nameservers when Servers is empty.
	ResolvConf string
	// Timeout bounds a single Resolve call across all servers and query types.
	Timeout time.Duration
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		Servers:    cfg.Resolver.Servers,
		ResolvConf: cfg.Resolver.ResolvConf,
		Timeout:    cfg.Resolver.Timeout,
	}
}

// Client queries nameservers for A then AAAA records. It is safe for concurrent use.
type Client struct {
	udp     *dns.Client
	tcp     *dns.Client
	servers []string
	timeout time.Duration
}

// Ensure Client conforms to the resolver.Resolver interface at compile time.
var _ resolver.Resolver = (*Client)(nil)

// New constructs a Client. Nameservers are taken from opts.Servers, then from
// opts.ResolvConf, then from DefaultServers.
func New(opts Options) *Client {
	servers := resolver.HostPorts(opts.Servers)
	if len(servers) == 0 && opts.ResolvConf != "" {
		if cc, err := dns.ClientConfigFromFile(opts.ResolvConf); err == nil {
			for _, s := range cc.Servers {
				servers = append(servers, net.JoinHostPort(s, cc.Port))
			}
		}
	}
	if len(servers) == 0 {
		servers = DefaultServers
	}

	return &Client{
		udp:     &dns.Client{Net: "udp", Timeout: opts.Timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: opts.Timeout},
		servers: servers,
		timeout: opts.Timeout,
	}
}

// Servers returns the nameservers the client queries, in order.
func (c *Client) Servers() []string {
	return append([]string(nil), c.servers...)
}

// Resolve asks for A records and, when there are none, for AAAA records. The
// first address record of the answer section wins. NXDOMAIN ends the lookup
// with found == false. IP literals are returned as they are.
func (c *Client) Resolve(ctx context.Context, domain string) (netip.Addr, bool, error) {
	if domain == "" {
		return netip.Addr{}, false, serrors.With(serrors.ErrBadRequest, "domain is empty")
	}
	if addr, err := netip.ParseAddr(domain); err == nil {
		return addr, true, nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	name := dns.Fqdn(domain)
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		in, err := c.exchange(ctx, name, qtype)
		if err != nil {
			return netip.Addr{}, false, serrors.Wrap(serrors.ErrResolution, err, "dns lookup failed for %s", domain)
		}
		if in.Rcode == dns.RcodeNameError {
			logger.Debug(ctx, "domain does not exist", zap.String("domain", domain))

			return netip.Addr{}, false, nil
		}
		if addr, ok := firstAddr(in.Answer); ok {
			logger.Debug(ctx, "resolved domain",
				zap.String("domain", domain),
				zap.String("type", dns.TypeToString[qtype]),
				zap.Stringer("addr", addr),
				zap.Int("answers", len(in.Answer)))

			return addr, true, nil
		}
	}

	logger.Debug(ctx, "domain has no address records", zap.String("domain", domain))

	return netip.Addr{}, false, nil
}

// exchange sends the question to each server in turn until one answers with
// NOERROR or NXDOMAIN. Truncated UDP answers are retried over TCP.
func (c *Client) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(name, qtype)
	m.RecursionDesired = true
	m.SetEdns0(dns.DefaultMsgSize, false)

	var errs []error
	for _, server := range c.servers {
		in, _, err := c.udp.ExchangeContext(ctx, m, server)
		if err == nil && in.Truncated {
			logger.Debug(ctx, "truncated answer, retrying over tcp", zap.String("server", server))
			in, _, err = c.tcp.ExchangeContext(ctx, m, server)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", server, err))
			if ctx.Err() != nil {
				break
			}

			continue
		}
		if in.Rcode != dns.RcodeSuccess && in.Rcode != dns.RcodeNameError {
			errs = append(errs, fmt.Errorf("%s: %s", server, dns.RcodeToString[in.Rcode]))

			continue
		}

		return in, nil
	}

	return nil, errors.Join(errs...)
}

func firstAddr(answer []dns.RR) (netip.Addr, bool) {
	for _, rr := range answer {
		var ip net.IP
		switch v := rr.(type) {
		case *dns.A:
			ip = v.A
		case *dns.AAAA:
			ip = v.AAAA
		default:
			continue
		}
		if addr, ok := netip.AddrFromSlice(ip); ok {
			return addr.Unmap(), true
		}
	}

	return netip.Addr{}, false
}
