// Package system provides a resolver.Resolver backed by net.Resolver, which
// follows the operating system's resolver configuration.
package system

import (
	"asnlookup/internal/config"
	"asnlookup/pkg/logger"
	"asnlookup/pkg/resolver"
	"asnlookup/pkg/serrors"
	"context"
	"errors"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Options configure the system resolver.
type Options struct {
	// Servers overrides the nameservers from the OS configuration. Queries are
	// then made by the pure Go resolver and spread over the servers in order.
	Servers []string
	// Timeout bounds a single Resolve call. Zero means no extra bound.
	Timeout time.Duration
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		Servers: cfg.Resolver.Servers,
		Timeout: cfg.Resolver.Timeout,
	}
}

// Resolver resolves names with net.Resolver.
type Resolver struct {
	resolver *net.Resolver
	timeout  time.Duration
}

// Ensure Resolver conforms to the resolver.Resolver interface at compile time.
var _ resolver.Resolver = (*Resolver)(nil)

// New constructs a Resolver from opts.
func New(opts Options) *Resolver {
	r := &net.Resolver{}

	if servers := resolver.HostPorts(opts.Servers); len(servers) > 0 {
		var next atomic.Uint32
		r.PreferGo = true
		// the Go resolver dials once per attempt; each attempt moves to the next server.
		r.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			server := servers[int(next.Add(1)-1)%len(servers)]
			var d net.Dialer

			return d.DialContext(ctx, network, server)
		}
	}

	return &Resolver{resolver: r, timeout: opts.Timeout}
}

// Resolve looks up the A and AAAA records of domain and returns the first
// address in the order net.Resolver reports them. IP literals are returned as
// they are.
func (r *Resolver) Resolve(ctx context.Context, domain string) (netip.Addr, bool, error) {
	if domain == "" {
		return netip.Addr{}, false, serrors.With(serrors.ErrBadRequest, "domain is empty")
	}
	if addr, err := netip.ParseAddr(domain); err == nil {
		return addr, true, nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	addrs, err := r.resolver.LookupNetIP(ctx, "ip", domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			logger.Debug(ctx, "domain has no address records", zap.String("domain", domain))

			return netip.Addr{}, false, nil
		}

		return netip.Addr{}, false, serrors.Wrap(serrors.ErrResolution, err, "dns lookup failed for %s", domain)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, false, nil
	}

	addr := addrs[0].Unmap()
	logger.Debug(ctx, "resolved domain",
		zap.String("domain", domain),
		zap.Stringer("addr", addr),
		zap.Int("answers", len(addrs)))

	return addr, true, nil
}
