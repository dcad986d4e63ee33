// Package whois defines the ASN lookup capability: ask a WHOIS-over-TCP
// service about an IP address and return its reply as opaque text.
package whois

import (
	"context"
	"net/netip"
)

// Client queries ASN metadata for an address.
//
//go:generate mockgen -package mockwhois -source=interface.go -destination=mock/mockwhois.go *
type Client interface {
	// Query returns the server's reply for ip with the header line removed.
	// An empty string means the server had no data for ip. Failures carry
	// serrors.ErrWhoisConnect, serrors.ErrWhoisWrite or serrors.ErrWhoisRead
	// depending on the phase that failed.
	Query(ctx context.Context, ip netip.Addr) (string, error)
}
