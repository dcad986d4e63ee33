// Package resolver defines the name resolution capability used by the lookup
// pipeline: map a domain to the first address the resolver answers with.
package resolver

import (
	"context"
	"net/netip"
)

// Resolver maps a domain name to a single network address.
//
//go:generate mockgen -package mockresolver -source=interface.go -destination=mock/mockresolver.go *
type Resolver interface {
	// Resolve returns the first address of the answer set in the order the
	// underlying resolver returned it. found is false when the name has no
	// address records; that is not an error. Infrastructure failures are
	// returned as serrors.ErrResolution.
	Resolve(ctx context.Context, domain string) (addr netip.Addr, found bool, err error)
}
