package domain

import (
	"net/netip"

	"github.com/google/uuid"
)

// LookupID uniquely identifies a single lookup invocation.
// It wraps uuid.UUID to provide type safety at the domain layer.
type LookupID uuid.UUID

// NewLookupID returns a random LookupID.
func NewLookupID() LookupID {
	return LookupID(uuid.New())
}

// String returns the canonical textual form of the ID.
func (id LookupID) String() string {
	return uuid.UUID(id).String()
}

// LookupStatus represents how far a lookup got.
type LookupStatus string

const (
	// LookupStatusNotResolved indicates the domain had no address records.
	LookupStatusNotResolved LookupStatus = "not_resolved"
	// LookupStatusNoASNData indicates the domain resolved but the WHOIS server
	// returned nothing beyond its header line.
	LookupStatusNoASNData LookupStatus = "no_asn_data"
	// LookupStatusCompleted indicates ASN information is available.
	LookupStatusCompleted LookupStatus = "completed"
)

// Lookup is the outcome of resolving a domain and querying ASN information
// for its first address.
//
// Addr is valid unless Status is LookupStatusNotResolved. ASNInfo is only set
// when Status is LookupStatusCompleted and holds the WHOIS data lines with the
// header line removed.
type Lookup struct {
	ID      LookupID
	Domain  string
	Addr    netip.Addr
	Status  LookupStatus
	ASNInfo string
}
