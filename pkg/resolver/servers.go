package resolver

import (
	"net"
	"net/netip"
)

// DefaultPort is the DNS port appended to nameservers given without one.
const DefaultPort = "53"

// HostPort returns server as a host:port pair, appending DefaultPort when the
// server is a bare hostname or IP address (IPv6 literals included).
func HostPort(server string) string {
	if addr, err := netip.ParseAddr(server); err == nil {
		return net.JoinHostPort(addr.String(), DefaultPort)
	}
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}

	return net.JoinHostPort(server, DefaultPort)
}

// HostPorts applies HostPort to every non-empty server in servers.
func HostPorts(servers []string) []string {
	out := make([]string, 0, len(servers))
	for _, s := range servers {
		if s == "" {
			continue
		}
		out = append(out, HostPort(s))
	}

	return out
}
