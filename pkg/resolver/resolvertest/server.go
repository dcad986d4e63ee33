// Package resolvertest provides an in-process DNS server for exercising
// resolver implementations without touching the network.
package resolvertest

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/miekg/dns"
)

// Zone is the static data served by a Server. Names are fully qualified and
// matched case-insensitively.
type Zone struct {
	// Records maps a name to its records. CNAME records are followed within the zone.
	Records map[string][]dns.RR
	// Rcodes forces a response code for a name, e.g. dns.RcodeServerFailure.
	Rcodes map[string]int
	// TruncateUDP strips the answers of UDP responses and sets the TC bit so
	// that clients have to retry over TCP.
	TruncateUDP bool
}

// Query is a question received by the server.
type Query struct {
	Name    string
	Type    uint16
	Network string
}

// Server answers DNS queries over UDP and TCP on the same loopback port.
type Server struct {
	// Addr is the host:port the server listens on.
	Addr string

	zone Zone
	udp  *dns.Server
	tcp  *dns.Server

	mu      sync.Mutex
	queries []Query
}

// RR parses a record in zone file format and fails the test on error.
func RR(t testing.TB, s string) dns.RR {
	t.Helper()

	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatalf("could not parse record %q: %v", s, err)
	}

	return rr
}

// NewServer starts a server for zone. It is shut down when the test finishes.
func NewServer(t testing.TB, zone Zone) *Server {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not listen on udp: %v", err)
	}
	ln, err := net.Listen("tcp", pc.LocalAddr().String())
	if err != nil {
		_ = pc.Close()
		t.Fatalf("could not listen on tcp: %v", err)
	}

	s := &Server{Addr: pc.LocalAddr().String(), zone: zone}
	s.udp = &dns.Server{PacketConn: pc, Handler: dns.HandlerFunc(s.handle)}
	s.tcp = &dns.Server{Listener: ln, Handler: dns.HandlerFunc(s.handle)}

	for _, srv := range []*dns.Server{s.udp, s.tcp} {
		started := make(chan struct{})
		srv.NotifyStartedFunc = func() { close(started) }
		go func() {
			_ = srv.ActivateAndServe()
		}()
		<-started
	}

	t.Cleanup(func() {
		_ = s.udp.Shutdown()
		_ = s.tcp.Shutdown()
	})

	return s
}

// Queries returns the questions received so far, in arrival order.
func (s *Server) Queries() []Query {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Query(nil), s.queries...)
}

func (s *Server) handle(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true
	m.RecursionAvailable = true

	if len(r.Question) != 1 {
		m.Rcode = dns.RcodeFormatError
		_ = w.WriteMsg(m)

		return
	}

	q := r.Question[0]
	network := w.RemoteAddr().Network()
	s.mu.Lock()
	s.queries = append(s.queries, Query{Name: q.Name, Type: q.Qtype, Network: network})
	s.mu.Unlock()

	name := strings.ToLower(q.Name)
	if rcode, ok := s.zone.Rcodes[name]; ok {
		m.Rcode = rcode
		_ = w.WriteMsg(m)

		return
	}

	answer, exists := s.answer(name, q.Qtype)
	if !exists {
		m.Rcode = dns.RcodeNameError
		_ = w.WriteMsg(m)

		return
	}

	m.Answer = answer
	if s.zone.TruncateUDP && network == "udp" && len(m.Answer) > 0 {
		m.Answer = nil
		m.Truncated = true
	}
	_ = w.WriteMsg(m)
}

// answer collects the records of qtype for name, following CNAMEs. exists is
// false when name is not in the zone at all.
func (s *Server) answer(name string, qtype uint16) ([]dns.RR, bool) {
	records, exists := s.zone.Records[name]
	if !exists {
		return nil, false
	}

	var out []dns.RR
	for range 8 {
		next := ""
		for _, rr := range records {
			switch {
			case rr.Header().Rrtype == dns.TypeCNAME && qtype != dns.TypeCNAME:
				out = append(out, rr)
				next = strings.ToLower(rr.(*dns.CNAME).Target)
			case rr.Header().Rrtype == qtype:
				out = append(out, rr)
			}
		}
		if next == "" {
			break
		}
		records = s.zone.Records[next]
	}

	return out, true
}

// String implements fmt.Stringer for debugging failed assertions.
func (q Query) String() string {
	return fmt.Sprintf("%s %s/%s", q.Network, q.Name, dns.TypeToString[q.Type])
}
