// Package whoistest provides a local WHOIS-over-TCP server for tests.
package whoistest

import (
	"bufio"
	"net"
	"sync"
	"testing"
)

// Handler answers one query. The connection is closed after it returns.
type Handler func(query string, conn net.Conn)

// Reply returns a Handler that writes response and closes the connection.
func Reply(response string) Handler {
	return func(_ string, conn net.Conn) {
		_, _ = conn.Write([]byte(response))
	}
}

// Hang returns a Handler that never replies and keeps the connection open
// until release is closed.
func Hang(release <-chan struct{}) Handler {
	return func(_ string, _ net.Conn) {
		<-release
	}
}

// Server accepts WHOIS connections on a loopback port.
type Server struct {
	// Addr is the host:port the server listens on.
	Addr string
	// Host and Port are Addr split for client options.
	Host string
	Port int

	ln      net.Listener
	handler Handler
	wg      sync.WaitGroup

	mu      sync.Mutex
	queries []string
}

// NewServer starts a server that hands every query line to h. It is shut
// down when the test finishes.
func NewServer(t testing.TB, h Handler) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not listen: %v", err)
	}

	tcpAddr := ln.Addr().(*net.TCPAddr)
	s := &Server{
		Addr:    ln.Addr().String(),
		Host:    tcpAddr.IP.String(),
		Port:    tcpAddr.Port,
		ln:      ln,
		handler: h,
	}

	s.wg.Add(1)
	go s.serve()

	t.Cleanup(func() {
		_ = s.ln.Close()
		s.wg.Wait()
	})

	return s
}

// Queries returns the raw query lines received so far, terminators included.
func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.queries...)
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				_ = conn.Close()
			}()

			line, err := bufio.NewReader(conn).ReadString('\n')
			if err != nil {
				return
			}

			s.mu.Lock()
			s.queries = append(s.queries, line)
			s.mu.Unlock()

			s.handler(line, conn)
		}()
	}
}
