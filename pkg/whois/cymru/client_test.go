package cymru_test

import (
	"asnlookup/pkg/logger"
	"asnlookup/pkg/serrors"
	"asnlookup/pkg/whois/cymru"
	"asnlookup/pkg/whois/whoistest"
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	header   = "AS      | IP               | BGP Prefix          | CC | Registry | Allocated  | AS Name\n"
	dataLine = "15169   | 8.8.8.8          | 8.8.8.0/24          | US | arin     | 2023-12-28 | GOOGLE, US"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment, "debug")
	m.Run()
}

func newTestClient(srv *whoistest.Server, opts cymru.Options) *cymru.Client {
	opts.Host = srv.Host
	opts.Port = srv.Port
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 2 * time.Second
	}

	return cymru.New(nil, opts)
}

// pipeDialer hands out one side of a net.Pipe and lets the test drive the other.
type pipeDialer struct {
	serve func(server net.Conn)
}

func (d pipeDialer) DialContext(_ context.Context, _, _ string) (net.Conn, error) {
	client, server := net.Pipe()
	go d.serve(server)

	return client, nil
}

func TestFormatQuery(t *testing.T) {
	require.Equal(t, " -v 8.8.8.8\r\n", cymru.FormatQuery(netip.MustParseAddr("8.8.8.8")))
	require.Equal(t, " -v 2001:4860:4860::8888\r\n", cymru.FormatQuery(netip.MustParseAddr("2001:4860:4860::8888")))
	require.Equal(t, " -v fe80::1\r\n", cymru.FormatQuery(netip.MustParseAddr("fe80::1%eth0")))
}

func TestNew_Defaults(t *testing.T) {
	c := cymru.New(nil, cymru.Options{})
	require.Equal(t, "whois.cymru.com:43", c.Addr())
}

func TestClient_Query_Success(t *testing.T) {
	srv := whoistest.NewServer(t, whoistest.Reply(header+dataLine+"\n"))
	c := newTestClient(srv, cymru.Options{ReadTimeout: 2 * time.Second})

	res, err := c.Query(context.Background(), netip.MustParseAddr("8.8.8.8"))
	require.NoError(t, err)
	require.Equal(t, dataLine, res)
	require.Equal(t, []string{" -v 8.8.8.8\r\n"}, srv.Queries())
}

func TestClient_Query_DebugSummary(t *testing.T) {
	srv := whoistest.NewServer(t, whoistest.Reply(header+dataLine+"\n"+dataLine+"\n"))
	c := newTestClient(srv, cymru.Options{})
	ip := netip.MustParseAddr("8.8.8.8")

	core, logs := observer.New(zap.DebugLevel)
	_, err := c.Query(logger.WithLogger(context.Background(), zap.New(core)), ip)
	require.NoError(t, err)

	entries := logs.FilterMessage("whois query finished").All()
	require.Len(t, entries, 1)
	require.Equal(t, int64(2), entries[0].ContextMap()["lines"])

	core, logs = observer.New(zap.InfoLevel)
	_, err = c.Query(logger.WithLogger(context.Background(), zap.New(core)), ip)
	require.NoError(t, err)
	require.Zero(t, logs.Len(), "nothing is logged above debug on success")
}

func TestClient_Query_IPv6(t *testing.T) {
	srv := whoistest.NewServer(t, whoistest.Reply(header+"15169 | 2001:4860:4860::8888 | 2001:4860::/32 | US | arin | 2005-03-14 | GOOGLE, US\n"))
	c := newTestClient(srv, cymru.Options{})

	res, err := c.Query(context.Background(), netip.MustParseAddr("2001:4860:4860::8888"))
	require.NoError(t, err)
	require.Contains(t, res, "2001:4860::/32")
	require.Equal(t, []string{" -v 2001:4860:4860::8888\r\n"}, srv.Queries())
}

func TestClient_Query_HeaderOnlyIsEmpty(t *testing.T) {
	srv := whoistest.NewServer(t, whoistest.Reply(header))
	c := newTestClient(srv, cymru.Options{})

	res, err := c.Query(context.Background(), netip.MustParseAddr("192.0.2.1"))
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestClient_Query_EmptyResponseIsEmpty(t *testing.T) {
	srv := whoistest.NewServer(t, whoistest.Reply(""))
	c := newTestClient(srv, cymru.Options{})

	res, err := c.Query(context.Background(), netip.MustParseAddr("192.0.2.1"))
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestClient_Query_RepeatedQueriesKeepShape(t *testing.T) {
	srv := whoistest.NewServer(t, whoistest.Reply(header+dataLine+"\n"+dataLine+"\n"))
	c := newTestClient(srv, cymru.Options{})
	ip := netip.MustParseAddr("8.8.8.8")

	first, err := c.Query(context.Background(), ip)
	require.NoError(t, err)
	second, err := c.Query(context.Background(), ip)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 2, strings.Count(first, "\n")+1)
	require.NotContains(t, first, "BGP Prefix")
	require.Len(t, srv.Queries(), 2, "each query uses its own connection")
}

func TestClient_Query_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	tcpAddr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	c := cymru.New(nil, cymru.Options{Host: "127.0.0.1", Port: tcpAddr.Port, DialTimeout: time.Second})

	res, err := c.Query(context.Background(), netip.MustParseAddr("8.8.8.8"))
	require.Error(t, err)
	require.Empty(t, res)
	require.ErrorIs(t, err, serrors.ErrWhoisConnect)
	require.NotErrorIs(t, err, serrors.ErrWhoisRead)
}

func TestClient_Query_WriteFailure(t *testing.T) {
	dialer := pipeDialer{serve: func(server net.Conn) {
		_ = server.Close()
	}}
	c := cymru.New(dialer, cymru.Options{Host: "whois.example.test"})

	_, err := c.Query(context.Background(), netip.MustParseAddr("8.8.8.8"))
	require.Error(t, err)
	require.ErrorIs(t, err, serrors.ErrWhoisWrite)
	require.Contains(t, err.Error(), "whois.example.test:43")
}

func TestClient_Query_ReadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := whoistest.NewServer(t, whoistest.Hang(release))
	t.Cleanup(func() { close(release) })

	c := newTestClient(srv, cymru.Options{ReadTimeout: 200 * time.Millisecond})

	start := time.Now()
	_, err := c.Query(context.Background(), netip.MustParseAddr("8.8.8.8"))
	require.Error(t, err)
	require.ErrorIs(t, err, serrors.ErrWhoisRead)
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_Query_ContextCanceledDuringRead(t *testing.T) {
	release := make(chan struct{})
	srv := whoistest.NewServer(t, whoistest.Hang(release))
	t.Cleanup(func() { close(release) })

	c := newTestClient(srv, cymru.Options{ReadTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	res, err := c.Query(ctx, netip.MustParseAddr("8.8.8.8"))
	require.Error(t, err)
	require.Empty(t, res, "a cancelled read never yields a partial response")
	require.ErrorIs(t, err, serrors.ErrWhoisRead)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_Query_PartialDataThenCancelIsFailure(t *testing.T) {
	release := make(chan struct{})
	srv := whoistest.NewServer(t, func(_ string, conn net.Conn) {
		_, _ = conn.Write([]byte(header + dataLine + "\n"))
		<-release
	})
	t.Cleanup(func() { close(release) })

	c := newTestClient(srv, cymru.Options{ReadTimeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := c.Query(ctx, netip.MustParseAddr("8.8.8.8"))
	require.Error(t, err)
	require.Empty(t, res)
	require.ErrorIs(t, err, serrors.ErrWhoisRead)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_Query_InvalidUTF8(t *testing.T) {
	srv := whoistest.NewServer(t, whoistest.Reply(header+"15169 | \xff\xfe | bad\n"))
	c := newTestClient(srv, cymru.Options{})

	_, err := c.Query(context.Background(), netip.MustParseAddr("8.8.8.8"))
	require.Error(t, err)
	require.ErrorIs(t, err, serrors.ErrWhoisRead)
	require.Contains(t, err.Error(), "UTF-8")
}

func TestClient_Query_ResponseTooLarge(t *testing.T) {
	srv := whoistest.NewServer(t, whoistest.Reply(header+strings.Repeat(dataLine+"\n", 100)))
	c := newTestClient(srv, cymru.Options{MaxResponseBytes: 256})

	_, err := c.Query(context.Background(), netip.MustParseAddr("8.8.8.8"))
	require.Error(t, err)
	require.ErrorIs(t, err, serrors.ErrWhoisRead)
	require.Contains(t, err.Error(), "exceeds 256 bytes")
}

func TestClient_Query_InvalidAddress(t *testing.T) {
	c := cymru.New(nil, cymru.Options{})

	_, err := c.Query(context.Background(), netip.Addr{})
	require.ErrorIs(t, err, serrors.ErrBadRequest)
}
