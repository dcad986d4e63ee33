// Package cymru provides a whois.Client implementation backed by the Team
// Cymru IP-to-ASN WHOIS service and its bulk query syntax.
package cymru

import (
	"asnlookup/internal/config"
	"asnlookup/pkg/logger"
	"asnlookup/pkg/serrors"
	"asnlookup/pkg/whois"
	"context"
	"io"
	"net"
	"net/netip"
	"strconv"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// DefaultHost is the Team Cymru WHOIS server.
	DefaultHost = "whois.cymru.com"
	// DefaultPort is the standard WHOIS port.
	DefaultPort = 43
)

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options configure the WHOIS client. Zero durations disable the matching deadline.
type Options struct {
	// Host is the WHOIS server hostname.
	Host string
	// Port is the WHOIS server TCP port.
	Port int
	// DialTimeout bounds connection establishment when the default dialer is used.
	DialTimeout time.Duration
	// WriteTimeout bounds sending the query line.
	WriteTimeout time.Duration
	// ReadTimeout bounds reading the whole response. It runs from the moment
	// the connection is established plus WriteTimeout.
	ReadTimeout time.Duration
	// MaxResponseBytes caps the response size. Zero means no cap.
	MaxResponseBytes int64
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		Host:             cfg.Whois.Host,
		Port:             cfg.Whois.Port,
		DialTimeout:      cfg.Whois.DialTimeout,
		WriteTimeout:     cfg.Whois.WriteTimeout,
		ReadTimeout:      cfg.Whois.ReadTimeout,
		MaxResponseBytes: cfg.Whois.MaxResponseBytes,
	}
}

// Client sends one verbose bulk query per call over a fresh TCP connection.
// It is safe for concurrent use.
type Client struct {
	dialer Dialer
	addr   string
	opts   Options
}

// Ensure Client conforms to the whois.Client interface at compile time.
var _ whois.Client = (*Client)(nil)

// New constructs a Client. A nil dialer means a *net.Dialer using opts.DialTimeout.
func New(dialer Dialer, opts Options) *Client {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if dialer == nil {
		dialer = &net.Dialer{Timeout: opts.DialTimeout}
	}

	return &Client{
		dialer: dialer,
		addr:   net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		opts:   opts,
	}
}

// Addr returns the host:port the client connects to.
func (c *Client) Addr() string {
	return c.addr
}

// FormatQuery returns the query line for ip: a leading space, the -v flag for
// verbose output, the address and a CRLF terminator.
func FormatQuery(ip netip.Addr) string {
	return " -v " + ip.WithZone("").String() + "\r\n"
}

// Query connects to the server, sends the query for ip, reads until the server
// closes the connection and returns the reply without its header line.
func (c *Client) Query(ctx context.Context, ip netip.Addr) (string, error) {
	if !ip.IsValid() {
		return "", serrors.With(serrors.ErrBadRequest, "invalid address")
	}

	q := &query{
		ctx:   logger.WithFields(ctx, zap.Stringer("ip", ip), zap.String("server", c.addr)),
		state: whois.StateIdle,
	}

	raw, err := c.exchange(q, ip)
	if err != nil {
		q.transition(whois.StateFailed)

		return "", err
	}
	q.transition(whois.StateComplete)

	shaped := whois.ShapeResponse(raw)
	if logger.IsDebug(q.ctx) {
		logger.Debug(q.ctx, "whois query finished",
			zap.Int("rawBytes", len(raw)),
			zap.Int("lines", len(whois.SplitLines(shaped))))
	}

	return shaped, nil
}

func (c *Client) exchange(q *query, ip netip.Addr) (string, error) {
	ctx := q.ctx

	q.transition(whois.StateConnecting)
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", serrors.Wrap(serrors.ErrWhoisConnect, cause(ctx, err), "could not connect to %s", c.addr)
	}
	defer func() {
		_ = conn.Close()
	}()
	q.transition(whois.StateConnected)

	// deadlines are fixed before the cancellation hook so the hook is never overridden.
	now := time.Now()
	if c.opts.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(now.Add(c.opts.WriteTimeout))
	}
	if c.opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(now.Add(c.opts.WriteTimeout + c.opts.ReadTimeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := io.WriteString(conn, FormatQuery(ip)); err != nil {
		return "", serrors.Wrap(serrors.ErrWhoisWrite, cause(ctx, err), "could not send query to %s", c.addr)
	}
	q.transition(whois.StateSent)

	q.transition(whois.StateReadingResponse)
	var r io.Reader = conn
	if c.opts.MaxResponseBytes > 0 {
		r = io.LimitReader(conn, c.opts.MaxResponseBytes+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", serrors.Wrap(serrors.ErrWhoisRead, cause(ctx, err), "could not read response from %s", c.addr)
	}
	if c.opts.MaxResponseBytes > 0 && int64(len(b)) > c.opts.MaxResponseBytes {
		return "", serrors.With(serrors.ErrWhoisRead,
			"response from %s exceeds %d bytes", c.addr, c.opts.MaxResponseBytes)
	}
	if !utf8.Valid(b) {
		return "", serrors.With(serrors.ErrWhoisRead, "response from %s is not valid UTF-8", c.addr)
	}

	return string(b), nil
}

// cause prefers the context's cancellation cause over the I/O error it triggered.
func cause(ctx context.Context, err error) error {
	if cerr := context.Cause(ctx); cerr != nil {
		return cerr
	}

	return err
}

// query tracks the state of a single exchange.
type query struct {
	ctx   context.Context //nolint: containedctx
	state whois.State
}

func (q *query) transition(next whois.State) {
	if !q.state.Next(next) {
		logger.Warn(q.ctx, "unexpected whois state transition",
			zap.Stringer("from", q.state),
			zap.Stringer("to", next))
	}
	logger.Debug(q.ctx, "whois state", zap.Stringer("from", q.state), zap.Stringer("to", next))
	q.state = next
}
