package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"syscall"
	"time"

	"bgpd/message"
)

// Config describes how to establish one peer's TCP connection (spec.md
// §4.6, SPEC_FULL.md §10).
type Config struct {
	LocalAddr  netip.Addr // zero value: let the kernel pick
	RemoteAddr netip.Addr
	RemotePort uint16
	MD5Key     string // TCP MD5 signature (RFC 2385); empty disables it
	TTL        int    // GTSM/ttl-security hop count; 0 disables it
	GTSMCheck  bool   // if set, also install IP_MINTTL so short-TTL packets are dropped in-kernel
}

// Connection wraps one established TCP socket with BGP framing: a
// resumable reader that retains a partial header or body across calls that
// would otherwise block, and a writer that retries on partial sends.
type Connection struct {
	conn net.Conn

	readBuf []byte // bytes read but not yet consumed into a full message
}

// Dial opens an active connection to cfg.RemoteAddr, applying MD5/TTL/GTSM
// socket options before the TCP handshake completes (the options must be
// set pre-connect for TCP_MD5SIG to cover the SYN).
func Dial(ctx context.Context, cfg Config) (*Connection, error) {
	dialer := net.Dialer{
		LocalAddr: localTCPAddr(cfg.LocalAddr),
		Control: func(_, _ string, c syscall.RawConn) error {
			return applySocketOptions(c, cfg)
		},
	}
	remote := net.JoinHostPort(cfg.RemoteAddr.String(), fmt.Sprintf("%d", cfg.RemotePort))
	conn, err := dialer.DialContext(ctx, "tcp", remote)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", remote, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true) // BGP messages should be pushed promptly (RFC 4271 Appendix E)
	}
	return &Connection{conn: conn}, nil
}

// Listener accepts passive connections with the same pre-accept socket
// options applied to the listening socket.
type Listener struct {
	ln net.Listener
}

func Listen(local netip.AddrPort, cfg Config) (*Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return applySocketOptions(c, cfg)
		},
	}
	ln, err := lc.Listen(context.Background(), "tcp", local.String())
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", local, err)
	}
	return &Listener{ln: ln}, nil
}

func (l *Listener) Accept() (*Connection, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &Connection{conn: conn}, nil
}

func (l *Listener) Close() error { return l.ln.Close() }

func localTCPAddr(addr netip.Addr) *net.TCPAddr {
	if !addr.IsValid() {
		return nil
	}
	return &net.TCPAddr{IP: net.IP(addr.AsSlice())}
}

func (c *Connection) Close() error { return c.conn.Close() }

func (c *Connection) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// ReadMessage reads exactly one framed BGP message, retaining any partial
// header or body across calls that returned early on a would-block read
// (the session driver's poll loop calls this repeatedly against a
// non-blocking or deadline-bound socket).
func (c *Connection) ReadMessage(maxLength int) (message.Header, []byte, error) {
	for len(c.readBuf) < message.HeaderLength {
		if err := c.fill(message.HeaderLength - len(c.readBuf)); err != nil {
			return message.Header{}, nil, err
		}
	}
	h, err := message.ParseHeader(c.readBuf[:message.HeaderLength], maxLength)
	if err != nil {
		return message.Header{}, nil, err
	}
	total := int(h.Length)
	for len(c.readBuf) < total {
		if err := c.fill(total - len(c.readBuf)); err != nil {
			return message.Header{}, nil, err
		}
	}
	body := append([]byte(nil), c.readBuf[message.HeaderLength:total]...)
	c.readBuf = append([]byte(nil), c.readBuf[total:]...)
	return h, body, nil
}

func (c *Connection) fill(want int) error {
	buf := make([]byte, want)
	n, err := c.conn.Read(buf)
	if n > 0 {
		c.readBuf = append(c.readBuf, buf[:n]...)
	}
	if err != nil {
		return fmt.Errorf("transport: read: %w", err)
	}
	return nil
}

// WriteMessage writes a fully framed message, retrying on short writes
// (a non-blocking socket can accept only part of the buffer per call).
func (c *Connection) WriteMessage(wire []byte) error {
	for len(wire) > 0 {
		n, err := c.conn.Write(wire)
		if err != nil {
			return fmt.Errorf("transport: write: %w", err)
		}
		wire = wire[n:]
	}
	return nil
}

