package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"context"
)

func init() {
	DefaultRegistry.Register("tcp", NewTCP())
}

// TCPTransport implements Transport over TCP + TLS 1.3, as a fallback
// when QUIC (UDP) is blocked on the network path to the storage node.
type TCPTransport struct{}

// NewTCP returns a TCP+TLS Transport.
func NewTCP() Transport {
	return &TCPTransport{}
}

func (t *TCPTransport) Name() string     { return "tcp" }
func (t *TCPTransport) DefaultPort() int { return DefaultPort }

func (t *TCPTransport) Listen(ctx context.Context, addr string, tlsConfig *tls.Config) (Listener, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve TCP address: %w", err)
	}

	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: create TCP listener: %w", err)
	}

	serverTLSConfig := cloneOrDefault(tlsConfig)
	if serverTLSConfig.MinVersion == 0 {
		serverTLSConfig.MinVersion = tls.VersionTLS13
	}

	return &tcpListener{listener: listener, tlsConfig: serverTLSConfig}, nil
}

func (t *TCPTransport) Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (Conn, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	clientTLSConfig := cloneOrDefault(tlsConfig)
	if clientTLSConfig.MinVersion == 0 {
		clientTLSConfig.MinVersion = tls.VersionTLS13
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, clientTLSConfig)
	if err != nil {
		return nil, fmt.Errorf("transport: dial TCP+TLS: %w", err)
	}

	return &tcpConn{conn: conn}, nil
}

type tcpListener struct {
	listener  *net.TCPListener
	tlsConfig *tls.Config
}

func (l *tcpListener) Accept(ctx context.Context) (Conn, error) {
	if deadline, ok := ctx.Deadline(); ok {
		l.listener.SetDeadline(deadline)
	}

	tcpConn, err := l.listener.AcceptTCP()
	if err != nil {
		return nil, err
	}

	tlsConn := tls.Server(tcpConn, l.tlsConfig)
	if err := tlsConn.Handshake(); err != nil {
		tcpConn.Close()
		return nil, fmt.Errorf("transport: TLS handshake: %w", err)
	}

	return &tcpConn{conn: tlsConn}, nil
}

func (l *tcpListener) Close() error   { return l.listener.Close() }
func (l *tcpListener) Addr() net.Addr { return l.listener.Addr() }

type tcpConn struct {
	conn *tls.Conn
}

func (c *tcpConn) Read(b []byte) (int, error)  { return c.conn.Read(b) }
func (c *tcpConn) Write(b []byte) (int, error) { return c.conn.Write(b) }
func (c *tcpConn) Close() error                { return c.conn.Close() }

func (c *tcpConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *tcpConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *tcpConn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *tcpConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *tcpConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

func (c *tcpConn) ConnectionState() tls.ConnectionState {
	return c.conn.ConnectionState()
}
