package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

func init() {
	DefaultRegistry.Register("quic", NewQUIC())
}

// QUICTransport implements Transport over QUIC + TLS 1.3.
type QUICTransport struct{}

// NewQUIC returns a QUIC Transport.
func NewQUIC() Transport {
	return &QUICTransport{}
}

func (t *QUICTransport) Name() string      { return "quic" }
func (t *QUICTransport) DefaultPort() int  { return DefaultPort }

// Listen starts listening for QUIC connections on addr.
func (t *QUICTransport) Listen(ctx context.Context, addr string, tlsConfig *tls.Config) (Listener, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve UDP address: %w", err)
	}

	quicTLSConfig := cloneOrDefault(tlsConfig)

	listener, err := quic.ListenAddr(udpAddr.String(), quicTLSConfig, &quic.Config{
		MaxIdleTimeout:  5 * time.Minute,
		KeepAlivePeriod: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: create QUIC listener: %w", err)
	}

	return &quicListener{listener: listener}, nil
}

// Dial establishes a QUIC connection to addr and opens a single stream.
func (t *QUICTransport) Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (Conn, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	quicTLSConfig := cloneOrDefault(tlsConfig)

	connection, err := quic.DialAddr(ctx, addr, quicTLSConfig, &quic.Config{
		MaxIdleTimeout:  5 * time.Minute,
		KeepAlivePeriod: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: dial QUIC: %w", err)
	}

	stream, err := connection.OpenStreamSync(ctx)
	if err != nil {
		connection.CloseWithError(0, "failed to open stream")
		return nil, fmt.Errorf("transport: open stream: %w", err)
	}

	return &quicConn{connection: connection, stream: stream}, nil
}

func cloneOrDefault(tlsConfig *tls.Config) *tls.Config {
	cfg := tlsConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{ALPN}
	}
	return cfg
}

type quicListener struct {
	listener *quic.Listener
}

func (l *quicListener) Accept(ctx context.Context) (Conn, error) {
	connection, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := connection.AcceptStream(ctx)
	if err != nil {
		connection.CloseWithError(0, "failed to accept stream")
		return nil, fmt.Errorf("transport: accept stream: %w", err)
	}
	return &quicConn{connection: connection, stream: stream}, nil
}

func (l *quicListener) Close() error    { return l.listener.Close() }
func (l *quicListener) Addr() net.Addr  { return l.listener.Addr() }

type quicConn struct {
	connection *quic.Conn
	stream     *quic.Stream
}

func (c *quicConn) Read(b []byte) (int, error)  { return c.stream.Read(b) }
func (c *quicConn) Write(b []byte) (int, error) { return c.stream.Write(b) }

func (c *quicConn) Close() error {
	if err := c.stream.Close(); err != nil {
		c.connection.CloseWithError(0, "stream close error")
		return err
	}
	return c.connection.CloseWithError(0, "normal close")
}

func (c *quicConn) LocalAddr() net.Addr  { return c.connection.LocalAddr() }
func (c *quicConn) RemoteAddr() net.Addr { return c.connection.RemoteAddr() }

func (c *quicConn) SetDeadline(t time.Time) error      { return c.stream.SetDeadline(t) }
func (c *quicConn) SetReadDeadline(t time.Time) error  { return c.stream.SetReadDeadline(t) }
func (c *quicConn) SetWriteDeadline(t time.Time) error { return c.stream.SetWriteDeadline(t) }

func (c *quicConn) ConnectionState() tls.ConnectionState {
	return c.connection.ConnectionState().TLS
}
