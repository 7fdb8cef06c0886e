// Package transport provides the transport-layer abstraction the live
// network client dials through: QUIC by default, TCP+TLS as a fallback.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// DefaultPort is the default port the storage network listens on.
const DefaultPort = 27488

// ALPN is the protocol negotiated over TLS for both transports.
const ALPN = "netup/1"

// Transport is a dialable/listenable network protocol (QUIC or TCP+TLS).
type Transport interface {
	Listen(ctx context.Context, addr string, tlsConfig *tls.Config) (Listener, error)
	Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (Conn, error)
	Name() string
	DefaultPort() int
}

// Listener accepts incoming connections.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
	Addr() net.Addr
}

// Conn is a bidirectional, deadline-capable, TLS-backed connection.
type Conn interface {
	Read(b []byte) (n int, err error)
	Write(b []byte) (n int, err error)
	Close() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	ConnectionState() tls.ConnectionState
}

// Config holds transport configuration shared by both transports.
type Config struct {
	TLSConfig      *tls.Config
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
	MaxIdleTimeout time.Duration
}

// DefaultConfig returns sane defaults for dialing the storage network.
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout: 30 * time.Second,
		KeepAlive:      30 * time.Second,
		MaxIdleTimeout: 5 * time.Minute,
	}
}

// Registry selects a Transport implementation by name ("quic" or "tcp").
type Registry struct {
	transports map[string]Transport
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{transports: make(map[string]Transport)}
}

// Register adds a transport under name.
func (r *Registry) Register(name string, t Transport) {
	r.transports[name] = t
}

// Get returns the transport registered under name.
func (r *Registry) Get(name string) (Transport, bool) {
	t, ok := r.transports[name]
	return t, ok
}

// DefaultRegistry has "quic" and "tcp" registered, QUIC preferred.
var DefaultRegistry = NewRegistry()
