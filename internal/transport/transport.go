// Package transport wraps a raw TCP connection with TLS and exposes the
// deadline-bounded read/write primitives the framing codec needs. No
// plaintext frame is ever exchanged: the handshake runs before the first
// byte reaches internal/frame.
package transport

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"
)

// Conn is a TLS-wrapped connection bound to a fixed idle timeout applied
// to every blocking read and write.
type Conn struct {
	tls     *tls.Conn
	timeout time.Duration
}

// Config carries the server's TLS material: certificate and key read
// from configured paths.
type Config struct {
	CertFile string
	KeyFile  string
}

// LoadServerTLSConfig builds a *tls.Config from the certificate and key
// paths in cfg. Client certificate verification is not requested.
func LoadServerTLSConfig(cfg Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("transport: load key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Handshake wraps raw in TLS server mode using tlsConfig, performs the
// handshake immediately, and binds timeout to every subsequent read/write.
func Handshake(raw net.Conn, tlsConfig *tls.Config, timeout time.Duration) (*Conn, error) {
	tc := tls.Server(raw, tlsConfig)
	if err := tc.SetDeadline(time.Now().Add(timeout)); err != nil {
		tc.Close()
		return nil, fmt.Errorf("transport: set handshake deadline: %w", err)
	}
	if err := tc.Handshake(); err != nil {
		tc.Close()
		return nil, fmt.Errorf("transport: tls handshake: %w", err)
	}
	return &Conn{tls: tc, timeout: timeout}, nil
}

// ReadExact reads exactly len(buf) bytes, bounded by the connection's
// idle timeout. A short read, timeout, or closed connection surfaces as
// a fatal framing error to the caller.
func (c *Conn) ReadExact(buf []byte) error {
	if err := c.tls.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("transport: set read deadline: %w", err)
	}
	_, err := io.ReadFull(c.tls, buf)
	if err != nil {
		return fmt.Errorf("transport: read exact: %w", err)
	}
	return nil
}

// WriteAll writes buf in full, bounded by the connection's idle timeout.
func (c *Conn) WriteAll(buf []byte) error {
	if err := c.tls.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	_, err := c.tls.Write(buf)
	if err != nil {
		return fmt.Errorf("transport: write all: %w", err)
	}
	return nil
}

// Read implements io.Reader with the connection's idle timeout applied
// per call, so internal/frame.Decode can read directly from a Conn.
func (c *Conn) Read(buf []byte) (int, error) {
	if err := c.tls.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, fmt.Errorf("transport: set read deadline: %w", err)
	}
	return c.tls.Read(buf)
}

// Write implements io.Writer with the connection's idle timeout applied
// per call.
func (c *Conn) Write(buf []byte) (int, error) {
	if err := c.tls.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, fmt.Errorf("transport: set write deadline: %w", err)
	}
	return c.tls.Write(buf)
}

// RemoteIP returns the remote address without its port, for logging.
func (c *Conn) RemoteIP() string {
	host, _, err := net.SplitHostPort(c.tls.RemoteAddr().String())
	if err != nil {
		return c.tls.RemoteAddr().String()
	}
	return host
}

// Close closes the underlying TLS connection.
func (c *Conn) Close() error {
	return c.tls.Close()
}
