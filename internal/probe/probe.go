// Package probe is the client side of the echo fixture: it dials the server
// over plain TCP, crypto/tls or a uTLS fingerprinted ClientHello and checks
// that what comes back matches what was sent.
package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/crypto/blake2b"

	"echofixture/internal/echo"
)

const (
	ModeTCP  = "tcp"
	ModeTLS  = "tls"
	ModeUTLS = "utls"
)

var fingerprints = map[string]utls.ClientHelloID{
	"chrome":     utls.HelloChrome_Auto,
	"firefox":    utls.HelloFirefox_Auto,
	"safari":     utls.HelloSafari_Auto,
	"ios":        utls.HelloIOS_Auto,
	"edge":       utls.HelloEdge_Auto,
	"randomized": utls.HelloRandomized,
	"golang":     utls.HelloGolang,
}

// Options describes how to reach the fixture.
type Options struct {
	Address     string
	Mode        string // tcp, tls or utls
	ServerName  string // SNI and verification name, defaults to the address host
	Insecure    bool
	RootCAFile  string
	RootCAPEM   []byte
	Fingerprint string // uTLS ClientHello preset, only for ModeUTLS
	MinVersion  string
	MaxVersion  string
	Timeout     time.Duration
}

// State is the negotiated TLS session summary. Zero for plain TCP.
type State struct {
	Version     uint16
	CipherSuite uint16
}

func (s State) String() string {
	if s.Version == 0 {
		return "plaintext"
	}
	return tls.VersionName(s.Version) + " " + tls.CipherSuiteName(s.CipherSuite)
}

// Result is the outcome of one Exchange.
type Result struct {
	Sent     []byte
	Received []byte
	Match    bool
	Digest   string // BLAKE2b-256 of Received
}

// Client is a connected probe.
type Client struct {
	conn    net.Conn
	state   State
	timeout time.Duration
}

// Dial connects to opts.Address and completes the TLS handshake if the mode asks for one.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	mode := strings.ToLower(opts.Mode)
	if mode == "" {
		mode = ModeTCP
	}
	if mode != ModeTCP && mode != ModeTLS && mode != ModeUTLS {
		return nil, fmt.Errorf("unknown probe mode %q", opts.Mode)
	}

	dialer := &net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, fmt.Errorf("probe TCP dial %s failed: %w", opts.Address, err)
	}

	c := &Client{conn: conn, timeout: opts.Timeout}
	if mode == ModeTCP {
		return c, nil
	}

	handshakeCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		handshakeCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	switch mode {
	case ModeTLS:
		err = c.handshakeStd(handshakeCtx, opts)
	case ModeUTLS:
		err = c.handshakeUTLS(handshakeCtx, opts)
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshakeStd(ctx context.Context, opts Options) error {
	roots, err := loadRoots(opts)
	if err != nil {
		return err
	}
	minVersion, maxVersion, err := parseVersions(opts)
	if err != nil {
		return err
	}
	tlsConn := tls.Client(c.conn, &tls.Config{
		ServerName:         serverName(opts),
		RootCAs:            roots,
		InsecureSkipVerify: opts.Insecure,
		MinVersion:         minVersion,
		MaxVersion:         maxVersion,
	})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("probe TLS handshake failed: %w", err)
	}
	st := tlsConn.ConnectionState()
	c.conn = tlsConn
	c.state = State{Version: st.Version, CipherSuite: st.CipherSuite}
	return nil
}

func (c *Client) handshakeUTLS(ctx context.Context, opts Options) error {
	name := strings.ToLower(opts.Fingerprint)
	if name == "" {
		name = "chrome"
	}
	helloID, ok := fingerprints[name]
	if !ok {
		return fmt.Errorf("unknown uTLS fingerprint %q", opts.Fingerprint)
	}
	roots, err := loadRoots(opts)
	if err != nil {
		return err
	}
	minVersion, maxVersion, err := parseVersions(opts)
	if err != nil {
		return err
	}
	uConn := utls.UClient(c.conn, &utls.Config{
		ServerName:         serverName(opts),
		RootCAs:            roots,
		InsecureSkipVerify: opts.Insecure,
		MinVersion:         minVersion,
		MaxVersion:         maxVersion,
	}, helloID)
	if err := uConn.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("probe uTLS (%s) handshake failed: %w", name, err)
	}
	st := uConn.ConnectionState()
	c.conn = uConn
	c.state = State{Version: st.Version, CipherSuite: st.CipherSuite}
	return nil
}

// Exchange sends payload and reads back exactly len(payload) bytes.
func (c *Client) Exchange(payload []byte) (Result, error) {
	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return Result{}, err
		}
	}

	// Write concurrently so a payload larger than the socket buffers cannot
	// stall against the echo.
	writeErr := make(chan error, 1)
	go func() {
		_, err := c.conn.Write(payload)
		writeErr <- err
	}()

	received := make([]byte, len(payload))
	n, readErr := io.ReadFull(c.conn, received)
	received = received[:n]
	if err := <-writeErr; err != nil {
		return Result{}, fmt.Errorf("probe write failed: %w", err)
	}

	res := Result{
		Sent:     payload,
		Received: received,
		Match:    bytes.Equal(payload, received),
		Digest:   Digest(received),
	}
	if readErr != nil {
		return res, fmt.Errorf("probe read failed after %d of %d bytes: %w", n, len(payload), readErr)
	}
	return res, nil
}

// ConnectionState reports the negotiated TLS parameters.
func (c *Client) ConnectionState() State {
	return c.state
}

func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Digest returns the BLAKE2b-256 hex digest used in Result.
func Digest(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func serverName(opts Options) string {
	if opts.ServerName != "" {
		return opts.ServerName
	}
	host, _, err := net.SplitHostPort(opts.Address)
	if err != nil {
		return opts.Address
	}
	return host
}

func loadRoots(opts Options) (*x509.CertPool, error) {
	pemData := opts.RootCAPEM
	if opts.RootCAFile != "" {
		data, err := os.ReadFile(opts.RootCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read root CA file: %w", err)
		}
		pemData = data
	}
	if len(pemData) == 0 {
		return nil, nil
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, fmt.Errorf("no certificates found in root CA data")
	}
	return pool, nil
}

func parseVersions(opts Options) (uint16, uint16, error) {
	minVersion, err := echo.ParseVersion(opts.MinVersion)
	if err != nil {
		return 0, 0, err
	}
	maxVersion, err := echo.ParseVersion(opts.MaxVersion)
	if err != nil {
		return 0, 0, err
	}
	return minVersion, maxVersion, nil
}
