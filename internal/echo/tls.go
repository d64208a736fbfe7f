package echo

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strings"

	"echofixture/internal/shared/logger"
	"echofixture/internal/shared/types"
)

// ParseVersion maps "1.0" .. "1.3" to a crypto/tls version constant.
// An empty string yields 0, which leaves the choice to crypto/tls.
func ParseVersion(v string) (uint16, error) {
	switch strings.TrimSpace(v) {
	case "":
		return 0, nil
	case "1.0":
		return tls.VersionTLS10, nil
	case "1.1":
		return tls.VersionTLS11, nil
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	}
	return 0, fmt.Errorf("unknown TLS version %q", v)
}

// LoadTLSConfig loads the server identity and builds an immutable server tls.Config.
func LoadTLSConfig(c types.TLSConf) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: load key pair (%s, %s): %w", ErrTLSProvisioning, c.CertFile, c.KeyFile, err)
	}

	minVersion, err := ParseVersion(c.MinVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: min_version: %w", ErrTLSProvisioning, err)
	}
	maxVersion, err := ParseVersion(c.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: max_version: %w", ErrTLSProvisioning, err)
	}
	if minVersion != 0 && maxVersion != 0 && minVersion > maxVersion {
		return nil, fmt.Errorf("%w: min_version %s is above max_version %s", ErrTLSProvisioning, c.MinVersion, c.MaxVersion)
	}

	config := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
		MaxVersion:   maxVersion,
	}

	if len(c.CipherSuites) > 0 {
		id := make(map[string]uint16)
		for _, s := range tls.CipherSuites() {
			id[s.Name] = s.ID
		}
		for _, s := range tls.InsecureCipherSuites() {
			id[s.Name] = s.ID
		}
		for _, n := range strings.Split(c.CipherSuites, ":") {
			if id[n] != 0 {
				config.CipherSuites = append(config.CipherSuites, id[n])
			} else {
				logger.Warn().Str("cipher_suite", n).Msg("Ignoring unknown cipher suite")
			}
		}
	}

	if len(c.KeyLog) > 0 && c.KeyLog != "none" {
		writer, err := os.OpenFile(c.KeyLog, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("%w: key_log: %w", ErrTLSProvisioning, err)
		}
		config.KeyLogWriter = writer
	}

	return config, nil
}

// Handshake performs the server side TLS handshake on conn.
// There is no fallback to plaintext.
func Handshake(ctx context.Context, conn net.Conn, config *tls.Config) (*tls.Conn, error) {
	tlsConn := tls.Server(conn, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("%w with %s: %w", ErrHandshake, conn.RemoteAddr(), err)
	}
	return tlsConn, nil
}
