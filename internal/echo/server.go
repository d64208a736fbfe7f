package echo

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"echofixture/internal/shared"
	"echofixture/internal/shared/logger"
	"echofixture/internal/shared/types"
)

// Server composes the listener, the optional TLS handshake and the echo loop
// for a single peer.
type Server struct {
	cfg      *types.Config
	listener *Listener
	tlsConf  *tls.Config
	log      zerolog.Logger
}

// New returns a Server for cfg. Nothing is bound until Listen.
func New(cfg *types.Config) *Server {
	return &Server{
		cfg: cfg,
		log: logger.WithComponent("echo"),
	}
}

// Listen prepares the server without blocking. In TLS mode the certificate
// and key are loaded first, so provisioning errors surface before any bind.
func (s *Server) Listen() error {
	if !s.cfg.ValidMode() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, s.cfg.ServerConf.Mode)
	}
	if s.cfg.IsTLS() {
		tlsConf, err := LoadTLSConfig(s.cfg.TLSConf)
		if err != nil {
			return err
		}
		s.tlsConf = tlsConf
	}

	l, err := Listen(s.cfg.ServerConf.Port)
	if err != nil {
		return err
	}
	s.listener = l

	s.log.Info().
		Str("listen_addr", l.Addr().String()).
		Str("mode", s.cfg.ServerConf.Mode).
		Msgf("Waiting for the client to connect to ':%d'.", l.Port())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts one peer and echoes until it goes away. The listener is
// closed on return. Transport errors during the echo are not reported as
// failures.
func (s *Server) Serve() (types.TrafficStats, error) {
	if s.listener == nil {
		return types.TrafficStats{}, errors.New("echo: Serve called before Listen")
	}
	defer s.listener.Close()

	conn, err := s.listener.AcceptOne()
	if err != nil {
		return types.TrafficStats{}, err
	}
	defer conn.Close()

	l := s.log.With().
		Str("session_id", uuid.NewString()).
		Str("client_addr", conn.RemoteAddr().String()).
		Logger()
	l.Info().Msg("Client connected.")

	stream := conn
	if s.tlsConf != nil {
		tlsConn, err := Handshake(context.Background(), conn, s.tlsConf)
		if err != nil {
			l.Error().Err(err).Msg("TLS handshake failed")
			return types.TrafficStats{}, err
		}
		state := tlsConn.ConnectionState()
		l.Info().
			Str("tls_version", tls.VersionName(state.Version)).
			Str("cipher_suite", tls.CipherSuiteName(state.CipherSuite)).
			Msg("TLS handshake complete")
		stream = tlsConn
	}

	counted := shared.NewCountedConn(stream)
	loopErr := Loop(counted)
	stats := counted.Stats()

	l.Info().
		AnErr("reason", loopErr).
		Uint64("bytes_in", stats.Downlink).
		Uint64("bytes_out", stats.Uplink).
		Msg("Client disconnected.")
	return stats, nil
}

// Run is Listen followed by Serve.
func (s *Server) Run() (types.TrafficStats, error) {
	if err := s.Listen(); err != nil {
		return types.TrafficStats{}, err
	}
	return s.Serve()
}
