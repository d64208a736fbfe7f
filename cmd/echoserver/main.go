package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alexflint/go-arg"

	"echofixture/internal/echo"
	"echofixture/internal/shared/config"
	"echofixture/internal/shared/logger"
	"echofixture/internal/shared/types"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

type args struct {
	Port     *int   `arg:"positional" help:"TCP port to listen on (falls back to [server] port or ECHO_PORT)"`
	Config   string `arg:"--config" help:"path to an echoserver.ini file"`
	TLS      bool   `arg:"--tls" help:"wrap the accepted connection in TLS"`
	Cert     string `arg:"--cert" help:"PEM certificate chain (default server.crt)"`
	Key      string `arg:"--key" help:"PEM private key (default server.key)"`
	TLSMin   string `arg:"--tls-min" help:"minimum TLS version: 1.0, 1.1, 1.2 or 1.3"`
	TLSMax   string `arg:"--tls-max" help:"maximum TLS version: 1.0, 1.1, 1.2 or 1.3"`
	LogLevel string `arg:"--log-level" help:"debug, info, warn or error"`
}

func (args) Description() string {
	return "Accepts a single TCP (or TLS) client and echoes every byte back until it disconnects."
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	var a args
	p, err := arg.NewParser(arg.Config{Program: "echoserver"}, &a)
	if err != nil {
		fmt.Fprintf(stderr, "Fatal: %v\n", err)
		return exitFatal
	}
	if err := p.Parse(argv); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			p.WriteHelp(stdout)
			return exitOK
		}
		return usageError(p, stderr, err.Error())
	}

	cfg := types.NewDefaultConfig()
	if err := config.LoadIni(cfg, a.Config); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(stderr, "Fatal: %v\n", err)
		return exitUsage
	}
	applyArgs(cfg, &a)

	if !cfg.ValidMode() {
		return usageError(p, stderr, fmt.Sprintf("unknown mode %q, want %q or %q", cfg.ServerConf.Mode, types.ModeTCP, types.ModeTLS))
	}
	if cfg.ServerConf.Port == -1 {
		return usageError(p, stderr, "a port is required")
	}
	if cfg.ServerConf.Port < 0 || cfg.ServerConf.Port > 65535 {
		return usageError(p, stderr, fmt.Sprintf("port %d is out of range 0-65535", cfg.ServerConf.Port))
	}

	if err := logger.InitWithWriter(cfg.LogConf, stderr); err != nil {
		fmt.Fprintf(stderr, "Fatal: Failed to initialize logger: %v\n", err)
		return exitFatal
	}

	stats, err := echo.New(cfg).Run()
	if err != nil {
		logger.Error().Err(err).Int("port", cfg.ServerConf.Port).Msg("Echo server failed")
		return exitFatal
	}
	logger.Info().
		Uint64("bytes_echoed", stats.Uplink).
		Msg("Peer closed the connection, exiting.")
	return exitOK
}

func applyArgs(cfg *types.Config, a *args) {
	if a.Port != nil {
		cfg.ServerConf.Port = *a.Port
	}
	if a.TLS {
		cfg.ServerConf.Mode = types.ModeTLS
	}
	if a.Cert != "" {
		cfg.TLSConf.CertFile = a.Cert
	}
	if a.Key != "" {
		cfg.TLSConf.KeyFile = a.Key
	}
	if a.TLSMin != "" {
		cfg.TLSConf.MinVersion = a.TLSMin
	}
	if a.TLSMax != "" {
		cfg.TLSConf.MaxVersion = a.TLSMax
	}
	if a.LogLevel != "" {
		cfg.LogConf.Level = a.LogLevel
	}
}

func usageError(p *arg.Parser, stderr io.Writer, msg string) int {
	p.WriteUsage(stderr)
	fmt.Fprintf(stderr, "error: %s\n", msg)
	return exitUsage
}
