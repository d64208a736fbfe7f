package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alexflint/go-arg"

	"echofixture/internal/probe"
	"echofixture/internal/shared/logger"
	"echofixture/internal/shared/types"
)

type args struct {
	Address     string        `arg:"positional,required" help:"host:port of the echo fixture, e.g. localhost:33000"`
	Payload     string        `arg:"positional" default:"Hello!" help:"bytes to send on each round"`
	Mode        string        `arg:"--mode" default:"tcp" help:"tcp, tls or utls"`
	ServerName  string        `arg:"--sni" help:"TLS server name (defaults to the address host)"`
	Insecure    bool          `arg:"--insecure" help:"skip certificate verification"`
	CAFile      string        `arg:"--ca" help:"PEM file with the certificate to trust"`
	Fingerprint string        `arg:"--fingerprint" default:"chrome" help:"uTLS ClientHello: chrome, firefox, safari, ios, edge, randomized, golang"`
	TLSMin      string        `arg:"--tls-min" help:"minimum TLS version"`
	TLSMax      string        `arg:"--tls-max" help:"maximum TLS version"`
	Count       int           `arg:"--count" default:"1" help:"number of rounds"`
	Interval    time.Duration `arg:"--interval" default:"1s" help:"pause between rounds"`
	Timeout     time.Duration `arg:"--timeout" default:"10s" help:"dial, handshake and per-round timeout"`
	LogLevel    string        `arg:"--log-level" default:"info"`
}

func (args) Description() string {
	return "Connects to an echo fixture, sends a payload and verifies the echo."
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	var a args
	p, err := arg.NewParser(arg.Config{Program: "echoprobe"}, &a)
	if err != nil {
		fmt.Fprintf(stderr, "Fatal: %v\n", err)
		return 1
	}
	if err := p.Parse(argv); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			p.WriteHelp(stdout)
			return 0
		}
		return usageError(p, stderr, err.Error())
	}
	if a.Count < 1 {
		return usageError(p, stderr, fmt.Sprintf("--count must be at least 1, got %d", a.Count))
	}

	if err := logger.InitWithWriter(types.LogConf{Level: a.LogLevel}, stderr); err != nil {
		fmt.Fprintf(stderr, "Fatal: Failed to initialize logger: %v\n", err)
		return 1
	}

	logger.Info().Str("mode", a.Mode).Msgf("Connecting to '%s'...", a.Address)
	c, err := probe.Dial(context.Background(), probe.Options{
		Address:     a.Address,
		Mode:        a.Mode,
		ServerName:  a.ServerName,
		Insecure:    a.Insecure,
		RootCAFile:  a.CAFile,
		Fingerprint: a.Fingerprint,
		MinVersion:  a.TLSMin,
		MaxVersion:  a.TLSMax,
		Timeout:     a.Timeout,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Connect failed.")
		return 1
	}
	defer c.Close()
	logger.Info().Str("session", c.ConnectionState().String()).Msg("Connected.")

	for i := 0; i < a.Count; i++ {
		if i > 0 {
			time.Sleep(a.Interval)
		}
		logger.Info().Msgf("TX: '%s'", a.Payload)
		res, err := c.Exchange([]byte(a.Payload))
		if err != nil {
			logger.Error().Err(err).Msg("Exchange failed.")
			return 1
		}
		logger.Info().Str("digest", res.Digest).Msgf("RX: '%s'", res.Received)
		if !res.Match {
			logger.Error().Hex("sent", res.Sent).Hex("received", res.Received).Msg("Echo mismatch.")
			return 1
		}
	}
	fmt.Fprintln(stdout, probe.Digest([]byte(a.Payload)))
	return 0
}

func usageError(p *arg.Parser, stderr io.Writer, msg string) int {
	p.WriteUsage(stderr)
	fmt.Fprintf(stderr, "error: %s\n", msg)
	return 2
}
