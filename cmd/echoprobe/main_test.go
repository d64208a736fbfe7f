package main

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"

	"echofixture/internal/echo"
	"echofixture/internal/probe"
	"echofixture/internal/shared/logger"
	"echofixture/internal/shared/testcert"
	"echofixture/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFixture(t *testing.T, cfg *types.Config) string {
	t.Helper()
	cfg.ServerConf.Port = 0
	require.NoError(t, logger.InitWithWriter(types.LogConf{Level: "error"}, io.Discard))
	srv := echo.New(cfg)
	require.NoError(t, srv.Listen())
	go srv.Serve()
	return fmt.Sprintf("127.0.0.1:%d", srv.Addr().(*net.TCPAddr).Port)
}

func TestRun_PlainRounds(t *testing.T) {
	addr := startFixture(t, types.NewDefaultConfig())
	var stdout, stderr bytes.Buffer

	code := run([]string{"--count", "3", "--interval", "1ms", addr}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Equal(t, 3, strings.Count(stderr.String(), "RX: 'Hello!'"))
	assert.Equal(t, probe.Digest([]byte("Hello!")), strings.TrimSpace(stdout.String()))
}

func TestRun_TLSWithCA(t *testing.T) {
	pair := testcert.Write(t)
	cfg := types.NewDefaultConfig()
	cfg.ServerConf.Mode = types.ModeTLS
	cfg.TLSConf.CertFile = pair.CertFile
	cfg.TLSConf.KeyFile = pair.KeyFile
	addr := startFixture(t, cfg)

	var stdout, stderr bytes.Buffer
	code := run([]string{"--mode", "tls", "--ca", pair.CertFile, "--sni", "localhost", addr, "ping"}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stderr.String(), "RX: 'ping'")
	assert.Contains(t, stderr.String(), "TLS 1.3")
}

func TestRun_ConnectFailed(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"--timeout", "1s", addr}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Connect failed.")
}

func TestRun_MissingAddress(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage: echoprobe")
}

func TestRun_CountMustBePositive(t *testing.T) {
	for _, count := range []string{"0", "-3"} {
		t.Run(count, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run([]string{"--count=" + count, "127.0.0.1:1"}, &stdout, &stderr)

			assert.Equal(t, 2, code)
			assert.Contains(t, stderr.String(), "--count must be at least 1")
			assert.Empty(t, stdout.String(), "no digest may be printed without an exchange")
		})
	}
}
