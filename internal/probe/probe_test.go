package probe

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"echofixture/internal/echo"
	"echofixture/internal/shared/testcert"
	"echofixture/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFixture runs a single-peer echo server and returns its loopback address.
func startFixture(t *testing.T, cfg *types.Config) (string, <-chan error) {
	t.Helper()
	cfg.ServerConf.Port = 0
	srv := echo.New(cfg)
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() {
		_, err := srv.Serve()
		done <- err
	}()
	return fmt.Sprintf("127.0.0.1:%d", srv.Addr().(*net.TCPAddr).Port), done
}

func tlsFixture(t *testing.T) (*types.Config, testcert.Pair) {
	pair := testcert.Write(t)
	cfg := types.NewDefaultConfig()
	cfg.ServerConf.Mode = types.ModeTLS
	cfg.TLSConf.CertFile = pair.CertFile
	cfg.TLSConf.KeyFile = pair.KeyFile
	return cfg, pair
}

func finish(t *testing.T, c *Client, done <-chan error) {
	t.Helper()
	require.NoError(t, c.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("fixture did not finish")
	}
}

func TestProbe_PlainHello(t *testing.T) {
	addr, done := startFixture(t, types.NewDefaultConfig())

	c, err := Dial(context.Background(), Options{Address: addr, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "plaintext", c.ConnectionState().String())

	for i := 0; i < 3; i++ {
		res, err := c.Exchange([]byte("Hello!"))
		require.NoError(t, err)
		assert.True(t, res.Match)
		assert.Equal(t, "Hello!", string(res.Received))
		assert.Equal(t, Digest([]byte("Hello!")), res.Digest)
	}
	finish(t, c, done)
}

func TestProbe_TLSMatchesPlainDigest(t *testing.T) {
	payload := []byte("ping")

	plainAddr, plainDone := startFixture(t, types.NewDefaultConfig())
	plain, err := Dial(context.Background(), Options{Address: plainAddr, Timeout: 5 * time.Second})
	require.NoError(t, err)
	plainRes, err := plain.Exchange(payload)
	require.NoError(t, err)
	finish(t, plain, plainDone)

	cfg, pair := tlsFixture(t)
	tlsAddr, tlsDone := startFixture(t, cfg)
	secured, err := Dial(context.Background(), Options{
		Address:    tlsAddr,
		Mode:       ModeTLS,
		ServerName: "localhost",
		RootCAFile: pair.CertFile,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	assert.NotZero(t, secured.ConnectionState().Version)
	tlsRes, err := secured.Exchange(payload)
	require.NoError(t, err)
	finish(t, secured, tlsDone)

	assert.Equal(t, plainRes.Digest, tlsRes.Digest)
	assert.Equal(t, "ping", string(tlsRes.Received))
}

func TestProbe_UTLSFingerprints(t *testing.T) {
	for _, fp := range []string{"chrome", "firefox", "golang"} {
		t.Run(fp, func(t *testing.T) {
			cfg, pair := tlsFixture(t)
			addr, done := startFixture(t, cfg)

			c, err := Dial(context.Background(), Options{
				Address:     addr,
				Mode:        ModeUTLS,
				Fingerprint: fp,
				ServerName:  "localhost",
				RootCAPEM:   pair.CertPEM,
				Timeout:     5 * time.Second,
			})
			require.NoError(t, err)

			res, err := c.Exchange([]byte("Hello!"))
			require.NoError(t, err)
			assert.True(t, res.Match)
			finish(t, c, done)
		})
	}
}

func TestProbe_VersionPinned(t *testing.T) {
	cfg, pair := tlsFixture(t)
	addr, done := startFixture(t, cfg)

	c, err := Dial(context.Background(), Options{
		Address:    addr,
		Mode:       ModeTLS,
		RootCAPEM:  pair.CertPEM,
		MaxVersion: "1.2",
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	assert.Contains(t, c.ConnectionState().String(), "TLS 1.2")
	_, err = c.Exchange([]byte{0x41})
	require.NoError(t, err)
	finish(t, c, done)
}

func TestProbe_UntrustedCertificate(t *testing.T) {
	cfg, _ := tlsFixture(t)
	addr, done := startFixture(t, cfg)

	_, err := Dial(context.Background(), Options{Address: addr, Mode: ModeTLS, Timeout: 5 * time.Second})
	require.Error(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, echo.ErrHandshake)
	case <-time.After(5 * time.Second):
		t.Fatal("fixture did not finish")
	}
}

func TestProbe_InvalidOptions(t *testing.T) {
	_, err := Dial(context.Background(), Options{Address: "127.0.0.1:1", Mode: "quic"})
	assert.ErrorContains(t, err, "unknown probe mode")

	cfg, _ := tlsFixture(t)
	addr, _ := startFixture(t, cfg)
	_, err = Dial(context.Background(), Options{Address: addr, Mode: ModeUTLS, Fingerprint: "netscape", Insecure: true})
	assert.ErrorContains(t, err, "unknown uTLS fingerprint")
}

func TestServerName(t *testing.T) {
	assert.Equal(t, "localhost", serverName(Options{Address: "localhost:33001"}))
	assert.Equal(t, "example.org", serverName(Options{Address: "localhost:33001", ServerName: "example.org"}))
}
