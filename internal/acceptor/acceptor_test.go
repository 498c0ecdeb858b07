package acceptor

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/cardserver/internal/frame"
	"github.com/marmos91/cardserver/internal/transport"
)

func writeSelfSignedCert(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "server.crt")
	keyPath = filepath.Join(dir, "server.key")

	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))

	return certPath, keyPath
}

// TestAcceptorServesLoginOverTLS exercises the full accept loop: a real
// TLS client dials in, sends LOGIN_REQ, and receives LOGIN_RESP, then the
// acceptor shuts down cleanly on context cancellation.
func TestAcceptorServesLoginOverTLS(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedCert(t, dir)

	acc, err := Open(Config{
		Addr:             "127.0.0.1:0",
		TLS:              transport.Config{CertFile: certPath, KeyFile: keyPath},
		CountersPath:     filepath.Join(dir, "counters.dat"),
		SessionStorePath: filepath.Join(dir, "sessions.dat"),
		ReadTimeout:      2 * time.Second,
	})
	require.NoError(t, err)

	addr := acc.listener.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- acc.Serve(ctx) }()

	clientConn, err := tls.Dial("tcp", addr, &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12})
	require.NoError(t, err)
	defer clientConn.Close()

	loginFrame, err := frame.Encode(frame.OpLoginReq, nil)
	require.NoError(t, err)
	_, err = clientConn.Write(loginFrame)
	require.NoError(t, err)

	resp, err := frame.Decode(clientConn)
	require.NoError(t, err)
	require.Equal(t, frame.OpLoginResp, resp.Opcode)

	cancel()
	require.NoError(t, <-serveDone)
	require.NoError(t, acc.Close())
}
