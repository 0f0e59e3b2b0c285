package tlsconf

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSelfSigned writes a self-signed certificate valid in [notBefore, notAfter].
func writeSelfSigned(t *testing.T, notBefore, notAfter time.Time) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	templ := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		DNSNames:              []string{"localhost"},
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, templ, templ, &key.PublicKey, key)
	require.NoError(t, err)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}), 0o600))
	return certFile, keyFile
}

func TestBuildFileTLS(t *testing.T) {
	now := time.Now()
	cert, key := writeSelfSigned(t, now.Add(-time.Hour), now.Add(time.Hour))

	conf, err := BuildFileTLS(cert, key)
	require.NoError(t, err)
	require.Len(t, conf.Certificates, 1)
	assert.Contains(t, conf.NextProtos, "h2")

	_, err = buildFileTLS(cert, key, now.Add(2*time.Hour))
	assert.ErrorContains(t, err, "expired")
	_, err = buildFileTLS(cert, key, now.Add(-2*time.Hour))
	assert.ErrorContains(t, err, "not yet valid")

	_, err = BuildFileTLS(cert, "")
	assert.Error(t, err)
	_, err = BuildFileTLS(cert, filepath.Join(t.TempDir(), "missing.pem"))
	assert.ErrorContains(t, err, "load keypair")
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	conf, h, err := FromViper(context.Background(), v)
	require.NoError(t, err)
	assert.Nil(t, conf)
	assert.Nil(t, h)

	now := time.Now()
	cert, key := writeSelfSigned(t, now.Add(-time.Hour), now.Add(time.Hour))
	v.Set("tls.cert_file", cert)
	v.Set("tls.key_file", key)
	conf, h, err = FromViper(context.Background(), v)
	require.NoError(t, err)
	assert.NotNil(t, conf)
	assert.Nil(t, h)
}

func TestBuildCertMagicNeedsDomain(t *testing.T) {
	_, _, err := BuildCertMagicTLS(context.Background(), CertMagicConfig{})
	assert.Error(t, err)
}

func TestParsePort(t *testing.T) {
	assert.Equal(t, 8443, ParsePort(":8443"))
	assert.Equal(t, 443, ParsePort("example.com:443"))
	assert.Equal(t, 0, ParsePort("example.com"))
	assert.Equal(t, 0, ParsePort("host:"))
	assert.Equal(t, 0, ParsePort(""))
}

func TestHTTP3AltSvc(t *testing.T) {
	now := time.Now()
	cert, key := writeSelfSigned(t, now.Add(-time.Hour), now.Add(time.Hour))
	conf, err := BuildFileTLS(cert, key)
	require.NoError(t, err)

	h3, err := NewHTTP3("127.0.0.1:8443", http.NotFoundHandler(), conf)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h3.AltSvc(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, `h3=":8443"; ma=86400`, rr.Header().Get("Alt-Svc"))

	_, err = NewHTTP3(":8443", http.NotFoundHandler(), nil)
	assert.ErrorIs(t, err, ErrMissingTLS)
	_, err = NewHTTP3("localhost", http.NotFoundHandler(), conf)
	assert.Error(t, err)
}
