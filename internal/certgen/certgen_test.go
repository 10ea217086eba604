package certgen

import (
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeCA stores a fresh CA under dir and returns the file paths.
func writeCA(t *testing.T, dir string) (certPath, keyPath string, caCert *x509.Certificate, caKey *ecdsa.PrivateKey) {
	t.Helper()
	caCert, caKey, err := NewCA("Test CA", 24*time.Hour)
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	keyPEM, err := EncodeECKey(caKey)
	if err != nil {
		t.Fatal(err)
	}
	certPath = filepath.Join(dir, "ca.crt")
	keyPath = filepath.Join(dir, "ca.key")
	if err := os.WriteFile(certPath, EncodeCert(caCert.Raw), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	return certPath, keyPath, caCert, caKey
}

func TestNewCA(t *testing.T) {
	cert, _, err := NewCA("AgriTracker Dev CA", 48*time.Hour)
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	if !cert.IsCA || !cert.BasicConstraintsValid {
		t.Error("expected a CA certificate")
	}
	if cert.KeyUsage&x509.KeyUsageCertSign == 0 {
		t.Error("CA must be allowed to sign certificates")
	}
	if cert.Subject.CommonName != "AgriTracker Dev CA" {
		t.Errorf("CommonName = %q", cert.Subject.CommonName)
	}
}

func TestLoadCACredentials_Success(t *testing.T) {
	certPath, keyPath, wantCert, wantKey := writeCA(t, t.TempDir())

	certOut, keyOut, err := LoadCACredentials(certPath, keyPath)
	if err != nil {
		t.Fatalf("LoadCACredentials error: %v", err)
	}
	if certOut.Subject.CommonName != wantCert.Subject.CommonName {
		t.Errorf("CommonName = %q; want %q", certOut.Subject.CommonName, wantCert.Subject.CommonName)
	}
	parsedKey, ok := keyOut.(*ecdsa.PrivateKey)
	if !ok {
		t.Fatalf("key type = %T; want *ecdsa.PrivateKey", keyOut)
	}
	if !parsedKey.PublicKey.Equal(&wantKey.PublicKey) {
		t.Error("public key mismatch")
	}
}

func TestLoadCACredentials_Errors(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath, _, _ := writeCA(t, dir)
	garbage := filepath.Join(dir, "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not pem"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		cert     string
		key      string
		wantText string
	}{
		{"missing cert", "/no/such/file.pem", keyPath, "read ca cert"},
		{"missing key", certPath, "/no/such/key.pem", "read ca key"},
		{"bad cert", garbage, keyPath, "invalid CA cert PEM"},
		{"bad key", certPath, garbage, "invalid CA key PEM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadCACredentials(tt.cert, tt.key)
			if err == nil || !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("got %v; want error containing %q", err, tt.wantText)
			}
		})
	}
}

func TestGenerateServerCertificate(t *testing.T) {
	caCert, caKey, err := NewCA("Test CA", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	certPEM, keyPEM, err := GenerateServerCertificate([]string{"localhost", "127.0.0.1"}, caCert, caKey, time.Hour)
	if err != nil {
		t.Fatalf("GenerateServerCertificate: %v", err)
	}

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("generated pair is not usable by crypto/tls: %v", err)
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}

	if len(leaf.DNSNames) != 1 || leaf.DNSNames[0] != "localhost" {
		t.Errorf("DNSNames = %v", leaf.DNSNames)
	}
	if len(leaf.IPAddresses) != 1 || !leaf.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")) {
		t.Errorf("IPAddresses = %v", leaf.IPAddresses)
	}

	roots := x509.NewCertPool()
	roots.AddCert(caCert)
	if _, err := leaf.Verify(x509.VerifyOptions{DNSName: "localhost", Roots: roots}); err != nil {
		t.Errorf("certificate does not verify against CA: %v", err)
	}
}

func TestGenerateServerCertificate_NoHosts(t *testing.T) {
	caCert, caKey, err := NewCA("Test CA", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := GenerateServerCertificate(nil, caCert, caKey, time.Hour); err == nil {
		t.Error("expected error for empty host list")
	}
}
