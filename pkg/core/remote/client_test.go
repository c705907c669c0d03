package remote

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc/connectivity"
)

func TestClientOptions_InflightLimit(t *testing.T) {
	tests := []struct {
		name     string
		core     int
		max      int
		expected int
	}{
		{"both unset", 0, 0, 0},
		{"max wins", 2, 8, 8},
		{"core only", 4, 0, 4},
		{"max only", 0, 16, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := ClientOptions{WorkerCoreSize: tt.core, WorkerMaxSize: tt.max}
			if got := opts.inflightLimit(); got != tt.expected {
				t.Errorf("inflightLimit() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestNewSDKClient_RequiresName(t *testing.T) {
	if _, err := NewSDKClient("", ClientOptions{}); err == nil {
		t.Error("NewSDKClient(\"\") = nil error, want name validation failure")
	}
	if _, err := NewClusterClient("", ClientOptions{}); err == nil {
		t.Error("NewClusterClient(\"\") = nil error, want name validation failure")
	}
}

func TestNewSDKClient_Defaults(t *testing.T) {
	c, err := NewSDKClient("config", ClientOptions{})
	if err != nil {
		t.Fatalf("NewSDKClient() error = %v", err)
	}

	if c.Name() != "config" {
		t.Errorf("Name() = %q, want config", c.Name())
	}
	if c.ConnectionType() != ConnectionTypeGRPC {
		t.Errorf("ConnectionType() = %q, want GRPC", c.ConnectionType())
	}
	if c.Conn() != nil {
		t.Error("Conn() non-nil before Connect")
	}
	if got := c.State(); got != connectivity.Idle {
		t.Errorf("State() = %v, want Idle", got)
	}
	if c.dial != DefaultDialConfig() {
		t.Errorf("dial config = %+v, want defaults", c.dial)
	}
	if c.limiter != nil {
		t.Error("limiter allocated without worker sizing")
	}
}

func TestLabels_ReturnsCopy(t *testing.T) {
	c, err := NewSDKClient("config", ClientOptions{Labels: map[string]string{"a": "1"}})
	if err != nil {
		t.Fatalf("NewSDKClient() error = %v", err)
	}

	got := c.Labels()
	got["a"] = "mutated"
	got["b"] = "new"

	if c.Labels()["a"] != "1" {
		t.Error("mutating the returned label map changed the client's labels")
	}
	if _, ok := c.Labels()["b"]; ok {
		t.Error("mutating the returned label map added a label")
	}
}

func TestSDKClient_ConnectTargetCount(t *testing.T) {
	c, err := NewSDKClient("config", ClientOptions{})
	if err != nil {
		t.Fatalf("NewSDKClient() error = %v", err)
	}

	if err := c.Connect(context.Background()); err == nil {
		t.Error("Connect() with no target succeeded")
	}
	if err := c.Connect(context.Background(), "a:1", "b:2"); err == nil {
		t.Error("Connect() with two targets succeeded")
	}
}

func TestClusterClient_ConnectRequiresTargets(t *testing.T) {
	c, err := NewClusterClient("members", ClientOptions{})
	if err != nil {
		t.Fatalf("NewClusterClient() error = %v", err)
	}

	if err := c.Connect(context.Background()); err == nil {
		t.Error("Connect() with no targets succeeded")
	}
}

func TestSDKClient_ConnectShutdownCycle(t *testing.T) {
	c, err := NewSDKClient("config", ClientOptions{})
	if err != nil {
		t.Fatalf("NewSDKClient() error = %v", err)
	}

	// Channel creation is lazy; no server needs to be listening.
	if err := c.Connect(context.Background(), "localhost:19000"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if c.Conn() == nil {
		t.Fatal("Conn() nil after Connect")
	}

	// Connect is idempotent once a channel exists.
	if err := c.Connect(context.Background(), "localhost:19001"); err != nil {
		t.Errorf("second Connect() error = %v", err)
	}

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := c.State(); got != connectivity.Shutdown {
		t.Errorf("State() after shutdown = %v, want Shutdown", got)
	}
	if err := c.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
	if err := c.Connect(context.Background(), "localhost:19000"); err == nil {
		t.Error("Connect() after shutdown succeeded")
	}
}

func TestClusterClient_ConnectMemberList(t *testing.T) {
	c, err := NewClusterClient("members", ClientOptions{})
	if err != nil {
		t.Fatalf("NewClusterClient() error = %v", err)
	}
	defer c.Shutdown()

	if err := c.Connect(context.Background(), "localhost:19000", "localhost:19001"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if c.Conn() == nil {
		t.Fatal("Conn() nil after Connect")
	}
}

func TestShutdown_NeverConnected(t *testing.T) {
	c, err := NewSDKClient("quiet", ClientOptions{})
	if err != nil {
		t.Fatalf("NewSDKClient() error = %v", err)
	}
	if err := c.Shutdown(); err != nil {
		t.Errorf("Shutdown() on never-connected client = %v, want nil", err)
	}
}

func TestTLSConfig_NilMeansInsecure(t *testing.T) {
	var cfg *TLSConfig
	creds, err := cfg.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if got := creds.Info().SecurityProtocol; got != "insecure" {
		t.Errorf("SecurityProtocol = %q, want insecure", got)
	}
}

func TestTLSConfig_MissingFiles(t *testing.T) {
	tests := []struct {
		name string
		cfg  TLSConfig
	}{
		{"missing key pair", TLSConfig{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}},
		{"missing ca bundle", TLSConfig{CAFile: "/nonexistent/ca.pem"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.Credentials(); err == nil {
				t.Error("Credentials() = nil error, want failure")
			}
		})
	}
}

func TestTLSConfig_MalformedCABundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := TLSConfig{CAFile: path}
	if _, err := cfg.Credentials(); err == nil {
		t.Error("Credentials() accepted a malformed ca bundle")
	}
}

func TestTLSConfig_ValidCABundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	writeSelfSignedCert(t, path)

	cfg := TLSConfig{CAFile: path, ServerName: "registry.local"}
	creds, err := cfg.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if got := creds.Info().SecurityProtocol; got != "tls" {
		t.Errorf("SecurityProtocol = %q, want tls", got)
	}
}

func writeSelfSignedCert(t *testing.T, path string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "registry.local"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		t.Fatal(err)
	}
}
