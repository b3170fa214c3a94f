package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"secure-chat/errors"
)

const (
	certFileName     = "server.crt"
	keyFileName      = "server.key"
	certValidity     = 365 * 24 * time.Hour
	organizationName = "Secure Chat"
)

// TLSTransport upgrades accepted connections with a server-side TLS handshake.
type TLSTransport struct {
	config *tls.Config
}

func NewTLSTransport(config *tls.Config) *TLSTransport {
	return &TLSTransport{config: config}
}

// Secure runs the handshake and returns the encrypted stream.
// The raw connection is left open on failure, closing it is the caller's job.
func (t *TLSTransport) Secure(ctx context.Context, conn net.Conn) (net.Conn, error) {
	tlsConn := tls.Server(conn, t.config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrHandshake, err)
	}
	return tlsConn, nil
}

// ServerConfig builds a TLS 1.2+ server configuration from a certificate pair.
func ServerConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
	}
}

// ClientConfig trusts the PEM bundle at caFile when set, the system pool otherwise.
// insecure skips verification entirely and is only meant for local self-signed setups.
func ClientConfig(serverName, caFile string, insecure bool) (*tls.Config, error) {
	config := &tls.Config{
		ServerName:         serverName,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecure, //nolint:gosec
	}
	if caFile == "" {
		return config, nil
	}
	pemBytes, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, fmt.Errorf("no certificate found in %s", caFile)
	}
	config.RootCAs = pool
	return config, nil
}

// LoadOrCreateCertificate loads certFile/keyFile when both are given.
// Otherwise it reuses, or generates on first use, a self-signed pair in dir.
func LoadOrCreateCertificate(certFile, keyFile, dir string, log *slog.Logger) (tls.Certificate, error) {
	if certFile != "" && keyFile != "" {
		return tls.LoadX509KeyPair(certFile, keyFile)
	}

	certFile = filepath.Join(dir, certFileName)
	keyFile = filepath.Join(dir, keyFileName)
	if fileExists(certFile) && fileExists(keyFile) {
		log.Info("Using existing TLS certificate", "cert", certFile)
		return tls.LoadX509KeyPair(certFile, keyFile)
	}

	certPEM, keyPEM, err := GenerateSelfSigned(localHostnames(), certValidity)
	if err != nil {
		return tls.Certificate{}, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate directory: %w", err)
	}
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		return tls.Certificate{}, fmt.Errorf("write certificate: %w", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return tls.Certificate{}, fmt.Errorf("write private key: %w", err)
	}
	log.Warn("Generated self-signed TLS certificate, use a CA-issued one in production", "cert", certFile)
	return tls.X509KeyPair(certPEM, keyPEM)
}

// GenerateSelfSigned returns a PEM certificate and PKCS#8 key valid for hosts.
// Entries that parse as IPs become IP SANs, the rest DNS SANs.
func GenerateSelfSigned(hosts []string, validity time.Duration) ([]byte, []byte, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{organizationName}, CommonName: hosts[0]},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal key: %w", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

func localHostnames() []string {
	hosts := []string{"localhost", "127.0.0.1", "::1"}
	if hostname, err := os.Hostname(); err == nil && hostname != "" && hostname != "localhost" {
		hosts = append(hosts, hostname)
	}
	return hosts
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
