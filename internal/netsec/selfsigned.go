package netsec

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultMaxAge is how long a generated relay certificate is reused.
	DefaultMaxAge = 30 * 24 * time.Hour

	commonName = "tuimessenger-relay"
	validity   = 5 * 365 * 24 * time.Hour
)

// SelfSigned describes a generated certificate pair for a relay that has no
// CA-issued certificate.
type SelfSigned struct {
	CertPath string
	KeyPath  string
	// Hosts become the certificate's DNS names and IP addresses. Empty
	// means localhost and 127.0.0.1.
	Hosts []string
	// MaxAge forces regeneration of older pairs. Zero uses DefaultMaxAge.
	MaxAge time.Duration
}

// Ensure writes a fresh pair unless the existing one is readable, matches,
// covers every host and is younger than MaxAge. It reports whether a new
// pair was written.
func (s SelfSigned) Ensure() (bool, error) {
	certPath := strings.TrimSpace(s.CertPath)
	keyPath := strings.TrimSpace(s.KeyPath)
	if certPath == "" || keyPath == "" {
		return false, errors.New("certificate and key paths are required")
	}
	hosts := normalizeHosts(s.Hosts)
	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	now := time.Now()
	stale, err := needsRotation(certPath, keyPath, hosts, maxAge, now)
	if err != nil || !stale {
		return false, err
	}

	certPEM, keyPEM, err := generate(hosts, now)
	if err != nil {
		return false, fmt.Errorf("generate certificate: %w", err)
	}
	// Key first: a crash in between leaves a pair that fails to load and is
	// regenerated next time, never a certificate without its key.
	if err := writeFileAtomic(keyPath, keyPEM, 0o600); err != nil {
		return false, fmt.Errorf("write key: %w", err)
	}
	if err := writeFileAtomic(certPath, certPEM, 0o644); err != nil {
		return false, fmt.Errorf("write certificate: %w", err)
	}
	return true, nil
}

func normalizeHosts(hosts []string) []string {
	seen := make(map[string]bool, len(hosts))
	var out []string
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	if len(out) == 0 {
		out = []string{"localhost", "127.0.0.1"}
	}
	return out
}

// needsRotation reports whether the pair on disk has to be replaced. Missing
// or unparsable files need rotation; unreadable ones are an error.
func needsRotation(certPath, keyPath string, hosts []string, maxAge time.Duration, now time.Time) (bool, error) {
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		var pathErr *fs.PathError
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return true, nil
		case errors.As(err, &pathErr):
			return false, fmt.Errorf("read certificate pair: %w", err)
		default:
			return true, nil
		}
	}
	leaf := pair.Leaf
	if leaf == nil {
		if leaf, err = x509.ParseCertificate(pair.Certificate[0]); err != nil {
			return true, nil
		}
	}
	if now.After(leaf.NotAfter) || now.Sub(leaf.NotBefore) > maxAge {
		return true, nil
	}
	for _, h := range hosts {
		if leaf.VerifyHostname(h) != nil {
			return true, nil
		}
	}
	return false, nil
}

func generate(hosts []string, now time.Time) (certPEM, keyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, err
	}

	tpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tpl.IPAddresses = append(tpl.IPAddresses, ip)
		} else {
			tpl.DNSNames = append(tpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, err
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
