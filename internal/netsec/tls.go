// Package netsec holds the TLS material shared by the relay server and its
// clients.
package netsec

import (
	"bytes"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ServerTLSConfig loads the relay's certificate pair.
func ServerTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{pair},
	}, nil
}

// ClientTLSConfig is used for wss:// relays. With a pin, the relay's leaf
// certificate must hash to that fingerprint and chain verification is
// skipped. Without one, insecure disables verification entirely.
func ClientTLSConfig(insecure bool, pin string) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecure,
	}
	if strings.TrimSpace(pin) == "" {
		return cfg, nil
	}
	want, err := ParseFingerprint(pin)
	if err != nil {
		return nil, err
	}
	cfg.InsecureSkipVerify = true
	cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("relay presented no certificate")
		}
		got := sha256.Sum256(rawCerts[0])
		if !bytes.Equal(got[:], want) {
			return fmt.Errorf("relay certificate fingerprint %s does not match pinned %s",
				Fingerprint(rawCerts[0]), formatFingerprint(want))
		}
		return nil
	}
	return cfg, nil
}

// Fingerprint is the SHA-256 of a DER certificate as colon separated hex,
// the form openssl x509 -fingerprint prints.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return formatFingerprint(sum[:])
}

// ParseFingerprint accepts a SHA-256 fingerprint with or without colons.
func ParseFingerprint(s string) ([]byte, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ":", "")
	raw, err := hex.DecodeString(clean)
	if err != nil || len(raw) != sha256.Size {
		return nil, fmt.Errorf("invalid certificate fingerprint %q", s)
	}
	return raw, nil
}

func formatFingerprint(sum []byte) string {
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{b}))
	}
	return strings.Join(parts, ":")
}
