// Package transport builds the base http.RoundTripper the API client sends through.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
)

// SecurityLayer produces the transport used to reach the API.
type SecurityLayer interface {
	Transport() (*http.Transport, error)
}

// TLSLayer trusts an extra certificate authority and optionally presents a
// client certificate.
type TLSLayer struct {
	caFileName         string
	certFileName       string
	privateKeyFileName string
}

// NewTLSLayer creates a TLSLayer. Empty file names are skipped: without a CA
// file the system roots are used, without a certificate no client auth is done.
func NewTLSLayer(caFileName, certFileName, privateKeyFileName string) *TLSLayer {
	return &TLSLayer{
		caFileName:         caFileName,
		certFileName:       certFileName,
		privateKeyFileName: privateKeyFileName,
	}
}

// Transport clones http.DefaultTransport with the layer's TLS configuration.
func (l *TLSLayer) Transport() (*http.Transport, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if l.caFileName != "" {
		pem, err := os.ReadFile(l.caFileName)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", l.caFileName)
		}
		cfg.RootCAs = pool
	}

	if l.certFileName != "" || l.privateKeyFileName != "" {
		cert, err := tls.LoadX509KeyPair(l.certFileName, l.privateKeyFileName)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = cfg
	return t, nil
}

// PlainLayer uses the default transport settings.
type PlainLayer struct{}

func NewPlainLayer() *PlainLayer {
	return &PlainLayer{}
}

func (l *PlainLayer) Transport() (*http.Transport, error) {
	return http.DefaultTransport.(*http.Transport).Clone(), nil
}

// New picks the TLS layer when any TLS file is configured and the plain layer otherwise.
func New(caFileName, certFileName, privateKeyFileName string) SecurityLayer {
	if caFileName == "" && certFileName == "" && privateKeyFileName == "" {
		return NewPlainLayer()
	}
	return NewTLSLayer(caFileName, certFileName, privateKeyFileName)
}
