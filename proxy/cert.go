package proxy

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/elazarl/goproxy"
	"github.com/rs/zerolog"
)

// CertManager handles CA certificate generation and loading. Install
// CertPath on the device to inspect HTTPS traffic.
type CertManager struct {
	CertPath string
	KeyPath  string
	log      zerolog.Logger
}

func NewCertManager(dataDir string, log zerolog.Logger) *CertManager {
	return &CertManager{
		CertPath: filepath.Join(dataDir, "adtkit-ca.pem"),
		KeyPath:  filepath.Join(dataDir, "adtkit-ca.key"),
		log:      log,
	}
}

// EnsureCert generates the CA when the cert or key is missing or empty.
func (m *CertManager) EnsureCert() error {
	certStat, certErr := os.Stat(m.CertPath)
	keyStat, keyErr := os.Stat(m.KeyPath)

	if os.IsNotExist(certErr) || os.IsNotExist(keyErr) {
		m.log.Info().Msg("capture CA missing, generating")
		return m.GenerateCert()
	}
	if certErr != nil {
		return certErr
	}
	if keyErr != nil {
		return keyErr
	}
	if certStat.Size() == 0 || keyStat.Size() == 0 {
		m.log.Warn().Msg("capture CA empty, regenerating")
		return m.GenerateCert()
	}

	m.log.Debug().Str("path", m.CertPath).Msg("loading existing capture CA")
	return nil
}

// LoadToGoproxy installs the CA as goproxy's signing authority.
func (m *CertManager) LoadToGoproxy() error {
	certBytes, err := os.ReadFile(m.CertPath)
	if err != nil {
		return err
	}
	keyBytes, err := os.ReadFile(m.KeyPath)
	if err != nil {
		return err
	}

	ca, err := tls.X509KeyPair(certBytes, keyBytes)
	if err != nil {
		return fmt.Errorf("parse capture CA: %w", err)
	}
	if ca.Leaf == nil {
		if leaf, err := x509.ParseCertificate(ca.Certificate[0]); err == nil {
			ca.Leaf = leaf
		}
	}

	goproxy.GoproxyCa = ca
	goproxy.OkConnect = &goproxy.ConnectAction{Action: goproxy.ConnectAccept, TLSConfig: goproxy.TLSConfigFromCA(&ca)}
	goproxy.MitmConnect = &goproxy.ConnectAction{Action: goproxy.ConnectMitm, TLSConfig: goproxy.TLSConfigFromCA(&ca)}
	goproxy.HTTPMitmConnect = &goproxy.ConnectAction{Action: goproxy.ConnectHTTPMitm, TLSConfig: goproxy.TLSConfigFromCA(&ca)}
	goproxy.RejectConnect = &goproxy.ConnectAction{Action: goproxy.ConnectReject, TLSConfig: goproxy.TLSConfigFromCA(&ca)}
	return nil
}

func (m *CertManager) GenerateCert() error {
	if err := os.MkdirAll(filepath.Dir(m.CertPath), 0755); err != nil {
		return err
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return err
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"adtkit capture CA"},
			CommonName:   "adtkit capture CA",
		},
		NotBefore:             time.Now().Add(-24 * time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return err
	}

	certFile, err := os.Create(m.CertPath)
	if err != nil {
		return err
	}
	defer certFile.Close()
	if err := pem.Encode(certFile, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		return err
	}

	keyFile, err := os.OpenFile(m.KeyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer keyFile.Close()
	if err := pem.Encode(keyFile, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}); err != nil {
		return err
	}

	m.log.Info().Str("path", m.CertPath).Msg("capture CA generated")
	return nil
}
