package configtypes

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// TLSConfig is a common configuration for TLS of servers and store clients.
type TLSConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" envconfig:"enabled" toml:"enabled" yaml:"enabled"`
	// CertPem is a certificate in PEM format: raw, base64 or path to file.
	CertPem PEMData `mapstructure:"cert_pem" json:"cert_pem" envconfig:"cert_pem" toml:"cert_pem" yaml:"cert_pem"`
	// KeyPem is a key in PEM format: raw, base64 or path to file.
	KeyPem PEMData `mapstructure:"key_pem" json:"key_pem" envconfig:"key_pem" toml:"key_pem" yaml:"key_pem"`
	// ServerCAPem is used by clients to verify server certificate.
	ServerCAPem PEMData `mapstructure:"server_ca_pem" json:"server_ca_pem" envconfig:"server_ca_pem" toml:"server_ca_pem" yaml:"server_ca_pem"`
	// ClientCAPem is used by servers to require and verify client certificates.
	ClientCAPem        PEMData `mapstructure:"client_ca_pem" json:"client_ca_pem" envconfig:"client_ca_pem" toml:"client_ca_pem" yaml:"client_ca_pem"`
	InsecureSkipVerify bool    `mapstructure:"insecure_skip_verify" json:"insecure_skip_verify" envconfig:"insecure_skip_verify" toml:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	ServerName         string  `mapstructure:"server_name" json:"server_name" envconfig:"server_name" toml:"server_name" yaml:"server_name"`
}

// ReadFileFunc is like os.ReadFile.
type ReadFileFunc func(name string) ([]byte, error)

// StatFileFunc is like os.Stat.
type StatFileFunc func(name string) (os.FileInfo, error)

// ToGoTLSConfig returns nil config when TLS is not enabled.
func (c TLSConfig) ToGoTLSConfig(entity string) (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	tlsConfig, err := c.build(os.ReadFile, os.Stat)
	if err != nil {
		return nil, fmt.Errorf("error make TLS config for %s: %w", entity, err)
	}
	log.Debug().Str("entity", entity).Str("server_name", c.ServerName).Msg("TLS config created")
	return tlsConfig, nil
}

func (c TLSConfig) build(readFile ReadFileFunc, statFile StatFileFunc) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		ServerName:         c.ServerName,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
	if c.CertPem != "" || c.KeyPem != "" {
		if c.CertPem == "" || c.KeyPem == "" {
			return nil, errors.New("both cert_pem and key_pem must be set")
		}
		certPEM, _, err := c.CertPem.Load(statFile, readFile)
		if err != nil {
			return nil, fmt.Errorf("load certificate: %w", err)
		}
		keyPEM, _, err := c.KeyPem.Load(statFile, readFile)
		if err != nil {
			return nil, fmt.Errorf("load key: %w", err)
		}
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, fmt.Errorf("error create x509 key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	if c.ServerCAPem != "" {
		pool, err := loadCertPool(c.ServerCAPem, readFile, statFile)
		if err != nil {
			return nil, fmt.Errorf("server CA: %w", err)
		}
		tlsConfig.RootCAs = pool
	}
	if c.ClientCAPem != "" {
		pool, err := loadCertPool(c.ClientCAPem, readFile, statFile)
		if err != nil {
			return nil, fmt.Errorf("client CA: %w", err)
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tlsConfig, nil
}

func loadCertPool(data PEMData, readFile ReadFileFunc, statFile StatFileFunc) (*x509.CertPool, error) {
	pemBytes, _, err := data.Load(statFile, readFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, errors.New("no valid certificates found")
	}
	return pool, nil
}
