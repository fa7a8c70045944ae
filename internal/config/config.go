// Package config holds the immutable configuration bundle (C6) and the
// factory that validates raw operator input into it (C10).
package config

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/miekg/dns"

	"github.com/ahealthydns/ahealthydns/internal/healthyip"
	"github.com/ahealthydns/ahealthydns/internal/validate"
	"github.com/ahealthydns/ahealthydns/internal/zoneorigins"
)

// PrivateKey bundles the DNSSEC signing key material derived from the
// operator's PEM file: a stdlib crypto.Signer for miekg/dns's RRSIG.Sign,
// the Algorithm it signs under, and the DNSKEY record derived from its
// public half.
type PrivateKey struct {
	Signer    crypto.Signer
	Algorithm uint8
	DNSKEY    *dns.DNSKEY
}

// Resolution is the raw per-subdomain input: its IP pool and the single
// health-check port shared by every IP in the pool.
type Resolution struct {
	IPs        []string
	HealthPort int
}

// Input is the raw, not-yet-validated operator configuration, assembled by
// the CLI layer (C11) from flag values.
type Input struct {
	Zone              string
	AliasZones        []string
	NameServers       []string
	Resolutions       map[string]Resolution
	PrivKeyPath       string
	PrivKeyAlg        string
	MinInterval       time.Duration
	ConnectionTimeout time.Duration
}

// Config is the immutable, validated configuration bundle consumed by the
// zone updater (C7). There is no partially-valid Config: New either returns
// a complete one or an error.
type Config struct {
	Origins           *zoneorigins.ZoneOrigins
	NameServers       []string
	ARecords          []healthyip.HealthyRecord
	PrivateKey        *PrivateKey // nil => DNSSEC disabled
	MinInterval       time.Duration
	ConnectionTimeout time.Duration
}

// Signing reports whether DNSSEC signing is configured.
func (c *Config) Signing() bool {
	return c.PrivateKey != nil
}

// New validates raw input into a Config. Validation is total: the first
// failure aborts with an error and no partial Config is returned.
func New(in Input) (*Config, error) {
	if ok, err := validate.Subdomain(in.Zone); !ok {
		return nil, fmt.Errorf("config: hosted zone: %w", err)
	}

	for _, a := range in.AliasZones {
		if ok, err := validate.Subdomain(a); !ok {
			return nil, fmt.Errorf("config: alias zone %q: %w", a, err)
		}
	}

	origins, err := zoneorigins.New(in.Zone, in.AliasZones)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if len(in.NameServers) == 0 {
		return nil, fmt.Errorf("config: at least one name server is required")
	}
	nameServers := make([]string, 0, len(in.NameServers))
	for _, ns := range in.NameServers {
		if ok, err := validate.Subdomain(ns); !ok {
			return nil, fmt.Errorf("config: name server %q: %w", ns, err)
		}
		nameServers = append(nameServers, dns.Fqdn(ns))
	}

	if len(in.Resolutions) == 0 {
		return nil, fmt.Errorf("config: at least one resolution is required")
	}

	primary := origins.Primary()
	aRecords := make([]healthyip.HealthyRecord, 0, len(in.Resolutions))
	for subdomain, res := range in.Resolutions {
		if ok, err := validate.Subdomain(subdomain); !ok {
			return nil, fmt.Errorf("config: resolution subdomain %q: %w", subdomain, err)
		}
		if len(res.IPs) == 0 {
			return nil, fmt.Errorf("config: resolution %q: at least one IP is required", subdomain)
		}
		if ok, err := validate.Port(res.HealthPort); !ok {
			return nil, fmt.Errorf("config: resolution %q: %w", subdomain, err)
		}

		ips := make([]healthyip.HealthyIp, 0, len(res.IPs))
		for _, ip := range res.IPs {
			if ok, err := validate.IP(ip); !ok {
				return nil, fmt.Errorf("config: resolution %q: %w", subdomain, err)
			}
			ips = append(ips, healthyip.New(ip, res.HealthPort))
		}

		fqdn := dns.Fqdn(subdomain) + primary

		aRecords = append(aRecords, healthyip.HealthyRecord{
			Subdomain:  fqdn,
			HealthyIPs: ips,
		})
	}

	var privKey *PrivateKey
	if in.PrivKeyPath != "" {
		privKey, err = loadPrivateKey(in.PrivKeyPath, in.PrivKeyAlg, origins.Primary())
		if err != nil {
			return nil, fmt.Errorf("config: DNSSEC key: %w", err)
		}
	}

	minInterval := in.MinInterval
	if minInterval <= 0 {
		minInterval = 30 * time.Second
	}
	connectionTimeout := in.ConnectionTimeout
	if connectionTimeout <= 0 {
		connectionTimeout = 2 * time.Second
	}

	return &Config{
		Origins:           origins,
		NameServers:       nameServers,
		ARecords:          aRecords,
		PrivateKey:        privKey,
		MinInterval:       minInterval,
		ConnectionTimeout: connectionTimeout,
	}, nil
}

// loadPrivateKey reads a PEM private key file and derives a PrivateKey
// (signer + DNSKEY) for owner under the given algorithm name.
func loadPrivateKey(path, algName, owner string) (*PrivateKey, error) {
	alg, ok := dns.StringToAlgorithm[algName]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %q", algName)
	}
	if alg >= dns.INDIRECT {
		return nil, fmt.Errorf("algorithm %q (%d) is beyond the indirect threshold", algName, alg)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	signer, pub, err := parsePEMKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing key: %w", err)
	}

	dnskey := &dns.DNSKEY{
		Hdr: dns.RR_Header{
			Name:   owner,
			Rrtype: dns.TypeDNSKEY,
			Class:  dns.ClassINET,
		},
		Flags:     257, // zone key + secure entry point
		Protocol:  3,
		Algorithm: alg,
	}

	switch p := pub.(type) {
	case *rsa.PublicKey:
		if !dnskey.SetPublicKeyRSA(p) {
			return nil, fmt.Errorf("failed to encode RSA public key into DNSKEY")
		}
	case *ecdsa.PublicKey:
		if !dnskey.SetPublicKeyECDSA(p) {
			return nil, fmt.Errorf("failed to encode ECDSA public key into DNSKEY")
		}
	default:
		return nil, fmt.Errorf("unsupported public key type %T", pub)
	}

	return &PrivateKey{Signer: signer, Algorithm: alg, DNSKEY: dnskey}, nil
}

func parsePEMKey(der []byte) (crypto.Signer, crypto.PublicKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, nil, fmt.Errorf("PKCS8 key does not implement crypto.Signer")
		}
		return signer, signer.Public(), nil
	}

	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, &key.PublicKey, nil
	}

	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, &key.PublicKey, nil
	}

	return nil, nil, fmt.Errorf("unrecognized private key encoding")
}
