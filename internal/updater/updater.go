// Package updater implements the zone updater core (C7): it owns the
// mutable A-record health state, decides when the zone snapshot needs
// rebuilding, and signs the rebuilt zone when DNSSEC key material is
// configured.
package updater

import (
	"crypto"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/ahealthydns/ahealthydns/internal/config"
	"github.com/ahealthydns/ahealthydns/internal/healthyip"
	"github.com/ahealthydns/ahealthydns/internal/metrics"
	"github.com/ahealthydns/ahealthydns/internal/probe"
	"github.com/ahealthydns/ahealthydns/internal/serial"
	"github.com/ahealthydns/ahealthydns/internal/timing"
	"github.com/ahealthydns/ahealthydns/internal/zone"
)

// Updater is the zone updater core. It is not safe for concurrent calls to
// Update: by construction (SPEC_FULL.md §5) exactly one goroutine, the
// threaded wrapper's worker, ever calls it. Zone is safe to call from any
// goroutine at any time.
type Updater struct {
	cfg     *config.Config
	origin  string
	timings timing.Timings

	zoneStore *zone.Zone
	aRecords  []healthyip.HealthyRecord
	soa       *serial.Source

	alreadyInitialized bool
	resignAt           time.Time

	now func() time.Time
}

// New constructs an Updater from a validated Config. The returned Updater
// owns its own clone of cfg.ARecords; mutating it never affects cfg.
func New(cfg *config.Config) *Updater {
	records := make([]healthyip.HealthyRecord, len(cfg.ARecords))
	for i, r := range cfg.ARecords {
		records[i] = r.Clone()
	}

	ipCounts := make([]int, len(records))
	for i, r := range records {
		ipCounts[i] = len(r.HealthyIPs)
	}
	maxInterval := timing.MaxInterval(cfg.MinInterval, ipCounts, cfg.ConnectionTimeout, cfg.Signing())

	return &Updater{
		cfg:       cfg,
		origin:    cfg.Origins.Primary(),
		timings:   timing.Derive(maxInterval),
		zoneStore: zone.New(),
		aRecords:  records,
		soa:       serial.NewSource(),
		resignAt:  time.Unix(0, 0).UTC(),
		now:       time.Now,
	}
}

// Timings returns the timing quantities this updater derived from the
// configured max_interval.
func (u *Updater) Timings() timing.Timings {
	return u.timings
}

// Zone returns the versioned zone snapshot store. Safe from any goroutine.
func (u *Updater) Zone() *zone.Zone {
	return u.zoneStore
}

// Update is the single control entry point (SPEC_FULL.md §4.7). When
// checkIPs is true, it runs a probe pass over every configured IP in list
// order, polling shouldAbort before each probe; an abort leaves a_records
// byte-identical to how the previous pass left them and skips the zone
// rebuild entirely. Otherwise it decides whether to rebuild the zone
// snapshot (on health change, DNSSEC resign due, or first run) and, if so,
// does so atomically.
func (u *Updater) Update(checkIPs bool, shouldAbort func() bool) error {
	if shouldAbort == nil {
		shouldAbort = func() bool { return false }
	}

	changed := false

	if checkIPs {
		working := make([]healthyip.HealthyRecord, len(u.aRecords))
		for i, r := range u.aRecords {
			working[i] = r.Clone()
		}

		aborted := false
	outer:
		for i := range working {
			for j, ip := range working[i].HealthyIPs {
				if shouldAbort() {
					aborted = true
					break outer
				}
				healthy := probe.CanConnect(ip.IP, ip.HealthPort, u.cfg.ConnectionTimeout)
				outcome := "unhealthy"
				if healthy {
					outcome = "healthy"
				}
				metrics.ProbesTotal.WithLabelValues(working[i].Subdomain, outcome).Inc()
				if healthy != ip.IsHealthy {
					changed = true
				}
				working[i].HealthyIPs[j] = ip.WithHealth(healthy)
			}
		}

		if aborted {
			return nil
		}
		u.aRecords = working
	}

	doRebuild := changed || !u.alreadyInitialized
	if u.cfg.Signing() && !u.resignAt.After(u.now()) {
		doRebuild = true
	}

	if !doRebuild {
		return nil
	}

	w := u.zoneStore.Writer()

	nsRRset := u.buildNS()
	for _, rr := range nsRRset {
		w.Add("@", rr)
	}

	soaRR := u.buildSOA()
	w.Add("@", soaRR)

	for _, rec := range u.aRecords {
		if !rec.AnyHealthy() {
			continue
		}
		rel, ok := u.cfg.Origins.Relativize(rec.Subdomain)
		if !ok {
			continue
		}
		for _, ip := range rec.HealthyIPs {
			if !ip.IsHealthy {
				continue
			}
			w.Add(rel, &dns.A{
				Hdr: dns.RR_Header{
					Name:   rec.Subdomain,
					Rrtype: dns.TypeA,
					Class:  dns.ClassINET,
					Ttl:    uint32(u.timings.TTLA.Seconds()),
				},
				A: net.ParseIP(ip.IP).To4(),
			})
		}
	}

	if u.cfg.Signing() {
		if err := u.signApex(w, nsRRset, soaRR); err != nil {
			return fmt.Errorf("updater: signing failed, zone left unchanged: %w", err)
		}
	}

	w.Commit()
	u.alreadyInitialized = true
	metrics.ZoneRebuildsTotal.Inc()
	metrics.ZoneSerial.Set(float64(soaRR.Serial))
	return nil
}

func (u *Updater) buildNS() []dns.RR {
	out := make([]dns.RR, 0, len(u.cfg.NameServers))
	for _, ns := range u.cfg.NameServers {
		out = append(out, &dns.NS{
			Hdr: dns.RR_Header{
				Name:   u.origin,
				Rrtype: dns.TypeNS,
				Class:  dns.ClassINET,
				Ttl:    uint32(u.timings.TTLNS.Seconds()),
			},
			Ns: ns,
		})
	}
	return out
}

func (u *Updater) buildSOA() *dns.SOA {
	return &dns.SOA{
		Hdr: dns.RR_Header{
			Name:   u.origin,
			Rrtype: dns.TypeSOA,
			Class:  dns.ClassINET,
			Ttl:    uint32(u.timings.TTLSOA.Seconds()),
		},
		Ns:      u.cfg.NameServers[0],
		Mbox:    "hostmaster." + u.origin,
		Serial:  u.soa.Next(),
		Refresh: uint32(u.timings.SOARefresh.Seconds()),
		Retry:   uint32(u.timings.SOARetry.Seconds()),
		Expire:  uint32(u.timings.SOAExpire.Seconds()),
		Minttl:  uint32(u.timings.SOAMinTTL.Seconds()),
	}
}

// signApex adds the DNSKEY RRset, a minimal apex NSEC, and RRSIGs covering
// NS/SOA/DNSKEY/NSEC to the writer, and advances the resign schedule on
// success. It leaves the updater's schedule untouched on failure so the
// next pass retries signing from the same state.
func (u *Updater) signApex(w *zone.Writer, nsRRset []dns.RR, soaRR *dns.SOA) error {
	key := u.cfg.PrivateKey
	dnskey := *key.DNSKEY
	dnskey.Hdr.Ttl = uint32(u.timings.TTLDNSKEY.Seconds())
	dnskeyRRset := []dns.RR{&dnskey}
	w.Add("@", &dnskey)

	nsecTypes := []uint16{dns.TypeNS, dns.TypeSOA, dns.TypeRRSIG, dns.TypeNSEC, dns.TypeDNSKEY}
	nsec := &dns.NSEC{
		Hdr: dns.RR_Header{
			Name:   u.origin,
			Rrtype: dns.TypeNSEC,
			Class:  dns.ClassINET,
			Ttl:    uint32(u.timings.TTLSOA.Seconds()),
		},
		NextDomain: u.origin,
		TypeBitMap: nsecTypes,
	}
	nsecRRset := []dns.RR{nsec}
	w.Add("@", nsec)

	inception := u.now()
	expiration := inception.Add(u.timings.RRSIGExpirationOffset)

	toSign := [][]dns.RR{nsRRset, {soaRR}, dnskeyRRset, nsecRRset}
	for _, rrset := range toSign {
		sig, err := signRRset(key.Signer, key.Algorithm, dnskey.KeyTag(), u.origin, rrset, inception, expiration)
		if err != nil {
			return err
		}
		w.Add("@", sig)
	}

	u.resignAt = inception.Add(u.timings.RRSIGResignOffset)
	return nil
}

func signRRset(signer crypto.Signer, alg uint8, keyTag uint16, signerName string, rrset []dns.RR, inception, expiration time.Time) (*dns.RRSIG, error) {
	if len(rrset) == 0 {
		return nil, fmt.Errorf("cannot sign an empty RRset")
	}

	hdr := rrset[0].Header()
	rrsig := &dns.RRSIG{
		Hdr: dns.RR_Header{
			Name:   hdr.Name,
			Rrtype: dns.TypeRRSIG,
			Class:  dns.ClassINET,
			Ttl:    hdr.Ttl,
		},
		TypeCovered: hdr.Rrtype,
		Algorithm:   alg,
		Labels:      uint8(dns.CountLabel(hdr.Name)),
		OrigTtl:     hdr.Ttl,
		Expiration:  uint32(expiration.Unix()),
		Inception:   uint32(inception.Unix()),
		KeyTag:      keyTag,
		SignerName:  signerName,
	}

	if err := rrsig.Sign(signer, rrset); err != nil {
		return nil, fmt.Errorf("signing %s RRset: %w", dns.TypeToString[hdr.Rrtype], err)
	}
	return rrsig, nil
}
