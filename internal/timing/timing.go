// Package timing derives every TTL, SOA timer, DNSKEY TTL, and RRSIG
// lifetime offset from a single max_interval input. The ratios below are
// contracts: see SPEC_FULL.md §4.4.
package timing

import "time"

// Timings holds every value derived from a single MaxInterval.
type Timings struct {
	MaxInterval time.Duration

	TTLA      time.Duration
	TTLNS     time.Duration
	TTLSOA    time.Duration
	TTLDNSKEY time.Duration

	SOARefresh time.Duration
	SOARetry   time.Duration
	SOAExpire  time.Duration
	SOAMinTTL  time.Duration

	RRSIGResignOffset     time.Duration
	RRSIGExpirationOffset time.Duration
}

// Derive computes every timing quantity from maxInterval, which must be
// positive.
func Derive(maxInterval time.Duration) Timings {
	ttlA := 2 * maxInterval
	ttlNS := 30 * ttlA
	ttlSOA := ttlNS
	ttlDNSKEY := 10 * ttlA

	soaRefresh := ttlDNSKEY
	soaRetry := ttlA
	soaExpire := 5 * soaRetry
	soaMinTTL := ttlA

	return Timings{
		MaxInterval: maxInterval,

		TTLA:      ttlA,
		TTLNS:     ttlNS,
		TTLSOA:    ttlSOA,
		TTLDNSKEY: ttlDNSKEY,

		SOARefresh: soaRefresh,
		SOARetry:   soaRetry,
		SOAExpire:  soaExpire,
		SOAMinTTL:  soaMinTTL,

		RRSIGResignOffset:     soaRefresh,
		RRSIGExpirationOffset: 2*soaRefresh + soaExpire + soaRetry,
	}
}

// PerRecordOverhead is the fixed per-A-record seconds added when deriving
// MaxInterval from the worst-case probe-pass duration: 1 second of
// bookkeeping overhead, plus 2 more if DNSSEC signing is configured.
func PerRecordOverhead(signing bool) time.Duration {
	if signing {
		return 3 * time.Second
	}
	return 1 * time.Second
}

// MaxInterval is the larger of the operator-supplied floor and the
// worst-case duration of a single probe pass: the sum, over every A
// record, of (number of IPs in that record * connectionTimeout) plus
// PerRecordOverhead(signing). This guarantees a pass always fits within
// max_interval even when every probe times out.
func MaxInterval(minInterval time.Duration, ipCounts []int, connectionTimeout time.Duration, signing bool) time.Duration {
	overhead := PerRecordOverhead(signing)

	var worstCase time.Duration
	for _, n := range ipCounts {
		worstCase += time.Duration(n)*connectionTimeout + overhead
	}

	if worstCase > minInterval {
		return worstCase
	}
	return minInterval
}
