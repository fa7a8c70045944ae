// Package healthyip holds the two small immutable value types at the
// center of the health-check model: a single (ip, port, healthy) tuple,
// and a named record grouping a set of them under one subdomain.
package healthyip

import "github.com/ahealthydns/ahealthydns/internal/validate"

// HealthyIp is an immutable (ip, health_port, is_healthy) tuple. Equality
// and hashing are over all three fields; ip is always held in its
// normalized (leading-zeros-stripped) form so two constructions from
// "192.168.001.001" and "192.168.1.1" compare equal.
type HealthyIp struct {
	IP         string
	HealthPort int
	IsHealthy  bool
}

// New normalizes ip and returns a HealthyIp, initially unhealthy.
func New(ip string, healthPort int) HealthyIp {
	return HealthyIp{IP: validate.NormalizeIP(ip), HealthPort: healthPort, IsHealthy: false}
}

// WithHealth returns a copy of h with IsHealthy set to healthy. If healthy
// already equals h.IsHealthy, h itself is returned unchanged.
func (h HealthyIp) WithHealth(healthy bool) HealthyIp {
	if h.IsHealthy == healthy {
		return h
	}
	h.IsHealthy = healthy
	return h
}

// HealthyRecord is a subdomain plus its set of HealthyIp. It defines no
// equality of its own (it holds a slice, so == does not apply); the
// updater (C7) keeps records by list position and replaces a record's IP
// set wholesale each pass, leaving Subdomain and position unchanged.
type HealthyRecord struct {
	Subdomain  string
	HealthyIPs []HealthyIp
}

// WithHealthyIPs returns a copy of r with its IP set replaced.
func (r HealthyRecord) WithHealthyIPs(ips []HealthyIp) HealthyRecord {
	r.HealthyIPs = ips
	return r
}

// AnyHealthy reports whether at least one IP in the record is currently
// healthy.
func (r HealthyRecord) AnyHealthy() bool {
	for _, ip := range r.HealthyIPs {
		if ip.IsHealthy {
			return true
		}
	}
	return false
}

// HealthyIPStrings returns the IP strings of every currently-healthy IP in
// the record, in slice order.
func (r HealthyRecord) HealthyIPStrings() []string {
	var out []string
	for _, ip := range r.HealthyIPs {
		if ip.IsHealthy {
			out = append(out, ip.IP)
		}
	}
	return out
}

// Clone returns a deep copy of r: a new backing slice with the same
// element values.
func (r HealthyRecord) Clone() HealthyRecord {
	ips := make([]HealthyIp, len(r.HealthyIPs))
	copy(ips, r.HealthyIPs)
	return HealthyRecord{Subdomain: r.Subdomain, HealthyIPs: ips}
}
