// Package zoneorigins holds the primary zone apex plus zero or more alias
// apexes and relativizes absolute query names against whichever origin
// matches most specifically.
package zoneorigins

import (
	"fmt"
	"sort"

	"github.com/miekg/dns"
)

// ZoneOrigins holds the primary origin and its aliases, ordered by
// descending label count (ties broken lexicographically on text form) so
// Relativize always matches the most specific origin first.
type ZoneOrigins struct {
	primary string
	origins []string
}

// New validates and constructs a ZoneOrigins from a primary subdomain and
// its (possibly empty) aliases, all given as relative subdomains (no
// trailing dot required). Any alias that is, contains, or is contained by
// the primary or another alias is a fatal configuration error — the whole
// set is rejected, not just the offending alias.
func New(primary string, aliases []string) (*ZoneOrigins, error) {
	primaryFQDN := dns.Fqdn(primary)

	origins := make([]string, 0, 1+len(aliases))
	origins = append(origins, primaryFQDN)
	for _, a := range aliases {
		origins = append(origins, dns.Fqdn(a))
	}

	for i := 0; i < len(origins); i++ {
		for j := 0; j < len(origins); j++ {
			if i == j {
				continue
			}
			if origins[i] == origins[j] {
				return nil, fmt.Errorf("zoneorigins: duplicate origin %q", origins[i])
			}
			if dns.IsSubDomain(origins[j], origins[i]) {
				return nil, fmt.Errorf("zoneorigins: origin %q overlaps origin %q", origins[i], origins[j])
			}
		}
	}

	sort.Slice(origins, func(i, j int) bool {
		li := dns.CountLabel(origins[i])
		lj := dns.CountLabel(origins[j])
		if li != lj {
			return li > lj
		}
		return origins[i] < origins[j]
	})

	return &ZoneOrigins{primary: primaryFQDN, origins: origins}, nil
}

// Primary returns the primary origin in absolute (FQDN) form.
func (z *ZoneOrigins) Primary() string {
	return z.primary
}

// All returns every origin (primary plus aliases), in matching order.
func (z *ZoneOrigins) All() []string {
	out := make([]string, len(z.origins))
	copy(out, z.origins)
	return out
}

// Relativize returns name with its matching origin's labels stripped, and
// true, if name falls under exactly one configured origin (the longest
// matching one, since origins are ordered most-specific first and may not
// overlap). It returns ("", false) if name matches no configured origin.
func (z *ZoneOrigins) Relativize(name string) (string, bool) {
	fqdn := dns.Fqdn(name)

	for _, origin := range z.origins {
		if !dns.IsSubDomain(origin, fqdn) {
			continue
		}
		if fqdn == origin {
			return "@", true
		}

		nameLabels := dns.SplitDomainName(fqdn)
		originLabels := dns.CountLabel(origin)
		relative := nameLabels[:len(nameLabels)-originLabels]
		if len(relative) == 0 {
			return "@", true
		}
		return joinLabels(relative), true
	}

	return "", false
}

func joinLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += "."
		}
		out += l
	}
	return out
}
