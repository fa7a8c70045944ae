// Package validate holds the operator-input validators and normalizers:
// IPv4 literals, TCP ports, and DNS subdomain labels.
package validate

import (
	"fmt"
	"strconv"
	"strings"
)

// IP reports whether s is exactly four dot-separated decimal octets, each
// in 0..255. Leading zeros are accepted here; NormalizeIP strips them.
func IP(s string) (bool, error) {
	octets := strings.Split(s, ".")
	if len(octets) != 4 {
		return false, fmt.Errorf("ip %q: want 4 dot-separated octets, got %d", s, len(octets))
	}

	for _, o := range octets {
		if o == "" {
			return false, fmt.Errorf("ip %q: empty octet", s)
		}
		for _, c := range o {
			if c < '0' || c > '9' {
				return false, fmt.Errorf("ip %q: octet %q is not decimal", s, o)
			}
		}
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 || n > 255 {
			return false, fmt.Errorf("ip %q: octet %q out of range 0..255", s, o)
		}
	}

	return true, nil
}

// Port reports whether n is a valid TCP/UDP port, 1..65535.
func Port(n int) (bool, error) {
	if n < 1 || n > 65535 {
		return false, fmt.Errorf("port %d: want 1..65535", n)
	}
	return true, nil
}

// Subdomain reports whether s is a non-empty, dot-separated sequence of
// labels each composed solely of ASCII alphanumerics or hyphens.
func Subdomain(s string) (bool, error) {
	if s == "" {
		return false, fmt.Errorf("subdomain: empty")
	}

	labels := strings.Split(s, ".")
	for _, label := range labels {
		if label == "" {
			return false, fmt.Errorf("subdomain %q: empty label", s)
		}
		for _, c := range label {
			switch {
			case c >= 'a' && c <= 'z':
			case c >= 'A' && c <= 'Z':
			case c >= '0' && c <= '9':
			case c == '-':
			default:
				return false, fmt.Errorf("subdomain %q: label %q has invalid character %q", s, label, c)
			}
		}
	}

	return true, nil
}

// NormalizeIP strips leading zeros from each octet of s, which must already
// have passed IP. An all-zero octet normalizes to "0".
func NormalizeIP(s string) string {
	octets := strings.Split(s, ".")
	for i, o := range octets {
		trimmed := strings.TrimLeft(o, "0")
		if trimmed == "" {
			trimmed = "0"
		}
		octets[i] = trimmed
	}
	return strings.Join(octets, ".")
}
