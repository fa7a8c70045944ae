// Package dnsserver implements the authoritative UDP query handler (C9): a
// single dns.HandlerFunc that answers from the current zone snapshot with
// no recursion, no upstream forwarding, and no mutation of shared state
// beyond a reader-transaction handle.
package dnsserver

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"

	"github.com/miekg/dns"

	"github.com/ahealthydns/ahealthydns/internal/cookie"
	"github.com/ahealthydns/ahealthydns/internal/metrics"
	"github.com/ahealthydns/ahealthydns/internal/pool"
	"github.com/ahealthydns/ahealthydns/internal/ratelimit"
	"github.com/ahealthydns/ahealthydns/internal/zone"
	"github.com/ahealthydns/ahealthydns/internal/zoneorigins"
)

// Config bundles the dependencies the handler needs to answer a query.
// Cookies and Limiter are nil when their ambient hardening is disabled.
type Config struct {
	Addr    string
	Origins *zoneorigins.ZoneOrigins
	Zone    *zone.Zone
	Cookies *cookie.Manager
	Limiter *ratelimit.Limiter
	Log     *slog.Logger
}

// Server wraps the *dns.Server running the UDP handler.
type Server struct {
	cfg    Config
	dns    *dns.Server
	log    *slog.Logger
}

// New builds a Server bound to cfg.Addr but does not start listening.
func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	s := &Server{cfg: cfg, log: log}
	s.dns = &dns.Server{
		Addr:    cfg.Addr,
		Net:     "udp",
		Handler: dns.HandlerFunc(s.handle),
	}
	return s
}

// ListenAndServe blocks serving queries until the listener fails or
// Shutdown is called, in which case it returns nil.
func (s *Server) ListenAndServe() error {
	s.log.Info("starting udp query handler", "addr", s.cfg.Addr)
	return s.dns.ListenAndServe()
}

// Shutdown gracefully stops the UDP listener.
func (s *Server) Shutdown() error {
	s.log.Info("stopping udp query handler")
	return s.dns.Shutdown()
}

// handle answers a single query per SPEC_FULL.md §4.9. It never mutates the
// zone and holds a reader transaction only for the span needed to copy an
// RRset out.
func (s *Server) handle(w dns.ResponseWriter, req *dns.Msg) {
	if s.cfg.Limiter != nil {
		if ip := clientIP(w.RemoteAddr()); ip != nil && !s.cfg.Limiter.Allow(ip) {
			return
		}
	}

	resp := pool.GetMessage()
	defer pool.PutMessage(resp)
	resp.SetReply(req)
	resp.Authoritative = true

	if len(req.Question) == 0 {
		resp.Rcode = dns.RcodeFormatError
		s.send(w, resp)
		return
	}

	if s.cfg.Cookies != nil && !s.checkCookie(req, resp, w.RemoteAddr()) {
		resp.Rcode = dns.RcodeBadCookie
		s.send(w, resp)
		return
	}

	q := req.Question[0]

	rel, ok := s.cfg.Origins.Relativize(q.Name)
	if !ok {
		resp.Rcode = dns.RcodeNameError
		s.send(w, resp)
		return
	}

	snap := s.cfg.Zone.Reader()
	rrset, nodeExists := snap.Lookup(rel, q.Qtype)

	switch {
	case !nodeExists:
		resp.Rcode = dns.RcodeNameError
		s.appendSOAAuthority(resp, snap)
	case len(rrset) == 0:
		s.appendSOAAuthority(resp, snap)
	default:
		resp.Answer = make([]dns.RR, 0, len(rrset))
		for _, rr := range rrset {
			resp.Answer = append(resp.Answer, withOwner(rr, q.Name))
		}
		for _, sig := range s.coveringRRSIGs(snap, rel, q.Qtype) {
			resp.Answer = append(resp.Answer, withOwner(sig, q.Name))
		}
	}

	s.send(w, resp)
}

// checkCookie applies the optional EDNS0 COOKIE option. It returns false
// when the query should be answered BADCOOKIE instead of proceeding, and
// attaches a server cookie to resp's OPT record otherwise.
func (s *Server) checkCookie(req, resp *dns.Msg, addr net.Addr) bool {
	opt := req.IsEdns0()
	if opt == nil {
		return true
	}

	var raw []byte
	for _, o := range opt.Option {
		if c, ok := o.(*dns.EDNS0_COOKIE); ok {
			var err error
			raw, err = hex.DecodeString(c.Cookie)
			if err != nil {
				return true
			}
			break
		}
	}
	if raw == nil {
		return true
	}

	clientCookie, serverCookie, err := cookie.ParseCookie(raw)
	if err != nil {
		return true
	}

	ip := clientIP(addr)
	if s.cfg.Cookies.ValidateQueryCookie(clientCookie, serverCookie, ip) {
		return false
	}

	newServer := s.cfg.Cookies.GenerateServerCookie(clientCookie, ip)
	respOpt := resp.IsEdns0()
	if respOpt == nil {
		respOpt = &dns.OPT{Hdr: dns.RR_Header{Name: ".", Rrtype: dns.TypeOPT}}
		resp.Extra = append(resp.Extra, respOpt)
	}
	respOpt.Option = append(respOpt.Option, &dns.EDNS0_COOKIE{
		Code:   dns.EDNS0COOKIE,
		Cookie: hex.EncodeToString(cookie.FormatCookie(clientCookie, newServer[:])),
	})
	return true
}

// coveringRRSIGs returns the apex RRSIGs covering qtype, if the zone is
// signed. RRSIGs are always stored under the apex node regardless of which
// RRset they cover (SPEC_FULL.md §8 Scenario S5), so this ignores rel and
// filters the apex TypeRRSIG bucket by TypeCovered instead.
func (s *Server) coveringRRSIGs(snap *zone.Snapshot, rel string, qtype uint16) []dns.RR {
	if qtype == dns.TypeRRSIG {
		return nil
	}
	sigs, ok := snap.Lookup("@", dns.TypeRRSIG)
	if !ok {
		return nil
	}
	matching := make([]dns.RR, 0, 1)
	for _, rr := range sigs {
		if sig, ok := rr.(*dns.RRSIG); ok && sig.TypeCovered == qtype {
			matching = append(matching, rr)
		}
	}
	return matching
}

// appendSOAAuthority adds the apex SOA to resp's authority section for a
// negative (NXDOMAIN or NOERROR-empty) answer, when one is present.
func (s *Server) appendSOAAuthority(resp *dns.Msg, snap *zone.Snapshot) {
	soaRRset, ok := snap.Lookup("@", dns.TypeSOA)
	if !ok || len(soaRRset) == 0 {
		return
	}
	resp.Ns = soaRRset
}

func (s *Server) send(w dns.ResponseWriter, resp *dns.Msg) {
	rcode := dns.RcodeToString[resp.Rcode]
	if rcode == "" {
		rcode = fmt.Sprintf("RCODE%d", resp.Rcode)
	}
	metrics.QueriesTotal.WithLabelValues(rcode).Inc()

	if err := w.WriteMsg(resp); err != nil {
		s.log.Warn("writing response failed", "error", err)
	}
}

// withOwner returns a shallow copy of rr with its owner name replaced by
// name, preserving TTL and rdata, so alias-apex queries echo back the label
// the client actually used (SPEC_FULL.md §4.9 step 5).
func withOwner(rr dns.RR, name string) dns.RR {
	cp := dns.Copy(rr)
	cp.Header().Name = name
	return cp
}

func clientIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.TCPAddr:
		return a.IP
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return nil
		}
		return net.ParseIP(host)
	}
}
