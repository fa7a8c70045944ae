// Package metrics exposes the server's Prometheus counters and gauges
// (C12 observability) on a loopback-only HTTP listener separate from the
// DNS socket.
package metrics

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueriesTotal counts handled queries by response code.
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ahealthydns_queries_total",
			Help: "Total DNS queries handled, by response code.",
		},
		[]string{"rcode"},
	)

	// ProbesTotal counts health-check probe outcomes, by the subdomain
	// record being probed and the outcome ("healthy" or "unhealthy").
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ahealthydns_probes_total",
			Help: "Total TCP health-check probes, by record and outcome.",
		},
		[]string{"record", "outcome"},
	)

	// ZoneRebuildsTotal counts zone snapshot rebuilds.
	ZoneRebuildsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ahealthydns_zone_rebuilds_total",
			Help: "Total zone snapshot rebuilds.",
		},
	)

	// ZoneSerial reports the current SOA serial.
	ZoneSerial = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ahealthydns_zone_serial",
			Help: "Current SOA serial number.",
		},
	)
)

func init() {
	prometheus.MustRegister(QueriesTotal, ProbesTotal, ZoneRebuildsTotal, ZoneSerial)
}

// Server serves /metrics on a loopback-only listener.
type Server struct {
	http *http.Server
}

// NewServer builds a metrics HTTP server bound to addr (expected to be a
// loopback address; the caller chooses it via --metrics-addr).
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{http: &http.Server{Addr: addr, Handler: mux}}
}

// ListenAndServe blocks serving metrics until the listener fails or Shutdown
// is called, in which case it returns http.ErrServerClosed.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.http.Serve(ln)
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
