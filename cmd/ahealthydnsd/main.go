// Command ahealthydnsd runs an authoritative DNS server that answers A
// records for configured subdomains only while their backing IPs pass a
// TCP health check, with optional DNSSEC signing of the zone it serves.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahealthydns/ahealthydns/internal/config"
	"github.com/ahealthydns/ahealthydns/internal/cookie"
	"github.com/ahealthydns/ahealthydns/internal/dnsserver"
	"github.com/ahealthydns/ahealthydns/internal/logging"
	"github.com/ahealthydns/ahealthydns/internal/metrics"
	"github.com/ahealthydns/ahealthydns/internal/ratelimit"
	"github.com/ahealthydns/ahealthydns/internal/scheduler"
	"github.com/ahealthydns/ahealthydns/internal/updater"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		hostedZone       = flag.String("hosted-zone", "", "primary origin subdomain (required)")
		aliasZonesJSON   = flag.String("alias-zones", "[]", "JSON array of alias origin subdomains")
		nsJSON           = flag.String("ns", "", "JSON array of name servers (required)")
		resolutionsJSON  = flag.String("zone-resolutions", "", "JSON object mapping subdomain to {ips, health_port} (required)")
		port             = flag.Int("port", 53053, "UDP bind port")
		testMinInterval  = flag.Int("test-min-interval", 30, "operator floor for min_interval, in seconds")
		testTimeout      = flag.Int("test-timeout", 2, "TCP connect timeout, in seconds")
		privKeyPath      = flag.String("priv-key-path", "", "PEM private key path; absent disables DNSSEC")
		privKeyAlg       = flag.String("priv-key-alg", "RSASHA256", "DNSSEC signing algorithm name")
		logLevel         = flag.String("log-level", "info", "log verbosity: debug, info, warn, error")
		metricsAddr      = flag.String("metrics-addr", "", "loopback address to serve /metrics on; empty disables it")
		enableCookies    = flag.Bool("enable-cookies", false, "turn on DNS Cookie validation")
		enableRatelimit  = flag.Bool("enable-ratelimit", false, "turn on per-client QPS limiting")
		ratelimitQPS     = flag.Float64("ratelimit-qps", 20, "token-bucket rate when rate limiting is enabled")
	)
	flag.Parse()

	log := logging.New(*logLevel)

	fmt.Println("ahealthydnsd - health-checked authoritative DNS server")

	in, err := buildInput(*hostedZone, *aliasZonesJSON, *nsJSON, *resolutionsJSON, *port, *testMinInterval, *testTimeout, *privKeyPath, *privKeyAlg)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	cfg, err := config.New(in)
	if err != nil {
		log.Error("configuration rejected", "error", err)
		return 1
	}

	u := updater.New(cfg)
	sched := scheduler.New(u, cfg.MinInterval, cfg.ConnectionTimeout, log)
	if err := sched.Start(); err != nil {
		log.Error("zone priming failed", "error", err)
		return 1
	}

	var cookieMgr *cookie.Manager
	if *enableCookies {
		cookieMgr, err = cookie.NewManager(cookie.Config{Enabled: true, RequireValid: false})
		if err != nil {
			log.Error("failed to initialize cookie manager", "error", err)
			return 1
		}
		stopRotation := make(chan struct{})
		defer close(stopRotation)
		go cookieMgr.RotateSecretPeriodically(stopRotation)
	}

	var limiter *ratelimit.Limiter
	if *enableRatelimit {
		limiter = ratelimit.New(ratelimit.Config{
			QueriesPerSecond: *ratelimitQPS,
			BurstSize:        int(*ratelimitQPS) * 2,
			CleanupInterval:  5 * time.Minute,
		})
	}

	srv := dnsserver.New(dnsserver.Config{
		Addr:    fmt.Sprintf(":%d", *port),
		Origins: cfg.Origins,
		Zone:    u.Zone(),
		Cookies: cookieMgr,
		Limiter: limiter,
		Log:     log,
	})

	var metricsSrv *metrics.Server
	if *metricsAddr != "" {
		metricsSrv = metrics.NewServer(*metricsAddr)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil {
				log.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("ahealthydnsd ready", "port", *port, "origin", cfg.Origins.Primary())

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error("udp server exited unexpectedly", "error", err)
		}
	}

	if err := srv.Shutdown(); err != nil {
		log.Warn("udp server shutdown error", "error", err)
	}
	sched.Stop()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(shutdownCtx)
	}

	return 0
}

func buildInput(hostedZone, aliasZonesJSON, nsJSON, resolutionsJSON string, port, testMinInterval, testTimeout int, privKeyPath, privKeyAlg string) (config.Input, error) {
	if hostedZone == "" {
		return config.Input{}, fmt.Errorf("--hosted-zone is required")
	}
	if nsJSON == "" {
		return config.Input{}, fmt.Errorf("--ns is required")
	}
	if resolutionsJSON == "" {
		return config.Input{}, fmt.Errorf("--zone-resolutions is required")
	}

	var aliasZones []string
	if err := json.Unmarshal([]byte(aliasZonesJSON), &aliasZones); err != nil {
		return config.Input{}, fmt.Errorf("--alias-zones: %w", err)
	}

	var nameServers []string
	if err := json.Unmarshal([]byte(nsJSON), &nameServers); err != nil {
		return config.Input{}, fmt.Errorf("--ns: %w", err)
	}

	var rawResolutions map[string]struct {
		IPs        []string `json:"ips"`
		HealthPort int      `json:"health_port"`
	}
	if err := json.Unmarshal([]byte(resolutionsJSON), &rawResolutions); err != nil {
		return config.Input{}, fmt.Errorf("--zone-resolutions: %w", err)
	}

	resolutions := make(map[string]config.Resolution, len(rawResolutions))
	for subdomain, r := range rawResolutions {
		resolutions[subdomain] = config.Resolution{IPs: r.IPs, HealthPort: r.HealthPort}
	}

	return config.Input{
		Zone:              hostedZone,
		AliasZones:        aliasZones,
		NameServers:       nameServers,
		Resolutions:       resolutions,
		PrivKeyPath:       privKeyPath,
		PrivKeyAlg:        privKeyAlg,
		MinInterval:       time.Duration(testMinInterval) * time.Second,
		ConnectionTimeout: time.Duration(testTimeout) * time.Second,
	}, nil
}
