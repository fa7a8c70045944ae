// Package scheduler wraps the zone updater (C7) in a background goroutine
// (C8): a single worker loop that paces health-check passes at min_interval
// and drains cleanly on Stop.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ahealthydns/ahealthydns/internal/updater"
)

// updaterConnectionOverhead is added to the connection timeout when bounding
// how long Stop waits for the worker goroutine to notice the stop signal and
// return, matching the Python original's DELTA_PER_RECORD_MANAGEMENT slack.
const updaterConnectionOverhead = 1 * time.Second

// Scheduler runs Updater.Update on a background goroutine at a fixed pace.
// Start and Stop are idempotent and safe to call from any goroutine; only
// one worker goroutine is ever running at a time.
type Scheduler struct {
	updater           *updater.Updater
	minInterval       time.Duration
	connectionTimeout time.Duration
	log               *slog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New returns a Scheduler driving u, pacing background passes at
// minInterval. log may be nil, in which case slog.Default() is used.
func New(u *updater.Updater, minInterval, connectionTimeout time.Duration, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		updater:           u,
		minInterval:       minInterval,
		connectionTimeout: connectionTimeout,
		log:               log,
	}
}

// Start primes the zone synchronously with a check_ips=false pass (so the
// DNS server has NS/SOA answers the instant Start returns), then launches
// the background probing loop. Calling Start while already running logs and
// returns without effect.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("scheduler already running")
		return nil
	}

	s.log.Info("initializing zone")
	if err := s.updater.Update(false, nil); err != nil {
		return err
	}

	s.log.Info("starting zone updater")
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true

	go s.loop(s.stopCh, s.doneCh)
	return nil
}

func (s *Scheduler) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	shouldAbort := func() bool {
		select {
		case <-stopCh:
			return true
		default:
			return false
		}
	}

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		start := time.Now()
		if err := s.updater.Update(true, shouldAbort); err != nil {
			s.log.Error("zone update failed", "error", err)
		}

		elapsed := time.Since(start)
		sleep := s.minInterval - elapsed
		if sleep <= 0 {
			continue
		}

		timer := time.NewTimer(sleep)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Stop signals the background loop to exit and waits up to
// connection_timeout+1s for it to do so. It returns false if the worker did
// not terminate within that window (it may still be mid-probe). Calling
// Stop when not running logs and returns true without effect.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.log.Warn("scheduler not running")
		return true
	}

	s.log.Info("stopping zone updater")
	close(s.stopCh)
	s.running = false

	select {
	case <-s.doneCh:
		return true
	case <-time.After(s.connectionTimeout + updaterConnectionOverhead):
		s.log.Warn("zone updater did not terminate gracefully")
		return false
	}
}
