// Package cookie implements RFC 7873/9018 DNS Cookies: a lightweight
// off-path-attack defense where the server echoes a SipHash-2-4 value tied
// to the client's IP and a rotating secret, so a later query carrying a
// stale or missing server cookie can be told apart from a spoofed one.
package cookie

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/dchest/siphash"
)

var (
	ErrInvalidClientCookie = errors.New("invalid client cookie")
	ErrInvalidServerCookie = errors.New("invalid server cookie")
)

const (
	clientCookieSize = 8
	serverCookieSize = 8
	cookieVersion    = 1

	secretRotationInterval = 24 * time.Hour
)

// Manager generates and validates server cookies. The zero value is not
// usable; construct one with NewManager.
type Manager struct {
	mu sync.RWMutex

	currentSecret  [16]byte
	previousSecret [16]byte

	enabled      bool
	requireValid bool
}

// Config holds cookie manager configuration.
type Config struct {
	Enabled      bool
	RequireValid bool // BADCOOKIE on a missing/invalid server cookie
}

// NewManager creates a cookie manager with a freshly generated secret.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{enabled: cfg.Enabled, requireValid: cfg.RequireValid}
	if err := m.rotateSecret(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) rotateSecret() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.previousSecret = m.currentSecret
	if _, err := rand.Read(m.currentSecret[:]); err != nil {
		return err
	}
	return nil
}

// RotateSecretPeriodically rotates the signing secret on a fixed interval
// until stop is closed. Run it in its own goroutine.
func (m *Manager) RotateSecretPeriodically(stop <-chan struct{}) {
	ticker := time.NewTicker(secretRotationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.rotateSecret()
		case <-stop:
			return
		}
	}
}

// GenerateServerCookie computes SipHash-2-4(secret, client-cookie ||
// client-IP || version || now) per RFC 9018.
func (m *Manager) GenerateServerCookie(clientCookie [8]byte, clientIP []byte) [8]byte {
	m.mu.RLock()
	secret := m.currentSecret
	m.mu.RUnlock()

	return computeServerCookie(secret, clientCookie, clientIP, time.Now())
}

func computeServerCookie(secret [16]byte, clientCookie [8]byte, clientIP []byte, t time.Time) [8]byte {
	h := siphash.New(secret[:])
	h.Write(clientCookie[:])
	h.Write(clientIP)
	h.Write([]byte{cookieVersion, 0, 0, 0})
	var ts [4]byte
	binary.BigEndian.PutUint32(ts[:], uint32(t.Unix()))
	h.Write(ts[:])

	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], h.Sum64())
	return out
}

// validateServerCookie accepts the cookie if it matches either the current
// or the previous secret, so a rotation in progress doesn't invalidate
// cookies issued moments before it.
func (m *Manager) validateServerCookie(clientCookie [8]byte, serverCookie [8]byte, clientIP []byte) bool {
	m.mu.RLock()
	current, previous := m.currentSecret, m.previousSecret
	m.mu.RUnlock()

	now := time.Now()
	if subtle.ConstantTimeCompare(serverCookie[:], computeServerCookie(current, clientCookie, clientIP, now)[:]) == 1 {
		return true
	}
	return subtle.ConstantTimeCompare(serverCookie[:], computeServerCookie(previous, clientCookie, clientIP, now)[:]) == 1
}

// ParseCookie splits raw EDNS0 COOKIE option data into its client and
// (optional) server cookie halves per RFC 7873's 8-or-16-to-40-byte layout.
func ParseCookie(data []byte) (clientCookie [8]byte, serverCookie []byte, err error) {
	if len(data) < clientCookieSize {
		return clientCookie, nil, ErrInvalidClientCookie
	}
	copy(clientCookie[:], data[:clientCookieSize])

	if len(data) == clientCookieSize {
		return clientCookie, nil, nil
	}
	serverCookie = data[clientCookieSize:]
	if len(serverCookie) < 8 || len(serverCookie) > 32 {
		return clientCookie, nil, ErrInvalidServerCookie
	}
	return clientCookie, serverCookie, nil
}

// FormatCookie assembles EDNS0 COOKIE option data from its two halves.
func FormatCookie(clientCookie [8]byte, serverCookie []byte) []byte {
	data := make([]byte, clientCookieSize+len(serverCookie))
	copy(data[:clientCookieSize], clientCookie[:])
	copy(data[clientCookieSize:], serverCookie)
	return data
}

// ValidateQueryCookie reports whether the query's cookie should cause a
// BADCOOKIE response. A first-contact query (no server cookie yet) is
// always accepted, matching RFC 7873's client-bootstrapping allowance.
func (m *Manager) ValidateQueryCookie(clientCookie [8]byte, serverCookie []byte, clientIP []byte) bool {
	if !m.enabled {
		return false
	}
	if len(serverCookie) == 0 {
		return false
	}
	if len(serverCookie) != serverCookieSize {
		return m.requireValid
	}

	var sc [8]byte
	copy(sc[:], serverCookie)
	if m.validateServerCookie(clientCookie, sc, clientIP) {
		return false
	}
	return m.requireValid
}
