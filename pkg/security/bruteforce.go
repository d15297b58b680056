// Package security implements the admin HTTP surface's guard rails:
// IP-based brute-force lockout, an admin IP allowlist, OWASP security
// headers, and request-ID propagation — translated from the original
// api-server crate's axum middleware (brute_force.rs, ip_allowlist.rs,
// security_headers.rs, request_id.rs) into net/http middleware mounted on
// a go-chi/chi/v5 router.
package security

import (
	"sync"
	"time"
)

type failureRecord struct {
	count        int
	firstFailure time.Time
	lockedUntil  time.Time
}

// BruteForceGuard tracks failed admin-auth attempts per IP and locks an IP
// out for Lockout once MaxFailures accrue within Window.
type BruteForceGuard struct {
	mu           sync.Mutex
	failures     map[string]*failureRecord
	MaxFailures  int
	Window       time.Duration
	Lockout      time.Duration
}

func NewBruteForceGuard(maxFailures int, window, lockout time.Duration) *BruteForceGuard {
	return &BruteForceGuard{
		failures:    make(map[string]*failureRecord),
		MaxFailures: maxFailures,
		Window:      window,
		Lockout:     lockout,
	}
}

// RecordFailure logs one failed attempt from ip, triggering lockout once
// MaxFailures accrue within Window.
func (g *BruteForceGuard) RecordFailure(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	rec, ok := g.failures[ip]
	if !ok {
		rec = &failureRecord{firstFailure: now}
		g.failures[ip] = rec
	}

	if now.Sub(rec.firstFailure) > g.Window {
		rec.count = 0
		rec.firstFailure = now
		rec.lockedUntil = time.Time{}
	}

	rec.count++
	if rec.count >= g.MaxFailures {
		rec.lockedUntil = now.Add(g.Lockout)
	}
}

// IsLocked reports whether ip is currently within a lockout window.
func (g *BruteForceGuard) IsLocked(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.failures[ip]
	if !ok || rec.lockedUntil.IsZero() {
		return false
	}
	return time.Now().Before(rec.lockedUntil)
}

// RecordSuccess clears failure tracking for ip after successful auth.
func (g *BruteForceGuard) RecordSuccess(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failures, ip)
}

// Cleanup removes entries untouched for longer than Window+Lockout. Intended
// to run periodically from a background ticker so the map does not grow
// without bound under sustained low-rate probing.
func (g *BruteForceGuard) Cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()
	maxAge := g.Window + g.Lockout
	now := time.Now()
	for ip, rec := range g.failures {
		if now.Sub(rec.firstFailure) > maxAge {
			delete(g.failures, ip)
		}
	}
}
