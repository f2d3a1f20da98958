// Package ratelimit implements per-client sliding-window request admission.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultWindow = time.Minute
	DefaultMax    = 18
)

// Limiter tracks request timestamps per client identity within a trailing
// window. State is process-lifetime only; entries for clients that go quiet
// are never evicted. Acceptable because restarts reset the map.
type Limiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	seen   map[string][]time.Time
	now    func() time.Time // swapped in tests
}

// New creates a limiter. Non-positive arguments fall back to defaults.
func New(window time.Duration, max int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}
	return &Limiter{
		window: window,
		max:    max,
		seen:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Admit reports whether a request from clientID may proceed. Timestamps older
// than the window are pruned first; the new timestamp is recorded only on
// admission.
func (l *Limiter) Admit(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	stamps := l.seen[clientID]
	kept := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.max {
		l.seen[clientID] = kept
		return false
	}

	l.seen[clientID] = append(kept, now)
	return true
}

// ClientID derives a client identity from the request: the first
// X-Forwarded-For entry when present, otherwise the transport peer address.
func ClientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
