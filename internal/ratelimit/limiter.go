// SPDX-License-Identifier: MIT

// Package ratelimit throttles expensive operations, such as uploads, per client.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var rejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "filechain_ratelimit_rejected_total",
	Help: "Operations rejected by the token-bucket limiter",
}, []string{"operation", "scope"})

const defaultIdleTTL = 10 * time.Minute

// Config sizes a Limiter.
type Config struct {
	// Operation labels metrics, e.g. "upload".
	Operation string
	// PerMinute is the sustained per-client rate. Zero disables limiting.
	PerMinute int
	// Burst is the per-client bucket size. Defaults to 1.
	Burst int
	// GlobalPerMinute caps all clients together. Zero means no cap.
	GlobalPerMinute int
	// IdleTTL drops buckets of clients not seen for this long.
	IdleTTL time.Duration
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter holds one token bucket per client key plus an optional global one.
// A nil Limiter allows everything.
type Limiter struct {
	cfg    Config
	every  rate.Limit
	global *rate.Limiter
	now    func() time.Time

	mu        sync.Mutex
	clients   map[string]*bucket
	lastSweep time.Time
}

// New returns a limiter for cfg, or nil when cfg.PerMinute is not positive.
func New(cfg Config) *Limiter {
	if cfg.PerMinute <= 0 {
		return nil
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	l := &Limiter{
		cfg:     cfg,
		every:   rate.Every(time.Minute / time.Duration(cfg.PerMinute)),
		now:     time.Now,
		clients: make(map[string]*bucket),
	}
	if cfg.GlobalPerMinute > 0 {
		l.global = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.GlobalPerMinute)), max(cfg.Burst, cfg.GlobalPerMinute/6))
	}
	l.lastSweep = l.now()
	return l
}

// Allow consumes one token for key and reports whether the operation may
// proceed.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	b, ok := l.clients[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.cfg.Burst)}
		l.clients[key] = b
	}
	b.seen = now
	l.sweep(now)
	l.mu.Unlock()

	if l.global != nil && !l.global.AllowN(now, 1) {
		rejected.WithLabelValues(l.cfg.Operation, "global").Inc()
		return false
	}
	if !b.lim.AllowN(now, 1) {
		rejected.WithLabelValues(l.cfg.Operation, "client").Inc()
		return false
	}
	return true
}

// Clients returns the number of tracked client buckets.
func (l *Limiter) Clients() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// sweep drops idle buckets. Callers hold l.mu.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.IdleTTL {
		return
	}
	for k, b := range l.clients {
		if now.Sub(b.seen) >= l.cfg.IdleTTL {
			delete(l.clients, k)
		}
	}
	l.lastSweep = now
}

// ClientKey returns the host part of the request's remote address.
// Forwarding headers are not trusted.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
