// SPDX-License-Identifier: MIT

package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(cfg)
	l.now = clk.now
	l.lastSweep = clk.t
	return l, clk
}

func countAllowed(l *Limiter, key string, n int) int {
	allowed := 0
	for i := 0; i < n; i++ {
		if l.Allow(key) {
			allowed++
		}
	}
	return allowed
}

func TestNew_DisabledIsNil(t *testing.T) {
	l := New(Config{PerMinute: 0})
	assert.Nil(t, l)
	assert.True(t, l.Allow("anyone"), "nil limiter allows")
	assert.Zero(t, l.Clients())
}

func TestAllow_PerClientBurstAndRefill(t *testing.T) {
	l, clk := newTestLimiter(Config{Operation: "upload", PerMinute: 60, Burst: 3})

	assert.Equal(t, 3, countAllowed(l, "10.0.0.1", 10))
	assert.Equal(t, 3, countAllowed(l, "10.0.0.2", 10), "clients have separate buckets")

	clk.t = clk.t.Add(2 * time.Second)
	assert.Equal(t, 2, countAllowed(l, "10.0.0.1", 10), "one token per second refills")
}

func TestAllow_GlobalCap(t *testing.T) {
	l, _ := newTestLimiter(Config{Operation: "upload", PerMinute: 600, Burst: 100, GlobalPerMinute: 6})

	total := 0
	for _, ip := range []string{"a", "b", "c", "d"} {
		total += countAllowed(l, ip, 50)
	}
	assert.Equal(t, 100, total, "global burst is shared across clients")
}

func TestSweep_DropsIdleClients(t *testing.T) {
	l, clk := newTestLimiter(Config{PerMinute: 60, IdleTTL: time.Minute})
	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Clients())

	clk.t = clk.t.Add(2 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Clients())
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest("POST", "/upload", nil)
	r.RemoteAddr = "192.0.2.10:51234"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "192.0.2.10", ClientKey(r))

	r.RemoteAddr = "unix-socket"
	assert.Equal(t, "unix-socket", ClientKey(r))
}
