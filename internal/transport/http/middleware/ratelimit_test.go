package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newTestLimiter(t *testing.T, r rate.Limit, burst int, trusted ...string) *RateLimiter {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	var prefixes []netip.Prefix
	for _, p := range trusted {
		prefixes = append(prefixes, netip.MustParsePrefix(p))
	}
	return NewRateLimiter(ctx, r, burst, prefixes)
}

func TestClientIP(t *testing.T) {
	rl := newTestLimiter(t, rate.Limit(1), 1, "10.0.0.0/8")
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		want       string
	}{
		{"untrusted peer ignores headers", "203.0.113.7:5000", "1.2.3.4", "9.9.9.9", "203.0.113.7"},
		{"trusted proxy uses last untrusted hop", "10.0.0.2:443", "1.2.3.4, 5.6.7.8", "", "5.6.7.8"},
		{"trusted hops are skipped", "10.0.0.2:443", "5.6.7.8, 10.1.1.1", "", "5.6.7.8"},
		{"all hops trusted", "10.0.0.2:443", "10.1.1.1", "", "10.1.1.1"},
		{"garbage hop stops the walk", "10.0.0.2:443", "evil, 10.1.1.1", "9.9.9.9", "10.1.1.1"},
		{"x-real-ip only behind trusted proxy", "10.0.0.2:443", "", "9.10.11.12", "9.10.11.12"},
		{"no headers", "10.0.0.2:443", "", "", "10.0.0.2"},
		{"ipv6 peer", "[2001:db8::1]:443", "1.2.3.4", "", "2001:db8::1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xRealIP != "" {
				req.Header.Set("X-Real-Ip", tc.xRealIP)
			}
			assert.Equal(t, tc.want, rl.clientIP(req))
		})
	}
}

func TestRateLimiter_RotatingForwardedForDoesNotEvadeLimit(t *testing.T) {
	h := newTestLimiter(t, rate.Limit(5), 10).Limit(http.HandlerFunc(okHandler))

	allowed := 0
	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusOK {
			allowed++
		}
	}
	assert.LessOrEqual(t, allowed, 11)
}

func TestRateLimiter_BlocksAfterBurstPerIP(t *testing.T) {
	h := newTestLimiter(t, rate.Limit(0.001), 2).Limit(http.HandlerFunc(okHandler))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000"))
}

func TestRateLimiter_SweepDropsStaleEntries(t *testing.T) {
	rl := newTestLimiter(t, rate.Limit(1), 1)
	rl.get("10.0.0.1")
	rl.get("10.0.0.2")
	rl.limiters["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)

	rl.sweep(time.Now())
	assert.NotContains(t, rl.limiters, "10.0.0.1")
	assert.Contains(t, rl.limiters, "10.0.0.2")
}
