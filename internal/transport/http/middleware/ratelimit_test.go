package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func withXFF(remote string, xff ...string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	for _, v := range xff {
		req.Header.Add("X-Forwarded-For", v)
	}
	return req
}

func TestClientIP_IgnoresHeadersWithoutTrustedProxy(t *testing.T) {
	req := withXFF("192.168.1.1:54321", "1.2.3.4")
	req.Header.Set("X-Real-Ip", "9.10.11.12")
	assert.Equal(t, "192.168.1.1", clientIP(req, 0))
}

func TestClientIP_SpoofedHopDoesNotChangeKey(t *testing.T) {
	// One proxy appends the peer it saw; the client prepended the rest.
	a := withXFF("10.0.0.2:443", "1.1.1.1, 203.0.113.9")
	b := withXFF("10.0.0.2:443", "2.2.2.2, 203.0.113.9")
	c := withXFF("10.0.0.2:443", "6.6.6.6, 7.7.7.7", "203.0.113.9")

	assert.Equal(t, "203.0.113.9", clientIP(a, 1))
	assert.Equal(t, clientIP(a, 1), clientIP(b, 1))
	assert.Equal(t, clientIP(a, 1), clientIP(c, 1))
}

func TestClientIP_TwoTrustedHops(t *testing.T) {
	req := withXFF("10.0.0.3:443", "6.6.6.6, 203.0.113.9, 10.0.0.2")
	assert.Equal(t, "203.0.113.9", clientIP(req, 2))
}

func TestClientIP_ShortChainFallsBackToPeer(t *testing.T) {
	req := withXFF("10.0.0.3:443", "203.0.113.9")
	assert.Equal(t, "10.0.0.3", clientIP(req, 2))
}

func TestClientAddr_StoresResolvedIP(t *testing.T) {
	var got string
	h := ClientAddr(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIP(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), withXFF("10.0.0.2:443", "1.1.1.1, 203.0.113.9"))
	assert.Equal(t, "203.0.113.9", got)

	assert.Equal(t, "10.0.0.2", ClientIP(withXFF("10.0.0.2:443", "1.1.1.1")))
}

func TestLimit_RotatingForwardedForSharesBucket(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(0.001), 1)
	h := rl.Limit(http.HandlerFunc(okHandler))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, withXFF("10.0.0.1:1234", "1.1.1.1"))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, withXFF("10.0.0.1:1234", "2.2.2.2"))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestLimit_PerIPBucket(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(0.001), 2)
	h := rl.Limit(http.HandlerFunc(okHandler))

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}
