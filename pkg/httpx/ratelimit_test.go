package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIPKeyExtractor_IgnoresHeadersWithoutRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.1")
	req.Header.Set("X-Real-IP", "203.0.113.2")
	require.Equal(t, "192.168.1.1", IPKeyExtractor(req))

	req.RemoteAddr = "192.168.1.1"
	require.Equal(t, "192.168.1.1", IPKeyExtractor(req), "remote addr without port")
}

func TestTrustedProxies_Resolve(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.4 ", ""})
	require.NoError(t, err)

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{name: "direct peer", remoteAddr: "198.51.100.9:4444", want: "198.51.100.9"},
		{name: "forged xff from untrusted peer", remoteAddr: "198.51.100.9:4444", xff: "10.0.0.1", want: "198.51.100.9"},
		{name: "forged xri from untrusted peer", remoteAddr: "198.51.100.9:4444", xri: "203.0.113.2", want: "198.51.100.9"},
		{name: "trusted proxy forwards client", remoteAddr: "10.0.0.2:1234", xff: "203.0.113.1", want: "203.0.113.1"},
		{name: "client prefix cannot be spoofed", remoteAddr: "10.0.0.2:1234", xff: "1.2.3.4, 203.0.113.1", want: "203.0.113.1"},
		{name: "proxy chain skips trusted hops", remoteAddr: "10.0.0.2:1234", xff: "203.0.113.1, 192.168.1.4, 10.1.1.1", want: "203.0.113.1"},
		{name: "all hops trusted", remoteAddr: "10.0.0.2:1234", xff: "10.9.9.9", want: "10.9.9.9"},
		{name: "garbled hop", remoteAddr: "10.0.0.2:1234", xff: "nonsense", want: "10.0.0.2"},
		{name: "x-real-ip from trusted proxy", remoteAddr: "192.168.1.4:80", xri: "203.0.113.2", want: "203.0.113.2"},
		{name: "xff wins over xri", remoteAddr: "10.0.0.2:1234", xff: "203.0.113.1", xri: "203.0.113.2", want: "203.0.113.1"},
		{name: "trusted proxy without headers", remoteAddr: "10.0.0.2:1234", want: "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			require.Equal(t, tt.want, trusted.Resolve(req))
		})
	}
}

func TestParseTrustedProxies_Invalid(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"10.0.0.0/33"})
	require.Error(t, err)
	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	require.Error(t, err)

	none, err := ParseTrustedProxies(nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestRealIP_FeedsRateLimitKey(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	config := RateLimitConfig{RequestsPerWindow: 1, Window: time.Hour, Burst: 1}
	handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RealIP(trusted), RateLimitByIP(config))

	send := func(remoteAddr, xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("198.51.100.9:1", "203.0.113.1"))
	// rotating the header from an untrusted peer does not buy a new bucket
	require.Equal(t, http.StatusTooManyRequests, send("198.51.100.9:2", "203.0.113.2"))

	// distinct clients behind the proxy get their own buckets
	require.Equal(t, http.StatusOK, send("10.0.0.2:1", "203.0.113.1"))
	require.Equal(t, http.StatusOK, send("10.0.0.2:1", "203.0.113.2"))
	require.Equal(t, http.StatusTooManyRequests, send("10.0.0.2:1", "203.0.113.2"))
}

func TestCompositeKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:1234"

	extractor := CompositeKeyExtractor(":", UserIDKeyExtractor, IPKeyExtractor)
	require.Equal(t, "192.168.1.1", extractor(req), "anonymous falls back to ip only")

	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	require.Equal(t, "user-1:192.168.1.1", extractor(req))
}

func TestRateLimitMiddleware_BlocksAfterBurst(t *testing.T) {
	config := RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3}
	handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RateLimitByIP(config))

	for i := range 3 {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = "192.168.1.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, CodeRateLimited, body.Code)

	// a different client is unaffected
	req = httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "192.168.1.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware_EmptyKeyAllows(t *testing.T) {
	config := RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	handler := RateLimitMiddleware(config, UserIDKeyExtractor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestLoadRateLimits(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		limits, err := LoadRateLimits()
		require.NoError(t, err)
		require.Equal(t, DefaultRateLimits(), limits)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("RATELIMIT_STRICT_REQUESTS", "50")
		t.Setenv("RATELIMIT_STRICT_BURST", "60")
		t.Setenv("RATELIMIT_PUBLIC_WINDOW", "30s")

		limits, err := LoadRateLimits()
		require.NoError(t, err)
		require.Equal(t, 50, limits.Strict.RequestsPerWindow)
		require.Equal(t, 60, limits.Strict.Burst)
		require.Equal(t, time.Minute, limits.Strict.Window)
		require.Equal(t, 30*time.Second, limits.Public.Window)
		require.Equal(t, 20, limits.Moderate.RequestsPerWindow)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("RATELIMIT_LENIENT_WINDOW", "soon")
		_, err := LoadRateLimits()
		require.Error(t, err)
	})

	t.Run("non-positive values are clamped", func(t *testing.T) {
		t.Setenv("RATELIMIT_MODERATE_REQUESTS", "0")
		t.Setenv("RATELIMIT_MODERATE_BURST", "-1")
		limits, err := LoadRateLimits()
		require.NoError(t, err)
		require.Equal(t, 1, limits.Moderate.RequestsPerWindow)
		require.Equal(t, 1, limits.Moderate.Burst)
	})
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`))
	require.NoError(t, DecodeJSON(req, &v))
	require.Equal(t, "a@b.c", v.Email)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c","admin":true}`))
	require.ErrorIs(t, DecodeJSON(req, &v), ErrBadJSON)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a"}{"email":"b"}`))
	require.ErrorIs(t, DecodeJSON(req, &v), ErrBadJSON)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"a", "b", "handler"}, order)
}
