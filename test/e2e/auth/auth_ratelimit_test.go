package auth_test

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/httpx"
	"github.com/stretchr/testify/require"
)

// TestRateLimitLoginEndpoint checks the strict profile (5/min) on login.
func TestRateLimitLoginEndpoint(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainerWithDefaultRateLimits(t))
	ctx := t.Context()

	for i := range 5 {
		_, err := client.Login(ctx, "nobody@example.com", "Wrong#Password1")
		requireCode(t, err, authsdk.ErrInvalidCredentials)
		t.Logf("attempt %d rejected on credentials", i+1)
	}

	// the sixth is refused before the password is looked at, even if correct
	_, err := client.Login(ctx, adminEmail, adminPassword)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	require.Equal(t, httpx.CodeRateLimited, apiErr.Code)
}

// TestRateLimitHeadersPresent checks the 429 response shape.
func TestRateLimitHeadersPresent(t *testing.T) {
	baseURL := setupAuthContainerWithDefaultRateLimits(t)
	body := `{"email":"nobody@example.com","password":"Wrong#Password1"}`

	var resp *http.Response
	for range 6 {
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		var err error
		resp, err = http.Post(baseURL+"/v1/auth/login", "application/json", strings.NewReader(body))
		require.NoError(t, err)
	}
	defer resp.Body.Close()

	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
	require.Equal(t, "5", resp.Header.Get("X-RateLimit-Limit"))
	require.Equal(t, "1m0s", resp.Header.Get("X-RateLimit-Window"))
}

// TestRateLimitPublicEndpoints checks that probes and the key set tolerate
// frequent polling.
func TestRateLimitPublicEndpoints(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainerWithDefaultRateLimits(t))
	ctx := t.Context()

	for range 50 {
		_, err := client.GetLiveness(ctx)
		require.NoError(t, err)
		_, err = client.GetJWKS(ctx)
		require.NoError(t, err)
	}
}

// TestRateLimitMFAVerifyEndpoint checks that step-up verification is on the
// strict profile per principal.
func TestRateLimitMFAVerifyEndpoint(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainerWithDefaultRateLimits(t))
	admin := loginAdmin(t, client)

	var limited bool
	for range 6 {
		err := admin.VerifyMFA(t.Context(), "123456", false)
		require.Error(t, err)

		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		if apiErr.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
		require.Equal(t, authsdk.CodeInvalidMFACode, apiErr.Code)
	}
	require.True(t, limited, "sixth verify should be throttled")
}

// TestRateLimitConcurrentRequests fires a burst at login and expects the
// limiter to admit roughly the burst size.
func TestRateLimitConcurrentRequests(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainerWithDefaultRateLimits(t))
	ctx := t.Context()

	var (
		wg      sync.WaitGroup
		limited atomic.Int32
		passed  atomic.Int32
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Login(ctx, "nobody@example.com", "Wrong#Password1")
			var apiErr *authsdk.APIError
			if !errors.As(err, &apiErr) {
				return
			}
			switch apiErr.StatusCode {
			case http.StatusTooManyRequests:
				limited.Add(1)
			case http.StatusUnauthorized:
				passed.Add(1)
			}
		}()
	}
	wg.Wait()

	// one extra token may refill while the burst is in flight
	require.GreaterOrEqual(t, passed.Load(), int32(5))
	require.LessOrEqual(t, passed.Load(), int32(6))
	require.Equal(t, int32(20), passed.Load()+limited.Load())
}
