package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/workbench/internal/auth/policy"
	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/jwtx"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "dev")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "workbench-auth", cfg.Issuer)
	assert.Equal(t, []string{"workbench-api"}, cfg.Audience)
	assert.Equal(t, jwtx.AlgorithmHS256, cfg.Algorithm)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.SingleSession)
	assert.False(t, cfg.StrictSessionBinding)
	assert.Equal(t, 3, cfg.PasswordHistoryDepth)
	assert.Equal(t, uint(1), cfg.MFASkew)
	assert.Equal(t, 5, cfg.MFALockout.MaxFailures)
	assert.Equal(t, 15*time.Minute, cfg.MFALockout.Window)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5, cfg.rateLimits.Strict.RequestsPerWindow)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("AUTH_AUDIENCE", "api,admin")
	t.Setenv("AUTH_MFA_MAX_FAILURES", "3")
	t.Setenv("AUTH_MFA_LOCKOUT_WINDOW", "2m")
	t.Setenv("AUTH_SINGLE_SESSION", "false")
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "50")
	t.Setenv("AUTH_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.4")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"api", "admin"}, cfg.Audience)
	assert.Equal(t, 3, cfg.MFALockout.MaxFailures)
	assert.Equal(t, 2*time.Minute, cfg.MFALockout.Window)
	assert.False(t, cfg.SingleSession)
	assert.Equal(t, 50, cfg.rateLimits.Strict.RequestsPerWindow)
	require.Len(t, cfg.trustedProxies, 2)
	assert.Equal(t, "10.0.0.0/8", cfg.trustedProxies[0].String())
	assert.Equal(t, "192.168.1.4/32", cfg.trustedProxies[1].String())
}

func TestLoadConfig_ProductionNeedsSecrets(t *testing.T) {
	t.Setenv("ENV", "prod")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_SIGNING_KEY")
	assert.Contains(t, err.Error(), "AUTH_MFA_ENCRYPTION_KEY")

	t.Setenv("AUTH_SIGNING_KEY", "short")
	t.Setenv("AUTH_MFA_ENCRYPTION_KEY", "mfa-material")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "at least")

	t.Setenv("AUTH_SIGNING_KEY", strings.Repeat("k", jwtx.MinHS256SecretSize))
	_, err = LoadConfig()
	require.NoError(t, err)
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown algorithm", map[string]string{"AUTH_SIGNING_ALGORITHM": "RS256"}, "RS256"},
		{"half bootstrap", map[string]string{"BOOTSTRAP_ADMIN_EMAIL": "root@example.com"}, "BOOTSTRAP_ADMIN"},
		{"session shorter than access", map[string]string{"AUTH_SESSION_TTL": "1m"}, "AUTH_SESSION_TTL"},
		{"bad trusted proxy", map[string]string{"AUTH_TRUSTED_PROXIES": "proxy.internal"}, "AUTH_TRUSTED_PROXIES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", "dev")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestInitAuthKeys(t *testing.T) {
	t.Parallel()

	t.Run("hs256 ephemeral", func(t *testing.T) {
		t.Parallel()
		keys, err := InitAuthKeys(Config{Algorithm: jwtx.AlgorithmHS256, Issuer: "iss"}, slogx.Discard())
		require.NoError(t, err)
		assert.True(t, keys.IsReady())
		assert.Empty(t, keys.KeySet.PublicJWKS().Keys)
	})

	t.Run("eddsa persists its key", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "keys", "signing.pem")
		cfg := Config{Algorithm: jwtx.AlgorithmEdDSA, SigningKeyFile: path, Issuer: "iss"}

		first, err := InitAuthKeys(cfg, slogx.Discard())
		require.NoError(t, err)
		require.FileExists(t, path)

		second, err := InitAuthKeys(cfg, slogx.Discard())
		require.NoError(t, err)

		a, b := first.KeySet.PublicJWKS().Keys, second.KeySet.PublicJWKS().Keys
		require.Len(t, a, 1)
		require.Len(t, b, 1)
		assert.Equal(t, a[0].X, b[0].X)
	})
}

func testConfig(t *testing.T) Config {
	t.Helper()
	t.Setenv("ENV", "dev")
	t.Setenv("LOG_LEVEL", "error")
	dir := t.TempDir()
	t.Setenv("AUTH_DATABASE_FILE", filepath.Join(dir, "auth.db"))
	t.Setenv("AUTH_PEPPER_FILE", filepath.Join(dir, "pepper"))
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "root@example.com")
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "Bootstrap#Admin42")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestApplication_BootstrapAndServe(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("AUTH_REDIS_URL", "redis://"+mr.Addr())
	cfg := testConfig(t)

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.closeBackends() })

	ctx := context.Background()
	require.NoError(t, app.ensureAdmin(ctx))
	require.NoError(t, app.ensureAdmin(ctx), "a second start leaves the admin alone")
	require.FileExists(t, cfg.PepperFile)

	srv := httptest.NewServer(app.server.Handler)
	t.Cleanup(srv.Close)

	client := authsdk.NewSDKClient(srv.URL)
	sess, err := client.AuthenticateWithPassword(ctx, "root@example.com", "Bootstrap#Admin42")
	require.NoError(t, err)

	me, err := sess.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin", me.Role)
	assert.True(t, me.Verified)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", ready.Checks.Limiter)

	// a dead redis degrades readiness
	mr.Close()
	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body authsdk.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "unavailable", body.Checks.Limiter)
	assert.Equal(t, "ok", body.Checks.Database)
}

func TestApplication_BlocklistFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.txt")
	require.NoError(t, os.WriteFile(path, []byte("# house words\nworkbench\n"), 0o600))
	t.Setenv("AUTH_PASSWORD_BLOCKLIST_FILE", path)
	cfg := testConfig(t)

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.closeBackends() })

	res := app.services.Passwords.Validate("Workbench#2026!", policy.Context{Email: "ada@example.com"})
	assert.False(t, res.Valid)
	assert.Contains(t, res.Violations, "common_password")
}
