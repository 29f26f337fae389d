package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/store"
	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/httpx"
	"github.com/aussiebroadwan/workbench/pkg/jwtx"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
)

const (
	checkOK          = "ok"
	checkUnavailable = "unavailable"

	readyzTimeout = 2 * time.Second
)

// Pinger is implemented by dependencies that can report their own health,
// such as the Redis lockout limiter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the database, the token signer and the MFA lockout limiter.
//	@Description	Failures are reported as "unavailable" without internal detail.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	keys *jwtx.KeyManager,
	limiter any,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
		defer cancel()
		log := slogx.FromContext(ctx)

		checks := &authsdk.HealthChecks{Database: checkOK, Signer: checkOK, Limiter: checkOK}
		status, code := "ok", http.StatusOK
		fail := func(check *string, name string, err error) {
			log.Warn("readiness check failed", slog.String("check", name), slog.Any("error", err))
			*check = checkUnavailable
			status, code = "degraded", http.StatusServiceUnavailable
		}

		if err := st.Ping(ctx); err != nil {
			fail(&checks.Database, "database", err)
		}
		if keys == nil || !keys.IsReady() {
			fail(&checks.Signer, "signer", nil)
		}
		if p, ok := limiter.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				fail(&checks.Limiter, "limiter", err)
			}
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
