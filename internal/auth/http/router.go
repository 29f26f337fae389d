package http

import (
	"log/slog"
	"net/http"
	"time"

	_ "github.com/aussiebroadwan/workbench/api/auth" // Swagger docs
	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/internal/auth/lockout"
	"github.com/aussiebroadwan/workbench/internal/auth/middleware"
	"github.com/aussiebroadwan/workbench/internal/auth/service"
	"github.com/aussiebroadwan/workbench/internal/auth/store"
	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/httpx"
	"github.com/aussiebroadwan/workbench/pkg/jwtx"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Services are the handlers' collaborators.
type Services struct {
	Tokens    *service.TokenService
	Login     *service.LoginService
	Passwords *service.PasswordService
	MFA       *service.MFAService
	Users     *service.UserService
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyManager
	limiter      lockout.Limiter
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       httpx.RateLimits

	store store.Store
	svc   Services
	authn *middleware.Authenticator
}

// NewRouter builds a router. Call ApplyRoutes before serving.
func NewRouter(
	keys *jwtx.KeyManager,
	st store.Store,
	svc Services,
	limiter lockout.Limiter,
	limits httpx.RateLimits,
	proxies httpx.TrustedProxies,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		limiter:      limiter,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		limits:       limits,
		store:        st,
		svc:          svc,
		authn:        &middleware.Authenticator{Tokens: svc.Tokens, Users: svc.Users},
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		recoverer,
		httpx.RealIP(proxies),
	}
	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSessions()
	r.registerPassword()
	r.registerMFA()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Workbench Authentication Service API
//	@version		0.1.0
//	@description	Password and TOTP authentication, sessions with opaque refresh tokens and short-lived JWT access tokens.
//	@description
//	@description				Access tokens are signed with HS256 or EdDSA. EdDSA keys are published at /.well-known/jwks.json.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/workbench
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// public chains an unauthenticated handler behind a per-IP limit.
func (r *Router) public(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h, httpx.RateLimitByIP(limit))
}

// secured authenticates first so the limiter can key on the principal.
func (r *Router) secured(h http.Handler, limit httpx.RateLimitConfig, extra ...httpx.Middleware) http.Handler {
	chain := append([]httpx.Middleware{r.authn.Middleware(), httpx.RateLimitByUser(limit)}, extra...)
	return httpx.Chain(h, chain...)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Login: r.svc.Login, Tokens: r.svc.Tokens}

	// credential checks get the strict profile
	r.Mux.Handle("POST /v1/auth/register", r.public(h.HandleRegister, r.limits.Strict))
	r.Mux.Handle("POST /v1/auth/login", r.public(h.HandleLogin, r.limits.Strict))
	r.Mux.Handle("POST /v1/auth/login/mfa", r.public(h.HandleLoginMFA, r.limits.Strict))
	r.Mux.Handle("POST /v1/auth/refresh", r.public(h.HandleRefresh, r.limits.Moderate))
	r.Mux.Handle("POST /v1/auth/logout", r.public(h.HandleLogout, r.limits.Moderate))
	r.Mux.Handle("POST /v1/auth/logout-all", r.secured(http.HandlerFunc(h.HandleLogoutAll), r.limits.Moderate))
}

func (r *Router) registerSessions() {
	h := &UserHandler{Users: r.svc.Users, Tokens: r.svc.Tokens}

	r.Mux.Handle("GET /v1/me", r.secured(http.HandlerFunc(h.HandleMe), r.limits.Lenient))
	r.Mux.Handle("GET /v1/sessions", r.secured(http.HandlerFunc(h.HandleListSessions), r.limits.Lenient))
	r.Mux.Handle("DELETE /v1/sessions/{id}", r.secured(http.HandlerFunc(h.HandleRevokeSession), r.limits.Moderate,
		middleware.RequireOwnership(h.sessionOwner),
	))
}

func (r *Router) registerPassword() {
	h := &PasswordHandler{Passwords: r.svc.Passwords}

	r.Mux.Handle("POST /v1/password/validate", r.public(h.HandleValidate, r.limits.Lenient))
	r.Mux.Handle("POST /v1/password/change", r.secured(http.HandlerFunc(h.HandleChange), r.limits.Strict))
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFA: r.svc.MFA}

	r.Mux.Handle("GET /v1/mfa", r.secured(http.HandlerFunc(h.HandleStatus), r.limits.Lenient))
	r.Mux.Handle("POST /v1/mfa/setup", r.secured(http.HandlerFunc(h.HandleSetup), r.limits.Moderate))

	// code submissions are brute-force targets
	r.Mux.Handle("POST /v1/mfa/setup/complete", r.secured(http.HandlerFunc(h.HandleSetupComplete), r.limits.Strict))
	r.Mux.Handle("POST /v1/mfa/verify", r.secured(http.HandlerFunc(h.HandleVerify), r.limits.Strict))

	r.Mux.Handle("POST /v1/mfa/backup-codes", r.secured(http.HandlerFunc(h.HandleRegenerateBackupCodes), r.limits.Strict))
	r.Mux.Handle("POST /v1/mfa/disable", r.secured(http.HandlerFunc(h.HandleDisable), r.limits.Strict))
}

func (r *Router) registerUsers() {
	h := &UserHandler{Users: r.svc.Users, Tokens: r.svc.Tokens}

	r.Mux.Handle("POST /v1/users/{id}/verify", r.secured(http.HandlerFunc(h.HandleVerifyUser), r.limits.Moderate,
		middleware.RequireRole(domain.RoleAdmin),
	))
	r.Mux.Handle("POST /v1/users/{id}/deactivate", r.secured(http.HandlerFunc(h.HandleDeactivateUser), r.limits.Moderate,
		middleware.RequireRole(domain.RoleAdmin, domain.RoleManager),
	))
	r.Mux.Handle("POST /v1/users/{id}/role", r.secured(http.HandlerFunc(h.HandleSetRole), r.limits.Moderate,
		middleware.RequireRole(domain.RoleAdmin),
	))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", r.public(LivezHandler(r.startTime, r.buildVersion), r.limits.Public))
	r.Mux.Handle("GET /readyz", r.public(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.limiter), r.limits.Public))
	r.Mux.Handle("GET /.well-known/jwks.json", r.public(JWKSHandler(r.keys.KeySet), r.limits.Public))
}

// recoverer turns a handler panic into a logged 500 so nothing escapes the
// middleware chain.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				slogx.FromContext(r.Context()).Error("handler panic", slog.Any("panic", v))
				authsdk.ErrInternal.WriteError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
