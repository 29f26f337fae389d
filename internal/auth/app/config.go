package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/lockout"
	"github.com/aussiebroadwan/workbench/pkg/httpx"
	"github.com/aussiebroadwan/workbench/pkg/jwtx"
	"github.com/caarlos0/env/v11"
)

// Config is read from the environment once at startup.
type Config struct {
	Issuer   string   `env:"AUTH_ISSUER" envDefault:"workbench-auth"`
	Audience []string `env:"AUTH_AUDIENCE" envDefault:"workbench-api" envSeparator:","`

	// Algorithm is HS256 or EdDSA.
	Algorithm      string `env:"AUTH_SIGNING_ALGORITHM" envDefault:"HS256"`
	SigningKey     string `env:"AUTH_SIGNING_KEY"`
	SigningKeyFile string `env:"AUTH_SIGNING_KEY_FILE"`

	AccessTokenTTL       time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"15m"`
	SessionTTL           time.Duration `env:"AUTH_SESSION_TTL" envDefault:"168h"`
	StrictSessionBinding bool          `env:"AUTH_STRICT_SESSION_BINDING" envDefault:"false"`
	SingleSession        bool          `env:"AUTH_SINGLE_SESSION" envDefault:"true"`

	PasswordHistoryDepth  int    `env:"AUTH_PASSWORD_HISTORY_DEPTH" envDefault:"3"`
	PasswordBlocklistFile string `env:"AUTH_PASSWORD_BLOCKLIST_FILE"`

	MFAIssuer        string `env:"AUTH_MFA_ISSUER" envDefault:"Workbench"`
	MFASkew          uint   `env:"AUTH_MFA_SKEW" envDefault:"1"`
	MFAEncryptionKey string `env:"AUTH_MFA_ENCRYPTION_KEY"`

	// MFALockout reads AUTH_MFA_MAX_FAILURES and AUTH_MFA_LOCKOUT_WINDOW.
	MFALockout lockout.Config `envPrefix:"AUTH_MFA_"`

	// TrustedProxies are the CIDRs or addresses whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means every peer is a client.
	TrustedProxies []string `env:"AUTH_TRUSTED_PROXIES" envSeparator:","`

	RedisURL     string        `env:"AUTH_REDIS_URL"`
	StoreTimeout time.Duration `env:"AUTH_STORE_TIMEOUT" envDefault:"3s"`
	DatabaseFile string        `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`
	PepperFile   string        `env:"AUTH_PEPPER_FILE" envDefault:"pepper"`

	BootstrapAdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`

	Env                  string        `env:"ENV" envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	// rateLimits is read separately under the RATELIMIT_ prefix.
	rateLimits     httpx.RateLimits
	trustedProxies httpx.TrustedProxies
}

// LoadConfig parses the environment and checks the combinations that
// cannot work.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.rateLimits, err = httpx.LoadRateLimits()
	if err != nil {
		return Config{}, fmt.Errorf("parse rate limits: %w", err)
	}

	cfg.trustedProxies, err = httpx.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return Config{}, fmt.Errorf("parse AUTH_TRUSTED_PROXIES: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDev reports whether ephemeral secrets are acceptable.
func (c Config) IsDev() bool { return c.Env == "dev" }

func (c Config) validate() error {
	var errs []error

	switch c.Algorithm {
	case jwtx.AlgorithmHS256:
		if c.SigningKey == "" && !c.IsDev() {
			errs = append(errs, errors.New("AUTH_SIGNING_KEY is required outside dev"))
		}
		if c.SigningKey != "" && len(c.SigningKey) < jwtx.MinHS256SecretSize {
			errs = append(errs, fmt.Errorf("AUTH_SIGNING_KEY must be at least %d bytes", jwtx.MinHS256SecretSize))
		}
	case jwtx.AlgorithmEdDSA:
		if c.SigningKeyFile == "" && !c.IsDev() {
			errs = append(errs, errors.New("AUTH_SIGNING_KEY_FILE is required outside dev"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_SIGNING_ALGORITHM %q is not HS256 or EdDSA", c.Algorithm))
	}

	if c.MFAEncryptionKey == "" && !c.IsDev() {
		errs = append(errs, errors.New("AUTH_MFA_ENCRYPTION_KEY is required outside dev"))
	}
	if (c.BootstrapAdminEmail == "") != (c.BootstrapAdminPassword == "") {
		errs = append(errs, errors.New("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set together"))
	}
	if c.AccessTokenTTL <= 0 || c.SessionTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.SessionTTL < c.AccessTokenTTL {
		errs = append(errs, errors.New("AUTH_SESSION_TTL must not be shorter than AUTH_ACCESS_TOKEN_TTL"))
	}

	return errors.Join(errs...)
}
