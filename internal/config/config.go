package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mind-engage/mindengage-lti/internal/db"
)

// EnvPrefix is prepended to every variable below.
const EnvPrefix = "LTI_"

type SessionBackend string

const (
	SessionSQL    SessionBackend = "sql"
	SessionRedis  SessionBackend = "redis"
	SessionMemory SessionBackend = "memory"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN"`

	SessionBackend SessionBackend `env:"SESSION_BACKEND" envDefault:"sql"`
	RedisAddr      string         `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string         `env:"REDIS_PASSWORD"`
	RedisDB        int            `env:"REDIS_DB" envDefault:"0"`

	// SessionSecret signs session cookies. When empty a random key is used
	// and sessions do not survive a restart.
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"8h"`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"true"`

	ForceHTTPS          bool `env:"FORCE_HTTPS"`
	TrustForwardedProto bool `env:"TRUST_FORWARDED_PROTO" envDefault:"true"`

	OutcomeTimeout time.Duration `env:"OUTCOME_TIMEOUT" envDefault:"15s"`
	NonceTTL       time.Duration `env:"NONCE_TTL" envDefault:"90m"`
	TimestampSkew  time.Duration `env:"TIMESTAMP_SKEW" envDefault:"10m"`

	SettingsFile string `env:"SETTINGS_FILE"`

	AdminUser     string `env:"ADMIN_USER" envDefault:"admin"`
	AdminPassHash string `env:"ADMIN_PASS_HASH"` // bcrypt; empty disables /admin

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// FromEnv reads the process environment.
func FromEnv() (Config, error) {
	return Parse(env.ToMap(os.Environ()))
}

// Parse reads configuration from environ, a map of variable names to values.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	// Deployments behind Apache/mod_wsgi export HTTPS=on.
	if strings.EqualFold(environ["HTTPS"], "on") {
		cfg.ForceHTTPS = true
	}
	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := db.ParseDriver(c.DBDriver); err != nil {
		return err
	}
	switch c.SessionBackend {
	case SessionSQL, SessionRedis, SessionMemory:
	default:
		return fmt.Errorf("unsupported session backend %q (expected sql|redis|memory)", c.SessionBackend)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("%sSESSION_TTL must be positive", EnvPrefix)
	}
	if c.AdminPassHash != "" && c.AdminUser == "" {
		return fmt.Errorf("%sADMIN_USER is required with %sADMIN_PASS_HASH", EnvPrefix, EnvPrefix)
	}
	return nil
}

// Driver is DBDriver parsed; Validate has already accepted it.
func (c Config) Driver() db.Driver {
	d, _ := db.ParseDriver(c.DBDriver)
	return d
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
