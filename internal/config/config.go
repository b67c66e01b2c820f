package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Postgres PostgresConfig `env:",prefix=POSTGRES_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	Session  SessionConfig  `env:",prefix=SESSION_"`
	Auth     AuthConfig     `env:",prefix=AUTH_"`
	SMTP     SMTPConfig     `env:",prefix=SMTP_"`
	CORS     CORSConfig     `env:",prefix=CORS_"`
	Cleanup  CleanupConfig  `env:",prefix=CLEANUP_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
	PublicURL    string   `env:"PUBLIC_URL,default=http://localhost:3000"`
}

type PostgresConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=auth_core"`
	Password string `env:"PASSWORD,default=auth_core_password"`
	DBName   string `env:"DB,default=auth_core_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

type SessionConfig struct {
	Secret string   `env:"SECRET,required"`
	TTL    Duration `env:"TTL,default=7d"`
}

// AuthConfig holds the abuse-control policy knobs. The defaults mirror the
// production policy: five failed logins per 15 minute window block the
// (email, ip) pair, and token-issuing endpoints enforce a 5 minute cooldown.
type AuthConfig struct {
	BCryptCost           int      `env:"BCRYPT_COST,default=12"`
	LoginMaxAttempts     int      `env:"LOGIN_MAX_ATTEMPTS,default=5"`
	LoginWindow          Duration `env:"LOGIN_WINDOW,default=15m"`
	TokenCooldown        Duration `env:"TOKEN_COOLDOWN,default=5m"`
	VerificationTokenTTL Duration `env:"VERIFICATION_TOKEN_TTL,default=24h"`
	ResetTokenTTL        Duration `env:"RESET_TOKEN_TTL,default=1h"`
	RequestLimitMax      int      `env:"REQUEST_LIMIT_MAX,default=10"`
	RequestLimitWindow   Duration `env:"REQUEST_LIMIT_WINDOW,default=1m"`
}

type SMTPConfig struct {
	Host     string `env:"HOST,default="`
	Port     string `env:"PORT,default=587"`
	Username string `env:"USERNAME,default="`
	Password string `env:"PASSWORD,default="`
	From     string `env:"FROM,default=no-reply@localhost"`
}

// Enabled reports whether an SMTP host is configured. Without one the
// application falls back to a log-only mailer.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

type CleanupConfig struct {
	Interval            Duration `env:"INTERVAL,default=1h"`
	AttemptRetention    Duration `env:"ATTEMPT_RETENTION,default=24h"`
	UnverifiedRetention Duration `env:"UNVERIFIED_RETENTION,default=24h"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(config.Session.Secret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters long")
	}

	if config.Auth.LoginMaxAttempts < 1 {
		return nil, fmt.Errorf("AUTH_LOGIN_MAX_ATTEMPTS must be positive")
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}
