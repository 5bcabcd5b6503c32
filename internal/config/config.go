package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/go-alumni-api/internal/domain"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"3000"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"postgres"` // postgres | sqlite
	DatabaseURL   string `env:"DATABASE_URL"`                       // DSN for postgres, file path for sqlite
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"false"`

	AWSRegion      string       `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string       `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string       `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string       `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables `envPrefix:"DYNAMO_TABLE_"`
	S3BucketName   string       `env:"S3_BUCKET_NAME" envDefault:"alumni-avatars"`
	SNSRegion      string       `env:"SNS_REGION" envDefault:"us-east-1"`
	// DeadLetterTopicARN receives an alert per abandoned delivery. Empty disables alerts.
	DeadLetterTopicARN string `env:"SNS_DEAD_LETTER_TOPIC_ARN"`

	JWTSecret         string        `env:"JWT_SECRET"`
	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH"`
	JWTIssuer         string        `env:"JWT_ISSUER" envDefault:"alumni-api"`
	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL   time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	VerificationCodeTTL time.Duration `env:"VERIFICATION_CODE_TTL" envDefault:"15m"`
	BcryptCost          int           `env:"BCRYPT_COST" envDefault:"12"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@example.com"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	DeliveryWorkers        int           `env:"DELIVERY_WORKERS" envDefault:"2"`
	DeliveryQueueSize      int           `env:"DELIVERY_QUEUE_SIZE" envDefault:"256"`
	DeliveryMaxAttempts    int           `env:"DELIVERY_MAX_ATTEMPTS" envDefault:"5"`
	DeliveryInitialBackoff time.Duration `env:"DELIVERY_INITIAL_BACKOFF" envDefault:"1s"`
	DeliveryMaxBackoff     time.Duration `env:"DELIVERY_MAX_BACKOFF" envDefault:"30s"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"` // CORS allowed origins

	// TrustedProxies lists the IPs or CIDRs of reverse proxies whose
	// X-Forwarded-For header is believed. Empty keys rate limits on the peer address.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	// DeadLetters stores abandoned code deliveries. Empty disables the sink.
	DeadLetters string `env:"DEAD_LETTERS"`
}

// Load reads all configuration from environment variables and validates it.
// Every validation failure wraps domain.ErrConfig.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %v: %w", err, domain.ErrConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadStore reads the environment but validates only the store settings,
// for tools that never serve requests.
func LoadStore() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %v: %w", err, domain.ErrConfig)
	}
	if err := cfg.validateStore(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// HasJWTKeyPair reports whether RS256 signing is configured.
func (c *Config) HasJWTKeyPair() bool {
	return c.JWTPrivateKeyPath != "" && c.JWTPublicKeyPath != ""
}

func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if c.JWTSecret == "" && !c.HasJWTKeyPair() {
		return fmt.Errorf("JWT_SECRET or JWT_PRIVATE_KEY_PATH/JWT_PUBLIC_KEY_PATH must be set: %w", domain.ErrConfig)
	}
	if c.IsProduction() && c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production: %w", domain.ErrConfig)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.VerificationCodeTTL <= 0 {
		return fmt.Errorf("token and code TTLs must be positive: %w", domain.ErrConfig)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be within 4..31, got %d: %w", c.BcryptCost, domain.ErrConfig)
	}
	if c.DeliveryWorkers < 1 || c.DeliveryQueueSize < 1 || c.DeliveryMaxAttempts < 1 {
		return fmt.Errorf("delivery workers, queue size and attempts must be at least 1: %w", domain.ErrConfig)
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare IP becomes a single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR: %w", raw, domain.ErrConfig)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func (c *Config) validateStore() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q: %w", DriverPostgres, DriverSQLite, c.StoreDriver, domain.ErrConfig)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set: %w", domain.ErrConfig)
	}
	return nil
}
