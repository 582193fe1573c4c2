package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage       string `default:"postgres" usage:"Storage driver: postgres or memory"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Migrate       bool   `default:"true" usage:"Apply embedded migrations on startup"`
	StorefrontURL string `default:"http://localhost:3000" usage:"Base URL of the storefront that payment callbacks redirect to" flag:"storefront-url"`
	Auth          AuthConfig
	Gateway       GatewayConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Notify        NotifyConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// AuthConfig holds credential verification secrets.
type AuthConfig struct {
	JWTSecret    string `usage:"HS256 secret for shopper bearer tokens" flag:"jwt-secret"`
	APIKeyPepper string `usage:"HMAC pepper for service API key hashing" flag:"api-key-pepper"`
}

// GatewayConfig describes the hosted payment page.
type GatewayConfig struct {
	MerchantID  string `usage:"Merchant id (MID)"`
	Website     string `default:"WEBSTAGING" usage:"Gateway website name"`
	Secret      string `usage:"Merchant key used to sign and verify checksums"`
	URL         string `usage:"Gateway payment page URL"`
	CallbackURL string `usage:"Public URL of POST /payment/callback"`
	// Excluded lists fields left out of the checksum.
	Excluded []string `default:"PRODUCT_DETAILS" usage:"Fields excluded from the checksum"`
}

// RedisConfig enables the callback cache and the shared rate limiter.
type RedisConfig struct {
	Addr        string        `usage:"Redis address; empty disables Redis"`
	Password    string        `usage:"Redis password"`
	DB          int           `default:"0" usage:"Redis database"`
	Prefix      string        `default:"storefront" usage:"Key prefix"`
	CallbackTTL time.Duration `default:"24h" usage:"How long processed transactions are remembered"`
}

// KafkaConfig enables order notifications over Kafka.
type KafkaConfig struct {
	Brokers  []string `usage:"Kafka brokers; empty logs notifications instead"`
	Topic    string   `default:"storefront.order-notifications" usage:"Notification topic"`
	ClientID string   `default:"storefront-api" usage:"Kafka client id"`
}

// NotifyConfig controls post-commit order notifications.
type NotifyConfig struct {
	AdminEmail string        `usage:"Recipient of new-order admin notifications"`
	Timeout    time.Duration `default:"5s" usage:"Per-notification delivery timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// TrustedProxies lists reverse proxies allowed to report the client
	// address via X-Forwarded-For. Empty keys by the peer address.
	TrustedProxies []string `usage:"CIDRs or IPs of trusted reverse proxies" flag:"trusted-proxies"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required: set STOREFRONT_AUTH_JWT_SECRET")
	}
	if c.Gateway.Secret == "" {
		return errors.New("gateway secret is required: set STOREFRONT_GATEWAY_SECRET")
	}
	if _, err := httpmiddleware.ParseProxies(c.RateLimit.TrustedProxies); err != nil {
		return errors.Wrap(err, "rate limit trusted proxies")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.Redis.Addr == "" {
		if v := os.Getenv("REDIS_ADDR"); v != "" {
			c.Redis.Addr = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
