package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:        "0.0.0.0:8080",
		Storage:     StoragePostgres,
		DatabaseURL: "postgres://localhost/storefront",
		Auth:        AuthConfig{JWTSecret: "jwt"},
		Gateway:     GatewayConfig{Secret: "merchant"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "memory needs no database", mutate: func(c *Config) { c.Storage = StorageMemory; c.DatabaseURL = "" }},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database URL"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage = "sqlite" }, wantErr: "unknown storage driver"},
		{name: "missing jwt secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "jwt secret"},
		{name: "missing gateway secret", mutate: func(c *Config) { c.Gateway.Secret = "" }, wantErr: "gateway secret"},
		{name: "trusted proxies", mutate: func(c *Config) { c.RateLimit.TrustedProxies = []string{"10.0.0.0/8", "127.0.0.1"} }},
		{name: "bad trusted proxy", mutate: func(c *Config) { c.RateLimit.TrustedProxies = []string{"10.0.0.0/99"} }, wantErr: "trusted proxies"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_ApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("PORT", "9000")

	c := Config{Addr: "0.0.0.0:8080"}
	c.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/db", c.DatabaseURL)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.Equal(t, "0.0.0.0:9000", c.Addr)

	c = Config{Addr: "127.0.0.1:1234", DatabaseURL: "postgres://explicit/db"}
	c.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", c.DatabaseURL)
	assert.Equal(t, "127.0.0.1:1234", c.Addr)
}
