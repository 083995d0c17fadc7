package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (RESTO_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (RESTO_DATABASE_URL or DATABASE_URL)" flag:"database-url"`

	Menu      MenuConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Expiry    ExpiryConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// MenuConfig controls the menu service client.
type MenuConfig struct {
	BaseURL  string        `usage:"Base URL of the menu service" flag:"menu-base-url"`
	Timeout  time.Duration `default:"3s" usage:"Timeout per dish lookup"`
	CacheTTL time.Duration `default:"5m" usage:"Dish snapshot cache TTL (0 disables caching)" flag:"menu-cache-ttl"`
}

// KafkaConfig controls the lifecycle event publisher.
type KafkaConfig struct {
	Brokers []string `default:"localhost:9092" usage:"Kafka broker addresses"`
}

// RedisConfig controls the optional dish snapshot cache.
type RedisConfig struct {
	Addr string `usage:"Redis address for the dish cache (empty disables caching)" flag:"redis-addr"`
}

// ExpiryConfig controls the background expiring-stock scanner.
type ExpiryConfig struct {
	ScanInterval time.Duration `default:"1h" usage:"How often to scan for expiring batches (0 disables the scanner)" flag:"expiry-scan-interval"`
	Window       time.Duration `default:"72h" usage:"Look-ahead window for the expiring-batch scan" flag:"expiry-window"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "RESTO",
		Files:     []string{"config.yaml", "/etc/resto/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set RESTO_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Menu.BaseURL == "" {
		return nil, errors.New("menu service URL is required: set RESTO_MENU_BASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the RESTO_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
