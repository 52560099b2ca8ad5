package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Store drivers selectable with STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

type Config struct {
	Port        string   `env:"PORT,         default=8080"`
	Env         string   `env:"ENV,          default=development"`
	LogLevel    string   `env:"LOG_LEVEL,    default=info"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	// TrustedProxies lists proxy CIDRs whose X-Forwarded-For is believed.
	// Empty means the TCP peer address is the client address.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	Auth      AuthConfig
	RateLimit RateLimitConfig
	Store     StoreConfig
	Mongo     MongoConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Audit     AuditConfig
}

type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET"`
	JWTIssuer      string        `env:"JWT_ISSUER,        default=brain"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL,  default=480m"`
	RefreshTTL     time.Duration `env:"REFRESH_TOKEN_TTL, default=720h"`
	BcryptCost     int           `env:"BCRYPT_COST,       default=12"`
	BootstrapToken string        `env:"BOOTSTRAP_TOKEN"`
}

type RateLimitConfig struct {
	LoginLimit    int           `env:"LOGIN_RATE_LIMIT,     default=10"`
	LoginWindow   time.Duration `env:"LOGIN_RATE_WINDOW,    default=1m"`
	RefreshLimit  int           `env:"REFRESH_RATE_LIMIT,   default=60"`
	RefreshWindow time.Duration `env:"REFRESH_RATE_WINDOW,  default=1m"`
}

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER, default=mongo"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=brain"`
}

type PostgresConfig struct {
	DSN string `env:"POSTGRES_DSN"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	DB       int    `env:"REDIS_DB,       default=0"`
	Password string `env:"REDIS_PASSWORD"`
}

type AuditConfig struct {
	Workers   int `env:"AUDIT_WORKERS,    default=4"`
	QueueSize int `env:"AUDIT_QUEUE_SIZE, default=256"`
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in production"))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.RateLimit.LoginLimit <= 0 || c.RateLimit.RefreshLimit <= 0 ||
		c.RateLimit.LoginWindow <= 0 || c.RateLimit.RefreshWindow <= 0 {
		errs = append(errs, errors.New("rate limits and windows must be positive"))
	}

	if _, err := c.TrustedProxyNets(); err != nil {
		errs = append(errs, err)
	}
	if err := c.ValidateStore(); err != nil {
		errs = append(errs, err)
	}
	if c.Audit.Workers <= 0 {
		errs = append(errs, errors.New("AUDIT_WORKERS must be positive"))
	}
	return errors.Join(errs...)
}

// TrustedProxyNets parses TRUSTED_PROXIES. Bare addresses are treated as
// single-host ranges.
func (c *Config) TrustedProxyNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q", raw)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid range %q", raw)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// ValidateStore checks only the persistence settings.
func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case DriverMongo:
		return nil
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
		return nil
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
}

// Load reads a .env file when one exists, then the environment, and
// validates the result.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom processes configuration from the given lookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg, err := process(ctx, l)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadStore is Load for offline tools that only talk to the store. Auth
// settings such as JWT_SECRET are not required.
func LoadStore(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	cfg, err := process(ctx, envconfig.OsLookuper())
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStore(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func process(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load that panics on failure, for process entry points.
func MustLoad() *Config {
	cfg, err := Load(context.Background())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}
