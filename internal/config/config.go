package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// MinProcessingWait is the shortest wait the flow manager needs before a new
// revision can be expected to be processed.
const MinProcessingWait = 90 * time.Second

type Config struct {
	Server      ServerConfig      `env:",prefix=SERVER_"`
	FlowManager FlowManagerConfig `env:",prefix=FLOWMANAGER_"`
	Auth        AuthConfig        `env:",prefix=AUTH_"`
	Postgres    PostgresConfig    `env:",prefix=POSTGRES_"`
	Redis       RedisConfig       `env:",prefix=REDIS_"`
	Security    SecurityConfig    `env:",prefix="`
	CORS        CORSConfig        `env:",prefix=CORS_"`
	Env         string            `env:"ENV,default=development"`
	BaseURL     string            `env:"BASE_URL,default=https://api.datahub.io"`
	UserInfo    string            `env:"USER_INFO,default=~/.config/datahub/config.json"`
	FixturePath string            `env:"FIXTURE_PATH,default=content.json"`
	HTTPTimeout Duration          `env:"HTTP_TIMEOUT,default=30s"`
}

type ServerConfig struct {
	Enabled      bool     `env:"ENABLED,default=false"`
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`

	// TrustedProxies may set X-Forwarded-For; empty trusts none
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

type FlowManagerConfig struct {
	Prefix         string   `env:"PREFIX,default=source"`
	DatasetID      string   `env:"DATASET_ID,default=basic-csv"`
	ProcessingWait Duration `env:"PROCESSING_WAIT,default=90s"`
	PollTimeout    Duration `env:"POLL_TIMEOUT,default=0s"`
	PollInterval   Duration `env:"POLL_INTERVAL,default=10s"`
}

type AuthConfig struct {
	Prefix string `env:"PREFIX,default=auth"`
}

type PostgresConfig struct {
	Enabled  bool   `env:"ENABLED,default=false"`
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=healthcheck"`
	Password string `env:"PASSWORD,default=healthcheck_password"`
	DBName   string `env:"DB,default=healthcheck_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`
}

type RedisConfig struct {
	Enabled   bool     `env:"ENABLED,default=false"`
	Host      string   `env:"HOST,default=localhost"`
	Port      string   `env:"PORT,default=6379"`
	Password  string   `env:"PASSWORD,default="`
	DB        int      `env:"DB,default=0"`
	ReportTTL Duration `env:"REPORT_TTL,default=1d"`
}

type SecurityConfig struct {
	APIKeyHash        string   `env:"SECURITY_API_KEY_HASH,default="`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=2"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=10m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization,X-API-Key"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// URL returns the PostgreSQL connection string in URL form, as migrate expects it
func (p PostgresConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%s", p.Host, p.Port),
		Path:     p.DBName,
		RawQuery: "sslmode=" + p.SSLMode,
	}
	return u.String()
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var config Config

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &config,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BASE_URL must be an absolute URL, got %q", c.BaseURL)
	}

	if c.FlowManager.Prefix == "" || c.FlowManager.DatasetID == "" {
		return fmt.Errorf("FLOWMANAGER_PREFIX and FLOWMANAGER_DATASET_ID must not be empty")
	}

	if c.FlowManager.PollTimeout.Duration > 0 && c.FlowManager.PollInterval.Duration <= 0 {
		return fmt.Errorf("FLOWMANAGER_POLL_INTERVAL must be positive when polling is enabled")
	}

	if c.HTTPTimeout.Duration <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}

	if c.Security.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}

	return nil
}

// IsProduction reports whether the production profile is active
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}
