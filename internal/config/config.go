package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/phonelink/internal/db"
	"github.com/sells-group/phonelink/internal/monitoring"
	"github.com/sells-group/phonelink/internal/phone"
	"github.com/sells-group/phonelink/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	Identity  IdentityConfig  `yaml:"identity" mapstructure:"identity"`
	Backfill  BackfillConfig  `yaml:"backfill" mapstructure:"backfill"`
	Phone     PhoneConfig     `yaml:"phone" mapstructure:"phone"`
	Lookup    LookupConfig    `yaml:"lookup" mapstructure:"lookup"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`

	Monitoring monitoring.Config `yaml:"monitoring" mapstructure:"monitoring"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DirectoryConfig selects the users directory backend.
type DirectoryConfig struct {
	Driver      string        `yaml:"driver" mapstructure:"driver"` // postgres, sqlite, memory
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string        `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// IdentityConfig selects the identity-account backend.
type IdentityConfig struct {
	Driver      string  `yaml:"driver" mapstructure:"driver"` // postgres, remote, memory
	DatabaseURL string  `yaml:"database_url" mapstructure:"database_url"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	HashCost    int     `yaml:"hash_cost" mapstructure:"hash_cost"`
}

// IdentityDatabaseURL falls back to the directory database when the
// identity store has no dedicated URL.
func (c *Config) IdentityDatabaseURL() string {
	if c.Identity.DatabaseURL != "" {
		return c.Identity.DatabaseURL
	}
	return c.Directory.DatabaseURL
}

// BackfillConfig tunes batch runs.
type BackfillConfig struct {
	Domain          string `yaml:"domain" mapstructure:"domain"`
	Concurrency     int    `yaml:"concurrency" mapstructure:"concurrency"`
	CallTimeoutSecs int    `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// CallTimeout returns the per-call timeout as a duration.
func (b BackfillConfig) CallTimeout() time.Duration {
	return time.Duration(b.CallTimeoutSecs) * time.Second
}

// PhoneConfig describes the numbering plan used for normalization.
type PhoneConfig struct {
	CountryCode    string `yaml:"country_code" mapstructure:"country_code"`
	TrunkPrefix    string `yaml:"trunk_prefix" mapstructure:"trunk_prefix"`
	MobilePrefix   string `yaml:"mobile_prefix" mapstructure:"mobile_prefix"`
	NationalLength int    `yaml:"national_length" mapstructure:"national_length"`
}

// Plan converts the config into a phone.Plan.
func (p PhoneConfig) Plan() phone.Plan {
	return phone.Plan{
		CountryCode:    p.CountryCode,
		TrunkPrefix:    p.TrunkPrefix,
		MobilePrefix:   p.MobilePrefix,
		NationalLength: p.NationalLength,
	}
}

// LookupConfig tunes the phone to email read path.
type LookupConfig struct {
	CacheTTLSecs int `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// RedisConfig enables the lookup cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	TokenTTLMins int    `yaml:"token_ttl_mins" mapstructure:"token_ttl_mins"`
	Issuer       string `yaml:"issuer" mapstructure:"issuer"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	StaticDir   string   `yaml:"static_dir" mapstructure:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// RetryConfig tunes retries of transient identity-store failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// Policy converts the config into a resilience.Policy.
func (r RetryConfig) Policy() resilience.Policy {
	p := resilience.DefaultPolicy()
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(r.InitialBackoffMs) * time.Millisecond
	}
	if r.MaxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(r.MaxBackoffMs) * time.Millisecond
	}
	return p
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// Load reads configuration from config.yaml (optional) and PHONELINK_*
// environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PHONELINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys without a meaningful default are registered empty so
	// AutomaticEnv can populate them during Unmarshal.
	v.SetDefault("directory.driver", "postgres")
	v.SetDefault("directory.database_url", "")
	v.SetDefault("directory.sqlite_path", "phonelink.db")
	v.SetDefault("directory.pool.max_conns", 10)
	v.SetDefault("directory.pool.min_conns", 2)
	v.SetDefault("identity.driver", "postgres")
	v.SetDefault("identity.database_url", "")
	v.SetDefault("identity.base_url", "http://localhost:9099")
	v.SetDefault("identity.api_key", "")
	v.SetDefault("identity.rate_limit", 20)
	v.SetDefault("identity.hash_cost", 10)
	v.SetDefault("backfill.domain", "")
	v.SetDefault("backfill.concurrency", 20)
	v.SetDefault("backfill.call_timeout_secs", 15)
	v.SetDefault("phone.country_code", phone.Taiwan.CountryCode)
	v.SetDefault("phone.trunk_prefix", phone.Taiwan.TrunkPrefix)
	v.SetDefault("phone.mobile_prefix", phone.Taiwan.MobilePrefix)
	v.SetDefault("phone.national_length", phone.Taiwan.NationalLength)
	v.SetDefault("lookup.cache_ttl_secs", 600)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl_mins", 60)
	v.SetDefault("auth.issuer", "phonelink")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 200)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name.
func (c *Config) Validate(mode string) error {
	var problems []string
	need := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	directory := func() {
		switch c.Directory.Driver {
		case "postgres":
			need(c.Directory.DatabaseURL != "", "directory.database_url is required for the postgres driver")
		case "sqlite":
			need(c.Directory.SQLitePath != "", "directory.sqlite_path is required for the sqlite driver")
		case "memory":
		default:
			problems = append(problems, fmt.Sprintf("directory.driver %q is not one of postgres, sqlite, memory", c.Directory.Driver))
		}
	}
	identity := func() {
		switch c.Identity.Driver {
		case "postgres":
			need(c.IdentityDatabaseURL() != "", "identity.database_url or directory.database_url is required for the postgres identity driver")
		case "remote":
			need(c.Identity.BaseURL != "", "identity.base_url is required for the remote identity driver")
		case "memory":
		default:
			problems = append(problems, fmt.Sprintf("identity.driver %q is not one of postgres, remote, memory", c.Identity.Driver))
		}
	}
	batch := func() {
		need(c.Backfill.Concurrency >= 1 && c.Backfill.Concurrency <= 200, "backfill.concurrency must be between 1 and 200")
		need(c.Backfill.CallTimeoutSecs > 0, "backfill.call_timeout_secs must be > 0")
		need(strings.HasPrefix(c.Phone.CountryCode, "+"), "phone.country_code must start with +")
		need(c.Monitoring.FailureRateThreshold >= 0 && c.Monitoring.FailureRateThreshold <= 1,
			"monitoring.failure_rate_threshold must be between 0 and 1")
	}

	switch mode {
	case "backfill", "link-phones":
		directory()
		identity()
		batch()
	case "lookup", "import", "migrate":
		directory()
		if mode == "migrate" {
			identity()
		}
	case "serve":
		directory()
		identity()
		batch()
		need(c.Server.Port > 0, "server.port must be > 0")
		need(c.Auth.JWTSecret != "", "auth.jwt_secret is required")
	case "verify-password":
		identity()
	case "token":
		need(c.Auth.JWTSecret != "", "auth.jwt_secret is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
