package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// DSN returns a libpq keyword/value connection string, understood by both
// pgx and lib/pq.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type AuthConfig struct {
	JWTSecret           string        `yaml:"jwt_secret"`
	TokenTTL            time.Duration `yaml:"token_ttl"`
	SessionKey          string        `yaml:"session_key"`
	CookieSecure        bool          `yaml:"cookie_secure"`
	Providers           []string      `yaml:"providers"`
	GoogleUserInfoURL   string        `yaml:"google_userinfo_url"`
	FacebookUserInfoURL string        `yaml:"facebook_userinfo_url"`
}

type HTTPConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthRateLimit  float64  `yaml:"auth_rate_limit"`
	AuthRateBurst  int      `yaml:"auth_rate_burst"`
	// TrustedProxies lists the CIDRs whose X-Real-IP / X-Forwarded-For
	// headers are believed. Empty means the peer address is always used.
	TrustedProxies []string      `yaml:"trusted_proxies"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

type Config struct {
	App      AppConfig      `yaml:"app"`
	Postgres PostgresConfig `yaml:"postgres"`
	Auth     AuthConfig     `yaml:"auth"`
	HTTP     HTTPConfig     `yaml:"http"`
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:     "storefront",
			Port:     "8080",
			Env:      "development",
			LogLevel: "info",
		},
		Postgres: PostgresConfig{
			Port:            "5432",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL:            72 * time.Hour,
			Providers:           []string{"local"},
			GoogleUserInfoURL:   "https://openidconnect.googleapis.com/v1/userinfo",
			FacebookUserInfoURL: "https://graph.facebook.com/me?fields=id,email,first_name,last_name",
		},
		HTTP: HTTPConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
			AuthRateLimit:  1,
			AuthRateBurst:  5,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
		},
	}
}

// Load builds the configuration from, in increasing priority: built-in
// defaults, the YAML file named by CONFIG_FILE, the .env file at envPath
// and the process environment.
func Load(envPath string) (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.App.Port, "APP_PORT")
	setString(&cfg.App.Env, "APP_ENV")
	setString(&cfg.App.LogLevel, "LOG_LEVEL")

	setString(&cfg.Postgres.Host, "DB_HOST")
	setString(&cfg.Postgres.Port, "DB_PORT")
	setString(&cfg.Postgres.User, "DB_USER")
	setString(&cfg.Postgres.Password, "DB_PASSWORD")
	setString(&cfg.Postgres.DBName, "DB_NAME")
	setString(&cfg.Postgres.SSLMode, "DB_SSLMODE")

	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.SessionKey, "SESSION_KEY")
	setString(&cfg.Auth.GoogleUserInfoURL, "GOOGLE_USERINFO_URL")
	setString(&cfg.Auth.FacebookUserInfoURL, "FACEBOOK_USERINFO_URL")
	setList(&cfg.Auth.Providers, "AUTH_PROVIDERS")
	setList(&cfg.HTTP.AllowedOrigins, "CORS_ALLOWED_ORIGINS")
	setList(&cfg.HTTP.TrustedProxies, "TRUSTED_PROXIES")

	if v, ok := os.LookupEnv("DB_MAX_CONNS"); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid DB_MAX_CONNS %q: %w", v, err)
		}
		cfg.Postgres.MaxConns = int32(n)
	}
	if v, ok := os.LookupEnv("DB_AUTO_MIGRATE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DB_AUTO_MIGRATE %q: %w", v, err)
		}
		cfg.Postgres.AutoMigrate = b
	}
	if v, ok := os.LookupEnv("COOKIE_SECURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid COOKIE_SECURE %q: %w", v, err)
		}
		cfg.Auth.CookieSecure = b
	}
	if v, ok := os.LookupEnv("TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TOKEN_TTL %q: %w", v, err)
		}
		cfg.Auth.TokenTTL = d
	}

	return nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	required := map[string]string{
		"DB_HOST":     c.Postgres.Host,
		"DB_USER":     c.Postgres.User,
		"DB_NAME":     c.Postgres.DBName,
		"JWT_SECRET":  c.Auth.JWTSecret,
		"SESSION_KEY": c.Auth.SessionKey,
	}
	for _, key := range []string{"DB_HOST", "DB_USER", "DB_NAME", "JWT_SECRET", "SESSION_KEY"} {
		if required[key] == "" {
			return fmt.Errorf("%s is required", key)
		}
	}

	if len(c.Auth.SessionKey) < 32 {
		return errors.New("SESSION_KEY must be at least 32 bytes")
	}

	for _, p := range c.Auth.Providers {
		switch p {
		case "local", "google", "facebook":
		default:
			return fmt.Errorf("unknown auth provider %q", p)
		}
	}

	if _, err := c.HTTP.TrustedProxyPrefixes(); err != nil {
		return err
	}

	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is taken as a
// single-host prefix.
func (h HTTPConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(h.TrustedProxies))
	for _, raw := range h.TrustedProxies {
		if addr, err := netip.ParseAddr(raw); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", raw, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
