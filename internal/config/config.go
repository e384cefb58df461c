package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Security     SecurityConfig     `yaml:"security"`
	Session      SessionConfig      `yaml:"session"`
	Logging      LoggingConfig      `yaml:"logging"`
	Notify       NotifyConfig       `yaml:"notify"`
	DefaultAdmin DefaultAdminConfig `yaml:"default_admin"`
}

// ServerConfig.AllowedOrigins lists CORS origins; empty allows any origin.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Mode           string   `yaml:"mode"` // debug, release, test
	PublicBaseURL  string   `yaml:"public_base_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type SecurityConfig struct {
	BcryptCost int             `yaml:"bcrypt_cost"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool        `yaml:"enabled"`
	RequestsPerMinute int         `yaml:"requests_per_minute"`
	Redis             RedisConfig `yaml:"redis"`
}

// RedisConfig is optional; an empty Addr keeps rate limiting in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	TTL         string `yaml:"ttl"`
	WikiCookie  string `yaml:"wiki_cookie"`
	AdminCookie string `yaml:"admin_cookie"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type NotifyConfig struct {
	RelayInterval string        `yaml:"relay_interval"`
	BatchSize     int           `yaml:"batch_size"`
	MaxRetries    int           `yaml:"max_retries"`
	Discord       DiscordConfig `yaml:"discord"`
	Kafka         KafkaConfig   `yaml:"kafka"`
	SMTP          SMTPConfig    `yaml:"smtp"`
}

type DiscordConfig struct {
	SubmissionsWebhook string `yaml:"submissions_webhook"`
	PagesWebhook       string `yaml:"pages_webhook"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type DefaultAdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

const (
	defaultSessionTTL    = 7 * 24 * time.Hour
	defaultRelayInterval = 5 * time.Second
)

// Load reads the configuration file and environment variables.
// A missing file is not an error when the path is empty; defaults and
// environment variables are used instead.
func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure data directory exists for SQLite
	if cfg.Database.Type == "sqlite" {
		dataDir := filepath.Dir(cfg.Database.SQLite.Path)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WINDPLEX_MODE"); v != "" {
		cfg.Server.Mode = v
	}
	if v := os.Getenv("WINDPLEX_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WINDPLEX_PUBLIC_BASE_URL"); v != "" {
		cfg.Server.PublicBaseURL = v
	}
	if v := os.Getenv("WINDPLEX_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("WINDPLEX_DB_TYPE"); v != "" {
		cfg.Database.Type = v
	}
	if v := os.Getenv("WINDPLEX_DB_PATH"); v != "" {
		cfg.Database.SQLite.Path = v
	}
	// DATABASE_URL is what the hosting platform exposes for Postgres.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.Postgres.DSN = v
		if cfg.Database.Type == "" {
			cfg.Database.Type = "postgres"
		}
	}
	if v := os.Getenv("WINDPLEX_MYSQL_HOST"); v != "" {
		cfg.Database.MySQL.Host = v
	}
	if v := os.Getenv("WINDPLEX_MYSQL_USER"); v != "" {
		cfg.Database.MySQL.Username = v
	}
	if v := os.Getenv("WINDPLEX_MYSQL_PASSWORD"); v != "" {
		cfg.Database.MySQL.Password = v
	}
	if v := os.Getenv("WINDPLEX_MYSQL_DATABASE"); v != "" {
		cfg.Database.MySQL.Database = v
	}
	if v := os.Getenv("WINDPLEX_REDIS_ADDR"); v != "" {
		cfg.Security.RateLimit.Redis.Addr = v
	}
	if v := os.Getenv("WINDPLEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		cfg.DefaultAdmin.Username = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.DefaultAdmin.Password = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Notify.Discord.SubmissionsWebhook = v
	}
	if v := os.Getenv("DISCORD_POSTS_WEBHOOK_URL"); v != "" {
		cfg.Notify.Discord.PagesWebhook = v
	}
	if v := os.Getenv("WINDPLEX_KAFKA_BROKERS"); v != "" {
		cfg.Notify.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("WINDPLEX_SMTP_PASSWORD"); v != "" {
		cfg.Notify.SMTP.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = "data/windplex.db"
	}
	if c.Database.MySQL.Port == 0 {
		c.Database.MySQL.Port = 3306
	}
	if c.Database.MySQL.Charset == "" {
		c.Database.MySQL.Charset = "utf8mb4"
	}
	if c.Security.BcryptCost == 0 {
		c.Security.BcryptCost = 10
	}
	if c.Security.RateLimit.RequestsPerMinute == 0 {
		c.Security.RateLimit.RequestsPerMinute = 10
	}
	if c.Session.WikiCookie == "" {
		c.Session.WikiCookie = "wiki_session"
	}
	if c.Session.AdminCookie == "" {
		c.Session.AdminCookie = "admin_session"
	}
	if c.Notify.BatchSize == 0 {
		c.Notify.BatchSize = 20
	}
	if c.Notify.MaxRetries == 0 {
		c.Notify.MaxRetries = 5
	}
	if c.Notify.Kafka.Topic == "" {
		c.Notify.Kafka.Topic = "windplex.wiki"
	}
	if c.DefaultAdmin.Username == "" {
		c.DefaultAdmin.Username = "admin"
	}
}

// Validate reports configuration that cannot work at runtime.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
	case "mysql":
		if c.Database.MySQL.Username == "" {
			return fmt.Errorf("MySQL username is required")
		}
		if c.Database.MySQL.Database == "" {
			return fmt.Errorf("MySQL database name is required")
		}
	case "postgres":
		if c.Database.Postgres.DSN == "" {
			return fmt.Errorf("postgres dsn is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if _, err := c.SessionTTL(); err != nil {
		return err
	}
	if _, err := c.RelayInterval(); err != nil {
		return err
	}
	return nil
}

// SessionTTL parses session.ttl, falling back to seven days.
func (c *Config) SessionTTL() (time.Duration, error) {
	if c.Session.TTL == "" {
		return defaultSessionTTL, nil
	}
	d, err := time.ParseDuration(c.Session.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid session ttl %q: %w", c.Session.TTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("session ttl must be positive")
	}
	return d, nil
}

func (c *Config) RelayInterval() (time.Duration, error) {
	if c.Notify.RelayInterval == "" {
		return defaultRelayInterval, nil
	}
	d, err := time.ParseDuration(c.Notify.RelayInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid notify relay_interval %q: %w", c.Notify.RelayInterval, err)
	}
	return d, nil
}

// IsDebug reports whether internal error detail may be exposed to clients.
func (c *Config) IsDebug() bool {
	return c.Server.Mode == "debug"
}
