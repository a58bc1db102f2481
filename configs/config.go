package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

const EnvPrefix = "STOREFRONT_"

// Account is a statically configured login. PasswordHash is bcrypt.
type Account struct {
	ID           string `koanf:"id"`
	Email        string `koanf:"email"`
	PasswordHash string `koanf:"password_hash"`
	Role         string `koanf:"role"`
}

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		Env      string `koanf:"env"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Database struct {
		Driver          string        `koanf:"driver"` // mysql | sqlite
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
		AutoMigrate     bool          `koanf:"auto_migrate"`
	} `koanf:"database"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Cache struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cache"`

	Order struct {
		Currency          string        `koanf:"currency"`
		TaxRate           string        `koanf:"tax_rate"`
		AddressRetryDelay time.Duration `koanf:"address_retry_delay"`
	} `koanf:"order"`

	Rabbit struct {
		URL            string        `koanf:"url"`
		Exchange       string        `koanf:"exchange"`
		Prefetch       int           `koanf:"prefetch"`
		HandlerTimeout time.Duration `koanf:"handler_timeout"`
	} `koanf:"rabbitmq"`

	Outbox struct {
		PollInterval time.Duration `koanf:"poll_interval"`
		BatchSize    int           `koanf:"batch_size"`
		MaxRetries   int           `koanf:"max_retries"`
		BaseBackoff  time.Duration `koanf:"base_backoff"`
	} `koanf:"outbox"`

	Kafka struct {
		Enabled          bool     `koanf:"enabled"`
		Brokers          []string `koanf:"brokers"`
		GroupID          string   `koanf:"group_id"`
		TopicFulfillment string   `koanf:"topic_fulfillment"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret    string        `koanf:"jwt_secret"`
		Issuer       string        `koanf:"issuer"`
		Audience     string        `koanf:"audience"`
		TTL          time.Duration `koanf:"ttl"`
		CookieName   string        `koanf:"cookie_name"`
		CookieSecure bool          `koanf:"cookie_secure"`
		Accounts     []Account     `koanf:"accounts"`
	} `koanf:"security"`

	Payments struct {
		WebhookPublicKeyPEM string `koanf:"webhook_public_key_pem"`
	} `koanf:"payments"`

	Notify struct {
		Enabled        bool   `koanf:"enabled"`
		SendGridAPIKey string `koanf:"sendgrid_api_key"`
		FromEmail      string `koanf:"from_email"`
		FromName       string `koanf:"from_name"`
	} `koanf:"notify"`

	Log struct {
		File       string `koanf:"file"`
		MaxSizeMB  int    `koanf:"max_size_mb"`
		MaxBackups int    `koanf:"max_backups"`
		MaxAgeDays int    `koanf:"max_age_days"`
	} `koanf:"log"`
}

// Load layers base.yaml, then {env}.yaml, then STOREFRONT_* environment
// variables ("__" separates levels: STOREFRONT_DATABASE__DSN). A .env file
// in the working directory is read first when present.
func Load(pathDir, envName string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if cfg.App.Env == "" {
		cfg.App.Env = envName
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Order.Currency == "" {
		c.Order.Currency = "USD"
	}
	if c.Order.TaxRate == "" {
		c.Order.TaxRate = "0"
	}
	if c.Security.CookieName == "" {
		c.Security.CookieName = "session"
	}
	if c.Security.TTL == 0 {
		c.Security.TTL = 24 * time.Hour
	}
	if c.Outbox.PollInterval == 0 {
		c.Outbox.PollInterval = time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 50
	}
	if c.Outbox.MaxRetries == 0 {
		c.Outbox.MaxRetries = 8
	}
	if c.Outbox.BaseBackoff == 0 {
		c.Outbox.BaseBackoff = 2 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 15 * time.Second
	}
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be mysql or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn required")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret required")
	}
	if _, err := c.TaxRate(); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka.enabled")
	}
	if c.Notify.Enabled && (c.Notify.SendGridAPIKey == "" || c.Notify.FromEmail == "") {
		return fmt.Errorf("notify.sendgrid_api_key and notify.from_email required when notify.enabled")
	}
	for i, a := range c.Security.Accounts {
		if a.ID == "" || a.Email == "" || a.PasswordHash == "" {
			return fmt.Errorf("security.accounts[%d]: id, email and password_hash required", i)
		}
	}
	return nil
}

// TaxRate parses order.tax_rate as a fraction (0.1 = 10%).
func (c Config) TaxRate() (decimal.Decimal, error) {
	r, err := decimal.NewFromString(c.Order.TaxRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("order.tax_rate: %w", err)
	}
	if r.IsNegative() || r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("order.tax_rate must be in [0, 1), got %s", r)
	}
	return r, nil
}

func (c Config) IsProduction() bool { return c.App.Env == "prod" }
