package config

import (
	"errors"
	"fmt"
	"os"

	"hotelier/internal/fees"
	"hotelier/internal/models"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Stripe     StripeConfig     `yaml:"stripe"`
	Fees       FeesConfig       `yaml:"fees"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Exports    ExportConfig     `yaml:"exports"`
	Rooms      []RoomConfig     `yaml:"rooms"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	Currency      string `yaml:"currency"`
	SuccessURL    string `yaml:"success_url"`
	CancelURL     string `yaml:"cancel_url"`
}

// FeesConfig carries fee policy parameters as strings so that decimal
// amounts survive YAML without float rounding.
type FeesConfig struct {
	CancellationHours    int    `yaml:"cancellation_hours"`
	CancellationFraction string `yaml:"cancellation_fraction"`
	CancellationFlat     string `yaml:"cancellation_flat"`
	NoShowFlat           string `yaml:"no_show_flat"`
	OverstayMultiplier   string `yaml:"overstay_multiplier"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// SweepConfig schedules the daily no-show sweep.
type SweepConfig struct {
	Enabled bool `yaml:"enabled"`
	Hour    int  `yaml:"hour"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type RoomConfig struct {
	ID            int64  `yaml:"id"`
	Number        string `yaml:"number"`
	Type          string `yaml:"type"`
	PricePerNight string `yaml:"price_per_night"`
	Capacity      int64  `yaml:"capacity"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; ExpandEnv below substitutes whatever is set.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expanded, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Stripe.SecretKey == "" {
		return errors.New("stripe secret key is required")
	}
	if _, err := c.FeePolicy(); err != nil {
		return err
	}
	if _, err := ParseRooms(c.Rooms); err != nil {
		return err
	}
	if c.Sweep.Hour < 0 || c.Sweep.Hour > 23 {
		return fmt.Errorf("sweep hour out of range: %d", c.Sweep.Hour)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "usd"
	}
	if c.Fees.CancellationHours == 0 {
		c.Fees.CancellationHours = fees.DefaultCancellationHours
	}
	if c.Fees.CancellationFraction == "" {
		c.Fees.CancellationFraction = "0.5"
	}
	if c.Fees.OverstayMultiplier == "" {
		c.Fees.OverstayMultiplier = "1"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}

// FeePolicy converts the string-typed fee section into a fees.Policy.
func (c *Config) FeePolicy() (fees.Policy, error) {
	policy := fees.Policy{CancellationHours: c.Fees.CancellationHours}

	var err error
	if policy.CancellationFraction, err = parseDecimal(c.Fees.CancellationFraction, "fees.cancellation_fraction"); err != nil {
		return fees.Policy{}, err
	}
	if policy.CancellationFlat, err = parseDecimal(c.Fees.CancellationFlat, "fees.cancellation_flat"); err != nil {
		return fees.Policy{}, err
	}
	if policy.NoShowFlat, err = parseDecimal(c.Fees.NoShowFlat, "fees.no_show_flat"); err != nil {
		return fees.Policy{}, err
	}
	if policy.OverstayMultiplier, err = parseDecimal(c.Fees.OverstayMultiplier, "fees.overstay_multiplier"); err != nil {
		return fees.Policy{}, err
	}
	return policy, nil
}

// ParseRooms validates the room inventory and converts it to models.
func ParseRooms(rooms []RoomConfig) ([]models.Room, error) {
	seen := make(map[int64]bool, len(rooms))
	out := make([]models.Room, 0, len(rooms))

	for _, r := range rooms {
		if r.ID == 0 {
			return nil, fmt.Errorf("room '%s' has invalid ID 0", r.Number)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate room ID found: %d", r.ID)
		}
		seen[r.ID] = true

		price, err := parseDecimal(r.PricePerNight, fmt.Sprintf("room %d price_per_night", r.ID))
		if err != nil {
			return nil, err
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("room %d price_per_night must be positive", r.ID)
		}

		out = append(out, models.Room{
			ID:            r.ID,
			Number:        r.Number,
			Type:          models.RoomType(r.Type),
			PricePerNight: price,
			Capacity:      r.Capacity,
		})
	}
	return out, nil
}

func parseDecimal(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q", field, raw)
	}
	return d, nil
}
