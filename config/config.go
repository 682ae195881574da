/*
config.go - Application configuration

PURPOSE:
  Loads server, storage, logging and engine-default settings from an
  optional fleet.toml in the working directory, overridden by FLEET_*
  environment variables (FLEET_APP_PORT, FLEET_DATABASE_PATH,
  FLEET_ENGINE_DEFAULT_WEAR_RATE, ...).

ENGINE DEFAULTS:
  The engine section seeds the settings of a NEW dataset only. Once a
  dataset has been saved its own settings win.

SEE ALSO:
  - cmd/server/main.go: loads .env, then Load()
  - logger/logger.go: consumes LogConfig
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/interest"
	"github.com/warp/fleet-engine/logger"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Engine   EngineConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig locates the SQLite file. ":memory:" keeps nothing on exit.
type DatabaseConfig struct {
	Path string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	CORSAllowOrigins []string
}

// EngineConfig holds the defaults a new dataset starts from.
type EngineConfig struct {
	DefaultWearRate     decimal.Decimal // per km
	OtherExpensesRate   decimal.Decimal // fraction of revenue
	DefaultInterestRate decimal.Decimal // annual, as a fraction
	DefaultCreditMonths int
	FuelMatching        string
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("fleet")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Engine: EngineConfig{
			DefaultCreditMonths: v.GetInt("engine.default_credit_months"),
			FuelMatching:        v.GetString("engine.fuel_matching"),
		},
	}

	rates := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"engine.default_wear_rate", &cfg.Engine.DefaultWearRate},
		{"engine.other_expenses_rate", &cfg.Engine.OtherExpensesRate},
		{"engine.default_interest_rate", &cfg.Engine.DefaultInterestRate},
	}
	for _, r := range rates {
		raw := v.GetString(r.key)
		if raw == "" {
			continue
		}
		d, err := generic.ParseAmount(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.key, err)
		}
		*r.dst = d
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "fleet-engine"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "fleet.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	fleetDefaults := fleet.DefaultSettings()
	if cfg.Engine.DefaultWearRate.IsZero() {
		cfg.Engine.DefaultWearRate = fleetDefaults.DefaultWearRate
	}
	if cfg.Engine.OtherExpensesRate.IsZero() {
		cfg.Engine.OtherExpensesRate = fleetDefaults.OtherExpensesRate
	}
	if cfg.Engine.FuelMatching == "" {
		cfg.Engine.FuelMatching = string(fleetDefaults.FuelMatching)
	}

	invoiceDefaults := interest.DefaultSettings()
	if cfg.Engine.DefaultInterestRate.IsZero() {
		cfg.Engine.DefaultInterestRate = invoiceDefaults.DefaultRate()
	}
	if cfg.Engine.DefaultCreditMonths == 0 {
		cfg.Engine.DefaultCreditMonths = invoiceDefaults.DefaultCreditMonths
	}
}

func (c *Config) validate() error {
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Engine.DefaultWearRate.IsNegative() {
		return fmt.Errorf("engine.default_wear_rate cannot be negative")
	}
	if c.Engine.OtherExpensesRate.IsNegative() {
		return fmt.Errorf("engine.other_expenses_rate cannot be negative")
	}
	if c.Engine.DefaultInterestRate.IsNegative() {
		return fmt.Errorf("engine.default_interest_rate cannot be negative")
	}
	if c.Engine.DefaultCreditMonths < 0 {
		return fmt.Errorf("engine.default_credit_months cannot be negative")
	}
	if _, err := fleet.ParseFuelMatchMode(c.Engine.FuelMatching); err != nil {
		return fmt.Errorf("engine.fuel_matching: %w", err)
	}

	if c.App.Env == "production" {
		if c.Database.Path == ":memory:" {
			return fmt.Errorf("database.path cannot be :memory: in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// Logger maps the log section onto a logger configuration.
func (c *Config) Logger() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	cfg.Output = c.Log.Output
	return cfg
}

// FleetSettings are the settings a new fleet dataset starts with.
func (c *Config) FleetSettings() fleet.Settings {
	mode, _ := fleet.ParseFuelMatchMode(c.Engine.FuelMatching)
	return fleet.Settings{
		DefaultWearRate:   c.Engine.DefaultWearRate,
		OtherExpensesRate: c.Engine.OtherExpensesRate,
		FuelMatching:      mode,
	}
}

// InvoiceSettings are the settings a new invoice book starts with.
func (c *Config) InvoiceSettings() interest.Settings {
	return interest.Settings{
		DefaultRatePct:      generic.RateToPercent(c.Engine.DefaultInterestRate),
		DefaultCreditMonths: c.Engine.DefaultCreditMonths,
	}
}
