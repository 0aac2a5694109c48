// Package config loads airline.yml and AIRLINE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"airline_scheduler/internal/economics"
	"airline_scheduler/internal/models"
)

const EnvPrefix = "AIRLINE"

type Config struct {
	Addr         string `yaml:"addr" mapstructure:"addr"`
	DataDir      string `yaml:"data_dir" mapstructure:"data_dir"`
	DBPath       string `yaml:"db_path" mapstructure:"db_path"`
	AirportsCSV  string `yaml:"airports_csv" mapstructure:"airports_csv"`
	AircraftJSON string `yaml:"aircraft_json" mapstructure:"aircraft_json"`

	Log struct {
		Level      string `yaml:"level" mapstructure:"level"`
		Dir        string `yaml:"dir" mapstructure:"dir"`
		MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
		Stderr     bool   `yaml:"stderr" mapstructure:"stderr"`
	} `yaml:"log" mapstructure:"log"`

	Clock struct {
		TickInterval     time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
		OfflineAllowance time.Duration `yaml:"offline_allowance" mapstructure:"offline_allowance"`
		SaveEvery        int           `yaml:"save_every" mapstructure:"save_every"`
	} `yaml:"clock" mapstructure:"clock"`

	Contracts struct {
		WorldSeed        string   `yaml:"world_seed" mapstructure:"world_seed"`
		Hubs             []string `yaml:"hubs" mapstructure:"hubs"`
		DestinationTier  string   `yaml:"destination_tier" mapstructure:"destination_tier"`
		OffersPerHub     int      `yaml:"offers_per_hub" mapstructure:"offers_per_hub"`
		OfferLifetimeDay int      `yaml:"offer_lifetime_days" mapstructure:"offer_lifetime_days"`
		MinWeeks         int      `yaml:"min_weeks" mapstructure:"min_weeks"`
		MaxWeeks         int      `yaml:"max_weeks" mapstructure:"max_weeks"`
	} `yaml:"contracts" mapstructure:"contracts"`

	Geo struct {
		PathResolution int `yaml:"path_resolution" mapstructure:"path_resolution"`
		PathCacheSize  int `yaml:"path_cache_size" mapstructure:"path_cache_size"`
	} `yaml:"geo" mapstructure:"geo"`

	HTTP struct {
		RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
		Burst         int     `yaml:"burst" mapstructure:"burst"`
	} `yaml:"http" mapstructure:"http"`

	Economics economics.Rates `yaml:"economics" mapstructure:"economics"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.Addr = ":4000"
	c.DataDir = "data"
	c.DBPath = "data/airline.db"
	c.AirportsCSV = "data/airports.csv"
	c.AircraftJSON = "data/aircraft.json"
	c.Log.Level = "info"
	c.Log.Dir = "data/logs"
	c.Log.MaxSizeMB = 32
	c.Log.MaxBackups = 1
	c.Log.Stderr = true
	c.Clock.TickInterval = time.Second
	c.Clock.OfflineAllowance = 8 * time.Hour
	c.Clock.SaveEvery = 1
	c.Contracts.WorldSeed = "airline"
	c.Contracts.Hubs = []string{"JFK"}
	c.Contracts.DestinationTier = "large"
	c.Contracts.OffersPerHub = 12
	c.Contracts.OfferLifetimeDay = 2
	c.Contracts.MinWeeks = 2
	c.Contracts.MaxWeeks = 8
	c.Geo.PathResolution = 33
	c.Geo.PathCacheSize = 256
	c.HTTP.RatePerSecond = 20
	c.HTTP.Burst = 40
	c.Economics = economics.DefaultRates
	c.Economics.Fares = maps.Clone(economics.DefaultRates.Fares)
	return c
}

// SetDefaults registers every default on v so environment overrides apply
// to keys missing from the file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("addr", d.Addr)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("airports_csv", d.AirportsCSV)
	v.SetDefault("aircraft_json", d.AircraftJSON)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.stderr", d.Log.Stderr)
	v.SetDefault("clock.tick_interval", d.Clock.TickInterval)
	v.SetDefault("clock.offline_allowance", d.Clock.OfflineAllowance)
	v.SetDefault("clock.save_every", d.Clock.SaveEvery)
	v.SetDefault("contracts.world_seed", d.Contracts.WorldSeed)
	v.SetDefault("contracts.hubs", d.Contracts.Hubs)
	v.SetDefault("contracts.destination_tier", d.Contracts.DestinationTier)
	v.SetDefault("contracts.offers_per_hub", d.Contracts.OffersPerHub)
	v.SetDefault("contracts.offer_lifetime_days", d.Contracts.OfferLifetimeDay)
	v.SetDefault("contracts.min_weeks", d.Contracts.MinWeeks)
	v.SetDefault("contracts.max_weeks", d.Contracts.MaxWeeks)
	v.SetDefault("geo.path_resolution", d.Geo.PathResolution)
	v.SetDefault("geo.path_cache_size", d.Geo.PathCacheSize)
	v.SetDefault("http.rate_per_second", d.HTTP.RatePerSecond)
	v.SetDefault("http.burst", d.HTTP.Burst)
	v.SetDefault("economics.fuel_price_per_kg", d.Economics.FuelPricePerKg)
	v.SetDefault("economics.maintenance_per_tonne_hour", d.Economics.MaintenancePerTonneHour)
}

// NewViper returns a viper instance with defaults and AIRLINE_* env lookup.
// Nested keys map to env names with dots replaced, e.g. AIRLINE_CLOCK_TICK_INTERVAL.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional file at path (empty skips it) and applies
// environment overrides.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Economics.Fares == nil {
		cfg.Economics.Fares = maps.Clone(economics.DefaultRates.Fares)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config.addr is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("config.db_path is required")
	}
	if c.Clock.TickInterval <= 0 {
		return fmt.Errorf("config.clock.tick_interval must be positive")
	}
	if c.Clock.OfflineAllowance < 0 {
		return fmt.Errorf("config.clock.offline_allowance must not be negative")
	}
	switch c.Geo.PathResolution {
	case 9, 17, 33, 65:
	default:
		return fmt.Errorf("config.geo.path_resolution must be one of 9, 17, 33, 65")
	}
	if len(c.Contracts.Hubs) == 0 {
		return fmt.Errorf("config.contracts.hubs needs at least one airport")
	}
	if c.Contracts.OffersPerHub <= 0 {
		return fmt.Errorf("config.contracts.offers_per_hub must be positive")
	}
	if c.Contracts.MinWeeks <= 0 || c.Contracts.MaxWeeks < c.Contracts.MinWeeks {
		return fmt.Errorf("config.contracts week range %d..%d is invalid", c.Contracts.MinWeeks, c.Contracts.MaxWeeks)
	}
	for _, class := range models.CabinClasses {
		if _, ok := c.Economics.Fares[class]; !ok {
			return fmt.Errorf("config.economics.fares.%s is required", class)
		}
	}
	return nil
}

// WriteDefault writes the default configuration as YAML. Existing files are
// kept unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
