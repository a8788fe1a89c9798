package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codyseavey/tcg-binder/internal/logging"
)

// Config is the full service configuration.
// Precedence: defaults < YAML file < environment (including .env).
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Storage StorageConfig  `yaml:"storage"`
	Pricing PricingConfig  `yaml:"pricing"`
	Log     logging.Config `yaml:"log"`
}

type ServerConfig struct {
	Port             string   `yaml:"port"`
	CORSOrigins      []string `yaml:"cors_origins"`
	ScannedImagesDir string   `yaml:"scanned_images_dir"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

type PricingConfig struct {
	ScryfallBaseURL string `yaml:"scryfall_base_url"`
	// FetchDelayMS is the pause between distinct catalog calls inside one batch
	FetchDelayMS int `yaml:"fetch_delay_ms"`
	// CacheSize bounds the quote cache; 0 keeps every quote for the process lifetime
	CacheSize       int    `yaml:"cache_size"`
	RefreshInterval string `yaml:"refresh_interval"`
	// WorkerBatchSize is how many binders the background worker refreshes per tick
	WorkerBatchSize int `yaml:"worker_batch_size"`
}

// FetchDelay returns the inter-call delay as a duration
func (p PricingConfig) FetchDelay() time.Duration {
	return time.Duration(p.FetchDelayMS) * time.Millisecond
}

// RefreshEvery parses RefreshInterval, falling back to 15 minutes
func (p PricingConfig) RefreshEvery() time.Duration {
	d, err := time.ParseDuration(p.RefreshInterval)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path (optional: a missing file is not an error),
// then a .env file if present, then environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("SCANNED_IMAGES_DIR"); v != "" {
		cfg.Server.ScannedImagesDir = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("SCRYFALL_BASE_URL"); v != "" {
		cfg.Pricing.ScryfallBaseURL = v
	}
	if v := os.Getenv("PRICE_FETCH_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pricing.FetchDelayMS = n
		}
	}
	if v := os.Getenv("PRICE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pricing.CacheSize = n
		}
	}
	if v := os.Getenv("PRICE_REFRESH_INTERVAL"); v != "" {
		cfg.Pricing.RefreshInterval = v
	}
	if v := os.Getenv("PRICE_WORKER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pricing.WorkerBatchSize = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	if cfg.Server.ScannedImagesDir == "" {
		cfg.Server.ScannedImagesDir = "./data/scanned_images"
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "./tcg_binder.db"
	}
	if cfg.Pricing.ScryfallBaseURL == "" {
		cfg.Pricing.ScryfallBaseURL = "https://api.scryfall.com"
	}
	if cfg.Pricing.FetchDelayMS <= 0 {
		cfg.Pricing.FetchDelayMS = 120
	}
	if cfg.Pricing.CacheSize < 0 {
		cfg.Pricing.CacheSize = 0
	}
	if cfg.Pricing.RefreshInterval == "" {
		cfg.Pricing.RefreshInterval = "15m"
	}
	if cfg.Pricing.WorkerBatchSize <= 0 {
		cfg.Pricing.WorkerBatchSize = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}
