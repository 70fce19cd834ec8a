package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full, typed service configuration. Recognized options are
// fixed and validated eagerly at load; there is no untyped key/value access
// at runtime.
type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`

	Datasets struct {
		CanadianPostalCodesPath string `mapstructure:"canadian_postal_codes_path"`
		USZipCodesPath          string `mapstructure:"us_zip_codes_path"`
	} `mapstructure:"datasets"`

	Model struct {
		// Backend selects the extraction fallback: "llama" (Ollama HTTP)
		// or "libpostal" (offline, cgo builds only).
		Backend string `mapstructure:"backend"`
		// Name identifies the extraction model, e.g. "llama3.1". Empty
		// disables the llama backend entirely.
		Name    string        `mapstructure:"name"`
		Host    string        `mapstructure:"host"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"model"`

	Lookup struct {
		AcceptanceThreshold float64 `mapstructure:"acceptance_threshold"`
		TopK                int     `mapstructure:"top_k"`
		MaxInputBytes       int     `mapstructure:"max_input_bytes"`
		MinRuleFields       int     `mapstructure:"min_rule_fields"`
		MaxEditDistance     int     `mapstructure:"max_edit_distance"`
	} `mapstructure:"lookup"`

	Scoring struct {
		Postal          float64 `mapstructure:"postal"`
		City            float64 `mapstructure:"city"`
		Street          float64 `mapstructure:"street"`
		Region          float64 `mapstructure:"region"`
		CountryMismatch float64 `mapstructure:"country_mismatch_penalty"`
	} `mapstructure:"scoring"`

	Cache struct {
		Enabled  bool          `mapstructure:"enabled"`
		L1Size   int           `mapstructure:"l1_size"`
		RedisURL string        `mapstructure:"redis_url"` // empty disables the L2 tier
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`
}

// Load reads config/app.yaml (or ./app.yaml) plus environment overrides
// into a validated Config.
func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Defaults plus env vars are a complete configuration.
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("datasets.canadian_postal_codes_path", "CanadianPostalCodes202403.csv")
	viper.SetDefault("datasets.us_zip_codes_path", "USZIPCodes202409.csv")
	viper.SetDefault("model.backend", "llama")
	viper.SetDefault("model.name", "llama3.1")
	viper.SetDefault("model.host", "http://localhost:11434")
	viper.SetDefault("model.timeout", 5*time.Second)
	viper.SetDefault("lookup.acceptance_threshold", 0.75)
	viper.SetDefault("lookup.top_k", 5)
	viper.SetDefault("lookup.max_input_bytes", 512)
	viper.SetDefault("lookup.min_rule_fields", 1)
	viper.SetDefault("lookup.max_edit_distance", 1)
	viper.SetDefault("scoring.postal", 0.50)
	viper.SetDefault("scoring.city", 0.25)
	viper.SetDefault("scoring.street", 0.15)
	viper.SetDefault("scoring.region", 0.10)
	viper.SetDefault("scoring.country_mismatch_penalty", 0.15)
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.l1_size", 10000)
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.ttl", 24*time.Hour)
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Datasets.CanadianPostalCodesPath == "" {
		return errors.New("config: datasets.canadian_postal_codes_path is required")
	}
	if c.Datasets.USZipCodesPath == "" {
		return errors.New("config: datasets.us_zip_codes_path is required")
	}
	switch c.Model.Backend {
	case "llama", "libpostal":
	default:
		return fmt.Errorf("config: model.backend %q is not one of llama, libpostal", c.Model.Backend)
	}
	if c.Lookup.AcceptanceThreshold <= 0 || c.Lookup.AcceptanceThreshold > 1 {
		return fmt.Errorf("config: lookup.acceptance_threshold %v outside (0,1]", c.Lookup.AcceptanceThreshold)
	}
	if c.Lookup.TopK <= 0 {
		return fmt.Errorf("config: lookup.top_k must be positive, got %d", c.Lookup.TopK)
	}
	if c.Lookup.MaxInputBytes <= 0 {
		return fmt.Errorf("config: lookup.max_input_bytes must be positive, got %d", c.Lookup.MaxInputBytes)
	}
	return nil
}
