package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/khata/internal/common"
	"github.com/Veraticus/khata/internal/engine"
	"github.com/Veraticus/khata/internal/service"
)

// Defaults for keys that have one.
const (
	DefaultServerAddr          = ":8080"
	DefaultAutoApplyConfidence = 0.8
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "console"
)

// Config is the typed view of the application's configuration.
type Config struct {
	Database     DatabaseConfig
	Catalog      CatalogConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Engine       EngineConfig
	Recategorize RecategorizeConfig
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string
}

// CatalogConfig locates the rule catalog. An empty path uses the embedded one.
type CatalogConfig struct {
	Path string
}

// EngineConfig tunes classification.
type EngineConfig struct {
	FallbackCategory string
	HistorySample    int
	SuggestionCap    int
}

// RecategorizeConfig tunes bulk apply.
type RecategorizeConfig struct {
	ApplyWorkers       int
	WriteTimeout       time.Duration
	WriteAttempts      int
	MinApplyConfidence float64
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr                string
	AllowedOrigins      []string
	AutoApplyConfidence float64
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// EnvPrefix is the prefix for environment overrides, e.g.
// KHATA_DATABASE_PATH for database.path.
const EnvPrefix = "KHATA"

var envKeyReplacer = strings.NewReplacer(".", "_")

// BindEnv makes every key overridable from the environment.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
}

// DefaultDatabasePath returns the database path used when none is configured.
func DefaultDatabasePath() string {
	return ExpandPath("~/.local/share/khata/khata.db")
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	defaults := engine.DefaultConfig()

	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("catalog.path", "")
	v.SetDefault("engine.history_sample", defaults.HistorySample)
	v.SetDefault("engine.fallback_category", defaults.FallbackCategory)
	v.SetDefault("engine.suggestion_cap", defaults.SuggestionCap)
	v.SetDefault("recategorize.apply_workers", defaults.ApplyWorkers)
	v.SetDefault("recategorize.write_timeout", defaults.WriteTimeout)
	v.SetDefault("recategorize.write_attempts", defaults.WriteRetry.MaxAttempts)
	v.SetDefault("recategorize.min_apply_confidence", engine.MinApplyConfidence)
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.auto_apply_confidence", DefaultAutoApplyConfidence)
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
}

// Load reads and validates configuration from v. Defaults must already be
// registered with SetDefaults.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{Path: ExpandPath(v.GetString("database.path"))},
		Catalog:  CatalogConfig{Path: ExpandPath(v.GetString("catalog.path"))},
		Engine: EngineConfig{
			FallbackCategory: strings.TrimSpace(v.GetString("engine.fallback_category")),
			HistorySample:    v.GetInt("engine.history_sample"),
			SuggestionCap:    v.GetInt("engine.suggestion_cap"),
		},
		Recategorize: RecategorizeConfig{
			ApplyWorkers:       v.GetInt("recategorize.apply_workers"),
			WriteTimeout:       v.GetDuration("recategorize.write_timeout"),
			WriteAttempts:      v.GetInt("recategorize.write_attempts"),
			MinApplyConfidence: v.GetFloat64("recategorize.min_apply_confidence"),
		},
		Server: ServerConfig{
			Addr:                v.GetString("server.addr"),
			AllowedOrigins:      v.GetStringSlice("server.allowed_origins"),
			AutoApplyConfidence: v.GetFloat64("server.auto_apply_confidence"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(v.GetString("logging.level")),
			Format: strings.ToLower(v.GetString("logging.format")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if c.Database.Path != ":memory:" && !filepath.IsAbs(c.Database.Path) {
		abs, err := filepath.Abs(c.Database.Path)
		if err != nil {
			return fmt.Errorf("%w: database.path: %v", common.ErrInvalidConfig, err)
		}
		c.Database.Path = abs
	}
	if c.Engine.FallbackCategory == "" {
		return fmt.Errorf("%w: engine.fallback_category", common.ErrMissingConfig)
	}
	if c.Engine.HistorySample <= 0 {
		return fmt.Errorf("%w: engine.history_sample must be positive, got %d", common.ErrInvalidConfig, c.Engine.HistorySample)
	}
	if c.Engine.SuggestionCap <= 0 {
		return fmt.Errorf("%w: engine.suggestion_cap must be positive, got %d", common.ErrInvalidConfig, c.Engine.SuggestionCap)
	}
	if c.Recategorize.ApplyWorkers <= 0 {
		return fmt.Errorf("%w: recategorize.apply_workers must be positive, got %d", common.ErrInvalidConfig, c.Recategorize.ApplyWorkers)
	}
	if c.Recategorize.WriteTimeout <= 0 {
		return fmt.Errorf("%w: recategorize.write_timeout must be positive", common.ErrInvalidConfig)
	}
	if c.Recategorize.WriteAttempts <= 0 {
		return fmt.Errorf("%w: recategorize.write_attempts must be positive, got %d", common.ErrInvalidConfig, c.Recategorize.WriteAttempts)
	}
	if c.Recategorize.MinApplyConfidence < engine.MinApplyConfidence || c.Recategorize.MinApplyConfidence > 1 {
		return fmt.Errorf("%w: recategorize.min_apply_confidence must be within [%.2f,1], got %.2f",
			common.ErrInvalidConfig, engine.MinApplyConfidence, c.Recategorize.MinApplyConfidence)
	}
	if c.Server.AutoApplyConfidence < 0 || c.Server.AutoApplyConfidence > 1 {
		return fmt.Errorf("%w: server.auto_apply_confidence must be within [0,1], got %.2f",
			common.ErrInvalidConfig, c.Server.AutoApplyConfidence)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", common.ErrInvalidConfig, err)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: logging.format must be console or json, got %q", common.ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// EngineConfig converts the engine and recategorize sections to engine.Config.
func (c *Config) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.FallbackCategory = c.Engine.FallbackCategory
	cfg.HistorySample = c.Engine.HistorySample
	cfg.SuggestionCap = c.Engine.SuggestionCap
	cfg.ApplyWorkers = c.Recategorize.ApplyWorkers
	cfg.WriteTimeout = c.Recategorize.WriteTimeout
	cfg.WriteRetry = service.RetryOptions{
		MaxAttempts:  c.Recategorize.WriteAttempts,
		InitialDelay: cfg.WriteRetry.InitialDelay,
		MaxDelay:     cfg.WriteRetry.MaxDelay,
	}
	return cfg
}
