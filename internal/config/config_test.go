package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/khata/internal/common"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "Miscellaneous", cfg.Engine.FallbackCategory)
	assert.Equal(t, 1000, cfg.Engine.HistorySample)
	assert.Equal(t, 50, cfg.Engine.SuggestionCap)
	assert.Equal(t, 4, cfg.Recategorize.ApplyWorkers)
	assert.Equal(t, 5*time.Second, cfg.Recategorize.WriteTimeout)
	assert.InDelta(t, 0.7, cfg.Recategorize.MinApplyConfidence, 1e-9)
	assert.InDelta(t, 0.8, cfg.Server.AutoApplyConfidence, 1e-9)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.True(t, filepath.IsAbs(cfg.Database.Path))
	assert.Empty(t, cfg.Catalog.Path)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: `+filepath.Join(dir, "khata.db")+`
engine:
  fallback_category: Other
  suggestion_cap: 20
recategorize:
  apply_workers: 8
  write_timeout: 2s
  min_apply_confidence: 0.85
server:
  addr: 127.0.0.1:9000
  allowed_origins: [https://admin.example.com]
logging:
  level: DEBUG
  format: json
`), 0600))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "khata.db"), cfg.Database.Path)
	assert.Equal(t, "Other", cfg.Engine.FallbackCategory)
	assert.Equal(t, 20, cfg.Engine.SuggestionCap)
	assert.Equal(t, 8, cfg.Recategorize.ApplyWorkers)
	assert.Equal(t, 2*time.Second, cfg.Recategorize.WriteTimeout)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://admin.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	ec := cfg.EngineConfig()
	assert.Equal(t, "Other", ec.FallbackCategory)
	assert.Equal(t, 8, ec.ApplyWorkers)
	assert.Equal(t, 2*time.Second, ec.WriteTimeout)
	assert.Equal(t, 2, ec.WriteRetry.MaxAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		want  error
	}{
		{"empty fallback", "engine.fallback_category", " ", common.ErrMissingConfig},
		{"empty database", "database.path", "", common.ErrMissingConfig},
		{"zero history", "engine.history_sample", 0, common.ErrInvalidConfig},
		{"zero workers", "recategorize.apply_workers", 0, common.ErrInvalidConfig},
		{"zero timeout", "recategorize.write_timeout", "0s", common.ErrInvalidConfig},
		{"zero attempts", "recategorize.write_attempts", 0, common.ErrInvalidConfig},
		{"apply floor", "recategorize.min_apply_confidence", 0.5, common.ErrInvalidConfig},
		{"auto apply above one", "server.auto_apply_confidence", 1.2, common.ErrInvalidConfig},
		{"bad level", "logging.level", "verbose", common.ErrInvalidConfig},
		{"bad format", "logging.format", "xml", common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("KHATA_ENGINE_SUGGESTION_CAP", "7")

	v := newViper()
	BindEnv(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Engine.SuggestionCap)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("KHATA_TEST_DIR", "/srv/khata")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "db.sqlite"), ExpandPath("~/db.sqlite"))
	assert.Equal(t, "/srv/khata/db.sqlite", ExpandPath("$KHATA_TEST_DIR/db.sqlite"))
}
