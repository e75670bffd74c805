package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/khata/internal/catalog"
	"github.com/Veraticus/khata/internal/common"
	"github.com/Veraticus/khata/internal/config"
	"github.com/Veraticus/khata/internal/engine"
	"github.com/Veraticus/khata/internal/storage"
)

const dateLayout = "2006-01-02"

// loadConfig reads the typed configuration from the global viper instance.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("Invalid configuration", err)
	}
	return cfg, nil
}

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func closeStorage(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
}

// loadCatalog returns the configured rule catalog, or the built-in one.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default()
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("Could not load rule catalog %s", cfg.Catalog.Path), err)
	}
	return cat, nil
}

// initEngine builds an initialized engine over store.
func initEngine(ctx context.Context, cfg *config.Config, store engine.Store) (*engine.Engine, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	eng := engine.New(store, cat, cfg.EngineConfig())
	if err := eng.Initialize(ctx); err != nil {
		return nil, err
	}
	return eng, nil
}

// setup loads config, opens storage and builds the engine. The caller
// closes the returned storage.
func setup(ctx context.Context) (*config.Config, *storage.SQLiteStorage, *engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	eng, err := initEngine(ctx, cfg, store)
	if err != nil {
		closeStorage(store)
		return nil, nil, nil, err
	}

	return cfg, store, eng, nil
}

// parseDateFlags turns --from/--to values into a date range. Either may be
// empty; --to is inclusive through the end of that day.
func parseDateFlags(from, to string) (*engine.DateRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}

	dr := &engine.DateRange{
		Start: time.Time{},
		End:   time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
	if from != "" {
		parsed, err := time.Parse(dateLayout, from)
		if err != nil {
			return nil, fmt.Errorf("invalid from date format (use YYYY-MM-DD): %w", err)
		}
		dr.Start = parsed
	}
	if to != "" {
		parsed, err := time.Parse(dateLayout, to)
		if err != nil {
			return nil, fmt.Errorf("invalid to date format (use YYYY-MM-DD): %w", err)
		}
		dr.End = parsed.Add(24*time.Hour - time.Nanosecond)
	}

	if dr.End.Before(dr.Start) {
		return nil, fmt.Errorf("from date must be before to date")
	}
	return dr, nil
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		if m := int(d.Minutes()); m != 1 {
			return fmt.Sprintf("%d minutes ago", m)
		}
		return "1 minute ago"
	case d < 24*time.Hour:
		if h := int(d.Hours()); h != 1 {
			return fmt.Sprintf("%d hours ago", h)
		}
		return "1 hour ago"
	case d < 7*24*time.Hour:
		if days := int(d.Hours() / 24); days != 1 {
			return fmt.Sprintf("%d days ago", days)
		}
		return "yesterday"
	default:
		return t.Format("2006-01-02 15:04")
	}
}
