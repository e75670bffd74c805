// Package engine implements the transaction categorization engine: the
// classifier, the bulk recategorizer and the accuracy report.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/Veraticus/khata/internal/catalog"
	"github.com/Veraticus/khata/internal/common"
	"github.com/Veraticus/khata/internal/model"
	"github.com/Veraticus/khata/internal/service"
	"github.com/Veraticus/khata/internal/similarity"
)

// Store is the part of the transaction store the engine consumes.
type Store interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	ListActiveTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	UpdateTransactionCategory(ctx context.Context, transactionID string, categoryID int) error
}

// Config holds configuration options for the engine.
type Config struct {
	FallbackCategory string
	WriteRetry       service.RetryOptions
	HistorySample    int
	SuggestionCap    int
	ApplyWorkers     int
	WriteTimeout     time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FallbackCategory: "Miscellaneous",
		HistorySample:    1000,
		SuggestionCap:    50,
		ApplyWorkers:     4,
		WriteTimeout:     5 * time.Second,
		WriteRetry: service.RetryOptions{
			MaxAttempts:  2,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
		},
	}
}

// snapshot is everything built by Initialize. It is never modified; Refresh
// replaces it wholesale.
type snapshot struct {
	builtAt    time.Time
	classifier *Classifier
	index      *similarity.Index
	categories model.CategoryMap
}

// Engine owns the rule catalog and the state built from the store.
type Engine struct {
	store   Store
	catalog *catalog.Catalog
	current atomic.Pointer[snapshot]
	group   singleflight.Group
	config  Config
}

// New creates an engine. Call Initialize before classifying; the methods
// that need state initialize lazily as well.
func New(store Store, cat *catalog.Catalog, config Config) *Engine {
	defaults := DefaultConfig()
	if config.FallbackCategory == "" {
		config.FallbackCategory = defaults.FallbackCategory
	}
	if config.HistorySample <= 0 {
		config.HistorySample = defaults.HistorySample
	}
	if config.SuggestionCap <= 0 {
		config.SuggestionCap = defaults.SuggestionCap
	}
	if config.ApplyWorkers <= 0 {
		config.ApplyWorkers = defaults.ApplyWorkers
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	return &Engine{
		store:   store,
		catalog: cat,
		config:  config,
	}
}

// Initialize loads categories and builds the historical index once.
// Concurrent callers share a single build; later calls return immediately.
func (e *Engine) Initialize(ctx context.Context) error {
	_, err := e.ensure(ctx)
	return err
}

// Refresh rebuilds categories and the historical index from the store and
// swaps them in. Classifications in flight keep using the previous state.
func (e *Engine) Refresh(ctx context.Context) error {
	_, err, _ := e.group.Do("refresh", func() (any, error) {
		snap, err := e.build(ctx)
		if err != nil {
			return nil, err
		}
		e.current.Store(snap)
		return snap, nil
	})
	return err
}

func (e *Engine) ensure(ctx context.Context) (*snapshot, error) {
	if snap := e.current.Load(); snap != nil {
		return snap, nil
	}
	v, err, _ := e.group.Do("initialize", func() (any, error) {
		if snap := e.current.Load(); snap != nil {
			return snap, nil
		}
		snap, err := e.build(ctx)
		if err != nil {
			return nil, err
		}
		e.current.Store(snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

func (e *Engine) build(ctx context.Context) (*snapshot, error) {
	start := time.Now()

	cats, err := e.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	categories := model.NewCategoryMap(cats)

	if _, ok := categories.ByName(e.config.FallbackCategory); !ok {
		return nil, fmt.Errorf("%w: create a %q category before classifying",
			common.ErrMissingFallbackCategory, e.config.FallbackCategory)
	}

	history, err := e.store.ListActiveTransactions(ctx, service.TransactionFilter{Limit: e.config.HistorySample})
	if err != nil {
		return nil, fmt.Errorf("failed to load historical transactions: %w", err)
	}

	index := similarity.Build(e.catalog.Tokenizer(), categories, history)

	classifier, err := NewClassifier(e.catalog, categories, index, e.config.FallbackCategory)
	if err != nil {
		return nil, err
	}

	slog.Info("Categorization engine initialized",
		"categories", categories.Len(),
		"rules", classifier.Rules(),
		"catalog_version", e.catalog.Version,
		"history_size", index.Size(),
		"duration", time.Since(start))

	return &snapshot{
		builtAt:    time.Now(),
		classifier: classifier,
		index:      index,
		categories: categories,
	}, nil
}

// Classify suggests a category for free text.
func (e *Engine) Classify(ctx context.Context, description, notes string, amount decimal.Decimal) (model.Suggestion, error) {
	snap, err := e.ensure(ctx)
	if err != nil {
		return model.Suggestion{}, err
	}
	return snap.classifier.Classify(description, notes, amount), nil
}

// Rank returns every candidate category for the text, best first.
func (e *Engine) Rank(ctx context.Context, description, notes string, amount decimal.Decimal) ([]Candidate, error) {
	snap, err := e.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return snap.classifier.Rank(description, notes, amount), nil
}

// SuggestForTransaction classifies a stored transaction by id.
func (e *Engine) SuggestForTransaction(ctx context.Context, transactionID string) (model.Suggestion, *model.Transaction, error) {
	snap, err := e.ensure(ctx)
	if err != nil {
		return model.Suggestion{}, nil, err
	}
	txn, err := e.store.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return model.Suggestion{}, nil, fmt.Errorf("failed to load transaction %s: %w", transactionID, err)
	}
	return snap.classifier.ClassifyTransaction(*txn), txn, nil
}

// Categories returns the category map the engine classifies against.
func (e *Engine) Categories(ctx context.Context) (model.CategoryMap, error) {
	snap, err := e.ensure(ctx)
	if err != nil {
		return model.CategoryMap{}, err
	}
	return snap.categories, nil
}

// Stats describes the engine's current state.
type Stats struct {
	BuiltAt        time.Time `json:"built_at"`
	Categories     int       `json:"categories"`
	Rules          int       `json:"rules"`
	HistorySize    int       `json:"history_size"`
	CatalogVersion int       `json:"catalog_version"`
	Initialized    bool      `json:"initialized"`
}

// Stats reports on the current snapshot without initializing.
func (e *Engine) Stats() Stats {
	stats := Stats{CatalogVersion: e.catalog.Version}
	snap := e.current.Load()
	if snap == nil {
		return stats
	}
	stats.Initialized = true
	stats.BuiltAt = snap.builtAt
	stats.Categories = snap.categories.Len()
	stats.Rules = snap.classifier.Rules()
	stats.HistorySize = snap.index.Size()
	return stats
}
