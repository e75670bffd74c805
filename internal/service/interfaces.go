// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/khata/internal/model"
)

// TransactionFilter narrows active-transaction queries. Zero values mean
// "no constraint". Results are ordered most recent first.
type TransactionFilter struct {
	CategoryID *int
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Category operations
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*model.Category, error)

	// Transaction operations
	ListActiveTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	UpdateTransactionCategory(ctx context.Context, transactionID string, categoryID int) error
	GetCategoryHistory(ctx context.Context, transactionID string) ([]model.CategoryChange, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
