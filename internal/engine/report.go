package engine

import (
	"context"
	"fmt"

	"github.com/Veraticus/khata/internal/common"
	"github.com/Veraticus/khata/internal/model"
	"github.com/Veraticus/khata/internal/service"
)

// DefaultReportLimit is used when a report asks for no explicit limit.
const DefaultReportLimit = 100

// ReportOptions selects the transactions to re-classify.
type ReportOptions struct {
	// TransactionID reports on a single transaction when set.
	TransactionID string
	// CategoryFilter restricts the sample to one current category.
	CategoryFilter string
	Limit          int
}

// Report re-classifies a sample of transactions and compares each
// suggestion with the category currently assigned.
func (e *Engine) Report(ctx context.Context, opts ReportOptions) ([]model.ReportRow, error) {
	snap, err := e.ensure(ctx)
	if err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	if opts.TransactionID != "" {
		txn, err := e.store.GetTransactionByID(ctx, opts.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load transaction %s: %w", opts.TransactionID, err)
		}
		transactions = []model.Transaction{*txn}
	} else {
		filter := service.TransactionFilter{Limit: opts.Limit}
		if filter.Limit <= 0 {
			filter.Limit = DefaultReportLimit
		}
		if opts.CategoryFilter != "" {
			cat, ok := snap.categories.ByName(opts.CategoryFilter)
			if !ok {
				return nil, fmt.Errorf("%w: %q", common.ErrUnknownCategory, opts.CategoryFilter)
			}
			filter.CategoryID = &cat.ID
		}
		transactions, err = e.store.ListActiveTransactions(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to load transactions: %w", err)
		}
	}

	rows := make([]model.ReportRow, 0, len(transactions))
	for _, txn := range transactions {
		s := snap.classifier.ClassifyTransaction(txn)
		current := snap.categories.NameOf(txn.CategoryID)
		rows = append(rows, model.ReportRow{
			TransactionID:     txn.ID,
			Description:       txn.Description,
			Amount:            txn.Amount,
			CurrentCategory:   current,
			SuggestedCategory: s.SuggestedCategoryName,
			Confidence:        s.Confidence,
			IsCorrect:         current != "" && current == s.SuggestedCategoryName,
			Reasoning:         s.Reasoning,
		})
	}

	return rows, nil
}
