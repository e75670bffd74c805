package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/khata/internal/common"
	"github.com/Veraticus/khata/internal/model"
	"github.com/Veraticus/khata/internal/service"
)

// MinApplyConfidence is the lowest threshold accepted for a bulk apply.
const MinApplyConfidence = 0.7

// ErrInvalidOptions is returned for malformed run options.
var ErrInvalidOptions = errors.New("invalid run options")

// DateRange bounds a run by transaction date, both ends inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// RunOptions configures a bulk recategorization run.
type RunOptions struct {
	// OnApply, when set, is called once per attempted write. Calls are
	// serialized.
	OnApply        func(ApplyOutcome)
	DateRange      *DateRange
	CategoryFilter string
	Limit          int
	// MaxUpdates caps the number of writes. The most confident suggestions
	// are written first. Zero means no cap.
	MaxUpdates    int
	MinConfidence float64
	DryRun        bool
	// SortByConfidence orders the returned suggestions highest first before
	// capping. By default they stay in the order transactions were scanned.
	SortByConfidence bool
}

// ApplyOutcome is the result of one category write.
type ApplyOutcome struct {
	Err        error
	Suggestion model.Suggestion
}

// ValidateApplyThreshold rejects apply thresholds below floor.
func ValidateApplyThreshold(minConfidence, floor float64) error {
	if minConfidence < floor {
		return fmt.Errorf("%w: %.2f is below the %.2f minimum for bulk apply",
			common.ErrConfidenceTooLow, minConfidence, floor)
	}
	return nil
}

func (o RunOptions) validate() error {
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		return fmt.Errorf("%w: min confidence %.2f outside [0,1]", ErrInvalidOptions, o.MinConfidence)
	}
	if o.Limit < 0 || o.MaxUpdates < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidOptions)
	}
	if o.DateRange != nil && o.DateRange.End.Before(o.DateRange.Start) {
		return fmt.Errorf("%w: date range ends before it starts", ErrInvalidOptions)
	}
	return nil
}

// Run scans active transactions, keeps suggestions that are confident
// enough and differ from the current category, and, unless DryRun is set,
// writes each one. Writes are independent: a failure is logged and counted
// and the rest of the batch continues.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*model.BulkRunResult, error) {
	start := time.Now()

	if err := opts.validate(); err != nil {
		return nil, err
	}

	snap, err := e.ensure(ctx)
	if err != nil {
		return nil, err
	}

	filter := service.TransactionFilter{Limit: opts.Limit}
	if opts.CategoryFilter != "" {
		cat, ok := snap.categories.ByName(opts.CategoryFilter)
		if !ok {
			return nil, fmt.Errorf("%w: %q", common.ErrUnknownCategory, opts.CategoryFilter)
		}
		filter.CategoryID = &cat.ID
	}
	if opts.DateRange != nil {
		filter.StartDate = &opts.DateRange.Start
		filter.EndDate = &opts.DateRange.End
	}

	transactions, err := e.store.ListActiveTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transactions: %w", err)
	}

	slog.Info("Starting recategorization run",
		"transactions", len(transactions),
		"min_confidence", opts.MinConfidence,
		"dry_run", opts.DryRun,
		"category_filter", opts.CategoryFilter)

	result := &model.BulkRunResult{
		Distribution: make(map[string]int),
		Suggestions:  []model.Suggestion{},
		DryRun:       opts.DryRun,
	}

	var kept []model.Suggestion
	var total float64
	for _, txn := range transactions {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("recategorization canceled after %d transactions: %w", result.ProcessedCount, err)
		}

		result.ProcessedCount++
		s := snap.classifier.ClassifyTransaction(txn)
		if s.Confidence < opts.MinConfidence || !s.NeedsUpdate() {
			continue
		}
		kept = append(kept, s)
		total += s.Confidence
		result.Distribution[s.SuggestedCategoryName]++
	}

	result.HighConfidenceCount = len(kept)
	if len(kept) > 0 {
		result.AverageConfidence = total / float64(len(kept))
	}

	listed := kept
	if opts.SortByConfidence {
		listed = make([]model.Suggestion, len(kept))
		copy(listed, kept)
		sort.SliceStable(listed, func(i, j int) bool {
			return listed[i].Confidence > listed[j].Confidence
		})
	}
	if len(listed) > e.config.SuggestionCap {
		listed = listed[:e.config.SuggestionCap]
	}
	result.Suggestions = append(result.Suggestions, listed...)

	if !opts.DryRun && len(kept) > 0 {
		e.apply(ctx, capUpdates(kept, opts.MaxUpdates), opts.OnApply, result)
	}

	result.Duration = time.Since(start)

	slog.Info("Recategorization run finished",
		"processed", result.ProcessedCount,
		"high_confidence", result.HighConfidenceCount,
		"applied", result.AppliedCount,
		"failed", result.FailedCount,
		"dry_run", opts.DryRun,
		"duration", result.Duration)

	return result, nil
}

func capUpdates(suggestions []model.Suggestion, maxUpdates int) []model.Suggestion {
	if maxUpdates <= 0 || len(suggestions) <= maxUpdates {
		return suggestions
	}
	ordered := make([]model.Suggestion, len(suggestions))
	copy(ordered, suggestions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})
	return ordered[:maxUpdates]
}

// apply writes every suggestion on a bounded worker pool. Each write gets
// its own timeout and its own outcome.
func (e *Engine) apply(ctx context.Context, suggestions []model.Suggestion, onApply func(ApplyOutcome), result *model.BulkRunResult) {
	outcomes := make([]error, len(suggestions))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.config.ApplyWorkers)

	for i, s := range suggestions {
		g.Go(func() error {
			err := e.write(ctx, s)
			outcomes[i] = err

			if err != nil {
				slog.Warn("Failed to apply category",
					"transaction_id", s.TransactionID,
					"category", s.SuggestedCategoryName,
					"error", err)
			}

			if onApply != nil {
				mu.Lock()
				onApply(ApplyOutcome{Suggestion: s, Err: err})
				mu.Unlock()
			}
			// Failures never cancel sibling writes.
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range outcomes {
		if err == nil {
			result.AppliedCount++
			continue
		}
		result.FailedCount++
		result.Failures = append(result.Failures, model.ApplyFailure{
			TransactionID: suggestions[i].TransactionID,
			Error:         err.Error(),
		})
	}
}

// Apply writes a single suggestion with the same timeout and retry policy
// a bulk run uses.
func (e *Engine) Apply(ctx context.Context, s model.Suggestion) error {
	if s.TransactionID == "" {
		return fmt.Errorf("%w: suggestion has no transaction id", ErrInvalidOptions)
	}
	if err := e.write(ctx, s); err != nil {
		return fmt.Errorf("failed to apply %s to %s: %w", s.SuggestedCategoryName, s.TransactionID, err)
	}
	slog.Info("Applied category", "transaction_id", s.TransactionID, "category", s.SuggestedCategoryName)
	return nil
}

func (e *Engine) write(ctx context.Context, s model.Suggestion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return common.WithRetry(ctx, func() error {
		wctx, cancel := context.WithTimeout(ctx, e.config.WriteTimeout)
		defer cancel()
		return e.store.UpdateTransactionCategory(wctx, s.TransactionID, s.SuggestedCategoryID)
	}, e.config.WriteRetry)
}
