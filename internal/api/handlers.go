package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/khata/internal/engine"
	"github.com/Veraticus/khata/internal/model"
)

// DefaultAnalyzeLimit bounds an analyze request that names no limit.
const DefaultAnalyzeLimit = 1000

// Categorizer is the engine surface the handlers use.
type Categorizer interface {
	Run(ctx context.Context, opts engine.RunOptions) (*model.BulkRunResult, error)
	Classify(ctx context.Context, description, notes string, amount decimal.Decimal) (model.Suggestion, error)
	Rank(ctx context.Context, description, notes string, amount decimal.Decimal) ([]engine.Candidate, error)
	SuggestForTransaction(ctx context.Context, transactionID string) (model.Suggestion, *model.Transaction, error)
	Apply(ctx context.Context, s model.Suggestion) error
	Report(ctx context.Context, opts engine.ReportOptions) ([]model.ReportRow, error)
	Refresh(ctx context.Context) error
	Stats() engine.Stats
}

// HandlerOptions holds the thresholds the handlers enforce.
type HandlerOptions struct {
	// AutoApplyConfidence is the confidence at which /single writes the
	// suggestion for a stored transaction.
	AutoApplyConfidence float64
	// MinApplyConfidence is the default threshold for analyze and bulk apply.
	MinApplyConfidence float64
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	categorizer Categorizer
	opts        HandlerOptions
}

// NewHandlers creates new handlers.
func NewHandlers(categorizer Categorizer, opts HandlerOptions) *Handlers {
	if opts.MinApplyConfidence < engine.MinApplyConfidence {
		opts.MinApplyConfidence = engine.MinApplyConfidence
	}
	return &Handlers{categorizer: categorizer, opts: opts}
}

// HealthCheck handles health check requests.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "khata",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"engine":  h.categorizer.Stats(),
	})
}

// Analyze runs a dry-run recategorization. It never writes.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q, "limit", DefaultAnalyzeLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minConfidence, err := queryFloat(q, "min_confidence", h.opts.MinApplyConfidence)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dateRange, err := parseDateRange(q.Get("date_range"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.categorizer.Run(r.Context(), engine.RunOptions{
		CategoryFilter:   q.Get("category_filter"),
		DateRange:        dateRange,
		Limit:            limit,
		MinConfidence:    minConfidence,
		SortByConfidence: q.Get("sort") == "confidence",
		DryRun:           true,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// BulkApplyRequest is the body of POST /bulk-apply.
type BulkApplyRequest struct {
	MinConfidence  *float64 `json:"min_confidence"`
	CategoryFilter string   `json:"category_filter"`
	DateRange      string   `json:"date_range"`
	MaxUpdates     int      `json:"max_updates"`
}

// BulkApply writes every confident suggestion. Thresholds below the apply
// floor are rejected before the engine is touched.
func (h *Handlers) BulkApply(w http.ResponseWriter, r *http.Request) {
	var req BulkApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	minConfidence := h.opts.MinApplyConfidence
	if req.MinConfidence != nil {
		minConfidence = *req.MinConfidence
	}
	if err := engine.ValidateApplyThreshold(minConfidence, engine.MinApplyConfidence); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MaxUpdates < 0 {
		writeError(w, http.StatusBadRequest, "max_updates must be non-negative")
		return
	}
	dateRange, err := parseDateRange(req.DateRange)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.categorizer.Run(r.Context(), engine.RunOptions{
		CategoryFilter: req.CategoryFilter,
		DateRange:      dateRange,
		MaxUpdates:     req.MaxUpdates,
		MinConfidence:  minConfidence,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SingleRequest is the body of POST /single. ExpenseID takes precedence over
// the free-text fields.
type SingleRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	ExpenseID   string          `json:"expense_id"`
	Description string          `json:"description"`
	Notes       string          `json:"notes"`
}

// SingleResponse carries one classification and, for stored transactions,
// whether it was written.
type SingleResponse struct {
	Suggestion model.Suggestion `json:"suggestion"`
	ApplyError string           `json:"apply_error,omitempty"`
	Applied    bool             `json:"applied"`
}

// Single classifies one stored transaction or one free-text description. A
// stored transaction is updated when the suggestion is confident enough and
// differs from its current category.
func (h *Handlers) Single(w http.ResponseWriter, r *http.Request) {
	var req SingleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ExpenseID == "" {
		if req.Description == "" {
			writeError(w, http.StatusBadRequest, "expense_id or description is required")
			return
		}
		s, err := h.categorizer.Classify(r.Context(), req.Description, req.Notes, req.Amount)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SingleResponse{Suggestion: s})
		return
	}

	s, _, err := h.categorizer.SuggestForTransaction(r.Context(), req.ExpenseID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	resp := SingleResponse{Suggestion: s}
	if s.Confidence >= h.opts.AutoApplyConfidence && s.NeedsUpdate() {
		if err := h.categorizer.Apply(r.Context(), s); err != nil {
			resp.ApplyError = err.Error()
		} else {
			resp.Applied = true
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Alternative is a runner-up category for a transaction.
type Alternative struct {
	CategoryName string  `json:"category_name"`
	CategoryID   int     `json:"category_id"`
	Confidence   float64 `json:"confidence"`
	Score        float64 `json:"score"`
}

// SuggestionResponse is the body of GET /suggestions/{expense_id}.
type SuggestionResponse struct {
	Transaction  *model.Transaction `json:"transaction"`
	Suggestion   model.Suggestion   `json:"suggestion"`
	Alternatives []Alternative      `json:"alternatives,omitempty"`
	NeedsUpdate  bool               `json:"needs_update"`
}

// Suggestions classifies one stored transaction without writing.
func (h *Handlers) Suggestions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "expense_id")

	includeAlternatives, err := queryBool(r.URL.Query(), "include_alternatives")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, txn, err := h.categorizer.SuggestForTransaction(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	resp := SuggestionResponse{
		Transaction: txn,
		Suggestion:  s,
		NeedsUpdate: s.NeedsUpdate(),
	}

	if includeAlternatives {
		ranked, err := h.categorizer.Rank(r.Context(), txn.Description, txn.Notes, txn.Amount)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		for _, cand := range ranked {
			if cand.Category.ID == s.SuggestedCategoryID {
				continue
			}
			resp.Alternatives = append(resp.Alternatives, Alternative{
				CategoryName: cand.Category.Name,
				CategoryID:   cand.Category.ID,
				Confidence:   cand.Confidence,
				Score:        cand.Score,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ReportResponse is the body of GET /report.
type ReportResponse struct {
	Rows       []model.ReportRow `json:"rows,omitempty"`
	Statistics Summary           `json:"statistics"`
}

// Report compares suggestions with current categories.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q, "limit", engine.DefaultReportLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	accuracyOnly, err := queryBool(q, "accuracy_only")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.categorizer.Report(r.Context(), engine.ReportOptions{
		TransactionID:  q.Get("expense_id"),
		CategoryFilter: q.Get("category"),
		Limit:          limit,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	resp := ReportResponse{Statistics: Summarize(rows)}
	if !accuracyOnly {
		resp.Rows = rows
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh rebuilds the historical index from the store.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.categorizer.Refresh(r.Context()); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.categorizer.Stats())
}
