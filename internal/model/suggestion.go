package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Suggestion is the classifier's verdict for one transaction or description.
type Suggestion struct {
	TransactionID         string   `json:"transaction_id,omitempty"`
	SuggestedCategoryName string   `json:"suggested_category_name"`
	Reasoning             string   `json:"reasoning"`
	MatchedKeywords       []string `json:"matched_keywords"`
	MatchedScriptPatterns []string `json:"matched_script_patterns"`
	CurrentCategoryID     int      `json:"current_category_id,omitempty"`
	SuggestedCategoryID   int      `json:"suggested_category_id"`
	Confidence            float64  `json:"confidence"`
	Score                 float64  `json:"score"`
}

// NeedsUpdate reports whether the suggestion differs from the current category.
func (s Suggestion) NeedsUpdate() bool {
	return s.SuggestedCategoryID != s.CurrentCategoryID
}

// ApplyFailure describes one suggestion whose write did not succeed.
type ApplyFailure struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
}

// BulkRunResult summarizes one recategorization run.
type BulkRunResult struct {
	Distribution        map[string]int `json:"distribution"`
	Suggestions         []Suggestion   `json:"suggestions"`
	Failures            []ApplyFailure `json:"failures,omitempty"`
	ProcessedCount      int            `json:"processed_count"`
	HighConfidenceCount int            `json:"high_confidence_count"`
	AppliedCount        int            `json:"applied_count"`
	FailedCount         int            `json:"failed_count"`
	AverageConfidence   float64        `json:"average_confidence"`
	Duration            time.Duration  `json:"duration"`
	DryRun              bool           `json:"dry_run"`
}

// ReportRow compares a transaction's current category with the suggestion.
type ReportRow struct {
	Amount            decimal.Decimal `json:"amount"`
	TransactionID     string          `json:"transaction_id"`
	Description       string          `json:"description"`
	CurrentCategory   string          `json:"current_category"`
	SuggestedCategory string          `json:"suggested_category"`
	Reasoning         string          `json:"reasoning"`
	Confidence        float64         `json:"confidence"`
	IsCorrect         bool            `json:"is_correct"`
}
