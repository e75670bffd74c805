// Package model defines the core data structures for the khata application.
package model

import "github.com/shopspring/decimal"

// AmountRange assigns a weight to amounts falling inside [Min, Max].
type AmountRange struct {
	Min    decimal.Decimal `json:"min"`
	Max    decimal.Decimal `json:"max"`
	Weight float64         `json:"weight"`
}

// Contains reports whether amount lies inside the range, bounds inclusive.
func (r AmountRange) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(r.Min) && amount.LessThanOrEqual(r.Max)
}

// RuleEntry is the static definition used to score one category.
type RuleEntry struct {
	CategoryName   string        `json:"category"`
	Keywords       []string      `json:"keywords"`
	ScriptPatterns []string      `json:"script_patterns"`
	AmountRanges   []AmountRange `json:"amount_ranges"`
	BaseConfidence float64       `json:"base_confidence"`
}
