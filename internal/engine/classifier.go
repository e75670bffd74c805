package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/khata/internal/catalog"
	"github.com/Veraticus/khata/internal/common"
	"github.com/Veraticus/khata/internal/model"
	"github.com/Veraticus/khata/internal/similarity"
)

// Scoring weights. Confidence is score * baseConfidence / 2, capped at
// MaxConfidence; the apply thresholds are calibrated against that shape.
const (
	keywordWeight       = 1.0
	scriptPatternWeight = 1.2
	historyWeight       = 0.5

	// MaxConfidence is the ceiling on any rule-derived confidence.
	MaxConfidence = 0.95
	// FallbackConfidence is reported when nothing matched.
	FallbackConfidence = 0.1

	maxReasonKeywords = 3
)

// Candidate is one scored category for a piece of text.
type Candidate struct {
	Category              model.Category
	MatchedKeywords       []string
	MatchedScriptPatterns []string
	Score                 float64
	Confidence            float64
}

// Classifier scores text against the rule catalog and historical index.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	index      *similarity.Index
	categories model.CategoryMap
	rules      []scoringRule
	fallback   model.Category
}

type scoringRule struct {
	entry    model.RuleEntry
	category model.Category
}

// NewClassifier binds catalog rules to live categories. Rules naming a
// category absent from categories are left out. The fallback category must
// exist.
func NewClassifier(cat *catalog.Catalog, categories model.CategoryMap, index *similarity.Index, fallbackName string) (*Classifier, error) {
	fallback, ok := categories.ByName(fallbackName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrMissingFallbackCategory, fallbackName)
	}

	c := &Classifier{
		index:      index,
		categories: categories,
		fallback:   fallback,
	}

	for _, entry := range cat.All() {
		category, ok := categories.ByName(entry.CategoryName)
		if !ok {
			slog.Debug("skipping rule for missing category", "category", entry.CategoryName)
			continue
		}
		c.rules = append(c.rules, scoringRule{entry: entry, category: category})
	}

	return c, nil
}

// Rules returns the number of rules bound to live categories.
func (c *Classifier) Rules() int {
	return len(c.rules)
}

// Fallback returns the category used when nothing matches.
func (c *Classifier) Fallback() model.Category {
	return c.fallback
}

// Rank scores every bound rule and returns the candidates ordered by
// confidence, highest first. Equal confidences keep catalog order.
// A category needs textual evidence (keyword, script pattern or history);
// an amount match alone does not make it a candidate.
func (c *Classifier) Rank(description, notes string, amount decimal.Decimal) []Candidate {
	text := strings.ToLower(description + " " + notes)

	candidates := make([]Candidate, 0, len(c.rules))
	for _, rule := range c.rules {
		cand := Candidate{Category: rule.category}
		textual := false

		for _, kw := range rule.entry.Keywords {
			if strings.Contains(text, kw) {
				cand.Score += keywordWeight
				cand.MatchedKeywords = append(cand.MatchedKeywords, kw)
				textual = true
			}
		}

		for _, p := range rule.entry.ScriptPatterns {
			if strings.Contains(text, p) {
				cand.Score += scriptPatternWeight
				cand.MatchedScriptPatterns = append(cand.MatchedScriptPatterns, p)
				textual = true
			}
		}

		if sim := c.index.Similarity(description, rule.entry.CategoryName); sim > 0 {
			cand.Score += sim * historyWeight
			textual = true
		}

		if !textual {
			continue
		}

		cand.Score += amountWeight(rule.entry.AmountRanges, amount)
		cand.Confidence = confidence(cand.Score, rule.entry.BaseConfidence)
		candidates = append(candidates, cand)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	return candidates
}

// Classify returns the best suggestion for the text, or the fallback
// suggestion when no category has any evidence. It never fails.
func (c *Classifier) Classify(description, notes string, amount decimal.Decimal) model.Suggestion {
	ranked := c.Rank(description, notes, amount)
	if len(ranked) == 0 {
		return c.fallbackSuggestion()
	}
	return toSuggestion(ranked[0])
}

// ClassifyTransaction classifies a stored transaction and records its
// current category on the suggestion.
func (c *Classifier) ClassifyTransaction(txn model.Transaction) model.Suggestion {
	s := c.Classify(txn.Description, txn.Notes, txn.Amount)
	s.TransactionID = txn.ID
	s.CurrentCategoryID = txn.CategoryID
	return s
}

func (c *Classifier) fallbackSuggestion() model.Suggestion {
	return model.Suggestion{
		SuggestedCategoryID:   c.fallback.ID,
		SuggestedCategoryName: c.fallback.Name,
		Confidence:            FallbackConfidence,
		Score:                 0,
		MatchedKeywords:       []string{},
		MatchedScriptPatterns: []string{},
		Reasoning:             fmt.Sprintf("No strong pattern matches found, defaulting to %s", c.fallback.Name),
	}
}

func toSuggestion(cand Candidate) model.Suggestion {
	s := model.Suggestion{
		SuggestedCategoryID:   cand.Category.ID,
		SuggestedCategoryName: cand.Category.Name,
		Confidence:            cand.Confidence,
		Score:                 cand.Score,
		MatchedKeywords:       cand.MatchedKeywords,
		MatchedScriptPatterns: cand.MatchedScriptPatterns,
		Reasoning:             reasoning(cand),
	}
	if s.MatchedKeywords == nil {
		s.MatchedKeywords = []string{}
	}
	if s.MatchedScriptPatterns == nil {
		s.MatchedScriptPatterns = []string{}
	}
	return s
}

// amountWeight returns the largest weight among ranges containing amount.
func amountWeight(ranges []model.AmountRange, amount decimal.Decimal) float64 {
	if !amount.IsPositive() {
		return 0
	}
	best := 0.0
	for _, r := range ranges {
		if r.Contains(amount) && r.Weight > best {
			best = r.Weight
		}
	}
	return best
}

func confidence(score, base float64) float64 {
	if score <= 0 {
		return 0
	}
	return min(score*base/2, MaxConfidence)
}

func reasoning(cand Candidate) string {
	parts := make([]string, 0, 3)
	if len(cand.MatchedKeywords) > 0 {
		kws := cand.MatchedKeywords
		if len(kws) > maxReasonKeywords {
			kws = kws[:maxReasonKeywords]
		}
		parts = append(parts, "Keywords: "+strings.Join(kws, ", "))
	}
	if len(cand.MatchedScriptPatterns) > 0 {
		parts = append(parts, "Script patterns: "+strings.Join(cand.MatchedScriptPatterns, ", "))
	}
	parts = append(parts, fmt.Sprintf("Score: %.2f", cand.Score))
	return strings.Join(parts, "; ")
}
