package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/khata/internal/catalog"
	"github.com/Veraticus/khata/internal/common"
	"github.com/Veraticus/khata/internal/model"
	"github.com/Veraticus/khata/internal/similarity"
)

var defaultCategoryNames = []string{
	"Utilities", "Salaries", "Rent", "Fuel & Transport", "Food & Refreshments",
	"Office Supplies", "Maintenance & Repairs", "Medical", "Communication",
	"Bank Charges", "Miscellaneous",
}

func categoryMap(names ...string) model.CategoryMap {
	cats := make([]model.Category, len(names))
	for i, name := range names {
		cats[i] = model.Category{ID: i + 1, Name: name, IsActive: true}
	}
	return model.NewCategoryMap(cats)
}

func newDefaultClassifier(t *testing.T, history ...model.Transaction) *Classifier {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	cats := categoryMap(defaultCategoryNames...)
	index := similarity.Build(cat.Tokenizer(), cats, history)
	c, err := NewClassifier(cat, cats, index, "Miscellaneous")
	require.NoError(t, err)
	return c
}

func TestClassify_Scenarios(t *testing.T) {
	c := newDefaultClassifier(t)

	tests := []struct {
		name          string
		description   string
		notes         string
		amount        int64
		wantCategory  string
		minConfidence float64
		maxConfidence float64
	}{
		{
			name:          "electricity bill",
			description:   "BP MUHAMMAD QURESH ELECTRICITY",
			notes:         "MONTHLY ELECTRICITY BILL",
			amount:        8000,
			wantCategory:  "Utilities",
			minConfidence: 0.9,
			maxConfidence: MaxConfidence,
		},
		{
			name:          "staff salary",
			description:   "BP SOBIA PARVEEN SALARY",
			notes:         "STAFF MONTHLY SALARY",
			amount:        25000,
			wantCategory:  "Salaries",
			minConfidence: 0.9,
			maxConfidence: MaxConfidence,
		},
		{
			name:          "unknown item",
			description:   "UNKNOWN EXPENSE ITEM",
			notes:         "NO CLEAR DESCRIPTION",
			amount:        1000,
			wantCategory:  "Miscellaneous",
			minConfidence: FallbackConfidence,
			maxConfidence: FallbackConfidence,
		},
		{
			name:          "urdu electricity",
			description:   "بجلی کا بل",
			amount:        3000,
			wantCategory:  "Utilities",
			minConfidence: 0.5,
			maxConfidence: MaxConfidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := c.Classify(tt.description, tt.notes, decimal.NewFromInt(tt.amount))
			assert.Equal(t, tt.wantCategory, s.SuggestedCategoryName)
			assert.GreaterOrEqual(t, s.Confidence, tt.minConfidence)
			assert.LessOrEqual(t, s.Confidence, tt.maxConfidence)
		})
	}
}

func TestClassify_Fallback(t *testing.T) {
	c := newDefaultClassifier(t)

	s := c.Classify("UNKNOWN EXPENSE ITEM", "NO CLEAR DESCRIPTION", decimal.NewFromInt(1000))
	assert.Equal(t, "Miscellaneous", s.SuggestedCategoryName)
	assert.Equal(t, c.Fallback().ID, s.SuggestedCategoryID)
	assert.InDelta(t, 0.1, s.Confidence, 1e-9)
	assert.Zero(t, s.Score)
	assert.Empty(t, s.MatchedKeywords)
	assert.NotNil(t, s.MatchedKeywords)
	assert.Equal(t, "No strong pattern matches found, defaulting to Miscellaneous", s.Reasoning)
}

func TestClassify_Reasoning(t *testing.T) {
	c := newDefaultClassifier(t)

	s := c.Classify("BP MUHAMMAD QURESH ELECTRICITY", "MONTHLY ELECTRICITY BILL", decimal.NewFromInt(8000))
	assert.Equal(t, []string{"electricity", "electric", "bill"}, s.MatchedKeywords)
	assert.Equal(t, "Keywords: electricity, electric, bill; Score: 3.50", s.Reasoning)

	s = c.Classify("LESCO WAPDA electricity bill", "", decimal.Zero)
	assert.Len(t, s.MatchedKeywords, 5)
	assert.Equal(t, "Keywords: electricity, electric, bill; Score: 5.00", s.Reasoning, "reasoning lists at most three keywords")

	s = c.Classify("گیس کا بل", "", decimal.Zero)
	assert.Equal(t, "Utilities", s.SuggestedCategoryName)
	assert.Equal(t, []string{"گیس"}, s.MatchedScriptPatterns)
	assert.Equal(t, "Script patterns: گیس; Score: 1.20", s.Reasoning)
}

func TestClassify_Determinism(t *testing.T) {
	c := newDefaultClassifier(t,
		model.Transaction{ID: "h1", Description: "LESCO monthly bill", CategoryID: 1, Active: true},
		model.Transaction{ID: "h2", Description: "Staff payroll March", CategoryID: 2, Active: true},
	)

	inputs := []struct {
		description, notes string
		amount             int64
	}{
		{"LESCO monthly bill", "", 4500},
		{"office rent and electricity", "landlord", 90000},
		{"tea and biryani", "staff lunch", 1200},
		{"", "", 0},
	}

	for _, in := range inputs {
		first := c.Classify(in.description, in.notes, decimal.NewFromInt(in.amount))
		for range 5 {
			again := c.Classify(in.description, in.notes, decimal.NewFromInt(in.amount))
			assert.Equal(t, first, again)
		}
	}
}

func TestClassify_ConfidenceBound(t *testing.T) {
	c := newDefaultClassifier(t,
		model.Transaction{ID: "h1", Description: "electricity bill wapda lesco", CategoryID: 1, Active: true},
	)

	inputs := []string{
		"electricity electric bill wapda lesco kelectric sngpl sui gas water بجلی گیس پانی",
		"salary wages payroll staff stipend bonus تنخواہ",
		"random text",
		"",
		"!!!",
		"electricity bill wapda lesco",
	}
	amounts := []string{"0", "-500", "499.99", "500", "4999.99", "5000", "50000", "1000000"}

	for _, text := range inputs {
		for _, amount := range amounts {
			s := c.Classify(text, text, decimal.RequireFromString(amount))
			assert.GreaterOrEqual(t, s.Confidence, 0.0, "%q %s", text, amount)
			assert.LessOrEqual(t, s.Confidence, MaxConfidence, "%q %s", text, amount)
		}
	}
}

func TestRank_AmountWithoutTextIsNotEvidence(t *testing.T) {
	c := newDefaultClassifier(t)

	ranked := c.Rank("zzz", "", decimal.NewFromInt(25000))
	assert.Empty(t, ranked)
}

func TestAmountWeight_TakesMaximum(t *testing.T) {
	ranges := []model.AmountRange{
		{Min: decimal.NewFromInt(0), Max: decimal.NewFromInt(10000), Weight: 0.2},
		{Min: decimal.NewFromInt(5000), Max: decimal.NewFromInt(50000), Weight: 0.5},
		{Min: decimal.NewFromInt(1000), Max: decimal.NewFromInt(9000), Weight: 0.3},
	}

	tests := []struct {
		amount string
		want   float64
	}{
		{"500", 0.2},
		{"2000", 0.3},
		{"8000", 0.5},
		{"20000", 0.5},
		{"60000", 0},
		{"0", 0},
		{"-8000", 0},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.InDelta(t, tt.want, amountWeight(ranges, decimal.RequireFromString(tt.amount)), 1e-9)
		})
	}
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.0, confidence(0, 0.9), 1e-9)
	assert.InDelta(t, 0.45, confidence(1, 0.9), 1e-9)
	assert.InDelta(t, 0.95, confidence(10, 0.9), 1e-9)
	assert.InDelta(t, 0.2125, confidence(0.5, 0.85), 1e-9)
}

func TestRank_TieBreakUsesCatalogOrder(t *testing.T) {
	cat, err := catalog.Parse([]byte(`
version: 1
rules:
  - category: Second
    base_confidence: 0.8
    keywords: [shared]
  - category: First
    base_confidence: 0.8
    keywords: [shared]
`))
	require.NoError(t, err)

	// Category ids deliberately disagree with catalog order.
	cats := categoryMap("First", "Second", "Miscellaneous")
	c, err := NewClassifier(cat, cats, nil, "Miscellaneous")
	require.NoError(t, err)

	ranked := c.Rank("shared", "", decimal.Zero)
	require.Len(t, ranked, 2)
	assert.Equal(t, "Second", ranked[0].Category.Name)
	assert.Equal(t, "First", ranked[1].Category.Name)
	assert.InDelta(t, ranked[0].Confidence, ranked[1].Confidence, 1e-12)

	s := c.Classify("shared", "", decimal.Zero)
	assert.Equal(t, "Second", s.SuggestedCategoryName)
}

func TestNewClassifier_SkipsMissingCategories(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	c, err := NewClassifier(cat, categoryMap("Utilities", "Miscellaneous"), nil, "Miscellaneous")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Rules())

	s := c.Classify("STAFF SALARY", "", decimal.NewFromInt(25000))
	assert.Equal(t, "Miscellaneous", s.SuggestedCategoryName, "rules for absent categories never suggest")
}

func TestNewClassifier_MissingFallback(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	_, err = NewClassifier(cat, categoryMap("Utilities"), nil, "Miscellaneous")
	assert.ErrorIs(t, err, common.ErrMissingFallbackCategory)
}

func TestRank_HistoryContributes(t *testing.T) {
	c := newDefaultClassifier(t,
		model.Transaction{ID: "h1", Description: "Qureshi Traders invoice", CategoryID: 6, Active: true},
	)

	ranked := c.Rank("Qureshi Traders invoice", "", decimal.Zero)
	require.Len(t, ranked, 1)
	assert.Equal(t, "Office Supplies", ranked[0].Category.Name)
	assert.InDelta(t, 0.5, ranked[0].Score, 1e-9)
	assert.InDelta(t, 0.5*0.75/2, ranked[0].Confidence, 1e-9)
}
