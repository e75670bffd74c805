package catalog

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Positive(t, c.Version)
	assert.Equal(t, 10, c.Len())
	assert.Equal(t, "Utilities", c.CategoryNames()[0])

	utilities, ok := c.Lookup("Utilities")
	require.True(t, ok)
	assert.Contains(t, utilities.Keywords, "electricity")
	assert.Contains(t, utilities.ScriptPatterns, "بجلی")
	assert.InDelta(t, 0.9, utilities.BaseConfidence, 1e-9)
	require.Len(t, utilities.AmountRanges, 2)
	assert.True(t, utilities.AmountRanges[1].Contains(decimal.NewFromInt(8000)))

	_, ok = c.Lookup("Miscellaneous")
	assert.False(t, ok, "the fallback category is not a rule")

	tok := c.Tokenizer()
	assert.Equal(t, []string{"arabic"}, tok.Scripts())
	assert.Equal(t, []string{"بجلی"}, slices.Collect(tok.Tokens("بجلی")))
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no rules",
			yaml: "version: 1\nrules: []\n",
		},
		{
			name: "duplicate category ignoring case",
			yaml: `
version: 1
rules:
  - {category: Rent, base_confidence: 0.8, keywords: [rent]}
  - {category: rent, base_confidence: 0.8, keywords: [lease]}
`,
		},
		{
			name: "base confidence zero",
			yaml: `
version: 1
rules:
  - {category: Rent, base_confidence: 0, keywords: [rent]}
`,
		},
		{
			name: "base confidence above one",
			yaml: `
version: 1
rules:
  - {category: Rent, base_confidence: 1.2, keywords: [rent]}
`,
		},
		{
			name: "no keywords or patterns",
			yaml: `
version: 1
rules:
  - {category: Rent, base_confidence: 0.8}
`,
		},
		{
			name: "inverted amount range",
			yaml: `
version: 1
rules:
  - category: Rent
    base_confidence: 0.8
    keywords: [rent]
    amount_ranges: [{min: 500, max: 100, weight: 0.2}]
`,
		},
		{
			name: "inverted script range",
			yaml: `
version: 1
scripts:
  - name: broken
    ranges: [{lo: 0x0700, hi: 0x0600}]
rules:
  - {category: Rent, base_confidence: 0.8, keywords: [rent]}
`,
		},
		{
			name: "malformed yaml",
			yaml: "rules: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestParse_NormalizesTerms(t *testing.T) {
	c, err := Parse([]byte(`
version: 2
rules:
  - category: Rent
    base_confidence: 0.8
    keywords: ["  RENT ", rent, Lease, ""]
  - category: Utilities
    base_confidence: 0.9
    keywords: [bill]
`))
	require.NoError(t, err)

	rent, ok := c.Lookup("Rent")
	require.True(t, ok)
	assert.Equal(t, []string{"rent", "lease"}, rent.Keywords)
	assert.Equal(t, []string{"Rent", "Utilities"}, c.CategoryNames())
	assert.Equal(t, 2, c.Version)
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses embedded catalog", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 10, c.Len())
	})

	t.Run("file on disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
version: 7
rules:
  - {category: Rent, base_confidence: 0.8, keywords: [rent]}
`), 0o600))

		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7, c.Version)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestAll_ReturnsCopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	entries := c.All()
	entries[0].CategoryName = "Changed"

	assert.Equal(t, "Utilities", c.All()[0].CategoryName)
}
