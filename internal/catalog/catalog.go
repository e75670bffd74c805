// Package catalog loads the versioned rule table that maps categories to
// keywords, script patterns and amount weights.
package catalog

import (
	_ "embed" // default catalog
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/khata/internal/model"
	"github.com/Veraticus/khata/internal/tokenize"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// ErrInvalidCatalog is returned when a catalog file fails validation.
var ErrInvalidCatalog = errors.New("invalid rule catalog")

// Catalog is the immutable, ordered set of rule entries.
type Catalog struct {
	index   map[string]int
	entries []model.RuleEntry
	scripts []tokenize.Script
	Version int
}

type fileRange struct {
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Weight float64 `yaml:"weight"`
}

type fileRule struct {
	Category       string      `yaml:"category"`
	Keywords       []string    `yaml:"keywords"`
	ScriptPatterns []string    `yaml:"script_patterns"`
	AmountRanges   []fileRange `yaml:"amount_ranges"`
	BaseConfidence float64     `yaml:"base_confidence"`
}

type fileScript struct {
	Name   string `yaml:"name"`
	Ranges []struct {
		Lo int32 `yaml:"lo"`
		Hi int32 `yaml:"hi"`
	} `yaml:"ranges"`
}

type file struct {
	Scripts []fileScript `yaml:"scripts"`
	Rules   []fileRule   `yaml:"rules"`
	Version int          `yaml:"version"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("loaded rule catalog", "path", path, "version", c.Version, "rules", len(c.entries))
	return c, nil
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("%w: no rules defined", ErrInvalidCatalog)
	}

	c := &Catalog{
		Version: f.Version,
		index:   make(map[string]int, len(f.Rules)),
		entries: make([]model.RuleEntry, 0, len(f.Rules)),
	}

	seen := make(map[string]bool, len(f.Rules))
	for i, r := range f.Rules {
		entry, err := convertRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		key := strings.ToLower(entry.CategoryName)
		if seen[key] {
			return nil, fmt.Errorf("%w: category %q defined twice", ErrInvalidCatalog, entry.CategoryName)
		}
		seen[key] = true
		c.index[entry.CategoryName] = len(c.entries)
		c.entries = append(c.entries, entry)
	}

	for _, s := range f.Scripts {
		script := tokenize.Script{Name: s.Name}
		for _, r := range s.Ranges {
			script.Ranges = append(script.Ranges, tokenize.RuneRange{Lo: r.Lo, Hi: r.Hi})
		}
		c.scripts = append(c.scripts, script)
	}
	if _, err := tokenize.New(c.scripts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	return c, nil
}

func convertRule(r fileRule) (model.RuleEntry, error) {
	name := strings.TrimSpace(r.Category)
	if name == "" {
		return model.RuleEntry{}, fmt.Errorf("%w: missing category", ErrInvalidCatalog)
	}
	if r.BaseConfidence <= 0 || r.BaseConfidence > 1 {
		return model.RuleEntry{}, fmt.Errorf("%w: %s: base_confidence %.2f outside (0,1]", ErrInvalidCatalog, name, r.BaseConfidence)
	}

	entry := model.RuleEntry{
		CategoryName:   name,
		Keywords:       normalizeTerms(r.Keywords),
		ScriptPatterns: normalizeTerms(r.ScriptPatterns),
		BaseConfidence: r.BaseConfidence,
	}
	if len(entry.Keywords) == 0 && len(entry.ScriptPatterns) == 0 {
		return model.RuleEntry{}, fmt.Errorf("%w: %s: needs at least one keyword or script pattern", ErrInvalidCatalog, name)
	}

	for _, ar := range r.AmountRanges {
		if ar.Min > ar.Max {
			return model.RuleEntry{}, fmt.Errorf("%w: %s: amount range min %.2f exceeds max %.2f", ErrInvalidCatalog, name, ar.Min, ar.Max)
		}
		if ar.Weight < 0 {
			return model.RuleEntry{}, fmt.Errorf("%w: %s: negative amount weight", ErrInvalidCatalog, name)
		}
		entry.AmountRanges = append(entry.AmountRanges, model.AmountRange{
			Min:    decimal.NewFromFloat(ar.Min),
			Max:    decimal.NewFromFloat(ar.Max),
			Weight: ar.Weight,
		})
	}

	return entry, nil
}

// normalizeTerms lowercases, trims and de-duplicates terms, keeping file order.
func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Lookup returns the rule entry for a category name.
func (c *Catalog) Lookup(categoryName string) (model.RuleEntry, bool) {
	i, ok := c.index[categoryName]
	if !ok {
		return model.RuleEntry{}, false
	}
	return c.entries[i], true
}

// All returns every entry in catalog file order. Ties between equally
// confident categories are broken by this order.
func (c *Catalog) All() []model.RuleEntry {
	out := make([]model.RuleEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of rule entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// CategoryNames returns the category names in catalog order.
func (c *Catalog) CategoryNames() []string {
	names := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		names = append(names, e.CategoryName)
	}
	return names
}

// Tokenizer builds a tokenizer for the catalog's configured scripts.
func (c *Catalog) Tokenizer() *tokenize.Tokenizer {
	// Scripts were validated in Parse.
	t, _ := tokenize.New(c.scripts...)
	return t
}
