// Package similarity holds the per-category corpus of past transactions used
// for soft similarity scoring.
package similarity

import (
	"github.com/shopspring/decimal"

	"github.com/Veraticus/khata/internal/model"
	"github.com/Veraticus/khata/internal/tokenize"
)

// Corpus is the learning sample for one category.
type Corpus struct {
	WordFrequency      map[string]int
	SampleDescriptions []string
	SampleAmounts      []decimal.Decimal
	tokenSets          []map[string]struct{}
	postings           map[string][]int
}

// Index maps category names to their corpus. It is immutable once built.
type Index struct {
	tokenizer *tokenize.Tokenizer
	corpora   map[string]*Corpus
	size      int
}

// Build assigns each active transaction to its current category's corpus.
// Transactions whose category is unknown to categories are skipped.
func Build(tokenizer *tokenize.Tokenizer, categories model.CategoryMap, transactions []model.Transaction) *Index {
	idx := &Index{
		tokenizer: tokenizer,
		corpora:   make(map[string]*Corpus),
	}

	for _, txn := range transactions {
		if !txn.Active {
			continue
		}
		cat, ok := categories.ByID(txn.CategoryID)
		if !ok {
			continue
		}

		c := idx.corpora[cat.Name]
		if c == nil {
			c = &Corpus{
				WordFrequency: make(map[string]int),
				postings:      make(map[string][]int),
			}
			idx.corpora[cat.Name] = c
		}

		doc := len(c.SampleDescriptions)
		c.SampleDescriptions = append(c.SampleDescriptions, txn.Description)
		c.SampleAmounts = append(c.SampleAmounts, txn.Amount)

		set := tokenizer.Set(txn.Description)
		c.tokenSets = append(c.tokenSets, set)
		for tok := range set {
			c.postings[tok] = append(c.postings[tok], doc)
		}
		for tok := range tokenizer.Tokens(txn.Description) {
			c.WordFrequency[tok]++
		}
		idx.size++
	}

	return idx
}

// Similarity returns the best Jaccard similarity between candidate and any
// historical description of the category, in [0,1].
func (idx *Index) Similarity(candidate, categoryName string) float64 {
	if idx == nil {
		return 0
	}
	c := idx.corpora[categoryName]
	if c == nil {
		return 0
	}

	cand := idx.tokenizer.Set(candidate)

	// Only documents sharing a token can score above zero.
	best := 0.0
	visited := make(map[int]bool)
	for tok := range cand {
		for _, doc := range c.postings[tok] {
			if visited[doc] {
				continue
			}
			visited[doc] = true
			if sim := tokenize.Jaccard(cand, c.tokenSets[doc]); sim > best {
				best = sim
			}
		}
	}
	return best
}

// Corpus returns the corpus for a category, or nil.
func (idx *Index) Corpus(categoryName string) *Corpus {
	if idx == nil {
		return nil
	}
	return idx.corpora[categoryName]
}

// Size returns the number of transactions in the index.
func (idx *Index) Size() int {
	if idx == nil {
		return 0
	}
	return idx.size
}

// Categories returns the number of categories with a corpus.
func (idx *Index) Categories() int {
	if idx == nil {
		return 0
	}
	return len(idx.corpora)
}
