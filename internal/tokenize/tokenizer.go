// Package tokenize normalizes mixed-script text into comparable tokens.
package tokenize

import (
	"fmt"
	"iter"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MinTokenLength is the shortest token, in runes, that survives tokenization.
const MinTokenLength = 3

// RuneRange is an inclusive range of code points.
type RuneRange struct {
	Lo rune
	Hi rune
}

// Script names a set of code point ranges treated as token material.
type Script struct {
	Name   string
	Ranges []RuneRange
}

// ArabicScript covers the Arabic-script blocks used to write Urdu.
var ArabicScript = Script{
	Name: "arabic",
	Ranges: []RuneRange{
		{Lo: 0x0600, Hi: 0x06FF},
		{Lo: 0x0750, Hi: 0x077F},
		{Lo: 0x08A0, Hi: 0x08FF},
		{Lo: 0xFB50, Hi: 0xFDFF},
		{Lo: 0xFE70, Hi: 0xFEFF},
	},
}

// Tokenizer splits text into lowercase tokens. ASCII letters and digits are
// always kept; other runes survive only inside a configured script range.
type Tokenizer struct {
	scripts []Script
}

// New creates a tokenizer for the given scripts.
func New(scripts ...Script) (*Tokenizer, error) {
	for _, s := range scripts {
		for _, r := range s.Ranges {
			if r.Lo > r.Hi {
				return nil, fmt.Errorf("script %q: range %U-%U is inverted", s.Name, r.Lo, r.Hi)
			}
		}
	}
	return &Tokenizer{scripts: scripts}, nil
}

// Default returns a tokenizer for Latin text plus Arabic script.
func Default() *Tokenizer {
	return &Tokenizer{scripts: []Script{ArabicScript}}
}

// Scripts returns the configured script names.
func (t *Tokenizer) Scripts() []string {
	names := make([]string, 0, len(t.scripts))
	for _, s := range t.scripts {
		names = append(names, s.Name)
	}
	return names
}

// Normalize applies NFKC, lowercases text and drops every rune that is not
// token material or whitespace. NFKC folds Arabic presentation forms and
// full-width Latin onto their base letters.
func (t *Tokenizer) Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(norm.NFKC.String(text)) {
		if unicode.IsSpace(r) || t.keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokens returns a sequence over the normalized tokens of text. The sequence
// is lazy and may be ranged over any number of times.
func (t *Tokenizer) Tokens(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, field := range strings.Fields(t.Normalize(text)) {
			if len([]rune(field)) < MinTokenLength {
				continue
			}
			if !yield(field) {
				return
			}
		}
	}
}

// Set returns the distinct tokens of text.
func (t *Tokenizer) Set(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for tok := range t.Tokens(text) {
		set[tok] = struct{}{}
	}
	return set
}

func (t *Tokenizer) keep(r rune) bool {
	if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
		return true
	}
	for _, s := range t.scripts {
		for _, rr := range s.Ranges {
			if r >= rr.Lo && r <= rr.Hi {
				return true
			}
		}
	}
	return false
}

// Jaccard returns |a∩b| / |a∪b|, or 0 when both sets are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
