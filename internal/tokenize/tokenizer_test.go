package tokenize

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizer_Tokens(t *testing.T) {
	tok := Default()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "latin text is lowercased and short tokens dropped",
			input: "BP MUHAMMAD QURESH ELECTRICITY",
			want:  []string{"muhammad", "quresh", "electricity"},
		},
		{
			name:  "punctuation is removed, not replaced",
			input: "K-ELECTRIC bill #4521",
			want:  []string{"kelectric", "bill", "4521"},
		},
		{
			name:  "arabic script survives alongside latin",
			input: "بجلی کا بل ELECTRICITY",
			want:  []string{"بجلی", "electricity"},
		},
		{
			name:  "full-width latin folds to ascii",
			input: "ＬＥＳＣＯ bill",
			want:  []string{"lesco", "bill"},
		},
		{
			name:  "arabic presentation forms fold to base letters",
			input: "ﺏﺝﻝﯼ",
			want:  []string{"بجلی"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "only symbols",
			input: "*** --- !!!",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(tok.Tokens(tt.input))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenizer_TokensRestartable(t *testing.T) {
	seq := Default().Tokens("monthly salary staff")

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestTokenizer_TokensEarlyStop(t *testing.T) {
	var seen []string
	for tok := range Default().Tokens("alpha bravo charlie delta") {
		seen = append(seen, tok)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"alpha", "bravo"}, seen)
}

func TestTokenizer_WithoutScripts(t *testing.T) {
	tok, err := New()
	require.NoError(t, err)

	got := slices.Collect(tok.Tokens("بجلی electricity"))
	assert.Equal(t, []string{"electricity"}, got)
}

func TestNew_InvertedRange(t *testing.T) {
	_, err := New(Script{Name: "bad", Ranges: []RuneRange{{Lo: 0x0700, Hi: 0x0600}}})
	assert.Error(t, err)
}

func TestJaccard(t *testing.T) {
	set := func(tokens ...string) map[string]struct{} {
		m := make(map[string]struct{})
		for _, tok := range tokens {
			m[tok] = struct{}{}
		}
		return m
	}

	assert.InDelta(t, 0.0, Jaccard(set(), set()), 1e-9)
	assert.InDelta(t, 0.0, Jaccard(set("abc"), set()), 1e-9)
	assert.InDelta(t, 1.0, Jaccard(set("abc", "def"), set("def", "abc")), 1e-9)
	assert.InDelta(t, 1.0/3.0, Jaccard(set("abc", "def"), set("def", "ghi")), 1e-9)
}
