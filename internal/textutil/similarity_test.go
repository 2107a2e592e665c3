package textutil_test

import (
	"math"
	"reflect"
	"testing"

	"matport/internal/textutil"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"material name", "M_Stone_Wall_02_a", []string{"m", "stone", "wall", "02", "a"}},
		{"windows path", `N:\GR\data\Material\mtd\map\M_Floor.spx`, []string{"n", "gr", "data", "material", "mtd", "map", "m", "floor", "spx"}},
		{"mixed case collapses", "AlbedoMap_ALBEDOMAP", []string{"albedomap", "albedomap"}},
		{"empty", "", nil},
		{"separators only", "__..__", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := textutil.Tokenize(tc.in)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestJaccard(t *testing.T) {
	set := func(tokens ...string) map[string]struct{} {
		s := make(map[string]struct{}, len(tokens))
		for _, token := range tokens {
			s[token] = struct{}{}
		}
		return s
	}

	cases := []struct {
		name string
		a, b map[string]struct{}
		want float64
	}{
		{"both empty", set(), set(), 1},
		{"one empty", set("a"), set(), 0},
		{"identical", set("a", "b"), set("b", "a"), 1},
		{"disjoint", set("a"), set("b"), 0},
		{"half overlap", set("a", "b", "c"), set("b", "c", "d"), 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := textutil.Jaccard(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("Jaccard = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestJaccardIsSymmetric(t *testing.T) {
	a := textutil.TokenSet("M_Stone_Wall_02")
	b := textutil.TokenSet("M_Stone_Floor_01")
	if textutil.Jaccard(a, b) != textutil.Jaccard(b, a) {
		t.Fatal("Jaccard should not depend on argument order")
	}
}

func TestLevenshteinSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"both empty", "", "", 1},
		{"identical", "M_Stone.spx", "M_Stone.spx", 1},
		{"case insensitive", "M_STONE.SPX", "m_stone.spx", 1},
		{"one edit", "stone", "stine", 0.8},
		{"nothing shared", "ab", "cd", 0},
		{"against empty", "abcd", "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := textutil.LevenshteinSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("LevenshteinSimilarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestLevenshteinSimilarityBounds(t *testing.T) {
	pairs := [][2]string{
		{`N:\GR\data\Material\mtd\map\M_Floor.spx`, `N:\GR\data\Material\mtd\map\M_Wall.spx`},
		{"short", "a considerably longer string than the other"},
	}
	for _, pair := range pairs {
		got := textutil.LevenshteinSimilarity(pair[0], pair[1])
		if got < 0 || got > 1 {
			t.Fatalf("similarity %v out of [0, 1] for %q vs %q", got, pair[0], pair[1])
		}
	}
}
