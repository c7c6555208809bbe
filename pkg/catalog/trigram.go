package catalog

import "strings"

// Trigram similarity with pg_trgm semantics: strings are lowercased and
// split into alphanumeric words, each word is padded with two leading and
// one trailing blank before extracting 3-grams, similarity is the Jaccard
// index of the two trigram sets. Keeping the exact padding rules means the
// memory backend ranks identically to a pg_trgm backed store.

func isWordRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 128
}

func trigrams(s string) map[string]struct{} {
	set := map[string]struct{}{}
	word := make([]rune, 0, 16)
	flush := func() {
		if len(word) == 0 {
			return
		}
		padded := append([]rune{' ', ' '}, append(word, ' ')...)
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
		word = word[:0]
	}
	for _, r := range strings.ToLower(s) {
		if isWordRune(r) {
			word = append(word, r)
		} else {
			flush()
		}
	}
	flush()
	return set
}

// Similarity returns a score in [0,1], 1 for identical trigram sets.
func Similarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
