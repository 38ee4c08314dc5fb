package match

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "if": {},
	"as": {}, "at": {}, "by": {}, "for": {}, "in": {}, "to": {}, "with": {},
	"of": {}, "on": {}, "is": {}, "are": {}, "was": {}, "its": {}, "from": {},
}

// normalize lower-cases s and replaces everything except letters with spaces.
func normalize(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	}), " ")
}

// Tokens returns the distinct content words of s: letters only, stopwords
// removed, words of at most two letters dropped.
func Tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(normalize(s)) {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// Jaccard returns |a∩b| / |a∪b|, or 0 when both are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// KeywordOverlap returns the fraction of keywords that occur in text as whole
// words or phrases. A trailing plural "s" on the text side still matches.
func KeywordOverlap(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	hay := " " + normalize(text) + " "
	hits, total := 0, 0
	for _, kw := range keywords {
		k := normalize(kw)
		if k == "" {
			continue
		}
		total++
		if strings.Contains(hay, " "+k+" ") || strings.Contains(hay, " "+k+"s ") {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
