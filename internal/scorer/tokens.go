package scorer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const minTokenLen = 3

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "our": true,
	"are": true, "was": true, "were": true, "that": true, "this": true,
	"from": true, "have": true, "has": true, "had": true, "not": true,
	"but": true, "can": true, "into": true, "about": true, "their": true,
	"they": true, "them": true, "its": true, "how": true, "what": true,
	"who": true, "all": true, "more": true, "than": true, "very": true,
}

// foldText lowercases s and strips diacritics.
func foldText(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// tokenSet splits texts into a set of normalized content words.
func tokenSet(texts ...string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.FieldsFunc(foldText(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, f := range fields {
			if len(f) < minTokenLen || stopwords[f] {
				continue
			}
			set[f] = struct{}{}
		}
	}
	return set
}

// jaccard returns |a∩b| / |a∪b| scaled to [0,100]. Either set empty scores 0.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union) * 100
}

// normalizeKey canonicalizes an industry identifier.
func normalizeKey(s string) string {
	s = foldText(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/'
	}), "_")
}
