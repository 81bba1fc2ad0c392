package memory

import (
	"strings"
	"unicode"

	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
)

func highlightTerms(q query.Query) []string {
	var terms []string
	for _, text := range q.Texts() {
		terms = append(terms, tokenize(text)...)
	}
	return terms
}

// highlight wraps every word of the requested fields that equals or starts
// with a query term. Fields without a marked word get no entry.
func highlight(doc document, h *query.Highlight, terms []string) map[string][]string {
	if len(terms) == 0 {
		return nil
	}

	out := make(map[string][]string)
	for _, field := range h.Fields {
		text, ok := doc.Keyword(field)
		if !ok || text == "" {
			continue
		}
		if marked, hit := markWords(text, terms, h.PreTag, h.PostTag); hit {
			out[field] = []string{marked}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func markWords(text string, terms []string, pre, post string) (string, bool) {
	var b strings.Builder
	var word []rune
	hit := false

	flush := func() {
		if len(word) == 0 {
			return
		}
		w := string(word)
		if wordMatches(strings.ToLower(w), terms) {
			b.WriteString(pre)
			b.WriteString(w)
			b.WriteString(post)
			hit = true
		} else {
			b.WriteString(w)
		}
		word = word[:0]
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word = append(word, r)
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()

	return b.String(), hit
}

func wordMatches(word string, terms []string) bool {
	for _, t := range terms {
		if word == t || (len(t) >= 2 && strings.HasPrefix(word, t)) {
			return true
		}
	}
	return false
}
