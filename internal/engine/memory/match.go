package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
)

// document is a JSON-shaped index document.
type document map[string]any

// keywordFields are matched as whole values rather than analyzed text.
var keywordFields = map[string]bool{
	query.FieldTags:     true,
	query.FieldCategory: true,
}

func (d document) lookup(field string) (any, bool) {
	v, ok := d[strings.TrimSuffix(field, ".keyword")]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Number implements query.Document.
func (d document) Number(field string) (float64, bool) {
	v, ok := d.lookup(field)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Keyword implements query.Document.
func (d document) Keyword(field string) (string, bool) {
	v, ok := d.lookup(field)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (d document) values(field string) []string {
	v, ok := d.lookup(field)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (d document) tokens(field string) []string {
	values := d.values(field)
	if keywordFields[field] {
		out := make([]string, 0, len(values))
		for _, v := range values {
			out = append(out, strings.ToLower(v))
		}
		return out
	}
	var out []string
	for _, v := range values {
		out = append(out, tokenize(v)...)
	}
	return out
}

// matches evaluates a clause without scoring.
func matches(doc document, c query.Clause) bool {
	switch t := c.(type) {
	case *query.MultiMatch, *query.PhrasePrefix:
		_, ok := score(doc, c)
		return ok
	case *query.Term:
		v, ok := doc.lookup(t.Field)
		return ok && equalValue(v, t.Value)
	case *query.Range:
		v, ok := doc.Number(t.Field)
		if !ok {
			return false
		}
		return (t.Gt == nil || v > *t.Gt) &&
			(t.Gte == nil || v >= *t.Gte) &&
			(t.Lt == nil || v < *t.Lt) &&
			(t.Lte == nil || v <= *t.Lte)
	case *query.Exists:
		_, ok := doc.lookup(t.Field)
		return ok
	case *query.Not:
		return !matches(doc, t.Clause)
	case *query.AnyOf:
		for _, inner := range t.Clauses {
			if matches(doc, inner) {
				return true
			}
		}
		return false
	}
	return false
}

// score evaluates a scoring clause. Structured clauses score 1 on match.
func score(doc document, c query.Clause) (float64, bool) {
	switch t := c.(type) {
	case *query.MultiMatch:
		return multiMatch(doc, t)
	case *query.PhrasePrefix:
		if phrasePrefix(doc.tokens(t.Field), tokenize(t.Text)) {
			return 1, true
		}
		return 0, false
	default:
		if matches(doc, c) {
			return 1, true
		}
		return 0, false
	}
}

// multiMatch scores best_fields style: the best weighted field wins.
func multiMatch(doc document, m *query.MultiMatch) (float64, bool) {
	terms := tokenize(m.Text)
	whole := strings.ToLower(strings.TrimSpace(m.Text))
	best := 0.0

	for _, fb := range m.Fields {
		fieldTokens := doc.tokens(fb.Field)
		s := 0.0
		for _, term := range terms {
			s += termScore(term, fieldTokens, m.Fuzziness)
		}
		if keywordFields[fb.Field] {
			for _, ft := range fieldTokens {
				if ft == whole {
					s++
				}
			}
		}
		if s*fb.Boost > best {
			best = s * fb.Boost
		}
	}
	return best, best > 0
}

func termScore(term string, fieldTokens []string, fuzz query.Fuzziness) float64 {
	for _, ft := range fieldTokens {
		if ft == term {
			return 1
		}
	}
	if fuzz != query.FuzzyAuto {
		return 0
	}
	maxEdits := autoFuzziness(term)
	if maxEdits == 0 {
		return 0
	}
	for _, ft := range fieldTokens {
		if levenshtein(term, ft) <= maxEdits {
			return 0.5
		}
	}
	return 0
}

func phrasePrefix(fieldTokens, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	last := len(phrase) - 1
	for i := 0; i+last < len(fieldTokens); i++ {
		ok := true
		for j := 0; j < last; j++ {
			if fieldTokens[i+j] != phrase[j] {
				ok = false
				break
			}
		}
		if ok && strings.HasPrefix(fieldTokens[i+last], phrase[last]) {
			return true
		}
	}
	return false
}

func equalValue(v, want any) bool {
	switch w := want.(type) {
	case bool:
		b, ok := v.(bool)
		return ok && b == w
	case string:
		switch t := v.(type) {
		case string:
			return t == w
		case []any:
			for _, e := range t {
				if s, ok := e.(string); ok && s == w {
					return true
				}
			}
		}
		return false
	case float64:
		f, ok := v.(float64)
		return ok && f == w
	case int:
		f, ok := v.(float64)
		return ok && f == float64(w)
	default:
		return fmt.Sprint(v) == fmt.Sprint(want)
	}
}

// sortHits orders hits by the requested sort fields. Documents missing a
// sort field go last regardless of direction; ties fall back to the ID so
// results are deterministic.
func sortHits(hits []scoredHit, fields []query.SortField) {
	if len(fields) == 0 {
		fields = []query.SortField{{Field: query.FieldScore, Desc: true}}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		for _, f := range fields {
			c := compareHits(hits[i], hits[j], f)
			if c != 0 {
				return c < 0
			}
		}
		return hits[i].id < hits[j].id
	})
}

func compareHits(a, b scoredHit, f query.SortField) int {
	if f.Field == query.FieldScore {
		return directed(compareFloat(a.score, b.score), f.Desc)
	}

	av, aok := sortValue(a.ent.doc, f.Field)
	bv, bok := sortValue(b.ent.doc, f.Field)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	}

	if an, ok := av.(float64); ok {
		if bn, ok := bv.(float64); ok {
			return directed(compareFloat(an, bn), f.Desc)
		}
	}
	return directed(strings.Compare(fmt.Sprint(av), fmt.Sprint(bv)), f.Desc)
}

// sortValue returns a float64 for numbers and dates, a string otherwise.
func sortValue(doc document, field string) (any, bool) {
	v, ok := doc.lookup(field)
	if !ok {
		return nil, false
	}
	if s, isString := v.(string); isString {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return float64(ts.UnixNano()), true
		}
	}
	return v, true
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func directed(c int, desc bool) int {
	if desc {
		return -c
	}
	return c
}

// tokenize lowercases s and splits it on anything that is not a letter or
// a digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// autoFuzziness mirrors the AUTO edit distance: exact for one or two
// characters, one edit up to five, two beyond.
func autoFuzziness(term string) int {
	n := len([]rune(term))
	switch {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
