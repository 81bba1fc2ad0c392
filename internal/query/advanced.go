package query

import "github.com/ThinhVo0/BT4-CNPMM/internal/domain"

// Ranking constants of the advanced mode.
const (
	RatingFactor     = 1.0
	ViewCountFactor  = 0.1
	ExactMatchWeight = 2.0

	HighlightPreTag  = "<mark>"
	HighlightPostTag = "</mark>"

	phrasePrefixExpansions = 50
)

// BuildAdvanced compiles the ranked search mode. Text matching becomes two
// optional clauses, the score is augmented by rating, popularity and an
// exact-name bonus, and matched text is highlighted.
func BuildAdvanced(req domain.SearchRequest) Query {
	req = req.Normalize()

	q := Query{
		Filter:         Filters(req),
		Sort:           advancedSort(req),
		From:           req.Offset(),
		Size:           req.Limit,
		TrackTotalHits: true,
		Scoring:        RankingScoring(req.Query),
		Highlight: &Highlight{
			Fields:  []string{FieldName, FieldDescription, FieldCategoryName},
			PreTag:  HighlightPreTag,
			PostTag: HighlightPostTag,
		},
		Facets: []Facet{{Name: FieldCategory, Field: FieldCategory, Size: CategoryFacetSize}},
	}

	if req.Query != "" {
		q.Should = []Clause{
			textMatch(req),
			&PhrasePrefix{Field: FieldName, Text: req.Query, MaxExpansions: phrasePrefixExpansions},
		}
		q.MinimumShouldMatch = 1
	}
	return q
}

// RankingScoring returns the additive contributions of the advanced mode.
// The exact-name bonus is only present when there is query text to match.
func RankingScoring(text string) *Scoring {
	s := &Scoring{Contributions: []Contribution{
		{Name: "rating", Field: FieldRating, Modifier: ModifierSqrt, Factor: RatingFactor},
		{Name: "popularity", Field: FieldViewCount, Modifier: ModifierLog1p, Factor: ViewCountFactor},
	}}
	if text != "" {
		s.Contributions = append(s.Contributions, Contribution{
			Name:   "exact_name",
			Equals: &Term{Field: FieldNameKeyword, Value: text},
			Weight: ExactMatchWeight,
		})
	}
	return s
}

// advancedSort orders by score unless a whitelisted field was requested.
func advancedSort(req domain.SearchRequest) []SortField {
	if req.SortBy == domain.SortRelevance || (req.SortBy == "" && req.Query != "") {
		return []SortField{{Field: FieldScore, Desc: true}, {Field: FieldCreatedAt, Desc: true}}
	}
	return []SortField{{Field: ResolveSortField(req.SortBy), Desc: req.SortOrder == domain.SortDesc}}
}

// SuggestPrefix compiles the phrase-prefix lookup used by autocomplete,
// optionally scoped to one category.
func SuggestPrefix(prefix string, size int, category string) Query {
	q := Query{
		Must: []Clause{&PhrasePrefix{Field: FieldName, Text: prefix, MaxExpansions: phrasePrefixExpansions}},
		Size: size,
	}
	if category != "" {
		q.Filter = append(q.Filter, &Term{Field: FieldCategory, Value: category})
	}
	q.Filter = append(q.Filter, ActiveOnly())
	return q
}
