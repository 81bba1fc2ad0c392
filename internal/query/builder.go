package query

import "github.com/ThinhVo0/BT4-CNPMM/internal/domain"

// Text field weights of the relevance clause.
const (
	BoostName         = 3.0
	BoostDescription  = 2.0
	BoostCategoryName = 1.0
	BoostTags         = 1.0
)

// CategoryFacetSize is the number of category buckets requested per search.
const CategoryFacetSize = 20

var sortFields = map[string]string{
	domain.SortCreatedAt:   FieldCreatedAt,
	domain.SortPrice:       FieldPrice,
	domain.SortName:        FieldNameKeyword,
	domain.SortRating:      FieldRating,
	domain.SortReviewCount: FieldReviewCount,
	domain.SortViewCount:   FieldViewCount,
	domain.SortDiscount:    FieldDiscount,
}

// ResolveSortField maps a requested sort name onto an index field. Names
// outside the whitelist resolve to the creation timestamp.
func ResolveSortField(name string) string {
	if f, ok := sortFields[name]; ok {
		return f
	}
	return FieldCreatedAt
}

// Build compiles the basic search: a required text clause when query text
// is present, the filter set and the requested sort.
func Build(req domain.SearchRequest) Query {
	req = req.Normalize()

	q := Query{
		Filter:         Filters(req),
		Sort:           []SortField{{Field: ResolveSortField(req.SortBy), Desc: req.SortOrder == domain.SortDesc}},
		From:           req.Offset(),
		Size:           req.Limit,
		TrackTotalHits: true,
		Facets:         []Facet{{Name: FieldCategory, Field: FieldCategory, Size: CategoryFacetSize}},
	}
	if req.Query != "" {
		q.Must = []Clause{textMatch(req)}
	}
	return q
}

func textMatch(req domain.SearchRequest) *MultiMatch {
	m := &MultiMatch{
		Text: req.Query,
		Fields: []FieldBoost{
			{Field: FieldName, Boost: BoostName},
			{Field: FieldDescription, Boost: BoostDescription},
			{Field: FieldCategoryName, Boost: BoostCategoryName},
			{Field: FieldTags, Boost: BoostTags},
		},
	}
	if req.Fuzzy {
		m.Fuzziness = FuzzyAuto
	}
	return m
}

// Filters returns the non-scoring clauses of a request. The active-only
// clause is always the last element.
func Filters(req domain.SearchRequest) []Clause {
	var filters []Clause

	switch len(req.Categories) {
	case 0:
	case 1:
		filters = append(filters, &Term{Field: FieldCategory, Value: req.Categories[0]})
	default:
		anyOf := &AnyOf{}
		for _, c := range req.Categories {
			anyOf.Clauses = append(anyOf.Clauses, &Term{Field: FieldCategory, Value: c})
		}
		filters = append(filters, anyOf)
	}

	if r := inclusive(FieldPrice, req.Price); r != nil {
		filters = append(filters, r)
	}
	if r := inclusive(FieldRating, req.Rating); r != nil {
		filters = append(filters, r)
	}

	switch req.HasDiscount {
	case domain.RequireTrue:
		filters = append(filters, &Range{Field: FieldDiscount, Gt: float(0)})
	case domain.RequireFalse:
		filters = append(filters, &AnyOf{Clauses: []Clause{
			&Term{Field: FieldDiscount, Value: 0.0},
			&Not{Clause: &Exists{Field: FieldDiscount}},
		}})
	}
	if r := inclusive(FieldDiscount, req.Discount); r != nil {
		filters = append(filters, r)
	}

	switch req.InStock {
	case domain.RequireTrue:
		filters = append(filters, &Range{Field: FieldStock, Gt: float(0)})
	case domain.RequireFalse:
		filters = append(filters, &Range{Field: FieldStock, Lte: float(0)})
	}

	return append(filters, ActiveOnly())
}

// ActiveOnly is the clause every compiled query carries.
func ActiveOnly() Clause {
	return &Term{Field: FieldActive, Value: true}
}

func inclusive(field string, r domain.Range) *Range {
	if r.IsZero() {
		return nil
	}
	out := &Range{Field: field}
	if r.Min != nil {
		out.Gte = float(*r.Min)
	}
	if r.Max != nil {
		out.Lte = float(*r.Max)
	}
	return out
}
