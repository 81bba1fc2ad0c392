// Package query compiles search requests into an engine-neutral query
// representation. Engines render or evaluate a Query; they never
// re-interpret the request themselves.
package query

// Index field names shared by every engine.
const (
	FieldName         = "name"
	FieldNameKeyword  = "name.keyword"
	FieldNameSuggest  = "name.suggest"
	FieldDescription  = "description"
	FieldCategory     = "category"
	FieldCategoryName = "categoryName"
	FieldTags         = "tags"
	FieldPrice        = "price"
	FieldRating       = "rating"
	FieldReviewCount  = "reviewCount"
	FieldViewCount    = "viewCount"
	FieldDiscount     = "discount"
	FieldStock        = "stock"
	FieldActive       = "isActive"
	FieldCreatedAt    = "createdAt"
	FieldScore        = "_score"
)

// Clause is one node of a boolean query. The set of implementations is
// closed to this package.
type Clause interface {
	clause()
}

// Fuzziness controls typo tolerance on text matches.
type Fuzziness string

const (
	FuzzyOff  Fuzziness = ""
	FuzzyAuto Fuzziness = "AUTO"
)

// FieldBoost is a field searched by a MultiMatch with its weight.
type FieldBoost struct {
	Field string
	Boost float64
}

// MultiMatch matches Text against several fields. Terms are OR-combined.
type MultiMatch struct {
	Text      string
	Fields    []FieldBoost
	Fuzziness Fuzziness
}

// PhrasePrefix matches Text as a phrase whose last term is a prefix.
type PhrasePrefix struct {
	Field         string
	Text          string
	MaxExpansions int
}

// Term is an exact match on a keyword, boolean or numeric field.
type Term struct {
	Field string
	Value any
}

// Range bounds a numeric field. Nil bounds are open.
type Range struct {
	Field string
	Gt    *float64
	Gte   *float64
	Lt    *float64
	Lte   *float64
}

// Exists matches documents where Field is present.
type Exists struct {
	Field string
}

// Not negates a clause.
type Not struct {
	Clause Clause
}

// AnyOf matches when at least one of its clauses matches.
type AnyOf struct {
	Clauses []Clause
}

func (*MultiMatch) clause()   {}
func (*PhrasePrefix) clause() {}
func (*Term) clause()         {}
func (*Range) clause()        {}
func (*Exists) clause()       {}
func (*Not) clause()          {}
func (*AnyOf) clause()        {}

// SortField orders results by Field. FieldScore sorts by relevance.
type SortField struct {
	Field string
	Desc  bool
}

// Highlight asks the engine to mark matched text in Fields.
type Highlight struct {
	Fields  []string
	PreTag  string
	PostTag string
}

// Facet requests a terms aggregation over a keyword field.
type Facet struct {
	Name  string
	Field string
	Size  int
}

// Query is a compiled search.
//
// Must clauses are required and scored, Should clauses are scored and at
// least MinimumShouldMatch of them must match, Filter clauses are required
// and never affect scoring.
type Query struct {
	Must               []Clause
	Should             []Clause
	MinimumShouldMatch int
	Filter             []Clause
	Sort               []SortField
	From               int
	Size               int
	Scoring            *Scoring
	Highlight          *Highlight
	TrackTotalHits     bool
	Facets             []Facet
}

// Texts returns the query texts of every text clause in Must and Should.
func (q Query) Texts() []string {
	var out []string
	for _, group := range [][]Clause{q.Must, q.Should} {
		for _, c := range group {
			switch t := c.(type) {
			case *MultiMatch:
				out = append(out, t.Text)
			case *PhrasePrefix:
				out = append(out, t.Text)
			}
		}
	}
	return out
}

func float(v float64) *float64 { return &v }
