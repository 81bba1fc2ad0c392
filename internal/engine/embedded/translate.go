package embedded

import (
	"fmt"
	"math"
	"strings"

	"github.com/blevesearch/bleve/v2/search"
	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
)

// translate converts a compiled query into a bleve query. Filters become
// required clauses; bleve cannot exclude them from scoring.
func translate(q query.Query) (bq.Query, error) {
	if len(q.Must) == 0 && len(q.Should) == 0 && len(q.Filter) == 0 {
		return bq.NewMatchAllQuery(), nil
	}

	must, err := translateAll(append(append([]query.Clause{}, q.Must...), q.Filter...))
	if err != nil {
		return nil, err
	}
	should, err := translateAll(q.Should)
	if err != nil {
		return nil, err
	}

	b := bq.NewBooleanQuery(nil, nil, nil)
	if len(must) > 0 {
		b.AddMust(must...)
	}
	if len(should) > 0 {
		b.AddShould(should...)
		b.SetMinShould(float64(q.MinimumShouldMatch))
	}
	return b, nil
}

func translateAll(clauses []query.Clause) ([]bq.Query, error) {
	out := make([]bq.Query, 0, len(clauses))
	for _, c := range clauses {
		t, err := translateClause(c)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func translateClause(c query.Clause) (bq.Query, error) {
	switch t := c.(type) {
	case *query.MultiMatch:
		return multiMatch(t), nil
	case *query.PhrasePrefix:
		return phrasePrefix(t), nil
	case *query.Term:
		return term(t)
	case *query.Range:
		return numericRange(t), nil
	case *query.Exists:
		// Every field the builder tests for presence is numeric.
		lo, hi := -math.MaxFloat64, math.MaxFloat64
		inclusive := true
		r := bq.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		r.SetField(indexField(t.Field))
		return r, nil
	case *query.Not:
		inner, err := translateClause(t.Clause)
		if err != nil {
			return nil, err
		}
		return bq.NewBooleanQuery([]bq.Query{bq.NewMatchAllQuery()}, nil, []bq.Query{inner}), nil
	case *query.AnyOf:
		inner, err := translateAll(t.Clauses)
		if err != nil {
			return nil, err
		}
		return bq.NewDisjunctionQuery(inner), nil
	}
	return nil, fmt.Errorf("unsupported clause %T", c)
}

func multiMatch(m *query.MultiMatch) bq.Query {
	fields := make([]bq.Query, 0, len(m.Fields))
	for _, fb := range m.Fields {
		mq := bq.NewMatchQuery(m.Text)
		mq.SetField(indexField(fb.Field))
		mq.SetBoost(fb.Boost)
		if m.Fuzziness == query.FuzzyAuto {
			mq.SetFuzziness(1)
		}
		fields = append(fields, mq)
	}
	return bq.NewDisjunctionQuery(fields)
}

// phrasePrefix matches all leading words as a phrase and the last word as
// a prefix.
func phrasePrefix(p *query.PhrasePrefix) bq.Query {
	words := strings.Fields(strings.ToLower(p.Text))
	if len(words) == 0 {
		return bq.NewMatchNoneQuery()
	}
	field := indexField(p.Field)

	last := bq.NewPrefixQuery(words[len(words)-1])
	last.SetField(field)
	if len(words) == 1 {
		return last
	}

	phrase := bq.NewMatchPhraseQuery(strings.Join(words[:len(words)-1], " "))
	phrase.SetField(field)
	return bq.NewConjunctionQuery([]bq.Query{phrase, last})
}

func term(t *query.Term) (bq.Query, error) {
	field := indexField(t.Field)
	switch v := t.Value.(type) {
	case bool:
		q := bq.NewBoolFieldQuery(v)
		q.SetField(field)
		return q, nil
	case string:
		q := bq.NewTermQuery(v)
		q.SetField(field)
		return q, nil
	case float64:
		return numericEquals(field, v), nil
	case int:
		return numericEquals(field, float64(v)), nil
	}
	return nil, fmt.Errorf("unsupported term value %T on %s", t.Value, t.Field)
}

func numericEquals(field string, v float64) bq.Query {
	inclusive := true
	q := bq.NewNumericRangeInclusiveQuery(&v, &v, &inclusive, &inclusive)
	q.SetField(field)
	return q
}

func numericRange(r *query.Range) bq.Query {
	var min, max *float64
	var minIncl, maxIncl bool
	switch {
	case r.Gte != nil:
		min, minIncl = r.Gte, true
	case r.Gt != nil:
		min = r.Gt
	}
	switch {
	case r.Lte != nil:
		max, maxIncl = r.Lte, true
	case r.Lt != nil:
		max = r.Lt
	}
	q := bq.NewNumericRangeInclusiveQuery(min, max, &minIncl, &maxIncl)
	q.SetField(indexField(r.Field))
	return q
}

// sortOrder converts sort fields; documents lacking a value sort last and
// the document id breaks ties.
func sortOrder(fields []query.SortField) search.SortOrder {
	order := make(search.SortOrder, 0, len(fields)+1)
	for _, f := range fields {
		if f.Field == query.FieldScore {
			order = append(order, &search.SortScore{Desc: f.Desc})
			continue
		}
		order = append(order, &search.SortField{
			Field:   indexField(f.Field),
			Desc:    f.Desc,
			Type:    sortType(f.Field),
			Missing: search.SortFieldMissingLast,
		})
	}
	return append(order, &search.SortDocID{})
}

func sortType(field string) search.SortFieldType {
	switch field {
	case query.FieldNameKeyword, query.FieldName, query.FieldCategory:
		return search.SortFieldAsString
	case query.FieldCreatedAt:
		return search.SortFieldAsDate
	}
	return search.SortFieldAsNumber
}
