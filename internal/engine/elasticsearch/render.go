package elasticsearch

import (
	"fmt"

	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
)

// renderSearch turns a compiled query into a _search request body.
func renderSearch(q query.Query) map[string]any {
	body := map[string]any{
		"query":            renderQuery(q),
		"from":             q.From,
		"size":             q.Size,
		"track_total_hits": q.TrackTotalHits,
	}

	if len(q.Sort) > 0 {
		body["sort"] = renderSort(q.Sort)
		// Field sorts drop _score unless asked to keep it.
		if q.Sort[0].Field != query.FieldScore {
			body["track_scores"] = true
		}
	}

	if h := q.Highlight; h != nil {
		fields := make(map[string]any, len(h.Fields))
		for _, f := range h.Fields {
			fields[f] = map[string]any{}
		}
		body["highlight"] = map[string]any{
			"pre_tags":  []string{h.PreTag},
			"post_tags": []string{h.PostTag},
			"fields":    fields,
		}
	}

	if len(q.Facets) > 0 {
		aggs := make(map[string]any, len(q.Facets))
		for _, f := range q.Facets {
			aggs[f.Name] = map[string]any{
				"terms": map[string]any{"field": f.Field, "size": f.Size},
			}
		}
		body["aggs"] = aggs
	}

	return body
}

// renderQuery renders the boolean query, wrapped in function_score when the
// query carries scoring contributions.
func renderQuery(q query.Query) map[string]any {
	base := renderBool(q)
	if q.Scoring == nil || len(q.Scoring.Contributions) == 0 {
		return base
	}

	functions := make([]any, 0, len(q.Scoring.Contributions))
	for _, c := range q.Scoring.Contributions {
		if c.Equals != nil {
			functions = append(functions, map[string]any{
				"filter": renderClause(c.Equals),
				"weight": c.Weight,
			})
			continue
		}
		// field_value_factor applies its factor before the modifier, so the
		// factor stays 1 and the contribution factor becomes the weight.
		functions = append(functions, map[string]any{
			"field_value_factor": map[string]any{
				"field":    c.Field,
				"modifier": string(c.Modifier),
				"factor":   1,
				"missing":  c.Missing,
			},
			"weight": c.Factor,
		})
	}

	return map[string]any{
		"function_score": map[string]any{
			"query":      base,
			"functions":  functions,
			"score_mode": "sum",
			"boost_mode": "sum",
		},
	}
}

func renderBool(q query.Query) map[string]any {
	b := map[string]any{}
	if len(q.Must) > 0 {
		b["must"] = renderClauses(q.Must)
	}
	if len(q.Should) > 0 {
		b["should"] = renderClauses(q.Should)
		b["minimum_should_match"] = q.MinimumShouldMatch
	}
	if len(q.Filter) > 0 {
		b["filter"] = renderClauses(q.Filter)
	}
	return map[string]any{"bool": b}
}

func renderClauses(cs []query.Clause) []any {
	out := make([]any, 0, len(cs))
	for _, c := range cs {
		out = append(out, renderClause(c))
	}
	return out
}

func renderClause(c query.Clause) map[string]any {
	switch t := c.(type) {
	case *query.MultiMatch:
		fields := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			fields = append(fields, fmt.Sprintf("%s^%g", f.Field, f.Boost))
		}
		mm := map[string]any{
			"query":    t.Text,
			"fields":   fields,
			"type":     "best_fields",
			"operator": "or",
		}
		if t.Fuzziness != query.FuzzyOff {
			mm["fuzziness"] = string(t.Fuzziness)
		}
		return map[string]any{"multi_match": mm}

	case *query.PhrasePrefix:
		opts := map[string]any{"query": t.Text}
		if t.MaxExpansions > 0 {
			opts["max_expansions"] = t.MaxExpansions
		}
		return map[string]any{"match_phrase_prefix": map[string]any{t.Field: opts}}

	case *query.Term:
		return map[string]any{"term": map[string]any{t.Field: t.Value}}

	case *query.Range:
		bounds := map[string]any{}
		if t.Gt != nil {
			bounds["gt"] = *t.Gt
		}
		if t.Gte != nil {
			bounds["gte"] = *t.Gte
		}
		if t.Lt != nil {
			bounds["lt"] = *t.Lt
		}
		if t.Lte != nil {
			bounds["lte"] = *t.Lte
		}
		return map[string]any{"range": map[string]any{t.Field: bounds}}

	case *query.Exists:
		return map[string]any{"exists": map[string]any{"field": t.Field}}

	case *query.Not:
		return map[string]any{"bool": map[string]any{"must_not": []any{renderClause(t.Clause)}}}

	case *query.AnyOf:
		return map[string]any{"bool": map[string]any{
			"should":               renderClauses(t.Clauses),
			"minimum_should_match": 1,
		}}
	}
	return map[string]any{"match_none": map[string]any{}}
}

func renderSort(fields []query.SortField) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		order := "asc"
		if f.Desc {
			order = "desc"
		}
		out = append(out, map[string]any{f.Field: map[string]any{"order": order}})
	}
	return out
}

// renderCompletion builds a completion-suggester request on the dedicated
// completion subfield of the product name.
func renderCompletion(prefix string, size int) map[string]any {
	return map[string]any{
		"_source": false,
		"suggest": map[string]any{
			completionSuggestName: map[string]any{
				"prefix": prefix,
				"completion": map[string]any{
					"field":           query.FieldNameSuggest,
					"size":            size,
					"skip_duplicates": true,
				},
			},
		},
	}
}
