package elasticsearch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
)

func renderJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestRenderSearch_Basic(t *testing.T) {
	q := query.Build(domain.SearchRequest{Query: "phone", Fuzzy: true, HasDiscount: domain.RequireFalse})

	want := `{
	  "query": {"bool": {
	    "must": [{"multi_match": {
	      "query": "phone",
	      "fields": ["name^3", "description^2", "categoryName^1", "tags^1"],
	      "type": "best_fields",
	      "operator": "or",
	      "fuzziness": "AUTO"
	    }}],
	    "filter": [
	      {"bool": {"should": [
	        {"term": {"discount": 0}},
	        {"bool": {"must_not": [{"exists": {"field": "discount"}}]}}
	      ], "minimum_should_match": 1}},
	      {"term": {"isActive": true}}
	    ]
	  }},
	  "from": 0,
	  "size": 12,
	  "track_total_hits": true,
	  "track_scores": true,
	  "sort": [{"createdAt": {"order": "desc"}}],
	  "aggs": {"category": {"terms": {"field": "category", "size": 20}}}
	}`

	assert.JSONEq(t, want, renderJSON(t, renderSearch(q)))
}

func TestRenderSearch_EmptyQueryHasNoMust(t *testing.T) {
	q := query.Build(domain.SearchRequest{SortBy: "name", SortOrder: domain.SortAsc, Page: 2, Limit: 5})
	body := renderSearch(q)

	boolQ := body["query"].(map[string]any)["bool"].(map[string]any)
	assert.NotContains(t, boolQ, "must")
	assert.Equal(t, 5, body["from"])
	assert.Equal(t, 5, body["size"])
	assert.JSONEq(t, `[{"name.keyword": {"order": "asc"}}]`, renderJSON(t, body["sort"]))
}

func TestRenderSearch_Ranges(t *testing.T) {
	lo, hi := 100.0, 500.0
	q := query.Build(domain.SearchRequest{
		Price:       domain.Range{Min: &lo, Max: &hi},
		HasDiscount: domain.RequireTrue,
	})

	filters := renderClauses(q.Filter)
	assert.JSONEq(t, `[
	  {"range": {"price": {"gte": 100, "lte": 500}}},
	  {"range": {"discount": {"gt": 0}}},
	  {"term": {"isActive": true}}
	]`, renderJSON(t, filters))
}

func TestRenderSearch_Advanced(t *testing.T) {
	q := query.BuildAdvanced(domain.SearchRequest{Query: "tv"})
	body := renderSearch(q)

	want := `{"function_score": {
	  "query": {"bool": {
	    "should": [
	      {"multi_match": {"query": "tv", "fields": ["name^3", "description^2", "categoryName^1", "tags^1"], "type": "best_fields", "operator": "or"}},
	      {"match_phrase_prefix": {"name": {"query": "tv", "max_expansions": 50}}}
	    ],
	    "minimum_should_match": 1,
	    "filter": [{"term": {"isActive": true}}]
	  }},
	  "functions": [
	    {"field_value_factor": {"field": "rating", "modifier": "sqrt", "factor": 1, "missing": 0}, "weight": 1},
	    {"field_value_factor": {"field": "viewCount", "modifier": "log1p", "factor": 1, "missing": 0}, "weight": 0.1},
	    {"filter": {"term": {"name.keyword": "tv"}}, "weight": 2}
	  ],
	  "score_mode": "sum",
	  "boost_mode": "sum"
	}}`
	assert.JSONEq(t, want, renderJSON(t, body["query"]))

	assert.JSONEq(t, `{
	  "pre_tags": ["<mark>"],
	  "post_tags": ["</mark>"],
	  "fields": {"name": {}, "description": {}, "categoryName": {}}
	}`, renderJSON(t, body["highlight"]))
	assert.NotContains(t, body, "track_scores")
	assert.Equal(t, true, body["track_total_hits"])
}

func TestRenderCompletion(t *testing.T) {
	assert.JSONEq(t, `{
	  "_source": false,
	  "suggest": {"name_completion": {
	    "prefix": "iph",
	    "completion": {"field": "name.suggest", "size": 10, "skip_duplicates": true}
	  }}
	}`, renderJSON(t, renderCompletion("iph", 10)))
}

func TestCollectSuggestions_Dedup(t *testing.T) {
	var resp esSuggestResponse
	require.NoError(t, json.Unmarshal([]byte(`{"suggest": {"name_completion": [
	  {"options": [
	    {"text": "iPhone 15", "_score": 2},
	    {"text": "iPhone 15", "_score": 1},
	    {"text": "iPhone 14", "_score": 1}
	  ]}
	]}}`), &resp))

	assert.Equal(t, []domain.Suggestion{
		{Text: "iPhone 15", Score: 2},
		{Text: "iPhone 14", Score: 1},
	}, collectSuggestions(resp))

	assert.Empty(t, collectSuggestions(esSuggestResponse{}))
}

func TestToResult(t *testing.T) {
	var resp esSearchResponse
	require.NoError(t, json.Unmarshal([]byte(`{
	  "took": 3,
	  "hits": {"total": {"value": 2}, "hits": [
	    {"_id": "a", "_score": 1.5, "_source": {"id": "a", "name": "A", "discount": 10}, "highlight": {"name": ["<mark>A</mark>"]}},
	    {"_id": "b", "_score": null, "_source": {"name": "B"}}
	  ]},
	  "aggregations": {"category": {"buckets": [{"key": "c1", "doc_count": 2}]}}
	}`), &resp))

	res := toResult(resp)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, int64(3), res.TookMs)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, 1.5, res.Hits[0].Score)
	assert.Equal(t, 10.0, res.Hits[0].Source.Discount)
	assert.Equal(t, []string{"<mark>A</mark>"}, res.Hits[0].Highlight["name"])
	assert.Equal(t, 0.0, res.Hits[1].Score)
	assert.Equal(t, "b", res.Hits[1].Source.ID)
	assert.Equal(t, []domain.FacetBucket{{Key: "c1", Count: 2}}, res.Facets["category"])
}

type numberDoc map[string]float64

func (d numberDoc) Number(field string) (float64, bool) {
	v, ok := d[field]
	return v, ok
}

func (numberDoc) Keyword(string) (string, bool) { return "", false }

// esFieldValueFactor computes a rendered field_value_factor function the way
// Elasticsearch does: weight * modifier(factor * value).
func esFieldValueFactor(t *testing.T, fn map[string]any, doc numberDoc) float64 {
	t.Helper()
	fvf, ok := fn["field_value_factor"].(map[string]any)
	require.True(t, ok)

	v, present := doc[fvf["field"].(string)]
	if !present {
		v = fvf["missing"].(float64)
	}
	factor := float64(fvf["factor"].(int))
	shaped := query.Modifier(fvf["modifier"].(string)).Apply(factor * v)

	weight := 1.0
	if w, ok := fn["weight"].(float64); ok {
		weight = w
	}
	return weight * shaped
}

func TestRenderQuery_FieldValueFactorMatchesEvaluate(t *testing.T) {
	scoring := query.RankingScoring("")
	q := query.Query{Scoring: scoring}
	functions := renderQuery(q)["function_score"].(map[string]any)["functions"].([]any)
	require.Len(t, functions, len(scoring.Contributions))

	docs := []numberDoc{
		{query.FieldRating: 4.5, query.FieldViewCount: 1000},
		{query.FieldRating: 0, query.FieldViewCount: 0},
		{query.FieldRating: 2},
		{},
	}
	for i, c := range scoring.Contributions {
		fn := functions[i].(map[string]any)
		for _, doc := range docs {
			assert.InDelta(t, c.Evaluate(doc), esFieldValueFactor(t, fn, doc), 1e-9,
				"%s on %v", c.Name, doc)
		}
	}

	popularity := functions[1].(map[string]any)
	assert.InDelta(t, 0.3, esFieldValueFactor(t, popularity, numberDoc{query.FieldViewCount: 1000}), 1e-3)
}
