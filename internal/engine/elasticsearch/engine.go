package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine"
	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/httpclient"
)

// Engine is an Elasticsearch-backed implementation of the SearchEngine interface.
type Engine struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

type esHit struct {
	ID        string                `json:"_id"`
	Score     *float64              `json:"_score"`
	Source    domain.IndexedProduct `json:"_source"`
	Highlight map[string][]string   `json:"highlight"`
}

// esSearchResponse is the structure used to decode Elasticsearch search responses.
type esSearchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []esHit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Buckets []struct {
			Key      string `json:"key"`
			DocCount int    `json:"doc_count"`
		} `json:"buckets"`
	} `json:"aggregations"`
}

// esBulkResponse is the structure used to decode Elasticsearch bulk responses.
type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

// esErrorResponse is used to decode Elasticsearch error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates a new Elasticsearch engine connected to the given URL.
// It ensures the products index exists, creating it if necessary.
// If indexName is empty, DefaultIndexName is used.
func New(esURL string, indexName string, logger *slog.Logger) (*Engine, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	hc := httpclient.DefaultConfig()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     strings.Split(esURL, ","),
		Transport:     httpclient.NewTransport(hc),
		MaxRetries:    hc.MaxRetries,
		RetryOnStatus: httpclient.RetryStatuses,
		RetryBackoff:  httpclient.Backoff(hc),
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	e := &Engine{
		client:    client,
		indexName: indexName,
		logger:    logger,
	}

	if err := e.ensureIndex(); err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to ensure index: %w", err)
	}

	return e, nil
}

// IndexName returns the name of the products index.
func (e *Engine) IndexName() string {
	return e.indexName
}

// finish closes res after decoding its body into out, when out is non-nil.
// Transport failures and 5xx answers wrap engine.ErrUnavailable; a 404 is
// tolerated when allowMissing is set.
func finish(op string, res *esapi.Response, err error, out any, allowMissing bool) error {
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, engine.ErrUnavailable, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		if allowMissing && res.StatusCode == http.StatusNotFound {
			return nil
		}
		return responseError(op, res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// Ping checks whether the Elasticsearch cluster is reachable. Any failure
// reports the engine as unavailable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err := finish("elasticsearch ping", res, err, nil, false); err != nil {
		if errors.Is(err, engine.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", engine.ErrUnavailable, err)
	}
	return nil
}

// ensureIndex creates the products index with its mapping unless it exists.
func (e *Engine) ensureIndex() error {
	res, err := e.client.Indices.Exists([]string{e.indexName})
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	_ = res.Body.Close()

	log := e.logger.With(slog.String("index", e.indexName))
	if res.StatusCode == http.StatusOK {
		log.Info("elasticsearch index already exists")
		return nil
	}

	res, err = e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithBody(strings.NewReader(buildIndexMapping())),
	)
	if err := finish("create index", res, err, nil, false); err != nil {
		return err
	}
	log.Info("elasticsearch index created")
	return nil
}

// Index adds or replaces a single product document.
func (e *Engine) Index(ctx context.Context, product *domain.IndexedProduct) error {
	doc, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal product: %w", err)
	}

	res, err := e.client.Index(e.indexName, bytes.NewReader(doc),
		e.client.Index.WithDocumentID(product.ID),
		e.client.Index.WithRefresh("true"),
		e.client.Index.WithContext(ctx),
	)
	if err := finish("elasticsearch index", res, err, nil, false); err != nil {
		return err
	}
	e.logger.DebugContext(ctx, "indexed product", slog.String("id", product.ID), slog.String("name", product.Name))
	return nil
}

// Delete removes a product document. A missing document is not an error.
func (e *Engine) Delete(ctx context.Context, id string) error {
	res, err := e.client.Delete(e.indexName, id,
		e.client.Delete.WithRefresh("true"),
		e.client.Delete.WithContext(ctx),
	)
	if err := finish("elasticsearch delete", res, err, nil, true); err != nil {
		return err
	}
	e.logger.DebugContext(ctx, "deleted product", slog.String("id", id))
	return nil
}

// searchInto posts body to the _search endpoint and decodes the answer into out.
func (e *Engine) searchInto(ctx context.Context, op string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal query: %w", op, err)
	}
	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(payload)),
		e.client.Search.WithContext(ctx),
	)
	return finish(op, res, err, out, false)
}

// Search executes a compiled query.
func (e *Engine) Search(ctx context.Context, q query.Query) (*engine.Result, error) {
	var resp esSearchResponse
	if err := e.searchInto(ctx, "elasticsearch search", renderSearch(q), &resp); err != nil {
		return nil, err
	}
	return toResult(resp), nil
}

func toResult(resp esSearchResponse) *engine.Result {
	out := &engine.Result{
		Hits:   make([]engine.Hit, 0, len(resp.Hits.Hits)),
		Total:  resp.Hits.Total.Value,
		TookMs: int64(resp.Took),
	}
	for _, h := range resp.Hits.Hits {
		hit := engine.Hit{ID: h.ID, Source: h.Source, Highlight: h.Highlight}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		if hit.Source.ID == "" {
			hit.Source.ID = h.ID
		}
		out.Hits = append(out.Hits, hit)
	}

	if len(resp.Aggregations) == 0 {
		return out
	}
	out.Facets = make(map[string][]domain.FacetBucket, len(resp.Aggregations))
	for name, agg := range resp.Aggregations {
		buckets := make([]domain.FacetBucket, len(agg.Buckets))
		for i, b := range agg.Buckets {
			buckets[i] = domain.FacetBucket{Key: b.Key, Count: b.DocCount}
		}
		out.Facets[name] = buckets
	}
	return out
}

// BulkIndex adds or replaces products through the NDJSON bulk API. Per-item
// failures are collected into one error.
func (e *Engine) BulkIndex(ctx context.Context, products []domain.IndexedProduct) error {
	if len(products) == 0 {
		return nil
	}

	var ndjson bytes.Buffer
	enc := json.NewEncoder(&ndjson)
	for i := range products {
		meta := map[string]map[string]string{"index": {"_index": e.indexName, "_id": products[i].ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode action: %w", err)
		}
		if err := enc.Encode(&products[i]); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(&ndjson,
		e.client.Bulk.WithIndex(e.indexName),
		e.client.Bulk.WithRefresh("true"),
		e.client.Bulk.WithContext(ctx),
	)
	var resp esBulkResponse
	if err := finish("elasticsearch bulk index", res, err, &resp, false); err != nil {
		return err
	}
	if failed := resp.failures(); len(failed) > 0 {
		return fmt.Errorf("elasticsearch bulk index: %d of %d items failed: %s",
			len(failed), len(products), strings.Join(failed, "; "))
	}

	e.logger.InfoContext(ctx, "bulk indexed products", slog.Int("count", len(products)))
	return nil
}

func (r esBulkResponse) failures() []string {
	if !r.Errors {
		return nil
	}
	var out []string
	for _, item := range r.Items {
		if item.Index.Error.Type != "" {
			out = append(out, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
		}
	}
	return out
}

// Count returns the number of documents in the products index.
func (e *Engine) Count(ctx context.Context) (int, error) {
	res, err := e.client.Count(
		e.client.Count.WithIndex(e.indexName),
		e.client.Count.WithContext(ctx),
	)
	var resp struct {
		Count int `json:"count"`
	}
	if err := finish("elasticsearch count", res, err, &resp, false); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// DeleteIndex drops the whole products index. A missing index is not an error.
func (e *Engine) DeleteIndex(ctx context.Context) error {
	res, err := e.client.Indices.Delete([]string{e.indexName}, e.client.Indices.Delete.WithContext(ctx))
	if err := finish("elasticsearch delete index", res, err, nil, true); err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "elasticsearch index deleted", slog.String("index", e.indexName))
	return nil
}

// responseError reads the error body of res. Server-side failures wrap
// engine.ErrUnavailable.
func responseError(op string, res *esapi.Response) error {
	detail := "unexpected status " + res.Status()
	var body esErrorResponse
	if json.NewDecoder(res.Body).Decode(&body) == nil && body.Error.Type != "" {
		detail = body.Error.Type + ": " + body.Error.Reason
	}
	if res.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s: %w: %s", op, engine.ErrUnavailable, detail)
	}
	return fmt.Errorf("%s: %s", op, detail)
}
