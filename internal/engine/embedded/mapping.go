package embedded

import (
	"encoding/json"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
)

const (
	fieldNameExact = "nameKeyword"
	fieldSource    = "source"
)

// buildIndexMapping mirrors the Elasticsearch mapping. The exact name lives
// in its own keyword field because bleve has no multi-fields, and the full
// projection is kept in a stored, unindexed source field.
func buildIndexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	keyword := bleve.NewKeywordFieldMapping()
	numeric := bleve.NewNumericFieldMapping()
	boolean := bleve.NewBooleanFieldMapping()
	datetime := bleve.NewDateTimeFieldMapping()

	source := bleve.NewTextFieldMapping()
	source.Index = false
	source.Store = true
	source.IncludeInAll = false
	source.IncludeTermVectors = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(query.FieldName, text)
	doc.AddFieldMappingsAt(fieldNameExact, keyword)
	doc.AddFieldMappingsAt(query.FieldDescription, text)
	doc.AddFieldMappingsAt(query.FieldCategoryName, text)
	doc.AddFieldMappingsAt(query.FieldCategory, keyword)
	doc.AddFieldMappingsAt(query.FieldTags, keyword)
	for _, f := range []string{
		query.FieldPrice, query.FieldRating, query.FieldReviewCount,
		query.FieldViewCount, query.FieldDiscount, query.FieldStock,
	} {
		doc.AddFieldMappingsAt(f, numeric)
	}
	doc.AddFieldMappingsAt(query.FieldActive, boolean)
	doc.AddFieldMappingsAt(query.FieldCreatedAt, datetime)
	doc.AddFieldMappingsAt(fieldSource, source)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// toDocument flattens a product into the field layout of the index.
func toDocument(p *domain.IndexedProduct) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode source: %w", err)
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		query.FieldName:         p.Name,
		fieldNameExact:          p.Name,
		query.FieldDescription:  p.Description,
		query.FieldCategoryName: p.CategoryName,
		query.FieldCategory:     p.Category,
		query.FieldTags:         tags,
		query.FieldPrice:        p.Price,
		query.FieldRating:       p.Rating,
		query.FieldReviewCount:  float64(p.ReviewCount),
		query.FieldViewCount:    float64(p.ViewCount),
		query.FieldDiscount:     p.Discount,
		query.FieldStock:        float64(p.Stock),
		query.FieldActive:       p.IsActive,
		query.FieldCreatedAt:    p.CreatedAt,
		fieldSource:             string(raw),
	}, nil
}

// indexField maps a query field onto the bleve field that holds it.
func indexField(field string) string {
	if field == query.FieldNameKeyword {
		return fieldNameExact
	}
	return field
}
