package elasticsearch

// DefaultIndexName is the default Elasticsearch index used for product documents.
const DefaultIndexName = "products"

// buildIndexMapping returns the full JSON mapping for the products index.
// The name field carries three forms: analyzed text, an exact keyword for
// sorting and exact-match boosts, and a completion subfield for autocomplete.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "storefront_text": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "asciifolding"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":            { "type": "keyword" },
      "name": {
        "type": "text",
        "analyzer": "storefront_text",
        "fields": {
          "keyword": { "type": "keyword", "ignore_above": 256 },
          "suggest": { "type": "completion", "analyzer": "simple" }
        }
      },
      "description":   { "type": "text", "analyzer": "storefront_text" },
      "price":         { "type": "double" },
      "originalPrice": { "type": "double" },
      "images":        { "type": "keyword", "index": false },
      "category":      { "type": "keyword" },
      "categoryName":  { "type": "text", "analyzer": "storefront_text" },
      "stock":         { "type": "integer" },
      "isActive":      { "type": "boolean" },
      "tags":          { "type": "keyword" },
      "rating":        { "type": "float" },
      "reviewCount":   { "type": "integer" },
      "viewCount":     { "type": "integer" },
      "discount":      { "type": "float" },
      "createdAt":     { "type": "date" },
      "updatedAt":     { "type": "date" }
    }
  }
}`
}
