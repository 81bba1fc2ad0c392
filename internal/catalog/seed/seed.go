// Package seed generates a deterministic demo catalog and loads it into a
// writable store.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/slug"
)

// Writer upserts catalog rows.
type Writer interface {
	UpsertCategories(ctx context.Context, categories []domain.Category) error
	UpsertProducts(ctx context.Context, products []domain.Product) error
}

// Options controls generation.
type Options struct {
	Products  int
	Seed      uint64
	BatchSize int
	// Now anchors created_at timestamps. Zero means time.Now.
	Now time.Time
}

const (
	defaultBatchSize = 500
	maxIDLength      = 64
)

type group struct {
	name   string
	weight float64
	types  []string
	// priceMin and priceMax bound the list price.
	priceMin, priceMax float64
}

var groups = []group{
	{"Phones", 0.20, []string{"Smartphone", "Flip Phone", "Rugged Phone", "Phone Case", "Charger"}, 15, 1500},
	{"Laptops", 0.15, []string{"Ultrabook", "Gaming Laptop", "Chromebook", "Laptop Sleeve", "Docking Station"}, 25, 3200},
	{"Audio", 0.15, []string{"Headphones", "Earbuds", "Bluetooth Speaker", "Soundbar", "Microphone"}, 10, 900},
	{"Home & Kitchen", 0.15, []string{"Blender", "Coffee Maker", "Air Fryer", "Kettle", "Rice Cooker"}, 12, 600},
	{"Fashion", 0.20, []string{"Jacket", "Sneakers", "Backpack", "Dress", "T-Shirt", "Watch"}, 8, 450},
	{"Sports & Outdoors", 0.10, []string{"Yoga Mat", "Tent", "Running Shoes", "Water Bottle", "Bicycle Helmet"}, 6, 700},
	{"Books", 0.05, []string{"Novel", "Cookbook", "Travel Guide", "Comic", "Programming Book"}, 4, 80},
}

var adjectives = []string{
	"Classic", "Compact", "Premium", "Wireless", "Portable", "Ultra Slim",
	"Pro", "Lite", "Eco", "Smart", "Vintage", "Essential",
}

var colors = []string{
	"Black", "White", "Navy", "Silver", "Red", "Olive", "Graphite",
	"Rose", "Sand", "Teal", "Burgundy", "Sky Blue",
}

var descriptions = []string{
	"A dependable %s built for everyday use.",
	"This %s pairs a clean design with durable materials.",
	"Our best selling %s, refreshed for this season.",
	"Lightweight %s that is easy to carry and easy to clean.",
	"A %s chosen by reviewers for its value.",
}

// Categories returns the demo categories. Their ids are slugs of their names.
func Categories(now time.Time) []domain.Category {
	out := make([]domain.Category, 0, len(groups))
	for _, g := range groups {
		out = append(out, domain.Category{
			ID:          slug.Generate(g.name),
			Name:        g.name,
			Description: g.name + " for every budget",
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return out
}

// Generate builds the demo catalog. The same options always produce the
// same products.
func Generate(opts Options) ([]domain.Category, []domain.Product) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	categories := Categories(now)

	products := make([]domain.Product, 0, max(opts.Products, 0))
	remaining := opts.Products
	for gi, g := range groups {
		n := int(float64(opts.Products) * g.weight)
		if gi == len(groups)-1 {
			n = remaining
		}
		remaining -= n
		for range n {
			products = append(products, product(rng, g, categories[gi].ID, len(products), now))
		}
	}
	return categories, products
}

func product(rng *rand.Rand, g group, categoryID string, index int, now time.Time) domain.Product {
	kind := g.types[rng.IntN(len(g.types))]
	color := colors[rng.IntN(len(colors))]
	name := fmt.Sprintf("%s %s %s", adjectives[rng.IntN(len(adjectives))], kind, color)

	suffix := fmt.Sprintf("-%05d", index)
	id := slug.GenerateN(name, maxIDLength-len(suffix)) + suffix

	price := roundCents(g.priceMin + rng.Float64()*(g.priceMax-g.priceMin))
	var originalPrice *float64
	if rng.Float64() < 0.35 {
		orig := roundCents(price * (1.1 + rng.Float64()*0.4))
		originalPrice = &orig
	}

	stock := rng.IntN(60)
	if rng.Float64() < 0.1 {
		stock = 0
	}
	created := now.Add(-time.Duration(rng.IntN(90*24)) * time.Hour)

	return domain.Product{
		ID:            id,
		Name:          name,
		Description:   fmt.Sprintf(descriptions[rng.IntN(len(descriptions))], kind),
		Price:         price,
		OriginalPrice: originalPrice,
		Images:        []string{fmt.Sprintf("https://images.example.com/products/%s.jpg", id)},
		CategoryID:    categoryID,
		Stock:         stock,
		IsActive:      rng.Float64() >= 0.05,
		IsFeatured:    rng.Float64() < 0.1,
		Tags:          []string{slug.Generate(kind), slug.Generate(color)},
		Rating:        math.Round(rng.Float64()*50) / 10,
		ReviewCount:   rng.IntN(500),
		ViewCount:     rng.IntN(20000),
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Summary reports what Load wrote.
type Summary struct {
	Categories int `json:"categories"`
	Products   int `json:"products"`
}

// Load generates the catalog and writes it in batches.
func Load(ctx context.Context, w Writer, opts Options, logger *slog.Logger) (Summary, error) {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	categories, products := Generate(opts)

	if err := w.UpsertCategories(ctx, categories); err != nil {
		return Summary{}, fmt.Errorf("seed categories: %w", err)
	}

	var sum Summary
	sum.Categories = len(categories)
	for start := 0; start < len(products); start += batch {
		end := min(start+batch, len(products))
		if err := w.UpsertProducts(ctx, products[start:end]); err != nil {
			return sum, fmt.Errorf("seed products %d-%d: %w", start, end, err)
		}
		sum.Products = end
		logger.InfoContext(ctx, "seeded product batch",
			slog.Int("written", end),
			slog.Int("total", len(products)),
		)
	}
	return sum, nil
}
