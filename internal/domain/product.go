package domain

import "time"

// IndexedProduct is the denormalized projection of a product stored in the
// search index. The primary store owns the authoritative copy.
type IndexedProduct struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	Images        []string  `json:"images,omitempty"`
	Category      string    `json:"category"`
	CategoryName  string    `json:"categoryName"`
	Stock         int       `json:"stock"`
	IsActive      bool      `json:"isActive"`
	Tags          []string  `json:"tags"`
	Rating        float64   `json:"rating"`
	ReviewCount   int       `json:"reviewCount"`
	ViewCount     int       `json:"viewCount"`
	Discount      float64   `json:"discount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ComputeDiscount returns the discount percentage implied by the price
// fields. A missing or zero original price means no discount.
func ComputeDiscount(price float64, originalPrice *float64) float64 {
	if originalPrice == nil || *originalPrice == 0 {
		return 0
	}
	orig := *originalPrice
	return (orig - price) * 100 / orig
}

// NewIndexedProduct projects an authoritative product into its index form.
// The discount is always recomputed here.
func NewIndexedProduct(p *Product) IndexedProduct {
	doc := IndexedProduct{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Images:        p.Images,
		Category:      p.CategoryID,
		Stock:         p.Stock,
		IsActive:      p.IsActive,
		Tags:          p.Tags,
		Rating:        p.Rating,
		ReviewCount:   p.ReviewCount,
		ViewCount:     p.ViewCount,
		Discount:      ComputeDiscount(p.Price, p.OriginalPrice),
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
	if p.Category != nil {
		if doc.Category == "" {
			doc.Category = p.Category.ID
		}
		doc.CategoryName = p.Category.Name
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return doc
}
