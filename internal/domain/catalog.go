package domain

import "time"

// Category is the authoritative category record held by the primary store.
type Category struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Product is the authoritative product record. Category is populated by
// stores that join the category row.
type Product struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	Images        []string  `json:"images"`
	CategoryID    string    `json:"categoryId"`
	Category      *Category `json:"category"`
	Stock         int       `json:"stock"`
	IsActive      bool      `json:"isActive"`
	IsFeatured    bool      `json:"isFeatured"`
	Tags          []string  `json:"tags"`
	Rating        float64   `json:"rating"`
	ReviewCount   int       `json:"reviewCount"`
	ViewCount     int       `json:"viewCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
