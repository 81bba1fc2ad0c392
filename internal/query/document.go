package query

import (
	"strings"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
)

// ProductDoc adapts an indexed product to Document. Every numeric field of
// the projection is present; zero values stand in for absent ones.
type ProductDoc struct {
	P *domain.IndexedProduct
}

// Number implements Document.
func (d ProductDoc) Number(field string) (float64, bool) {
	switch field {
	case FieldPrice:
		return d.P.Price, true
	case FieldRating:
		return d.P.Rating, true
	case FieldReviewCount:
		return float64(d.P.ReviewCount), true
	case FieldViewCount:
		return float64(d.P.ViewCount), true
	case FieldDiscount:
		return d.P.Discount, true
	case FieldStock:
		return float64(d.P.Stock), true
	case FieldCreatedAt:
		return float64(d.P.CreatedAt.UnixNano()), true
	}
	return 0, false
}

// Keyword implements Document.
func (d ProductDoc) Keyword(field string) (string, bool) {
	switch field {
	case FieldName, FieldNameKeyword:
		return d.P.Name, true
	case FieldDescription:
		return d.P.Description, true
	case FieldCategory:
		return d.P.Category, true
	case FieldCategoryName:
		return d.P.CategoryName, true
	}
	return "", false
}

// Compare orders a before b (-1), after b (1) or as equal (0) by the sort
// fields. Numbers compare numerically with missing values counted as zero;
// keywords compare as literal strings.
func Compare(a, b Document, scoreA, scoreB float64, fields []SortField) int {
	for _, f := range fields {
		var c int
		if f.Field == FieldScore {
			c = compareNumbers(scoreA, scoreB)
		} else if ka, ok := a.Keyword(f.Field); ok {
			kb, _ := b.Keyword(f.Field)
			c = strings.Compare(ka, kb)
		} else {
			na, _ := a.Number(f.Field)
			nb, _ := b.Number(f.Field)
			c = compareNumbers(na, nb)
		}
		if f.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func compareNumbers(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
