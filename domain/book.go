// Package domain holds the bookstore's typed records and their invariants.
package domain

import (
	"math"
	"strings"

	pkgerrors "libreria/pkg/errors"
)

// Book is a catalog entry. ISBN is unique across the catalog.
type Book struct {
	ID        string  `json:"id"`
	ISBN      string  `json:"isbn"`
	Title     string  `json:"title"`
	Authors   string  `json:"authors"`
	Price     float64 `json:"price"`
	Stock     int     `json:"stock"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

// Validate checks the catalog invariants: required descriptive fields, a
// strictly positive integer stock, and a strictly positive price.
func (b *Book) Validate() error {
	b.ISBN = strings.TrimSpace(b.ISBN)
	b.Title = strings.TrimSpace(b.Title)
	b.Authors = strings.TrimSpace(b.Authors)

	for _, f := range []struct{ name, value string }{
		{"isbn", b.ISBN},
		{"title", b.Title},
		{"authors", b.Authors},
	} {
		if f.value == "" {
			return pkgerrors.NewValidationError("missing field: " + f.name).WithCode("MISSING_FIELD")
		}
	}

	if b.Stock <= 0 {
		return pkgerrors.NewValidationError("invalid stock").WithCode("INVALID_STOCK")
	}
	if b.Price <= 0 || math.IsNaN(b.Price) || math.IsInf(b.Price, 0) {
		return pkgerrors.NewValidationError("invalid price").WithCode("INVALID_PRICE")
	}
	return nil
}
