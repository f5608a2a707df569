package domain

import (
	"strings"

	pkgerrors "libreria/pkg/errors"
)

// InvoiceMeta is the customer metadata frozen into an invoice.
type InvoiceMeta struct {
	LegalName string `json:"legalName"`
	Address   string `json:"address"`
	TaxID     string `json:"taxId"`
	Email     string `json:"email"`
}

// Normalize trims every field and lowercases the email, then checks that no
// required field is blank.
func (m *InvoiceMeta) Normalize() error {
	m.LegalName = strings.TrimSpace(m.LegalName)
	m.Address = strings.TrimSpace(m.Address)
	m.TaxID = strings.TrimSpace(m.TaxID)
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))

	for _, f := range []struct{ name, value string }{
		{"legal name", m.LegalName},
		{"address", m.Address},
		{"tax id", m.TaxID},
		{"email", m.Email},
	} {
		if f.value == "" {
			return pkgerrors.NewValidationError("missing " + f.name).WithCode("MISSING_FIELD")
		}
	}
	return nil
}

// InvoiceLine is a value copy of a cart line with its frozen subtotal.
// Catalog or cart mutation after invoicing never changes it.
type InvoiceLine struct {
	BookID    string  `json:"bookId"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

// Invoice is an immutable record created from a cart snapshot. Once written
// it is never mutated.
type Invoice struct {
	ID       string        `json:"id"`
	UserID   string        `json:"userId"`
	IssuedAt string        `json:"issuedAt"`
	Lines    []InvoiceLine `json:"items"`
	Subtotal float64       `json:"subtotal"`
	Tax      float64       `json:"tax"`
	Total    float64       `json:"total"`
	TaxRate  float64       `json:"taxRate"`
	Meta     InvoiceMeta   `json:"meta"`
}
