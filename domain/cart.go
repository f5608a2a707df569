package domain

// DefaultTaxRate applies to carts and invoices that have no explicit rate.
const DefaultTaxRate = 0.04

// CartLine is one book in a cart. Title and UnitPrice are snapshots taken
// when the line was last touched; Stock is the ceiling observed at that
// moment and bounds Quantity.
type CartLine struct {
	BookID    string  `json:"bookId"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Stock     int     `json:"stock"`
}

// Subtotal is the line's derived total. Never stored as authoritative state.
func (l CartLine) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// CartSummaryLine is a cart line with its derived subtotal, as returned to
// callers.
type CartSummaryLine struct {
	BookID    string  `json:"bookId"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Stock     int     `json:"stock"`
	Subtotal  float64 `json:"subtotal"`
}

// CartSummary carries the cart's lines plus derived totals.
type CartSummary struct {
	Lines    []CartSummaryLine `json:"items"`
	Subtotal float64           `json:"subtotal"`
	Tax      float64           `json:"tax"`
	Total    float64           `json:"total"`
	TaxRate  float64           `json:"taxRate"`
}

// Summarize computes the derived totals for a set of cart lines.
func Summarize(lines []CartLine, taxRate float64) CartSummary {
	if taxRate == 0 {
		taxRate = DefaultTaxRate
	}

	out := CartSummary{
		Lines:   make([]CartSummaryLine, 0, len(lines)),
		TaxRate: taxRate,
	}
	for _, l := range lines {
		sub := l.Subtotal()
		out.Lines = append(out.Lines, CartSummaryLine{
			BookID:    l.BookID,
			Title:     l.Title,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Stock:     l.Stock,
			Subtotal:  sub,
		})
		out.Subtotal += sub
	}
	out.Tax = out.Subtotal * taxRate
	out.Total = out.Subtotal + out.Tax
	return out
}
