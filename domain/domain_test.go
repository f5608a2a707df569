package domain

import (
	"math"
	"testing"

	pkgerrors "libreria/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookValidate(t *testing.T) {
	valid := Book{ISBN: " 978 ", Title: " Dune ", Authors: "Herbert", Price: 9.95, Stock: 1}
	require.NoError(t, valid.Validate())
	// Fields are trimmed in place.
	assert.Equal(t, "978", valid.ISBN)
	assert.Equal(t, "Dune", valid.Title)

	for name, book := range map[string]Book{
		"blank isbn":     {Title: "x", Authors: "y", Price: 1, Stock: 1},
		"blank title":    {ISBN: "1", Authors: "y", Price: 1, Stock: 1},
		"zero stock":     {ISBN: "1", Title: "x", Authors: "y", Price: 1, Stock: 0},
		"negative stock": {ISBN: "1", Title: "x", Authors: "y", Price: 1, Stock: -2},
		"zero price":     {ISBN: "1", Title: "x", Authors: "y", Price: 0, Stock: 1},
		"nan price":      {ISBN: "1", Title: "x", Authors: "y", Price: math.NaN(), Stock: 1},
		"inf price":      {ISBN: "1", Title: "x", Authors: "y", Price: math.Inf(1), Stock: 1},
	} {
		t.Run(name, func(t *testing.T) {
			b := book
			err := b.Validate()
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

func TestSummarize(t *testing.T) {
	lines := []CartLine{
		{BookID: "a", Title: "Dune", UnitPrice: 1500, Quantity: 3, Stock: 10},
		{BookID: "b", Title: "Foundation", UnitPrice: 250, Quantity: 2, Stock: 5},
	}

	summary := Summarize(lines, 0)
	assert.Equal(t, DefaultTaxRate, summary.TaxRate)
	assert.Equal(t, 5000.0, summary.Subtotal)
	assert.InDelta(t, 200.0, summary.Tax, 1e-9)
	assert.InDelta(t, 5200.0, summary.Total, 1e-9)
	require.Len(t, summary.Lines, 2)
	assert.Equal(t, 4500.0, summary.Lines[0].Subtotal)
	assert.Equal(t, 500.0, summary.Lines[1].Subtotal)
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil, 0.21)
	assert.Equal(t, 0.21, summary.TaxRate)
	assert.Zero(t, summary.Subtotal)
	assert.Zero(t, summary.Total)
	assert.NotNil(t, summary.Lines)
}

func TestInvoiceMetaNormalize(t *testing.T) {
	meta := InvoiceMeta{
		LegalName: "  Ada Lovelace ",
		Address:   " Calle Mayor 1 ",
		TaxID:     " 12345678Z ",
		Email:     " Ada@Example.COM ",
	}
	require.NoError(t, meta.Normalize())
	assert.Equal(t, "Ada Lovelace", meta.LegalName)
	assert.Equal(t, "ada@example.com", meta.Email)

	blank := meta
	blank.Address = "   "
	err := blank.Normalize()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "missing address")
}
