package services

import (
	"context"
	"testing"

	"libreria/domain"
	pkgerrors "libreria/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "user-1"

func newCartFixture(t *testing.T) (*CartService, *BookService) {
	t.Helper()
	st := newTestStore(t)
	books := NewBookService(st, nopLogger())
	carts := NewCartService(st, books, 0, nopLogger())
	return carts, books
}

func addBook(t *testing.T, books *BookService, isbn, title string, price float64, stock int) *domain.Book {
	t.Helper()
	book, err := books.Add(context.Background(), domain.Book{
		ISBN:    isbn,
		Title:   title,
		Authors: "Anonymous",
		Price:   price,
		Stock:   stock,
	})
	require.NoError(t, err)
	return book
}

func TestEmptyCart(t *testing.T) {
	carts, _ := newCartFixture(t)

	summary, err := carts.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, summary.Lines)
	assert.Zero(t, summary.Subtotal)
	assert.Zero(t, summary.Total)
	assert.Equal(t, domain.DefaultTaxRate, summary.TaxRate)
}

func TestAddComputesTotals(t *testing.T) {
	ctx := context.Background()
	carts, books := newCartFixture(t)
	book := addBook(t, books, "9780441013593", "Dune", 1500, 10)

	summary, err := carts.Add(ctx, testUser, book.ID, 3)
	require.NoError(t, err)
	require.Len(t, summary.Lines, 1)
	assert.Equal(t, 3, summary.Lines[0].Quantity)
	assert.Equal(t, 4500.0, summary.Lines[0].Subtotal)
	assert.Equal(t, 4500.0, summary.Subtotal)
	assert.InDelta(t, 180.0, summary.Tax, 1e-9)
	assert.InDelta(t, 4680.0, summary.Total, 1e-9)
}

func TestAddClampsToStock(t *testing.T) {
	ctx := context.Background()
	carts, books := newCartFixture(t)
	book := addBook(t, books, "9780441013593", "Dune", 10, 4)

	summary, err := carts.Add(ctx, testUser, book.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Lines[0].Quantity)

	// Adding more keeps the quantity at the ceiling.
	summary, err = carts.Add(ctx, testUser, book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Lines[0].Quantity)
}

func TestAddAccumulatesExistingLine(t *testing.T) {
	ctx := context.Background()
	carts, books := newCartFixture(t)
	book := addBook(t, books, "9780441013593", "Dune", 10, 10)

	_, err := carts.Add(ctx, testUser, book.ID, 2)
	require.NoError(t, err)
	summary, err := carts.Add(ctx, testUser, book.ID, 3)
	require.NoError(t, err)
	require.Len(t, summary.Lines, 1)
	assert.Equal(t, 5, summary.Lines[0].Quantity)
}

func TestAddRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	carts, books := newCartFixture(t)
	book := addBook(t, books, "9780441013593", "Dune", 10, 10)

	_, err := carts.Add(ctx, testUser, book.ID, 0)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = carts.Add(ctx, testUser, book.ID, -2)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = carts.Add(ctx, testUser, "no-such-book", 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestAddSoldOutBookIsRejected(t *testing.T) {
	ctx := context.Background()
	carts, books := newCartFixture(t)
	book := addBook(t, books, "9780441013593", "Dune", 10, 2)

	_, err := carts.Add(ctx, testUser, book.ID, 1)
	require.NoError(t, err)

	zero := 0
	_, err = books.Update(ctx, book.ID, UpdateBookInput{Stock: &zero})
	require.NoError(t, err)

	// No new line, and the existing one is not rewritten to zero.
	_, err = carts.Add(ctx, testUser, book.ID, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "OUT_OF_STOCK", appErr.Code)

	summary, err := carts.Get(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, summary.Lines, 1)
	assert.Equal(t, 1, summary.Lines[0].Quantity)

	// A fresh cart gets no line at all.
	_, err = carts.Add(ctx, "user-fresh", book.ID, 1)
	require.Error(t, err)
	summary, err = carts.Get(ctx, "user-fresh")
	require.NoError(t, err)
	assert.Empty(t, summary.Lines)
}

func TestSetQuantityClampedToZeroRemovesLine(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	books := NewBookService(st, nopLogger())
	carts := NewCartService(st, books, 0, nopLogger())

	// A line whose stock snapshot has gone to zero. Any positive request
	// clamps to zero, which must delete the line rather than store it.
	stale := domain.CartLine{BookID: "b1", Title: "Dune", UnitPrice: 10, Quantity: 2, Stock: 0}
	require.NoError(t, st.Put(ctx, TableCarts, cartLineItem(testUser, stale), nil))

	summary, err := carts.SetQuantity(ctx, testUser, "b1", 5)
	require.NoError(t, err)
	assert.Empty(t, summary.Lines)

	_, found, err := st.Get(ctx, TableCarts, cartLineKey(testUser, "b1"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetQuantity(t *testing.T) {
	ctx := context.Background()
	carts, books := newCartFixture(t)
	book := addBook(t, books, "9780441013593", "Dune", 10, 6)

	_, err := carts.Add(ctx, testUser, book.ID, 2)
	require.NoError(t, err)

	summary, err := carts.SetQuantity(ctx, testUser, book.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Lines[0].Quantity)

	// Above the observed stock ceiling clamps.
	summary, err = carts.SetQuantity(ctx, testUser, book.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Lines[0].Quantity)

	// Negative is rejected.
	_, err = carts.SetQuantity(ctx, testUser, book.ID, -1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	// Zero removes the line.
	summary, err = carts.SetQuantity(ctx, testUser, book.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, summary.Lines)

	// The line is gone, so another set reports not found.
	_, err = carts.SetQuantity(ctx, testUser, book.ID, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestIncrementDecrement(t *testing.T) {
	ctx := context.Background()
	carts, books := newCartFixture(t)
	book := addBook(t, books, "9780441013593", "Dune", 10, 3)

	_, err := carts.Add(ctx, testUser, book.ID, 2)
	require.NoError(t, err)

	summary, err := carts.Increment(ctx, testUser, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Lines[0].Quantity)

	// Already at the ceiling; increment clamps.
	summary, err = carts.Increment(ctx, testUser, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Lines[0].Quantity)

	summary, err = carts.Decrement(ctx, testUser, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Lines[0].Quantity)

	// Decrementing to zero removes the line.
	_, err = carts.Decrement(ctx, testUser, book.ID)
	require.NoError(t, err)
	summary, err = carts.Decrement(ctx, testUser, book.ID)
	require.NoError(t, err)
	assert.Empty(t, summary.Lines)

	_, err = carts.Decrement(ctx, testUser, book.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	carts, books := newCartFixture(t)
	a := addBook(t, books, "9780441013593", "Dune", 10, 5)
	b := addBook(t, books, "9780553293357", "Foundation", 20, 5)

	_, err := carts.Add(ctx, testUser, a.ID, 1)
	require.NoError(t, err)
	_, err = carts.Add(ctx, testUser, b.ID, 1)
	require.NoError(t, err)

	summary, err := carts.Remove(ctx, testUser, a.ID)
	require.NoError(t, err)
	assert.Len(t, summary.Lines, 1)

	// Removing an absent line is a no-op.
	summary, err = carts.Remove(ctx, testUser, a.ID)
	require.NoError(t, err)
	assert.Len(t, summary.Lines, 1)

	require.NoError(t, carts.Clear(ctx, testUser))
	summary, err = carts.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, summary.Lines)
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	ctx := context.Background()
	carts, books := newCartFixture(t)
	book := addBook(t, books, "9780441013593", "Dune", 10, 5)

	_, err := carts.Add(ctx, "user-a", book.ID, 2)
	require.NoError(t, err)

	summary, err := carts.Get(ctx, "user-b")
	require.NoError(t, err)
	assert.Empty(t, summary.Lines)
}

func TestCustomTaxRate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	books := NewBookService(st, nopLogger())
	carts := NewCartService(st, books, 0.21, nopLogger())
	book := addBook(t, books, "9780441013593", "Dune", 100, 5)

	summary, err := carts.Add(ctx, testUser, book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.21, summary.TaxRate)
	assert.InDelta(t, 21.0, summary.Tax, 1e-9)
	assert.InDelta(t, 121.0, summary.Total, 1e-9)
}
