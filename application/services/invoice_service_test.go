package services

import (
	"context"
	"errors"
	"testing"

	"libreria/domain"
	"libreria/infrastructure/persistence/store"
	pkgerrors "libreria/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMeta() domain.InvoiceMeta {
	return domain.InvoiceMeta{
		LegalName: "Ada Lovelace",
		Address:   "Calle Mayor 1",
		TaxID:     "12345678Z",
		Email:     "Ada@Example.com",
	}
}

func newInvoiceFixture(t *testing.T) (*InvoiceService, *CartService, *BookService, *recordingPublisher) {
	t.Helper()
	st := newTestStore(t)
	books := NewBookService(st, nopLogger())
	carts := NewCartService(st, books, 0, nopLogger())
	publisher := &recordingPublisher{}
	invoices := NewInvoiceService(st, carts, publisher, nopLogger())
	return invoices, carts, books, publisher
}

func TestCreateFromCart(t *testing.T) {
	ctx := context.Background()
	invoices, carts, books, publisher := newInvoiceFixture(t)

	book := addBook(t, books, "9780441013593", "Dune", 1500, 10)
	_, err := carts.Add(ctx, testUser, book.ID, 3)
	require.NoError(t, err)

	inv, err := invoices.CreateFromCart(ctx, testUser, validMeta())
	require.NoError(t, err)
	require.NotEmpty(t, inv.ID)
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, 3, inv.Lines[0].Quantity)
	assert.Equal(t, 4500.0, inv.Subtotal)
	assert.InDelta(t, 180.0, inv.Tax, 1e-9)
	assert.InDelta(t, 4680.0, inv.Total, 1e-9)
	// Meta is normalized into the record.
	assert.Equal(t, "ada@example.com", inv.Meta.Email)

	// Checkout clears the cart.
	summary, err := carts.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, summary.Lines)

	// One event per invoice.
	require.Len(t, publisher.detailTypes, 1)
	assert.Equal(t, "InvoiceCreated", publisher.detailTypes[0])
}

func TestCreateFromCartMissingMeta(t *testing.T) {
	ctx := context.Background()
	invoices, carts, books, _ := newInvoiceFixture(t)

	book := addBook(t, books, "9780441013593", "Dune", 10, 5)
	_, err := carts.Add(ctx, testUser, book.ID, 1)
	require.NoError(t, err)

	meta := validMeta()
	meta.TaxID = "   "
	_, err = invoices.CreateFromCart(ctx, testUser, meta)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	// The cart survives a failed checkout.
	summary, err := carts.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, summary.Lines, 1)
}

func TestCreateFromEmptyCart(t *testing.T) {
	invoices, _, _, publisher := newInvoiceFixture(t)

	_, err := invoices.CreateFromCart(context.Background(), testUser, validMeta())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "EMPTY_CART", appErr.Code)
	assert.Empty(t, publisher.detailTypes)
}

func TestInvoiceSnapshotIsImmutable(t *testing.T) {
	ctx := context.Background()
	invoices, carts, books, _ := newInvoiceFixture(t)

	book := addBook(t, books, "9780441013593", "Dune", 100, 10)
	_, err := carts.Add(ctx, testUser, book.ID, 2)
	require.NoError(t, err)

	inv, err := invoices.CreateFromCart(ctx, testUser, validMeta())
	require.NoError(t, err)

	// Catalog mutation after checkout must not leak into the record.
	newPrice := 999.0
	_, err = books.Update(ctx, book.ID, UpdateBookInput{Price: &newPrice})
	require.NoError(t, err)

	stored, found, err := invoices.GetByID(ctx, testUser, inv.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 100.0, stored.Lines[0].UnitPrice)
	assert.Equal(t, 200.0, stored.Lines[0].Subtotal)
}

func TestListByUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	invoices, carts, books, _ := newInvoiceFixture(t)

	book := addBook(t, books, "9780441013593", "Dune", 10, 10)

	var ids []string
	for i := 0; i < 3; i++ {
		_, err := carts.Add(ctx, testUser, book.ID, 1)
		require.NoError(t, err)
		inv, err := invoices.CreateFromCart(ctx, testUser, validMeta())
		require.NoError(t, err)
		ids = append(ids, inv.ID)
	}

	list, err := invoices.ListByUser(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.GreaterOrEqual(t, list[i-1].IssuedAt, list[i].IssuedAt)
	}

	// Another user sees nothing.
	other, err := invoices.ListByUser(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)

	// Direct lookup works for each ID.
	for _, id := range ids {
		_, found, err := invoices.GetByID(ctx, testUser, id)
		require.NoError(t, err)
		assert.True(t, found)
	}
}

func TestClearFailureFailsCheckout(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	flaky := &flakyStore{
		ItemStore: newTestStore(t),
		failDelete: func(table string, _ store.Key) error {
			if table == TableCarts {
				return boom
			}
			return nil
		},
	}
	books := NewBookService(flaky, nopLogger())
	carts := NewCartService(flaky, books, 0, nopLogger())
	publisher := &recordingPublisher{}
	invoices := NewInvoiceService(flaky, carts, publisher, nopLogger())

	book := addBook(t, books, "9780441013593", "Dune", 10, 5)
	_, err := carts.Add(ctx, testUser, book.ID, 1)
	require.NoError(t, err)

	_, err = invoices.CreateFromCart(ctx, testUser, validMeta())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// The invoice record itself is written before the clear.
	list, err := invoices.ListByUser(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// The cart still holds its line, and no event went out.
	summary, err := carts.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, summary.Lines, 1)
	assert.Empty(t, publisher.detailTypes)
}

func TestPublisherFailureDoesNotFailCheckout(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	books := NewBookService(st, nopLogger())
	carts := NewCartService(st, books, 0, nopLogger())
	publisher := &recordingPublisher{err: assert.AnError}
	invoices := NewInvoiceService(st, carts, publisher, nopLogger())

	book := addBook(t, books, "9780441013593", "Dune", 10, 5)
	_, err := carts.Add(ctx, testUser, book.ID, 1)
	require.NoError(t, err)

	inv, err := invoices.CreateFromCart(ctx, testUser, validMeta())
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)
}

func TestNilPublisher(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	books := NewBookService(st, nopLogger())
	carts := NewCartService(st, books, 0, nopLogger())
	invoices := NewInvoiceService(st, carts, nil, nopLogger())

	book := addBook(t, books, "9780441013593", "Dune", 10, 5)
	_, err := carts.Add(ctx, testUser, book.ID, 1)
	require.NoError(t, err)

	_, err = invoices.CreateFromCart(ctx, testUser, validMeta())
	assert.NoError(t, err)
}
