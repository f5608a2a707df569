package services

import (
	"context"
	"sort"
	"strings"

	"libreria/domain"
	"libreria/infrastructure/persistence/store"
	pkgerrors "libreria/pkg/errors"

	"go.uber.org/zap"
)

const (
	cartItemPrefix   = "ITEM#"
	codeInvalidQty   = "INVALID_QUANTITY"
	codeItemNotFound = "ITEM_NOT_FOUND"
	codeOutOfStock   = "OUT_OF_STOCK"
)

func cartPK(userID string) string {
	return "CART#" + userID
}

func cartLineKey(userID, bookID string) store.Key {
	return store.Key{PK: cartPK(userID), SK: cartItemPrefix + bookID}
}

// CartService manages per-user carts. Each line is its own item under the
// cart partition, so concurrent adds for different books never conflict.
// Quantities are always clamped to the stock observed at write time.
type CartService struct {
	store   store.ItemStore
	books   *BookService
	taxRate float64
	logger  *zap.Logger
}

// NewCartService creates a CartService. taxRate 0 selects the default rate.
func NewCartService(st store.ItemStore, books *BookService, taxRate float64, logger *zap.Logger) *CartService {
	if taxRate == 0 {
		taxRate = domain.DefaultTaxRate
	}
	return &CartService{store: st, books: books, taxRate: taxRate, logger: logger}
}

func cartLineItem(userID string, line domain.CartLine) store.Item {
	key := cartLineKey(userID, line.BookID)
	return store.Item{
		store.AttrPartitionKey: key.PK,
		store.AttrSortKey:      key.SK,
		"bookId":               line.BookID,
		"title":                line.Title,
		"unitPrice":            line.UnitPrice,
		"quantity":             line.Quantity,
		"stock":                line.Stock,
	}
}

func cartLineFromItem(item store.Item) domain.CartLine {
	return domain.CartLine{
		BookID:    stringAttr(item, "bookId"),
		Title:     stringAttr(item, "title"),
		UnitPrice: floatAttr(item, "unitPrice"),
		Quantity:  intAttr(item, "quantity"),
		Stock:     intAttr(item, "stock"),
	}
}

// lines loads every line of a cart, sorted by book ID for stable output.
func (s *CartService) lines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	items, err := s.store.Query(ctx, TableCarts, store.Query{
		PartitionKey:  cartPK(userID),
		SortKeyPrefix: cartItemPrefix,
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load cart", err)
	}

	lines := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, cartLineFromItem(item))
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].BookID < lines[j].BookID })
	return lines, nil
}

// Get returns the cart with derived totals. A user with no cart gets an
// empty summary, not an error.
func (s *CartService) Get(ctx context.Context, userID string) (*domain.CartSummary, error) {
	lines, err := s.lines(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := domain.Summarize(lines, s.taxRate)
	return &summary, nil
}

// Add puts qty copies of a book into the cart. The quantity is clamped to
// the book's current stock; adding to an existing line re-reads the catalog
// so the snapshot price, title, and stock ceiling stay fresh. A sold-out
// book is rejected outright: a line with quantity zero never exists.
func (s *CartService) Add(ctx context.Context, userID, bookID string, qty int) (*domain.CartSummary, error) {
	if qty <= 0 {
		return nil, pkgerrors.NewValidationError("quantity must be positive").WithCode(codeInvalidQty)
	}

	book, found, err := s.books.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("book")
	}
	if book.Stock <= 0 {
		return nil, pkgerrors.NewValidationError("book is out of stock").WithCode(codeOutOfStock)
	}

	existing, found, err := s.store.Get(ctx, TableCarts, cartLineKey(userID, bookID))
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load cart line", err)
	}

	target := qty
	if found {
		target = intAttr(existing, "quantity") + qty
	}
	if target > book.Stock {
		target = book.Stock
	}

	line := domain.CartLine{
		BookID:    book.ID,
		Title:     book.Title,
		UnitPrice: book.Price,
		Quantity:  target,
		Stock:     book.Stock,
	}
	if err := s.store.Put(ctx, TableCarts, cartLineItem(userID, line), nil); err != nil {
		return nil, pkgerrors.NewDatabaseError("write cart line", err)
	}
	return s.Get(ctx, userID)
}

// SetQuantity sets an existing line's quantity. Negative is rejected;
// anything above the line's stock ceiling is clamped. A quantity of zero,
// whether requested or the result of clamping, removes the line.
func (s *CartService) SetQuantity(ctx context.Context, userID, bookID string, qty int) (*domain.CartSummary, error) {
	if qty < 0 {
		return nil, pkgerrors.NewValidationError("quantity must not be negative").WithCode(codeInvalidQty)
	}

	key := cartLineKey(userID, bookID)
	existing, found, err := s.store.Get(ctx, TableCarts, key)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load cart line", err)
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("cart item").WithCode(codeItemNotFound)
	}

	line := cartLineFromItem(existing)
	if qty > line.Stock {
		qty = line.Stock
	}
	if qty == 0 {
		if err := s.store.Delete(ctx, TableCarts, key); err != nil {
			return nil, pkgerrors.NewDatabaseError("remove cart line", err)
		}
		return s.Get(ctx, userID)
	}
	line.Quantity = qty
	if err := s.store.Put(ctx, TableCarts, cartLineItem(userID, line), nil); err != nil {
		return nil, pkgerrors.NewDatabaseError("write cart line", err)
	}
	return s.Get(ctx, userID)
}

// Increment raises a line's quantity by one, clamped to stock.
func (s *CartService) Increment(ctx context.Context, userID, bookID string) (*domain.CartSummary, error) {
	existing, found, err := s.store.Get(ctx, TableCarts, cartLineKey(userID, bookID))
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load cart line", err)
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("cart item").WithCode(codeItemNotFound)
	}
	return s.SetQuantity(ctx, userID, bookID, intAttr(existing, "quantity")+1)
}

// Decrement lowers a line's quantity by one; reaching zero removes it.
func (s *CartService) Decrement(ctx context.Context, userID, bookID string) (*domain.CartSummary, error) {
	existing, found, err := s.store.Get(ctx, TableCarts, cartLineKey(userID, bookID))
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load cart line", err)
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("cart item").WithCode(codeItemNotFound)
	}
	return s.SetQuantity(ctx, userID, bookID, intAttr(existing, "quantity")-1)
}

// Remove deletes a line outright. Idempotent.
func (s *CartService) Remove(ctx context.Context, userID, bookID string) (*domain.CartSummary, error) {
	if strings.TrimSpace(bookID) == "" {
		return nil, pkgerrors.NewValidationError("missing field: bookId").WithCode("MISSING_FIELD")
	}
	if err := s.store.Delete(ctx, TableCarts, cartLineKey(userID, bookID)); err != nil {
		return nil, pkgerrors.NewDatabaseError("remove cart line", err)
	}
	return s.Get(ctx, userID)
}

// Clear deletes every line of a cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	lines, err := s.lines(ctx, userID)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if err := s.store.Delete(ctx, TableCarts, cartLineKey(userID, l.BookID)); err != nil {
			return pkgerrors.NewDatabaseError("clear cart", err)
		}
	}
	return nil
}
