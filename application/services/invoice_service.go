package services

import (
	"context"
	"sort"
	"time"

	"libreria/domain"
	"libreria/infrastructure/persistence/store"
	pkgerrors "libreria/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const invoicePrefix = "INVOICE#"

func invoiceKey(userID, invoiceID string) store.Key {
	return store.Key{PK: "USER#" + userID, SK: invoicePrefix + invoiceID}
}

// EventPublisher emits domain events after a state change commits. Failures
// must not affect the operation that triggered the event.
type EventPublisher interface {
	Publish(ctx context.Context, detailType string, detail interface{}) error
}

// InvoiceService turns carts into immutable invoices.
type InvoiceService struct {
	store     store.ItemStore
	carts     *CartService
	publisher EventPublisher
	logger    *zap.Logger
}

// NewInvoiceService creates an InvoiceService. publisher may be nil when no
// event bus is configured.
func NewInvoiceService(st store.ItemStore, carts *CartService, publisher EventPublisher, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{store: st, carts: carts, publisher: publisher, logger: logger}
}

func invoiceItem(inv *domain.Invoice) store.Item {
	key := invoiceKey(inv.UserID, inv.ID)
	lines := make([]interface{}, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lines = append(lines, map[string]interface{}{
			"bookId":    l.BookID,
			"title":     l.Title,
			"unitPrice": l.UnitPrice,
			"quantity":  l.Quantity,
			"subtotal":  l.Subtotal,
		})
	}
	return store.Item{
		store.AttrPartitionKey: key.PK,
		store.AttrSortKey:      key.SK,
		"invoiceId":            inv.ID,
		"userId":               inv.UserID,
		"issuedAt":             inv.IssuedAt,
		"items":                lines,
		"subtotal":             inv.Subtotal,
		"tax":                  inv.Tax,
		"total":                inv.Total,
		"taxRate":              inv.TaxRate,
		"meta": map[string]interface{}{
			"legalName": inv.Meta.LegalName,
			"address":   inv.Meta.Address,
			"taxId":     inv.Meta.TaxID,
			"email":     inv.Meta.Email,
		},
	}
}

func invoiceFromItem(item store.Item) *domain.Invoice {
	if item == nil {
		return nil
	}
	inv := &domain.Invoice{
		ID:       stringAttr(item, "invoiceId"),
		UserID:   stringAttr(item, "userId"),
		IssuedAt: stringAttr(item, "issuedAt"),
		Subtotal: floatAttr(item, "subtotal"),
		Tax:      floatAttr(item, "tax"),
		Total:    floatAttr(item, "total"),
		TaxRate:  floatAttr(item, "taxRate"),
	}
	if meta, ok := item["meta"].(map[string]interface{}); ok {
		inv.Meta = domain.InvoiceMeta{
			LegalName: stringAttr(meta, "legalName"),
			Address:   stringAttr(meta, "address"),
			TaxID:     stringAttr(meta, "taxId"),
			Email:     stringAttr(meta, "email"),
		}
	}
	if raw, ok := item["items"].([]interface{}); ok {
		for _, entry := range raw {
			m, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			inv.Lines = append(inv.Lines, domain.InvoiceLine{
				BookID:    stringAttr(m, "bookId"),
				Title:     stringAttr(m, "title"),
				UnitPrice: floatAttr(m, "unitPrice"),
				Quantity:  intAttr(m, "quantity"),
				Subtotal:  floatAttr(m, "subtotal"),
			})
		}
	}
	return inv
}

// CreateFromCart snapshots the user's cart into a new invoice, writes it,
// then clears the cart. A failed clear fails the checkout: the invoice is
// already written, but the caller must not be told the purchase completed
// while the cart still holds the lines.
func (s *InvoiceService) CreateFromCart(ctx context.Context, userID string, meta domain.InvoiceMeta) (*domain.Invoice, error) {
	if err := meta.Normalize(); err != nil {
		return nil, err
	}

	summary, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(summary.Lines) == 0 {
		return nil, pkgerrors.NewValidationError("cart is empty").WithCode("EMPTY_CART")
	}

	inv := &domain.Invoice{
		ID:       uuid.NewString(),
		UserID:   userID,
		IssuedAt: time.Now().UTC().Format(time.RFC3339),
		Subtotal: summary.Subtotal,
		Tax:      summary.Tax,
		Total:    summary.Total,
		TaxRate:  summary.TaxRate,
		Meta:     meta,
	}
	for _, l := range summary.Lines {
		inv.Lines = append(inv.Lines, domain.InvoiceLine{
			BookID:    l.BookID,
			Title:     l.Title,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal,
		})
	}

	if err := s.store.Put(ctx, TableInvoices, invoiceItem(inv), &store.PutOptions{IfNotExists: true}); err != nil {
		return nil, pkgerrors.NewDatabaseError("write invoice", err)
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		s.logger.Error("cart not cleared after invoicing",
			zap.String("userId", userID),
			zap.String("invoiceId", inv.ID),
			zap.Error(err),
		)
		return nil, pkgerrors.Wrap(err, "clear cart after invoicing")
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, "InvoiceCreated", inv); err != nil {
			s.logger.Warn("invoice event not published",
				zap.String("invoiceId", inv.ID),
				zap.Error(err),
			)
		}
	}
	return inv, nil
}

// ListByUser returns a user's invoices, newest first.
func (s *InvoiceService) ListByUser(ctx context.Context, userID string) ([]domain.Invoice, error) {
	items, err := s.store.Query(ctx, TableInvoices, store.Query{
		PartitionKey:  "USER#" + userID,
		SortKeyPrefix: invoicePrefix,
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list invoices", err)
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		invoices = append(invoices, *invoiceFromItem(item))
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i].IssuedAt > invoices[j].IssuedAt })
	return invoices, nil
}

// GetByID returns one invoice, or absence.
func (s *InvoiceService) GetByID(ctx context.Context, userID, invoiceID string) (*domain.Invoice, bool, error) {
	item, found, err := s.store.Get(ctx, TableInvoices, invoiceKey(userID, invoiceID))
	if err != nil {
		return nil, false, pkgerrors.NewDatabaseError("get invoice", err)
	}
	if !found {
		return nil, false, nil
	}
	return invoiceFromItem(item), true, nil
}
