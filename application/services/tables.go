// Package services implements the bookstore's domain operations on top of
// the uniform item-store contract. Uniqueness and multi-item atomicity are
// built entirely from conditional puts plus compensating deletes; the store
// offers no other primitive.
package services

import (
	"context"
	"fmt"

	"libreria/infrastructure/persistence/store"
)

// Logical table names. The DynamoDB backend folds them into one physical
// table; the embedded engine keeps them separate.
const (
	TableUsers    = "Users"
	TableBooks    = "Books"
	TableCarts    = "Carts"
	TableInvoices = "Invoices"
)

// EnsureTables registers every table the services use. Idempotent; called
// once at process start.
func EnsureTables(ctx context.Context, st store.ItemStore) error {
	for _, table := range []string{TableUsers, TableBooks, TableCarts, TableInvoices} {
		if err := st.CreateTable(ctx, table); err != nil {
			return fmt.Errorf("ensure table %s: %w", table, err)
		}
	}
	return nil
}
