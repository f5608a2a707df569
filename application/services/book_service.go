package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"libreria/application/sagas"
	"libreria/domain"
	"libreria/infrastructure/persistence/store"
	pkgerrors "libreria/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const skBookMetadata = "METADATA#"

func bookKey(bookID string) store.Key {
	return store.Key{PK: "BOOK#" + bookID, SK: skBookMetadata}
}

// isbnPK derives the reference-item partition key for an ISBN. The namespace
// tag keeps ISBN references from colliding with other index kinds.
func isbnPK(isbn string) string {
	return "ISBN#" + strings.TrimSpace(isbn)
}

// BookService manages the catalog. ISBN uniqueness is emulated with
// reference items guarded by conditional puts.
type BookService struct {
	store  store.ItemStore
	logger *zap.Logger
}

// NewBookService creates a BookService.
func NewBookService(st store.ItemStore, logger *zap.Logger) *BookService {
	return &BookService{store: st, logger: logger}
}

func bookItem(b *domain.Book) store.Item {
	key := bookKey(b.ID)
	return store.Item{
		store.AttrPartitionKey: key.PK,
		store.AttrSortKey:      key.SK,
		"bookId":               b.ID,
		"isbn":                 b.ISBN,
		"title":                b.Title,
		"authors":              b.Authors,
		"price":                b.Price,
		"stock":                b.Stock,
		"createdAt":            b.CreatedAt,
		"updatedAt":            b.UpdatedAt,
	}
}

func bookFromItem(item store.Item) *domain.Book {
	if item == nil {
		return nil
	}
	return &domain.Book{
		ID:        stringAttr(item, "bookId"),
		ISBN:      stringAttr(item, "isbn"),
		Title:     stringAttr(item, "title"),
		Authors:   stringAttr(item, "authors"),
		Price:     floatAttr(item, "price"),
		Stock:     intAttr(item, "stock"),
		CreatedAt: stringAttr(item, "createdAt"),
		UpdatedAt: stringAttr(item, "updatedAt"),
	}
}

// Add validates and stores a new book. The ISBN reference is reserved first;
// if writing the book itself fails the reservation is compensated.
func (s *BookService) Add(ctx context.Context, book domain.Book) (*domain.Book, error) {
	if err := book.Validate(); err != nil {
		return nil, err
	}

	book.ID = uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	book.CreatedAt = now
	book.UpdatedAt = now

	// The reference lives at the bare partition key so every claim on the
	// same ISBN targets one composite key and the conditional put collides.
	isbnRef := store.Item{
		store.AttrPartitionKey: isbnPK(book.ISBN),
		"bookId":               book.ID,
		"isbn":                 book.ISBN,
	}

	saga := sagas.New("book-add", s.logger)
	saga.AddStep(sagas.Step{
		Name: "reserve-isbn",
		Execute: func(ctx context.Context) error {
			err := s.store.Put(ctx, TableBooks, isbnRef, &store.PutOptions{IfNotExists: true})
			if errors.Is(err, store.ErrConditionFailed) {
				return pkgerrors.NewConflictError("ISBN already exists")
			}
			return err
		},
		Compensate: func(ctx context.Context) error {
			return s.store.Delete(ctx, TableBooks, store.Key{PK: isbnRef.PartitionKey()})
		},
	})
	saga.AddStep(sagas.Step{
		Name: "write-book",
		Execute: func(ctx context.Context) error {
			return s.store.Put(ctx, TableBooks, bookItem(&book), &store.PutOptions{IfNotExists: true})
		},
	})

	if err := saga.Execute(ctx); err != nil {
		if appErr := pkgerrors.GetAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.NewDatabaseError("add book", err)
	}
	return &book, nil
}

// Get returns a book by ID, or absence.
func (s *BookService) Get(ctx context.Context, bookID string) (*domain.Book, bool, error) {
	if strings.TrimSpace(bookID) == "" {
		return nil, false, nil
	}
	item, found, err := s.store.Get(ctx, TableBooks, bookKey(bookID))
	if err != nil {
		return nil, false, pkgerrors.NewDatabaseError("get book", err)
	}
	if !found {
		return nil, false, nil
	}
	return bookFromItem(item), true, nil
}

// List returns the whole catalog. Full-table scan; the Books table also
// holds ISBN references, which are filtered out by sort key.
func (s *BookService) List(ctx context.Context) ([]domain.Book, error) {
	items, err := s.store.Scan(ctx, TableBooks, 0)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list books", err)
	}

	books := make([]domain.Book, 0, len(items))
	for _, item := range items {
		if item.SortKey() != skBookMetadata {
			continue
		}
		books = append(books, *bookFromItem(item))
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Title < books[j].Title })
	return books, nil
}

// UpdateBookInput is a partial patch; nil fields are left untouched.
type UpdateBookInput struct {
	ISBN    *string
	Title   *string
	Authors *string
	Price   *float64
	Stock   *int
}

// Update patches a book. An ISBN change reserves the new reference before
// the old one is released, so a duplicate ISBN can never be created; the
// old reference delete is best-effort.
func (s *BookService) Update(ctx context.Context, bookID string, in UpdateBookInput) (*domain.Book, error) {
	current, found, err := s.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("book")
	}

	patch := store.Item{}
	if in.Title != nil {
		patch["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Authors != nil {
		patch["authors"] = strings.TrimSpace(*in.Authors)
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return nil, pkgerrors.NewValidationError("invalid price").WithCode("INVALID_PRICE")
		}
		patch["price"] = *in.Price
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return nil, pkgerrors.NewValidationError("invalid stock").WithCode("INVALID_STOCK")
		}
		patch["stock"] = *in.Stock
	}

	if in.ISBN != nil {
		newISBN := strings.TrimSpace(*in.ISBN)
		if newISBN == "" {
			return nil, pkgerrors.NewValidationError("missing field: isbn").WithCode("MISSING_FIELD")
		}
		if newISBN != current.ISBN {
			newRef := store.Item{
				store.AttrPartitionKey: isbnPK(newISBN),
				"bookId":               bookID,
				"isbn":                 newISBN,
			}
			err := s.store.Put(ctx, TableBooks, newRef, &store.PutOptions{IfNotExists: true})
			if errors.Is(err, store.ErrConditionFailed) {
				return nil, pkgerrors.NewConflictError("ISBN already exists")
			}
			if err != nil {
				return nil, pkgerrors.NewDatabaseError("reserve isbn", err)
			}

			oldKey := store.Key{PK: isbnPK(current.ISBN)}
			if err := s.store.Delete(ctx, TableBooks, oldKey); err != nil {
				s.logger.Warn("orphaned isbn reference left behind",
					zap.String("bookId", bookID),
					zap.String("isbn", current.ISBN),
					zap.Error(err),
				)
			}
			patch["isbn"] = newISBN
		}
	}

	if len(patch) == 0 {
		return current, nil
	}
	patch["updatedAt"] = time.Now().UTC().Format(time.RFC3339)

	updated, found, err := s.store.Update(ctx, TableBooks, bookKey(bookID), patch)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("update book", err)
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("book")
	}
	return bookFromItem(updated), nil
}

// Remove deletes a book and its ISBN reference. The reference delete is
// best-effort; an orphaned reference only blocks reusing the ISBN until
// pruned.
func (s *BookService) Remove(ctx context.Context, bookID string) error {
	current, found, err := s.Get(ctx, bookID)
	if err != nil {
		return err
	}
	if !found {
		return pkgerrors.NewNotFoundError("book")
	}

	if err := s.store.Delete(ctx, TableBooks, bookKey(bookID)); err != nil {
		return pkgerrors.NewDatabaseError("remove book", err)
	}

	refKey := store.Key{PK: isbnPK(current.ISBN)}
	if err := s.store.Delete(ctx, TableBooks, refKey); err != nil {
		s.logger.Warn("orphaned isbn reference left behind",
			zap.String("bookId", bookID),
			zap.String("isbn", current.ISBN),
			zap.Error(err),
		)
	}
	return nil
}
