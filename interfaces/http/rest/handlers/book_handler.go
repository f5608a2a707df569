package handlers

import (
	"encoding/json"
	"net/http"

	"libreria/application/services"
	"libreria/domain"
	"libreria/pkg/common"
	"libreria/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BookHandler handles catalog HTTP requests.
type BookHandler struct {
	books  *services.BookService
	logger *zap.Logger
}

// NewBookHandler creates a new book handler
func NewBookHandler(books *services.BookService, logger *zap.Logger) *BookHandler {
	return &BookHandler{
		books:  books,
		logger: logger,
	}
}

// CreateBookRequest represents the request body for adding a book
type CreateBookRequest struct {
	ISBN    string  `json:"isbn" validate:"required"`
	Title   string  `json:"title" validate:"required"`
	Authors string  `json:"authors" validate:"required"`
	Price   float64 `json:"price" validate:"required,gt=0"`
	Stock   int     `json:"stock" validate:"required,gt=0"`
}

// UpdateBookRequest represents the request body for patching a book
type UpdateBookRequest struct {
	ISBN    *string  `json:"isbn,omitempty"`
	Title   *string  `json:"title,omitempty"`
	Authors *string  `json:"authors,omitempty"`
	Price   *float64 `json:"price,omitempty"`
	Stock   *int     `json:"stock,omitempty"`
}

// List handles GET /books
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.List(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, books)
}

// Get handles GET /books/{bookID}
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	book, found, err := h.books.Get(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	if !found {
		common.RespondError(w, http.StatusNotFound, "NOT_FOUND", "book not found")
		return
	}
	common.RespondJSON(w, http.StatusOK, book)
}

// Create handles POST /books
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	book, err := h.books.Add(r.Context(), domain.Book{
		ISBN:    req.ISBN,
		Title:   req.Title,
		Authors: req.Authors,
		Price:   req.Price,
		Stock:   req.Stock,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, book)
}

// Update handles PUT /books/{bookID}
func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	book, err := h.books.Update(r.Context(), chi.URLParam(r, "bookID"), services.UpdateBookInput{
		ISBN:    req.ISBN,
		Title:   req.Title,
		Authors: req.Authors,
		Price:   req.Price,
		Stock:   req.Stock,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, book)
}

// Delete handles DELETE /books/{bookID}
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.books.Remove(r.Context(), chi.URLParam(r, "bookID")); err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
