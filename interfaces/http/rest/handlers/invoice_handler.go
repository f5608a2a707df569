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

// InvoiceHandler handles invoice HTTP requests.
type InvoiceHandler struct {
	invoices *services.InvoiceService
	logger   *zap.Logger
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoices *services.InvoiceService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		invoices: invoices,
		logger:   logger,
	}
}

// CreateInvoiceRequest represents the billing metadata for checkout
type CreateInvoiceRequest struct {
	LegalName string `json:"legalName" validate:"required"`
	Address   string `json:"address" validate:"required"`
	TaxID     string `json:"taxId" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	invoice, err := h.invoices.CreateFromCart(r.Context(), userID, domain.InvoiceMeta{
		LegalName: req.LegalName,
		Address:   req.Address,
		TaxID:     req.TaxID,
		Email:     req.Email,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, invoice)
}

// List handles GET /invoices
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	invoices, err := h.invoices.ListByUser(r.Context(), userID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, invoices)
}

// Get handles GET /invoices/{invoiceID}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	invoice, found, err := h.invoices.GetByID(r.Context(), userID, chi.URLParam(r, "invoiceID"))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	if !found {
		common.RespondError(w, http.StatusNotFound, "NOT_FOUND", "invoice not found")
		return
	}
	common.RespondJSON(w, http.StatusOK, invoice)
}
