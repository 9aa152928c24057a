package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nikhilbhutani/rentalcore/internal/invoice"
	"github.com/nikhilbhutani/rentalcore/internal/models"
)

type InvoiceHandler struct {
	svc *invoice.Service
}

func NewInvoiceHandler(svc *invoice.Service) *InvoiceHandler {
	return &InvoiceHandler{svc: svc}
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req invoice.CreateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InvoiceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req invoice.GenerateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.svc.GenerateForContract(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	in := invoice.ListInput{Status: models.InvoiceStatus(r.URL.Query().Get("status")), Page: page(r)}
	var err error
	if in.PropertyID, err = queryID(r, "property_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if in.ContractID, err = queryID(r, "contract_id"); err != nil {
		writeError(w, r, err)
		return
	}
	invoices, err := h.svc.List(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "invoices", invoices, len(invoices))
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.one(w, r, h.svc.Get)
}

func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req invoice.UpdateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.one(w, r, func(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
		return h.svc.Update(ctx, id, req)
	})
}

func (h *InvoiceHandler) Issue(w http.ResponseWriter, r *http.Request) {
	h.one(w, r, h.svc.Issue)
}

func (h *InvoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.one(w, r, h.svc.Cancel)
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *InvoiceHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.one(w, r, func(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
		return h.svc.RecordPayment(ctx, id, req.Amount)
	})
}

func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	byID(w, r, "deleted", h.svc.Delete)
}

func (h *InvoiceHandler) one(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*models.Invoice, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
