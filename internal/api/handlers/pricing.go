package handlers

import (
	"net/http"
	"time"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/pricing"
)

type PricingHandler struct {
	svc *pricing.Service
}

func NewPricingHandler(svc *pricing.Service) *PricingHandler {
	return &PricingHandler{svc: svc}
}

func (h *PricingHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req pricing.ServiceInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	svc, err := h.svc.CreateService(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (h *PricingHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.svc.ListServices(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "services", services, len(services))
}

func (h *PricingHandler) GetService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	svc, err := h.svc.GetService(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (h *PricingHandler) AddRate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req pricing.RateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rate, err := h.svc.AddRate(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rate)
}

func (h *PricingHandler) ListRates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rates, err := h.svc.ListRates(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "rates", rates, len(rates))
}

// CurrentRate resolves the rate in force on ?as_of (YYYY-MM-DD, default
// today).
func (h *PricingHandler) CurrentRate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	asOf := time.Now().UTC()
	if s := r.URL.Query().Get("as_of"); s != "" {
		if asOf, err = time.Parse(time.DateOnly, s); err != nil {
			writeError(w, r, apperr.Validation("invalid as_of"))
			return
		}
	}
	// GetService authorizes the lookup.
	if _, err := h.svc.GetService(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	rate, err := h.svc.CurrentRate(r.Context(), id, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}
