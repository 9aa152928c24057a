package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/metering"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
)

type MeteringHandler struct {
	svc *metering.Service
}

func NewMeteringHandler(svc *metering.Service) *MeteringHandler {
	return &MeteringHandler{svc: svc}
}

func (h *MeteringHandler) CreateMeter(w http.ResponseWriter, r *http.Request) {
	var req metering.MeterInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.CreateMeter(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MeteringHandler) ListMeters(w http.ResponseWriter, r *http.Request) {
	roomID, err := queryID(r, "room_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	meters, err := h.svc.ListMeters(r.Context(), roomID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "meters", meters, len(meters))
}

func (h *MeteringHandler) GetMeter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.GetMeter(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MeteringHandler) CreateReading(w http.ResponseWriter, r *http.Request) {
	var req metering.ReadingInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rd, err := h.svc.CreateReading(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rd)
}

func dateParam(r *http.Request, name string) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, apperr.Validation("invalid %s", name)
	}
	return &t, nil
}

func (h *MeteringHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	f := store.ReadingFilter{Status: models.ReadingStatus(r.URL.Query().Get("status")), Page: page(r)}
	var err error
	if f.MeterID, err = queryID(r, "meter_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.RoomID, err = queryID(r, "room_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.From, err = dateParam(r, "from"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.To, err = dateParam(r, "to"); err != nil {
		writeError(w, r, err)
		return
	}
	readings, err := h.svc.ListReadings(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "readings", readings, len(readings))
}

func (h *MeteringHandler) GetReading(w http.ResponseWriter, r *http.Request) {
	h.reading(w, r, h.svc.GetReading)
}

func (h *MeteringHandler) UpdateReading(w http.ResponseWriter, r *http.Request) {
	var req metering.ReadingPatch
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.reading(w, r, func(ctx context.Context, id uuid.UUID) (*models.MeterReading, error) {
		return h.svc.UpdateReading(ctx, id, req)
	})
}

func (h *MeteringHandler) SubmitReading(w http.ResponseWriter, r *http.Request) {
	h.reading(w, r, h.svc.SubmitReading)
}

func (h *MeteringHandler) ApproveReading(w http.ResponseWriter, r *http.Request) {
	h.reading(w, r, h.svc.ApproveReading)
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func (h *MeteringHandler) RejectReading(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.reading(w, r, func(ctx context.Context, id uuid.UUID) (*models.MeterReading, error) {
		return h.svc.RejectReading(ctx, id, req.Reason)
	})
}

func (h *MeteringHandler) LockReading(w http.ResponseWriter, r *http.Request) {
	h.reading(w, r, h.svc.LockReading)
}

func (h *MeteringHandler) Consumption(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.ReadingConsumption(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *MeteringHandler) reading(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*models.MeterReading, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rd, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

func (h *MeteringHandler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req metering.AdjustmentInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.svc.CreateAdjustment(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *MeteringHandler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	f := store.AdjustmentFilter{Status: models.AdjustmentStatus(r.URL.Query().Get("status")), Page: page(r)}
	var err error
	if f.ReadingID, err = queryID(r, "reading_id"); err != nil {
		writeError(w, r, err)
		return
	}
	notes, err := h.svc.ListAdjustments(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "adjustments", notes, len(notes))
}

func (h *MeteringHandler) GetAdjustment(w http.ResponseWriter, r *http.Request) {
	h.adjustment(w, r, h.svc.GetAdjustment)
}

func (h *MeteringHandler) ApproveAdjustment(w http.ResponseWriter, r *http.Request) {
	h.adjustment(w, r, h.svc.ApproveAdjustment)
}

func (h *MeteringHandler) RejectAdjustment(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.adjustment(w, r, func(ctx context.Context, id uuid.UUID) (*models.AdjustmentNote, error) {
		return h.svc.RejectAdjustment(ctx, id, req.Reason)
	})
}

func (h *MeteringHandler) adjustment(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*models.AdjustmentNote, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
