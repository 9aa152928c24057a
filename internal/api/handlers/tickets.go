package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/ticket"
)

type TicketHandler struct {
	svc *ticket.Service
}

func NewTicketHandler(svc *ticket.Service) *TicketHandler {
	return &TicketHandler{svc: svc}
}

func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ticket.CreateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	in := ticket.ListInput{Status: models.TicketStatus(r.URL.Query().Get("status")), Page: page(r)}
	var err error
	if in.PropertyID, err = queryID(r, "property_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if in.RoomID, err = queryID(r, "room_id"); err != nil {
		writeError(w, r, err)
		return
	}
	tickets, err := h.svc.List(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "tickets", tickets, len(tickets))
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ticket": t, "total_cost": ticket.TotalCost(t)})
}

func (h *TicketHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ticket.UpdateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type ticketStatusRequest struct {
	Status  models.TicketStatus `json:"status" validate:"required,oneof=OPEN RECEIVED IN_PROGRESS WAITING_PARTS DONE CANCELLED"`
	Message string              `json:"message" validate:"max=2000"`
}

func (h *TicketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ticketStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.UpdateStatus(r.Context(), id, req.Status, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type commentRequest struct {
	Message string `json:"message" validate:"required,max=5000"`
}

func (h *TicketHandler) AddEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req commentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := h.svc.AddEvent(r.Context(), id, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (h *TicketHandler) AddCost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ticket.CostInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.AddCost(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
