package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/property"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type PropertyHandler struct {
	svc *property.Service
}

func NewPropertyHandler(svc *property.Service) *PropertyHandler {
	return &PropertyHandler{svc: svc}
}

func trashed(r *http.Request) tenant.Trashed {
	return tenant.ParseTrashed(r.URL.Query().Get("trashed"))
}

func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req property.PropertyInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.CreateProperty(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PropertyHandler) List(w http.ResponseWriter, r *http.Request) {
	props, err := h.svc.ListProperties(r.Context(), trashed(r), page(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "properties", props, len(props))
}

func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.GetProperty(r.Context(), id, trashed(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PropertyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req property.PropertyInput
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.UpdateProperty(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PropertyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	byID(w, r, "deleted", h.svc.DeleteProperty)
}

func (h *PropertyHandler) Restore(w http.ResponseWriter, r *http.Request) {
	byID(w, r, "restored", h.svc.RestoreProperty)
}

func (h *PropertyHandler) ForceDelete(w http.ResponseWriter, r *http.Request) {
	byID(w, r, "deleted", h.svc.ForceDeleteProperty)
}

func (h *PropertyHandler) CreateFloor(w http.ResponseWriter, r *http.Request) {
	var req property.FloorInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.svc.CreateFloor(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *PropertyHandler) ListFloors(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	floors, err := h.svc.ListFloors(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "floors", floors, len(floors))
}

func (h *PropertyHandler) DeleteFloor(w http.ResponseWriter, r *http.Request) {
	byID(w, r, "deleted", h.svc.DeleteFloor)
}

func (h *PropertyHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req property.RoomInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	room, err := h.svc.CreateRoom(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *PropertyHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	f := store.RoomFilter{
		Status:  models.RoomStatus(r.URL.Query().Get("status")),
		Trashed: trashed(r),
		Page:    page(r),
	}
	var err error
	if f.PropertyID, err = queryID(r, "property_id"); err != nil {
		writeError(w, r, err)
		return
	}
	rooms, err := h.svc.ListRooms(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "rooms", rooms, len(rooms))
}

func (h *PropertyHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	room, err := h.svc.GetRoom(r.Context(), id, trashed(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

type updateRoomRequest struct {
	property.RoomInput
	Status models.RoomStatus `json:"status"`
}

func (h *PropertyHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	room, err := h.svc.UpdateRoom(r.Context(), id, req.RoomInput, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *PropertyHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	byID(w, r, "deleted", h.svc.DeleteRoom)
}

func (h *PropertyHandler) RestoreRoom(w http.ResponseWriter, r *http.Request) {
	byID(w, r, "restored", h.svc.RestoreRoom)
}

func (h *PropertyHandler) ForceDeleteRoom(w http.ResponseWriter, r *http.Request) {
	byID(w, r, "deleted", h.svc.ForceDeleteRoom)
}
