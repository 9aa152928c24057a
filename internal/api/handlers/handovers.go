package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/rentalcore/internal/handover"
)

type HandoverHandler struct {
	svc *handover.Service
}

func NewHandoverHandler(svc *handover.Service) *HandoverHandler {
	return &HandoverHandler{svc: svc}
}

func (h *HandoverHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req handover.CreateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ho, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ho)
}

func (h *HandoverHandler) List(w http.ResponseWriter, r *http.Request) {
	in := handover.ListInput{Page: page(r)}
	var err error
	if in.ContractID, err = queryID(r, "contract_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if in.RoomID, err = queryID(r, "room_id"); err != nil {
		writeError(w, r, err)
		return
	}
	handovers, err := h.svc.List(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "handovers", handovers, len(handovers))
}

func (h *HandoverHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ho, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ho)
}

func (h *HandoverHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req handover.UpdateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ho, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ho)
}

func (h *HandoverHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ho, err := h.svc.Confirm(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ho)
}

func (h *HandoverHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req handover.ItemInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.svc.AddItem(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *HandoverHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "itemID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req handover.ItemInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.svc.UpdateItem(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *HandoverHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "itemID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteItem(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *HandoverHandler) UpsertSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req handover.SnapshotInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := h.svc.UpsertSnapshot(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *HandoverHandler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "snapshotID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteSnapshot(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
