package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/contract"
	"github.com/nikhilbhutani/rentalcore/internal/models"
)

type ContractHandler struct {
	svc *contract.Service
}

func NewContractHandler(svc *contract.Service) *ContractHandler {
	return &ContractHandler{svc: svc}
}

func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req contract.CreateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
	in := contract.ListInput{Status: models.ContractStatus(r.URL.Query().Get("status")), Page: page(r)}
	var err error
	if in.PropertyID, err = queryID(r, "property_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if in.RoomID, err = queryID(r, "room_id"); err != nil {
		writeError(w, r, err)
		return
	}
	contracts, err := h.svc.List(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "contracts", contracts, len(contracts))
}

func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.one(w, r, http.StatusOK, h.svc.Get)
}

func (h *ContractHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req contract.UpdateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.one(w, r, http.StatusOK, func(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
		return h.svc.Update(ctx, id, req)
	})
}

func (h *ContractHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.one(w, r, http.StatusOK, h.svc.Activate)
}

type endContractRequest struct {
	EndDate *time.Time `json:"end_date"`
}

func (h *ContractHandler) End(w http.ResponseWriter, r *http.Request) {
	var req endContractRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	h.one(w, r, http.StatusOK, func(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
		return h.svc.End(ctx, id, req.EndDate)
	})
}

func (h *ContractHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.one(w, r, http.StatusOK, h.svc.Cancel)
}

func (h *ContractHandler) one(w http.ResponseWriter, r *http.Request, status int, fn func(ctx context.Context, id uuid.UUID) (*models.Contract, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, c)
}

func (h *ContractHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req contract.MemberInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.AddMember(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type joinRequest struct {
	JoinCode string `json:"join_code" validate:"required,max=32"`
}

func (h *ContractHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.Join(r.Context(), req.JoinCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *ContractHandler) ApproveMember(w http.ResponseWriter, r *http.Request) {
	h.member(w, r, h.svc.ApproveMember)
}

func (h *ContractHandler) RejectMember(w http.ResponseWriter, r *http.Request) {
	h.member(w, r, h.svc.RejectMember)
}

func (h *ContractHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	h.member(w, r, h.svc.RemoveMember)
}

func (h *ContractHandler) member(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*models.ContractMember, error)) {
	id, err := pathID(r, "memberID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
