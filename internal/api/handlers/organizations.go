package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/organization"
)

type OrganizationHandler struct {
	svc *organization.Service
}

func NewOrganizationHandler(svc *organization.Service) *OrganizationHandler {
	return &OrganizationHandler{svc: svc}
}

func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req organization.OrganizationInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	org, err := h.svc.CreateOrganization(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.svc.ListOrganizations(r.Context(), page(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "organizations", orgs, len(orgs))
}

func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	org, err := h.svc.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteOrganization(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *OrganizationHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req organization.UserInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.CreateUser(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *OrganizationHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context(), page(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "users", users, len(users))
}

func (h *OrganizationHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type assignRolesRequest struct {
	Roles []models.RoleName `json:"roles" validate:"required,min=1"`
}

func (h *OrganizationHandler) AssignRoles(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req assignRolesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.AssignRoles(r.Context(), id, req.Roles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
