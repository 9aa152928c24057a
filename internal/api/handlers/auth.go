package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/nikhilbhutani/rentalcore/internal/auth"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
)

type AuthHandler struct {
	svc *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tok, err := h.svc.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password", "kind": "unauthorized"})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

// Me returns the authenticated user and the permissions held per role.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	s := rbac.SessionFrom(r.Context())
	if s == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "kind": "unauthorized"})
		return
	}
	perms := make(map[string][]string, len(s.Grants))
	for role, set := range s.Grants {
		names := []string{}
		for module, actions := range set {
			for action := range actions {
				names = append(names, string(action)+" "+string(module))
			}
		}
		sort.Strings(names)
		perms[string(role)] = names
	}
	resp := map[string]interface{}{"user": s.User, "permissions": perms}
	if c := auth.ClaimsFromContext(r.Context()); c != nil && c.ExpiresAt != nil {
		resp["token_expires_at"] = c.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}
