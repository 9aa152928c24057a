package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

// Middleware authenticates bearer tokens and installs the request session
// and tenant scope. Organization users are always scoped to their own
// organization; platform users act unscoped unless they name an organization
// in the org header.
type Middleware struct {
	tokens    *Tokens
	store     store.Store
	loader    *rbac.Loader
	orgHeader string
}

func NewMiddleware(tokens *Tokens, st store.Store, loader *rbac.Loader, orgHeader string) *Middleware {
	if orgHeader == "" {
		orgHeader = "X-Org-ID"
	}
	return &Middleware{tokens: tokens, store: st, loader: loader, orgHeader: orgHeader}
}

func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractBearerToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}
		claims, err := m.tokens.Parse(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx, err := m.session(r.Context(), claims, r.Header.Get(m.orgHeader))
		if err != nil {
			switch {
			case errors.Is(err, ErrUnauthorized):
				writeError(w, http.StatusUnauthorized, "invalid token")
			case apperr.Is(err, apperr.KindForbidden):
				writeError(w, http.StatusForbidden, "organization header not allowed")
			case apperr.Is(err, apperr.KindNotFound), apperr.Is(err, apperr.KindValidation):
				writeError(w, http.StatusBadRequest, apperr.Message(err))
			default:
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}
		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) session(ctx context.Context, claims *Claims, orgHeader string) (context.Context, error) {
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	sys := tenant.System(ctx)
	u, err := m.store.Users().Get(sys, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrUnauthorized
	}
	s, err := m.loader.Load(ctx, *u)
	if err != nil {
		return nil, err
	}

	scoped := tenant.System(ctx)
	orgHeader = strings.TrimSpace(orgHeader)
	switch {
	case u.OrgID != nil:
		if orgHeader != "" && orgHeader != u.OrgID.String() {
			return nil, apperr.Forbidden()
		}
		scoped = tenant.WithOrg(ctx, *u.OrgID)
	case orgHeader != "":
		if !s.Global() {
			return nil, apperr.Forbidden()
		}
		orgID, err := uuid.Parse(orgHeader)
		if err != nil {
			return nil, apperr.Validation("invalid organization id")
		}
		if _, err := m.store.Organizations().Get(sys, orgID); err != nil {
			return nil, apperr.MapNotFound(err, "organization")
		}
		scoped = tenant.WithOrg(ctx, orgID)
	case !s.Global():
		// a user with neither organization nor global role owns nothing
		return nil, ErrUnauthorized
	}
	return rbac.WithSession(scoped, s), nil
}

type ctxKey struct{}

var claimsKey ctxKey

func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	kind := "unauthorized"
	switch status {
	case http.StatusForbidden:
		kind = string(apperr.KindForbidden)
	case http.StatusBadRequest:
		kind = string(apperr.KindValidation)
	case http.StatusInternalServerError:
		kind = string(apperr.KindInternal)
	}
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "kind": kind})
}
