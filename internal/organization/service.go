// Package organization manages tenants of the platform and their users.
package organization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/audit"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
	"github.com/nikhilbhutani/rentalcore/internal/store"
)

type Service struct {
	store store.Store
	eval  *rbac.Evaluator
	audit *audit.Service
	cost  int
}

func NewService(st store.Store, eval *rbac.Evaluator, au *audit.Service) *Service {
	return &Service{store: st, eval: eval, audit: au, cost: bcrypt.DefaultCost}
}

type OrganizationInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	Slug     string `json:"slug" validate:"required,max=64"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
}

type UserInput struct {
	OrgID    *uuid.UUID        `json:"org_id"`
	Email    string            `json:"email" validate:"required,email"`
	FullName string            `json:"full_name" validate:"required,max=255"`
	Phone    string            `json:"phone" validate:"max=32"`
	Password string            `json:"password" validate:"required,min=8,max=72"`
	Roles    []models.RoleName `json:"roles" validate:"required,min=1"`
}

func (s *Service) CreateOrganization(ctx context.Context, in OrganizationInput) (*models.Organization, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleOrganization, nil); err != nil {
		return nil, err
	}
	org := &models.Organization{
		Name:     strings.TrimSpace(in.Name),
		Slug:     strings.ToLower(strings.TrimSpace(in.Slug)),
		Currency: strings.ToUpper(in.Currency),
		Timezone: in.Timezone,
	}
	if org.Currency == "" {
		org.Currency = "VND"
	}
	if org.Timezone == "" {
		org.Timezone = "UTC"
	}
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.Organizations().Create(ctx, org); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.BusinessRule("organization slug %q is taken", org.Slug)
			}
			return fmt.Errorf("create organization: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{OrgID: org.ID, Action: "created", ResourceType: "organization", ResourceID: &org.ID})
	})
	if err != nil {
		return nil, err
	}
	slog.Info("organization created", "org_id", org.ID, "slug", org.Slug)
	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	org, err := s.store.Organizations().Get(ctx, id)
	if err != nil {
		return nil, apperr.MapNotFound(err, "organization")
	}
	if err := s.eval.Authorize(ctx, rbac.ActionView, rbac.ModuleOrganization, org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *Service) ListOrganizations(ctx context.Context, page store.Page) ([]models.Organization, error) {
	if s.eval.ListScope(ctx, rbac.ModuleOrganization) != rbac.ListAll {
		return nil, apperr.Forbidden()
	}
	out, err := s.store.Organizations().List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return out, nil
}

func (s *Service) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	return s.store.InTx(ctx, func(ctx context.Context) error {
		org, err := s.store.Organizations().Get(ctx, id)
		if err != nil {
			return apperr.MapNotFound(err, "organization")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionDelete, rbac.ModuleOrganization, org); err != nil {
			return err
		}
		if err := s.store.Organizations().SoftDelete(ctx, id); err != nil {
			return fmt.Errorf("delete organization: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{OrgID: org.ID, Action: "deleted", ResourceType: "organization", ResourceID: &org.ID})
	})
}

// checkRoles rejects unknown roles and roles the actor may not hand out.
// Only global actors assign global roles; only owners assign owner.
func checkRoles(sess *rbac.Session, roles []models.RoleName) error {
	if len(roles) == 0 {
		return apperr.Validation("at least one role is required")
	}
	for _, r := range roles {
		if !r.Valid() {
			return apperr.Validation("unknown role %q", r)
		}
		if sess.Global() {
			continue
		}
		if r.IsGlobal() || (r == models.RoleOwner && !sess.User.HasRole(models.RoleOwner)) {
			return apperr.Forbidden()
		}
	}
	return nil
}

func hasGlobal(roles []models.RoleName) bool {
	return slices.ContainsFunc(roles, models.RoleName.IsGlobal)
}

// CreateUser stores a user with a bcrypt password hash. Organization users
// always belong to the actor's organization unless the actor is global.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleUser, nil); err != nil {
		return nil, err
	}
	sess := rbac.SessionFrom(ctx)
	if err := checkRoles(sess, in.Roles); err != nil {
		return nil, err
	}

	u := &models.User{
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		FullName: strings.TrimSpace(in.FullName),
		Phone:    in.Phone,
		IsActive: true,
	}
	switch {
	case !sess.Global():
		org := sess.OrgID()
		u.OrgID = &org
	case in.OrgID != nil:
		u.OrgID = in.OrgID
	case !hasGlobal(in.Roles):
		return nil, apperr.Validation("organization is required for non-admin users")
	}
	if u.OrgID != nil && hasGlobal(in.Roles) {
		return nil, apperr.Validation("admin users cannot belong to an organization")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	err = s.store.InTx(ctx, func(ctx context.Context) error {
		if u.OrgID != nil {
			if _, err := s.store.Organizations().Get(ctx, *u.OrgID); err != nil {
				return apperr.MapNotFound(err, "organization")
			}
		}
		if err := s.store.Users().Create(ctx, u); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.BusinessRule("email %q is already registered", u.Email)
			}
			return fmt.Errorf("create user: %w", err)
		}
		if err := s.store.Users().SetRoles(ctx, u.ID, in.Roles); err != nil {
			return fmt.Errorf("assign roles: %w", err)
		}
		u.Roles = in.Roles
		return s.audit.Log(ctx, audit.LogEntry{
			OrgID: u.OwnerOrgID(), Action: "created", ResourceType: "user", ResourceID: &u.ID,
			Details: models.Meta{"roles": joinRoles(in.Roles)},
		})
	})
	if err != nil {
		return nil, err
	}
	slog.Info("user created", "org_id", u.OwnerOrgID(), "user_id", u.ID)
	return u, nil
}

func joinRoles(roles []models.RoleName) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.store.Users().Get(ctx, id)
	if err != nil {
		return nil, apperr.MapNotFound(err, "user")
	}
	if sess := rbac.SessionFrom(ctx); sess != nil && sess.UserID() == u.ID {
		return u, nil
	}
	if err := s.eval.Authorize(ctx, rbac.ActionView, rbac.ModuleUser, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, page store.Page) ([]models.User, error) {
	if s.eval.ListScope(ctx, rbac.ModuleUser) != rbac.ListAll {
		return nil, apperr.Forbidden()
	}
	out, err := s.store.Users().List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// AssignRoles replaces the roles of a user.
func (s *Service) AssignRoles(ctx context.Context, userID uuid.UUID, roles []models.RoleName) (*models.User, error) {
	var u *models.User
	err := s.store.InTx(ctx, func(ctx context.Context) (err error) {
		if u, err = s.store.Users().Get(ctx, userID); err != nil {
			return apperr.MapNotFound(err, "user")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionUpdate, rbac.ModuleUser, u); err != nil {
			return err
		}
		if err := checkRoles(rbac.SessionFrom(ctx), roles); err != nil {
			return err
		}
		if hasGlobal(roles) != (u.OrgID == nil) {
			return apperr.BusinessRule("admin roles are reserved for users without an organization")
		}
		if err := s.store.Users().SetRoles(ctx, u.ID, roles); err != nil {
			return fmt.Errorf("assign roles: %w", err)
		}
		from := joinRoles(u.Roles)
		u.Roles = roles
		return s.audit.Log(ctx, audit.LogEntry{
			OrgID: u.OwnerOrgID(), Action: "roles_assigned", ResourceType: "user", ResourceID: &u.ID,
			Details: models.Meta{"from": from, "to": joinRoles(roles)},
		})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}
