package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type orgRepo struct{ s *Store }

func (r orgRepo) Create(ctx context.Context, org *models.Organization) error {
	return r.s.with(ctx, func(st *state) error {
		if org.ID == uuid.Nil {
			org.ID = uuid.New()
		}
		if !tenant.Allows(ctx, org.ID) {
			return apperr.Forbidden()
		}
		taken := st.orgs.list(tenant.System(ctx), tenant.WithTrashed, func(o models.Organization) bool { return o.Slug == org.Slug })
		if len(taken) > 0 {
			return conflict("create organization %q", org.Slug)
		}
		now := r.s.now()
		org.CreatedAt, org.UpdatedAt = now, now
		st.orgs.insert(*org, st.next())
		return nil
	})
}

func (r orgRepo) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var out models.Organization
	err := r.s.with(ctx, func(st *state) (err error) {
		out, err = st.orgs.get(ctx, id, tenant.ActiveOnly)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r orgRepo) List(ctx context.Context, page store.Page) ([]models.Organization, error) {
	var out []models.Organization
	err := r.s.with(ctx, func(st *state) error {
		out = paginate(st.orgs.list(ctx, tenant.ActiveOnly, nil), page)
		return nil
	})
	return out, err
}

func (r orgRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.s.with(ctx, func(st *state) error {
		org, err := st.orgs.get(ctx, id, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		now := r.s.now()
		org.DeletedAt, org.UpdatedAt = &now, now
		return st.orgs.replace(ctx, org, tenant.ActiveOnly)
	})
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, u *models.User) error {
	return r.s.with(ctx, func(st *state) error {
		if u.OrgID != nil {
			org, err := tenant.StampOrg(ctx, *u.OrgID)
			if err != nil {
				return err
			}
			u.OrgID = &org
		} else if tenant.FromContext(ctx).Scoped() {
			org := tenant.OrgID(ctx)
			u.OrgID = &org
		}
		email := strings.ToLower(u.Email)
		if _, taken := st.users.first(tenant.System(ctx), func(x models.User) bool { return strings.EqualFold(x.Email, email) }); taken {
			return conflict("create user %q", email)
		}
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		u.Email = email
		now := r.s.now()
		u.CreatedAt, u.UpdatedAt = now, now
		st.users.insert(*u, st.next())
		return nil
	})
}

func (st *state) hydrateRoles(u *models.User) {
	u.Roles = nil
	for _, roleID := range st.userRoles[u.ID] {
		if e, ok := st.roles.rows[roleID]; ok {
			u.Roles = append(u.Roles, e.v.Name)
		}
	}
}

func (r userRepo) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var out models.User
	err := r.s.with(ctx, func(st *state) (err error) {
		if out, err = st.users.get(ctx, id, tenant.ActiveOnly); err != nil {
			return err
		}
		st.hydrateRoles(&out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var out models.User
	err := r.s.with(ctx, func(st *state) error {
		u, ok := st.users.first(ctx, func(x models.User) bool { return strings.EqualFold(x.Email, email) })
		if !ok {
			return fmt.Errorf("get user by email: %w", apperr.ErrNotFound)
		}
		out = u
		st.hydrateRoles(&out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r userRepo) List(ctx context.Context, page store.Page) ([]models.User, error) {
	var out []models.User
	err := r.s.with(ctx, func(st *state) error {
		out = paginate(st.users.list(ctx, tenant.ActiveOnly, nil), page)
		for i := range out {
			st.hydrateRoles(&out[i])
		}
		return nil
	})
	return out, err
}

func (r userRepo) SetRoles(ctx context.Context, userID uuid.UUID, roles []models.RoleName) error {
	return r.s.with(ctx, func(st *state) error {
		if _, err := st.users.get(ctx, userID, tenant.ActiveOnly); err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(roles))
		for _, name := range roles {
			role, ok := st.roles.first(ctx, func(x models.Role) bool { return x.Name == name })
			if !ok {
				return fmt.Errorf("role %q: %w", name, apperr.ErrNotFound)
			}
			if !contains(ids, role.ID) {
				ids = append(ids, role.ID)
			}
		}
		st.userRoles[userID] = ids
		return nil
	})
}

type permissionRepo struct{ s *Store }

func (r permissionRepo) FindOrCreatePermission(ctx context.Context, module, action string) (models.Permission, bool, error) {
	var (
		out     models.Permission
		created bool
	)
	err := r.s.with(ctx, func(st *state) error {
		if p, ok := st.permissions.first(ctx, func(p models.Permission) bool {
			return p.Module == module && p.Action == action
		}); ok {
			out = p
			return nil
		}
		out = models.Permission{ID: uuid.New(), Module: module, Action: action, CreatedAt: r.s.now()}
		st.permissions.insert(out, st.next())
		created = true
		return nil
	})
	return out, created, err
}

func (r permissionRepo) FindOrCreateRole(ctx context.Context, name models.RoleName) (models.Role, bool, error) {
	var (
		out     models.Role
		created bool
	)
	err := r.s.with(ctx, func(st *state) error {
		if role, ok := st.roles.first(ctx, func(x models.Role) bool { return x.Name == name }); ok {
			out = role
			return nil
		}
		out = models.Role{ID: uuid.New(), Name: name, CreatedAt: r.s.now()}
		st.roles.insert(out, st.next())
		created = true
		return nil
	})
	return out, created, err
}

func (r permissionRepo) Grant(ctx context.Context, roleID, permissionID uuid.UUID) (bool, error) {
	var created bool
	err := r.s.with(ctx, func(st *state) error {
		if _, ok := st.roles.rows[roleID]; !ok {
			return fmt.Errorf("grant role %s: %w", roleID, apperr.ErrNotFound)
		}
		if _, ok := st.permissions.rows[permissionID]; !ok {
			return fmt.Errorf("grant permission %s: %w", permissionID, apperr.ErrNotFound)
		}
		key := grantKey{roleID: roleID, permissionID: permissionID}
		if _, ok := st.grants[key]; ok {
			return nil
		}
		st.grants[key] = struct{}{}
		created = true
		return nil
	})
	return created, err
}

func (r permissionRepo) Grants(ctx context.Context, roles []models.RoleName) (map[models.RoleName][]models.Permission, error) {
	out := make(map[models.RoleName][]models.Permission, len(roles))
	err := r.s.with(ctx, func(st *state) error {
		for _, name := range roles {
			role, ok := st.roles.first(ctx, func(x models.Role) bool { return x.Name == name })
			if !ok {
				continue
			}
			perms := st.permissions.list(ctx, tenant.ActiveOnly, func(p models.Permission) bool {
				_, granted := st.grants[grantKey{roleID: role.ID, permissionID: p.ID}]
				return granted
			})
			out[name] = perms
		}
		return nil
	})
	return out, err
}
