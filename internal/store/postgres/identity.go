package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/database"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

const (
	orgColumns        = "id, name, slug, currency, timezone, created_at, updated_at, deleted_at"
	userColumns       = "id, org_id, email, full_name, phone, password_hash, is_active, created_at, updated_at"
	roleColumns       = "id, name, created_at"
	permissionColumns = "id, module, action, created_at"
)

// insert writes one row. Tenant scoping of inserts is resolved by stamp
// before the values reach this point.
func insert(ctx context.Context, q database.Querier, table tenant.Table, columns string, args ...any) error {
	stmt := "INSERT INTO " + table.Name + " (" + columns + ") VALUES (" + placeholders(len(args)) + ")"
	if _, err := q.Exec(ctx, stmt, args...); err != nil {
		return wrap(err, "insert %s", table.Name)
	}
	return nil
}

func placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = "$" + strconv.Itoa(i+1)
	}
	return strings.Join(marks, ", ")
}

type orgRepo struct{ s *Store }

func (r orgRepo) Create(ctx context.Context, org *models.Organization) error {
	if err := stamp(ctx, &org.ID, nil, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return err
	}
	if !tenant.Allows(ctx, org.ID) {
		return apperr.Forbidden()
	}
	return insert(ctx, r.s.conn(ctx), tenant.Organizations, orgColumns,
		org.ID, org.Name, org.Slug, org.Currency, org.Timezone, org.CreatedAt, org.UpdatedAt, org.DeletedAt)
}

func (r orgRepo) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	sql, args := tenant.Select(ctx, tenant.Organizations, orgColumns).Where("id = ?", id).Build()
	return one[models.Organization](ctx, r.s.conn(ctx), sql, args, "organization")
}

func (r orgRepo) List(ctx context.Context, p store.Page) ([]models.Organization, error) {
	sql, args := page(tenant.Select(ctx, tenant.Organizations, orgColumns).OrderBy("name"), p).Build()
	return many[models.Organization](ctx, r.s.conn(ctx), sql, args, "organizations")
}

func (r orgRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	sql, args := tenant.Update(ctx, tenant.Organizations).
		SetExpr("deleted_at = now()").SetExpr("updated_at = now()").
		Where("id = ?", id).Build()
	tag, err := r.s.conn(ctx).Exec(ctx, sql, args...)
	return execExpectOne(tag, err, "delete organization %s", id)
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, u *models.User) error {
	if u.OrgID != nil {
		org, err := tenant.StampOrg(ctx, *u.OrgID)
		if err != nil {
			return err
		}
		u.OrgID = &org
	} else if s := tenant.FromContext(ctx); s.Scoped() {
		org := s.OrgID
		u.OrgID = &org
	}
	if err := stamp(ctx, &u.ID, nil, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return err
	}
	u.Email = strings.ToLower(u.Email)
	return insert(ctx, r.s.conn(ctx), tenant.Users, userColumns,
		u.ID, u.OrgID, u.Email, u.FullName, u.Phone, u.PasswordHash, u.IsActive, u.CreatedAt, u.UpdatedAt)
}

func (r userRepo) withRoles(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, len(users))
	index := make(map[uuid.UUID]int, len(users))
	for i, u := range users {
		ids[i] = u.ID.String()
		index[u.ID] = i
	}
	rows, err := r.s.conn(ctx).Query(ctx,
		`SELECT ur.user_id, ro.name FROM user_roles ur JOIN roles ro ON ro.id = ur.role_id
		 WHERE ur.user_id = ANY($1::uuid[]) ORDER BY ro.name`, ids)
	if err != nil {
		return wrap(err, "load user roles")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			userID uuid.UUID
			name   models.RoleName
		)
		if err := rows.Scan(&userID, &name); err != nil {
			return fmt.Errorf("scan user role: %w", err)
		}
		i := index[userID]
		users[i].Roles = append(users[i].Roles, name)
	}
	return rows.Err()
}

func (r userRepo) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	sql, args := tenant.Select(ctx, tenant.Users, userColumns).Where("id = ?", id).Build()
	u, err := one[models.User](ctx, r.s.conn(ctx), sql, args, "user")
	if err != nil {
		return nil, err
	}
	users := []models.User{*u}
	if err := r.withRoles(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	sql, args := tenant.Select(ctx, tenant.Users, userColumns).Where("email = ?", strings.ToLower(email)).Build()
	u, err := one[models.User](ctx, r.s.conn(ctx), sql, args, "user by email")
	if err != nil {
		return nil, err
	}
	users := []models.User{*u}
	if err := r.withRoles(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (r userRepo) List(ctx context.Context, p store.Page) ([]models.User, error) {
	sql, args := page(tenant.Select(ctx, tenant.Users, userColumns).OrderBy("created_at DESC"), p).Build()
	users, err := many[models.User](ctx, r.s.conn(ctx), sql, args, "users")
	if err != nil {
		return nil, err
	}
	return users, r.withRoles(ctx, users)
}

func (r userRepo) SetRoles(ctx context.Context, userID uuid.UUID, roles []models.RoleName) error {
	return r.s.InTx(ctx, func(ctx context.Context) error {
		if _, err := r.Get(ctx, userID); err != nil {
			return err
		}
		q := r.s.conn(ctx)
		if _, err := q.Exec(ctx, "DELETE FROM user_roles WHERE user_id = $1", userID); err != nil {
			return wrap(err, "clear user roles")
		}
		for _, name := range roles {
			tag, err := q.Exec(ctx,
				`INSERT INTO user_roles (user_id, role_id) SELECT $1, id FROM roles WHERE name = $2
				 ON CONFLICT DO NOTHING`, userID, name)
			if err != nil {
				return wrap(err, "assign role %s", name)
			}
			if tag.RowsAffected() == 0 {
				var known bool
				if err := q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)", name).Scan(&known); err != nil {
					return wrap(err, "check role %s", name)
				}
				if !known {
					return fmt.Errorf("role %q: %w", name, apperr.ErrNotFound)
				}
			}
		}
		return nil
	})
}

type permissionRepo struct{ s *Store }

func (r permissionRepo) FindOrCreatePermission(ctx context.Context, module, action string) (models.Permission, bool, error) {
	q := r.s.conn(ctx)
	p := models.Permission{ID: uuid.New(), Module: module, Action: action}
	tag, err := q.Exec(ctx,
		`INSERT INTO permissions (id, module, action) VALUES ($1, $2, $3)
		 ON CONFLICT (module, action) DO NOTHING`, p.ID, module, action)
	if err != nil {
		return p, false, wrap(err, "create permission %s %s", action, module)
	}
	sql, args := tenant.Select(ctx, tenant.Permissions, permissionColumns).
		Where("module = ?", module).Where("action = ?", action).Build()
	got, err := one[models.Permission](ctx, q, sql, args, "permission")
	if err != nil {
		return p, false, err
	}
	return *got, tag.RowsAffected() == 1, nil
}

func (r permissionRepo) FindOrCreateRole(ctx context.Context, name models.RoleName) (models.Role, bool, error) {
	q := r.s.conn(ctx)
	tag, err := q.Exec(ctx,
		"INSERT INTO roles (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING", uuid.New(), name)
	if err != nil {
		return models.Role{}, false, wrap(err, "create role %s", name)
	}
	sql, args := tenant.Select(ctx, tenant.Roles, roleColumns).Where("name = ?", name).Build()
	got, err := one[models.Role](ctx, q, sql, args, "role")
	if err != nil {
		return models.Role{}, false, err
	}
	return *got, tag.RowsAffected() == 1, nil
}

func (r permissionRepo) Grant(ctx context.Context, roleID, permissionID uuid.UUID) (bool, error) {
	tag, err := r.s.conn(ctx).Exec(ctx,
		"INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		roleID, permissionID)
	if err != nil {
		return false, wrap(err, "grant permission")
	}
	return tag.RowsAffected() == 1, nil
}

func (r permissionRepo) Grants(ctx context.Context, roles []models.RoleName) (map[models.RoleName][]models.Permission, error) {
	out := make(map[models.RoleName][]models.Permission, len(roles))
	if len(roles) == 0 {
		return out, nil
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	rows, err := r.s.conn(ctx).Query(ctx,
		`SELECT ro.name, p.id, p.module, p.action, p.created_at
		 FROM roles ro
		 JOIN role_permissions rp ON rp.role_id = ro.id
		 JOIN permissions p ON p.id = rp.permission_id
		 WHERE ro.name = ANY($1)
		 ORDER BY ro.name, p.module, p.action`, names)
	if err != nil {
		return nil, wrap(err, "load grants")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			role models.RoleName
			p    models.Permission
		)
		if err := rows.Scan(&role, &p.ID, &p.Module, &p.Action, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		out[role] = append(out[role], p)
	}
	return out, rows.Err()
}
