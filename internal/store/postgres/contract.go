package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

const (
	contractColumns = "id, org_id, property_id, room_id, code, status, start_date, end_date, rent_price, " +
		"deposit_amount, billing_day, join_code, note, meta, created_by, created_at, updated_at"
	memberColumns = "id, org_id, contract_id, user_id, full_name, phone, role, status, is_primary, joined_at, left_at, created_at"
)

type contractRepo struct{ s *Store }

func (r contractRepo) Create(ctx context.Context, c *models.Contract) error {
	if err := stamp(ctx, &c.ID, &c.OrgID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return err
	}
	c.Meta = meta(c.Meta)
	return insert(ctx, r.s.conn(ctx), tenant.Contracts, contractColumns,
		c.ID, c.OrgID, c.PropertyID, c.RoomID, c.Code, c.Status, c.StartDate, c.EndDate, c.RentPrice,
		c.DepositAmount, c.BillingDay, c.JoinCode, c.Note, c.Meta, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
}

func (r contractRepo) get(ctx context.Context, id uuid.UUID, lock bool) (*models.Contract, error) {
	sel := tenant.Select(ctx, tenant.Contracts, contractColumns).Where("id = ?", id)
	if lock {
		sel.ForUpdate()
	}
	sql, args := sel.Build()
	c, err := one[models.Contract](ctx, r.s.conn(ctx), sql, args, "contract")
	if err != nil {
		return nil, err
	}
	if c.Members, err = r.Members(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

func (r contractRepo) Get(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return r.get(ctx, id, false)
}

func (r contractRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return r.get(ctx, id, true)
}

func (r contractRepo) GetByJoinCode(ctx context.Context, code string) (*models.Contract, error) {
	sql, args := tenant.Select(ctx, tenant.Contracts, contractColumns).Where("join_code = ?", code).Build()
	return one[models.Contract](ctx, r.s.conn(ctx), sql, args, "contract by join code")
}

func (r contractRepo) List(ctx context.Context, f store.ContractFilter) ([]models.Contract, error) {
	sel := tenant.Select(ctx, tenant.Contracts, contractColumns).OrderBy("created_at DESC")
	if f.PropertyID != nil {
		sel.Where("property_id = ?", *f.PropertyID)
	}
	if f.RoomID != nil {
		sel.Where("room_id = ?", *f.RoomID)
	}
	if f.Status != "" {
		sel.Where("status = ?", f.Status)
	}
	anyOf(sel, "id", f.IDs)
	sql, args := page(sel, f.Page).Build()
	return many[models.Contract](ctx, r.s.conn(ctx), sql, args, "contracts")
}

func (r contractRepo) ActiveForRoom(ctx context.Context, roomID uuid.UUID) (*models.Contract, error) {
	sql, args := tenant.Select(ctx, tenant.Contracts, contractColumns).
		Where("room_id = ?", roomID).Where("status = ?", models.ContractActive).Limit(1).Build()
	c, err := one[models.Contract](ctx, r.s.conn(ctx), sql, args, "active contract")
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", roomID, err)
	}
	return c, nil
}

func (r contractRepo) Update(ctx context.Context, c *models.Contract) error {
	sql, args := tenant.Update(ctx, tenant.Contracts).
		Set("status", c.Status).Set("start_date", c.StartDate).Set("end_date", c.EndDate).
		Set("rent_price", c.RentPrice).Set("deposit_amount", c.DepositAmount).Set("billing_day", c.BillingDay).
		Set("note", c.Note).Set("meta", meta(c.Meta)).
		SetExpr("updated_at = now()").
		Where("id = ?", c.ID).
		Returning(contractColumns).Build()
	got, err := one[models.Contract](ctx, r.s.conn(ctx), sql, args, "contract")
	if err != nil {
		return err
	}
	got.Members = c.Members
	*c = *got
	return nil
}

func (r contractRepo) AddMember(ctx context.Context, m *models.ContractMember) error {
	if err := stamp(ctx, &m.ID, &m.OrgID, &m.CreatedAt); err != nil {
		return err
	}
	return insert(ctx, r.s.conn(ctx), tenant.ContractMembers, memberColumns,
		m.ID, m.OrgID, m.ContractID, m.UserID, m.FullName, m.Phone, m.Role, m.Status, m.IsPrimary,
		m.JoinedAt, m.LeftAt, m.CreatedAt)
}

func (r contractRepo) GetMember(ctx context.Context, id uuid.UUID) (*models.ContractMember, error) {
	sql, args := tenant.Select(ctx, tenant.ContractMembers, memberColumns).Where("id = ?", id).Build()
	return one[models.ContractMember](ctx, r.s.conn(ctx), sql, args, "contract member")
}

func (r contractRepo) UpdateMember(ctx context.Context, m *models.ContractMember) error {
	sql, args := tenant.Update(ctx, tenant.ContractMembers).
		Set("full_name", m.FullName).Set("phone", m.Phone).Set("role", m.Role).
		Set("status", m.Status).Set("is_primary", m.IsPrimary).
		Set("joined_at", m.JoinedAt).Set("left_at", m.LeftAt).
		Where("id = ?", m.ID).
		Returning(memberColumns).Build()
	got, err := one[models.ContractMember](ctx, r.s.conn(ctx), sql, args, "contract member")
	if err != nil {
		return err
	}
	*m = *got
	return nil
}

func (r contractRepo) Members(ctx context.Context, contractID uuid.UUID) ([]models.ContractMember, error) {
	sql, args := tenant.Select(ctx, tenant.ContractMembers, memberColumns).
		Where("contract_id = ?", contractID).OrderBy("created_at").Build()
	return many[models.ContractMember](ctx, r.s.conn(ctx), sql, args, "contract members")
}

func (r contractRepo) currentMembers(ctx context.Context, userID uuid.UUID) *tenant.SelectQuery {
	return tenant.Select(ctx, tenant.ContractMembers, "contract_id").
		Where("user_id = ?", userID).
		Where("status = ?", models.MemberApproved).
		Where("left_at IS NULL")
}

func (r contractRepo) IsCurrentMember(ctx context.Context, contractID, userID uuid.UUID) (bool, error) {
	return exists(ctx, r.s.conn(ctx), r.currentMembers(ctx, userID).Where("contract_id = ?", contractID), "contract membership")
}

func (r contractRepo) MemberContractIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	sql, args := r.currentMembers(ctx, userID).Build()
	rows, err := r.s.conn(ctx).Query(ctx, "SELECT DISTINCT contract_id FROM ("+sql+") m", args...)
	if err != nil {
		return nil, wrap(err, "list member contracts")
	}
	defer rows.Close()
	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member contract: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
