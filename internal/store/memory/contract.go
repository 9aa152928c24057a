package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type contractRepo struct{ s *Store }

func (r contractRepo) Create(ctx context.Context, c *models.Contract) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &c.ID, &c.OrgID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return err
		}
		dup := st.contracts.list(tenant.System(ctx), tenant.WithTrashed, func(x models.Contract) bool {
			return x.JoinCode == c.JoinCode
		})
		if len(dup) > 0 {
			return conflict("create contract: join code")
		}
		c.Meta = cloneMeta(c.Meta)
		st.contracts.insert(*c, st.next())
		return nil
	})
}

func (st *state) contractMembers(ctx context.Context, contractID uuid.UUID) []models.ContractMember {
	rows := st.members.list(ctx, tenant.ActiveOnly, func(m models.ContractMember) bool { return m.ContractID == contractID })
	slices.Reverse(rows)
	return rows
}

func (r contractRepo) Get(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var out models.Contract
	err := r.s.with(ctx, func(st *state) (err error) {
		if out, err = st.contracts.get(ctx, id, tenant.ActiveOnly); err != nil {
			return err
		}
		out.Members = st.contractMembers(ctx, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r contractRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return r.Get(ctx, id)
}

func (r contractRepo) GetByJoinCode(ctx context.Context, code string) (*models.Contract, error) {
	var out models.Contract
	err := r.s.with(ctx, func(st *state) error {
		c, ok := st.contracts.first(ctx, func(x models.Contract) bool { return x.JoinCode == code })
		if !ok {
			return fmt.Errorf("get contract by join code: %w", apperr.ErrNotFound)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r contractRepo) List(ctx context.Context, f store.ContractFilter) ([]models.Contract, error) {
	var out []models.Contract
	err := r.s.with(ctx, func(st *state) error {
		rows := st.contracts.list(ctx, tenant.ActiveOnly, func(c models.Contract) bool {
			switch {
			case f.PropertyID != nil && c.PropertyID != *f.PropertyID:
				return false
			case f.RoomID != nil && c.RoomID != *f.RoomID:
				return false
			case f.Status != "" && c.Status != f.Status:
				return false
			case f.IDs != nil && !contains(f.IDs, c.ID):
				return false
			}
			return true
		})
		out = paginate(rows, f.Page)
		return nil
	})
	return out, err
}

func (r contractRepo) ActiveForRoom(ctx context.Context, roomID uuid.UUID) (*models.Contract, error) {
	var out models.Contract
	err := r.s.with(ctx, func(st *state) error {
		c, ok := st.contracts.first(ctx, func(x models.Contract) bool {
			return x.RoomID == roomID && x.Status == models.ContractActive
		})
		if !ok {
			return fmt.Errorf("active contract for room %s: %w", roomID, apperr.ErrNotFound)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r contractRepo) Update(ctx context.Context, c *models.Contract) error {
	return r.s.with(ctx, func(st *state) error {
		cur, err := st.contracts.get(ctx, c.ID, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		if c.Status == models.ContractActive && cur.Status != models.ContractActive {
			active := st.contracts.list(tenant.System(ctx), tenant.ActiveOnly, func(x models.Contract) bool {
				return x.RoomID == cur.RoomID && x.Status == models.ContractActive && x.ID != cur.ID
			})
			if len(active) > 0 {
				return conflict("activate contract %s", c.ID)
			}
		}
		cur.Status, cur.StartDate, cur.EndDate = c.Status, c.StartDate, c.EndDate
		cur.RentPrice, cur.DepositAmount, cur.BillingDay = c.RentPrice, c.DepositAmount, c.BillingDay
		cur.Note, cur.Meta = c.Note, cloneMeta(c.Meta)
		cur.UpdatedAt = r.s.now()
		members := c.Members
		*c = cur
		c.Members = members
		return st.contracts.replace(ctx, cur, tenant.ActiveOnly)
	})
}

func (r contractRepo) AddMember(ctx context.Context, m *models.ContractMember) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &m.ID, &m.OrgID, &m.CreatedAt); err != nil {
			return err
		}
		if _, err := st.contracts.get(ctx, m.ContractID, tenant.ActiveOnly); err != nil {
			return err
		}
		st.members.insert(*m, st.next())
		return nil
	})
}

func (r contractRepo) GetMember(ctx context.Context, id uuid.UUID) (*models.ContractMember, error) {
	var out models.ContractMember
	err := r.s.with(ctx, func(st *state) (err error) {
		out, err = st.members.get(ctx, id, tenant.ActiveOnly)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r contractRepo) UpdateMember(ctx context.Context, m *models.ContractMember) error {
	return r.s.with(ctx, func(st *state) error {
		cur, err := st.members.get(ctx, m.ID, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		cur.FullName, cur.Phone, cur.Role = m.FullName, m.Phone, m.Role
		cur.Status, cur.IsPrimary = m.Status, m.IsPrimary
		cur.JoinedAt, cur.LeftAt = m.JoinedAt, m.LeftAt
		*m = cur
		return st.members.replace(ctx, cur, tenant.ActiveOnly)
	})
}

func (r contractRepo) Members(ctx context.Context, contractID uuid.UUID) ([]models.ContractMember, error) {
	var out []models.ContractMember
	err := r.s.with(ctx, func(st *state) error {
		out = st.contractMembers(ctx, contractID)
		return nil
	})
	return out, err
}

func (r contractRepo) IsCurrentMember(ctx context.Context, contractID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.s.with(ctx, func(st *state) error {
		_, ok = st.members.first(ctx, func(m models.ContractMember) bool {
			return m.ContractID == contractID && m.UserID != nil && *m.UserID == userID && m.Current()
		})
		return nil
	})
	return ok, err
}

func (r contractRepo) MemberContractIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := r.s.with(ctx, func(st *state) error {
		rows := st.members.list(ctx, tenant.ActiveOnly, func(m models.ContractMember) bool {
			return m.UserID != nil && *m.UserID == userID && m.Current()
		})
		for _, m := range rows {
			if !contains(ids, m.ContractID) {
				ids = append(ids, m.ContractID)
			}
		}
		return nil
	})
	return ids, err
}
