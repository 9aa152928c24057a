package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type handoverRepo struct{ s *Store }

func (r handoverRepo) Create(ctx context.Context, h *models.Handover) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &h.ID, &h.OrgID, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return err
		}
		h.Meta = cloneMeta(h.Meta)
		st.handovers.insert(*h, st.next())
		return nil
	})
}

func (r handoverRepo) Get(ctx context.Context, id uuid.UUID) (*models.Handover, error) {
	var out models.Handover
	err := r.s.with(ctx, func(st *state) (err error) {
		if out, err = st.handovers.get(ctx, id, tenant.ActiveOnly); err != nil {
			return err
		}
		out.Items = st.hoItems.list(ctx, tenant.ActiveOnly, func(it models.HandoverItem) bool { return it.HandoverID == id })
		slices.Reverse(out.Items)
		out.Snapshots = st.snapshots.list(ctx, tenant.ActiveOnly, func(s models.HandoverMeterSnapshot) bool { return s.HandoverID == id })
		slices.Reverse(out.Snapshots)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r handoverRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Handover, error) {
	return r.Get(ctx, id)
}

func (r handoverRepo) List(ctx context.Context, f store.HandoverFilter) ([]models.Handover, error) {
	var out []models.Handover
	err := r.s.with(ctx, func(st *state) error {
		rows := st.handovers.list(ctx, tenant.ActiveOnly, func(h models.Handover) bool {
			switch {
			case f.ContractID != nil && h.ContractID != *f.ContractID:
				return false
			case f.RoomID != nil && h.RoomID != *f.RoomID:
				return false
			case f.ContractIDs != nil && !contains(f.ContractIDs, h.ContractID):
				return false
			}
			return true
		})
		out = paginate(rows, f.Page)
		return nil
	})
	return out, err
}

func (r handoverRepo) Update(ctx context.Context, h *models.Handover) error {
	return r.s.with(ctx, func(st *state) error {
		cur, err := st.handovers.get(ctx, h.ID, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		cur.Note, cur.Meta = h.Note, cloneMeta(h.Meta)
		cur.UpdatedAt = r.s.now()
		items, snaps := h.Items, h.Snapshots
		*h = cur
		h.Items, h.Snapshots = items, snaps
		return st.handovers.replace(ctx, cur, tenant.ActiveOnly)
	})
}

func (r handoverRepo) Confirm(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	return r.s.with(ctx, func(st *state) error {
		h, err := st.handovers.get(ctx, id, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		if !h.Mutable() {
			return conflict("confirm handover %s", id)
		}
		h.Status = models.HandoverConfirmed
		h.ConfirmedBy, h.ConfirmedAt, h.LockedAt = &userID, &at, &at
		h.UpdatedAt = r.s.now()
		return st.handovers.replace(ctx, h, tenant.ActiveOnly)
	})
}

func (r handoverRepo) AddItem(ctx context.Context, it *models.HandoverItem) error {
	return r.s.with(ctx, func(st *state) error {
		if _, err := st.handovers.get(ctx, it.HandoverID, tenant.ActiveOnly); err != nil {
			return err
		}
		if err := r.s.stamp(ctx, &it.ID, &it.OrgID, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return err
		}
		st.hoItems.insert(*it, st.next())
		return nil
	})
}

func (r handoverRepo) GetItem(ctx context.Context, id uuid.UUID) (*models.HandoverItem, error) {
	var out models.HandoverItem
	err := r.s.with(ctx, func(st *state) (err error) {
		out, err = st.hoItems.get(ctx, id, tenant.ActiveOnly)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r handoverRepo) UpdateItem(ctx context.Context, it *models.HandoverItem) error {
	return r.s.with(ctx, func(st *state) error {
		cur, err := st.hoItems.get(ctx, it.ID, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		cur.Name, cur.Condition, cur.Quantity, cur.Note = it.Name, it.Condition, it.Quantity, it.Note
		cur.UpdatedAt = r.s.now()
		*it = cur
		return st.hoItems.replace(ctx, cur, tenant.ActiveOnly)
	})
}

func (r handoverRepo) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return r.s.with(ctx, func(st *state) error {
		return st.hoItems.remove(ctx, id)
	})
}

func (r handoverRepo) UpsertSnapshot(ctx context.Context, s *models.HandoverMeterSnapshot) error {
	return r.s.with(ctx, func(st *state) error {
		if _, err := st.handovers.get(ctx, s.HandoverID, tenant.ActiveOnly); err != nil {
			return err
		}
		if cur, ok := st.snapshots.first(ctx, func(x models.HandoverMeterSnapshot) bool {
			return x.HandoverID == s.HandoverID && x.MeterID == s.MeterID
		}); ok {
			cur.ReadingValue, cur.CapturedAt = s.ReadingValue, s.CapturedAt
			cur.UpdatedAt = r.s.now()
			*s = cur
			return st.snapshots.replace(ctx, cur, tenant.ActiveOnly)
		}
		if err := r.s.stamp(ctx, &s.ID, &s.OrgID, &s.CreatedAt, &s.UpdatedAt, &s.CapturedAt); err != nil {
			return err
		}
		st.snapshots.insert(*s, st.next())
		return nil
	})
}

func (r handoverRepo) GetSnapshot(ctx context.Context, id uuid.UUID) (*models.HandoverMeterSnapshot, error) {
	var out models.HandoverMeterSnapshot
	err := r.s.with(ctx, func(st *state) (err error) {
		out, err = st.snapshots.get(ctx, id, tenant.ActiveOnly)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r handoverRepo) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	return r.s.with(ctx, func(st *state) error {
		return st.snapshots.remove(ctx, id)
	})
}
