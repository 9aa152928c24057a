package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

const (
	handoverColumns = "id, org_id, contract_id, room_id, type, status, note, meta, created_by, " +
		"confirmed_by_user_id, confirmed_at, locked_at, created_at, updated_at"
	handoverItemColumns = "id, org_id, handover_id, name, condition, quantity, note, created_at, updated_at"
	snapshotColumns     = "id, org_id, handover_id, meter_id, reading_value, captured_at, created_at, updated_at"
)

type handoverRepo struct{ s *Store }

func (r handoverRepo) Create(ctx context.Context, h *models.Handover) error {
	if err := stamp(ctx, &h.ID, &h.OrgID, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return err
	}
	if h.Status == "" {
		h.Status = models.HandoverDraft
	}
	h.Meta = meta(h.Meta)
	return insert(ctx, r.s.conn(ctx), tenant.Handovers, handoverColumns,
		h.ID, h.OrgID, h.ContractID, h.RoomID, h.Type, h.Status, h.Note, h.Meta, h.CreatedBy,
		h.ConfirmedBy, h.ConfirmedAt, h.LockedAt, h.CreatedAt, h.UpdatedAt)
}

func (r handoverRepo) get(ctx context.Context, id uuid.UUID, lock bool) (*models.Handover, error) {
	sel := tenant.Select(ctx, tenant.Handovers, handoverColumns).Where("id = ?", id)
	if lock {
		sel.ForUpdate()
	}
	sql, args := sel.Build()
	q := r.s.conn(ctx)
	h, err := one[models.Handover](ctx, q, sql, args, "handover")
	if err != nil {
		return nil, err
	}
	sql, args = tenant.Select(ctx, tenant.HandoverItems, handoverItemColumns).
		Where("handover_id = ?", id).OrderBy("created_at, id").Build()
	if h.Items, err = many[models.HandoverItem](ctx, q, sql, args, "handover items"); err != nil {
		return nil, err
	}
	sql, args = tenant.Select(ctx, tenant.HandoverSnapshots, snapshotColumns).
		Where("handover_id = ?", id).OrderBy("created_at, id").Build()
	if h.Snapshots, err = many[models.HandoverMeterSnapshot](ctx, q, sql, args, "meter snapshots"); err != nil {
		return nil, err
	}
	return h, nil
}

func (r handoverRepo) Get(ctx context.Context, id uuid.UUID) (*models.Handover, error) {
	return r.get(ctx, id, false)
}

func (r handoverRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Handover, error) {
	return r.get(ctx, id, true)
}

func (r handoverRepo) List(ctx context.Context, f store.HandoverFilter) ([]models.Handover, error) {
	sel := tenant.Select(ctx, tenant.Handovers, handoverColumns).OrderBy("created_at DESC")
	if f.ContractID != nil {
		sel.Where("contract_id = ?", *f.ContractID)
	}
	if f.RoomID != nil {
		sel.Where("room_id = ?", *f.RoomID)
	}
	anyOf(sel, "contract_id", f.ContractIDs)
	sql, args := page(sel, f.Page).Build()
	return many[models.Handover](ctx, r.s.conn(ctx), sql, args, "handovers")
}

func (r handoverRepo) Update(ctx context.Context, h *models.Handover) error {
	sql, args := tenant.Update(ctx, tenant.Handovers).
		Set("note", h.Note).Set("meta", meta(h.Meta)).
		SetExpr("updated_at = now()").
		Where("id = ?", h.ID).
		Returning(handoverColumns).Build()
	got, err := one[models.Handover](ctx, r.s.conn(ctx), sql, args, "handover")
	if err != nil {
		return err
	}
	got.Items, got.Snapshots = h.Items, h.Snapshots
	*h = *got
	return nil
}

func (r handoverRepo) Confirm(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	sql, args := tenant.Update(ctx, tenant.Handovers).
		Set("status", models.HandoverConfirmed).
		Set("confirmed_by_user_id", userID).Set("confirmed_at", at).Set("locked_at", at).
		SetExpr("updated_at = now()").
		Where("id = ?", id).
		Where("status = ?", models.HandoverDraft).
		Where("locked_at IS NULL").Build()
	q := r.s.conn(ctx)
	tag, err := q.Exec(ctx, sql, args...)
	if err = execExpectOne(tag, err, "confirm handover %s", id); err != nil {
		return conflictIfExists(ctx, q, err, tenant.Handovers, id)
	}
	return nil
}

func (r handoverRepo) AddItem(ctx context.Context, it *models.HandoverItem) error {
	if err := stamp(ctx, &it.ID, &it.OrgID, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return err
	}
	return insert(ctx, r.s.conn(ctx), tenant.HandoverItems, handoverItemColumns,
		it.ID, it.OrgID, it.HandoverID, it.Name, it.Condition, it.Quantity, it.Note, it.CreatedAt, it.UpdatedAt)
}

func (r handoverRepo) GetItem(ctx context.Context, id uuid.UUID) (*models.HandoverItem, error) {
	sql, args := tenant.Select(ctx, tenant.HandoverItems, handoverItemColumns).Where("id = ?", id).Build()
	return one[models.HandoverItem](ctx, r.s.conn(ctx), sql, args, "handover item")
}

func (r handoverRepo) UpdateItem(ctx context.Context, it *models.HandoverItem) error {
	sql, args := tenant.Update(ctx, tenant.HandoverItems).
		Set("name", it.Name).Set("condition", it.Condition).Set("quantity", it.Quantity).Set("note", it.Note).
		SetExpr("updated_at = now()").
		Where("id = ?", it.ID).
		Returning(handoverItemColumns).Build()
	got, err := one[models.HandoverItem](ctx, r.s.conn(ctx), sql, args, "handover item")
	if err != nil {
		return err
	}
	*it = *got
	return nil
}

func (r handoverRepo) DeleteItem(ctx context.Context, id uuid.UUID) error {
	sql, args := tenant.Delete(ctx, tenant.HandoverItems).Where("id = ?", id).Build()
	tag, err := r.s.conn(ctx).Exec(ctx, sql, args...)
	return execExpectOne(tag, err, "delete handover item %s", id)
}

func (r handoverRepo) UpsertSnapshot(ctx context.Context, s *models.HandoverMeterSnapshot) error {
	if err := stamp(ctx, &s.ID, &s.OrgID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return err
	}
	rows, err := r.s.conn(ctx).Query(ctx,
		"INSERT INTO "+tenant.HandoverSnapshots.Name+" ("+snapshotColumns+") VALUES ("+placeholders(8)+`)
		 ON CONFLICT (handover_id, meter_id) DO UPDATE
		 SET reading_value = EXCLUDED.reading_value, captured_at = EXCLUDED.captured_at, updated_at = now()
		 WHERE `+tenant.HandoverSnapshots.Name+".org_id = EXCLUDED.org_id RETURNING "+snapshotColumns,
		s.ID, s.OrgID, s.HandoverID, s.MeterID, s.ReadingValue, s.CapturedAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return wrap(err, "upsert meter snapshot")
	}
	got, err := pgxOne[models.HandoverMeterSnapshot](rows)
	if err != nil {
		return notFoundWrap(err, "upsert meter snapshot")
	}
	*s = got
	return nil
}

func (r handoverRepo) GetSnapshot(ctx context.Context, id uuid.UUID) (*models.HandoverMeterSnapshot, error) {
	sql, args := tenant.Select(ctx, tenant.HandoverSnapshots, snapshotColumns).Where("id = ?", id).Build()
	return one[models.HandoverMeterSnapshot](ctx, r.s.conn(ctx), sql, args, "meter snapshot")
}

func (r handoverRepo) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	sql, args := tenant.Delete(ctx, tenant.HandoverSnapshots).Where("id = ?", id).Build()
	tag, err := r.s.conn(ctx).Exec(ctx, sql, args...)
	return execExpectOne(tag, err, "delete meter snapshot %s", id)
}
