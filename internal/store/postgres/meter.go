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
	meterColumns   = "id, org_id, room_id, type, serial_number, is_active, created_at"
	readingColumns = "id, org_id, meter_id, room_id, period_start, period_end, reading_value, status, reject_reason, " +
		"created_by, approved_by, approved_at, locked_at, created_at, updated_at"
	adjustmentColumns = "id, org_id, meter_reading_id, before_value, after_value, reason, status, requested_by, " +
		"approved_by, approved_at, rejected_by, rejected_at, reject_reason, created_at, updated_at"
)

type meterRepo struct{ s *Store }

func (r meterRepo) CreateMeter(ctx context.Context, m *models.Meter) error {
	if err := stamp(ctx, &m.ID, &m.OrgID, &m.CreatedAt); err != nil {
		return err
	}
	return insert(ctx, r.s.conn(ctx), tenant.Meters, meterColumns,
		m.ID, m.OrgID, m.RoomID, m.Type, m.SerialNumber, m.IsActive, m.CreatedAt)
}

func (r meterRepo) GetMeter(ctx context.Context, id uuid.UUID) (*models.Meter, error) {
	sql, args := tenant.Select(ctx, tenant.Meters, meterColumns).Where("id = ?", id).Build()
	return one[models.Meter](ctx, r.s.conn(ctx), sql, args, "meter")
}

func (r meterRepo) ListMeters(ctx context.Context, roomID *uuid.UUID) ([]models.Meter, error) {
	sel := tenant.Select(ctx, tenant.Meters, meterColumns).OrderBy("created_at")
	if roomID != nil {
		sel.Where("room_id = ?", *roomID)
	}
	sql, args := sel.Build()
	return many[models.Meter](ctx, r.s.conn(ctx), sql, args, "meters")
}

func (r meterRepo) CreateReading(ctx context.Context, rd *models.MeterReading) error {
	if err := stamp(ctx, &rd.ID, &rd.OrgID, &rd.CreatedAt, &rd.UpdatedAt); err != nil {
		return err
	}
	return insert(ctx, r.s.conn(ctx), tenant.MeterReadings, readingColumns,
		rd.ID, rd.OrgID, rd.MeterID, rd.RoomID, rd.PeriodStart, rd.PeriodEnd, rd.ReadingValue, rd.Status,
		rd.RejectReason, rd.CreatedBy, rd.ApprovedBy, rd.ApprovedAt, rd.LockedAt, rd.CreatedAt, rd.UpdatedAt)
}

func (r meterRepo) getReading(ctx context.Context, id uuid.UUID, lock bool) (*models.MeterReading, error) {
	sel := tenant.Select(ctx, tenant.MeterReadings, readingColumns).Where("id = ?", id)
	if lock {
		sel.ForUpdate()
	}
	sql, args := sel.Build()
	return one[models.MeterReading](ctx, r.s.conn(ctx), sql, args, "meter reading")
}

func (r meterRepo) GetReading(ctx context.Context, id uuid.UUID) (*models.MeterReading, error) {
	return r.getReading(ctx, id, false)
}

func (r meterRepo) GetReadingForUpdate(ctx context.Context, id uuid.UUID) (*models.MeterReading, error) {
	return r.getReading(ctx, id, true)
}

func (r meterRepo) ListReadings(ctx context.Context, f store.ReadingFilter) ([]models.MeterReading, error) {
	sel := tenant.Select(ctx, tenant.MeterReadings, readingColumns).OrderBy("period_start DESC")
	if f.MeterID != nil {
		sel.Where("meter_id = ?", *f.MeterID)
	}
	if f.RoomID != nil {
		sel.Where("room_id = ?", *f.RoomID)
	}
	if f.Status != "" {
		sel.Where("status = ?", f.Status)
	}
	if f.From != nil {
		sel.Where("period_start >= ?", *f.From)
	}
	if f.To != nil {
		sel.Where("period_start <= ?", *f.To)
	}
	sql, args := page(sel, f.Page).Build()
	return many[models.MeterReading](ctx, r.s.conn(ctx), sql, args, "meter readings")
}

func (r meterRepo) PreviousReading(ctx context.Context, meterID uuid.UUID, before time.Time) (*models.MeterReading, error) {
	sql, args := tenant.Select(ctx, tenant.MeterReadings, readingColumns).
		Where("meter_id = ?", meterID).Where("period_start < ?", before).
		OrderBy("period_start DESC").Limit(1).Build()
	return one[models.MeterReading](ctx, r.s.conn(ctx), sql, args, "previous reading")
}

func (r meterRepo) UpdateReading(ctx context.Context, rd *models.MeterReading) error {
	sql, args := tenant.Update(ctx, tenant.MeterReadings).
		Set("period_end", rd.PeriodEnd).Set("reading_value", rd.ReadingValue).Set("status", rd.Status).
		Set("reject_reason", rd.RejectReason).Set("approved_by", rd.ApprovedBy).Set("approved_at", rd.ApprovedAt).
		Set("locked_at", rd.LockedAt).
		SetExpr("updated_at = now()").
		Where("id = ?", rd.ID).
		Returning(readingColumns).Build()
	got, err := one[models.MeterReading](ctx, r.s.conn(ctx), sql, args, "meter reading")
	if err != nil {
		return err
	}
	*rd = *got
	return nil
}

func (r meterRepo) CreateAdjustment(ctx context.Context, n *models.AdjustmentNote) error {
	if err := stamp(ctx, &n.ID, &n.OrgID, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return err
	}
	return insert(ctx, r.s.conn(ctx), tenant.AdjustmentNotes, adjustmentColumns,
		n.ID, n.OrgID, n.MeterReadingID, n.BeforeValue, n.AfterValue, n.Reason, n.Status, n.RequestedBy,
		n.ApprovedBy, n.ApprovedAt, n.RejectedBy, n.RejectedAt, n.RejectReason, n.CreatedAt, n.UpdatedAt)
}

func (r meterRepo) GetAdjustment(ctx context.Context, id uuid.UUID) (*models.AdjustmentNote, error) {
	sql, args := tenant.Select(ctx, tenant.AdjustmentNotes, adjustmentColumns).Where("id = ?", id).Build()
	return one[models.AdjustmentNote](ctx, r.s.conn(ctx), sql, args, "adjustment note")
}

func (r meterRepo) ListAdjustments(ctx context.Context, f store.AdjustmentFilter) ([]models.AdjustmentNote, error) {
	sel := tenant.Select(ctx, tenant.AdjustmentNotes, adjustmentColumns).OrderBy("created_at DESC")
	if f.ReadingID != nil {
		sel.Where("meter_reading_id = ?", *f.ReadingID)
	}
	if f.Status != "" {
		sel.Where("status = ?", f.Status)
	}
	sql, args := page(sel, f.Page).Build()
	return many[models.AdjustmentNote](ctx, r.s.conn(ctx), sql, args, "adjustment notes")
}

func (r meterRepo) HasPendingAdjustment(ctx context.Context, readingID uuid.UUID) (bool, error) {
	sel := tenant.Select(ctx, tenant.AdjustmentNotes, "id").
		Where("meter_reading_id = ?", readingID).Where("status = ?", models.AdjustmentPending)
	return exists(ctx, r.s.conn(ctx), sel, "pending adjustment")
}

func (r meterRepo) DecideAdjustment(ctx context.Context, n *models.AdjustmentNote) error {
	sql, args := tenant.Update(ctx, tenant.AdjustmentNotes).
		Set("status", n.Status).
		Set("approved_by", n.ApprovedBy).Set("approved_at", n.ApprovedAt).
		Set("rejected_by", n.RejectedBy).Set("rejected_at", n.RejectedAt).Set("reject_reason", n.RejectReason).
		SetExpr("updated_at = now()").
		Where("id = ?", n.ID).
		Where("status = ?", models.AdjustmentPending).
		Returning(adjustmentColumns).Build()
	got, err := one[models.AdjustmentNote](ctx, r.s.conn(ctx), sql, args, "adjustment note")
	if err != nil {
		return conflictIfExists(ctx, r.s.conn(ctx), err, tenant.AdjustmentNotes, n.ID)
	}
	*n = *got
	return nil
}
