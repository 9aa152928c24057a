package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type meterRepo struct{ s *Store }

func (r meterRepo) CreateMeter(ctx context.Context, m *models.Meter) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &m.ID, &m.OrgID, &m.CreatedAt); err != nil {
			return err
		}
		st.meters.insert(*m, st.next())
		return nil
	})
}

func (r meterRepo) GetMeter(ctx context.Context, id uuid.UUID) (*models.Meter, error) {
	var out models.Meter
	err := r.s.with(ctx, func(st *state) (err error) {
		out, err = st.meters.get(ctx, id, tenant.ActiveOnly)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r meterRepo) ListMeters(ctx context.Context, roomID *uuid.UUID) ([]models.Meter, error) {
	var out []models.Meter
	err := r.s.with(ctx, func(st *state) error {
		out = st.meters.list(ctx, tenant.ActiveOnly, func(m models.Meter) bool {
			return roomID == nil || m.RoomID == *roomID
		})
		return nil
	})
	return out, err
}

func (r meterRepo) CreateReading(ctx context.Context, rd *models.MeterReading) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &rd.ID, &rd.OrgID, &rd.CreatedAt, &rd.UpdatedAt); err != nil {
			return err
		}
		dup := st.readings.list(tenant.System(ctx), tenant.ActiveOnly, func(x models.MeterReading) bool {
			return x.MeterID == rd.MeterID && x.PeriodStart.Equal(rd.PeriodStart)
		})
		if len(dup) > 0 {
			return conflict("create reading for meter %s", rd.MeterID)
		}
		st.readings.insert(*rd, st.next())
		return nil
	})
}

func (r meterRepo) GetReading(ctx context.Context, id uuid.UUID) (*models.MeterReading, error) {
	var out models.MeterReading
	err := r.s.with(ctx, func(st *state) (err error) {
		out, err = st.readings.get(ctx, id, tenant.ActiveOnly)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r meterRepo) GetReadingForUpdate(ctx context.Context, id uuid.UUID) (*models.MeterReading, error) {
	return r.GetReading(ctx, id)
}

func (r meterRepo) ListReadings(ctx context.Context, f store.ReadingFilter) ([]models.MeterReading, error) {
	var out []models.MeterReading
	err := r.s.with(ctx, func(st *state) error {
		rows := st.readings.list(ctx, tenant.ActiveOnly, func(rd models.MeterReading) bool {
			switch {
			case f.MeterID != nil && rd.MeterID != *f.MeterID:
				return false
			case f.RoomID != nil && rd.RoomID != *f.RoomID:
				return false
			case f.Status != "" && rd.Status != f.Status:
				return false
			case f.From != nil && rd.PeriodStart.Before(*f.From):
				return false
			case f.To != nil && rd.PeriodStart.After(*f.To):
				return false
			}
			return true
		})
		out = paginate(rows, f.Page)
		return nil
	})
	return out, err
}

func (r meterRepo) PreviousReading(ctx context.Context, meterID uuid.UUID, before time.Time) (*models.MeterReading, error) {
	var out *models.MeterReading
	err := r.s.with(ctx, func(st *state) error {
		rows := st.readings.list(ctx, tenant.ActiveOnly, func(rd models.MeterReading) bool {
			return rd.MeterID == meterID && rd.PeriodStart.Before(before)
		})
		for i := range rows {
			if out == nil || rows[i].PeriodStart.After(out.PeriodStart) {
				out = &rows[i]
			}
		}
		if out == nil {
			return fmt.Errorf("previous reading of meter %s: %w", meterID, apperr.ErrNotFound)
		}
		return nil
	})
	return out, err
}

func (r meterRepo) UpdateReading(ctx context.Context, rd *models.MeterReading) error {
	return r.s.with(ctx, func(st *state) error {
		cur, err := st.readings.get(ctx, rd.ID, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		cur.PeriodEnd, cur.ReadingValue, cur.Status = rd.PeriodEnd, rd.ReadingValue, rd.Status
		cur.RejectReason, cur.ApprovedBy, cur.ApprovedAt = rd.RejectReason, rd.ApprovedBy, rd.ApprovedAt
		cur.LockedAt = rd.LockedAt
		cur.UpdatedAt = r.s.now()
		*rd = cur
		return st.readings.replace(ctx, cur, tenant.ActiveOnly)
	})
}

func (r meterRepo) CreateAdjustment(ctx context.Context, n *models.AdjustmentNote) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &n.ID, &n.OrgID, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return err
		}
		pending := st.adjustments.list(tenant.System(ctx), tenant.ActiveOnly, func(x models.AdjustmentNote) bool {
			return x.MeterReadingID == n.MeterReadingID && x.Status == models.AdjustmentPending
		})
		if len(pending) > 0 {
			return conflict("create adjustment for reading %s", n.MeterReadingID)
		}
		st.adjustments.insert(*n, st.next())
		return nil
	})
}

func (r meterRepo) GetAdjustment(ctx context.Context, id uuid.UUID) (*models.AdjustmentNote, error) {
	var out models.AdjustmentNote
	err := r.s.with(ctx, func(st *state) (err error) {
		out, err = st.adjustments.get(ctx, id, tenant.ActiveOnly)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r meterRepo) ListAdjustments(ctx context.Context, f store.AdjustmentFilter) ([]models.AdjustmentNote, error) {
	var out []models.AdjustmentNote
	err := r.s.with(ctx, func(st *state) error {
		rows := st.adjustments.list(ctx, tenant.ActiveOnly, func(n models.AdjustmentNote) bool {
			if f.ReadingID != nil && n.MeterReadingID != *f.ReadingID {
				return false
			}
			return f.Status == "" || n.Status == f.Status
		})
		out = paginate(rows, f.Page)
		return nil
	})
	return out, err
}

func (r meterRepo) HasPendingAdjustment(ctx context.Context, readingID uuid.UUID) (bool, error) {
	var ok bool
	err := r.s.with(ctx, func(st *state) error {
		_, ok = st.adjustments.first(ctx, func(n models.AdjustmentNote) bool {
			return n.MeterReadingID == readingID && n.Status == models.AdjustmentPending
		})
		return nil
	})
	return ok, err
}

func (r meterRepo) DecideAdjustment(ctx context.Context, n *models.AdjustmentNote) error {
	return r.s.with(ctx, func(st *state) error {
		cur, err := st.adjustments.get(ctx, n.ID, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		if cur.Status != models.AdjustmentPending {
			return conflict("decide adjustment %s", n.ID)
		}
		cur.Status = n.Status
		cur.ApprovedBy, cur.ApprovedAt = n.ApprovedBy, n.ApprovedAt
		cur.RejectedBy, cur.RejectedAt, cur.RejectReason = n.RejectedBy, n.RejectedAt, n.RejectReason
		cur.UpdatedAt = r.s.now()
		*n = cur
		return st.adjustments.replace(ctx, cur, tenant.ActiveOnly)
	})
}
