// Package metering records utility meters, their periodic readings and the
// adjustment notes that correct readings after they were locked.
//
// Reading lifecycle:
//
//	PENDING -> SUBMITTED -> APPROVED -> locked
//	PENDING ------------->  APPROVED
//	SUBMITTED -> REJECTED -> (edit) -> PENDING
//
// Once locked, a reading only changes through an approved adjustment note.
package metering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/audit"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/notify"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

const (
	readingResource    = "meter_reading"
	adjustmentResource = "adjustment_note"
)

type Service struct {
	store  store.Store
	eval   *rbac.Evaluator
	audit  *audit.Service
	notify *notify.Publisher
	now    func() time.Time
}

func NewService(st store.Store, eval *rbac.Evaluator, au *audit.Service, pub *notify.Publisher) *Service {
	return &Service{store: st, eval: eval, audit: au, notify: pub, now: func() time.Time { return time.Now().UTC() }}
}

type MeterInput struct {
	RoomID       uuid.UUID        `json:"room_id" validate:"required"`
	Type         models.MeterType `json:"type" validate:"required,oneof=ELECTRIC WATER"`
	SerialNumber string           `json:"serial_number" validate:"max=64"`
}

type ReadingInput struct {
	MeterID      uuid.UUID       `json:"meter_id" validate:"required"`
	PeriodStart  time.Time       `json:"period_start" validate:"required"`
	PeriodEnd    time.Time       `json:"period_end" validate:"required"`
	ReadingValue decimal.Decimal `json:"reading_value"`
}

type ReadingPatch struct {
	PeriodEnd    *time.Time       `json:"period_end"`
	ReadingValue *decimal.Decimal `json:"reading_value"`
}

type AdjustmentInput struct {
	AfterValue decimal.Decimal `json:"after_value"`
	Reason     string          `json:"reason" validate:"required,max=1000"`
}

func actorID(ctx context.Context) uuid.UUID {
	if s := rbac.SessionFrom(ctx); s != nil {
		return s.UserID()
	}
	return uuid.Nil
}

func actorRef(ctx context.Context) *uuid.UUID {
	if id := actorID(ctx); id != uuid.Nil {
		return &id
	}
	return nil
}

func (s *Service) CreateMeter(ctx context.Context, in MeterInput) (*models.Meter, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleMeter, nil); err != nil {
		return nil, err
	}
	if !in.Type.Valid() {
		return nil, apperr.Validation("invalid meter type %q", in.Type)
	}
	m := &models.Meter{RoomID: in.RoomID, Type: in.Type, SerialNumber: strings.TrimSpace(in.SerialNumber), IsActive: true}
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		room, err := s.store.Properties().GetRoom(ctx, in.RoomID, tenant.ActiveOnly)
		if err != nil {
			return apperr.MapNotFound(err, "room")
		}
		m.OrgID = room.OrgID
		if err := s.store.Meters().CreateMeter(ctx, m); err != nil {
			return fmt.Errorf("create meter: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{OrgID: m.OrgID, Action: "created", ResourceType: "meter", ResourceID: &m.ID})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) GetMeter(ctx context.Context, id uuid.UUID) (*models.Meter, error) {
	m, err := s.store.Meters().GetMeter(ctx, id)
	if err != nil {
		return nil, apperr.MapNotFound(err, "meter")
	}
	if err := s.eval.Authorize(ctx, rbac.ActionView, rbac.ModuleMeter, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) ListMeters(ctx context.Context, roomID *uuid.UUID) ([]models.Meter, error) {
	if s.eval.ListScope(ctx, rbac.ModuleMeter) != rbac.ListAll {
		return nil, apperr.Forbidden()
	}
	out, err := s.store.Meters().ListMeters(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list meters: %w", err)
	}
	return out, nil
}

// checkMonotonic rejects a value below the meter's previous reading.
func (s *Service) checkMonotonic(ctx context.Context, meterID uuid.UUID, periodStart time.Time, value decimal.Decimal) error {
	if value.IsNegative() {
		return apperr.Validation("reading value must not be negative")
	}
	prev, err := s.store.Meters().PreviousReading(ctx, meterID, periodStart)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("previous reading: %w", err)
	}
	if value.LessThan(prev.ReadingValue) {
		return apperr.BusinessRule("reading %s is below the previous reading %s", value, prev.ReadingValue)
	}
	return nil
}

// CreateReading records a PENDING reading. A meter has at most one reading
// per period start.
func (s *Service) CreateReading(ctx context.Context, in ReadingInput) (*models.MeterReading, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleMeterReading, nil); err != nil {
		return nil, err
	}
	if in.PeriodEnd.Before(in.PeriodStart) {
		return nil, apperr.Validation("period end is before period start")
	}
	rd := &models.MeterReading{
		MeterID:      in.MeterID,
		PeriodStart:  in.PeriodStart,
		PeriodEnd:    in.PeriodEnd,
		ReadingValue: in.ReadingValue,
		Status:       models.ReadingPending,
		CreatedBy:    actorRef(ctx),
	}
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		m, err := s.store.Meters().GetMeter(ctx, in.MeterID)
		if err != nil {
			return apperr.MapNotFound(err, "meter")
		}
		if !m.IsActive {
			return apperr.BusinessRule("meter is inactive")
		}
		if err := s.checkMonotonic(ctx, m.ID, in.PeriodStart, in.ReadingValue); err != nil {
			return err
		}
		rd.OrgID, rd.RoomID = m.OrgID, m.RoomID
		if err := s.store.Meters().CreateReading(ctx, rd); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.BusinessRule("meter already has a reading for period starting %s", in.PeriodStart.Format(time.DateOnly))
			}
			return fmt.Errorf("create reading: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{OrgID: rd.OrgID, Action: "created", ResourceType: readingResource, ResourceID: &rd.ID})
	})
	if err != nil {
		return nil, err
	}
	return rd, nil
}

func (s *Service) GetReading(ctx context.Context, id uuid.UUID) (*models.MeterReading, error) {
	rd, err := s.store.Meters().GetReading(ctx, id)
	if err != nil {
		return nil, apperr.MapNotFound(err, "meter reading")
	}
	if err := s.eval.Authorize(ctx, rbac.ActionView, rbac.ModuleMeterReading, rd); err != nil {
		return nil, err
	}
	return rd, nil
}

func (s *Service) ListReadings(ctx context.Context, f store.ReadingFilter) ([]models.MeterReading, error) {
	if s.eval.ListScope(ctx, rbac.ModuleMeterReading) != rbac.ListAll {
		return nil, apperr.Forbidden()
	}
	out, err := s.store.Meters().ListReadings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return out, nil
}

// mutateReading loads the reading under lock, authorizes action and applies
// fn. The previous status is audited as a transition when fn changes it.
func (s *Service) mutateReading(ctx context.Context, id uuid.UUID, action rbac.Action, fn func(ctx context.Context, rd *models.MeterReading) error) (*models.MeterReading, error) {
	var (
		out  *models.MeterReading
		from models.ReadingStatus
	)
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		rd, err := s.store.Meters().GetReadingForUpdate(ctx, id)
		if err != nil {
			return apperr.MapNotFound(err, "meter reading")
		}
		if err := s.eval.Authorize(ctx, action, rbac.ModuleMeterReading, rd); err != nil {
			return err
		}
		from = rd.Status
		wasLocked := rd.Locked()
		if err := fn(ctx, rd); err != nil {
			return err
		}
		if err := s.store.Meters().UpdateReading(ctx, rd); err != nil {
			return fmt.Errorf("update reading: %w", err)
		}
		out = rd
		switch {
		case rd.Status != from:
			return s.audit.Transition(ctx, readingResource, rd.OrgID, rd.ID, string(from), string(rd.Status))
		case rd.Locked() && !wasLocked:
			return s.audit.Log(ctx, audit.LogEntry{OrgID: rd.OrgID, Action: "locked", ResourceType: readingResource, ResourceID: &rd.ID})
		}
		return s.audit.Log(ctx, audit.LogEntry{OrgID: rd.OrgID, Action: "updated", ResourceType: readingResource, ResourceID: &rd.ID})
	})
	if err != nil {
		return nil, err
	}
	if out.Status != from {
		slog.Info("meter reading status changed", "org_id", out.OrgID, "reading_id", out.ID, "from", from, "status", out.Status)
	}
	return out, nil
}

// UpdateReading edits an unlocked reading that is not yet approved. Editing
// a REJECTED reading sends it back to PENDING.
func (s *Service) UpdateReading(ctx context.Context, id uuid.UUID, in ReadingPatch) (*models.MeterReading, error) {
	return s.mutateReading(ctx, id, rbac.ActionUpdate, func(ctx context.Context, rd *models.MeterReading) error {
		if rd.Locked() {
			return apperr.BusinessRule("reading is locked; request an adjustment instead")
		}
		if rd.Status == models.ReadingApproved {
			return apperr.BusinessRule("approved readings cannot be edited")
		}
		if in.PeriodEnd != nil {
			if in.PeriodEnd.Before(rd.PeriodStart) {
				return apperr.Validation("period end is before period start")
			}
			rd.PeriodEnd = *in.PeriodEnd
		}
		if in.ReadingValue != nil {
			if err := s.checkMonotonic(ctx, rd.MeterID, rd.PeriodStart, *in.ReadingValue); err != nil {
				return err
			}
			rd.ReadingValue = *in.ReadingValue
		}
		if rd.Status == models.ReadingRejected {
			rd.Status, rd.RejectReason = models.ReadingPending, ""
		}
		return nil
	})
}

// SubmitReading hands a PENDING reading over for approval.
func (s *Service) SubmitReading(ctx context.Context, id uuid.UUID) (*models.MeterReading, error) {
	return s.mutateReading(ctx, id, rbac.ActionSubmit, func(_ context.Context, rd *models.MeterReading) error {
		if rd.Status != models.ReadingPending {
			return apperr.BusinessRule("only pending readings can be submitted, reading is %s", rd.Status)
		}
		rd.Status = models.ReadingSubmitted
		return nil
	})
}

// ApproveReading accepts a PENDING or SUBMITTED reading.
func (s *Service) ApproveReading(ctx context.Context, id uuid.UUID) (*models.MeterReading, error) {
	return s.mutateReading(ctx, id, rbac.ActionApprove, func(ctx context.Context, rd *models.MeterReading) error {
		if rd.Status != models.ReadingPending && rd.Status != models.ReadingSubmitted {
			return apperr.BusinessRule("reading is %s and cannot be approved", rd.Status)
		}
		now := s.now()
		rd.Status, rd.ApprovedBy, rd.ApprovedAt = models.ReadingApproved, actorRef(ctx), &now
		return nil
	})
}

// RejectReading returns a SUBMITTED reading to its author with a reason.
func (s *Service) RejectReading(ctx context.Context, id uuid.UUID, reason string) (*models.MeterReading, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reject reason is required")
	}
	return s.mutateReading(ctx, id, rbac.ActionReject, func(_ context.Context, rd *models.MeterReading) error {
		if rd.Status != models.ReadingSubmitted {
			return apperr.BusinessRule("only submitted readings can be rejected, reading is %s", rd.Status)
		}
		rd.Status, rd.RejectReason = models.ReadingRejected, reason
		return nil
	})
}

// LockReading freezes an APPROVED reading. Locking is irreversible.
func (s *Service) LockReading(ctx context.Context, id uuid.UUID) (*models.MeterReading, error) {
	return s.mutateReading(ctx, id, rbac.ActionLock, func(_ context.Context, rd *models.MeterReading) error {
		if rd.Locked() {
			return apperr.BusinessRule("reading is already locked")
		}
		if rd.Status != models.ReadingApproved {
			return apperr.BusinessRule("only approved readings can be locked, reading is %s", rd.Status)
		}
		now := s.now()
		rd.LockedAt = &now
		return nil
	})
}

// CreateAdjustment requests a correction of a locked reading. The note keeps
// the reading's value at request time as before_value.
func (s *Service) CreateAdjustment(ctx context.Context, readingID uuid.UUID, in AdjustmentInput) (*models.AdjustmentNote, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleAdjustmentNote, nil); err != nil {
		return nil, err
	}
	if in.AfterValue.IsNegative() {
		return nil, apperr.Validation("adjusted value must not be negative")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}
	var n *models.AdjustmentNote
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		rd, err := s.store.Meters().GetReadingForUpdate(ctx, readingID)
		if err != nil {
			return apperr.MapNotFound(err, "meter reading")
		}
		if !rd.Locked() {
			return apperr.BusinessRule("cannot adjust an unlocked reading; edit it directly instead")
		}
		pending, err := s.store.Meters().HasPendingAdjustment(ctx, rd.ID)
		if err != nil {
			return fmt.Errorf("check pending adjustment: %w", err)
		}
		if pending {
			return apperr.BusinessRule("reading already has a pending adjustment")
		}
		n = &models.AdjustmentNote{
			OrgID:          rd.OrgID,
			MeterReadingID: rd.ID,
			BeforeValue:    rd.ReadingValue,
			AfterValue:     in.AfterValue,
			Reason:         reason,
			Status:         models.AdjustmentPending,
			RequestedBy:    actorID(ctx),
		}
		if err := s.store.Meters().CreateAdjustment(ctx, n); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.BusinessRule("reading already has a pending adjustment")
			}
			return fmt.Errorf("create adjustment: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{
			OrgID: n.OrgID, Action: "created", ResourceType: adjustmentResource, ResourceID: &n.ID,
			Details: models.Meta{"before": n.BeforeValue.String(), "after": n.AfterValue.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) GetAdjustment(ctx context.Context, id uuid.UUID) (*models.AdjustmentNote, error) {
	n, err := s.store.Meters().GetAdjustment(ctx, id)
	if err != nil {
		return nil, apperr.MapNotFound(err, "adjustment note")
	}
	if err := s.eval.Authorize(ctx, rbac.ActionView, rbac.ModuleAdjustmentNote, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) ListAdjustments(ctx context.Context, f store.AdjustmentFilter) ([]models.AdjustmentNote, error) {
	if s.eval.ListScope(ctx, rbac.ModuleAdjustmentNote) != rbac.ListAll {
		return nil, apperr.Forbidden()
	}
	out, err := s.store.Meters().ListAdjustments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	return out, nil
}

// ApproveAdjustment accepts a PENDING note and overwrites the reading value
// with the note's after_value in the same transaction.
func (s *Service) ApproveAdjustment(ctx context.Context, id uuid.UUID) (*models.AdjustmentNote, error) {
	return s.decide(ctx, id, rbac.ActionApprove, func(ctx context.Context, n *models.AdjustmentNote) error {
		now := s.now()
		n.Status, n.ApprovedBy, n.ApprovedAt = models.AdjustmentApproved, actorRef(ctx), &now
		return nil
	}, func(ctx context.Context, n *models.AdjustmentNote) error {
		rd, err := s.store.Meters().GetReadingForUpdate(ctx, n.MeterReadingID)
		if err != nil {
			return fmt.Errorf("load adjusted reading: %w", err)
		}
		rd.ReadingValue = n.AfterValue
		if err := s.store.Meters().UpdateReading(ctx, rd); err != nil {
			return fmt.Errorf("overwrite reading value: %w", err)
		}
		return nil
	})
}

// RejectAdjustment declines a PENDING note. The reading is left untouched.
func (s *Service) RejectAdjustment(ctx context.Context, id uuid.UUID, reason string) (*models.AdjustmentNote, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reject reason is required")
	}
	return s.decide(ctx, id, rbac.ActionReject, func(ctx context.Context, n *models.AdjustmentNote) error {
		now := s.now()
		n.Status, n.RejectedBy, n.RejectedAt, n.RejectReason = models.AdjustmentRejected, actorRef(ctx), &now, reason
		return nil
	}, nil)
}

// decide applies a decision to a PENDING note through a conditional update,
// so two concurrent deciders cannot both win.
func (s *Service) decide(ctx context.Context, id uuid.UUID, action rbac.Action, mark, after func(ctx context.Context, n *models.AdjustmentNote) error) (*models.AdjustmentNote, error) {
	var n *models.AdjustmentNote
	err := s.store.InTx(ctx, func(ctx context.Context) (err error) {
		if n, err = s.store.Meters().GetAdjustment(ctx, id); err != nil {
			return apperr.MapNotFound(err, "adjustment note")
		}
		if err := s.eval.Authorize(ctx, action, rbac.ModuleAdjustmentNote, n); err != nil {
			return err
		}
		if n.Status != models.AdjustmentPending {
			return apperr.BusinessRule("adjustment note was already %s", strings.ToLower(string(n.Status)))
		}
		if err := mark(ctx, n); err != nil {
			return err
		}
		if err := s.store.Meters().DecideAdjustment(ctx, n); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.BusinessRule("adjustment note was already decided")
			}
			return fmt.Errorf("decide adjustment: %w", err)
		}
		if after != nil {
			if err := after(ctx, n); err != nil {
				return err
			}
		}
		return s.audit.Transition(ctx, adjustmentResource, n.OrgID, n.ID, string(models.AdjustmentPending), string(n.Status))
	})
	if err != nil {
		return nil, err
	}
	slog.Info("adjustment decided", "org_id", n.OrgID, "adjustment_id", n.ID, "status", n.Status)
	s.notify.Publish(ctx, notify.Notification{
		Event: notify.AdjustmentDecided, OrgID: n.OrgID, ResourceType: adjustmentResource, ResourceID: n.ID, ActorID: actorRef(ctx),
		Data: map[string]string{"status": string(n.Status), "meter_reading_id": n.MeterReadingID.String()},
	})
	return n, nil
}

// Usage is the consumption a reading represents.
type Usage struct {
	Reading  models.MeterReading  `json:"reading"`
	Previous *models.MeterReading `json:"previous,omitempty"`
	Quantity decimal.Decimal      `json:"quantity"`
}

// Consumption is the reading value minus the meter's previous reading. The
// first reading of a meter is its baseline and consumes nothing.
func (s *Service) Consumption(ctx context.Context, rd models.MeterReading) (Usage, error) {
	u := Usage{Reading: rd, Quantity: decimal.Zero}
	prev, err := s.store.Meters().PreviousReading(ctx, rd.MeterID, rd.PeriodStart)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return u, nil
	case err != nil:
		return u, fmt.Errorf("previous reading: %w", err)
	}
	u.Previous = prev
	if q := rd.ReadingValue.Sub(prev.ReadingValue); q.IsPositive() {
		u.Quantity = q
	}
	return u, nil
}

// ReadingConsumption authorizes and returns the consumption of one reading.
func (s *Service) ReadingConsumption(ctx context.Context, id uuid.UUID) (Usage, error) {
	rd, err := s.GetReading(ctx, id)
	if err != nil {
		return Usage{}, err
	}
	return s.Consumption(ctx, *rd)
}
