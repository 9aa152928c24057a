// Package handover records move-in and move-out inspections. A handover is
// edited while DRAFT and frozen by confirmation: confirming stamps
// locked_at, after which items and meter snapshots are read-only.
package handover

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
)

const resourceType = "handover"

var errLocked = apperr.BusinessRule("handover is confirmed and can no longer change")

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

type CreateInput struct {
	ContractID uuid.UUID           `json:"contract_id" validate:"required"`
	Type       models.HandoverType `json:"type" validate:"required,oneof=CHECK_IN CHECK_OUT"`
	Note       string              `json:"note" validate:"max=2000"`
	Meta       models.Meta         `json:"meta"`
}

type UpdateInput struct {
	Note *string     `json:"note" validate:"omitempty,max=2000"`
	Meta models.Meta `json:"meta"`
}

type ItemInput struct {
	Name      string               `json:"name" validate:"required,max=255"`
	Condition models.ItemCondition `json:"condition" validate:"omitempty,oneof=OK MISSING DAMAGED"`
	Quantity  int                  `json:"quantity" validate:"gte=0"`
	Note      string               `json:"note" validate:"max=1000"`
}

type SnapshotInput struct {
	MeterID      uuid.UUID       `json:"meter_id" validate:"required"`
	ReadingValue decimal.Decimal `json:"reading_value"`
	CapturedAt   *time.Time      `json:"captured_at"`
}

type ListInput struct {
	ContractID *uuid.UUID
	RoomID     *uuid.UUID
	Page       store.Page
}

func actor(ctx context.Context) *uuid.UUID {
	if s := rbac.SessionFrom(ctx); s != nil {
		id := s.UserID()
		return &id
	}
	return nil
}

func (in ItemInput) item() (models.HandoverItem, error) {
	cond := in.Condition
	if cond == "" {
		cond = models.ConditionOK
	}
	if !cond.Valid() {
		return models.HandoverItem{}, apperr.Validation("invalid condition %q", cond)
	}
	if in.Quantity < 0 {
		return models.HandoverItem{}, apperr.Validation("quantity must not be negative")
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	return models.HandoverItem{Name: strings.TrimSpace(in.Name), Condition: cond, Quantity: qty, Note: in.Note}, nil
}

// Create starts a DRAFT handover. A contract has at most one handover of each
// type; check-out requires an ACTIVE or ENDED contract.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Handover, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleHandover, nil); err != nil {
		return nil, err
	}
	if !in.Type.Valid() {
		return nil, apperr.Validation("invalid handover type %q", in.Type)
	}
	if err := in.Meta.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	var h *models.Handover
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		c, err := s.store.Contracts().GetForUpdate(ctx, in.ContractID)
		if err != nil {
			return apperr.MapNotFound(err, "contract")
		}
		switch {
		case c.Status == models.ContractCancelled:
			return apperr.BusinessRule("contract is cancelled")
		case in.Type == models.HandoverCheckOut && c.Status != models.ContractActive && c.Status != models.ContractEnded:
			return apperr.BusinessRule("check-out needs an ACTIVE or ENDED contract, contract is %s", c.Status)
		}
		existing, err := s.store.Handovers().List(ctx, store.HandoverFilter{ContractID: &c.ID})
		if err != nil {
			return fmt.Errorf("list contract handovers: %w", err)
		}
		for _, e := range existing {
			if e.Type == in.Type {
				return apperr.BusinessRule("contract already has a %s handover", in.Type)
			}
		}
		h = &models.Handover{
			OrgID: c.OrgID, ContractID: c.ID, RoomID: c.RoomID, Type: in.Type, Status: models.HandoverDraft,
			Note: in.Note, Meta: in.Meta, CreatedBy: actor(ctx),
		}
		if err := s.store.Handovers().Create(ctx, h); err != nil {
			return fmt.Errorf("create handover: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{OrgID: h.OrgID, Action: "created", ResourceType: resourceType, ResourceID: &h.ID,
			Details: models.Meta{"type": string(h.Type)}})
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Handover, error) {
	h, err := s.store.Handovers().Get(ctx, id)
	if err != nil {
		return nil, apperr.MapNotFound(err, "handover")
	}
	if err := s.eval.Authorize(ctx, rbac.ActionView, rbac.ModuleHandover, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) List(ctx context.Context, in ListInput) ([]models.Handover, error) {
	f := store.HandoverFilter{ContractID: in.ContractID, RoomID: in.RoomID, Page: in.Page}
	switch s.eval.ListScope(ctx, rbac.ModuleHandover) {
	case rbac.ListDenied:
		return nil, apperr.Forbidden()
	case rbac.ListMembersOnly:
		ids, err := s.store.Contracts().MemberContractIDs(ctx, rbac.SessionFrom(ctx).UserID())
		if err != nil {
			return nil, fmt.Errorf("list member contracts: %w", err)
		}
		f.ContractIDs = ids
	}
	out, err := s.store.Handovers().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list handovers: %w", err)
	}
	return out, nil
}

// edit runs fn against a mutable handover held under lock.
func (s *Service) edit(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, h *models.Handover) error) error {
	return s.store.InTx(ctx, func(ctx context.Context) error {
		h, err := s.store.Handovers().GetForUpdate(ctx, id)
		if err != nil {
			return apperr.MapNotFound(err, "handover")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionUpdate, rbac.ModuleHandover, h); err != nil {
			return err
		}
		if !h.Mutable() {
			return errLocked
		}
		return fn(ctx, h)
	})
}

// Update changes the note or merges meta of a DRAFT handover.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Handover, error) {
	if err := in.Meta.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	err := s.edit(ctx, id, func(ctx context.Context, h *models.Handover) error {
		if in.Note != nil {
			h.Note = *in.Note
		}
		if in.Meta != nil {
			h.Meta = h.Meta.Merge(in.Meta)
		}
		if err := s.store.Handovers().Update(ctx, h); err != nil {
			return fmt.Errorf("update handover: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) AddItem(ctx context.Context, handoverID uuid.UUID, in ItemInput) (*models.HandoverItem, error) {
	it, err := in.item()
	if err != nil {
		return nil, err
	}
	err = s.edit(ctx, handoverID, func(ctx context.Context, h *models.Handover) error {
		it.OrgID, it.HandoverID = h.OrgID, h.ID
		if err := s.store.Handovers().AddItem(ctx, &it); err != nil {
			return fmt.Errorf("add handover item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// item loads a child item and resolves the handover that owns it.
func (s *Service) item(ctx context.Context, itemID uuid.UUID) (*models.HandoverItem, error) {
	it, err := s.store.Handovers().GetItem(ctx, itemID)
	if err != nil {
		return nil, apperr.MapNotFound(err, "handover item")
	}
	return it, nil
}

func (s *Service) UpdateItem(ctx context.Context, itemID uuid.UUID, in ItemInput) (*models.HandoverItem, error) {
	next, err := in.item()
	if err != nil {
		return nil, err
	}
	it, err := s.item(ctx, itemID)
	if err != nil {
		return nil, err
	}
	err = s.edit(ctx, it.HandoverID, func(ctx context.Context, _ *models.Handover) error {
		it.Name, it.Condition, it.Quantity, it.Note = next.Name, next.Condition, next.Quantity, next.Note
		if err := s.store.Handovers().UpdateItem(ctx, it); err != nil {
			return fmt.Errorf("update handover item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (s *Service) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	it, err := s.item(ctx, itemID)
	if err != nil {
		return err
	}
	return s.edit(ctx, it.HandoverID, func(ctx context.Context, _ *models.Handover) error {
		if err := s.store.Handovers().DeleteItem(ctx, it.ID); err != nil {
			return fmt.Errorf("delete handover item: %w", err)
		}
		return nil
	})
}

// UpsertSnapshot records the value a meter of the handover's room showed.
// A second snapshot of the same meter overwrites the first.
func (s *Service) UpsertSnapshot(ctx context.Context, handoverID uuid.UUID, in SnapshotInput) (*models.HandoverMeterSnapshot, error) {
	if in.ReadingValue.IsNegative() {
		return nil, apperr.Validation("reading value must not be negative")
	}
	var snap *models.HandoverMeterSnapshot
	err := s.edit(ctx, handoverID, func(ctx context.Context, h *models.Handover) error {
		m, err := s.store.Meters().GetMeter(ctx, in.MeterID)
		if err != nil {
			return apperr.MapNotFound(err, "meter")
		}
		if m.RoomID != h.RoomID {
			return apperr.BusinessRule("meter is not installed in the handover's room")
		}
		at := s.now()
		if in.CapturedAt != nil {
			at = *in.CapturedAt
		}
		snap = &models.HandoverMeterSnapshot{OrgID: h.OrgID, HandoverID: h.ID, MeterID: m.ID, ReadingValue: in.ReadingValue, CapturedAt: at}
		if err := s.store.Handovers().UpsertSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("upsert meter snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Service) DeleteSnapshot(ctx context.Context, snapshotID uuid.UUID) error {
	snap, err := s.store.Handovers().GetSnapshot(ctx, snapshotID)
	if err != nil {
		return apperr.MapNotFound(err, "meter snapshot")
	}
	return s.edit(ctx, snap.HandoverID, func(ctx context.Context, _ *models.Handover) error {
		if err := s.store.Handovers().DeleteSnapshot(ctx, snap.ID); err != nil {
			return fmt.Errorf("delete meter snapshot: %w", err)
		}
		return nil
	})
}

// Confirm freezes the handover. The store applies the change only while
// the handover is still a DRAFT, so concurrent confirmations resolve to one.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*models.Handover, error) {
	by := actor(ctx)
	if by == nil {
		return nil, apperr.Forbidden()
	}
	var h *models.Handover
	err := s.store.InTx(ctx, func(ctx context.Context) (err error) {
		if h, err = s.store.Handovers().GetForUpdate(ctx, id); err != nil {
			return apperr.MapNotFound(err, "handover")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionConfirm, rbac.ModuleHandover, h); err != nil {
			return err
		}
		if !h.Mutable() {
			return apperr.BusinessRule("handover is already confirmed")
		}
		if err := s.store.Handovers().Confirm(ctx, h.ID, *by, s.now()); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.BusinessRule("handover is already confirmed")
			}
			return fmt.Errorf("confirm handover: %w", err)
		}
		if h, err = s.store.Handovers().Get(ctx, id); err != nil {
			return fmt.Errorf("reload handover: %w", err)
		}
		return s.audit.Transition(ctx, resourceType, h.OrgID, h.ID, string(models.HandoverDraft), string(models.HandoverConfirmed))
	})
	if err != nil {
		return nil, err
	}
	slog.Info("handover confirmed", "org_id", h.OrgID, "handover_id", h.ID, "type", h.Type)
	s.notify.Publish(ctx, notify.Notification{
		Event: notify.HandoverConfirmed, OrgID: h.OrgID, ResourceType: resourceType, ResourceID: h.ID, ActorID: by,
		Data: map[string]string{"type": string(h.Type), "contract_id": h.ContractID.String()},
	})
	return h, nil
}
