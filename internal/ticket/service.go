// Package ticket tracks maintenance requests. The status graph is advisory:
// any status may follow any other, but entering DONE or CANCELLED stamps
// closed_at and leaving them clears it again.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
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

const resourceType = "ticket"

// costStatuses are the statuses in which work costs may be recorded.
var costStatuses = []models.TicketStatus{models.TicketInProgress, models.TicketWaitingParts, models.TicketDone}

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
	RoomID      uuid.UUID             `json:"room_id" validate:"required"`
	ContractID  *uuid.UUID            `json:"contract_id"`
	Title       string                `json:"title" validate:"required,max=255"`
	Description string                `json:"description" validate:"max=5000"`
	Category    string                `json:"category" validate:"max=64"`
	Priority    models.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
	Meta        models.Meta           `json:"meta"`
}

type UpdateInput struct {
	Title       *string                `json:"title" validate:"omitempty,max=255"`
	Description *string                `json:"description" validate:"omitempty,max=5000"`
	Category    *string                `json:"category" validate:"omitempty,max=64"`
	Priority    *models.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
	AssignedTo  *uuid.UUID             `json:"assigned_to"`
	Meta        models.Meta            `json:"meta"`
}

type CostInput struct {
	Amount      decimal.Decimal  `json:"amount"`
	Payer       models.CostPayer `json:"payer" validate:"omitempty,oneof=OWNER TENANT"`
	Description string           `json:"description" validate:"max=1000"`
}

type ListInput struct {
	PropertyID *uuid.UUID
	RoomID     *uuid.UUID
	Status     models.TicketStatus
	Page       store.Page
}

func actor(ctx context.Context) *uuid.UUID {
	if s := rbac.SessionFrom(ctx); s != nil {
		id := s.UserID()
		return &id
	}
	return nil
}

// Create opens a ticket on a room. Without an explicit contract the room's
// active contract, if any, is attached. The CREATED event is written in the
// same transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Ticket, error) {
	by := actor(ctx)
	if by == nil {
		return nil, apperr.Forbidden()
	}
	if err := in.Meta.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !priority.Valid() {
		return nil, apperr.Validation("invalid priority %q", priority)
	}

	var t *models.Ticket
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		room, err := s.store.Properties().GetRoom(ctx, in.RoomID, tenant.ActiveOnly)
		if err != nil {
			return apperr.MapNotFound(err, "room")
		}
		t = &models.Ticket{
			OrgID: room.OrgID, PropertyID: room.PropertyID, RoomID: room.ID, ContractID: in.ContractID,
			Title: strings.TrimSpace(in.Title), Description: in.Description, Category: in.Category,
			Priority: priority, Status: models.TicketOpen, CreatedBy: *by, Meta: in.Meta,
		}
		if t.ContractID != nil {
			c, err := s.store.Contracts().Get(ctx, *t.ContractID)
			if err != nil {
				return apperr.MapNotFound(err, "contract")
			}
			if c.RoomID != room.ID {
				return apperr.BusinessRule("contract does not belong to room %s", room.Code)
			}
		} else {
			c, err := s.store.Contracts().ActiveForRoom(ctx, room.ID)
			switch {
			case err == nil:
				t.ContractID = &c.ID
			case !errors.Is(err, apperr.ErrNotFound):
				return fmt.Errorf("find active contract: %w", err)
			}
		}
		if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleTicket, t); err != nil {
			return err
		}

		if err := s.store.Tickets().Create(ctx, t); err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}
		open := models.TicketOpen
		ev := models.TicketEvent{OrgID: t.OrgID, TicketID: t.ID, Type: models.EventCreated, Status: &open, ActorID: by}
		if err := s.store.Tickets().AddEvent(ctx, &ev); err != nil {
			return fmt.Errorf("add created event: %w", err)
		}
		t.Events = []models.TicketEvent{ev}
		return s.audit.Log(ctx, audit.LogEntry{OrgID: t.OrgID, Action: "created", ResourceType: resourceType, ResourceID: &t.ID})
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	t, err := s.store.Tickets().Get(ctx, id)
	if err != nil {
		return nil, apperr.MapNotFound(err, "ticket")
	}
	if err := s.eval.Authorize(ctx, rbac.ActionView, rbac.ModuleTicket, t); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns tickets visible to the actor; tenants see the tickets they
// opened.
func (s *Service) List(ctx context.Context, in ListInput) ([]models.Ticket, error) {
	f := store.TicketFilter{PropertyID: in.PropertyID, RoomID: in.RoomID, Status: in.Status, Page: in.Page}
	switch s.eval.ListScope(ctx, rbac.ModuleTicket) {
	case rbac.ListDenied:
		return nil, apperr.Forbidden()
	case rbac.ListMembersOnly:
		f.CreatedBy = actor(ctx)
	}
	out, err := s.store.Tickets().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return out, nil
}

// mutate loads the ticket under lock and authorizes action before fn runs.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, action rbac.Action, fn func(ctx context.Context, t *models.Ticket) error) (*models.Ticket, error) {
	var out *models.Ticket
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		t, err := s.store.Tickets().GetForUpdate(ctx, id)
		if err != nil {
			return apperr.MapNotFound(err, "ticket")
		}
		if err := s.eval.Authorize(ctx, action, rbac.ModuleTicket, t); err != nil {
			return err
		}
		if err := fn(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Ticket, error) {
	if err := in.Meta.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	return s.mutate(ctx, id, rbac.ActionUpdate, func(ctx context.Context, t *models.Ticket) error {
		if in.Title != nil {
			t.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			t.Description = *in.Description
		}
		if in.Category != nil {
			t.Category = *in.Category
		}
		if in.Priority != nil {
			if !in.Priority.Valid() {
				return apperr.Validation("invalid priority %q", *in.Priority)
			}
			t.Priority = *in.Priority
		}
		if in.AssignedTo != nil {
			u, err := s.store.Users().Get(ctx, *in.AssignedTo)
			if err != nil {
				return apperr.MapNotFound(err, "user")
			}
			if u.OwnerOrgID() != t.OrgID {
				return apperr.NotFound("user")
			}
			t.AssignedTo = &u.ID
		}
		if in.Meta != nil {
			t.Meta = t.Meta.Merge(in.Meta)
		}
		if err := s.store.Tickets().Update(ctx, t); err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{OrgID: t.OrgID, Action: "updated", ResourceType: resourceType, ResourceID: &t.ID})
	})
}

// UpdateStatus moves the ticket and appends a STATUS_CHANGED event carrying
// the new status and message.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to models.TicketStatus, message string) (*models.Ticket, error) {
	if !to.Valid() {
		return nil, apperr.Validation("invalid ticket status %q", to)
	}
	var from models.TicketStatus
	t, err := s.mutate(ctx, id, rbac.ActionUpdateStatus, func(ctx context.Context, t *models.Ticket) error {
		from = t.Status
		if from == to {
			return apperr.BusinessRule("ticket is already %s", to)
		}
		t.Status = to
		switch {
		case to.Closed():
			now := s.now()
			t.ClosedAt = &now
		case from.Closed():
			t.ClosedAt = nil
		}
		if err := s.store.Tickets().Update(ctx, t); err != nil {
			return fmt.Errorf("update ticket status: %w", err)
		}
		ev := models.TicketEvent{
			OrgID: t.OrgID, TicketID: t.ID, Type: models.EventStatusChanged, Status: &to,
			Message: strings.TrimSpace(message), ActorID: actor(ctx),
		}
		if err := s.store.Tickets().AddEvent(ctx, &ev); err != nil {
			return fmt.Errorf("add status event: %w", err)
		}
		t.Events = append(t.Events, ev)
		return s.audit.Transition(ctx, resourceType, t.OrgID, t.ID, string(from), string(to))
	})
	if err != nil {
		return nil, err
	}
	slog.Info("ticket status changed", "org_id", t.OrgID, "ticket_id", t.ID, "from", from, "status", t.Status)
	s.notify.Publish(ctx, notify.Notification{
		Event: notify.TicketStatusChanged, OrgID: t.OrgID, ResourceType: resourceType, ResourceID: t.ID, ActorID: actor(ctx),
		Data: map[string]string{"from": string(from), "status": string(to), "created_by": t.CreatedBy.String()},
	})
	return t, nil
}

// AddEvent appends a comment. Tenants may only comment on their own tickets.
func (s *Service) AddEvent(ctx context.Context, id uuid.UUID, message string) (*models.TicketEvent, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("message is required")
	}
	var ev *models.TicketEvent
	_, err := s.mutate(ctx, id, rbac.ActionAddEvent, func(ctx context.Context, t *models.Ticket) error {
		ev = &models.TicketEvent{OrgID: t.OrgID, TicketID: t.ID, Type: models.EventComment, Message: message, ActorID: actor(ctx)}
		if err := s.store.Tickets().AddEvent(ctx, ev); err != nil {
			return fmt.Errorf("add comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// AddCost records a work cost. Costs are accepted only once work has started
// and never on a cancelled ticket.
func (s *Service) AddCost(ctx context.Context, id uuid.UUID, in CostInput) (*models.TicketCost, error) {
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("cost amount must be positive")
	}
	payer := in.Payer
	if payer == "" {
		payer = models.PayerOwner
	}
	if !payer.Valid() {
		return nil, apperr.Validation("invalid payer %q", payer)
	}
	var c *models.TicketCost
	_, err := s.mutate(ctx, id, rbac.ActionAddCost, func(ctx context.Context, t *models.Ticket) error {
		if !slices.Contains(costStatuses, t.Status) {
			return apperr.BusinessRule("costs can only be added while the ticket is IN_PROGRESS, WAITING_PARTS or DONE, ticket is %s", t.Status)
		}
		c = &models.TicketCost{OrgID: t.OrgID, TicketID: t.ID, Amount: in.Amount, Payer: payer, Description: in.Description, CreatedBy: actor(ctx)}
		if err := s.store.Tickets().AddCost(ctx, c); err != nil {
			return fmt.Errorf("add cost: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{
			OrgID: t.OrgID, Action: "cost_added", ResourceType: resourceType, ResourceID: &t.ID,
			Details: models.Meta{"amount": c.Amount.String(), "payer": string(c.Payer)},
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// TotalCost sums the recorded costs per payer.
func TotalCost(t *models.Ticket) map[models.CostPayer]decimal.Decimal {
	out := map[models.CostPayer]decimal.Decimal{}
	for _, c := range t.Costs {
		out[c.Payer] = out[c.Payer].Add(c.Amount)
	}
	return out
}
