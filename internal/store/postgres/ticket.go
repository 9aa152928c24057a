package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

const (
	ticketColumns = "id, org_id, property_id, room_id, contract_id, title, description, category, priority, " +
		"status, created_by, assigned_to, closed_at, meta, created_at, updated_at"
	eventColumns = "id, org_id, ticket_id, type, status, message, actor_id, created_at"
	costColumns  = "id, org_id, ticket_id, amount, payer, description, created_by, created_at"
)

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(ctx context.Context, t *models.Ticket) error {
	if err := stamp(ctx, &t.ID, &t.OrgID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	t.Meta = meta(t.Meta)
	return insert(ctx, r.s.conn(ctx), tenant.Tickets, ticketColumns,
		t.ID, t.OrgID, t.PropertyID, t.RoomID, t.ContractID, t.Title, t.Description, t.Category, t.Priority,
		t.Status, t.CreatedBy, t.AssignedTo, t.ClosedAt, t.Meta, t.CreatedAt, t.UpdatedAt)
}

func (r ticketRepo) get(ctx context.Context, id uuid.UUID, lock bool) (*models.Ticket, error) {
	sel := tenant.Select(ctx, tenant.Tickets, ticketColumns).Where("id = ?", id)
	if lock {
		sel.ForUpdate()
	}
	sql, args := sel.Build()
	q := r.s.conn(ctx)
	t, err := one[models.Ticket](ctx, q, sql, args, "ticket")
	if err != nil {
		return nil, err
	}
	sql, args = tenant.Select(ctx, tenant.TicketEvents, eventColumns).
		Where("ticket_id = ?", id).OrderBy("created_at, id").Build()
	if t.Events, err = many[models.TicketEvent](ctx, q, sql, args, "ticket events"); err != nil {
		return nil, err
	}
	sql, args = tenant.Select(ctx, tenant.TicketCosts, costColumns).
		Where("ticket_id = ?", id).OrderBy("created_at, id").Build()
	if t.Costs, err = many[models.TicketCost](ctx, q, sql, args, "ticket costs"); err != nil {
		return nil, err
	}
	return t, nil
}

func (r ticketRepo) Get(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	return r.get(ctx, id, false)
}

func (r ticketRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	return r.get(ctx, id, true)
}

func (r ticketRepo) List(ctx context.Context, f store.TicketFilter) ([]models.Ticket, error) {
	sel := tenant.Select(ctx, tenant.Tickets, ticketColumns).OrderBy("created_at DESC")
	if f.PropertyID != nil {
		sel.Where("property_id = ?", *f.PropertyID)
	}
	if f.RoomID != nil {
		sel.Where("room_id = ?", *f.RoomID)
	}
	if f.CreatedBy != nil {
		sel.Where("created_by = ?", *f.CreatedBy)
	}
	if f.Status != "" {
		sel.Where("status = ?", f.Status)
	}
	sql, args := page(sel, f.Page).Build()
	return many[models.Ticket](ctx, r.s.conn(ctx), sql, args, "tickets")
}

func (r ticketRepo) Update(ctx context.Context, t *models.Ticket) error {
	sql, args := tenant.Update(ctx, tenant.Tickets).
		Set("contract_id", t.ContractID).Set("title", t.Title).Set("description", t.Description).Set("category", t.Category).
		Set("priority", t.Priority).Set("status", t.Status).Set("assigned_to", t.AssignedTo).
		Set("closed_at", t.ClosedAt).Set("meta", meta(t.Meta)).
		SetExpr("updated_at = now()").
		Where("id = ?", t.ID).
		Returning(ticketColumns).Build()
	got, err := one[models.Ticket](ctx, r.s.conn(ctx), sql, args, "ticket")
	if err != nil {
		return err
	}
	got.Events, got.Costs = t.Events, t.Costs
	*t = *got
	return nil
}

func (r ticketRepo) AddEvent(ctx context.Context, e *models.TicketEvent) error {
	if err := stamp(ctx, &e.ID, &e.OrgID, &e.CreatedAt); err != nil {
		return err
	}
	return insert(ctx, r.s.conn(ctx), tenant.TicketEvents, eventColumns,
		e.ID, e.OrgID, e.TicketID, e.Type, e.Status, e.Message, e.ActorID, e.CreatedAt)
}

func (r ticketRepo) AddCost(ctx context.Context, c *models.TicketCost) error {
	if err := stamp(ctx, &c.ID, &c.OrgID, &c.CreatedAt); err != nil {
		return err
	}
	return insert(ctx, r.s.conn(ctx), tenant.TicketCosts, costColumns,
		c.ID, c.OrgID, c.TicketID, c.Amount, c.Payer, c.Description, c.CreatedBy, c.CreatedAt)
}
