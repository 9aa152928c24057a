package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(ctx context.Context, t *models.Ticket) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &t.ID, &t.OrgID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return err
		}
		t.Meta = cloneMeta(t.Meta)
		st.tickets.insert(*t, st.next())
		return nil
	})
}

func (r ticketRepo) Get(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var out models.Ticket
	err := r.s.with(ctx, func(st *state) (err error) {
		if out, err = st.tickets.get(ctx, id, tenant.ActiveOnly); err != nil {
			return err
		}
		out.Events = st.events.list(ctx, tenant.ActiveOnly, func(e models.TicketEvent) bool { return e.TicketID == id })
		slices.Reverse(out.Events)
		out.Costs = st.costs.list(ctx, tenant.ActiveOnly, func(c models.TicketCost) bool { return c.TicketID == id })
		slices.Reverse(out.Costs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r ticketRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	return r.Get(ctx, id)
}

func (r ticketRepo) List(ctx context.Context, f store.TicketFilter) ([]models.Ticket, error) {
	var out []models.Ticket
	err := r.s.with(ctx, func(st *state) error {
		rows := st.tickets.list(ctx, tenant.ActiveOnly, func(t models.Ticket) bool {
			switch {
			case f.PropertyID != nil && t.PropertyID != *f.PropertyID:
				return false
			case f.RoomID != nil && t.RoomID != *f.RoomID:
				return false
			case f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy:
				return false
			case f.Status != "" && t.Status != f.Status:
				return false
			}
			return true
		})
		out = paginate(rows, f.Page)
		return nil
	})
	return out, err
}

func (r ticketRepo) Update(ctx context.Context, t *models.Ticket) error {
	return r.s.with(ctx, func(st *state) error {
		cur, err := st.tickets.get(ctx, t.ID, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		cur.ContractID, cur.Title, cur.Description = t.ContractID, t.Title, t.Description
		cur.Category, cur.Priority, cur.Status = t.Category, t.Priority, t.Status
		cur.AssignedTo, cur.ClosedAt, cur.Meta = t.AssignedTo, t.ClosedAt, cloneMeta(t.Meta)
		cur.UpdatedAt = r.s.now()
		events, costs := t.Events, t.Costs
		*t = cur
		t.Events, t.Costs = events, costs
		return st.tickets.replace(ctx, cur, tenant.ActiveOnly)
	})
}

func (r ticketRepo) AddEvent(ctx context.Context, e *models.TicketEvent) error {
	return r.s.with(ctx, func(st *state) error {
		if _, err := st.tickets.get(ctx, e.TicketID, tenant.ActiveOnly); err != nil {
			return err
		}
		if err := r.s.stamp(ctx, &e.ID, &e.OrgID, &e.CreatedAt); err != nil {
			return err
		}
		st.events.insert(*e, st.next())
		return nil
	})
}

func (r ticketRepo) AddCost(ctx context.Context, c *models.TicketCost) error {
	return r.s.with(ctx, func(st *state) error {
		if _, err := st.tickets.get(ctx, c.TicketID, tenant.ActiveOnly); err != nil {
			return err
		}
		if err := r.s.stamp(ctx, &c.ID, &c.OrgID, &c.CreatedAt); err != nil {
			return err
		}
		st.costs.insert(*c, st.next())
		return nil
	})
}
