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

type invoiceRepo struct{ s *Store }

func (st *state) insertItems(inv *models.Invoice, items []models.InvoiceItem, now time.Time) {
	for i := range items {
		it := &items[i]
		it.InvoiceID, it.OrgID = inv.ID, inv.OrgID
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		st.items.insert(*it, st.next())
	}
}

func (st *state) invoiceItems(ctx context.Context, invoiceID uuid.UUID) []models.InvoiceItem {
	rows := st.items.list(ctx, tenant.ActiveOnly, func(it models.InvoiceItem) bool { return it.InvoiceID == invoiceID })
	slices.Reverse(rows)
	return rows
}

func (r invoiceRepo) Create(ctx context.Context, inv *models.Invoice) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &inv.ID, &inv.OrgID, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return err
		}
		st.invoices.insert(*inv, st.next())
		st.insertItems(inv, inv.Items, r.s.now())
		return nil
	})
}

func (r invoiceRepo) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var out models.Invoice
	err := r.s.with(ctx, func(st *state) (err error) {
		if out, err = st.invoices.get(ctx, id, tenant.ActiveOnly); err != nil {
			return err
		}
		out.Items = st.invoiceItems(ctx, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r invoiceRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return r.Get(ctx, id)
}

func (r invoiceRepo) List(ctx context.Context, f store.InvoiceFilter) ([]models.Invoice, error) {
	var out []models.Invoice
	err := r.s.with(ctx, func(st *state) error {
		rows := st.invoices.list(ctx, tenant.ActiveOnly, func(inv models.Invoice) bool {
			switch {
			case f.PropertyID != nil && inv.PropertyID != *f.PropertyID:
				return false
			case f.ContractID != nil && inv.ContractID != *f.ContractID:
				return false
			case f.Status != "" && inv.Status != f.Status:
				return false
			case f.ContractIDs != nil && !contains(f.ContractIDs, inv.ContractID):
				return false
			}
			return true
		})
		out = paginate(rows, f.Page)
		return nil
	})
	return out, err
}

func (r invoiceRepo) Update(ctx context.Context, inv *models.Invoice) error {
	return r.s.with(ctx, func(st *state) error {
		cur, err := st.invoices.get(ctx, inv.ID, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		cur.PeriodStart, cur.PeriodEnd, cur.DueDate = inv.PeriodStart, inv.PeriodEnd, inv.DueDate
		cur.Status, cur.TotalAmount, cur.PaidAmount = inv.Status, inv.TotalAmount, inv.PaidAmount
		cur.IssuedAt, cur.PaidAt, cur.Note = inv.IssuedAt, inv.PaidAt, inv.Note
		cur.UpdatedAt = r.s.now()
		items := inv.Items
		*inv = cur
		inv.Items = items
		return st.invoices.replace(ctx, cur, tenant.ActiveOnly)
	})
}

func (r invoiceRepo) ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceItem) error {
	return r.s.with(ctx, func(st *state) error {
		inv, err := st.invoices.get(ctx, invoiceID, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		st.items.removeWhere(func(it models.InvoiceItem) bool { return it.InvoiceID == invoiceID })
		st.insertItems(&inv, items, r.s.now())
		return nil
	})
}

func (r invoiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.with(ctx, func(st *state) error {
		if err := st.invoices.remove(ctx, id); err != nil {
			return err
		}
		st.items.removeWhere(func(it models.InvoiceItem) bool { return it.InvoiceID == id })
		return nil
	})
}

func (r invoiceRepo) DueBefore(ctx context.Context, asOf time.Time) ([]models.Invoice, error) {
	var out []models.Invoice
	err := r.s.with(ctx, func(st *state) error {
		out = st.invoices.list(ctx, tenant.ActiveOnly, func(inv models.Invoice) bool {
			return (inv.Status == models.InvoiceIssued || inv.Status == models.InvoicePending) && inv.DueDate.Before(asOf)
		})
		return nil
	})
	return out, err
}

func (r invoiceRepo) ExistsForPeriod(ctx context.Context, contractID uuid.UUID, periodStart time.Time) (bool, error) {
	var ok bool
	err := r.s.with(ctx, func(st *state) error {
		_, ok = st.invoices.first(ctx, func(inv models.Invoice) bool {
			return inv.ContractID == contractID && inv.PeriodStart.Equal(periodStart) && inv.Status != models.InvoiceCancelled
		})
		return nil
	})
	return ok, err
}
