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
	invoiceColumns = "id, org_id, property_id, contract_id, room_id, code, period_start, period_end, due_date, " +
		"status, total_amount, paid_amount, issued_at, paid_at, note, created_by, created_at, updated_at"
	itemColumns = "id, org_id, invoice_id, type, description, quantity, unit_price, amount, service_id, created_at"
)

type invoiceRepo struct{ s *Store }

func (r invoiceRepo) Create(ctx context.Context, inv *models.Invoice) error {
	return r.s.InTx(ctx, func(ctx context.Context) error {
		if err := stamp(ctx, &inv.ID, &inv.OrgID, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return err
		}
		if err := insert(ctx, r.s.conn(ctx), tenant.Invoices, invoiceColumns,
			inv.ID, inv.OrgID, inv.PropertyID, inv.ContractID, inv.RoomID, inv.Code, inv.PeriodStart, inv.PeriodEnd,
			inv.DueDate, inv.Status, inv.TotalAmount, inv.PaidAmount, inv.IssuedAt, inv.PaidAt, inv.Note,
			inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt); err != nil {
			return err
		}
		return r.insertItems(ctx, inv.ID, inv.Items)
	})
}

func (r invoiceRepo) insertItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceItem) error {
	for i := range items {
		it := &items[i]
		it.InvoiceID = invoiceID
		if err := stamp(ctx, &it.ID, &it.OrgID, &it.CreatedAt); err != nil {
			return err
		}
		if err := insert(ctx, r.s.conn(ctx), tenant.InvoiceItems, itemColumns,
			it.ID, it.OrgID, it.InvoiceID, it.Type, it.Description, it.Quantity, it.UnitPrice, it.Amount,
			it.ServiceID, it.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r invoiceRepo) get(ctx context.Context, id uuid.UUID, lock bool) (*models.Invoice, error) {
	sel := tenant.Select(ctx, tenant.Invoices, invoiceColumns).Where("id = ?", id)
	if lock {
		sel.ForUpdate()
	}
	sql, args := sel.Build()
	inv, err := one[models.Invoice](ctx, r.s.conn(ctx), sql, args, "invoice")
	if err != nil {
		return nil, err
	}
	sql, args = tenant.Select(ctx, tenant.InvoiceItems, itemColumns).
		Where("invoice_id = ?", id).OrderBy("created_at, id").Build()
	if inv.Items, err = many[models.InvoiceItem](ctx, r.s.conn(ctx), sql, args, "invoice items"); err != nil {
		return nil, err
	}
	out := inv.WithDebt()
	return &out, nil
}

func (r invoiceRepo) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return r.get(ctx, id, false)
}

func (r invoiceRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return r.get(ctx, id, true)
}

func (r invoiceRepo) List(ctx context.Context, f store.InvoiceFilter) ([]models.Invoice, error) {
	sel := tenant.Select(ctx, tenant.Invoices, invoiceColumns).OrderBy("period_start DESC, created_at DESC")
	if f.PropertyID != nil {
		sel.Where("property_id = ?", *f.PropertyID)
	}
	if f.ContractID != nil {
		sel.Where("contract_id = ?", *f.ContractID)
	}
	if f.Status != "" {
		sel.Where("status = ?", f.Status)
	}
	anyOf(sel, "contract_id", f.ContractIDs)
	sql, args := page(sel, f.Page).Build()
	out, err := many[models.Invoice](ctx, r.s.conn(ctx), sql, args, "invoices")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = out[i].WithDebt()
	}
	return out, nil
}

func (r invoiceRepo) Update(ctx context.Context, inv *models.Invoice) error {
	sql, args := tenant.Update(ctx, tenant.Invoices).
		Set("code", inv.Code).Set("period_start", inv.PeriodStart).Set("period_end", inv.PeriodEnd).
		Set("due_date", inv.DueDate).Set("status", inv.Status).
		Set("total_amount", inv.TotalAmount).Set("paid_amount", inv.PaidAmount).
		Set("issued_at", inv.IssuedAt).Set("paid_at", inv.PaidAt).Set("note", inv.Note).
		SetExpr("updated_at = now()").
		Where("id = ?", inv.ID).
		Returning(invoiceColumns).Build()
	got, err := one[models.Invoice](ctx, r.s.conn(ctx), sql, args, "invoice")
	if err != nil {
		return err
	}
	got.Items = inv.Items
	*inv = got.WithDebt()
	return nil
}

func (r invoiceRepo) ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceItem) error {
	return r.s.InTx(ctx, func(ctx context.Context) error {
		sql, args := tenant.Delete(ctx, tenant.InvoiceItems).Where("invoice_id = ?", invoiceID).Build()
		if _, err := r.s.conn(ctx).Exec(ctx, sql, args...); err != nil {
			return wrap(err, "clear invoice items")
		}
		return r.insertItems(ctx, invoiceID, items)
	})
}

func (r invoiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.InTx(ctx, func(ctx context.Context) error {
		sql, args := tenant.Delete(ctx, tenant.InvoiceItems).Where("invoice_id = ?", id).Build()
		if _, err := r.s.conn(ctx).Exec(ctx, sql, args...); err != nil {
			return wrap(err, "delete invoice items")
		}
		sql, args = tenant.Delete(ctx, tenant.Invoices).Where("id = ?", id).Build()
		tag, err := r.s.conn(ctx).Exec(ctx, sql, args...)
		return execExpectOne(tag, err, "delete invoice %s", id)
	})
}

func (r invoiceRepo) DueBefore(ctx context.Context, asOf time.Time) ([]models.Invoice, error) {
	sql, args := tenant.Select(ctx, tenant.Invoices, invoiceColumns).
		Where("status IN (?, ?)", models.InvoiceIssued, models.InvoicePending).
		Where("due_date < ?", asOf).
		OrderBy("due_date").Build()
	return many[models.Invoice](ctx, r.s.conn(ctx), sql, args, "due invoices")
}

func (r invoiceRepo) ExistsForPeriod(ctx context.Context, contractID uuid.UUID, periodStart time.Time) (bool, error) {
	sel := tenant.Select(ctx, tenant.Invoices, "id").
		Where("contract_id = ?", contractID).Where("period_start = ?", periodStart).
		Where("status <> ?", models.InvoiceCancelled)
	return exists(ctx, r.s.conn(ctx), sel, "invoice for period")
}
