// Package invoice drives the invoice lifecycle:
//
//	DRAFT -> ISSUED -> PENDING -> PAID
//	           |         |  ^
//	           +---------+--+-> OVERDUE -> PAID
//
// Every state before PAID may also move to CANCELLED. PAID and CANCELLED are
// terminal.
package invoice

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
	"github.com/nikhilbhutani/rentalcore/internal/metering"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/notify"
	"github.com/nikhilbhutani/rentalcore/internal/pricing"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

const resourceType = "invoice"

var transitions = map[models.InvoiceStatus][]models.InvoiceStatus{
	models.InvoiceDraft:   {models.InvoiceIssued, models.InvoiceCancelled},
	models.InvoiceIssued:  {models.InvoicePending, models.InvoicePaid, models.InvoiceOverdue, models.InvoiceCancelled},
	models.InvoicePending: {models.InvoicePaid, models.InvoiceOverdue, models.InvoiceCancelled},
	models.InvoiceOverdue: {models.InvoicePending, models.InvoicePaid, models.InvoiceCancelled},
}

// CanTransition reports whether an invoice may move from one status to
// another. Staying in place is always allowed.
func CanTransition(from, to models.InvoiceStatus) bool {
	return from == to || slices.Contains(transitions[from], to)
}

type Service struct {
	store    store.Store
	eval     *rbac.Evaluator
	audit    *audit.Service
	pricing  *pricing.Service
	metering *metering.Service
	notify   *notify.Publisher
	now      func() time.Time
}

func NewService(st store.Store, eval *rbac.Evaluator, au *audit.Service, pr *pricing.Service, mt *metering.Service, pub *notify.Publisher) *Service {
	return &Service{
		store: st, eval: eval, audit: au, pricing: pr, metering: mt, notify: pub,
		now: func() time.Time { return time.Now().UTC() },
	}
}

type ItemInput struct {
	Type        models.InvoiceItemType `json:"type" validate:"required,oneof=RENT SERVICE PENALTY DISCOUNT ADJUSTMENT"`
	Description string                 `json:"description" validate:"required,max=255"`
	Quantity    decimal.Decimal        `json:"quantity"`
	UnitPrice   decimal.Decimal        `json:"unit_price"`
	Amount      decimal.Decimal        `json:"amount"`
	ServiceID   *uuid.UUID             `json:"service_id"`
}

type CreateInput struct {
	ContractID  uuid.UUID            `json:"contract_id" validate:"required"`
	Code        string               `json:"code" validate:"max=64"`
	PeriodStart time.Time            `json:"period_start" validate:"required"`
	PeriodEnd   time.Time            `json:"period_end" validate:"required"`
	DueDate     time.Time            `json:"due_date" validate:"required"`
	Status      models.InvoiceStatus `json:"status" validate:"omitempty,oneof=DRAFT ISSUED"`
	Note        string               `json:"note" validate:"max=2000"`
	Items       []ItemInput          `json:"items" validate:"dive"`
}

type UpdateInput struct {
	Status      *models.InvoiceStatus `json:"status"`
	PeriodStart *time.Time            `json:"period_start"`
	PeriodEnd   *time.Time            `json:"period_end"`
	DueDate     *time.Time            `json:"due_date"`
	PaidAmount  *decimal.Decimal      `json:"paid_amount"`
	Note        *string               `json:"note"`
	// Items replaces every line of a DRAFT invoice.
	Items *[]ItemInput `json:"items" validate:"omitempty,dive"`
}

type ListInput struct {
	PropertyID *uuid.UUID
	ContractID *uuid.UUID
	Status     models.InvoiceStatus
	Page       store.Page
}

func actor(ctx context.Context) *uuid.UUID {
	if s := rbac.SessionFrom(ctx); s != nil {
		id := s.UserID()
		return &id
	}
	return nil
}

// buildItems converts input lines. Amount is trusted when given and derived
// from quantity and unit price otherwise. Discounts are stored negative.
func buildItems(in []ItemInput) ([]models.InvoiceItem, decimal.Decimal, error) {
	items := make([]models.InvoiceItem, 0, len(in))
	total := decimal.Zero
	for i, it := range in {
		if !it.Type.Valid() {
			return nil, decimal.Zero, apperr.Validation("item %d: invalid type %q", i, it.Type)
		}
		amount := it.Amount
		if amount.IsZero() {
			amount = it.Quantity.Mul(it.UnitPrice)
		}
		if it.Type == models.ItemDiscount && amount.IsPositive() {
			amount = amount.Neg()
		}
		items = append(items, models.InvoiceItem{
			Type: it.Type, Description: strings.TrimSpace(it.Description),
			Quantity: it.Quantity, UnitPrice: it.UnitPrice, Amount: amount, ServiceID: it.ServiceID,
		})
		total = total.Add(amount)
	}
	if total.IsNegative() {
		return nil, decimal.Zero, apperr.BusinessRule("invoice total must not be negative")
	}
	return items, total, nil
}

func (s *Service) newCode(c *models.Contract, periodStart time.Time) string {
	return fmt.Sprintf("INV-%s-%s-%s", c.Code, periodStart.Format("200601"), strings.ToUpper(uuid.NewString()[:4]))
}

// Create stores an invoice with its items in one transaction. The total is
// the sum of item amounts.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Invoice, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleInvoice, nil); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = models.InvoiceDraft
	}
	if status != models.InvoiceDraft && status != models.InvoiceIssued {
		return nil, apperr.Validation("invoices are created as DRAFT or ISSUED")
	}
	if status == models.InvoiceIssued {
		if err := s.eval.Authorize(ctx, rbac.ActionIssue, rbac.ModuleInvoice, nil); err != nil {
			return nil, err
		}
	}
	if in.PeriodEnd.Before(in.PeriodStart) {
		return nil, apperr.Validation("period end is before period start")
	}
	items, total, err := buildItems(in.Items)
	if err != nil {
		return nil, err
	}
	if status == models.InvoiceIssued && len(items) == 0 {
		return nil, apperr.BusinessRule("cannot issue an invoice without items")
	}

	var inv *models.Invoice
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		c, err := s.store.Contracts().Get(ctx, in.ContractID)
		if err != nil {
			return apperr.MapNotFound(err, "contract")
		}
		inv = &models.Invoice{
			OrgID: c.OrgID, PropertyID: c.PropertyID, ContractID: c.ID, RoomID: c.RoomID,
			Code: strings.TrimSpace(in.Code), PeriodStart: in.PeriodStart, PeriodEnd: in.PeriodEnd, DueDate: in.DueDate,
			Status: status, TotalAmount: total, PaidAmount: decimal.Zero, Note: in.Note, CreatedBy: actor(ctx),
			Items: items,
		}
		if inv.Code == "" {
			inv.Code = s.newCode(c, in.PeriodStart)
		}
		if status == models.InvoiceIssued {
			now := s.now()
			inv.IssuedAt = &now
		}
		if err := s.store.Invoices().Create(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{
			OrgID: inv.OrgID, Action: "created", ResourceType: resourceType, ResourceID: &inv.ID,
			Details: models.Meta{"status": string(inv.Status), "total": inv.TotalAmount.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	out := inv.WithDebt()
	if out.Status == models.InvoiceIssued {
		s.publish(ctx, notify.InvoiceIssued, &out)
	}
	return &out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.store.Invoices().Get(ctx, id)
	if err != nil {
		return nil, apperr.MapNotFound(err, "invoice")
	}
	if err := s.eval.Authorize(ctx, rbac.ActionView, rbac.ModuleInvoice, inv); err != nil {
		return nil, err
	}
	out := inv.WithDebt()
	return &out, nil
}

// List returns invoices visible to the actor. Tenants see the invoices of
// contracts they currently belong to.
func (s *Service) List(ctx context.Context, in ListInput) ([]models.Invoice, error) {
	f := store.InvoiceFilter{PropertyID: in.PropertyID, ContractID: in.ContractID, Status: in.Status, Page: in.Page}
	switch s.eval.ListScope(ctx, rbac.ModuleInvoice) {
	case rbac.ListDenied:
		return nil, apperr.Forbidden()
	case rbac.ListMembersOnly:
		ids, err := s.store.Contracts().MemberContractIDs(ctx, rbac.SessionFrom(ctx).UserID())
		if err != nil {
			return nil, fmt.Errorf("list member contracts: %w", err)
		}
		f.ContractIDs = ids
	}
	rows, err := s.store.Invoices().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	for i := range rows {
		rows[i] = rows[i].WithDebt()
	}
	return rows, nil
}

// Update patches an invoice. Status moves follow the transition table;
// items may only be replaced while DRAFT.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Invoice, error) {
	return s.update(ctx, id, func(ctx context.Context, inv *models.Invoice) error {
		if in.Items != nil {
			if inv.Status != models.InvoiceDraft {
				return apperr.BusinessRule("items can only be changed while the invoice is DRAFT")
			}
			items, total, err := buildItems(*in.Items)
			if err != nil {
				return err
			}
			if err := s.store.Invoices().ReplaceItems(ctx, inv.ID, items); err != nil {
				return fmt.Errorf("replace invoice items: %w", err)
			}
			inv.Items, inv.TotalAmount = items, total
		}
		if in.PeriodStart != nil {
			inv.PeriodStart = *in.PeriodStart
		}
		if in.PeriodEnd != nil {
			inv.PeriodEnd = *in.PeriodEnd
		}
		if inv.PeriodEnd.Before(inv.PeriodStart) {
			return apperr.Validation("period end is before period start")
		}
		if in.DueDate != nil {
			inv.DueDate = *in.DueDate
		}
		if in.Note != nil {
			inv.Note = *in.Note
		}
		if in.PaidAmount != nil {
			if in.PaidAmount.IsNegative() {
				return apperr.Validation("paid amount must not be negative")
			}
			inv.PaidAmount = *in.PaidAmount
		}
		if in.Status != nil && *in.Status != inv.Status {
			return s.move(ctx, inv, *in.Status)
		}
		return nil
	})
}

// update locks the invoice row, applies fn to it and persists the result in
// one transaction.
func (s *Service) update(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, inv *models.Invoice) error) (*models.Invoice, error) {
	var (
		out  *models.Invoice
		from models.InvoiceStatus
	)
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		inv, err := s.store.Invoices().GetForUpdate(ctx, id)
		if err != nil {
			return apperr.MapNotFound(err, "invoice")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionUpdate, rbac.ModuleInvoice, inv); err != nil {
			return err
		}
		from = inv.Status
		if from == models.InvoicePaid || from == models.InvoiceCancelled {
			return apperr.BusinessRule("invoice is %s and can no longer change", from)
		}
		if err := fn(ctx, inv); err != nil {
			return err
		}
		if inv.PaidAmount.GreaterThan(inv.TotalAmount) {
			return apperr.BusinessRule("paid amount %s exceeds total %s", inv.PaidAmount, inv.TotalAmount)
		}

		if err := s.store.Invoices().Update(ctx, inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		out = inv
		if inv.Status != from {
			return s.audit.Transition(ctx, resourceType, inv.OrgID, inv.ID, string(from), string(inv.Status))
		}
		return s.audit.Log(ctx, audit.LogEntry{OrgID: inv.OrgID, Action: "updated", ResourceType: resourceType, ResourceID: &inv.ID})
	})
	if err != nil {
		return nil, err
	}
	res := out.WithDebt()
	s.announce(ctx, from, &res)
	return &res, nil
}

// move validates and stamps a status change on inv.
func (s *Service) move(ctx context.Context, inv *models.Invoice, to models.InvoiceStatus) error {
	if !to.Valid() {
		return apperr.Validation("invalid invoice status %q", to)
	}
	if !CanTransition(inv.Status, to) {
		return apperr.BusinessRule("invoice cannot move from %s to %s", inv.Status, to)
	}
	action := rbac.ActionUpdateStatus
	if to == models.InvoiceIssued {
		action = rbac.ActionIssue
	}
	if err := s.eval.Authorize(ctx, action, rbac.ModuleInvoice, inv); err != nil {
		return err
	}
	now := s.now()
	switch to {
	case models.InvoiceIssued:
		if len(inv.Items) == 0 {
			return apperr.BusinessRule("cannot issue an invoice without items")
		}
		inv.IssuedAt = &now
	case models.InvoicePaid:
		if inv.PaidAmount.IsZero() {
			inv.PaidAmount = inv.TotalAmount
		}
		if !inv.PaidAmount.Equal(inv.TotalAmount) {
			return apperr.BusinessRule("invoice is not fully paid: %s of %s", inv.PaidAmount, inv.TotalAmount)
		}
		inv.PaidAt = &now
	}
	inv.Status = to
	return nil
}

// Issue moves a DRAFT invoice to ISSUED.
func (s *Service) Issue(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	to := models.InvoiceIssued
	return s.Update(ctx, id, UpdateInput{Status: &to})
}

// Cancel voids an invoice that is not yet PAID.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	to := models.InvoiceCancelled
	return s.Update(ctx, id, UpdateInput{Status: &to})
}

// RecordPayment adds amount to the paid balance of the locked row. A settled
// invoice becomes PAID; a partial payment moves it to PENDING.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*models.Invoice, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("payment amount must be positive")
	}
	return s.update(ctx, id, func(ctx context.Context, inv *models.Invoice) error {
		if inv.Status == models.InvoiceDraft {
			return apperr.BusinessRule("cannot record a payment on a DRAFT invoice")
		}
		inv.PaidAmount = inv.PaidAmount.Add(amount)
		to := models.InvoicePending
		if inv.PaidAmount.Equal(inv.TotalAmount) {
			to = models.InvoicePaid
		}
		if inv.Status == to {
			return nil
		}
		return s.move(ctx, inv, to)
	})
}

// Delete removes a DRAFT invoice and its items.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.InTx(ctx, func(ctx context.Context) error {
		inv, err := s.store.Invoices().GetForUpdate(ctx, id)
		if err != nil {
			return apperr.MapNotFound(err, "invoice")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionDelete, rbac.ModuleInvoice, inv); err != nil {
			return err
		}
		if inv.Status != models.InvoiceDraft {
			return apperr.BusinessRule("only DRAFT invoices can be deleted, invoice is %s", inv.Status)
		}
		if err := s.store.Invoices().Delete(ctx, inv.ID); err != nil {
			return fmt.Errorf("delete invoice: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{OrgID: inv.OrgID, Action: "deleted", ResourceType: resourceType, ResourceID: &inv.ID})
	})
}

type GenerateInput struct {
	ContractID  uuid.UUID `json:"contract_id" validate:"required"`
	PeriodStart time.Time `json:"period_start" validate:"required"`
	// DueDate defaults to the contract's billing day in the following month.
	DueDate *time.Time `json:"due_date"`
}

// GenerateForContract drafts the invoice of one billing month: a RENT line
// for the contract price plus one SERVICE line per active service. Flat
// services bill one unit; metered services bill the consumption of each
// approved reading of the room in the period.
func (s *Service) GenerateForContract(ctx context.Context, in GenerateInput) (*models.Invoice, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionGenerate, rbac.ModuleInvoice, nil); err != nil {
		return nil, err
	}
	start := time.Date(in.PeriodStart.Year(), in.PeriodStart.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	var inv *models.Invoice
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		c, err := s.store.Contracts().GetForUpdate(ctx, in.ContractID)
		if err != nil {
			return apperr.MapNotFound(err, "contract")
		}
		if c.Status != models.ContractActive {
			return apperr.BusinessRule("only ACTIVE contracts are billed, contract is %s", c.Status)
		}
		exists, err := s.store.Invoices().ExistsForPeriod(ctx, c.ID, start)
		if err != nil {
			return fmt.Errorf("check invoice period: %w", err)
		}
		if exists {
			return apperr.BusinessRule("contract already has an invoice for %s", start.Format("2006-01"))
		}

		items := []models.InvoiceItem{{
			Type: models.ItemRent, Description: "Rent " + start.Format("01/2006"),
			Quantity: decimal.NewFromInt(1), UnitPrice: c.RentPrice, Amount: c.RentPrice,
		}}
		lines, err := s.serviceLines(ctx, c, start, end)
		if err != nil {
			return err
		}
		items = append(items, lines...)

		total := decimal.Zero
		for _, it := range items {
			total = total.Add(it.Amount)
		}
		due := dueDate(start, c.BillingDay)
		if in.DueDate != nil {
			due = *in.DueDate
		}
		inv = &models.Invoice{
			OrgID: c.OrgID, PropertyID: c.PropertyID, ContractID: c.ID, RoomID: c.RoomID,
			Code: s.newCode(c, start), PeriodStart: start, PeriodEnd: end, DueDate: due,
			Status: models.InvoiceDraft, TotalAmount: total, PaidAmount: decimal.Zero, CreatedBy: actor(ctx),
			Items: items,
		}
		if err := s.store.Invoices().Create(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{
			OrgID: inv.OrgID, Action: "generated", ResourceType: resourceType, ResourceID: &inv.ID,
			Details: models.Meta{"period": start.Format("2006-01"), "items": float64(len(items)), "total": total.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	slog.Info("invoice generated", "org_id", inv.OrgID, "invoice_id", inv.ID, "contract_id", inv.ContractID, "total", inv.TotalAmount.String())
	out := inv.WithDebt()
	return &out, nil
}

// dueDate is the contract's billing day in the month after the period,
// clamped to the end of that month.
func dueDate(periodStart time.Time, billingDay int) time.Time {
	next := periodStart.AddDate(0, 1, 0)
	last := next.AddDate(0, 1, -1).Day()
	day := min(max(billingDay, 1), last)
	return time.Date(next.Year(), next.Month(), day, 0, 0, 0, 0, time.UTC)
}

func (s *Service) serviceLines(ctx context.Context, c *models.Contract, start, end time.Time) ([]models.InvoiceItem, error) {
	services, err := s.store.Pricing().ListServices(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	readings, err := s.store.Meters().ListReadings(ctx, store.ReadingFilter{
		RoomID: &c.RoomID, Status: models.ReadingApproved, From: &start, To: &end, Page: store.Page{Limit: store.MaxLimit},
	})
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	meterTypes := map[uuid.UUID]models.MeterType{}
	for _, rd := range readings {
		if _, ok := meterTypes[rd.MeterID]; ok {
			continue
		}
		m, err := s.store.Meters().GetMeter(ctx, rd.MeterID)
		if err != nil {
			return nil, fmt.Errorf("load meter %s: %w", rd.MeterID, err)
		}
		meterTypes[m.ID] = m.Type
	}

	var items []models.InvoiceItem
	for _, svc := range services {
		rate, err := s.pricing.CurrentRate(ctx, svc.ID, start)
		if err != nil {
			if apperr.Is(err, apperr.KindBusinessRule) {
				slog.Warn("service skipped: no effective rate", "service", svc.Code, "period", start.Format("2006-01"))
				continue
			}
			return nil, err
		}
		id := svc.ID
		switch svc.ChargeMode {
		case models.ChargeFlat:
			one := decimal.NewFromInt(1)
			items = append(items, models.InvoiceItem{
				Type: models.ItemService, Description: svc.Name, ServiceID: &id,
				Quantity: one, UnitPrice: rate.UnitPrice, Amount: pricing.Charge(*rate, one),
			})
		case models.ChargeMetered:
			if svc.MeterType == nil {
				continue
			}
			for _, rd := range readings {
				if meterTypes[rd.MeterID] != *svc.MeterType {
					continue
				}
				u, err := s.metering.Consumption(ctx, rd)
				if err != nil {
					return nil, err
				}
				amount := pricing.Charge(*rate, u.Quantity)
				unit := rate.UnitPrice
				if u.Quantity.IsPositive() {
					unit = amount.Div(u.Quantity).Round(2)
				}
				desc := fmt.Sprintf("%s %s", svc.Name, rd.ReadingValue)
				if u.Previous != nil {
					desc = fmt.Sprintf("%s %s -> %s", svc.Name, u.Previous.ReadingValue, rd.ReadingValue)
				}
				items = append(items, models.InvoiceItem{
					Type: models.ItemService, Description: desc, ServiceID: &id,
					Quantity: u.Quantity, UnitPrice: unit, Amount: amount,
				})
			}
		}
	}
	return items, nil
}

// MarkOverdue moves every ISSUED or PENDING invoice due before asOf to
// OVERDUE across all organizations. Each invoice commits on its own; a
// failure is logged and the sweep continues.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	ctx = tenant.System(ctx)
	due, err := s.store.Invoices().DueBefore(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("list due invoices: %w", err)
	}
	var (
		marked int
		errs   []error
	)
	for _, d := range due {
		var inv *models.Invoice
		err := s.store.InTx(ctx, func(ctx context.Context) (err error) {
			if inv, err = s.store.Invoices().GetForUpdate(ctx, d.ID); err != nil {
				return err
			}
			if !CanTransition(inv.Status, models.InvoiceOverdue) || inv.Status == models.InvoiceOverdue {
				inv = nil
				return nil
			}
			from := inv.Status
			inv.Status = models.InvoiceOverdue
			if err := s.store.Invoices().Update(ctx, inv); err != nil {
				return err
			}
			return s.audit.Transition(ctx, resourceType, inv.OrgID, inv.ID, string(from), string(inv.Status))
		})
		if err != nil {
			slog.Error("mark invoice overdue", "invoice_id", d.ID, "error", err)
			errs = append(errs, fmt.Errorf("invoice %s: %w", d.ID, err))
			continue
		}
		if inv != nil {
			marked++
			s.publish(ctx, notify.InvoiceOverdue, inv)
		}
	}
	slog.Info("overdue sweep finished", "as_of", asOf.Format(time.DateOnly), "candidates", len(due), "marked", marked)
	return marked, errors.Join(errs...)
}

func (s *Service) announce(ctx context.Context, from models.InvoiceStatus, inv *models.Invoice) {
	if inv.Status == from {
		return
	}
	slog.Info("invoice status changed", "org_id", inv.OrgID, "invoice_id", inv.ID, "from", from, "status", inv.Status)
	switch inv.Status {
	case models.InvoiceIssued:
		s.publish(ctx, notify.InvoiceIssued, inv)
	case models.InvoicePaid:
		s.publish(ctx, notify.InvoicePaid, inv)
	case models.InvoiceOverdue:
		s.publish(ctx, notify.InvoiceOverdue, inv)
	}
}

func (s *Service) publish(ctx context.Context, ev notify.Event, inv *models.Invoice) {
	s.notify.Publish(ctx, notify.Notification{
		Event: ev, OrgID: inv.OrgID, ResourceType: resourceType, ResourceID: inv.ID, ActorID: actor(ctx),
		Data: map[string]string{"code": inv.Code, "total": inv.TotalAmount.String(), "contract_id": inv.ContractID.String()},
	})
}
