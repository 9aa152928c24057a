package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceIssued    InvoiceStatus = "ISSUED"
	InvoicePending   InvoiceStatus = "PENDING"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceOverdue   InvoiceStatus = "OVERDUE"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceIssued, InvoicePending, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

type InvoiceItemType string

const (
	ItemRent       InvoiceItemType = "RENT"
	ItemService    InvoiceItemType = "SERVICE"
	ItemPenalty    InvoiceItemType = "PENALTY"
	ItemDiscount   InvoiceItemType = "DISCOUNT"
	ItemAdjustment InvoiceItemType = "ADJUSTMENT"
)

func (t InvoiceItemType) Valid() bool {
	switch t {
	case ItemRent, ItemService, ItemPenalty, ItemDiscount, ItemAdjustment:
		return true
	}
	return false
}

type Invoice struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrgID       uuid.UUID       `json:"org_id" db:"org_id"`
	PropertyID  uuid.UUID       `json:"property_id" db:"property_id"`
	ContractID  uuid.UUID       `json:"contract_id" db:"contract_id"`
	RoomID      uuid.UUID       `json:"room_id" db:"room_id"`
	Code        string          `json:"code" db:"code"`
	PeriodStart time.Time       `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time       `json:"period_end" db:"period_end"`
	DueDate     time.Time       `json:"due_date" db:"due_date"`
	Status      InvoiceStatus   `json:"status" db:"status"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	IssuedAt    *time.Time      `json:"issued_at,omitempty" db:"issued_at"`
	PaidAt      *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	Note        string          `json:"note,omitempty" db:"note"`
	CreatedBy   *uuid.UUID      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`

	Items []InvoiceItem   `json:"items,omitempty" db:"-"`
	Debt  decimal.Decimal `json:"debt" db:"-"`
}

func (i Invoice) OwnerOrgID() uuid.UUID { return i.OrgID }

// WithDebt recomputes the derived outstanding balance.
func (i Invoice) WithDebt() Invoice {
	i.Debt = i.TotalAmount.Sub(i.PaidAmount)
	return i
}

type InvoiceItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrgID       uuid.UUID       `json:"org_id" db:"org_id"`
	InvoiceID   uuid.UUID       `json:"invoice_id" db:"invoice_id"`
	Type        InvoiceItemType `json:"type" db:"type"`
	Description string          `json:"description" db:"description"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	ServiceID   *uuid.UUID      `json:"service_id,omitempty" db:"service_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

func (it InvoiceItem) OwnerOrgID() uuid.UUID { return it.OrgID }
