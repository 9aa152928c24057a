package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketOpen         TicketStatus = "OPEN"
	TicketReceived     TicketStatus = "RECEIVED"
	TicketInProgress   TicketStatus = "IN_PROGRESS"
	TicketWaitingParts TicketStatus = "WAITING_PARTS"
	TicketDone         TicketStatus = "DONE"
	TicketCancelled    TicketStatus = "CANCELLED"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketReceived, TicketInProgress, TicketWaitingParts, TicketDone, TicketCancelled:
		return true
	}
	return false
}

// Closed reports whether the status stamps closed_at.
func (s TicketStatus) Closed() bool {
	return s == TicketDone || s == TicketCancelled
}

type TicketPriority string

const (
	PriorityLow    TicketPriority = "LOW"
	PriorityNormal TicketPriority = "NORMAL"
	PriorityHigh   TicketPriority = "HIGH"
	PriorityUrgent TicketPriority = "URGENT"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Ticket struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	OrgID       uuid.UUID      `json:"org_id" db:"org_id"`
	PropertyID  uuid.UUID      `json:"property_id" db:"property_id"`
	RoomID      uuid.UUID      `json:"room_id" db:"room_id"`
	ContractID  *uuid.UUID     `json:"contract_id,omitempty" db:"contract_id"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	Category    string         `json:"category,omitempty" db:"category"`
	Priority    TicketPriority `json:"priority" db:"priority"`
	Status      TicketStatus   `json:"status" db:"status"`
	CreatedBy   uuid.UUID      `json:"created_by" db:"created_by"`
	AssignedTo  *uuid.UUID     `json:"assigned_to,omitempty" db:"assigned_to"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty" db:"closed_at"`
	Meta        Meta           `json:"meta" db:"meta"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`

	Events []TicketEvent `json:"events,omitempty" db:"-"`
	Costs  []TicketCost  `json:"costs,omitempty" db:"-"`
}

func (t Ticket) OwnerOrgID() uuid.UUID { return t.OrgID }

type TicketEventType string

const (
	EventCreated       TicketEventType = "CREATED"
	EventStatusChanged TicketEventType = "STATUS_CHANGED"
	EventComment       TicketEventType = "COMMENT"
)

// TicketEvent is append-only.
type TicketEvent struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrgID     uuid.UUID       `json:"org_id" db:"org_id"`
	TicketID  uuid.UUID       `json:"ticket_id" db:"ticket_id"`
	Type      TicketEventType `json:"type" db:"type"`
	Status    *TicketStatus   `json:"status,omitempty" db:"status"`
	Message   string          `json:"message,omitempty" db:"message"`
	ActorID   *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

func (e TicketEvent) OwnerOrgID() uuid.UUID { return e.OrgID }

type CostPayer string

const (
	PayerOwner  CostPayer = "OWNER"
	PayerTenant CostPayer = "TENANT"
)

func (p CostPayer) Valid() bool { return p == PayerOwner || p == PayerTenant }

// TicketCost is append-only.
type TicketCost struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrgID       uuid.UUID       `json:"org_id" db:"org_id"`
	TicketID    uuid.UUID       `json:"ticket_id" db:"ticket_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Payer       CostPayer       `json:"payer" db:"payer"`
	Description string          `json:"description,omitempty" db:"description"`
	CreatedBy   *uuid.UUID      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

func (c TicketCost) OwnerOrgID() uuid.UUID { return c.OrgID }
