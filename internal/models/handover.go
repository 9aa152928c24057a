package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type HandoverType string

const (
	HandoverCheckIn  HandoverType = "CHECK_IN"
	HandoverCheckOut HandoverType = "CHECK_OUT"
)

func (t HandoverType) Valid() bool { return t == HandoverCheckIn || t == HandoverCheckOut }

type HandoverStatus string

const (
	HandoverDraft     HandoverStatus = "DRAFT"
	HandoverConfirmed HandoverStatus = "CONFIRMED"
)

type Handover struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	OrgID       uuid.UUID      `json:"org_id" db:"org_id"`
	ContractID  uuid.UUID      `json:"contract_id" db:"contract_id"`
	RoomID      uuid.UUID      `json:"room_id" db:"room_id"`
	Type        HandoverType   `json:"type" db:"type"`
	Status      HandoverStatus `json:"status" db:"status"`
	Note        string         `json:"note,omitempty" db:"note"`
	Meta        Meta           `json:"meta" db:"meta"`
	CreatedBy   *uuid.UUID     `json:"created_by,omitempty" db:"created_by"`
	ConfirmedBy *uuid.UUID     `json:"confirmed_by_user_id,omitempty" db:"confirmed_by_user_id"`
	ConfirmedAt *time.Time     `json:"confirmed_at,omitempty" db:"confirmed_at"`
	LockedAt    *time.Time     `json:"locked_at,omitempty" db:"locked_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`

	Items     []HandoverItem          `json:"items,omitempty" db:"-"`
	Snapshots []HandoverMeterSnapshot `json:"meter_snapshots,omitempty" db:"-"`
}

func (h Handover) OwnerOrgID() uuid.UUID { return h.OrgID }

// Mutable reports whether children may still change.
func (h Handover) Mutable() bool {
	return h.Status == HandoverDraft && h.LockedAt == nil
}

type ItemCondition string

const (
	ConditionOK      ItemCondition = "OK"
	ConditionMissing ItemCondition = "MISSING"
	ConditionDamaged ItemCondition = "DAMAGED"
)

func (c ItemCondition) Valid() bool {
	return c == ConditionOK || c == ConditionMissing || c == ConditionDamaged
}

type HandoverItem struct {
	ID         uuid.UUID     `json:"id" db:"id"`
	OrgID      uuid.UUID     `json:"org_id" db:"org_id"`
	HandoverID uuid.UUID     `json:"handover_id" db:"handover_id"`
	Name       string        `json:"name" db:"name"`
	Condition  ItemCondition `json:"condition" db:"condition"`
	Quantity   int           `json:"quantity" db:"quantity"`
	Note       string        `json:"note,omitempty" db:"note"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}

func (i HandoverItem) OwnerOrgID() uuid.UUID { return i.OrgID }

type HandoverMeterSnapshot struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrgID        uuid.UUID       `json:"org_id" db:"org_id"`
	HandoverID   uuid.UUID       `json:"handover_id" db:"handover_id"`
	MeterID      uuid.UUID       `json:"meter_id" db:"meter_id"`
	ReadingValue decimal.Decimal `json:"reading_value" db:"reading_value"`
	CapturedAt   time.Time       `json:"captured_at" db:"captured_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

func (s HandoverMeterSnapshot) OwnerOrgID() uuid.UUID { return s.OrgID }
