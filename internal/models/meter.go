package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MeterType string

const (
	MeterElectric MeterType = "ELECTRIC"
	MeterWater    MeterType = "WATER"
)

func (t MeterType) Valid() bool {
	return t == MeterElectric || t == MeterWater
}

type Meter struct {
	ID           uuid.UUID `json:"id" db:"id"`
	OrgID        uuid.UUID `json:"org_id" db:"org_id"`
	RoomID       uuid.UUID `json:"room_id" db:"room_id"`
	Type         MeterType `json:"type" db:"type"`
	SerialNumber string    `json:"serial_number" db:"serial_number"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

func (m Meter) OwnerOrgID() uuid.UUID { return m.OrgID }

type ReadingStatus string

const (
	ReadingPending   ReadingStatus = "PENDING"
	ReadingSubmitted ReadingStatus = "SUBMITTED"
	ReadingApproved  ReadingStatus = "APPROVED"
	ReadingRejected  ReadingStatus = "REJECTED"
)

type MeterReading struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrgID        uuid.UUID       `json:"org_id" db:"org_id"`
	MeterID      uuid.UUID       `json:"meter_id" db:"meter_id"`
	RoomID       uuid.UUID       `json:"room_id" db:"room_id"`
	PeriodStart  time.Time       `json:"period_start" db:"period_start"`
	PeriodEnd    time.Time       `json:"period_end" db:"period_end"`
	ReadingValue decimal.Decimal `json:"reading_value" db:"reading_value"`
	Status       ReadingStatus   `json:"status" db:"status"`
	RejectReason string          `json:"reject_reason,omitempty" db:"reject_reason"`
	CreatedBy    *uuid.UUID      `json:"created_by,omitempty" db:"created_by"`
	ApprovedBy   *uuid.UUID      `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt   *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	LockedAt     *time.Time      `json:"locked_at,omitempty" db:"locked_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

func (r MeterReading) OwnerOrgID() uuid.UUID { return r.OrgID }

func (r MeterReading) Locked() bool { return r.LockedAt != nil }

type AdjustmentStatus string

const (
	AdjustmentPending  AdjustmentStatus = "PENDING"
	AdjustmentApproved AdjustmentStatus = "APPROVED"
	AdjustmentRejected AdjustmentStatus = "REJECTED"
)

type AdjustmentNote struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	OrgID          uuid.UUID        `json:"org_id" db:"org_id"`
	MeterReadingID uuid.UUID        `json:"meter_reading_id" db:"meter_reading_id"`
	BeforeValue    decimal.Decimal  `json:"before_value" db:"before_value"`
	AfterValue     decimal.Decimal  `json:"after_value" db:"after_value"`
	Reason         string           `json:"reason" db:"reason"`
	Status         AdjustmentStatus `json:"status" db:"status"`
	RequestedBy    uuid.UUID        `json:"requested_by" db:"requested_by"`
	ApprovedBy     *uuid.UUID       `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt     *time.Time       `json:"approved_at,omitempty" db:"approved_at"`
	RejectedBy     *uuid.UUID       `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectedAt     *time.Time       `json:"rejected_at,omitempty" db:"rejected_at"`
	RejectReason   string           `json:"reject_reason,omitempty" db:"reject_reason"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

func (n AdjustmentNote) OwnerOrgID() uuid.UUID { return n.OrgID }
