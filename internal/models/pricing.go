package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ChargeMode string

const (
	// ChargeFlat bills a fixed amount per contract per period.
	ChargeFlat ChargeMode = "FLAT"
	// ChargeMetered bills consumption of a meter type.
	ChargeMetered ChargeMode = "METERED"
)

type Service struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	OrgID      uuid.UUID  `json:"org_id" db:"org_id"`
	Code       string     `json:"code" db:"code"`
	Name       string     `json:"name" db:"name"`
	Unit       string     `json:"unit" db:"unit"`
	ChargeMode ChargeMode `json:"charge_mode" db:"charge_mode"`
	MeterType  *MeterType `json:"meter_type,omitempty" db:"meter_type"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

func (s Service) OwnerOrgID() uuid.UUID { return s.OrgID }

type ServiceRate struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	OrgID         uuid.UUID       `json:"org_id" db:"org_id"`
	ServiceID     uuid.UUID       `json:"service_id" db:"service_id"`
	EffectiveFrom time.Time       `json:"effective_from" db:"effective_from"`
	UnitPrice     decimal.Decimal `json:"unit_price" db:"unit_price"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`

	Tiers []TieredRate `json:"tiers,omitempty" db:"-"`
}

func (r ServiceRate) OwnerOrgID() uuid.UUID { return r.OrgID }

// TieredRate prices the band [FromQty, ToQty). A null ToQty is open-ended.
type TieredRate struct {
	ID        uuid.UUID           `json:"id" db:"id"`
	OrgID     uuid.UUID           `json:"org_id" db:"org_id"`
	RateID    uuid.UUID           `json:"rate_id" db:"rate_id"`
	FromQty   decimal.Decimal     `json:"from_qty" db:"from_qty"`
	ToQty     decimal.NullDecimal `json:"to_qty" db:"to_qty"`
	UnitPrice decimal.Decimal     `json:"unit_price" db:"unit_price"`
}

func (t TieredRate) OwnerOrgID() uuid.UUID { return t.OrgID }
