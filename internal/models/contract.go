package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ContractStatus string

const (
	ContractDraft     ContractStatus = "DRAFT"
	ContractActive    ContractStatus = "ACTIVE"
	ContractEnded     ContractStatus = "ENDED"
	ContractCancelled ContractStatus = "CANCELLED"
)

type Contract struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	OrgID         uuid.UUID       `json:"org_id" db:"org_id"`
	PropertyID    uuid.UUID       `json:"property_id" db:"property_id"`
	RoomID        uuid.UUID       `json:"room_id" db:"room_id"`
	Code          string          `json:"code" db:"code"`
	Status        ContractStatus  `json:"status" db:"status"`
	StartDate     time.Time       `json:"start_date" db:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty" db:"end_date"`
	RentPrice     decimal.Decimal `json:"rent_price" db:"rent_price"`
	DepositAmount decimal.Decimal `json:"deposit_amount" db:"deposit_amount"`
	BillingDay    int             `json:"billing_day" db:"billing_day"`
	JoinCode      string          `json:"join_code,omitempty" db:"join_code"`
	Note          string          `json:"note,omitempty" db:"note"`
	Meta          Meta            `json:"meta" db:"meta"`
	CreatedBy     *uuid.UUID      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`

	Members []ContractMember `json:"members,omitempty" db:"-"`
}

func (c Contract) OwnerOrgID() uuid.UUID { return c.OrgID }

type MemberRole string

const (
	MemberTenant    MemberRole = "TENANT"
	MemberRoommate  MemberRole = "ROOMMATE"
	MemberGuarantor MemberRole = "GUARANTOR"
)

func (r MemberRole) Valid() bool {
	switch r {
	case MemberTenant, MemberRoommate, MemberGuarantor:
		return true
	}
	return false
}

type MemberStatus string

const (
	MemberPending  MemberStatus = "PENDING"
	MemberApproved MemberStatus = "APPROVED"
	MemberRejected MemberStatus = "REJECTED"
)

// ContractMember is never deleted; LeftAt marks departure.
type ContractMember struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	OrgID      uuid.UUID    `json:"org_id" db:"org_id"`
	ContractID uuid.UUID    `json:"contract_id" db:"contract_id"`
	UserID     *uuid.UUID   `json:"user_id,omitempty" db:"user_id"`
	FullName   string       `json:"full_name" db:"full_name"`
	Phone      string       `json:"phone,omitempty" db:"phone"`
	Role       MemberRole   `json:"role" db:"role"`
	Status     MemberStatus `json:"status" db:"status"`
	IsPrimary  bool         `json:"is_primary" db:"is_primary"`
	JoinedAt   *time.Time   `json:"joined_at,omitempty" db:"joined_at"`
	LeftAt     *time.Time   `json:"left_at,omitempty" db:"left_at"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

func (m ContractMember) OwnerOrgID() uuid.UUID { return m.OrgID }

// Current reports whether the member is approved and has not left.
func (m ContractMember) Current() bool {
	return m.Status == MemberApproved && m.LeftAt == nil
}
