// Package contract manages leases, their members and tenant self-enrollment
// through join codes.
package contract

import (
	"context"
	"encoding/base32"
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
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/notify"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

const resourceType = "contract"

type Service struct {
	store  store.Store
	eval   *rbac.Evaluator
	audit  *audit.Service
	notify *notify.Publisher
	now    func() time.Time
}

func NewService(st store.Store, eval *rbac.Evaluator, au *audit.Service, pub *notify.Publisher) *Service {
	return &Service{store: st, eval: eval, audit: au, notify: pub, now: func() time.Time { return time.Now().UTC() }}
}

type CreateInput struct {
	RoomID        uuid.UUID       `json:"room_id" validate:"required"`
	Code          string          `json:"code" validate:"required,max=64"`
	StartDate     time.Time       `json:"start_date" validate:"required"`
	EndDate       *time.Time      `json:"end_date"`
	RentPrice     decimal.Decimal `json:"rent_price"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	BillingDay    int             `json:"billing_day" validate:"min=0,max=28"`
	Note          string          `json:"note"`
	Meta          models.Meta     `json:"meta"`
}

type UpdateInput struct {
	EndDate       *time.Time       `json:"end_date"`
	RentPrice     *decimal.Decimal `json:"rent_price"`
	DepositAmount *decimal.Decimal `json:"deposit_amount"`
	BillingDay    *int             `json:"billing_day" validate:"omitempty,min=1,max=28"`
	Note          *string          `json:"note"`
	Meta          models.Meta      `json:"meta"`
}

type MemberInput struct {
	UserID    *uuid.UUID        `json:"user_id"`
	FullName  string            `json:"full_name" validate:"required,max=255"`
	Phone     string            `json:"phone" validate:"max=32"`
	Role      models.MemberRole `json:"role" validate:"required"`
	IsPrimary bool              `json:"is_primary"`
}

type ListInput struct {
	PropertyID *uuid.UUID
	RoomID     *uuid.UUID
	Status     models.ContractStatus
	Page       store.Page
}

func actor(ctx context.Context) *uuid.UUID {
	if s := rbac.SessionFrom(ctx); s != nil {
		id := s.UserID()
		return &id
	}
	return nil
}

// newJoinCode returns an 8 character code a tenant can type.
func newJoinCode() string {
	id := uuid.New()
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(id[:5])
}

func validateMoney(rent, deposit decimal.Decimal) error {
	if rent.IsNegative() || deposit.IsNegative() {
		return apperr.Validation("rent and deposit must not be negative")
	}
	return nil
}

// Create stores a DRAFT contract for a room with a fresh join code.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Contract, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleContract, nil); err != nil {
		return nil, err
	}
	if err := in.Meta.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if err := validateMoney(in.RentPrice, in.DepositAmount); err != nil {
		return nil, err
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return nil, apperr.Validation("end date is before start date")
	}

	c := &models.Contract{
		RoomID:        in.RoomID,
		Code:          strings.TrimSpace(in.Code),
		Status:        models.ContractDraft,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		RentPrice:     in.RentPrice,
		DepositAmount: in.DepositAmount,
		BillingDay:    in.BillingDay,
		Note:          in.Note,
		Meta:          in.Meta,
		CreatedBy:     actor(ctx),
	}
	if c.BillingDay == 0 {
		c.BillingDay = 1
	}
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		room, err := s.store.Properties().GetRoom(ctx, in.RoomID, tenant.ActiveOnly)
		if err != nil {
			return apperr.MapNotFound(err, "room")
		}
		c.PropertyID, c.OrgID = room.PropertyID, room.OrgID
		if c.RentPrice.IsZero() {
			c.RentPrice = room.BaseRent
		}

		for attempt := 0; ; attempt++ {
			c.JoinCode = newJoinCode()
			err = s.store.Contracts().Create(ctx, c)
			if !errors.Is(err, apperr.ErrConflict) || attempt == 2 {
				break
			}
		}
		if err != nil {
			return fmt.Errorf("create contract: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{OrgID: c.OrgID, Action: "created", ResourceType: resourceType, ResourceID: &c.ID})
	})
	if err != nil {
		return nil, err
	}
	slog.Info("contract created", "org_id", c.OrgID, "contract_id", c.ID, "room_id", c.RoomID)
	return c, nil
}

// Get returns a contract with its members.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	c, err := s.store.Contracts().Get(ctx, id)
	if err != nil {
		return nil, apperr.MapNotFound(err, "contract")
	}
	if err := s.eval.Authorize(ctx, rbac.ActionView, rbac.ModuleContract, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns contracts visible to the actor. Membership-restricted roles
// only see contracts they currently belong to.
func (s *Service) List(ctx context.Context, in ListInput) ([]models.Contract, error) {
	f := store.ContractFilter{PropertyID: in.PropertyID, RoomID: in.RoomID, Status: in.Status, Page: in.Page}
	switch s.eval.ListScope(ctx, rbac.ModuleContract) {
	case rbac.ListDenied:
		return nil, apperr.Forbidden()
	case rbac.ListMembersOnly:
		ids, err := s.store.Contracts().MemberContractIDs(ctx, rbac.SessionFrom(ctx).UserID())
		if err != nil {
			return nil, fmt.Errorf("list member contracts: %w", err)
		}
		f.IDs = ids
	}
	out, err := s.store.Contracts().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return out, nil
}

// Update patches the commercial terms of a DRAFT or ACTIVE contract.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Contract, error) {
	if err := in.Meta.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	var out *models.Contract
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		c, err := s.store.Contracts().GetForUpdate(ctx, id)
		if err != nil {
			return apperr.MapNotFound(err, "contract")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionUpdate, rbac.ModuleContract, c); err != nil {
			return err
		}
		if c.Status != models.ContractDraft && c.Status != models.ContractActive {
			return apperr.BusinessRule("contract is %s and can no longer be changed", c.Status)
		}
		if in.EndDate != nil {
			if in.EndDate.Before(c.StartDate) {
				return apperr.Validation("end date is before start date")
			}
			c.EndDate = in.EndDate
		}
		if in.RentPrice != nil {
			c.RentPrice = *in.RentPrice
		}
		if in.DepositAmount != nil {
			c.DepositAmount = *in.DepositAmount
		}
		if err := validateMoney(c.RentPrice, c.DepositAmount); err != nil {
			return err
		}
		if in.BillingDay != nil {
			c.BillingDay = *in.BillingDay
		}
		if in.Note != nil {
			c.Note = *in.Note
		}
		if in.Meta != nil {
			c.Meta = c.Meta.Merge(in.Meta)
		}
		if err := s.store.Contracts().Update(ctx, c); err != nil {
			return fmt.Errorf("update contract: %w", err)
		}
		out = c
		return s.audit.Log(ctx, audit.LogEntry{OrgID: c.OrgID, Action: "updated", ResourceType: resourceType, ResourceID: &c.ID})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// transition moves a contract between statuses and keeps the room status in
// step. allowed lists the statuses the move may start from.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to models.ContractStatus, allowed []models.ContractStatus, apply func(ctx context.Context, c *models.Contract) error) (*models.Contract, error) {
	var (
		out  *models.Contract
		from models.ContractStatus
	)
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		c, err := s.store.Contracts().GetForUpdate(ctx, id)
		if err != nil {
			return apperr.MapNotFound(err, "contract")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionUpdateStatus, rbac.ModuleContract, c); err != nil {
			return err
		}
		if !slices.Contains(allowed, c.Status) {
			return apperr.BusinessRule("cannot move contract from %s to %s", c.Status, to)
		}
		from = c.Status
		c.Status = to
		if apply != nil {
			if err := apply(ctx, c); err != nil {
				return err
			}
		}
		if err := s.store.Contracts().Update(ctx, c); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.BusinessRule("room already has an active contract")
			}
			return fmt.Errorf("update contract status: %w", err)
		}

		room := models.RoomVacant
		if to == models.ContractActive {
			room = models.RoomOccupied
		}
		if to == models.ContractActive || from == models.ContractActive {
			if err := s.store.Properties().SetRoomStatus(ctx, c.RoomID, room); err != nil {
				return fmt.Errorf("set room status: %w", err)
			}
		}
		out = c
		return s.audit.Transition(ctx, resourceType, c.OrgID, c.ID, string(from), string(to))
	})
	if err != nil {
		return nil, err
	}
	slog.Info("contract status changed", "org_id", out.OrgID, "contract_id", out.ID, "from", from, "status", out.Status)
	return out, nil
}

// Activate moves a DRAFT contract to ACTIVE and marks its room occupied. A
// room holds at most one ACTIVE contract.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return s.transition(ctx, id, models.ContractActive, []models.ContractStatus{models.ContractDraft}, nil)
}

// End closes an ACTIVE contract, stamps left_at on every current member and
// frees the room.
func (s *Service) End(ctx context.Context, id uuid.UUID, endDate *time.Time) (*models.Contract, error) {
	return s.transition(ctx, id, models.ContractEnded, []models.ContractStatus{models.ContractActive}, func(ctx context.Context, c *models.Contract) error {
		now := s.now()
		if endDate != nil {
			c.EndDate = endDate
		} else if c.EndDate == nil {
			c.EndDate = &now
		}
		return s.releaseMembers(ctx, c, now)
	})
}

// Cancel abandons a DRAFT or ACTIVE contract.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return s.transition(ctx, id, models.ContractCancelled, []models.ContractStatus{models.ContractDraft, models.ContractActive}, func(ctx context.Context, c *models.Contract) error {
		return s.releaseMembers(ctx, c, s.now())
	})
}

func (s *Service) releaseMembers(ctx context.Context, c *models.Contract, at time.Time) error {
	for i := range c.Members {
		m := &c.Members[i]
		if m.LeftAt != nil || m.Status == models.MemberRejected {
			continue
		}
		m.LeftAt = &at
		if err := s.store.Contracts().UpdateMember(ctx, m); err != nil {
			return fmt.Errorf("release member %s: %w", m.ID, err)
		}
	}
	return nil
}

func open(c *models.Contract) error {
	if c.Status != models.ContractDraft && c.Status != models.ContractActive {
		return apperr.BusinessRule("contract is %s and no longer accepts members", c.Status)
	}
	return nil
}

// hasCurrent reports whether userID holds a pending or approved membership
// that has not ended.
func hasCurrent(c *models.Contract, userID uuid.UUID) bool {
	for _, m := range c.Members {
		if m.UserID != nil && *m.UserID == userID && m.LeftAt == nil && m.Status != models.MemberRejected {
			return true
		}
	}
	return false
}

// AddMember attaches an APPROVED member to a contract.
func (s *Service) AddMember(ctx context.Context, contractID uuid.UUID, in MemberInput) (*models.ContractMember, error) {
	if !in.Role.Valid() {
		return nil, apperr.Validation("invalid member role %q", in.Role)
	}
	m := &models.ContractMember{
		ContractID: contractID,
		UserID:     in.UserID,
		FullName:   strings.TrimSpace(in.FullName),
		Phone:      in.Phone,
		Role:       in.Role,
		Status:     models.MemberApproved,
		IsPrimary:  in.IsPrimary,
	}
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		c, err := s.store.Contracts().GetForUpdate(ctx, contractID)
		if err != nil {
			return apperr.MapNotFound(err, "contract")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionAddMember, rbac.ModuleContract, c); err != nil {
			return err
		}
		if err := open(c); err != nil {
			return err
		}
		if in.UserID != nil {
			if _, err := s.store.Users().Get(ctx, *in.UserID); err != nil {
				return apperr.MapNotFound(err, "user")
			}
			if hasCurrent(c, *in.UserID) {
				return apperr.BusinessRule("user is already a member of this contract")
			}
		}
		now := s.now()
		m.JoinedAt = &now
		if err := s.store.Contracts().AddMember(ctx, m); err != nil {
			return fmt.Errorf("add member: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{
			OrgID: c.OrgID, Action: "member_added", ResourceType: resourceType, ResourceID: &c.ID,
			Details: models.Meta{"member_id": m.ID.String(), "role": string(m.Role)},
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Join enrolls the acting user as a PENDING member of the contract holding
// code. A manager approves or rejects the request later.
func (s *Service) Join(ctx context.Context, code string) (*models.ContractMember, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionJoin, rbac.ModuleContract, nil); err != nil {
		return nil, err
	}
	sess := rbac.SessionFrom(ctx)
	uid := sess.UserID()

	var m *models.ContractMember
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		found, err := s.store.Contracts().GetByJoinCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
		if err != nil {
			return apperr.MapNotFound(err, "contract")
		}
		c, err := s.store.Contracts().GetForUpdate(ctx, found.ID)
		if err != nil {
			return apperr.MapNotFound(err, "contract")
		}
		if err := open(c); err != nil {
			return err
		}
		if hasCurrent(c, uid) {
			return apperr.BusinessRule("you already belong to this contract")
		}
		m = &models.ContractMember{
			ContractID: c.ID,
			UserID:     &uid,
			FullName:   sess.User.FullName,
			Phone:      sess.User.Phone,
			Role:       models.MemberRoommate,
			Status:     models.MemberPending,
		}
		if len(c.Members) == 0 {
			m.Role, m.IsPrimary = models.MemberTenant, true
		}
		if err := s.store.Contracts().AddMember(ctx, m); err != nil {
			return fmt.Errorf("join contract: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{
			OrgID: c.OrgID, Action: "member_joined", ResourceType: resourceType, ResourceID: &c.ID,
			Details: models.Meta{"member_id": m.ID.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	s.notify.Publish(ctx, notify.Notification{
		Event: notify.MemberJoined, OrgID: m.OrgID, ResourceType: resourceType, ResourceID: m.ContractID, ActorID: &uid,
		Data: map[string]string{"member_id": m.ID.String()},
	})
	return m, nil
}

// ApproveMember accepts a PENDING join request.
func (s *Service) ApproveMember(ctx context.Context, memberID uuid.UUID) (*models.ContractMember, error) {
	return s.decideMember(ctx, memberID, models.MemberApproved)
}

// RejectMember declines a PENDING join request.
func (s *Service) RejectMember(ctx context.Context, memberID uuid.UUID) (*models.ContractMember, error) {
	return s.decideMember(ctx, memberID, models.MemberRejected)
}

func (s *Service) decideMember(ctx context.Context, memberID uuid.UUID, status models.MemberStatus) (*models.ContractMember, error) {
	var m *models.ContractMember
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		var c *models.Contract
		var err error
		if m, c, err = s.member(ctx, memberID); err != nil {
			return err
		}
		if err := s.eval.Authorize(ctx, rbac.ActionApproveMember, rbac.ModuleContract, c); err != nil {
			return err
		}
		if m.Status != models.MemberPending {
			return apperr.BusinessRule("member request was already %s", strings.ToLower(string(m.Status)))
		}
		m.Status = status
		if status == models.MemberApproved {
			if err := open(c); err != nil {
				return err
			}
			now := s.now()
			m.JoinedAt = &now
		}
		if err := s.store.Contracts().UpdateMember(ctx, m); err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		return s.audit.Transition(ctx, "contract_member", m.OrgID, m.ID, string(models.MemberPending), string(status))
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RemoveMember marks a member as departed. Members are never deleted.
func (s *Service) RemoveMember(ctx context.Context, memberID uuid.UUID) (*models.ContractMember, error) {
	var m *models.ContractMember
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		var c *models.Contract
		var err error
		if m, c, err = s.member(ctx, memberID); err != nil {
			return err
		}
		if err := s.eval.Authorize(ctx, rbac.ActionRemoveMember, rbac.ModuleContract, c); err != nil {
			return err
		}
		if m.LeftAt != nil {
			return apperr.BusinessRule("member already left the contract")
		}
		now := s.now()
		m.LeftAt = &now
		if err := s.store.Contracts().UpdateMember(ctx, m); err != nil {
			return fmt.Errorf("remove member: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{
			OrgID: c.OrgID, Action: "member_removed", ResourceType: resourceType, ResourceID: &c.ID,
			Details: models.Meta{"member_id": m.ID.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) member(ctx context.Context, id uuid.UUID) (*models.ContractMember, *models.Contract, error) {
	m, err := s.store.Contracts().GetMember(ctx, id)
	if err != nil {
		return nil, nil, apperr.MapNotFound(err, "member")
	}
	c, err := s.store.Contracts().GetForUpdate(ctx, m.ContractID)
	if err != nil {
		return nil, nil, apperr.MapNotFound(err, "contract")
	}
	return m, c, nil
}
