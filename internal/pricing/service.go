// Package pricing keeps the billable service catalog and its time-versioned
// rates.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/audit"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
	"github.com/nikhilbhutani/rentalcore/internal/store"
)

type Service struct {
	store store.Store
	eval  *rbac.Evaluator
	audit *audit.Service
}

func NewService(st store.Store, eval *rbac.Evaluator, au *audit.Service) *Service {
	return &Service{store: st, eval: eval, audit: au}
}

type ServiceInput struct {
	Code       string            `json:"code" validate:"required,max=32"`
	Name       string            `json:"name" validate:"required,max=255"`
	Unit       string            `json:"unit" validate:"max=32"`
	ChargeMode models.ChargeMode `json:"charge_mode" validate:"required,oneof=FLAT METERED"`
	MeterType  *models.MeterType `json:"meter_type"`
}

type TierInput struct {
	FromQty   decimal.Decimal     `json:"from_qty"`
	ToQty     decimal.NullDecimal `json:"to_qty"`
	UnitPrice decimal.Decimal     `json:"unit_price"`
}

type RateInput struct {
	EffectiveFrom time.Time       `json:"effective_from" validate:"required"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Tiers         []TierInput     `json:"tiers" validate:"dive"`
}

func (s *Service) CreateService(ctx context.Context, in ServiceInput) (*models.Service, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleService, nil); err != nil {
		return nil, err
	}
	switch in.ChargeMode {
	case models.ChargeFlat:
		if in.MeterType != nil {
			return nil, apperr.Validation("flat services have no meter type")
		}
	case models.ChargeMetered:
		if in.MeterType == nil || !in.MeterType.Valid() {
			return nil, apperr.Validation("metered services need a meter type")
		}
	default:
		return nil, apperr.Validation("invalid charge mode %q", in.ChargeMode)
	}
	svc := &models.Service{
		Code:       strings.ToUpper(strings.TrimSpace(in.Code)),
		Name:       strings.TrimSpace(in.Name),
		Unit:       in.Unit,
		ChargeMode: in.ChargeMode,
		MeterType:  in.MeterType,
		IsActive:   true,
	}
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.Pricing().CreateService(ctx, svc); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.BusinessRule("service code %q already exists", svc.Code)
			}
			return fmt.Errorf("create service: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{OrgID: svc.OrgID, Action: "created", ResourceType: "service", ResourceID: &svc.ID})
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	svc, err := s.store.Pricing().GetService(ctx, id)
	if err != nil {
		return nil, apperr.MapNotFound(err, "service")
	}
	if err := s.eval.Authorize(ctx, rbac.ActionView, rbac.ModuleService, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	if s.eval.ListScope(ctx, rbac.ModuleService) != rbac.ListAll {
		return nil, apperr.Forbidden()
	}
	out, err := s.store.Pricing().ListServices(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return out, nil
}

// validateTiers checks that bands are non-negative, ordered, contiguous
// from zero and that only the last one is open-ended.
func validateTiers(tiers []TierInput) error {
	for i, t := range tiers {
		if t.UnitPrice.IsNegative() {
			return apperr.Validation("tier %d: unit price must not be negative", i+1)
		}
		if i == 0 && !t.FromQty.IsZero() {
			return apperr.Validation("first tier must start at 0")
		}
		if i > 0 {
			prev := tiers[i-1]
			if !prev.ToQty.Valid || !prev.ToQty.Decimal.Equal(t.FromQty) {
				return apperr.Validation("tier %d must start where tier %d ends", i+1, i)
			}
		}
		if t.ToQty.Valid && t.ToQty.Decimal.LessThanOrEqual(t.FromQty) {
			return apperr.Validation("tier %d: upper bound must exceed lower bound", i+1)
		}
	}
	return nil
}

// AddRate versions the price of a service from EffectiveFrom on.
func (s *Service) AddRate(ctx context.Context, serviceID uuid.UUID, in RateInput) (*models.ServiceRate, error) {
	if in.UnitPrice.IsNegative() {
		return nil, apperr.Validation("unit price must not be negative")
	}
	tiers := slices.Clone(in.Tiers)
	slices.SortFunc(tiers, func(a, b TierInput) int { return a.FromQty.Cmp(b.FromQty) })
	if err := validateTiers(tiers); err != nil {
		return nil, err
	}

	rate := &models.ServiceRate{ServiceID: serviceID, EffectiveFrom: in.EffectiveFrom, UnitPrice: in.UnitPrice}
	for _, t := range tiers {
		rate.Tiers = append(rate.Tiers, models.TieredRate{FromQty: t.FromQty, ToQty: t.ToQty, UnitPrice: t.UnitPrice})
	}
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		svc, err := s.store.Pricing().GetService(ctx, serviceID)
		if err != nil {
			return apperr.MapNotFound(err, "service")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionUpdate, rbac.ModuleService, svc); err != nil {
			return err
		}
		if len(tiers) > 0 && svc.ChargeMode != models.ChargeMetered {
			return apperr.Validation("only metered services take tiered rates")
		}
		rate.OrgID = svc.OrgID
		if err := s.store.Pricing().AddRate(ctx, rate); err != nil {
			return fmt.Errorf("add rate: %w", err)
		}
		return s.audit.Log(ctx, audit.LogEntry{
			OrgID: svc.OrgID, Action: "rate_added", ResourceType: "service", ResourceID: &svc.ID,
			Details: models.Meta{"rate_id": rate.ID.String(), "effective_from": rate.EffectiveFrom.Format(time.DateOnly)},
		})
	})
	if err != nil {
		return nil, err
	}
	return rate, nil
}

func (s *Service) ListRates(ctx context.Context, serviceID uuid.UUID) ([]models.ServiceRate, error) {
	if _, err := s.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	out, err := s.store.Pricing().ListRates(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	return out, nil
}

// CurrentRate returns the latest rate effective on or before asOf.
func (s *Service) CurrentRate(ctx context.Context, serviceID uuid.UUID, asOf time.Time) (*models.ServiceRate, error) {
	rate, err := s.store.Pricing().CurrentRate(ctx, serviceID, asOf)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.BusinessRule("service has no rate effective on %s", asOf.Format(time.DateOnly))
		}
		return nil, fmt.Errorf("current rate: %w", err)
	}
	return rate, nil
}

// Charge prices qty under rate. Without tiers the whole quantity is billed
// at the unit price; with tiers each band [from, to) is billed at its own
// price.
func Charge(rate models.ServiceRate, qty decimal.Decimal) decimal.Decimal {
	if qty.Sign() <= 0 {
		return decimal.Zero
	}
	if len(rate.Tiers) == 0 {
		return qty.Mul(rate.UnitPrice)
	}
	total := decimal.Zero
	for _, t := range rate.Tiers {
		if qty.LessThanOrEqual(t.FromQty) {
			break
		}
		upper := qty
		if t.ToQty.Valid && t.ToQty.Decimal.LessThan(qty) {
			upper = t.ToQty.Decimal
		}
		total = total.Add(upper.Sub(t.FromQty).Mul(t.UnitPrice))
	}
	return total
}
