package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

const (
	serviceColumns = "id, org_id, code, name, unit, charge_mode, meter_type, is_active, created_at"
	rateColumns    = "id, org_id, service_id, effective_from, unit_price, created_at"
	tierColumns    = "id, org_id, rate_id, from_qty, to_qty, unit_price"
)

type pricingRepo struct{ s *Store }

func (r pricingRepo) CreateService(ctx context.Context, s *models.Service) error {
	if err := stamp(ctx, &s.ID, &s.OrgID, &s.CreatedAt); err != nil {
		return err
	}
	return insert(ctx, r.s.conn(ctx), tenant.Services, serviceColumns,
		s.ID, s.OrgID, s.Code, s.Name, s.Unit, s.ChargeMode, s.MeterType, s.IsActive, s.CreatedAt)
}

func (r pricingRepo) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	sql, args := tenant.Select(ctx, tenant.Services, serviceColumns).Where("id = ?", id).Build()
	return one[models.Service](ctx, r.s.conn(ctx), sql, args, "service")
}

func (r pricingRepo) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	sel := tenant.Select(ctx, tenant.Services, serviceColumns).OrderBy("code")
	if activeOnly {
		sel.Where("is_active")
	}
	sql, args := sel.Build()
	return many[models.Service](ctx, r.s.conn(ctx), sql, args, "services")
}

func (r pricingRepo) AddRate(ctx context.Context, rate *models.ServiceRate) error {
	return r.s.InTx(ctx, func(ctx context.Context) error {
		if err := stamp(ctx, &rate.ID, &rate.OrgID, &rate.CreatedAt); err != nil {
			return err
		}
		q := r.s.conn(ctx)
		if err := insert(ctx, q, tenant.ServiceRates, rateColumns,
			rate.ID, rate.OrgID, rate.ServiceID, rate.EffectiveFrom, rate.UnitPrice, rate.CreatedAt); err != nil {
			return err
		}
		for i := range rate.Tiers {
			t := &rate.Tiers[i]
			t.RateID = rate.ID
			t.OrgID = rate.OrgID
			if err := stamp(ctx, &t.ID, &t.OrgID); err != nil {
				return err
			}
			if err := insert(ctx, q, tenant.TieredRates, tierColumns,
				t.ID, t.OrgID, t.RateID, t.FromQty, t.ToQty, t.UnitPrice); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r pricingRepo) withTiers(ctx context.Context, rates []models.ServiceRate) error {
	if len(rates) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(rates))
	index := make(map[uuid.UUID]int, len(rates))
	for i, rt := range rates {
		ids[i] = rt.ID
		index[rt.ID] = i
	}
	sel := tenant.Select(ctx, tenant.TieredRates, tierColumns).OrderBy("from_qty")
	anyOf(sel, "rate_id", ids)
	sql, args := sel.Build()
	tiers, err := many[models.TieredRate](ctx, r.s.conn(ctx), sql, args, "tiered rates")
	if err != nil {
		return err
	}
	for _, t := range tiers {
		i := index[t.RateID]
		rates[i].Tiers = append(rates[i].Tiers, t)
	}
	return nil
}

func (r pricingRepo) ListRates(ctx context.Context, serviceID uuid.UUID) ([]models.ServiceRate, error) {
	sql, args := tenant.Select(ctx, tenant.ServiceRates, rateColumns).
		Where("service_id = ?", serviceID).OrderBy("effective_from DESC, created_at DESC").Build()
	rates, err := many[models.ServiceRate](ctx, r.s.conn(ctx), sql, args, "service rates")
	if err != nil {
		return nil, err
	}
	return rates, r.withTiers(ctx, rates)
}

func (r pricingRepo) CurrentRate(ctx context.Context, serviceID uuid.UUID, asOf time.Time) (*models.ServiceRate, error) {
	sql, args := tenant.Select(ctx, tenant.ServiceRates, rateColumns).
		Where("service_id = ?", serviceID).Where("effective_from <= ?", asOf).
		OrderBy("effective_from DESC, created_at DESC").Limit(1).Build()
	rate, err := one[models.ServiceRate](ctx, r.s.conn(ctx), sql, args, "current rate")
	if err != nil {
		return nil, err
	}
	rates := []models.ServiceRate{*rate}
	if err := r.withTiers(ctx, rates); err != nil {
		return nil, err
	}
	return &rates[0], nil
}
