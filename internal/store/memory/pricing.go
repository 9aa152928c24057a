package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type pricingRepo struct{ s *Store }

func (r pricingRepo) CreateService(ctx context.Context, svc *models.Service) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &svc.ID, &svc.OrgID, &svc.CreatedAt); err != nil {
			return err
		}
		dup := st.services.list(tenant.System(ctx), tenant.ActiveOnly, func(x models.Service) bool {
			return x.OrgID == svc.OrgID && x.Code == svc.Code
		})
		if len(dup) > 0 {
			return conflict("create service %q", svc.Code)
		}
		st.services.insert(*svc, st.next())
		return nil
	})
}

func (r pricingRepo) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var out models.Service
	err := r.s.with(ctx, func(st *state) (err error) {
		out, err = st.services.get(ctx, id, tenant.ActiveOnly)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r pricingRepo) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	var out []models.Service
	err := r.s.with(ctx, func(st *state) error {
		out = st.services.list(ctx, tenant.ActiveOnly, func(s models.Service) bool {
			return !activeOnly || s.IsActive
		})
		return nil
	})
	return out, err
}

func (r pricingRepo) AddRate(ctx context.Context, rate *models.ServiceRate) error {
	return r.s.with(ctx, func(st *state) error {
		if _, err := st.services.get(ctx, rate.ServiceID, tenant.ActiveOnly); err != nil {
			return err
		}
		if err := r.s.stamp(ctx, &rate.ID, &rate.OrgID, &rate.CreatedAt); err != nil {
			return err
		}
		st.rates.insert(*rate, st.next())
		for i := range rate.Tiers {
			t := &rate.Tiers[i]
			t.RateID, t.OrgID = rate.ID, rate.OrgID
			if t.ID == uuid.Nil {
				t.ID = uuid.New()
			}
			st.tiers.insert(*t, st.next())
		}
		return nil
	})
}

func (st *state) rateTiers(ctx context.Context, rateID uuid.UUID) []models.TieredRate {
	tiers := st.tiers.list(ctx, tenant.ActiveOnly, func(t models.TieredRate) bool { return t.RateID == rateID })
	slices.SortFunc(tiers, func(a, b models.TieredRate) int { return a.FromQty.Cmp(b.FromQty) })
	return tiers
}

func (r pricingRepo) ListRates(ctx context.Context, serviceID uuid.UUID) ([]models.ServiceRate, error) {
	var out []models.ServiceRate
	err := r.s.with(ctx, func(st *state) error {
		out = st.rates.list(ctx, tenant.ActiveOnly, func(rt models.ServiceRate) bool { return rt.ServiceID == serviceID })
		slices.SortStableFunc(out, func(a, b models.ServiceRate) int { return b.EffectiveFrom.Compare(a.EffectiveFrom) })
		for i := range out {
			out[i].Tiers = st.rateTiers(ctx, out[i].ID)
		}
		return nil
	})
	return out, err
}

func (r pricingRepo) CurrentRate(ctx context.Context, serviceID uuid.UUID, asOf time.Time) (*models.ServiceRate, error) {
	var out *models.ServiceRate
	err := r.s.with(ctx, func(st *state) error {
		rows := st.rates.list(ctx, tenant.ActiveOnly, func(rt models.ServiceRate) bool {
			return rt.ServiceID == serviceID && !rt.EffectiveFrom.After(asOf)
		})
		// rows are newest-inserted first; ties on effective_from keep that order
		for i := range rows {
			if out == nil || rows[i].EffectiveFrom.After(out.EffectiveFrom) {
				out = &rows[i]
			}
		}
		if out == nil {
			return fmt.Errorf("current rate of service %s: %w", serviceID, apperr.ErrNotFound)
		}
		out.Tiers = st.rateTiers(ctx, out.ID)
		return nil
	})
	return out, err
}
