package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/audit"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac/rbactest"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func upTo(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

func TestChargeFlat(t *testing.T) {
	rate := models.ServiceRate{UnitPrice: d("3500")}
	assert.True(t, Charge(rate, d("12.5")).Equal(d("43750")))
	assert.True(t, Charge(rate, d("0")).IsZero())
	assert.True(t, Charge(rate, d("-3")).IsZero())
}

func TestChargeTiered(t *testing.T) {
	rate := models.ServiceRate{Tiers: []models.TieredRate{
		{FromQty: d("0"), ToQty: upTo("50"), UnitPrice: d("1000")},
		{FromQty: d("50"), ToQty: upTo("100"), UnitPrice: d("1500")},
		{FromQty: d("100"), UnitPrice: d("2000")},
	}}

	cases := []struct {
		qty  string
		want string
	}{
		{"30", "30000"},
		{"50", "50000"},
		{"80", "95000"},
		{"100", "125000"},
		{"120", "165000"},
	}
	for _, tc := range cases {
		assert.True(t, Charge(rate, d(tc.qty)).Equal(d(tc.want)), "qty %s", tc.qty)
	}
}

func TestValidateTiers(t *testing.T) {
	assert.NoError(t, validateTiers(nil))
	assert.Error(t, validateTiers([]TierInput{{FromQty: d("10"), UnitPrice: d("1")}}))
	assert.Error(t, validateTiers([]TierInput{
		{FromQty: d("0"), ToQty: upTo("50"), UnitPrice: d("1")},
		{FromQty: d("60"), UnitPrice: d("2")},
	}))
	assert.Error(t, validateTiers([]TierInput{
		{FromQty: d("0"), UnitPrice: d("1")},
		{FromQty: d("50"), UnitPrice: d("2")},
	}))
}

func TestCurrentRateIsLatestEffective(t *testing.T) {
	env := rbactest.New(t)
	svc := NewService(env.Store, env.Eval, audit.NewService(env.Store))
	ctx := env.As(t, env.Org(t), models.RoleManager)

	electric := models.MeterElectric
	s, err := svc.CreateService(ctx, ServiceInput{Code: "elec", Name: "Electricity", Unit: "kWh", ChargeMode: models.ChargeMetered, MeterType: &electric})
	require.NoError(t, err)
	assert.Equal(t, "ELEC", s.Code)

	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.AddRate(ctx, s.ID, RateInput{EffectiveFrom: jan, UnitPrice: d("3000")})
	require.NoError(t, err)
	_, err = svc.AddRate(ctx, s.ID, RateInput{EffectiveFrom: jun, Tiers: []TierInput{
		{FromQty: d("100"), UnitPrice: d("4000")},
		{FromQty: d("0"), ToQty: upTo("100"), UnitPrice: d("3500")},
	}})
	require.NoError(t, err)

	r, err := svc.CurrentRate(ctx, s.ID, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, r.UnitPrice.Equal(d("3000")))
	assert.Empty(t, r.Tiers)

	r, err = svc.CurrentRate(ctx, s.ID, jun)
	require.NoError(t, err)
	require.Len(t, r.Tiers, 2)
	assert.True(t, r.Tiers[0].FromQty.IsZero())
	assert.True(t, Charge(*r, d("150")).Equal(d("550000")))

	_, err = svc.CurrentRate(ctx, s.ID, jan.AddDate(0, 0, -1))
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}

func TestFlatServiceRejectsTiers(t *testing.T) {
	env := rbactest.New(t)
	svc := NewService(env.Store, env.Eval, audit.NewService(env.Store))
	ctx := env.As(t, env.Org(t), models.RoleOwner)

	s, err := svc.CreateService(ctx, ServiceInput{Code: "WIFI", Name: "Internet", ChargeMode: models.ChargeFlat})
	require.NoError(t, err)

	_, err = svc.AddRate(ctx, s.ID, RateInput{EffectiveFrom: time.Now(), Tiers: []TierInput{{FromQty: d("0"), UnitPrice: d("1")}}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	staff := env.As(t, s.OrgID, models.RoleStaff)
	_, err = svc.AddRate(staff, s.ID, RateInput{EffectiveFrom: time.Now(), UnitPrice: d("100000")})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}
