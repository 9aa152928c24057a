package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

func seedOrg(t *testing.T, s *Store, slug string) uuid.UUID {
	t.Helper()
	org := &models.Organization{Name: slug, Slug: slug, Currency: "VND", Timezone: "UTC"}
	require.NoError(t, s.Organizations().Create(tenant.System(context.Background()), org))
	return org.ID
}

func TestScopedReadsHideOtherOrganizations(t *testing.T) {
	s := New()
	orgA, orgB := seedOrg(t, s, "a"), seedOrg(t, s, "b")
	ctxA := tenant.WithOrg(context.Background(), orgA)
	ctxB := tenant.WithOrg(context.Background(), orgB)

	p := &models.Property{Name: "Block A"}
	require.NoError(t, s.Properties().CreateProperty(ctxA, p))
	assert.Equal(t, orgA, p.OrgID)

	_, err := s.Properties().GetProperty(ctxB, p.ID, tenant.ActiveOnly)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := s.Properties().ListProperties(ctxB, tenant.ActiveOnly, store.Page{})
	require.NoError(t, err)
	assert.Empty(t, list)

	p.Name = "hijacked"
	assert.ErrorIs(t, s.Properties().UpdateProperty(ctxB, p), apperr.ErrNotFound)
	assert.ErrorIs(t, s.Properties().ForceDeleteProperty(ctxB, p.ID), apperr.ErrNotFound)

	got, err := s.Properties().GetProperty(ctxA, p.ID, tenant.ActiveOnly)
	require.NoError(t, err)
	assert.Equal(t, "Block A", got.Name)

	all, err := s.Properties().ListProperties(tenant.System(context.Background()), tenant.ActiveOnly, store.Page{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateRejectsForeignOrg(t *testing.T) {
	s := New()
	orgA, orgB := seedOrg(t, s, "a"), seedOrg(t, s, "b")

	err := s.Properties().CreateProperty(tenant.WithOrg(context.Background(), orgA), &models.Property{OrgID: orgB, Name: "x"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestTrashedVariants(t *testing.T) {
	s := New()
	ctx := tenant.WithOrg(context.Background(), seedOrg(t, s, "a"))
	p := &models.Property{Name: "p"}
	require.NoError(t, s.Properties().CreateProperty(ctx, p))
	require.NoError(t, s.Properties().SoftDeleteProperty(ctx, p.ID))

	_, err := s.Properties().GetProperty(ctx, p.ID, tenant.ActiveOnly)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	trashed, err := s.Properties().ListProperties(ctx, tenant.TrashedOnly, store.Page{})
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	assert.NotNil(t, trashed[0].DeletedAt)

	require.NoError(t, s.Properties().RestoreProperty(ctx, p.ID))
	got, err := s.Properties().GetProperty(ctx, p.ID, tenant.ActiveOnly)
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := tenant.WithOrg(context.Background(), seedOrg(t, s, "a"))
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Properties().CreateProperty(ctx, &models.Property{Name: "gone"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	list, err := s.Properties().ListProperties(ctx, tenant.WithTrashed, store.Page{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNestedInTxJoinsOuter(t *testing.T) {
	s := New()
	ctx := tenant.WithOrg(context.Background(), seedOrg(t, s, "a"))

	err := s.InTx(ctx, func(ctx context.Context) error {
		return s.InTx(ctx, func(ctx context.Context) error {
			return s.Properties().CreateProperty(ctx, &models.Property{Name: "inner"})
		})
	})
	require.NoError(t, err)

	list, err := s.Properties().ListProperties(ctx, tenant.ActiveOnly, store.Page{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReturnedRowsAreCopies(t *testing.T) {
	s := New()
	ctx := tenant.WithOrg(context.Background(), seedOrg(t, s, "a"))
	p := &models.Property{Name: "p", Meta: models.Meta{"floors": 3.0}}
	require.NoError(t, s.Properties().CreateProperty(ctx, p))

	got, err := s.Properties().GetProperty(ctx, p.ID, tenant.ActiveOnly)
	require.NoError(t, err)
	got.Meta["floors"] = 9.0

	again, err := s.Properties().GetProperty(ctx, p.ID, tenant.ActiveOnly)
	require.NoError(t, err)
	assert.Equal(t, 3.0, again.Meta["floors"])
}

func TestDecideAdjustmentOnlyOnce(t *testing.T) {
	s := New()
	ctx := tenant.WithOrg(context.Background(), seedOrg(t, s, "a"))
	note := &models.AdjustmentNote{
		MeterReadingID: uuid.New(),
		BeforeValue:    decimal.NewFromInt(10),
		AfterValue:     decimal.NewFromInt(12),
		Status:         models.AdjustmentPending,
		RequestedBy:    uuid.New(),
	}
	require.NoError(t, s.Meters().CreateAdjustment(ctx, note))

	approver := uuid.New()
	now := time.Now()
	first := *note
	first.Status, first.ApprovedBy, first.ApprovedAt = models.AdjustmentApproved, &approver, &now
	require.NoError(t, s.Meters().DecideAdjustment(ctx, &first))

	second := *note
	second.Status, second.RejectReason = models.AdjustmentRejected, "late"
	assert.ErrorIs(t, s.Meters().DecideAdjustment(ctx, &second), apperr.ErrConflict)

	got, err := s.Meters().GetAdjustment(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentApproved, got.Status)
}

func TestReadingUniquePerPeriod(t *testing.T) {
	s := New()
	ctx := tenant.WithOrg(context.Background(), seedOrg(t, s, "a"))
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	meterID := uuid.New()

	r1 := &models.MeterReading{MeterID: meterID, PeriodStart: start, PeriodEnd: start.AddDate(0, 1, -1), Status: models.ReadingPending}
	require.NoError(t, s.Meters().CreateReading(ctx, r1))

	r2 := &models.MeterReading{MeterID: meterID, PeriodStart: start, PeriodEnd: start.AddDate(0, 1, -1), Status: models.ReadingPending}
	assert.ErrorIs(t, s.Meters().CreateReading(ctx, r2), apperr.ErrConflict)
}

func TestHandoverConfirmAndSnapshotUpsert(t *testing.T) {
	s := New()
	ctx := tenant.WithOrg(context.Background(), seedOrg(t, s, "a"))
	h := &models.Handover{ContractID: uuid.New(), RoomID: uuid.New(), Type: models.HandoverCheckIn, Status: models.HandoverDraft}
	require.NoError(t, s.Handovers().Create(ctx, h))

	meterID := uuid.New()
	require.NoError(t, s.Handovers().UpsertSnapshot(ctx, &models.HandoverMeterSnapshot{HandoverID: h.ID, MeterID: meterID, ReadingValue: decimal.NewFromInt(100)}))
	require.NoError(t, s.Handovers().UpsertSnapshot(ctx, &models.HandoverMeterSnapshot{HandoverID: h.ID, MeterID: meterID, ReadingValue: decimal.NewFromInt(120)}))

	got, err := s.Handovers().Get(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, got.Snapshots, 1)
	assert.True(t, got.Snapshots[0].ReadingValue.Equal(decimal.NewFromInt(120)))

	user := uuid.New()
	require.NoError(t, s.Handovers().Confirm(ctx, h.ID, user, time.Now()))
	assert.ErrorIs(t, s.Handovers().Confirm(ctx, h.ID, user, time.Now()), apperr.ErrConflict)

	got, err = s.Handovers().Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HandoverConfirmed, got.Status)
	assert.NotNil(t, got.LockedAt)
	assert.Equal(t, &user, got.ConfirmedBy)
}

func TestPermissionsFindOrCreateIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	p1, created, err := s.Permissions().FindOrCreatePermission(ctx, "invoice", "view")
	require.NoError(t, err)
	assert.True(t, created)
	p2, created, err := s.Permissions().FindOrCreatePermission(ctx, "invoice", "view")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p1.ID, p2.ID)

	role, _, err := s.Permissions().FindOrCreateRole(ctx, models.RoleManager)
	require.NoError(t, err)
	granted, err := s.Permissions().Grant(ctx, role.ID, p1.ID)
	require.NoError(t, err)
	assert.True(t, granted)
	granted, err = s.Permissions().Grant(ctx, role.ID, p1.ID)
	require.NoError(t, err)
	assert.False(t, granted)

	grants, err := s.Permissions().Grants(ctx, []models.RoleName{models.RoleManager, models.RoleTenant})
	require.NoError(t, err)
	assert.Len(t, grants[models.RoleManager], 1)
	assert.Empty(t, grants[models.RoleTenant])
}

func TestRoleCatalogIgnoresOrganizationScope(t *testing.T) {
	s := New()
	orgA, orgB := seedOrg(t, s, "a"), seedOrg(t, s, "b")

	created, _, err := s.Permissions().FindOrCreateRole(tenant.WithOrg(context.Background(), orgA), models.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, created.OwnerOrgID())

	found, isNew, err := s.Permissions().FindOrCreateRole(tenant.WithOrg(context.Background(), orgB), models.RoleOwner)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, found.ID)
}

func TestCurrentRatePicksLatestEffective(t *testing.T) {
	s := New()
	ctx := tenant.WithOrg(context.Background(), seedOrg(t, s, "a"))
	svc := &models.Service{Code: "ELEC", Name: "Electricity", ChargeMode: models.ChargeMetered, IsActive: true}
	require.NoError(t, s.Pricing().CreateService(ctx, svc))

	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Pricing().AddRate(ctx, &models.ServiceRate{ServiceID: svc.ID, EffectiveFrom: jan, UnitPrice: decimal.NewFromInt(3000)}))
	require.NoError(t, s.Pricing().AddRate(ctx, &models.ServiceRate{ServiceID: svc.ID, EffectiveFrom: mar, UnitPrice: decimal.NewFromInt(3500)}))

	rate, err := s.Pricing().CurrentRate(ctx, svc.ID, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, rate.UnitPrice.Equal(decimal.NewFromInt(3000)))

	rate, err = s.Pricing().CurrentRate(ctx, svc.ID, mar)
	require.NoError(t, err)
	assert.True(t, rate.UnitPrice.Equal(decimal.NewFromInt(3500)))

	_, err = s.Pricing().CurrentRate(ctx, svc.ID, jan.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
