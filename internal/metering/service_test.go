package metering

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/audit"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac/rbactest"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type fixture struct {
	env     *rbactest.Env
	svc     *Service
	org     uuid.UUID
	manager context.Context
	staff   context.Context
	meter   *models.Meter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := rbactest.New(t)
	f := &fixture{env: env, svc: NewService(env.Store, env.Eval, audit.NewService(env.Store), nil), org: env.Org(t)}
	f.manager = env.As(t, f.org, models.RoleManager)
	f.staff = env.As(t, f.org, models.RoleStaff)

	scoped := tenant.WithOrg(context.Background(), f.org)
	p := &models.Property{Name: "Riverside"}
	require.NoError(t, env.Store.Properties().CreateProperty(scoped, p))
	room := &models.Room{PropertyID: p.ID, Code: "R1", Name: "Room 1", BaseRent: decimal.NewFromInt(3000)}
	require.NoError(t, env.Store.Properties().CreateRoom(scoped, room))

	m, err := f.svc.CreateMeter(f.manager, MeterInput{RoomID: room.ID, Type: models.MeterElectric, SerialNumber: "E-1"})
	require.NoError(t, err)
	f.meter = m
	return f
}

func month(m time.Month) time.Time { return time.Date(2026, m, 1, 0, 0, 0, 0, time.UTC) }

func (f *fixture) reading(t *testing.T, m time.Month, value int64) *models.MeterReading {
	t.Helper()
	rd, err := f.svc.CreateReading(f.staff, ReadingInput{
		MeterID: f.meter.ID, PeriodStart: month(m), PeriodEnd: month(m + 1).AddDate(0, 0, -1), ReadingValue: decimal.NewFromInt(value),
	})
	require.NoError(t, err)
	return rd
}

// locked walks a reading to APPROVED and locks it.
func (f *fixture) locked(t *testing.T, m time.Month, value int64) *models.MeterReading {
	t.Helper()
	rd := f.reading(t, m, value)
	_, err := f.svc.ApproveReading(f.manager, rd.ID)
	require.NoError(t, err)
	rd, err = f.svc.LockReading(f.manager, rd.ID)
	require.NoError(t, err)
	return rd
}

func TestCreateMeterCopiesRoomOrganization(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, f.org, f.meter.OrgID)
	assert.True(t, f.meter.IsActive)

	_, err := f.svc.CreateMeter(f.staff, MeterInput{RoomID: f.meter.RoomID, Type: models.MeterWater})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestReadingIsUniquePerPeriod(t *testing.T) {
	f := newFixture(t)
	f.reading(t, time.March, 100)

	_, err := f.svc.CreateReading(f.staff, ReadingInput{MeterID: f.meter.ID, PeriodStart: month(time.March), PeriodEnd: month(time.April), ReadingValue: decimal.NewFromInt(120)})
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}

func TestReadingCannotGoBackwards(t *testing.T) {
	f := newFixture(t)
	f.reading(t, time.March, 100)

	_, err := f.svc.CreateReading(f.staff, ReadingInput{MeterID: f.meter.ID, PeriodStart: month(time.April), PeriodEnd: month(time.May), ReadingValue: decimal.NewFromInt(90)})
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}

func TestSubmitRejectEditResubmit(t *testing.T) {
	f := newFixture(t)
	rd := f.reading(t, time.March, 100)

	rd, err := f.svc.SubmitReading(f.staff, rd.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReadingSubmitted, rd.Status)

	_, err = f.svc.RejectReading(f.staff, rd.ID, "blurry photo")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	rd, err = f.svc.RejectReading(f.manager, rd.ID, "blurry photo")
	require.NoError(t, err)
	assert.Equal(t, models.ReadingRejected, rd.Status)
	assert.Equal(t, "blurry photo", rd.RejectReason)

	v := decimal.NewFromInt(105)
	rd, err = f.svc.UpdateReading(f.staff, rd.ID, ReadingPatch{ReadingValue: &v})
	require.NoError(t, err)
	assert.Equal(t, models.ReadingPending, rd.Status)
	assert.Empty(t, rd.RejectReason)
	assert.True(t, rd.ReadingValue.Equal(v))
}

func TestRejectRequiresSubmittedReading(t *testing.T) {
	f := newFixture(t)
	rd := f.reading(t, time.March, 100)

	_, err := f.svc.RejectReading(f.manager, rd.ID, "no")
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}

func TestApproveAndLock(t *testing.T) {
	f := newFixture(t)
	rd := f.reading(t, time.March, 100)

	_, err := f.svc.LockReading(f.manager, rd.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule), "pending readings cannot be locked")

	rd, err = f.svc.ApproveReading(f.manager, rd.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReadingApproved, rd.Status)
	require.NotNil(t, rd.ApprovedBy)
	assert.Equal(t, rbactest.UserID(f.manager), *rd.ApprovedBy)

	v := decimal.NewFromInt(110)
	_, err = f.svc.UpdateReading(f.staff, rd.ID, ReadingPatch{ReadingValue: &v})
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule), "approved readings are read-only")

	rd, err = f.svc.LockReading(f.manager, rd.ID)
	require.NoError(t, err)
	assert.True(t, rd.Locked())

	_, err = f.svc.LockReading(f.manager, rd.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}

func TestAdjustmentRequiresLockedReading(t *testing.T) {
	f := newFixture(t)
	rd := f.reading(t, time.March, 100)

	_, err := f.svc.CreateAdjustment(f.staff, rd.ID, AdjustmentInput{AfterValue: decimal.NewFromInt(90), Reason: "typo"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
	assert.Equal(t, "cannot adjust an unlocked reading; edit it directly instead", apperr.Message(err))
}

func TestApproveAdjustmentOverwritesReading(t *testing.T) {
	f := newFixture(t)
	rd := f.locked(t, time.March, 100)

	n, err := f.svc.CreateAdjustment(f.staff, rd.ID, AdjustmentInput{AfterValue: decimal.NewFromInt(95), Reason: "misread digit"})
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentPending, n.Status)
	assert.True(t, n.BeforeValue.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, rbactest.UserID(f.staff), n.RequestedBy)

	_, err = f.svc.CreateAdjustment(f.staff, rd.ID, AdjustmentInput{AfterValue: decimal.NewFromInt(96), Reason: "again"})
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule), "one pending note per reading")

	_, err = f.svc.ApproveAdjustment(f.staff, n.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	n, err = f.svc.ApproveAdjustment(f.manager, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentApproved, n.Status)
	assert.NotNil(t, n.ApprovedAt)

	got, err := f.svc.GetReading(f.manager, rd.ID)
	require.NoError(t, err)
	assert.True(t, got.ReadingValue.Equal(decimal.NewFromInt(95)))
	assert.True(t, got.Locked())

	_, err = f.svc.ApproveAdjustment(f.manager, n.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule), "decisions are final")
}

func TestRejectAdjustmentLeavesReadingUntouched(t *testing.T) {
	f := newFixture(t)
	rd := f.locked(t, time.March, 100)

	n, err := f.svc.CreateAdjustment(f.staff, rd.ID, AdjustmentInput{AfterValue: decimal.NewFromInt(80), Reason: "meter swap"})
	require.NoError(t, err)

	n, err = f.svc.RejectAdjustment(f.manager, n.ID, "photo shows 100")
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentRejected, n.Status)
	assert.Equal(t, "photo shows 100", n.RejectReason)

	got, err := f.svc.GetReading(f.manager, rd.ID)
	require.NoError(t, err)
	assert.True(t, got.ReadingValue.Equal(decimal.NewFromInt(100)))

	// the reading accepts a fresh request once nothing is pending
	_, err = f.svc.CreateAdjustment(f.staff, rd.ID, AdjustmentInput{AfterValue: decimal.NewFromInt(99), Reason: "recount"})
	assert.NoError(t, err)

	pending, err := f.svc.ListAdjustments(f.manager, store.AdjustmentFilter{ReadingID: &rd.ID, Status: models.AdjustmentPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestConsumption(t *testing.T) {
	f := newFixture(t)
	first := f.reading(t, time.March, 100)
	second := f.reading(t, time.April, 142)

	u, err := f.svc.Consumption(f.manager, *first)
	require.NoError(t, err)
	assert.True(t, u.Quantity.IsZero(), "first reading is the baseline")
	assert.Nil(t, u.Previous)

	u, err = f.svc.ReadingConsumption(f.manager, second.ID)
	require.NoError(t, err)
	assert.True(t, u.Quantity.Equal(decimal.NewFromInt(42)))
	require.NotNil(t, u.Previous)
	assert.Equal(t, first.ID, u.Previous.ID)
}

func TestReadingsAreTenantScoped(t *testing.T) {
	f := newFixture(t)
	rd := f.reading(t, time.March, 100)
	other := f.env.As(t, f.env.Org(t), models.RoleManager)

	_, err := f.svc.GetReading(other, rd.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	list, err := f.svc.ListReadings(other, store.ReadingFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
