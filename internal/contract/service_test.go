package contract

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
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type fixture struct {
	env     *rbactest.Env
	svc     *Service
	org     uuid.UUID
	manager context.Context
	room    *models.Room
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := rbactest.New(t)
	f := &fixture{env: env, svc: NewService(env.Store, env.Eval, audit.NewService(env.Store), nil), org: env.Org(t)}
	f.manager = env.As(t, f.org, models.RoleManager)

	scoped := tenant.WithOrg(context.Background(), f.org)
	p := &models.Property{Name: "Riverside"}
	require.NoError(t, env.Store.Properties().CreateProperty(scoped, p))
	f.room = &models.Room{PropertyID: p.ID, Code: "R1", Name: "Room 1", Status: models.RoomVacant, BaseRent: decimal.NewFromInt(3000)}
	require.NoError(t, env.Store.Properties().CreateRoom(scoped, f.room))
	return f
}

func (f *fixture) create(t *testing.T) *models.Contract {
	t.Helper()
	c, err := f.svc.Create(f.manager, CreateInput{RoomID: f.room.ID, Code: "C-" + uuid.NewString()[:4], StartDate: time.Now()})
	require.NoError(t, err)
	return c
}

func (f *fixture) roomStatus(t *testing.T) models.RoomStatus {
	t.Helper()
	r, err := f.env.Store.Properties().GetRoom(tenant.WithOrg(context.Background(), f.org), f.room.ID, tenant.ActiveOnly)
	require.NoError(t, err)
	return r.Status
}

func TestCreateDefaultsToDraftWithJoinCode(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	assert.Equal(t, models.ContractDraft, c.Status)
	assert.Len(t, c.JoinCode, 8)
	assert.Equal(t, f.org, c.OrgID)
	assert.Equal(t, f.room.PropertyID, c.PropertyID)
	assert.True(t, c.RentPrice.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, 1, c.BillingDay)
}

func TestCreateRejectsRoomOfAnotherOrganization(t *testing.T) {
	f := newFixture(t)
	other := f.env.As(t, f.env.Org(t), models.RoleManager)

	_, err := f.svc.Create(other, CreateInput{RoomID: f.room.ID, Code: "X", StartDate: time.Now()})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestActivateEndLifecycle(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	_, err := f.svc.AddMember(f.manager, c.ID, MemberInput{FullName: "Lan", Role: models.MemberTenant, IsPrimary: true})
	require.NoError(t, err)

	c, err = f.svc.Activate(f.manager, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractActive, c.Status)
	assert.Equal(t, models.RoomOccupied, f.roomStatus(t))

	second := f.create(t)
	_, err = f.svc.Activate(f.manager, second.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))

	c, err = f.svc.End(f.manager, c.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ContractEnded, c.Status)
	assert.NotNil(t, c.EndDate)
	assert.Equal(t, models.RoomVacant, f.roomStatus(t))

	got, err := f.svc.Get(f.manager, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Members, 1)
	assert.NotNil(t, got.Members[0].LeftAt)

	_, err = f.svc.Cancel(f.manager, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}

func TestFailedActivationLeavesRoomUntouched(t *testing.T) {
	f := newFixture(t)
	first := f.create(t)
	_, err := f.svc.Activate(f.manager, first.ID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(f.manager, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomVacant, f.roomStatus(t))

	_, err = f.svc.Activate(f.manager, first.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
	assert.Equal(t, models.RoomVacant, f.roomStatus(t))
}

func TestTenantJoinApproveAndVisibility(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	other := f.create(t)
	tenantCtx := f.env.As(t, f.org, models.RoleTenant)

	_, err := f.svc.Get(tenantCtx, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	m, err := f.svc.Join(tenantCtx, c.JoinCode)
	require.NoError(t, err)
	assert.Equal(t, models.MemberPending, m.Status)
	assert.True(t, m.IsPrimary)

	_, err = f.svc.Join(tenantCtx, c.JoinCode)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))

	// pending members see nothing yet
	_, err = f.svc.Get(tenantCtx, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.ApproveMember(tenantCtx, m.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	m, err = f.svc.ApproveMember(f.manager, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MemberApproved, m.Status)
	assert.NotNil(t, m.JoinedAt)

	got, err := f.svc.Get(tenantCtx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = f.svc.Get(tenantCtx, other.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	list, err := f.svc.List(tenantCtx, ListInput{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)

	all, err := f.svc.List(f.manager, ListInput{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.ApproveMember(f.manager, m.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}

func TestJoinCodeOfAnotherOrganizationIsNotFound(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	outsider := f.env.As(t, f.env.Org(t), models.RoleTenant)

	_, err := f.svc.Join(outsider, c.JoinCode)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRemoveMemberKeepsHistory(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	m, err := f.svc.AddMember(f.manager, c.ID, MemberInput{FullName: "Minh", Role: models.MemberRoommate})
	require.NoError(t, err)

	m, err = f.svc.RemoveMember(f.manager, m.ID)
	require.NoError(t, err)
	assert.NotNil(t, m.LeftAt)

	_, err = f.svc.RemoveMember(f.manager, m.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))

	members, err := f.env.Store.Contracts().Members(tenant.WithOrg(context.Background(), f.org), c.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestUpdateRejectsClosedContract(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	rent := decimal.NewFromInt(3500)
	c, err := f.svc.Update(f.manager, c.ID, UpdateInput{RentPrice: &rent, Meta: models.Meta{"pets": true}})
	require.NoError(t, err)
	assert.True(t, c.RentPrice.Equal(rent))

	_, err = f.svc.Cancel(f.manager, c.ID)
	require.NoError(t, err)
	_, err = f.svc.Update(f.manager, c.ID, UpdateInput{RentPrice: &rent})
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}

func TestMutationsAreAudited(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	_, err := f.svc.Activate(f.manager, c.ID)
	require.NoError(t, err)

	logs, err := audit.NewService(f.env.Store).GetAuditLogs(tenant.WithOrg(context.Background(), f.org), audit.AuditQuery{ResourceType: resourceType, ResourceID: &c.ID})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "status_changed", logs[0].Action)
	assert.Equal(t, "ACTIVE", logs[0].Details["to"])
}
