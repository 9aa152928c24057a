package property

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

func newService(t *testing.T) (*rbactest.Env, *Service, uuid.UUID, context.Context) {
	t.Helper()
	env := rbactest.New(t)
	org := env.Org(t)
	return env, NewService(env.Store, env.Eval, audit.NewService(env.Store)), org, env.As(t, org, models.RoleManager)
}

func TestRoomTrashVariants(t *testing.T) {
	_, svc, _, ctx := newService(t)

	p, err := svc.CreateProperty(ctx, PropertyInput{Name: "Riverside", Meta: models.Meta{"floors": 3.0}})
	require.NoError(t, err)
	floor, err := svc.CreateFloor(ctx, FloorInput{PropertyID: p.ID, Name: "Ground", Level: 0})
	require.NoError(t, err)

	r, err := svc.CreateRoom(ctx, RoomInput{PropertyID: p.ID, FloorID: &floor.ID, Code: "G01", BaseRent: decimal.NewFromInt(2500)})
	require.NoError(t, err)
	assert.Equal(t, models.RoomVacant, r.Status)

	_, err = svc.CreateRoom(ctx, RoomInput{PropertyID: p.ID, Code: "G01"})
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))

	require.NoError(t, svc.DeleteRoom(ctx, r.ID))

	_, err = svc.GetRoom(ctx, r.ID, tenant.ActiveOnly)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	trashed, err := svc.GetRoom(ctx, r.ID, tenant.TrashedOnly)
	require.NoError(t, err)
	assert.NotNil(t, trashed.DeletedAt)

	active, err := svc.ListRooms(ctx, store.RoomFilter{PropertyID: &p.ID})
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := svc.ListRooms(ctx, store.RoomFilter{PropertyID: &p.ID, Trashed: tenant.WithTrashed})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, svc.RestoreRoom(ctx, r.ID))
	_, err = svc.GetRoom(ctx, r.ID, tenant.ActiveOnly)
	require.NoError(t, err)

	err = svc.RestoreRoom(ctx, r.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteRoomWithActiveContractFails(t *testing.T) {
	env, svc, org, ctx := newService(t)
	p, err := svc.CreateProperty(ctx, PropertyInput{Name: "Hill"})
	require.NoError(t, err)
	r, err := svc.CreateRoom(ctx, RoomInput{PropertyID: p.ID, Code: "H1"})
	require.NoError(t, err)

	c := &models.Contract{PropertyID: p.ID, RoomID: r.ID, Code: "C1", Status: models.ContractActive, JoinCode: "HILL0001", StartDate: time.Now()}
	require.NoError(t, env.Store.Contracts().Create(tenant.WithOrg(context.Background(), org), c))

	err = svc.DeleteRoom(ctx, r.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))

	err = svc.ForceDeleteRoom(ctx, r.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "managers cannot force delete")

	owner := env.As(t, org, models.RoleOwner)
	err = svc.ForceDeleteRoom(owner, r.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}

func TestForceDeletePropertyRequiresNoRooms(t *testing.T) {
	env, svc, org, ctx := newService(t)
	owner := env.As(t, org, models.RoleOwner)

	p, err := svc.CreateProperty(ctx, PropertyInput{Name: "Lake"})
	require.NoError(t, err)
	r, err := svc.CreateRoom(ctx, RoomInput{PropertyID: p.ID, Code: "L1"})
	require.NoError(t, err)

	assert.True(t, apperr.Is(svc.ForceDeleteProperty(owner, p.ID), apperr.KindBusinessRule))

	require.NoError(t, svc.ForceDeleteRoom(owner, r.ID))
	require.NoError(t, svc.DeleteProperty(owner, p.ID))
	require.NoError(t, svc.ForceDeleteProperty(owner, p.ID))

	_, err = svc.GetProperty(owner, p.ID, tenant.WithTrashed)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestOtherOrganizationCannotSeeProperty(t *testing.T) {
	env, svc, _, ctx := newService(t)
	p, err := svc.CreateProperty(ctx, PropertyInput{Name: "Private"})
	require.NoError(t, err)

	outsider := env.As(t, env.Org(t), models.RoleOwner)
	_, err = svc.GetProperty(outsider, p.ID, tenant.ActiveOnly)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(svc.DeleteProperty(outsider, p.ID), apperr.KindNotFound))

	list, err := svc.ListProperties(outsider, tenant.ActiveOnly, store.Page{})
	require.NoError(t, err)
	assert.Empty(t, list)

	admin := env.As(t, uuid.Nil, models.RoleAdmin)
	got, err := svc.GetProperty(admin, p.ID, tenant.ActiveOnly)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestTenantCannotListRooms(t *testing.T) {
	env, svc, org, _ := newService(t)
	_, err := svc.ListRooms(env.As(t, org, models.RoleTenant), store.RoomFilter{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestMaintenanceToggle(t *testing.T) {
	_, svc, _, ctx := newService(t)
	p, err := svc.CreateProperty(ctx, PropertyInput{Name: "Dock"})
	require.NoError(t, err)
	r, err := svc.CreateRoom(ctx, RoomInput{PropertyID: p.ID, Code: "D1"})
	require.NoError(t, err)

	r, err = svc.UpdateRoom(ctx, r.ID, RoomInput{Name: "Dock 1"}, models.RoomMaintenance)
	require.NoError(t, err)
	assert.Equal(t, models.RoomMaintenance, r.Status)
	assert.Equal(t, "Dock 1", r.Name)

	_, err = svc.UpdateRoom(ctx, r.ID, RoomInput{}, models.RoomOccupied)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}
