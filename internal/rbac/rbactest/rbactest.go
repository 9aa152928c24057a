// Package rbactest builds synced in-memory environments and request sessions
// for service tests.
package rbactest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/store/memory"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type Env struct {
	Store  store.Store
	Eval   *rbac.Evaluator
	Loader *rbac.Loader
}

// New returns a memory store with the default declarations synced.
func New(t testing.TB) *Env {
	t.Helper()
	return WithStore(t, memory.New())
}

// WithStore syncs the default declarations into st.
func WithStore(t testing.TB, st store.Store) *Env {
	t.Helper()
	_, err := rbac.NewSyncer(st, rbac.Declarations, nil).Sync(context.Background())
	require.NoError(t, err)
	return &Env{Store: st, Eval: rbac.NewEvaluator(st.Contracts()), Loader: rbac.NewLoader(st.Permissions(), nil)}
}

// Org creates an organization and returns its id.
func (e *Env) Org(t testing.TB) uuid.UUID {
	t.Helper()
	slug := "org-" + uuid.NewString()[:8]
	org := &models.Organization{Name: slug, Slug: slug, Currency: "VND", Timezone: "UTC"}
	require.NoError(t, e.Store.Organizations().Create(tenant.System(context.Background()), org))
	return org.ID
}

// As persists a user of org holding roles and returns a request context
// carrying its session and scope. uuid.Nil creates a platform user.
func (e *Env) As(t testing.TB, org uuid.UUID, roles ...models.RoleName) context.Context {
	t.Helper()
	sys := tenant.System(context.Background())
	u := &models.User{Email: uuid.NewString()[:8] + "@example.test", FullName: "Test User", IsActive: true}
	if org != uuid.Nil {
		u.OrgID = &org
	}
	require.NoError(t, e.Store.Users().Create(sys, u))
	require.NoError(t, e.Store.Users().SetRoles(sys, u.ID, roles))
	u.Roles = roles

	s, err := e.Loader.Load(context.Background(), *u)
	require.NoError(t, err)
	ctx := tenant.System(context.Background())
	if org != uuid.Nil {
		ctx = tenant.WithOrg(context.Background(), org)
	}
	return rbac.WithSession(ctx, s)
}

// UserID returns the acting user of ctx.
func UserID(ctx context.Context) uuid.UUID {
	return rbac.SessionFrom(ctx).UserID()
}

// Room creates a property with one vacant room in org.
func (e *Env) Room(t testing.TB, org uuid.UUID) *models.Room {
	t.Helper()
	ctx := tenant.WithOrg(context.Background(), org)
	p := &models.Property{Name: "Property " + uuid.NewString()[:4]}
	require.NoError(t, e.Store.Properties().CreateProperty(ctx, p))
	r := &models.Room{PropertyID: p.ID, Code: "R-" + uuid.NewString()[:4], Name: "Room", Status: models.RoomVacant, BaseRent: decimal.NewFromInt(3000)}
	require.NoError(t, e.Store.Properties().CreateRoom(ctx, r))
	return r
}

// ActiveContract stores an ACTIVE contract on room with the acting users of
// members as approved members.
func (e *Env) ActiveContract(t testing.TB, room *models.Room, members ...context.Context) *models.Contract {
	t.Helper()
	ctx := tenant.WithOrg(context.Background(), room.OrgID)
	code := uuid.NewString()[:8]
	c := &models.Contract{
		PropertyID: room.PropertyID, RoomID: room.ID, Code: "C-" + code, Status: models.ContractActive,
		StartDate: time.Now().UTC().AddDate(0, -1, 0), RentPrice: room.BaseRent, BillingDay: 5, JoinCode: code,
	}
	require.NoError(t, e.Store.Contracts().Create(ctx, c))
	now := time.Now().UTC()
	for i, m := range members {
		uid := UserID(m)
		require.NoError(t, e.Store.Contracts().AddMember(ctx, &models.ContractMember{
			ContractID: c.ID, UserID: &uid, FullName: "Member", Role: models.MemberTenant,
			Status: models.MemberApproved, IsPrimary: i == 0, JoinedAt: &now,
		}))
	}
	return c
}
