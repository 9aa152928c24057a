package rbac

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/cache"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/store/memory"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name   string
		module Module
		tokens []string
		want   []Action
	}{
		{"read", ModuleProperty, []string{"R"}, []Action{ActionViewAny, ActionView}},
		{"crud literal", ModuleProperty, []string{"CRUD"},
			[]Action{ActionViewAny, ActionView, ActionCreate, ActionUpdate, ActionDelete}},
		{"named action", ModuleContract, []string{"C", "addMember"}, []Action{ActionCreate, ActionAddMember}},
		{"duplicates collapse", ModuleRoom, []string{"R", "view", "RR"}, []Action{ActionViewAny, ActionView}},
		{"star includes extras", ModuleHandover, []string{"*"},
			[]Action{ActionViewAny, ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionRestore, ActionForceDelete, ActionConfirm}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.module, tt.tokens)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandRejectsMalformedTokens(t *testing.T) {
	for _, tokens := range [][]string{{"X"}, {"RX"}, {"confirm"}, {""}, {"crud"}} {
		_, err := Expand(ModuleProperty, tokens)
		assert.Error(t, err, "tokens %v", tokens)
	}
	_, err := Expand(Module("nope"), []string{"R"})
	assert.Error(t, err)
}

func TestDeclarationsAreWellFormed(t *testing.T) {
	for _, d := range Declarations {
		for role, tokens := range d.Roles {
			actions, err := Expand(d.Module, tokens)
			require.NoError(t, err, "%s/%s", d.Module, role)
			if IsRestricted(d.Module, role) {
				assert.NotContains(t, actions, ActionView, "%s/%s", d.Module, role)
				assert.NotContains(t, actions, ActionViewAny, "%s/%s", d.Module, role)
			}
		}
	}
}

func grantState(t *testing.T, st store.Store) map[models.RoleName][]string {
	t.Helper()
	roles := []models.RoleName{models.RoleAdmin, models.RoleOwner, models.RoleManager, models.RoleStaff, models.RoleTenant}
	grants, err := st.Permissions().Grants(tenant.System(context.Background()), roles)
	require.NoError(t, err)
	out := map[models.RoleName][]string{}
	for r, perms := range grants {
		for _, p := range perms {
			out[r] = append(out[r], p.Name())
		}
	}
	return out
}

func TestSyncIsIdempotent(t *testing.T) {
	st := memory.New()
	s := NewSyncer(st, Declarations, nil)

	first, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(Declarations), first.Modules)
	assert.Positive(t, first.PermissionsCreated)
	assert.Positive(t, first.GrantsCreated)
	assert.Equal(t, len(models.RoleNames), first.RolesSynced)
	before := grantState(t, st)

	second, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.PermissionsCreated)
	assert.Zero(t, second.GrantsCreated)
	assert.Equal(t, first.PermissionsVerified, second.PermissionsVerified)
	assert.Equal(t, before, grantState(t, st))
}

func TestSyncCreatesGlobalRoles(t *testing.T) {
	st := memory.New()
	decls := []Declaration{{Module: ModuleProperty, Roles: map[models.RoleName][]string{
		models.RoleManager: {"R"},
	}}}
	_, err := NewSyncer(st, decls, nil).Sync(context.Background())
	require.NoError(t, err)

	sys := tenant.System(context.Background())
	for _, name := range []models.RoleName{models.RoleSuperAdmin, models.RoleAdmin} {
		_, created, err := st.Permissions().FindOrCreateRole(sys, name)
		require.NoError(t, err)
		assert.False(t, created, "%s should exist after sync", name)
	}

	u := &models.User{Email: "root@x.test", FullName: "Root", IsActive: true}
	require.NoError(t, st.Users().Create(sys, u))
	require.NoError(t, st.Users().SetRoles(sys, u.ID, []models.RoleName{models.RoleSuperAdmin}))
}

func TestSyncSkipsMalformedPair(t *testing.T) {
	st := memory.New()
	decls := []Declaration{{Module: ModuleProperty, Roles: map[models.RoleName][]string{
		models.RoleManager: {"CRUD"},
		models.RoleStaff:   {"R", "Q"},
	}}}

	sum, err := NewSyncer(st, decls, nil).Sync(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Equal(t, []string{"property/staff"}, sum.Skipped)

	state := grantState(t, st)
	assert.Len(t, state[models.RoleManager], 5)
	assert.Empty(t, state[models.RoleStaff])
}

type fixture struct {
	st       *memory.Store
	eval     *Evaluator
	loader   *Loader
	orgA     uuid.UUID
	orgB     uuid.UUID
	ctxA     context.Context
	room     *models.Room
	contract *models.Contract
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	_, err := NewSyncer(st, Declarations, nil).Sync(context.Background())
	require.NoError(t, err)

	sys := tenant.System(context.Background())
	f := &fixture{st: st, eval: NewEvaluator(st.Contracts()), loader: NewLoader(st.Permissions(), nil)}
	for _, id := range []*uuid.UUID{&f.orgA, &f.orgB} {
		slug := "org-" + uuid.NewString()[:6]
		org := &models.Organization{Name: slug, Slug: slug, Currency: "VND", Timezone: "UTC"}
		require.NoError(t, st.Organizations().Create(sys, org))
		*id = org.ID
	}
	f.ctxA = tenant.WithOrg(context.Background(), f.orgA)

	p := &models.Property{Name: "Block A"}
	require.NoError(t, st.Properties().CreateProperty(f.ctxA, p))
	f.room = &models.Room{PropertyID: p.ID, Code: "A101", Name: "A101"}
	require.NoError(t, st.Properties().CreateRoom(f.ctxA, f.room))
	f.contract = &models.Contract{PropertyID: p.ID, RoomID: f.room.ID, Code: "C-1", Status: models.ContractActive, JoinCode: "JOIN1"}
	require.NoError(t, st.Contracts().Create(f.ctxA, f.contract))
	return f
}

func (f *fixture) session(t *testing.T, org uuid.UUID, roles ...models.RoleName) context.Context {
	t.Helper()
	u := models.User{ID: uuid.New(), Roles: roles}
	if org != uuid.Nil {
		u.OrgID = &org
	}
	s, err := f.loader.Load(context.Background(), u)
	require.NoError(t, err)
	ctx := context.Background()
	if org != uuid.Nil {
		ctx = tenant.WithOrg(ctx, org)
	}
	return WithSession(ctx, s)
}

func (f *fixture) join(t *testing.T, ctx context.Context, status models.MemberStatus) {
	t.Helper()
	uid := SessionFrom(ctx).UserID()
	require.NoError(t, f.st.Contracts().AddMember(f.ctxA, &models.ContractMember{
		ContractID: f.contract.ID, UserID: &uid, FullName: "Tenant", Role: models.MemberTenant, Status: status,
	}))
}

func TestTenantSeesOnlyContractsTheyBelongTo(t *testing.T) {
	f := newFixture(t)
	tenantCtx := f.session(t, f.orgA, models.RoleTenant)

	err := f.eval.Authorize(tenantCtx, ActionView, ModuleContract, f.contract)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	f.join(t, tenantCtx, models.MemberPending)
	assert.False(t, f.eval.Can(tenantCtx, ActionView, ModuleContract, f.contract))

	other := f.session(t, f.orgA, models.RoleTenant)
	f.join(t, other, models.MemberApproved)
	assert.True(t, f.eval.Can(other, ActionView, ModuleContract, f.contract))
	assert.True(t, f.eval.Can(other, ActionAddMember, ModuleContract, f.contract))
	assert.False(t, f.eval.Can(other, ActionUpdate, ModuleContract, f.contract))
	assert.Equal(t, ListMembersOnly, f.eval.ListScope(other, ModuleContract))
}

func TestBlanketGrantNeverLeaksToRestrictedRole(t *testing.T) {
	f := newFixture(t)
	sys := tenant.System(context.Background())
	role, _, err := f.st.Permissions().FindOrCreateRole(sys, models.RoleTenant)
	require.NoError(t, err)
	perm, _, err := f.st.Permissions().FindOrCreatePermission(sys, string(ModuleContract), string(ActionView))
	require.NoError(t, err)
	_, err = f.st.Permissions().Grant(sys, role.ID, perm.ID)
	require.NoError(t, err)

	ctx := f.session(t, f.orgA, models.RoleTenant)
	require.True(t, SessionFrom(ctx).Grants[models.RoleTenant].Has(ModuleContract, ActionView))
	assert.False(t, f.eval.Can(ctx, ActionView, ModuleContract, f.contract))
}

func TestManagerNeedsSameOrganization(t *testing.T) {
	f := newFixture(t)
	mgrA := f.session(t, f.orgA, models.RoleManager)
	mgrB := f.session(t, f.orgB, models.RoleManager)

	assert.True(t, f.eval.Can(mgrA, ActionView, ModuleContract, f.contract))
	assert.True(t, f.eval.Can(mgrA, ActionUpdateStatus, ModuleContract, f.contract))
	assert.False(t, f.eval.Can(mgrA, ActionForceDelete, ModuleContract, f.contract))
	assert.False(t, f.eval.Can(mgrB, ActionView, ModuleContract, f.contract))
	assert.Equal(t, ListAll, f.eval.ListScope(mgrA, ModuleContract))
}

func TestGlobalAdminBypasses(t *testing.T) {
	f := newFixture(t)
	admin := f.session(t, uuid.Nil, models.RoleSuperAdmin)
	assert.True(t, f.eval.Can(admin, ActionForceDelete, ModuleContract, f.contract))
	assert.Equal(t, ListAll, f.eval.ListScope(admin, ModuleInvoice))
}

func TestTicketOwnership(t *testing.T) {
	f := newFixture(t)
	author := f.session(t, f.orgA, models.RoleTenant)
	stranger := f.session(t, f.orgA, models.RoleTenant)
	f.join(t, author, models.MemberApproved)

	tk := models.Ticket{OrgID: f.orgA, RoomID: f.room.ID, ContractID: &f.contract.ID, CreatedBy: SessionFrom(author).UserID()}
	assert.True(t, f.eval.Can(author, ActionCreate, ModuleTicket, tk))
	assert.True(t, f.eval.Can(author, ActionView, ModuleTicket, tk))
	assert.True(t, f.eval.Can(author, ActionAddEvent, ModuleTicket, &tk))
	assert.False(t, f.eval.Can(author, ActionAddCost, ModuleTicket, tk))

	assert.False(t, f.eval.Can(stranger, ActionCreate, ModuleTicket, tk))
	assert.False(t, f.eval.Can(stranger, ActionView, ModuleTicket, tk))
	assert.False(t, f.eval.Can(stranger, ActionAddEvent, ModuleTicket, tk))
}

func TestInvoiceAndHandoverFollowContractMembership(t *testing.T) {
	f := newFixture(t)
	member := f.session(t, f.orgA, models.RoleTenant)
	stranger := f.session(t, f.orgA, models.RoleTenant)
	f.join(t, member, models.MemberApproved)

	inv := models.Invoice{OrgID: f.orgA, ContractID: f.contract.ID}
	h := models.Handover{OrgID: f.orgA, ContractID: f.contract.ID}
	assert.True(t, f.eval.Can(member, ActionView, ModuleInvoice, inv))
	assert.True(t, f.eval.Can(member, ActionView, ModuleHandover, h))
	assert.False(t, f.eval.Can(member, ActionUpdate, ModuleInvoice, inv))
	assert.False(t, f.eval.Can(stranger, ActionView, ModuleInvoice, inv))
	assert.False(t, f.eval.Can(stranger, ActionView, ModuleHandover, h))
	assert.Equal(t, ListDenied, f.eval.ListScope(member, ModuleProperty))
}

func TestMissingSessionDenies(t *testing.T) {
	f := newFixture(t)
	err := f.eval.Authorize(context.Background(), ActionView, ModuleContract, f.contract)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, ListDenied, f.eval.ListScope(context.Background(), ModuleContract))
}

type mapBackend struct {
	data map[string][]byte
	sets int
}

func (m *mapBackend) Get(_ context.Context, key string, dest any) error {
	b, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *mapBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.sets++
	m.data[key] = b
	return nil
}

func (m *mapBackend) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type countingPerms struct {
	store.PermissionRepository
	calls int
}

func (c *countingPerms) Grants(ctx context.Context, roles []models.RoleName) (map[models.RoleName][]models.Permission, error) {
	c.calls++
	return c.PermissionRepository.Grants(ctx, roles)
}

func TestLoaderReadsThroughGrantCache(t *testing.T) {
	st := memory.New()
	backend := &mapBackend{data: map[string][]byte{}}
	gc := NewGrantCache(backend, time.Minute)
	_, err := NewSyncer(st, Declarations, gc).Sync(context.Background())
	require.NoError(t, err)

	perms := &countingPerms{PermissionRepository: st.Permissions()}
	loader := NewLoader(perms, gc)
	u := models.User{ID: uuid.New(), Roles: []models.RoleName{models.RoleManager}}

	s1, err := loader.Load(context.Background(), u)
	require.NoError(t, err)
	s2, err := loader.Load(context.Background(), u)
	require.NoError(t, err)

	assert.Equal(t, 1, perms.calls)
	assert.Equal(t, 1, backend.sets)
	assert.True(t, s2.Grants[models.RoleManager].Has(ModuleInvoice, ActionIssue))
	assert.Equal(t, s1.Grants, s2.Grants)

	require.NoError(t, gc.Invalidate(context.Background(), models.RoleManager))
	_, err = loader.Load(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, 2, perms.calls)
}
