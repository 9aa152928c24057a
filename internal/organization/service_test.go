package organization

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/audit"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac/rbactest"
	"github.com/nikhilbhutani/rentalcore/internal/store"
)

func newService(t *testing.T) (*rbactest.Env, *Service) {
	t.Helper()
	env := rbactest.New(t)
	svc := NewService(env.Store, env.Eval, audit.NewService(env.Store))
	svc.cost = bcrypt.MinCost
	return env, svc
}

func TestAdminCreatesOrganizationAndOwner(t *testing.T) {
	env, svc := newService(t)
	admin := env.As(t, uuid.Nil, models.RoleAdmin)

	org, err := svc.CreateOrganization(admin, OrganizationInput{Name: "Acme Rentals", Slug: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "acme", org.Slug)
	assert.Equal(t, "VND", org.Currency)

	_, err = svc.CreateOrganization(admin, OrganizationInput{Name: "Again", Slug: "acme"})
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))

	owner, err := svc.CreateUser(admin, UserInput{
		OrgID: &org.ID, Email: "Owner@Acme.test", FullName: "Olivia", Password: "correct horse", Roles: []models.RoleName{models.RoleOwner},
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.test", owner.Email)
	assert.NotEqual(t, "correct horse", owner.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte("correct horse")))

	got, err := svc.GetUser(admin, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.RoleName{models.RoleOwner}, got.Roles)
}

func TestOwnerCannotCreateOrganizationsOrAdmins(t *testing.T) {
	env, svc := newService(t)
	org := env.Org(t)
	owner := env.As(t, org, models.RoleOwner)

	_, err := svc.CreateOrganization(owner, OrganizationInput{Name: "Mine", Slug: "mine"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.CreateUser(owner, UserInput{Email: "a@x.test", FullName: "A", Password: "password1", Roles: []models.RoleName{models.RoleAdmin}})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestUsersAreBoundToActorOrganization(t *testing.T) {
	env, svc := newService(t)
	org := env.Org(t)
	other := env.Org(t)
	manager := env.As(t, org, models.RoleManager)

	u, err := svc.CreateUser(manager, UserInput{
		OrgID: &other, Email: "staff@x.test", FullName: "Sam", Password: "password1", Roles: []models.RoleName{models.RoleStaff},
	})
	require.NoError(t, err)
	require.NotNil(t, u.OrgID)
	assert.Equal(t, org, *u.OrgID)

	_, err = svc.CreateUser(manager, UserInput{Email: "boss@x.test", FullName: "B", Password: "password1", Roles: []models.RoleName{models.RoleOwner}})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.CreateUser(manager, UserInput{Email: "STAFF@x.test", FullName: "Dup", Password: "password1", Roles: []models.RoleName{models.RoleStaff}})
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))

	_, err = svc.GetUser(env.As(t, other, models.RoleOwner), u.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAdminUserNeedsNoOrganization(t *testing.T) {
	env, svc := newService(t)
	admin := env.As(t, uuid.Nil, models.RoleSuperAdmin)

	_, err := svc.CreateUser(admin, UserInput{Email: "m@x.test", FullName: "M", Password: "password1", Roles: []models.RoleName{models.RoleManager}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	u, err := svc.CreateUser(admin, UserInput{Email: "root@x.test", FullName: "Root", Password: "password1", Roles: []models.RoleName{models.RoleAdmin}})
	require.NoError(t, err)
	assert.Nil(t, u.OrgID)
}

func TestAssignRoles(t *testing.T) {
	env, svc := newService(t)
	org := env.Org(t)
	owner := env.As(t, org, models.RoleOwner)

	u, err := svc.CreateUser(owner, UserInput{Email: "s@x.test", FullName: "S", Password: "password1", Roles: []models.RoleName{models.RoleStaff}})
	require.NoError(t, err)

	u, err = svc.AssignRoles(owner, u.ID, []models.RoleName{models.RoleManager, models.RoleStaff})
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.RoleName{models.RoleManager, models.RoleStaff}, u.Roles)

	_, err = svc.AssignRoles(owner, u.ID, []models.RoleName{"landlord"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.AssignRoles(env.As(t, org, models.RoleManager), u.ID, []models.RoleName{models.RoleTenant})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	users, err := svc.ListUsers(owner, store.Page{})
	require.NoError(t, err)
	for _, x := range users {
		require.NotNil(t, x.OrgID)
		assert.Equal(t, org, *x.OrgID)
	}
}
