package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
	"github.com/nikhilbhutani/rentalcore/internal/rbac/rbactest"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", "rentalcore", time.Hour)
	org := uuid.New()
	u := models.User{ID: uuid.New(), Email: "a@example.test", OrgID: &org}

	tok, err := tokens.Issue(u)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)

	claims, err := tokens.Parse(tok.AccessToken)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.Equal(t, org.String(), claims.OrgID)
}

func TestParseRejectsBadTokens(t *testing.T) {
	tokens := NewTokens("secret", "rentalcore", time.Hour)
	u := models.User{ID: uuid.New()}

	expired := NewTokens("secret", "rentalcore", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(u)
	require.NoError(t, err)

	foreign, err := NewTokens("other", "rentalcore", time.Hour).Issue(u)
	require.NoError(t, err)

	wrongIssuer, err := NewTokens("secret", "someone-else", time.Hour).Issue(u)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": u.ID.String(), "iss": "rentalcore"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"expired": old.AccessToken, "foreign key": foreign.AccessToken, "issuer": wrongIssuer.AccessToken,
		"alg none": none, "garbage": "abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Parse(raw)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestLogin(t *testing.T) {
	env := rbactest.New(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	org := env.Org(t)
	u := &models.User{OrgID: &org, Email: "Lan@Example.test", FullName: "Lan", PasswordHash: string(hash), IsActive: true}
	require.NoError(t, env.Store.Users().Create(tenant.System(context.Background()), u))

	svc := NewService(env.Store.Users(), NewTokens("secret", "rentalcore", time.Hour))

	tok, err := svc.Login(context.Background(), LoginInput{Email: " lan@example.test ", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)

	_, err = svc.Login(context.Background(), LoginInput{Email: "lan@example.test", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), LoginInput{Email: "nobody@example.test", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

type probe struct {
	session *rbac.Session
	scope   tenant.Scope
}

func (p *probe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.session = rbac.SessionFrom(r.Context())
	p.scope = tenant.FromContext(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func authed(t *testing.T, env *rbactest.Env, roles []models.RoleName, org *uuid.UUID) (*models.User, string) {
	t.Helper()
	u := &models.User{OrgID: org, Email: uuid.NewString()[:8] + "@example.test", FullName: "U", IsActive: true}
	sys := tenant.System(context.Background())
	require.NoError(t, env.Store.Users().Create(sys, u))
	require.NoError(t, env.Store.Users().SetRoles(sys, u.ID, roles))
	tok, err := NewTokens("secret", "rentalcore", time.Hour).Issue(*u)
	require.NoError(t, err)
	return u, tok.AccessToken
}

func serve(h http.Handler, token, orgHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if orgHeader != "" {
		req.Header.Set("X-Org-ID", orgHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareScopesOrganizationUsers(t *testing.T) {
	env := rbactest.New(t)
	mw := NewMiddleware(NewTokens("secret", "rentalcore", time.Hour), env.Store, env.Loader, "X-Org-ID")
	org := env.Org(t)
	u, token := authed(t, env, []models.RoleName{models.RoleManager}, &org)

	p := &probe{}
	rec := serve(mw.Authenticate(p), token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, p.session)
	assert.Equal(t, u.ID, p.session.UserID())
	assert.Equal(t, org, p.scope.OrgID)
	assert.True(t, p.session.Grants[models.RoleManager].Has(rbac.ModuleInvoice, rbac.ActionIssue))

	rec = serve(mw.Authenticate(p), token, env.Org(t).String())
	assert.Equal(t, http.StatusForbidden, rec.Code, "org users cannot switch organization")
}

func TestMiddlewarePlatformUsersPickOrganization(t *testing.T) {
	env := rbactest.New(t)
	mw := NewMiddleware(NewTokens("secret", "rentalcore", time.Hour), env.Store, env.Loader, "")
	org := env.Org(t)
	_, token := authed(t, env, []models.RoleName{models.RoleAdmin}, nil)

	p := &probe{}
	require.Equal(t, http.StatusNoContent, serve(mw.Authenticate(p), token, "").Code)
	assert.False(t, p.scope.Scoped())

	require.Equal(t, http.StatusNoContent, serve(mw.Authenticate(p), token, org.String()).Code)
	assert.Equal(t, org, p.scope.OrgID)

	rec := serve(mw.Authenticate(p), token, uuid.NewString())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation", body["kind"])
}

func TestMiddlewareRejectsMissingAndUnknown(t *testing.T) {
	env := rbactest.New(t)
	mw := NewMiddleware(NewTokens("secret", "rentalcore", time.Hour), env.Store, env.Loader, "")

	assert.Equal(t, http.StatusUnauthorized, serve(mw.Authenticate(&probe{}), "", "").Code)

	ghost, err := NewTokens("secret", "rentalcore", time.Hour).Issue(models.User{ID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(mw.Authenticate(&probe{}), ghost.AccessToken, "").Code)
}
