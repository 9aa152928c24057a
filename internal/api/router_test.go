package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalcore/internal/app"
	"github.com/nikhilbhutani/rentalcore/internal/config"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac/rbactest"
	"github.com/nikhilbhutani/rentalcore/internal/storage"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type fixture struct {
	env     *rbactest.Env
	svc     *app.Services
	handler http.Handler
}

func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Server.RateLimitRPS = 1000
	cfg.Server.RateBurst = 1000
	cfg.Auth = config.AuthConfig{JWTSecret: "test-secret", Issuer: "rentalcore", TokenTTL: time.Hour, OrgHeader: "X-Org-ID"}
	cfg.Uploads = config.UploadsConfig{Dir: t.TempDir(), TTL: time.Hour}
	return cfg
}

func newFixture(t *testing.T) *fixture {
	env := rbactest.New(t)
	cfg := testConfig(t)
	svc := app.New(cfg, app.Deps{Store: env.Store, Files: storage.NewLocalStorage(cfg.Uploads.Dir)})
	return &fixture{env: env, svc: svc, handler: NewRouter(cfg, svc, nil).Setup()}
}

// token issues a bearer token for the acting user of ctx.
func (f *fixture) token(t *testing.T, ctx context.Context) string {
	t.Helper()
	u, err := f.env.Store.Users().Get(tenant.System(context.Background()), rbactest.UserID(ctx))
	require.NoError(t, err)
	tok, err := f.svc.Tokens.Issue(*u)
	require.NoError(t, err)
	return tok.AccessToken
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/contracts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTenantContractVisibilityFollowsMembership(t *testing.T) {
	f := newFixture(t)
	org := f.env.Org(t)
	room := f.env.Room(t, org)
	member := f.env.As(t, org, models.RoleTenant)
	outsider := f.env.As(t, org, models.RoleTenant)
	c := f.env.ActiveContract(t, room, member)

	rec := f.do(t, http.MethodGet, "/api/v1/contracts/"+c.ID.String(), f.token(t, outsider), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/contracts/"+c.ID.String(), f.token(t, member), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, c.ID.String(), decodeBody(t, rec)["id"])

	rec = f.do(t, http.MethodGet, "/api/v1/contracts", f.token(t, outsider), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeBody(t, rec)["count"])
}

func TestOtherOrganizationSeesNotFound(t *testing.T) {
	f := newFixture(t)
	orgA, orgB := f.env.Org(t), f.env.Org(t)
	c := f.env.ActiveContract(t, f.env.Room(t, orgA))
	outsider := f.env.As(t, orgB, models.RoleManager)

	rec := f.do(t, http.MethodGet, "/api/v1/contracts/"+c.ID.String(), f.token(t, outsider), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody(t, rec)["kind"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts/"+c.ID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, outsider))
	req.Header.Set("X-Org-ID", orgA.String())
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "organization users cannot pick another organization")
}

func TestInvoiceDeleteOnlyWhileDraft(t *testing.T) {
	f := newFixture(t)
	org := f.env.Org(t)
	c := f.env.ActiveContract(t, f.env.Room(t, org))
	manager := f.token(t, f.env.As(t, org, models.RoleManager))

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	body := map[string]any{
		"contract_id":  c.ID,
		"period_start": start,
		"period_end":   start.AddDate(0, 1, -1),
		"due_date":     start.AddDate(0, 1, 4),
		"items": []map[string]any{
			{"type": "RENT", "description": "Rent", "quantity": "1", "unit_price": "3000", "amount": "3000"},
			{"type": "SERVICE", "description": "Water", "quantity": "5", "unit_price": "20", "amount": "100"},
		},
	}
	rec := f.do(t, http.MethodPost, "/api/v1/invoices", manager, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decodeBody(t, rec)
	assert.Equal(t, "DRAFT", inv["status"])
	assert.Equal(t, "3100", inv["total_amount"])
	id := inv["id"].(string)

	rec = f.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/issue", manager, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodDelete, "/api/v1/invoices/"+id, manager, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "business_rule", decodeBody(t, rec)["kind"])

	rec = f.do(t, http.MethodGet, "/api/v1/invoices/"+id, manager, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ISSUED", decodeBody(t, rec)["status"])

	body["status"] = "DRAFT"
	rec = f.do(t, http.MethodPost, "/api/v1/invoices", manager, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	draftID := decodeBody(t, rec)["id"].(string)
	rec = f.do(t, http.MethodDelete, "/api/v1/invoices/"+draftID, manager, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/v1/invoices/"+draftID, manager, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidBodyIsBadRequest(t *testing.T) {
	f := newFixture(t)
	org := f.env.Org(t)
	manager := f.token(t, f.env.As(t, org, models.RoleManager))

	rec := f.do(t, http.MethodPost, "/api/v1/invoices", manager, map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeBody(t, rec)["kind"])

	rec = f.do(t, http.MethodGet, "/api/v1/invoices/not-a-uuid", manager, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTicketCostGatedByStatus(t *testing.T) {
	f := newFixture(t)
	org := f.env.Org(t)
	room := f.env.Room(t, org)
	c := f.env.ActiveContract(t, room)
	manager := f.token(t, f.env.As(t, org, models.RoleManager))

	rec := f.do(t, http.MethodPost, "/api/v1/tickets", manager, map[string]any{"room_id": room.ID, "title": "Leaking tap"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tk := decodeBody(t, rec)
	assert.Equal(t, c.ID.String(), tk["contract_id"])
	require.Len(t, tk["events"], 1)
	id := tk["id"].(string)

	cost := map[string]any{"amount": "45.50", "payer": "TENANT", "description": "washer"}
	rec = f.do(t, http.MethodPost, "/api/v1/tickets/"+id+"/costs", manager, cost)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/tickets/"+id+"/status", manager, map[string]any{"status": "IN_PROGRESS"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/tickets/"+id+"/costs", manager, cost)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decodeBody(t, rec)
	assert.Equal(t, "TENANT", got["payer"])
	assert.Equal(t, "45.5", got["amount"])
}

func TestPermissionSyncIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	org := f.env.Org(t)

	rec := f.do(t, http.MethodPost, "/api/v1/admin/permissions/sync", f.token(t, f.env.As(t, org, models.RoleOwner)), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/permissions/sync", f.token(t, f.env.As(t, uuid.Nil, models.RoleAdmin)), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decodeBody(t, rec)["summary"].(map[string]any)
	assert.EqualValues(t, 0, sum["permissions_created"], "declarations were already synced")
	assert.EqualValues(t, 0, sum["grants_created"])
	assert.NotZero(t, sum["modules"])
}

func TestMeListsGrantedPermissions(t *testing.T) {
	f := newFixture(t)
	org := f.env.Org(t)
	rec := f.do(t, http.MethodGet, "/api/v1/me", f.token(t, f.env.As(t, org, models.RoleManager)), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	perms := body["permissions"].(map[string]any)
	assert.Contains(t, perms["manager"], "issue invoice")
	assert.NotEmpty(t, body["token_expires_at"])
}
