package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
)

var orgA = uuid.MustParse("0b7a3e56-8f0b-4e57-9a66-1d4c4b1e7a01")

func TestSelectScopedAppendsOrgFilter(t *testing.T) {
	ctx := WithOrg(context.Background(), orgA)
	id := uuid.New()

	sql, args := Select(ctx, Invoices, "id, status").Where("id = ?", id).Build()

	assert.Equal(t, "SELECT id, status FROM invoices WHERE id = $1 AND org_id = $2", sql)
	assert.Equal(t, []any{id, orgA}, args)
}

func TestSelectUnscopedHasNoOrgFilter(t *testing.T) {
	sql, args := Select(System(context.Background()), Invoices, "id").Where("status = ?", "ISSUED").Build()

	assert.Equal(t, "SELECT id FROM invoices WHERE status = $1", sql)
	assert.Equal(t, []any{"ISSUED"}, args)
}

func TestSelectMissingScopeIsUnscoped(t *testing.T) {
	sql, _ := Select(context.Background(), Tickets, "id").Build()
	assert.Equal(t, "SELECT id FROM tickets", sql)
}

func TestSelectGlobalTableIgnoresScope(t *testing.T) {
	ctx := WithOrg(context.Background(), orgA)
	sql, args := Select(ctx, Roles, "id, name").Where("name = ?", "manager").Build()

	assert.Equal(t, "SELECT id, name FROM roles WHERE name = $1", sql)
	assert.Len(t, args, 1)
}

func TestSelectOrganizationsScopesOnID(t *testing.T) {
	ctx := WithOrg(context.Background(), orgA)
	sql, _ := Select(ctx, Organizations, "id").Build()
	assert.Equal(t, "SELECT id FROM organizations WHERE id = $1 AND deleted_at IS NULL", sql)
}

func TestSelectTrashedVariants(t *testing.T) {
	ctx := WithOrg(context.Background(), orgA)

	active, _ := Select(ctx, Rooms, "id").Build()
	assert.Contains(t, active, "deleted_at IS NULL")

	trashed, _ := Select(ctx, Rooms, "id").Trashed(TrashedOnly).Build()
	assert.Contains(t, trashed, "deleted_at IS NOT NULL")

	all, _ := Select(ctx, Rooms, "id").Trashed(WithTrashed).Build()
	assert.NotContains(t, all, "deleted_at")
}

func TestSelectPagingAndLock(t *testing.T) {
	ctx := WithOrg(context.Background(), orgA)
	sql, args := Select(ctx, Handovers, "id").
		Where("contract_id = ?", uuid.Nil).
		OrderBy("created_at DESC").
		Limit(20).
		Offset(40).
		ForUpdate().
		Build()

	assert.Equal(t, "SELECT id FROM handovers WHERE contract_id = $1 AND org_id = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4 FOR UPDATE", sql)
	assert.Equal(t, []any{uuid.Nil, orgA, 20, 40}, args)
}

func TestBuildIsRepeatable(t *testing.T) {
	ctx := WithOrg(context.Background(), orgA)
	q := Select(ctx, Tickets, "id").Where("status = ?", "OPEN")

	first, firstArgs := q.Build()
	second, secondArgs := q.Build()

	assert.Equal(t, first, second)
	assert.Equal(t, firstArgs, secondArgs)
}

func TestUpdateScoped(t *testing.T) {
	ctx := WithOrg(context.Background(), orgA)
	id := uuid.New()

	sql, args := Update(ctx, AdjustmentNotes).
		Set("status", "APPROVED").
		SetExpr("updated_at = now()").
		Where("id = ?", id).
		Where("status = ?", "PENDING").
		Returning("id").
		Build()

	assert.Equal(t, "UPDATE adjustment_notes SET status = $1, updated_at = now() WHERE id = $2 AND status = $3 AND org_id = $4 RETURNING id", sql)
	assert.Equal(t, []any{"APPROVED", id, "PENDING", orgA}, args)
}

func TestUpdateSoftDeleteRestoreTargetsTrashed(t *testing.T) {
	ctx := WithOrg(context.Background(), orgA)
	sql, _ := Update(ctx, Properties).SetExpr("deleted_at = NULL").Where("id = ?", uuid.New()).Trashed(TrashedOnly).Build()
	assert.Equal(t, "UPDATE properties SET deleted_at = NULL WHERE id = $1 AND org_id = $2 AND deleted_at IS NOT NULL", sql)
}

func TestDeleteScoped(t *testing.T) {
	ctx := WithOrg(context.Background(), orgA)
	id := uuid.New()

	sql, args := Delete(ctx, Rooms).Where("id = ?", id).Build()

	assert.Equal(t, "DELETE FROM rooms WHERE id = $1 AND org_id = $2", sql)
	assert.Equal(t, []any{id, orgA}, args)
}

func TestStampOrg(t *testing.T) {
	scoped := WithOrg(context.Background(), orgA)

	got, err := StampOrg(scoped, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, orgA, got)

	_, err = StampOrg(scoped, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = StampOrg(System(context.Background()), uuid.Nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	other := uuid.New()
	got, err = StampOrg(System(context.Background()), other)
	require.NoError(t, err)
	assert.Equal(t, other, got)
}

func TestAllows(t *testing.T) {
	scoped := WithOrg(context.Background(), orgA)
	assert.True(t, Allows(scoped, orgA))
	assert.False(t, Allows(scoped, uuid.New()))
	assert.True(t, Allows(System(context.Background()), uuid.New()))
}

func TestScopeDoesNotLeakBetweenContexts(t *testing.T) {
	base := context.Background()
	a := WithOrg(base, orgA)
	b := WithOrg(base, uuid.New())

	assert.NotEqual(t, OrgID(a), OrgID(b))
	assert.Equal(t, uuid.Nil, OrgID(base))
}

func TestParseTrashed(t *testing.T) {
	assert.Equal(t, TrashedOnly, ParseTrashed("only"))
	assert.Equal(t, WithTrashed, ParseTrashed("with"))
	assert.Equal(t, ActiveOnly, ParseTrashed(""))
}
