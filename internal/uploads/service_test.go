package uploads

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac/rbactest"
	"github.com/nikhilbhutani/rentalcore/internal/storage"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

func TestRegisterAttachAndCleanup(t *testing.T) {
	env := rbactest.New(t)
	files := storage.NewLocalStorage(t.TempDir())
	svc := NewService(env.Store, files, env.Eval, time.Hour)

	org := env.Org(t)
	ctx := env.As(t, org, models.RoleManager)

	kept, err := svc.Register(ctx, "lease.PDF", strings.NewReader("signed"))
	require.NoError(t, err)
	assert.Equal(t, org, kept.OrgID)
	assert.Equal(t, int64(6), kept.Size)
	assert.True(t, strings.HasSuffix(kept.Path, ".pdf"))

	stale, err := svc.Register(ctx, "photo.jpg", strings.NewReader("jpeg"))
	require.NoError(t, err)

	attached, err := svc.Attach(ctx, kept.ID)
	require.NoError(t, err)
	assert.NotNil(t, attached.AttachedAt)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	removed, err := svc.Cleanup(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = env.Store.Uploads().Get(tenant.System(context.Background()), stale.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = files.Download(context.Background(), stale.Path)
	assert.Error(t, err)

	rc, err := files.Download(context.Background(), kept.Path)
	require.NoError(t, err)
	rc.Close()
}

func TestRegisterRequiresPermission(t *testing.T) {
	env := rbactest.New(t)
	svc := NewService(env.Store, storage.NewLocalStorage(t.TempDir()), env.Eval, time.Hour)

	_, err := svc.Register(context.Background(), "a.txt", strings.NewReader("x"))
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestAttachOtherOrganizationIsNotFound(t *testing.T) {
	env := rbactest.New(t)
	svc := NewService(env.Store, storage.NewLocalStorage(t.TempDir()), env.Eval, time.Hour)

	up, err := svc.Register(env.As(t, env.Org(t), models.RoleStaff), "a.txt", strings.NewReader("x"))
	require.NoError(t, err)

	_, err = svc.Attach(env.As(t, env.Org(t), models.RoleManager), up.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
