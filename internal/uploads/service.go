// Package uploads registers temporary files until an entity claims them and
// removes the ones nobody claimed.
package uploads

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
	"github.com/nikhilbhutani/rentalcore/internal/storage"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type Service struct {
	store store.Store
	files storage.Storage
	eval  *rbac.Evaluator
	ttl   time.Duration
	now   func() time.Time
}

func NewService(st store.Store, files storage.Storage, eval *rbac.Evaluator, ttl time.Duration) *Service {
	return &Service{store: st, files: files, eval: eval, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Register stores data as a temporary upload of the scoped organization.
func (s *Service) Register(ctx context.Context, originalName string, data io.Reader) (*models.Upload, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleUpload, nil); err != nil {
		return nil, err
	}
	org := tenant.OrgID(ctx)
	if org == uuid.Nil {
		return nil, apperr.Validation("uploads require an organization")
	}
	name := filepath.Base(strings.TrimSpace(originalName))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return nil, apperr.Validation("file name is required")
	}

	id := uuid.New()
	path := filepath.ToSlash(filepath.Join(org.String(), id.String()+strings.ToLower(filepath.Ext(name))))
	size, err := s.files.Upload(ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	u := &models.Upload{ID: id, Path: path, OriginalName: name, Size: size}
	if err := s.store.Uploads().Create(ctx, u); err != nil {
		if derr := s.files.Delete(ctx, path); derr != nil {
			slog.Warn("remove orphaned upload", "path", path, "error", derr)
		}
		return nil, fmt.Errorf("register upload: %w", err)
	}
	return u, nil
}

// Attach marks an upload as claimed so cleanup keeps it.
func (s *Service) Attach(ctx context.Context, id uuid.UUID) (*models.Upload, error) {
	if err := s.store.Uploads().Attach(ctx, id, s.now()); err != nil {
		return nil, apperr.MapNotFound(err, "upload")
	}
	u, err := s.store.Uploads().Get(ctx, id)
	if err != nil {
		return nil, apperr.MapNotFound(err, "upload")
	}
	return u, nil
}

// Cleanup removes unattached uploads older than olderThan across every
// organization. A zero olderThan uses the configured TTL.
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = s.ttl
	}
	ctx = tenant.System(ctx)
	stale, err := s.store.Uploads().Stale(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("list stale uploads: %w", err)
	}
	removed := 0
	for _, u := range stale {
		if err := s.files.Delete(ctx, u.Path); err != nil {
			slog.Warn("delete upload file", "upload_id", u.ID, "error", err)
			continue
		}
		if err := s.store.Uploads().Delete(ctx, u.ID); err != nil {
			return removed, fmt.Errorf("delete upload %s: %w", u.ID, err)
		}
		removed++
	}
	slog.Info("stale uploads removed", "count", removed, "older_than", olderThan)
	return removed, nil
}
