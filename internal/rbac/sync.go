package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

// Summary reports what one sync run touched.
type Summary struct {
	Modules             int      `json:"modules"`
	PermissionsVerified int      `json:"permissions_verified"`
	PermissionsCreated  int      `json:"permissions_created"`
	RolesSynced         int      `json:"roles_synced"`
	GrantsCreated       int      `json:"grants_created"`
	Skipped             []string `json:"skipped,omitempty"`
}

// Syncer materializes declarations into permission, role and grant rows.
// Sync is additive: grants added out of band are left alone.
type Syncer struct {
	store store.Store
	decls []Declaration
	cache *GrantCache
}

func NewSyncer(st store.Store, decls []Declaration, cache *GrantCache) *Syncer {
	return &Syncer{store: st, decls: decls, cache: cache}
}

// Sync runs every declaration. Malformed (module, role) pairs are skipped
// with nothing granted and reported as configuration errors joined into the
// returned error; every valid pair is still committed.
func (s *Syncer) Sync(ctx context.Context) (Summary, error) {
	ctx = tenant.System(ctx)
	var (
		sum     Summary
		badDecl []error
		roles   = map[models.RoleName]struct{}{}
	)
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		perms := s.store.Permissions()
		verified := map[string]struct{}{}
		for _, d := range s.decls {
			sum.Modules++
			for role, tokens := range d.Roles {
				pair := string(d.Module) + "/" + string(role)
				if !role.Valid() {
					sum.Skipped = append(sum.Skipped, pair)
					badDecl = append(badDecl, apperr.Configuration("module %s: unknown role %q", d.Module, role))
					continue
				}
				actions, err := Expand(d.Module, tokens)
				if err != nil {
					sum.Skipped = append(sum.Skipped, pair)
					badDecl = append(badDecl, apperr.Configuration("%s (role %s)", err.Error(), role))
					continue
				}

				r, _, err := perms.FindOrCreateRole(ctx, role)
				if err != nil {
					return fmt.Errorf("sync role %s: %w", role, err)
				}
				for _, a := range actions {
					p, created, err := perms.FindOrCreatePermission(ctx, string(d.Module), string(a))
					if err != nil {
						return fmt.Errorf("sync permission %s %s: %w", a, d.Module, err)
					}
					if _, seen := verified[p.Name()]; !seen {
						verified[p.Name()] = struct{}{}
						sum.PermissionsVerified++
					}
					if created {
						sum.PermissionsCreated++
					}
					granted, err := perms.Grant(ctx, r.ID, p.ID)
					if err != nil {
						return fmt.Errorf("grant %s to %s: %w", p.Name(), role, err)
					}
					if granted {
						sum.GrantsCreated++
					}
				}
				roles[role] = struct{}{}
			}
		}
		// Every catalog role gets a row so it can be assigned even when no
		// declaration grants it anything.
		for _, role := range models.RoleNames {
			if _, ok := roles[role]; ok {
				continue
			}
			if _, _, err := perms.FindOrCreateRole(ctx, role); err != nil {
				return fmt.Errorf("sync role %s: %w", role, err)
			}
			roles[role] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	sum.RolesSynced = len(roles)
	slices.Sort(sum.Skipped)

	if s.cache != nil {
		names := make([]models.RoleName, 0, len(roles))
		for r := range roles {
			names = append(names, r)
		}
		if err := s.cache.Invalidate(ctx, names...); err != nil {
			slog.Warn("invalidate grant cache", "error", err)
		}
	}

	slog.Info("permissions synced",
		"modules", sum.Modules,
		"verified", sum.PermissionsVerified,
		"created", sum.PermissionsCreated,
		"roles", sum.RolesSynced,
		"grants", sum.GrantsCreated,
		"skipped", len(sum.Skipped),
	)
	return sum, errors.Join(badDecl...)
}
