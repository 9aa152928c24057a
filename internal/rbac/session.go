package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/cache"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
)

// PermissionSet is the precomputed set of (module, action) pairs one role
// holds.
type PermissionSet map[Module]map[Action]struct{}

func (p PermissionSet) Has(m Module, a Action) bool {
	_, ok := p[m][a]
	return ok
}

func (p PermissionSet) add(m Module, a Action) {
	if p[m] == nil {
		p[m] = map[Action]struct{}{}
	}
	p[m][a] = struct{}{}
}

// NewPermissionSet builds a set from stored permission rows. Rows naming a
// module or action outside the catalog are ignored.
func NewPermissionSet(perms []models.Permission) PermissionSet {
	set := PermissionSet{}
	for _, p := range perms {
		m, a := Module(p.Module), Action(p.Action)
		if m.Supports(a) {
			set.add(m, a)
		}
	}
	return set
}

// Session is the authenticated actor of one request with its grants resolved
// per role.
type Session struct {
	User   models.User
	Grants map[models.RoleName]PermissionSet
}

// Global reports whether the actor bypasses every check.
func (s *Session) Global() bool {
	for _, r := range s.User.Roles {
		if r.IsGlobal() {
			return true
		}
	}
	return false
}

func (s *Session) UserID() uuid.UUID { return s.User.ID }

// OrgID returns the actor's organization or uuid.Nil for platform users.
func (s *Session) OrgID() uuid.UUID { return s.User.OwnerOrgID() }

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the request session or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// Backend is the key-value store behind GrantCache; *cache.Cache satisfies
// it. Get must return cache.ErrMiss for absent keys.
type Backend interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// GrantCache keeps each role's permission rows in redis. Entries are
// role-wide, never per tenant.
type GrantCache struct {
	cache Backend
	ttl   time.Duration
}

func NewGrantCache(c Backend, ttl time.Duration) *GrantCache {
	return &GrantCache{cache: c, ttl: ttl}
}

func grantKey(r models.RoleName) string { return "rbac:grants:" + string(r) }

func (g *GrantCache) get(ctx context.Context, r models.RoleName) ([]models.Permission, bool) {
	var perms []models.Permission
	if err := g.cache.Get(ctx, grantKey(r), &perms); err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("read grant cache", "role", r, "error", err)
		}
		return nil, false
	}
	return perms, true
}

func (g *GrantCache) put(ctx context.Context, r models.RoleName, perms []models.Permission) {
	if perms == nil {
		perms = []models.Permission{}
	}
	if err := g.cache.Set(ctx, grantKey(r), perms, g.ttl); err != nil {
		slog.Warn("write grant cache", "role", r, "error", err)
	}
}

// Invalidate drops cached grants for roles.
func (g *GrantCache) Invalidate(ctx context.Context, roles ...models.RoleName) error {
	keys := make([]string, len(roles))
	for i, r := range roles {
		keys[i] = grantKey(r)
	}
	return g.cache.Delete(ctx, keys...)
}

// Loader builds sessions from users, reading grants through the cache when
// one is configured.
type Loader struct {
	perms store.PermissionRepository
	cache *GrantCache
}

func NewLoader(perms store.PermissionRepository, cache *GrantCache) *Loader {
	return &Loader{perms: perms, cache: cache}
}

func (l *Loader) Load(ctx context.Context, u models.User) (*Session, error) {
	s := &Session{User: u, Grants: make(map[models.RoleName]PermissionSet, len(u.Roles))}

	var missing []models.RoleName
	for _, r := range u.Roles {
		if l.cache != nil {
			if perms, ok := l.cache.get(ctx, r); ok {
				s.Grants[r] = NewPermissionSet(perms)
				continue
			}
		}
		missing = append(missing, r)
	}
	if len(missing) == 0 {
		return s, nil
	}

	grants, err := l.perms.Grants(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("load grants: %w", err)
	}
	for _, r := range missing {
		s.Grants[r] = NewPermissionSet(grants[r])
		if l.cache != nil {
			l.cache.put(ctx, r, grants[r])
		}
	}
	return s, nil
}
