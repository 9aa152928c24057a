package tenant

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const scopeKey contextKey = "tenant_scope"

// Scope is the organization boundary of one request. A zero OrgID means
// unscoped: queries see every organization. Only global administrators and
// trusted system jobs run unscoped.
type Scope struct {
	OrgID uuid.UUID
}

func (s Scope) Scoped() bool { return s.OrgID != uuid.Nil }

// WithOrg returns a context scoped to orgID.
func WithOrg(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, scopeKey, Scope{OrgID: orgID})
}

// System returns an explicitly unscoped context for background jobs and
// administrative tooling.
func System(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey, Scope{})
}

func FromContext(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey).(Scope)
	return s
}

// OrgID returns the scoped organization, or uuid.Nil when unscoped.
func OrgID(ctx context.Context) uuid.UUID {
	return FromContext(ctx).OrgID
}
