package tenant

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
)

// Every builder below appends the organization predicate for owned tables
// when the context is scoped. Callers write conditions with ? placeholders;
// Build renumbers them to $n.

type conditions struct {
	where []string
	args  []any
}

func (c *conditions) add(cond string, args ...any) {
	c.where = append(c.where, cond)
	c.args = append(c.args, args...)
}

func (c *conditions) scope(ctx context.Context, t Table, trashed Trashed) {
	if s := FromContext(ctx); t.Owned() && s.Scoped() {
		c.add(t.OrgColumn+" = ?", s.OrgID)
	}
	if t.SoftDelete {
		switch trashed {
		case ActiveOnly:
			c.add("deleted_at IS NULL")
		case TrashedOnly:
			c.add("deleted_at IS NOT NULL")
		}
	}
}

func (c *conditions) clause() string {
	if len(c.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.where, " AND ")
}

// SelectQuery builds a scoped SELECT.
type SelectQuery struct {
	ctx       context.Context
	table     Table
	columns   string
	conds     conditions
	trashed   Trashed
	orderBy   string
	limit     int
	offset    int
	forUpdate bool
}

func Select(ctx context.Context, t Table, columns string) *SelectQuery {
	return &SelectQuery{ctx: ctx, table: t, columns: columns}
}

func (q *SelectQuery) Where(cond string, args ...any) *SelectQuery {
	q.conds.add(cond, args...)
	return q
}

func (q *SelectQuery) Trashed(t Trashed) *SelectQuery {
	q.trashed = t
	return q
}

func (q *SelectQuery) OrderBy(expr string) *SelectQuery {
	q.orderBy = expr
	return q
}

func (q *SelectQuery) Limit(n int) *SelectQuery {
	q.limit = n
	return q
}

func (q *SelectQuery) Offset(n int) *SelectQuery {
	q.offset = n
	return q
}

// ForUpdate locks the selected rows until the surrounding transaction ends.
func (q *SelectQuery) ForUpdate() *SelectQuery {
	q.forUpdate = true
	return q
}

func (q *SelectQuery) Build() (string, []any) {
	conds := conditions{
		where: append([]string(nil), q.conds.where...),
		args:  append([]any(nil), q.conds.args...),
	}
	conds.scope(q.ctx, q.table, q.trashed)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(q.columns)
	b.WriteString(" FROM ")
	b.WriteString(q.table.Name)
	b.WriteString(conds.clause())
	if q.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.orderBy)
	}
	if q.limit > 0 {
		b.WriteString(" LIMIT ?")
		conds.args = append(conds.args, q.limit)
	}
	if q.offset > 0 {
		b.WriteString(" OFFSET ?")
		conds.args = append(conds.args, q.offset)
	}
	if q.forUpdate {
		b.WriteString(" FOR UPDATE")
	}
	return numbered(b.String()), conds.args
}

// UpdateQuery builds a scoped UPDATE.
type UpdateQuery struct {
	ctx       context.Context
	table     Table
	sets      []string
	setArgs   []any
	conds     conditions
	trashed   Trashed
	returning string
}

func Update(ctx context.Context, t Table) *UpdateQuery {
	return &UpdateQuery{ctx: ctx, table: t}
}

func (q *UpdateQuery) Set(column string, value any) *UpdateQuery {
	q.sets = append(q.sets, column+" = ?")
	q.setArgs = append(q.setArgs, value)
	return q
}

// SetExpr assigns a raw SQL expression, e.g. "updated_at = now()".
func (q *UpdateQuery) SetExpr(expr string, args ...any) *UpdateQuery {
	q.sets = append(q.sets, expr)
	q.setArgs = append(q.setArgs, args...)
	return q
}

func (q *UpdateQuery) Where(cond string, args ...any) *UpdateQuery {
	q.conds.add(cond, args...)
	return q
}

func (q *UpdateQuery) Trashed(t Trashed) *UpdateQuery {
	q.trashed = t
	return q
}

func (q *UpdateQuery) Returning(columns string) *UpdateQuery {
	q.returning = columns
	return q
}

func (q *UpdateQuery) Build() (string, []any) {
	conds := conditions{
		where: append([]string(nil), q.conds.where...),
		args:  append([]any(nil), q.conds.args...),
	}
	conds.scope(q.ctx, q.table, q.trashed)

	args := append(append([]any(nil), q.setArgs...), conds.args...)
	sql := "UPDATE " + q.table.Name + " SET " + strings.Join(q.sets, ", ") + conds.clause()
	if q.returning != "" {
		sql += " RETURNING " + q.returning
	}
	return numbered(sql), args
}

// DeleteQuery builds a scoped DELETE. Soft-deletable tables use it only for
// force deletes, so no trashed filter applies.
type DeleteQuery struct {
	ctx   context.Context
	table Table
	conds conditions
}

func Delete(ctx context.Context, t Table) *DeleteQuery {
	return &DeleteQuery{ctx: ctx, table: t}
}

func (q *DeleteQuery) Where(cond string, args ...any) *DeleteQuery {
	q.conds.add(cond, args...)
	return q
}

func (q *DeleteQuery) Build() (string, []any) {
	conds := conditions{
		where: append([]string(nil), q.conds.where...),
		args:  append([]any(nil), q.conds.args...),
	}
	conds.scope(q.ctx, q.table, WithTrashed)
	return numbered("DELETE FROM " + q.table.Name + conds.clause()), conds.args
}

// StampOrg resolves the org_id of a new row. Scoped contexts stamp their own
// organization and refuse rows addressed to another one; unscoped contexts
// must name the organization explicitly.
func StampOrg(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error) {
	s := FromContext(ctx)
	if !s.Scoped() {
		if orgID == uuid.Nil {
			return uuid.Nil, apperr.Validation("org_id is required outside an organization scope")
		}
		return orgID, nil
	}
	if orgID == uuid.Nil || orgID == s.OrgID {
		return s.OrgID, nil
	}
	return uuid.Nil, apperr.Forbidden()
}

// Allows reports whether a row owned by orgID is visible in ctx.
func Allows(ctx context.Context, orgID uuid.UUID) bool {
	s := FromContext(ctx)
	return !s.Scoped() || s.OrgID == orgID
}

func numbered(sql string) string {
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	for _, r := range sql {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
