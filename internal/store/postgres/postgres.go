// Package postgres implements store.Store on pgx. Reads, updates and deletes
// of tenant-owned tables are built with the tenant query builders so the
// organization filter is never written by hand.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/database"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.InTx(ctx, s.pool, fn)
}

func (s *Store) conn(ctx context.Context) database.Querier {
	return database.Conn(ctx, s.pool)
}

func (s *Store) Organizations() store.OrganizationRepository { return orgRepo{s} }
func (s *Store) Users() store.UserRepository                 { return userRepo{s} }
func (s *Store) Permissions() store.PermissionRepository     { return permissionRepo{s} }
func (s *Store) Properties() store.PropertyRepository        { return propertyRepo{s} }
func (s *Store) Contracts() store.ContractRepository         { return contractRepo{s} }
func (s *Store) Meters() store.MeterRepository               { return meterRepo{s} }
func (s *Store) Pricing() store.PricingRepository            { return pricingRepo{s} }
func (s *Store) Invoices() store.InvoiceRepository           { return invoiceRepo{s} }
func (s *Store) Tickets() store.TicketRepository             { return ticketRepo{s} }
func (s *Store) Handovers() store.HandoverRepository         { return handoverRepo{s} }
func (s *Store) Audit() store.AuditRepository                { return auditRepo{s} }
func (s *Store) Uploads() store.UploadRepository             { return uploadRepo{s} }

// notFoundWrap maps pgx.ErrNoRows to apperr.ErrNotFound and wraps everything
// else with the given message.
func notFoundWrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, apperr.ErrNotFound)
	}
	return wrap(err, "%s", msg)
}

// wrap maps unique violations to apperr.ErrConflict.
func wrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %s: %w", msg, pgErr.ConstraintName, apperr.ErrConflict)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// execExpectOne verifies that an Exec affected at least one row.
func execExpectOne(tag pgconn.CommandTag, err error, format string, args ...any) error {
	if err != nil {
		return wrap(err, format, args...)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", apperr.ErrNotFound)
	}
	return nil
}

// one runs a built SELECT and scans exactly one row into T by column name.
func one[T any](ctx context.Context, q database.Querier, sql string, args []any, what string) (*T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrap(err, "query %s", what)
	}
	v, err := pgxOne[T](rows)
	if err != nil {
		return nil, notFoundWrap(err, "get %s", what)
	}
	return &v, nil
}

func pgxOne[T any](rows pgx.Rows) (T, error) {
	return pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[T])
}

func many[T any](ctx context.Context, q database.Querier, sql string, args []any, what string) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrap(err, "query %s", what)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", what, err)
	}
	return out, nil
}

func exists(ctx context.Context, q database.Querier, sel *tenant.SelectQuery, what string) (bool, error) {
	sql, args := sel.Limit(1).Build()
	var ok bool
	if err := q.QueryRow(ctx, "SELECT EXISTS ("+sql+")", args...).Scan(&ok); err != nil {
		return false, wrap(err, "check %s", what)
	}
	return ok, nil
}

func page(sel *tenant.SelectQuery, p store.Page) *tenant.SelectQuery {
	p = p.Normalize()
	return sel.Limit(p.Limit).Offset(p.Offset)
}

// anyOf adds "column = ANY(?)" for a non-nil id set. An empty set matches
// nothing.
func anyOf(sel *tenant.SelectQuery, column string, ids []uuid.UUID) {
	if ids == nil {
		return
	}
	if len(ids) == 0 {
		sel.Where("false")
		return
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	sel.Where(column+" = ANY(?::uuid[])", strs)
}

// stamp resolves the owning organization, assigns an id and fills creation
// timestamps on a new row.
func stamp(ctx context.Context, id *uuid.UUID, orgID *uuid.UUID, created ...*time.Time) error {
	if orgID != nil {
		org, err := tenant.StampOrg(ctx, *orgID)
		if err != nil {
			return err
		}
		*orgID = org
	}
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	now := time.Now().UTC()
	for _, c := range created {
		if c.IsZero() {
			*c = now
		}
	}
	return nil
}

func meta(m models.Meta) models.Meta {
	if m == nil {
		return models.Meta{}
	}
	return m
}

// conflictIfExists turns the not-found error of a conditional update into
// ErrConflict when the row itself is still visible, meaning only the
// condition failed.
func conflictIfExists(ctx context.Context, q database.Querier, err error, t tenant.Table, id uuid.UUID) error {
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	ok, xerr := exists(ctx, q, tenant.Select(ctx, t, "id").Where("id = ?", id), t.Name)
	if xerr != nil {
		return xerr
	}
	if ok {
		return fmt.Errorf("update %s %s: %w", t.Name, id, apperr.ErrConflict)
	}
	return err
}
