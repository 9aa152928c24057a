// Package memory is an in-process implementation of store.Store. It applies
// the same tenant scoping rules as the postgres store and serialises
// transactions behind one mutex, restoring a snapshot when a transaction
// fails.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type entity interface {
	OwnerOrgID() uuid.UUID
}

type entry[T entity] struct {
	seq int64
	v   T
}

// table holds the rows of one relation. def carries the scoping rules shared
// with the SQL builder.
type table[T entity] struct {
	def     tenant.Table
	rows    map[uuid.UUID]entry[T]
	id      func(T) uuid.UUID
	deleted func(T) *time.Time
	clone   func(T) T
}

func newTable[T entity](def tenant.Table, id func(T) uuid.UUID) *table[T] {
	return &table[T]{def: def, rows: map[uuid.UUID]entry[T]{}, id: id}
}

func (t *table[T]) softDelete(fn func(T) *time.Time) *table[T] {
	t.deleted = fn
	return t
}

func (t *table[T]) cloning(fn func(T) T) *table[T] {
	t.clone = fn
	return t
}

func (t *table[T]) copyValue(v T) T {
	if t.clone != nil {
		return t.clone(v)
	}
	return v
}

func (t *table[T]) snapshot() *table[T] {
	out := *t
	out.rows = make(map[uuid.UUID]entry[T], len(t.rows))
	for k, e := range t.rows {
		out.rows[k] = entry[T]{seq: e.seq, v: t.copyValue(e.v)}
	}
	return &out
}

func (t *table[T]) visible(ctx context.Context, v T, trashed tenant.Trashed) bool {
	if t.def.Owned() && !tenant.Allows(ctx, v.OwnerOrgID()) {
		return false
	}
	if t.def.SoftDelete && t.deleted != nil {
		gone := t.deleted(v) != nil
		switch trashed {
		case tenant.ActiveOnly:
			return !gone
		case tenant.TrashedOnly:
			return gone
		}
	}
	return true
}

func (t *table[T]) get(ctx context.Context, id uuid.UUID, trashed tenant.Trashed) (T, error) {
	e, ok := t.rows[id]
	if !ok || !t.visible(ctx, e.v, trashed) {
		var zero T
		return zero, fmt.Errorf("get %s %s: %w", t.def.Name, id, apperr.ErrNotFound)
	}
	return t.copyValue(e.v), nil
}

// list returns visible rows matching fn, newest first.
func (t *table[T]) list(ctx context.Context, trashed tenant.Trashed, fn func(T) bool) []T {
	entries := make([]entry[T], 0, len(t.rows))
	for _, e := range t.rows {
		if t.visible(ctx, e.v, trashed) && (fn == nil || fn(e.v)) {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b entry[T]) int { return int(b.seq - a.seq) })
	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = t.copyValue(e.v)
	}
	return out
}

func (t *table[T]) first(ctx context.Context, fn func(T) bool) (T, bool) {
	rows := t.list(ctx, tenant.ActiveOnly, fn)
	if len(rows) == 0 {
		var zero T
		return zero, false
	}
	return rows[0], true
}

func (t *table[T]) insert(v T, seq int64) {
	t.rows[t.id(v)] = entry[T]{seq: seq, v: t.copyValue(v)}
}

// replace overwrites a visible row, keeping its insertion order.
func (t *table[T]) replace(ctx context.Context, v T, trashed tenant.Trashed) error {
	id := t.id(v)
	e, ok := t.rows[id]
	if !ok || !t.visible(ctx, e.v, trashed) {
		return fmt.Errorf("update %s %s: %w", t.def.Name, id, apperr.ErrNotFound)
	}
	t.rows[id] = entry[T]{seq: e.seq, v: t.copyValue(v)}
	return nil
}

func (t *table[T]) remove(ctx context.Context, id uuid.UUID) error {
	e, ok := t.rows[id]
	if !ok || !t.visible(ctx, e.v, tenant.WithTrashed) {
		return fmt.Errorf("delete %s %s: %w", t.def.Name, id, apperr.ErrNotFound)
	}
	delete(t.rows, id)
	return nil
}

// removeWhere deletes every row matching fn regardless of scope. Used for
// cascades after the parent delete has been authorised.
func (t *table[T]) removeWhere(fn func(T) bool) {
	for id, e := range t.rows {
		if fn(e.v) {
			delete(t.rows, id)
		}
	}
}

func paginate[T any](rows []T, p store.Page) []T {
	p = p.Normalize()
	if p.Offset >= len(rows) {
		return []T{}
	}
	end := min(p.Offset+p.Limit, len(rows))
	return rows[p.Offset:end]
}

type grantKey struct {
	roleID       uuid.UUID
	permissionID uuid.UUID
}

type state struct {
	seq int64

	orgs        *table[models.Organization]
	users       *table[models.User]
	roles       *table[models.Role]
	permissions *table[models.Permission]
	grants      map[grantKey]struct{}
	userRoles   map[uuid.UUID][]uuid.UUID

	properties *table[models.Property]
	floors     *table[models.Floor]
	rooms      *table[models.Room]

	contracts *table[models.Contract]
	members   *table[models.ContractMember]

	meters      *table[models.Meter]
	readings    *table[models.MeterReading]
	adjustments *table[models.AdjustmentNote]

	services *table[models.Service]
	rates    *table[models.ServiceRate]
	tiers    *table[models.TieredRate]

	invoices *table[models.Invoice]
	items    *table[models.InvoiceItem]

	tickets *table[models.Ticket]
	events  *table[models.TicketEvent]
	costs   *table[models.TicketCost]

	handovers *table[models.Handover]
	hoItems   *table[models.HandoverItem]
	snapshots *table[models.HandoverMeterSnapshot]

	audit   *table[models.AuditLog]
	uploads *table[models.Upload]
}

func cloneMeta(m models.Meta) models.Meta {
	if m == nil {
		return models.Meta{}
	}
	return m.Merge(nil)
}

func newState() *state {
	return &state{
		orgs: newTable(tenant.Organizations, func(o models.Organization) uuid.UUID { return o.ID }).
			softDelete(func(o models.Organization) *time.Time { return o.DeletedAt }),
		users: newTable(tenant.Users, func(u models.User) uuid.UUID { return u.ID }).
			cloning(func(u models.User) models.User { u.Roles = nil; return u }),
		roles:       newTable(tenant.Roles, func(r models.Role) uuid.UUID { return r.ID }),
		permissions: newTable(tenant.Permissions, func(p models.Permission) uuid.UUID { return p.ID }),
		grants:      map[grantKey]struct{}{},
		userRoles:   map[uuid.UUID][]uuid.UUID{},

		properties: newTable(tenant.Properties, func(p models.Property) uuid.UUID { return p.ID }).
			softDelete(func(p models.Property) *time.Time { return p.DeletedAt }).
			cloning(func(p models.Property) models.Property { p.Meta = cloneMeta(p.Meta); return p }),
		floors: newTable(tenant.Floors, func(f models.Floor) uuid.UUID { return f.ID }),
		rooms: newTable(tenant.Rooms, func(r models.Room) uuid.UUID { return r.ID }).
			softDelete(func(r models.Room) *time.Time { return r.DeletedAt }).
			cloning(func(r models.Room) models.Room { r.Meta = cloneMeta(r.Meta); return r }),

		contracts: newTable(tenant.Contracts, func(c models.Contract) uuid.UUID { return c.ID }).
			cloning(func(c models.Contract) models.Contract { c.Meta = cloneMeta(c.Meta); c.Members = nil; return c }),
		members: newTable(tenant.ContractMembers, func(m models.ContractMember) uuid.UUID { return m.ID }),

		meters:      newTable(tenant.Meters, func(m models.Meter) uuid.UUID { return m.ID }),
		readings:    newTable(tenant.MeterReadings, func(r models.MeterReading) uuid.UUID { return r.ID }),
		adjustments: newTable(tenant.AdjustmentNotes, func(n models.AdjustmentNote) uuid.UUID { return n.ID }),

		services: newTable(tenant.Services, func(s models.Service) uuid.UUID { return s.ID }),
		rates: newTable(tenant.ServiceRates, func(r models.ServiceRate) uuid.UUID { return r.ID }).
			cloning(func(r models.ServiceRate) models.ServiceRate { r.Tiers = nil; return r }),
		tiers: newTable(tenant.TieredRates, func(t models.TieredRate) uuid.UUID { return t.ID }),

		invoices: newTable(tenant.Invoices, func(i models.Invoice) uuid.UUID { return i.ID }).
			cloning(func(i models.Invoice) models.Invoice { i.Items = nil; return i }),
		items: newTable(tenant.InvoiceItems, func(i models.InvoiceItem) uuid.UUID { return i.ID }),

		tickets: newTable(tenant.Tickets, func(t models.Ticket) uuid.UUID { return t.ID }).
			cloning(func(t models.Ticket) models.Ticket {
				t.Meta = cloneMeta(t.Meta)
				t.Events, t.Costs = nil, nil
				return t
			}),
		events: newTable(tenant.TicketEvents, func(e models.TicketEvent) uuid.UUID { return e.ID }),
		costs:  newTable(tenant.TicketCosts, func(c models.TicketCost) uuid.UUID { return c.ID }),

		handovers: newTable(tenant.Handovers, func(h models.Handover) uuid.UUID { return h.ID }).
			cloning(func(h models.Handover) models.Handover {
				h.Meta = cloneMeta(h.Meta)
				h.Items, h.Snapshots = nil, nil
				return h
			}),
		hoItems:   newTable(tenant.HandoverItems, func(i models.HandoverItem) uuid.UUID { return i.ID }),
		snapshots: newTable(tenant.HandoverSnapshots, func(s models.HandoverMeterSnapshot) uuid.UUID { return s.ID }),

		audit: newTable(tenant.AuditLogs, func(l models.AuditLog) uuid.UUID { return l.ID }).
			cloning(func(l models.AuditLog) models.AuditLog { l.Details = cloneMeta(l.Details); return l }),
		uploads: newTable(tenant.Uploads, func(u models.Upload) uuid.UUID { return u.ID }),
	}
}

func (s *state) clone() *state {
	out := &state{
		seq:         s.seq,
		orgs:        s.orgs.snapshot(),
		users:       s.users.snapshot(),
		roles:       s.roles.snapshot(),
		permissions: s.permissions.snapshot(),
		grants:      make(map[grantKey]struct{}, len(s.grants)),
		userRoles:   make(map[uuid.UUID][]uuid.UUID, len(s.userRoles)),
		properties:  s.properties.snapshot(),
		floors:      s.floors.snapshot(),
		rooms:       s.rooms.snapshot(),
		contracts:   s.contracts.snapshot(),
		members:     s.members.snapshot(),
		meters:      s.meters.snapshot(),
		readings:    s.readings.snapshot(),
		adjustments: s.adjustments.snapshot(),
		services:    s.services.snapshot(),
		rates:       s.rates.snapshot(),
		tiers:       s.tiers.snapshot(),
		invoices:    s.invoices.snapshot(),
		items:       s.items.snapshot(),
		tickets:     s.tickets.snapshot(),
		events:      s.events.snapshot(),
		costs:       s.costs.snapshot(),
		handovers:   s.handovers.snapshot(),
		hoItems:     s.hoItems.snapshot(),
		snapshots:   s.snapshots.snapshot(),
		audit:       s.audit.snapshot(),
		uploads:     s.uploads.snapshot(),
	}
	for k := range s.grants {
		out.grants[k] = struct{}{}
	}
	for k, v := range s.userRoles {
		out.userRoles[k] = slices.Clone(v)
	}
	return out
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: newState(), now: func() time.Time { return time.Now().UTC() }}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// InTx holds the store lock for the whole of fn. A failed fn restores the
// state captured at the start.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = saved
		return err
	}
	return nil
}

// with runs fn under the store lock unless ctx already holds it.
func (s *Store) with(ctx context.Context, fn func(st *state) error) error {
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.state)
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

// stamp assigns an id, resolves the owning organization and fills creation
// timestamps on a new row.
func (s *Store) stamp(ctx context.Context, id *uuid.UUID, orgID *uuid.UUID, created ...*time.Time) error {
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
	now := s.now()
	for _, c := range created {
		if c.IsZero() {
			*c = now
		}
	}
	return nil
}

func conflict(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, apperr.ErrConflict)...)
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	return slices.Contains(ids, id)
}
