// Package store declares the persistence boundary used by the domain
// services. Every implementation applies tenant scoping from the context: a
// row owned by another organization is reported as apperr.ErrNotFound.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type Store interface {
	// InTx runs fn in one transaction. Nested calls join the outer
	// transaction; any error rolls everything back.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	Organizations() OrganizationRepository
	Users() UserRepository
	Permissions() PermissionRepository
	Properties() PropertyRepository
	Contracts() ContractRepository
	Meters() MeterRepository
	Pricing() PricingRepository
	Invoices() InvoiceRepository
	Tickets() TicketRepository
	Handovers() HandoverRepository
	Audit() AuditRepository
	Uploads() UploadRepository
}

// Page bounds a list query. A zero Limit means the default.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	Get(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	List(ctx context.Context, page Page) ([]models.Organization, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	// Get and GetByEmail hydrate Roles.
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, page Page) ([]models.User, error)
	// SetRoles replaces the user's role assignment. Roles must already exist.
	SetRoles(ctx context.Context, userID uuid.UUID, roles []models.RoleName) error
}

// PermissionRepository backs the RBAC sync. Roles and permissions are global
// tables and ignore tenant scope.
type PermissionRepository interface {
	FindOrCreatePermission(ctx context.Context, module, action string) (perm models.Permission, created bool, err error)
	FindOrCreateRole(ctx context.Context, name models.RoleName) (role models.Role, created bool, err error)
	// Grant links a permission to a role and reports whether the link is new.
	Grant(ctx context.Context, roleID, permissionID uuid.UUID) (created bool, err error)
	// Grants returns the permissions held by each named role.
	Grants(ctx context.Context, roles []models.RoleName) (map[models.RoleName][]models.Permission, error)
}

type RoomFilter struct {
	PropertyID *uuid.UUID
	Status     models.RoomStatus
	Trashed    tenant.Trashed
	Page       Page
}

type PropertyRepository interface {
	CreateProperty(ctx context.Context, p *models.Property) error
	GetProperty(ctx context.Context, id uuid.UUID, trashed tenant.Trashed) (*models.Property, error)
	ListProperties(ctx context.Context, trashed tenant.Trashed, page Page) ([]models.Property, error)
	UpdateProperty(ctx context.Context, p *models.Property) error
	SoftDeleteProperty(ctx context.Context, id uuid.UUID) error
	RestoreProperty(ctx context.Context, id uuid.UUID) error
	ForceDeleteProperty(ctx context.Context, id uuid.UUID) error

	CreateFloor(ctx context.Context, f *models.Floor) error
	GetFloor(ctx context.Context, id uuid.UUID) (*models.Floor, error)
	ListFloors(ctx context.Context, propertyID uuid.UUID) ([]models.Floor, error)
	DeleteFloor(ctx context.Context, id uuid.UUID) error

	CreateRoom(ctx context.Context, r *models.Room) error
	GetRoom(ctx context.Context, id uuid.UUID, trashed tenant.Trashed) (*models.Room, error)
	ListRooms(ctx context.Context, f RoomFilter) ([]models.Room, error)
	UpdateRoom(ctx context.Context, r *models.Room) error
	SetRoomStatus(ctx context.Context, id uuid.UUID, status models.RoomStatus) error
	SoftDeleteRoom(ctx context.Context, id uuid.UUID) error
	RestoreRoom(ctx context.Context, id uuid.UUID) error
	ForceDeleteRoom(ctx context.Context, id uuid.UUID) error
}

type ContractFilter struct {
	PropertyID *uuid.UUID
	RoomID     *uuid.UUID
	Status     models.ContractStatus
	// IDs restricts the result to the listed contracts when non-nil.
	IDs  []uuid.UUID
	Page Page
}

type ContractRepository interface {
	Create(ctx context.Context, c *models.Contract) error
	// Get hydrates Members.
	Get(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	GetByJoinCode(ctx context.Context, code string) (*models.Contract, error)
	List(ctx context.Context, f ContractFilter) ([]models.Contract, error)
	// ActiveForRoom returns ErrNotFound when the room has no ACTIVE contract.
	ActiveForRoom(ctx context.Context, roomID uuid.UUID) (*models.Contract, error)
	Update(ctx context.Context, c *models.Contract) error

	AddMember(ctx context.Context, m *models.ContractMember) error
	GetMember(ctx context.Context, id uuid.UUID) (*models.ContractMember, error)
	UpdateMember(ctx context.Context, m *models.ContractMember) error
	Members(ctx context.Context, contractID uuid.UUID) ([]models.ContractMember, error)
	// IsCurrentMember reports whether userID is an approved member of the
	// contract who has not left.
	IsCurrentMember(ctx context.Context, contractID, userID uuid.UUID) (bool, error)
	// MemberContractIDs lists the contracts userID currently belongs to.
	MemberContractIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type ReadingFilter struct {
	MeterID *uuid.UUID
	RoomID  *uuid.UUID
	Status  models.ReadingStatus
	// From and To bound period_start, inclusive.
	From *time.Time
	To   *time.Time
	Page Page
}

type AdjustmentFilter struct {
	ReadingID *uuid.UUID
	Status    models.AdjustmentStatus
	Page      Page
}

type MeterRepository interface {
	CreateMeter(ctx context.Context, m *models.Meter) error
	GetMeter(ctx context.Context, id uuid.UUID) (*models.Meter, error)
	ListMeters(ctx context.Context, roomID *uuid.UUID) ([]models.Meter, error)

	// CreateReading returns ErrConflict when the meter already has a reading
	// for the same period start.
	CreateReading(ctx context.Context, r *models.MeterReading) error
	GetReading(ctx context.Context, id uuid.UUID) (*models.MeterReading, error)
	GetReadingForUpdate(ctx context.Context, id uuid.UUID) (*models.MeterReading, error)
	ListReadings(ctx context.Context, f ReadingFilter) ([]models.MeterReading, error)
	// PreviousReading returns the latest reading of the meter whose period
	// starts before the given date, or ErrNotFound.
	PreviousReading(ctx context.Context, meterID uuid.UUID, before time.Time) (*models.MeterReading, error)
	UpdateReading(ctx context.Context, r *models.MeterReading) error

	CreateAdjustment(ctx context.Context, n *models.AdjustmentNote) error
	GetAdjustment(ctx context.Context, id uuid.UUID) (*models.AdjustmentNote, error)
	ListAdjustments(ctx context.Context, f AdjustmentFilter) ([]models.AdjustmentNote, error)
	HasPendingAdjustment(ctx context.Context, readingID uuid.UUID) (bool, error)
	// DecideAdjustment persists an approval or rejection only while the note
	// is still PENDING; otherwise it returns ErrConflict.
	DecideAdjustment(ctx context.Context, n *models.AdjustmentNote) error
}

type PricingRepository interface {
	CreateService(ctx context.Context, s *models.Service) error
	GetService(ctx context.Context, id uuid.UUID) (*models.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error)
	// AddRate stores the rate and its tiers.
	AddRate(ctx context.Context, r *models.ServiceRate) error
	ListRates(ctx context.Context, serviceID uuid.UUID) ([]models.ServiceRate, error)
	// CurrentRate returns the latest rate effective on or before asOf, with
	// tiers, or ErrNotFound.
	CurrentRate(ctx context.Context, serviceID uuid.UUID, asOf time.Time) (*models.ServiceRate, error)
}

type InvoiceFilter struct {
	PropertyID *uuid.UUID
	ContractID *uuid.UUID
	Status     models.InvoiceStatus
	// ContractIDs restricts the result to invoices of these contracts when non-nil.
	ContractIDs []uuid.UUID
	Page        Page
}

type InvoiceRepository interface {
	// Create stores the invoice and its items.
	Create(ctx context.Context, inv *models.Invoice) error
	// Get hydrates Items.
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, f InvoiceFilter) ([]models.Invoice, error)
	Update(ctx context.Context, inv *models.Invoice) error
	ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DueBefore lists ISSUED or PENDING invoices whose due date is before asOf.
	DueBefore(ctx context.Context, asOf time.Time) ([]models.Invoice, error)
	ExistsForPeriod(ctx context.Context, contractID uuid.UUID, periodStart time.Time) (bool, error)
}

type TicketFilter struct {
	PropertyID *uuid.UUID
	RoomID     *uuid.UUID
	CreatedBy  *uuid.UUID
	Status     models.TicketStatus
	Page       Page
}

type TicketRepository interface {
	Create(ctx context.Context, t *models.Ticket) error
	// Get hydrates Events and Costs.
	Get(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	List(ctx context.Context, f TicketFilter) ([]models.Ticket, error)
	Update(ctx context.Context, t *models.Ticket) error
	AddEvent(ctx context.Context, e *models.TicketEvent) error
	AddCost(ctx context.Context, c *models.TicketCost) error
}

type HandoverFilter struct {
	ContractID  *uuid.UUID
	RoomID      *uuid.UUID
	ContractIDs []uuid.UUID
	Page        Page
}

type HandoverRepository interface {
	Create(ctx context.Context, h *models.Handover) error
	// Get hydrates Items and Snapshots.
	Get(ctx context.Context, id uuid.UUID) (*models.Handover, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Handover, error)
	List(ctx context.Context, f HandoverFilter) ([]models.Handover, error)
	// Update persists Note and Meta.
	Update(ctx context.Context, h *models.Handover) error
	// Confirm moves a DRAFT, unlocked handover to CONFIRMED and stamps the
	// lock in one statement. It returns ErrConflict when the handover was
	// already confirmed.
	Confirm(ctx context.Context, id, userID uuid.UUID, at time.Time) error

	AddItem(ctx context.Context, it *models.HandoverItem) error
	GetItem(ctx context.Context, id uuid.UUID) (*models.HandoverItem, error)
	UpdateItem(ctx context.Context, it *models.HandoverItem) error
	DeleteItem(ctx context.Context, id uuid.UUID) error

	// UpsertSnapshot inserts or overwrites the snapshot keyed on
	// (handover, meter).
	UpsertSnapshot(ctx context.Context, s *models.HandoverMeterSnapshot) error
	GetSnapshot(ctx context.Context, id uuid.UUID) (*models.HandoverMeterSnapshot, error)
	DeleteSnapshot(ctx context.Context, id uuid.UUID) error
}

type AuditFilter struct {
	ResourceType string
	ResourceID   *uuid.UUID
	UserID       *uuid.UUID
	Page         Page
}

type AuditRepository interface {
	Record(ctx context.Context, l *models.AuditLog) error
	List(ctx context.Context, f AuditFilter) ([]models.AuditLog, error)
}

type UploadRepository interface {
	Create(ctx context.Context, u *models.Upload) error
	Get(ctx context.Context, id uuid.UUID) (*models.Upload, error)
	Attach(ctx context.Context, id uuid.UUID, at time.Time) error
	// Stale lists unattached uploads created before the cutoff.
	Stale(ctx context.Context, before time.Time) ([]models.Upload, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
