package rbac

import "github.com/nikhilbhutani/rentalcore/internal/models"

// Declaration maps roles to permission tokens for one module.
type Declaration struct {
	Module Module
	Roles  map[models.RoleName][]string
}

// restricted lists, per module, the roles whose access to individual
// entities is decided by ownership rules instead of grants. Restricted roles
// are never declared view or viewAny on these modules.
var restricted = map[Module][]models.RoleName{
	ModuleContract: {models.RoleTenant},
	ModuleInvoice:  {models.RoleTenant},
	ModuleTicket:   {models.RoleTenant},
	ModuleHandover: {models.RoleTenant},
}

// IsRestricted reports whether role is membership-restricted on module.
func IsRestricted(m Module, role models.RoleName) bool {
	for _, r := range restricted[m] {
		if r == role {
			return true
		}
	}
	return false
}

// Declarations is the permission layout synced on every deploy. Global roles
// bypass evaluation; admin is declared so its grants exist for reporting, and
// super_admin only needs the role row the sync always creates.
var Declarations = []Declaration{
	{Module: ModuleOrganization, Roles: map[models.RoleName][]string{
		models.RoleAdmin: {"*"},
		models.RoleOwner: {"view", "update"},
	}},
	{Module: ModuleUser, Roles: map[models.RoleName][]string{
		models.RoleAdmin:   {"*"},
		models.RoleOwner:   {"CRUD"},
		models.RoleManager: {"R", "create"},
	}},
	{Module: ModuleRole, Roles: map[models.RoleName][]string{
		models.RoleAdmin: {"*"},
	}},
	{Module: ModuleProperty, Roles: map[models.RoleName][]string{
		models.RoleAdmin:   {"*"},
		models.RoleOwner:   {"*"},
		models.RoleManager: {"CRUD", "restore"},
		models.RoleStaff:   {"R"},
	}},
	{Module: ModuleRoom, Roles: map[models.RoleName][]string{
		models.RoleAdmin:   {"*"},
		models.RoleOwner:   {"*"},
		models.RoleManager: {"CRUD", "restore"},
		models.RoleStaff:   {"R"},
	}},
	{Module: ModuleContract, Roles: map[models.RoleName][]string{
		models.RoleAdmin:   {"*"},
		models.RoleOwner:   {"*"},
		models.RoleManager: {"CRU", "addMember", "removeMember", "approveMember", "updateStatus"},
		models.RoleStaff:   {"R"},
		models.RoleTenant:  {"join"},
	}},
	{Module: ModuleMeter, Roles: map[models.RoleName][]string{
		models.RoleAdmin:   {"*"},
		models.RoleOwner:   {"*"},
		models.RoleManager: {"CRUD"},
		models.RoleStaff:   {"R"},
	}},
	{Module: ModuleMeterReading, Roles: map[models.RoleName][]string{
		models.RoleAdmin:   {"*"},
		models.RoleOwner:   {"*"},
		models.RoleManager: {"CRU", "submit", "approve", "reject", "lock"},
		models.RoleStaff:   {"CRU", "submit"},
	}},
	{Module: ModuleAdjustmentNote, Roles: map[models.RoleName][]string{
		models.RoleAdmin:   {"*"},
		models.RoleOwner:   {"*"},
		models.RoleManager: {"CR", "approve", "reject"},
		models.RoleStaff:   {"CR"},
	}},
	{Module: ModuleInvoice, Roles: map[models.RoleName][]string{
		models.RoleAdmin:   {"*"},
		models.RoleOwner:   {"*"},
		models.RoleManager: {"CRUD", "issue", "generate", "updateStatus"},
		models.RoleStaff:   {"R"},
	}},
	{Module: ModuleTicket, Roles: map[models.RoleName][]string{
		models.RoleAdmin:   {"*"},
		models.RoleOwner:   {"*"},
		models.RoleManager: {"CRU", "updateStatus", "addEvent", "addCost"},
		models.RoleStaff:   {"RU", "updateStatus", "addEvent", "addCost"},
	}},
	{Module: ModuleHandover, Roles: map[models.RoleName][]string{
		models.RoleAdmin:   {"*"},
		models.RoleOwner:   {"*"},
		models.RoleManager: {"CRUD", "confirm"},
		models.RoleStaff:   {"CRU"},
	}},
	{Module: ModuleService, Roles: map[models.RoleName][]string{
		models.RoleAdmin:   {"*"},
		models.RoleOwner:   {"*"},
		models.RoleManager: {"CRU"},
		models.RoleStaff:   {"R"},
	}},
	{Module: ModuleAudit, Roles: map[models.RoleName][]string{
		models.RoleAdmin: {"R"},
		models.RoleOwner: {"R"},
	}},
	{Module: ModuleUpload, Roles: map[models.RoleName][]string{
		models.RoleAdmin:   {"*"},
		models.RoleOwner:   {"C", "delete"},
		models.RoleManager: {"C"},
		models.RoleStaff:   {"C"},
		models.RoleTenant:  {"C"},
	}},
}
