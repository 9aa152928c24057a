package models

import (
	"time"

	"github.com/google/uuid"
)

type RoleName string

const (
	RoleSuperAdmin RoleName = "super_admin"
	RoleAdmin      RoleName = "admin"
	RoleOwner      RoleName = "owner"
	RoleManager    RoleName = "manager"
	RoleStaff      RoleName = "staff"
	RoleTenant     RoleName = "tenant"
)

// RoleNames is the closed role catalog.
var RoleNames = []RoleName{RoleSuperAdmin, RoleAdmin, RoleOwner, RoleManager, RoleStaff, RoleTenant}

// IsGlobal reports whether the role bypasses organization checks.
func (r RoleName) IsGlobal() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

func (r RoleName) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleOwner, RoleManager, RoleStaff, RoleTenant:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	OrgID        *uuid.UUID `json:"org_id,omitempty" db:"org_id"`
	Email        string     `json:"email" db:"email"`
	FullName     string     `json:"full_name" db:"full_name"`
	Phone        string     `json:"phone,omitempty" db:"phone"`
	PasswordHash string     `json:"-" db:"password_hash"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`

	Roles []RoleName `json:"roles,omitempty" db:"-"`
}

// OwnerOrgID returns uuid.Nil for platform users without an organization.
func (u User) OwnerOrgID() uuid.UUID {
	if u.OrgID == nil {
		return uuid.Nil
	}
	return *u.OrgID
}

func (u User) HasRole(name RoleName) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

type Role struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      RoleName  `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Roles form a shared catalog outside any organization.
func (r Role) OwnerOrgID() uuid.UUID { return uuid.Nil }

// Permission is one (module, action) pair. Rows are generated by the
// permission sync, never authored per user.
type Permission struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Module    string    `json:"module" db:"module"`
	Action    string    `json:"action" db:"action"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (p Permission) OwnerOrgID() uuid.UUID { return uuid.Nil }

// Name renders the permission as "{action} {module}".
func (p Permission) Name() string {
	return p.Action + " " + p.Module
}
