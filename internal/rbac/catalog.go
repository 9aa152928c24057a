// Package rbac holds the permission catalog, the declarations that map roles
// to permissions per module, the sync that materializes them, and the
// evaluator that combines coarse grants with per-entity ownership rules.
package rbac

import (
	"fmt"
	"slices"
	"strings"
)

type Module string

const (
	ModuleOrganization   Module = "organization"
	ModuleUser           Module = "user"
	ModuleRole           Module = "role"
	ModuleProperty       Module = "property"
	ModuleRoom           Module = "room"
	ModuleContract       Module = "contract"
	ModuleMeter          Module = "meter"
	ModuleMeterReading   Module = "meter_reading"
	ModuleAdjustmentNote Module = "adjustment_note"
	ModuleInvoice        Module = "invoice"
	ModuleTicket         Module = "ticket"
	ModuleHandover       Module = "handover"
	ModuleService        Module = "service"
	ModuleAudit          Module = "audit"
	ModuleUpload         Module = "upload"
)

type Action string

const (
	ActionViewAny     Action = "viewAny"
	ActionView        Action = "view"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionRestore     Action = "restore"
	ActionForceDelete Action = "forceDelete"

	ActionAddMember     Action = "addMember"
	ActionRemoveMember  Action = "removeMember"
	ActionApproveMember Action = "approveMember"
	ActionJoin          Action = "join"
	ActionUpdateStatus  Action = "updateStatus"
	ActionAddEvent      Action = "addEvent"
	ActionAddCost       Action = "addCost"
	ActionSubmit        Action = "submit"
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionLock          Action = "lock"
	ActionConfirm       Action = "confirm"
	ActionIssue         Action = "issue"
	ActionGenerate      Action = "generate"
	ActionSync          Action = "sync"
)

// standardActions is the order used when expanding "*" and when listing.
var standardActions = []Action{
	ActionViewAny, ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionRestore, ActionForceDelete,
}

// moduleActions lists the extra actions each module understands.
var moduleActions = map[Module][]Action{
	ModuleOrganization:   nil,
	ModuleUser:           nil,
	ModuleRole:           {ActionSync},
	ModuleProperty:       nil,
	ModuleRoom:           nil,
	ModuleContract:       {ActionAddMember, ActionRemoveMember, ActionApproveMember, ActionJoin, ActionUpdateStatus},
	ModuleMeter:          nil,
	ModuleMeterReading:   {ActionSubmit, ActionApprove, ActionReject, ActionLock},
	ModuleAdjustmentNote: {ActionApprove, ActionReject},
	ModuleInvoice:        {ActionIssue, ActionGenerate, ActionUpdateStatus},
	ModuleTicket:         {ActionUpdateStatus, ActionAddEvent, ActionAddCost},
	ModuleHandover:       {ActionConfirm},
	ModuleService:        nil,
	ModuleAudit:          nil,
	ModuleUpload:         nil,
}

// shorthand expands single-character tokens. "*" is module dependent and
// handled by Expand.
var shorthand = map[rune][]Action{
	'C': {ActionCreate},
	'R': {ActionViewAny, ActionView},
	'U': {ActionUpdate},
	'D': {ActionDelete},
}

// Modules returns every catalogued module in name order.
func Modules() []Module {
	out := make([]Module, 0, len(moduleActions))
	for m := range moduleActions {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

func (m Module) Valid() bool {
	_, ok := moduleActions[m]
	return ok
}

// Actions returns the standard actions followed by the module's extras.
func (m Module) Actions() []Action {
	return append(slices.Clone(standardActions), moduleActions[m]...)
}

// Supports reports whether action is meaningful for the module.
func (m Module) Supports(a Action) bool {
	return slices.Contains(m.Actions(), a)
}

// Expand turns declaration tokens into the module's action set, in catalog
// order. A token is a known action name, the literal CRUD, or a run of
// shorthand characters from {C, R, U, D, *}.
func Expand(m Module, tokens []string) ([]Action, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown module %q", m)
	}
	set := make(map[Action]struct{})
	for _, raw := range tokens {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			return nil, fmt.Errorf("module %s: empty permission token", m)
		}
		if a := Action(tok); m.Supports(a) {
			set[a] = struct{}{}
			continue
		}
		// CRUD needs no special case: it is the run C, R, U, D.
		for _, r := range tok {
			if r == '*' {
				for _, a := range m.Actions() {
					set[a] = struct{}{}
				}
				continue
			}
			actions, ok := shorthand[r]
			if !ok {
				return nil, fmt.Errorf("module %s: malformed permission token %q", m, raw)
			}
			for _, a := range actions {
				set[a] = struct{}{}
			}
		}
	}
	out := make([]Action, 0, len(set))
	for _, a := range m.Actions() {
		if _, ok := set[a]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}
