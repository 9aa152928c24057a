package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
)

// Target is an entity an action is evaluated against.
type Target interface {
	OwnerOrgID() uuid.UUID
}

// Ownership decides whether the actor owns target for one (module, action).
// It replaces the blanket grant for roles restricted on the module.
type Ownership func(ctx context.Context, s *Session, target Target) (bool, error)

type ruleKey struct {
	module Module
	action Action
}

// ListScope tells list operations which rows the actor may see.
type ListScope int

const (
	ListDenied ListScope = iota
	ListAll
	// ListMembersOnly limits results to rows the actor owns through
	// contract membership or authorship.
	ListMembersOnly
)

type Evaluator struct {
	rules map[ruleKey]Ownership
}

// NewEvaluator wires the ownership rules against the contract membership
// store.
func NewEvaluator(contracts store.ContractRepository) *Evaluator {
	e := &Evaluator{rules: map[ruleKey]Ownership{}}

	member := func(ctx context.Context, s *Session, contractID uuid.UUID) (bool, error) {
		return contracts.IsCurrentMember(ctx, contractID, s.UserID())
	}
	viaContract := func(contractOf func(Target) (uuid.UUID, bool)) Ownership {
		return func(ctx context.Context, s *Session, t Target) (bool, error) {
			id, ok := contractOf(t)
			if !ok {
				return false, nil
			}
			return member(ctx, s, id)
		}
	}

	contractID := viaContract(func(t Target) (uuid.UUID, bool) {
		c, ok := asContract(t)
		return c.ID, ok
	})
	e.Register(ModuleContract, ActionView, contractID)
	e.Register(ModuleContract, ActionAddMember, contractID)

	e.Register(ModuleInvoice, ActionView, viaContract(func(t Target) (uuid.UUID, bool) {
		inv, ok := asInvoice(t)
		return inv.ContractID, ok
	}))

	e.Register(ModuleHandover, ActionView, viaContract(func(t Target) (uuid.UUID, bool) {
		h, ok := asHandover(t)
		return h.ContractID, ok
	}))

	author := func(_ context.Context, s *Session, t Target) (bool, error) {
		tk, ok := asTicket(t)
		return ok && tk.CreatedBy == s.UserID(), nil
	}
	e.Register(ModuleTicket, ActionView, author)
	e.Register(ModuleTicket, ActionAddEvent, author)
	e.Register(ModuleTicket, ActionCreate, viaContract(func(t Target) (uuid.UUID, bool) {
		tk, ok := asTicket(t)
		if !ok || tk.ContractID == nil {
			return uuid.Nil, false
		}
		return *tk.ContractID, true
	}))

	return e
}

// Register installs or replaces the ownership rule for (module, action).
func (e *Evaluator) Register(m Module, a Action, rule Ownership) {
	e.rules[ruleKey{m, a}] = rule
}

// Authorize returns nil when the session in ctx may perform action on module,
// optionally against target, and apperr.Forbidden otherwise. Only datastore
// failures inside ownership rules surface as other errors.
func (e *Evaluator) Authorize(ctx context.Context, action Action, module Module, target Target) error {
	s := SessionFrom(ctx)
	if s == nil {
		return apperr.Forbidden()
	}
	if s.Global() {
		return nil
	}
	if target != nil && target.OwnerOrgID() != s.OrgID() {
		return apperr.Forbidden()
	}

	var restrictedRoles []models.RoleName
	for _, r := range s.User.Roles {
		if IsRestricted(module, r) {
			restrictedRoles = append(restrictedRoles, r)
			continue
		}
		if s.Grants[r].Has(module, action) {
			return nil
		}
	}
	if len(restrictedRoles) == 0 {
		return apperr.Forbidden()
	}

	if rule, ok := e.rules[ruleKey{module, action}]; ok {
		if target == nil {
			return apperr.Forbidden()
		}
		owns, err := rule(ctx, s, target)
		if err != nil {
			return fmt.Errorf("evaluate %s %s: %w", action, module, err)
		}
		if owns {
			return nil
		}
		return apperr.Forbidden()
	}

	for _, r := range restrictedRoles {
		if s.Grants[r].Has(module, action) {
			return nil
		}
	}
	return apperr.Forbidden()
}

// Can is Authorize as a boolean. Evaluation failures deny and are logged.
func (e *Evaluator) Can(ctx context.Context, action Action, module Module, target Target) bool {
	err := e.Authorize(ctx, action, module, target)
	if err != nil && !apperr.Is(err, apperr.KindForbidden) {
		slog.Warn("access evaluation failed", "action", action, "module", module, "error", err)
	}
	return err == nil
}

// ListScope decides how viewAny applies to the session in ctx.
func (e *Evaluator) ListScope(ctx context.Context, module Module) ListScope {
	s := SessionFrom(ctx)
	if s == nil {
		return ListDenied
	}
	if s.Global() {
		return ListAll
	}
	restrictedRole := false
	for _, r := range s.User.Roles {
		if IsRestricted(module, r) {
			restrictedRole = true
			continue
		}
		if s.Grants[r].Has(module, ActionViewAny) {
			return ListAll
		}
	}
	if restrictedRole {
		return ListMembersOnly
	}
	return ListDenied
}

func asContract(t Target) (models.Contract, bool) {
	switch v := t.(type) {
	case models.Contract:
		return v, true
	case *models.Contract:
		if v != nil {
			return *v, true
		}
	}
	return models.Contract{}, false
}

func asInvoice(t Target) (models.Invoice, bool) {
	switch v := t.(type) {
	case models.Invoice:
		return v, true
	case *models.Invoice:
		if v != nil {
			return *v, true
		}
	}
	return models.Invoice{}, false
}

func asTicket(t Target) (models.Ticket, bool) {
	switch v := t.(type) {
	case models.Ticket:
		return v, true
	case *models.Ticket:
		if v != nil {
			return *v, true
		}
	}
	return models.Ticket{}, false
}

func asHandover(t Target) (models.Handover, bool) {
	switch v := t.(type) {
	case models.Handover:
		return v, true
	case *models.Handover:
		if v != nil {
			return *v, true
		}
	}
	return models.Handover{}, false
}
