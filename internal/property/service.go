// Package property manages the physical asset hierarchy: properties, their
// floors and rooms.
package property

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/audit"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type Service struct {
	store store.Store
	eval  *rbac.Evaluator
	audit *audit.Service
}

func NewService(st store.Store, eval *rbac.Evaluator, au *audit.Service) *Service {
	return &Service{store: st, eval: eval, audit: au}
}

type PropertyInput struct {
	Name    string      `json:"name" validate:"required,max=255"`
	Address string      `json:"address" validate:"max=512"`
	Meta    models.Meta `json:"meta"`
}

type FloorInput struct {
	PropertyID uuid.UUID `json:"property_id" validate:"required"`
	Name       string    `json:"name" validate:"required,max=64"`
	Level      int       `json:"level"`
}

type RoomInput struct {
	PropertyID uuid.UUID       `json:"property_id" validate:"required"`
	FloorID    *uuid.UUID      `json:"floor_id"`
	Code       string          `json:"code" validate:"required,max=32"`
	Name       string          `json:"name" validate:"max=255"`
	BaseRent   decimal.Decimal `json:"base_rent"`
	Capacity   int             `json:"capacity" validate:"min=0"`
	Meta       models.Meta     `json:"meta"`
}

func (s *Service) log(ctx context.Context, action, resource string, org, id uuid.UUID) error {
	return s.audit.Log(ctx, audit.LogEntry{OrgID: org, Action: action, ResourceType: resource, ResourceID: &id})
}

func (s *Service) CreateProperty(ctx context.Context, in PropertyInput) (*models.Property, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleProperty, nil); err != nil {
		return nil, err
	}
	if err := in.Meta.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	p := &models.Property{Name: strings.TrimSpace(in.Name), Address: in.Address, Meta: in.Meta}
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.Properties().CreateProperty(ctx, p); err != nil {
			return fmt.Errorf("create property: %w", err)
		}
		return s.log(ctx, "created", "property", p.OrgID, p.ID)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("property created", "org_id", p.OrgID, "property_id", p.ID)
	return p, nil
}

func (s *Service) GetProperty(ctx context.Context, id uuid.UUID, trashed tenant.Trashed) (*models.Property, error) {
	p, err := s.store.Properties().GetProperty(ctx, id, trashed)
	if err != nil {
		return nil, apperr.MapNotFound(err, "property")
	}
	if err := s.eval.Authorize(ctx, rbac.ActionView, rbac.ModuleProperty, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListProperties(ctx context.Context, trashed tenant.Trashed, page store.Page) ([]models.Property, error) {
	if s.eval.ListScope(ctx, rbac.ModuleProperty) != rbac.ListAll {
		return nil, apperr.Forbidden()
	}
	out, err := s.store.Properties().ListProperties(ctx, trashed, page)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	return out, nil
}

func (s *Service) UpdateProperty(ctx context.Context, id uuid.UUID, in PropertyInput) (*models.Property, error) {
	if err := in.Meta.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	var p *models.Property
	err := s.store.InTx(ctx, func(ctx context.Context) (err error) {
		if p, err = s.store.Properties().GetProperty(ctx, id, tenant.ActiveOnly); err != nil {
			return apperr.MapNotFound(err, "property")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionUpdate, rbac.ModuleProperty, p); err != nil {
			return err
		}
		p.Name, p.Address = strings.TrimSpace(in.Name), in.Address
		if in.Meta != nil {
			p.Meta = p.Meta.Merge(in.Meta)
		}
		if err := s.store.Properties().UpdateProperty(ctx, p); err != nil {
			return fmt.Errorf("update property: %w", err)
		}
		return s.log(ctx, "updated", "property", p.OrgID, p.ID)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// trash runs one of the delete, restore or force delete operations after
// loading the entity under the trash variant it must be in.
func (s *Service) trash(ctx context.Context, resource string, id uuid.UUID, action rbac.Action, module rbac.Module, load func(ctx context.Context) (rbac.Target, uuid.UUID, error), apply func(ctx context.Context) error) error {
	return s.store.InTx(ctx, func(ctx context.Context) error {
		target, org, err := load(ctx)
		if err != nil {
			return apperr.MapNotFound(err, resource)
		}
		if err := s.eval.Authorize(ctx, action, module, target); err != nil {
			return err
		}
		if err := apply(ctx); err != nil {
			if apperr.Is(err, apperr.KindBusinessRule) {
				return err
			}
			return fmt.Errorf("%s %s: %w", action, resource, err)
		}
		return s.log(ctx, string(action), resource, org, id)
	})
}

func (s *Service) loadProperty(id uuid.UUID, trashed tenant.Trashed) func(ctx context.Context) (rbac.Target, uuid.UUID, error) {
	return func(ctx context.Context) (rbac.Target, uuid.UUID, error) {
		p, err := s.store.Properties().GetProperty(ctx, id, trashed)
		if err != nil {
			return nil, uuid.Nil, err
		}
		return p, p.OrgID, nil
	}
}

func (s *Service) DeleteProperty(ctx context.Context, id uuid.UUID) error {
	return s.trash(ctx, "property", id, rbac.ActionDelete, rbac.ModuleProperty, s.loadProperty(id, tenant.ActiveOnly), func(ctx context.Context) error {
		return s.store.Properties().SoftDeleteProperty(ctx, id)
	})
}

func (s *Service) RestoreProperty(ctx context.Context, id uuid.UUID) error {
	return s.trash(ctx, "property", id, rbac.ActionRestore, rbac.ModuleProperty, s.loadProperty(id, tenant.TrashedOnly), func(ctx context.Context) error {
		return s.store.Properties().RestoreProperty(ctx, id)
	})
}

// ForceDeleteProperty removes a property for good. It refuses while any room,
// trashed or not, still belongs to it.
func (s *Service) ForceDeleteProperty(ctx context.Context, id uuid.UUID) error {
	return s.trash(ctx, "property", id, rbac.ActionForceDelete, rbac.ModuleProperty, s.loadProperty(id, tenant.WithTrashed), func(ctx context.Context) error {
		rooms, err := s.store.Properties().ListRooms(ctx, store.RoomFilter{PropertyID: &id, Trashed: tenant.WithTrashed, Page: store.Page{Limit: 1}})
		if err != nil {
			return err
		}
		if len(rooms) > 0 {
			return apperr.BusinessRule("property still has rooms")
		}
		return s.store.Properties().ForceDeleteProperty(ctx, id)
	})
}

func (s *Service) CreateFloor(ctx context.Context, in FloorInput) (*models.Floor, error) {
	f := &models.Floor{PropertyID: in.PropertyID, Name: strings.TrimSpace(in.Name), Level: in.Level}
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		p, err := s.store.Properties().GetProperty(ctx, in.PropertyID, tenant.ActiveOnly)
		if err != nil {
			return apperr.MapNotFound(err, "property")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionUpdate, rbac.ModuleProperty, p); err != nil {
			return err
		}
		f.OrgID = p.OrgID
		if err := s.store.Properties().CreateFloor(ctx, f); err != nil {
			return fmt.Errorf("create floor: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) ListFloors(ctx context.Context, propertyID uuid.UUID) ([]models.Floor, error) {
	if _, err := s.GetProperty(ctx, propertyID, tenant.ActiveOnly); err != nil {
		return nil, err
	}
	out, err := s.store.Properties().ListFloors(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list floors: %w", err)
	}
	return out, nil
}

func (s *Service) DeleteFloor(ctx context.Context, id uuid.UUID) error {
	return s.store.InTx(ctx, func(ctx context.Context) error {
		f, err := s.store.Properties().GetFloor(ctx, id)
		if err != nil {
			return apperr.MapNotFound(err, "floor")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionUpdate, rbac.ModuleProperty, f); err != nil {
			return err
		}
		if err := s.store.Properties().DeleteFloor(ctx, id); err != nil {
			return fmt.Errorf("delete floor: %w", err)
		}
		return nil
	})
}

func (s *Service) CreateRoom(ctx context.Context, in RoomInput) (*models.Room, error) {
	if err := s.eval.Authorize(ctx, rbac.ActionCreate, rbac.ModuleRoom, nil); err != nil {
		return nil, err
	}
	if err := in.Meta.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if in.BaseRent.IsNegative() {
		return nil, apperr.Validation("base rent must not be negative")
	}
	r := &models.Room{
		PropertyID: in.PropertyID,
		FloorID:    in.FloorID,
		Code:       strings.TrimSpace(in.Code),
		Name:       in.Name,
		Status:     models.RoomVacant,
		BaseRent:   in.BaseRent,
		Capacity:   in.Capacity,
		Meta:       in.Meta,
	}
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		p, err := s.store.Properties().GetProperty(ctx, in.PropertyID, tenant.ActiveOnly)
		if err != nil {
			return apperr.MapNotFound(err, "property")
		}
		if err := s.checkFloor(ctx, in.FloorID, p.ID); err != nil {
			return err
		}
		r.OrgID = p.OrgID
		if err := s.store.Properties().CreateRoom(ctx, r); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.BusinessRule("room code %q is already used in this property", r.Code)
			}
			return fmt.Errorf("create room: %w", err)
		}
		return s.log(ctx, "created", "room", r.OrgID, r.ID)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("room created", "org_id", r.OrgID, "room_id", r.ID, "code", r.Code)
	return r, nil
}

func (s *Service) checkFloor(ctx context.Context, floorID *uuid.UUID, propertyID uuid.UUID) error {
	if floorID == nil {
		return nil
	}
	f, err := s.store.Properties().GetFloor(ctx, *floorID)
	if err != nil {
		return apperr.MapNotFound(err, "floor")
	}
	if f.PropertyID != propertyID {
		return apperr.Validation("floor belongs to another property")
	}
	return nil
}

func (s *Service) GetRoom(ctx context.Context, id uuid.UUID, trashed tenant.Trashed) (*models.Room, error) {
	r, err := s.store.Properties().GetRoom(ctx, id, trashed)
	if err != nil {
		return nil, apperr.MapNotFound(err, "room")
	}
	if err := s.eval.Authorize(ctx, rbac.ActionView, rbac.ModuleRoom, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListRooms(ctx context.Context, f store.RoomFilter) ([]models.Room, error) {
	if s.eval.ListScope(ctx, rbac.ModuleRoom) != rbac.ListAll {
		return nil, apperr.Forbidden()
	}
	out, err := s.store.Properties().ListRooms(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return out, nil
}

// UpdateRoom patches a room. Status is owned by the contract lifecycle,
// except MAINTENANCE which may be toggled on a room without an active
// contract.
func (s *Service) UpdateRoom(ctx context.Context, id uuid.UUID, in RoomInput, status models.RoomStatus) (*models.Room, error) {
	if err := in.Meta.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	var r *models.Room
	err := s.store.InTx(ctx, func(ctx context.Context) (err error) {
		if r, err = s.store.Properties().GetRoom(ctx, id, tenant.ActiveOnly); err != nil {
			return apperr.MapNotFound(err, "room")
		}
		if err := s.eval.Authorize(ctx, rbac.ActionUpdate, rbac.ModuleRoom, r); err != nil {
			return err
		}
		if err := s.checkFloor(ctx, in.FloorID, r.PropertyID); err != nil {
			return err
		}
		if in.Code != "" {
			r.Code = strings.TrimSpace(in.Code)
		}
		if in.Name != "" {
			r.Name = in.Name
		}
		r.FloorID, r.BaseRent, r.Capacity = in.FloorID, in.BaseRent, in.Capacity
		if in.Meta != nil {
			r.Meta = r.Meta.Merge(in.Meta)
		}
		if err := s.store.Properties().UpdateRoom(ctx, r); err != nil {
			return fmt.Errorf("update room: %w", err)
		}
		if status != "" && status != r.Status {
			if err := s.setMaintenance(ctx, r, status); err != nil {
				return err
			}
		}
		return s.log(ctx, "updated", "room", r.OrgID, r.ID)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) setMaintenance(ctx context.Context, r *models.Room, status models.RoomStatus) error {
	if status != models.RoomMaintenance && status != models.RoomVacant {
		return apperr.BusinessRule("room status %s is managed by contracts", status)
	}
	if r.Status == models.RoomOccupied {
		return apperr.BusinessRule("room has an active contract")
	}
	if err := s.store.Properties().SetRoomStatus(ctx, r.ID, status); err != nil {
		return fmt.Errorf("set room status: %w", err)
	}
	r.Status = status
	return nil
}

func (s *Service) loadRoom(id uuid.UUID, trashed tenant.Trashed) func(ctx context.Context) (rbac.Target, uuid.UUID, error) {
	return func(ctx context.Context) (rbac.Target, uuid.UUID, error) {
		r, err := s.store.Properties().GetRoom(ctx, id, trashed)
		if err != nil {
			return nil, uuid.Nil, err
		}
		return r, r.OrgID, nil
	}
}

// DeleteRoom trashes a room that has no active contract.
func (s *Service) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	return s.trash(ctx, "room", id, rbac.ActionDelete, rbac.ModuleRoom, s.loadRoom(id, tenant.ActiveOnly), func(ctx context.Context) error {
		if err := s.noActiveContract(ctx, id); err != nil {
			return err
		}
		return s.store.Properties().SoftDeleteRoom(ctx, id)
	})
}

func (s *Service) RestoreRoom(ctx context.Context, id uuid.UUID) error {
	return s.trash(ctx, "room", id, rbac.ActionRestore, rbac.ModuleRoom, s.loadRoom(id, tenant.TrashedOnly), func(ctx context.Context) error {
		return s.store.Properties().RestoreRoom(ctx, id)
	})
}

func (s *Service) ForceDeleteRoom(ctx context.Context, id uuid.UUID) error {
	return s.trash(ctx, "room", id, rbac.ActionForceDelete, rbac.ModuleRoom, s.loadRoom(id, tenant.WithTrashed), func(ctx context.Context) error {
		contracts, err := s.store.Contracts().List(ctx, store.ContractFilter{RoomID: &id, Page: store.Page{Limit: 1}})
		if err != nil {
			return err
		}
		if len(contracts) > 0 {
			return apperr.BusinessRule("room has contract history and can only be trashed")
		}
		return s.store.Properties().ForceDeleteRoom(ctx, id)
	})
}

func (s *Service) noActiveContract(ctx context.Context, roomID uuid.UUID) error {
	_, err := s.store.Contracts().ActiveForRoom(ctx, roomID)
	switch {
	case err == nil:
		return apperr.BusinessRule("room has an active contract")
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	}
	return err
}
