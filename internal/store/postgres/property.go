package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

const (
	propertyColumns = "id, org_id, name, address, meta, created_at, updated_at, deleted_at"
	floorColumns    = "id, org_id, property_id, name, level, created_at"
	roomColumns     = "id, org_id, property_id, floor_id, code, name, status, base_rent, capacity, meta, created_at, updated_at, deleted_at"
)

type propertyRepo struct{ s *Store }

func (r propertyRepo) CreateProperty(ctx context.Context, p *models.Property) error {
	if err := stamp(ctx, &p.ID, &p.OrgID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return err
	}
	p.Meta = meta(p.Meta)
	return insert(ctx, r.s.conn(ctx), tenant.Properties, propertyColumns,
		p.ID, p.OrgID, p.Name, p.Address, p.Meta, p.CreatedAt, p.UpdatedAt, p.DeletedAt)
}

func (r propertyRepo) GetProperty(ctx context.Context, id uuid.UUID, trashed tenant.Trashed) (*models.Property, error) {
	sql, args := tenant.Select(ctx, tenant.Properties, propertyColumns).Where("id = ?", id).Trashed(trashed).Build()
	return one[models.Property](ctx, r.s.conn(ctx), sql, args, "property")
}

func (r propertyRepo) ListProperties(ctx context.Context, trashed tenant.Trashed, p store.Page) ([]models.Property, error) {
	sql, args := page(tenant.Select(ctx, tenant.Properties, propertyColumns).Trashed(trashed).OrderBy("created_at DESC"), p).Build()
	return many[models.Property](ctx, r.s.conn(ctx), sql, args, "properties")
}

func (r propertyRepo) UpdateProperty(ctx context.Context, p *models.Property) error {
	sql, args := tenant.Update(ctx, tenant.Properties).
		Set("name", p.Name).Set("address", p.Address).Set("meta", meta(p.Meta)).
		SetExpr("updated_at = now()").
		Where("id = ?", p.ID).
		Returning(propertyColumns).Build()
	got, err := one[models.Property](ctx, r.s.conn(ctx), sql, args, "property")
	if err != nil {
		return err
	}
	*p = *got
	return nil
}

func (r propertyRepo) setDeleted(ctx context.Context, t tenant.Table, id uuid.UUID, deleted bool) error {
	q := tenant.Update(ctx, t).SetExpr("updated_at = now()").Where("id = ?", id)
	if deleted {
		q.SetExpr("deleted_at = now()").Trashed(tenant.ActiveOnly)
	} else {
		q.SetExpr("deleted_at = NULL").Trashed(tenant.TrashedOnly)
	}
	sql, args := q.Build()
	tag, err := r.s.conn(ctx).Exec(ctx, sql, args...)
	return execExpectOne(tag, err, "soft delete %s %s", t.Name, id)
}

func (r propertyRepo) forceDelete(ctx context.Context, t tenant.Table, id uuid.UUID) error {
	sql, args := tenant.Delete(ctx, t).Where("id = ?", id).Build()
	tag, err := r.s.conn(ctx).Exec(ctx, sql, args...)
	return execExpectOne(tag, err, "delete %s %s", t.Name, id)
}

func (r propertyRepo) SoftDeleteProperty(ctx context.Context, id uuid.UUID) error {
	return r.setDeleted(ctx, tenant.Properties, id, true)
}

func (r propertyRepo) RestoreProperty(ctx context.Context, id uuid.UUID) error {
	return r.setDeleted(ctx, tenant.Properties, id, false)
}

func (r propertyRepo) ForceDeleteProperty(ctx context.Context, id uuid.UUID) error {
	return r.forceDelete(ctx, tenant.Properties, id)
}

func (r propertyRepo) CreateFloor(ctx context.Context, f *models.Floor) error {
	if err := stamp(ctx, &f.ID, &f.OrgID, &f.CreatedAt); err != nil {
		return err
	}
	return insert(ctx, r.s.conn(ctx), tenant.Floors, floorColumns,
		f.ID, f.OrgID, f.PropertyID, f.Name, f.Level, f.CreatedAt)
}

func (r propertyRepo) GetFloor(ctx context.Context, id uuid.UUID) (*models.Floor, error) {
	sql, args := tenant.Select(ctx, tenant.Floors, floorColumns).Where("id = ?", id).Build()
	return one[models.Floor](ctx, r.s.conn(ctx), sql, args, "floor")
}

func (r propertyRepo) ListFloors(ctx context.Context, propertyID uuid.UUID) ([]models.Floor, error) {
	sql, args := tenant.Select(ctx, tenant.Floors, floorColumns).
		Where("property_id = ?", propertyID).OrderBy("level, name").Build()
	return many[models.Floor](ctx, r.s.conn(ctx), sql, args, "floors")
}

func (r propertyRepo) DeleteFloor(ctx context.Context, id uuid.UUID) error {
	return r.forceDelete(ctx, tenant.Floors, id)
}

func (r propertyRepo) CreateRoom(ctx context.Context, rm *models.Room) error {
	if err := stamp(ctx, &rm.ID, &rm.OrgID, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
		return err
	}
	if rm.Status == "" {
		rm.Status = models.RoomVacant
	}
	rm.Meta = meta(rm.Meta)
	return insert(ctx, r.s.conn(ctx), tenant.Rooms, roomColumns,
		rm.ID, rm.OrgID, rm.PropertyID, rm.FloorID, rm.Code, rm.Name, rm.Status, rm.BaseRent,
		rm.Capacity, rm.Meta, rm.CreatedAt, rm.UpdatedAt, rm.DeletedAt)
}

func (r propertyRepo) GetRoom(ctx context.Context, id uuid.UUID, trashed tenant.Trashed) (*models.Room, error) {
	sql, args := tenant.Select(ctx, tenant.Rooms, roomColumns).Where("id = ?", id).Trashed(trashed).Build()
	return one[models.Room](ctx, r.s.conn(ctx), sql, args, "room")
}

func (r propertyRepo) ListRooms(ctx context.Context, f store.RoomFilter) ([]models.Room, error) {
	sel := tenant.Select(ctx, tenant.Rooms, roomColumns).Trashed(f.Trashed).OrderBy("code")
	if f.PropertyID != nil {
		sel.Where("property_id = ?", *f.PropertyID)
	}
	if f.Status != "" {
		sel.Where("status = ?", f.Status)
	}
	sql, args := page(sel, f.Page).Build()
	return many[models.Room](ctx, r.s.conn(ctx), sql, args, "rooms")
}

func (r propertyRepo) UpdateRoom(ctx context.Context, rm *models.Room) error {
	sql, args := tenant.Update(ctx, tenant.Rooms).
		Set("floor_id", rm.FloorID).Set("code", rm.Code).Set("name", rm.Name).
		Set("base_rent", rm.BaseRent).Set("capacity", rm.Capacity).Set("meta", meta(rm.Meta)).
		SetExpr("updated_at = now()").
		Where("id = ?", rm.ID).
		Returning(roomColumns).Build()
	got, err := one[models.Room](ctx, r.s.conn(ctx), sql, args, "room")
	if err != nil {
		return err
	}
	*rm = *got
	return nil
}

func (r propertyRepo) SetRoomStatus(ctx context.Context, id uuid.UUID, status models.RoomStatus) error {
	sql, args := tenant.Update(ctx, tenant.Rooms).
		Set("status", status).SetExpr("updated_at = now()").
		Where("id = ?", id).Build()
	tag, err := r.s.conn(ctx).Exec(ctx, sql, args...)
	return execExpectOne(tag, err, "set room %s status", id)
}

func (r propertyRepo) SoftDeleteRoom(ctx context.Context, id uuid.UUID) error {
	return r.setDeleted(ctx, tenant.Rooms, id, true)
}

func (r propertyRepo) RestoreRoom(ctx context.Context, id uuid.UUID) error {
	return r.setDeleted(ctx, tenant.Rooms, id, false)
}

func (r propertyRepo) ForceDeleteRoom(ctx context.Context, id uuid.UUID) error {
	return r.forceDelete(ctx, tenant.Rooms, id)
}
