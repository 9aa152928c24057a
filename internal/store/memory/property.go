package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type propertyRepo struct{ s *Store }

func (r propertyRepo) CreateProperty(ctx context.Context, p *models.Property) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &p.ID, &p.OrgID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return err
		}
		p.Meta = cloneMeta(p.Meta)
		st.properties.insert(*p, st.next())
		return nil
	})
}

func (r propertyRepo) GetProperty(ctx context.Context, id uuid.UUID, trashed tenant.Trashed) (*models.Property, error) {
	var out models.Property
	err := r.s.with(ctx, func(st *state) (err error) {
		out, err = st.properties.get(ctx, id, trashed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r propertyRepo) ListProperties(ctx context.Context, trashed tenant.Trashed, page store.Page) ([]models.Property, error) {
	var out []models.Property
	err := r.s.with(ctx, func(st *state) error {
		out = paginate(st.properties.list(ctx, trashed, nil), page)
		return nil
	})
	return out, err
}

func (r propertyRepo) UpdateProperty(ctx context.Context, p *models.Property) error {
	return r.s.with(ctx, func(st *state) error {
		cur, err := st.properties.get(ctx, p.ID, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		cur.Name, cur.Address, cur.Meta = p.Name, p.Address, cloneMeta(p.Meta)
		cur.UpdatedAt = r.s.now()
		*p = cur
		return st.properties.replace(ctx, cur, tenant.ActiveOnly)
	})
}

func (r propertyRepo) SoftDeleteProperty(ctx context.Context, id uuid.UUID) error {
	return r.s.with(ctx, func(st *state) error {
		p, err := st.properties.get(ctx, id, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		now := r.s.now()
		p.DeletedAt, p.UpdatedAt = &now, now
		return st.properties.replace(ctx, p, tenant.ActiveOnly)
	})
}

func (r propertyRepo) RestoreProperty(ctx context.Context, id uuid.UUID) error {
	return r.s.with(ctx, func(st *state) error {
		p, err := st.properties.get(ctx, id, tenant.TrashedOnly)
		if err != nil {
			return err
		}
		p.DeletedAt, p.UpdatedAt = nil, r.s.now()
		return st.properties.replace(ctx, p, tenant.TrashedOnly)
	})
}

func (r propertyRepo) ForceDeleteProperty(ctx context.Context, id uuid.UUID) error {
	return r.s.with(ctx, func(st *state) error {
		if err := st.properties.remove(ctx, id); err != nil {
			return err
		}
		st.floors.removeWhere(func(f models.Floor) bool { return f.PropertyID == id })
		st.rooms.removeWhere(func(rm models.Room) bool { return rm.PropertyID == id })
		return nil
	})
}

func (r propertyRepo) CreateFloor(ctx context.Context, f *models.Floor) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &f.ID, &f.OrgID, &f.CreatedAt); err != nil {
			return err
		}
		st.floors.insert(*f, st.next())
		return nil
	})
}

func (r propertyRepo) GetFloor(ctx context.Context, id uuid.UUID) (*models.Floor, error) {
	var out models.Floor
	err := r.s.with(ctx, func(st *state) (err error) {
		out, err = st.floors.get(ctx, id, tenant.ActiveOnly)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r propertyRepo) ListFloors(ctx context.Context, propertyID uuid.UUID) ([]models.Floor, error) {
	var out []models.Floor
	err := r.s.with(ctx, func(st *state) error {
		out = st.floors.list(ctx, tenant.ActiveOnly, func(f models.Floor) bool { return f.PropertyID == propertyID })
		return nil
	})
	return out, err
}

func (r propertyRepo) DeleteFloor(ctx context.Context, id uuid.UUID) error {
	return r.s.with(ctx, func(st *state) error {
		if err := st.floors.remove(ctx, id); err != nil {
			return err
		}
		for rid, e := range st.rooms.rows {
			if e.v.FloorID != nil && *e.v.FloorID == id {
				e.v.FloorID = nil
				st.rooms.rows[rid] = e
			}
		}
		return nil
	})
}

func (r propertyRepo) CreateRoom(ctx context.Context, rm *models.Room) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &rm.ID, &rm.OrgID, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
			return err
		}
		dup := st.rooms.list(tenant.System(ctx), tenant.ActiveOnly, func(x models.Room) bool {
			return x.PropertyID == rm.PropertyID && x.Code == rm.Code
		})
		if len(dup) > 0 {
			return conflict("create room %q", rm.Code)
		}
		if rm.Status == "" {
			rm.Status = models.RoomVacant
		}
		rm.Meta = cloneMeta(rm.Meta)
		st.rooms.insert(*rm, st.next())
		return nil
	})
}

func (r propertyRepo) GetRoom(ctx context.Context, id uuid.UUID, trashed tenant.Trashed) (*models.Room, error) {
	var out models.Room
	err := r.s.with(ctx, func(st *state) (err error) {
		out, err = st.rooms.get(ctx, id, trashed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r propertyRepo) ListRooms(ctx context.Context, f store.RoomFilter) ([]models.Room, error) {
	var out []models.Room
	err := r.s.with(ctx, func(st *state) error {
		rows := st.rooms.list(ctx, f.Trashed, func(rm models.Room) bool {
			if f.PropertyID != nil && rm.PropertyID != *f.PropertyID {
				return false
			}
			return f.Status == "" || rm.Status == f.Status
		})
		out = paginate(rows, f.Page)
		return nil
	})
	return out, err
}

func (r propertyRepo) UpdateRoom(ctx context.Context, rm *models.Room) error {
	return r.s.with(ctx, func(st *state) error {
		cur, err := st.rooms.get(ctx, rm.ID, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		cur.FloorID, cur.Code, cur.Name = rm.FloorID, rm.Code, rm.Name
		cur.BaseRent, cur.Capacity, cur.Meta = rm.BaseRent, rm.Capacity, cloneMeta(rm.Meta)
		cur.UpdatedAt = r.s.now()
		*rm = cur
		return st.rooms.replace(ctx, cur, tenant.ActiveOnly)
	})
}

func (r propertyRepo) SetRoomStatus(ctx context.Context, id uuid.UUID, status models.RoomStatus) error {
	return r.s.with(ctx, func(st *state) error {
		rm, err := st.rooms.get(ctx, id, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		rm.Status, rm.UpdatedAt = status, r.s.now()
		return st.rooms.replace(ctx, rm, tenant.ActiveOnly)
	})
}

func (r propertyRepo) SoftDeleteRoom(ctx context.Context, id uuid.UUID) error {
	return r.s.with(ctx, func(st *state) error {
		rm, err := st.rooms.get(ctx, id, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		now := r.s.now()
		rm.DeletedAt, rm.UpdatedAt = &now, now
		return st.rooms.replace(ctx, rm, tenant.ActiveOnly)
	})
}

func (r propertyRepo) RestoreRoom(ctx context.Context, id uuid.UUID) error {
	return r.s.with(ctx, func(st *state) error {
		rm, err := st.rooms.get(ctx, id, tenant.TrashedOnly)
		if err != nil {
			return err
		}
		rm.DeletedAt, rm.UpdatedAt = nil, r.s.now()
		return st.rooms.replace(ctx, rm, tenant.TrashedOnly)
	})
}

func (r propertyRepo) ForceDeleteRoom(ctx context.Context, id uuid.UUID) error {
	return r.s.with(ctx, func(st *state) error {
		return st.rooms.remove(ctx, id)
	})
}
