package library

import (
	"context"
	"strings"
	"time"
)

// MaterialPatch lists the material fields an update may change.
type MaterialPatch struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	TotalQuantity *int    `json:"total_quantity,omitempty"`
}

// AddMaterial creates a material with its whole quantity available.
func (s *Store) AddMaterial(ctx context.Context, m Material) (Material, error) {
	var out Material
	err := s.mutate(ctx, "add_material", func(tx *txn) error {
		m.ID = newID()
		m.Name = strings.TrimSpace(m.Name)
		if err := validateMaterial(m); err != nil {
			return err
		}
		m.AvailableQuantity = 0
		m.CreatedAt, m.UpdatedAt = tx.now, tx.now
		tx.st.materials.insert(m)
		out = decorateMaterial(m, 0)
		tx.record(KindMaterial, ActionCreate, m.ID, nil, out)
		return nil
	})
	return out, err
}

func validateMaterial(m Material) error {
	if m.Name == "" {
		return invalidInput("material name is required")
	}
	if m.TotalQuantity < 0 {
		return invalidInput("material quantity cannot be negative, got %d", m.TotalQuantity)
	}
	return nil
}

// UpdateMaterial applies patch to a material. The total cannot drop below
// the quantity currently lent out.
func (s *Store) UpdateMaterial(ctx context.Context, id string, patch MaterialPatch) (Material, error) {
	var out Material
	err := s.mutate(ctx, "update_material", func(tx *txn) error {
		current, ok := tx.st.materials.get(id)
		if !ok {
			return notFound(KindMaterial, id)
		}
		outstanding := tx.st.outstandingForMaterial(id)
		before := decorateMaterial(current, outstanding)
		if patch.Name != nil {
			current.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			current.Description = *patch.Description
		}
		if patch.TotalQuantity != nil {
			current.TotalQuantity = *patch.TotalQuantity
		}
		if err := validateMaterial(current); err != nil {
			return err
		}
		if current.TotalQuantity < outstanding {
			return invalidTransition("material %q has %d lent out, cannot reduce to %d", id, outstanding, current.TotalQuantity)
		}
		current.UpdatedAt = tx.now
		tx.st.materials.replace(current)
		out = decorateMaterial(current, outstanding)
		tx.record(KindMaterial, ActionUpdate, id, before, out)
		return nil
	})
	return out, err
}

// DeleteMaterial removes a material with no unreturned loans. Returned loans
// keep the material name but lose the reference.
func (s *Store) DeleteMaterial(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_material", func(tx *txn) error {
		if err := tx.guardDelete(KindMaterial, id); err != nil {
			return err
		}
		before, _ := tx.st.materials.get(id)
		tx.st.materialLoans.update(func(l *MaterialLoan) bool {
			if l.MaterialID != id {
				return false
			}
			l.MaterialID = ""
			return true
		})
		tx.st.materials.remove(id)
		tx.record(KindMaterial, ActionDelete, id, decorateMaterial(before, 0), nil)
		return nil
	})
}

// GetMaterial looks a material up by id with its current availability.
func (s *Store) GetMaterial(ctx context.Context, id string) (Material, error) {
	var out Material
	err := s.read(ctx, "get_material", func(st *state, _ time.Time) error {
		m, ok := st.materials.get(id)
		if !ok {
			return notFound(KindMaterial, id)
		}
		out = decorateMaterial(m, st.outstandingForMaterial(id))
		return nil
	})
	return out, err
}

// ListMaterials returns every material in insertion order.
func (s *Store) ListMaterials(ctx context.Context) []Material {
	var out []Material
	s.view(ctx, "list_materials", func(st *state, _ time.Time) {
		outstanding := st.outstandingByMaterial()
		out = st.materials.list()
		for i, m := range out {
			out[i] = decorateMaterial(m, outstanding[m.ID])
		}
	})
	return out
}

// AvailableQuantity reports how much of a material can still be lent.
func (s *Store) AvailableQuantity(ctx context.Context, materialID string) (int, error) {
	m, err := s.GetMaterial(ctx, materialID)
	if err != nil {
		return 0, err
	}
	return m.AvailableQuantity, nil
}
