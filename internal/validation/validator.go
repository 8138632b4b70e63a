package validation

import (
	"fmt"
	"strings"

	"github.com/MTES-MCT/envergo/internal/hedge"
	"github.com/MTES-MCT/envergo/internal/models"
)

// Validator checks hedges against the schema of their type.
type Validator struct {
	schemas map[models.HedgeType]Schema
}

// NewValidator returns a validator using the default schemas, replaced by
// any schema given in overrides.
func NewValidator(overrides ...Schema) (*Validator, error) {
	v := &Validator{schemas: make(map[models.HedgeType]Schema)}
	for _, t := range models.HedgeTypes {
		v.schemas[t] = DefaultSchema(t)
	}
	for _, s := range overrides {
		if !s.Type.Valid() {
			return nil, fmt.Errorf("schema for unknown hedge type %q", s.Type)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		v.schemas[s.Type] = s
	}
	return v, nil
}

// Schema returns the schema of hedges of type t.
func (v *Validator) Schema(t models.HedgeType) Schema {
	return v.schemas[t]
}

// IsValid returns true if every attribute required for the hedge type is set.
func (v *Validator) IsValid(h hedge.Hedge) bool {
	return len(v.Missing(h)) == 0
}

// Missing returns the required attributes the hedge lacks.
func (v *Validator) Missing(h hedge.Hedge) []string {
	return v.schemas[h.Type].Missing(h.AdditionalData)
}

// Check validates an attribute submission for a hedge of type t.
func (v *Validator) Check(t models.HedgeType, data models.AdditionalData) error {
	return v.schemas[t].Check(data)
}

// InvalidEntities returns the identifiers of invalid hedges, in collection order.
func (v *Validator) InvalidEntities(c hedge.CollectionView) []string {
	var ids []string
	for _, h := range c.Hedges {
		if !v.IsValid(h) {
			ids = append(ids, h.ID)
		}
	}
	return ids
}

// InvalidHedgesError blocks a save while some hedges lack attributes.
type InvalidHedgesError struct {
	IDs []string
}

func (e *InvalidHedgesError) Error() string {
	return fmt.Sprintf("hedges with missing information: %s", strings.Join(e.IDs, ", "))
}
