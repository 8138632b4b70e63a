// Package validation declares the attributes each hedge type carries and
// checks hedges against them.
package validation

import (
	"fmt"
	"slices"

	"github.com/MTES-MCT/envergo/internal/models"
)

// Kind is the value kind of an attribute
type Kind string

const (
	KindChoice Kind = "choice"
	KindBool   Kind = "bool"
)

// Attribute describes one hedge attribute: it drives form generation and validation.
type Attribute struct {
	Name     string   `toml:"name" json:"name"`
	Label    string   `toml:"label" json:"label"`
	Kind     Kind     `toml:"kind" json:"kind"`
	Required bool     `toml:"required" json:"required"`
	Choices  []string `toml:"choices" json:"choices,omitempty"`
}

// Schema is the ordered list of attributes of one hedge type.
type Schema struct {
	Type       models.HedgeType
	Attributes []Attribute
}

var plantableHaieTypes = []string{
	models.HaieBuissonnante,
	models.HaieArbustive,
	models.HaieAlignement,
	models.HaieMixte,
}

// DefaultSchema returns the attributes asked for hedges of type t.
func DefaultSchema(t models.HedgeType) Schema {
	if t == models.HedgeToPlant {
		return Schema{Type: t, Attributes: []Attribute{
			{Name: models.AttrTypeHaie, Label: "Type de haie", Kind: KindChoice, Required: true, Choices: plantableHaieTypes},
			{Name: models.AttrSousLigneElectrique, Label: "Située sous une ligne électrique", Kind: KindBool, Required: true},
			{Name: models.AttrProximiteVoirie, Label: "Située en bordure de voirie", Kind: KindBool, Required: true},
			{Name: models.AttrProximiteMare, Label: "Mare à moins de 200 m", Kind: KindBool, Required: true},
			{Name: models.AttrProximitePointEau, Label: "Mare ou ruisseau à moins de 10 m", Kind: KindBool, Required: true},
			{Name: models.AttrConnexionBoisement, Label: "Connectée à un boisement ou à une autre haie", Kind: KindBool, Required: true},
		}}
	}
	return Schema{Type: t, Attributes: []Attribute{
		{Name: models.AttrTypeHaie, Label: "Type de haie", Kind: KindChoice, Required: true, Choices: models.HaieTypes},
		{Name: models.AttrSurParcellePac, Label: "Située sur une parcelle PAC", Kind: KindBool, Required: true},
		{Name: models.AttrVieilArbre, Label: "Contient un ou plusieurs vieux arbres, fissurés ou avec cavités", Kind: KindBool, Required: true},
		{Name: models.AttrProximiteMare, Label: "Mare à moins de 200 m", Kind: KindBool, Required: true},
		{Name: models.AttrProximitePointEau, Label: "Mare ou ruisseau à moins de 10 m", Kind: KindBool, Required: true},
		{Name: models.AttrConnexionBoisement, Label: "Connectée à un boisement ou à une autre haie", Kind: KindBool, Required: true},
	}}
}

// Attribute returns the named attribute.
func (s Schema) Attribute(name string) (Attribute, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Validate checks the schema declaration itself.
func (s Schema) Validate() error {
	seen := make(map[string]bool)
	for _, a := range s.Attributes {
		if a.Name == "" {
			return fmt.Errorf("schema %s: attribute without name", s.Type)
		}
		if seen[a.Name] {
			return fmt.Errorf("schema %s: duplicate attribute %q", s.Type, a.Name)
		}
		seen[a.Name] = true

		switch a.Kind {
		case KindBool:
		case KindChoice:
			if len(a.Choices) == 0 {
				return fmt.Errorf("schema %s: choice attribute %q has no choices", s.Type, a.Name)
			}
		default:
			return fmt.Errorf("schema %s: attribute %q has unknown kind %q", s.Type, a.Name, a.Kind)
		}
	}
	return nil
}

// present reports whether value satisfies a required attribute:
// booleans count once set, choices must be a non-empty allowed value.
func (a Attribute) present(value interface{}, ok bool) bool {
	if !ok || value == nil {
		return false
	}
	switch a.Kind {
	case KindBool:
		_, isBool := value.(bool)
		return isBool
	case KindChoice:
		s, isString := value.(string)
		return isString && s != "" && slices.Contains(a.Choices, s)
	}
	return false
}

// check validates the kind of a submitted value.
func (a Attribute) check(value interface{}) error {
	switch a.Kind {
	case KindBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("attribute %q: expected a boolean, got %T", a.Name, value)
		}
	case KindChoice:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("attribute %q: expected a string, got %T", a.Name, value)
		}
		if s != "" && !slices.Contains(a.Choices, s) {
			return fmt.Errorf("attribute %q: %q is not one of %v", a.Name, s, a.Choices)
		}
	}
	return nil
}

// Missing returns the required attributes absent from data, in schema order.
func (s Schema) Missing(data models.AdditionalData) []string {
	var missing []string
	for _, a := range s.Attributes {
		if !a.Required {
			continue
		}
		v, ok := data[a.Name]
		if !a.present(v, ok) {
			missing = append(missing, a.Name)
		}
	}
	return missing
}

// Check validates a form submission: every value must match its attribute
// kind, and unknown attributes are rejected.
func (s Schema) Check(data models.AdditionalData) error {
	for name, v := range data {
		a, ok := s.Attribute(name)
		if !ok {
			return fmt.Errorf("unknown attribute %q for %s hedges", name, s.Type)
		}
		if err := a.check(v); err != nil {
			return err
		}
	}
	return nil
}
