package models

// Attribute names carried in AdditionalData. The names match the keys
// the host pages and the rules evaluator already use.
const (
	AttrTypeHaie            = "typeHaie"
	AttrSurParcellePac      = "surParcellePac"
	AttrProximiteMare       = "proximiteMare"
	AttrVieilArbre          = "vieilArbre"
	AttrProximitePointEau   = "proximitePointEau"
	AttrConnexionBoisement  = "connexionBoisement"
	AttrSousLigneElectrique = "sousLigneElectrique"
	AttrProximiteVoirie     = "proximiteVoirie"
)

// Hedge type values for the typeHaie attribute.
const (
	HaieDegradee     = "degradee"
	HaieBuissonnante = "buissonnante"
	HaieArbustive    = "arbustive"
	HaieAlignement   = "alignement"
	HaieMixte        = "mixte"
)

// HaieTypes lists every typeHaie value.
var HaieTypes = []string{HaieDegradee, HaieBuissonnante, HaieArbustive, HaieAlignement, HaieMixte}

// AdditionalData holds the regulatory attributes of a hedge.
// Values are strings (categorical) or booleans (flags).
type AdditionalData map[string]interface{}

// Clone returns a shallow copy; nil stays nil.
func (d AdditionalData) Clone() AdditionalData {
	if d == nil {
		return nil
	}
	out := make(AdditionalData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String returns the string value of key, if set to a string.
func (d AdditionalData) String(key string) (string, bool) {
	v, ok := d[key].(string)
	return v, ok
}

// Bool returns the boolean value of key, if set to a boolean.
func (d AdditionalData) Bool(key string) (bool, bool) {
	v, ok := d[key].(bool)
	return v, ok
}

// Flag returns the boolean value of key, false when absent.
func (d AdditionalData) Flag(key string) bool {
	v, _ := d.Bool(key)
	return v
}
