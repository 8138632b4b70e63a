// Package models defines the data structures shared across haies:
// hedge records, modes, attributes, saved datasets and evaluations.
package models

import "fmt"

// HedgeType tells whether a hedge is planted or removed
type HedgeType string

const (
	HedgeToPlant  HedgeType = "TO_PLANT"
	HedgeToRemove HedgeType = "TO_REMOVE"
)

// HedgeTypes lists hedge types in serialization order.
var HedgeTypes = []HedgeType{HedgeToPlant, HedgeToRemove}

// Valid returns true for a known hedge type
func (t HedgeType) Valid() bool {
	return t == HedgeToPlant || t == HedgeToRemove
}

// Prefix returns the identifier letter: P for "planter", D for "détruire".
func (t HedgeType) Prefix() string {
	if t == HedgeToPlant {
		return "P"
	}
	return "D"
}

// ParseHedgeType parses a wire hedge type.
func ParseHedgeType(s string) (HedgeType, error) {
	t := HedgeType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown hedge type %q", s)
	}
	return t, nil
}

// Mode is the operating mode of one input session
type Mode string

const (
	ModePlantation Mode = "plantation"
	ModeRemoval    Mode = "removal"
	ModeReadOnly   Mode = "read_only"
)

// ParseMode parses a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePlantation, ModeRemoval, ModeReadOnly:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (expected plantation, removal or read_only)", s)
}

// EditableType returns the hedge type the user may draw and edit in this mode.
// The second value is false in read-only mode.
func (m Mode) EditableType() (HedgeType, bool) {
	switch m {
	case ModePlantation:
		return HedgeToPlant, true
	case ModeRemoval:
		return HedgeToRemove, true
	}
	return "", false
}

// CanEdit returns true if hedges of type t are editable in this mode.
func (m Mode) CanEdit(t HedgeType) bool {
	editable, ok := m.EditableType()
	return ok && editable == t
}

// ValidatedType returns the hedge type whose validity gates saving.
func (m Mode) ValidatedType() HedgeType {
	if m == ModeRemoval {
		return HedgeToRemove
	}
	return HedgeToPlant
}

// LatLng is a WGS84 geographic point in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HedgeRecord is the transport form of a hedge, as exchanged with the save
// endpoint, the compliance evaluator and the host page.
type HedgeRecord struct {
	ID             string         `json:"id"`
	LatLngs        []LatLng       `json:"latLngs"`
	Type           HedgeType      `json:"type"`
	AdditionalData AdditionalData `json:"additionalData"`
}
