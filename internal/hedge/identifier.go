package hedge

import (
	"strconv"

	"github.com/MTES-MCT/envergo/internal/models"
)

// Identifier returns the label of the hedge at 0-based position index in the
// collection of type t: P1, P2, … for hedges to plant, D1, D2, … for hedges
// to remove.
func Identifier(t models.HedgeType, index int) string {
	return t.Prefix() + strconv.Itoa(index+1)
}

// typeOfIdentifier returns the hedge type encoded in an identifier prefix.
func typeOfIdentifier(id string) (models.HedgeType, bool) {
	if len(id) < 2 {
		return "", false
	}
	for _, t := range models.HedgeTypes {
		if id[:1] == t.Prefix() {
			return t, true
		}
	}
	return "", false
}
