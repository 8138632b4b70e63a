package hedge

import (
	"math"

	"github.com/MTES-MCT/envergo/internal/geodesic"
	"github.com/MTES-MCT/envergo/internal/models"
)

// CompensationRate returns the planted length as a percentage of the removed
// length. It is 0 when nothing is removed.
func CompensationRate(toPlant, toRemove float64) float64 {
	if toRemove <= 0 {
		return 0
	}
	return toPlant / toRemove * 100
}

// Summary aggregates a saved dataset.
type Summary struct {
	HedgesToPlant  int
	LengthToPlant  float64
	HedgesToRemove int
	LengthToRemove float64
	// LengthToRemovePac is the removed length located on PAC parcels,
	// alignments included.
	LengthToRemovePac float64
	// LengthsToPlant and LengthsToRemove are keyed by typeHaie.
	LengthsToPlant  map[string]float64
	LengthsToRemove map[string]float64
}

// Summarize computes lengths and counts from transport records.
func Summarize(records []models.HedgeRecord) Summary {
	s := Summary{
		LengthsToPlant:  make(map[string]float64),
		LengthsToRemove: make(map[string]float64),
	}
	for _, r := range records {
		length := geodesic.LengthOf(r.LatLngs)
		haieType, _ := r.AdditionalData.String(models.AttrTypeHaie)

		switch r.Type {
		case models.HedgeToPlant:
			s.HedgesToPlant++
			s.LengthToPlant += length
			s.LengthsToPlant[haieType] += length
		case models.HedgeToRemove:
			s.HedgesToRemove++
			s.LengthToRemove += length
			s.LengthsToRemove[haieType] += length
			if r.AdditionalData.Flag(models.AttrSurParcellePac) {
				s.LengthToRemovePac += length
			}
		}
	}
	return s
}

// CompensationRate returns the compensation rate of the dataset.
func (s Summary) CompensationRate() float64 {
	return CompensationRate(s.LengthToPlant, s.LengthToRemove)
}

// SaveResponse returns the save endpoint response for the dataset saved as id.
// Lengths are rounded to the meter.
func (s Summary) SaveResponse(id string) models.SaveResponse {
	return models.SaveResponse{
		InputID:            id,
		HedgesToPlant:      s.HedgesToPlant,
		LengthToPlant:      int(math.Round(s.LengthToPlant)),
		HedgesToRemove:     s.HedgesToRemove,
		LengthToRemove:     int(math.Round(s.LengthToRemove)),
		LineaireDetruitPac: int(math.Round(s.LengthToRemovePac)),
	}
}
