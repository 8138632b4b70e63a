package hedge

import (
	"math"

	"github.com/MTES-MCT/envergo/internal/geodesic"
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection exports records as GeoJSON line strings. Properties carry
// the identifier, the hedge type, the rounded length and every attribute.
func FeatureCollection(records []models.HedgeRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		f := geojson.NewFeature(geodesic.LineString(r.LatLngs))
		f.ID = r.ID
		for k, v := range r.AdditionalData {
			f.Properties[k] = v
		}
		f.Properties["id"] = r.ID
		f.Properties["type"] = string(r.Type)
		f.Properties["length"] = math.Round(geodesic.LengthOf(r.LatLngs))
		fc.Append(f)
	}
	return fc
}

// Bound returns the bounding box of every hedge in the store.
// ok is false when the store holds no vertex.
func Bound(s *Store) (orb.Bound, bool) {
	var lines [][]models.LatLng
	for _, t := range models.HedgeTypes {
		for _, h := range s.Collection(t).Hedges {
			lines = append(lines, h.LatLngs)
		}
	}
	return geodesic.Bound(lines...)
}
