// Package geodesic computes hedge lengths on the WGS84 ellipsoid.
//
// Distances use Karney's geodesic algorithm so that lengths match the ones
// computed server-side with GeographicLib/pyproj.
package geodesic

import (
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/paulmach/orb"
	"github.com/tidwall/geodesic"
)

// Distance returns the geodesic distance in meters between a and b.
func Distance(a, b models.LatLng) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lng, b.Lat, b.Lng, &s12, nil, nil)
	return s12
}

// LengthOf returns the length in meters of the polyline through points.
// Fewer than two points have no length.
func LengthOf(points []models.LatLng) float64 {
	length := 0.0
	for i := 0; i+1 < len(points); i++ {
		length += Distance(points[i], points[i+1])
	}
	return length
}

// Point converts a LatLng to an orb point (lng, lat order).
func Point(p models.LatLng) orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// LineString converts a polyline to an orb line string.
func LineString(points []models.LatLng) orb.LineString {
	ls := make(orb.LineString, 0, len(points))
	for _, p := range points {
		ls = append(ls, Point(p))
	}
	return ls
}

// Bound returns the bounding box of all points. ok is false if there are none.
func Bound(points ...[]models.LatLng) (bound orb.Bound, ok bool) {
	for _, line := range points {
		for _, p := range line {
			if !ok {
				bound = Point(p).Bound()
				ok = true
				continue
			}
			bound = bound.Extend(Point(p))
		}
	}
	return bound, ok
}
