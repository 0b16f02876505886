package geo

import "github.com/pymaxion/geographiclib-go/geodesic"

// Distance returns the geodesic distance in meters between two WGS84
// coordinates, solved on the ellipsoid (Karney's method). Accurate to well
// under a meter at the ranges the labeler cares about, unlike a spherical
// haversine shortcut.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	return geodesic.WGS84.Inverse(lat1, lon1, lat2, lon2).S12
}
