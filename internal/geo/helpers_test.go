package geo

import "math"

func cosDeg(deg float64) float64 {
	return math.Cos(toRadians(deg))
}

// destination returns the point reached by travelling distM from p along bearingDeg.
func destination(p Point, distM, bearingDeg float64) Point {
	delta := distM / EarthRadiusMeters
	theta := toRadians(bearingDeg)
	phi1 := toRadians(p.Lat)
	lambda1 := toRadians(p.Lon)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(phi1), math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2))

	return Point{Lat: phi2 * 180 / math.Pi, Lon: lambda2 * 180 / math.Pi}
}
