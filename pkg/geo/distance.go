package geo

import (
	"math"
)

// Unit selects the radius constant used for distance math.
type Unit string

const (
	UnitKilometers Unit = "km"
	UnitMiles      Unit = "miles"
)

const (
	earthRadiusKM    = 6371.0
	earthRadiusMiles = 3959.0
)

func (u Unit) radius() float64 {
	if u == UnitMiles {
		return earthRadiusMiles
	}
	return earthRadiusKM
}

// IsValid reports whether the unit is supported.
func (u Unit) IsValid() bool {
	return u == UnitKilometers || u == UnitMiles
}

// Distance computes the haversine distance between two points, rounded to
// one decimal. Returns nil when any coordinate is missing or not a number.
func Distance(lat1, lng1, lat2, lng2 *float64, unit Unit) *float64 {
	if lat1 == nil || lng1 == nil || lat2 == nil || lng2 == nil {
		return nil
	}
	for _, v := range []float64{*lat1, *lng1, *lat2, *lng2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
	}

	phi1 := toRadians(*lat1)
	phi2 := toRadians(*lat2)
	dPhi := toRadians(*lat2 - *lat1)
	dLambda := toRadians(*lng2 - *lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	d := math.Round(unit.radius()*c*10) / 10
	return &d
}

// DistanceSQL renders a spherical-law-of-cosines distance expression over the
// lat/lng columns, using the same radius constant as Distance so DB-side
// ordering agrees with the in-process value.
func DistanceSQL(lat, lng float64, unit Unit) (string, []any) {
	expr := "(? * acos(least(1.0, greatest(-1.0, " +
		"cos(radians(?)) * cos(radians(lat)) * cos(radians(lng) - radians(?)) + " +
		"sin(radians(?)) * sin(radians(lat))))))"
	return expr, []any{unit.radius(), lat, lng, lat}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
