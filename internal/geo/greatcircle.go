package geo

import (
	"errors"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for all great-circle math.
const EarthRadiusKm = 6371.0

// ErrPathResolution is returned for a path size that is not 2^k+1 with
// k in 3..6.
var ErrPathResolution = errors.New("path resolution must be one of 9, 17, 33, 65")

// Point is a geographic coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat" msgpack:"lat"`
	Lon float64 `json:"lon" msgpack:"lon"`
}

// Distance returns the haversine great-circle distance in whole kilometres.
func Distance(a, b Point) int {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return int(math.Floor(EarthRadiusKm * c))
}

// Midpoint returns the point halfway along the great circle from a to b.
func Midpoint(a, b Point) Point {
	phi1, lambda1 := toRad(a.Lat), toRad(a.Lon)
	phi2 := toRad(b.Lat)
	dLambda := toRad(b.Lon - a.Lon)

	bx := math.Cos(phi2) * math.Cos(dLambda)
	by := math.Cos(phi2) * math.Sin(dLambda)
	phi := math.Atan2(math.Sin(phi1)+math.Sin(phi2), math.Sqrt((math.Cos(phi1)+bx)*(math.Cos(phi1)+bx)+by*by))
	lambda := lambda1 + math.Atan2(by, math.Cos(phi1)+bx)
	return Point{Lat: toDeg(phi), Lon: NormalizeLon(toDeg(lambda))}
}

// AngleToNorth returns the initial bearing from a to b in degrees, clockwise
// from true north, in [0, 360).
func AngleToNorth(a, b Point) float64 {
	phi1, phi2 := toRad(a.Lat), toRad(b.Lat)
	dLambda := toRad(b.Lon - a.Lon)
	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return math.Mod(toDeg(math.Atan2(y, x))+360, 360)
}

// PathPoints samples the great circle from a to b by recursive midpoint
// bisection. The result has n points and starts and ends at a and b.
func PathPoints(a, b Point, n int) ([]Point, error) {
	switch n {
	case 9, 17, 33, 65:
	default:
		return nil, ErrPathResolution
	}
	pts := make([]Point, n)
	pts[0], pts[n-1] = a, b
	bisect(pts, 0, n-1)

	// Keep the last segment continuous across the anti-meridian.
	last, prev := &pts[n-1], pts[n-2]
	switch {
	case last.Lon-prev.Lon > 180:
		last.Lon -= 360
	case last.Lon-prev.Lon < -180:
		last.Lon += 360
	}
	return pts, nil
}

func bisect(pts []Point, lo, hi int) {
	if hi-lo < 2 {
		return
	}
	mid := (lo + hi) / 2
	pts[mid] = Midpoint(pts[lo], pts[hi])
	bisect(pts, lo, mid)
	bisect(pts, mid, hi)
}

// Interpolate returns the position at fraction f in [0, 1] along a sampled
// path together with the heading towards the next sample.
func Interpolate(path []Point, f float64) (Point, float64) {
	switch len(path) {
	case 0:
		return Point{}, 0
	case 1:
		return path[0], 0
	}
	f = math.Max(0, math.Min(1, f))
	pos := f * float64(len(path)-1)
	i := int(math.Floor(pos))
	if i >= len(path)-1 {
		i = len(path) - 2
	}
	t := pos - float64(i)
	from, to := path[i], path[i+1]

	dLon := to.Lon - from.Lon
	if dLon > 180 {
		dLon -= 360
	} else if dLon < -180 {
		dLon += 360
	}
	if t >= 1 {
		return to, AngleToNorth(from, to)
	}
	p := Point{
		Lat: from.Lat + (to.Lat-from.Lat)*t,
		Lon: NormalizeLon(from.Lon + dLon*t),
	}
	return p, AngleToNorth(p, to)
}

// NormalizeLon maps a longitude into [-180, 180].
func NormalizeLon(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }
