package transit

import "math"

// Interpolate maps a progress fraction in [0,1) to a position along
// the path. Progress covers one full traversal in stored order; the
// blend within the active segment is linear on lat and lng
// independently, which is accurate enough at county scale.
//
// Paths with fewer than two points are a caller bug and panic.
func Interpolate(path Path, progress float64) Coordinate {
	if len(path) < 2 {
		panic("transit: interpolate requires a path with at least two points")
	}
	segments := len(path) - 1
	scaled := progress * float64(segments)
	idx := int(math.Floor(scaled))
	if idx < 0 {
		idx = 0
	}
	if idx > segments-1 {
		idx = segments - 1
	}
	frac := scaled - float64(idx)
	next := (idx + 1) % len(path)
	return lerp(path[idx], path[next], frac)
}

func lerp(a, b Coordinate, frac float64) Coordinate {
	return Coordinate{
		Lat: a.Lat + (b.Lat-a.Lat)*frac,
		Lng: a.Lng + (b.Lng-a.Lng)*frac,
	}
}

// Heading returns the compass bearing of the path segment active at
// the given progress fraction, in [0,360).
func Heading(path Path, progress float64) float64 {
	if len(path) < 2 {
		panic("transit: heading requires a path with at least two points")
	}
	segments := len(path) - 1
	idx := int(math.Floor(progress * float64(segments)))
	if idx < 0 {
		idx = 0
	}
	if idx > segments-1 {
		idx = segments - 1
	}
	return bearingDeg(path[idx], path[idx+1])
}

func bearingDeg(a, b Coordinate) float64 {
	y := math.Sin((b.Lng-a.Lng)*math.Pi/180.0) * math.Cos(b.Lat*math.Pi/180.0)
	x := math.Cos(a.Lat*math.Pi/180.0)*math.Sin(b.Lat*math.Pi/180.0) -
		math.Sin(a.Lat*math.Pi/180.0)*math.Cos(b.Lat*math.Pi/180.0)*math.Cos((b.Lng-a.Lng)*math.Pi/180.0)
	brng := math.Atan2(y, x) * 180.0 / math.Pi
	if brng < 0 {
		brng += 360
	}
	return brng
}
