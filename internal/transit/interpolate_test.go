package transit

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestInterpolateAtZeroReturnsFirstPoint(t *testing.T) {
	paths := []Path{
		VermonterPath,
		BusRoute31Path,
		{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}},
	}
	for _, path := range paths {
		got := Interpolate(path, 0)
		if !almostEqual(got.Lat, path[0].Lat) || !almostEqual(got.Lng, path[0].Lng) {
			t.Errorf("Interpolate(path, 0) = %v, want %v", got, path[0])
		}
	}
}

func TestInterpolateMidSegment(t *testing.T) {
	path := Path{{Lat: 0, Lng: 0}, {Lat: 10, Lng: 20}}
	got := Interpolate(path, 0.5)
	if !almostEqual(got.Lat, 5) || !almostEqual(got.Lng, 10) {
		t.Errorf("expected midpoint {5 10}, got %v", got)
	}
}

func TestInterpolateSecondSegment(t *testing.T) {
	// Three points, two segments; progress 0.75 is halfway through
	// the second segment.
	path := Path{{Lat: 0, Lng: 0}, {Lat: 10, Lng: 0}, {Lat: 10, Lng: 10}}
	got := Interpolate(path, 0.75)
	if !almostEqual(got.Lat, 10) || !almostEqual(got.Lng, 5) {
		t.Errorf("expected {10 5}, got %v", got)
	}
}

func TestInterpolateStaysOnActiveSegment(t *testing.T) {
	path := VermonterPath
	segments := len(path) - 1
	for i := 0; i < 100; i++ {
		progress := float64(i) / 100
		got := Interpolate(path, progress)

		idx := int(math.Floor(progress * float64(segments)))
		if idx > segments-1 {
			idx = segments - 1
		}
		a, b := path[idx], path[idx+1]

		// bounded by the segment endpoints
		if got.Lat < math.Min(a.Lat, b.Lat)-1e-9 || got.Lat > math.Max(a.Lat, b.Lat)+1e-9 {
			t.Fatalf("progress %v: lat %v outside segment [%v, %v]", progress, got.Lat, a.Lat, b.Lat)
		}
		if got.Lng < math.Min(a.Lng, b.Lng)-1e-9 || got.Lng > math.Max(a.Lng, b.Lng)+1e-9 {
			t.Fatalf("progress %v: lng %v outside segment [%v, %v]", progress, got.Lng, a.Lng, b.Lng)
		}

		// collinear with the segment (cross product of the deltas)
		cross := (b.Lat-a.Lat)*(got.Lng-a.Lng) - (b.Lng-a.Lng)*(got.Lat-a.Lat)
		if math.Abs(cross) > 1e-9 {
			t.Fatalf("progress %v: point %v not collinear with segment %v-%v", progress, got, a, b)
		}
	}
}

func TestInterpolatePanicsOnShortPath(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for single-point path")
		}
	}()
	Interpolate(Path{{Lat: 1, Lng: 1}}, 0.5)
}

func TestHeadingRange(t *testing.T) {
	for _, path := range []Path{VermonterPath, BusRoute31Path} {
		for i := 0; i < 50; i++ {
			progress := float64(i) / 50
			h := Heading(path, progress)
			if h < 0 || h >= 360 {
				t.Fatalf("heading %v at progress %v out of [0,360)", h, progress)
			}
		}
	}
}

func TestHeadingCardinal(t *testing.T) {
	north := Path{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 0}}
	if h := Heading(north, 0.5); !almostEqual(h, 0) {
		t.Errorf("northbound heading = %v, want 0", h)
	}
	east := Path{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}}
	if h := Heading(east, 0.5); math.Abs(h-90) > 1e-6 {
		t.Errorf("eastbound heading = %v, want 90", h)
	}
}

func TestDefaultNetworkIsSimulatable(t *testing.T) {
	network := DefaultNetwork()
	if len(network.Routes) == 0 || len(network.Stations) == 0 {
		t.Fatal("default network is empty")
	}
	for _, rc := range network.Routes {
		if len(rc.Path) < 2 {
			t.Errorf("route %s has %d waypoints, need at least 2", rc.VehicleID, len(rc.Path))
		}
		if rc.CycleTicks <= 0 {
			t.Errorf("route %s has non-positive cycle %d", rc.VehicleID, rc.CycleTicks)
		}
	}
}

func TestDefaultNetworkReturnsFreshPaths(t *testing.T) {
	a := DefaultNetwork()
	b := DefaultNetwork()
	a.Routes[0].Path[0].Lat = 99
	if b.Routes[0].Path[0].Lat == 99 {
		t.Fatal("DefaultNetwork shares path slices between calls")
	}
}
