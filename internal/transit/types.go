package transit

// Coordinate is a flat lat/lng pair. The service area is small enough
// that no spherical math is applied to these values directly.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Path is an ordered sequence of waypoints. Order defines the travel
// direction; at least two points are required for interpolation.
type Path []Coordinate

type VehicleKind string

const (
	KindBus   VehicleKind = "bus"
	KindTrain VehicleKind = "train"
)

type VehicleStatus string

const (
	StatusOnTime  VehicleStatus = "On Time"
	StatusDelayed VehicleStatus = "Delayed"
	StatusEarly   VehicleStatus = "Early"
)

// Vehicle is one simulated unit. The full slice is rebuilt every tick;
// only ID is stable across ticks.
type Vehicle struct {
	ID       string        `json:"id"`
	Kind     VehicleKind   `json:"type"`
	Route    string        `json:"route"`
	Position Coordinate    `json:"location"`
	Heading  float64       `json:"heading"` // compass degrees, [0,360)
	Status   VehicleStatus `json:"status"`
	NextStop string        `json:"nextStop"`
	Color    string        `json:"color"`
}

type StepKind string

const (
	StepWalk  StepKind = "walk"
	StepBus   StepKind = "bus"
	StepTrain StepKind = "train"
	StepWait  StepKind = "wait"
)

// RouteStep is one leg of an itinerary, in chronological order.
type RouteStep struct {
	Instruction string   `json:"instruction"`
	Kind        StepKind `json:"type"`
	Duration    string   `json:"duration,omitempty"`
	Distance    string   `json:"distance,omitempty"`
}

// PlannedRoute is the structured itinerary handed to the presentation
// layer. Steps is never empty: a single fallback step is synthesized
// when the planner's answer cannot be parsed.
type PlannedRoute struct {
	Summary       string      `json:"summary"`
	Steps         []RouteStep `json:"steps"`
	Hazards       []string    `json:"hazards"`
	TotalDuration string      `json:"totalDuration"`
	GroundingURLs []string    `json:"groundingUrls"`
}

type StationKind string

const (
	StationRail StationKind = "amtrak"
	StationBus  StationKind = "bus_stop"
)

type Station struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Kind     StationKind `json:"type"`
	Location Coordinate  `json:"location"`
}

// RouteConfig describes one simulated vehicle: its geometry plus the
// timing parameters consumed by the simulation clock.
type RouteConfig struct {
	VehicleID        string
	Kind             VehicleKind
	RouteName        string
	Color            string
	NextStop         string
	Path             Path
	CycleTicks       int     // ticks per full loop of Path
	PhaseMultiplier  float64 // loops completed per clock cycle (1 = in phase)
	DelayProbability float64 // per-tick chance of reporting Delayed
}

// Network is the static transit geometry shown on the map and driven
// by the simulation. Loaded from Postgres when configured, otherwise
// the built-in defaults are used.
type Network struct {
	Center   Coordinate
	Routes   []RouteConfig
	Stations []Station
}
