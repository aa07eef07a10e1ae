package transit

// Franklin County / Pioneer Valley service area.

// CenterOfMap is the default camera position, near Greenfield, MA.
var CenterOfMap = Coordinate{Lat: 42.5879, Lng: -72.6014}

// VermonterPath is a simplified north-south Amtrak alignment through
// Greenfield and Northampton.
var VermonterPath = Path{
	{Lat: 42.6500, Lng: -72.5800}, // north of Greenfield
	{Lat: 42.5879, Lng: -72.5995}, // Greenfield
	{Lat: 42.3195, Lng: -72.6298}, // Northampton
	{Lat: 42.2000, Lng: -72.6300}, // south
}

// BusRoute31Path loops through downtown Greenfield.
var BusRoute31Path = Path{
	{Lat: 42.5879, Lng: -72.5995}, // transit center
	{Lat: 42.5920, Lng: -72.6050},
	{Lat: 42.5950, Lng: -72.6200},
	{Lat: 42.6000, Lng: -72.6100}, // loop back
	{Lat: 42.5890, Lng: -72.6000},
}

// DefaultNetwork returns the built-in Franklin County network used
// when no database is configured. Callers get a fresh value each time
// so simulation sessions never share mutable route state.
func DefaultNetwork() Network {
	return Network{
		Center: CenterOfMap,
		Routes: []RouteConfig{
			{
				VehicleID:        "train-1",
				Kind:             KindTrain,
				RouteName:        "Vermonter",
				Color:            "#60A5FA",
				NextStop:         "Northampton",
				Path:             append(Path(nil), VermonterPath...),
				CycleTicks:       400,
				PhaseMultiplier:  1,
				DelayProbability: 0.05,
			},
			{
				VehicleID:        "bus-31",
				Kind:             KindBus,
				RouteName:        "FRTA 31",
				Color:            "#34D399",
				NextStop:         "Main St",
				Path:             append(Path(nil), BusRoute31Path...),
				CycleTicks:       400,
				PhaseMultiplier:  2, // two loops per Vermonter cycle
				DelayProbability: 0,
			},
		},
		Stations: []Station{
			{ID: "gfd-amtrak", Name: "Greenfield John W. Olver Transit Center", Kind: StationRail, Location: Coordinate{Lat: 42.5879, Lng: -72.5995}},
			{ID: "nht-amtrak", Name: "Northampton Station", Kind: StationRail, Location: Coordinate{Lat: 42.3195, Lng: -72.6298}},
			{ID: "bus-stop-1", Name: "Main St & Federal St", Kind: StationBus, Location: Coordinate{Lat: 42.5890, Lng: -72.6000}},
			{ID: "bus-stop-2", Name: "GCC Main Entrance", Kind: StationBus, Location: Coordinate{Lat: 42.5950, Lng: -72.6200}},
			{ID: "bus-stop-3", Name: "Baystate Franklin Medical", Kind: StationBus, Location: Coordinate{Lat: 42.5920, Lng: -72.6050}},
		},
	}
}
