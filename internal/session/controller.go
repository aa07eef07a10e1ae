// Package session sequences user trip-planning input: it debounces
// suggestion lookups, keeps a single plan request in flight, and
// publishes state snapshots to the presentation layer.
package session

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"valley-transit/internal/planner"
	"valley-transit/internal/transit"
)

type Field int

const (
	FieldNone Field = iota
	FieldOrigin
	FieldDestination
)

// State is the full UI-facing session state. Published values are
// copies; listeners may retain them.
type State struct {
	Origin             string                `json:"origin"`
	Destination        string                `json:"destination"`
	ActiveField        Field                 `json:"activeField"`
	UserLocation       *transit.Coordinate   `json:"userLocation,omitempty"`
	DestinationCoords  *transit.Coordinate   `json:"destinationCoords,omitempty"`
	Suggestions        []string              `json:"suggestions"`
	LoadingSuggestions bool                  `json:"loadingSuggestions"`
	Planning           bool                  `json:"planning"`
	Plan               *transit.PlannedRoute `json:"plan,omitempty"`
	ErrorMessage       string                `json:"errorMessage,omitempty"`
}

// Listener receives every state change. Calls are serialized.
type Listener interface {
	StateChanged(State)
}

// Locator is the one-shot geolocation collaborator.
type Locator interface {
	CurrentPosition(ctx context.Context) (transit.Coordinate, error)
}

// TripPlanner is the planning/suggestion boundary; planner.Planner
// satisfies it.
type TripPlanner interface {
	PlanRoute(ctx context.Context, origin, destination string, userLoc *transit.Coordinate) (*transit.PlannedRoute, error)
	Suggest(ctx context.Context, query string, nearby *transit.Coordinate) []string
}

const DefaultDebounce = 500 * time.Millisecond

// Controller owns one rider's trip-planning session. All exported
// methods are safe for concurrent use.
type Controller struct {
	planner  TripPlanner
	locator  Locator
	debounce time.Duration

	mu         sync.Mutex
	state      State
	timer      *time.Timer
	suggestSeq uint64 // bumped per keystroke; stale results are dropped

	notifyMu sync.Mutex
	listener Listener
}

// New creates a controller. locator may be nil when the device
// position arrives via SetUserLocation instead. A non-positive
// debounce selects the default.
func New(p TripPlanner, locator Locator, listener Listener, debounce time.Duration) *Controller {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Controller{
		planner:  p,
		locator:  locator,
		listener: listener,
		debounce: debounce,
		state: State{
			Origin:      planner.CurrentLocationSentinel,
			Suggestions: []string{},
		},
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneState(c.state)
}

// SetActiveField records which input currently has focus. Suggestion
// lookups only run for the focused field.
func (c *Controller) SetActiveField(f Field) {
	c.mu.Lock()
	c.state.ActiveField = f
	c.mu.Unlock()
}

// SetInput updates an input field and restarts the debounce timer. A
// new keystroke inside the debounce window abandons the previous
// pending lookup; a lookup finishing after a newer keystroke never
// overwrites the newer suggestions.
func (c *Controller) SetInput(ctx context.Context, f Field, text string) {
	c.mu.Lock()
	switch f {
	case FieldOrigin:
		c.state.Origin = text
	case FieldDestination:
		c.state.Destination = text
	default:
		c.mu.Unlock()
		return
	}
	c.state.ActiveField = f
	c.suggestSeq++
	seq := c.suggestSeq
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.refreshSuggestions(ctx, seq)
	})
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) refreshSuggestions(ctx context.Context, seq uint64) {
	c.mu.Lock()
	if seq != c.suggestSeq {
		c.mu.Unlock()
		return
	}
	field := c.state.ActiveField
	var query string
	switch field {
	case FieldOrigin:
		query = c.state.Origin
	case FieldDestination:
		query = c.state.Destination
	default:
		c.mu.Unlock()
		return
	}
	nearby := c.state.UserLocation
	c.state.LoadingSuggestions = true
	c.mu.Unlock()
	c.publish()

	// Planner applies its own short-circuits (length, sentinel,
	// missing credential) and never errors.
	results := c.planner.Suggest(ctx, query, nearby)

	c.mu.Lock()
	if seq != c.suggestSeq {
		// Superseded while in flight; a newer keystroke owns the
		// suggestion list now.
		c.state.LoadingSuggestions = false
		c.mu.Unlock()
		return
	}
	if results == nil {
		results = []string{}
	}
	c.state.Suggestions = results
	c.state.LoadingSuggestions = false
	c.mu.Unlock()
	c.publish()
}

// SelectSuggestion fills the given field and dismisses the dropdown.
func (c *Controller) SelectSuggestion(f Field, suggestion string) {
	c.mu.Lock()
	switch f {
	case FieldOrigin:
		c.state.Origin = suggestion
	case FieldDestination:
		c.state.Destination = suggestion
	}
	c.state.Suggestions = []string{}
	c.state.ActiveField = FieldNone
	c.suggestSeq++ // invalidate any pending lookup
	c.mu.Unlock()
	c.publish()
}

// SetUserLocation records a device position reported by the client.
func (c *Controller) SetUserLocation(pos transit.Coordinate) {
	c.mu.Lock()
	p := pos
	c.state.UserLocation = &p
	c.mu.Unlock()
	c.publish()
}

// LocationDenied records that the device refused to share its
// position: the origin sentinel is cleared so the rider types an
// origin instead.
func (c *Controller) LocationDenied() {
	c.mu.Lock()
	if c.state.Origin == planner.CurrentLocationSentinel {
		c.state.Origin = ""
	}
	c.state.UserLocation = nil
	c.mu.Unlock()
	c.publish()
}

// UseCurrentLocation asks the geolocation collaborator for a position
// and seeds the origin sentinel. A denial clears the sentinel so the
// rider types an origin instead.
func (c *Controller) UseCurrentLocation(ctx context.Context) {
	if c.locator == nil {
		return
	}
	pos, err := c.locator.CurrentPosition(ctx)
	c.mu.Lock()
	if err != nil {
		log.Printf("geolocation unavailable: %v", err)
		if c.state.Origin == planner.CurrentLocationSentinel {
			c.state.Origin = ""
		}
	} else {
		p := pos
		c.state.UserLocation = &p
		c.state.Origin = planner.CurrentLocationSentinel
	}
	c.mu.Unlock()
	c.publish()
}

// PlanTrip issues one planning request. It is ignored while a request
// is already in flight or when either field is empty; otherwise it
// always resolves, into a plan or an error banner.
func (c *Controller) PlanTrip(ctx context.Context) {
	c.mu.Lock()
	if c.state.Planning || c.state.Origin == "" || c.state.Destination == "" {
		c.mu.Unlock()
		return
	}
	c.state.Planning = true
	c.state.Plan = nil
	c.state.ErrorMessage = ""
	origin := c.state.Origin
	destination := c.state.Destination
	userLoc := c.state.UserLocation
	c.mu.Unlock()
	c.publish()

	go func() {
		// The sentinel is replaced with a phrase the service
		// understands, and the coordinates ride along as bias.
		startPoint := origin
		var bias *transit.Coordinate
		if origin == planner.CurrentLocationSentinel {
			if userLoc != nil {
				startPoint = "My Current Location"
			}
			bias = userLoc
		}

		plan, err := c.planner.PlanRoute(ctx, startPoint, destination, bias)

		c.mu.Lock()
		c.state.Planning = false
		if err != nil {
			c.state.ErrorMessage = "Failed to plan route. Please try again."
		} else {
			c.state.Plan = plan
			if coords := lookupDestination(destination); coords != nil {
				c.state.DestinationCoords = coords
			}
		}
		c.mu.Unlock()
		c.publish()
	}()
}

// lookupDestination is a coarse two-entry fallback so the map can drop
// a marker without real geocoding. Accurate geocoding belongs to an
// external collaborator.
func lookupDestination(destination string) *transit.Coordinate {
	lower := strings.ToLower(destination)
	switch {
	case strings.Contains(lower, "greenfield"):
		return &transit.Coordinate{Lat: 42.5879, Lng: -72.5995}
	case strings.Contains(lower, "northampton"):
		return &transit.Coordinate{Lat: 42.3195, Lng: -72.6298}
	}
	return nil
}

func (c *Controller) publish() {
	if c.listener == nil {
		return
	}
	c.mu.Lock()
	snap := cloneState(c.state)
	c.mu.Unlock()
	c.notifyMu.Lock()
	c.listener.StateChanged(snap)
	c.notifyMu.Unlock()
}

func cloneState(s State) State {
	out := s
	out.Suggestions = append([]string(nil), s.Suggestions...)
	if s.UserLocation != nil {
		p := *s.UserLocation
		out.UserLocation = &p
	}
	if s.DestinationCoords != nil {
		p := *s.DestinationCoords
		out.DestinationCoords = &p
	}
	return out
}
