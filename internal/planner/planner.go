// Package planner turns free-text answers from the reasoning service
// into structured itineraries and place suggestions. Every failure
// past the credential check degrades to a valid value: an error route
// for planning, an empty list for suggestions.
package planner

import (
	"context"
	"fmt"
	"log"
	"strings"

	"valley-transit/internal/cache"
	"valley-transit/internal/genai"
	"valley-transit/internal/transit"
)

// CurrentLocationSentinel is the origin-field placeholder meaning
// "use the device position"; it is never sent to the service as a
// search query.
const CurrentLocationSentinel = "Current Location"

const (
	noDetailsText    = "No details available."
	hazardDelays     = "Possible Delays detected"
	hazardConnection = "Connection Error"
)

// Generator is the reasoning-service boundary. genai.Client satisfies
// it; tests substitute a stub.
type Generator interface {
	Configured() bool
	GenerateContent(ctx context.Context, prompt string, bias *transit.Coordinate) (*genai.Response, error)
}

type Planner struct {
	ai          Generator
	suggestions *cache.Cache // nil disables suggestion memoization
}

func New(ai Generator, suggestions *cache.Cache) *Planner {
	return &Planner{ai: ai, suggestions: suggestions}
}

// PlanRoute asks the service for a transit itinerary and parses the
// answer. The only error it returns is genai.ErrMissingAPIKey; any
// transport or parse failure resolves to a degraded but valid route.
func (p *Planner) PlanRoute(ctx context.Context, origin, destination string, userLoc *transit.Coordinate) (*transit.PlannedRoute, error) {
	if !p.ai.Configured() {
		return nil, genai.ErrMissingAPIKey
	}

	prompt := planPrompt(origin, destination, userLoc)
	resp, err := p.ai.GenerateContent(ctx, prompt, userLoc)
	if err != nil {
		log.Printf("plan route to %q failed: %v", destination, err)
		return connectionErrorRoute(), nil
	}

	answer := resp.Answer()
	text := answer.Text
	if answer.Source == genai.AnswerMissing {
		text = noDetailsText
	}

	steps := parseSteps(text)
	if len(steps) == 0 {
		// The model skipped the numbered format; surface the whole
		// answer as a single informational step.
		steps = []transit.RouteStep{{Instruction: text, Kind: transit.StepWait}}
	}

	hazards := []string{}
	if strings.Contains(strings.ToLower(text), "delay") {
		hazards = append(hazards, hazardDelays)
	}

	return &transit.PlannedRoute{
		Summary:       fmt.Sprintf("Route to %s", destination),
		Steps:         steps,
		Hazards:       hazards,
		TotalDuration: "See details",
		GroundingURLs: dedupeURLs(resp.GroundingURIs()),
	}, nil
}

func connectionErrorRoute() *transit.PlannedRoute {
	return &transit.PlannedRoute{
		Summary: "Error planning route",
		Steps: []transit.RouteStep{{
			Instruction: "Could not connect to route planner. Please try again.",
			Kind:        transit.StepWait,
		}},
		Hazards:       []string{hazardConnection},
		TotalDuration: "--",
		GroundingURLs: []string{},
	}
}

func planPrompt(origin, destination string, userLoc *transit.Coordinate) string {
	var b strings.Builder
	b.WriteString("I am in Franklin County, Massachusetts.\n")
	fmt.Fprintf(&b, "I need to go from %s to %s.\n", origin, destination)
	if userLoc != nil {
		fmt.Fprintf(&b, "My current coordinates are %v, %v.\n", userLoc.Lat, userLoc.Lng)
	}
	b.WriteString(`
Please provide a route plan using ONLY public transit (FRTA buses, Amtrak Vermonter/Valley Flyer) or walking.

Focus on:
1. Real-world bus route numbers (e.g., FRTA Route 31, 41).
2. Amtrak schedules if relevant.
3. Any potential delays or hazards typically found on this route (use Google Maps data).
4. Estimated time.

Format the output as a clear, step-by-step guide.
Also, list any grounding links (Sources) you find explicitly.
`)
	return b.String()
}
