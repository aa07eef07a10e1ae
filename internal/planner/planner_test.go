package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"valley-transit/internal/cache"
	"valley-transit/internal/genai"
	"valley-transit/internal/transit"
)

// stubGenerator returns a canned response (or error) and counts calls.
type stubGenerator struct {
	configured bool
	resp       *genai.Response
	err        error
	calls      int
	lastPrompt string
	lastBias   *transit.Coordinate
}

func (s *stubGenerator) Configured() bool { return s.configured }

func (s *stubGenerator) GenerateContent(ctx context.Context, prompt string, bias *transit.Coordinate) (*genai.Response, error) {
	s.calls++
	s.lastPrompt = prompt
	s.lastBias = bias
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestPlanRouteParsesNumberedSteps(t *testing.T) {
	gen := &stubGenerator{configured: true, resp: &genai.Response{
		Text: "1. Walk to the JWO Transit Center\n2. Take Train 56 to Northampton",
	}}
	p := New(gen, nil)

	route, err := p.PlanRoute(context.Background(), "Current Location", "Northampton", nil)
	if err != nil {
		t.Fatalf("PlanRoute: %v", err)
	}
	if len(route.Steps) != 2 {
		t.Fatalf("got %d steps, want 2: %+v", len(route.Steps), route.Steps)
	}
	if route.Steps[0].Kind != transit.StepWalk {
		t.Errorf("step 0 kind = %q, want walk", route.Steps[0].Kind)
	}
	if route.Steps[0].Instruction != "Walk to the JWO Transit Center" {
		t.Errorf("step 0 instruction = %q, numbered prefix not stripped", route.Steps[0].Instruction)
	}
	if route.Steps[1].Kind != transit.StepTrain {
		t.Errorf("step 1 kind = %q, want train", route.Steps[1].Kind)
	}
	if route.Summary != "Route to Northampton" {
		t.Errorf("summary = %q", route.Summary)
	}
	if route.TotalDuration != "See details" {
		t.Errorf("totalDuration = %q", route.TotalDuration)
	}
	if len(route.Hazards) != 0 {
		t.Errorf("hazards = %v, want none", route.Hazards)
	}
}

func TestPlanRouteDefaultsToBus(t *testing.T) {
	gen := &stubGenerator{configured: true, resp: &genai.Response{
		Text: "1. Board Route 31 at Main St",
	}}
	p := New(gen, nil)

	route, _ := p.PlanRoute(context.Background(), "a", "b", nil)
	if route.Steps[0].Kind != transit.StepBus {
		t.Errorf("kind = %q, want bus for unrecognized mode", route.Steps[0].Kind)
	}
}

func TestPlanRouteUnformattedAnswerBecomesWaitStep(t *testing.T) {
	raw := "The Vermonter runs once daily; catch it at 14:35 from Greenfield."
	gen := &stubGenerator{configured: true, resp: &genai.Response{Text: raw}}
	p := New(gen, nil)

	route, _ := p.PlanRoute(context.Background(), "a", "b", nil)
	if len(route.Steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(route.Steps))
	}
	if route.Steps[0].Kind != transit.StepWait || route.Steps[0].Instruction != raw {
		t.Errorf("fallback step = %+v, want full answer text as a wait step", route.Steps[0])
	}
}

func TestPlanRouteEmptyAnswer(t *testing.T) {
	gen := &stubGenerator{configured: true, resp: &genai.Response{}}
	p := New(gen, nil)

	route, _ := p.PlanRoute(context.Background(), "a", "b", nil)
	if len(route.Steps) != 1 || route.Steps[0].Instruction != "No details available." {
		t.Errorf("steps = %+v, want the no-details placeholder", route.Steps)
	}
}

func TestPlanRouteDelayHazard(t *testing.T) {
	gen := &stubGenerator{configured: true, resp: &genai.Response{
		Text: "1. Walk to the stop\n2. Expect a Delay on Route 31 due to roadwork",
	}}
	p := New(gen, nil)

	route, _ := p.PlanRoute(context.Background(), "a", "b", nil)
	if len(route.Hazards) != 1 || route.Hazards[0] != "Possible Delays detected" {
		t.Errorf("hazards = %v", route.Hazards)
	}
}

func TestPlanRouteTransportFailureDegrades(t *testing.T) {
	gen := &stubGenerator{configured: true, err: errors.New("dial tcp: timeout")}
	p := New(gen, nil)

	route, err := p.PlanRoute(context.Background(), "a", "b", nil)
	if err != nil {
		t.Fatalf("transport failures must not surface as errors, got %v", err)
	}
	if route.Summary != "Error planning route" {
		t.Errorf("summary = %q", route.Summary)
	}
	if route.TotalDuration != "--" {
		t.Errorf("totalDuration = %q, want --", route.TotalDuration)
	}
	if len(route.Hazards) != 1 || route.Hazards[0] != "Connection Error" {
		t.Errorf("hazards = %v", route.Hazards)
	}
	if len(route.Steps) != 1 || route.Steps[0].Instruction != "Could not connect to route planner. Please try again." {
		t.Errorf("steps = %+v", route.Steps)
	}
	if route.GroundingURLs == nil || len(route.GroundingURLs) != 0 {
		t.Errorf("groundingUrls = %#v, want empty non-nil slice", route.GroundingURLs)
	}
}

func TestPlanRouteMissingCredential(t *testing.T) {
	gen := &stubGenerator{configured: false}
	p := New(gen, nil)

	if _, err := p.PlanRoute(context.Background(), "a", "b", nil); !errors.Is(err, genai.ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
	if gen.calls != 0 {
		t.Errorf("service called %d times without a credential", gen.calls)
	}
}

func TestPlanRouteDedupesGroundingURLs(t *testing.T) {
	gen := &stubGenerator{configured: true, resp: &genai.Response{
		Candidates: []genai.Candidate{{
			GroundingMetadata: &genai.GroundingMetadata{GroundingChunks: []genai.GroundingChunk{
				{Web: &genai.GroundingSource{URI: "https://frta.org"}},
				{Maps: &genai.GroundingSource{URI: "https://maps.example/31"}},
				{Web: &genai.GroundingSource{URI: "https://frta.org"}},
			}},
		}},
	}}
	p := New(gen, nil)

	route, _ := p.PlanRoute(context.Background(), "a", "b", nil)
	want := []string{"https://frta.org", "https://maps.example/31"}
	if len(route.GroundingURLs) != len(want) {
		t.Fatalf("groundingUrls = %v, want %v", route.GroundingURLs, want)
	}
	for i := range want {
		if route.GroundingURLs[i] != want[i] {
			t.Fatalf("groundingUrls = %v, want %v", route.GroundingURLs, want)
		}
	}
}

func TestPlanRoutePassesLocationBias(t *testing.T) {
	gen := &stubGenerator{configured: true, resp: &genai.Response{Text: "1. Walk"}}
	p := New(gen, nil)

	loc := &transit.Coordinate{Lat: 42.58, Lng: -72.60}
	p.PlanRoute(context.Background(), "a", "b", loc)
	if gen.lastBias != loc {
		t.Errorf("bias = %v, want the caller's coordinate", gen.lastBias)
	}
}

func TestSuggestShortCircuits(t *testing.T) {
	gen := &stubGenerator{configured: true, resp: &genai.Response{Text: "Greenfield"}}
	p := New(gen, nil)

	cases := []string{"", "gr", CurrentLocationSentinel}
	for _, q := range cases {
		if got := p.Suggest(context.Background(), q, nil); got != nil {
			t.Errorf("Suggest(%q) = %v, want nil", q, got)
		}
	}
	if gen.calls != 0 {
		t.Errorf("service called %d times for short-circuit queries", gen.calls)
	}

	unconfigured := &stubGenerator{configured: false}
	if got := New(unconfigured, nil).Suggest(context.Background(), "greenfield", nil); got != nil {
		t.Errorf("Suggest without credential = %v, want nil", got)
	}
	if unconfigured.calls != 0 {
		t.Error("service called without a credential")
	}
}

func TestSuggestParsesLines(t *testing.T) {
	gen := &stubGenerator{configured: true, resp: &genai.Response{
		Text: "Greenfield Public Library\n\n  Energy Park, Greenfield  \nGCC Main Campus\n",
	}}
	p := New(gen, nil)

	got := p.Suggest(context.Background(), "green", nil)
	want := []string{"Greenfield Public Library", "Energy Park, Greenfield", "GCC Main Campus"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSuggestErrorReturnsEmpty(t *testing.T) {
	gen := &stubGenerator{configured: true, err: errors.New("boom")}
	p := New(gen, nil)

	if got := p.Suggest(context.Background(), "greenfield", nil); got != nil {
		t.Errorf("got %v, want nil on service failure", got)
	}
}

func TestSuggestMemoizes(t *testing.T) {
	gen := &stubGenerator{configured: true, resp: &genai.Response{Text: "Greenfield"}}
	c := cache.New(time.Minute, time.Minute)
	defer c.Stop()
	p := New(gen, c)

	p.Suggest(context.Background(), "Greenfield", nil)
	p.Suggest(context.Background(), "  greenfield ", nil) // same key after normalization
	if gen.calls != 1 {
		t.Errorf("service called %d times, want 1 (cache hit expected)", gen.calls)
	}
}
