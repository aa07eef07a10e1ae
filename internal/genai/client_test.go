package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"valley-transit/internal/transit"
)

func TestAnswerInline(t *testing.T) {
	r := &Response{Text: "take the bus"}
	a := r.Answer()
	if a.Source != AnswerInline || a.Text != "take the bus" {
		t.Errorf("got %+v, want inline answer", a)
	}
}

func TestAnswerCandidate(t *testing.T) {
	r := &Response{Candidates: []Candidate{{
		Content: content{Parts: []part{{Text: "walk north"}}},
	}}}
	a := r.Answer()
	if a.Source != AnswerCandidate || a.Text != "walk north" {
		t.Errorf("got %+v, want candidate answer", a)
	}
}

func TestAnswerInlineWinsOverCandidate(t *testing.T) {
	r := &Response{
		Text: "inline",
		Candidates: []Candidate{{
			Content: content{Parts: []part{{Text: "nested"}}},
		}},
	}
	if a := r.Answer(); a.Source != AnswerInline || a.Text != "inline" {
		t.Errorf("got %+v, want inline to take priority", a)
	}
}

func TestAnswerMissing(t *testing.T) {
	cases := []*Response{
		{},
		{Candidates: []Candidate{{}}},
		{Candidates: []Candidate{{Content: content{Parts: []part{{Text: ""}}}}}},
	}
	for i, r := range cases {
		if a := r.Answer(); a.Source != AnswerMissing || a.Text != "" {
			t.Errorf("case %d: got %+v, want missing answer", i, a)
		}
	}
}

func TestGroundingURIs(t *testing.T) {
	r := &Response{Candidates: []Candidate{{
		GroundingMetadata: &GroundingMetadata{GroundingChunks: []GroundingChunk{
			{Web: &GroundingSource{URI: "https://frta.org"}},
			{Maps: &GroundingSource{URI: "https://maps.example/route31"}},
			{Web: &GroundingSource{URI: "https://frta.org"}}, // repeat kept; dedup is the caller's job
			{},
		}},
	}}}
	got := r.GroundingURIs()
	want := []string{"https://frta.org", "https://maps.example/route31", "https://frta.org"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestGroundingURIsNoMetadata(t *testing.T) {
	if got := (&Response{}).GroundingURIs(); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestGenerateContentRequest(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &gotBody)
		json.NewEncoder(w).Encode(Response{Candidates: []Candidate{{
			Content: content{Parts: []part{{Text: "1. Walk to stop"}}},
		}}})
	}))
	defer srv.Close()

	t.Setenv("GEMINI_BASE_URL", srv.URL)
	c := NewClient("test-key", "")

	bias := &transit.Coordinate{Lat: 42.5879, Lng: -72.6014}
	resp, err := c.GenerateContent(context.Background(), "plan my trip", bias)
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if a := resp.Answer(); a.Text != "1. Walk to stop" {
		t.Errorf("answer %q", a.Text)
	}

	if !strings.Contains(gotPath, "gemini-2.5-flash:generateContent") {
		t.Errorf("path %q missing default model", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header %q", gotKey)
	}
	if _, ok := gotBody["tools"]; !ok {
		t.Error("request missing maps grounding tool")
	}
	tc, ok := gotBody["toolConfig"].(map[string]any)
	if !ok {
		t.Fatal("request missing toolConfig with location bias")
	}
	rc := tc["retrievalConfig"].(map[string]any)
	ll := rc["latLng"].(map[string]any)
	if ll["latitude"].(float64) != bias.Lat || ll["longitude"].(float64) != bias.Lng {
		t.Errorf("location bias %v, want %v", ll, bias)
	}
}

func TestGenerateContentNoBiasOmitsToolConfig(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &gotBody)
		json.NewEncoder(w).Encode(Response{})
	}))
	defer srv.Close()

	t.Setenv("GEMINI_BASE_URL", srv.URL)
	c := NewClient("test-key", "")
	if _, err := c.GenerateContent(context.Background(), "hi", nil); err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if _, present := gotBody["toolConfig"]; present {
		t.Error("toolConfig should be omitted without a bias coordinate")
	}
}

func TestGenerateContentMissingKey(t *testing.T) {
	c := NewClient("", "")
	if c.Configured() {
		t.Error("client with empty key reports configured")
	}
	if _, err := c.GenerateContent(context.Background(), "hi", nil); err != ErrMissingAPIKey {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestGenerateContentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	t.Setenv("GEMINI_BASE_URL", srv.URL)
	c := NewClient("test-key", "")
	if _, err := c.GenerateContent(context.Background(), "hi", nil); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
