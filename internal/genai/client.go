// Client for the Gemini generateContent REST API with the Google Maps
// grounding tool enabled. Only the fields this service consumes are
// modeled: the answer text and the grounding chunk URIs.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"valley-transit/internal/transit"
)

// ErrMissingAPIKey is returned when a call requiring the service
// credential is made without one configured.
var ErrMissingAPIKey = errors.New("genai: GEMINI_API_KEY is not set")

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash"
)

type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the given credential. An empty model
// selects the default. The base URL can be overridden with
// GEMINI_BASE_URL (used against local stand-ins).
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	baseURL := os.Getenv("GEMINI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether a service credential is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Request/response envelope. Field names follow the wire format.

type generateRequest struct {
	Contents   []content   `json:"contents"`
	Tools      []tool      `json:"tools,omitempty"`
	ToolConfig *toolConfig `json:"toolConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type tool struct {
	GoogleMaps *struct{} `json:"googleMaps,omitempty"`
}

type toolConfig struct {
	RetrievalConfig *retrievalConfig `json:"retrievalConfig,omitempty"`
}

type retrievalConfig struct {
	LatLng latLng `json:"latLng"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Response is the subset of the generateContent envelope we read.
// Some deployments inline the answer at the top level; the official
// shape nests it under candidates/content/parts.
type Response struct {
	Text       string      `json:"text,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

type Candidate struct {
	Content           content            `json:"content"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

type GroundingMetadata struct {
	GroundingChunks []GroundingChunk `json:"groundingChunks,omitempty"`
}

type GroundingChunk struct {
	Web  *GroundingSource `json:"web,omitempty"`
	Maps *GroundingSource `json:"maps,omitempty"`
}

type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// AnswerSource tags where in the envelope the answer text was found.
type AnswerSource int

const (
	// AnswerMissing means neither envelope shape carried text.
	AnswerMissing AnswerSource = iota
	// AnswerInline means the top-level text field was populated.
	AnswerInline
	// AnswerCandidate means the nested candidate path was populated.
	AnswerCandidate
)

// Answer is the extracted answer text with its provenance.
type Answer struct {
	Source AnswerSource
	Text   string
}

// Answer extracts the answer text, preferring the inline field over
// the candidate path.
func (r *Response) Answer() Answer {
	if r.Text != "" {
		return Answer{Source: AnswerInline, Text: r.Text}
	}
	if len(r.Candidates) > 0 {
		parts := r.Candidates[0].Content.Parts
		if len(parts) > 0 && parts[0].Text != "" {
			return Answer{Source: AnswerCandidate, Text: parts[0].Text}
		}
	}
	return Answer{Source: AnswerMissing}
}

// GroundingURIs returns every web and maps citation URI from the
// first candidate's grounding metadata, in chunk order and without
// deduplication.
func (r *Response) GroundingURIs() []string {
	if len(r.Candidates) == 0 || r.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var uris []string
	for _, chunk := range r.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk.Web != nil && chunk.Web.URI != "" {
			uris = append(uris, chunk.Web.URI)
		}
		if chunk.Maps != nil && chunk.Maps.URI != "" {
			uris = append(uris, chunk.Maps.URI)
		}
	}
	return uris
}

// GenerateContent sends one prompt with the maps grounding tool
// enabled. A non-nil bias coordinate is supplied as the retrieval
// location bias.
func (c *Client) GenerateContent(ctx context.Context, prompt string, bias *transit.Coordinate) (*Response, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		Tools:    []tool{{GoogleMaps: &struct{}{}}},
	}
	if bias != nil {
		reqBody.ToolConfig = &toolConfig{
			RetrievalConfig: &retrievalConfig{
				LatLng: latLng{Latitude: bias.Lat, Longitude: bias.Lng},
			},
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("generate content: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
