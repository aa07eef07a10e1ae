package planner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"valley-transit/internal/transit"
)

const suggestionTTL = 60 * time.Second

// Suggest asks the service for place names matching a partial query.
// It returns an empty list without a network call when no credential
// is configured, the query is under three characters, or the query is
// the current-location placeholder. Service failures also resolve to
// an empty list; suggestion lookups never surface errors.
func (p *Planner) Suggest(ctx context.Context, query string, nearby *transit.Coordinate) []string {
	if !p.ai.Configured() {
		return nil
	}
	if utf8.RuneCountInString(query) < 3 {
		return nil
	}
	if query == CurrentLocationSentinel {
		return nil
	}

	cacheKey := "suggest:" + strings.ToLower(strings.TrimSpace(query))
	if p.suggestions != nil {
		if v, ok := p.suggestions.Get(cacheKey); ok {
			return v.([]string)
		}
	}

	resp, err := p.ai.GenerateContent(ctx, suggestPrompt(query), nearby)
	if err != nil {
		log.Printf("place suggestions for %q failed: %v", query, err)
		return nil
	}

	answer := resp.Answer()
	var out []string
	for _, line := range strings.Split(answer.Text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}

	if p.suggestions != nil && out != nil {
		p.suggestions.SetWithTTL(cacheKey, out, suggestionTTL)
	}
	return out
}

func suggestPrompt(query string) string {
	var b strings.Builder
	b.WriteString("I am building a transit app for Franklin County, Massachusetts.\n")
	b.WriteString("The user is searching for a location.\n")
	fmt.Fprintf(&b, "Query: %q\n\n", query)
	b.WriteString("Please provide a list of 3-5 specific, real-world places, addresses, or landmarks in Massachusetts that match this query.\n")
	b.WriteString("Prioritize locations in Greenfield, Northampton, Amherst, and the Pioneer Valley.\n")
	b.WriteString("Return ONLY the names/addresses as a plain text list, one per line. No bullets, no numbering, no extra text.\n")
	return b.String()
}
