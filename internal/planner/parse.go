package planner

import (
	"regexp"
	"strings"

	"valley-transit/internal/transit"
)

var stepPrefix = regexp.MustCompile(`^\d+\.\s*`)

// parseSteps keeps the lines that follow the requested "1. ..."
// numbered format, in answer order, and classifies each by keyword.
func parseSteps(text string) []transit.RouteStep {
	var steps []transit.RouteStep
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !stepPrefix.MatchString(line) {
			continue
		}
		steps = append(steps, transit.RouteStep{
			Instruction: stepPrefix.ReplaceAllString(line, ""),
			Kind:        classifyStep(line),
		})
	}
	return steps
}

// classifyStep picks the mode by substring, walk before train, with
// bus as the default. A transfer or wait written without either
// keyword is therefore reported as a bus leg; the itinerary contract
// keeps that behavior.
func classifyStep(line string) transit.StepKind {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "walk"):
		return transit.StepWalk
	case strings.Contains(lower, "train"):
		return transit.StepTrain
	default:
		return transit.StepBus
	}
}

// dedupeURLs drops repeated citation URLs, keeping first-seen order.
func dedupeURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
