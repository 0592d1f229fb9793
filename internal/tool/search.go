package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// defaultKnowledge is the built-in corpus for the demo search handler.
func defaultKnowledge() map[string]string {
	return map[string]string{
		"beijing":  "Beijing is the capital of China, population around 21 million",
		"shanghai": "Shanghai is the largest city in China, population around 24 million",
		"python":   "Python is a high-level programming language widely used in data science and AI",
		"weather":  "Sunny today with a high of 25 degrees",
		"stocks":   "Markets up 2.5% today, tech shares leading",
		"news":     "Latest tech news: AI adoption accelerating across industries",
		"react":    "ReAct is an AI framework combining reasoning and acting",
		"price":    "The current average price is 100 units",
		"sales":    "Sales this month reached 1000 units",
	}
}

// Search answers queries from a fixed knowledge map. A stand-in for a real
// search backend: the first knowledge key contained in the query wins.
type Search struct {
	latency   time.Duration
	knowledge map[string]string
	keys      []string // sorted, for deterministic matching
}

// NewSearch creates a search handler. extra entries override or extend the
// built-in knowledge; latency simulates a remote round trip.
func NewSearch(latency time.Duration, extra map[string]string) *Search {
	knowledge := defaultKnowledge()
	for k, v := range extra {
		knowledge[strings.ToLower(k)] = v
	}

	keys := make([]string, 0, len(knowledge))
	for k := range knowledge {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &Search{latency: latency, knowledge: knowledge, keys: keys}
}

func (s *Search) Name() string { return "search" }

func (s *Search) Description() string {
	return "Looks up information for a keyword query"
}

// Invoke returns the knowledge entry whose key appears in the query. A miss
// is an answer, not an error.
func (s *Search) Invoke(ctx context.Context, input string) (string, error) {
	if err := simulateLatency(ctx, s.latency); err != nil {
		return "", err
	}

	query := strings.ToLower(strings.TrimSpace(input))
	for _, key := range s.keys {
		if strings.Contains(query, key) {
			return s.knowledge[key], nil
		}
	}

	return fmt.Sprintf("No results found for: %s", strings.TrimSpace(input)), nil
}
