package query

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/amishk599/jobscout/internal/model"
)

const (
	defaultLimit    = 10
	maxLimit        = 100
	maxAllocation   = 50
	defaultLocation = "AU"
)

// Input holds the raw, user-entered search fields.
type Input struct {
	Titles     string            // comma separated
	Keywords   string            // comma separated
	Locations  string            // comma separated, defaults to AU
	Allocation map[string]string // per-source counts keyed by source name
	Limit      string
}

// NewSessionID returns a fresh identifier for one streaming session.
func NewSessionID() string {
	return uuid.NewString()
}

// Build normalizes raw input into a SearchQuery. It never fails: malformed
// fields degrade to their defaults.
func Build(in Input, sessionID string) model.SearchQuery {
	locations := SplitCSV(in.Locations)
	if len(locations) == 0 {
		locations = []string{defaultLocation}
	}

	alloc := make(map[string]int, len(model.Sources))
	for _, src := range model.Sources {
		alloc[src] = parseCount(in.Allocation[src], 0, maxAllocation)
	}
	// Unknown sources are kept so the backend can decide what to do with them.
	for src, raw := range in.Allocation {
		if _, ok := alloc[src]; !ok {
			alloc[src] = parseCount(raw, 0, maxAllocation)
		}
	}

	limit := parseCount(in.Limit, defaultLimit, maxLimit)
	if limit <= 0 {
		limit = defaultLimit
	}

	return model.SearchQuery{
		Titles:     SplitCSV(in.Titles),
		Keywords:   SplitCSV(in.Keywords),
		Locations:  locations,
		Allocation: alloc,
		Limit:      limit,
		SessionID:  sessionID,
	}
}

// SplitCSV splits a comma separated field, trims tokens, drops empty ones
// and case-insensitive repeats, and keeps first-seen order.
func SplitCSV(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		key := strings.ToLower(tok)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tok)
	}
	return out
}

// parseCount parses a non-negative integer, falling back to def when raw is
// empty or unparsable, and clamping to [0, hi].
func parseCount(raw string, def, hi int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return max(0, min(n, hi))
}
