// Package filter narrows the postings already on screen without touching
// the search itself.
package filter

import (
	"strings"

	"github.com/amishk599/jobscout/internal/model"
)

// PostingFilter matches postings whose title or company contains any of the
// text keywords, whose location contains any of the location keywords, and
// whose source is one of the listed sources. Matching is case-insensitive.
// Empty keyword lists are treated as "match all".
type PostingFilter struct {
	text      []string
	locations []string
	sources   []string
}

// New returns a filter from explicit keyword lists.
func New(text, locations, sources []string) *PostingFilter {
	return &PostingFilter{
		text:      lower(text),
		locations: lower(locations),
		sources:   lower(sources),
	}
}

// Parse builds a filter from a space-separated expression. Terms prefixed
// with "loc:" or "src:" restrict location and source; every other term is
// matched against title and company.
//
//	golang loc:sydney src:seek
func Parse(expr string) *PostingFilter {
	var text, locs, srcs []string
	for _, term := range strings.Fields(expr) {
		switch {
		case strings.HasPrefix(term, "loc:"):
			if v := strings.TrimPrefix(term, "loc:"); v != "" {
				locs = append(locs, v)
			}
		case strings.HasPrefix(term, "src:"):
			if v := strings.TrimPrefix(term, "src:"); v != "" {
				srcs = append(srcs, v)
			}
		default:
			text = append(text, term)
		}
	}
	return New(text, locs, srcs)
}

// Empty reports whether the filter matches every posting.
func (f *PostingFilter) Empty() bool {
	return f == nil || len(f.text)+len(f.locations)+len(f.sources) == 0
}

// Match returns true if the posting passes every non-empty keyword group.
// A nil filter matches everything.
func (f *PostingFilter) Match(p model.Posting) bool {
	if f == nil {
		return true
	}
	titleLower := strings.ToLower(p.Title)
	companyLower := strings.ToLower(p.Company)
	locationLower := strings.ToLower(p.Location)

	if len(f.text) > 0 && !containsAny(titleLower, f.text) && !containsAny(companyLower, f.text) {
		return false
	}
	if len(f.locations) > 0 && !containsAny(locationLower, f.locations) {
		return false
	}
	if len(f.sources) > 0 {
		src := strings.ToLower(p.Source)
		matched := false
		for _, s := range f.sources {
			if src == s {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
