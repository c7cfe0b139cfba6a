package model

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// Posting is one job listing discovered via search. Hash is the dedup
// identity: two postings with the same hash are the same posting no matter
// which delivery path produced them.
type Posting struct {
	ID       string   `json:"id"`
	Hash     string   `json:"hash" validate:"required"`
	Source   string   `json:"source" validate:"required"`
	Title    string   `json:"title" validate:"required"`
	Company  string   `json:"company"`
	Location string   `json:"location,omitempty"`
	Remote   *bool    `json:"remote,omitempty"`
	URL      string   `json:"jd_url,omitempty"`
	PostedAt string   `json:"posted_at,omitempty"`
	Keywords []string `json:"keywords,omitempty"`

	JD *JD `json:"-"` // attached once fetched
}

// Progress mirrors the backend's view of a stream: delivered may exceed
// what survives client-side dedup.
type Progress struct {
	Delivered int            `json:"delivered"`
	Requested int            `json:"requested"`
	BySource  map[string]int `json:"by_source,omitempty"`
}

// SearchQuery is the canonical query shared by the stream and next-batch
// paths. It is built fresh per search and not mutated afterwards.
type SearchQuery struct {
	Titles     []string
	Keywords   []string
	Locations  []string
	Allocation map[string]int // per-source counts, keyed by source name
	Limit      int
	SessionID  string
}

// Sources known to the backend, in allocation order.
var Sources = []string{"seek", "linkedin"}

// Values serializes the query as the stream subscription address.
func (q SearchQuery) Values() url.Values {
	v := url.Values{}
	v.Set("session_id", q.SessionID)
	v.Set("titles", strings.Join(q.Titles, ","))
	v.Set("keywords", strings.Join(q.Keywords, ","))
	v.Set("locations", strings.Join(q.Locations, ","))
	for _, src := range Sources {
		v.Set(src, strconv.Itoa(q.Allocation[src]))
	}
	v.Set("limit", strconv.Itoa(q.Limit))
	return v
}

// BatchRequest asks for more postings for the same logical query,
// excluding everything already delivered.
type BatchRequest struct {
	Query   SearchQuery
	Exclude []string
}

// BatchResponse is one next-batch reply.
type BatchResponse struct {
	Postings   []Posting
	SeenHashes []string
	Stats      BatchStats
}

// BatchStats is the backend's accounting for one batch.
type BatchStats struct {
	Requested int `json:"requested"`
	Deduped   int `json:"deduped"`
	Total     int `json:"total"`
}

// BatchSource performs one pull-based continuation request.
type BatchSource interface {
	NextBatch(ctx context.Context, req BatchRequest) (BatchResponse, error)
}

// Event kinds on the job search stream.
const (
	EventJob      = "job"
	EventProgress = "progress"
	EventEnd      = "end"
)

// Event is one raw, undecoded stream event.
type Event struct {
	Kind string
	Data []byte
}

// Subscription is a live push stream. Events is closed when the stream
// ends for any reason; Err then reports the transport error, if any.
type Subscription interface {
	Events() <-chan Event
	Err() error
	Close() error
}

// Subscriber opens push-stream subscriptions for a query.
type Subscriber interface {
	Subscribe(ctx context.Context, q SearchQuery) (Subscription, error)
}
