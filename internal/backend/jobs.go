package backend

import (
	"context"
	"net/http"

	"github.com/amishk599/jobscout/internal/model"
)

type jobQuery struct {
	Titles    []string `json:"titles"`
	Keywords  []string `json:"keywords"`
	Locations []string `json:"locations"`
}

type nextBatchRequest struct {
	Query         jobQuery       `json:"query"`
	Allocation    map[string]int `json:"allocation"`
	Limit         int            `json:"limit"`
	ExcludeHashes []string       `json:"exclude_hashes"`
	SessionID     string         `json:"session_id,omitempty"`
}

type nextBatchResponse struct {
	Jobs       []model.Posting  `json:"jobs"`
	SeenHashes []string         `json:"seen_hashes"`
	Stats      model.BatchStats `json:"stats"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// NextBatch requests further postings for the query, excluding every hash
// already delivered.
func (c *Client) NextBatch(ctx context.Context, req model.BatchRequest) (model.BatchResponse, error) {
	q := req.Query
	body := nextBatchRequest{
		Query: jobQuery{
			Titles:    nonNil(q.Titles),
			Keywords:  nonNil(q.Keywords),
			Locations: nonNil(q.Locations),
		},
		Allocation:    q.Allocation,
		Limit:         q.Limit,
		ExcludeHashes: nonNil(req.Exclude),
		SessionID:     q.SessionID,
	}

	var out nextBatchResponse
	if err := c.postJSON(ctx, groupJobs, "/jobs/next-batch", body, &out); err != nil {
		return model.BatchResponse{}, err
	}
	return model.BatchResponse{
		Postings:   out.Jobs,
		SeenHashes: out.SeenHashes,
		Stats:      out.Stats,
	}, nil
}

// Subscribe opens the job search event stream for q. The returned
// subscription owns the connection until Close.
func (c *Client) Subscribe(ctx context.Context, q model.SearchQuery) (model.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	path := "/jobs/stream?" + q.Values().Encode()

	resp, err := c.sendWith(ctx, c.stream, groupJobs, http.MethodGet, path, "", nil)
	if err != nil {
		cancel()
		return nil, err
	}

	sub := newSSESubscription(resp.Body, cancel, c.logger)
	go sub.read()
	return sub, nil
}
