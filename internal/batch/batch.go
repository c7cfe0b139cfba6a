package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/amishk599/jobscout/internal/ledger"
	"github.com/amishk599/jobscout/internal/model"
)

// ErrBusy is returned when a batch fetch is already outstanding.
var ErrBusy = errors.New("a batch fetch is already in progress")

const exhaustedText = "no further distinct results"

// Result summarizes one batch fetch.
type Result struct {
	Returned  int // postings in the backend response
	New       int // postings emitted to the display
	Duplicate int // postings already in the ledger
	Stale     bool
}

// Fetcher owns the pull path: fetch with exclusions → dedup → emit.
// At most one fetch is outstanding at a time.
type Fetcher struct {
	source  model.BatchSource
	ledger  *ledger.Ledger
	display model.Display
	logger  *slog.Logger
	busy    atomic.Bool
}

// NewFetcher creates a batch fetcher wired with all its dependencies.
func NewFetcher(source model.BatchSource, l *ledger.Ledger, display model.Display, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source:  source,
		ledger:  l,
		display: display,
		logger:  logger,
	}
}

// Busy reports whether a fetch is outstanding.
func (f *Fetcher) Busy() bool {
	return f.busy.Load()
}

// FetchNext asks for more postings for q, excluding everything in the
// ledger. Returned postings go through the same check-and-insert as the
// stream path, so a hash already delivered is never emitted twice.
func (f *Fetcher) FetchNext(ctx context.Context, q model.SearchQuery) (Result, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer f.busy.Store(false)

	exclude, epoch := f.ledger.Snapshot()
	resp, err := f.source.NextBatch(ctx, model.BatchRequest{Query: q, Exclude: exclude})
	if err != nil {
		f.display.ShowNotice(model.Notice{
			Level: model.NoticeError,
			Text:  fmt.Sprintf("loading more results failed: %v", err),
		})
		return Result{}, fmt.Errorf("next batch for session %s: %w", q.SessionID, err)
	}

	res := Result{Returned: len(resp.Postings)}
	for _, p := range resp.Postings {
		if err := model.ValidatePosting(p); err != nil {
			f.logger.Warn("dropping malformed batch posting", "error", err)
			continue
		}
		added, err := f.ledger.AddInEpoch(epoch, p.Hash)
		if errors.Is(err, ledger.ErrStaleEpoch) {
			// A new search started while this batch was in flight.
			f.logger.Info("discarding batch for superseded session", "session_id", q.SessionID)
			res.Stale = true
			return res, nil
		}
		if !added {
			res.Duplicate++
			continue
		}
		res.New++
		f.display.ShowPosting(p)
	}

	if res.New == 0 {
		f.display.ShowNotice(model.Notice{Level: model.NoticeInfo, Text: exhaustedText})
	}

	f.logger.Info("fetched next batch",
		"session_id", q.SessionID,
		"excluded", len(exclude),
		"returned", res.Returned,
		"new", res.New,
		"duplicate", res.Duplicate,
		"backend_deduped", resp.Stats.Deduped,
	)
	return res, nil
}
