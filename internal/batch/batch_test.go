package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/amishk599/jobscout/internal/ledger"
	"github.com/amishk599/jobscout/internal/model"
)

// --- Mock/Fake Implementations ---

// MockSource returns canned batches in order and records each request.
type MockSource struct {
	Batches  [][]model.Posting
	Err      error
	Requests []model.BatchRequest
}

func (m *MockSource) NextBatch(_ context.Context, req model.BatchRequest) (model.BatchResponse, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return model.BatchResponse{}, m.Err
	}
	if len(m.Batches) == 0 {
		return model.BatchResponse{}, nil
	}
	b := m.Batches[0]
	m.Batches = m.Batches[1:]
	return model.BatchResponse{Postings: b}, nil
}

// BlockingSource blocks until release is closed.
type BlockingSource struct {
	started chan struct{}
	release chan struct{}
}

func (b *BlockingSource) NextBatch(_ context.Context, _ model.BatchRequest) (model.BatchResponse, error) {
	close(b.started)
	<-b.release
	return model.BatchResponse{Postings: makePostings("late")}, nil
}

// RecordingDisplay records which postings and notices were shown.
type RecordingDisplay struct {
	mu      sync.Mutex
	Shown   []model.Posting
	Notices []model.Notice
}

func (d *RecordingDisplay) ShowPosting(p model.Posting) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Shown = append(d.Shown, p)
}
func (d *RecordingDisplay) ShowProgress(model.Progress) {}
func (d *RecordingDisplay) ShowNotice(n model.Notice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Notices = append(d.Notices, n)
}
func (d *RecordingDisplay) StreamClosed(model.CloseReason) {}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makePostings(hashes ...string) []model.Posting {
	out := make([]model.Posting, len(hashes))
	for i, h := range hashes {
		out[i] = model.Posting{
			ID:      h,
			Hash:    h,
			Source:  "seek",
			Title:   "Software Engineer",
			Company: "testco",
			URL:     "https://example.com/" + h,
		}
	}
	return out
}

func shownHashes(d *RecordingDisplay) []string {
	out := make([]string, len(d.Shown))
	for i, p := range d.Shown {
		out[i] = p.Hash
	}
	return out
}

// --- Tests ---

func TestFetchNext_FiltersHashesAlreadyInLedger(t *testing.T) {
	l := ledger.New()
	l.Add("h1")
	l.Add("h2")
	src := &MockSource{Batches: [][]model.Posting{makePostings("h1", "h3")}}
	d := &RecordingDisplay{}
	f := NewFetcher(src, l, d, discardLogger())

	res, err := f.FetchNext(context.Background(), model.SearchQuery{SessionID: "s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := shownHashes(d); len(got) != 1 || got[0] != "h3" {
		t.Errorf("shown = %v, want [h3]", got)
	}
	if res.New != 1 || res.Duplicate != 1 || res.Returned != 2 {
		t.Errorf("result = %+v", res)
	}
	if !l.Has("h3") || l.Len() != 3 {
		t.Errorf("ledger len = %d, want 3 including h3", l.Len())
	}

	req := src.Requests[0]
	if len(req.Exclude) != 2 || req.Exclude[0] != "h1" || req.Exclude[1] != "h2" {
		t.Errorf("exclude = %v, want [h1 h2]", req.Exclude)
	}
}

func TestFetchNext_SecondCallNeverResurfacesFirst(t *testing.T) {
	l := ledger.New()
	src := &MockSource{Batches: [][]model.Posting{
		makePostings("a", "b"),
		makePostings("b", "a", "c"),
	}}
	d := &RecordingDisplay{}
	f := NewFetcher(src, l, d, discardLogger())

	if _, err := f.FetchNext(context.Background(), model.SearchQuery{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.FetchNext(context.Background(), model.SearchQuery{}); err != nil {
		t.Fatal(err)
	}

	got := shownHashes(d)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("shown = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("shown = %v, want %v", got, want)
		}
	}
	if len(src.Requests[1].Exclude) != 2 {
		t.Errorf("second exclude = %v, want the first batch's hashes", src.Requests[1].Exclude)
	}
}

func TestFetchNext_EmptyIsNotAnError(t *testing.T) {
	d := &RecordingDisplay{}
	f := NewFetcher(&MockSource{}, ledger.New(), d, discardLogger())

	res, err := f.FetchNext(context.Background(), model.SearchQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.New != 0 {
		t.Errorf("New = %d, want 0", res.New)
	}
	if len(d.Notices) != 1 || d.Notices[0].Text != exhaustedText {
		t.Errorf("notices = %v, want the exhausted notice", d.Notices)
	}
}

func TestFetchNext_SourceError(t *testing.T) {
	d := &RecordingDisplay{}
	f := NewFetcher(&MockSource{Err: errors.New("network down")}, ledger.New(), d, discardLogger())

	if _, err := f.FetchNext(context.Background(), model.SearchQuery{}); err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(d.Shown) != 0 {
		t.Error("nothing should be shown on error")
	}
	if len(d.Notices) != 1 || d.Notices[0].Level != model.NoticeError {
		t.Errorf("notices = %v, want one error", d.Notices)
	}
	if f.Busy() {
		t.Error("fetcher must not stay busy after an error")
	}
}

func TestFetchNext_RejectsConcurrentCall(t *testing.T) {
	src := &BlockingSource{started: make(chan struct{}), release: make(chan struct{})}
	f := NewFetcher(src, ledger.New(), &RecordingDisplay{}, discardLogger())

	done := make(chan error, 1)
	go func() {
		_, err := f.FetchNext(context.Background(), model.SearchQuery{})
		done <- err
	}()
	<-src.started

	if _, err := f.FetchNext(context.Background(), model.SearchQuery{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second call err = %v, want ErrBusy", err)
	}

	close(src.release)
	if err := <-done; err != nil {
		t.Fatalf("first call: %v", err)
	}
	if f.Busy() {
		t.Error("fetcher should be idle after completion")
	}
}

func TestFetchNext_DiscardsBatchAfterReset(t *testing.T) {
	l := ledger.New()
	src := &BlockingSource{started: make(chan struct{}), release: make(chan struct{})}
	d := &RecordingDisplay{}
	f := NewFetcher(src, l, d, discardLogger())

	done := make(chan Result, 1)
	go func() {
		res, _ := f.FetchNext(context.Background(), model.SearchQuery{})
		done <- res
	}()
	<-src.started
	l.Reset() // a new search started
	close(src.release)

	res := <-done
	if !res.Stale {
		t.Error("expected the batch to be reported stale")
	}
	if len(d.Shown) != 0 || l.Len() != 0 {
		t.Errorf("stale batch leaked: shown=%d ledger=%d", len(d.Shown), l.Len())
	}
}

func TestFetchNext_DropsMalformedPostings(t *testing.T) {
	bad := model.Posting{Title: "no hash", Source: "seek"}
	src := &MockSource{Batches: [][]model.Posting{append([]model.Posting{bad}, makePostings("ok")...)}}
	d := &RecordingDisplay{}
	f := NewFetcher(src, ledger.New(), d, discardLogger())

	res, err := f.FetchNext(context.Background(), model.SearchQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if res.New != 1 || shownHashes(d)[0] != "ok" {
		t.Errorf("result = %+v shown = %v", res, shownHashes(d))
	}
}
