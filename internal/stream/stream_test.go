package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobscout/internal/ledger"
	"github.com/amishk599/jobscout/internal/model"
)

// --- Fakes ---

// fakeSub replays canned events. When hold is set it keeps the stream open
// after the last event until Close is called.
type fakeSub struct {
	events chan model.Event
	done   chan struct{}
	err    error
	closes atomic.Int32
}

func newFakeSub(evs []model.Event, transportErr error, hold bool) *fakeSub {
	s := &fakeSub{
		events: make(chan model.Event),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.events)
		for _, ev := range evs {
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
		if hold {
			<-s.done
			return
		}
		s.err = transportErr
	}()
	return s
}

func (s *fakeSub) Events() <-chan model.Event { return s.events }
func (s *fakeSub) Err() error                 { return s.err }

func (s *fakeSub) Close() error {
	if s.closes.Add(1) == 1 {
		close(s.done)
	}
	return nil
}

// fakeSubscriber hands out queued subscriptions in order.
type fakeSubscriber struct {
	mu      sync.Mutex
	subs    []*fakeSub
	queries []model.SearchQuery
	err     error
}

func (f *fakeSubscriber) Subscribe(_ context.Context, q model.SearchQuery) (model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	s := f.subs[0]
	f.subs = f.subs[1:]
	return s, nil
}

// recordingDisplay records everything the controller emits.
type recordingDisplay struct {
	mu       sync.Mutex
	postings []model.Posting
	progress []model.Progress
	notices  []model.Notice
	closed   []model.CloseReason
}

func (d *recordingDisplay) ShowPosting(p model.Posting) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.postings = append(d.postings, p)
}

func (d *recordingDisplay) ShowProgress(p model.Progress) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = append(d.progress, p)
}

func (d *recordingDisplay) ShowNotice(n model.Notice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, n)
}

func (d *recordingDisplay) StreamClosed(r model.CloseReason) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = append(d.closed, r)
}

func (d *recordingDisplay) hashes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.postings))
	for i, p := range d.postings {
		out[i] = p.Hash
	}
	return out
}

func (d *recordingDisplay) noticesAt(level model.NoticeLevel) []model.Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Notice
	for _, n := range d.notices {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jobEvent(hash string) model.Event {
	return model.Event{
		Kind: model.EventJob,
		Data: []byte(fmt.Sprintf(`{"id":"%s","hash":"%s","source":"seek","title":"Backend Engineer","company":"Acme","jd_url":"https://example.com/%s"}`, hash, hash, hash)),
	}
}

func progressEvent(delivered, requested int) model.Event {
	return model.Event{Kind: model.EventProgress, Data: []byte(fmt.Sprintf(`{"delivered":%d,"requested":%d}`, delivered, requested))}
}

func endEvent() model.Event {
	return model.Event{Kind: model.EventEnd, Data: []byte(`{"delivered":0,"requested":0}`)}
}

func waitClosed(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func newTestController(sub *fakeSubscriber, d *recordingDisplay, l *ledger.Ledger) *Controller {
	return NewController(sub, l, d, time.Hour, discardLogger())
}

// --- Tests ---

func TestStream_ScenarioUniqueJobsThenEnd(t *testing.T) {
	evs := []model.Event{
		progressEvent(0, 5),
		jobEvent("a"), progressEvent(1, 5),
		jobEvent("b"), progressEvent(2, 5),
		jobEvent("c"), progressEvent(3, 5),
		jobEvent("d"), progressEvent(4, 5),
		jobEvent("e"), progressEvent(5, 5),
		endEvent(),
	}
	sub := newFakeSub(evs, nil, false)
	d := &recordingDisplay{}
	l := ledger.New()
	c := newTestController(&fakeSubscriber{subs: []*fakeSub{sub}}, d, l)

	q := model.SearchQuery{Keywords: []string{"backend"}, Locations: []string{"AU"},
		Allocation: map[string]int{"seek": 5, "linkedin": 0}, Limit: 10}
	if err := c.Start(context.Background(), q); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitClosed(t, c)

	if got := len(d.hashes()); got != 5 {
		t.Fatalf("emitted = %d, want 5", got)
	}
	if l.Len() != len(d.hashes()) {
		t.Errorf("ledger size %d != emitted %d", l.Len(), len(d.hashes()))
	}
	last := d.progress[len(d.progress)-1]
	if last.Delivered != last.Requested {
		t.Errorf("final progress = %+v, want delivered == requested", last)
	}
	if len(d.closed) != 1 || d.closed[0] != model.ClosedByEnd {
		t.Errorf("closed = %v, want [end]", d.closed)
	}
	if c.State() != Closed {
		t.Error("controller should be closed after end")
	}
	if sub.closes.Load() != 1 {
		t.Errorf("subscription closed %d times, want 1", sub.closes.Load())
	}
}

func TestStream_DuplicateHashEmittedOnce(t *testing.T) {
	sub := newFakeSub([]model.Event{jobEvent("h1"), jobEvent("h1"), jobEvent("h2"), jobEvent("h1"), endEvent()}, nil, false)
	d := &recordingDisplay{}
	l := ledger.New()
	c := newTestController(&fakeSubscriber{subs: []*fakeSub{sub}}, d, l)

	if err := c.Start(context.Background(), model.SearchQuery{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitClosed(t, c)

	got := d.hashes()
	if len(got) != 2 || got[0] != "h1" || got[1] != "h2" {
		t.Errorf("emitted = %v, want [h1 h2]", got)
	}
	if l.Len() != 2 || !l.Has("h1") {
		t.Errorf("ledger len = %d, want 2 with h1 once", l.Len())
	}
}

func TestStream_RestartResetsLedgerBeforeFirstEvent(t *testing.T) {
	first := newFakeSub([]model.Event{jobEvent("h1")}, nil, true)
	second := newFakeSub([]model.Event{jobEvent("h1"), endEvent()}, nil, false)
	d := &recordingDisplay{}
	l := ledger.New()
	c := newTestController(&fakeSubscriber{subs: []*fakeSub{first, second}}, d, l)

	if err := c.Start(context.Background(), model.SearchQuery{SessionID: "one"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !l.Has("h1") {
		if time.Now().After(deadline) {
			t.Fatal("first session never delivered h1")
		}
		time.Sleep(5 * time.Millisecond)
	}

	c.Stop()
	if err := c.Start(context.Background(), model.SearchQuery{SessionID: "two"}); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	waitClosed(t, c)

	got := d.hashes()
	if len(got) != 2 || got[1] != "h1" {
		t.Errorf("emitted = %v, want h1 delivered again by the new session", got)
	}
	if l.Len() != 1 {
		t.Errorf("ledger len = %d, want 1", l.Len())
	}
	if first.closes.Load() != 1 || second.closes.Load() != 1 {
		t.Errorf("closes = %d/%d, want 1/1", first.closes.Load(), second.closes.Load())
	}
}

func TestStream_StartSupersedesOpenSession(t *testing.T) {
	first := newFakeSub(nil, nil, true)
	second := newFakeSub(nil, nil, true)
	d := &recordingDisplay{}
	c := newTestController(&fakeSubscriber{subs: []*fakeSub{first, second}}, d, ledger.New())

	if err := c.Start(context.Background(), model.SearchQuery{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(context.Background(), model.SearchQuery{}); err != nil {
		t.Fatal(err)
	}

	if first.closes.Load() != 1 {
		t.Errorf("superseded subscription closed %d times, want 1", first.closes.Load())
	}
	if c.State() != Open {
		t.Error("controller should be open on the new session")
	}

	c.Stop()
	c.Stop()
	if second.closes.Load() != 1 {
		t.Errorf("second subscription closed %d times, want 1", second.closes.Load())
	}
	if c.State() != Closed {
		t.Error("controller should be closed after Stop")
	}
}

func TestStream_TransportErrorClosesAndReleases(t *testing.T) {
	sub := newFakeSub([]model.Event{jobEvent("h1")}, errors.New("connection reset"), false)
	d := &recordingDisplay{}
	c := newTestController(&fakeSubscriber{subs: []*fakeSub{sub}}, d, ledger.New())

	if err := c.Start(context.Background(), model.SearchQuery{}); err != nil {
		t.Fatal(err)
	}
	waitClosed(t, c)

	if len(d.hashes()) != 1 {
		t.Errorf("emitted = %d, want 1 before the error", len(d.hashes()))
	}
	if len(d.noticesAt(model.NoticeError)) != 1 {
		t.Errorf("error notices = %v, want 1", d.notices)
	}
	if len(d.closed) != 1 || d.closed[0] != model.ClosedByError {
		t.Errorf("closed = %v, want [error]", d.closed)
	}
	if sub.closes.Load() != 1 {
		t.Errorf("subscription closed %d times, want 1", sub.closes.Load())
	}
}

func TestStream_MalformedEventsDroppedSessionSurvives(t *testing.T) {
	evs := []model.Event{
		{Kind: model.EventJob, Data: []byte(`{not json`)},
		{Kind: model.EventJob, Data: []byte(`{"title":"No Hash","source":"seek"}`)},
		{Kind: model.EventProgress, Data: []byte(`[]`)},
		{Kind: "heartbeat", Data: nil},
		jobEvent("h2"),
		endEvent(),
	}
	sub := newFakeSub(evs, nil, false)
	d := &recordingDisplay{}
	c := newTestController(&fakeSubscriber{subs: []*fakeSub{sub}}, d, ledger.New())

	if err := c.Start(context.Background(), model.SearchQuery{}); err != nil {
		t.Fatal(err)
	}
	waitClosed(t, c)

	if got := d.hashes(); len(got) != 1 || got[0] != "h2" {
		t.Errorf("emitted = %v, want [h2]", got)
	}
	if len(d.closed) != 1 || d.closed[0] != model.ClosedByEnd {
		t.Errorf("closed = %v, want [end]", d.closed)
	}
}

func TestStream_SubscribeFailure(t *testing.T) {
	d := &recordingDisplay{}
	c := newTestController(&fakeSubscriber{err: errors.New("dial refused")}, d, ledger.New())

	if err := c.Start(context.Background(), model.SearchQuery{}); err == nil {
		t.Fatal("expected error from Start")
	}
	if c.State() != Closed {
		t.Error("controller should stay closed")
	}
	if len(d.noticesAt(model.NoticeError)) != 1 {
		t.Errorf("notices = %v, want one error", d.notices)
	}
}

func TestStream_IdleAdvisoryKeepsSessionOpen(t *testing.T) {
	sub := newFakeSub(nil, nil, true)
	d := &recordingDisplay{}
	c := NewController(&fakeSubscriber{subs: []*fakeSub{sub}}, ledger.New(), d, 20*time.Millisecond, discardLogger())

	if err := c.Start(context.Background(), model.SearchQuery{}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(d.noticesAt(model.NoticeAdvisory)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("idle advisory never shown")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if c.State() != Open {
		t.Error("advisory must not close the session")
	}
	c.Stop()
}

func TestStream_NoIdleAdvisoryAfterPosting(t *testing.T) {
	sub := newFakeSub([]model.Event{jobEvent("h1")}, nil, true)
	d := &recordingDisplay{}
	l := ledger.New()
	c := NewController(&fakeSubscriber{subs: []*fakeSub{sub}}, l, d, 50*time.Millisecond, discardLogger())

	if err := c.Start(context.Background(), model.SearchQuery{}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !l.Has("h1") {
		if time.Now().After(deadline) {
			t.Fatal("posting never delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	if n := len(d.noticesAt(model.NoticeAdvisory)); n != 0 {
		t.Errorf("advisories = %d, want 0 once a posting arrived", n)
	}
	c.Stop()
}
