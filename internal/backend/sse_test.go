package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/jobscout/internal/model"
)

func collect(t *testing.T, sub model.Subscription) []model.Event {
	t.Helper()
	var out []model.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out reading events")
		}
	}
}

func TestSubscribe_ParsesEvents(t *testing.T) {
	var query string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, ": keepalive\n\n")
		io.WriteString(w, "event: progress\ndata: {\"delivered\":0,\"requested\":5}\n\n")
		io.WriteString(w, "event: job\ndata: {\"hash\":\"h1\",\n")
		io.WriteString(w, "data: \"source\":\"seek\",\"title\":\"Go\"}\n\n")
		io.WriteString(w, "event: end\ndata: {\"delivered\":1,\"requested\":5}\n\n")
	})

	q := model.SearchQuery{Titles: []string{"backend"}, Allocation: map[string]int{"seek": 5}, Limit: 5, SessionID: "s1"}
	sub, err := c.Subscribe(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sub.Close()

	evs := collect(t, sub)
	if len(evs) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(evs), evs)
	}
	if evs[0].Kind != model.EventProgress || evs[1].Kind != model.EventJob || evs[2].Kind != model.EventEnd {
		t.Errorf("kinds = %s %s %s", evs[0].Kind, evs[1].Kind, evs[2].Kind)
	}
	if string(evs[1].Data) != "{\"hash\":\"h1\",\n\"source\":\"seek\",\"title\":\"Go\"}" {
		t.Errorf("multi-line data = %q", evs[1].Data)
	}
	if sub.Err() != nil {
		t.Errorf("Err = %v, want nil", sub.Err())
	}
	if !strings.Contains(query, "session_id=s1") || !strings.Contains(query, "seek=5") || !strings.Contains(query, "linkedin=0") {
		t.Errorf("query = %s", query)
	}
}

func TestSubscribe_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "bad limit"}}})
	})

	_, err := c.Subscribe(context.Background(), model.SearchQuery{})
	var herr *model.HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("err = %v, want 422 HTTPError", err)
	}
	if !strings.Contains(herr.Message, "bad limit") {
		t.Errorf("message = %q", herr.Message)
	}
}

func TestSubscribe_CloseStopsDeliveryAndIsIdempotent(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: progress\ndata: {}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	sub, err := c.Subscribe(context.Background(), model.SearchQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case ev := <-sub.Events():
		if ev.Kind != model.EventProgress {
			t.Errorf("kind = %s", ev.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}

	sub.Close()
	sub.Close()

	if evs := collect(t, sub); len(evs) != 0 {
		t.Errorf("events after close: %+v", evs)
	}
	if sub.Err() != nil {
		t.Errorf("Err after Close = %v, want nil", sub.Err())
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (errReader) Close() error             { return nil }

func TestSSE_ReadErrorIsReported(t *testing.T) {
	sub := newSSESubscription(errReader{}, func() {}, testLogger())
	go sub.read()

	if evs := collect(t, sub); len(evs) != 0 {
		t.Errorf("unexpected events: %+v", evs)
	}
	if sub.Err() == nil {
		t.Fatal("expected transport error")
	}
}
