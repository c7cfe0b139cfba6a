package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amishk599/jobscout/internal/ledger"
	"github.com/amishk599/jobscout/internal/model"
)

// DefaultIdleAdvisory is how long an open session may go without a posting
// before the user is told to consider narrowing the filters.
const DefaultIdleAdvisory = 5 * time.Second

const idleAdvisoryText = "no results yet, consider narrowing filters"

// State is the controller's session state.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Controller owns at most one live push-stream subscription. It feeds new
// postings through the ledger and reports progress and termination to the
// display.
//
// Events of one session are handled strictly in arrival order, each under
// the controller lock, so dedup and emission for one event finish before
// the next one starts and nothing from a superseded session is emitted.
type Controller struct {
	subscriber model.Subscriber
	ledger     *ledger.Ledger
	display    model.Display
	idle       time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	current *session
}

// session is one subscription and the query it was opened with.
type session struct {
	query     model.SearchQuery
	sub       model.Subscription
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
	idle      *time.Timer
	emitted   int
}

// release closes the subscription exactly once, whatever the exit path.
func (s *session) release() {
	s.closeOnce.Do(func() {
		if s.idle != nil {
			s.idle.Stop()
		}
		s.cancel()
		_ = s.sub.Close()
	})
}

// NewController creates a stream controller. idle <= 0 selects
// DefaultIdleAdvisory.
func NewController(subscriber model.Subscriber, l *ledger.Ledger, display model.Display, idle time.Duration, logger *slog.Logger) *Controller {
	if idle <= 0 {
		idle = DefaultIdleAdvisory
	}
	return &Controller{
		subscriber: subscriber,
		ledger:     l,
		display:    display,
		idle:       idle,
		logger:     logger,
	}
}

// Start opens a new session for q. An open session is force-closed first
// and the ledger is reset before the new subscription delivers anything.
// The subscription lives until ctx is cancelled, the stream ends, or Stop.
func (c *Controller) Start(ctx context.Context, q model.SearchQuery) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.logger.Debug("superseding open stream session", "session_id", c.current.query.SessionID)
		c.teardownLocked(c.current, model.ClosedByStop)
	}
	c.ledger.Reset()

	subCtx, cancel := context.WithCancel(ctx)
	sub, err := c.subscriber.Subscribe(subCtx, q)
	if err != nil {
		cancel()
		c.logger.Warn("stream subscribe failed", "session_id", q.SessionID, "error", err)
		c.display.ShowNotice(model.Notice{
			Level: model.NoticeError,
			Text:  fmt.Sprintf("search failed to start: %v", err),
		})
		c.display.StreamClosed(model.ClosedByError)
		return fmt.Errorf("starting stream: %w", err)
	}

	s := &session{
		query:  q,
		sub:    sub,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.idle = time.AfterFunc(c.idle, func() { c.idleElapsed(s) })
	c.current = s

	c.logger.Info("stream opened",
		"session_id", q.SessionID,
		"titles", q.Titles,
		"keywords", q.Keywords,
		"locations", q.Locations,
		"limit", q.Limit,
	)

	go c.run(s)
	return nil
}

// Stop closes the open session, if any. It is idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	c.logger.Info("stream stopped", "session_id", c.current.query.SessionID)
	c.teardownLocked(c.current, model.ClosedByStop)
}

// State reports whether a session is open.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return Open
	}
	return Closed
}

// Wait blocks until the current session closes or ctx is done. It returns
// immediately when no session is open.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) run(s *session) {
	for ev := range s.sub.Events() {
		if !c.handle(s, ev) {
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != s {
		return
	}
	err := s.sub.Err()
	if err == nil {
		err = errors.New("stream closed before end event")
	}
	c.logger.Warn("stream transport error", "session_id", s.query.SessionID, "error", err)
	c.display.ShowNotice(model.Notice{
		Level: model.NoticeError,
		Text:  fmt.Sprintf("search stream failed: %v (start a new search to retry)", err),
	})
	c.teardownLocked(s, model.ClosedByError)
}

// handle processes one event and reports whether the session is still live.
func (c *Controller) handle(s *session, ev model.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != s {
		return false
	}

	switch ev.Kind {
	case model.EventJob:
		p, err := decodePosting(ev.Data)
		if err != nil {
			c.logger.Warn("dropping malformed job event", "session_id", s.query.SessionID, "error", err)
			return true
		}
		if !c.ledger.Add(p.Hash) {
			c.logger.Debug("duplicate posting discarded", "hash", p.Hash)
			return true
		}
		s.emitted++
		s.idle.Stop()
		c.display.ShowPosting(p)

	case model.EventProgress:
		var pr model.Progress
		if err := json.Unmarshal(ev.Data, &pr); err != nil {
			c.logger.Warn("dropping malformed progress event", "session_id", s.query.SessionID, "error", err)
			return true
		}
		c.display.ShowProgress(pr)

	case model.EventEnd:
		var pr model.Progress
		if len(ev.Data) > 0 {
			if err := json.Unmarshal(ev.Data, &pr); err != nil {
				c.logger.Debug("end event without summary", "error", err)
			}
		}
		c.logger.Info("stream ended",
			"session_id", s.query.SessionID,
			"emitted", s.emitted,
			"backend_delivered", pr.Delivered,
			"requested", pr.Requested,
		)
		c.teardownLocked(s, model.ClosedByEnd)
		return false

	default:
		c.logger.Debug("ignoring unknown stream event", "kind", ev.Kind)
	}
	return true
}

func (c *Controller) idleElapsed(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != s || s.emitted > 0 {
		return
	}
	c.display.ShowNotice(model.Notice{Level: model.NoticeAdvisory, Text: idleAdvisoryText})
}

// teardownLocked runs once per session: every caller checks that s is
// still current first.
func (c *Controller) teardownLocked(s *session, reason model.CloseReason) {
	s.release()
	c.current = nil
	c.display.StreamClosed(reason)
	close(s.done)
}

func decodePosting(data []byte) (model.Posting, error) {
	var p model.Posting
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode job event: %w", err)
	}
	if err := model.ValidatePosting(p); err != nil {
		return p, err
	}
	return p, nil
}
