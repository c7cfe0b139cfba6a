// Package session owns one user's discovery state: the dedup ledger, the
// stream and batch paths that feed it, and the per-posting pipeline.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amishk599/jobscout/internal/batch"
	"github.com/amishk599/jobscout/internal/ledger"
	"github.com/amishk599/jobscout/internal/model"
	"github.com/amishk599/jobscout/internal/pipeline"
	"github.com/amishk599/jobscout/internal/profile"
	"github.com/amishk599/jobscout/internal/query"
	"github.com/amishk599/jobscout/internal/stream"
)

// ErrNoSearch is returned by More before any search was started.
var ErrNoSearch = errors.New("no search yet; start one first")

// Deps are the collaborators a Session drives.
type Deps struct {
	Subscriber   model.Subscriber
	Batches      model.BatchSource
	JD           model.JDFetcher
	Matcher      model.Matcher
	Renderer     model.ResumeRenderer
	Profiles     *profile.Store
	Writer       pipeline.ArtifactWriter // nil keeps exports in memory
	Render       model.RenderOptions
	IdleAdvisory time.Duration
}

// Session ties the discovery components to one display.
type Session struct {
	ledger   *ledger.Ledger
	stream   *stream.Controller
	batch    *batch.Fetcher
	pipeline *pipeline.Controller
	profiles *profile.Store
	logger   *slog.Logger

	mu    sync.Mutex
	query *model.SearchQuery
}

// New wires a session. Every posting shown on display is registered in the
// pipeline arena first, so the display can look it up by hash.
func New(d Deps, display model.Display, logger *slog.Logger) *Session {
	l := ledger.New()
	p := pipeline.NewController(d.JD, d.Matcher, d.Renderer, d.Profiles, d.Writer, d.Render, logger)
	disp := &registeringDisplay{pipeline: p, Display: display}

	idle := d.IdleAdvisory
	if idle <= 0 {
		idle = stream.DefaultIdleAdvisory
	}

	return &Session{
		ledger:   l,
		stream:   stream.NewController(d.Subscriber, l, disp, idle, logger),
		batch:    batch.NewFetcher(d.Batches, l, disp, logger),
		pipeline: p,
		profiles: d.Profiles,
		logger:   logger,
	}
}

// Search builds a fresh query with a new session id and opens a stream for
// it. The open stream is closed and the previous results are dropped before
// the new stream delivers anything.
func (s *Session) Search(ctx context.Context, in query.Input) (model.SearchQuery, error) {
	q := query.Build(in, query.NewSessionID())

	s.mu.Lock()
	s.query = &q
	s.mu.Unlock()

	s.stream.Stop()
	s.pipeline.Clear()
	if err := s.stream.Start(ctx, q); err != nil {
		return q, err
	}
	return q, nil
}

// More pulls the next batch for the last search.
func (s *Session) More(ctx context.Context) (batch.Result, error) {
	s.mu.Lock()
	q := s.query
	s.mu.Unlock()
	if q == nil {
		return batch.Result{}, ErrNoSearch
	}
	return s.batch.FetchNext(ctx, *q)
}

// Stop closes the open stream, if any.
func (s *Session) Stop() {
	s.stream.Stop()
}

// Wait blocks until the open stream closes.
func (s *Session) Wait(ctx context.Context) error {
	return s.stream.Wait(ctx)
}

// Streaming reports whether a stream is open.
func (s *Session) Streaming() bool {
	return s.stream.State() == stream.Open
}

// ClearResults stops the stream and forgets every delivered posting.
func (s *Session) ClearResults() {
	s.stream.Stop()
	s.ledger.Reset()
	s.pipeline.Clear()
	s.logger.Info("results cleared")
}

// ClearProfile removes the candidate profile and the results tailored to it.
func (s *Session) ClearProfile() error {
	if err := s.profiles.Clear(); err != nil {
		return fmt.Errorf("clearing profile: %w", err)
	}
	s.ClearResults()
	return nil
}

// Close releases the open stream.
func (s *Session) Close() {
	s.stream.Stop()
}

// Query returns the last search query.
func (s *Session) Query() (model.SearchQuery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.query == nil {
		return model.SearchQuery{}, false
	}
	return *s.query, true
}

// Delivered returns the number of distinct postings delivered since the
// last reset.
func (s *Session) Delivered() int {
	return s.ledger.Len()
}

// Pipeline returns the per-posting pipeline.
func (s *Session) Pipeline() *pipeline.Controller {
	return s.pipeline
}

// Profiles returns the profile store.
func (s *Session) Profiles() *profile.Store {
	return s.profiles
}

// BatchBusy reports whether a next-batch call is outstanding.
func (s *Session) BatchBusy() bool {
	return s.batch.Busy()
}

type registeringDisplay struct {
	pipeline *pipeline.Controller
	model.Display
}

func (d *registeringDisplay) ShowPosting(p model.Posting) {
	d.pipeline.Register(p)
	d.Display.ShowPosting(p)
}
