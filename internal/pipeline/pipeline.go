package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/amishk599/jobscout/internal/model"
)

// ProfileSource supplies the current candidate profile.
type ProfileSource interface {
	Current() (model.Profile, bool)
}

// ArtifactWriter persists an exported artifact for a posting.
type ArtifactWriter interface {
	Write(p model.Posting, a model.Artifact) (model.Artifact, error)
}

// Controller drives the per-posting enrichment stages. Postings live in an
// arena keyed by content hash; callers refer to them by hash only.
//
// Stages of one posting, and stages of different postings, run
// independently. A stage that is running rejects a second trigger, and a
// response is only written back if no newer call of the same stage was
// issued for that posting since.
type Controller struct {
	jd       model.JDFetcher
	matcher  model.Matcher
	renderer model.ResumeRenderer
	profiles ProfileSource
	writer   ArtifactWriter
	opts     model.RenderOptions
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	seq     uint64
}

type entry struct {
	state  State
	tokens [numStages]uint64
}

// NewController creates a pipeline controller. writer may be nil, in which
// case exported artifacts are only kept in memory.
func NewController(
	jd model.JDFetcher,
	matcher model.Matcher,
	renderer model.ResumeRenderer,
	profiles ProfileSource,
	writer ArtifactWriter,
	opts model.RenderOptions,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		jd:       jd,
		matcher:  matcher,
		renderer: renderer,
		profiles: profiles,
		writer:   writer,
		opts:     opts,
		logger:   logger,
		entries:  make(map[string]*entry),
	}
}

// Register adds a posting to the arena. Registering a known hash is a no-op.
func (c *Controller) Register(p model.Posting) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[p.Hash]; ok {
		return
	}
	c.entries[p.Hash] = &entry{state: State{Posting: p}}
	c.order = append(c.order, p.Hash)
}

// Posting returns the registered posting for hash.
func (c *Controller) Posting(hash string) (model.Posting, bool) {
	s, ok := c.State(hash)
	return s.Posting, ok
}

// State returns a snapshot of the posting's pipeline.
func (c *Controller) State(hash string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[hash]
	if !ok {
		return State{}, false
	}
	return e.state, true
}

// Hashes returns every registered hash in arrival order.
func (c *Controller) Hashes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of registered postings.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Clear drops every posting. Responses still in flight are discarded.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order = nil
}

// FetchJD fetches the structured JD behind the posting's link.
func (c *Controller) FetchJD(ctx context.Context, hash string) (model.JD, error) {
	snap, token, err := c.begin(hash, FetchJD, func(s State) error {
		if s.Posting.URL == "" {
			return &PreconditionError{Stage: FetchJD, Missing: "a posting link"}
		}
		return nil
	})
	if err != nil {
		return model.JD{}, err
	}

	jd, err := c.jd.FetchJD(ctx, snap.Posting.URL)
	c.finish(hash, FetchJD, token, err, func(s *State) {
		s.Posting.JD = &jd
	})
	if err != nil {
		return model.JD{}, fmt.Errorf("fetching job description: %w", err)
	}
	return jd, nil
}

// Match scores the current profile against the posting's JD.
func (c *Controller) Match(ctx context.Context, hash string) (model.MatchResult, error) {
	var profile model.Profile
	snap, token, err := c.begin(hash, Match, c.requireInputs(Match, &profile))
	if err != nil {
		return model.MatchResult{}, err
	}

	res, err := c.matcher.Match(ctx, profile, *snap.Posting.JD)
	c.finish(hash, Match, token, err, func(s *State) {
		s.Match = &res
	})
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("matching profile: %w", err)
	}
	return res, nil
}

// Preview renders a tailored resume for the posting.
func (c *Controller) Preview(ctx context.Context, hash string) (model.Document, error) {
	var profile model.Profile
	snap, token, err := c.begin(hash, Preview, c.requireInputs(Preview, &profile))
	if err != nil {
		return model.Document{}, err
	}

	doc, err := c.renderer.Preview(ctx, profile, *snap.Posting.JD, c.opts)
	c.finish(hash, Preview, token, err, func(s *State) {
		s.Preview = &doc
	})
	if err != nil {
		return model.Document{}, fmt.Errorf("rendering preview: %w", err)
	}
	return doc, nil
}

// Export produces a downloadable resume for the posting. It always uses
// this posting's own JD, never one fetched for another posting.
func (c *Controller) Export(ctx context.Context, hash string, format model.ExportFormat) (model.Artifact, error) {
	var profile model.Profile
	snap, token, err := c.begin(hash, Export, c.requireInputs(Export, &profile))
	if err != nil {
		return model.Artifact{}, err
	}

	art, err := c.renderer.Export(ctx, profile, *snap.Posting.JD, c.opts, format)
	if err == nil && c.writer != nil {
		art, err = c.writer.Write(snap.Posting, art)
	}
	c.finish(hash, Export, token, err, func(s *State) {
		s.Artifact = &art
	})
	if err != nil {
		return model.Artifact{}, fmt.Errorf("exporting %s: %w", format, err)
	}
	return art, nil
}

// requireInputs checks the profile and JD preconditions shared by match,
// preview and export, and captures the profile for the call.
func (c *Controller) requireInputs(st Stage, profile *model.Profile) func(State) error {
	return func(s State) error {
		p, ok := c.profiles.Current()
		if !ok {
			return &PreconditionError{Stage: st, Missing: "a candidate profile"}
		}
		if !s.HasJD() {
			return &PreconditionError{Stage: st, Missing: "a fetched job description"}
		}
		*profile = p
		return nil
	}
}

// begin marks st running for hash and returns the snapshot the call works
// from plus its write-back token.
func (c *Controller) begin(hash string, st Stage, check func(State) error) (State, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[hash]
	if !ok {
		return State{}, 0, fmt.Errorf("%s %s: %w", st, hash, ErrUnknownPosting)
	}
	if e.state.Stages[st].Status == Running {
		return State{}, 0, fmt.Errorf("%s %s: %w", st, hash, ErrStageBusy)
	}
	if err := check(e.state); err != nil {
		return State{}, 0, err
	}

	c.seq++
	e.tokens[st] = c.seq
	e.state.Stages[st] = StageState{Status: Running}
	return e.state, c.seq, nil
}

// finish writes a stage result back unless a newer call superseded it.
func (c *Controller) finish(hash string, st Stage, token uint64, err error, apply func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[hash]
	if !ok || e.tokens[st] != token {
		c.logger.Debug("discarding stale stage result", "stage", st, "hash", hash)
		return
	}
	if err != nil {
		e.state.Stages[st] = StageState{Status: Failed, Err: err.Error()}
		c.logger.Warn("stage failed", "stage", st, "hash", hash, "error", err)
		return
	}
	apply(&e.state)
	e.state.Stages[st] = StageState{Status: Done}
	c.logger.Info("stage done", "stage", st, "hash", hash, "title", e.state.Posting.Title)
}
