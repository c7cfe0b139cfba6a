package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobscout/internal/model"
)

// --- Fakes ---

type fakeJD struct {
	mu    sync.Mutex
	calls []string
	err   error
	gate  chan struct{}
}

func (f *fakeJD) FetchJD(ctx context.Context, link string) (model.JD, error) {
	f.mu.Lock()
	f.calls = append(f.calls, link)
	err, gate := f.err, f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.JD{}, ctx.Err()
		}
	}
	if err != nil {
		return model.JD{}, err
	}
	return model.JD{Title: "JD for " + link, Company: "Acme"}, nil
}

func (f *fakeJD) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeMatcher struct {
	calls int
}

func (f *fakeMatcher) Match(_ context.Context, _ model.Profile, jd model.JD) (model.MatchResult, error) {
	f.calls++
	return model.MatchResult{Score: 80, Reasons: []string{jd.Title}}, nil
}

type fakeRenderer struct {
	mu        sync.Mutex
	exported  []model.JD
	previewed []model.JD
}

func (f *fakeRenderer) Preview(_ context.Context, _ model.Profile, jd model.JD, opts model.RenderOptions) (model.Document, error) {
	f.mu.Lock()
	f.previewed = append(f.previewed, jd)
	f.mu.Unlock()
	return model.Document{HTML: "<p>" + jd.Title + "</p>", Meta: map[string]any{"template_id": opts.TemplateID}}, nil
}

func (f *fakeRenderer) Export(_ context.Context, _ model.Profile, jd model.JD, _ model.RenderOptions, format model.ExportFormat) (model.Artifact, error) {
	f.mu.Lock()
	f.exported = append(f.exported, jd)
	f.mu.Unlock()
	return model.Artifact{Format: format, Data: []byte(jd.Title)}, nil
}

type fakeProfiles struct {
	p  model.Profile
	ok bool
}

func (f *fakeProfiles) Current() (model.Profile, bool) { return f.p, f.ok }

type fakeWriter struct {
	written []string
}

func (f *fakeWriter) Write(p model.Posting, a model.Artifact) (model.Artifact, error) {
	f.written = append(f.written, p.Hash)
	a.Path = "/tmp/" + p.Hash
	return a, nil
}

// --- Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	ctrl     *Controller
	jd       *fakeJD
	matcher  *fakeMatcher
	renderer *fakeRenderer
	profiles *fakeProfiles
	writer   *fakeWriter
}

func newHarness(withProfile bool) *harness {
	h := &harness{
		jd:       &fakeJD{},
		matcher:  &fakeMatcher{},
		renderer: &fakeRenderer{},
		profiles: &fakeProfiles{p: model.Profile{Name: "Ada"}, ok: withProfile},
		writer:   &fakeWriter{},
	}
	h.ctrl = NewController(h.jd, h.matcher, h.renderer, h.profiles, h.writer,
		model.RenderOptions{TemplateID: "resume-ats-en", Language: "en", Polish: true}, testLogger())
	return h
}

func posting(hash string) model.Posting {
	return model.Posting{Hash: hash, Source: "seek", Title: "Engineer " + hash, URL: "https://jobs.example/" + hash}
}

func assertStatus(t *testing.T, c *Controller, hash string, st Stage, want Status) {
	t.Helper()
	s, ok := c.State(hash)
	if !ok {
		t.Fatalf("posting %s not registered", hash)
	}
	if got := s.Stage(st).Status; got != want {
		t.Errorf("%s status for %s = %s, want %s", st, hash, got, want)
	}
}

// --- Tests ---

func TestRegister_KeepsArrivalOrderAndIgnoresDuplicates(t *testing.T) {
	h := newHarness(true)
	h.ctrl.Register(posting("h1"))
	h.ctrl.Register(posting("h2"))
	h.ctrl.Register(posting("h1"))

	got := h.ctrl.Hashes()
	if len(got) != 2 || got[0] != "h1" || got[1] != "h2" {
		t.Fatalf("hashes = %v, want [h1 h2]", got)
	}
	for _, st := range Stages {
		assertStatus(t, h.ctrl, "h1", st, Idle)
	}
	if p, ok := h.ctrl.Posting("h2"); !ok || p.Title != "Engineer h2" {
		t.Errorf("Posting(h2) = %+v, %v", p, ok)
	}
}

func TestMatch_WithoutFetchedJDIsRejected(t *testing.T) {
	h := newHarness(true)
	h.ctrl.Register(posting("h1"))

	_, err := h.ctrl.Match(context.Background(), "h1")
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	if pe.Stage != Match {
		t.Errorf("precondition stage = %s, want match", pe.Stage)
	}
	if h.matcher.calls != 0 {
		t.Errorf("matcher called %d times, want 0", h.matcher.calls)
	}
	assertStatus(t, h.ctrl, "h1", FetchJD, Idle)
	assertStatus(t, h.ctrl, "h1", Match, Idle)
}

func TestStages_WithoutProfileAreRejected(t *testing.T) {
	h := newHarness(false)
	h.ctrl.Register(posting("h1"))
	ctx := context.Background()

	if _, err := h.ctrl.FetchJD(ctx, "h1"); err != nil {
		t.Fatalf("FetchJD: %v", err)
	}

	_, errMatch := h.ctrl.Match(ctx, "h1")
	_, errPreview := h.ctrl.Preview(ctx, "h1")
	_, errExport := h.ctrl.Export(ctx, "h1", model.FormatPDF)
	for _, err := range []error{errMatch, errPreview, errExport} {
		if !IsPrecondition(err) {
			t.Errorf("expected precondition error, got %v", err)
		}
	}
	assertStatus(t, h.ctrl, "h1", FetchJD, Done)
	assertStatus(t, h.ctrl, "h1", Match, Idle)
	assertStatus(t, h.ctrl, "h1", Preview, Idle)
	assertStatus(t, h.ctrl, "h1", Export, Idle)
}

func TestFullPipeline(t *testing.T) {
	h := newHarness(true)
	h.ctrl.Register(posting("h1"))
	ctx := context.Background()

	jd, err := h.ctrl.FetchJD(ctx, "h1")
	if err != nil {
		t.Fatalf("FetchJD: %v", err)
	}
	if jd.Title != "JD for https://jobs.example/h1" {
		t.Errorf("jd title = %q", jd.Title)
	}

	res, err := h.ctrl.Match(ctx, "h1")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res.Score != 80 {
		t.Errorf("score = %v, want 80", res.Score)
	}

	doc, err := h.ctrl.Preview(ctx, "h1")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if doc.Meta["template_id"] != "resume-ats-en" {
		t.Errorf("preview meta = %v", doc.Meta)
	}

	art, err := h.ctrl.Export(ctx, "h1", model.FormatDOCX)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if art.Path != "/tmp/h1" || art.Format != model.FormatDOCX {
		t.Errorf("artifact = %+v", art)
	}

	s, _ := h.ctrl.State("h1")
	for _, st := range Stages {
		if s.Stage(st).Status != Done {
			t.Errorf("%s = %s, want done", st, s.Stage(st).Status)
		}
	}
	if s.Match == nil || s.Preview == nil || s.Artifact == nil || s.Posting.JD == nil {
		t.Errorf("state missing results: %+v", s)
	}
}

func TestFetchJD_FailureIsRetriable(t *testing.T) {
	h := newHarness(true)
	h.ctrl.Register(posting("h1"))
	ctx := context.Background()

	h.jd.setErr(errors.New("upstream 502"))
	if _, err := h.ctrl.FetchJD(ctx, "h1"); err == nil {
		t.Fatal("expected error")
	}
	assertStatus(t, h.ctrl, "h1", FetchJD, Failed)
	s, _ := h.ctrl.State("h1")
	if s.Stage(FetchJD).Err == "" {
		t.Error("expected failure text to be recorded")
	}

	h.jd.setErr(nil)
	if _, err := h.ctrl.FetchJD(ctx, "h1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	assertStatus(t, h.ctrl, "h1", FetchJD, Done)
	s, _ = h.ctrl.State("h1")
	if s.Stage(FetchJD).Err != "" {
		t.Errorf("stale failure text %q after success", s.Stage(FetchJD).Err)
	}
}

func TestExport_UsesOwnPostingsJD(t *testing.T) {
	h := newHarness(true)
	h.ctrl.Register(posting("a"))
	h.ctrl.Register(posting("b"))
	ctx := context.Background()

	if _, err := h.ctrl.FetchJD(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ctrl.FetchJD(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ctrl.Export(ctx, "a", model.FormatPDF); err != nil {
		t.Fatal(err)
	}

	if len(h.renderer.exported) != 1 {
		t.Fatalf("exports = %d, want 1", len(h.renderer.exported))
	}
	if got := h.renderer.exported[0].Title; got != "JD for https://jobs.example/a" {
		t.Errorf("export used JD %q, want posting a's", got)
	}
	if len(h.writer.written) != 1 || h.writer.written[0] != "a" {
		t.Errorf("written = %v, want [a]", h.writer.written)
	}
}

func TestExport_RequiresOwnJD(t *testing.T) {
	h := newHarness(true)
	h.ctrl.Register(posting("a"))
	h.ctrl.Register(posting("b"))
	ctx := context.Background()

	if _, err := h.ctrl.FetchJD(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ctrl.Export(ctx, "a", model.FormatPDF); !IsPrecondition(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if len(h.renderer.exported) != 0 {
		t.Error("renderer must not be called")
	}
}

func TestStage_BusyRejectsRetriggerOnly(t *testing.T) {
	h := newHarness(true)
	h.ctrl.Register(posting("a"))
	h.ctrl.Register(posting("b"))
	gate := make(chan struct{})
	h.jd.gate = gate

	errc := make(chan error, 1)
	go func() {
		_, err := h.ctrl.FetchJD(context.Background(), "a")
		errc <- err
	}()
	waitFor(t, func() bool {
		s, _ := h.ctrl.State("a")
		return s.Stage(FetchJD).Status == Running
	})

	if _, err := h.ctrl.FetchJD(context.Background(), "a"); !errors.Is(err, ErrStageBusy) {
		t.Fatalf("second trigger err = %v, want ErrStageBusy", err)
	}

	// Another posting is not blocked by a's outstanding fetch.
	other := make(chan error, 1)
	go func() {
		_, err := h.ctrl.FetchJD(context.Background(), "b")
		other <- err
	}()
	waitFor(t, func() bool {
		s, _ := h.ctrl.State("b")
		return s.Stage(FetchJD).Status == Running
	})

	close(gate)
	if err := <-errc; err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if err := <-other; err != nil {
		t.Fatalf("other fetch: %v", err)
	}
	assertStatus(t, h.ctrl, "a", FetchJD, Done)
	assertStatus(t, h.ctrl, "b", FetchJD, Done)
}

func TestClear_DiscardsInFlightResult(t *testing.T) {
	h := newHarness(true)
	h.ctrl.Register(posting("a"))
	gate := make(chan struct{})
	h.jd.gate = gate

	errc := make(chan error, 1)
	go func() {
		_, err := h.ctrl.FetchJD(context.Background(), "a")
		errc <- err
	}()
	waitFor(t, func() bool {
		s, _ := h.ctrl.State("a")
		return s.Stage(FetchJD).Status == Running
	})

	h.ctrl.Clear()
	h.ctrl.Register(posting("a"))
	close(gate)
	<-errc

	assertStatus(t, h.ctrl, "a", FetchJD, Idle)
	s, _ := h.ctrl.State("a")
	if s.Posting.JD != nil {
		t.Error("stale JD written into re-registered posting")
	}
}

func TestUnknownPosting(t *testing.T) {
	h := newHarness(true)
	if _, err := h.ctrl.FetchJD(context.Background(), "nope"); !errors.Is(err, ErrUnknownPosting) {
		t.Fatalf("err = %v, want ErrUnknownPosting", err)
	}
}

func TestFetchJD_MissingLink(t *testing.T) {
	h := newHarness(true)
	p := posting("h1")
	p.URL = ""
	h.ctrl.Register(p)

	if _, err := h.ctrl.FetchJD(context.Background(), "h1"); !IsPrecondition(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	assertStatus(t, h.ctrl, "h1", FetchJD, Idle)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 500; i++ {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
