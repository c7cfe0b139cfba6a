package notifier

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/amishk599/jobscout/internal/model"
)

func newTestDisplay() (*LogDisplay, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewLogDisplay(logger), &buf
}

func TestLogDisplay_ShowPosting(t *testing.T) {
	d, buf := newTestDisplay()
	d.ShowPosting(model.Posting{Hash: "h1", Source: "seek", Company: "Acme", Title: "Engineer", URL: "https://example.com/1"})
	d.ShowPosting(model.Posting{Hash: "h2", Source: "linkedin", Company: "Beta", Title: "Developer"})

	out := buf.String()
	for _, want := range []string{"new job", "company=Acme", "url=https://example.com/1", "source=linkedin"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	got := d.Postings()
	if len(got) != 2 || got[0].Hash != "h1" || got[1].Hash != "h2" {
		t.Errorf("Postings = %+v", got)
	}
}

func TestLogDisplay_ProgressAndClose(t *testing.T) {
	d, buf := newTestDisplay()

	if _, ok := d.Closed(); ok {
		t.Fatal("new display should not report a close")
	}
	d.ShowProgress(model.Progress{Delivered: 3, Requested: 10, BySource: map[string]int{"seek": 5}})
	d.StreamClosed(model.ClosedByEnd)

	if p := d.Progress(); p.Delivered != 3 || p.Requested != 10 {
		t.Errorf("Progress = %+v", p)
	}
	if r, ok := d.Closed(); !ok || r != model.ClosedByEnd {
		t.Errorf("Closed = %v, %v", r, ok)
	}
	if !strings.Contains(buf.String(), "seek=5") || !strings.Contains(buf.String(), "reason=end") {
		t.Errorf("log output:\n%s", buf.String())
	}
}

func TestLogDisplay_NoticeLevels(t *testing.T) {
	d, buf := newTestDisplay()
	d.ShowNotice(model.Notice{Level: model.NoticeInfo, Text: "no further distinct results"})
	d.ShowNotice(model.Notice{Level: model.NoticeAdvisory, Text: "narrow filters"})
	d.ShowNotice(model.Notice{Level: model.NoticeError, Text: "search failed"})

	out := buf.String()
	for _, want := range []string{"level=INFO", "level=WARN", "level=ERROR"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
