package notifier

import (
	"log/slog"
	"sync"

	"github.com/amishk599/jobscout/internal/model"
)

// Ensure LogDisplay implements model.Display.
var _ model.Display = (*LogDisplay)(nil)

// LogDisplay writes discovery output to the given logger as structured
// messages. It backs headless runs where no TUI owns the terminal.
type LogDisplay struct {
	logger *slog.Logger

	mu       sync.Mutex
	postings []model.Posting
	last     model.Progress
	reason   *model.CloseReason
}

// NewLogDisplay returns a display that logs each posting via slog.
func NewLogDisplay(logger *slog.Logger) *LogDisplay {
	return &LogDisplay{logger: logger}
}

// ShowPosting logs the posting with source, company, title, location and link.
func (d *LogDisplay) ShowPosting(p model.Posting) {
	d.mu.Lock()
	d.postings = append(d.postings, p)
	d.mu.Unlock()

	args := []any{"source", p.Source, "company", p.Company, "title", p.Title, "hash", p.Hash}
	if p.Location != "" {
		args = append(args, "location", p.Location)
	}
	if p.URL != "" {
		args = append(args, "url", p.URL)
	}
	if p.PostedAt != "" {
		args = append(args, "posted_at", p.PostedAt)
	}
	d.logger.Info("new job", args...)
}

func (d *LogDisplay) ShowProgress(p model.Progress) {
	d.mu.Lock()
	d.last = p
	d.mu.Unlock()

	args := []any{"delivered", p.Delivered, "requested", p.Requested}
	for src, n := range p.BySource {
		args = append(args, src, n)
	}
	d.logger.Debug("progress", args...)
}

func (d *LogDisplay) ShowNotice(n model.Notice) {
	switch n.Level {
	case model.NoticeError:
		d.logger.Error(n.Text)
	case model.NoticeAdvisory:
		d.logger.Warn(n.Text)
	default:
		d.logger.Info(n.Text)
	}
}

func (d *LogDisplay) StreamClosed(reason model.CloseReason) {
	d.mu.Lock()
	d.reason = &reason
	d.mu.Unlock()
	d.logger.Info("stream closed", "reason", reason)
}

// Postings returns every posting shown so far, in arrival order.
func (d *LogDisplay) Postings() []model.Posting {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.Posting, len(d.postings))
	copy(out, d.postings)
	return out
}

// Progress returns the last progress report.
func (d *LogDisplay) Progress() model.Progress {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Closed returns why the last stream closed, if it has.
func (d *LogDisplay) Closed() (model.CloseReason, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reason == nil {
		return 0, false
	}
	return *d.reason, true
}
