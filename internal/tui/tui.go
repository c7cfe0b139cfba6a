// Package tui is the interactive terminal display for a search session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/jobscout/internal/batch"
	"github.com/amishk599/jobscout/internal/config"
	"github.com/amishk599/jobscout/internal/filter"
	"github.com/amishk599/jobscout/internal/model"
	"github.com/amishk599/jobscout/internal/pipeline"
	"github.com/amishk599/jobscout/internal/render"
	"github.com/amishk599/jobscout/internal/session"
)

// Lines per job item in the list view (title + subtitle + blank separator).
const jobItemHeight = 3

type viewState int

const (
	viewForm viewState = iota
	viewList
	viewDetail
)

type searchDoneMsg struct {
	query model.SearchQuery
	err   error
}

type batchDoneMsg struct {
	result batch.Result
	err    error
}

type stageDoneMsg struct {
	hash  string
	stage pipeline.Stage
	err   error
}

type clearedMsg struct{ err error }

// Model is the bubbletea model for a search session. Session calls that
// may reach the stream controller run inside commands, never in Update:
// the controller emits to the display while holding its lock.
type Model struct {
	ctx    context.Context
	sess   *session.Session
	format model.ExportFormat

	view   viewState
	form   searchForm
	width  int
	height int
	ready  bool

	list     viewport.Model
	cursor   int
	spinner  spinner.Model
	progress progress.Model

	streaming bool
	batching  bool
	last      model.Progress
	notice    *model.Notice

	// List filter; nil shows every posting.
	filter      *filter.PostingFilter
	filterInput textinput.Model
	filtering   bool

	// Detail view state
	detailHash  string
	detail      viewport.Model
	showPreview bool
	previews    map[string]string // rendered preview text by hash
	picker      *formatPicker
}

// New creates the TUI model. The form is pre-filled from cfg.
func New(ctx context.Context, sess *session.Session, cfg *config.Config) Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = runningStyle
	fi := textinput.New()
	fi.Prompt = " filter: "
	fi.Placeholder = "words loc:city src:seek"
	return Model{
		ctx:         ctx,
		sess:        sess,
		format:      cfg.Export.Format,
		form:        newSearchForm(cfg.Search),
		spinner:     sp,
		progress:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		previews:    make(map[string]string),
		filterInput: fi,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case postingMsg:
		m.refresh()
		return m, nil

	case progressMsg:
		m.last = msg.progress
		return m, nil

	case noticeMsg:
		n := msg.notice
		m.notice = &n
		return m, nil

	case closedMsg:
		m.streaming = false
		return m, nil

	case searchDoneMsg:
		if msg.err != nil {
			m.streaming = false
		}
		return m, nil

	case batchDoneMsg:
		m.batching = false
		if msg.err != nil && !errors.Is(msg.err, batch.ErrBusy) {
			m.setNotice(model.NoticeError, msg.err.Error())
		}
		m.refresh()
		return m, nil

	case stageDoneMsg:
		m.stageDone(msg)
		m.refresh()
		return m, nil

	case clearedMsg:
		if msg.err != nil {
			m.setNotice(model.NoticeError, msg.err.Error())
		}
		m.streaming = false
		m.cursor = 0
		m.previews = make(map[string]string)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case viewForm:
			return m.updateForm(msg)
		case viewDetail:
			return m.updateDetailView(msg)
		}
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if _, ok := m.sess.Query(); ok {
			m.view = viewList
		}
		return m, nil
	case "enter":
		m.view = viewList
		m.streaming = true
		m.cursor = 0
		m.last = model.Progress{}
		m.notice = nil
		m.previews = make(map[string]string)
		return m, m.searchCmd()
	}
	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

func (m Model) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "/", "n":
		m.view = viewForm
		return m, nil
	case "r":
		m.streaming = true
		m.cursor = 0
		m.last = model.Progress{}
		m.previews = make(map[string]string)
		return m, m.searchCmd()
	case "s":
		sess := m.sess
		return m, func() tea.Msg {
			sess.Stop()
			return nil
		}
	case "m":
		if m.batching {
			return m, nil
		}
		m.batching = true
		sess, ctx := m.sess, m.ctx
		return m, func() tea.Msg {
			res, err := sess.More(ctx)
			return batchDoneMsg{result: res, err: err}
		}
	case "c":
		sess := m.sess
		return m, func() tea.Msg {
			sess.ClearResults()
			return clearedMsg{}
		}
	case "f":
		m.filtering = true
		return m, m.filterInput.Focus()
	case "up", "k":
		m.moveCursor(-1)
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		return m, nil
	case "enter":
		return m.openDetailView()
	}

	// Forward other keys (pgup/pgdn/home/end) to the list viewport.
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.filter = filter.Parse(m.filterInput.Value())
		if m.filter.Empty() {
			m.filter = nil
		}
	case "esc":
		m.filter = nil
		m.filterInput.SetValue("")
	default:
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		return m, cmd
	}
	m.filtering = false
	m.filterInput.Blur()
	m.cursor = 0
	m.list.SetYOffset(0)
	m.refresh()
	return m, nil
}

func (m Model) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker != nil {
		p := m.picker.Update(msg)
		if !p.done {
			m.picker = &p
			return m, nil
		}
		m.picker = nil
		if p.chosen == nil {
			return m, nil
		}
		m.format = *p.chosen
		return m, m.stageCmd(m.detailHash, pipeline.Export)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		m.refresh()
		return m, nil
	case "o":
		if p, ok := m.sess.Pipeline().Posting(m.detailHash); ok && p.URL != "" {
			openURL(p.URL)
		}
		return m, nil
	case "f":
		return m, m.stageCmd(m.detailHash, pipeline.FetchJD)
	case "t":
		return m, m.stageCmd(m.detailHash, pipeline.Match)
	case "p":
		return m, m.stageCmd(m.detailHash, pipeline.Preview)
	case "v":
		m.showPreview = !m.showPreview
		m.refresh()
		m.detail.SetYOffset(0)
		return m, nil
	case "e":
		company := ""
		if p, ok := m.sess.Pipeline().Posting(m.detailHash); ok {
			company = p.Company
		}
		fp := newFormatPicker(company, m.format)
		m.picker = &fp
		return m, nil
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

// stageCmd triggers one pipeline stage. The stage marks itself running
// before the backend call, so the next spinner tick shows it.
func (m Model) stageCmd(hash string, st pipeline.Stage) tea.Cmd {
	p, ctx, format := m.sess.Pipeline(), m.ctx, m.format
	return func() tea.Msg {
		var err error
		switch st {
		case pipeline.FetchJD:
			_, err = p.FetchJD(ctx, hash)
		case pipeline.Match:
			_, err = p.Match(ctx, hash)
		case pipeline.Preview:
			_, err = p.Preview(ctx, hash)
		case pipeline.Export:
			_, err = p.Export(ctx, hash, format)
		}
		return stageDoneMsg{hash: hash, stage: st, err: err}
	}
}

func (m *Model) stageDone(msg stageDoneMsg) {
	switch {
	case pipeline.IsPrecondition(msg.err):
		m.setNotice(model.NoticeAdvisory, msg.err.Error())
		return
	case errors.Is(msg.err, pipeline.ErrStageBusy):
		m.setNotice(model.NoticeInfo, fmt.Sprintf("%s is already running", msg.stage))
		return
	case msg.err != nil:
		m.setNotice(model.NoticeError, msg.err.Error())
		return
	}

	st, ok := m.sess.Pipeline().State(msg.hash)
	if !ok {
		return
	}
	switch msg.stage {
	case pipeline.Preview:
		if st.Preview != nil {
			text, err := render.Text(st.Preview.HTML)
			if err != nil {
				text = st.Preview.HTML
			}
			m.previews[msg.hash] = text
			m.showPreview = true
		}
	case pipeline.Export:
		if st.Artifact != nil {
			m.setNotice(model.NoticeInfo, "saved "+st.Artifact.Path)
		}
	}
}

func (m *Model) setNotice(level model.NoticeLevel, text string) {
	m.notice = &model.Notice{Level: level, Text: text}
}

func (m Model) searchCmd() tea.Cmd {
	sess, ctx, in := m.sess, m.ctx, m.form.Input()
	return func() tea.Msg {
		q, err := sess.Search(ctx, in)
		return searchDoneMsg{query: q, err: err}
	}
}

// visibleHashes returns the arena's postings that pass the list filter,
// in delivery order.
func (m Model) visibleHashes() []string {
	p := m.sess.Pipeline()
	hashes := p.Hashes()
	if m.filter == nil {
		return hashes
	}
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if posting, ok := p.Posting(h); ok && m.filter.Match(posting) {
			out = append(out, h)
		}
	}
	return out
}

func (m *Model) moveCursor(delta int) {
	n := len(m.visibleHashes())
	m.cursor = clamp(m.cursor+delta, 0, max(n-1, 0))
	m.refresh()
	m.ensureCursorVisible()
}

func (m *Model) ensureCursorVisible() {
	cursorTop := m.cursor * jobItemHeight
	cursorBottom := cursorTop + jobItemHeight - 1

	if cursorTop < m.list.YOffset {
		m.list.SetYOffset(cursorTop)
	} else if cursorBottom >= m.list.YOffset+m.list.Height {
		m.list.SetYOffset(cursorBottom - m.list.Height + 1)
	}
}

func (m Model) openDetailView() (tea.Model, tea.Cmd) {
	hashes := m.visibleHashes()
	if len(hashes) == 0 {
		return m, nil
	}
	m.view = viewDetail
	m.detailHash = hashes[clamp(m.cursor, 0, len(hashes)-1)]
	m.showPreview = m.previews[m.detailHash] != ""
	m.detail = viewport.New(m.width-4, m.height-5)
	m.refresh()
	return m, nil
}

func (m *Model) recalcLayout() {
	// Header (1 line) + border top/bottom (2) + progress (1) + status bar (2).
	width := max(m.width-2, 20)
	height := max(m.height-6, 5)

	if !m.ready {
		m.list = viewport.New(width, height)
		m.ready = true
	} else {
		m.list.Width = width
		m.list.Height = height
	}
	m.detail.Width = m.width - 4
	m.detail.Height = m.height - 5
	m.progress.Width = max(m.width-30, 10)

	m.refresh()
}

// refresh re-renders viewport content from the pipeline arena.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	p := m.sess.Pipeline()
	hashes := m.visibleHashes()
	m.cursor = clamp(m.cursor, 0, max(len(hashes)-1, 0))

	states := make([]pipeline.State, 0, len(hashes))
	for _, h := range hashes {
		if st, ok := p.State(h); ok {
			states = append(states, st)
		}
	}
	m.list.SetContent(renderPostings(states, m.cursor))

	if m.view == viewDetail {
		st, ok := p.State(m.detailHash)
		if !ok {
			// Cleared underneath us.
			m.view = viewList
			return
		}
		m.detail.SetContent(renderDetail(st, m.previews[m.detailHash], m.showPreview, m.spinner.View(), max(m.width-8, 20)))
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	switch m.view {
	case viewForm:
		return m.form.View() + "\n\n" + statusBarStyle.Width(m.width).Render(" tab/↑/↓ field  enter search  esc back  ctrl+c quit")
	case viewDetail:
		return m.viewDetail()
	}
	return m.viewList()
}

func (m Model) viewList() string {
	count := m.sess.Pipeline().Len()
	header := fmt.Sprintf(" Jobs (%d)", count)
	if m.filter != nil {
		header = fmt.Sprintf(" Jobs (%d of %d) · filter: %s", len(m.visibleHashes()), count, m.filterInput.Value())
	}
	if q, ok := m.sess.Query(); ok && len(q.Titles) > 0 {
		header += " · " + strings.Join(q.Titles, ", ")
	}
	if p, ok := m.sess.Profiles().Current(); ok && p.Name != "" {
		header += " · profile: " + p.Name
	}

	pane := activeBorderStyle.Width(m.list.Width).Render(m.list.View())

	footer := m.statusBar(" / search  r restart  s stop  m more  c clear  f filter  ↑/↓ cursor  enter detail  q quit")
	if m.filtering {
		footer = m.filterInput.View() + "\n" + statusBarStyle.Width(m.width).Render(" enter apply  esc clear filter")
	}
	return headerStyle.Render(header) + "\n" + pane + "\n" + m.progressLine() + "\n" + footer
}

func (m Model) viewDetail() string {
	title := detailTitleStyle.Render("Job Details")
	if m.picker != nil {
		return title + "\n" + m.picker.View()
	}
	content := activeBorderStyle.Width(m.width - 2).Render(m.detail.View())
	return title + "\n" + content + "\n" + m.statusBar(
		" f fetch JD  t match  p preview  v toggle preview  e export  o open URL  esc back  q quit")
}

func (m Model) progressLine() string {
	var state string
	switch {
	case m.streaming:
		state = m.spinner.View() + " streaming"
	case m.batching:
		state = m.spinner.View() + " fetching more"
	default:
		state = "  idle"
	}

	ratio := 0.0
	if m.last.Requested > 0 {
		ratio = min(float64(m.last.Delivered)/float64(m.last.Requested), 1)
	}
	line := fmt.Sprintf(" %-16s %s %d/%d", state, m.progress.ViewAs(ratio), m.last.Delivered, m.last.Requested)
	for _, src := range model.Sources {
		if n, ok := m.last.BySource[src]; ok {
			line += fmt.Sprintf("  %s:%d", src, n)
		}
	}
	return line
}

func (m Model) statusBar(keys string) string {
	line := ""
	if m.notice != nil {
		style := infoStyle
		switch m.notice.Level {
		case model.NoticeAdvisory:
			style = advisoryStyle
		case model.NoticeError:
			style = errorStyle
		}
		line = " " + style.Render(m.notice.Text) + "\n"
	}
	return line + statusBarStyle.Width(m.width).Render(keys)
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// Run launches the full-screen search TUI and blocks until the user quits.
// The open stream is stopped on exit.
func Run(ctx context.Context, sess *session.Session, bridge *Bridge, cfg *config.Config) error {
	defer sess.Close()

	p := tea.NewProgram(New(ctx, sess, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)
	_, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
