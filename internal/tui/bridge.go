package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/jobscout/internal/model"
)

type postingMsg struct{ hash string }

type progressMsg struct{ progress model.Progress }

type noticeMsg struct{ notice model.Notice }

type closedMsg struct{ reason model.CloseReason }

// Bridge is the model.Display handed to the session. It forwards every
// emission into the running bubbletea program as a message, so the view is
// only ever touched from the program's update loop.
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
}

var _ model.Display = (*Bridge)(nil)

// NewBridge returns a bridge with no program attached. Emissions before
// Attach are dropped.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach connects the bridge to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.program = p
	b.mu.Unlock()
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (b *Bridge) ShowPosting(p model.Posting)           { b.send(postingMsg{hash: p.Hash}) }
func (b *Bridge) ShowProgress(p model.Progress)         { b.send(progressMsg{progress: p}) }
func (b *Bridge) ShowNotice(n model.Notice)             { b.send(noticeMsg{notice: n}) }
func (b *Bridge) StreamClosed(reason model.CloseReason) { b.send(closedMsg{reason: reason}) }
