package backend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/amishk599/jobscout/internal/model"
)

const maxEventSize = 1 << 20

// sseSubscription reads a text/event-stream body and hands each complete
// event to Events in arrival order.
type sseSubscription struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	logger *slog.Logger

	events chan model.Event
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

func newSSESubscription(body io.ReadCloser, cancel context.CancelFunc, logger *slog.Logger) *sseSubscription {
	return &sseSubscription{
		body:   body,
		cancel: cancel,
		logger: logger,
		events: make(chan model.Event),
		done:   make(chan struct{}),
	}
}

func (s *sseSubscription) Events() <-chan model.Event { return s.events }

func (s *sseSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the connection. Safe to call more than once.
func (s *sseSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.cancel()
		err = s.body.Close()
	})
	return err
}

func (s *sseSubscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *sseSubscription) read() {
	defer close(s.events)

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventSize)

	var (
		kind string
		data bytes.Buffer
	)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if kind == "" && data.Len() == 0 {
				continue
			}
			if !s.dispatch(kind, data.Bytes()) {
				return
			}
			kind = ""
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			kind = value
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
	}

	if err := scanner.Err(); err != nil && !s.closed() {
		s.mu.Lock()
		s.err = fmt.Errorf("reading event stream: %w", err)
		s.mu.Unlock()
	}
}

// dispatch delivers one event. It reports false once the subscription has
// been closed.
func (s *sseSubscription) dispatch(kind string, data []byte) bool {
	if kind == "" {
		kind = "message"
	}
	ev := model.Event{Kind: kind, Data: bytes.Clone(data)}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		s.logger.Debug("dropping event after close", "kind", kind)
		return false
	}
}
