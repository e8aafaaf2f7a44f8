package notify

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"golang.org/x/xerrors"
)

// Event is the envelope every transport carries.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

type Notifier interface {
	// Send delivers one event. It returns once the transport accepted it; no acknowledgment from the client is awaited.
	Send(ctx context.Context, event string, payload any) error
}

type discard struct{}

// Discard accepts and drops every event.
var Discard Notifier = discard{}

func (discard) Send(ctx context.Context, event string, payload any) error {
	return nil
}

// Multi sends to each notifier in order and stops at the first failure.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, event string, payload any) error {
	for _, n := range m {
		if err := n.Send(ctx, event, payload); err != nil {
			return err
		}
	}
	return nil
}

// WriterNotifier writes each event as one JSON line.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{
		w: w,
	}
}

func (n *WriterNotifier) Send(ctx context.Context, event string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := json.NewEncoder(n.w).Encode(Event{Name: event, Data: payload}); err != nil {
		return xerrors.Errorf("failed to write event %s: %w", event, err)
	}
	return nil
}
