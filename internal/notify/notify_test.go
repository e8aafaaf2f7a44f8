package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
)

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Send(ctx context.Context, event string, payload any) error {
	r.events = append(r.events, Event{Name: event, Data: payload})
	return r.err
}

func TestHub(t *testing.T) {
	t.Run("DeliversToAllSubscribers", func(t *testing.T) {
		h := NewHub(1, prometheus.NewRegistry())
		first, cancelFirst := h.Subscribe()
		defer cancelFirst()
		second, cancelSecond := h.Subscribe()
		defer cancelSecond()

		if err := h.Send(context.Background(), "ping", map[string]string{"k": "v"}); err != nil {
			t.Fatal(err)
		}

		for _, ch := range []<-chan Event{first, second} {
			select {
			case e := <-ch:
				if diff := cmp.Diff(Event{Name: "ping", Data: map[string]string{"k": "v"}}, e); diff != "" {
					t.Errorf("(-want +got):\n%s", diff)
				}
			case <-time.After(time.Second):
				t.Fatal("Expected event to be delivered")
			}
		}
	})

	t.Run("DropsWhenFull", func(t *testing.T) {
		h := NewHub(1, prometheus.NewRegistry())
		ch, cancel := h.Subscribe()
		defer cancel()

		_ = h.Send(context.Background(), "first", nil)
		if err := h.Send(context.Background(), "second", nil); err != nil {
			t.Fatalf("Expected Send not to fail for a slow subscriber, got %v", err)
		}

		if e := <-ch; e.Name != "first" {
			t.Errorf("Expected first event, got %s", e.Name)
		}
		select {
		case e := <-ch:
			t.Errorf("Expected second event to be dropped, got %s", e.Name)
		default:
		}
	})

	t.Run("CancelUnsubscribes", func(t *testing.T) {
		h := NewHub(1, prometheus.NewRegistry())
		ch, cancel := h.Subscribe()
		if h.Len() != 1 {
			t.Fatalf("Expected 1 subscriber, got %d", h.Len())
		}

		cancel()
		cancel()

		if h.Len() != 0 {
			t.Errorf("Expected 0 subscribers, got %d", h.Len())
		}
		if _, ok := <-ch; ok {
			t.Errorf("Expected channel to be closed")
		}
		if err := h.Send(context.Background(), "after", nil); err != nil {
			t.Errorf("Expected Send without subscribers to succeed, got %v", err)
		}
	})
}

func TestHTTPNotifier(t *testing.T) {
	t.Run("PostsEnvelope", func(t *testing.T) {
		var got map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("Expected POST, got %s", r.Method)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected application/json, got %s", ct)
			}
			b, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(b, &got); err != nil {
				t.Errorf("Expected json body, got %v", err)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		n := NewHTTPNotifier(server.URL, time.Second)
		if err := n.Send(context.Background(), "ping", map[string]string{"node_id": "7"}); err != nil {
			t.Fatal(err)
		}

		want := map[string]any{
			"event": "ping",
			"data":  map[string]any{"node_id": "7"},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("FailsOnErrorStatus", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		n := NewHTTPNotifier(server.URL, time.Second)
		if err := n.Send(context.Background(), "ping", nil); err == nil {
			t.Errorf("Expected error for 502 response")
		}
		if calls != 1 {
			t.Errorf("Expected exactly one attempt, got %d", calls)
		}
	})
}

type fakePublisher struct {
	channel string
	message any
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message = message
	return redis.NewIntResult(1, f.err)
}

func TestRedisNotifier(t *testing.T) {
	t.Run("Publishes", func(t *testing.T) {
		p := &fakePublisher{}
		n := NewRedisNotifier(p, "previews")

		if err := n.Send(context.Background(), "ping", map[string]int{"n": 1}); err != nil {
			t.Fatal(err)
		}
		if p.channel != "previews" {
			t.Errorf("Expected channel previews, got %s", p.channel)
		}
		if diff := cmp.Diff([]byte(`{"event":"ping","data":{"n":1}}`), p.message); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("PropagatesError", func(t *testing.T) {
		cause := errors.New("connection refused")
		n := NewRedisNotifier(&fakePublisher{err: cause}, "previews")

		if err := n.Send(context.Background(), "ping", nil); !errors.Is(err, cause) {
			t.Errorf("Expected %v, got %v", cause, err)
		}
	})
}

func TestMulti(t *testing.T) {
	cause := errors.New("boom")
	first := &recorder{}
	failing := &recorder{err: cause}
	last := &recorder{}

	err := Multi{first, failing, last}.Send(context.Background(), "ping", nil)
	if !errors.Is(err, cause) {
		t.Errorf("Expected %v, got %v", cause, err)
	}
	if len(first.events) != 1 || len(failing.events) != 1 || len(last.events) != 0 {
		t.Errorf("Expected delivery to stop at the failing notifier, got %d/%d/%d", len(first.events), len(failing.events), len(last.events))
	}
}

func TestWriterNotifier(t *testing.T) {
	var buffer bytes.Buffer
	n := NewWriterNotifier(&buffer)

	if err := n.Send(context.Background(), "ping", map[string]any{"image_a_data": nil}); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff("{\"event\":\"ping\",\"data\":{\"image_a_data\":null}}\n", buffer.String()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
