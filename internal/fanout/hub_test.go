package fanout

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"viatrack/internal/domain"
)

type recordSink struct {
	mu     sync.Mutex
	msgs   [][]byte
	fail   bool
	closed bool
}

func (r *recordSink) Send(msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("send failed")
	}
	r.msgs = append(r.msgs, append([]byte(nil), msg...))
	return nil
}

func (r *recordSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordSink) messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs
}

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	h := NewHub()
	a, b := &recordSink{}, &recordSink{}
	h.Subscribe(a)
	h.Subscribe(b)

	ts := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	h.Broadcast(domain.Fix{ID: 1, Latitude: 11.02, Longitude: -74.85, Timestamp: ts})

	for _, sink := range []*recordSink{a, b} {
		msgs := sink.messages()
		if len(msgs) != 1 {
			t.Fatalf("expected exactly one message, got %d", len(msgs))
		}
		var got Message
		if err := json.Unmarshal(msgs[0], &got); err != nil {
			t.Fatal(err)
		}
		want := Message{ID: 1, Latitude: 11.02, Longitude: -74.85, Timestamp: "2025-04-01T10:00:00Z"}
		if got != want {
			t.Fatalf("message = %+v, want %+v", got, want)
		}
	}
}

func TestBroadcastKeepsSubSecondTimestampPrecision(t *testing.T) {
	h := NewHub()
	sink := &recordSink{}
	h.Subscribe(sink)

	// Store-assigned insertion times carry nanoseconds; the wire message
	// must encode them exactly as the REST API encodes the same fix.
	fix := domain.Fix{ID: 7, Latitude: 11.02, Longitude: -74.85, Timestamp: time.Date(2025, 4, 1, 10, 0, 0, 123456789, time.UTC)}
	h.Broadcast(fix)

	msgs := sink.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	var got Message
	if err := json.Unmarshal(msgs[0], &got); err != nil {
		t.Fatal(err)
	}

	restJSON, err := json.Marshal(fix)
	if err != nil {
		t.Fatal(err)
	}
	var rest struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(restJSON, &rest); err != nil {
		t.Fatal(err)
	}
	if got.Timestamp != rest.Timestamp {
		t.Fatalf("broadcast timestamp %q differs from REST encoding %q", got.Timestamp, rest.Timestamp)
	}
	if got.Timestamp != "2025-04-01T10:00:00.123456789Z" {
		t.Fatalf("unexpected timestamp encoding: %q", got.Timestamp)
	}
}

func TestBroadcastPreservesInsertionOrder(t *testing.T) {
	h := NewHub()
	sink := &recordSink{}
	h.Subscribe(sink)

	for id := int64(1); id <= 5; id++ {
		h.Broadcast(domain.Fix{ID: id, Timestamp: time.Now().UTC()})
	}

	msgs := sink.messages()
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i, raw := range msgs {
		var got Message
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatal(err)
		}
		if got.ID != int64(i+1) {
			t.Fatalf("message %d has id %d, want %d", i, got.ID, i+1)
		}
	}
}

func TestFailedSendRemovesSubscriber(t *testing.T) {
	h := NewHub()
	healthy, broken := &recordSink{}, &recordSink{fail: true}
	h.Subscribe(healthy)
	h.Subscribe(broken)

	h.Broadcast(domain.Fix{ID: 1, Timestamp: time.Now().UTC()})
	if h.SubscriberCount() != 1 {
		t.Fatalf("expected broken sink to be pruned, have %d subscribers", h.SubscriberCount())
	}
	if !broken.closed {
		t.Fatal("expected broken sink to be closed")
	}

	h.Broadcast(domain.Fix{ID: 2, Timestamp: time.Now().UTC()})
	if len(healthy.messages()) != 2 {
		t.Fatalf("healthy sink should keep receiving, got %d messages", len(healthy.messages()))
	}
}

func TestBroadcastWithNoSubscribersIsNoOp(t *testing.T) {
	h := NewHub()
	h.Broadcast(domain.Fix{ID: 1, Timestamp: time.Now().UTC()})
	if h.SubscriberCount() != 0 {
		t.Fatal("registry must stay empty")
	}
}

func TestUnsubscribeDuringBroadcastIsSafe(t *testing.T) {
	h := NewHub()
	sink := &recordSink{}
	h.Subscribe(sink)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			h.Broadcast(domain.Fix{ID: int64(i), Timestamp: time.Now().UTC()})
		}
	}()
	h.Unsubscribe(sink)
	<-done
}
