package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"signet/internal/domain"
)

type captureSender struct {
	mu         sync.Mutex
	deliveries []Delivery
	err        error
	received   chan struct{}
}

func newCaptureSender(capacity int) *captureSender {
	return &captureSender{received: make(chan struct{}, capacity)}
}

func (s *captureSender) Send(_ context.Context, d Delivery) error {
	s.mu.Lock()
	s.deliveries = append(s.deliveries, d)
	s.mu.Unlock()
	s.received <- struct{}{}
	return s.err
}

func (s *captureSender) all() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delivery, len(s.deliveries))
	copy(out, s.deliveries)
	return out
}

func waitFor(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d of %d", i+1, n)
		}
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sender := newCaptureSender(4)
	d := NewDispatcher(4, sender, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Notify(ctx, "a@example.com", domain.NotifySignatureRequested, map[string]any{"request_id": "req-1"})
	d.Notify(ctx, "b@example.com", domain.NotifySignerTurn, nil)

	waitFor(t, sender.received, 2)

	got := sender.all()
	if len(got) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(got))
	}
	if got[0].Recipient != "a@example.com" || got[0].Event != domain.NotifySignatureRequested {
		t.Fatalf("first delivery = %+v", got[0])
	}
	if got[0].Payload["request_id"] != "req-1" {
		t.Fatalf("payload = %v", got[0].Payload)
	}
	if got[1].Recipient != "b@example.com" || got[1].Event != domain.NotifySignerTurn {
		t.Fatalf("second delivery = %+v", got[1])
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sender := newCaptureSender(8)
	d := NewDispatcher(1, sender, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Worker not started yet: first notify fills the buffer, the rest drop.
	d.Notify(ctx, "a@example.com", domain.NotifySignerTurn, nil)
	d.Notify(ctx, "b@example.com", domain.NotifySignerTurn, nil)
	d.Notify(ctx, "c@example.com", domain.NotifySignerTurn, nil)

	d.Start(ctx)
	waitFor(t, sender.received, 1)

	got := sender.all()
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	if got[0].Recipient != "a@example.com" {
		t.Fatalf("kept delivery = %+v", got[0])
	}
}

func TestDispatcherIgnoresBlankRecipient(t *testing.T) {
	sender := newCaptureSender(1)
	d := NewDispatcher(4, sender, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Notify(ctx, "", domain.NotifySignerTurn, nil)
	d.Notify(ctx, "a@example.com", "", nil)

	select {
	case <-sender.received:
		t.Fatal("expected no deliveries")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherContinuesAfterSendError(t *testing.T) {
	sender := newCaptureSender(4)
	sender.err = errors.New("smtp down")
	d := NewDispatcher(4, sender, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Notify(ctx, "a@example.com", domain.NotifySignerTurn, nil)
	d.Notify(ctx, "b@example.com", domain.NotifyRequestCompleted, nil)

	waitFor(t, sender.received, 2)
	if got := sender.all(); len(got) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(got))
	}
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	sender := newCaptureSender(1)
	d := NewDispatcher(4, sender, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	cancel()

	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
